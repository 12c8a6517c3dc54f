package biz

import (
	"context"
	stderrors "errors"
	"strings"
	"time"

	"github.com/kart-io/logger"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/singleflight"

	"github.com/kart-io/sensei/internal/model"
	"github.com/kart-io/sensei/pkg/errors"
	"github.com/kart-io/sensei/pkg/llm"
	"github.com/kart-io/sensei/pkg/utils/textutil"
)

// CorrectionRepo is the durable map of classifications.
type CorrectionRepo interface {
	Get(ctx context.Context, normalizedQuery string) (*model.ClassificationRecord, error)
	Put(ctx context.Context, normalizedQuery string, category model.Category) error
	PutIfAbsent(ctx context.Context, normalizedQuery string, category model.Category) (bool, error)
}

// Submitter runs background tasks.
type Submitter interface {
	Submit(task func()) error
}

// RouterPromptSource provides the classifier system prompt.
type RouterPromptSource interface {
	RouterPrompt() string
}

// RouterOptions configures a Router.
type RouterOptions struct {
	// Timeout bounds a classifier call.
	Timeout time.Duration
	// FastPath enables the deterministic tool-style rules.
	FastPath bool
	// PersistTimeout bounds the background write of a model result.
	PersistTimeout time.Duration
}

// DefaultRouterOptions returns the defaults.
func DefaultRouterOptions() RouterOptions {
	return RouterOptions{
		Timeout:        30 * time.Second,
		FastPath:       true,
		PersistTimeout: 5 * time.Second,
	}
}

// Router classifies prompts. Corrections in the store win over the fast path
// and the classifier; model results are remembered without overriding them.
type Router struct {
	store    CorrectionRepo
	provider llm.ChatProvider
	prompts  RouterPromptSource
	pool     Submitter
	opts     RouterOptions

	group singleflight.Group
}

// NewRouter creates a Router. prompts and pool may be nil.
func NewRouter(store CorrectionRepo, provider llm.ChatProvider, prompts RouterPromptSource, pool Submitter, opts RouterOptions) *Router {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultRouterOptions().Timeout
	}
	if opts.PersistTimeout <= 0 {
		opts.PersistTimeout = DefaultRouterOptions().PersistTimeout
	}
	return &Router{store: store, provider: provider, prompts: prompts, pool: pool, opts: opts}
}

// Classify returns the category and enhanced query of prompt.
func (r *Router) Classify(ctx context.Context, prompt string) (*model.Classification, error) {
	ctx, span := tracer.Start(ctx, "Router.Classify")
	defer span.End()

	if strings.TrimSpace(prompt) == "" {
		return nil, errors.ErrValidation.WithMessage("prompt is required")
	}
	nq := model.Normalize(prompt)

	rec, err := r.store.Get(ctx, nq)
	if err != nil {
		// 存储不可用时退回模型路径
		logger.Warnw("correction store lookup failed, using classifier", "error", err.Error())
		rec = nil
	}

	var fast FastPathFunc
	if r.opts.FastPath {
		fast = FastPath
	}
	d := Decide(rec, prompt, fast)
	span.SetAttributes(attribute.String("sensei.route", string(d.Route)))

	if d.Route != RouteModel {
		span.SetAttributes(attribute.String("sensei.category", d.Category.String()))
		return &model.Classification{
			Category:      d.Category,
			EnhancedQuery: EnhancedQuery(prompt),
			Route:         string(d.Route),
		}, nil
	}

	// 同一 key 的并发未命中合并为一次模型调用，调用方断开不影响其他等待者
	ch := r.group.DoChan(nq, func() (any, error) {
		cls, err := r.invoke(context.WithoutCancel(ctx), d.Prompt)
		if err != nil {
			return nil, err
		}
		r.remember(nq, cls.Category)
		return cls, nil
	})

	var res singleflight.Result
	select {
	case <-ctx.Done():
		return nil, contextError(ctx.Err())
	case res = <-ch:
	}
	if res.Err != nil {
		span.RecordError(res.Err)
		span.SetStatus(codes.Error, res.Err.Error())
		return nil, res.Err
	}

	shared := res.Val.(*model.Classification)
	out := *shared
	span.SetAttributes(attribute.String("sensei.category", out.Category.String()))
	return &out, nil
}

func (r *Router) invoke(ctx context.Context, prompt string) (*model.Classification, error) {
	ctx, cancel := context.WithTimeout(ctx, r.opts.Timeout)
	defer cancel()

	system := DefaultRouterPrompt
	if r.prompts != nil {
		system = r.prompts.RouterPrompt()
	}

	start := time.Now()
	raw, err := r.provider.Generate(ctx, prompt, system, llm.WithJSON(), llm.WithTemperature(0))
	if err != nil {
		logger.Warnw("classifier call failed",
			"provider", r.provider.Name(),
			"latency", time.Since(start),
			"error", err.Error(),
		)
		return nil, errors.ErrClassification.WithCause(err)
	}

	c, enhanced, err := parseClassifierReply(raw, prompt)
	if err != nil {
		logger.Warnw("classifier reply rejected", "reply", textutil.TruncateString(raw, 200), "error", err.Error())
		return nil, err
	}

	logger.Debugw("classified by model", "category", c.String(), "latency", time.Since(start))
	return &model.Classification{Category: c, EnhancedQuery: enhanced, Route: string(RouteModel)}, nil
}

// remember stores a model result in the background. It never overrides a
// correction and failures are only logged.
func (r *Router) remember(nq string, c model.Category) {
	task := func() {
		ctx, cancel := context.WithTimeout(context.Background(), r.opts.PersistTimeout)
		defer cancel()
		if _, err := r.store.PutIfAbsent(ctx, nq, c); err != nil {
			logger.Warnw("failed to remember classification", "category", c.String(), "error", err.Error())
		}
	}

	if r.pool == nil {
		task()
		return
	}
	if err := r.pool.Submit(task); err != nil {
		logger.Warnw("background pool rejected classification write", "error", err.Error())
	}
}

// Correct teaches the category of query. It fails when the label is not in
// the taxonomy or when the correction could not be made durable.
func (r *Router) Correct(ctx context.Context, query, label string) (model.Category, error) {
	ctx, span := tracer.Start(ctx, "Router.Correct")
	defer span.End()

	nq := model.Normalize(query)
	if nq == "" {
		return 0, errors.ErrValidation.WithMessage("query is required")
	}
	c, err := model.ParseCategory(label)
	if err != nil {
		return 0, errors.ErrUnknownCategory.WithMessage(err.Error())
	}

	if err := r.store.Put(ctx, nq, c); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		var e *errors.Errno
		if stderrors.As(err, &e) {
			return 0, err
		}
		return 0, errors.ErrStorage.WithCause(err)
	}
	r.group.Forget(nq)

	logger.Infow("classification corrected", "category", c.String())
	return c, nil
}

// contextError maps a caller context error onto its errno.
func contextError(err error) error {
	if stderrors.Is(err, context.DeadlineExceeded) {
		return errors.ErrRequestTimeout.WithCause(err)
	}
	return errors.ErrRequestCanceled.WithCause(err)
}
