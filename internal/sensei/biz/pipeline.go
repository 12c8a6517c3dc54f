package biz

import (
	"context"
	stderrors "errors"
	"strings"
	"time"

	"github.com/kart-io/logger"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/kart-io/sensei/internal/model"
	"github.com/kart-io/sensei/pkg/errors"
	"github.com/kart-io/sensei/pkg/llm"
)

// Classifier resolves the category of a prompt.
type Classifier interface {
	Classify(ctx context.Context, prompt string) (*model.Classification, error)
}

// Retriever returns relevant chunks for a question.
type Retriever interface {
	Retrieve(ctx context.Context, question string, k int) ([]model.ScoredChunk, error)
}

// PersonaSource resolves persona system prompts.
type PersonaSource interface {
	Persona(id model.PersonaID) string
}

// PipelineOptions configures a Pipeline.
type PipelineOptions struct {
	// TopK is the number of chunks put into the context block.
	TopK int
	// GenerationTimeout bounds the answer call.
	GenerationTimeout time.Duration
}

// DefaultPipelineOptions returns the defaults.
func DefaultPipelineOptions() PipelineOptions {
	return PipelineOptions{TopK: 3, GenerationTimeout: 60 * time.Second}
}

// Pipeline answers questions: classify, retrieve, then one generation call.
// It persists nothing and holds no lock while the model is working.
type Pipeline struct {
	classifier Classifier
	retriever  Retriever
	personas   PersonaSource
	provider   llm.ChatProvider
	opts       PipelineOptions
}

// NewPipeline creates a Pipeline. retriever may be nil.
func NewPipeline(classifier Classifier, retriever Retriever, personas PersonaSource, provider llm.ChatProvider, opts PipelineOptions) *Pipeline {
	def := DefaultPipelineOptions()
	if opts.TopK <= 0 {
		opts.TopK = def.TopK
	}
	if opts.GenerationTimeout <= 0 {
		opts.GenerationTimeout = def.GenerationTimeout
	}
	return &Pipeline{
		classifier: classifier,
		retriever:  retriever,
		personas:   personas,
		provider:   provider,
		opts:       opts,
	}
}

// Ask answers prompt.
func (p *Pipeline) Ask(ctx context.Context, prompt string) (*model.Answer, error) {
	ctx, span := tracer.Start(ctx, "Pipeline.Ask")
	defer span.End()

	cls, err := p.classifier.Classify(ctx, prompt)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	policy := cls.Category.Policy()
	span.SetAttributes(
		attribute.String("sensei.category", cls.Category.String()),
		attribute.String("sensei.safety_mode", policy.SafetyMode.String()),
	)

	var hits []model.ScoredChunk
	if p.retriever != nil {
		hits, err = p.retriever.Retrieve(ctx, cls.EnhancedQuery, p.opts.TopK)
		if err != nil {
			logger.Warnw("retrieval failed, answering without context", "error", err.Error())
			hits = nil
		}
	}

	system := defaultPersona(policy.Persona)
	if p.personas != nil {
		system = p.personas.Persona(policy.Persona)
	}

	content, err := p.generate(ctx, BuildUserPrompt(cls.EnhancedQuery, hits), system, policy.SafetyMode)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	return &model.Answer{
		Content:       content,
		Category:      cls.Category,
		EnhancedQuery: cls.EnhancedQuery,
		Sources:       hits,
	}, nil
}

func (p *Pipeline) generate(ctx context.Context, prompt, system string, mode llm.SafetyMode) (string, error) {
	gctx, cancel := context.WithTimeout(ctx, p.opts.GenerationTimeout)
	defer cancel()

	start := time.Now()
	out, err := p.provider.Generate(gctx, prompt, system, llm.WithSafetyMode(mode))
	latency := time.Since(start)
	if err != nil {
		logger.Warnw("generation failed",
			"provider", p.provider.Name(),
			"latency", latency,
			"error", err.Error(),
		)
		if stderrors.Is(err, context.DeadlineExceeded) || stderrors.Is(gctx.Err(), context.DeadlineExceeded) {
			return "", errors.ErrGenerationTimeout.WithCause(err)
		}
		return "", errors.ErrGeneration.WithCause(err)
	}
	if strings.TrimSpace(out) == "" {
		return "", errors.ErrGeneration.WithMessage("model returned an empty answer")
	}

	logger.Debugw("answer generated", "provider", p.provider.Name(), "latency", latency)
	return out, nil
}

// BuildUserPrompt renders the generation prompt. Retrieved chunks, if any,
// precede the query in a knowledge block.
func BuildUserPrompt(query string, hits []model.ScoredChunk) string {
	if len(hits) == 0 {
		return query
	}
	parts := make([]string, len(hits))
	for i, h := range hits {
		parts[i] = h.Content
	}

	var b strings.Builder
	b.WriteString("RELEVANT KNOWLEDGE:\n")
	b.WriteString(strings.Join(parts, "\n---\n"))
	b.WriteString("\n\nUSER QUERY:\n")
	b.WriteString(query)
	return b.String()
}
