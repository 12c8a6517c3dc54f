package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/kart-io/logger"
	utilerrors "k8s.io/apimachinery/pkg/util/errors"
)

// Fallback tries a list of providers in order and returns the first success.
// Cancellation of the caller's context stops the walk.
type Fallback struct {
	providers []ChatProvider
}

// NewFallback creates a tiered provider. A single provider is returned as is.
func NewFallback(providers ...ChatProvider) ChatProvider {
	if len(providers) == 1 {
		return providers[0]
	}
	return &Fallback{providers: providers}
}

// Name returns the joined names of the tiers.
func (f *Fallback) Name() string {
	names := make([]string, len(f.providers))
	for i, p := range f.providers {
		names[i] = p.Name()
	}
	return "fallback(" + strings.Join(names, ",") + ")"
}

// Chat implements ChatProvider.
func (f *Fallback) Chat(ctx context.Context, messages []Message, opts ...ChatOption) (string, error) {
	return f.try(ctx, func(p ChatProvider) (string, error) {
		return p.Chat(ctx, messages, opts...)
	})
}

// Generate implements ChatProvider.
func (f *Fallback) Generate(ctx context.Context, prompt, systemPrompt string, opts ...ChatOption) (string, error) {
	return f.try(ctx, func(p ChatProvider) (string, error) {
		return p.Generate(ctx, prompt, systemPrompt, opts...)
	})
}

func (f *Fallback) try(ctx context.Context, call func(ChatProvider) (string, error)) (string, error) {
	if len(f.providers) == 0 {
		return "", errors.New("fallback: no providers configured")
	}

	var errs []error
	for i, p := range f.providers {
		out, err := call(p)
		if err == nil {
			if i > 0 {
				logger.Infow("llm fallback tier answered", "provider", p.Name(), "tier", i)
			}
			return out, nil
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		logger.Warnw("llm provider failed, trying next tier", "provider", p.Name(), "tier", i, "error", err.Error())
		errs = append(errs, fmt.Errorf("%s: %w", p.Name(), err))
	}
	return "", utilerrors.NewAggregate(errs)
}
