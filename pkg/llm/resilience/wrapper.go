package resilience

import (
	"context"
	"errors"
	"net"
	"net/http"

	"golang.org/x/time/rate"

	"github.com/kart-io/sensei/pkg/llm"
)

// Config 组合限流、重试与熔断的配置。
type Config struct {
	// RateLimit 每秒允许的调用数，<=0 表示不限流。
	RateLimit float64
	// Burst 令牌桶容量。
	Burst          int
	Retry          *RetryConfig
	CircuitBreaker *CircuitBreakerConfig
}

// ResilientChatProvider 带限流、重试与熔断的 Chat Provider 包装器。
type ResilientChatProvider struct {
	provider llm.ChatProvider
	limiter  *rate.Limiter
	retry    *RetryConfig
	cb       *CircuitBreaker
}

// NewResilientChatProvider 创建带韧性功能的 Chat Provider。
func NewResilientChatProvider(provider llm.ChatProvider, cfg Config) *ResilientChatProvider {
	if cfg.Retry == nil {
		cfg.Retry = DefaultRetryConfig()
	}
	if cfg.Retry.RetryableErrors == nil {
		cfg.Retry.RetryableErrors = IsRetryableError
	}

	r := &ResilientChatProvider{
		provider: provider,
		retry:    cfg.Retry,
		cb:       NewCircuitBreaker(provider.Name(), cfg.CircuitBreaker),
	}
	if cfg.RateLimit > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		r.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}
	return r
}

func (r *ResilientChatProvider) call(ctx context.Context, fn func() (string, error)) (string, error) {
	var out string
	err := RetryWithBackoff(ctx, r.retry, func() error {
		if r.limiter != nil {
			if err := r.limiter.Wait(ctx); err != nil {
				return err
			}
		}
		return r.cb.Execute(func() error {
			var err error
			out, err = fn()
			return err
		})
	})
	return out, err
}

// Chat 进行多轮对话（带限流、重试和熔断）。
func (r *ResilientChatProvider) Chat(ctx context.Context, messages []llm.Message, opts ...llm.ChatOption) (string, error) {
	return r.call(ctx, func() (string, error) {
		return r.provider.Chat(ctx, messages, opts...)
	})
}

// Generate 根据提示生成文本（带限流、重试和熔断）。
func (r *ResilientChatProvider) Generate(ctx context.Context, prompt string, systemPrompt string, opts ...llm.ChatOption) (string, error) {
	return r.call(ctx, func() (string, error) {
		return r.provider.Generate(ctx, prompt, systemPrompt, opts...)
	})
}

// Name 返回被包装供应商的名称。
func (r *ResilientChatProvider) Name() string {
	return r.provider.Name()
}

// CircuitBreaker 获取熔断器实例（用于监控）。
func (r *ResilientChatProvider) CircuitBreaker() *CircuitBreaker {
	return r.cb
}

// IsRetryableError 判断错误是否可重试。
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrCircuitBreakerOpen) ||
		errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var he *llm.HTTPError
	if errors.As(err, &he) {
		return he.Retryable() || he.StatusCode == http.StatusRequestTimeout
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return false
}
