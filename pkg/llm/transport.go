package llm

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/kart-io/sensei/pkg/utils/json"
)

// maxErrorBody bounds how much of a failed response body is kept.
const maxErrorBody = 4096

// HTTPError is returned when a provider answers with a non-2xx status.
type HTTPError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%s: 请求失败，状态码 %d: %s", e.Provider, e.StatusCode, e.Body)
}

// Retryable reports whether the status is worth another attempt.
func (e *HTTPError) Retryable() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
}

// Requester posts JSON to provider endpoints.
// The request is rebuilt on every attempt so the body is never reused.
type Requester struct {
	Provider   string
	Client     *http.Client
	MaxRetries int
	Backoff    time.Duration
}

// NewRequester creates a Requester with its own http.Client.
func NewRequester(provider string, timeout time.Duration, maxRetries int) *Requester {
	return &Requester{
		Provider:   provider,
		Client:     &http.Client{Timeout: timeout},
		MaxRetries: maxRetries,
		Backoff:    500 * time.Millisecond,
	}
}

// PostJSON marshals in, posts it to url and decodes the response into out.
func (r *Requester) PostJSON(ctx context.Context, url string, header http.Header, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("%s: 序列化请求失败: %w", r.Provider, err)
	}

	var lastErr error
	for attempt := 0; attempt <= r.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(time.Duration(attempt) * r.Backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		lastErr = r.do(ctx, url, header, body, out)
		if lastErr == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if he, ok := lastErr.(*HTTPError); ok && !he.Retryable() {
			return lastErr
		}
	}
	return lastErr
}

func (r *Requester) do(ctx context.Context, url string, header http.Header, body []byte, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%s: 创建请求失败: %w", r.Provider, err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	// 传播 W3C Trace Context，ctx 中无活跃 Span 时不写入任何头
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := r.Client.Do(req)
	if err != nil {
		return fmt.Errorf("%s: 请求失败: %w", r.Provider, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &HTTPError{Provider: r.Provider, StatusCode: resp.StatusCode, Body: string(b)}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: 解析响应失败: %w", r.Provider, err)
	}
	return nil
}
