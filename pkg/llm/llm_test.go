package llm

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

type stubProvider struct {
	name  string
	out   string
	err   error
	calls int
}

func (s *stubProvider) Chat(_ context.Context, _ []Message, _ ...ChatOption) (string, error) {
	s.calls++
	return s.out, s.err
}

func (s *stubProvider) Generate(ctx context.Context, prompt, system string, opts ...ChatOption) (string, error) {
	return s.Chat(ctx, GenerateMessages(prompt, system), opts...)
}

func (s *stubProvider) Name() string { return s.name }

func TestGenerateMessages(t *testing.T) {
	assert.Equal(t, []Message{{Role: RoleUser, Content: "q"}}, GenerateMessages("q", ""))
	assert.Equal(t, []Message{
		{Role: RoleSystem, Content: "sys"},
		{Role: RoleUser, Content: "q"},
	}, GenerateMessages("q", "sys"))
}

func TestApplyChatOptions(t *testing.T) {
	o := ApplyChatOptions(WithSafetyMode(SafetyPermissive), WithTemperature(0.2), WithMaxTokens(64), WithJSON(), nil)
	assert.Equal(t, SafetyPermissive, o.SafetyMode)
	require.NotNil(t, o.Temperature)
	assert.InDelta(t, 0.2, *o.Temperature, 1e-9)
	assert.Equal(t, 64, o.MaxTokens)
	assert.True(t, o.JSON)
	assert.Equal(t, "permissive", SafetyPermissive.String())
	assert.Equal(t, "standard", SafetyStandard.String())
}

func TestRegistry(t *testing.T) {
	RegisterChatProvider("stub-test", func(cfg map[string]any) (ChatProvider, error) {
		return &stubProvider{name: ConfigString(cfg, "name", "stub")}, nil
	})

	p, err := NewChatProvider("stub-test", map[string]any{"name": "x"})
	require.NoError(t, err)
	assert.Equal(t, "x", p.Name())
	assert.Contains(t, ListProviders(), "stub-test")

	_, err = NewChatProvider("missing", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown chat provider: missing")
	assert.Contains(t, err.Error(), "stub-test")
}

func TestConfigHelpers(t *testing.T) {
	m := map[string]any{"s": "v", "i": 3, "f": 4.0, "d": "2s", "n": 5}
	assert.Equal(t, "v", ConfigString(m, "s", "def"))
	assert.Equal(t, "def", ConfigString(m, "missing", "def"))
	assert.Equal(t, 3, ConfigInt(m, "i", 0))
	assert.Equal(t, 4, ConfigInt(m, "f", 0))
	assert.Equal(t, 2*time.Second, ConfigDuration(m, "d", 0))
	assert.Equal(t, time.Minute, ConfigDuration(m, "missing", time.Minute))
}

func TestFallback_SingleProviderUnwrapped(t *testing.T) {
	p := &stubProvider{name: "one"}
	assert.Same(t, p, NewFallback(p))
}

func TestFallback_NextTier(t *testing.T) {
	first := &stubProvider{name: "a", err: errors.New("down")}
	second := &stubProvider{name: "b", out: "answer"}
	f := NewFallback(first, second)

	out, err := f.Generate(context.Background(), "q", "")
	require.NoError(t, err)
	assert.Equal(t, "answer", out)
	assert.Equal(t, 1, first.calls)
	assert.Equal(t, 1, second.calls)
	assert.Equal(t, "fallback(a,b)", f.Name())
}

func TestFallback_AllFail(t *testing.T) {
	f := NewFallback(&stubProvider{name: "a", err: errors.New("x")}, &stubProvider{name: "b", err: errors.New("y")})
	_, err := f.Generate(context.Background(), "q", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "a: x")
	assert.Contains(t, err.Error(), "b: y")
}

func TestFallback_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	second := &stubProvider{name: "b", out: "answer"}
	f := NewFallback(&stubProvider{name: "a", err: errors.New("x")}, second)

	_, err := f.Generate(ctx, "q", "")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, second.calls)
}

func TestRequester_RebuildsBodyOnRetry(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		assert.JSONEq(t, `{"q":"hi"}`, string(b))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "k", r.Header.Get("X-Key"))
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"a":"ok"}`))
	}))
	defer srv.Close()

	r := NewRequester("test", time.Second, 1)
	r.Backoff = 0
	var out struct {
		A string `json:"a"`
	}
	err := r.PostJSON(context.Background(), srv.URL, http.Header{"X-Key": {"k"}}, map[string]string{"q": "hi"}, &out)
	require.NoError(t, err)
	assert.Equal(t, "ok", out.A)
	assert.EqualValues(t, 2, calls.Load())
}

func TestRequester_NoRetryOnClientError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte("bad"))
	}))
	defer srv.Close()

	r := NewRequester("test", time.Second, 3)
	r.Backoff = 0
	err := r.PostJSON(context.Background(), srv.URL, nil, map[string]string{}, &struct{}{})

	var he *HTTPError
	require.ErrorAs(t, err, &he)
	assert.Equal(t, http.StatusBadRequest, he.StatusCode)
	assert.Equal(t, "bad", he.Body)
	assert.False(t, he.Retryable())
	assert.EqualValues(t, 1, calls.Load())
}

func TestRequester_PropagatesTraceContext(t *testing.T) {
	prev := otel.GetTextMapPropagator()
	otel.SetTextMapPropagator(propagation.TraceContext{})
	t.Cleanup(func() { otel.SetTextMapPropagator(prev) })

	var traceparent atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceparent.Store(r.Header.Get("traceparent"))
		_, _ = io.WriteString(w, `{}`)
	}))
	defer srv.Close()

	tid, err := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	require.NoError(t, err)
	sid, err := trace.SpanIDFromHex("00f067aa0ba902b7")
	require.NoError(t, err)
	ctx := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    tid,
		SpanID:     sid,
		TraceFlags: trace.FlagsSampled,
	}))

	var out map[string]any
	require.NoError(t, NewRequester("test", time.Second, 0).PostJSON(ctx, srv.URL, nil, map[string]string{}, &out))
	assert.Equal(t, "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01", traceparent.Load())

	require.NoError(t, NewRequester("test", time.Second, 0).PostJSON(context.Background(), srv.URL, nil, map[string]string{}, &out))
	assert.Equal(t, "", traceparent.Load())
}
