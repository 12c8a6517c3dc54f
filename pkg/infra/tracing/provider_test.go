package tracing

import (
	"bytes"
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"

	options "github.com/kart-io/sensei/pkg/options/tracing"
)

func TestOptionsValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(o *options.Options)
		wantErr bool
	}{
		{"disabled skips checks", func(o *options.Options) { o.ExporterType = "bogus" }, false},
		{"valid otlp", func(o *options.Options) { o.Enabled = true }, false},
		{"bad exporter", func(o *options.Options) { o.Enabled = true; o.ExporterType = "zipkin" }, true},
		{"missing endpoint", func(o *options.Options) { o.Enabled = true; o.Endpoint = "" }, true},
		{"grpc needs endpoint", func(o *options.Options) {
			o.Enabled = true
			o.ExporterType = options.ExporterOTLPGRPC
			o.Endpoint = ""
		}, true},
		{"stdout needs no endpoint", func(o *options.Options) {
			o.Enabled = true
			o.ExporterType = options.ExporterStdout
			o.Endpoint = ""
		}, false},
		{"bad sampler", func(o *options.Options) { o.Enabled = true; o.SamplerType = "sometimes" }, true},
		{"bad ratio", func(o *options.Options) { o.Enabled = true; o.SamplerRatio = 1.5 }, true},
		{"bad batch", func(o *options.Options) { o.Enabled = true; o.BatchMaxSize = 0 }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := options.NewOptions()
			tt.mutate(o)
			if tt.wantErr {
				assert.NotEmpty(t, o.Validate())
			} else {
				assert.Empty(t, o.Validate())
			}
		})
	}
}

func TestNewProvider_Disabled(t *testing.T) {
	p, err := NewProvider(nil)
	require.NoError(t, err)
	assert.False(t, p.Enabled())
	assert.NoError(t, p.Shutdown(context.Background()))
}

func TestNewProvider_Invalid(t *testing.T) {
	o := options.NewOptions()
	o.Enabled = true
	o.ExporterType = "zipkin"
	_, err := NewProvider(o)
	assert.Error(t, err)
}

func TestNewProvider_StdoutExportsSpans(t *testing.T) {
	prev := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	o := options.NewOptions()
	o.Enabled = true
	o.ExporterType = options.ExporterStdout
	o.SamplerType = options.SamplerAlwaysOn

	var buf bytes.Buffer
	stdout = &buf
	t.Cleanup(func() { stdout = os.Stdout })
	p, err := NewProvider(o)
	require.NoError(t, err)
	require.True(t, p.Enabled())

	ctx, span := otel.Tracer("test").Start(context.Background(), "classify")
	assert.NotEmpty(t, TraceIDFromContext(ctx))
	span.End()

	require.NoError(t, p.Shutdown(context.Background()))
	assert.Contains(t, buf.String(), `"Name": "classify"`)
}

func TestNewProvider_Noop(t *testing.T) {
	prev := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	o := options.NewOptions()
	o.Enabled = true
	o.ExporterType = options.ExporterNoop
	p, err := NewProvider(o)
	require.NoError(t, err)
	assert.NoError(t, p.Shutdown(context.Background()))
}

func TestTraceIDFromContext_NoSpan(t *testing.T) {
	assert.Empty(t, TraceIDFromContext(context.Background()))
}

func TestNewProvider_OTLPGRPC(t *testing.T) {
	prev := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	o := options.NewOptions()
	o.Enabled = true
	o.ServiceName = "sensei-test"
	o.ExporterType = options.ExporterOTLPGRPC
	o.Endpoint = "127.0.0.1:4317"
	o.Insecure = true

	p, err := NewProvider(o)
	require.NoError(t, err)
	assert.True(t, p.Enabled())

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_ = p.Shutdown(ctx)
}
