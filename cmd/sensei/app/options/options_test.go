package options

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/sensei/pkg/infra/app"
)

func TestServerOptions_Defaults(t *testing.T) {
	t.Setenv("OLLAMA_MODEL", "")
	t.Setenv("SENSEI_LISTEN_ADDR", "")
	t.Setenv("DATABASE_URL", "")
	o := NewServerOptions()
	require.NoError(t, o.Complete())
	require.NoError(t, o.Validate())

	assert.Equal(t, "0.0.0.0:3000", o.HTTPOptions.Addr)
	assert.Equal(t, "gemini-2.5-flash", o.LLMOptions.Router.Model)
	assert.Equal(t, "gemini-3-pro-preview", o.LLMOptions.Chat.Model)
	assert.False(t, o.LLMOptions.Secondary.Enabled())
	assert.Equal(t, 30*time.Second, o.ShutdownTimeout)
}

func TestServerOptions_Flags(t *testing.T) {
	o := NewServerOptions()
	fss := o.Flags()

	for _, name := range []string{"http", "log", "middleware", "store", "redis", "llm", "rag", "router", "prompts", "pool", "tracing", "misc"} {
		assert.Contains(t, fss.FlagSets, name)
	}

	http := fss.FlagSets["http"]
	require.NoError(t, http.Parse([]string{"--http.addr", "unix:///tmp/sensei.sock"}))
	assert.Equal(t, "unix:///tmp/sensei.sock", o.HTTPOptions.Addr)

	llm := fss.FlagSets["llm"]
	require.NoError(t, llm.Parse([]string{"--llm.secondary.model", "llama3", "--llm.router.timeout", "5s"}))
	assert.True(t, o.LLMOptions.Secondary.Enabled())
	assert.Equal(t, 5*time.Second, o.LLMOptions.Router.Timeout)

	mw := fss.FlagSets["middleware"]
	require.NoError(t, mw.Parse([]string{"--middleware.timeout.duration", "10s"}))
	assert.Equal(t, 10*time.Second, o.MiddlewareOptions.Timeout.Duration)
}

func TestServerOptions_ListenAddrFromEnv(t *testing.T) {
	t.Setenv("SENSEI_LISTEN_ADDR", "unix:///run/sensei.sock")
	o := NewServerOptions()
	require.NoError(t, o.Complete())
	assert.Equal(t, "unix:///run/sensei.sock", o.HTTPOptions.Addr)
	assert.True(t, o.HTTPOptions.IsUnix())
}

func TestServerOptions_ValidateAggregates(t *testing.T) {
	o := NewServerOptions()
	o.HTTPOptions.Addr = ""
	o.RAGOptions.ChunkOverlap = o.RAGOptions.ChunkSize
	o.ShutdownTimeout = 0

	err := o.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "shutdown-timeout")
	assert.Contains(t, err.Error(), "overlap")
}

func TestServerOptions_Config(t *testing.T) {
	o := NewServerOptions()
	cfg, err := o.Config()
	require.NoError(t, err)
	assert.Same(t, o.HTTPOptions, cfg.HTTPOptions)
	assert.Same(t, o.LLMOptions, cfg.LLMOptions)
	assert.Equal(t, o.ShutdownTimeout, cfg.ShutdownTimeout)
}

func TestServerOptions_LoadsExampleConfig(t *testing.T) {
	t.Setenv("OLLAMA_MODEL", "")
	t.Setenv("SENSEI_LISTEN_ADDR", "")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("SENSEI_RAG_TOP_K", "5")

	o := NewServerOptions()
	a := app.NewApp(app.WithName("sensei"), app.WithOptions(o), app.WithSilence(),
		app.WithRunFunc(func() error { return nil }))
	require.NoError(t, a.Execute("-c", "../../../../configs/sensei.yaml", "--llm.chat.model", "gemini-2.5-pro"))

	assert.Equal(t, "INFO", o.LogOptions.Level)
	assert.Equal(t, 90*time.Second, o.MiddlewareOptions.Timeout.Duration)
	assert.Equal(t, []string{"/health"}, o.MiddlewareOptions.Logger.SkipPaths)
	assert.Equal(t, "sqlite://sensei.db", o.StoreOptions.DSN)
	assert.Equal(t, "gemini-2.5-flash", o.LLMOptions.Router.Model)
	assert.Equal(t, "gemini-2.5-pro", o.LLMOptions.Chat.Model)
	assert.Equal(t, "http://127.0.0.1:11434", o.LLMOptions.Secondary.BaseURL)
	assert.Equal(t, 5, o.RAGOptions.TopK)
	assert.True(t, o.PromptsOptions.Watch)
}
