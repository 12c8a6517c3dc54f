// Package sensei wires the query router, the knowledge index and the answer
// pipeline into one HTTP service.
package sensei

import (
	"context"
	"fmt"
	"time"

	"github.com/kart-io/logger"

	"github.com/kart-io/sensei/internal/sensei/biz"
	"github.com/kart-io/sensei/internal/sensei/handler"
	"github.com/kart-io/sensei/internal/sensei/router"
	"github.com/kart-io/sensei/internal/sensei/store"
	"github.com/kart-io/sensei/pkg/infra/app"
	"github.com/kart-io/sensei/pkg/infra/pool"
	"github.com/kart-io/sensei/pkg/infra/server"
	httpserver "github.com/kart-io/sensei/pkg/infra/server/http"
	"github.com/kart-io/sensei/pkg/infra/tracing"
	"github.com/kart-io/sensei/pkg/llm"
	"github.com/kart-io/sensei/pkg/llm/resilience"
	llmopts "github.com/kart-io/sensei/pkg/options/llm"
	logopts "github.com/kart-io/sensei/pkg/options/logger"
	middlewareopts "github.com/kart-io/sensei/pkg/options/middleware"
	poolopts "github.com/kart-io/sensei/pkg/options/pool"
	promptsopts "github.com/kart-io/sensei/pkg/options/prompts"
	ragopts "github.com/kart-io/sensei/pkg/options/rag"
	redisopts "github.com/kart-io/sensei/pkg/options/redis"
	routeropts "github.com/kart-io/sensei/pkg/options/router"
	httpopts "github.com/kart-io/sensei/pkg/options/server/http"
	storeopts "github.com/kart-io/sensei/pkg/options/store"
	tracingopts "github.com/kart-io/sensei/pkg/options/tracing"

	// 导入 LLM 供应商以自动注册
	_ "github.com/kart-io/sensei/pkg/llm/gemini"
	_ "github.com/kart-io/sensei/pkg/llm/genai"
	_ "github.com/kart-io/sensei/pkg/llm/ollama"
	_ "github.com/kart-io/sensei/pkg/llm/openai"
)

// Name is the name of the application.
const Name = "sensei"

// Config contains application-related configurations.
type Config struct {
	HTTPOptions       *httpopts.Options
	LogOptions        *logopts.Options
	MiddlewareOptions *middlewareopts.Options
	StoreOptions      *storeopts.Options
	RedisOptions      *redisopts.Options
	LLMOptions        *llmopts.Options
	RAGOptions        *ragopts.Options
	RouterOptions     *routeropts.Options
	PromptsOptions    *promptsopts.Options
	PoolOptions       *poolopts.Options
	TracingOptions    *tracingopts.Options
	ShutdownTimeout   time.Duration
}

// Server represents the sensei server.
type Server struct {
	srv  *server.Manager
	http *httpserver.Server
}

// NewServer initializes and returns a new Server instance. Resources opened
// here are released by the manager in reverse order once Run returns.
func (cfg *Config) NewServer(ctx context.Context) (*Server, error) {
	printBanner(cfg)

	// 1. 初始化日志
	cfg.LogOptions.AddInitialField("service.name", Name)
	cfg.LogOptions.AddInitialField("service.version", app.GetVersion())
	if err := cfg.LogOptions.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	logger.Info("Starting sensei service...")

	// 2. 初始化链路追踪
	if cfg.TracingOptions.ServiceName == "" {
		cfg.TracingOptions.ServiceName = Name
	}
	if cfg.TracingOptions.ServiceVersion == "" {
		cfg.TracingOptions.ServiceVersion = app.GetVersion()
	}
	tp, err := tracing.NewProvider(cfg.TracingOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracing: %w", err)
	}
	hooks := []server.Runnable{server.Hook{ID: "tracing", OnStop: tp.Shutdown}}
	logger.Infow("Tracing initialized", "enabled", tp.Enabled())

	// 3. 初始化存储（SQLite/Postgres/MySQL + 可选 Redis 镜像）
	st, err := store.New(ctx, cfg.StoreOptions, cfg.RedisOptions)
	if err != nil {
		_ = tp.Shutdown(ctx)
		return nil, fmt.Errorf("failed to initialize store: %w", err)
	}
	hooks = append(hooks, server.Hook{ID: "store", OnStop: func(context.Context) error { return st.Close() }})
	logger.Infow("Store initialized", "dsn", cfg.StoreOptions.String())

	cleanup := func() {
		_ = st.Close()
		_ = tp.Shutdown(ctx)
	}

	// 4. 初始化协程池
	pools := pool.NewManager()
	background, err := pools.Register(pool.BackgroundPool, cfg.poolConfig(cfg.PoolOptions.BackgroundCapacity))
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("failed to create background pool: %w", err)
	}
	transcripts, err := pools.Register(pool.TranscriptPool, cfg.poolConfig(cfg.PoolOptions.TranscriptCapacity))
	if err != nil {
		_ = pools.ReleaseAllTimeout(cfg.PoolOptions.ReleaseTimeout)
		cleanup()
		return nil, fmt.Errorf("failed to create transcript pool: %w", err)
	}
	hooks = append(hooks, server.Hook{ID: "pools", OnStop: func(context.Context) error {
		return pools.ReleaseAllTimeout(cfg.PoolOptions.ReleaseTimeout)
	}})
	cleanup = func() {
		_ = pools.ReleaseAllTimeout(cfg.PoolOptions.ReleaseTimeout)
		_ = st.Close()
		_ = tp.Shutdown(ctx)
	}

	// 5. 初始化 LLM 供应商
	routerProvider, err := cfg.newTier("router", cfg.LLMOptions.Router)
	if err != nil {
		cleanup()
		return nil, err
	}
	chatProvider, err := cfg.newTier("chat", cfg.LLMOptions.Chat)
	if err != nil {
		cleanup()
		return nil, err
	}

	// 6. 加载人格提示词
	personas := biz.NewPersonaSet(cfg.RouterOptions.Prompt)
	if err := personas.Load(cfg.PromptsOptions.Path); err != nil {
		logger.Warnw("prompts file ignored, using built-in personas",
			"path", cfg.PromptsOptions.Path,
			"error", err.Error(),
		)
	}
	watchCtx, stopWatch := context.WithCancel(context.Background())
	if cfg.PromptsOptions.Watch {
		if err := personas.Watch(watchCtx, cfg.PromptsOptions.Path); err != nil {
			logger.Warnw("prompts hot reload disabled", "error", err.Error())
		}
	}
	hooks = append(hooks, server.Hook{ID: "prompts", OnStop: func(context.Context) error {
		stopWatch()
		return nil
	}})

	// 7. 初始化 Biz 层
	classifier := biz.NewRouter(st.Corrections, routerProvider, personas, background, biz.RouterOptions{
		Timeout:        cfg.RouterOptions.Timeout,
		FastPath:       cfg.RouterOptions.FastPath,
		PersistTimeout: cfg.RouterOptions.PersistTimeout,
	})
	index := biz.NewIndex(st.Documents, biz.IndexOptions{
		ChunkSize:    cfg.RAGOptions.ChunkSize,
		ChunkOverlap: cfg.RAGOptions.ChunkOverlap,
	})
	if err := index.Load(ctx); err != nil {
		stopWatch()
		cleanup()
		return nil, fmt.Errorf("failed to load knowledge index: %w", err)
	}
	docs, chunks := index.Stats()
	logger.Infow("Knowledge index loaded", "documents", docs, "chunks", chunks)

	pipeline := biz.NewPipeline(classifier, index, personas, chatProvider, biz.PipelineOptions{
		TopK:              cfg.RAGOptions.TopK,
		GenerationTimeout: cfg.RAGOptions.GenerationTimeout,
	})

	// 8. 初始化 Handler 层
	h := handler.NewSenseiHandler(classifier, pipeline, index, st.Sessions, transcripts, handler.Options{})

	// 9. 注册路由
	engine := httpserver.NewEngine()
	router.Register(engine, h, cfg.MiddlewareOptions)
	httpSrv := httpserver.NewServer(cfg.HTTPOptions, engine)

	// 10. 初始化服务器管理器，HTTP 最后启动、最先停止
	mgr := server.NewManager(cfg.ShutdownTimeout, hooks...)
	mgr.AddServer(httpSrv)

	logger.Info("Sensei service is ready")
	return &Server{srv: mgr, http: httpSrv}, nil
}

// Run starts the server and blocks until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	return s.srv.Run(ctx)
}

// Addr returns the address the HTTP server listens on once started.
func (s *Server) Addr() string {
	return s.http.Addr()
}

// newTier builds the provider chain of one tier: primary, then the
// secondary on failure, behind rate limiting and a circuit breaker.
func (cfg *Config) newTier(tier string, primary *llmopts.ProviderOptions) (llm.ChatProvider, error) {
	p, err := llm.NewChatProvider(primary.Provider, primary.ToConfigMap())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize %s provider: %w", tier, err)
	}
	chain := []llm.ChatProvider{p}

	if sec := cfg.LLMOptions.Secondary; sec != nil && sec.Enabled() {
		sp, err := llm.NewChatProvider(sec.Provider, sec.ToConfigMap())
		if err != nil {
			return nil, fmt.Errorf("failed to initialize %s secondary provider: %w", tier, err)
		}
		chain = append(chain, sp)
	}

	provider := llm.NewFallback(chain...)
	logger.Infow("LLM tier initialized",
		"tier", tier,
		"providers", provider.Name(),
		"model", primary.Model,
	)

	return resilience.NewResilientChatProvider(provider, resilience.Config{
		RateLimit: cfg.LLMOptions.RateLimit,
		Burst:     cfg.LLMOptions.Burst,
		CircuitBreaker: &resilience.CircuitBreakerConfig{
			MaxFailures:      cfg.LLMOptions.BreakerThreshold,
			Timeout:          cfg.LLMOptions.BreakerTimeout,
			HalfOpenMaxCalls: 1,
		},
	}), nil
}

func (cfg *Config) poolConfig(capacity int) *pool.Config {
	c := pool.DefaultConfig()
	c.Capacity = capacity
	c.ExpiryDuration = cfg.PoolOptions.ExpiryDuration
	return c
}

func printBanner(cfg *Config) {
	fmt.Printf("Starting %s...\n", Name)
	fmt.Printf("  Listen: %s\n", cfg.HTTPOptions.Addr)
	fmt.Printf("  Store: %s\n", cfg.StoreOptions.String())
	fmt.Printf("  Router: %s (%s)\n", cfg.LLMOptions.Router.Provider, cfg.LLMOptions.Router.Model)
	fmt.Printf("  Chat: %s (%s)\n", cfg.LLMOptions.Chat.Provider, cfg.LLMOptions.Chat.Model)
	if sec := cfg.LLMOptions.Secondary; sec != nil && sec.Enabled() {
		fmt.Printf("  Secondary: %s (%s)\n", sec.Provider, sec.Model)
	}
}
