// Package options contains flags and options for initializing the sensei server.
package options

import (
	"fmt"
	"time"

	utilerrors "k8s.io/apimachinery/pkg/util/errors"
	cliflag "k8s.io/component-base/cli/flag"

	sensei "github.com/kart-io/sensei/internal/sensei"
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
)

// ServerOptions contains the configuration options for the server.
type ServerOptions struct {
	// HTTPOptions contains the listener configuration.
	HTTPOptions *httpopts.Options `json:"http" mapstructure:"http"`

	// LogOptions contains logger configuration.
	LogOptions *logopts.Options `json:"log" mapstructure:"log"`

	// MiddlewareOptions contains the HTTP middleware chain configuration.
	MiddlewareOptions *middlewareopts.Options `json:"middleware" mapstructure:"middleware"`

	// StoreOptions contains the database configuration.
	StoreOptions *storeopts.Options `json:"store" mapstructure:"store"`

	// RedisOptions contains the optional correction mirror configuration.
	RedisOptions *redisopts.Options `json:"redis" mapstructure:"redis"`

	// LLMOptions contains the classifier and answer tiers.
	LLMOptions *llmopts.Options `json:"llm" mapstructure:"llm"`

	// RAGOptions contains chunking and retrieval configuration.
	RAGOptions *ragopts.Options `json:"rag" mapstructure:"rag"`

	// RouterOptions contains classification configuration.
	RouterOptions *routeropts.Options `json:"router" mapstructure:"router"`

	// PromptsOptions contains the persona prompts file configuration.
	PromptsOptions *promptsopts.Options `json:"prompts" mapstructure:"prompts"`

	// PoolOptions sizes the background worker pools.
	PoolOptions *poolopts.Options `json:"pool" mapstructure:"pool"`

	// TracingOptions contains OpenTelemetry configuration.
	TracingOptions *tracingopts.Options `json:"tracing" mapstructure:"tracing"`

	// ShutdownTimeout is the timeout for graceful shutdown.
	ShutdownTimeout time.Duration `json:"shutdown-timeout" mapstructure:"shutdown-timeout"`
}

// NewServerOptions creates a ServerOptions instance with default values.
func NewServerOptions() *ServerOptions {
	return &ServerOptions{
		HTTPOptions:       httpopts.NewOptions(),
		LogOptions:        logopts.NewOptions(),
		MiddlewareOptions: middlewareopts.NewOptions(),
		StoreOptions:      storeopts.NewOptions(),
		RedisOptions:      redisopts.NewOptions(),
		LLMOptions:        llmopts.NewOptions(),
		RAGOptions:        ragopts.NewOptions(),
		RouterOptions:     routeropts.NewOptions(),
		PromptsOptions:    promptsopts.NewOptions(),
		PoolOptions:       poolopts.NewOptions(),
		TracingOptions:    tracingopts.NewOptions(),
		ShutdownTimeout:   30 * time.Second,
	}
}

// Flags returns flags for a specific server by section name.
func (o *ServerOptions) Flags() (fss cliflag.NamedFlagSets) {
	o.HTTPOptions.AddFlags(fss.FlagSet("http"))
	o.LogOptions.AddFlags(fss.FlagSet("log"))
	o.MiddlewareOptions.AddFlags(fss.FlagSet("middleware"))
	o.StoreOptions.AddFlags(fss.FlagSet("store"))
	o.RedisOptions.AddFlags(fss.FlagSet("redis"))
	o.LLMOptions.AddFlags(fss.FlagSet("llm"))
	o.RAGOptions.AddFlags(fss.FlagSet("rag"))
	o.RouterOptions.AddFlags(fss.FlagSet("router"))
	o.PromptsOptions.AddFlags(fss.FlagSet("prompts"))
	o.PoolOptions.AddFlags(fss.FlagSet("pool"))
	o.TracingOptions.AddFlags(fss.FlagSet("tracing"))

	// misc flags
	fs := fss.FlagSet("misc")
	fs.DurationVar(&o.ShutdownTimeout, "shutdown-timeout", o.ShutdownTimeout, "Graceful shutdown timeout")

	return fss
}

// Complete completes all the required options.
func (o *ServerOptions) Complete() error {
	steps := []struct {
		name     string
		complete func() error
	}{
		{"http", o.HTTPOptions.Complete},
		{"log", o.LogOptions.Complete},
		{"store", o.StoreOptions.Complete},
		{"redis", o.RedisOptions.Complete},
		{"llm", o.LLMOptions.Complete},
		{"rag", o.RAGOptions.Complete},
		{"router", o.RouterOptions.Complete},
		{"prompts", o.PromptsOptions.Complete},
		{"pool", o.PoolOptions.Complete},
		{"tracing", o.TracingOptions.Complete},
	}
	for _, s := range steps {
		if err := s.complete(); err != nil {
			return fmt.Errorf("%s: %w", s.name, err)
		}
	}
	return nil
}

// Validate checks whether the options in ServerOptions are valid.
func (o *ServerOptions) Validate() error {
	errs := []error{}

	errs = append(errs, o.HTTPOptions.Validate()...)
	if err := o.LogOptions.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("log: %w", err))
	}
	errs = append(errs, o.MiddlewareOptions.Validate()...)
	errs = append(errs, o.StoreOptions.Validate()...)
	errs = append(errs, o.RedisOptions.Validate()...)
	errs = append(errs, o.LLMOptions.Validate()...)
	errs = append(errs, o.RAGOptions.Validate()...)
	errs = append(errs, o.RouterOptions.Validate()...)
	errs = append(errs, o.PromptsOptions.Validate()...)
	errs = append(errs, o.PoolOptions.Validate()...)
	errs = append(errs, o.TracingOptions.Validate()...)
	if o.ShutdownTimeout <= 0 {
		errs = append(errs, fmt.Errorf("shutdown-timeout must be positive"))
	}

	return utilerrors.NewAggregate(errs)
}

// Config builds a sensei.Config based on ServerOptions.
func (o *ServerOptions) Config() (*sensei.Config, error) {
	return &sensei.Config{
		HTTPOptions:       o.HTTPOptions,
		LogOptions:        o.LogOptions,
		MiddlewareOptions: o.MiddlewareOptions,
		StoreOptions:      o.StoreOptions,
		RedisOptions:      o.RedisOptions,
		LLMOptions:        o.LLMOptions,
		RAGOptions:        o.RAGOptions,
		RouterOptions:     o.RouterOptions,
		PromptsOptions:    o.PromptsOptions,
		PoolOptions:       o.PoolOptions,
		TracingOptions:    o.TracingOptions,
		ShutdownTimeout:   o.ShutdownTimeout,
	}, nil
}
