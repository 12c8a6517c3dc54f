// Package middleware defines the configuration of the HTTP middleware chain.
package middleware

import (
	"time"

	"github.com/spf13/pflag"

	"github.com/kart-io/sensei/pkg/options"
)

// LoggerOptions defines logger middleware options.
type LoggerOptions struct {
	SkipPaths []string `json:"skip-paths" mapstructure:"skip-paths"`
}

// NewLoggerOptions creates default logger middleware options.
func NewLoggerOptions() *LoggerOptions {
	return &LoggerOptions{
		SkipPaths: []string{"/health"},
	}
}

// AddFlags adds flags for logger options to the specified FlagSet.
func (o *LoggerOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.StringSliceVar(&o.SkipPaths, options.Join(prefixes...)+"middleware.logger.skip-paths", o.SkipPaths, "Paths to skip access logging.")
}

// RecoveryOptions defines recovery middleware options.
type RecoveryOptions struct {
	EnableStackTrace bool `json:"enable-stack-trace" mapstructure:"enable-stack-trace"`
}

// NewRecoveryOptions creates default recovery options.
func NewRecoveryOptions() *RecoveryOptions {
	return &RecoveryOptions{}
}

// AddFlags adds flags for recovery options to the specified FlagSet.
func (o *RecoveryOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.BoolVar(&o.EnableStackTrace, options.Join(prefixes...)+"middleware.recovery.enable-stack-trace", o.EnableStackTrace,
		"Return stack traces in panic responses (ignored when APP_ENV=production).")
}

// TracingOptions defines tracing middleware options.
type TracingOptions struct {
	SkipPaths []string `json:"skip-paths" mapstructure:"skip-paths"`
}

// NewTracingOptions creates default tracing middleware options.
func NewTracingOptions() *TracingOptions {
	return &TracingOptions{SkipPaths: []string{"/health"}}
}

// AddFlags adds flags for tracing middleware options to the specified FlagSet.
func (o *TracingOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.StringSliceVar(&o.SkipPaths, options.Join(prefixes...)+"middleware.tracing.skip-paths", o.SkipPaths, "Paths excluded from request spans.")
}

// TimeoutOptions bounds handler execution.
type TimeoutOptions struct {
	Duration time.Duration `json:"duration" mapstructure:"duration"`
}

// NewTimeoutOptions creates default timeout options.
// The bound sits above the generation timeout so that one surfaces first.
func NewTimeoutOptions() *TimeoutOptions {
	return &TimeoutOptions{Duration: 90 * time.Second}
}

// AddFlags adds flags for timeout options to the specified FlagSet.
func (o *TimeoutOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.DurationVar(&o.Duration, options.Join(prefixes...)+"middleware.timeout.duration", o.Duration, "Per-request context deadline. 0 disables it.")
}

// Options aggregates all middleware options.
type Options struct {
	Logger   *LoggerOptions   `json:"logger" mapstructure:"logger"`
	Recovery *RecoveryOptions `json:"recovery" mapstructure:"recovery"`
	Tracing  *TracingOptions  `json:"tracing" mapstructure:"tracing"`
	Timeout  *TimeoutOptions  `json:"timeout" mapstructure:"timeout"`
}

// NewOptions creates default middleware options.
func NewOptions() *Options {
	return &Options{
		Logger:   NewLoggerOptions(),
		Recovery: NewRecoveryOptions(),
		Tracing:  NewTracingOptions(),
		Timeout:  NewTimeoutOptions(),
	}
}

// AddFlags adds flags for all middleware options.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	o.Logger.AddFlags(fs, prefixes...)
	o.Recovery.AddFlags(fs, prefixes...)
	o.Tracing.AddFlags(fs, prefixes...)
	o.Timeout.AddFlags(fs, prefixes...)
}

// Validate validates the middleware options.
func (o *Options) Validate() []error {
	return nil
}
