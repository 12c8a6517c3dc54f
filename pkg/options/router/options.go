// Package router defines the classification router options.
package router

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"

	"github.com/kart-io/sensei/pkg/options"
)

var _ options.IOptions = (*Options)(nil)

// Options configures query classification.
type Options struct {
	// Prompt replaces the built-in classifier system prompt when set.
	Prompt string `json:"prompt" mapstructure:"prompt"`
	// Timeout bounds one classifier call.
	Timeout time.Duration `json:"timeout" mapstructure:"timeout"`
	// FastPath enables the deterministic rules for tool-style commands.
	FastPath bool `json:"fast-path" mapstructure:"fast-path"`
	// PersistTimeout bounds the background write of a model classification.
	PersistTimeout time.Duration `json:"persist-timeout" mapstructure:"persist-timeout"`
}

// NewOptions creates the default router options.
func NewOptions() *Options {
	return &Options{
		Timeout:        30 * time.Second,
		FastPath:       true,
		PersistTimeout: 5 * time.Second,
	}
}

// AddFlags adds flags for router options to the specified FlagSet.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...) + "router."
	fs.StringVar(&o.Prompt, p+"prompt", o.Prompt, "Classifier system prompt, empty for the built-in one.")
	fs.DurationVar(&o.Timeout, p+"timeout", o.Timeout, "Timeout of one classifier call.")
	fs.BoolVar(&o.FastPath, p+"fast-path", o.FastPath, "Classify tool-style commands without calling the model.")
	fs.DurationVar(&o.PersistTimeout, p+"persist-timeout", o.PersistTimeout, "Timeout of the background write of a model classification.")
}

// Validate validates the router options.
func (o *Options) Validate() []error {
	if o == nil {
		return nil
	}
	var errs []error
	if o.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("router.timeout must be positive"))
	}
	if o.PersistTimeout <= 0 {
		errs = append(errs, fmt.Errorf("router.persist-timeout must be positive"))
	}
	return errs
}

// Complete completes the router options.
func (o *Options) Complete() error {
	return nil
}
