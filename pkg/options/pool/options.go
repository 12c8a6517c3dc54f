// Package pool defines the worker pool options.
package pool

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"

	"github.com/kart-io/sensei/pkg/options"
)

var _ options.IOptions = (*Options)(nil)

// Options sizes the background pools.
type Options struct {
	// BackgroundCapacity is the worker count of the classification write pool.
	BackgroundCapacity int `json:"background-capacity" mapstructure:"background-capacity"`
	// TranscriptCapacity is the worker count of the session transcript pool.
	TranscriptCapacity int `json:"transcript-capacity" mapstructure:"transcript-capacity"`
	// ExpiryDuration is how long an idle worker is kept.
	ExpiryDuration time.Duration `json:"expiry-duration" mapstructure:"expiry-duration"`
	// ReleaseTimeout bounds draining the pools on shutdown.
	ReleaseTimeout time.Duration `json:"release-timeout" mapstructure:"release-timeout"`
}

// NewOptions creates the default pool options.
func NewOptions() *Options {
	return &Options{
		BackgroundCapacity: 64,
		TranscriptCapacity: 32,
		ExpiryDuration:     60 * time.Second,
		ReleaseTimeout:     10 * time.Second,
	}
}

// AddFlags adds flags for pool options to the specified FlagSet.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...) + "pool."
	fs.IntVar(&o.BackgroundCapacity, p+"background-capacity", o.BackgroundCapacity, "Workers writing model classifications.")
	fs.IntVar(&o.TranscriptCapacity, p+"transcript-capacity", o.TranscriptCapacity, "Workers appending session transcripts.")
	fs.DurationVar(&o.ExpiryDuration, p+"expiry-duration", o.ExpiryDuration, "Idle worker expiry.")
	fs.DurationVar(&o.ReleaseTimeout, p+"release-timeout", o.ReleaseTimeout, "Time allowed to drain pools on shutdown.")
}

// Validate validates the pool options.
func (o *Options) Validate() []error {
	if o == nil {
		return nil
	}
	var errs []error
	if o.BackgroundCapacity <= 0 {
		errs = append(errs, fmt.Errorf("pool.background-capacity must be positive"))
	}
	if o.TranscriptCapacity <= 0 {
		errs = append(errs, fmt.Errorf("pool.transcript-capacity must be positive"))
	}
	if o.ReleaseTimeout <= 0 {
		errs = append(errs, fmt.Errorf("pool.release-timeout must be positive"))
	}
	return errs
}

// Complete completes the pool options.
func (o *Options) Complete() error {
	if o.ExpiryDuration <= 0 {
		o.ExpiryDuration = 60 * time.Second
	}
	return nil
}
