// Package http provides HTTP server configuration options.
package http

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"github.com/kart-io/sensei/pkg/options"
)

var _ options.IOptions = (*Options)(nil)

// UnixScheme 前缀表示监听 Unix 域套接字。
const UnixScheme = "unix://"

// Options contains HTTP server configuration.
type Options struct {
	// Addr is the address to listen on: host:port or unix:///path/to.sock.
	Addr string `json:"addr" mapstructure:"addr"`
	// ReadTimeout is the maximum duration for reading the entire request.
	ReadTimeout time.Duration `json:"read-timeout" mapstructure:"read-timeout"`
	// WriteTimeout is the maximum duration before timing out writes of the response.
	WriteTimeout time.Duration `json:"write-timeout" mapstructure:"write-timeout"`
	// IdleTimeout is the maximum amount of time to wait for the next request.
	IdleTimeout time.Duration `json:"idle-timeout" mapstructure:"idle-timeout"`
	// SocketMode is the file mode applied to a unix socket after bind.
	SocketMode uint32 `json:"socket-mode" mapstructure:"socket-mode"`
}

// Option is a function that configures Options.
type Option func(*Options)

// NewOptions creates a new Options with default values.
func NewOptions() *Options {
	return &Options{
		Addr:         "0.0.0.0:3000",
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
		SocketMode:   0o700,
	}
}

// AddFlags adds flags for HTTP options to the specified FlagSet.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.StringVar(&o.Addr, options.Join(prefixes...)+"http.addr", o.Addr, "Listen address, host:port for TCP or unix:///path for a Unix socket.")
	fs.DurationVar(&o.ReadTimeout, options.Join(prefixes...)+"http.read-timeout", o.ReadTimeout, "Timeout for reading the entire request.")
	fs.DurationVar(&o.WriteTimeout, options.Join(prefixes...)+"http.write-timeout", o.WriteTimeout, "Timeout before timing out writes of the response.")
	fs.DurationVar(&o.IdleTimeout, options.Join(prefixes...)+"http.idle-timeout", o.IdleTimeout, "Maximum amount of time to wait for the next request.")
	fs.Uint32Var(&o.SocketMode, options.Join(prefixes...)+"http.socket-mode", o.SocketMode, "File mode of the Unix socket.")
}

// Validate validates the HTTP options.
func (o *Options) Validate() []error {
	if o == nil {
		return nil
	}

	var errs []error

	if o.Addr == "" {
		errs = append(errs, fmt.Errorf("http.addr cannot be empty"))
	}
	if o.IsUnix() && o.SocketPath() == "" {
		errs = append(errs, fmt.Errorf("http.addr %q has an empty socket path", o.Addr))
	}
	if o.ReadTimeout <= 0 {
		errs = append(errs, fmt.Errorf("http.read-timeout must be positive"))
	}
	if o.WriteTimeout <= 0 {
		errs = append(errs, fmt.Errorf("http.write-timeout must be positive"))
	}

	return errs
}

// Complete fills Addr from SENSEI_LISTEN_ADDR when it was left at its default.
func (o *Options) Complete() error {
	if v := os.Getenv("SENSEI_LISTEN_ADDR"); v != "" && o.Addr == NewOptions().Addr {
		o.Addr = v
	}
	o.Addr = strings.TrimSpace(o.Addr)
	if o.SocketMode == 0 {
		o.SocketMode = 0o700
	}
	return nil
}

// IsUnix reports whether Addr names a Unix socket.
func (o *Options) IsUnix() bool {
	return strings.HasPrefix(o.Addr, UnixScheme)
}

// SocketPath returns the filesystem path of a unix:// address.
// unix:///run/s.sock and unix://run/s.sock map to /run/s.sock and run/s.sock.
func (o *Options) SocketPath() string {
	if !o.IsUnix() {
		return ""
	}
	return strings.TrimPrefix(o.Addr, UnixScheme)
}

// WithAddr sets the listen address.
func WithAddr(addr string) Option {
	return func(o *Options) {
		o.Addr = addr
	}
}

// WithReadTimeout sets the read timeout.
func WithReadTimeout(d time.Duration) Option {
	return func(o *Options) {
		o.ReadTimeout = d
	}
}

// WithWriteTimeout sets the write timeout.
func WithWriteTimeout(d time.Duration) Option {
	return func(o *Options) {
		o.WriteTimeout = d
	}
}

// ApplyOptions applies the given options to the Options.
func (o *Options) ApplyOptions(opts ...Option) {
	for _, opt := range opts {
		opt(o)
	}
}
