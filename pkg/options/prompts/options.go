// Package prompts defines where persona prompt overrides are read from.
package prompts

import (
	"os"

	"github.com/spf13/pflag"

	"github.com/kart-io/sensei/pkg/options"
)

var _ options.IOptions = (*Options)(nil)

const defaultPath = "prompts.yaml"

// Options configures the prompts file.
type Options struct {
	// Path of the YAML file with agents.<persona>.prompt overrides.
	Path string `json:"path" mapstructure:"path"`
	// Watch reloads the file when it changes.
	Watch bool `json:"watch" mapstructure:"watch"`
}

// NewOptions creates the default prompts options.
func NewOptions() *Options {
	return &Options{
		Path:  defaultPath,
		Watch: true,
	}
}

// AddFlags adds flags for prompts options to the specified FlagSet.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...) + "prompts."
	fs.StringVar(&o.Path, p+"path", o.Path, "Prompts file (env SENSEI_PROMPTS_PATH). A missing file means built-in prompts.")
	fs.BoolVar(&o.Watch, p+"watch", o.Watch, "Reload the prompts file on change.")
}

// Complete fills Path from SENSEI_PROMPTS_PATH when it was left at its default.
func (o *Options) Complete() error {
	if v := os.Getenv("SENSEI_PROMPTS_PATH"); v != "" && o.Path == defaultPath {
		o.Path = v
	}
	return nil
}

// Validate validates the prompts options. An empty path disables the file.
func (o *Options) Validate() []error {
	return nil
}
