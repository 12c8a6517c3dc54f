package app

import cliflag "k8s.io/component-base/cli/flag"

// CliOptions is implemented by the options struct of a command. Flags are
// grouped into named sets so --help can print them by section.
type CliOptions interface {
	Flags() cliflag.NamedFlagSets
	Complete() error
	Validate() error
}
