package llm

// SafetyMode selects the content filtering level of a generation call.
type SafetyMode uint8

const (
	// SafetyStandard keeps the provider's default filters.
	SafetyStandard SafetyMode = iota
	// SafetyPermissive relaxes provider filters for security research topics.
	SafetyPermissive
)

func (m SafetyMode) String() string {
	if m == SafetyPermissive {
		return "permissive"
	}
	return "standard"
}

// ChatOptions are per-call generation settings.
type ChatOptions struct {
	SafetyMode SafetyMode
	// Temperature is used when non-nil.
	Temperature *float64
	// MaxTokens is used when positive.
	MaxTokens int
	// JSON asks the provider for a JSON object response.
	JSON bool
}

// ChatOption mutates ChatOptions.
type ChatOption func(*ChatOptions)

// WithSafetyMode sets the safety mode.
func WithSafetyMode(m SafetyMode) ChatOption {
	return func(o *ChatOptions) { o.SafetyMode = m }
}

// WithTemperature sets the sampling temperature.
func WithTemperature(t float64) ChatOption {
	return func(o *ChatOptions) { o.Temperature = &t }
}

// WithMaxTokens bounds the response length.
func WithMaxTokens(n int) ChatOption {
	return func(o *ChatOptions) { o.MaxTokens = n }
}

// WithJSON requests a JSON object response.
func WithJSON() ChatOption {
	return func(o *ChatOptions) { o.JSON = true }
}

// ApplyChatOptions folds opts into a ChatOptions value.
func ApplyChatOptions(opts ...ChatOption) ChatOptions {
	var o ChatOptions
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return o
}
