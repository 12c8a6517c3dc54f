// Package llm provides LLM provider configuration options.
package llm

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/pflag"

	"github.com/kart-io/sensei/pkg/options"
)

var (
	_ options.IOptions = (*ProviderOptions)(nil)
	_ options.IOptions = (*Options)(nil)
)

// ProviderOptions 定义 LLM 供应商配置。
type ProviderOptions struct {
	// Provider 供应商名称（gemini, genai, ollama, openai, deepseek, siliconflow）。
	Provider string `json:"provider" mapstructure:"provider"`

	// BaseURL API 基础地址，留空使用供应商默认值。
	BaseURL string `json:"base-url" mapstructure:"base-url"`

	// APIKey API 密钥。gemini/genai 留空时读取 GEMINI_API_KEY。
	APIKey string `json:"-" mapstructure:"api-key"`

	// Model 使用的模型名称。
	Model string `json:"model" mapstructure:"model"`

	// Timeout 请求超时时间。
	Timeout time.Duration `json:"timeout" mapstructure:"timeout"`

	// MaxRetries 传输层重试次数，默认 0。
	MaxRetries int `json:"max-retries" mapstructure:"max-retries"`

	// MaxOutputTokens 最大输出长度，0 表示供应商默认。
	MaxOutputTokens int `json:"max-output-tokens" mapstructure:"max-output-tokens"`
}

// NewProviderOptions 创建默认供应商配置。
func NewProviderOptions(provider, model string) *ProviderOptions {
	return &ProviderOptions{
		Provider: provider,
		Model:    model,
		Timeout:  120 * time.Second,
	}
}

// Enabled reports whether a provider is configured.
func (o *ProviderOptions) Enabled() bool {
	return o != nil && o.Provider != "" && o.Model != ""
}

// ToConfigMap 转换为配置 map，用于供应商工厂。空值不写入，由供应商取默认。
func (o *ProviderOptions) ToConfigMap() map[string]any {
	m := map[string]any{
		"chat_model":  o.Model,
		"timeout":     o.Timeout,
		"max_retries": o.MaxRetries,
	}
	if o.BaseURL != "" {
		m["base_url"] = o.BaseURL
	}
	if o.APIKey != "" {
		m["api_key"] = o.APIKey
	}
	if o.MaxOutputTokens > 0 {
		m["max_output_tokens"] = o.MaxOutputTokens
	}
	return m
}

// AddFlags adds flags for LLM provider options to the specified FlagSet.
func (o *ProviderOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...)
	fs.StringVar(&o.Provider, p+"provider", o.Provider, "LLM provider (gemini, genai, ollama, openai, deepseek, siliconflow).")
	fs.StringVar(&o.BaseURL, p+"base-url", o.BaseURL, "LLM API base URL, empty for the provider default.")
	fs.StringVar(&o.APIKey, p+"api-key", o.APIKey, "LLM API key.")
	fs.StringVar(&o.Model, p+"model", o.Model, "LLM model name.")
	fs.DurationVar(&o.Timeout, p+"timeout", o.Timeout, "LLM request timeout.")
	fs.IntVar(&o.MaxRetries, p+"max-retries", o.MaxRetries, "Transport level retries on 429/5xx.")
	fs.IntVar(&o.MaxOutputTokens, p+"max-output-tokens", o.MaxOutputTokens, "Maximum output tokens, 0 for the provider default.")
}

// Validate validates the LLM provider options.
func (o *ProviderOptions) Validate() []error {
	if o == nil {
		return nil
	}

	var errs []error
	if o.Provider == "" {
		errs = append(errs, fmt.Errorf("provider is required"))
	}
	if o.Model == "" {
		errs = append(errs, fmt.Errorf("model is required"))
	}
	// OpenAI 供应商需要 API key
	if o.Provider == "openai" && o.APIKey == "" {
		errs = append(errs, fmt.Errorf("api-key is required for openai provider"))
	}
	if o.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("timeout must be positive"))
	}
	if o.MaxRetries < 0 {
		errs = append(errs, fmt.Errorf("max-retries must not be negative"))
	}
	return errs
}

// Complete completes the LLM provider options with defaults.
func (o *ProviderOptions) Complete() error {
	if o.Timeout <= 0 {
		o.Timeout = 120 * time.Second
	}
	return nil
}

// Options groups the classifier and answer tiers. Each tier is the primary
// provider followed by the optional secondary on failure.
type Options struct {
	// Router 分类器使用的快速模型。
	Router *ProviderOptions `json:"router" mapstructure:"router"`
	// Chat 回答生成使用的模型。
	Chat *ProviderOptions `json:"chat" mapstructure:"chat"`
	// Secondary 备用供应商，两个层级共用；模型为空时不启用。
	Secondary *ProviderOptions `json:"secondary" mapstructure:"secondary"`

	// RateLimit 每秒请求数，0 表示不限制。
	RateLimit float64 `json:"rate-limit" mapstructure:"rate-limit"`
	// Burst 令牌桶容量。
	Burst int `json:"burst" mapstructure:"burst"`
	// BreakerThreshold 连续失败多少次后熔断。
	BreakerThreshold int `json:"breaker-threshold" mapstructure:"breaker-threshold"`
	// BreakerTimeout 熔断后多久进入半开状态。
	BreakerTimeout time.Duration `json:"breaker-timeout" mapstructure:"breaker-timeout"`
}

// NewOptions returns the default tiers: gemini flash for routing, gemini
// pro for answers, ollama as secondary when OLLAMA_MODEL is set.
func NewOptions() *Options {
	return &Options{
		Router:           NewProviderOptions("gemini", "gemini-2.5-flash"),
		Chat:             NewProviderOptions("gemini", "gemini-3-pro-preview"),
		Secondary:        NewProviderOptions("ollama", ""),
		RateLimit:        0,
		Burst:            1,
		BreakerThreshold: 5,
		BreakerTimeout:   30 * time.Second,
	}
}

// AddFlags adds flags for the LLM tiers.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...) + "llm."
	o.Router.AddFlags(fs, p+"router")
	o.Chat.AddFlags(fs, p+"chat")
	o.Secondary.AddFlags(fs, p+"secondary")
	fs.Float64Var(&o.RateLimit, p+"rate-limit", o.RateLimit, "Requests per second per tier, 0 disables limiting.")
	fs.IntVar(&o.Burst, p+"burst", o.Burst, "Rate limiter burst size.")
	fs.IntVar(&o.BreakerThreshold, p+"breaker-threshold", o.BreakerThreshold, "Consecutive failures that open the circuit breaker.")
	fs.DurationVar(&o.BreakerTimeout, p+"breaker-timeout", o.BreakerTimeout, "Time the breaker stays open before probing.")
}

// Complete fills the secondary model from OLLAMA_MODEL when unset.
func (o *Options) Complete() error {
	if v := os.Getenv("OLLAMA_MODEL"); v != "" && o.Secondary.Model == "" {
		o.Secondary.Model = v
		if o.Secondary.Provider == "" {
			o.Secondary.Provider = "ollama"
		}
	}
	for _, p := range []*ProviderOptions{o.Router, o.Chat, o.Secondary} {
		if err := p.Complete(); err != nil {
			return err
		}
	}
	if o.Burst <= 0 {
		o.Burst = 1
	}
	return nil
}

// Validate validates the LLM tiers.
func (o *Options) Validate() []error {
	if o == nil {
		return nil
	}
	var errs []error
	for _, e := range o.Router.Validate() {
		errs = append(errs, fmt.Errorf("llm.router: %w", e))
	}
	for _, e := range o.Chat.Validate() {
		errs = append(errs, fmt.Errorf("llm.chat: %w", e))
	}
	if o.Secondary.Enabled() {
		for _, e := range o.Secondary.Validate() {
			errs = append(errs, fmt.Errorf("llm.secondary: %w", e))
		}
	}
	if o.RateLimit < 0 {
		errs = append(errs, fmt.Errorf("llm.rate-limit must not be negative"))
	}
	if o.BreakerThreshold <= 0 {
		errs = append(errs, fmt.Errorf("llm.breaker-threshold must be positive"))
	}
	if o.BreakerTimeout <= 0 {
		errs = append(errs, fmt.Errorf("llm.breaker-timeout must be positive"))
	}
	return errs
}
