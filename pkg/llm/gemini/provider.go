// Package gemini 提供 Google Gemini REST 供应商实现。
package gemini

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/kart-io/sensei/pkg/llm"
)

const ProviderName = "gemini"

func init() {
	llm.RegisterChatProvider(ProviderName, NewProvider)
}

// HarmCategories are relaxed in permissive mode.
var HarmCategories = []string{
	"HARM_CATEGORY_HARASSMENT",
	"HARM_CATEGORY_HATE_SPEECH",
	"HARM_CATEGORY_SEXUALLY_EXPLICIT",
	"HARM_CATEGORY_DANGEROUS_CONTENT",
}

// Config Gemini 供应商配置。
type Config struct {
	// BaseURL API 基础地址。
	BaseURL string `json:"base_url" mapstructure:"base_url"`

	// APIKey Google AI API 密钥。
	APIKey string `json:"-" mapstructure:"api_key"`

	// ChatModel 用于对话的模型。
	ChatModel string `json:"chat_model" mapstructure:"chat_model"`

	// Timeout 请求超时时间。
	Timeout time.Duration `json:"timeout" mapstructure:"timeout"`

	// MaxRetries 传输层最大重试次数。
	MaxRetries int `json:"max_retries" mapstructure:"max_retries"`

	// Temperature 默认采样温度。
	Temperature float64 `json:"temperature" mapstructure:"temperature"`

	// MaxOutputTokens 默认最大输出长度。
	MaxOutputTokens int `json:"max_output_tokens" mapstructure:"max_output_tokens"`
}

// DefaultConfig 返回默认配置。
func DefaultConfig() *Config {
	return &Config{
		BaseURL:         "https://generativelanguage.googleapis.com/v1beta",
		ChatModel:       "gemini-2.0-flash",
		Timeout:         120 * time.Second,
		MaxRetries:      0,
		Temperature:     0.7,
		MaxOutputTokens: 2048,
	}
}

// Provider Gemini 供应商实现。
type Provider struct {
	config *Config
	req    *llm.Requester
}

// NewProvider 从配置 map 创建 Gemini 供应商。
// api_key 缺省时读取 GEMINI_API_KEY。
func NewProvider(configMap map[string]any) (llm.ChatProvider, error) {
	cfg := DefaultConfig()
	cfg.BaseURL = llm.ConfigString(configMap, "base_url", cfg.BaseURL)
	cfg.APIKey = llm.ConfigString(configMap, "api_key", os.Getenv("GEMINI_API_KEY"))
	cfg.ChatModel = llm.ConfigString(configMap, "chat_model", cfg.ChatModel)
	cfg.Timeout = llm.ConfigDuration(configMap, "timeout", cfg.Timeout)
	cfg.MaxRetries = llm.ConfigInt(configMap, "max_retries", cfg.MaxRetries)
	cfg.MaxOutputTokens = llm.ConfigInt(configMap, "max_output_tokens", cfg.MaxOutputTokens)
	if v, ok := configMap["temperature"].(float64); ok {
		cfg.Temperature = v
	}

	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini: api_key 是必需的")
	}
	return NewProviderWithConfig(cfg), nil
}

// NewProviderWithConfig 使用结构化配置创建 Gemini 供应商。
func NewProviderWithConfig(cfg *Config) *Provider {
	return &Provider{
		config: cfg,
		req:    llm.NewRequester(ProviderName, cfg.Timeout, cfg.MaxRetries),
	}
}

// Name 返回供应商名称。
func (p *Provider) Name() string {
	return ProviderName
}

type chatRequest struct {
	Contents          []chatContent     `json:"contents"`
	SystemInstruction *chatContent      `json:"systemInstruction,omitempty"`
	GenerationConfig  *generationConfig `json:"generationConfig,omitempty"`
	SafetySettings    []SafetySetting   `json:"safetySettings,omitempty"`
}

type chatContent struct {
	Role  string     `json:"role,omitempty"`
	Parts []chatPart `json:"parts"`
}

type chatPart struct {
	Text string `json:"text"`
}

type generationConfig struct {
	Temperature      float64 `json:"temperature"`
	MaxOutputTokens  int     `json:"maxOutputTokens,omitempty"`
	ResponseMimeType string  `json:"responseMimeType,omitempty"`
}

// SafetySetting is one entry of the request safetySettings list.
type SafetySetting struct {
	Category  string `json:"category"`
	Threshold string `json:"threshold"`
}

type chatResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback"`
}

// SafetySettings returns the request safety settings for mode.
// Standard mode sends none and keeps the provider defaults.
func SafetySettings(mode llm.SafetyMode) []SafetySetting {
	if mode != llm.SafetyPermissive {
		return nil
	}
	out := make([]SafetySetting, len(HarmCategories))
	for i, c := range HarmCategories {
		out[i] = SafetySetting{Category: c, Threshold: "BLOCK_NONE"}
	}
	return out
}

// Chat 进行多轮对话。
func (p *Provider) Chat(ctx context.Context, messages []llm.Message, opts ...llm.ChatOption) (string, error) {
	o := llm.ApplyChatOptions(opts...)

	reqBody := chatRequest{
		GenerationConfig: &generationConfig{
			Temperature:     p.config.Temperature,
			MaxOutputTokens: p.config.MaxOutputTokens,
		},
		SafetySettings: SafetySettings(o.SafetyMode),
	}
	if o.Temperature != nil {
		reqBody.GenerationConfig.Temperature = *o.Temperature
	}
	if o.MaxTokens > 0 {
		reqBody.GenerationConfig.MaxOutputTokens = o.MaxTokens
	}
	if o.JSON {
		reqBody.GenerationConfig.ResponseMimeType = "application/json"
	}

	for _, msg := range messages {
		switch msg.Role {
		case llm.RoleSystem:
			reqBody.SystemInstruction = &chatContent{Parts: []chatPart{{Text: msg.Content}}}
		case llm.RoleUser:
			reqBody.Contents = append(reqBody.Contents, chatContent{Role: "user", Parts: []chatPart{{Text: msg.Content}}})
		case llm.RoleAssistant:
			reqBody.Contents = append(reqBody.Contents, chatContent{Role: "model", Parts: []chatPart{{Text: msg.Content}}})
		}
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent", strings.TrimRight(p.config.BaseURL, "/"), url.PathEscape(p.config.ChatModel))
	header := http.Header{"X-Goog-Api-Key": []string{p.config.APIKey}}

	var chatResp chatResponse
	if err := p.req.PostJSON(ctx, endpoint, header, reqBody, &chatResp); err != nil {
		return "", err
	}

	if len(chatResp.Candidates) == 0 {
		if r := chatResp.PromptFeedback.BlockReason; r != "" {
			return "", fmt.Errorf("gemini: prompt blocked: %s", r)
		}
		return "", fmt.Errorf("gemini: 未返回响应内容")
	}

	var sb strings.Builder
	for _, part := range chatResp.Candidates[0].Content.Parts {
		sb.WriteString(part.Text)
	}
	if sb.Len() == 0 {
		return "", fmt.Errorf("gemini: 未返回响应内容 (finishReason=%s)", chatResp.Candidates[0].FinishReason)
	}
	return sb.String(), nil
}

// Generate 根据提示生成文本。
func (p *Provider) Generate(ctx context.Context, prompt string, systemPrompt string, opts ...llm.ChatOption) (string, error) {
	return p.Chat(ctx, llm.GenerateMessages(prompt, systemPrompt), opts...)
}
