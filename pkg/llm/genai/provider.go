// Package genai 提供基于 Google Gen AI Go SDK 的 Gemini 供应商实现。
package genai

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"google.golang.org/genai"

	"github.com/kart-io/sensei/pkg/llm"
)

const ProviderName = "genai"

func init() {
	llm.RegisterChatProvider(ProviderName, NewProvider)
}

// harmCategories are relaxed in permissive mode.
var harmCategories = []genai.HarmCategory{
	genai.HarmCategoryHarassment,
	genai.HarmCategoryHateSpeech,
	genai.HarmCategorySexuallyExplicit,
	genai.HarmCategoryDangerousContent,
}

// Config genai 供应商配置。
type Config struct {
	APIKey    string        `json:"-" mapstructure:"api_key"`
	BaseURL   string        `json:"base_url" mapstructure:"base_url"`
	ChatModel string        `json:"chat_model" mapstructure:"chat_model"`
	Timeout   time.Duration `json:"timeout" mapstructure:"timeout"`
}

// Provider genai 供应商实现。
type Provider struct {
	config *Config
	client *genai.Client
}

// NewProvider 从配置 map 创建 genai 供应商。
// api_key 缺省时读取 GEMINI_API_KEY。
func NewProvider(configMap map[string]any) (llm.ChatProvider, error) {
	cfg := &Config{
		APIKey:    llm.ConfigString(configMap, "api_key", os.Getenv("GEMINI_API_KEY")),
		BaseURL:   llm.ConfigString(configMap, "base_url", ""),
		ChatModel: llm.ConfigString(configMap, "chat_model", "gemini-2.0-flash"),
		Timeout:   llm.ConfigDuration(configMap, "timeout", 120*time.Second),
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("genai: api_key 是必需的")
	}
	return NewProviderWithConfig(context.Background(), cfg)
}

// NewProviderWithConfig 使用结构化配置创建 genai 供应商。
func NewProviderWithConfig(ctx context.Context, cfg *Config) (*Provider, error) {
	cc := &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: &http.Client{Timeout: cfg.Timeout},
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("genai: 创建客户端失败: %w", err)
	}
	return &Provider{config: cfg, client: client}, nil
}

// Name 返回供应商名称。
func (p *Provider) Name() string {
	return ProviderName
}

// GenerateConfig builds the SDK request config from messages and options.
func GenerateConfig(messages []llm.Message, o llm.ChatOptions) ([]*genai.Content, *genai.GenerateContentConfig) {
	cfg := &genai.GenerateContentConfig{}
	var contents []*genai.Content

	for _, msg := range messages {
		switch msg.Role {
		case llm.RoleSystem:
			cfg.SystemInstruction = genai.NewContentFromText(msg.Content, genai.RoleUser)
		case llm.RoleUser:
			contents = append(contents, genai.NewContentFromText(msg.Content, genai.RoleUser))
		case llm.RoleAssistant:
			contents = append(contents, genai.NewContentFromText(msg.Content, genai.RoleModel))
		}
	}

	if o.Temperature != nil {
		t := float32(*o.Temperature)
		cfg.Temperature = &t
	}
	if o.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(o.MaxTokens)
	}
	if o.JSON {
		cfg.ResponseMIMEType = "application/json"
	}
	if o.SafetyMode == llm.SafetyPermissive {
		for _, c := range harmCategories {
			cfg.SafetySettings = append(cfg.SafetySettings, &genai.SafetySetting{
				Category:  c,
				Threshold: genai.HarmBlockThresholdBlockNone,
			})
		}
	}
	return contents, cfg
}

// Chat 进行多轮对话。
func (p *Provider) Chat(ctx context.Context, messages []llm.Message, opts ...llm.ChatOption) (string, error) {
	contents, cfg := GenerateConfig(messages, llm.ApplyChatOptions(opts...))

	resp, err := p.client.Models.GenerateContent(ctx, p.config.ChatModel, contents, cfg)
	if err != nil {
		return "", fmt.Errorf("genai: 请求失败: %w", err)
	}
	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("genai: 未返回响应内容")
	}
	return text, nil
}

// Generate 根据提示生成文本。
func (p *Provider) Generate(ctx context.Context, prompt string, systemPrompt string, opts ...llm.ChatOption) (string, error) {
	return p.Chat(ctx, llm.GenerateMessages(prompt, systemPrompt), opts...)
}
