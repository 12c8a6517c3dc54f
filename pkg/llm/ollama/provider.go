// Package ollama 提供本地 Ollama 供应商实现。
package ollama

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/kart-io/sensei/pkg/llm"
)

const ProviderName = "ollama"

func init() {
	llm.RegisterChatProvider(ProviderName, NewProvider)
}

// Config Ollama 供应商配置。
type Config struct {
	BaseURL    string        `json:"base_url" mapstructure:"base_url"`
	ChatModel  string        `json:"chat_model" mapstructure:"chat_model"`
	Timeout    time.Duration `json:"timeout" mapstructure:"timeout"`
	MaxRetries int           `json:"max_retries" mapstructure:"max_retries"`
}

// DefaultConfig 返回默认配置。
func DefaultConfig() *Config {
	return &Config{
		BaseURL:    "http://localhost:11434",
		ChatModel:  "llama3.1",
		Timeout:    120 * time.Second,
		MaxRetries: 0,
	}
}

// Provider Ollama 供应商实现。
type Provider struct {
	config *Config
	req    *llm.Requester
}

// NewProvider 从配置 map 创建 Ollama 供应商。
// chat_model 缺省时读取 OLLAMA_MODEL。
func NewProvider(configMap map[string]any) (llm.ChatProvider, error) {
	cfg := DefaultConfig()
	cfg.BaseURL = llm.ConfigString(configMap, "base_url", cfg.BaseURL)
	if v := os.Getenv("OLLAMA_MODEL"); v != "" {
		cfg.ChatModel = v
	}
	cfg.ChatModel = llm.ConfigString(configMap, "chat_model", cfg.ChatModel)
	cfg.Timeout = llm.ConfigDuration(configMap, "timeout", cfg.Timeout)
	cfg.MaxRetries = llm.ConfigInt(configMap, "max_retries", cfg.MaxRetries)
	return NewProviderWithConfig(cfg), nil
}

// NewProviderWithConfig 使用结构化配置创建 Ollama 供应商。
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
	Model    string         `json:"model"`
	Messages []chatMessage  `json:"messages"`
	Stream   bool           `json:"stream"`
	Format   string         `json:"format,omitempty"`
	Options  map[string]any `json:"options,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Model   string      `json:"model"`
	Message chatMessage `json:"message"`
	Done    bool        `json:"done"`
}

// Chat 进行多轮对话。Ollama 没有内容过滤开关，安全模式被忽略。
func (p *Provider) Chat(ctx context.Context, messages []llm.Message, opts ...llm.ChatOption) (string, error) {
	o := llm.ApplyChatOptions(opts...)

	reqBody := chatRequest{
		Model:    p.config.ChatModel,
		Messages: make([]chatMessage, len(messages)),
		Stream:   false,
	}
	for i, msg := range messages {
		reqBody.Messages[i] = chatMessage{Role: string(msg.Role), Content: msg.Content}
	}
	if o.JSON {
		reqBody.Format = "json"
	}
	if o.Temperature != nil || o.MaxTokens > 0 {
		reqBody.Options = map[string]any{}
		if o.Temperature != nil {
			reqBody.Options["temperature"] = *o.Temperature
		}
		if o.MaxTokens > 0 {
			reqBody.Options["num_predict"] = o.MaxTokens
		}
	}

	var chatResp chatResponse
	if err := p.req.PostJSON(ctx, strings.TrimRight(p.config.BaseURL, "/")+"/api/chat", nil, reqBody, &chatResp); err != nil {
		return "", err
	}
	if chatResp.Message.Content == "" {
		return "", fmt.Errorf("ollama: 未返回响应内容")
	}
	return chatResp.Message.Content, nil
}

// Generate 根据提示生成文本。
func (p *Provider) Generate(ctx context.Context, prompt string, systemPrompt string, opts ...llm.ChatOption) (string, error) {
	return p.Chat(ctx, llm.GenerateMessages(prompt, systemPrompt), opts...)
}
