// Package openai 提供 OpenAI 兼容的 Chat Completions 供应商实现。
// deepseek 与 siliconflow 使用同一协议，仅默认地址和模型不同。
package openai

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/kart-io/sensei/pkg/llm"
)

// Provider names registered by this package.
const (
	ProviderName            = "openai"
	DeepSeekProviderName    = "deepseek"
	SiliconFlowProviderName = "siliconflow"
)

func init() {
	llm.RegisterChatProvider(ProviderName, factory(ProviderName, "https://api.openai.com/v1", "gpt-4o-mini"))
	llm.RegisterChatProvider(DeepSeekProviderName, factory(DeepSeekProviderName, "https://api.deepseek.com", "deepseek-chat"))
	llm.RegisterChatProvider(SiliconFlowProviderName, factory(SiliconFlowProviderName, "https://api.siliconflow.cn/v1", "Qwen/Qwen2.5-7B-Instruct"))
}

// Config OpenAI 兼容供应商配置。
type Config struct {
	Name       string        `json:"name" mapstructure:"name"`
	BaseURL    string        `json:"base_url" mapstructure:"base_url"`
	APIKey     string        `json:"-" mapstructure:"api_key"`
	ChatModel  string        `json:"chat_model" mapstructure:"chat_model"`
	Timeout    time.Duration `json:"timeout" mapstructure:"timeout"`
	MaxRetries int           `json:"max_retries" mapstructure:"max_retries"`
}

func factory(name, baseURL, model string) llm.ChatProviderFactory {
	return func(configMap map[string]any) (llm.ChatProvider, error) {
		cfg := &Config{
			Name:       name,
			BaseURL:    llm.ConfigString(configMap, "base_url", baseURL),
			APIKey:     llm.ConfigString(configMap, "api_key", ""),
			ChatModel:  llm.ConfigString(configMap, "chat_model", model),
			Timeout:    llm.ConfigDuration(configMap, "timeout", 120*time.Second),
			MaxRetries: llm.ConfigInt(configMap, "max_retries", 0),
		}
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("%s: api_key 是必需的", name)
		}
		return NewProviderWithConfig(cfg), nil
	}
}

// Provider OpenAI 兼容供应商实现。
type Provider struct {
	config *Config
	req    *llm.Requester
}

// NewProviderWithConfig 使用结构化配置创建供应商。
func NewProviderWithConfig(cfg *Config) *Provider {
	if cfg.Name == "" {
		cfg.Name = ProviderName
	}
	return &Provider{
		config: cfg,
		req:    llm.NewRequester(cfg.Name, cfg.Timeout, cfg.MaxRetries),
	}
}

// Name 返回供应商名称。
func (p *Provider) Name() string {
	return p.config.Name
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []llm.Message   `json:"messages"`
	Temperature    *float64        `json:"temperature,omitempty"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

// Chat 进行多轮对话。该协议没有安全等级参数，安全模式被忽略。
func (p *Provider) Chat(ctx context.Context, messages []llm.Message, opts ...llm.ChatOption) (string, error) {
	o := llm.ApplyChatOptions(opts...)

	reqBody := chatRequest{
		Model:       p.config.ChatModel,
		Messages:    messages,
		Temperature: o.Temperature,
		MaxTokens:   o.MaxTokens,
	}
	if o.JSON {
		reqBody.ResponseFormat = &responseFormat{Type: "json_object"}
	}

	header := http.Header{"Authorization": []string{"Bearer " + p.config.APIKey}}
	var chatResp chatResponse
	if err := p.req.PostJSON(ctx, strings.TrimRight(p.config.BaseURL, "/")+"/chat/completions", header, reqBody, &chatResp); err != nil {
		return "", err
	}
	if len(chatResp.Choices) == 0 || chatResp.Choices[0].Message.Content == "" {
		return "", fmt.Errorf("%s: 未返回响应内容", p.config.Name)
	}
	return chatResp.Choices[0].Message.Content, nil
}

// Generate 根据提示生成文本。
func (p *Provider) Generate(ctx context.Context, prompt string, systemPrompt string, opts ...llm.ChatOption) (string, error) {
	return p.Chat(ctx, llm.GenerateMessages(prompt, systemPrompt), opts...)
}
