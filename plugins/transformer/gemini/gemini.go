// Package gemini 实现基于官方 SDK 的 Gemini 通道。
package gemini

import (
	"context"
	"fmt"
	"os"

	"google.golang.org/genai"

	"treelate/pkg/contract"
)

// Options: 通道配置（JSON）。APIKeyEnv 优先于 APIKey。
type Options struct {
	Model       string   `json:"model"`
	APIKey      string   `json:"api_key"`
	APIKeyEnv   string   `json:"api_key_env"`
	Temperature *float64 `json:"temperature"`
}

// Client 包装官方 SDK；可被多 goroutine 并发使用。
type Client struct {
	client *genai.Client
	model  string
	temp   *float64
}

// New 创建通道。SDK 客户端构造一次复用。
func New(ctx context.Context, opts *Options) (*Client, error) {
	if opts == nil {
		return nil, fmt.Errorf("gemini: %w: missing options", contract.ErrInvalidInput)
	}
	if opts.Model == "" {
		return nil, fmt.Errorf("gemini: %w: model is required", contract.ErrInvalidInput)
	}
	key := opts.APIKey
	if opts.APIKeyEnv != "" {
		key = os.Getenv(opts.APIKeyEnv)
	}
	if key == "" {
		return nil, fmt.Errorf("gemini: %w: no api key (set api_key_env or api_key)", contract.ErrInvalidInput)
	}
	c, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey: key,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}
	return &Client{client: c, model: opts.Model, temp: opts.Temperature}, nil
}

// Invoke 发送一次生成请求并返回拼接文本。
// 配额/限流失败映射到 ErrRateLimited，供上层重试策略识别。
func (c *Client) Invoke(ctx context.Context, p contract.Prompt) (contract.Raw, error) {
	sys, user, err := flatten(p)
	if err != nil {
		return contract.Raw{}, err
	}

	cfg := &genai.GenerateContentConfig{}
	if sys != "" {
		cfg.SystemInstruction = genai.NewContentFromText(sys, genai.RoleUser)
	}
	if c.temp != nil {
		cfg.Temperature = genai.Ptr(float32(*c.temp))
	}

	contents := []*genai.Content{
		genai.NewContentFromText(user, genai.RoleUser),
	}
	result, err := c.client.Models.GenerateContent(ctx, c.model, contents, cfg)
	if err != nil {
		if contract.LooksLikeQuota(err.Error()) {
			return contract.Raw{}, fmt.Errorf("gemini: %w: %v", contract.ErrRateLimited, err)
		}
		return contract.Raw{}, fmt.Errorf("gemini: generate: %w", err)
	}
	text := result.Text()
	if text == "" {
		return contract.Raw{}, fmt.Errorf("gemini: %w: empty candidates", contract.ErrResponseInvalid)
	}
	return contract.Raw{Text: text}, nil
}

// flatten 将 Prompt 投影为 system 指令与单条 user 文本。
func flatten(p contract.Prompt) (sys, user string, err error) {
	switch v := p.(type) {
	case contract.ChatPrompt:
		for _, m := range v {
			switch m.Role {
			case "system":
				sys = m.Content
			default:
				if user != "" {
					user += "\n\n"
				}
				user += m.Content
			}
		}
		if user == "" {
			return "", "", fmt.Errorf("gemini: %w: empty prompt", contract.ErrInvalidInput)
		}
		return sys, user, nil
	case contract.TextPrompt:
		return "", string(v), nil
	case string:
		return "", v, nil
	default:
		return "", "", fmt.Errorf("gemini: %w: unsupported prompt type %T", contract.ErrInvalidInput, p)
	}
}

var _ contract.Transformer = (*Client)(nil)
