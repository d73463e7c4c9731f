// Package openai 实现 OpenAI 兼容 Chat Completions 通道。
// 仅做最小职责：组包 → 发送 → 抽取首个 choice 文本；
// 重试、恢复与超时策略全部由上层承担。
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"treelate/pkg/contract"
)

// Options: 通道配置（JSON）。
// APIKeyEnv 优先于 APIKey；DisableDefaultAuth 时不携带 Authorization 头
// （配合 ExtraHeaders 对接非标准网关）。
type Options struct {
	BaseURL            string            `json:"base_url"`
	EndpointPath       string            `json:"endpoint_path"`
	Model              string            `json:"model"`
	APIKey             string            `json:"api_key"`
	APIKeyEnv          string            `json:"api_key_env"`
	TimeoutSeconds     int               `json:"timeout_seconds"`
	Temperature        *float64          `json:"temperature"`
	MaxTokens          int               `json:"max_tokens"`
	DisableDefaultAuth bool              `json:"disable_default_auth"`
	ExtraHeaders       map[string]string `json:"extra_headers"`
}

// Client 是无状态的 HTTP 通道；可被多 goroutine 并发使用。
type Client struct {
	url     string
	model   string
	key     string
	temp    *float64
	maxTok  int
	noAuth  bool
	headers map[string]string
	http    *http.Client
}

// New 创建通道。密钥解析一次性完成，运行期不再读环境。
func New(opts *Options) (*Client, error) {
	if opts == nil {
		return nil, fmt.Errorf("openai: %w: missing options", contract.ErrInvalidInput)
	}
	if opts.Model == "" {
		return nil, fmt.Errorf("openai: %w: model is required", contract.ErrInvalidInput)
	}
	base := opts.BaseURL
	if base == "" {
		base = "https://api.openai.com"
	}
	path := opts.EndpointPath
	if path == "" {
		path = "/v1/chat/completions"
	}
	key := opts.APIKey
	if opts.APIKeyEnv != "" {
		key = os.Getenv(opts.APIKeyEnv)
	}
	if key == "" && !opts.DisableDefaultAuth {
		return nil, fmt.Errorf("openai: %w: no api key (set api_key_env or api_key)", contract.ErrInvalidInput)
	}
	to := time.Duration(opts.TimeoutSeconds) * time.Second
	if to <= 0 {
		// 连接层兜底；单次调用的语义超时由上层 ctx 控制
		to = 120 * time.Second
	}
	return &Client{
		url:     strings.TrimRight(base, "/") + path,
		model:   opts.Model,
		key:     key,
		temp:    opts.Temperature,
		maxTok:  opts.MaxTokens,
		noAuth:  opts.DisableDefaultAuth,
		headers: opts.ExtraHeaders,
		http:    &http.Client{Timeout: to},
	}, nil
}

// 线上协议形状（最小字段集）。
type wireMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type wireRequest struct {
	Model       string        `json:"model"`
	Messages    []wireMessage `json:"messages"`
	Temperature *float64      `json:"temperature,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type wireResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// Invoke 发送一次 Chat Completions 请求并返回首个 choice 的文本。
func (c *Client) Invoke(ctx context.Context, p contract.Prompt) (contract.Raw, error) {
	msgs, err := toWire(p)
	if err != nil {
		return contract.Raw{}, err
	}
	body, err := json.Marshal(wireRequest{
		Model:       c.model,
		Messages:    msgs,
		Temperature: c.temp,
		MaxTokens:   c.maxTok,
	})
	if err != nil {
		return contract.Raw{}, fmt.Errorf("openai: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return contract.Raw{}, fmt.Errorf("openai: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if !c.noAuth {
		req.Header.Set("Authorization", "Bearer "+c.key)
	}
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return contract.Raw{}, fmt.Errorf("openai: request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return contract.Raw{}, fmt.Errorf("openai: read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return contract.Raw{}, classifyHTTP(resp.StatusCode, data)
	}

	var wr wireResponse
	if err := json.Unmarshal(data, &wr); err != nil {
		return contract.Raw{}, fmt.Errorf("openai: %w: decode response: %v", contract.ErrResponseInvalid, err)
	}
	if wr.Error != nil {
		return contract.Raw{}, classifyAPIError(resp.StatusCode, wr.Error.Message)
	}
	if len(wr.Choices) == 0 {
		return contract.Raw{}, fmt.Errorf("openai: %w: empty choices", contract.ErrResponseInvalid)
	}
	return contract.Raw{Text: wr.Choices[0].Message.Content}, nil
}

// toWire 将 Prompt 投影到线上消息列表。
func toWire(p contract.Prompt) ([]wireMessage, error) {
	switch v := p.(type) {
	case contract.ChatPrompt:
		msgs := make([]wireMessage, 0, len(v))
		for _, m := range v {
			msgs = append(msgs, wireMessage{Role: m.Role, Content: m.Content})
		}
		if len(msgs) == 0 {
			return nil, fmt.Errorf("openai: %w: empty prompt", contract.ErrInvalidInput)
		}
		return msgs, nil
	case contract.TextPrompt:
		return []wireMessage{{Role: "user", Content: string(v)}}, nil
	case string:
		return []wireMessage{{Role: "user", Content: v}}, nil
	default:
		return nil, fmt.Errorf("openai: %w: unsupported prompt type %T", contract.ErrInvalidInput, p)
	}
}

// httpError 承载上游状态码与消息摘要。
type httpError struct {
	status int
	msg    string
	kind   error
}

func (e *httpError) Error() string {
	return fmt.Sprintf("openai: upstream %d: %s", e.status, e.msg)
}

func (e *httpError) Unwrap() error { return e.kind }

func (e *httpError) UpstreamStatus() int { return e.status }

func (e *httpError) UpstreamMessage() string { return e.msg }

func classifyHTTP(status int, body []byte) error {
	msg := summarize(body)
	kind := contract.ErrResponseInvalid
	if status == http.StatusTooManyRequests || contract.LooksLikeQuota(msg) {
		kind = contract.ErrRateLimited
	}
	return &httpError{status: status, msg: msg, kind: kind}
}

func classifyAPIError(status int, msg string) error {
	kind := contract.ErrResponseInvalid
	if contract.LooksLikeQuota(msg) {
		kind = contract.ErrRateLimited
	}
	return &httpError{status: status, msg: msg, kind: kind}
}

// summarize 截取响应体摘要（错误消息优先，退化为截断原文）。
func summarize(body []byte) string {
	var wr wireResponse
	if json.Unmarshal(body, &wr) == nil && wr.Error != nil && wr.Error.Message != "" {
		return wr.Error.Message
	}
	s := strings.TrimSpace(string(body))
	if len(s) > 256 {
		s = s[:256] + "..."
	}
	return s
}

var (
	_ contract.Transformer   = (*Client)(nil)
	_ contract.UpstreamError = (*httpError)(nil)
)
