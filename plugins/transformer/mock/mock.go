package mock

import (
	"context"
	"fmt"
	"strings"

	"treelate/pkg/contract"
)

// Options: 离线通道配置。
// Mode:
//   - "echo"（默认）：原样返回用户消息中 <document> 块内的载荷；
//   - "fenced"：同 echo，但裹上 Markdown 代码栅栏（用于演练恢复级联）；
//   - "canned"：忽略输入，固定返回 Canned 文本。
type Options struct {
	Mode   string `json:"mode"`
	Canned string `json:"canned"`
}

// Client 是无外部依赖的确定性通道，供端到端演练与测试使用。
type Client struct {
	mode   string
	canned string
}

// New 创建离线通道。
func New(opts *Options) (*Client, error) {
	o := Options{}
	if opts != nil {
		o = *opts
	}
	switch o.Mode {
	case "", "echo":
		o.Mode = "echo"
	case "fenced", "canned":
	default:
		return nil, fmt.Errorf("mock: %w: unknown mode %q", contract.ErrInvalidInput, o.Mode)
	}
	return &Client{mode: o.Mode, canned: o.Canned}, nil
}

// Invoke 同步返回确定性文本；尊重 ctx 取消。
func (c *Client) Invoke(ctx context.Context, p contract.Prompt) (contract.Raw, error) {
	select {
	case <-ctx.Done():
		return contract.Raw{}, ctx.Err()
	default:
	}
	if c.mode == "canned" {
		return contract.Raw{Text: c.canned}, nil
	}
	doc, err := extractDocument(p)
	if err != nil {
		return contract.Raw{}, err
	}
	if c.mode == "fenced" {
		return contract.Raw{Text: "```\n" + doc + "\n```"}, nil
	}
	return contract.Raw{Text: doc}, nil
}

// extractDocument 取用户消息中 <document>…</document> 之间的载荷。
func extractDocument(p contract.Prompt) (string, error) {
	var text string
	switch v := p.(type) {
	case contract.ChatPrompt:
		for _, m := range v {
			if m.Role == "user" {
				text = m.Content
			}
		}
	case contract.TextPrompt:
		text = string(v)
	case string:
		text = v
	default:
		return "", fmt.Errorf("mock: %w: unsupported prompt type %T", contract.ErrInvalidInput, p)
	}
	const open, closing = "<document>", "</document>"
	i := strings.Index(text, open)
	if i < 0 {
		// 无标记：整段视为载荷（兼容裸文本提示）
		return strings.TrimSpace(text), nil
	}
	rest := text[i+len(open):]
	j := strings.Index(rest, closing)
	if j < 0 {
		return "", fmt.Errorf("mock: %w: unterminated document block", contract.ErrInvalidInput)
	}
	return strings.Trim(rest[:j], "\n"), nil
}

var _ contract.Transformer = (*Client)(nil)
