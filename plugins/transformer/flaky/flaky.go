package flaky

import (
	"context"
	"fmt"
	"sync"

	"treelate/pkg/contract"

	"treelate/plugins/transformer/mock"
)

// Options: 故障注入通道配置。
// FailFirst: 前 N 次调用注入失败（默认 2：一次限流 + 一次坏输出），之后回显。
type Options struct {
	FailFirst int    `json:"fail_first"`
	Mode      string `json:"mode"`
}

// Client 包装回显通道并按调用序注入失败，用于演练重试与恢复路径。
// 第 1 次调用返回限流错误，第 2 次返回不可解析文本，之后透传。
type Client struct {
	mu        sync.Mutex
	calls     int
	failFirst int
	inner     *mock.Client
}

// New 创建故障注入通道。
func New(opts *Options) (*Client, error) {
	o := Options{FailFirst: 2}
	if opts != nil {
		o = *opts
		if o.FailFirst == 0 {
			o.FailFirst = 2
		}
	}
	inner, err := mock.New(&mock.Options{Mode: o.Mode})
	if err != nil {
		return nil, err
	}
	return &Client{failFirst: o.FailFirst, inner: inner}, nil
}

// Invoke 按调用序注入失败：奇数次限流、偶数次坏输出，超过阈值后透传。
func (c *Client) Invoke(ctx context.Context, p contract.Prompt) (contract.Raw, error) {
	c.mu.Lock()
	c.calls++
	n := c.calls
	c.mu.Unlock()

	if n <= c.failFirst {
		if n%2 == 1 {
			return contract.Raw{}, fmt.Errorf("flaky: injected 429: %w", contract.ErrRateLimited)
		}
		// 两行、无分隔符、无括号：任何恢复级都无法成立
		return contract.Raw{Text: "SORRY\nI cannot comply with that request."}, nil
	}
	return c.inner.Invoke(ctx, p)
}

// Calls 返回累计调用次数。
func (c *Client) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

var _ contract.Transformer = (*Client)(nil)
