package flaky

import (
	"context"
	"errors"
	"testing"

	"treelate/pkg/contract"
)

// 注入顺序：限流 → 坏输出 → 透传回显
func TestInjectionSequence(t *testing.T) {
	c, err := New(nil)
	if err != nil {
		t.Fatalf("构造失败: %v", err)
	}
	p := contract.TextPrompt("<document>\na,1\n</document>")

	_, err = c.Invoke(context.Background(), p)
	if !errors.Is(err, contract.ErrRateLimited) {
		t.Fatalf("第 1 次应为限流: %v", err)
	}
	raw, err := c.Invoke(context.Background(), p)
	if err != nil || raw.Text == "a,1" {
		t.Fatalf("第 2 次应为坏输出: %q %v", raw.Text, err)
	}
	raw, err = c.Invoke(context.Background(), p)
	if err != nil || raw.Text != "a,1" {
		t.Fatalf("第 3 次应透传回显: %q %v", raw.Text, err)
	}
	if c.Calls() != 3 {
		t.Fatalf("计数不符: %d", c.Calls())
	}
}
