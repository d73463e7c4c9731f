package diag

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"testing"
	"time"

	"treelate/pkg/contract"
)

// 错误分类：哨兵与标准库错误类型
func TestClassify(t *testing.T) {
	cases := []struct {
		err  error
		want Code
	}{
		{nil, CodeUnknown},
		{context.Canceled, CodeCancel},
		{context.DeadlineExceeded, CodeCancel},
		{fmt.Errorf("call: %w", contract.ErrChunkTimeout), CodeCancel},
		{fmt.Errorf("upstream: %w", contract.ErrRateLimited), CodeBudget},
		{contract.ErrResponseInvalid, CodeProtocol},
		{contract.ErrRepairExhausted, CodeProtocol},
		{&contract.ParseError{Stage: "notation", Line: 3, Msg: "x"}, CodeProtocol},
		{fmt.Errorf("bad: %w", contract.ErrInvalidInput), CodeInvariant},
		{&os.PathError{Op: "open", Path: "/x", Err: os.ErrNotExist}, CodeIO},
		{&net.DNSError{Err: "no such host", IsTimeout: false}, CodeNetwork},
		{fmt.Errorf("mystery"), CodeUnknown},
	}
	for _, c := range cases {
		if got := Classify(c.err); got != c.want {
			t.Fatalf("Classify(%v) = %s, 期望 %s", c.err, got, c.want)
		}
	}
}

// 日志字段：corr_id/comp/stage 与 start→finish 计时对
func TestLoggerFields(t *testing.T) {
	var buf bytes.Buffer
	l := NewLoggerTo(&buf, "corr-123", "debug")
	tm := l.StartWith("transformer", "invoke", "fr", "a,b")
	time.Sleep(time.Millisecond)
	tm.Finish("invoke", 7)
	l.ErrorWith("recovery", string(CodeProtocol), "all stages failed", fmt.Errorf("boom"), "fr", "a,b")

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	if len(lines) != 3 {
		t.Fatalf("期望 3 条日志，实得 %d", len(lines))
	}
	var ev map[string]any
	if err := json.Unmarshal(lines[0], &ev); err != nil {
		t.Fatalf("日志应为 JSON: %v", err)
	}
	if ev["corr_id"] != "corr-123" || ev["comp"] != "transformer" || ev["stage"] != "start" {
		t.Fatalf("start 字段不符: %v", ev)
	}
	if err := json.Unmarshal(lines[1], &ev); err != nil {
		t.Fatalf("日志应为 JSON: %v", err)
	}
	if ev["stage"] != "finish" || ev["count"] != float64(7) {
		t.Fatalf("finish 字段不符: %v", ev)
	}
	if err := json.Unmarshal(lines[2], &ev); err != nil {
		t.Fatalf("日志应为 JSON: %v", err)
	}
	if ev["level"] != "error" || ev["code"] != "protocol" || ev["chunk"] != "a,b" {
		t.Fatalf("error 字段不符: %v", ev)
	}
}

// nil 安全：空 Logger 全部为 no-op
func TestLoggerNilSafe(t *testing.T) {
	var l *Logger
	tm := l.Start("x", "y")
	tm.Finish("z", 0)
	l.Error("x", "c", "m", nil)
	l.Debug("x", "m", nil)
}

// 未知级别回落 info：debug 事件被抑制
func TestLoggerLevelFallback(t *testing.T) {
	var buf bytes.Buffer
	l := NewLoggerTo(&buf, "c", "nonsense")
	l.Debug("comp", "hidden", nil)
	if buf.Len() != 0 {
		t.Fatalf("info 级别下 debug 应被抑制: %s", buf.String())
	}
}
