package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"treelate/internal/diag"
	"treelate/pkg/contract"
	"treelate/plugins/prompt/translate"
	"treelate/plugins/transformer/flaky"
	"treelate/plugins/transformer/mock"
)

func mustParse(t *testing.T, src string) contract.Value {
	t.Helper()
	v, err := contract.ParseJSON([]byte(src))
	require.NoError(t, err, "样例 JSON 解析失败")
	return v
}

func echoComponents(t *testing.T) Components {
	t.Helper()
	pb, err := translate.New(nil)
	require.NoError(t, err)
	tr, err := mock.New(nil)
	require.NoError(t, err)
	return Components{Prompt: pb, Transformer: tr}
}

func fastSettings() Settings {
	return Settings{
		MaxChunkBytes: 4096,
		MaxRetries:    2,
		RetryBackoff:  time.Millisecond,
		ChunkTimeout:  5 * time.Second,
		DocTimeout:    5 * time.Second,
	}
}

// 回显通道下的端到端恒等：分块→调用→恢复→合并→对齐
func TestRunEchoIdentity(t *testing.T) {
	doc := mustParse(t, `{"a":"Hello","b":{"c":"World"},"d":[1,2],"s":"","n":null}`)
	got, err := Run(context.Background(), echoComponents(t), fastSettings(), doc, "fr", nil)
	require.NoError(t, err)
	require.True(t, doc.Equal(got), "回显应逐字节恒等: %+v", got)
}

// 多块路径同样恒等
func TestRunEchoIdentityChunked(t *testing.T) {
	doc := mustParse(t, `{"a":"Hello","b":{"c":"World"},"d":[1,2],"e":"tail","f":"more"}`)
	set := fastSettings()
	set.MaxChunkBytes = 24
	got, err := Run(context.Background(), echoComponents(t), set, doc, "fr", nil)
	require.NoError(t, err)
	require.True(t, doc.Equal(got), "多块回显应恒等: %+v", got)
}

// 排除路径不传输也不覆盖
func TestRunExclusionUntouched(t *testing.T) {
	doc := mustParse(t, `{"a":"Hello","secret":"keep me","b":"World"}`)
	set := fastSettings()
	set.Excluded = contract.NewExclusionSet([]string{"secret"})
	got, err := Run(context.Background(), echoComponents(t), set, doc, "fr", nil)
	require.NoError(t, err)
	require.True(t, doc.Equal(got))
	s, ok := got.Get("secret")
	require.True(t, ok)
	require.Equal(t, "keep me", s.Str)
}

// 嵌套排除路径不影响分块边界，仅作为禁止改动指令传达；
// 通道未改动时终值与原值一致
func TestRunNestedExclusion(t *testing.T) {
	doc := mustParse(t, `{"a":"Hello","b":{"c":"keep","d":"World"}}`)
	set := fastSettings()
	set.MaxChunkBytes = 16 // 强制 a 与 b 分属不同块
	set.Excluded = contract.NewExclusionSet([]string{"b.c"})
	got, err := Run(context.Background(), echoComponents(t), set, doc, "fr", nil)
	require.NoError(t, err)
	require.True(t, doc.Equal(got))
	b, _ := got.Get("b")
	c, ok := b.Get("c")
	require.True(t, ok)
	require.Equal(t, "keep", c.Str)
}

// 注入失败在重试预算内被吸收：限流一次、坏输出一次、第三次成功
func TestRunRecoversWithinRetryBudget(t *testing.T) {
	doc := mustParse(t, `{"a":"Hello"}`)
	pb, err := translate.New(nil)
	require.NoError(t, err)
	tr, err := flaky.New(nil)
	require.NoError(t, err)
	comp := Components{Prompt: pb, Transformer: tr}
	got, rerr := Run(context.Background(), comp, fastSettings(), doc, "fr", nil)
	require.NoError(t, rerr)
	require.True(t, doc.Equal(got))
	require.Equal(t, 3, tr.Calls(), "应恰好三次调用")
}

// 重试耗尽升级为整文档失败，错误链完整
func TestRunRetriesExhausted(t *testing.T) {
	doc := mustParse(t, `{"a":"Hello"}`)
	pb, err := translate.New(nil)
	require.NoError(t, err)
	tr, err := flaky.New(&flaky.Options{FailFirst: 100})
	require.NoError(t, err)
	comp := Components{Prompt: pb, Transformer: tr}

	_, rerr := Run(context.Background(), comp, fastSettings(), doc, "fr", nil)
	require.Error(t, rerr)

	var ce *ChunkError
	require.ErrorAs(t, rerr, &ce)
	require.Equal(t, "a", ce.Address)
	require.Equal(t, 3, ce.Attempts, "1 次首发 + 2 次重试")
	require.ErrorIs(t, rerr, contract.ErrRetriesExhausted)
}

// 上下文取消立即终止，不再重试
func TestRunContextCanceled(t *testing.T) {
	doc := mustParse(t, `{"a":"Hello"}`)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Run(ctx, echoComponents(t), fastSettings(), doc, "fr", nil)
	require.Error(t, err)
	require.ErrorIs(t, err, context.Canceled)
}

// 单次调用超时包装为 ErrChunkTimeout（可重试），全程超时则升级
func TestRunChunkTimeout(t *testing.T) {
	doc := mustParse(t, `{"a":"Hello"}`)
	pb, err := translate.New(nil)
	require.NoError(t, err)
	comp := Components{Prompt: pb, Transformer: hangTransformer{}}
	set := fastSettings()
	set.ChunkTimeout = 5 * time.Millisecond
	set.DocTimeout = 5 * time.Millisecond
	set.MaxRetries = 1

	_, rerr := Run(context.Background(), comp, set, doc, "fr", nil)
	require.Error(t, rerr)
	require.ErrorIs(t, rerr, contract.ErrChunkTimeout)
	require.ErrorIs(t, rerr, contract.ErrRetriesExhausted)
}

// 上游 HTTP 错误的状态码与消息进入结构化日志
func TestRunLogsUpstreamFields(t *testing.T) {
	doc := mustParse(t, `{"a":"Hello"}`)
	pb, err := translate.New(nil)
	require.NoError(t, err)
	comp := Components{Prompt: pb, Transformer: upstreamTransformer{status: 503}}
	set := fastSettings()
	set.MaxRetries = 0

	var buf bytes.Buffer
	logger := diag.NewLoggerTo(&buf, "corr-test", "info")
	_, rerr := Run(context.Background(), comp, set, doc, "fr", logger)
	require.Error(t, rerr)
	require.Contains(t, buf.String(), `"http_status":"503"`)
	require.Contains(t, buf.String(), `"upstream_msg":"service unavailable"`)
}

// upstreamTransformer 每次调用都以携带状态码的上游错误失败。
type upstreamTransformer struct{ status int }

func (u upstreamTransformer) Invoke(context.Context, contract.Prompt) (contract.Raw, error) {
	return contract.Raw{}, upstreamErr{status: u.status}
}

type upstreamErr struct{ status int }

func (e upstreamErr) Error() string { return fmt.Sprintf("upstream status %d", e.status) }

func (e upstreamErr) UpstreamStatus() int { return e.status }

func (e upstreamErr) UpstreamMessage() string { return "service unavailable" }

// hangTransformer 阻塞到 ctx 截止。
type hangTransformer struct{}

func (hangTransformer) Invoke(ctx context.Context, _ contract.Prompt) (contract.Raw, error) {
	<-ctx.Done()
	return contract.Raw{}, ctx.Err()
}

// 缺组件直接失败
func TestRunMissingComponents(t *testing.T) {
	_, err := Run(context.Background(), Components{}, fastSettings(), contract.Null(), "fr", nil)
	require.Error(t, err)
}

// retryable 判定
func TestRetryable(t *testing.T) {
	require.True(t, retryable(contract.ErrChunkTimeout))
	require.True(t, retryable(contract.ErrRateLimited))
	require.True(t, retryable(contract.ErrRepairExhausted))
	require.False(t, retryable(contract.ErrInvalidInput))
	require.False(t, retryable(context.Canceled))
	require.False(t, retryable(nil))
}

// RunAll：全部变体成功返回逐目标结果
func TestRunAll(t *testing.T) {
	doc := mustParse(t, `{"a":"Hello"}`)
	set := fastSettings()
	set.VariantConcurrency = 2
	out, err := RunAll(context.Background(), echoComponents(t), set, doc, []string{"fr", "de"}, nil)
	require.NoError(t, err)
	require.Len(t, out, 2)
	require.True(t, doc.Equal(out["fr"]))
	require.True(t, doc.Equal(out["de"]))
}

// RunAll：任一变体失败整体失败并报出目标
func TestRunAllFirstError(t *testing.T) {
	doc := mustParse(t, `{"a":"Hello"}`)
	pb, err := translate.New(nil)
	require.NoError(t, err)
	tr, err := flaky.New(&flaky.Options{FailFirst: 100})
	require.NoError(t, err)
	comp := Components{Prompt: pb, Transformer: tr}
	_, rerr := RunAll(context.Background(), comp, fastSettings(), doc, []string{"fr"}, nil)
	require.Error(t, rerr)
	var ce *ChunkError
	require.True(t, errors.As(rerr, &ce))
}
