// Package pipeline 驱动单文档/单目标变体的完整翻译流程：
// 分块 → 逐块外部调用 → 恢复解析 → 有界重试 → 合并 → 对齐。
//
// - 顺序执行：同一文档/变体任意时刻至多一个在途外部调用；
// - 单次调用受超时约束，超时视为可重试失败；
// - 重试有界（默认 2 次），线性退避；耗尽升级为整文档失败，不产出部分工件；
// - 逐块结果以显式折叠累积，无共享可变状态。
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"treelate/internal/align"
	"treelate/internal/chunk"
	"treelate/internal/diag"
	"treelate/internal/notation"
	"treelate/internal/recovery"
	"treelate/pkg/contract"
)

// Components 聚合运行所需的原子组件。
type Components struct {
	Prompt      contract.PromptBuilder
	Transformer contract.Transformer
}

// Settings 运行期配置（最小必要）。
type Settings struct {
	// MaxChunkBytes: 单块载荷尺寸上界（紧凑序列化字节）。
	MaxChunkBytes int
	// MaxRetries: 单块最大重试次数（>=0，不含首次尝试）。默认 2。
	MaxRetries int
	// RetryBackoff: 线性退避基数（第 n 次重试前等待 n×基数）。默认 500ms。
	RetryBackoff time.Duration
	// ChunkTimeout: 常规块单次外部调用上界。默认 45s。
	ChunkTimeout time.Duration
	// DocTimeout: 文档未分块（单块即全文）时的更长上界。默认 120s。
	DocTimeout time.Duration
	// VariantConcurrency: RunAll 的变体并行度；<=1 即参考实现的逐个处理。
	VariantConcurrency int
	// Excluded: 不传输、不覆盖的路径集合。
	Excluded contract.ExclusionSet
}

func (s *Settings) normalize() {
	if s.MaxRetries < 0 {
		s.MaxRetries = 2
	}
	if s.RetryBackoff <= 0 {
		s.RetryBackoff = 500 * time.Millisecond
	}
	if s.ChunkTimeout <= 0 {
		s.ChunkTimeout = 45 * time.Second
	}
	if s.DocTimeout <= 0 {
		s.DocTimeout = 120 * time.Second
	}
}

// ChunkError: 单块失败升级后的整文档错误；携带完整的恢复阶段轨迹（Cause 链）。
type ChunkError struct {
	Address  string
	Attempts int
	Cause    error
}

func (e *ChunkError) Error() string {
	return fmt.Sprintf("chunk %q failed after %d attempts: %v", e.Address, e.Attempts, e.Cause)
}

func (e *ChunkError) Unwrap() []error {
	return []error{contract.ErrRetriesExhausted, e.Cause}
}

// Run 翻译一份文档到一个目标变体。
// 任一块重试耗尽即返回 *ChunkError，不产出部分结果；
// 全部成功则合并回原形并对齐后返回。
func Run(ctx context.Context, comp Components, set Settings, doc contract.Value, target string, logger *diag.Logger) (contract.Value, error) {
	if comp.Prompt == nil || comp.Transformer == nil {
		return contract.Value{}, errors.New("pipeline: missing components")
	}
	set.normalize()

	stimer := logger.StartWith("chunker", "split", target, "")
	chunks, err := chunk.Split(doc, set.MaxChunkBytes, set.Excluded)
	if err != nil {
		logger.ErrorWith("chunker", string(diag.Classify(err)), "split failed", err, target, "")
		diag.IncOp("chunker", "split", "error")
		return contract.Value{}, fmt.Errorf("chunker split: %w", err)
	}
	stimer.Finish("split", int64(len(chunks)))
	diag.IncOp("chunker", "split", "success")

	// 显式折叠：逐块顺序累积结果
	results := make([]contract.Result, 0, len(chunks))
	for _, c := range chunks {
		v, attempts, cerr := runChunk(ctx, comp, set, c, target, len(chunks) == 1, logger)
		if cerr != nil {
			ce := &ChunkError{Address: c.Address, Attempts: attempts, Cause: cerr}
			logger.ErrorWith("pipeline", string(diag.Classify(cerr)), "chunk failed", cerr, target, c.Address)
			diag.IncOp("pipeline", "chunk", "error")
			diag.IncError("pipeline", string(diag.Classify(cerr)))
			return contract.Value{}, ce
		}
		results = append(results, contract.Result{Address: c.Address, Value: v})
	}

	merged := chunk.Merge(results, doc)
	final := align.Align(doc, merged)
	return final, nil
}

// runChunk 执行单块的 编码→提示→调用→恢复解析，带有界线性退避重试。
func runChunk(ctx context.Context, comp Components, set Settings, c contract.Chunk, target string, whole bool, logger *diag.Logger) (contract.Value, int, error) {
	payload, err := notation.Encode(c.Payload)
	if err != nil {
		return contract.Value{}, 0, fmt.Errorf("encode: %w", err)
	}
	p, err := comp.Prompt.Build(ctx, payload, target, set.Excluded)
	if err != nil {
		return contract.Value{}, 0, fmt.Errorf("prompt build: %w", err)
	}

	timeout := set.ChunkTimeout
	if whole {
		// 未分块的小文档整体一发：给更长的上界
		timeout = set.DocTimeout
	}

	attempts := set.MaxRetries + 1
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			// 线性退避：第 n 次重试前等待 (n-1)×基数
			if err := sleepWithCtx(ctx, time.Duration(attempt-1)*set.RetryBackoff); err != nil {
				return contract.Value{}, attempt - 1, err
			}
		}

		ttimer := logger.StartWith("transformer", "invoke", target, c.Address)
		cctx, cancel := context.WithTimeout(ctx, timeout)
		raw, ierr := comp.Transformer.Invoke(cctx, p)
		timedOut := cctx.Err() != nil && ctx.Err() == nil
		cancel()
		if ierr != nil {
			if errors.Is(ierr, context.DeadlineExceeded) && timedOut {
				ierr = fmt.Errorf("%w: call exceeded %s: %v", contract.ErrChunkTimeout, timeout, ierr)
			}
			code := diag.Classify(ierr)
			var ue contract.UpstreamError
			if errors.As(ierr, &ue) {
				// 上游 HTTP 失败：附带状态码与截断后的消息
				kv := map[string]string{"http_status": strconv.Itoa(ue.UpstreamStatus())}
				if m := strings.TrimSpace(ue.UpstreamMessage()); m != "" {
					if len(m) > 200 {
						m = m[:200]
					}
					kv["upstream_msg"] = m
				}
				logger.ErrorWithKV("transformer", string(code), "invoke failed", ierr, target, c.Address, kv)
			} else {
				logger.ErrorWith("transformer", string(code), "invoke failed", ierr, target, c.Address)
			}
			diag.IncOp("transformer", "invoke", "error")
			diag.IncError("transformer", string(code))
			lastErr = ierr
			if ctx.Err() != nil || !retryable(ierr) {
				return contract.Value{}, attempt, lastErr
			}
			continue
		}
		ttimer.Finish("invoke", int64(len(raw.Text)))
		diag.IncOp("transformer", "invoke", "success")

		v, stage, perr := recovery.Parse(raw.Text)
		if perr != nil {
			code := diag.Classify(perr)
			logger.ErrorWith("recovery", string(code), "all stages failed", perr, target, c.Address)
			diag.IncOp("recovery", "parse", "error")
			diag.IncError("recovery", string(code))
			lastErr = perr
			continue // 格式失败可重试：下一次调用可能给出可解析输出
		}
		logger.Debug("recovery", "parsed", map[string]string{"stage": stage, "chunk": c.Address})
		diag.IncOp("recovery", "parse", "success")
		return v, attempt, nil
	}
	return contract.Value{}, attempts, lastErr
}

// retryable: 超时/配额/网络/协议失败可重试；取消与不变量违例不可。
func retryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, contract.ErrChunkTimeout) {
		return true
	}
	switch diag.Classify(err) {
	case diag.CodeBudget, diag.CodeNetwork, diag.CodeProtocol:
		return true
	default:
		return false
	}
}

// RunAll 依次（或按 VariantConcurrency 并行）处理多个目标变体。
// 各变体互不共享可变状态；任一变体失败取消其余并返回首错。
func RunAll(ctx context.Context, comp Components, set Settings, doc contract.Value, targets []string, logger *diag.Logger) (map[string]contract.Value, error) {
	set.normalize()
	limit := set.VariantConcurrency
	if limit < 1 {
		limit = 1
	}
	out := make([]contract.Value, len(targets))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, target := range targets {
		g.Go(func() error {
			v, err := Run(gctx, comp, set, doc, target, logger)
			if err != nil {
				return fmt.Errorf("target %s: %w", target, err)
			}
			out[i] = v
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	m := make(map[string]contract.Value, len(targets))
	for i, target := range targets {
		m[target] = out[i]
	}
	return m, nil
}

// sleepWithCtx: 可取消的 sleep（最小实现）。
func sleepWithCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
