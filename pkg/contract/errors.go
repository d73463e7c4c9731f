package contract

import (
	"errors"
	"fmt"
	"strings"
)

// 最小错误分类（用于上层策略判定与日志归类）。
var (
	// ErrParse: 严格解码失败（Notation/结构字面量）。
	ErrParse = errors.New("parse failed")
	// ErrRepairExhausted: 恢复级联全部失败。
	ErrRepairExhausted = errors.New("repair exhausted")
	// ErrChunkTimeout: 单次外部调用超时。
	ErrChunkTimeout = errors.New("chunk timeout")
	// ErrRetriesExhausted: 单块重试次数用尽。
	ErrRetriesExhausted = errors.New("chunk retries exhausted")
	// ErrRateLimited: 配额/限流类上游失败（基于消息内容的启发式判定，不保证准确）。
	ErrRateLimited = errors.New("rate limited")
	// ErrResponseInvalid: 外部通道返回内容无法使用。
	ErrResponseInvalid = errors.New("response invalid")
	// ErrInvalidInput: 输入违反前置条件（通用哨兵）。
	ErrInvalidInput = errors.New("invalid input")
)

// ParseError: 带阶段标签的严格解码错误。
// Stage 标识失败位置（如 "notation"、"literal"）；Line 自 1 计，0 表示不适用。
type ParseError struct {
	Stage string
	Line  int
	Msg   string
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s: line %d: %s", e.Stage, e.Line, e.Msg)
	}
	return fmt.Sprintf("%s: %s", e.Stage, e.Msg)
}

func (e *ParseError) Unwrap() error { return ErrParse }

// LooksLikeQuota 从上游消息内容启发式判定配额类失败。
// 明确不保证准确：仅用于错误包装与用户可见的失败归类提示。
func LooksLikeQuota(msg string) bool {
	m := strings.ToLower(msg)
	for _, kw := range []string{"quota", "rate limit", "too many requests", "429", "resource exhausted", "billing"} {
		if strings.Contains(m, kw) {
			return true
		}
	}
	return false
}

// UpstreamError 用于承载 HTTP 上游错误的最小诊断信息。
// 实现方应提供可选的状态码与简短消息，便于 pipeline 记录结构化日志字段。
type UpstreamError interface {
	error
	UpstreamStatus() int
	UpstreamMessage() string
}
