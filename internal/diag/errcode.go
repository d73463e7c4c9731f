package diag

import (
	"context"
	"errors"
	"net"
	"os"

	"treelate/pkg/contract"
)

// Code 是最小错误分类代码。
// 仅用于日志/指标汇总与用户可见的失败归类，与退出码解耦。
type Code string

const (
	CodeUnknown   Code = "unknown"
	CodeNetwork   Code = "network"
	CodeProtocol  Code = "protocol"
	CodeInvariant Code = "invariant"
	CodeBudget    Code = "budget"
	CodeCancel    Code = "cancel"
	CodeIO        Code = "io"
)

// Classify 将错误归为最小分类。
// 说明：依赖哨兵错误与标准库错误类型；配额启发式单独见 LooksLikeQuota。
func Classify(err error) Code {
	if err == nil {
		return CodeUnknown
	}
	// 取消/超时优先（单次调用超时与上下文同类处理）
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, contract.ErrChunkTimeout) {
		return CodeCancel
	}
	// 配额/限流
	if errors.Is(err, contract.ErrRateLimited) {
		return CodeBudget
	}
	// 协议/解码/恢复
	if errors.Is(err, contract.ErrResponseInvalid) ||
		errors.Is(err, contract.ErrRepairExhausted) ||
		errors.Is(err, contract.ErrParse) {
		return CodeProtocol
	}
	// 不变量
	if errors.Is(err, contract.ErrInvalidInput) {
		return CodeInvariant
	}
	// I/O
	var perr *os.PathError
	if errors.As(err, &perr) {
		return CodeIO
	}
	// 网络（连接/超时等）
	var nerr net.Error
	if errors.As(err, &nerr) {
		return CodeNetwork
	}
	return CodeUnknown
}
