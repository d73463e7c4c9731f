package diag

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Logger: zerolog 之上的最小封装，统一 comp/stage/target/chunk 字段，
// 提供 start→finish 计时对。每次运行一个 corr_id。
type Logger struct {
	zl zerolog.Logger
}

// NewLogger 以给定关联 ID 与级别构造；未知级别回落 info。
func NewLogger(corrID, level string) *Logger {
	return NewLoggerTo(os.Stderr, corrID, level)
}

// NewLoggerTo 允许注入输出端（测试用）。
func NewLoggerTo(w io.Writer, corrID, level string) *Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	zl := zerolog.New(w).Level(lvl).With().
		Timestamp().
		Str("corr_id", corrID).
		Logger()
	return &Logger{zl: zl}
}

// Start 记录 start 事件；返回计时器用于 Finish。
func (l *Logger) Start(comp, msg string) *Timer {
	if l == nil {
		return nil
	}
	l.zl.Info().Str("comp", comp).Str("stage", "start").Msg(msg)
	return &Timer{l: l, comp: comp, t0: time.Now()}
}

// StartWith 记录带 target/chunk 地址的 start。
func (l *Logger) StartWith(comp, msg, target, addr string) *Timer {
	if l == nil {
		return nil
	}
	l.zl.Info().Str("comp", comp).Str("stage", "start").
		Str("target", target).Str("chunk", addr).Msg(msg)
	return &Timer{l: l, comp: comp, target: target, addr: addr, t0: time.Now()}
}

// Error 记录 error 事件（永不采样）。
func (l *Logger) Error(comp, code, msg string, err error) {
	if l == nil {
		return
	}
	ev := l.zl.Error().Str("comp", comp).Str("stage", "error").Str("code", code)
	if err != nil {
		ev = ev.Err(err)
	}
	ev.Msg(msg)
}

// ErrorWith 支持 target/chunk 字段。
func (l *Logger) ErrorWith(comp, code, msg string, err error, target, addr string) {
	if l == nil {
		return
	}
	ev := l.zl.Error().Str("comp", comp).Str("stage", "error").Str("code", code).
		Str("target", target).Str("chunk", addr)
	if err != nil {
		ev = ev.Err(err)
	}
	ev.Msg(msg)
}

// ErrorWithKV 在 ErrorWith 之上附加额外字段（上游状态码等）。
func (l *Logger) ErrorWithKV(comp, code, msg string, err error, target, addr string, kv map[string]string) {
	if l == nil {
		return
	}
	ev := l.zl.Error().Str("comp", comp).Str("stage", "error").Str("code", code).
		Str("target", target).Str("chunk", addr)
	for k, v := range kv {
		ev = ev.Str(k, v)
	}
	if err != nil {
		ev = ev.Err(err)
	}
	ev.Msg(msg)
}

// Debug 输出调试事件（仅在 level=debug 时生效）。
func (l *Logger) Debug(comp, msg string, kv map[string]string) {
	if l == nil {
		return
	}
	ev := l.zl.Debug().Str("comp", comp).Str("stage", "debug")
	for k, v := range kv {
		ev = ev.Str(k, v)
	}
	ev.Msg(msg)
}

// Timer 用于 start→finish 计时。
type Timer struct {
	l      *Logger
	comp   string
	target string
	addr   string
	t0     time.Time
}

// Finish 记录 finish；count 为阶段产物数量（块数/字节数等，按组件自定）。
func (t *Timer) Finish(msg string, count int64) {
	if t == nil || t.l == nil {
		return
	}
	t.l.zl.Info().Str("comp", t.comp).Str("stage", "finish").
		Str("target", t.target).Str("chunk", t.addr).
		Dur("dur", time.Since(t.t0)).Int64("count", count).Msg(msg)
}
