package config

import (
	"encoding/json"
)

// Config: 运行期只读配置（一次解析，运行期不变）。
// JSON 使用 snake_case；未知字段在解析期失败。
type Config struct {
	// Targets: 目标变体列表（如 ["fr","de"]）。
	Targets []string `json:"targets"`
	// Exclude: 不翻译、不覆盖的精确路径列表。
	Exclude []string `json:"exclude"`
	// MaxChunkBytes: 单块载荷尺寸上界（紧凑序列化字节）。
	MaxChunkBytes int `json:"max_chunk_bytes"`
	// MaxRetries: 单块最大重试次数（>=0）。0 表示不重试。
	MaxRetries int `json:"max_retries"`
	// RetryBackoffMS: 线性退避基数（毫秒）。
	RetryBackoffMS int `json:"retry_backoff_ms"`
	// ChunkTimeoutSeconds/DocTimeoutSeconds: 单次调用超时上界。
	ChunkTimeoutSeconds int `json:"chunk_timeout_seconds"`
	DocTimeoutSeconds   int `json:"doc_timeout_seconds"`
	// VariantConcurrency: 变体并行度（>=1；默认 1 逐个处理）。
	VariantConcurrency int     `json:"variant_concurrency"`
	Logging            Logging `json:"logging"`

	// 组件名选择（空则使用默认名）。
	Components Components `json:"components"`

	// Transformer Provider 选择与定义。
	Transformer string              `json:"transformer"`
	Provider    map[string]Provider `json:"provider"`

	// 各组件 Options 子树，原样 JSON 传入工厂。
	Options Options `json:"options"`
}

// Logging: 仅保留日志等级可配置；输出到 stderr。
type Logging struct {
	Level string `json:"level"`
}

// Components: 组件名选择（注册表中的实现名）。
type Components struct {
	Prompt string `json:"prompt"`
	Writer string `json:"writer"`
}

// Options: 各组件的原样 JSON Options。
type Options struct {
	Prompt json.RawMessage `json:"prompt"`
	Writer json.RawMessage `json:"writer"`
}

// Provider: 命名 provider 定义（通道实现名 + options）。
type Provider struct {
	Client  string          `json:"client"`
	Options json.RawMessage `json:"options"`
}
