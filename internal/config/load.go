package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"os"
	"strconv"
	"strings"
)

// Defaults 返回带有安全默认值的 Config 雏形。
// 注意：Targets 与 Transformer 不设默认（必须由 JSON/ENV/CLI 提供）。
func Defaults() Config {
	return Config{
		MaxChunkBytes:       4096,
		MaxRetries:          2,
		RetryBackoffMS:      500,
		ChunkTimeoutSeconds: 45,
		DocTimeoutSeconds:   120,
		VariantConcurrency:  1,
		Components: Components{
			Prompt: "translate",
			Writer: "fs",
		},
	}
}

// LoadJSON 从文件路径或原始 JSON 解析 Config（严格拒绝未知字段）。
func LoadJSON(path string, raw []byte) (Config, error) {
	var cfg Config
	var r io.Reader
	switch {
	case len(raw) > 0:
		r = bytes.NewReader(raw)
	case path != "":
		f, err := os.Open(path)
		if err != nil {
			return cfg, err
		}
		defer f.Close()
		r = f
	default:
		return cfg, errors.New("no config source provided")
	}
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Merge 按优先级合并（后者覆盖前者）。
// 仅标量/字符串/原样 JSON 为"替换"；不做深度合并。
func Merge(base, over Config) Config {
	out := base
	if len(over.Targets) > 0 {
		out.Targets = cloneStrings(over.Targets)
	}
	if len(over.Exclude) > 0 {
		out.Exclude = cloneStrings(over.Exclude)
	}
	if over.MaxChunkBytes != 0 {
		out.MaxChunkBytes = over.MaxChunkBytes
	}
	// 特殊：MaxRetries 的 0 具有语义（禁用重试），需要显式可覆盖。
	// 约定：over.MaxRetries >= 0 视为"存在"，-1 视为未覆盖。
	if over.MaxRetries >= 0 {
		out.MaxRetries = over.MaxRetries
	}
	if over.RetryBackoffMS != 0 {
		out.RetryBackoffMS = over.RetryBackoffMS
	}
	if over.ChunkTimeoutSeconds != 0 {
		out.ChunkTimeoutSeconds = over.ChunkTimeoutSeconds
	}
	if over.DocTimeoutSeconds != 0 {
		out.DocTimeoutSeconds = over.DocTimeoutSeconds
	}
	if over.VariantConcurrency != 0 {
		out.VariantConcurrency = over.VariantConcurrency
	}
	if strings.TrimSpace(over.Logging.Level) != "" {
		out.Logging.Level = strings.TrimSpace(over.Logging.Level)
	}

	// 组件名（空不覆盖）
	if over.Components.Prompt != "" {
		out.Components.Prompt = over.Components.Prompt
	}
	if over.Components.Writer != "" {
		out.Components.Writer = over.Components.Writer
	}

	// Provider（完整替换对应键）
	if len(over.Provider) > 0 {
		if out.Provider == nil {
			out.Provider = make(map[string]Provider, len(over.Provider))
		}
		for k, v := range over.Provider {
			out.Provider[k] = v
		}
	}

	// Options（完整替换对应键）
	if len(over.Options.Prompt) > 0 {
		out.Options.Prompt = cloneRaw(over.Options.Prompt)
	}
	if len(over.Options.Writer) > 0 {
		out.Options.Writer = cloneRaw(over.Options.Writer)
	}

	if strings.TrimSpace(over.Transformer) != "" {
		out.Transformer = strings.TrimSpace(over.Transformer)
	}
	return out
}

// EnvOverlay 从环境变量构建一个 Config 覆盖（仅解析有限键集合）。
// 规则：前缀 TREELATE_；集合之外的键忽略。
// 支持：TARGETS, EXCLUDE, MAX_CHUNK_BYTES, MAX_RETRIES, RETRY_BACKOFF_MS,
// CHUNK_TIMEOUT_SECONDS, DOC_TIMEOUT_SECONDS, VARIANT_CONCURRENCY,
// TRANSFORMER, LOG_LEVEL, COMPONENTS_{PROMPT,WRITER},
// PROVIDER__<name>__CLIENT / PROVIDER__<name>__OPTIONS_JSON
func EnvOverlay(environ []string) (Config, error) {
	var over Config
	// -1 表示未设置，以便 Merge 区分"未覆盖"和"显式设置为 0"。
	over.MaxRetries = -1
	prov := map[string]Provider{}
	for _, kv := range environ {
		if !strings.HasPrefix(kv, "TREELATE_") {
			continue
		}
		eq := strings.IndexByte(kv, '=')
		if eq <= len("TREELATE_") {
			continue
		}
		key := kv[:eq]
		val := kv[eq+1:]
		nk := strings.TrimPrefix(key, "TREELATE_")
		switch nk {
		case "TARGETS":
			if val != "" {
				over.Targets = splitComma(val)
			}
		case "EXCLUDE":
			if val != "" {
				over.Exclude = splitComma(val)
			}
		case "MAX_CHUNK_BYTES":
			if v, err := atoi(val); err == nil {
				over.MaxChunkBytes = v
			}
		case "MAX_RETRIES":
			if v, err := atoi(val); err == nil {
				over.MaxRetries = v
			}
		case "RETRY_BACKOFF_MS":
			if v, err := atoi(val); err == nil {
				over.RetryBackoffMS = v
			}
		case "CHUNK_TIMEOUT_SECONDS":
			if v, err := atoi(val); err == nil {
				over.ChunkTimeoutSeconds = v
			}
		case "DOC_TIMEOUT_SECONDS":
			if v, err := atoi(val); err == nil {
				over.DocTimeoutSeconds = v
			}
		case "VARIANT_CONCURRENCY":
			if v, err := atoi(val); err == nil {
				over.VariantConcurrency = v
			}
		case "TRANSFORMER":
			over.Transformer = strings.TrimSpace(val)
		case "LOG_LEVEL":
			over.Logging.Level = strings.TrimSpace(val)
		case "COMPONENTS_PROMPT":
			over.Components.Prompt = strings.TrimSpace(val)
		case "COMPONENTS_WRITER":
			over.Components.Writer = strings.TrimSpace(val)
		default:
			if strings.HasPrefix(nk, "PROVIDER__") {
				parts := strings.Split(nk, "__")
				if len(parts) >= 3 {
					name := strings.TrimSpace(parts[1])
					field := strings.Join(parts[2:], "__")
					p := prov[name]
					changed := false
					switch field {
					case "CLIENT":
						if tv := strings.TrimSpace(val); tv != "" {
							p.Client = tv
							changed = true
						}
					case "OPTIONS_JSON":
						// 原样 JSON；空值视为未设置，避免清空现有配置
						if strings.TrimSpace(val) != "" {
							p.Options = json.RawMessage(val)
							changed = true
						}
					}
					if changed {
						prov[name] = p
					}
				}
			}
		}
	}
	if len(prov) > 0 {
		over.Provider = prov
	}
	return over, nil
}

func cloneStrings(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}

func cloneRaw(in json.RawMessage) json.RawMessage {
	if len(in) == 0 {
		return nil
	}
	out := make([]byte, len(in))
	copy(out, in)
	return out
}

func splitComma(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := parts[:0]
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func atoi(s string) (int, error) {
	return strconv.Atoi(strings.TrimSpace(s))
}
