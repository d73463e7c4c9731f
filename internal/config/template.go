package config

import "encoding/json"

// DefaultTemplateConfig 返回一个"可运行"的默认配置模板：
// - 使用 mock 通道（本地/离线调试友好）；
// - Writer 输出到 ./out 目录；
// - 选项给出安全中性默认值，键全部列出。
func DefaultTemplateConfig() Config {
	d := Defaults()
	cfg := Config{
		Targets:             []string{"fr"},
		Exclude:             []string{},
		MaxChunkBytes:       d.MaxChunkBytes,
		MaxRetries:          d.MaxRetries,
		RetryBackoffMS:      d.RetryBackoffMS,
		ChunkTimeoutSeconds: d.ChunkTimeoutSeconds,
		DocTimeoutSeconds:   d.DocTimeoutSeconds,
		VariantConcurrency:  d.VariantConcurrency,
		Logging:             Logging{Level: "info"},
		Components:          d.Components,
		Transformer:         "mock",
		Provider: map[string]Provider{
			"mock": {
				Client:  "mock",
				Options: json.RawMessage(`{"mode":"echo","canned":""}`),
			},
			"openai": {
				Client: "openai",
				Options: json.RawMessage(`{
  "base_url": "",
  "endpoint_path": "",
  "model": "",
  "api_key": "",
  "api_key_env": "OPENAI_API_KEY",
  "timeout_seconds": 60,
  "temperature": null,
  "max_tokens": 0,
  "disable_default_auth": false,
  "extra_headers": {}
}`),
			},
			"gemini": {
				Client: "gemini",
				Options: json.RawMessage(`{
  "model": "",
  "api_key": "",
  "api_key_env": "GEMINI_API_KEY",
  "temperature": null
}`),
			},
		},
	}
	cfg.Options.Prompt = json.RawMessage(`{
  "inline_system_template": "",
  "system_template_path": "",
  "inline_glossary": "",
  "glossary_path": ""
}`)
	cfg.Options.Writer = json.RawMessage(`{
  "output_dir": "out",
  "atomic": true,
  "flat": true,
  "perm_file": 0,
  "perm_dir": 0,
  "buf_size": 65536
}`)
	return cfg
}
