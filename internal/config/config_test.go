package config

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

// 解析完整配置（严格拒绝未知字段）
func TestLoadJSON(t *testing.T) {
	raw := []byte(`{
		"targets": ["fr","de"],
		"exclude": ["secret"],
		"max_chunk_bytes": 1024,
		"transformer": "mock",
		"provider": {"mock": {"client": "mock", "options": {"mode":"echo"}}}
	}`)
	cfg, err := LoadJSON("", raw)
	require.NoError(t, err)
	require.Equal(t, []string{"fr", "de"}, cfg.Targets)
	require.Equal(t, "mock", cfg.Transformer)
	require.Equal(t, "mock", cfg.Provider["mock"].Client)
}

// 未知字段拒绝
func TestLoadJSONUnknown(t *testing.T) {
	_, err := LoadJSON("", []byte(`{"unknown":1}`))
	require.Error(t, err)
}

// 无来源拒绝
func TestLoadJSONNoSource(t *testing.T) {
	_, err := LoadJSON("", nil)
	require.Error(t, err)
}

// 合并优先级：覆盖仅在显式提供时发生
func TestMerge(t *testing.T) {
	base := Defaults()
	base.Targets = []string{"fr"}
	base.Transformer = "mock"

	var over Config
	over.MaxRetries = -1 // 未覆盖
	over.MaxChunkBytes = 999
	over.Logging.Level = "debug"

	out := Merge(base, over)
	require.Equal(t, 999, out.MaxChunkBytes)
	require.Equal(t, base.MaxRetries, out.MaxRetries, "未覆盖时保留")
	require.Equal(t, "debug", out.Logging.Level)
	require.Equal(t, []string{"fr"}, out.Targets)

	// 显式 0 重试可覆盖
	over.MaxRetries = 0
	out = Merge(base, over)
	require.Equal(t, 0, out.MaxRetries)
}

// ENV 覆盖有限键集合
func TestEnvOverlay(t *testing.T) {
	env := []string{
		"TREELATE_TARGETS=fr, de",
		"TREELATE_MAX_CHUNK_BYTES=2048",
		"TREELATE_MAX_RETRIES=0",
		"TREELATE_TRANSFORMER=mock",
		"TREELATE_LOG_LEVEL=debug",
		"TREELATE_PROVIDER__mock__CLIENT=mock",
		"TREELATE_PROVIDER__mock__OPTIONS_JSON={\"mode\":\"echo\"}",
		"OTHER_IGNORED=1",
	}
	over, err := EnvOverlay(env)
	require.NoError(t, err)
	require.Equal(t, []string{"fr", "de"}, over.Targets)
	require.Equal(t, 2048, over.MaxChunkBytes)
	require.Equal(t, 0, over.MaxRetries)
	require.Equal(t, "mock", over.Transformer)
	require.Equal(t, "mock", over.Provider["mock"].Client)
	require.JSONEq(t, `{"mode":"echo"}`, string(over.Provider["mock"].Options))
}

// 校验：必填与边界
func TestValidate(t *testing.T) {
	cfg := Defaults()
	require.Error(t, Validate(cfg), "缺 targets")

	cfg.Targets = []string{"fr"}
	require.Error(t, Validate(cfg), "缺 transformer")

	cfg.Transformer = "mock"
	require.Error(t, Validate(cfg), "缺 provider")

	cfg.Provider = map[string]Provider{"mock": {Client: "mock"}}
	require.NoError(t, Validate(cfg))

	cfg.Provider["mock"] = Provider{Client: "nope"}
	require.Error(t, Validate(cfg), "未注册通道")
}

// 装配：mock 通道端到端构造
func TestAssemble(t *testing.T) {
	cfg := Defaults()
	cfg.Targets = []string{"fr"}
	cfg.Exclude = []string{"secret"}
	cfg.Transformer = "mock"
	cfg.Provider = map[string]Provider{"mock": {Client: "mock"}}
	wopts, err := json.Marshal(map[string]string{"output_dir": t.TempDir()})
	require.NoError(t, err)
	cfg.Options.Writer = wopts

	comp, set, w, err := Assemble(cfg)
	require.NoError(t, err)
	require.NotNil(t, comp.Prompt)
	require.NotNil(t, comp.Transformer)
	require.NotNil(t, w)
	require.Equal(t, cfg.MaxChunkBytes, set.MaxChunkBytes)
	require.True(t, set.Excluded.Has("secret"))
}

// 模板配置可直接通过校验与装配
func TestDefaultTemplateConfig(t *testing.T) {
	cfg := DefaultTemplateConfig()
	require.NoError(t, Validate(cfg))

	// 模板序列化后可再次严格解析
	data, err := json.Marshal(cfg)
	require.NoError(t, err)
	back, err := LoadJSON("", data)
	require.NoError(t, err)
	require.Equal(t, cfg.Transformer, back.Transformer)
}
