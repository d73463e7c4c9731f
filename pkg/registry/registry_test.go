package registry

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

// 工厂齐备：四通道、一提示、一写出
func TestRegistryPopulated(t *testing.T) {
	for _, name := range []string{"openai", "gemini", "mock", "flaky"} {
		require.NotNil(t, Transformer[name], "通道 %s 缺失", name)
	}
	require.NotNil(t, PromptBuilder["translate"])
	require.NotNil(t, Writer["fs"])
}

// 离线工厂可构造（零配置默认）
func TestOfflineFactories(t *testing.T) {
	tr, err := Transformer["mock"](nil)
	require.NoError(t, err)
	require.NotNil(t, tr)

	tr, err = Transformer["flaky"](json.RawMessage(`{"fail_first":1}`))
	require.NoError(t, err)
	require.NotNil(t, tr)

	pb, err := PromptBuilder["translate"](json.RawMessage(`{}`))
	require.NoError(t, err)
	require.NotNil(t, pb)

	wopts, err := json.Marshal(map[string]string{"output_dir": t.TempDir()})
	require.NoError(t, err)
	w, err := Writer["fs"](wopts)
	require.NoError(t, err)
	require.NotNil(t, w)
}

// 严格 Options：未知字段拒绝
func TestStrictOptions(t *testing.T) {
	_, err := Transformer["mock"](json.RawMessage(`{"mode":"echo","bogus":1}`))
	require.Error(t, err)

	_, err = Writer["fs"](json.RawMessage(`{"nope":true}`))
	require.Error(t, err)
}

// 必填校验穿透工厂
func TestFactoryValidation(t *testing.T) {
	_, err := Transformer["openai"](json.RawMessage(`{"api_key":"k"}`))
	require.Error(t, err, "缺 model 应拒绝")

	_, err = Transformer["gemini"](json.RawMessage(`{"model":"g"}`))
	require.Error(t, err, "缺密钥应拒绝")
}
