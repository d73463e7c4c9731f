// Package registry 提供显式、零反射的插件工厂注册表。
// 工厂接收原样 JSON Options，严格解码（拒绝未知字段）。
package registry

import (
	"bytes"
	"context"
	"encoding/json"

	"treelate/pkg/contract"
	ppt "treelate/plugins/prompt/translate"
	flk "treelate/plugins/transformer/flaky"
	gmi "treelate/plugins/transformer/gemini"
	mck "treelate/plugins/transformer/mock"
	oai "treelate/plugins/transformer/openai"
	wfs "treelate/plugins/writer/filesystem"
)

// strictUnmarshal: 使用 DisallowUnknownFields 严格解码，拒绝未知字段。
func strictUnmarshal(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		// 保持零值（默认选项）
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// NewTransformer 工厂签名：接收原样 JSON Options。
type NewTransformer func(raw json.RawMessage) (contract.Transformer, error)

// NewPromptBuilder 工厂签名：接收原样 JSON Options。
type NewPromptBuilder func(raw json.RawMessage) (contract.PromptBuilder, error)

// NewWriter 工厂签名：接收原样 JSON Options。
type NewWriter func(raw json.RawMessage) (contract.Writer, error)

// Transformer 工厂注册表。
var Transformer = map[string]NewTransformer{
	// openai: OpenAI 兼容 Chat Completions 通道
	"openai": func(raw json.RawMessage) (contract.Transformer, error) {
		var opts oai.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return oai.New(&opts)
	},
	// gemini: 官方 SDK 通道
	"gemini": func(raw json.RawMessage) (contract.Transformer, error) {
		var opts gmi.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return gmi.New(context.Background(), &opts)
	},
	// mock: 离线确定性通道（回显/围栏/固定文本）
	"mock": func(raw json.RawMessage) (contract.Transformer, error) {
		var opts mck.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return mck.New(&opts)
	},
	// flaky: 故障注入通道（演练重试与恢复）
	"flaky": func(raw json.RawMessage) (contract.Transformer, error) {
		var opts flk.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return flk.New(&opts)
	},
}

// PromptBuilder 工厂注册表。
var PromptBuilder = map[string]NewPromptBuilder{
	// translate: 文档翻译 PromptBuilder（system+user Chat）
	"translate": func(raw json.RawMessage) (contract.PromptBuilder, error) {
		var opts ppt.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return ppt.New(&opts)
	},
}

// Writer 工厂注册表。
var Writer = map[string]NewWriter{
	// fs: 文件系统 Writer（默认原子替换）
	"fs": func(raw json.RawMessage) (contract.Writer, error) {
		var opts wfs.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return wfs.New(&opts)
	},
}
