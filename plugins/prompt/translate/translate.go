package translate

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"text/template"

	"treelate/pkg/contract"
)

// Options 为文档翻译 PromptBuilder 的最小配置。
// - InlineSystemTemplate / SystemTemplatePath: system 提示模板（二选一，均为空时使用内置默认模板）。
type Options struct {
	InlineSystemTemplate string `json:"inline_system_template"`
	SystemTemplatePath   string `json:"system_template_path"`
	// 术语对照表（可选）：若提供则自动拼接进 system 提示尾部。
	InlineGlossary string `json:"inline_glossary"`
	GlossaryPath   string `json:"glossary_path"`
}

// Builder: 以已编码载荷构造 ChatPrompt（system+user）。
// 运行期不做 I/O；模板在构造期解析。
type Builder struct {
	sysT *template.Template
	glos string
}

// New 创建文档翻译 PromptBuilder。
func New(opts *Options) (*Builder, error) {
	o := Options{}
	if opts != nil {
		o = *opts
	}
	src := defaultSystemTemplate
	if o.InlineSystemTemplate != "" {
		src = o.InlineSystemTemplate
	} else if o.SystemTemplatePath != "" {
		b, err := os.ReadFile(o.SystemTemplatePath)
		if err != nil {
			return nil, fmt.Errorf("system template read: %w", err)
		}
		src = string(b)
	}
	tpl, err := template.New("system").Parse(src)
	if err != nil {
		return nil, fmt.Errorf("system template parse: %w", err)
	}
	var glos string
	if o.InlineGlossary != "" {
		glos = o.InlineGlossary
	} else if o.GlossaryPath != "" {
		b, err := os.ReadFile(o.GlossaryPath)
		if err != nil {
			return nil, fmt.Errorf("glossary read: %w", err)
		}
		glos = string(b)
	}
	return &Builder{sysT: tpl, glos: glos}, nil
}

// Build 基于载荷与目标构造 ChatPrompt。
// excluded 以"禁止改动"清单的形式写入 user 消息（不展开、不解释）。
func (b *Builder) Build(ctx context.Context, payload string, target string, excluded contract.ExclusionSet) (contract.Prompt, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	if payload == "" {
		return nil, fmt.Errorf("prompt: %w: empty payload", contract.ErrInvalidInput)
	}
	if target == "" {
		return nil, fmt.Errorf("prompt: %w: empty target", contract.ErrInvalidInput)
	}

	var sysBuf bytes.Buffer
	if err := b.sysT.Execute(&sysBuf, struct{ Target string }{Target: target}); err != nil {
		return nil, fmt.Errorf("system render: %w", contract.ErrInvalidInput)
	}
	sys := sysBuf.String()
	if b.glos != "" {
		var sb bytes.Buffer
		sb.Grow(len(sys) + len(b.glos) + 32)
		sb.WriteString(sys)
		sb.WriteString("\n\n<glossary>\n")
		sb.WriteString(b.glos)
		if b.glos[len(b.glos)-1] != '\n' {
			sb.WriteByte('\n')
		}
		sb.WriteString("</glossary>")
		sys = sb.String()
	}

	var uw bytes.Buffer
	uw.Grow(len(payload) + 512)
	uw.WriteString("Translate the document below into ")
	uw.WriteString(target)
	uw.WriteString(".\n\nIMPORTANT OUTPUT RULES:\n")
	uw.WriteString("1) Keep the exact line-oriented format of the input: one `key,value` pair per line, nested blocks indented, array items prefixed with `- `.\n")
	uw.WriteString("2) Translate VALUES only. Never translate, rename, reorder or drop keys.\n")
	uw.WriteString("3) Return ONLY the translated document (no markdown, no code fences, no commentary).\n")
	if paths := excluded.Paths(); len(paths) > 0 {
		uw.WriteString("4) Do NOT alter the values at these paths:\n")
		for _, p := range paths {
			uw.WriteString("   - ")
			uw.WriteString(p)
			uw.WriteByte('\n')
		}
	}
	uw.WriteString("\n<document>\n")
	uw.WriteString(payload)
	if payload[len(payload)-1] != '\n' {
		uw.WriteByte('\n')
	}
	uw.WriteString("</document>\n")

	return contract.ChatPrompt([]contract.Message{
		{Role: "system", Content: sys},
		{Role: "user", Content: uw.String()},
	}), nil
}

// 静态接口断言
var _ contract.PromptBuilder = (*Builder)(nil)

// 默认 system 模板。
const defaultSystemTemplate = `
## Role Definition
You are a professional localization engine. You translate structured documents
while preserving their exact shape: every key, every nesting level, every array
position must survive untouched.

## I/O Protocol (Very Important)
- The user message contains a <document> block in a compact line-oriented
  notation: one "key,value" pair per line, nested blocks indented, array items
  prefixed with "- ".
- Translate only the values into {{.Target}}. Keys, indentation and markers are
  structural and MUST be returned byte-for-byte as given.
- If a do-not-alter list is present, return those values exactly as received.
- Return ONLY the document in the same notation; no fences, no commentary.
`
