// Package notation 实现紧凑行式交换格式（编码/解码）。
//
// 语法（线级契约，见 decode 的严格模式）：
//   - 标量成员一行：`key,value`；
//   - 对象成员：`key,`（无值）+ 下一缩进层的嵌套块；
//   - 数组成员：`key,` + 下一缩进层逐元素 `- elem`；
//   - 容器元素：独行 `-` + 再深一层的嵌套块；
//   - 空容器内联：`{}` / `[]`；
//   - 字符串仅在含分隔符/换行/引号/首尾空白时引号化（\\、\"、\n 转义）；
//   - 标量根渲染为单行；裸串会与数组项标记或空行混淆时强制引号化；
//   - 缩进仅用空格，制表符缩进视为格式错误。
package notation

import (
	"encoding/json"
	"strings"

	"treelate/pkg/contract"
)

// 缩进单位（编码侧固定；解码接受任意一致的空格加深）。
const indentUnit = "  "

// Encode 将 Value 渲染为 Notation 文本。
// 顶层对象/数组从 0 缩进开始；标量根与空根容器渲染为单行。
func Encode(v contract.Value) (string, error) {
	var sb strings.Builder
	switch {
	case v.Kind == contract.KindObject && len(v.Obj) > 0:
		encodeObject(&sb, v, 0)
	case v.Kind == contract.KindArray && len(v.Arr) > 0:
		encodeArray(&sb, v, 0)
	default:
		sb.WriteString(rootScalarText(v))
		sb.WriteByte('\n')
	}
	return sb.String(), nil
}

// rootScalarText 渲染根级标量行。根行没有 key 前缀，裸串若与数组项标记
// （`-`、`- ` 前缀）或空行同形则强制引号化以消除歧义。
func rootScalarText(v contract.Value) string {
	if v.Kind == contract.KindString {
		if s := v.Str; s == "" || s == "-" || strings.HasPrefix(s, "- ") {
			return quote(s)
		}
	}
	return scalarText(v)
}

func encodeObject(sb *strings.Builder, v contract.Value, depth int) {
	for _, m := range v.Obj {
		writeIndent(sb, depth)
		sb.WriteString(quoteIfNeeded(m.Key))
		sb.WriteByte(',')
		switch {
		case m.Val.Kind == contract.KindObject && len(m.Val.Obj) > 0:
			sb.WriteByte('\n')
			encodeObject(sb, m.Val, depth+1)
		case m.Val.Kind == contract.KindArray && len(m.Val.Arr) > 0:
			sb.WriteByte('\n')
			encodeArray(sb, m.Val, depth+1)
		default:
			sb.WriteString(scalarText(m.Val))
			sb.WriteByte('\n')
		}
	}
}

func encodeArray(sb *strings.Builder, v contract.Value, depth int) {
	for _, e := range v.Arr {
		writeIndent(sb, depth)
		sb.WriteByte('-')
		switch {
		case e.Kind == contract.KindObject && len(e.Obj) > 0:
			sb.WriteByte('\n')
			encodeObject(sb, e, depth+1)
		case e.Kind == contract.KindArray && len(e.Arr) > 0:
			sb.WriteByte('\n')
			encodeArray(sb, e, depth+1)
		default:
			sb.WriteByte(' ')
			sb.WriteString(scalarText(e))
			sb.WriteByte('\n')
		}
	}
}

func writeIndent(sb *strings.Builder, depth int) {
	for i := 0; i < depth; i++ {
		sb.WriteString(indentUnit)
	}
}

// scalarText 渲染标量（含空容器内联标记）。
func scalarText(v contract.Value) string {
	switch v.Kind {
	case contract.KindNull:
		return "null"
	case contract.KindBool:
		if v.Bool {
			return "true"
		}
		return "false"
	case contract.KindNumber:
		b, _ := json.Marshal(v.Num)
		return string(b)
	case contract.KindString:
		return quoteIfNeeded(v.Str)
	case contract.KindObject:
		return "{}"
	case contract.KindArray:
		return "[]"
	}
	return ""
}

// quoteIfNeeded: 含分隔符/换行/引号/首尾空白的字符串引号化，其余裸写。
func quoteIfNeeded(s string) string {
	if !needsQuote(s) {
		return s
	}
	return quote(s)
}

func quote(s string) string {
	var sb strings.Builder
	sb.Grow(len(s) + 2)
	sb.WriteByte('"')
	for _, r := range s {
		switch r {
		case '\\':
			sb.WriteString(`\\`)
		case '"':
			sb.WriteString(`\"`)
		case '\n':
			sb.WriteString(`\n`)
		default:
			sb.WriteRune(r)
		}
	}
	sb.WriteByte('"')
	return sb.String()
}

func needsQuote(s string) bool {
	if s == "" {
		return false
	}
	if strings.ContainsAny(s, ",\n\"") {
		return true
	}
	return s != strings.TrimSpace(s)
}
