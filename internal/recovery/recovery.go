// Package recovery 将外部通道返回的任意文本矫正为结构化 Value。
//
// 策略按序尝试，首个成功者即为结果；全部失败时返回携带完整尝试轨迹的
// ErrRepairExhausted（§ 设计：每级为"返回值或错误"的函数，短路迭代，
// 聚合诊断，不用异常式控制流）。
package recovery

import (
	"fmt"
	"strings"

	"treelate/internal/notation"
	"treelate/pkg/contract"
)

// Attempt: 单级尝试记录（诊断用）。Err 为 nil 表示该级成功。
type Attempt struct {
	Stage string
	Err   error
}

// ExhaustedError: 级联全部失败；Trail 保留每级的失败原因。
type ExhaustedError struct {
	Trail []Attempt
}

func (e *ExhaustedError) Error() string {
	var sb strings.Builder
	sb.WriteString("repair exhausted after ")
	sb.WriteString(fmt.Sprintf("%d stages", len(e.Trail)))
	for _, a := range e.Trail {
		sb.WriteString("; ")
		sb.WriteString(a.Stage)
		sb.WriteString(": ")
		sb.WriteString(a.Err.Error())
	}
	return sb.String()
}

func (e *ExhaustedError) Unwrap() error { return contract.ErrRepairExhausted }

type stage struct {
	name string
	fn   func(pre string) (contract.Value, error)
}

// Parse 对返回文本执行恢复级联。
// 返回值附带成功级名称（观测用）；失败返回 *ExhaustedError。
func Parse(text string) (contract.Value, string, error) {
	// 预处理：剥离围栏代码块包装并去首尾空白（级联第 1 步，产物供后续各级共用）。
	pre := strings.TrimSpace(stripFence(text))

	stages := []stage{
		{"notation_strict", func(t string) (contract.Value, error) {
			return notation.Decode(t)
		}},
		{"notation_unbraced", decodeUnbraced},
		{"json_bracket", parseBracketed},
		{"json_repair", parseRepaired},
		{"json_salvage", parseSalvaged},
		{"notation_detrail", decodeDetrailed},
		{"literal", func(t string) (contract.Value, error) {
			return ParseLiteral(RepairJSON(isolateBrackets(t)))
		}},
	}

	trail := make([]Attempt, 0, len(stages))
	for _, s := range stages {
		v, err := s.fn(pre)
		if err == nil {
			trail = append(trail, Attempt{Stage: s.name})
			return v, s.name, nil
		}
		trail = append(trail, Attempt{Stage: s.name, Err: err})
	}
	return contract.Value{}, "", &ExhaustedError{Trail: trail}
}

// stripFence 剥离一层 Markdown 围栏代码块（```lang ... ```）。
func stripFence(text string) string {
	t := strings.TrimSpace(text)
	if !strings.HasPrefix(t, "```") {
		return text
	}
	nl := strings.IndexByte(t, '\n')
	if nl < 0 {
		return text
	}
	body := t[nl+1:]
	if i := strings.LastIndex(body, "```"); i >= 0 {
		body = body[:i]
	}
	return body
}

// decodeUnbraced: 去除恰好一对外包大括号后再严格解码
// （部分模型把 Notation 输出包进 JSON 风格的花括号里）。
func decodeUnbraced(pre string) (contract.Value, error) {
	t := strings.TrimSpace(pre)
	if len(t) < 2 || t[0] != '{' || t[len(t)-1] != '}' {
		return contract.Value{}, &contract.ParseError{Stage: "unbrace", Msg: "no enclosing brace pair"}
	}
	return notation.Decode(strings.Trim(t[1:len(t)-1], "\n"))
}

// isolateBrackets 截取首个括号对到其末次闭合之间的子串，丢弃前后注释性文字。
// 对象与数组两种括号并存时，以先出现者为准。
func isolateBrackets(pre string) string {
	ob := strings.IndexByte(pre, '{')
	oa := strings.IndexByte(pre, '[')
	var open, closer byte
	switch {
	case ob < 0 && oa < 0:
		return pre
	case oa < 0 || (ob >= 0 && ob < oa):
		open, closer = '{', '}'
	default:
		open, closer = '[', ']'
	}
	start := strings.IndexByte(pre, open)
	end := strings.LastIndexByte(pre, closer)
	if end <= start {
		return pre[start:]
	}
	return pre[start : end+1]
}

func parseBracketed(pre string) (contract.Value, error) {
	return contract.ParseJSON([]byte(isolateBrackets(pre)))
}

func parseRepaired(pre string) (contract.Value, error) {
	return contract.ParseJSON([]byte(RepairJSON(isolateBrackets(pre))))
}

// parseSalvaged 将文本截断到最后一个闭合括号，抢救形式完好的前缀。
func parseSalvaged(pre string) (contract.Value, error) {
	t := isolateBrackets(pre)
	end := strings.LastIndexAny(t, "}]")
	if end < 0 {
		return contract.Value{}, &contract.ParseError{Stage: "salvage", Msg: "no closing bracket to salvage"}
	}
	return contract.ParseJSON([]byte(RepairJSON(t[:end+1])))
}

// decodeDetrailed 去掉行尾多余分隔符后重试严格 Notation 解码
// （处理混用两种格式、在 Notation 行尾粘了 JSON 式逗号的输出）。
func decodeDetrailed(pre string) (contract.Value, error) {
	lines := strings.Split(pre, "\n")
	for i, l := range lines {
		t := strings.TrimRight(l, " \t")
		// 保护合法的悬挂宿主行（"key,"）：只有键值行（≥2 个分隔符）
		// 或数组元素行可以剥尾逗号。
		isElem := strings.HasPrefix(strings.TrimLeft(t, " \t"), "- ")
		for strings.HasSuffix(t, ",") && (strings.Count(t, ",") > 1 || isElem) {
			t = t[:len(t)-1]
		}
		lines[i] = t
	}
	return notation.Decode(strings.Join(lines, "\n"))
}
