package recovery

import (
	"regexp"
	"strings"
)

// 修复启发式（级联第 5 步）。顺序固定：
// 去闭合符前的尾逗号 → 裸键加引号 → 补奇数引号 → 补缺失闭合符 → 行间补逗号。
// 只做字符级整形，不解释语义；能否成形由其后的严格解析裁决。

var (
	trailingCommaRe = regexp.MustCompile(`,(\s*[}\]])`)
	bareKeyRe       = regexp.MustCompile(`([{,]\s*)([A-Za-z_][A-Za-z0-9_\-]*)\s*:`)
)

// RepairJSON 对近似 JSON 文本施加全部修复启发式。
func RepairJSON(text string) string {
	t := trailingCommaRe.ReplaceAllString(text, "$1")
	t = bareKeyRe.ReplaceAllString(t, `$1"$2":`)
	t = closeOddQuotes(t)
	t = balanceClosers(t)
	t = insertMissingCommas(t)
	return t
}

// closeOddQuotes: 行内未转义引号为奇数时在行尾补一个（末行兜底到文档尾）。
func closeOddQuotes(text string) string {
	lines := strings.Split(text, "\n")
	for i, l := range lines {
		if countUnescapedQuotes(l)%2 == 1 {
			lines[i] = l + `"`
		}
	}
	return strings.Join(lines, "\n")
}

func countUnescapedQuotes(s string) int {
	n := 0
	esc := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if esc {
			esc = false
			continue
		}
		switch c {
		case '\\':
			esc = true
		case '"':
			n++
		}
	}
	return n
}

// balanceClosers: 在字符串之外统计未闭合的 {/[，按 LIFO 追加缺失闭合符。
func balanceClosers(text string) string {
	var opens []byte
	inStr := false
	esc := false
	for i := 0; i < len(text); i++ {
		c := text[i]
		if inStr {
			switch {
			case esc:
				esc = false
			case c == '\\':
				esc = true
			case c == '"':
				inStr = false
			}
			continue
		}
		switch c {
		case '"':
			inStr = true
		case '{', '[':
			opens = append(opens, c)
		case '}':
			if len(opens) > 0 && opens[len(opens)-1] == '{' {
				opens = opens[:len(opens)-1]
			}
		case ']':
			if len(opens) > 0 && opens[len(opens)-1] == '[' {
				opens = opens[:len(opens)-1]
			}
		}
	}
	if len(opens) == 0 {
		return text
	}
	var sb strings.Builder
	sb.WriteString(text)
	for i := len(opens) - 1; i >= 0; i-- {
		if opens[i] == '{' {
			sb.WriteByte('}')
		} else {
			sb.WriteByte(']')
		}
	}
	return sb.String()
}

// insertMissingCommas: 相邻两行都像兄弟条目/元素时在前行行尾补逗号。
// 启发式：闭合符后接键行、闭合符后接开启符、字面量后接字面量/开启符。
func insertMissingCommas(text string) string {
	lines := strings.Split(text, "\n")
	for i := 0; i+1 < len(lines); i++ {
		prev := strings.TrimRight(lines[i], " \t")
		next := strings.TrimLeft(lines[i+1], " \t")
		if prev == "" || next == "" {
			continue
		}
		if needsComma(prev, next) {
			lines[i] = prev + ","
		}
	}
	return strings.Join(lines, "\n")
}

func needsComma(prev, next string) bool {
	last := prev[len(prev)-1]
	switch last {
	case ',', '{', '[', ':':
		return false
	}
	prevCloser := last == '}' || last == ']'
	prevLiteral := last == '"' || endsWithBareLiteral(prev)
	nextKey := strings.HasPrefix(next, `"`) && strings.Contains(next, ":")
	nextOpener := next[0] == '{' || next[0] == '['
	nextLiteral := next[0] == '"' || startsWithBareLiteral(next)
	if next[0] == '}' || next[0] == ']' {
		return false
	}
	switch {
	case prevCloser && (nextKey || nextOpener):
		return true
	case prevLiteral && (nextLiteral || nextOpener || nextKey):
		return true
	}
	return false
}

func endsWithBareLiteral(s string) bool {
	fields := strings.FieldsFunc(s, func(r rune) bool { return r == ' ' || r == '\t' || r == ':' })
	if len(fields) == 0 {
		return false
	}
	return isBareLiteral(fields[len(fields)-1])
}

func startsWithBareLiteral(s string) bool {
	end := 0
	for end < len(s) && s[end] != ',' && s[end] != ' ' && s[end] != '\t' {
		end++
	}
	return isBareLiteral(s[:end])
}

func isBareLiteral(tok string) bool {
	switch tok {
	case "true", "false", "null":
		return true
	}
	if tok == "" {
		return false
	}
	for i := 0; i < len(tok); i++ {
		c := tok[i]
		if (c < '0' || c > '9') && c != '.' && c != '-' && c != '+' && c != 'e' && c != 'E' {
			return false
		}
	}
	return true
}
