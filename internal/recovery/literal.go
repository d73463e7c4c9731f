package recovery

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf16"

	"treelate/pkg/contract"
)

// 级联末级：严格的结构字面量解析器。
// 历史实现把最佳修复文本当作源语言字面量求值，存在注入风险；
// 这里以纯解析替代：接受单引号串、裸标识符键与 Python 风格
// True/False/None，除此之外的任何内容都是终局失败，绝不执行文本。

// ParseLiteral 解析一个通用结构字面量（对象/数组/标量）。
func ParseLiteral(text string) (contract.Value, error) {
	p := &litParser{src: text}
	p.skipSpace()
	v, err := p.value()
	if err != nil {
		return contract.Value{}, err
	}
	p.skipSpace()
	if p.pos != len(p.src) {
		return contract.Value{}, p.errf("trailing content at offset %d", p.pos)
	}
	return v, nil
}

type litParser struct {
	src string
	pos int
}

func (p *litParser) errf(format string, args ...any) error {
	return &contract.ParseError{Stage: "literal", Msg: fmt.Sprintf(format, args...)}
}

func (p *litParser) skipSpace() {
	for p.pos < len(p.src) {
		switch p.src[p.pos] {
		case ' ', '\t', '\n', '\r':
			p.pos++
		default:
			return
		}
	}
}

func (p *litParser) value() (contract.Value, error) {
	if p.pos >= len(p.src) {
		return contract.Value{}, p.errf("unexpected end of input")
	}
	switch c := p.src[p.pos]; {
	case c == '{':
		return p.object()
	case c == '[':
		return p.array()
	case c == '"' || c == '\'':
		s, err := p.quoted()
		if err != nil {
			return contract.Value{}, err
		}
		return contract.String(s), nil
	default:
		return p.bare()
	}
}

func (p *litParser) object() (contract.Value, error) {
	p.pos++ // '{'
	obj := contract.Object()
	for {
		p.skipSpace()
		if p.pos >= len(p.src) {
			return contract.Value{}, p.errf("unterminated object")
		}
		if p.src[p.pos] == '}' {
			p.pos++
			return obj, nil
		}
		key, err := p.key()
		if err != nil {
			return contract.Value{}, err
		}
		p.skipSpace()
		if p.pos >= len(p.src) || p.src[p.pos] != ':' {
			return contract.Value{}, p.errf("expected ':' after key %q", key)
		}
		p.pos++
		p.skipSpace()
		val, err := p.value()
		if err != nil {
			return contract.Value{}, err
		}
		if _, dup := obj.Get(key); dup {
			return contract.Value{}, p.errf("duplicate key %q", key)
		}
		obj.Set(key, val)
		p.skipSpace()
		if p.pos < len(p.src) && p.src[p.pos] == ',' {
			p.pos++
			continue // 允许尾逗号：下一轮在 '}' 处正常收束
		}
		p.skipSpace()
		if p.pos >= len(p.src) || p.src[p.pos] != '}' {
			return contract.Value{}, p.errf("expected ',' or '}' in object")
		}
	}
}

func (p *litParser) array() (contract.Value, error) {
	p.pos++ // '['
	arr := contract.Array()
	for {
		p.skipSpace()
		if p.pos >= len(p.src) {
			return contract.Value{}, p.errf("unterminated array")
		}
		if p.src[p.pos] == ']' {
			p.pos++
			return arr, nil
		}
		e, err := p.value()
		if err != nil {
			return contract.Value{}, err
		}
		arr.Arr = append(arr.Arr, e)
		p.skipSpace()
		if p.pos < len(p.src) && p.src[p.pos] == ',' {
			p.pos++
			continue
		}
		p.skipSpace()
		if p.pos >= len(p.src) || p.src[p.pos] != ']' {
			return contract.Value{}, p.errf("expected ',' or ']' in array")
		}
	}
}

// key: 引号串或裸标识符。
func (p *litParser) key() (string, error) {
	if c := p.src[p.pos]; c == '"' || c == '\'' {
		return p.quoted()
	}
	start := p.pos
	for p.pos < len(p.src) && isIdentChar(p.src[p.pos]) {
		p.pos++
	}
	if p.pos == start {
		return "", p.errf("invalid key at offset %d", start)
	}
	return p.src[start:p.pos], nil
}

func isIdentChar(c byte) bool {
	return c == '_' || c == '-' || (c >= '0' && c <= '9') ||
		(c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

// quoted: 单引号或双引号串，支持 \\ \' \" \n \t \r \uXXXX（含代理对）。
func (p *litParser) quoted() (string, error) {
	quote := p.src[p.pos]
	p.pos++
	var sb strings.Builder
	for p.pos < len(p.src) {
		c := p.src[p.pos]
		switch c {
		case quote:
			p.pos++
			return sb.String(), nil
		case '\\':
			if p.pos+1 >= len(p.src) {
				return "", p.errf("dangling escape")
			}
			e := p.src[p.pos+1]
			switch e {
			case '\\', '\'', '"', '/':
				sb.WriteByte(e)
				p.pos += 2
			case 'n':
				sb.WriteByte('\n')
				p.pos += 2
			case 't':
				sb.WriteByte('\t')
				p.pos += 2
			case 'r':
				sb.WriteByte('\r')
				p.pos += 2
			case 'u':
				r, n, err := p.unicodeEscape()
				if err != nil {
					return "", err
				}
				sb.WriteRune(r)
				p.pos += n
			default:
				return "", p.errf("unknown escape \\%c", e)
			}
		default:
			sb.WriteByte(c)
			p.pos++
		}
	}
	return "", p.errf("unterminated string")
}

func (p *litParser) unicodeEscape() (rune, int, error) {
	if p.pos+6 > len(p.src) {
		return 0, 0, p.errf("truncated \\u escape")
	}
	hi, err := strconv.ParseUint(p.src[p.pos+2:p.pos+6], 16, 32)
	if err != nil {
		return 0, 0, p.errf("invalid \\u escape")
	}
	r := rune(hi)
	n := 6
	if utf16.IsSurrogate(r) && p.pos+12 <= len(p.src) && p.src[p.pos+6] == '\\' && p.src[p.pos+7] == 'u' {
		if lo, err2 := strconv.ParseUint(p.src[p.pos+8:p.pos+12], 16, 32); err2 == nil {
			if dec := utf16.DecodeRune(r, rune(lo)); dec != 0xFFFD {
				return dec, 12, nil
			}
		}
	}
	return r, n, nil
}

// bare: 布尔/空/数字（含 Python 风格大写变体）。
func (p *litParser) bare() (contract.Value, error) {
	start := p.pos
	for p.pos < len(p.src) {
		c := p.src[p.pos]
		if c == ',' || c == '}' || c == ']' || c == ':' || c == ' ' || c == '\t' || c == '\n' || c == '\r' {
			break
		}
		p.pos++
	}
	tok := p.src[start:p.pos]
	switch tok {
	case "null", "None":
		return contract.Null(), nil
	case "true", "True":
		return contract.Boolean(true), nil
	case "false", "False":
		return contract.Boolean(false), nil
	}
	if f, err := strconv.ParseFloat(tok, 64); err == nil {
		return contract.Number(f), nil
	}
	return contract.Value{}, p.errf("unrecognized literal %q", tok)
}
