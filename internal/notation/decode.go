package notation

import (
	"strconv"
	"strings"

	"treelate/pkg/contract"
)

// 帧的容器种类：首个子行到达前悬而未决。
type frameKind uint8

const (
	kindUndet frameKind = iota
	kindObj
	kindArr
)

// frame: 缩进栈帧。pendKey/pendElem 表示"已读到宿主行、值尚未出现"的悬挂状态：
// 后继更深的行开启嵌套块，否则按空字符串落定。
type frame struct {
	indent   int
	kind     frameKind
	obj      []contract.Member
	arr      []contract.Value
	seen     map[string]struct{}
	pendKey  string
	hasPend  bool
	pendElem bool
}

func (f *frame) pending() bool { return f.hasPend || f.pendElem }

// Decode 严格解析 Notation 文本。
// 失败即停：首个无法解析的行返回带阶段标签的 ParseError，不做任何猜测；
// 宽松化由上层恢复级联负责。
func Decode(text string) (contract.Value, error) {
	lines := strings.Split(text, "\n")

	// 标量根：唯一非空、非缩进且非数组标记的行。
	if v, ok := scalarRoot(lines); ok {
		return v, nil
	}

	root := &frame{indent: 0}
	stack := []*frame{root}

	for ln, rawLine := range lines {
		line := strings.TrimRight(rawLine, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		indent, content := splitIndent(line)
		if content[0] == '\t' {
			return contract.Value{}, perr(ln+1, "tab in indentation")
		}
		top := stack[len(stack)-1]

		if top.pending() && indent > top.indent {
			// 悬挂宿主的嵌套块开始
			top = &frame{indent: indent}
			stack = append(stack, top)
		} else {
			if top.pending() {
				resolvePendingEmpty(top)
			}
			for indent < top.indent {
				// 被回缩越过的悬挂位先按空字符串落定
				if top.pending() {
					resolvePendingEmpty(top)
				}
				if err := popAttach(&stack, ln+1); err != nil {
					return contract.Value{}, err
				}
				top = stack[len(stack)-1]
			}
			if indent != top.indent {
				return contract.Value{}, perr(ln+1, "indentation does not match any open block")
			}
		}

		if err := consumeLine(top, content, ln+1); err != nil {
			return contract.Value{}, err
		}
	}

	// EOF：悬挂落定，全部弹栈
	for len(stack) > 1 {
		if top := stack[len(stack)-1]; top.pending() {
			resolvePendingEmpty(top)
		}
		if err := popAttach(&stack, len(lines)); err != nil {
			return contract.Value{}, err
		}
	}
	if root.pending() {
		resolvePendingEmpty(root)
	}
	if root.kind == kindUndet {
		return contract.Value{}, perr(0, "empty document")
	}
	return materialize(root), nil
}

// scalarRoot 按标量解析唯一的非空行。引号串（可含分隔符）与负数同为合法
// 标量根；数组项标记与结构符开头的行留给帧机处理或报错。
func scalarRoot(lines []string) (contract.Value, bool) {
	content := ""
	n := 0
	for _, l := range lines {
		t := strings.TrimRight(l, "\r")
		if strings.TrimSpace(t) == "" {
			continue
		}
		n++
		content = t
	}
	if n != 1 || content != strings.TrimLeft(content, " \t") {
		return contract.Value{}, false
	}
	if content == "-" || strings.HasPrefix(content, "- ") {
		return contract.Value{}, false
	}
	if c := content[0]; (c == '{' || c == '[' || c == '}' || c == ']') && content != "{}" && content != "[]" {
		return contract.Value{}, false
	}
	v, err := parseScalar(content, 1)
	if err != nil {
		return contract.Value{}, false
	}
	return v, true
}

// consumeLine 在帧内消费一行；行形态决定帧种类，冲突即失败。
func consumeLine(f *frame, content string, line int) error {
	if content == "-" || strings.HasPrefix(content, "- ") {
		if f.kind == kindObj {
			return perr(line, "array item in object context")
		}
		f.kind = kindArr
		if content == "-" {
			f.pendElem = true
			return nil
		}
		v, err := parseScalar(content[2:], line)
		if err != nil {
			return err
		}
		f.arr = append(f.arr, v)
		return nil
	}

	key, rest, err := splitKeyLine(content, line)
	if err != nil {
		return err
	}
	if f.kind == kindArr {
		return perr(line, "key line in array context")
	}
	f.kind = kindObj
	if f.seen == nil {
		f.seen = map[string]struct{}{}
	}
	if _, dup := f.seen[key]; dup {
		return perr(line, "duplicate key "+strconv.Quote(key))
	}
	f.seen[key] = struct{}{}
	if rest == "" {
		f.pendKey = key
		f.hasPend = true
		return nil
	}
	v, err := parseScalar(rest, line)
	if err != nil {
		return err
	}
	f.obj = append(f.obj, contract.Member{Key: key, Val: v})
	return nil
}

func resolvePendingEmpty(f *frame) {
	if f.hasPend {
		f.obj = append(f.obj, contract.Member{Key: f.pendKey, Val: contract.String("")})
		f.hasPend = false
		f.pendKey = ""
	}
	if f.pendElem {
		f.arr = append(f.arr, contract.String(""))
		f.pendElem = false
	}
}

// popAttach 弹出栈顶帧并挂接到父帧的悬挂位。
func popAttach(stack *[]*frame, line int) error {
	s := *stack
	child := s[len(s)-1]
	parent := s[len(s)-2]
	*stack = s[:len(s)-1]

	v := materialize(child)
	switch {
	case parent.hasPend:
		parent.obj = append(parent.obj, contract.Member{Key: parent.pendKey, Val: v})
		parent.hasPend = false
		parent.pendKey = ""
	case parent.pendElem:
		parent.arr = append(parent.arr, v)
		parent.pendElem = false
	default:
		return perr(line, "nested block without owner")
	}
	return nil
}

func materialize(f *frame) contract.Value {
	if f.kind == kindArr {
		return contract.Value{Kind: contract.KindArray, Arr: f.arr}
	}
	return contract.Value{Kind: contract.KindObject, Obj: f.obj}
}

// splitIndent 仅以空格计缩进；制表符不参与列计数，调用方按格式错误拒绝。
func splitIndent(line string) (int, string) {
	i := 0
	for i < len(line) && line[i] == ' ' {
		i++
	}
	return i, line[i:]
}

// splitKeyLine 在首个未引号化的分隔符处切分 key 与值文本。
func splitKeyLine(content string, line int) (key, rest string, err error) {
	if strings.HasPrefix(content, `"`) {
		k, n, uerr := unquote(content, line)
		if uerr != nil {
			return "", "", uerr
		}
		if n >= len(content) || content[n] != ',' {
			return "", "", perr(line, "missing separator after quoted key")
		}
		return k, content[n+1:], nil
	}
	if content[0] == '{' || content[0] == '[' || content[0] == '}' || content[0] == ']' {
		// 键位出现结构符：这是 JSON 而非本格式
		return "", "", perr(line, "structural character in key position")
	}
	idx := strings.IndexByte(content, ',')
	if idx < 0 {
		return "", "", perr(line, "missing separator")
	}
	return content[:idx], content[idx+1:], nil
}

// parseScalar 解析标量文本：引号串、null/bool、数字、空容器标记，余者为裸字符串。
func parseScalar(text string, line int) (contract.Value, error) {
	if strings.HasPrefix(text, `"`) {
		s, n, err := unquote(text, line)
		if err != nil {
			return contract.Value{}, err
		}
		if n != len(text) {
			return contract.Value{}, perr(line, "trailing content after quoted string")
		}
		return contract.String(s), nil
	}
	switch text {
	case "null":
		return contract.Null(), nil
	case "true":
		return contract.Boolean(true), nil
	case "false":
		return contract.Boolean(false), nil
	case "{}":
		return contract.Object(), nil
	case "[]":
		return contract.Array(), nil
	}
	if f, err := strconv.ParseFloat(text, 64); err == nil {
		return contract.Number(f), nil
	}
	if strings.ContainsRune(text, ',') {
		// 编码侧必然引号化含分隔符的字符串；裸值带分隔符即为行污染
		return contract.Value{}, perr(line, "unquoted separator in value")
	}
	return contract.String(text), nil
}

// unquote 解析自 s[0]=='"' 起的引号串，返回内容与消费的字节数。
func unquote(s string, line int) (string, int, error) {
	var sb strings.Builder
	i := 1
	for i < len(s) {
		c := s[i]
		switch c {
		case '\\':
			if i+1 >= len(s) {
				return "", 0, perr(line, "dangling escape")
			}
			switch s[i+1] {
			case '\\':
				sb.WriteByte('\\')
			case '"':
				sb.WriteByte('"')
			case 'n':
				sb.WriteByte('\n')
			default:
				return "", 0, perr(line, "unknown escape \\"+string(s[i+1]))
			}
			i += 2
		case '"':
			return sb.String(), i + 1, nil
		default:
			sb.WriteByte(c)
			i++
		}
	}
	return "", 0, perr(line, "unterminated quoted string")
}

func perr(line int, msg string) error {
	return &contract.ParseError{Stage: "notation", Line: line, Msg: msg}
}
