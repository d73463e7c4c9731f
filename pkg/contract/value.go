package contract

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
)

// Kind: Value 的标签。
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindArray
	KindObject
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	default:
		return "invalid"
	}
}

// Member: 对象成员（键 + 值），切片序即插入序。
type Member struct {
	Key string
	Val Value
}

// Value: 递归和类型 {Null, Bool, Number, String, Array, Object}。
// 约束：
// - Object 键唯一，插入序有语义（序列化/分块/对齐均按原序）；
// - Number 统一为 float64（与 JSON 语义一致）；
// - 零值即 Null。
type Value struct {
	Kind Kind
	Bool bool
	Num  float64
	Str  string
	Arr  []Value
	Obj  []Member
}

// 构造器（纯函数）。
func Null() Value               { return Value{Kind: KindNull} }
func Boolean(b bool) Value      { return Value{Kind: KindBool, Bool: b} }
func Number(f float64) Value    { return Value{Kind: KindNumber, Num: f} }
func String(s string) Value     { return Value{Kind: KindString, Str: s} }
func Array(vs ...Value) Value   { return Value{Kind: KindArray, Arr: vs} }
func Object(ms ...Member) Value { return Value{Kind: KindObject, Obj: ms} }

// IsScalar: 非容器即标量（Null 亦视为标量）。
func (v Value) IsScalar() bool { return v.Kind != KindArray && v.Kind != KindObject }

// Get: 对象按键查值；非对象或键不存在返回 (zero, false)。
func (v Value) Get(key string) (Value, bool) {
	if v.Kind != KindObject {
		return Value{}, false
	}
	for _, m := range v.Obj {
		if m.Key == key {
			return m.Val, true
		}
	}
	return Value{}, false
}

// Set: 对象按键写值；已存在则原位覆盖（保持插入序），否则追加。
// 非对象为 no-op（调用方负责 Kind 检查）。
func (v *Value) Set(key string, val Value) {
	if v.Kind != KindObject {
		return
	}
	for i := range v.Obj {
		if v.Obj[i].Key == key {
			v.Obj[i].Val = val
			return
		}
	}
	v.Obj = append(v.Obj, Member{Key: key, Val: val})
}

// Keys: 对象键（插入序）；非对象返回 nil。
func (v Value) Keys() []string {
	if v.Kind != KindObject {
		return nil
	}
	out := make([]string, len(v.Obj))
	for i, m := range v.Obj {
		out[i] = m.Key
	}
	return out
}

// Clone: 深拷贝（容器逐层复制，标量按值）。
func (v Value) Clone() Value {
	switch v.Kind {
	case KindArray:
		arr := make([]Value, len(v.Arr))
		for i, e := range v.Arr {
			arr[i] = e.Clone()
		}
		return Value{Kind: KindArray, Arr: arr}
	case KindObject:
		obj := make([]Member, len(v.Obj))
		for i, m := range v.Obj {
			obj[i] = Member{Key: m.Key, Val: m.Val.Clone()}
		}
		return Value{Kind: KindObject, Obj: obj}
	default:
		return v
	}
}

// Equal: 结构相等（对象比较含键序；Number 按精确值）。
func (v Value) Equal(o Value) bool {
	if v.Kind != o.Kind {
		return false
	}
	switch v.Kind {
	case KindNull:
		return true
	case KindBool:
		return v.Bool == o.Bool
	case KindNumber:
		return v.Num == o.Num
	case KindString:
		return v.Str == o.Str
	case KindArray:
		if len(v.Arr) != len(o.Arr) {
			return false
		}
		for i := range v.Arr {
			if !v.Arr[i].Equal(o.Arr[i]) {
				return false
			}
		}
		return true
	case KindObject:
		if len(v.Obj) != len(o.Obj) {
			return false
		}
		for i := range v.Obj {
			if v.Obj[i].Key != o.Obj[i].Key || !v.Obj[i].Val.Equal(o.Obj[i].Val) {
				return false
			}
		}
		return true
	}
	return false
}

// MarshalJSON: 紧凑序列化，对象按插入序输出。
// 分块器以该输出的字节长度作为尺寸估算，故不得引入多余空白。
func (v Value) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := writeJSON(&buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeJSON(buf *bytes.Buffer, v Value) error {
	switch v.Kind {
	case KindNull:
		buf.WriteString("null")
	case KindBool:
		buf.WriteString(strconv.FormatBool(v.Bool))
	case KindNumber:
		b, err := json.Marshal(v.Num)
		if err != nil {
			return err
		}
		buf.Write(b)
	case KindString:
		b, err := json.Marshal(v.Str)
		if err != nil {
			return err
		}
		buf.Write(b)
	case KindArray:
		buf.WriteByte('[')
		for i, e := range v.Arr {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeJSON(buf, e); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case KindObject:
		buf.WriteByte('{')
		for i, m := range v.Obj {
			if i > 0 {
				buf.WriteByte(',')
			}
			kb, err := json.Marshal(m.Key)
			if err != nil {
				return err
			}
			buf.Write(kb)
			buf.WriteByte(':')
			if err := writeJSON(buf, m.Val); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	default:
		return fmt.Errorf("marshal: invalid kind %d", v.Kind)
	}
	return nil
}

// ApproxBytes: 紧凑序列化的字节长度（分块预算用）。
func (v Value) ApproxBytes() int {
	b, err := v.MarshalJSON()
	if err != nil {
		return 0
	}
	return len(b)
}

// UnmarshalJSON: 基于 token 流解析，保留对象键序。
// 标准库 map 解码会丢失键序，故手工驱动 Decoder。
func (v *Value) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	parsed, err := readValue(dec)
	if err != nil {
		return err
	}
	// 拒绝尾随内容
	if _, err := dec.Token(); err != io.EOF {
		return errors.New("value: trailing data after document")
	}
	*v = parsed
	return nil
}

// ParseJSON: 便捷入口（文档读入一次/作业）。
func ParseJSON(data []byte) (Value, error) {
	var v Value
	if err := v.UnmarshalJSON(data); err != nil {
		return Value{}, err
	}
	return v, nil
}

func readValue(dec *json.Decoder) (Value, error) {
	tok, err := dec.Token()
	if err != nil {
		return Value{}, err
	}
	return readFromToken(dec, tok)
}

func readFromToken(dec *json.Decoder, tok json.Token) (Value, error) {
	switch t := tok.(type) {
	case nil:
		return Null(), nil
	case bool:
		return Boolean(t), nil
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return Value{}, err
		}
		return Number(f), nil
	case string:
		return String(t), nil
	case json.Delim:
		switch t {
		case '[':
			arr := []Value{}
			for dec.More() {
				e, err := readValue(dec)
				if err != nil {
					return Value{}, err
				}
				arr = append(arr, e)
			}
			if _, err := dec.Token(); err != nil { // ']'
				return Value{}, err
			}
			return Value{Kind: KindArray, Arr: arr}, nil
		case '{':
			obj := []Member{}
			seen := map[string]struct{}{}
			for dec.More() {
				kt, err := dec.Token()
				if err != nil {
					return Value{}, err
				}
				key, ok := kt.(string)
				if !ok {
					return Value{}, fmt.Errorf("value: non-string key %v", kt)
				}
				if _, dup := seen[key]; dup {
					return Value{}, fmt.Errorf("value: duplicate key %q", key)
				}
				seen[key] = struct{}{}
				val, err := readValue(dec)
				if err != nil {
					return Value{}, err
				}
				obj = append(obj, Member{Key: key, Val: val})
			}
			if _, err := dec.Token(); err != nil { // '}'
				return Value{}, err
			}
			return Value{Kind: KindObject, Obj: obj}, nil
		}
	}
	return Value{}, fmt.Errorf("value: unexpected token %v", tok)
}
