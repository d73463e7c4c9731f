// Package chunk 将根 Value 切分为尺寸有界、可寻址的块，并按地址重组。
//
// 分块仅作用于顶层：更深层的超大值整体成为一个超限块（既定限制）。
// 地址即分区：非排除的顶层成员恰好出现在一个块中，无重复。
package chunk

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"treelate/pkg/contract"
)

// Split 按 maxBytes 切分 root 的顶层成员。
// 约束：
//   - 对象根按原键序滑动累积，地址为逗号连接的键列表；
//   - 数组根按元素累积，地址为闭区间 "[start-end]"；
//   - 排除成员不传输；命中排除时先封口当前块，排除键绝不进入任何地址；
//   - 块永不为空：单个超限成员独占一块；
//   - 尺寸估算 = 候选载荷紧凑序列化的字节长度。
func Split(root contract.Value, maxBytes int, excluded contract.ExclusionSet) ([]contract.Chunk, error) {
	if maxBytes <= 0 {
		return nil, fmt.Errorf("chunk: %w: max bytes must be > 0", contract.ErrInvalidInput)
	}
	switch root.Kind {
	case contract.KindObject:
		return splitObject(root, maxBytes, excluded)
	case contract.KindArray:
		return splitArray(root, maxBytes, excluded)
	default:
		// 标量根：整文档单块，空地址。
		return []contract.Chunk{{Address: "", Payload: root, ApproxBytes: root.ApproxBytes()}}, nil
	}
}

func splitObject(root contract.Value, maxBytes int, excluded contract.ExclusionSet) ([]contract.Chunk, error) {
	var chunks []contract.Chunk
	var cur []contract.Member
	curBytes := 0 // 成员序列化长度之和（不含包装符）

	flush := func() {
		if len(cur) == 0 {
			return
		}
		keys := make([]string, len(cur))
		for i, m := range cur {
			keys[i] = m.Key
		}
		payload := contract.Object(cur...)
		chunks = append(chunks, contract.Chunk{
			Address:     strings.Join(keys, ","),
			Payload:     payload,
			ApproxBytes: payload.ApproxBytes(),
		})
		cur = nil
		curBytes = 0
	}

	for _, m := range root.Obj {
		if strings.ContainsRune(m.Key, ',') {
			// 地址以逗号连接，含逗号的键无法寻址
			return nil, fmt.Errorf("chunk: %w: key %q contains the address separator", contract.ErrInvalidInput, m.Key)
		}
		if excluded.Has(m.Key) {
			flush()
			continue
		}
		msize := memberBytes(m)
		// 候选载荷大小 = {} + 已有成员 + 分隔逗号 + 新成员
		if len(cur) > 0 && 2+curBytes+len(cur)+msize > maxBytes {
			flush()
		}
		cur = append(cur, m)
		curBytes += msize
	}
	flush()
	return chunks, nil
}

func splitArray(root contract.Value, maxBytes int, excluded contract.ExclusionSet) ([]contract.Chunk, error) {
	var chunks []contract.Chunk
	var cur []contract.Value
	curBytes := 0
	start := 0

	flush := func(end int) {
		if len(cur) == 0 {
			return
		}
		payload := contract.Value{Kind: contract.KindArray, Arr: cur}
		chunks = append(chunks, contract.Chunk{
			Address:     fmt.Sprintf("[%d-%d]", start, end),
			Payload:     payload,
			ApproxBytes: payload.ApproxBytes(),
		})
		cur = nil
		curBytes = 0
	}

	for i, e := range root.Arr {
		if excluded.Has(strconv.Itoa(i)) {
			flush(i - 1)
			continue
		}
		esize := e.ApproxBytes()
		if len(cur) > 0 && 2+curBytes+len(cur)+esize > maxBytes {
			flush(i - 1)
		}
		if len(cur) == 0 {
			start = i
		}
		cur = append(cur, e)
		curBytes += esize
	}
	flush(len(root.Arr) - 1)
	return chunks, nil
}

// memberBytes: 单成员的序列化开销（"key":value）。
func memberBytes(m contract.Member) int {
	kb, _ := json.Marshal(m.Key)
	return len(kb) + 1 + m.Val.ApproxBytes()
}

// ParseRange 解析数组块地址 "[start-end]"。
func ParseRange(addr string) (start, end int, ok bool) {
	if len(addr) < 5 || addr[0] != '[' || addr[len(addr)-1] != ']' {
		return 0, 0, false
	}
	body := addr[1 : len(addr)-1]
	dash := strings.IndexByte(body, '-')
	if dash <= 0 {
		return 0, 0, false
	}
	s, err1 := strconv.Atoi(body[:dash])
	e, err2 := strconv.Atoi(body[dash+1:])
	if err1 != nil || err2 != nil || e < s || s < 0 {
		return 0, 0, false
	}
	return s, e, true
}

// IsRange 判断地址是否为数组区间形态。
func IsRange(addr string) bool {
	_, _, ok := ParseRange(addr)
	return ok
}
