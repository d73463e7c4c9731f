package contract

import "sort"

// Chunk: 文档顶层成员的一个有界切片。
// Address 是重组地址：对象根为逗号连接的键列表（"a,b,c"），
// 数组根为闭区间索引（"[start-end]"）；空串表示整文档（标量根）。
type Chunk struct {
	Address     string
	Payload     Value
	ApproxBytes int
}

// Result: 单块翻译产物（按地址回写）。
type Result struct {
	Address string
	Value   Value
}

// ExclusionSet: 精确匹配的路径集合。
// 语义：命中路径不参与分块传输、也永不被合并覆盖；
// 匹配只做全等，不做前缀展开（"a.b" 不隐含 "a.b.c"）。
type ExclusionSet map[string]struct{}

// NewExclusionSet 从路径切片构造（空白项忽略）。
func NewExclusionSet(paths []string) ExclusionSet {
	if len(paths) == 0 {
		return nil
	}
	s := make(ExclusionSet, len(paths))
	for _, p := range paths {
		if p != "" {
			s[p] = struct{}{}
		}
	}
	return s
}

// Has: 全等匹配。
func (s ExclusionSet) Has(path string) bool {
	if s == nil {
		return false
	}
	_, ok := s[path]
	return ok
}

// Paths: 升序路径列表（用于确定性的提示词与日志输出）。
func (s ExclusionSet) Paths() []string {
	if len(s) == 0 {
		return nil
	}
	out := make([]string, 0, len(s))
	for p := range s {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}
