package chunk

import (
	"treelate/pkg/contract"
)

// Merge 将各块结果按地址回写到 original 的深拷贝上。
// 性质：
//   - 从深拷贝出发，未被任何地址触及的成员（即排除项）原样保留；
//   - 形状不符时退化为保守行为，绝不失败；
//   - 地址按分区不变量互不相交，结果顺序无关；若出现重叠（理论不可达），
//     后写胜出——防御性行为，不作为依赖。
func Merge(results []contract.Result, original contract.Value) contract.Value {
	out := original.Clone()
	for _, r := range results {
		if r.Address == "" {
			// 标量根整文档替换
			out = r.Value.Clone()
			continue
		}
		if s, _, ok := ParseRange(r.Address); ok {
			mergeRange(&out, s, r.Value)
			continue
		}
		mergeKeys(&out, r.Address, r.Value)
	}
	return out
}

func mergeKeys(out *contract.Value, addr string, got contract.Value) {
	if out.Kind != contract.KindObject {
		return // 地址与根形状不符：保留原值
	}
	for _, key := range splitAddress(addr) {
		v, ok := got.Get(key)
		if !ok {
			continue // 结果缺键：该键保留原值
		}
		if _, has := out.Get(key); !has {
			continue // 结果多出的键不得进入输出
		}
		out.Set(key, v)
	}
}

func mergeRange(out *contract.Value, start int, got contract.Value) {
	if out.Kind != contract.KindArray {
		return
	}
	if got.Kind == contract.KindArray {
		for i, e := range got.Arr {
			idx := start + i
			if idx >= len(out.Arr) {
				break
			}
			out.Arr[idx] = e
		}
		return
	}
	// 非数组结果的防御回退：整值落在区间起点
	if start < len(out.Arr) {
		out.Arr[start] = got
	}
}

func splitAddress(addr string) []string {
	var keys []string
	startIdx := 0
	for i := 0; i <= len(addr); i++ {
		if i == len(addr) || addr[i] == ',' {
			keys = append(keys, addr[startIdx:i])
			startIdx = i + 1
		}
	}
	return keys
}
