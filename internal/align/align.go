// Package align 将候选 Value 投影到基准 Value 的形状上。
//
// 不变量：输出在每一层嵌套的键集合与基准完全一致——既不增键也不丢键；
// Align 是全函数，任何输入组合都有结果，绝不报错。
package align

import (
	"treelate/pkg/contract"
)

// Align 递归投影 candidate 到 base 的形状。
// 规则：
//   - base 为数组：candidate 也是数组则整体采用，否则回退 base（不做逐元素合并）；
//   - base 为对象：输出恰为 base 的键；candidate 定义的键递归对齐，
//     缺失的键沿用 base；candidate 多出的键丢弃；
//   - base 为标量/null：candidate 存在即采用。
func Align(base, candidate contract.Value) contract.Value {
	switch base.Kind {
	case contract.KindArray:
		if candidate.Kind == contract.KindArray {
			return candidate
		}
		return base
	case contract.KindObject:
		out := make([]contract.Member, len(base.Obj))
		for i, m := range base.Obj {
			if cv, ok := candidate.Get(m.Key); ok {
				out[i] = contract.Member{Key: m.Key, Val: Align(m.Val, cv)}
			} else {
				out[i] = m
			}
		}
		return contract.Value{Kind: contract.KindObject, Obj: out}
	default:
		return candidate
	}
}
