package chunk

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"treelate/pkg/contract"
)

// 地址定向覆盖；排除成员原样保留
func TestMergeDirectedOverwrite(t *testing.T) {
	original := mustParse(t, `{"a":"Hello","secret":"keep","b":{"c":"World"}}`)
	results := []contract.Result{
		{Address: "a", Value: mustParse(t, `{"a":"Bonjour"}`)},
		{Address: "b", Value: mustParse(t, `{"b":{"c":"Monde"}}`)},
	}
	got := Merge(results, original)
	want := mustParse(t, `{"a":"Bonjour","secret":"keep","b":{"c":"Monde"}}`)
	if !got.Equal(want) {
		t.Fatalf("合并不符:\n%s", cmp.Diff(want, got))
	}
}

// 原文档不被修改（深拷贝出发）
func TestMergeDoesNotMutateOriginal(t *testing.T) {
	original := mustParse(t, `{"a":"x"}`)
	_ = Merge([]contract.Result{{Address: "a", Value: mustParse(t, `{"a":"y"}`)}}, original)
	if a, _ := original.Get("a"); a.Str != "x" {
		t.Fatalf("原文档被修改: %+v", original)
	}
}

// 结果缺键保留原值；结果多出的键不进入输出
func TestMergeMissingAndExtraKeys(t *testing.T) {
	original := mustParse(t, `{"a":"x","b":"y"}`)
	results := []contract.Result{
		{Address: "a,b", Value: mustParse(t, `{"b":"Y","ghost":"?"}`)},
	}
	got := Merge(results, original)
	want := mustParse(t, `{"a":"x","b":"Y"}`)
	if !got.Equal(want) {
		t.Fatalf("合并不符:\n%s", cmp.Diff(want, got))
	}
}

// 数组区间按位覆盖；越界截断
func TestMergeRange(t *testing.T) {
	original := mustParse(t, `["a","b","c"]`)
	results := []contract.Result{
		{Address: "[1-2]", Value: mustParse(t, `["B","C","OVERFLOW"]`)},
	}
	got := Merge(results, original)
	want := mustParse(t, `["a","B","C"]`)
	if !got.Equal(want) {
		t.Fatalf("合并不符:\n%s", cmp.Diff(want, got))
	}
}

// 标量根：空地址整文档替换
func TestMergeScalarRoot(t *testing.T) {
	got := Merge([]contract.Result{{Address: "", Value: contract.String("bonjour")}}, contract.String("hello"))
	if got.Str != "bonjour" {
		t.Fatalf("标量根替换失败: %+v", got)
	}
}

// 形状不符的防御回退：不失败、保留原值
func TestMergeShapeMismatch(t *testing.T) {
	original := mustParse(t, `{"a":"x"}`)
	got := Merge([]contract.Result{{Address: "[0-1]", Value: mustParse(t, `["y"]`)}}, original)
	if !got.Equal(original) {
		t.Fatalf("形状不符时应保留原值: %+v", got)
	}
}

// 分块→合并 往返恒等（结果即载荷本身）
func TestSplitMergeIdentity(t *testing.T) {
	original := mustParse(t, `{"a":"Hello","b":{"c":"World"},"d":[1,2],"e":"tail"}`)
	chunks, err := Split(original, 24, nil)
	if err != nil {
		t.Fatalf("分块失败: %v", err)
	}
	if len(chunks) < 2 {
		t.Fatalf("用例应产生多块，实得 %d", len(chunks))
	}
	results := make([]contract.Result, len(chunks))
	for i, c := range chunks {
		results[i] = contract.Result{Address: c.Address, Value: c.Payload}
	}
	got := Merge(results, original)
	if !got.Equal(original) {
		t.Fatalf("恒等往返失败:\n%s", cmp.Diff(original, got))
	}
}
