package align

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"treelate/pkg/contract"
)

func mustParse(t *testing.T, src string) contract.Value {
	t.Helper()
	v, err := contract.ParseJSON([]byte(src))
	if err != nil {
		t.Fatalf("样例 JSON 解析失败: %v", err)
	}
	return v
}

// 形状不变量：输出键集合逐层等于基准
func TestAlignShapeInvariant(t *testing.T) {
	base := mustParse(t, `{"a":"x","b":{"c":"y","d":"z"}}`)
	cand := mustParse(t, `{"a":"X","b":{"c":"Y","ghost":"?"},"extra":1}`)
	got := Align(base, cand)
	want := mustParse(t, `{"a":"X","b":{"c":"Y","d":"z"}}`)
	if !got.Equal(want) {
		t.Fatalf("对齐不符:\n%s", cmp.Diff(want, got))
	}
}

// 幂等：Align(base, Align(base, cand)) == Align(base, cand)
func TestAlignIdempotent(t *testing.T) {
	base := mustParse(t, `{"a":"x","b":[1,2],"c":{"d":null}}`)
	cand := mustParse(t, `{"a":"X","b":"not array","c":{"e":"?"}}`)
	once := Align(base, cand)
	twice := Align(base, once)
	if !once.Equal(twice) {
		t.Fatalf("对齐不幂等:\n%s", cmp.Diff(once, twice))
	}
	if got := Align(base, base); !got.Equal(base) {
		t.Fatalf("自对齐应等于基准:\n%s", cmp.Diff(base, got))
	}
}

// 数组：候选同为数组则整体采用，否则回退基准
func TestAlignArray(t *testing.T) {
	base := mustParse(t, `[1,2,3]`)
	if got := Align(base, mustParse(t, `["a"]`)); len(got.Arr) != 1 {
		t.Fatalf("同形数组应整体采用: %+v", got)
	}
	if got := Align(base, contract.String("oops")); !got.Equal(base) {
		t.Fatalf("异形候选应回退基准: %+v", got)
	}
}

// 候选缺键沿用基准；候选与基准完全无交集时输出即基准
func TestAlignMissingKeys(t *testing.T) {
	base := mustParse(t, `{"a":"x","b":"y"}`)
	got := Align(base, mustParse(t, `{"z":"?"}`))
	if !got.Equal(base) {
		t.Fatalf("无交集候选应回退基准: %+v", got)
	}
}

// 标量基准：候选存在即采用（翻译即覆盖）
func TestAlignScalar(t *testing.T) {
	got := Align(contract.String("hello"), contract.String("bonjour"))
	if got.Str != "bonjour" {
		t.Fatalf("标量应采用候选: %+v", got)
	}
	// 标量位出现容器也采用（上游合并已保证地址定向）
	got = Align(contract.Null(), contract.Boolean(true))
	if got.Kind != contract.KindBool {
		t.Fatalf("null 基准应采用候选: %+v", got)
	}
}
