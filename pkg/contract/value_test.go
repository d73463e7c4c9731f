package contract

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// 键序保留：解析→序列化 字节恒等
func TestOrderPreservingRoundTrip(t *testing.T) {
	cases := []string{
		`{"z":1,"a":2,"m":3}`,
		`{"b":{"y":1,"x":2},"a":[{"k":1,"j":2}]}`,
		`[1,"two",true,null,{"k":"v"}]`,
		`{"s":"","e":{},"l":[]}`,
	}
	for _, src := range cases {
		v, err := ParseJSON([]byte(src))
		if err != nil {
			t.Fatalf("解析 %s 失败: %v", src, err)
		}
		out, err := json.Marshal(v)
		if err != nil {
			t.Fatalf("序列化失败: %v", err)
		}
		if string(out) != src {
			t.Fatalf("往返不恒等: %s → %s", src, out)
		}
	}
}

// 重复键拒绝
func TestParseDuplicateKey(t *testing.T) {
	if _, err := ParseJSON([]byte(`{"a":1,"a":2}`)); err == nil {
		t.Fatalf("重复键应拒绝")
	}
}

// 尾随内容拒绝
func TestParseTrailingData(t *testing.T) {
	if _, err := ParseJSON([]byte(`{"a":1} extra`)); err == nil {
		t.Fatalf("尾随内容应拒绝")
	}
}

// Get/Set 保持插入序
func TestGetSet(t *testing.T) {
	v := Object(
		Member{Key: "a", Val: Number(1)},
		Member{Key: "b", Val: Number(2)},
	)
	v.Set("a", Number(10))
	v.Set("c", Number(3))
	if got := v.Keys(); !cmp.Equal(got, []string{"a", "b", "c"}) {
		t.Fatalf("键序不符: %v", got)
	}
	if a, ok := v.Get("a"); !ok || a.Num != 10 {
		t.Fatalf("原位覆盖失败: %+v", a)
	}
	if _, ok := v.Get("missing"); ok {
		t.Fatalf("缺键应返回 false")
	}
}

// Clone 深拷贝隔离
func TestCloneIsolation(t *testing.T) {
	v, _ := ParseJSON([]byte(`{"a":{"b":[1]}}`))
	c := v.Clone()
	a, _ := c.Get("a")
	a.Set("b", String("mutated"))
	c.Set("a", a)
	orig, _ := v.Get("a")
	b, _ := orig.Get("b")
	if b.Kind != KindArray {
		t.Fatalf("克隆泄漏到原值: %+v", v)
	}
}

// Equal 含键序；Number 精确比较
func TestEqual(t *testing.T) {
	a, _ := ParseJSON([]byte(`{"x":1,"y":2}`))
	b, _ := ParseJSON([]byte(`{"y":2,"x":1}`))
	if a.Equal(b) {
		t.Fatalf("键序不同不应相等")
	}
	if !a.Equal(a.Clone()) {
		t.Fatalf("克隆应相等")
	}
}

// ApproxBytes 与紧凑序列化一致
func TestApproxBytes(t *testing.T) {
	v, _ := ParseJSON([]byte(`{"a":"xy","b":[1,2]}`))
	out, _ := json.Marshal(v)
	if v.ApproxBytes() != len(out) {
		t.Fatalf("尺寸估算 %d != 序列化长度 %d", v.ApproxBytes(), len(out))
	}
}

// 配额启发式：大小写无关的关键词命中
func TestLooksLikeQuota(t *testing.T) {
	hits := []string{
		"Rate Limit exceeded",
		"HTTP 429 Too Many Requests",
		"RESOURCE EXHAUSTED: quota",
		"billing hard limit reached",
	}
	for _, m := range hits {
		if !LooksLikeQuota(m) {
			t.Fatalf("%q 应判为配额类", m)
		}
	}
	if LooksLikeQuota("connection refused") {
		t.Fatalf("普通网络错误不应判为配额类")
	}
}

// ExclusionSet: 全等匹配、确定性路径输出
func TestExclusionSet(t *testing.T) {
	s := NewExclusionSet([]string{"b", "a", "", "a"})
	if !s.Has("a") || s.Has("a.b") {
		t.Fatalf("匹配应为全等: %+v", s)
	}
	if got := s.Paths(); !cmp.Equal(got, []string{"a", "b"}) {
		t.Fatalf("路径应升序去重: %v", got)
	}
	var nilSet ExclusionSet
	if nilSet.Has("x") || nilSet.Paths() != nil {
		t.Fatalf("nil 集合应安全")
	}
}
