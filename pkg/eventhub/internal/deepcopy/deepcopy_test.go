package deepcopy

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type tag string

type point struct{ X int }

func TestSanitize(t *testing.T) {
	fn := func() {}
	tests := []struct {
		name string
		in   any
		want any
		ok   bool
	}{
		{"nil", nil, nil, true},
		{"int", 3, 3, true},
		{"named string", tag("a"), tag("a"), true},
		{"int slice", []int{1, 2}, []int{1, 2}, true},
		{"nil int slice", []int(nil), []int(nil), true},
		{"bytes", []byte("hi"), []byte("hi"), true},
		{"float map", map[string]float64{"a": 1.5}, map[string]float64{"a": 1.5}, true},
		{"nested typed", map[string][]string{"k": {"v"}}, map[string][]string{"k": {"v"}}, true},
		{"array", [2]int{1, 2}, [2]int{1, 2}, true},
		{"any slice drops items", []any{1, fn, "x"}, []any{1, "x"}, true},
		{"typed maps of any", []map[string]any{{"a": 1}}, []map[string]any{{"a": 1}}, true},
		{"int keys", map[int]string{1: "a"}, nil, false},
		{"struct", point{X: 1}, nil, false},
		{"pointer", &point{}, nil, false},
		{"func", fn, nil, false},
		{"chan", make(chan int), nil, false},
		{"typed with func", []func(){fn}, nil, false},
		{"typed map with pointer", map[string]any{"p": &point{}}, map[string]any{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Sanitize(tt.in)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestClone_Detached(t *testing.T) {
	ids := []int{1, 2}
	nested := map[string]map[string]int{"a": {"n": 1}}
	in := map[string]any{"ids": ids, "nested": nested}

	out := CloneMap(in)
	ids[0] = 99
	nested["a"]["n"] = 99

	assert.Equal(t, []int{1, 2}, out["ids"])
	assert.Equal(t, map[string]map[string]int{"a": {"n": 1}}, out["nested"])
}

func TestClone_SharesUnsupported(t *testing.T) {
	p := &point{X: 1}
	out := CloneMap(map[string]any{"p": p, "n": 1})

	assert.Same(t, p, out["p"])
	assert.Equal(t, 1, out["n"])
	assert.Same(t, p, Clone(p))
}

func TestNilMaps(t *testing.T) {
	assert.Nil(t, SanitizeMap(nil))
	assert.Nil(t, CloneMap(nil))
}
