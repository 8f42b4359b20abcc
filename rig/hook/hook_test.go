package hook

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type named struct {
	name     string
	provides []string
	needs    []string
}

func (n named) Provides() []string  { return n.provides }
func (n named) DependsOn() []string { return n.needs }

func names(hooks []any) []string {
	seq := make([]string, len(hooks))
	for i, h := range hooks {
		seq[i] = h.(named).name
	}
	return seq
}

func TestOrder(t *testing.T) {
	for _, tc := range []struct {
		name  string
		hooks []any
		want  []string
	}{
		{`empty`, nil, []string{}},
		{`independent`, []any{
			named{name: `a`}, named{name: `b`},
		}, []string{`a`, `b`}},
		{`dependency moves first`, []any{
			named{name: `www`, needs: []string{`metrics`}},
			named{name: `api`, provides: []string{`metrics`}},
		}, []string{`api`, `www`}},
		{`transitive`, []any{
			named{name: `c`, needs: []string{`b`}},
			named{name: `b`, provides: []string{`b`}, needs: []string{`a`}},
			named{name: `a`, provides: []string{`a`}},
		}, []string{`a`, `b`, `c`}},
		{`cycle`, []any{
			named{name: `x`, provides: []string{`x`}, needs: []string{`y`}},
			named{name: `y`, provides: []string{`y`}, needs: []string{`x`}},
		}, []string{`y`, `x`}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, names(Order(tc.hooks...)))
		})
	}
}
