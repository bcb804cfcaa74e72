package engine

import "testing"

func TestTagExpr_Match(t *testing.T) {
	cases := []struct {
		expr string
		tags map[string]bool
		want bool
	}{
		{"", map[string]bool{}, true},
		{"@smoke", map[string]bool{"smoke": true}, true},
		{"@smoke", map[string]bool{"slow": true}, false},
		{"~@wip", map[string]bool{"smoke": true}, true},
		{"~@wip", map[string]bool{"wip": true}, false},
		{"@a && @b", map[string]bool{"a": true, "b": true}, true},
		{"@a && @b", map[string]bool{"a": true}, false},
		{"@a || @b", map[string]bool{"b": true}, true},
		{"@a || @b", map[string]bool{"c": true}, false},
	}
	for _, c := range cases {
		got := ParseTagExpr(c.expr).Match(c.tags)
		if got != c.want {
			t.Errorf("ParseTagExpr(%q).Match(%v) = %v, want %v", c.expr, c.tags, got, c.want)
		}
	}
}
