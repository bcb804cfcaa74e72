package engine

import (
	"strings"

	"github.com/wingman-run/wingman/internal/model"
)

// TagExpr is a small boolean expression over `@name` tags: `@smoke`,
// `~@wip` (negation), `@a && @b`, `@a || @b` (spec.md §4.6 "tag filter
// expressions"). Operator precedence is `&&` over `||`; no parentheses.
type TagExpr struct {
	raw string
}

// ParseTagExpr compiles a tag filter expression. An empty expression matches
// everything.
func ParseTagExpr(expr string) TagExpr { return TagExpr{raw: strings.TrimSpace(expr)} }

// Match reports whether the given tag set satisfies the expression.
func (e TagExpr) Match(tags map[string]bool) bool {
	if e.raw == "" {
		return true
	}
	for _, orTerm := range strings.Split(e.raw, "||") {
		andTerms := strings.Split(orTerm, "&&")
		allTrue := true
		for _, term := range andTerms {
			term = strings.TrimSpace(term)
			if term == "" {
				continue
			}
			negate := strings.HasPrefix(term, "~")
			if negate {
				term = strings.TrimSpace(strings.TrimPrefix(term, "~"))
			}
			name := strings.TrimPrefix(term, "@")
			if tagName, _, hasValue := strings.Cut(name, "="); hasValue {
				name = tagName
			}
			present := tags[name]
			if present == negate {
				allTrue = false
				break
			}
		}
		if allTrue {
			return true
		}
	}
	return false
}

// tagSet flattens a feature's tags and a scenario's tags into one lookup
// set, as both are visible at the scenario level (spec.md §3 tag
// inheritance).
func tagSet(featureTags, scenarioTags []model.Tag) map[string]bool {
	set := map[string]bool{}
	for _, t := range featureTags {
		set[t.Name] = true
	}
	for _, t := range scenarioTags {
		set[t.Name] = true
	}
	return set
}
