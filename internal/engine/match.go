package engine

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/aymanbagabas/go-udiff"
	"github.com/pb33f/jsonpath"
	"github.com/xeipuuv/gojsonschema"
)

// MatchOutcome is the result of one `match <actual> <op> <expected>` step
// (spec.md §4.2). Diff is a unified-diff rendering of actual vs expected,
// attached to the scenario's failure message when Passed is false.
type MatchOutcome struct {
	Passed bool
	Path   string // path into the mismatching sub-value (spec.md §7)
	Diff   string
}

// Match evaluates op against actual/expected, per spec.md §4.2's operator
// list: ==, !=, contains, !contains, contains deep, contains only, within,
// !within, each of the above with an "each" prefix applying the base
// operator element-wise over a list actual.
func Match(op string, actual, expected any) (MatchOutcome, error) {
	op = strings.TrimSpace(op)
	each := false
	if strings.HasPrefix(op, "each ") {
		each = true
		op = strings.TrimSpace(strings.TrimPrefix(op, "each"))
	}

	if each {
		items, ok := actual.([]any)
		if !ok {
			return MatchOutcome{}, fmt.Errorf("each %s: actual is not a list", op)
		}
		for i, item := range items {
			out, err := matchOne(op, item, expected)
			if err != nil {
				return MatchOutcome{}, err
			}
			if !out.Passed {
				out.Path = fmt.Sprintf("[%d]%s", i, out.Path)
				return out, nil
			}
		}
		return MatchOutcome{Passed: true}, nil
	}
	return matchOne(op, actual, expected)
}

func matchOne(op string, actual, expected any) (MatchOutcome, error) {
	switch op {
	case "==":
		return equalsOutcome(actual, expected, true), nil
	case "!=":
		return equalsOutcome(actual, expected, false), nil
	case "contains":
		return containsOutcome(actual, expected, false), nil
	case "!contains":
		out := containsOutcome(actual, expected, false)
		return MatchOutcome{Passed: !out.Passed, Diff: out.Diff}, nil
	case "contains deep":
		return containsOutcome(actual, expected, true), nil
	case "contains only":
		return containsOnlyOutcome(actual, expected), nil
	case "within":
		return withinOutcome(actual, expected, true), nil
	case "!within":
		return withinOutcome(actual, expected, false), nil
	default:
		return MatchOutcome{}, fmt.Errorf("unknown match operator %q", op)
	}
}

func equalsOutcome(actual, expected any, wantEqual bool) MatchOutcome {
	eq := deepEqual(actual, expected)
	if eq == wantEqual {
		return MatchOutcome{Passed: true}
	}
	return MatchOutcome{Passed: false, Diff: renderDiff(actual, expected)}
}

func deepEqual(a, b any) bool {
	an, aok := asFloat(a)
	bn, bok := asFloat(b)
	if aok && bok {
		return an == bn
	}
	switch av := a.(type) {
	case map[string]any:
		bv, ok := b.(map[string]any)
		if !ok || len(av) != len(bv) {
			return false
		}
		for k, v := range av {
			bvv, ok := bv[k]
			if !ok || !deepEqual(v, bvv) {
				return false
			}
		}
		return true
	case []any:
		bv, ok := b.([]any)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !deepEqual(av[i], bv[i]) {
				return false
			}
		}
		return true
	default:
		return a == b
	}
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

// containsOutcome reports whether expected is a subset of actual: every
// key/element in expected is present in actual with a matching value. When
// deep is true, nested maps/lists are matched with the same contains
// semantics recursively rather than requiring exact equality.
func containsOutcome(actual, expected any, deep bool) MatchOutcome {
	switch ev := expected.(type) {
	case map[string]any:
		av, ok := actual.(map[string]any)
		if !ok {
			return MatchOutcome{Passed: false, Diff: renderDiff(actual, expected)}
		}
		keys := sortedKeys(ev)
		for _, k := range keys {
			avv, present := av[k]
			if !present {
				return MatchOutcome{Passed: false, Path: "." + k, Diff: fmt.Sprintf("missing key %q", k)}
			}
			if deep && isContainer(ev[k]) {
				sub := containsOutcome(avv, ev[k], true)
				if !sub.Passed {
					sub.Path = "." + k + sub.Path
					return sub
				}
				continue
			}
			if !deepEqual(avv, ev[k]) {
				return MatchOutcome{Passed: false, Path: "." + k, Diff: renderDiff(avv, ev[k])}
			}
		}
		return MatchOutcome{Passed: true}
	case []any:
		av, ok := actual.([]any)
		if !ok {
			return MatchOutcome{Passed: false, Diff: renderDiff(actual, expected)}
		}
		for i, want := range ev {
			found := false
			for _, have := range av {
				if deep && isContainer(want) {
					if containsOutcome(have, want, true).Passed {
						found = true
						break
					}
				} else if deepEqual(have, want) {
					found = true
					break
				}
			}
			if !found {
				return MatchOutcome{Passed: false, Path: fmt.Sprintf("[%d]", i), Diff: fmt.Sprintf("expected element %v not found", want)}
			}
		}
		return MatchOutcome{Passed: true}
	case string:
		av, ok := actual.(string)
		if !ok {
			return MatchOutcome{Passed: false, Diff: renderDiff(actual, expected)}
		}
		if strings.Contains(av, ev) {
			return MatchOutcome{Passed: true}
		}
		return MatchOutcome{Passed: false, Diff: fmt.Sprintf("%q does not contain %q", av, ev)}
	default:
		return equalsOutcome(actual, expected, true)
	}
}

func isContainer(v any) bool {
	switch v.(type) {
	case map[string]any, []any:
		return true
	default:
		return false
	}
}

// containsOnlyOutcome requires actual and expected to carry exactly the
// same set of keys/elements, order-independent for lists.
func containsOnlyOutcome(actual, expected any) MatchOutcome {
	switch ev := expected.(type) {
	case map[string]any:
		av, ok := actual.(map[string]any)
		if !ok || len(av) != len(ev) {
			return MatchOutcome{Passed: false, Diff: renderDiff(actual, expected)}
		}
		return containsOutcome(actual, expected, false)
	case []any:
		av, ok := actual.([]any)
		if !ok || len(av) != len(ev) {
			return MatchOutcome{Passed: false, Diff: renderDiff(actual, expected)}
		}
		return containsOutcome(actual, expected, false)
	default:
		return equalsOutcome(actual, expected, true)
	}
}

// withinOutcome matches karate's `match x within [a, b, c]`: actual must
// (or, negated, must not) equal one candidate in the expected list.
func withinOutcome(actual, expected any, want bool) MatchOutcome {
	candidates, ok := expected.([]any)
	if !ok {
		return MatchOutcome{Passed: false, Diff: "within: expected value must be a list"}
	}
	found := false
	for _, c := range candidates {
		if deepEqual(actual, c) {
			found = true
			break
		}
	}
	if found == want {
		return MatchOutcome{Passed: true}
	}
	return MatchOutcome{Passed: false, Diff: renderDiff(actual, expected)}
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// renderDiff renders a unified diff of the JSON forms of actual and
// expected, for a human-readable assertion failure message (spec.md §7).
func renderDiff(actual, expected any) string {
	a, _ := json.MarshalIndent(actual, "", "  ")
	b, _ := json.MarshalIndent(expected, "", "  ")
	return udiff.Unified("actual", "expected", string(a), string(b))
}

// MatchesSchema validates actual against a JSON-schema document given as
// expected (a genuine JSON Schema, not a karate-style type marker), using
// xeipuuv/gojsonschema. Used by the `match response == schema` form when
// the right-hand side looks like a schema document (carries "$schema" or
// "type" at the top level).
func MatchesSchema(actual any, schemaDoc map[string]any) (MatchOutcome, error) {
	schemaLoader := gojsonschema.NewGoLoader(schemaDoc)
	docLoader := gojsonschema.NewGoLoader(actual)
	result, err := gojsonschema.Validate(schemaLoader, docLoader)
	if err != nil {
		return MatchOutcome{}, fmt.Errorf("schema validation: %w", err)
	}
	if result.Valid() {
		return MatchOutcome{Passed: true}, nil
	}
	var msgs []string
	for _, e := range result.Errors() {
		msgs = append(msgs, e.String())
	}
	return MatchOutcome{Passed: false, Diff: strings.Join(msgs, "; ")}, nil
}

// EvalJSONPath evaluates a JSONPath expression against a document, used by
// the script engine's `karate.jsonPath(doc, expr)` bridge function and by
// match steps whose actual operand is a `$...` path expression.
func EvalJSONPath(doc any, expr string) (any, error) {
	path, err := jsonpath.NewPath(expr)
	if err != nil {
		return nil, fmt.Errorf("jsonpath %q: %w", expr, err)
	}
	result := path.Query(doc)
	values := result.Values()
	if len(values) == 1 {
		return values[0], nil
	}
	out := make([]any, len(values))
	copy(out, values)
	return out, nil
}
