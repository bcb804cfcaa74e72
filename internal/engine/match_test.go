package engine

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMatch_Equals(t *testing.T) {
	out, err := Match("==", map[string]any{"a": 1.0}, map[string]any{"a": 1.0})
	require.NoError(t, err)
	require.True(t, out.Passed)

	out, err = Match("==", map[string]any{"a": 1.0}, map[string]any{"a": 2.0})
	require.NoError(t, err)
	require.False(t, out.Passed)
}

func TestMatch_Contains(t *testing.T) {
	actual := map[string]any{"id": 1.0, "name": "bob", "extra": true}
	out, err := Match("contains", actual, map[string]any{"name": "bob"})
	require.NoError(t, err)
	require.True(t, out.Passed)

	out, err = Match("contains", actual, map[string]any{"name": "alice"})
	require.NoError(t, err)
	require.False(t, out.Passed)
}

func TestMatch_ContainsDeep(t *testing.T) {
	actual := map[string]any{"user": map[string]any{"id": 1.0, "name": "bob"}}
	out, err := Match("contains deep", actual, map[string]any{"user": map[string]any{"name": "bob"}})
	require.NoError(t, err)
	require.True(t, out.Passed)
}

func TestMatch_ContainsOnly(t *testing.T) {
	out, err := Match("contains only", []any{1.0, 2.0}, []any{2.0, 1.0})
	require.NoError(t, err)
	require.True(t, out.Passed)

	out, err = Match("contains only", []any{1.0, 2.0, 3.0}, []any{1.0, 2.0})
	require.NoError(t, err)
	require.False(t, out.Passed)
}

func TestMatch_Within(t *testing.T) {
	out, err := Match("within", "b", []any{"a", "b", "c"})
	require.NoError(t, err)
	require.True(t, out.Passed)

	out, err = Match("!within", "z", []any{"a", "b", "c"})
	require.NoError(t, err)
	require.True(t, out.Passed)
}

func TestMatch_Each(t *testing.T) {
	out, err := Match("each contains", []any{
		map[string]any{"status": "ok"},
		map[string]any{"status": "ok", "extra": 1.0},
	}, map[string]any{"status": "ok"})
	require.NoError(t, err)
	require.True(t, out.Passed)
}

func TestMatchesSchema(t *testing.T) {
	schema := map[string]any{
		"type":     "object",
		"required": []any{"id"},
		"properties": map[string]any{
			"id": map[string]any{"type": "number"},
		},
	}
	out, err := MatchesSchema(map[string]any{"id": 1.0}, schema)
	require.NoError(t, err)
	require.True(t, out.Passed)

	out, err = MatchesSchema(map[string]any{"name": "x"}, schema)
	require.NoError(t, err)
	require.False(t, out.Passed)
}

func TestEvalJSONPath(t *testing.T) {
	doc := map[string]any{"data": map[string]any{"id": 42.0}}
	v, err := EvalJSONPath(doc, "$.data.id")
	require.NoError(t, err)
	require.EqualValues(t, 42, v)
}
