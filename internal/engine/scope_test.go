package engine

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestVariableScope_LayeringOrder(t *testing.T) {
	s := NewVariableScope(map[string]any{"a": "config"}, map[string]any{"a": "feature", "b": "feature"})
	v, ok := s.Get("a")
	require.True(t, ok)
	require.Equal(t, "feature", v)

	s.Set("a", "scenario")
	v, ok = s.Get("a")
	require.True(t, ok)
	require.Equal(t, "scenario", v)

	v, ok = s.Get("b")
	require.True(t, ok)
	require.Equal(t, "feature", v)

	_, ok = s.Get("missing")
	require.False(t, ok)
}

func TestVariableScope_SnapshotRestore(t *testing.T) {
	s := NewVariableScope(nil, nil)
	s.Set("x", 1.0)
	snap := s.Snapshot()
	s.Set("x", 2.0)
	v, _ := s.Get("x")
	require.EqualValues(t, 2, v)

	s.Restore(snap)
	v, _ = s.Get("x")
	require.EqualValues(t, 1, v)
}

func TestVariableScope_Isolation(t *testing.T) {
	var wg sync.WaitGroup
	results := make([]any, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s := NewVariableScope(nil, nil)
			s.Set("v", i)
			results[i], _ = s.Get("v")
		}(i)
	}
	wg.Wait()
	require.Equal(t, 0, results[0])
	require.Equal(t, 1, results[1])
}

func TestDeepCopy_MutationInvisibleToSource(t *testing.T) {
	s := NewVariableScope(nil, map[string]any{"x": map[string]any{"n": 1.0}})
	copied, err := s.DeepCopyOf("x")
	require.NoError(t, err)
	cm := copied.(map[string]any)
	cm["n"] = 99.0

	orig, _ := s.Get("x")
	require.Equal(t, 1.0, orig.(map[string]any)["n"])
}

func TestDeepCopy_RejectsCycle(t *testing.T) {
	cyclic := map[string]any{}
	cyclic["self"] = cyclic

	_, err := DeepCopy(cyclic)
	require.Error(t, err)
}

func TestCanonicalHash_KeyOrderIndependent(t *testing.T) {
	h1, err := CanonicalHash(map[string]any{"a": 1.0, "b": 2.0})
	require.NoError(t, err)
	h2, err := CanonicalHash(map[string]any{"b": 2.0, "a": 1.0})
	require.NoError(t, err)
	require.Equal(t, h1, h2)
}
