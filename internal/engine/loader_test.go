package engine

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wingman-run/wingman/internal/model"
)

func TestFeatureLoader_FileAndInline(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hello.feature")
	require.NoError(t, os.WriteFile(path, []byte("Feature: hello\n\nScenario: s\n* def x = 1\n"), 0o644))

	loader := NewFeatureLoader(model.NewParser(), dir, dir)

	f, err := loader.Load("hello.feature")
	require.NoError(t, err)
	require.Equal(t, "hello", f.Name)

	f2, err := loader.Load("classpath:hello.feature")
	require.NoError(t, err)
	require.Equal(t, "hello", f2.Name)

	f3, err := loader.Load("inline:Feature: inline\n\nScenario: s\n* def x = 1\n")
	require.NoError(t, err)
	require.Equal(t, "inline", f3.Name)
}

func TestFeatureLoader_LoadAllCollectsErrors(t *testing.T) {
	dir := t.TempDir()
	loader := NewFeatureLoader(model.NewParser(), dir, dir)
	features, errs := loader.LoadAll([]string{"missing.feature"})
	require.Empty(t, features)
	require.Len(t, errs, 1)
}
