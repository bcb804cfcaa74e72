package report

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestBackupIfExists_NoPriorDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	require.NoError(t, BackupIfExists(dir))
	_, err := os.Stat(dir)
	require.True(t, os.IsNotExist(err))
}

func TestBackupIfExists_RenamesPriorDir(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "out")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "prior.xml"), []byte("old"), 0o644))

	fixed := time.Date(2024, 3, 5, 9, 30, 15, 0, time.UTC)
	restore := now
	now = func() time.Time { return fixed }
	defer func() { now = restore }()

	require.NoError(t, BackupIfExists(dir))

	_, err := os.Stat(dir)
	require.True(t, os.IsNotExist(err))

	backup := dir + "_20240305_093015"
	data, err := os.ReadFile(filepath.Join(backup, "prior.xml"))
	require.NoError(t, err)
	require.Equal(t, "old", string(data))
}

func TestPrepareOutputDir_BacksUpAndRecreates(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "out")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "prior.xml"), []byte("old"), 0o644))

	require.NoError(t, PrepareOutputDir(dir))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Empty(t, entries)

	matches, err := filepath.Glob(dir + "_*")
	require.NoError(t, err)
	require.Len(t, matches, 1)
}
