package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoad_ReadsYAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
paths:
  - features/
tags: "~@slow"
threads: 4
output_dir: results
min_engine_version: "1.2.0"
http:
  timeout_seconds: 10
  rate_limit: 5
  oauth2:
    token_url: https://auth.example.com/token
    client_id: abc
    client_secret: secret
`), 0o644))

	f, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, []string{"features/"}, f.Paths)
	require.Equal(t, "~@slow", f.Tags)
	require.Equal(t, 4, f.Threads)
	require.Equal(t, "results", f.OutputDir)
	require.Equal(t, "1.2.0", f.MinEngineVersion)
	require.Equal(t, 10*time.Second, f.Timeout())
	require.Equal(t, 5.0, f.HTTP.RateLimit)
	require.NotNil(t, f.HTTP.OAuth2)
	require.Equal(t, "abc", f.HTTP.OAuth2.ClientID)
}

func TestLoad_DefaultsWhenFileMissing(t *testing.T) {
	f, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	require.NoError(t, err)
	require.Equal(t, 1, f.Threads)
	require.Equal(t, "wingman-results", f.OutputDir)
	require.Equal(t, 30*time.Second, f.Timeout())
}
