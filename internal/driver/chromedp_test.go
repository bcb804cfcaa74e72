package driver

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestConfigFromArgs_Defaults(t *testing.T) {
	cfg := configFromArgs(nil)
	require.True(t, cfg.Headless)
	require.Equal(t, 1280, cfg.Width)
	require.Equal(t, 800, cfg.Height)
	require.Equal(t, 15*time.Second, cfg.Timeout)
	require.Empty(t, cfg.URL)
}

func TestConfigFromArgs_OverridesFromMap(t *testing.T) {
	cfg := configFromArgs(map[string]any{
		"headless":       false,
		"width":          float64(1920),
		"height":         float64(1080),
		"url":            "https://example.com",
		"timeoutSeconds": float64(30),
	})
	require.False(t, cfg.Headless)
	require.Equal(t, 1920, cfg.Width)
	require.Equal(t, 1080, cfg.Height)
	require.Equal(t, "https://example.com", cfg.URL)
	require.Equal(t, 30*time.Second, cfg.Timeout)
}

func TestStringArg_MissingAndWrongType(t *testing.T) {
	_, err := stringArg([]any{}, 0)
	require.Error(t, err)

	_, err = stringArg([]any{42}, 0)
	require.Error(t, err)

	s, err := stringArg([]any{"selector"}, 0)
	require.NoError(t, err)
	require.Equal(t, "selector", s)
}

func TestChromeDriver_UnknownMethod(t *testing.T) {
	d := &ChromeDriver{}
	_, err := d.Invoke("nope", nil)
	require.Error(t, err)
}

func TestChromeDriver_SetPropertyRejected(t *testing.T) {
	d := &ChromeDriver{}
	err := d.SetProperty("title", "anything")
	require.Error(t, err)
}
