package mock

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/wingman-run/wingman/internal/engine"
	"github.com/wingman-run/wingman/internal/model"
)

// TestWatcher_ReloadsOnFileChange covers spec.md §4.7 step 5: "the mock
// feature file is re-parsed on modification".
func TestWatcher_ReloadsOnFileChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "users.feature")
	require.NoError(t, os.WriteFile(path, []byte(usersMockFeature), 0o644))

	loader := engine.NewFeatureLoader(model.NewParser(), dir, "")
	features, errs := loader.LoadAll([]string{path})
	require.Empty(t, errs)

	disp, err := NewDispatcher(features, engine.DefaultEngineFactory, nil, nil)
	require.NoError(t, err)

	w, err := NewWatcher([]string{path}, LoaderReload(loader, disp))
	require.NoError(t, err)
	defer w.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	replaced := `
Feature: users mock

Scenario: get any user
Given request.method == 'GET'
* def response = { status: 200, body: { replaced: true } }
`
	// Give the watcher goroutine time to register before the write.
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte(replaced), 0o644))

	require.Eventually(t, func() bool {
		res, err := disp.Dispatch(context.Background(), "GET", "/users/1", nil, nil, nil)
		return err == nil && res.Matched && strings.Contains(string(res.Response.Body), "replaced")
	}, 2*time.Second, 20*time.Millisecond)
}
