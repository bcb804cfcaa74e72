package mock

import (
	"io"
	"net/http"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/wingman-run/wingman/internal/engine"
	"github.com/wingman-run/wingman/internal/model"
)

// TestServer_ServesMockFeature covers spec.md §4.7 step 1's "started with one
// or more mock features and a port (0 = OS-assigned)" plus the request/
// response round trip end to end over a real TCP listener.
func TestServer_ServesMockFeature(t *testing.T) {
	feature := mustParseMock(t, usersMockFeature)
	disp, err := NewDispatcher([]*model.Feature{feature}, engine.DefaultEngineFactory, nil, nil)
	require.NoError(t, err)

	srv := NewServer(ServerConfig{Port: 0}, disp)
	port, shutdown, err := srv.Start()
	require.NoError(t, err)
	defer shutdown()
	require.NotZero(t, port)

	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Get("http://127.0.0.1:" + strconv.Itoa(port) + "/users/42")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, string(body), "42")
}

// TestServer_UnmatchedRequestReturns404 covers the no-match fallback
// (spec.md §4.7).
func TestServer_UnmatchedRequestReturns404(t *testing.T) {
	feature := mustParseMock(t, usersMockFeature)
	disp, err := NewDispatcher([]*model.Feature{feature}, engine.DefaultEngineFactory, nil, nil)
	require.NoError(t, err)

	srv := NewServer(ServerConfig{Port: 0}, disp)
	port, shutdown, err := srv.Start()
	require.NoError(t, err)
	defer shutdown()

	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Get("http://127.0.0.1:" + strconv.Itoa(port) + "/nothing-here")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

// TestServer_HandlerFaultReturns500 covers spec.md §7 kind 6: a scenario
// that fails mid-dispatch yields 500 with the error in the body, and the
// server keeps serving afterward.
func TestServer_HandlerFaultReturns500(t *testing.T) {
	feature := mustParseMock(t, `
Feature: broken mock

Scenario: always matches but fails
Given true
* assert false
`)
	disp, err := NewDispatcher([]*model.Feature{feature}, engine.DefaultEngineFactory, nil, nil)
	require.NoError(t, err)

	srv := NewServer(ServerConfig{Port: 0}, disp)
	port, shutdown, err := srv.Start()
	require.NoError(t, err)
	defer shutdown()

	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Get("http://127.0.0.1:" + strconv.Itoa(port) + "/anything")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusInternalServerError, resp.StatusCode)

	// Server stays up for the next request.
	resp2, err := client.Get("http://127.0.0.1:" + strconv.Itoa(port) + "/anything")
	require.NoError(t, err)
	defer resp2.Body.Close()
	require.Equal(t, http.StatusInternalServerError, resp2.StatusCode)
}
