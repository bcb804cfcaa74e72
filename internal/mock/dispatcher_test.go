package mock

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wingman-run/wingman/internal/engine"
	"github.com/wingman-run/wingman/internal/model"
)

func mustParseMock(t *testing.T, text string) *model.Feature {
	t.Helper()
	f, err := model.NewParser().Parse("users.feature", text)
	require.NoError(t, err)
	return f
}

const usersMockFeature = `
Feature: users mock

Scenario: get user
Given request.pathMatches('/users/{id}') && request.method == 'GET'
* def response = { status: 200, body: { id: 42 } }

Scenario: create user
Given request.pathMatches('/users') && request.method == 'POST'
* def response = { status: 201, body: { created: true } }
`

// TestDispatcher_MatchesByPathAndMethod covers spec.md §8 concrete scenario
// 5: two path/method predicates select different scenarios.
func TestDispatcher_MatchesByPathAndMethod(t *testing.T) {
	feature := mustParseMock(t, usersMockFeature)
	disp, err := NewDispatcher([]*model.Feature{feature}, engine.DefaultEngineFactory, nil, nil)
	require.NoError(t, err)

	res, err := disp.Dispatch(context.Background(), "GET", "/users/42", nil, nil, nil)
	require.NoError(t, err)
	require.True(t, res.Matched)
	require.Equal(t, 200, res.Response.Status)
	require.Contains(t, string(res.Response.Body), "42")

	body, _ := json.Marshal(map[string]any{"name": "ada"})
	res, err = disp.Dispatch(context.Background(), "POST", "/users", nil, nil, body)
	require.NoError(t, err)
	require.True(t, res.Matched)
	require.Equal(t, 201, res.Response.Status)
}

const usersMockFeatureBarePredicate = `
Feature: users mock, bare predicate form

Scenario: get user
Given pathMatches('/users/{id}') && method=='GET'
* def response = { status: 200, body: { id: 42 } }

Scenario: create user
Given pathMatches('/users') && method=='POST'
* def response = { status: 201, body: { created: true } }
`

// TestDispatcher_MatchesBarePredicateHelpers covers spec.md §8 concrete
// scenario 5's literal predicate text, `pathMatches('/users/{id}') &&
// method=='GET'`, written without the `request.` receiver.
func TestDispatcher_MatchesBarePredicateHelpers(t *testing.T) {
	feature := mustParseMock(t, usersMockFeatureBarePredicate)
	disp, err := NewDispatcher([]*model.Feature{feature}, engine.DefaultEngineFactory, nil, nil)
	require.NoError(t, err)

	res, err := disp.Dispatch(context.Background(), "GET", "/users/42", nil, nil, nil)
	require.NoError(t, err)
	require.True(t, res.Matched)
	require.Equal(t, 200, res.Response.Status)
}

// TestDispatcher_NoMatch covers spec.md §4.7's fallback: no scenario
// predicate matches, so the request goes unmatched (server layer maps this
// to HTTP 404).
func TestDispatcher_NoMatch(t *testing.T) {
	feature := mustParseMock(t, usersMockFeature)
	disp, err := NewDispatcher([]*model.Feature{feature}, engine.DefaultEngineFactory, nil, nil)
	require.NoError(t, err)

	res, err := disp.Dispatch(context.Background(), "DELETE", "/users/42", nil, nil, nil)
	require.NoError(t, err)
	require.False(t, res.Matched)
}

// TestDispatcher_HandlerFaultReturnsError covers spec.md §7 kind 6: a
// matched scenario whose steps fail surfaces an error (the server layer
// turns this into a 500 without crashing).
func TestDispatcher_HandlerFaultReturnsError(t *testing.T) {
	feature := mustParseMock(t, `
Feature: broken mock

Scenario: always matches but fails
Given true
* assert false
`)
	disp, err := NewDispatcher([]*model.Feature{feature}, engine.DefaultEngineFactory, nil, nil)
	require.NoError(t, err)

	_, err = disp.Dispatch(context.Background(), "GET", "/anything", nil, nil, nil)
	require.Error(t, err)
}

// TestDispatcher_Reload covers spec.md §4.7 step 5: re-parsed features
// replace the dispatcher's root state for subsequent requests.
func TestDispatcher_Reload(t *testing.T) {
	feature := mustParseMock(t, usersMockFeature)
	disp, err := NewDispatcher([]*model.Feature{feature}, engine.DefaultEngineFactory, nil, nil)
	require.NoError(t, err)

	reloaded := mustParseMock(t, `
Feature: users mock

Scenario: get any user
Given request.method == 'GET'
* def response = { status: 200, body: { replaced: true } }
`)
	require.NoError(t, disp.Reload([]*model.Feature{reloaded}))

	res, err := disp.Dispatch(context.Background(), "GET", "/users/1", nil, nil, nil)
	require.NoError(t, err)
	require.True(t, res.Matched)
	require.Contains(t, string(res.Response.Body), "replaced")
}
