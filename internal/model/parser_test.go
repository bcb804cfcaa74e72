package model

import (
	"testing"

	"github.com/stretchr/testify/require"
)

const basicOutlineFeature = `
@smoke
Feature: add numbers

  Background:
    * def base = 10

  Scenario Outline: add <a>+<b>=<sum>
    * def result = a + b
    * match result == sum

    Examples:
      | a! | b! | sum! |
      | 1  | 2  | 3    |
      | 5  | 5  | 10   |
      | 0  | 0  | 0    |
`

func TestParse_BasicOutline(t *testing.T) {
	f, err := NewParser().Parse("add.feature", basicOutlineFeature)
	require.NoError(t, err)
	require.Equal(t, "add numbers", f.Name)
	require.Len(t, f.Tags, 1)
	require.Equal(t, "smoke", f.Tags[0].Name)
	require.Len(t, f.Background, 1)
	require.Len(t, f.Sections, 1)

	outline := f.Sections[0].Outline
	require.NotNil(t, outline)
	require.Len(t, outline.Examples, 1)
	require.Len(t, outline.Examples[0].Table.Rows, 3)

	scenarios := ExpandOutline(outline)
	require.Len(t, scenarios, 3)
	require.Equal(t, "add 1+2=3", scenarios[0].Name)
	require.Equal(t, "def", scenarios[0].Steps[0].Keyword)
	require.Equal(t, "result = a + b", scenarios[0].Steps[0].Text)
}

const mockFeature = `
Feature: user mock

  Background:
    * def responseHeaders = { 'Content-Type': 'application/json' }

  Scenario: pathMatches('/users/{id}') && method == 'GET'
    * def response = { id: pathParams.id }

  Scenario: pathMatches('/users') && method == 'POST'
    * def response = { created: true }
    * def responseStatus = 201
`

func TestParse_MockFeatureScenarios(t *testing.T) {
	f, err := NewParser().Parse("mock.feature", mockFeature)
	require.NoError(t, err)
	require.Len(t, f.Sections, 2)
	require.Contains(t, f.Sections[0].Scenario.Name, "pathMatches")
}

func TestParse_AssignmentVsCallExpression(t *testing.T) {
	text := `
Feature: classify

  Scenario: classify
    * cookie foo = 'bar'
    * cookie({ name: 'foo' })
`
	f, err := NewParser().Parse("classify.feature", text)
	require.NoError(t, err)
	steps := f.Sections[0].Scenario.Steps
	require.Equal(t, "cookie", steps[0].Keyword)
	require.Equal(t, "foo = 'bar'", steps[0].Text)
	require.Equal(t, "", steps[1].Keyword)
	require.Equal(t, "cookie({ name: 'foo' })", steps[1].Text)
}

func TestParse_DocStringAndTable(t *testing.T) {
	text := "Feature: f\n\n  Scenario: s\n    * match response contains deep\n      \"\"\"\n      { \"a\": 1 }\n      \"\"\"\n    * def t =\n      | a | b |\n      | 1 | 2 |\n"
	f, err := NewParser().Parse("f.feature", text)
	require.NoError(t, err)
	steps := f.Sections[0].Scenario.Steps
	require.NotNil(t, steps[0].DocString)
	require.Equal(t, `{ "a": 1 }`, steps[0].DocString.Content)
	require.NotNil(t, steps[1].Table)
	require.Equal(t, []string{"a", "b"}, steps[1].Table.Headers)
}

func TestParse_EmptyFeatureErrors(t *testing.T) {
	_, err := NewParser().Parse("empty.feature", "\n\n")
	require.Error(t, err)
}

func TestParse_CRLFAccepted(t *testing.T) {
	text := "Feature: f\r\n\r\n  Scenario: s\r\n    * def x = 1\r\n"
	f, err := NewParser().Parse("f.feature", text)
	require.NoError(t, err)
	require.Equal(t, "f", f.Name)
}
