package report

import (
	"encoding/xml"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/wingman-run/wingman/internal/engine"
	"github.com/wingman-run/wingman/internal/model"
)

func TestWriteJUnit_OneFileSkippedAndFailed(t *testing.T) {
	dir := t.TempDir()

	feature := &model.Feature{Identity: "specs/users.feature"}
	suite := engine.SuiteResult{
		Features: []engine.FeatureResult{
			{
				Feature: feature,
				Scenarios: []engine.ScenarioResult{
					{
						Scenario:        model.Scenario{Name: "create user"},
						FeatureIdentity: feature.Identity,
						Duration:        250 * time.Millisecond,
					},
					{
						Scenario:        model.Scenario{Name: "cancelled one"},
						FeatureIdentity: feature.Identity,
						Cancelled:       true,
					},
					{
						Scenario:        model.Scenario{Name: "bad assert"},
						FeatureIdentity: feature.Identity,
						Steps: []engine.StepResult{
							{Fault: &engine.Fault{Kind: engine.FaultAssert, Message: "expected 200 got 404"}},
						},
					},
				},
			},
		},
	}

	require.NoError(t, WriteJUnit(dir, suite))

	path := filepath.Join(dir, "junit-xml", "specs.users.xml")
	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var ts junitTestsuite
	require.NoError(t, xml.Unmarshal(data, &ts))
	require.Equal(t, "specs/users.feature", ts.Name)
	require.Equal(t, 3, ts.Tests)
	require.Equal(t, 1, ts.Failures)
	require.Len(t, ts.Testcases, 3)
	require.Nil(t, ts.Testcases[0].Failure)
	require.NotNil(t, ts.Testcases[1].Skipped)
	require.NotNil(t, ts.Testcases[2].Failure)
	require.Contains(t, ts.Testcases[2].Failure.Message, "expected 200 got 404")
}

func TestPackageQualifiedName(t *testing.T) {
	require.Equal(t, "specs.users", packageQualifiedName("specs/users.feature"))
	require.Equal(t, "feature", packageQualifiedName(""))
}
