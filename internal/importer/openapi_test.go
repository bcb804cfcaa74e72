package importer

import (
	"testing"

	"github.com/stretchr/testify/require"
)

const sampleOpenAPI = `
openapi: 3.0.0
info:
  title: users api
  version: "1.0"
servers:
  - url: https://api.example.com
paths:
  /users/{id}:
    get:
      operationId: getUser
      responses:
        "200":
          description: ok
  /users:
    post:
      operationId: createUser
      requestBody:
        content:
          application/json:
            schema:
              type: object
      responses:
        "201":
          description: created
`

func TestFromOpenAPI_OneScenarioPerOperation(t *testing.T) {
	feature, err := FromOpenAPI("users.yaml", []byte(sampleOpenAPI))
	require.NoError(t, err)
	require.Equal(t, "users api", feature.Name)
	require.Len(t, feature.Sections, 2)

	names := map[string]bool{}
	for _, sec := range feature.Sections {
		require.NotNil(t, sec.Scenario)
		names[sec.Scenario.Name] = true
	}
	require.True(t, names["getUser"])
	require.True(t, names["createUser"])
}

func TestFromOpenAPI_EncodesMethodAndStatus(t *testing.T) {
	feature, err := FromOpenAPI("users.yaml", []byte(sampleOpenAPI))
	require.NoError(t, err)

	var create *struct {
		method string
		status string
	}
	for _, sec := range feature.Sections {
		if sec.Scenario.Name != "createUser" {
			continue
		}
		var found struct {
			method string
			status string
		}
		for _, step := range sec.Scenario.Steps {
			switch step.Keyword {
			case "method":
				found.method = step.Text
			case "status":
				found.status = step.Text
			}
		}
		create = &found
	}
	require.NotNil(t, create)
	require.Equal(t, "POST", create.method)
	require.Equal(t, "201", create.status)
}
