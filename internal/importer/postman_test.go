package importer

import (
	"testing"

	"github.com/stretchr/testify/require"
)

const samplePostmanCollection = `{
  "info": {
    "name": "users collection",
    "schema": "https://schema.getpostman.com/json/collection/v2.1.0/collection.json"
  },
  "item": [
    {
      "name": "get user",
      "request": {
        "method": "GET",
        "header": [],
        "url": { "raw": "https://api.example.com/users/42", "query": [] }
      }
    },
    {
      "name": "folder",
      "item": [
        {
          "name": "create user",
          "request": {
            "method": "POST",
            "header": [{"key": "Content-Type", "value": "application/json"}],
            "body": { "mode": "raw", "raw": "{}" },
            "url": { "raw": "https://api.example.com/users", "query": [] }
          }
        }
      ]
    }
  ]
}`

func TestFromPostman_WalksFoldersRecursively(t *testing.T) {
	feature, err := FromPostman("users.postman.json", []byte(samplePostmanCollection))
	require.NoError(t, err)
	require.Equal(t, "users collection", feature.Name)
	require.Len(t, feature.Sections, 2)

	names := map[string]bool{}
	for _, sec := range feature.Sections {
		names[sec.Scenario.Name] = true
	}
	require.True(t, names["get user"])
	require.True(t, names["create user"])
}
