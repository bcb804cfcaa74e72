package compat

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCheckMinVersion(t *testing.T) {
	restore := EngineVersion
	EngineVersion = "1.4.0"
	defer func() { EngineVersion = restore }()

	require.NoError(t, CheckMinVersion(""))
	require.NoError(t, CheckMinVersion("1.4.0"))
	require.NoError(t, CheckMinVersion("1.3.9"))
	require.NoError(t, CheckMinVersion("v1.0.0"))

	err := CheckMinVersion("2.0.0")
	require.Error(t, err)
	require.Contains(t, err.Error(), "requires engine >=")
}

func TestCheckMinVersion_InvalidInput(t *testing.T) {
	err := CheckMinVersion("not-a-version")
	require.Error(t, err)
}
