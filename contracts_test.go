package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadContractsJSONAndYAML(t *testing.T) {
	dir := t.TempDir()
	jsonPath := filepath.Join(dir, "contracts.json")
	require.NoError(t, os.WriteFile(jsonPath, []byte(`[{"id":"c1","user_id":"u1","name":"NDA","score":70}]`), 0o644))
	yamlPath := filepath.Join(dir, "contracts.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte("- id: c2\n  user_id: u1\n  client_name: ACME\n  risk_level: high\n"), 0o644))

	got, err := readContracts(jsonPath)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "NDA", got[0].Name)
	require.NotNil(t, got[0].Score)
	assert.Equal(t, 70.0, *got[0].Score)

	got, err = readContracts(yamlPath)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "ACME", got[0].ClientName)
	assert.Equal(t, "high", got[0].RiskLevel)
	assert.Nil(t, got[0].Score)

	_, err = readContracts(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)
}

func TestCommandsRegistered(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"serve", "ask", "migrate", "import-contracts"} {
		assert.True(t, names[want], want)
	}
}
