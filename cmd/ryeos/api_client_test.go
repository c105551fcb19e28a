package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResolveHTTPBaseURL_ServerFlagWins(t *testing.T) {
	got, err := resolveHTTPBaseURL("", "localhost:9000")
	require.NoError(t, err)
	require.Equal(t, "http://localhost:9000", got)
}

func TestResolveHTTPBaseURL_PreservesExplicitScheme(t *testing.T) {
	got, err := resolveHTTPBaseURL("", "https://ryeos.internal:9443/")
	require.NoError(t, err)
	require.Equal(t, "https://ryeos.internal:9443", got)
}

func TestResolveHTTPBaseURL_FallsBackToConfig(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "config.yaml")
	content := "space_roots:\n  - space: system\n    root: " + root + "\n" +
		"server:\n  host: 127.0.0.1\n  http_port: 9123\n" +
		"provider:\n  name: anthropic\n  api_key: sk-ant-test\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	got, err := resolveHTTPBaseURL(path, "")
	require.NoError(t, err)
	require.Equal(t, "http://127.0.0.1:9123", got)
}
