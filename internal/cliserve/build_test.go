package cliserve

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/leolilley/ryeos/internal/config"
)

func writeMinimalConfig(t *testing.T, root string) string {
	t.Helper()
	path := filepath.Join(root, "config.yaml")
	content := "space_roots:\n  - space: system\n    root: " + root + "\n" +
		"provider:\n  name: anthropic\n  api_key: sk-ant-test\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestBuild_AssemblesOrchestratorFromConfig(t *testing.T) {
	root := t.TempDir()
	path := writeMinimalConfig(t, root)

	cfg, err := config.Load(path)
	require.NoError(t, err)

	built, err := Build(cfg, nil, true)
	require.NoError(t, err)
	require.NotNil(t, built.Orchestrator)
	require.NotNil(t, built.Verifier)
	require.NotNil(t, built.Resolver)
	require.NotNil(t, built.Loader)
	require.NotNil(t, built.Audit)
}

func TestBuild_RejectsUnknownProvider(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "config.yaml")
	content := "space_roots:\n  - space: system\n    root: " + root + "\n" +
		"provider:\n  name: unknown-provider\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := config.Load(path)
	require.NoError(t, err)

	_, err = Build(cfg, nil, true)
	require.Error(t, err)
}

func TestLoadSigningKey_EmptyPathReturnsNil(t *testing.T) {
	key, err := LoadSigningKey("")
	require.NoError(t, err)
	require.Nil(t, key)
}
