package primitive

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leolilley/ryeos/pkg/ryemodels"
)

func TestComposeEnv_ExpandsStaticEnvAndPrependsAnchorToPath(t *testing.T) {
	cfg := &ryemodels.EnvConfig{
		Env:      map[string]string{"PROJECT": "{project_path}"},
		EnvPaths: []string{"PATH"},
	}
	vars := map[string]string{"project_path": "/proj"}
	base := []string{"PATH=/usr/bin"}

	env := ComposeEnv(base, cfg, vars, "/anchor/bin")
	assert.Contains(t, env, "PROJECT=/proj")
	assert.Contains(t, env, "PATH=/anchor/bin"+string(os.PathListSeparator)+"/usr/bin")
}

func TestComposeEnv_ShellDefaultExpansion(t *testing.T) {
	os.Unsetenv("RYE_TEST_UNSET_VAR")
	cfg := &ryemodels.EnvConfig{Env: map[string]string{"X": "${RYE_TEST_UNSET_VAR:-fallback}"}}
	env := ComposeEnv(nil, cfg, map[string]string{}, "")
	assert.Contains(t, env, "X=fallback")
}

func TestComposeEnv_NilConfigReturnsBaseUnchanged(t *testing.T) {
	base := []string{"A=1"}
	env := ComposeEnv(base, nil, map[string]string{}, "")
	assert.Equal(t, base, env)
}

func TestResolveAnchor_FindsMarkerUpward(t *testing.T) {
	root := t.TempDir()
	sub := filepath.Join(root, "a", "b")
	require.NoError(t, os.MkdirAll(sub, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "go.mod"), []byte("module x"), 0o644))

	cfg := &ryemodels.AnchorConfig{MarkersAny: []string{"go.mod"}, Mode: ryemodels.AnchorAuto}
	got, err := ResolveAnchor(cfg, sub)
	assert.NoError(t, err)
	assert.Equal(t, root, got)
}

func TestResolveAnchor_AlwaysModeFailsWhenMissing(t *testing.T) {
	root := t.TempDir()
	cfg := &ryemodels.AnchorConfig{MarkersAny: []string{"nonexistent.marker"}, Mode: ryemodels.AnchorAlways}
	_, err := ResolveAnchor(cfg, root)
	assert.Error(t, err)
}

func TestResolveAnchor_AutoModeSkipsWhenMissing(t *testing.T) {
	root := t.TempDir()
	cfg := &ryemodels.AnchorConfig{MarkersAny: []string{"nonexistent.marker"}, Mode: ryemodels.AnchorAuto}
	got, err := ResolveAnchor(cfg, root)
	assert.NoError(t, err)
	assert.Empty(t, got)
}
