package primitive

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leolilley/ryeos/internal/integrity"
	"github.com/leolilley/ryeos/pkg/ryemodels"
)

func TestVerifyDeps_Disabled_IsNoop(t *testing.T) {
	verifier := integrity.NewVerifier(integrity.NewStore(nil), nil)
	err := VerifyDeps(ryemodels.VerifyDepsConfig{Enabled: false}, t.TempDir(), verifier)
	assert.NoError(t, err)
}

func TestVerifyDeps_FailsOnUnsignedFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "dep.py"), []byte("print('hi')"), 0o644))

	verifier := integrity.NewVerifier(integrity.NewStore(nil), nil)
	cfg := ryemodels.VerifyDepsConfig{Enabled: true, Extensions: []string{"py"}}
	err := VerifyDeps(cfg, dir, verifier)
	require.Error(t, err)
	assert.True(t, ryemodels.IsKind(err, ryemodels.ErrIntegrity))
}

func TestVerifyDeps_PassesOnSignedFileAndSkipsExcludedDir(t *testing.T) {
	dir := t.TempDir()
	pub, priv, err := integrity.GenerateKeyPair()
	require.NoError(t, err)

	store := integrity.NewStore(nil)
	store.Add(integrity.TrustDocument{Fingerprint: integrity.Fingerprint(pub), PublicKey: integrity.EncodePublicKey(pub)}, pub)
	verifier := integrity.NewVerifier(store, nil)

	signed, _ := integrity.SignContent([]byte("print('hi')\n"), "#", priv, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "dep.py"), signed, 0o644))

	excluded := filepath.Join(dir, "node_modules")
	require.NoError(t, os.MkdirAll(excluded, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(excluded, "bad.py"), []byte("unsigned"), 0o644))

	cfg := ryemodels.VerifyDepsConfig{Enabled: true, Extensions: []string{"py"}, ExcludeDirs: []string{"node_modules"}}
	err = VerifyDeps(cfg, dir, verifier)
	assert.NoError(t, err)
}
