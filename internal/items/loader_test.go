package items

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leolilley/ryeos/internal/integrity"
	"github.com/leolilley/ryeos/internal/resolver"
	"github.com/leolilley/ryeos/pkg/ryemodels"
)

func TestLoader_LoadSignedKnowledge(t *testing.T) {
	systemRoot := t.TempDir()
	pub, priv, err := integrity.GenerateKeyPair()
	require.NoError(t, err)

	store := integrity.NewStore(nil)
	store.Add(integrity.TrustDocument{Fingerprint: integrity.Fingerprint(pub), PublicKey: integrity.EncodePublicKey(pub)}, pub)

	unsigned := []byte(sampleKnowledge)
	signed, _ := integrity.SignContent(unsigned, "<!--", priv, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))

	path := filepath.Join(systemRoot, "knowledge", "rye", "agent", "identity.md")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, signed, 0o644))

	res := resolver.New([]resolver.SpaceRoot{{Space: ryemodels.SpaceSystem, Root: systemRoot}}, nil)
	verifier := integrity.NewVerifier(store, nil)
	loader := New(res, verifier)

	item, err := loader.Load(ryemodels.ItemKnowledge, "rye/agent/identity", false)
	require.NoError(t, err)
	assert.Equal(t, ryemodels.SpaceSystem, item.Space)
	require.NotNil(t, item.Knowledge)
	assert.Equal(t, "Agent Identity", item.Knowledge.Title)
}

func TestLoader_LoadRejectsUnsignedItem(t *testing.T) {
	systemRoot := t.TempDir()
	path := filepath.Join(systemRoot, "knowledge", "unsigned.md")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(draftKnowledge("unsigned")), 0o644))

	res := resolver.New([]resolver.SpaceRoot{{Space: ryemodels.SpaceSystem, Root: systemRoot}}, nil)
	verifier := integrity.NewVerifier(integrity.NewStore(nil), nil)
	loader := New(res, verifier)

	_, err := loader.Load(ryemodels.ItemKnowledge, "unsigned", false)
	require.Error(t, err)
	assert.True(t, ryemodels.IsKind(err, ryemodels.ErrIntegrity))
}

func TestLoader_AuthoringModeSkipsVerification(t *testing.T) {
	systemRoot := t.TempDir()
	path := filepath.Join(systemRoot, "knowledge", "draft.md")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(draftKnowledge("draft")), 0o644))

	res := resolver.New([]resolver.SpaceRoot{{Space: ryemodels.SpaceSystem, Root: systemRoot}}, nil)
	verifier := integrity.NewVerifier(integrity.NewStore(nil), nil)
	loader := New(res, verifier)

	item, err := loader.Load(ryemodels.ItemKnowledge, "draft", true)
	require.NoError(t, err)
	assert.NotNil(t, item.Knowledge)
}

func draftKnowledge(id string) string {
	return "---\nid: " + id + "\ntitle: Draft\ncategory: agent\nversion: 0.0.1\nauthor: rye-core\ncreated_at: 2026-01-01T00:00:00Z\n---\n\ndraft body\n"
}
