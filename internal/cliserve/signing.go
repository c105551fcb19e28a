package cliserve

import (
	"crypto/ed25519"
	"fmt"
	"os"
	"strings"

	"github.com/leolilley/ryeos/internal/integrity"
)

// LoadSigningKey reads and decodes the ed25519 private key at path. An
// empty path is valid: threads still run, but any transcript/bundle
// signing step that needs SigningKey will fail when it's actually used,
// which is the right behavior for a read-only "verify" invocation that
// never signs anything.
func LoadSigningKey(path string) (ed25519.PrivateKey, error) {
	if strings.TrimSpace(path) == "" {
		return nil, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cliserve: read signing key %s: %w", path, err)
	}
	key, err := integrity.DecodePrivateKey(strings.TrimSpace(string(raw)))
	if err != nil {
		return nil, fmt.Errorf("cliserve: decode signing key %s: %w", path, err)
	}
	return key, nil
}
