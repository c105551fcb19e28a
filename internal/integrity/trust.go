package integrity

import (
	"crypto/ed25519"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	toml "github.com/pelletier/go-toml"

	"github.com/leolilley/ryeos/pkg/ryemodels"
)

// TrustDocument is the TOML identity document stored one-per-fingerprint
// under a space's trusted_keys/ directory.
type TrustDocument struct {
	Fingerprint string `toml:"fingerprint"`
	PublicKey   string `toml:"public_key"`
	Owner       string `toml:"owner,omitempty"`
	Origin      string `toml:"origin,omitempty"`
	PinnedAt    string `toml:"pinned_at,omitempty"`
}

// Store holds trusted public keys loaded from TOML identity documents,
// keyed by fingerprint, guarded by a mutex matching the teacher's
// Resolver/Tracker locking convention.
type Store struct {
	mu      sync.RWMutex
	keys    map[string]ed25519.PublicKey
	docs    map[string]TrustDocument
	logger  *slog.Logger
	dirs    []string
}

// NewStore builds an empty trust store.
func NewStore(logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		keys:   make(map[string]ed25519.PublicKey),
		docs:   make(map[string]TrustDocument),
		logger: logger.With("component", "integrity.store"),
	}
}

// LoadDir reads every *.toml file in dir as a TrustDocument and adds it to
// the store. Spaces are loaded project, then user, then system by the
// caller calling LoadDir in that order; a fingerprint seen again is
// silently skipped (first space wins), matching resolver space precedence.
func (s *Store) LoadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read trust dir %s: %w", dir, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.dirs = append(s.dirs, dir)

	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".toml") {
			continue
		}
		path := filepath.Join(dir, e.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			s.logger.Warn("read trust document", "path", path, "error", err)
			continue
		}
		var doc TrustDocument
		if err := toml.Unmarshal(data, &doc); err != nil {
			s.logger.Warn("parse trust document", "path", path, "error", err)
			continue
		}
		if doc.Fingerprint == "" {
			continue
		}
		if _, exists := s.docs[doc.Fingerprint]; exists {
			continue
		}
		pub, err := DecodePublicKey(doc.PublicKey)
		if err != nil {
			s.logger.Warn("decode trust document key", "path", path, "error", err)
			continue
		}
		s.docs[doc.Fingerprint] = doc
		s.keys[doc.Fingerprint] = pub
	}
	return nil
}

// Lookup returns the public key registered for fingerprint.
func (s *Store) Lookup(fingerprint string) (ed25519.PublicKey, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	pub, ok := s.keys[fingerprint]
	return pub, ok
}

// Add registers a key directly, used by signing/authoring paths that mint a
// new key and immediately trust it.
func (s *Store) Add(doc TrustDocument, pub ed25519.PublicKey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[doc.Fingerprint] = doc
	s.keys[doc.Fingerprint] = pub
}

// Persist writes doc to dir/<fingerprint>.toml.
func (s *Store) Persist(dir string, doc TrustDocument) error {
	data, err := toml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal trust document: %w", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create trust dir: %w", err)
	}
	path := filepath.Join(dir, doc.Fingerprint+".toml")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write trust document: %w", err)
	}
	return nil
}

// RegistryPin is the TOFU-pinned identity for the package registry: the
// first fingerprint seen for a given origin is written to
// <user-space>/trusted_keys/registry.pem (a TOML document despite the .pem
// name, per the external-interface convention) and all subsequent registry
// signatures must match it.
type RegistryPin struct {
	mu   sync.Mutex
	path string
}

// NewRegistryPin binds TOFU pinning to the given path, conventionally
// filepath.Join(userSpace, "trusted_keys", "registry.pem").
func NewRegistryPin(path string) *RegistryPin {
	return &RegistryPin{path: path}
}

// Check verifies fingerprint/origin against the pinned identity, pinning it
// on first use. Returns a *ryemodels.RyeError(ErrIntegrity) if a different
// fingerprint was already pinned for this origin.
func (p *RegistryPin) Check(origin, fingerprint, pubB64 string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	data, err := os.ReadFile(p.path)
	if err != nil {
		if !os.IsNotExist(err) {
			return ryemodels.NewRyeError(ryemodels.ErrIntegrity, fmt.Errorf("read registry pin: %w", err))
		}
		return p.pin(origin, fingerprint, pubB64)
	}

	var doc TrustDocument
	if err := toml.Unmarshal(data, &doc); err != nil {
		return ryemodels.NewRyeError(ryemodels.ErrIntegrity, fmt.Errorf("parse registry pin: %w", err))
	}
	if doc.Origin != origin {
		// Different registry origin sharing the same pin file: treat as
		// first-seen for this origin rather than a mismatch.
		return p.pin(origin, fingerprint, pubB64)
	}
	if doc.Fingerprint != fingerprint {
		return ryemodels.NewRyeError(ryemodels.ErrIntegrity,
			fmt.Errorf("registry key fingerprint mismatch: pinned %s, got %s", doc.Fingerprint, fingerprint))
	}
	return nil
}

func (p *RegistryPin) pin(origin, fingerprint, pubB64 string) error {
	doc := TrustDocument{
		Fingerprint: fingerprint,
		PublicKey:   pubB64,
		Origin:      origin,
	}
	data, err := toml.Marshal(doc)
	if err != nil {
		return ryemodels.NewRyeError(ryemodels.ErrIntegrity, fmt.Errorf("marshal registry pin: %w", err))
	}
	if err := os.MkdirAll(filepath.Dir(p.path), 0o755); err != nil {
		return ryemodels.NewRyeError(ryemodels.ErrIntegrity, fmt.Errorf("create trusted_keys dir: %w", err))
	}
	if err := os.WriteFile(p.path, data, 0o644); err != nil {
		return ryemodels.NewRyeError(ryemodels.ErrIntegrity, fmt.Errorf("write registry pin: %w", err))
	}
	return nil
}
