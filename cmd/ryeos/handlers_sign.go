package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/leolilley/ryeos/internal/cliserve"
	"github.com/leolilley/ryeos/internal/config"
	"github.com/leolilley/ryeos/internal/integrity"
	"github.com/leolilley/ryeos/pkg/ryemodels"
)

// markerFor returns the host file's single-line comment prefix, so a
// signature line embeds as a valid comment in whatever language the item
// is written in.
func markerFor(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".md", ".yaml", ".yml":
		return "#"
	case ".py", ".rb", ".sh":
		return "#"
	case ".js", ".ts":
		return "//"
	default:
		return "#"
	}
}

func runSign(cmd *cobra.Command, configPath string, itemType ryemodels.ItemType, itemID string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	built, err := cliserve.Build(cfg, nil, true)
	if err != nil {
		return fmt.Errorf("build: %w", err)
	}

	if strings.TrimSpace(cfg.Signing.KeyPath) == "" {
		return fmt.Errorf("signing.key_path is not configured; run `ryeos keygen` first")
	}
	signingKey, err := cliserve.LoadSigningKey(cfg.Signing.KeyPath)
	if err != nil {
		return err
	}

	path, _, err := built.Resolver.Resolve(itemType, itemID)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", itemID, err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	stripped := integrity.StripAuthoritativeLine(raw)

	signed, line := integrity.SignContent(stripped, markerFor(path), signingKey, time.Now())
	if err := os.WriteFile(path, signed, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "signed %s\n%s\n", itemID, line)
	return nil
}

func runVerify(cmd *cobra.Command, configPath string, itemType ryemodels.ItemType, itemID string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	built, err := cliserve.Build(cfg, nil, false)
	if err != nil {
		return fmt.Errorf("build: %w", err)
	}

	path, _, err := built.Resolver.Resolve(itemType, itemID)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", itemID, err)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}

	result, err := built.Verifier.Verify(raw)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s: valid=%v signed_by=%s hash=%s\n", itemID, result.Valid, result.SignedBy, result.Hash)
	return nil
}

func runKeygen(cmd *cobra.Command, configPath string, trust bool) error {
	pub, priv, err := integrity.GenerateKeyPair()
	if err != nil {
		return fmt.Errorf("generate key pair: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "public_key: %s\n", integrity.EncodePublicKey(pub))
	fmt.Fprintf(out, "private_key: %s\n", integrity.EncodePrivateKey(priv))
	fmt.Fprintf(out, "fingerprint: %s\n", integrity.Fingerprint(pub))

	if !trust {
		return nil
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if len(cfg.SpaceRoots) == 0 {
		return fmt.Errorf("no space roots configured to trust the new key in")
	}
	trustDir := filepath.Join(cfg.SpaceRoots[0].Root, "trusted_keys")
	store := integrity.NewStore(nil)
	doc := integrity.TrustDocument{
		Fingerprint: integrity.Fingerprint(pub),
		PublicKey:   integrity.EncodePublicKey(pub),
		Owner:       "ryeos-keygen",
		Origin:      "local",
		PinnedAt:    time.Now().UTC().Format(time.RFC3339),
	}
	if err := store.Persist(trustDir, doc); err != nil {
		return fmt.Errorf("persist trust document: %w", err)
	}
	fmt.Fprintf(out, "trusted in: %s\n", trustDir)
	return nil
}
