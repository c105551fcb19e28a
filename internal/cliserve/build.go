// Package cliserve wires a loaded config.Config into a running
// orchestrator.Orchestrator: space roots, item loader, chain resolver,
// primitive executor, trust store/verifier, LLM provider, and audit log.
// It is the one place cmd/ryeos's run/serve/sign/bundle subcommands share
// to avoid re-deriving this wiring per command, grounded on the teacher's
// handlers_serve.go building a gateway.Server from a loaded config.
package cliserve

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/leolilley/ryeos/internal/audit"
	"github.com/leolilley/ryeos/internal/chain"
	"github.com/leolilley/ryeos/internal/config"
	"github.com/leolilley/ryeos/internal/integrity"
	"github.com/leolilley/ryeos/internal/items"
	"github.com/leolilley/ryeos/internal/llmprovider"
	"github.com/leolilley/ryeos/internal/orchestrator"
	"github.com/leolilley/ryeos/internal/primitive"
	"github.com/leolilley/ryeos/internal/resolver"
	"github.com/leolilley/ryeos/internal/thread"
	"github.com/leolilley/ryeos/pkg/ryemodels"
)

// Built bundles every dependency cmd/ryeos's subcommands need, beyond the
// Orchestrator itself, to implement sign/verify/bundle operations directly
// against the same resolver and trust store the orchestrator runs with.
type Built struct {
	Orchestrator *orchestrator.Orchestrator
	Verifier     *integrity.Verifier
	TrustStore   *integrity.Store
	Resolver     *resolver.Resolver
	Loader       *items.Loader
	Audit        *audit.Log
}

// Build assembles every component from a loaded config, in dependency
// order: space roots -> resolver -> trust store -> verifier -> loader ->
// chain resolver -> primitive executor -> LLM provider -> audit log ->
// orchestrator.
func Build(cfg *config.Config, logger *slog.Logger, authoring bool) (*Built, error) {
	if logger == nil {
		logger = slog.Default()
	}

	spaceRoots, userSpace, systemSpace := resolverRoots(cfg)

	res := resolver.New(spaceRoots, logger)

	store := integrity.NewStore(logger)
	for _, sr := range cfg.SpaceRoots {
		trustDir := filepath.Join(sr.Root, "trusted_keys")
		if err := store.LoadDir(trustDir); err != nil {
			return nil, fmt.Errorf("cliserve: load trust store %s: %w", trustDir, err)
		}
	}
	verifier := integrity.NewVerifier(store, logger)

	loader := items.New(res, verifier)
	chainResolver := chain.New(loader)
	primitiveExecutor := primitive.New(verifier, nil)

	provider, err := buildProvider(cfg.Provider)
	if err != nil {
		return nil, err
	}

	signingKey, err := LoadSigningKey(cfg.Signing.KeyPath)
	if err != nil {
		return nil, err
	}

	auditLog := audit.New(logger)

	var searchRoots []string
	for _, sr := range cfg.SpaceRoots {
		searchRoots = append(searchRoots, sr.Root)
	}

	orch := orchestrator.New(orchestrator.Config{
		Provider:      provider,
		Loader:        loader,
		ChainResolver: chainResolver,
		Primitive:     primitiveExecutor,
		ProjectPath:   cfg.ProjectPath,
		SpaceRoots:    primitive.SpaceRoots{UserSpace: userSpace, SystemSpace: systemSpace},
		Authoring:     authoring,
		MaxIterations: cfg.Runtime.MaxIterations,
		SigningKey:    signingKey,
		KnowledgeRoot: systemSpace,
		SearchRoots:   searchRoots,
		Audit:         auditLog,
	})

	return &Built{
		Orchestrator: orch,
		Verifier:     verifier,
		TrustStore:   store,
		Resolver:     res,
		Loader:       loader,
		Audit:        auditLog,
	}, nil
}

// resolverRoots converts config.SpaceRootConfig entries into
// resolver.SpaceRoot entries, and identifies the user/system roots
// internal/primitive's template variables need.
func resolverRoots(cfg *config.Config) (roots []resolver.SpaceRoot, userSpace, systemSpace string) {
	for _, sr := range cfg.SpaceRoots {
		space := ryemodels.Space(sr.Space)
		roots = append(roots, resolver.SpaceRoot{
			Space:            space,
			BundleID:         sr.BundleID,
			Root:             sr.Root,
			CategoryPrefixes: sr.CategoryPrefixes,
		})
		switch space {
		case ryemodels.SpaceUser:
			userSpace = sr.Root
		case ryemodels.SpaceSystem:
			if systemSpace == "" {
				systemSpace = sr.Root
			}
		}
	}
	return roots, userSpace, systemSpace
}

func buildProvider(cfg config.ProviderConfig) (thread.Provider, error) {
	switch cfg.Name {
	case "", "anthropic":
		return llmprovider.NewAnthropic(llmprovider.AnthropicConfig{
			APIKey:       cfg.APIKey,
			BaseURL:      cfg.BaseURL,
			DefaultModel: cfg.DefaultModel,
		})
	default:
		return nil, fmt.Errorf("cliserve: unknown provider %q", cfg.Name)
	}
}
