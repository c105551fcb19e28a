package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/leolilley/ryeos/internal/bundler"
	"github.com/leolilley/ryeos/internal/cliserve"
	"github.com/leolilley/ryeos/internal/config"
)

func runBundleCreate(cmd *cobra.Command, configPath, root, bundleID string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if strings.TrimSpace(cfg.Signing.KeyPath) == "" {
		return fmt.Errorf("signing.key_path is not configured; run `ryeos keygen` first")
	}
	signingKey, err := cliserve.LoadSigningKey(cfg.Signing.KeyPath)
	if err != nil {
		return err
	}

	manifestPath, err := bundler.Create(root, bundleID, signingKey, time.Now())
	if err != nil {
		return fmt.Errorf("create bundle %s: %w", bundleID, err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "bundle manifest written: %s\n", manifestPath)
	return nil
}

func runBundleVerify(cmd *cobra.Command, configPath, root, bundleID string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	built, err := cliserve.Build(cfg, nil, false)
	if err != nil {
		return fmt.Errorf("build: %w", err)
	}

	report, err := bundler.Verify(root, bundleID, built.Verifier)
	if err != nil {
		return fmt.Errorf("verify bundle %s: %w", bundleID, err)
	}

	out := cmd.OutOrStdout()
	for _, f := range report.Failures {
		fmt.Fprintf(out, "  FAIL %s: %s\n", f.Path, f.Reason)
	}
	if report.Pass {
		fmt.Fprintf(out, "bundle %s: all entries verified\n", bundleID)
		return nil
	}
	return fmt.Errorf("bundle %s: %d failure(s)", bundleID, len(report.Failures))
}
