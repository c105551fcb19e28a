// Package main provides the CLI entry point for ryeos, the Rye OS
// execution substrate: it runs LLM-driven directives as managed
// conversational threads under a capability/budget harness, verified end
// to end by an ed25519 signature chain.
//
// # Basic Usage
//
// Run a directive to completion:
//
//	ryeos run proj/my-directive --capability '*'
//
// Start the HTTP surface:
//
//	ryeos serve --config ryeos.yaml
//
// Sign and verify items:
//
//	ryeos sign proj/my-directive
//	ryeos verify proj/my-directive
//
// # Environment Variables
//
//   - RYEOS_CONFIG: path to the configuration file (default: ryeos.yaml)
//   - RYEOS_PROVIDER_API_KEY: LLM provider API key
//   - RYEOS_HTTP_PORT / RYEOS_METRICS_PORT: override server.http_port /
//     server.metrics_port
//   - RYEOS_SIGNING_KEY_PATH: path to the ed25519 signing key
package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

// Build information, populated by ldflags during build.
//
//	go build -ldflags "-X main.version=v1.0.0 -X main.commit=$(git rev-parse HEAD) -X main.date=$(date -u +%Y-%m-%dT%H:%M:%SZ)"
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	rootCmd := buildRootCmd()
	if err := rootCmd.Execute(); err != nil {
		slog.Error("command execution failed", "error", err)
		os.Exit(1)
	}
}

// buildRootCmd creates the root command with all subcommands attached.
// Separated from main so tests can exercise it without running main.
func buildRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "ryeos",
		Short: "ryeos - the Rye OS directive execution substrate",
		Long: `ryeos runs LLM-driven directives as managed conversational threads,
each under a capability/budget harness and a verified executor chain.`,
		Version:      fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().String("config", "", "path to config file (default: ryeos.yaml, or $RYEOS_CONFIG)")

	rootCmd.AddCommand(
		buildRunCmd(),
		buildServeCmd(),
		buildSignCmd(),
		buildVerifyCmd(),
		buildKeygenCmd(),
		buildBundleCmd(),
		buildThreadCmd(),
	)
	return rootCmd
}

// resolveConfigPath applies the CLI flag / environment variable / default
// precedence for the config file path.
func resolveConfigPath(flagValue string) string {
	if strings.TrimSpace(flagValue) != "" {
		return flagValue
	}
	if envValue := strings.TrimSpace(os.Getenv("RYEOS_CONFIG")); envValue != "" {
		return envValue
	}
	return "ryeos.yaml"
}
