package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/leolilley/ryeos/internal/cliserve"
	"github.com/leolilley/ryeos/internal/config"
	"github.com/leolilley/ryeos/pkg/ryemodels"
)

func parseKeyValues(pairs []string) map[string]any {
	if len(pairs) == 0 {
		return nil
	}
	out := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		key, value, found := strings.Cut(pair, "=")
		if !found {
			out[pair] = ""
			continue
		}
		out[key] = value
	}
	return out
}

func runDirective(cmd *cobra.Command, configPath, directiveID string, inputPairs, capabilities []string, modelOverride string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	built, err := cliserve.Build(cfg, nil, false)
	if err != nil {
		return fmt.Errorf("build orchestrator: %w", err)
	}

	result, err := built.Orchestrator.Invoke(
		cmd.Context(),
		directiveID,
		parseKeyValues(inputPairs),
		ryemodels.NewCapabilitySet(capabilities...),
		ryemodels.Limits{},
		modelOverride,
	)
	if err != nil {
		return fmt.Errorf("invoke %s: %w", directiveID, err)
	}

	encoded, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(encoded))
	return nil
}
