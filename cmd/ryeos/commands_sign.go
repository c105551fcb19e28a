package main

import (
	"github.com/spf13/cobra"

	"github.com/leolilley/ryeos/pkg/ryemodels"
)

func parseItemType(s string) ryemodels.ItemType {
	switch s {
	case "tool":
		return ryemodels.ItemTool
	case "knowledge":
		return ryemodels.ItemKnowledge
	default:
		return ryemodels.ItemDirective
	}
}

func buildSignCmd() *cobra.Command {
	typeFlag := ""
	cmd := &cobra.Command{
		Use:   "sign <item-id>",
		Short: "Sign an item with the configured signing key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath, _ := cmd.Flags().GetString("config")
			return runSign(cmd, resolveConfigPath(configPath), parseItemType(typeFlag), args[0])
		},
	}
	cmd.Flags().StringVar(&typeFlag, "type", "directive", "item type: directive, tool, or knowledge")
	return cmd
}

func buildVerifyCmd() *cobra.Command {
	typeFlag := ""
	cmd := &cobra.Command{
		Use:   "verify <item-id>",
		Short: "Verify an item's signature against the trust store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath, _ := cmd.Flags().GetString("config")
			return runVerify(cmd, resolveConfigPath(configPath), parseItemType(typeFlag), args[0])
		},
	}
	cmd.Flags().StringVar(&typeFlag, "type", "directive", "item type: directive, tool, or knowledge")
	return cmd
}

func buildKeygenCmd() *cobra.Command {
	var trust bool
	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate a new ed25519 signing key pair",
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath, _ := cmd.Flags().GetString("config")
			return runKeygen(cmd, resolveConfigPath(configPath), trust)
		},
	}
	cmd.Flags().BoolVar(&trust, "trust", true, "also persist the public key into the first configured space root's trusted_keys/ dir")
	return cmd
}
