package main

import (
	"github.com/spf13/cobra"
)

func buildBundleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bundle",
		Short: "Create and verify signed bundle manifests",
	}
	cmd.AddCommand(buildBundleCreateCmd(), buildBundleVerifyCmd())
	return cmd
}

func buildBundleCreateCmd() *cobra.Command {
	var root string
	cmd := &cobra.Command{
		Use:   "create <bundle-id>",
		Short: "Hash and sign every item under a bundle root's .ai/ tree",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath, _ := cmd.Flags().GetString("config")
			return runBundleCreate(cmd, resolveConfigPath(configPath), root, args[0])
		},
	}
	cmd.Flags().StringVar(&root, "root", ".", "bundle root directory")
	return cmd
}

func buildBundleVerifyCmd() *cobra.Command {
	var root string
	cmd := &cobra.Command{
		Use:   "verify <bundle-id>",
		Short: "Verify a bundle manifest against its tracked files",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath, _ := cmd.Flags().GetString("config")
			return runBundleVerify(cmd, resolveConfigPath(configPath), root, args[0])
		},
	}
	cmd.Flags().StringVar(&root, "root", ".", "bundle root directory")
	return cmd
}
