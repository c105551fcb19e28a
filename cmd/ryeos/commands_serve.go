package main

import (
	"github.com/spf13/cobra"
)

func buildServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the ryeos HTTP surface",
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath, _ := cmd.Flags().GetString("config")
			return runServe(cmd, resolveConfigPath(configPath))
		},
	}
	return cmd
}
