package main

import (
	"github.com/spf13/cobra"
)

func buildRunCmd() *cobra.Command {
	var inputs []string
	var capabilities []string
	var modelOverride string

	cmd := &cobra.Command{
		Use:   "run <directive-id>",
		Short: "Run a directive to completion",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath, _ := cmd.Flags().GetString("config")
			return runDirective(cmd, resolveConfigPath(configPath), args[0], inputs, capabilities, modelOverride)
		},
	}
	cmd.Flags().StringArrayVar(&inputs, "input", nil, "directive input as key=value (repeatable)")
	cmd.Flags().StringArrayVar(&capabilities, "capability", nil, "granted capability (repeatable; default: none)")
	cmd.Flags().StringVar(&modelOverride, "model", "", "override the directive's resolved model id")
	return cmd
}
