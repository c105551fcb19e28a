package main

import (
	"github.com/spf13/cobra"
)

func buildThreadCmd() *cobra.Command {
	var serverAddr string
	cmd := &cobra.Command{
		Use:   "thread",
		Short: "Inspect and control threads on a running ryeos serve process",
	}
	cmd.PersistentFlags().StringVar(&serverAddr, "server", "", "ryeos httpapi address (default: derived from config)")

	cmd.AddCommand(
		buildThreadPsCmd(&serverAddr),
		buildThreadCancelCmd(&serverAddr),
		buildThreadResumeCmd(&serverAddr),
	)
	return cmd
}

func buildThreadPsCmd(serverAddr *string) *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "ps",
		Short: "List threads (active by default)",
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath, _ := cmd.Flags().GetString("config")
			return runThreadPs(cmd, resolveConfigPath(configPath), *serverAddr, all)
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "include completed/terminal threads")
	return cmd
}

func buildThreadCancelCmd(serverAddr *string) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <thread-id>",
		Short: "Cancel a running thread",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath, _ := cmd.Flags().GetString("config")
			return runThreadCancel(cmd, resolveConfigPath(configPath), *serverAddr, args[0])
		},
	}
}

func buildThreadResumeCmd(serverAddr *string) *cobra.Command {
	var message string
	cmd := &cobra.Command{
		Use:   "resume <thread-id>",
		Short: "Resume a suspended or completed thread with a follow-up message",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath, _ := cmd.Flags().GetString("config")
			return runThreadResume(cmd, resolveConfigPath(configPath), *serverAddr, args[0], message)
		},
	}
	cmd.Flags().StringVar(&message, "message", "", "follow-up message to inject")
	return cmd
}
