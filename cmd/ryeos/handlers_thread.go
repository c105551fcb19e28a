package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/leolilley/ryeos/pkg/ryemodels"
)

func runThreadPs(cmd *cobra.Command, configPath, serverAddr string, all bool) error {
	baseURL, err := resolveHTTPBaseURL(configPath, serverAddr)
	if err != nil {
		return err
	}
	client := newAPIClient(baseURL)

	path := "/v1/threads"
	if all {
		path += "?all=true"
	}

	var payload struct {
		Threads []*ryemodels.ThreadResult `json:"threads"`
	}
	if err := client.getJSON(cmd.Context(), path, &payload); err != nil {
		return err
	}

	encoded, err := json.MarshalIndent(payload.Threads, "", "  ")
	if err != nil {
		return fmt.Errorf("encode threads: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(encoded))
	return nil
}

func runThreadCancel(cmd *cobra.Command, configPath, serverAddr, threadID string) error {
	baseURL, err := resolveHTTPBaseURL(configPath, serverAddr)
	if err != nil {
		return err
	}
	client := newAPIClient(baseURL)

	var out map[string]any
	if err := client.postJSON(cmd.Context(), "/v1/threads/"+threadID+"/cancel", nil, &out); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "cancelling thread %s\n", threadID)
	return nil
}

func runThreadResume(cmd *cobra.Command, configPath, serverAddr, threadID, message string) error {
	baseURL, err := resolveHTTPBaseURL(configPath, serverAddr)
	if err != nil {
		return err
	}
	client := newAPIClient(baseURL)

	var result ryemodels.ThreadResult
	body := map[string]string{"message": message}
	if err := client.postJSON(cmd.Context(), "/v1/threads/"+threadID+"/resume", body, &result); err != nil {
		return err
	}

	encoded, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(encoded))
	return nil
}
