// Package main is the entry point for the researchctl CLI. It drives the
// research API: submitting queries, answering clarification questions,
// checking status, cancelling runs, and listing archived reports.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
)

// version is set at build time via ldflags.
var version = "dev"

var apiURL string

var rootCmd = &cobra.Command{
	Use:   "researchctl",
	Short: "Control interactive research runs",
	Long: `researchctl talks to the research orchestrator API. A run starts with
submit, may pause on clarification questions (shown by questions, resolved
by answer), and finishes with a markdown report and optionally a PDF.

Runs are durable: the orchestrator survives restarts while a run is
suspended, so questions and answer can be hours apart.`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&apiURL, "api", envOrDefault("RESEARCHFLOW_API", "http://localhost:8088"), "research API base URL")
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the researchctl version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(version)
	},
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

var httpClient = &http.Client{Timeout: 30 * time.Second}

// apiPost sends body as JSON and decodes the response into out. Non-2xx
// responses are returned as errors carrying the server's error message.
func apiPost(path string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	resp, err := httpClient.Post(apiURL+path, "application/json", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("request %s: %w", path, err)
	}
	defer resp.Body.Close()
	return decodeResponse(resp, out)
}

func apiGet(path string, out interface{}) error {
	resp, err := httpClient.Get(apiURL + path)
	if err != nil {
		return fmt.Errorf("request %s: %w", path, err)
	}
	defer resp.Body.Close()
	return decodeResponse(resp, out)
}

func decodeResponse(resp *http.Response, out interface{}) error {
	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("%s: %s", resp.Status, apiErr.Error)
		}
		return fmt.Errorf("unexpected status %s", resp.Status)
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(data, out)
}

func printJSON(v interface{}) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
