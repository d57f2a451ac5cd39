// ABOUTME: Health command for the flashdeck CLI
// ABOUTME: Checks backend connectivity and which stores it runs with

package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/markalston/flashdeck/cli/internal/client"
	"github.com/markalston/flashdeck/cli/internal/styles"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check backend connectivity",
	Long:  `Check connectivity to the Flashdeck backend and show its identity provider and stores.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		if code := runHealth(ctx, os.Stdout); code != exitOK {
			os.Exit(code)
		}
	},
}

func init() {
	rootCmd.AddCommand(healthCmd)
}

// runHealth executes the health check and returns exit code
func runHealth(ctx context.Context, w io.Writer) int {
	url := GetAPIURL()
	c := client.New(url)

	resp, err := c.Health(ctx)
	if err != nil {
		fmt.Fprintf(w, "Error: %v\n", err)
		return exitError
	}

	if IsJSONOutput() {
		fmt.Fprintln(w, formatHealthJSON(url, resp))
	} else {
		fmt.Fprintln(w, formatHealthHuman(url, resp))
	}
	return exitOK
}

// formatHealthHuman formats health response for human readability
func formatHealthHuman(url string, resp *client.HealthResponse) string {
	status := styles.StatusOK.Render(resp.Status)
	if resp.Status != "ok" {
		status = styles.StatusCritical.Render(resp.Status)
	}
	return strings.Join([]string{
		styles.Row("Backend", url),
		styles.Row("Status", status),
		styles.Row("Auth", resp.AuthProvider),
		styles.Row("Attempts", resp.AttemptStore),
		styles.Row("Persistence", resp.Persistence),
	}, "\n")
}

// formatHealthJSON formats health response as JSON
func formatHealthJSON(url string, resp *client.HealthResponse) string {
	output := map[string]interface{}{
		"backend":       url,
		"status":        resp.Status,
		"auth_provider": resp.AuthProvider,
		"attempt_store": resp.AttemptStore,
		"persistence":   resp.Persistence,
	}
	data, _ := json.MarshalIndent(output, "", "  ")
	return string(data)
}
