// ABOUTME: Root command for the flashdeck CLI
// ABOUTME: Handles global flags, the backend URL, and the session file location

package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/markalston/flashdeck/cli/internal/client"
)

var (
	apiURL      string
	jsonOutput  bool
	sessionFile string
)

const defaultAPIURL = "http://localhost:8080"

// Exit codes shared by every command
const (
	exitOK       = 0
	exitRejected = 1 // the backend refused the request
	exitError    = 2 // connectivity, local I/O, or aborted prompts
)

// rootCmd is the base command
var rootCmd = &cobra.Command{
	Use:   "flashdeck",
	Short: "CLI for the Flashdeck account API",
	Long: `flashdeck signs in to a Flashdeck backend and manages the account.

The session cookies are kept in a file between runs, so commands behave like a
browser tab: sign in once, then change the password or delete the account.

Exit codes:
  0 - Success
  1 - The backend rejected the request
  2 - Error (connectivity, session file, cancelled prompt)

Environment Variables:
  FLASHDECK_API_URL       Backend API URL (default: http://localhost:8080)
  FLASHDECK_SESSION_FILE  Session file (default: <user config dir>/flashdeck/session.json)`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", "", "Backend API URL (overrides FLASHDECK_API_URL)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output JSON instead of human-readable text")
	rootCmd.PersistentFlags().StringVar(&sessionFile, "session-file", "", "Session file (overrides FLASHDECK_SESSION_FILE)")
}

// GetAPIURL returns the API URL from flag, env, or default (in priority order)
func GetAPIURL() string {
	if apiURL != "" {
		return apiURL
	}
	if envURL := os.Getenv("FLASHDECK_API_URL"); envURL != "" {
		return envURL
	}
	return defaultAPIURL
}

// GetSessionFile returns the session file from flag, env, or the user config dir
func GetSessionFile() (string, error) {
	if sessionFile != "" {
		return sessionFile, nil
	}
	if env := os.Getenv("FLASHDECK_SESSION_FILE"); env != "" {
		return env, nil
	}
	return client.DefaultSessionPath()
}

// IsJSONOutput returns whether JSON output is requested
func IsJSONOutput() bool {
	return jsonOutput
}

// newClient builds a client bound to the configured session file
func newClient() (*client.Client, error) {
	path, err := GetSessionFile()
	if err != nil {
		return nil, err
	}
	return client.NewWithSession(GetAPIURL(), path)
}

// exitCodeFor maps a client error to the command exit code
func exitCodeFor(err error) int {
	if client.IsAPIError(err) {
		return exitRejected
	}
	return exitError
}
