// ABOUTME: Session commands for the flashdeck CLI
// ABOUTME: Implements login, whoami, and logout against the cookie session API

package cmd

import (
	"bufio"
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
	"github.com/markalston/flashdeck/cli/internal/prompt"
	"github.com/markalston/flashdeck/cli/internal/styles"
)

var (
	loginEmail    string
	passwordStdin bool
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in and save the session",
	Long: `Sign in with an email and password. The password is prompted for unless
--password-stdin is given, in which case the first line of stdin is used.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		c, err := newClient()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(exitError)
		}

		email, password := loginEmail, ""
		if passwordStdin {
			password, err = readPassword(os.Stdin)
		} else {
			err = prompt.Credentials(&email, &password)
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(exitError)
		}

		if code := runLogin(ctx, os.Stdout, c, strings.TrimSpace(email), password); code != exitOK {
			os.Exit(code)
		}
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the signed-in user",
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		c, err := newClient()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(exitError)
		}
		if code := runWhoami(ctx, os.Stdout, c); code != exitOK {
			os.Exit(code)
		}
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Sign out and forget the saved session",
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		c, err := newClient()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(exitError)
		}
		if code := runLogout(ctx, os.Stdout, c); code != exitOK {
			os.Exit(code)
		}
	},
}

func init() {
	loginCmd.Flags().StringVar(&loginEmail, "email", "", "Account email")
	loginCmd.Flags().BoolVar(&passwordStdin, "password-stdin", false, "Read the password from stdin")
	rootCmd.AddCommand(loginCmd, whoamiCmd, logoutCmd)
}

// runLogin signs in and returns exit code
func runLogin(ctx context.Context, w io.Writer, c *client.Client, email, password string) int {
	if email == "" {
		fmt.Fprintln(w, "Error: --email is required")
		return exitError
	}

	login, err := c.Login(ctx, email, password)
	if err != nil {
		fmt.Fprintf(w, "Login failed: %v\n", err)
		return exitCodeFor(err)
	}

	if IsJSONOutput() {
		data, _ := json.MarshalIndent(login, "", "  ")
		fmt.Fprintln(w, string(data))
	} else {
		fmt.Fprintf(w, "%s Signed in as %s\n", styles.StatusOK.Render("✓"), login.Email)
	}
	return exitOK
}

// runWhoami reports the session owner; an anonymous session exits 1
func runWhoami(ctx context.Context, w io.Writer, c *client.Client) int {
	info, err := c.Me(ctx)
	if err != nil {
		fmt.Fprintf(w, "Error: %v\n", err)
		return exitCodeFor(err)
	}

	if IsJSONOutput() {
		data, _ := json.MarshalIndent(info, "", "  ")
		fmt.Fprintln(w, string(data))
	} else if info.Authenticated {
		fmt.Fprintln(w, styles.Row("Email", info.Email))
		fmt.Fprintln(w, styles.Row("User ID", info.UserID))
	} else {
		fmt.Fprintln(w, "Not signed in. Run 'flashdeck login'.")
	}

	if !info.Authenticated {
		return exitRejected
	}
	return exitOK
}

// runLogout signs out and returns exit code
func runLogout(ctx context.Context, w io.Writer, c *client.Client) int {
	if !c.HasSession() {
		fmt.Fprintln(w, "Not signed in.")
		return exitOK
	}
	if err := c.Logout(ctx); err != nil {
		fmt.Fprintf(w, "Logout failed: %v\n", err)
		return exitCodeFor(err)
	}
	fmt.Fprintln(w, "Signed out.")
	return exitOK
}

// readPassword returns the first line of r without its line ending
func readPassword(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("read password: %w", err)
	}
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return "", fmt.Errorf("no password on stdin")
	}
	return line, nil
}
