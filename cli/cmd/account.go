// ABOUTME: Account commands for the flashdeck CLI
// ABOUTME: Changes the password or deletes the account of the saved session

package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/markalston/flashdeck/cli/internal/client"
	"github.com/markalston/flashdeck/cli/internal/prompt"
	"github.com/markalston/flashdeck/cli/internal/styles"
)

var changePasswordCmd = &cobra.Command{
	Use:   "change-password",
	Short: "Change the account password",
	Long: `Change the password of the signed-in account. The current password is
required. Repeated failures lock the action for a while; the backend reports
how long in the error.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		c, err := signedInClient()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(exitError)
		}

		var current, next string
		if err := prompt.NewPassword(&current, &next); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(exitError)
		}
		if code := runChangePassword(ctx, os.Stdout, c, current, next); code != exitOK {
			os.Exit(code)
		}
	},
}

var deleteAccountCmd = &cobra.Command{
	Use:   "delete-account",
	Short: "Delete the account",
	Long:  `Delete the signed-in account after confirming the password. The saved session is removed.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		c, err := signedInClient()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(exitError)
		}

		info, err := c.Me(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(exitCodeFor(err))
		}

		var password string
		confirmed := false
		if err := prompt.ConfirmDelete(info.Email, &password, &confirmed); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(exitError)
		}
		if !confirmed {
			fmt.Println("Cancelled.")
			return
		}
		if code := runDeleteAccount(ctx, os.Stdout, c, password); code != exitOK {
			os.Exit(code)
		}
	},
}

func init() {
	rootCmd.AddCommand(changePasswordCmd, deleteAccountCmd)
}

// signedInClient loads the saved session and fails when there is none
func signedInClient() (*client.Client, error) {
	c, err := newClient()
	if err != nil {
		return nil, err
	}
	if !c.HasSession() {
		return nil, fmt.Errorf("not signed in, run 'flashdeck login' first")
	}
	return c, nil
}

// runChangePassword executes the change and returns exit code
func runChangePassword(ctx context.Context, w io.Writer, c *client.Client, current, next string) int {
	msg, err := c.ChangePassword(ctx, current, next)
	if err != nil {
		printAPIFailure(w, "Password change failed", err)
		return exitCodeFor(err)
	}
	fmt.Fprintf(w, "%s %s\n", styles.StatusOK.Render("✓"), msg)
	return exitOK
}

// runDeleteAccount executes the deletion and returns exit code
func runDeleteAccount(ctx context.Context, w io.Writer, c *client.Client, password string) int {
	msg, err := c.DeleteAccount(ctx, password)
	if err != nil {
		printAPIFailure(w, "Account deletion failed", err)
		return exitCodeFor(err)
	}
	fmt.Fprintf(w, "%s %s\n", styles.StatusOK.Render("✓"), msg)
	return exitOK
}

// printAPIFailure writes the error and any field-level details
func printAPIFailure(w io.Writer, what string, err error) {
	fmt.Fprintf(w, "%s %s: %v\n", styles.StatusCritical.Render("✗"), what, err)
	if apiErr, ok := err.(*client.APIError); ok {
		for _, f := range apiErr.Fields {
			fmt.Fprintf(w, "  %s: %s\n", f.Field, f.Message)
		}
		if apiErr.Code == "SESSION_MISMATCH" || apiErr.Code == "INVALID_SESSION" {
			fmt.Fprintln(w, styles.Hint.Render("  Sign in again with 'flashdeck login'."))
		}
	}
}
