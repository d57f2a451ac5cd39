// ABOUTME: Interactive prompts for credentials and destructive confirmations
// ABOUTME: Built on huh forms with masked password input

package prompt

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/markalston/flashdeck/cli/internal/styles"
)

// ErrAborted is returned when the user cancels a form
var ErrAborted = errors.New("aborted")

const minNewPasswordLength = 8

// Credentials asks for an email and password. A non-empty email is kept as the default.
func Credentials(email, password *string) error {
	return run(huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Email").
				Placeholder("you@example.com").
				Value(email).
				Validate(validateEmail),
			huh.NewInput().
				Title("Password").
				EchoMode(huh.EchoModePassword).
				Value(password).
				Validate(required("password")),
		).Title("Sign in to Flashdeck"),
	))
}

// NewPassword asks for the current password and a confirmed new one
func NewPassword(current, next *string) error {
	var confirm string
	return run(huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Current password").
				EchoMode(huh.EchoModePassword).
				Value(current).
				Validate(required("current password")),
			huh.NewInput().
				Title("New password").
				Description("At least 8 characters with upper and lower case, a digit, and a symbol").
				EchoMode(huh.EchoModePassword).
				Value(next).
				Validate(validateNewPassword),
			huh.NewInput().
				Title("Confirm new password").
				EchoMode(huh.EchoModePassword).
				Value(&confirm).
				Validate(func(s string) error {
					if s != *next {
						return fmt.Errorf("passwords do not match")
					}
					return nil
				}),
		).Title("Change password"),
	))
}

// ConfirmDelete asks for the password and an explicit confirmation.
// confirmed is false when the user declines.
func ConfirmDelete(email string, password *string, confirmed *bool) error {
	return run(huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(fmt.Sprintf("Delete the account %s?", email)).
				Description("Your decks and progress will no longer be reachable.").
				Affirmative("Delete").
				Negative("Cancel").
				Value(confirmed),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Password").
				EchoMode(huh.EchoModePassword).
				Value(password).
				Validate(required("password")),
		).WithHideFunc(func() bool { return !*confirmed }),
	))
}

func run(form *huh.Form) error {
	err := form.WithTheme(theme()).Run()
	if errors.Is(err, huh.ErrUserAborted) {
		return ErrAborted
	}
	return err
}

func theme() *huh.Theme {
	t := huh.ThemeBase()

	t.Group.Title = lipgloss.NewStyle().
		Foreground(styles.Primary).
		Bold(true).
		MarginBottom(1)
	t.Focused.Base = lipgloss.NewStyle().
		PaddingLeft(1).
		BorderStyle(lipgloss.ThickBorder()).
		BorderLeft(true).
		BorderForeground(styles.Primary)
	t.Focused.Title = lipgloss.NewStyle().
		Foreground(styles.Accent).
		Bold(true)
	t.Focused.Description = lipgloss.NewStyle().
		Foreground(styles.Muted)
	t.Focused.ErrorMessage = lipgloss.NewStyle().
		Foreground(styles.Danger)
	t.Blurred = t.Focused
	t.Blurred.Base = t.Blurred.Base.BorderForeground(styles.Border)

	return t
}

func required(name string) func(string) error {
	return func(s string) error {
		if s == "" {
			return fmt.Errorf("%s is required", name)
		}
		return nil
	}
}

func validateEmail(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return fmt.Errorf("email is required")
	}
	if !strings.Contains(s, "@") {
		return fmt.Errorf("email is invalid")
	}
	return nil
}

// validateNewPassword mirrors the length check the backend applies; the
// backend stays authoritative for the complexity rules
func validateNewPassword(s string) error {
	if utf8.RuneCountInString(s) < minNewPasswordLength {
		return fmt.Errorf("must be at least %d characters", minNewPasswordLength)
	}
	return nil
}
