// ABOUTME: Input validation for login and account mutation payloads
// ABOUTME: Returns field-level errors; lengths are counted in characters

package services

import (
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/markalston/flashdeck/backend/models"
)

const (
	maxPasswordLength    = 128
	minNewPasswordLength = 8
	maxEmailLength       = 254
)

// sanitizeForLog removes control characters from strings to prevent log injection
func sanitizeForLog(s string) string {
	return strings.Map(func(r rune) rune {
		if r < 32 || r == 127 {
			return -1
		}
		return r
	}, s)
}

// ValidateChangePassword checks a change-password body
func ValidateChangePassword(req models.ChangePasswordRequest) []models.FieldError {
	var errs []models.FieldError

	if msg := checkLength(req.CurrentPassword, 1, maxPasswordLength, "Current password"); msg != "" {
		errs = append(errs, models.FieldError{Field: "currentPassword", Message: msg})
	}

	if msg := checkLength(req.NewPassword, minNewPasswordLength, maxPasswordLength, "New password"); msg != "" {
		errs = append(errs, models.FieldError{Field: "newPassword", Message: msg})
	} else if msg := checkComplexity(req.NewPassword); msg != "" {
		errs = append(errs, models.FieldError{Field: "newPassword", Message: msg})
	} else if req.NewPassword == req.CurrentPassword {
		errs = append(errs, models.FieldError{Field: "newPassword", Message: "New password must be different from the current password"})
	}

	return errs
}

// ValidateDeleteAccount checks a delete-account body
func ValidateDeleteAccount(req models.DeleteAccountRequest) []models.FieldError {
	if msg := checkLength(req.Password, 1, maxPasswordLength, "Password"); msg != "" {
		return []models.FieldError{{Field: "password", Message: msg}}
	}
	return nil
}

// ValidateLogin checks a login body
func ValidateLogin(req models.LoginRequest) []models.FieldError {
	var errs []models.FieldError

	email := strings.TrimSpace(req.Email)
	switch {
	case email == "":
		errs = append(errs, models.FieldError{Field: "email", Message: "Email is required"})
	case utf8.RuneCountInString(email) > maxEmailLength || !strings.Contains(email, "@"):
		errs = append(errs, models.FieldError{Field: "email", Message: "Email is invalid"})
	}

	if msg := checkLength(req.Password, 1, maxPasswordLength, "Password"); msg != "" {
		errs = append(errs, models.FieldError{Field: "password", Message: msg})
	}
	return errs
}

func checkLength(value string, lo, hi int, label string) string {
	n := utf8.RuneCountInString(value)
	switch {
	case n == 0:
		return label + " is required"
	case n < lo:
		return label + " must be at least " + strconv.Itoa(lo) + " characters"
	case n > hi:
		return label + " must be at most " + strconv.Itoa(hi) + " characters"
	}
	return ""
}

func checkComplexity(pw string) string {
	var upper, lower, digit, symbol bool
	for _, r := range pw {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			symbol = true
		}
	}
	if !upper || !lower || !digit || !symbol {
		return "New password must contain an uppercase letter, a lowercase letter, a digit, and a symbol"
	}
	return ""
}
