// ABOUTME: Tests for prompt field validators
// ABOUTME: Forms themselves need a terminal and are not exercised here

package prompt

import "testing"

func TestValidateEmail(t *testing.T) {
	tests := []struct {
		input   string
		wantErr bool
	}{
		{"alice@example.com", false},
		{"  alice@example.com  ", false},
		{"", true},
		{"   ", true},
		{"alice", true},
	}
	for _, tt := range tests {
		if err := validateEmail(tt.input); (err != nil) != tt.wantErr {
			t.Errorf("validateEmail(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
		}
	}
}

func TestValidateNewPassword(t *testing.T) {
	if err := validateNewPassword("short"); err == nil {
		t.Error("expected an error for a short password")
	}
	// Counted in characters, not bytes
	if err := validateNewPassword("ñññññññ"); err == nil {
		t.Error("seven multi-byte characters should still be too short")
	}
	if err := validateNewPassword("NewPass2@"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestRequired(t *testing.T) {
	check := required("password")
	if err := check(""); err == nil || err.Error() != "password is required" {
		t.Errorf("required(\"\") = %v", err)
	}
	if err := check("x"); err != nil {
		t.Errorf("required(\"x\") = %v", err)
	}
}

func TestTheme(t *testing.T) {
	if theme() == nil {
		t.Fatal("theme() returned nil")
	}
}
