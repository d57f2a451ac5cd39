// ABOUTME: Tests for panic recovery middleware
// ABOUTME: Verifies panics become the standard 500 error body

package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/markalston/flashdeck/backend/models"
)

func TestRecover_ConvertsPanic(t *testing.T) {
	handler := Recover(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})

	rec := httptest.NewRecorder()
	handler(rec, httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("Status = %d, want 500", rec.Code)
	}
	var body models.ErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Error.Code != models.CodeInternalServerError {
		t.Errorf("code = %q, want %q", body.Error.Code, models.CodeInternalServerError)
	}
	if body.Error.Message == "boom" {
		t.Error("panic value must not leak to the client")
	}
}

func TestRecover_PassesThrough(t *testing.T) {
	handler := Recover(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	})

	rec := httptest.NewRecorder()
	handler(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusAccepted {
		t.Errorf("Status = %d, want 202", rec.Code)
	}
}

func TestRecover_AfterHeadersWritten(t *testing.T) {
	handler := Recover(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		panic("late")
	})

	rec := httptest.NewRecorder()
	handler(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("Status = %d, want the already written 200", rec.Code)
	}
}
