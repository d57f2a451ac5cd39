// ABOUTME: Tests for request logging middleware
// ABOUTME: Verifies path sanitization, request IDs, and the completed-request log line

package middleware

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestSanitizePath(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"newline injection", "/api/v1/auth/me\nUser admin logged in", "/api/v1/auth/meUser admin logged in"},
		{"carriage return", "/api/test\rmalicious", "/api/testmalicious"},
		{"CRLF", "/api/test\r\ninjected line", "/api/testinjected line"},
		{"tab", "/api/test\tvalue", "/api/testvalue"},
		{"null byte", "/api/test\x00value", "/api/testvalue"},
		{"escape sequence", "/api/test\x1b[31mred\x1b[0m", "/api/test[31mred[0m"},
		{"DEL", "/api/test\x7fvalue", "/api/testvalue"},
		{"normal path", "/api/v1/account/change-password", "/api/v1/account/change-password"},
		{"query chars", "/decks?limit=10&offset=0", "/decks?limit=10&offset=0"},
		{"encoded chars", "/decks/spanish%2Fverbs", "/decks/spanish%2Fverbs"},
		{"unicode", "/decks/español", "/decks/español"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := sanitizePath(tt.input); got != tt.want {
				t.Errorf("sanitizePath(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestLogRequest_SetsRequestIDHeader(t *testing.T) {
	handler := LogRequest(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	rec := httptest.NewRecorder()
	handler(rec, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))

	requestID := rec.Header().Get("X-Request-ID")
	if len(requestID) != 16 { // 8 bytes = 16 hex chars
		t.Errorf("X-Request-ID = %q, want 16 hex chars", requestID)
	}
}

func TestLogRequest_LogsStatusAndSanitizedPath(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewJSONHandler(&buf, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })

	handler := LogRequest(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/account/delete", nil)
	req.URL.Path = "/api/v1/account/delete\nforged"
	rec := httptest.NewRecorder()
	handler(rec, req)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 log lines, got %d: %q", len(lines), buf.String())
	}
	var completed map[string]interface{}
	if err := json.Unmarshal([]byte(lines[1]), &completed); err != nil {
		t.Fatalf("decode log line: %v", err)
	}
	if completed["status"] != float64(http.StatusForbidden) {
		t.Errorf("status = %v, want 403", completed["status"])
	}
	if completed["path"] != "/api/v1/account/deleteforged" {
		t.Errorf("path = %v, want sanitized path", completed["path"])
	}
	if completed["request_id"] != rec.Header().Get("X-Request-ID") {
		t.Error("log request_id should match the response header")
	}
}

func TestResponseWriter_WriteMarksHeader(t *testing.T) {
	rw := &responseWriter{ResponseWriter: httptest.NewRecorder(), statusCode: http.StatusOK}
	if rw.wroteHeader {
		t.Fatal("fresh writer should not report a written header")
	}
	rw.Write([]byte("ok"))
	if !rw.wroteHeader || rw.statusCode != http.StatusOK {
		t.Errorf("after Write: wroteHeader=%v status=%d", rw.wroteHeader, rw.statusCode)
	}
}
