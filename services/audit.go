// ABOUTME: Best-effort security audit log for sensitive account actions
// ABOUTME: Events fan out to slog, memory, or Postgres sinks; sink failures never reach callers

package services

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/markalston/flashdeck/backend/models"
)

// AuditSink persists security events
type AuditSink interface {
	Append(ctx context.Context, event models.SecurityEvent) error
}

// AuditLog stamps events and hands them to a sink
type AuditLog struct {
	sink AuditSink
	now  func() time.Time
}

// NewAuditLog creates an audit log writing to sink
func NewAuditLog(sink AuditSink) *AuditLog {
	return &AuditLog{sink: sink, now: time.Now}
}

type clientInfoKey struct{}

type clientInfo struct {
	ip        string
	userAgent string
}

// WithClientInfo attaches the caller's address and user agent to ctx for audit records
func WithClientInfo(ctx context.Context, ip, userAgent string) context.Context {
	return context.WithValue(ctx, clientInfoKey{}, clientInfo{ip: ip, userAgent: userAgent})
}

// Record assigns an ID and timestamp and appends the event. A nil AuditLog
// discards events. Sink errors are logged and dropped.
func (a *AuditLog) Record(ctx context.Context, event models.SecurityEvent) {
	if a == nil || a.sink == nil {
		return
	}
	event.ID = uuid.NewString()
	event.Timestamp = a.now().UTC()
	if ci, ok := ctx.Value(clientInfoKey{}).(clientInfo); ok {
		if event.IP == "" {
			event.IP = ci.ip
		}
		if event.UserAgent == "" {
			event.UserAgent = ci.userAgent
		}
	}

	if err := a.sink.Append(ctx, event); err != nil {
		slog.Error("Audit sink append failed",
			"action", event.Action,
			"status", event.Status,
			"user_id", event.UserID,
			"error", err)
	}
}

// Success records a successful action
func (a *AuditLog) Success(ctx context.Context, userID string, action models.AuditAction, details string) {
	a.Record(ctx, models.SecurityEvent{UserID: userID, Action: action, Status: models.AuditSuccess, Details: details})
}

// Failure records a failed action
func (a *AuditLog) Failure(ctx context.Context, userID string, action models.AuditAction, details string) {
	a.Record(ctx, models.SecurityEvent{UserID: userID, Action: action, Status: models.AuditFailure, Details: details})
}

// SlogAuditSink writes events as structured log lines.
// Failures log at WARN and session mismatches at ERROR.
type SlogAuditSink struct {
	Logger *slog.Logger
}

func (s SlogAuditSink) Append(ctx context.Context, e models.SecurityEvent) error {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}

	level := slog.LevelInfo
	switch {
	case e.Action == models.AuditSessionMismatch:
		level = slog.LevelError
	case e.Status == models.AuditFailure:
		level = slog.LevelWarn
	}

	logger.Log(ctx, level, "Security event",
		"event_id", e.ID,
		"action", e.Action,
		"status", e.Status,
		"user_id", e.UserID,
		"details", e.Details,
		"ip", e.IP,
		"user_agent", e.UserAgent)
	return nil
}

// MemoryAuditSink keeps events in process memory
type MemoryAuditSink struct {
	mu     sync.Mutex
	events []models.SecurityEvent
}

func NewMemoryAuditSink() *MemoryAuditSink {
	return &MemoryAuditSink{}
}

func (s *MemoryAuditSink) Append(ctx context.Context, e models.SecurityEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
	return nil
}

// Events returns a copy of the recorded events in append order
func (s *MemoryAuditSink) Events() []models.SecurityEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.SecurityEvent, len(s.events))
	copy(out, s.events)
	return out
}

// MultiAuditSink appends to every sink and joins their errors
type MultiAuditSink []AuditSink

func (m MultiAuditSink) Append(ctx context.Context, e models.SecurityEvent) error {
	var errs []error
	for _, s := range m {
		if err := s.Append(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
