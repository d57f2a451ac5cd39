// ABOUTME: Security audit event model for sensitive account actions
// ABOUTME: Immutable records ordered by timestamp, persisted by an audit sink

package models

import "time"

// AuditAction identifies the kind of sensitive action being recorded
type AuditAction string

const (
	AuditLogin                   AuditAction = "login"
	AuditLogout                  AuditAction = "logout"
	AuditChangePassword          AuditAction = "change_password"
	AuditDeleteAccount           AuditAction = "delete_account"
	AuditSessionMismatch         AuditAction = "session_mismatch"
	AuditRateLimitExceeded       AuditAction = "rate_limit_exceeded"
	AuditTokenVerificationFailed AuditAction = "token_verification_failed"
	AuditSessionRefresh          AuditAction = "session_refresh"
)

// AuditStatus is the outcome of an audited action
type AuditStatus string

const (
	AuditSuccess AuditStatus = "success"
	AuditFailure AuditStatus = "failure"
)

// SecurityEvent is an append-only audit record. It is never mutated after
// it has been handed to a sink.
type SecurityEvent struct {
	ID        string      `json:"id"`
	Timestamp time.Time   `json:"timestamp"`
	UserID    string      `json:"user_id,omitempty"`
	Action    AuditAction `json:"action"`
	Status    AuditStatus `json:"status"`
	Details   string      `json:"details,omitempty"`
	IP        string      `json:"ip,omitempty"`
	UserAgent string      `json:"user_agent,omitempty"`
}
