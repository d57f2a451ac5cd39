// ABOUTME: Postgres-backed audit sink
// ABOUTME: Appends security events to the security_events table

package services

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/markalston/flashdeck/backend/models"
)

// PostgresAuditSink inserts events into security_events
type PostgresAuditSink struct {
	db *pgxpool.Pool
}

func NewPostgresAuditSink(db *pgxpool.Pool) *PostgresAuditSink {
	return &PostgresAuditSink{db: db}
}

func (s *PostgresAuditSink) Append(ctx context.Context, e models.SecurityEvent) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO security_events (id, occurred_at, user_id, action, status, details, ip, user_agent)
		 VALUES ($1, $2, NULLIF($3, ''), $4, $5, NULLIF($6, ''), NULLIF($7, ''), NULLIF($8, ''))`,
		e.ID, e.Timestamp, e.UserID, string(e.Action), string(e.Status), e.Details, e.IP, e.UserAgent,
	)
	if err != nil {
		return fmt.Errorf("insert security event: %w", err)
	}
	return nil
}
