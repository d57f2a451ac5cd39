// ABOUTME: Rate-limited, audited change-password and delete-account flows
// ABOUTME: Each flow runs its checks in a fixed order and returns typed API errors

package services

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/markalston/flashdeck/backend/models"
)

// AccountServiceConfig wires the account flows
type AccountServiceConfig struct {
	Limiter          AttemptLimiter
	Audit            *AuditLog
	Profiles         ProfileStore
	Verifier         CredentialVerifier // defaults to SignInVerifier
	ChangePolicy     AttemptPolicy      // defaults to ChangePasswordPolicy
	DeletePolicy     AttemptPolicy      // defaults to DeleteAccountPolicy
	MismatchDelayMax time.Duration      // upper bound of the random delay on SESSION_MISMATCH
}

// AccountService runs sensitive account mutations
type AccountService struct {
	limiter          AttemptLimiter
	audit            *AuditLog
	profiles         ProfileStore
	verifier         CredentialVerifier
	changePolicy     AttemptPolicy
	deletePolicy     AttemptPolicy
	mismatchDelayMax time.Duration
	now              func() time.Time
}

func NewAccountService(cfg AccountServiceConfig) *AccountService {
	s := &AccountService{
		limiter:          cfg.Limiter,
		audit:            cfg.Audit,
		profiles:         cfg.Profiles,
		verifier:         cfg.Verifier,
		changePolicy:     cfg.ChangePolicy,
		deletePolicy:     cfg.DeletePolicy,
		mismatchDelayMax: cfg.MismatchDelayMax,
		now:              time.Now,
	}
	if s.verifier == nil {
		s.verifier = SignInVerifier{}
	}
	if s.changePolicy.Name == "" {
		s.changePolicy = ChangePasswordPolicy
	}
	if s.deletePolicy.Name == "" {
		s.deletePolicy = DeleteAccountPolicy
	}
	return s
}

// AccountRequest is the authenticated context shared by both flows
type AccountRequest struct {
	Session      *models.Session // nil when the request is anonymous
	Client       *IdentityClient
	CookieUserID string // raw user_id cookie, empty when absent
	BodyErr      error  // request body could not be decoded; reported after the attempt is recorded
}

// ChangePassword verifies the current password and sets a new one
func (s *AccountService) ChangePassword(ctx context.Context, ar AccountRequest, req models.ChangePasswordRequest) error {
	userID, err := s.authorize(ctx, ar, s.changePolicy, models.AuditChangePassword)
	if err != nil {
		return err
	}
	if ar.BodyErr != nil {
		return models.NewValidationError("Invalid request body", nil)
	}

	if fields := ValidateChangePassword(req); len(fields) > 0 {
		return models.NewValidationError("Invalid input", fields)
	}

	if err := s.verifyToken(ctx, ar, userID); err != nil {
		return err
	}

	if err := s.verifyPassword(ctx, ar, req.CurrentPassword, models.AuditChangePassword); err != nil {
		return err
	}

	if err := ar.Client.UpdatePassword(ctx, req.NewPassword); err != nil {
		slog.Error("Password update failed", "user_id", userID, "error", err)
		s.audit.Failure(ctx, userID, models.AuditChangePassword, "password update failed")
		return models.NewUpstreamError(models.CodePasswordUpdate, "Failed to update password", err)
	}

	s.resetAttempts(ctx, s.changePolicy, userID)
	s.audit.Success(ctx, userID, models.AuditChangePassword, "")
	slog.Info("Password changed", "user_id", userID)
	return nil
}

// DeleteAccount verifies the password and soft-deletes the profile.
// The caller clears the session cookies on success.
func (s *AccountService) DeleteAccount(ctx context.Context, ar AccountRequest, req models.DeleteAccountRequest) error {
	userID, err := s.authorize(ctx, ar, s.deletePolicy, models.AuditDeleteAccount)
	if err != nil {
		return err
	}
	if ar.BodyErr != nil {
		return models.NewValidationError("Invalid request body", nil)
	}

	if fields := ValidateDeleteAccount(req); len(fields) > 0 {
		return models.NewValidationError("Invalid input", fields)
	}

	if err := s.verifyToken(ctx, ar, userID); err != nil {
		return err
	}

	deleted, err := s.profiles.IsDeleted(ctx, userID)
	if err != nil {
		slog.Error("Profile lookup failed", "user_id", userID, "error", err)
		return models.NewUpstreamError(models.CodeDatabase, "Failed to load account", err)
	}
	if deleted {
		return models.NewConflictError(models.CodeAlreadyDeleted, "Account is already deleted")
	}

	if err := s.verifyPassword(ctx, ar, req.Password, models.AuditDeleteAccount); err != nil {
		return err
	}

	if err := s.profiles.MarkDeleted(ctx, userID, s.now()); err != nil {
		slog.Error("Soft delete failed", "user_id", userID, "error", err)
		s.audit.Failure(ctx, userID, models.AuditDeleteAccount, "soft delete failed")
		return models.NewUpstreamError(models.CodeUpdate, "Failed to delete account", err)
	}

	s.resetAttempts(ctx, s.deletePolicy, userID)
	s.audit.Success(ctx, userID, models.AuditDeleteAccount, "")
	slog.Info("Account soft-deleted", "user_id", userID)
	return nil
}

// authorize runs the authentication, identity cross-check, and rate-limit steps.
// Identity mismatches never consume an attempt.
func (s *AccountService) authorize(ctx context.Context, ar AccountRequest, policy AttemptPolicy, action models.AuditAction) (string, error) {
	if ar.Session == nil || ar.Session.UserID == "" || ar.Client == nil {
		return "", models.NewAuthError(models.CodeUnauthorized, "Authentication required", nil)
	}
	userID := ar.Session.UserID

	if ar.CookieUserID != "" && ar.CookieUserID != userID {
		slog.Warn("User cookie does not match session", "session_user_id", userID, "action", action)
		s.audit.Failure(ctx, userID, models.AuditSessionMismatch, string(action)+": user_id cookie does not match session")
		MismatchDelay(ctx, s.mismatchDelayMax)
		return "", models.NewForbiddenError(models.CodeSessionMismatch, "Session validation failed")
	}

	decision, err := s.limiter.CheckAndRecord(ctx, policy, userID)
	if err != nil {
		slog.Error("Attempt limiter unavailable", "policy", policy.Name, "error", err)
		return "", models.NewInternalError(err)
	}
	if !decision.Allowed {
		slog.Warn("Attempt limit exceeded", "user_id", userID, "policy", policy.Name, "retry_after", decision.RetryAfter)
		s.audit.Failure(ctx, userID, models.AuditRateLimitExceeded, string(action))
		return "", models.NewRateLimitError(decision.RetryAfter)
	}
	return userID, nil
}

// verifyToken re-checks the access token against the provider so a cookie
// swapped after the session was loaded cannot act for another user
func (s *AccountService) verifyToken(ctx context.Context, ar AccountRequest, userID string) error {
	sub, err := ar.Client.VerifyAccessToken(ctx, ar.Session.AccessToken)
	if err != nil || sub != userID {
		slog.Warn("Access token re-verification failed", "user_id", userID, "error", err)
		s.audit.Failure(ctx, userID, models.AuditTokenVerificationFailed, "access token did not verify for session user")
		return models.NewAuthError(models.CodeInvalidSession, "Invalid session", err)
	}
	return nil
}

func (s *AccountService) verifyPassword(ctx context.Context, ar AccountRequest, password string, action models.AuditAction) error {
	err := s.verifier.VerifyPassword(ctx, ar.Client, ar.Session.Email, password)
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrInvalidCredentials) {
		s.audit.Failure(ctx, ar.Session.UserID, action, "invalid credentials")
		return models.NewAuthError(models.CodeInvalidCredentials, "Invalid credentials", nil)
	}
	slog.Error("Credential verification failed", "user_id", ar.Session.UserID, "error", err)
	s.audit.Failure(ctx, ar.Session.UserID, action, "credential check unavailable")
	return models.NewInternalError(err)
}

func (s *AccountService) resetAttempts(ctx context.Context, policy AttemptPolicy, userID string) {
	if err := s.limiter.Reset(ctx, policy, userID); err != nil {
		slog.Error("Failed to reset attempt counter", "user_id", userID, "policy", policy.Name, "error", err)
	}
}

// MismatchDelay sleeps for a random duration in [limit/2, limit) or until ctx is done
func MismatchDelay(ctx context.Context, limit time.Duration) {
	if limit <= 0 {
		return
	}
	half := limit / 2
	d := half
	if span := limit - half; span > 0 {
		d += time.Duration(rand.Int64N(int64(span)))
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
