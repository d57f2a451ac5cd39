// ABOUTME: Tests for password re-verification via sign-in
// ABOUTME: Includes a deterministic interleaving that shows the snapshot/restore race

package services

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestSignInVerifier_RestoresSession(t *testing.T) {
	p := newFakeProvider()
	p.addUser("user-1", "alice@example.com", "OldPass1!")
	original := p.issue("user-1", "alice@example.com", time.Hour)
	client := NewIdentityClient(p, original)

	if err := (SignInVerifier{}).VerifyPassword(context.Background(), client, "alice@example.com", "OldPass1!"); err != nil {
		t.Fatalf("VerifyPassword failed: %v", err)
	}
	if got := client.Session(); got.AccessToken != original.AccessToken {
		t.Errorf("active session = %s, want original %s", got.AccessToken, original.AccessToken)
	}
	if p.signInCalls != 1 {
		t.Errorf("signInCalls = %d, want 1", p.signInCalls)
	}
}

func TestSignInVerifier_WrongPassword(t *testing.T) {
	p := newFakeProvider()
	p.addUser("user-1", "alice@example.com", "OldPass1!")
	original := p.issue("user-1", "alice@example.com", time.Hour)
	client := NewIdentityClient(p, original)

	err := (SignInVerifier{}).VerifyPassword(context.Background(), client, "alice@example.com", "nope")
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("err = %v, want ErrInvalidCredentials", err)
	}
	if got := client.Session(); got.AccessToken != original.AccessToken {
		t.Error("failed verification must leave the original session active")
	}
}

func TestSignInVerifier_NilSessionStaysNil(t *testing.T) {
	p := newFakeProvider()
	p.addUser("user-1", "alice@example.com", "OldPass1!")
	client := NewIdentityClient(p, nil)

	if err := (SignInVerifier{}).VerifyPassword(context.Background(), client, "alice@example.com", "OldPass1!"); err != nil {
		t.Fatalf("VerifyPassword failed: %v", err)
	}
	if client.Session() != nil {
		t.Error("verification must not leave a session behind")
	}
}

// Two overlapping verifications on one client:
//
//	A: snapshot(original) -> sign in (A1 active)
//	B: snapshot(A1)       -> sign in (B1 active)
//	A: restore(original)
//	B: restore(A1)
//
// The client ends on A1, a session nobody asked for. This is the known race
// of sign-in based verification; it is asserted here so a change in
// behaviour is noticed, not to endorse it.
func TestSignInVerifier_ConcurrentVerificationsClobberSession(t *testing.T) {
	p := newFakeProvider()
	p.addUser("user-1", "alice@example.com", "OldPass1!")
	original := p.issue("user-1", "alice@example.com", time.Hour)
	client := NewIdentityClient(p, original)
	ctx := context.Background()

	aSignedIn := make(chan struct{})
	bSignedIn := make(chan struct{})
	aRestored := make(chan struct{})
	var a1 string

	verifierA := SignInVerifier{afterSignIn: func() {
		a1 = client.Session().AccessToken
		close(aSignedIn)
		<-bSignedIn
	}}
	verifierB := SignInVerifier{afterSignIn: func() {
		close(bSignedIn)
		<-aRestored
	}}

	errA := make(chan error, 1)
	go func() {
		errA <- verifierA.VerifyPassword(ctx, client, "alice@example.com", "OldPass1!")
		close(aRestored)
	}()

	<-aSignedIn
	if err := verifierB.VerifyPassword(ctx, client, "alice@example.com", "OldPass1!"); err != nil {
		t.Fatalf("verification B failed: %v", err)
	}
	if err := <-errA; err != nil {
		t.Fatalf("verification A failed: %v", err)
	}

	got := client.Session().AccessToken
	if got == original.AccessToken {
		t.Fatal("expected the interleaving to clobber the original session")
	}
	if got != a1 {
		t.Errorf("active session = %s, want A's fresh session %s", got, a1)
	}
}

func TestIdentityClient_SessionIsCopy(t *testing.T) {
	p := newFakeProvider()
	s := p.issue("user-1", "alice@example.com", time.Hour)
	client := NewIdentityClient(p, s)

	got := client.Session()
	got.UserID = "mutated"
	if client.Session().UserID != "user-1" {
		t.Error("Session() must return a copy")
	}

	s.UserID = "mutated"
	if client.Session().UserID != "user-1" {
		t.Error("NewIdentityClient must not alias the caller's session")
	}
}

func TestIdentityClient_UpdatePasswordNeedsSession(t *testing.T) {
	client := NewIdentityClient(newFakeProvider(), nil)
	if err := client.UpdatePassword(context.Background(), "NewPass2@"); !errors.Is(err, ErrNoActiveSession) {
		t.Errorf("err = %v, want ErrNoActiveSession", err)
	}
}
