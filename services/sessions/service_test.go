package sessions

import (
	"testing"
	"time"
)

// setupTestService creates a new sessions service for testing with a temp directory.
func setupTestService(t *testing.T) *Service {
	t.Helper()
	svc, err := NewService(t.TempDir(), DefaultSessionDuration)
	if err != nil {
		t.Fatalf("failed to create service: %v", err)
	}
	return svc
}

func TestCreateAndValidate(t *testing.T) {
	svc := setupTestService(t)

	session, err := svc.Create("acct1", false, "test-agent", "127.0.0.1")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if session.Token == "" {
		t.Fatal("expected non-empty token")
	}
	if session.AccountID != "acct1" {
		t.Errorf("expected account 'acct1', got %q", session.AccountID)
	}

	validated, err := svc.Validate(session.Token)
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if validated.AccountID != "acct1" {
		t.Errorf("expected validated account 'acct1', got %q", validated.AccountID)
	}
}

func TestValidate_UnknownToken(t *testing.T) {
	svc := setupTestService(t)

	if _, err := svc.Validate("bogus"); err != ErrSessionNotFound {
		t.Errorf("expected ErrSessionNotFound, got %v", err)
	}
	if _, err := svc.Validate(""); err != ErrInvalidToken {
		t.Errorf("expected ErrInvalidToken for empty token, got %v", err)
	}
}

func TestValidate_Expired(t *testing.T) {
	svc, err := NewService(t.TempDir(), 10*time.Millisecond)
	if err != nil {
		t.Fatalf("NewService failed: %v", err)
	}

	session, err := svc.Create("acct1", false, "", "")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	time.Sleep(20 * time.Millisecond)

	if _, err := svc.Validate(session.Token); err != ErrSessionExpired {
		t.Errorf("expected ErrSessionExpired, got %v", err)
	}

	// The expired session is dropped on first sight.
	if _, err := svc.Validate(session.Token); err != ErrSessionNotFound {
		t.Errorf("expected ErrSessionNotFound after cleanup, got %v", err)
	}
}

func TestRevoke(t *testing.T) {
	svc := setupTestService(t)

	session, _ := svc.Create("acct1", false, "", "")

	if err := svc.Revoke(session.Token); err != nil {
		t.Fatalf("Revoke failed: %v", err)
	}
	if _, err := svc.Validate(session.Token); err != ErrSessionNotFound {
		t.Errorf("expected ErrSessionNotFound after revoke, got %v", err)
	}

	if err := svc.Revoke(session.Token); err != ErrSessionNotFound {
		t.Errorf("expected ErrSessionNotFound on second revoke, got %v", err)
	}
}

func TestRevokeAllForAccount(t *testing.T) {
	svc := setupTestService(t)

	svc.Create("acct1", false, "", "")
	svc.Create("acct1", false, "", "")
	other, _ := svc.Create("acct2", false, "", "")

	if n := svc.RevokeAllForAccount("acct1"); n != 2 {
		t.Errorf("expected 2 revoked sessions, got %d", n)
	}
	if svc.Count() != 1 {
		t.Errorf("expected 1 remaining session, got %d", svc.Count())
	}
	if _, err := svc.Validate(other.Token); err != nil {
		t.Errorf("expected acct2 session to survive, got %v", err)
	}
}

func TestCleanup_RemovesOnlyExpired(t *testing.T) {
	svc, err := NewService(t.TempDir(), 10*time.Millisecond)
	if err != nil {
		t.Fatalf("NewService failed: %v", err)
	}

	svc.Create("acct1", false, "", "")
	time.Sleep(20 * time.Millisecond)

	longSvc := svc
	longSvc.sessionDuration = time.Hour
	fresh, _ := longSvc.Create("acct2", false, "", "")

	if n := svc.Cleanup(); n != 1 {
		t.Errorf("expected 1 cleaned session, got %d", n)
	}
	if _, err := svc.Validate(fresh.Token); err != nil {
		t.Errorf("expected fresh session to survive cleanup, got %v", err)
	}
}

func TestPersistence_SurvivesReload(t *testing.T) {
	dir := t.TempDir()

	svc1, err := NewService(dir, DefaultSessionDuration)
	if err != nil {
		t.Fatalf("NewService failed: %v", err)
	}
	session, err := svc1.Create("acct1", true, "agent", "10.0.0.1")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	svc2, err := NewService(dir, DefaultSessionDuration)
	if err != nil {
		t.Fatalf("reload failed: %v", err)
	}

	validated, err := svc2.Validate(session.Token)
	if err != nil {
		t.Fatalf("Validate after reload failed: %v", err)
	}
	if !validated.IsAdmin {
		t.Error("expected IsAdmin to survive reload")
	}
}

func TestMemoryOnlyMode(t *testing.T) {
	svc, err := NewService("", DefaultSessionDuration)
	if err != nil {
		t.Fatalf("NewService without storage dir failed: %v", err)
	}

	session, err := svc.Create("acct1", false, "", "")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := svc.Validate(session.Token); err != nil {
		t.Errorf("Validate failed in memory-only mode: %v", err)
	}
}
