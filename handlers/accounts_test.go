package handlers_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"

	"reelvault/handlers"
	"reelvault/models"
	"reelvault/services/accounts"
	"reelvault/services/sessions"
)

func setupAccountsHandler(t *testing.T) (*handlers.AccountsHandler, *accounts.Service, *sessions.Service) {
	t.Helper()
	tmpDir := t.TempDir()

	accountsSvc, err := accounts.NewService(tmpDir)
	if err != nil {
		t.Fatalf("failed to create accounts service: %v", err)
	}
	sessionsSvc, err := sessions.NewService(tmpDir, sessions.DefaultSessionDuration)
	if err != nil {
		t.Fatalf("failed to create sessions service: %v", err)
	}

	return handlers.NewAccountsHandler(accountsSvc, sessionsSvc), accountsSvc, sessionsSvc
}

func TestAccountsList(t *testing.T) {
	handler, accountsSvc, _ := setupAccountsHandler(t)

	if _, err := accountsSvc.Create("alice", "password1"); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/accounts", nil)
	rec := httptest.NewRecorder()
	handler.List(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var list []models.Account
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	// Seeded admin plus alice
	if len(list) != 2 {
		t.Fatalf("expected 2 accounts, got %d", len(list))
	}
	if list[0].Username != "admin" {
		t.Errorf("expected admin first, got %q", list[0].Username)
	}
}

func TestAccountsCreate(t *testing.T) {
	handler, _, _ := setupAccountsHandler(t)

	body, _ := json.Marshal(handlers.CreateAccountRequest{Username: "bob", Password: "secret123"})
	req := httptest.NewRequest(http.MethodPost, "/api/accounts", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	handler.Create(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var acc models.Account
	json.Unmarshal(rec.Body.Bytes(), &acc)
	if acc.Username != "bob" {
		t.Errorf("expected username bob, got %q", acc.Username)
	}
	if acc.IsAdmin {
		t.Error("created accounts must not be admin")
	}

	// Duplicate username conflicts
	req = httptest.NewRequest(http.MethodPost, "/api/accounts", bytes.NewReader(body))
	rec = httptest.NewRecorder()
	handler.Create(rec, req)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 for duplicate username, got %d", rec.Code)
	}
}

func TestAccountsCreate_Validation(t *testing.T) {
	handler, _, _ := setupAccountsHandler(t)

	body, _ := json.Marshal(handlers.CreateAccountRequest{Username: "", Password: "x"})
	req := httptest.NewRequest(http.MethodPost, "/api/accounts", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	handler.Create(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestAccountsDelete(t *testing.T) {
	handler, accountsSvc, sessionsSvc := setupAccountsHandler(t)

	acc, err := accountsSvc.Create("carol", "password1")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	session, _ := sessionsSvc.Create(acc.ID, false, "", "")

	req := httptest.NewRequest(http.MethodDelete, "/api/accounts/"+acc.ID, nil)
	req = mux.SetURLVars(req, map[string]string{"accountID": acc.ID})
	rec := httptest.NewRecorder()
	handler.Delete(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d: %s", rec.Code, rec.Body.String())
	}

	if accountsSvc.Exists(acc.ID) {
		t.Error("expected account to be deleted")
	}
	if _, err := sessionsSvc.Validate(session.Token); err == nil {
		t.Error("expected the account's sessions to be revoked")
	}
}

func TestAccountsDelete_AdminProtected(t *testing.T) {
	handler, _, _ := setupAccountsHandler(t)

	req := httptest.NewRequest(http.MethodDelete, "/api/accounts/admin", nil)
	req = mux.SetURLVars(req, map[string]string{"accountID": "admin"})
	rec := httptest.NewRecorder()
	handler.Delete(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
}

func TestAccountsResetPassword(t *testing.T) {
	handler, accountsSvc, sessionsSvc := setupAccountsHandler(t)

	acc, _ := accountsSvc.Create("dave", "oldpassword")
	session, _ := sessionsSvc.Create(acc.ID, false, "", "")

	body := []byte(`{"newPassword": "newpassword"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/accounts/"+acc.ID+"/password", bytes.NewReader(body))
	req = mux.SetURLVars(req, map[string]string{"accountID": acc.ID})
	rec := httptest.NewRecorder()
	handler.ResetPassword(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	if _, err := accountsSvc.Authenticate("dave", "newpassword"); err != nil {
		t.Errorf("expected new password to work: %v", err)
	}
	if _, err := sessionsSvc.Validate(session.Token); err == nil {
		t.Error("expected sessions to be revoked after password reset")
	}
}

func TestHasDefaultPassword(t *testing.T) {
	handler, accountsSvc, _ := setupAccountsHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/api/accounts/default-password", nil)
	rec := httptest.NewRecorder()
	handler.HasDefaultPassword(rec, req)

	var resp map[string]bool
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if !resp["hasDefaultPassword"] {
		t.Error("fresh install should report the default admin password")
	}

	if err := accountsSvc.UpdatePassword("admin", "hardened-password"); err != nil {
		t.Fatalf("UpdatePassword failed: %v", err)
	}

	rec = httptest.NewRecorder()
	handler.HasDefaultPassword(rec, req)
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp["hasDefaultPassword"] {
		t.Error("expected default password flag to clear after change")
	}
}
