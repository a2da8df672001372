package auth

import (
	"net/http"

	"reelvault/models"
)

// ContextKey is the type used for context keys
type ContextKey string

const (
	// ContextKeyAccountID is the key for the account ID in the context
	ContextKeyAccountID ContextKey = "accountID"
	// ContextKeyIsAdmin is the key for the admin flag in the context
	ContextKeyIsAdmin ContextKey = "isAdmin"
	// ContextKeySession is the key for the session in the context
	ContextKeySession ContextKey = "session"
)

// GetAccountID retrieves the authenticated account ID from the request context.
func GetAccountID(r *http.Request) string {
	if id, ok := r.Context().Value(ContextKeyAccountID).(string); ok {
		return id
	}
	return ""
}

// IsAdmin checks if the authenticated account is an admin account.
func IsAdmin(r *http.Request) bool {
	if isAdmin, ok := r.Context().Value(ContextKeyIsAdmin).(bool); ok {
		return isAdmin
	}
	return false
}

// GetSession retrieves the validated session from the request context.
func GetSession(r *http.Request) *models.Session {
	if s, ok := r.Context().Value(ContextKeySession).(*models.Session); ok {
		return s
	}
	return nil
}
