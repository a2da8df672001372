package models

import "time"

// Session represents an authenticated session for an account. Identity flows
// from the session into request context and down into service calls; there is
// no process-wide "current user".
type Session struct {
	Token     string    `json:"token"`
	AccountID string    `json:"accountId"`
	IsAdmin   bool      `json:"isAdmin"` // cached from the account for quick access
	ExpiresAt time.Time `json:"expiresAt"`
	CreatedAt time.Time `json:"createdAt"`
	UserAgent string    `json:"userAgent,omitempty"`
	IPAddress string    `json:"ipAddress,omitempty"`
}

// IsExpired returns true if the session has expired.
func (s Session) IsExpired() bool {
	return time.Now().After(s.ExpiresAt)
}
