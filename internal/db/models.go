// Package db stores sign-in sessions for the route guard in SQLite.
package db

import "time"

// Session is one sign-in. Tokens name it by ID; revoking it invalidates every
// token minted for it.
type Session struct {
	ID        string
	UserID    string
	CreatedAt time.Time
	ExpiresAt time.Time
	RevokedAt *time.Time
}

// Active reports whether the session can still authenticate requests at now.
func (s Session) Active(now time.Time) bool {
	return s.RevokedAt == nil && now.Before(s.ExpiresAt)
}
