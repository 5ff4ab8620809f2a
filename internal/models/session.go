package models

import "time"

// Session is a stored bearer token. Only the SHA-256 of the token is kept.
type Session struct {
	TokenHash []byte
	Username  string
	IPAddress string
	UserAgent string
	CreatedAt time.Time
	ExpiresAt time.Time
}

func (s Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.After(now)
}

// Lockout tracks consecutive failed logins for one username.
// A zero LockedUntil means the account is not locked.
type Lockout struct {
	Username       string
	FailedAttempts int
	LockedUntil    time.Time
}

// Clear reports whether l carries no failures and no lock, the state of a
// username that has never failed.
func (l Lockout) Clear() bool {
	return l.FailedAttempts == 0 && l.LockedUntil.IsZero()
}

func (l Lockout) Locked(now time.Time) bool {
	return !l.LockedUntil.IsZero() && l.LockedUntil.After(now)
}

// Remaining is the time left on an active lock, rounded up to whole seconds.
func (l Lockout) Remaining(now time.Time) time.Duration {
	if !l.Locked(now) {
		return 0
	}
	left := l.LockedUntil.Sub(now)
	if rem := left % time.Second; rem != 0 {
		left += time.Second - rem
	}
	return left
}
