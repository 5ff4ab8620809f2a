package service

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"intelplatform/internal/models"
	"intelplatform/internal/repository"
)

// LockStatus is the lockout state of one username at a point in time.
type LockStatus struct {
	Locked    bool
	Remaining time.Duration
	Attempts  int
}

// LockoutTracker rate-limits logins per username. Every transition runs
// inside LockoutStore.Update so concurrent failures cannot lose increments.
type LockoutTracker struct {
	store       repository.LockoutStore
	maxAttempts int
	duration    time.Duration
	now         func() time.Time
	log         zerolog.Logger
}

func NewLockoutTracker(store repository.LockoutStore, maxAttempts int, duration time.Duration, log zerolog.Logger) *LockoutTracker {
	return &LockoutTracker{
		store:       store,
		maxAttempts: maxAttempts,
		duration:    duration,
		now:         time.Now,
		log:         log,
	}
}

func (t *LockoutTracker) status(lockout models.Lockout, now time.Time) LockStatus {
	if lockout.Locked(now) {
		return LockStatus{Locked: true, Remaining: lockout.Remaining(now)}
	}
	return LockStatus{Attempts: lockout.FailedAttempts}
}

// Check reads the current state. An expired lock reads as unlocked without
// being cleared.
func (t *LockoutTracker) Check(ctx context.Context, username string) (LockStatus, error) {
	lockout, err := t.store.Get(ctx, username)
	if err != nil {
		return LockStatus{}, storageErr("read lockout", err)
	}
	return t.status(lockout, t.now()), nil
}

// RecordFailure counts a failed attempt. It does nothing while the account
// is locked; the attempt that reaches the threshold locks the account and
// resets the counter.
func (t *LockoutTracker) RecordFailure(ctx context.Context, username string) (LockStatus, error) {
	now := t.now()
	var status LockStatus
	var tripped bool

	err := t.store.Update(ctx, username, func(l *models.Lockout) error {
		tripped = false
		if l.Locked(now) {
			status = t.status(*l, now)
			return nil
		}
		l.LockedUntil = time.Time{}
		l.FailedAttempts++
		if l.FailedAttempts >= t.maxAttempts {
			l.FailedAttempts = 0
			l.LockedUntil = now.Add(t.duration)
			tripped = true
		}
		status = t.status(*l, now)
		return nil
	})
	if err != nil {
		return LockStatus{}, storageErr("record failure", err)
	}

	if tripped {
		t.log.Warn().Str("username", username).Dur("duration", t.duration).Msg("account locked after failed logins")
	}
	return status, nil
}

func (t *LockoutTracker) RecordSuccess(ctx context.Context, username string) error {
	err := t.store.Update(ctx, username, func(l *models.Lockout) error {
		l.FailedAttempts = 0
		l.LockedUntil = time.Time{}
		return nil
	})
	if err != nil {
		return storageErr("record success", err)
	}
	return nil
}

// Reset forgets all lockout state for username.
func (t *LockoutTracker) Reset(ctx context.Context, username string) error {
	if err := t.store.Delete(ctx, username); err != nil {
		return storageErr("reset lockout", err)
	}
	return nil
}
