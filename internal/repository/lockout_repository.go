package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"intelplatform/internal/models"
)

// LockoutStore persists per-username failure counters. Update must run fn
// as one atomic read-modify-write for that username.
type LockoutStore interface {
	Get(ctx context.Context, username string) (models.Lockout, error)
	Update(ctx context.Context, username string, fn func(*models.Lockout) error) error
	Delete(ctx context.Context, username string) error
}

type PostgresLockoutStore struct {
	db DB
}

func NewPostgresLockoutStore(db DB) *PostgresLockoutStore {
	return &PostgresLockoutStore{db: db}
}

func (r *PostgresLockoutStore) Get(ctx context.Context, username string) (models.Lockout, error) {
	const query = `SELECT failed_attempts, locked_until FROM login_lockouts WHERE username = $1`

	lockout, err := scanLockout(r.db.QueryRow(ctx, query, username), username)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Lockout{Username: username}, nil
	}
	return lockout, err
}

// Update locks the row for username and applies fn to it. A username without
// a row is only inserted once fn leaves it holding failures or a lock.
func (r *PostgresLockoutStore) Update(ctx context.Context, username string, fn func(*models.Lockout) error) (err error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	lockout, err := lockForUpdate(ctx, tx, username)
	found := err == nil
	if errors.Is(err, pgx.ErrNoRows) {
		lockout, err = models.Lockout{Username: username}, nil
	}
	if err != nil {
		return err
	}
	if err = fn(&lockout); err != nil {
		return err
	}

	if !found {
		if lockout.Clear() {
			return commit(ctx, tx)
		}

		const insert = `
			INSERT INTO login_lockouts (username, failed_attempts, locked_until)
			VALUES ($1, $2, $3)
			ON CONFLICT (username) DO NOTHING
		`
		var tag pgconn.CommandTag
		tag, err = tx.Exec(ctx, insert, username, lockout.FailedAttempts, epochSeconds(lockout.LockedUntil))
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 1 {
			return commit(ctx, tx)
		}

		// a concurrent first failure created the row; apply fn to it instead
		if lockout, err = lockForUpdate(ctx, tx, username); err != nil {
			return err
		}
		if err = fn(&lockout); err != nil {
			return err
		}
	}

	const update = `UPDATE login_lockouts SET failed_attempts = $2, locked_until = $3 WHERE username = $1`
	if _, err = tx.Exec(ctx, update, username, lockout.FailedAttempts, epochSeconds(lockout.LockedUntil)); err != nil {
		return err
	}
	return commit(ctx, tx)
}

func lockForUpdate(ctx context.Context, tx pgx.Tx, username string) (models.Lockout, error) {
	const query = `SELECT failed_attempts, locked_until FROM login_lockouts WHERE username = $1 FOR UPDATE`
	return scanLockout(tx.QueryRow(ctx, query, username), username)
}

func commit(ctx context.Context, tx pgx.Tx) error {
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (r *PostgresLockoutStore) Delete(ctx context.Context, username string) error {
	const query = `DELETE FROM login_lockouts WHERE username = $1`
	_, err := r.db.Exec(ctx, query, username)
	return err
}

func scanLockout(row pgx.Row, username string) (models.Lockout, error) {
	var (
		attempts    int
		lockedUntil int64
	)
	if err := row.Scan(&attempts, &lockedUntil); err != nil {
		return models.Lockout{}, err
	}
	return models.Lockout{
		Username:       username,
		FailedAttempts: attempts,
		LockedUntil:    fromEpochSeconds(lockedUntil),
	}, nil
}

// Lock expiry is persisted as epoch seconds, rounded up so a stored lock
// never ends early; zero means unlocked.
func epochSeconds(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	sec := t.Unix()
	if t.Nanosecond() > 0 {
		sec++
	}
	return sec
}

func fromEpochSeconds(sec int64) time.Time {
	if sec <= 0 {
		return time.Time{}
	}
	return time.Unix(sec, 0)
}
