package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"intelplatform/internal/models"
)

type SessionStore interface {
	Create(ctx context.Context, session models.Session) error
	Get(ctx context.Context, tokenHash []byte) (models.Session, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
	Delete(ctx context.Context, tokenHash []byte) error
	DeleteByUser(ctx context.Context, username string) (int64, error)
	ListByUser(ctx context.Context, username string) ([]models.Session, error)
}

type PostgresSessionStore struct {
	db DB
}

func NewPostgresSessionStore(db DB) *PostgresSessionStore {
	return &PostgresSessionStore{db: db}
}

func (r *PostgresSessionStore) Create(ctx context.Context, session models.Session) error {
	const query = `
		INSERT INTO user_sessions (
			token_hash, username, ip_address, user_agent, created_at, expires_at
		) VALUES (
			$1, $2, $3, $4, $5, $6
		)
	`

	_, err := r.db.Exec(ctx, query,
		session.TokenHash,
		session.Username,
		session.IPAddress,
		session.UserAgent,
		session.CreatedAt,
		session.ExpiresAt,
	)
	return err
}

func (r *PostgresSessionStore) Get(ctx context.Context, tokenHash []byte) (models.Session, error) {
	const query = `
		SELECT token_hash, username, ip_address, user_agent, created_at, expires_at
		FROM user_sessions
		WHERE token_hash = $1
	`

	session, err := scanSession(r.db.QueryRow(ctx, query, tokenHash))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Session{}, ErrSessionNotFound
		}
		return models.Session{}, err
	}
	return session, nil
}

func (r *PostgresSessionStore) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	const query = `DELETE FROM user_sessions WHERE expires_at <= $1`

	cmd, err := r.db.Exec(ctx, query, now)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}

func (r *PostgresSessionStore) Delete(ctx context.Context, tokenHash []byte) error {
	const query = `DELETE FROM user_sessions WHERE token_hash = $1`

	cmd, err := r.db.Exec(ctx, query, tokenHash)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrSessionNotFound
	}
	return nil
}

func (r *PostgresSessionStore) DeleteByUser(ctx context.Context, username string) (int64, error) {
	const query = `DELETE FROM user_sessions WHERE username = $1`

	cmd, err := r.db.Exec(ctx, query, username)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}

func (r *PostgresSessionStore) ListByUser(ctx context.Context, username string) ([]models.Session, error) {
	const query = `
		SELECT token_hash, username, ip_address, user_agent, created_at, expires_at
		FROM user_sessions
		WHERE username = $1
		ORDER BY created_at DESC
	`

	rows, err := r.db.Query(ctx, query, username)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []models.Session
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
	}
	return sessions, rows.Err()
}

func scanSession(row pgx.Row) (models.Session, error) {
	var session models.Session
	if err := row.Scan(
		&session.TokenHash,
		&session.Username,
		&session.IPAddress,
		&session.UserAgent,
		&session.CreatedAt,
		&session.ExpiresAt,
	); err != nil {
		return models.Session{}, err
	}
	return session, nil
}
