package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"intelplatform/internal/models"
)

// CredentialStore is the single source of truth for user credentials.
type CredentialStore interface {
	Exists(ctx context.Context, username string) (bool, error)
	Create(ctx context.Context, cred models.Credential) error
	Find(ctx context.Context, username string) (models.Credential, error)
	UpdatePassword(ctx context.Context, username string, hash []byte) error
	UpdateRole(ctx context.Context, username string, role models.UserRole, domain models.Domain) error
	Delete(ctx context.Context, username string) error
	List(ctx context.Context) ([]models.Credential, error)
}

type PostgresCredentialStore struct {
	db DB
}

func NewPostgresCredentialStore(db DB) *PostgresCredentialStore {
	return &PostgresCredentialStore{db: db}
}

func (r *PostgresCredentialStore) Exists(ctx context.Context, username string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM users WHERE username = $1)`

	var exists bool
	if err := r.db.QueryRow(ctx, query, username).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

func (r *PostgresCredentialStore) Create(ctx context.Context, cred models.Credential) error {
	if !cred.Role.Valid() {
		return ErrInvalidRole
	}

	const query = `
		INSERT INTO users (username, password_hash, role, domain, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NOW(), NOW())
		ON CONFLICT (username) DO NOTHING
	`

	cmd, err := r.db.Exec(ctx, query,
		cred.Username,
		string(cred.PasswordHash),
		string(cred.Role),
		string(cred.Domain),
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrDuplicateUser
	}
	return nil
}

func (r *PostgresCredentialStore) Find(ctx context.Context, username string) (models.Credential, error) {
	const query = `
		SELECT username, password_hash, role, domain, created_at, updated_at
		FROM users WHERE username = $1
	`

	cred, err := scanCredential(r.db.QueryRow(ctx, query, username))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Credential{}, ErrUserNotFound
		}
		return models.Credential{}, err
	}
	return cred, nil
}

func (r *PostgresCredentialStore) UpdatePassword(ctx context.Context, username string, hash []byte) error {
	const query = `UPDATE users SET password_hash = $2, updated_at = NOW() WHERE username = $1`

	cmd, err := r.db.Exec(ctx, query, username, string(hash))
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (r *PostgresCredentialStore) UpdateRole(ctx context.Context, username string, role models.UserRole, domain models.Domain) error {
	if !role.Valid() {
		return ErrInvalidRole
	}

	const query = `UPDATE users SET role = $2, domain = $3, updated_at = NOW() WHERE username = $1`

	cmd, err := r.db.Exec(ctx, query, username, string(role), string(domain))
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (r *PostgresCredentialStore) Delete(ctx context.Context, username string) error {
	const query = `DELETE FROM users WHERE username = $1`

	cmd, err := r.db.Exec(ctx, query, username)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (r *PostgresCredentialStore) List(ctx context.Context) ([]models.Credential, error) {
	const query = `
		SELECT username, password_hash, role, domain, created_at, updated_at
		FROM users
		ORDER BY username ASC
	`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var creds []models.Credential
	for rows.Next() {
		cred, err := scanCredential(rows)
		if err != nil {
			return nil, err
		}
		creds = append(creds, cred)
	}
	return creds, rows.Err()
}

func scanCredential(row pgx.Row) (models.Credential, error) {
	var (
		cred   models.Credential
		hash   string
		role   string
		domain string
	)
	if err := row.Scan(
		&cred.Username,
		&hash,
		&role,
		&domain,
		&cred.CreatedAt,
		&cred.UpdatedAt,
	); err != nil {
		return models.Credential{}, err
	}
	cred.PasswordHash = []byte(hash)
	cred.Role = models.UserRole(role)
	cred.Domain = models.Domain(domain)
	return cred, nil
}
