package service

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"intelplatform/internal/models"
	"intelplatform/internal/repository"
	"intelplatform/internal/security"
)

type SessionMeta struct {
	IPAddress string
	UserAgent string
}

type IssuedSession struct {
	Token     string
	ExpiresAt time.Time
}

// SessionRegistry issues opaque bearer tokens. Only their SHA-256 digests
// reach the store.
type SessionRegistry struct {
	store      repository.SessionStore
	ttl        time.Duration
	tokenBytes int
	now        func() time.Time
	log        zerolog.Logger
}

func NewSessionRegistry(store repository.SessionStore, ttl time.Duration, tokenBytes int, log zerolog.Logger) *SessionRegistry {
	return &SessionRegistry{
		store:      store,
		ttl:        ttl,
		tokenBytes: tokenBytes,
		now:        time.Now,
		log:        log,
	}
}

func (r *SessionRegistry) Issue(ctx context.Context, username string, meta SessionMeta) (IssuedSession, error) {
	token, hash, err := security.GenerateSessionToken(r.tokenBytes)
	if err != nil {
		return IssuedSession{}, err
	}

	now := r.now()
	session := models.Session{
		TokenHash: hash,
		Username:  username,
		IPAddress: meta.IPAddress,
		UserAgent: meta.UserAgent,
		CreatedAt: now,
		ExpiresAt: now.Add(r.ttl),
	}
	if err := r.store.Create(ctx, session); err != nil {
		return IssuedSession{}, storageErr("create session", err)
	}

	r.log.Info().Str("username", username).Time("expires_at", session.ExpiresAt).Msg("session issued")
	return IssuedSession{Token: token, ExpiresAt: session.ExpiresAt}, nil
}

// Validate drops every expired session before looking token up, so it
// writes to the store on each call.
func (r *SessionRegistry) Validate(ctx context.Context, token string) (models.Session, bool, error) {
	now := r.now()
	if _, err := r.store.DeleteExpired(ctx, now); err != nil {
		return models.Session{}, false, storageErr("prune sessions", err)
	}
	if token == "" {
		return models.Session{}, false, nil
	}

	session, err := r.store.Get(ctx, security.HashSessionToken(token))
	if err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			return models.Session{}, false, nil
		}
		return models.Session{}, false, storageErr("read session", err)
	}
	if session.Expired(now) {
		return models.Session{}, false, nil
	}
	return session, true, nil
}

func (r *SessionRegistry) Revoke(ctx context.Context, token string) error {
	err := r.store.Delete(ctx, security.HashSessionToken(token))
	if err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			return ErrInvalidSession
		}
		return storageErr("revoke session", err)
	}
	return nil
}

func (r *SessionRegistry) RevokeUser(ctx context.Context, username string) (int64, error) {
	n, err := r.store.DeleteByUser(ctx, username)
	if err != nil {
		return 0, storageErr("revoke user sessions", err)
	}
	if n > 0 {
		r.log.Info().Str("username", username).Int64("sessions", n).Msg("sessions revoked")
	}
	return n, nil
}

// ListByUser returns the live sessions of username, newest first.
func (r *SessionRegistry) ListByUser(ctx context.Context, username string) ([]models.Session, error) {
	sessions, err := r.store.ListByUser(ctx, username)
	if err != nil {
		return nil, storageErr("list sessions", err)
	}
	now := r.now()
	live := make([]models.Session, 0, len(sessions))
	for _, s := range sessions {
		if !s.Expired(now) {
			live = append(live, s)
		}
	}
	return live, nil
}

func (r *SessionRegistry) Prune(ctx context.Context) (int64, error) {
	n, err := r.store.DeleteExpired(ctx, r.now())
	if err != nil {
		return 0, storageErr("prune sessions", err)
	}
	return n, nil
}
