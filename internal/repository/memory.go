package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"intelplatform/internal/models"
)

// MemoryCredentialStore is a mutex-guarded CredentialStore for tests and
// single-process development runs.
type MemoryCredentialStore struct {
	mu    sync.RWMutex
	users map[string]models.Credential
	now   func() time.Time
}

func NewMemoryCredentialStore() *MemoryCredentialStore {
	return &MemoryCredentialStore{users: make(map[string]models.Credential), now: time.Now}
}

func (m *MemoryCredentialStore) Exists(_ context.Context, username string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.users[username]
	return ok, nil
}

func (m *MemoryCredentialStore) Create(_ context.Context, cred models.Credential) error {
	if !cred.Role.Valid() {
		return ErrInvalidRole
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[cred.Username]; ok {
		return ErrDuplicateUser
	}
	now := m.now()
	cred.CreatedAt = now
	cred.UpdatedAt = now
	cred.PasswordHash = append([]byte(nil), cred.PasswordHash...)
	m.users[cred.Username] = cred
	return nil
}

func (m *MemoryCredentialStore) Find(_ context.Context, username string) (models.Credential, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cred, ok := m.users[username]
	if !ok {
		return models.Credential{}, ErrUserNotFound
	}
	cred.PasswordHash = append([]byte(nil), cred.PasswordHash...)
	return cred, nil
}

func (m *MemoryCredentialStore) UpdatePassword(_ context.Context, username string, hash []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cred, ok := m.users[username]
	if !ok {
		return ErrUserNotFound
	}
	cred.PasswordHash = append([]byte(nil), hash...)
	cred.UpdatedAt = m.now()
	m.users[username] = cred
	return nil
}

func (m *MemoryCredentialStore) UpdateRole(_ context.Context, username string, role models.UserRole, domain models.Domain) error {
	if !role.Valid() {
		return ErrInvalidRole
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	cred, ok := m.users[username]
	if !ok {
		return ErrUserNotFound
	}
	cred.Role = role
	cred.Domain = domain
	cred.UpdatedAt = m.now()
	m.users[username] = cred
	return nil
}

func (m *MemoryCredentialStore) Delete(_ context.Context, username string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[username]; !ok {
		return ErrUserNotFound
	}
	delete(m.users, username)
	return nil
}

func (m *MemoryCredentialStore) List(_ context.Context) ([]models.Credential, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	creds := make([]models.Credential, 0, len(m.users))
	for _, cred := range m.users {
		creds = append(creds, cred)
	}
	sort.Slice(creds, func(i, j int) bool { return creds[i].Username < creds[j].Username })
	return creds, nil
}

type MemorySessionStore struct {
	mu       sync.Mutex
	sessions map[string]models.Session
}

func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{sessions: make(map[string]models.Session)}
}

func (m *MemorySessionStore) Create(_ context.Context, session models.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[string(session.TokenHash)] = session
	return nil
}

func (m *MemorySessionStore) Get(_ context.Context, tokenHash []byte) (models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	session, ok := m.sessions[string(tokenHash)]
	if !ok {
		return models.Session{}, ErrSessionNotFound
	}
	return session, nil
}

func (m *MemorySessionStore) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for key, session := range m.sessions {
		if session.Expired(now) {
			delete(m.sessions, key)
			n++
		}
	}
	return n, nil
}

func (m *MemorySessionStore) Delete(_ context.Context, tokenHash []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[string(tokenHash)]; !ok {
		return ErrSessionNotFound
	}
	delete(m.sessions, string(tokenHash))
	return nil
}

func (m *MemorySessionStore) DeleteByUser(_ context.Context, username string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for key, session := range m.sessions {
		if session.Username == username {
			delete(m.sessions, key)
			n++
		}
	}
	return n, nil
}

func (m *MemorySessionStore) ListByUser(_ context.Context, username string) ([]models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var sessions []models.Session
	for _, session := range m.sessions {
		if session.Username == username {
			sessions = append(sessions, session)
		}
	}
	sort.Slice(sessions, func(i, j int) bool { return sessions[i].CreatedAt.After(sessions[j].CreatedAt) })
	return sessions, nil
}

// Len reports how many sessions are stored, expired ones included.
func (m *MemorySessionStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

type MemoryLockoutStore struct {
	mu       sync.Mutex
	lockouts map[string]models.Lockout
}

func NewMemoryLockoutStore() *MemoryLockoutStore {
	return &MemoryLockoutStore{lockouts: make(map[string]models.Lockout)}
}

func (m *MemoryLockoutStore) Get(_ context.Context, username string) (models.Lockout, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	lockout, ok := m.lockouts[username]
	if !ok {
		return models.Lockout{Username: username}, nil
	}
	return lockout, nil
}

func (m *MemoryLockoutStore) Update(_ context.Context, username string, fn func(*models.Lockout) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	lockout, ok := m.lockouts[username]
	if !ok {
		lockout = models.Lockout{Username: username}
	}
	if err := fn(&lockout); err != nil {
		return err
	}
	if !ok && lockout.Clear() {
		return nil
	}
	m.lockouts[username] = lockout
	return nil
}

func (m *MemoryLockoutStore) Delete(_ context.Context, username string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.lockouts, username)
	return nil
}
