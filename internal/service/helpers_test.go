package service

import (
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"intelplatform/internal/repository"
	"intelplatform/internal/security"
)

var testParams = security.Argon2Params{Time: 1, Memory: 8 * 1024, Threads: 1, KeyLen: 32, SaltLen: 16}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type authFixture struct {
	auth     *AuthService
	users    *repository.MemoryCredentialStore
	sessions *repository.MemorySessionStore
	lockouts *repository.MemoryLockoutStore
	tracker  *LockoutTracker
	registry *SessionRegistry
	clock    *fakeClock
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()
	f := &authFixture{
		users:    repository.NewMemoryCredentialStore(),
		sessions: repository.NewMemorySessionStore(),
		lockouts: repository.NewMemoryLockoutStore(),
		clock:    newFakeClock(),
	}
	f.tracker = NewLockoutTracker(f.lockouts, 3, 300*time.Second, zerolog.Nop())
	f.tracker.now = f.clock.Now
	f.registry = NewSessionRegistry(f.sessions, time.Hour, 32, zerolog.Nop())
	f.registry.now = f.clock.Now
	f.auth = NewAuthService(f.users, f.tracker, f.registry, zerolog.Nop())
	f.auth.hash = func(p string) ([]byte, error) { return security.HashPasswordWithParams(p, testParams) }
	return f
}
