package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"intelplatform/internal/models"
	"intelplatform/internal/repository"
	"intelplatform/internal/security"
)

type AuthService struct {
	users    repository.CredentialStore
	lockouts *LockoutTracker
	sessions *SessionRegistry
	hash     func(password string) ([]byte, error)
	log      zerolog.Logger
}

func NewAuthService(
	users repository.CredentialStore,
	lockouts *LockoutTracker,
	sessions *SessionRegistry,
	log zerolog.Logger,
) *AuthService {
	return &AuthService{
		users:    users,
		lockouts: lockouts,
		sessions: sessions,
		hash:     security.HashPassword,
		log:      log,
	}
}

type RegisterInput struct {
	Username string
	Password string
	Role     models.UserRole
	Domain   models.Domain
}

type RegisterResult struct {
	User     models.Credential
	Message  string
	Strength security.Strength
}

// Register validates and stores a new credential. Checks run in a fixed
// order: role, username, password, then uniqueness.
func (s *AuthService) Register(ctx context.Context, input RegisterInput) (RegisterResult, error) {
	input.Username = strings.TrimSpace(input.Username)
	if input.Role == "" {
		input.Role = models.UserRoleUser
	}
	if !input.Role.Valid() {
		return RegisterResult{}, ErrInvalidRole
	}
	domain, err := domainForRole(input.Role, input.Domain)
	if err != nil {
		return RegisterResult{}, err
	}
	if err := security.ValidateUsername(input.Username); err != nil {
		return RegisterResult{}, err
	}
	if err := security.ValidatePassword(input.Password); err != nil {
		return RegisterResult{}, err
	}

	exists, err := s.users.Exists(ctx, input.Username)
	if err != nil {
		return RegisterResult{}, storageErr("check user", err)
	}
	if exists {
		return RegisterResult{}, ErrDuplicateUser
	}

	hash, err := s.hash(input.Password)
	if err != nil {
		return RegisterResult{}, fmt.Errorf("hash password: %w", err)
	}

	cred := models.Credential{
		Username:     input.Username,
		PasswordHash: hash,
		Role:         input.Role,
		Domain:       domain,
	}
	if err := s.users.Create(ctx, cred); err != nil {
		if errors.Is(err, ErrDuplicateUser) || errors.Is(err, ErrInvalidRole) {
			return RegisterResult{}, err
		}
		return RegisterResult{}, storageErr("create user", err)
	}

	s.log.Info().Str("username", cred.Username).Str("role", string(cred.Role)).Msg("user registered")
	return RegisterResult{
		User:     cred,
		Message:  fmt.Sprintf("User '%s' registered successfully as %s.", cred.Username, cred.Role),
		Strength: security.PasswordStrength(input.Password),
	}, nil
}

// domainForRole keeps the domain tag only for analysts. An analyst without
// a domain may read and analyze but not mutate any records.
func domainForRole(role models.UserRole, domain models.Domain) (models.Domain, error) {
	if role != models.UserRoleAnalyst || domain == "" {
		return "", nil
	}
	if !domain.Valid() {
		return "", ErrInvalidDomain
	}
	return domain, nil
}

type LoginResult struct {
	User    models.Credential
	Message string
}

// Login authenticates without issuing a session. An active lock wins over a
// correct password and is reported before the credential is read.
func (s *AuthService) Login(ctx context.Context, username, password string) (LoginResult, error) {
	username = strings.TrimSpace(username)

	status, err := s.lockouts.Check(ctx, username)
	if err != nil {
		return LoginResult{}, err
	}
	if status.Locked {
		return LoginResult{}, &LockedError{Remaining: status.Remaining}
	}

	cred, err := s.users.Find(ctx, username)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return LoginResult{}, ErrUserNotFound
		}
		return LoginResult{}, storageErr("find user", err)
	}

	ok, err := security.VerifyPassword(password, cred.PasswordHash)
	if err != nil {
		s.log.Error().Err(err).Str("username", username).Msg("stored hash unreadable")
	}
	if !ok {
		status, ferr := s.lockouts.RecordFailure(ctx, username)
		if ferr != nil {
			return LoginResult{}, ferr
		}
		s.log.Info().Str("username", username).Int("attempts", status.Attempts).Msg("login failed")
		if status.Locked {
			return LoginResult{}, &LockedError{Remaining: status.Remaining}
		}
		return LoginResult{}, ErrInvalidPassword
	}

	if err := s.lockouts.RecordSuccess(ctx, username); err != nil {
		return LoginResult{}, err
	}

	return LoginResult{
		User:    cred,
		Message: fmt.Sprintf("Welcome, %s!", cred.Username),
	}, nil
}

// LoginWithSession logs in and issues a session token in one call.
func (s *AuthService) LoginWithSession(ctx context.Context, username, password string, meta SessionMeta) (LoginResult, IssuedSession, error) {
	result, err := s.Login(ctx, username, password)
	if err != nil {
		return LoginResult{}, IssuedSession{}, err
	}
	issued, err := s.sessions.Issue(ctx, result.User.Username, meta)
	if err != nil {
		return LoginResult{}, IssuedSession{}, err
	}
	return result, issued, nil
}

func (s *AuthService) Logout(ctx context.Context, token string) error {
	return s.sessions.Revoke(ctx, token)
}

// Authenticate resolves a session token to its owner's current credential.
func (s *AuthService) Authenticate(ctx context.Context, token string) (models.Credential, error) {
	session, ok, err := s.sessions.Validate(ctx, token)
	if err != nil {
		return models.Credential{}, err
	}
	if !ok {
		return models.Credential{}, ErrInvalidSession
	}

	cred, err := s.users.Find(ctx, session.Username)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return models.Credential{}, ErrInvalidSession
		}
		return models.Credential{}, storageErr("find user", err)
	}
	return cred, nil
}

func (s *AuthService) ChangePassword(ctx context.Context, username, current, next string) error {
	cred, err := s.users.Find(ctx, username)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return ErrUserNotFound
		}
		return storageErr("find user", err)
	}

	ok, err := security.VerifyPassword(current, cred.PasswordHash)
	if err != nil || !ok {
		return ErrWrongCurrentPassword
	}
	if current == next {
		return ErrPasswordUnchanged
	}
	if err := security.ValidatePassword(next); err != nil {
		return err
	}

	return s.setPassword(ctx, username, next)
}

func (s *AuthService) setPassword(ctx context.Context, username, password string) error {
	hash, err := s.hash(password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.users.UpdatePassword(ctx, username, hash); err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return err
		}
		return storageErr("update password", err)
	}
	s.log.Info().Str("username", username).Msg("password changed")
	return nil
}

func (s *AuthService) ListUsers(ctx context.Context) ([]models.Credential, error) {
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, storageErr("list users", err)
	}
	return users, nil
}

func (s *AuthService) UpdateRole(ctx context.Context, username string, role models.UserRole, domain models.Domain) error {
	if !role.Valid() {
		return ErrInvalidRole
	}
	domain, err := domainForRole(role, domain)
	if err != nil {
		return err
	}
	if err := s.users.UpdateRole(ctx, username, role, domain); err != nil {
		if errors.Is(err, ErrUserNotFound) || errors.Is(err, ErrInvalidRole) {
			return err
		}
		return storageErr("update role", err)
	}
	s.log.Info().Str("username", username).Str("role", string(role)).Msg("role updated")
	return nil
}

// ResetPassword sets a new password without the current one and drops the
// user's sessions and lockout.
func (s *AuthService) ResetPassword(ctx context.Context, username, password string) error {
	if err := security.ValidatePassword(password); err != nil {
		return err
	}
	if err := s.setPassword(ctx, username, password); err != nil {
		return err
	}
	if _, err := s.sessions.RevokeUser(ctx, username); err != nil {
		return err
	}
	return s.lockouts.Reset(ctx, username)
}

func (s *AuthService) DeleteUser(ctx context.Context, username string) error {
	if err := s.users.Delete(ctx, username); err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return err
		}
		return storageErr("delete user", err)
	}
	if _, err := s.sessions.RevokeUser(ctx, username); err != nil {
		return err
	}
	if err := s.lockouts.Reset(ctx, username); err != nil {
		return err
	}
	s.log.Info().Str("username", username).Msg("user deleted")
	return nil
}

func (s *AuthService) Unlock(ctx context.Context, username string) error {
	if _, err := s.users.Find(ctx, username); err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return err
		}
		return storageErr("find user", err)
	}
	return s.lockouts.Reset(ctx, username)
}

func (s *AuthService) LockStatus(ctx context.Context, username string) (LockStatus, error) {
	return s.lockouts.Check(ctx, username)
}

func (s *AuthService) Sessions(ctx context.Context, username string) ([]models.Session, error) {
	return s.sessions.ListByUser(ctx, username)
}
