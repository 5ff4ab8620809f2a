package service

import (
	"errors"
	"fmt"
	"time"

	"intelplatform/internal/repository"
	"intelplatform/internal/security"
)

var (
	ErrDuplicateUser        = repository.ErrDuplicateUser
	ErrUserNotFound         = repository.ErrUserNotFound
	ErrInvalidRole          = repository.ErrInvalidRole
	ErrInvalidUsername      = security.ErrInvalidUsername
	ErrWeakPassword         = security.ErrWeakPassword
	ErrInvalidPassword      = errors.New("invalid password")
	ErrAccountLocked        = errors.New("account locked")
	ErrWrongCurrentPassword = errors.New("current password is incorrect")
	ErrPasswordUnchanged    = errors.New("new password must differ from the current one")
	ErrStorageUnavailable   = errors.New("storage unavailable")
	ErrInvalidSession       = errors.New("invalid or expired session")
	ErrInvalidDomain        = errors.New("invalid domain")
)

// LockedError reports an active lockout and how long it has left.
type LockedError struct {
	Remaining time.Duration
}

func (e *LockedError) Error() string {
	return fmt.Sprintf("Account locked. Try again in %d seconds.", e.Seconds())
}

func (e *LockedError) Is(target error) bool {
	return target == ErrAccountLocked
}

// Seconds is the remaining lock time rounded up to whole seconds.
func (e *LockedError) Seconds() int64 {
	secs := int64(e.Remaining / time.Second)
	if e.Remaining%time.Second != 0 {
		secs++
	}
	return secs
}

func storageErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %v", op, ErrStorageUnavailable, err)
}
