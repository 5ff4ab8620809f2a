package security

import (
	"errors"
	"regexp"
	"unicode"
	"unicode/utf8"
)

var (
	ErrInvalidUsername = errors.New("invalid username")
	ErrWeakPassword    = errors.New("weak password")
)

// PolicyError explains which rule an input broke.
type PolicyError struct {
	Err     error
	Message string
}

func (e *PolicyError) Error() string { return e.Message }
func (e *PolicyError) Unwrap() error { return e.Err }

const (
	UsernameMinLen = 3
	UsernameMaxLen = 20

	// Password length bounds are exclusive: 7 to 49 characters are accepted.
	PasswordLenLowerExclusive = 6
	PasswordLenUpperExclusive = 50
)

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

func ValidateUsername(username string) error {
	if n := utf8.RuneCountInString(username); n < UsernameMinLen || n > UsernameMaxLen {
		return &PolicyError{Err: ErrInvalidUsername, Message: "Username must contain between 3 and 20 characters"}
	}
	if !usernamePattern.MatchString(username) {
		return &PolicyError{Err: ErrInvalidUsername, Message: "Username can only contain letters, numbers, and underscores(_)"}
	}
	return nil
}

type charClasses struct {
	upper, lower, digit, special bool
}

func (c charClasses) count() int {
	n := 0
	for _, ok := range []bool{c.upper, c.lower, c.digit, c.special} {
		if ok {
			n++
		}
	}
	return n
}

func classify(password string) charClasses {
	var c charClasses
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			c.upper = true
		case unicode.IsLower(r):
			c.lower = true
		case unicode.IsDigit(r):
			c.digit = true
		case unicode.IsLetter(r), unicode.IsSpace(r):
		default:
			c.special = true
		}
	}
	return c
}

// ValidatePassword enforces length and the four character classes. A
// special character is any rune that is neither a letter, a digit nor
// whitespace.
func ValidatePassword(password string) error {
	if n := utf8.RuneCountInString(password); n <= PasswordLenLowerExclusive || n >= PasswordLenUpperExclusive {
		return &PolicyError{Err: ErrWeakPassword, Message: "Password must contain between 6 and 50 characters"}
	}

	c := classify(password)
	switch {
	case !c.upper:
		return &PolicyError{Err: ErrWeakPassword, Message: "Password must contain at least one uppercase letter (A-Z)"}
	case !c.lower:
		return &PolicyError{Err: ErrWeakPassword, Message: "Password must contain at least one lowercase letter (a-z)"}
	case !c.digit:
		return &PolicyError{Err: ErrWeakPassword, Message: "Password must contain at least one digit (0-9)"}
	case !c.special:
		return &PolicyError{Err: ErrWeakPassword, Message: "Password must contain at least one special character"}
	}
	return nil
}

type Strength string

const (
	StrengthWeak   Strength = "Weak"
	StrengthMedium Strength = "Medium"
	StrengthStrong Strength = "Strong"
)

// PasswordStrength grades a password for display; it does not replace
// ValidatePassword.
func PasswordStrength(password string) Strength {
	n := utf8.RuneCountInString(password)
	classes := classify(password).count()

	switch {
	case n < 8 || classes < 3:
		return StrengthWeak
	case n >= 12 && classes == 4:
		return StrengthStrong
	default:
		return StrengthMedium
	}
}
