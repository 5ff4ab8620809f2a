package service

import (
	"bufio"
	"context"
	"errors"
	"io"
	"strings"

	"intelplatform/internal/models"
	"intelplatform/internal/security"
)

type ImportResult struct {
	Imported int
	Skipped  int
	Invalid  int
}

// ImportLegacyUsers loads "username,hash[,role]" lines written by the old
// flat-file store. Hashes may be wrapped as b'...'. Existing usernames are
// skipped and malformed lines are counted, never fatal.
func (s *AuthService) ImportLegacyUsers(ctx context.Context, r io.Reader) (ImportResult, error) {
	var result ImportResult
	scanner := bufio.NewScanner(r)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		cred, ok := parseLegacyLine(line)
		if !ok {
			result.Invalid++
			continue
		}

		err := s.users.Create(ctx, cred)
		switch {
		case err == nil:
			result.Imported++
		case errors.Is(err, ErrDuplicateUser):
			result.Skipped++
		default:
			return result, storageErr("import user", err)
		}
	}
	if err := scanner.Err(); err != nil {
		return result, err
	}

	s.log.Info().
		Int("imported", result.Imported).
		Int("skipped", result.Skipped).
		Int("invalid", result.Invalid).
		Msg("legacy users imported")
	return result, nil
}

func parseLegacyLine(line string) (models.Credential, bool) {
	parts := strings.Split(line, ",")
	if len(parts) < 2 {
		return models.Credential{}, false
	}

	username := strings.TrimSpace(parts[0])
	if security.ValidateUsername(username) != nil {
		return models.Credential{}, false
	}

	hash := strings.TrimSpace(parts[1])
	if strings.HasPrefix(hash, "b'") && strings.HasSuffix(hash, "'") && len(hash) >= 3 {
		hash = hash[2 : len(hash)-1]
	}
	if !security.IsBcryptHash([]byte(hash)) && !strings.HasPrefix(hash, "$argon2id$") {
		return models.Credential{}, false
	}

	role := models.UserRoleUser
	if len(parts) > 2 {
		role = models.UserRole(strings.ToLower(strings.TrimSpace(parts[2])))
	}
	if !role.Valid() {
		return models.Credential{}, false
	}

	var domain models.Domain
	if len(parts) > 3 && role == models.UserRoleAnalyst {
		domain = models.Domain(strings.TrimSpace(parts[3]))
		if !domain.Valid() {
			domain = ""
		}
	}

	return models.Credential{
		Username:     username,
		PasswordHash: []byte(hash),
		Role:         role,
		Domain:       domain,
	}, true
}
