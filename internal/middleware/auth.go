package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"intelplatform/internal/models"
	"intelplatform/internal/service"
)

const (
	currentUserKey  = "current_user"
	sessionTokenKey = "session_token"
)

// Authenticator resolves a session token to the credential that owns it.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (models.Credential, error)
}

// Auth accepts a bearer token or, failing that, the session cookie.
func Auth(auth Authenticator, cookieName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c.GetHeader("Authorization"))
		if token == "" && cookieName != "" {
			if cookie, err := c.Cookie(cookieName); err == nil {
				token = cookie
			}
		}
		if token == "" {
			abort(c, http.StatusUnauthorized, "missing_token", "Authentication required.")
			return
		}

		user, err := auth.Authenticate(c.Request.Context(), token)
		if err != nil {
			if errors.Is(err, service.ErrInvalidSession) {
				abort(c, http.StatusUnauthorized, "invalid_session", "Session is invalid or has expired.")
				return
			}
			abort(c, http.StatusServiceUnavailable, "storage_unavailable", "Authentication backend unavailable.")
			return
		}

		c.Set(sessionTokenKey, token)
		c.Set(currentUserKey, user)

		c.Next()
	}
}

func bearerToken(header string) string {
	if !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
}

// CurrentUser returns the credential stored by Auth.
func CurrentUser(c *gin.Context) (models.Credential, bool) {
	val, exists := c.Get(currentUserKey)
	if !exists {
		return models.Credential{}, false
	}
	user, ok := val.(models.Credential)
	return user, ok
}

func SessionToken(c *gin.Context) string {
	return c.GetString(sessionTokenKey)
}

func abort(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, gin.H{
		"success": false,
		"error":   code,
		"message": message,
	})
}
