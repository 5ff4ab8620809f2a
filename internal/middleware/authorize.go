package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"intelplatform/internal/authz"
	"intelplatform/internal/models"
)

// RequireCapability aborts with 403 unless the current user may perform
// action on domain.
func RequireCapability(action authz.Action, domain models.Domain) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := CurrentUser(c)
		if !ok {
			abort(c, http.StatusUnauthorized, "unauthorized", "Authentication required.")
			return
		}

		if !authz.CanUser(user, action, domain) {
			abort(c, http.StatusForbidden, "forbidden", "You are not allowed to "+string(action)+" "+domain.Label()+" records.")
			return
		}

		c.Next()
	}
}
