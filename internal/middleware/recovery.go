package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

func Recovery(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.Error().
					Interface("error", r).
					Str("request_id", c.GetString(requestIDHeader)).
					Msg("panic recovered")
				abort(c, http.StatusInternalServerError, "internal_server_error", "Unexpected server error.")
			}
		}()
		c.Next()
	}
}
