package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"intelplatform/internal/analysis"
	"intelplatform/internal/datafile"
	"intelplatform/internal/queue"
	"intelplatform/internal/repository"
	"intelplatform/internal/security"
	"intelplatform/internal/service"
)

func fail(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, gin.H{
		"success": false,
		"error":   code,
		"message": message,
	})
}

func succeed(c *gin.Context, status int, message string, fields gin.H) {
	body := gin.H{"success": true}
	if message != "" {
		body["message"] = message
	}
	for k, v := range fields {
		body[k] = v
	}
	c.JSON(status, body)
}

type errorMapping struct {
	target  error
	status  int
	code    string
	message string
}

// errorTable maps sentinels to HTTP responses. An empty message means the
// error's own text is safe to show.
var errorTable = []errorMapping{
	{service.ErrAccountLocked, http.StatusLocked, "account_locked", ""},
	{service.ErrDuplicateUser, http.StatusConflict, "duplicate_user", "Username already exists."},
	{security.ErrInvalidUsername, http.StatusBadRequest, "invalid_username", ""},
	{security.ErrWeakPassword, http.StatusBadRequest, "weak_password", ""},
	{service.ErrUserNotFound, http.StatusNotFound, "user_not_found", "Username not found."},
	{service.ErrInvalidPassword, http.StatusUnauthorized, "invalid_password", "Invalid password."},
	{service.ErrWrongCurrentPassword, http.StatusUnauthorized, "wrong_current_password", "Current password is incorrect."},
	{service.ErrPasswordUnchanged, http.StatusBadRequest, "password_unchanged", "New password must be different from the current password."},
	{service.ErrInvalidRole, http.StatusBadRequest, "invalid_role", "Role must be one of user, analyst, admin."},
	{service.ErrInvalidDomain, http.StatusBadRequest, "invalid_domain", "Domain must be one of cybersecurity, data_science, it_operations."},
	{service.ErrInvalidSession, http.StatusUnauthorized, "invalid_session", "Session is invalid or has expired."},
	{service.ErrStorageUnavailable, http.StatusServiceUnavailable, "storage_unavailable", "Storage is temporarily unavailable. Please try again."},
	{repository.ErrRecordNotFound, http.StatusNotFound, "record_not_found", "Record not found."},
	{service.ErrAnalysisNotFound, http.StatusNotFound, "analysis_not_found", "Analysis not found."},
	{service.ErrFileTooLarge, http.StatusRequestEntityTooLarge, "file_too_large", "Dataset file is too large."},
	{service.ErrFileMismatch, http.StatusUnsupportedMediaType, "file_mismatch", "File content does not match its declared type."},
	{service.ErrUnsupportedFile, http.StatusUnsupportedMediaType, "unsupported_file", "Only CSV, XLSX and JSON files are accepted."},
	{datafile.ErrEmptyFile, http.StatusBadRequest, "empty_file", "Dataset file is empty."},
	{analysis.ErrNotConfigured, http.StatusServiceUnavailable, "llm_unavailable", "AI analysis is not configured."},
	{queue.ErrNoQueue, http.StatusServiceUnavailable, "queue_unavailable", "Background analysis is not available."},
}

// writeError reports err with the status of the first matching sentinel.
// Anything unmatched is logged and hidden behind a generic 500.
func (h HandlerSet) writeError(c *gin.Context, err error) {
	var locked *service.LockedError
	if errors.As(err, &locked) {
		c.Header("Retry-After", strconv.FormatInt(locked.Seconds(), 10))
		fail(c, http.StatusLocked, "account_locked", locked.Error())
		return
	}

	var policy *security.PolicyError
	if errors.As(err, &policy) {
		code := "weak_password"
		if errors.Is(err, security.ErrInvalidUsername) {
			code = "invalid_username"
		}
		fail(c, http.StatusBadRequest, code, policy.Message)
		return
	}

	for _, m := range errorTable {
		if errors.Is(err, m.target) {
			message := m.message
			if message == "" {
				message = err.Error()
			}
			if m.status >= http.StatusInternalServerError {
				h.log.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
			}
			fail(c, m.status, m.code, message)
			return
		}
	}

	h.log.Error().Err(err).Str("path", c.FullPath()).Msg("unhandled error")
	fail(c, http.StatusInternalServerError, "internal_error", "Unexpected server error.")
}

func badRequest(c *gin.Context, err error) {
	fail(c, http.StatusBadRequest, "invalid_request", err.Error())
}

func parseID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		fail(c, http.StatusBadRequest, "invalid_id", "Record id must be a positive integer.")
		return 0, false
	}
	return id, true
}

// page reads page/perPage query parameters into a limit and offset.
func page(c *gin.Context) (limit, offset int) {
	limit = 50
	if perPage := c.Query("perPage"); perPage != "" {
		if v, err := strconv.Atoi(perPage); err == nil && v > 0 && v <= 200 {
			limit = v
		}
	}
	if p := c.Query("page"); p != "" {
		if v, err := strconv.Atoi(p); err == nil && v > 1 {
			offset = (v - 1) * limit
		}
	}
	return limit, offset
}
