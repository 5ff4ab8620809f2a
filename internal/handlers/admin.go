package handlers

import (
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"intelplatform/internal/middleware"
	"intelplatform/internal/models"
)

type adminUserResponse struct {
	userResponse
	Locked           bool  `json:"locked"`
	RemainingSeconds int64 `json:"remainingSeconds,omitempty"`
	FailedAttempts   int   `json:"failedAttempts"`
}

func (h HandlerSet) AdminListUsers(c *gin.Context) {
	users, err := h.auth.ListUsers(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}

	items := make([]adminUserResponse, 0, len(users))
	for _, user := range users {
		item := adminUserResponse{userResponse: newUserResponse(user)}
		status, err := h.auth.LockStatus(c.Request.Context(), user.Username)
		if err != nil {
			h.writeError(c, err)
			return
		}
		item.Locked = status.Locked
		item.FailedAttempts = status.Attempts
		if status.Locked {
			item.RemainingSeconds = int64(status.Remaining / time.Second)
		}
		items = append(items, item)
	}

	succeed(c, http.StatusOK, "", gin.H{"users": items})
}

type updateRoleRequest struct {
	Role   string `json:"role" binding:"required"`
	Domain string `json:"domain"`
}

func (h HandlerSet) AdminUpdateRole(c *gin.Context) {
	var req updateRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	username := c.Param("username")
	if err := h.auth.UpdateRole(c.Request.Context(), username, models.UserRole(req.Role), models.Domain(req.Domain)); err != nil {
		h.writeError(c, err)
		return
	}
	succeed(c, http.StatusOK, "Role for '"+username+"' updated to "+req.Role+".", nil)
}

type resetPasswordRequest struct {
	Password string `json:"password" binding:"required"`
}

func (h HandlerSet) AdminResetPassword(c *gin.Context) {
	var req resetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	username := c.Param("username")
	if err := h.auth.ResetPassword(c.Request.Context(), username, req.Password); err != nil {
		h.writeError(c, err)
		return
	}
	succeed(c, http.StatusOK, "Password for '"+username+"' has been reset.", nil)
}

func (h HandlerSet) AdminDeleteUser(c *gin.Context) {
	username := c.Param("username")
	if admin, ok := middleware.CurrentUser(c); ok && admin.Username == username {
		fail(c, http.StatusBadRequest, "cannot_delete_self", "You cannot delete your own account.")
		return
	}

	if err := h.auth.DeleteUser(c.Request.Context(), username); err != nil {
		h.writeError(c, err)
		return
	}
	succeed(c, http.StatusOK, "User '"+username+"' deleted.", nil)
}

func (h HandlerSet) AdminUnlockUser(c *gin.Context) {
	username := c.Param("username")
	if err := h.auth.Unlock(c.Request.Context(), username); err != nil {
		h.writeError(c, err)
		return
	}
	succeed(c, http.StatusOK, "User '"+username+"' unlocked.", nil)
}

// AdminImportUsers loads a legacy users file sent either as the "file"
// multipart field or as the raw request body.
func (h HandlerSet) AdminImportUsers(c *gin.Context) {
	var src io.Reader = c.Request.Body
	if c.ContentType() == "multipart/form-data" {
		file, _, err := c.Request.FormFile("file")
		if err != nil {
			fail(c, http.StatusBadRequest, "file_required", "Upload the legacy users file in the \"file\" field.")
			return
		}
		defer file.Close()
		src = file
	}

	result, err := h.auth.ImportLegacyUsers(c.Request.Context(), io.LimitReader(src, 8<<20))
	if err != nil {
		h.writeError(c, err)
		return
	}
	succeed(c, http.StatusOK, "Legacy users imported.", gin.H{
		"imported": result.Imported,
		"skipped":  result.Skipped,
		"invalid":  result.Invalid,
	})
}
