package handlers

import (
	"bytes"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"intelplatform/internal/middleware"
	"intelplatform/internal/models"
	"intelplatform/internal/security"
	"intelplatform/internal/service"
)

type registerRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
	Role     string `json:"role"`
	Domain   string `json:"domain"`
}

type userResponse struct {
	Username  string    `json:"username"`
	Role      string    `json:"role"`
	Domain    string    `json:"domain,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

func newUserResponse(user models.Credential) userResponse {
	return userResponse{
		Username:  user.Username,
		Role:      string(user.Role),
		Domain:    string(user.Domain),
		CreatedAt: user.CreatedAt,
	}
}

func (h HandlerSet) RegisterUser(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	result, err := h.auth.Register(c.Request.Context(), service.RegisterInput{
		Username: req.Username,
		Password: req.Password,
		Role:     models.UserRole(req.Role),
		Domain:   models.Domain(req.Domain),
	})
	if err != nil {
		h.writeError(c, err)
		return
	}

	succeed(c, http.StatusCreated, result.Message, gin.H{
		"user":     newUserResponse(result.User),
		"strength": result.Strength,
	})
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type loginResponse struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expiresAt"`
	User      userResponse `json:"user"`
}

func (h HandlerSet) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	result, issued, err := h.auth.LoginWithSession(c.Request.Context(), req.Username, req.Password, service.SessionMeta{
		IPAddress: c.ClientIP(),
		UserAgent: c.GetHeader("User-Agent"),
	})
	if err != nil {
		h.writeError(c, err)
		return
	}

	if name := h.cfg.Security.SessionCookie; name != "" {
		c.SetSameSite(http.SameSiteLaxMode)
		c.SetCookie(name, issued.Token, int(time.Until(issued.ExpiresAt).Seconds()), "/", "", h.cfg.Security.SecureCookie, true)
	}

	succeed(c, http.StatusOK, result.Message, gin.H{
		"session": loginResponse{
			Token:     issued.Token,
			ExpiresAt: issued.ExpiresAt,
			User:      newUserResponse(result.User),
		},
	})
}

func (h HandlerSet) Logout(c *gin.Context) {
	if err := h.auth.Logout(c.Request.Context(), middleware.SessionToken(c)); err != nil {
		h.writeError(c, err)
		return
	}
	if name := h.cfg.Security.SessionCookie; name != "" {
		c.SetCookie(name, "", -1, "/", "", h.cfg.Security.SecureCookie, true)
	}
	succeed(c, http.StatusOK, "Logged out.", nil)
}

func (h HandlerSet) Me(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		fail(c, http.StatusUnauthorized, "unauthorized", "Authentication required.")
		return
	}
	succeed(c, http.StatusOK, "", gin.H{"user": newUserResponse(user)})
}

type sessionResponse struct {
	IPAddress string    `json:"ipAddress"`
	UserAgent string    `json:"userAgent"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
	Current   bool      `json:"current"`
}

func (h HandlerSet) ListSessions(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		fail(c, http.StatusUnauthorized, "unauthorized", "Authentication required.")
		return
	}

	sessions, err := h.auth.Sessions(c.Request.Context(), user.Username)
	if err != nil {
		h.writeError(c, err)
		return
	}

	current := security.HashSessionToken(middleware.SessionToken(c))
	resp := make([]sessionResponse, 0, len(sessions))
	for _, session := range sessions {
		resp = append(resp, sessionResponse{
			IPAddress: session.IPAddress,
			UserAgent: session.UserAgent,
			CreatedAt: session.CreatedAt,
			ExpiresAt: session.ExpiresAt,
			Current:   bytes.Equal(session.TokenHash, current),
		})
	}

	succeed(c, http.StatusOK, "", gin.H{"sessions": resp})
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" binding:"required"`
	NewPassword     string `json:"newPassword" binding:"required"`
}

func (h HandlerSet) ChangePassword(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		fail(c, http.StatusUnauthorized, "unauthorized", "Authentication required.")
		return
	}

	var req changePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	if err := h.auth.ChangePassword(c.Request.Context(), user.Username, req.CurrentPassword, req.NewPassword); err != nil {
		h.writeError(c, err)
		return
	}
	succeed(c, http.StatusOK, "Password changed successfully.", nil)
}

type strengthRequest struct {
	Password string `json:"password"`
}

// PasswordStrength grades a candidate password for the registration form.
func (h HandlerSet) PasswordStrength(c *gin.Context) {
	var req strengthRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	resp := gin.H{"strength": security.PasswordStrength(req.Password), "valid": true}
	if err := security.ValidatePassword(req.Password); err != nil {
		resp["valid"] = false
		resp["hint"] = err.Error()
	}
	succeed(c, http.StatusOK, "", resp)
}
