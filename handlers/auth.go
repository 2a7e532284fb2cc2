package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/skillmatch/auth-service/internal/auth"
	"github.com/skillmatch/auth-service/internal/sessions"
	"github.com/skillmatch/auth-service/internal/tokens"
	"github.com/skillmatch/auth-service/internal/users"
	"github.com/skillmatch/auth-service/pkg/logger"
	"github.com/skillmatch/auth-service/pkg/middleware"
)

type RegisterRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Name     string `json:"name" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required"`
}

// AuthHandler holds dependencies
type AuthHandler struct {
	authSvc  *auth.Service
	usersSvc *users.Service
}

func NewAuthHandler(a *auth.Service, u *users.Service) *AuthHandler {
	return &AuthHandler{authSvc: a, usersSvc: u}
}

// Register routes under /auth. Routes needing a verified caller take the
// auth middleware passed in by main.
func (h *AuthHandler) Register(rg *gin.RouterGroup, authRequired gin.HandlerFunc) {
	a := rg.Group("/auth")
	a.POST("/register", h.RegisterUser)
	a.POST("/login", h.Login)
	a.POST("/refresh", h.Refresh)
	a.POST("/logout", h.Logout)
	a.GET("/me", authRequired, h.Me)
	a.POST("/change-password", authRequired, h.ChangePassword)
	a.DELETE("/me", authRequired, h.DeleteAccount)
}

// RegisterUser creates an account and logs it straight in.
func (h *AuthHandler) RegisterUser(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	u, pair, err := h.authSvc.Register(c.Request.Context(), req.Email, req.Name, req.Password, clientInfo(c))
	if err != nil {
		writeAuthError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"user": u, "tokens": pair})
}

// Login verifies credentials and returns a token pair with its session.
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	u, pair, err := h.authSvc.Login(c.Request.Context(), req.Email, req.Password, clientInfo(c))
	if err != nil {
		writeAuthError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": u, "tokens": pair})
}

// Refresh rotates the token pair. The session of the old access token is
// revoked once the new one exists.
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	pair, err := h.authSvc.Refresh(c.Request.Context(), req.RefreshToken, clientInfo(c))
	if err != nil {
		writeAuthError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tokens": pair})
}

// Logout revokes the caller's session. Always answers 200: an expired or
// malformed token still means the client ends up logged out.
func (h *AuthHandler) Logout(c *gin.Context) {
	header := c.GetHeader("Authorization")
	if raw, ok := strings.CutPrefix(header, "Bearer "); ok && raw != "" {
		h.authSvc.Logout(c.Request.Context(), raw)
	}
	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}

// Me returns the authenticated account.
func (h *AuthHandler) Me(c *gin.Context) {
	u, err := h.usersSvc.GetByID(c.Request.Context(), c.GetString(middleware.CtxUserID))
	if err != nil {
		writeAuthError(c, err)
		return
	}
	c.JSON(http.StatusOK, u)
}

// ChangePassword verifies the current password before setting the new one.
func (h *AuthHandler) ChangePassword(c *gin.Context) {
	var req ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	userID := c.GetString(middleware.CtxUserID)
	if err := h.usersSvc.ChangePassword(c.Request.Context(), userID, req.CurrentPassword, req.NewPassword); err != nil {
		writeAuthError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "password updated"})
}

// DeleteAccount deactivates the account and revokes all its sessions.
func (h *AuthHandler) DeleteAccount(c *gin.Context) {
	userID := c.GetString(middleware.CtxUserID)
	if err := h.authSvc.DeactivateAccount(c.Request.Context(), userID); err != nil {
		writeAuthError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "account deactivated"})
}

// clientInfo extracts the session metadata recorded with each login.
func clientInfo(c *gin.Context) auth.ClientInfo {
	ua := c.GetHeader("User-Agent")
	device := &sessions.DeviceInfo{
		DeviceType: deviceType(c, ua),
		OS:         c.GetHeader("X-Device-OS"),
		Browser:    c.GetHeader("X-Device-Browser"),
		UserAgent:  ua,
		Timezone:   c.GetHeader("X-Timezone"),
	}
	return auth.ClientInfo{Device: device, IP: c.ClientIP()}
}

func deviceType(c *gin.Context, ua string) string {
	if t := c.GetHeader("X-Device-Type"); t != "" {
		return t
	}
	lower := strings.ToLower(ua)
	switch {
	case strings.Contains(lower, "mobile"):
		return "mobile"
	case strings.Contains(lower, "tablet"):
		return "tablet"
	case ua == "":
		return "unknown"
	default:
		return "desktop"
	}
}

// writeAuthError maps service errors onto HTTP statuses. Unknown errors are
// logged and answered with a generic 500 so internals do not leak.
func writeAuthError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, users.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
	case errors.Is(err, users.ErrAccountDisabled):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, users.ErrEmailTaken):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, users.ErrUserNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, tokens.ErrExpiredToken),
		errors.Is(err, tokens.ErrInvalidToken),
		errors.Is(err, tokens.ErrWrongTokenType):
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
	case errors.Is(err, sessions.ErrStoreTimeout),
		errors.Is(err, sessions.ErrStoreUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "session store unavailable"})
	case errors.Is(err, users.ErrWeakPassword):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		logger.Errorf("unhandled auth error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
