package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/skillmatch/auth-service/internal/sessions"
	"github.com/skillmatch/auth-service/pkg/logger"
	"github.com/skillmatch/auth-service/pkg/middleware"
)

// SessionsHandler exposes the session management surface. Every route is
// scoped to the authenticated user; there is no cross-user visibility.
type SessionsHandler struct {
	svc *sessions.Service
}

func NewSessionsHandler(svc *sessions.Service) *SessionsHandler {
	return &SessionsHandler{svc: svc}
}

// Register routes under /sessions; all require authentication.
func (h *SessionsHandler) Register(rg *gin.RouterGroup, authRequired gin.HandlerFunc) {
	s := rg.Group("/sessions", authRequired)
	s.GET("", h.List)
	s.DELETE("/:id", h.Revoke)
	s.POST("/revoke-others", h.RevokeOthers)
	s.POST("/revoke-bulk", h.RevokeBulk)
	s.GET("/stats", h.Stats)
	s.GET("/security", h.Security)
	s.POST("/cleanup", h.Cleanup)
}

// List returns the caller's active sessions, newest first.
func (h *SessionsHandler) List(c *gin.Context) {
	userID := c.GetString(middleware.CtxUserID)
	rows, err := h.svc.ActiveSessions(c.Request.Context(), userID)
	if err != nil {
		writeSessionError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sessions": rows, "count": len(rows)})
}

// Revoke ends one of the caller's sessions. Revoking someone else's session
// id, an unknown id, or an already-revoked session all answer 404.
func (h *SessionsHandler) Revoke(c *gin.Context) {
	userID := c.GetString(middleware.CtxUserID)
	if err := h.svc.Revoke(c.Request.Context(), c.Param("id"), userID); err != nil {
		if errors.Is(err, sessions.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
			return
		}
		writeSessionError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "session revoked"})
}

// RevokeOthers is "log out everywhere else": every session except the one
// backing the presented access token is revoked.
func (h *SessionsHandler) RevokeOthers(c *gin.Context) {
	ctx := c.Request.Context()
	userID := c.GetString(middleware.CtxUserID)
	jti := c.GetString(middleware.CtxJTI)

	// a failed lookup must not degrade into revoking the current session too
	current, err := h.svc.FindByJTI(ctx, jti)
	if err != nil {
		writeSessionError(c, err)
		return
	}
	exceptID := ""
	if current != nil {
		exceptID = current.ID
	}
	n, err := h.svc.RevokeAll(ctx, userID, exceptID)
	if err != nil {
		writeSessionError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"revoked": n})
}

// RevokeBulk revokes a list of the caller's session ids. Ids that do not
// belong to the caller or are already revoked are skipped, not errors.
func (h *SessionsHandler) RevokeBulk(c *gin.Context) {
	var req struct {
		SessionIDs []string `json:"session_ids" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	userID := c.GetString(middleware.CtxUserID)
	var revoked int
	for _, id := range req.SessionIDs {
		err := h.svc.Revoke(c.Request.Context(), id, userID)
		switch {
		case err == nil:
			revoked++
		case errors.Is(err, sessions.ErrNotFound):
			// skipped
		default:
			writeSessionError(c, err)
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"revoked": revoked, "requested": len(req.SessionIDs)})
}

// Stats aggregates the caller's session history.
func (h *SessionsHandler) Stats(c *gin.Context) {
	userID := c.GetString(middleware.CtxUserID)
	st, err := h.svc.Stats(c.Request.Context(), userID)
	if err != nil {
		writeSessionError(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

// Security reports suspicious login activity for the caller. Advisory only.
func (h *SessionsHandler) Security(c *gin.Context) {
	userID := c.GetString(middleware.CtxUserID)
	activity, err := h.svc.SuspiciousActivity(c.Request.Context(), userID)
	if err != nil {
		writeSessionError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"suspicious_activity": activity, "count": len(activity)})
}

// Cleanup triggers a retention purge. Also runs periodically in the
// background; the endpoint exists for operational use.
func (h *SessionsHandler) Cleanup(c *gin.Context) {
	n, err := h.svc.Cleanup(c.Request.Context())
	if err != nil {
		writeSessionError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"purged": n})
}

func writeSessionError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, sessions.ErrStoreTimeout), errors.Is(err, sessions.ErrStoreUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "session store unavailable"})
	default:
		logger.Errorf("unhandled session error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
