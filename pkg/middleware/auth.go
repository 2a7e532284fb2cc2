package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/skillmatch/auth-service/internal/sessions"
	"github.com/skillmatch/auth-service/internal/tokens"
)

// Context keys set by AuthMiddleware for downstream handlers.
const (
	CtxUserID = "userID"
	CtxJTI    = "jti"
)

// Verifier is the minimal token interface the middleware depends on
type Verifier interface {
	Verify(raw string, want tokens.TokenType) (*tokens.Claims, error)
}

// SessionChecker answers whether the session behind a jti is still live.
type SessionChecker interface {
	FindByJTI(ctx context.Context, jti string) (*sessions.Session, error)
	IsRevokedJTI(ctx context.Context, jti string) bool
}

// AuthMiddleware verifies the Bearer access token, then checks that its
// session has not been revoked: first against the revocation cache, then
// against the session store. A nil checker skips the session lookup (pure
// stateless verification).
func AuthMiddleware(ver Verifier, check SessionChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, ok := bearerToken(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing or invalid Authorization header"})
			return
		}

		claims, err := ver.Verify(raw, tokens.TypeAccess)
		if err != nil {
			msg := "invalid token"
			if err == tokens.ErrExpiredToken {
				msg = "token expired"
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": msg})
			return
		}

		if check != nil {
			ctx := c.Request.Context()
			if check.IsRevokedJTI(ctx, claims.ID) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "session revoked"})
				return
			}
			sess, err := check.FindByJTI(ctx, claims.ID)
			if err != nil {
				c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "session store unavailable"})
				return
			}
			if sess == nil || !sess.Active(time.Now().UTC()) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "session revoked"})
				return
			}
		}

		c.Set(CtxUserID, claims.Subject)
		c.Set(CtxJTI, claims.ID)
		c.Next()
	}
}

func bearerToken(c *gin.Context) (string, bool) {
	auth := c.GetHeader("Authorization")
	if auth == "" {
		return "", false
	}
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}
