// Package auth orchestrates credentials, token issuance, and session tracking
// into the login, refresh, and logout flows.
package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/skillmatch/auth-service/internal/sessions"
	"github.com/skillmatch/auth-service/internal/tokens"
	"github.com/skillmatch/auth-service/internal/users"
	"github.com/skillmatch/auth-service/pkg/logger"
	"github.com/skillmatch/auth-service/pkg/metrics"
)

// ClientInfo carries the request-side metadata recorded on each session.
type ClientInfo struct {
	Device *sessions.DeviceInfo
	IP     string
}

// TokenPair is the result of a successful login or refresh. SessionToken is
// the opaque per-session secret, surfaced exactly once at issuance.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	SessionID    string `json:"session_id"`
	SessionToken string `json:"session_token"`
}

// Service ties the user store, the token codec, and the session store
// together. It owns the ordering rules of the flows: a session always exists
// before its tokens are returned, and on rotation the new session exists
// before the old one is revoked.
type Service struct {
	codec    *tokens.Codec
	users    *users.Service
	sessions *sessions.Service
}

func NewService(codec *tokens.Codec, usersSvc *users.Service, sessionsSvc *sessions.Service) *Service {
	return &Service{codec: codec, users: usersSvc, sessions: sessionsSvc}
}

// IssueTokens mints an access/refresh pair for the user and records a session
// bound to the access token's jti. The refresh token carries that jti so a
// later rotation knows which session to retire. If the session cannot be
// persisted the tokens are discarded and never reach the caller.
func (s *Service) IssueTokens(ctx context.Context, userID string, client ClientInfo) (*TokenPair, error) {
	access, jti, expiresAt, err := s.codec.IssueAccess(userID)
	if err != nil {
		return nil, fmt.Errorf("issue access token: %w", err)
	}
	refresh, _, _, err := s.codec.IssueRefresh(userID, jti)
	if err != nil {
		return nil, fmt.Errorf("issue refresh token: %w", err)
	}
	sessionID, rawToken, err := s.sessions.CreateSession(ctx, userID, jti, client.Device, client.IP, expiresAt)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	return &TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "bearer",
		ExpiresIn:    int(s.codec.AccessTTL() / time.Second),
		SessionID:    sessionID,
		SessionToken: rawToken,
	}, nil
}

// Register creates the account and logs it straight in.
func (s *Service) Register(ctx context.Context, email, name, password string, client ClientInfo) (*users.User, *TokenPair, error) {
	u, err := s.users.Register(ctx, email, name, password)
	if err != nil {
		return nil, nil, err
	}
	pair, err := s.IssueTokens(ctx, u.ID, client)
	if err != nil {
		return nil, nil, err
	}
	return u, pair, nil
}

// Login verifies credentials and issues a fresh pair with its session.
func (s *Service) Login(ctx context.Context, email, password string, client ClientInfo) (*users.User, *TokenPair, error) {
	u, err := s.users.Authenticate(ctx, email, password)
	if err != nil {
		metrics.LoginAttempts.WithLabelValues("failure").Inc()
		return nil, nil, err
	}
	pair, err := s.IssueTokens(ctx, u.ID, client)
	if err != nil {
		metrics.LoginAttempts.WithLabelValues("failure").Inc()
		return nil, nil, err
	}
	metrics.LoginAttempts.WithLabelValues("success").Inc()
	return u, pair, nil
}

// Refresh rotates a token pair. The refresh token is fully verified, the
// account re-checked, and the session bound to the old access jti must still
// be unrevoked: a refresh token whose session was ended by logout, revoke, or
// an earlier rotation is dead even though its signature remains valid.
// Revocation is keyed off the session, not the token text. Only then is a new
// pair with its own session created, before the old session is revoked; a
// crash between the two steps leaves both sessions valid until expiry rather
// than locking the user out.
func (s *Service) Refresh(ctx context.Context, refreshToken string, client ClientInfo) (*TokenPair, error) {
	claims, err := s.codec.Verify(refreshToken, tokens.TypeRefresh)
	if err != nil {
		return nil, err
	}
	u, err := s.users.GetByID(ctx, claims.Subject)
	if err != nil {
		return nil, err
	}
	if !u.IsActive {
		return nil, users.ErrAccountDisabled
	}
	if claims.AccessJTI == "" {
		return nil, tokens.ErrInvalidToken
	}
	// expired-but-unrevoked is fine (GetByJTI is unconditional for this
	// reason); missing or revoked means the session was ended on purpose
	prev, err := s.sessions.FindByJTI(ctx, claims.AccessJTI)
	if err != nil {
		return nil, err
	}
	if prev == nil || prev.IsRevoked {
		return nil, tokens.ErrInvalidToken
	}

	pair, err := s.IssueTokens(ctx, u.ID, client)
	if err != nil {
		return nil, err
	}
	if _, err := s.sessions.RevokeByJTIs(ctx, []string{claims.AccessJTI}); err != nil {
		// the new pair is already committed; the stale session ages out
		logger.Warnf("failed to revoke rotated session jti=%s: %v", claims.AccessJTI, err)
	}
	return pair, nil
}

// Logout revokes the session bound to the presented access token. The token
// is decoded without verification so expired or malformed tokens still log
// out cleanly; callers always see success.
func (s *Service) Logout(ctx context.Context, accessToken string) {
	jti, ok := tokens.DecodeJTI(accessToken)
	if !ok {
		return
	}
	if _, err := s.sessions.RevokeByJTIs(ctx, []string{jti}); err != nil {
		logger.Warnf("logout revoke failed for jti=%s: %v", jti, err)
	}
}

// DeactivateAccount disables the account and revokes every session it holds.
func (s *Service) DeactivateAccount(ctx context.Context, userID string) error {
	if err := s.users.Deactivate(ctx, userID); err != nil {
		return err
	}
	if _, err := s.sessions.RevokeAll(ctx, userID, ""); err != nil {
		return fmt.Errorf("revoke sessions: %w", err)
	}
	return nil
}
