package tokens

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/skillmatch/auth-service/internal/config"
)

// TokenType distinguishes access tokens from refresh tokens. A refresh token
// presented where an access token is required (or vice versa) fails with
// ErrWrongTokenType.
type TokenType string

const (
	TypeAccess  TokenType = "access"
	TypeRefresh TokenType = "refresh"
)

var (
	ErrInvalidToken   = errors.New("invalid token")
	ErrExpiredToken   = errors.New("token expired")
	ErrWrongTokenType = errors.New("wrong token type")
)

// Claims carried by every issued token. The jti (RegisteredClaims.ID)
// correlates an access token with its server-side session row. Refresh tokens
// additionally carry the jti of the access token they were issued alongside
// (AccessJTI), which is what rotation revokes.
type Claims struct {
	jwt.RegisteredClaims
	Type      string `json:"type"`
	AccessJTI string `json:"ajti,omitempty"`
}

// Codec signs and verifies time-bounded HS256 tokens. Configuration is
// explicit; no package-level state.
type Codec struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
}

func NewCodec(cfg config.JWTConfig) *Codec {
	return &Codec{
		secret:     []byte(cfg.Secret),
		accessTTL:  cfg.AccessTokenTTL,
		refreshTTL: cfg.RefreshTokenTTL,
	}
}

// AccessTTL reports the configured access-token lifetime.
func (c *Codec) AccessTTL() time.Duration { return c.accessTTL }

// Issue creates a signed token for the subject with a fresh jti and the given
// TTL. Returns the encoded token, its jti, and the absolute expiry so callers
// can bind a session record to the token.
func (c *Codec) Issue(subject string, typ TokenType, ttl time.Duration) (token, jti string, expiresAt time.Time, err error) {
	jti = uuid.NewString()
	now := time.Now().UTC()
	expiresAt = now.Add(ttl)
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		Type: string(typ),
	}
	jt := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	token, err = jt.SignedString(c.secret)
	if err != nil {
		return "", "", time.Time{}, err
	}
	return token, jti, expiresAt, nil
}

// IssueAccess issues an access token with the configured access TTL.
func (c *Codec) IssueAccess(subject string) (token, jti string, expiresAt time.Time, err error) {
	return c.Issue(subject, TypeAccess, c.accessTTL)
}

// IssueRefresh issues a refresh token with the configured refresh TTL, bound
// to the access-token jti it was minted with so rotation can revoke the right
// session.
func (c *Codec) IssueRefresh(subject, accessJTI string) (token, jti string, expiresAt time.Time, err error) {
	jti = uuid.NewString()
	now := time.Now().UTC()
	expiresAt = now.Add(c.refreshTTL)
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		Type:      string(TypeRefresh),
		AccessJTI: accessJTI,
	}
	jt := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	token, err = jt.SignedString(c.secret)
	if err != nil {
		return "", "", time.Time{}, err
	}
	return token, jti, expiresAt, nil
}

// Verify checks signature, expiry, and token type. Expiry is checked here
// rather than delegated to the parser so an expired-but-well-signed token
// yields ErrExpiredToken instead of a generic parse failure.
func (c *Codec) Verify(token string, want TokenType) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, ErrInvalidToken
		}
		return c.secret, nil
	}, jwt.WithoutClaimsValidation())
	if err != nil {
		return nil, ErrInvalidToken
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || claims.Subject == "" || claims.ID == "" {
		return nil, ErrInvalidToken
	}
	if claims.ExpiresAt == nil || time.Now().UTC().After(claims.ExpiresAt.Time) {
		return nil, ErrExpiredToken
	}
	if claims.Type != string(want) {
		return nil, ErrWrongTokenType
	}
	return claims, nil
}

// DecodeJTI extracts the jti without verifying signature or expiry. Used on
// logout, where a malformed or expired token must still produce a successful
// response; callers branch on ok and never see a decode error.
func DecodeJTI(token string) (jti string, ok bool) {
	var claims Claims
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(token, &claims); err != nil {
		return "", false
	}
	if claims.ID == "" {
		return "", false
	}
	return claims.ID, true
}
