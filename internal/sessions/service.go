package sessions

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/google/uuid"

	"github.com/skillmatch/auth-service/internal/config"
	"github.com/skillmatch/auth-service/pkg/logger"
	"github.com/skillmatch/auth-service/pkg/metrics"
)

// Service wraps repository operations with business logic: opaque token
// generation and hashing, bounded store timeouts with a single retry for
// idempotent calls, and the cleanup retention policy.
type Service struct {
	repo             Repository
	cache            *RevocationCache
	storeTimeout     time.Duration
	expiredRetention time.Duration
	revokedRetention time.Duration
}

func NewService(repo Repository, cfg config.SessionsConfig) *Service {
	st := cfg.StoreTimeout
	if st <= 0 {
		st = 5 * time.Second
	}
	er := cfg.ExpiredRetention
	if er <= 0 {
		er = 30 * 24 * time.Hour
	}
	rr := cfg.RevokedRetention
	if rr <= 0 {
		rr = 7 * 24 * time.Hour
	}
	return &Service{repo: repo, storeTimeout: st, expiredRetention: er, revokedRetention: rr}
}

// SetRevocationCache attaches an optional Redis cache that propagates revoked
// jtis to the auth middleware ahead of a store lookup. Safe to leave unset.
func (s *Service) SetRevocationCache(c *RevocationCache) { s.cache = c }

// GenerateToken returns a fresh opaque session token (32 random bytes, hex).
func GenerateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// HashToken is the irreversible hash under which session tokens are stored;
// the raw token never reaches the store.
func HashToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}

// call runs fn under the store timeout. When retriable is set, a timeout is
// retried exactly once (lookups and revokes are idempotent; creates are not).
func (s *Service) call(ctx context.Context, retriable bool, fn func(context.Context) error) error {
	run := func() error {
		cctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
		defer cancel()
		err := fn(cctx)
		if errors.Is(err, context.DeadlineExceeded) {
			return ErrStoreTimeout
		}
		return err
	}
	err := run()
	if retriable && errors.Is(err, ErrStoreTimeout) {
		logger.Warnf("session store timed out, retrying once")
		err = run()
	}
	return err
}

// CreateSession persists a new session bound to the given access-token jti and
// returns the session id together with the raw opaque token. The raw token is
// handed to the caller once and only its hash is stored.
func (s *Service) CreateSession(ctx context.Context, userID, jti string, device *DeviceInfo, ip string, expiresAt time.Time) (sessionID, rawToken string, err error) {
	rawToken, err = GenerateToken()
	if err != nil {
		return "", "", err
	}
	if ip != "" && net.ParseIP(ip) == nil {
		logger.Warnf("dropping invalid ip address %q on session create", ip)
		ip = ""
	}
	sess := &Session{
		ID:         uuid.NewString(),
		UserID:     userID,
		TokenHash:  HashToken(rawToken),
		JwtJTI:     jti,
		DeviceInfo: device,
		IPAddress:  ip,
		ExpiresAt:  expiresAt.UTC(),
	}
	err = s.call(ctx, false, func(cctx context.Context) error {
		return s.repo.Create(cctx, sess)
	})
	if err != nil {
		return "", "", err
	}
	metrics.SessionsCreated.Inc()
	return sess.ID, rawToken, nil
}

// FindByToken returns the active session for a raw opaque token, or nil.
func (s *Service) FindByToken(ctx context.Context, rawToken string) (*Session, error) {
	var found *Session
	err := s.call(ctx, true, func(cctx context.Context) error {
		sess, err := s.repo.GetByTokenHash(cctx, HashToken(rawToken))
		found = sess
		return err
	})
	return found, err
}

// FindByJTI returns the session bound to a jti regardless of state, so revoke
// on logout is still safe against already-expired rows.
func (s *Service) FindByJTI(ctx context.Context, jti string) (*Session, error) {
	var found *Session
	err := s.call(ctx, true, func(cctx context.Context) error {
		sess, err := s.repo.GetByJTI(cctx, jti)
		found = sess
		return err
	})
	return found, err
}

// Revoke marks one session revoked, scoped to ownerID when non-empty. Returns
// ErrNotFound when no unrevoked row matched, so callers can tell an
// already-revoked session apart from a successful revoke.
func (s *Service) Revoke(ctx context.Context, sessionID, ownerID string) error {
	var changed bool
	err := s.call(ctx, true, func(cctx context.Context) error {
		ok, err := s.repo.RevokeByID(cctx, sessionID, ownerID)
		changed = ok
		return err
	})
	if err != nil {
		return err
	}
	if !changed {
		return ErrNotFound
	}
	metrics.SessionsRevoked.WithLabelValues("single").Inc()
	return nil
}

// RevokeByJTIs bulk-revokes sessions bound to the given jtis. Empty input is
// a no-op returning 0.
func (s *Service) RevokeByJTIs(ctx context.Context, jtis []string) (int64, error) {
	if len(jtis) == 0 {
		return 0, nil
	}
	var n int64
	err := s.call(ctx, true, func(cctx context.Context) error {
		count, err := s.repo.RevokeByJTIs(cctx, jtis)
		n = count
		return err
	})
	if err != nil {
		return 0, err
	}
	if n > 0 {
		metrics.SessionsRevoked.WithLabelValues("bulk").Add(float64(n))
	}
	if s.cache != nil {
		for _, jti := range jtis {
			if err := s.cache.MarkRevoked(ctx, jti, s.cacheTTL()); err != nil {
				logger.Warnf("failed to publish revoked jti to cache: %v", err)
				break
			}
		}
	}
	return n, nil
}

// RevokeAll revokes every active session of the user, sparing exceptID when
// non-empty ("log out everywhere else").
func (s *Service) RevokeAll(ctx context.Context, userID, exceptID string) (int64, error) {
	var n int64
	err := s.call(ctx, true, func(cctx context.Context) error {
		count, err := s.repo.RevokeAllForUser(cctx, userID, exceptID)
		n = count
		return err
	})
	if err != nil {
		return 0, err
	}
	if n > 0 {
		metrics.SessionsRevoked.WithLabelValues("all").Add(float64(n))
	}
	return n, nil
}

// Cleanup deletes rows past the retention windows: expired longer ago than
// the expired retention, or revoked and older than the revoked retention.
// Active sessions are never touched.
func (s *Service) Cleanup(ctx context.Context) (int64, error) {
	now := time.Now().UTC()
	var n int64
	err := s.call(ctx, true, func(cctx context.Context) error {
		count, err := s.repo.PurgeExpired(cctx, now.Add(-s.expiredRetention), now.Add(-s.revokedRetention))
		n = count
		return err
	})
	if err != nil {
		return 0, err
	}
	if n > 0 {
		metrics.SessionsPurged.Add(float64(n))
		logger.Infof("session cleanup removed %d rows", n)
	}
	return n, nil
}

// ActiveSessions lists the user's active sessions, newest first.
func (s *Service) ActiveSessions(ctx context.Context, userID string) ([]*Session, error) {
	var out []*Session
	err := s.call(ctx, true, func(cctx context.Context) error {
		rows, err := s.repo.ListActiveForUser(cctx, userID)
		out = rows
		return err
	})
	return out, err
}

// Stats aggregates the user's session history.
func (s *Service) Stats(ctx context.Context, userID string) (*Stats, error) {
	var st *Stats
	err := s.call(ctx, true, func(cctx context.Context) error {
		res, err := s.repo.StatsForUser(cctx, userID)
		st = res
		return err
	})
	return st, err
}

// SuspiciousActivity flags bursts of session creation within a rolling 24h
// window: sessions grouped by (IP, device type, hour) with more than 3
// creations produce a "multiple_logins" signal. Advisory only; nothing is
// locked out based on it.
func (s *Service) SuspiciousActivity(ctx context.Context, userID string) ([]SuspiciousActivity, error) {
	var rows []*Session
	err := s.call(ctx, true, func(cctx context.Context) error {
		res, err := s.repo.ListForUser(cctx, userID)
		rows = res
		return err
	})
	if err != nil {
		return nil, err
	}

	type groupKey struct {
		ip     string
		device string
		hour   time.Time
	}
	cutoff := time.Now().UTC().Add(-24 * time.Hour)
	groups := map[groupKey][]*Session{}
	for _, row := range rows {
		if row.CreatedAt.Before(cutoff) {
			continue
		}
		key := groupKey{ip: row.IPAddress, hour: row.CreatedAt.Truncate(time.Hour)}
		if row.DeviceInfo != nil {
			key.device = row.DeviceInfo.DeviceType
		}
		groups[key] = append(groups[key], row)
	}

	out := []SuspiciousActivity{}
	for key, members := range groups {
		if len(members) <= 3 {
			continue
		}
		latest := members[0].CreatedAt
		for _, m := range members[1:] {
			if m.CreatedAt.After(latest) {
				latest = m.CreatedAt
			}
		}
		out = append(out, SuspiciousActivity{
			Type:        "multiple_logins",
			Description: fmt.Sprintf("Multiple logins from IP %s", key.ip),
			Timestamp:   latest,
			Metadata: map[string]interface{}{
				"ip_address":  key.ip,
				"device_type": key.device,
				"login_count": len(members),
			},
		})
	}
	return out, nil
}

// IsRevokedJTI consults the revocation cache only. A cache miss or a cache
// error both report false; the session store stays the source of truth.
func (s *Service) IsRevokedJTI(ctx context.Context, jti string) bool {
	revoked, err := s.cache.IsRevoked(ctx, jti)
	if err != nil {
		logger.Warnf("revocation cache lookup failed for jti=%s: %v", jti, err)
		return false
	}
	return revoked
}

func (s *Service) cacheTTL() time.Duration {
	// revoked markers only need to outlive the longest access token
	return time.Hour
}
