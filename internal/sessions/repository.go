package sessions

import (
	"context"
	"time"
)

// Repository provides session persistence. Every mutation is expressed as a
// conditional update ("revoke where ... and isRevoked=false") so concurrent
// callers are safe without in-process locking: the backing store's per-row
// atomicity decides which of two racing revokes takes effect, and both report
// success to their callers.
type Repository interface {
	// Create inserts a new session row. Fails with ErrDuplicateToken when the
	// token hash collides with an existing row.
	Create(ctx context.Context, s *Session) error
	// GetByTokenHash returns the session for the hash, or nil when no row
	// satisfies the active-session invariant (not revoked, not expired).
	GetByTokenHash(ctx context.Context, hash string) (*Session, error)
	// GetByJTI is an unconditional lookup so logout and rotation can still
	// target rows that already expired.
	GetByJTI(ctx context.Context, jti string) (*Session, error)
	// RevokeByID marks the session revoked if it exists, is unrevoked, and
	// (when ownerID is non-empty) belongs to that user. Reports whether a row
	// changed.
	RevokeByID(ctx context.Context, id, ownerID string) (bool, error)
	// RevokeByJTIs bulk-revokes by jti set membership; an empty list is a
	// no-op returning 0.
	RevokeByJTIs(ctx context.Context, jtis []string) (int64, error)
	// RevokeAllForUser revokes every active session of the user, sparing
	// exceptID when non-empty.
	RevokeAllForUser(ctx context.Context, userID, exceptID string) (int64, error)
	// PurgeExpired deletes rows expired before expiredBefore, or revoked and
	// created before revokedBefore. Never touches active rows.
	PurgeExpired(ctx context.Context, expiredBefore, revokedBefore time.Time) (int64, error)
	// ListActiveForUser returns the user's active sessions, newest first.
	ListActiveForUser(ctx context.Context, userID string) ([]*Session, error)
	// ListForUser returns all of the user's rows regardless of state.
	ListForUser(ctx context.Context, userID string) ([]*Session, error)
	// StatsForUser aggregates the user's session history.
	StatsForUser(ctx context.Context, userID string) (*Stats, error)
}
