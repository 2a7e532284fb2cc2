package sessions

import (
	"errors"
	"time"
)

var (
	// ErrDuplicateToken is returned when a session token hash collides with a
	// live row. With 32 bytes of token entropy this is effectively unreachable.
	ErrDuplicateToken = errors.New("session token already exists")
	// ErrNotFound signals that a revoke targeted a missing or already-revoked
	// session, so clients can tell "already revoked" apart from success.
	ErrNotFound = errors.New("session not found")
	// ErrStoreTimeout is retriable; the store did not answer within the
	// configured bound.
	ErrStoreTimeout = errors.New("session store timeout")
	// ErrStoreUnavailable covers connection-level store failures.
	ErrStoreUnavailable = errors.New("session store unavailable")
)

// DeviceInfo describes the client a session was created from. All fields are
// optional.
type DeviceInfo struct {
	DeviceType string `bson:"deviceType,omitempty" json:"device_type,omitempty"` // "desktop", "mobile", "tablet"
	OS         string `bson:"os,omitempty" json:"os,omitempty"`
	Browser    string `bson:"browser,omitempty" json:"browser,omitempty"`
	UserAgent  string `bson:"userAgent,omitempty" json:"user_agent,omitempty"`
	Timezone   string `bson:"timezone,omitempty" json:"timezone,omitempty"`
}

// Session is one logged-in device/browser instance. It is bound to the access
// token issued alongside it through JwtJTI and stays revocable independently
// of the token's own expiry.
type Session struct {
	ID         string      `bson:"_id" json:"id"`
	UserID     string      `bson:"userId" json:"user_id"`
	TokenHash  string      `bson:"tokenHash" json:"-"`
	JwtJTI     string      `bson:"jwtJti" json:"-"`
	DeviceInfo *DeviceInfo `bson:"deviceInfo,omitempty" json:"device_info,omitempty"`
	IPAddress  string      `bson:"ipAddress,omitempty" json:"ip_address,omitempty"`
	ExpiresAt  time.Time   `bson:"expiresAt" json:"expires_at"`
	IsRevoked  bool        `bson:"isRevoked" json:"is_revoked"`
	CreatedAt  time.Time   `bson:"createdAt" json:"created_at"`
	UpdatedAt  time.Time   `bson:"updatedAt" json:"updated_at"`
}

// Active reports whether the session satisfies the active-session invariant
// at time now: not revoked and not past expiry.
func (s *Session) Active(now time.Time) bool {
	return !s.IsRevoked && now.Before(s.ExpiresAt)
}

// Stats aggregates a user's session history.
type Stats struct {
	TotalSessions      int        `json:"total_sessions"`
	ActiveSessions     int        `json:"active_sessions"`
	RevokedSessions    int        `json:"revoked_sessions"`
	ExpiredSessions    int        `json:"expired_sessions"`
	UniqueDevices      int        `json:"unique_devices"`
	MostRecentActivity *time.Time `json:"most_recent_activity,omitempty"`
	AvgDurationHours   *float64   `json:"average_session_duration,omitempty"`
}

// SuspiciousActivity is an advisory signal; nothing acts on it automatically.
type SuspiciousActivity struct {
	Type        string                 `json:"type"`
	Description string                 `json:"description"`
	Timestamp   time.Time              `json:"timestamp"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
}
