package sessions

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// RevocationCache keeps recently revoked access-token jtis in Redis so the
// auth middleware can reject them without a session-store round trip. It is
// an optimization layer: the session store remains the source of truth.
type RevocationCache struct {
	client *redis.Client
	prefix string
}

// NewRevocationCache creates the cache. Prefix may be empty.
func NewRevocationCache(client *redis.Client, prefix string) *RevocationCache {
	if prefix == "" {
		prefix = "revoked:jti:"
	}
	return &RevocationCache{client: client, prefix: prefix}
}

func (c *RevocationCache) key(jti string) string {
	return c.prefix + jti
}

// MarkRevoked records a revoked jti with the given TTL. The marker only needs
// to outlive the access token it belongs to.
func (c *RevocationCache) MarkRevoked(ctx context.Context, jti string, ttl time.Duration) error {
	if c == nil || c.client == nil {
		return nil
	}
	if ttl <= 0 {
		ttl = time.Second
	}
	return c.client.Set(ctx, c.key(jti), "1", ttl).Err()
}

// IsRevoked reports whether the jti has a revocation marker. A cache error is
// returned to the caller, who should fall back to the session store.
func (c *RevocationCache) IsRevoked(ctx context.Context, jti string) (bool, error) {
	if c == nil || c.client == nil {
		return false, nil
	}
	n, err := c.client.Exists(ctx, c.key(jti)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
