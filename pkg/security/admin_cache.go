package security

import (
	"context"
	"sync"
	"time"

	"go-dishlens-backend/pkg/redis"
)

// AdminSessionCache remembers that a user recently resolved as admin.
// Route guards consult it as a last-resort fallback when the auth
// resolution is Degraded, so a transient backend hiccup does not
// hard-block an admin mid-session.
//
// This is a deliberate availability-over-strict-consistency trade-off:
// a revoked admin can keep access for up to the cache TTL. Every grant
// taken from this cache is audit-logged.
//
// Backed by Redis when available, an in-memory map otherwise (single
// instance deployments).
type AdminSessionCache struct {
	ttl time.Duration

	mu    sync.Mutex
	local map[string]time.Time
}

const adminSessionPrefix = "admin_session:"

func NewAdminSessionCache(ttl time.Duration) *AdminSessionCache {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &AdminSessionCache{
		ttl:   ttl,
		local: make(map[string]time.Time),
	}
}

// Mark records a confirmed admin resolution for the user.
func (c *AdminSessionCache) Mark(ctx context.Context, userID string) {
	if client := redis.Client(); client != nil {
		if err := client.Set(ctx, adminSessionPrefix+userID, "1", c.ttl).Err(); err == nil {
			return
		}
	}
	c.mu.Lock()
	c.local[userID] = time.Now().Add(c.ttl)
	c.mu.Unlock()
}

// Check reports whether the user held a confirmed admin session within
// the TTL window.
func (c *AdminSessionCache) Check(ctx context.Context, userID string) bool {
	if client := redis.Client(); client != nil {
		if n, err := client.Exists(ctx, adminSessionPrefix+userID).Result(); err == nil {
			return n > 0
		}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	expiry, ok := c.local[userID]
	if !ok {
		return false
	}
	if time.Now().After(expiry) {
		delete(c.local, userID)
		return false
	}
	return true
}

// Clear drops the flag (logout or explicit revocation).
func (c *AdminSessionCache) Clear(ctx context.Context, userID string) {
	if client := redis.Client(); client != nil {
		_ = client.Del(ctx, adminSessionPrefix+userID).Err()
	}
	c.mu.Lock()
	delete(c.local, userID)
	c.mu.Unlock()
}
