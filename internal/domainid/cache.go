package domainid

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/zap"

	"github.com/campusnet/academic-platform/internal/auth"
)

// SharedCache is a cross-process string cache, implemented by persistence.Redis.
type SharedCache interface {
	GetString(ctx context.Context, key string) (string, bool, error)
	SetString(ctx context.Context, key, value string, ttl time.Duration) error
}

type entry struct {
	id      string
	expires time.Time
}

// cache is two-level: an in-process expirable LRU in front of an optional shared cache.
// Entries also carry their own deadline so none outlives the token it was derived from.
type cache struct {
	local  *expirable.LRU[string, entry]
	shared SharedCache
	logger *zap.Logger
	now    func() time.Time
}

func newCache(size int, ttl time.Duration, shared SharedCache, logger *zap.Logger, now func() time.Time) *cache {
	if size <= 0 {
		size = 1024
	}
	return &cache{
		local:  expirable.NewLRU[string, entry](size, nil, ttl),
		shared: shared,
		logger: logger,
		now:    now,
	}
}

func cacheKey(token string, kind auth.DomainKind) string {
	sum := sha256.Sum256([]byte(token))
	return "domainid:" + hex.EncodeToString(sum[:]) + ":" + string(kind)
}

func (c *cache) get(ctx context.Context, key string) (string, bool) {
	if e, ok := c.local.Get(key); ok {
		if c.now().Before(e.expires) {
			return e.id, true
		}
		c.local.Remove(key)
	}
	if c.shared == nil {
		return "", false
	}
	id, ok, err := c.shared.GetString(ctx, key)
	if err != nil {
		c.logger.Warn("shared domain id cache unavailable", zap.Error(err))
		return "", false
	}
	return id, ok
}

func (c *cache) set(ctx context.Context, key, id string, ttl time.Duration) {
	if ttl <= 0 || id == "" {
		return
	}
	c.local.Add(key, entry{id: id, expires: c.now().Add(ttl)})
	if c.shared == nil {
		return
	}
	if err := c.shared.SetString(ctx, key, id, ttl); err != nil {
		c.logger.Warn("shared domain id cache write failed", zap.Error(err))
	}
}
