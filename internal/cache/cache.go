package cache

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/charlesng35/shopadmin/pkg/logger"
	"github.com/charlesng35/shopadmin/pkg/metrics"
)

// Cache is the side channel used by the entity services. Every method is best-effort:
// backend failures are logged and counted, never returned, and a failed read is a miss.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration)
	Delete(ctx context.Context, keys ...string)
	DeleteByPattern(ctx context.Context, pattern string)
}

type bestEffort struct {
	store Store
	log   *zap.Logger
}

// NewBestEffort wraps a Store so that its failures never reach the caller.
// A nil store yields Nop.
func NewBestEffort(store Store, log *zap.Logger) Cache {
	if store == nil {
		return Nop{}
	}
	if log == nil {
		log = logger.WithModule("cache")
	}
	return &bestEffort{store: store, log: log}
}

func (c *bestEffort) Get(ctx context.Context, key string) ([]byte, bool) {
	value, ok, err := c.store.Get(ctx, key)
	switch {
	case err != nil:
		metrics.CacheLookups.WithLabelValues(family(key), "error").Inc()
		c.log.Warn("cache read failed", zap.String("key", key), zap.Error(err))
		return nil, false
	case !ok:
		metrics.CacheLookups.WithLabelValues(family(key), "miss").Inc()
		return nil, false
	default:
		metrics.CacheLookups.WithLabelValues(family(key), "hit").Inc()
		return value, true
	}
}

func (c *bestEffort) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	if err := c.store.Set(ctx, key, value, ttl); err != nil {
		metrics.CacheOperationFailures.WithLabelValues("set").Inc()
		c.log.Warn("cache write failed", zap.String("key", key), zap.Error(err))
	}
}

func (c *bestEffort) Delete(ctx context.Context, keys ...string) {
	if len(keys) == 0 {
		return
	}
	if err := c.store.Delete(ctx, keys...); err != nil {
		metrics.CacheOperationFailures.WithLabelValues("delete").Inc()
		c.log.Warn("cache delete failed", zap.Strings("keys", keys), zap.Error(err))
	}
}

func (c *bestEffort) DeleteByPattern(ctx context.Context, pattern string) {
	if err := c.store.DeletePattern(ctx, pattern); err != nil {
		metrics.CacheOperationFailures.WithLabelValues("delete_pattern").Inc()
		c.log.Warn("cache pattern delete failed", zap.String("pattern", pattern), zap.Error(err))
	}
}

// Nop disables caching: every read misses and every write is dropped.
type Nop struct{}

func (Nop) Get(context.Context, string) ([]byte, bool)         { return nil, false }
func (Nop) Set(context.Context, string, []byte, time.Duration) {}
func (Nop) Delete(context.Context, ...string)                  {}
func (Nop) DeleteByPattern(context.Context, string)            {}

func family(key string) string {
	if idx := strings.IndexByte(key, ':'); idx > 0 {
		return key[:idx]
	}
	return "other"
}
