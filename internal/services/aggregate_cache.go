package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/bloglite/bloglite/pkg/cache"
	"github.com/bloglite/bloglite/pkg/logger"
	"github.com/bloglite/bloglite/pkg/metrics"
)

type CacheOp string

const (
	OpFeed     CacheOp = "feed"
	OpPost     CacheOp = "post"
	OpComments CacheOp = "comments"
)

var allOps = []CacheOp{OpFeed, OpPost, OpComments}

// CacheKey identifies one memoized result: the operation and its argument
// (viewer id for feeds, post id otherwise).
type CacheKey struct {
	Op  CacheOp
	Arg string
}

func (k CacheKey) String() string {
	return string(k.Op) + ":" + k.Arg
}

// AggregateCache is a best-effort read-through cache in front of the
// expensive read paths. Backend failures are logged and the read falls
// through to the computation.
type AggregateCache struct {
	backend cache.Backend
	prefix  string
	ttl     time.Duration
	logger  *logger.Logger
	group   singleflight.Group

	mu          sync.Mutex
	generations map[CacheOp]uint64
}

func NewAggregateCache(backend cache.Backend, prefix string, ttl time.Duration, logger *logger.Logger) *AggregateCache {
	return &AggregateCache{
		backend:     backend,
		prefix:      prefix,
		ttl:         ttl,
		logger:      logger,
		generations: make(map[CacheOp]uint64),
	}
}

func (c *AggregateCache) storageKey(key CacheKey) string {
	return c.prefix + key.String()
}

func (c *AggregateCache) generation(op CacheOp) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generations[op]
}

func (c *AggregateCache) bump(op CacheOp) {
	c.mu.Lock()
	c.generations[op]++
	c.mu.Unlock()
}

// Invalidate drops every entry of the given operations.
func (c *AggregateCache) Invalidate(ctx context.Context, ops ...CacheOp) {
	for _, op := range ops {
		c.bump(op)
		metrics.CacheInvalidationsTotal.WithLabelValues(string(op)).Inc()
		if err := c.backend.DeletePrefix(ctx, c.prefix+string(op)+":"); err != nil {
			c.logger.WithError(err).WithField("op", op).Warn("Failed to invalidate cache namespace")
		}
	}
}

// InvalidateAll drops every namespace.
func (c *AggregateCache) InvalidateAll(ctx context.Context) {
	c.Invalidate(ctx, allOps...)
}

// InvalidateKeys drops individual entries. In-flight computations for the
// same operation are not allowed to store their result afterwards.
func (c *AggregateCache) InvalidateKeys(ctx context.Context, keys ...CacheKey) {
	if len(keys) == 0 {
		return
	}
	storage := make([]string, 0, len(keys))
	seen := make(map[CacheOp]bool)
	for _, k := range keys {
		if !seen[k.Op] {
			seen[k.Op] = true
			c.bump(k.Op)
			metrics.CacheInvalidationsTotal.WithLabelValues(string(k.Op)).Inc()
		}
		storage = append(storage, c.storageKey(k))
	}
	if err := c.backend.Delete(ctx, storage...); err != nil {
		c.logger.WithError(err).WithField("keys", storage).Warn("Failed to invalidate cache keys")
	}
}

// Cached returns the memoized value for key, computing and storing it on a
// miss. Concurrent misses for the same key share one computation.
func Cached[T any](ctx context.Context, c *AggregateCache, key CacheKey, compute func(context.Context) (T, error)) (T, error) {
	var zero T
	skey := c.storageKey(key)

	data, err := c.backend.Get(ctx, skey)
	switch {
	case err == nil:
		var value T
		uerr := json.Unmarshal(data, &value)
		if uerr == nil {
			metrics.CacheRequestsTotal.WithLabelValues(string(key.Op), "hit").Inc()
			return value, nil
		}
		metrics.CacheRequestsTotal.WithLabelValues(string(key.Op), "miss").Inc()
		c.logger.WithError(uerr).WithField("key", skey).Warn("Discarding undecodable cache entry")
	case errors.Is(err, cache.ErrMiss):
		metrics.CacheRequestsTotal.WithLabelValues(string(key.Op), "miss").Inc()
	default:
		metrics.CacheRequestsTotal.WithLabelValues(string(key.Op), "error").Inc()
		c.logger.WithError(err).WithField("key", skey).Warn("Cache read failed")
	}

	gen := c.generation(key.Op)
	flightKey := fmt.Sprintf("%s#%d", skey, gen)

	// The shared computation outlives any single caller; each caller still
	// gives up on its own context.
	flightCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(flightKey, func() (interface{}, error) {
		value, err := compute(flightCtx)
		if err != nil {
			return nil, err
		}
		c.store(flightCtx, key.Op, gen, skey, value)
		return value, nil
	})

	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Err
		}
		return res.Val.(T), nil
	}
}

// store writes value unless op was invalidated after gen was read. An
// invalidation that lands between the check and the write is caught by the
// second check, which removes the entry again.
func (c *AggregateCache) store(ctx context.Context, op CacheOp, gen uint64, skey string, value interface{}) {
	if c.generation(op) != gen {
		return
	}
	data, err := json.Marshal(value)
	if err != nil {
		c.logger.WithError(err).WithField("key", skey).Warn("Failed to encode cache entry")
		return
	}
	if err := c.backend.Set(ctx, skey, data, c.ttl); err != nil {
		c.logger.WithError(err).WithFields(logrus.Fields{
			"key": skey,
			"ttl": c.ttl,
		}).Warn("Cache write failed")
		return
	}
	if c.generation(op) != gen {
		if err := c.backend.Delete(ctx, skey); err != nil {
			c.logger.WithError(err).WithField("key", skey).Warn("Failed to drop stale cache entry")
		}
	}
}
