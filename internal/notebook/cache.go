package notebook

import (
	"context"

	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"github.com/churn-insight/dashboard/internal/metrics"
	"github.com/churn-insight/dashboard/pkg/circuitbreaker"
	"github.com/churn-insight/dashboard/pkg/logger"
)

// MarkupStore is a shared second-level cache for rendered notebooks.
type MarkupStore interface {
	GetMarkup(ctx context.Context, key string) (string, bool, error)
	SetMarkup(ctx context.Context, key, markup string) error
}

// Cache keeps rendered markup in process for the lifetime of the server, keyed
// by absolute path. The key space is the fixed catalog, so nothing expires.
type Cache struct {
	local   *gocache.Cache
	remote  MarkupStore
	breaker *circuitbreaker.Breaker
	log     *zap.Logger
}

// NewCache builds the cache. remote may be nil; when it is set, calls to it go
// through breaker, or a default breaker when breaker is nil.
func NewCache(remote MarkupStore, breaker *circuitbreaker.Breaker) *Cache {
	log := logger.Named("notebook-cache")
	if remote != nil && breaker == nil {
		breaker = circuitbreaker.New("notebook-l2", circuitbreaker.Config{Logger: log})
	}
	return &Cache{
		local:   gocache.New(gocache.NoExpiration, 0),
		remote:  remote,
		breaker: breaker,
		log:     log,
	}
}

// Peek reads the in-process layer only and records no metrics.
func (c *Cache) Peek(path string) (string, bool) {
	v, ok := c.local.Get(path)
	if !ok {
		return "", false
	}
	return v.(string), true
}

// Get looks up path in process, then remoteKey in the shared store. A remote
// failure counts as a miss.
func (c *Cache) Get(ctx context.Context, path, remoteKey string) (string, bool) {
	if markup, ok := c.Peek(path); ok {
		metrics.CacheHits.WithLabelValues("l1").Inc()
		return markup, true
	}
	metrics.CacheMisses.WithLabelValues("l1").Inc()

	if c.remote == nil {
		return "", false
	}

	var (
		markup string
		found  bool
	)
	err := c.breaker.Execute(ctx, func() error {
		var err error
		markup, found, err = c.remote.GetMarkup(ctx, remoteKey)
		return err
	})
	if err != nil {
		c.log.Warn("Shared notebook cache unavailable", zap.String("path", path), zap.Error(err))
		return "", false
	}
	if !found {
		metrics.CacheMisses.WithLabelValues("l2").Inc()
		return "", false
	}

	metrics.CacheHits.WithLabelValues("l2").Inc()
	c.local.Set(path, markup, gocache.NoExpiration)
	return markup, true
}

func (c *Cache) Set(ctx context.Context, path, remoteKey, markup string) {
	c.local.Set(path, markup, gocache.NoExpiration)

	if c.remote == nil {
		return
	}
	err := c.breaker.Execute(ctx, func() error {
		return c.remote.SetMarkup(ctx, remoteKey, markup)
	})
	if err != nil {
		c.log.Warn("Failed to store notebook in shared cache", zap.String("path", path), zap.Error(err))
	}
}

func (c *Cache) Len() int {
	return c.local.ItemCount()
}
