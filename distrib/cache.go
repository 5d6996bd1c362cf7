package distrib

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Adithya-Monish-Kumar-K/searchcore/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/searchcore/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/searchcore/query"
	"github.com/Adithya-Monish-Kumar-K/searchcore/search"
)

const cachePrefix = "searchcore:"

// Cached fronts a Backend with a Redis result cache. Identical requests
// coalesce through singleflight while the backend computes; results live
// for the configured TTL or until Invalidate after a commit. Cache failures
// degrade to the backend, never the caller.
type Cached struct {
	backend Backend
	client  *redis.Client
	ttl     time.Duration
	group   singleflight.Group
	logger  *slog.Logger
}

// NewCached wraps the backend with the cache.
func NewCached(backend Backend, client *redis.Client, ttl time.Duration) *Cached {
	return &Cached{
		backend: backend,
		client:  client,
		ttl:     ttl,
		logger:  logger.WithComponent("distrib.cache"),
	}
}

// cacheKey derives a stable key from the operation and its request payload.
func cacheKey(op string, payload any) (string, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(raw)
	return cachePrefix + op + ":" + hex.EncodeToString(sum[:]), nil
}

// through runs the lookup-compute-store cycle for one request. compute's
// result is JSON round-tripped, so cached and fresh responses decode alike.
func (c *Cached) through(ctx context.Context, op string, payload any, out any, compute func() (any, error)) error {
	key, err := cacheKey(op, payload)
	if err != nil {
		return err
	}
	if cached, err := c.client.Get(ctx, key); err == nil {
		return json.Unmarshal([]byte(cached), out)
	} else if !redis.IsNil(err) {
		c.logger.Warn("cache read failed", "op", op, "error", err)
	}

	raw, err, _ := c.group.Do(key, func() (any, error) {
		value, err := compute()
		if err != nil {
			return nil, err
		}
		encoded, err := json.Marshal(value)
		if err != nil {
			return nil, err
		}
		if err := c.client.Set(ctx, key, string(encoded), c.ttl); err != nil {
			c.logger.Warn("cache write failed", "op", op, "error", err)
		}
		return encoded, nil
	})
	if err != nil {
		return err
	}
	return json.Unmarshal(raw.([]byte), out)
}

// Search serves the query from cache when possible.
func (c *Cached) Search(ctx context.Context, q query.Node, limit int) (*Result, error) {
	spec, err := EncodeQuery(q)
	if err != nil {
		return nil, err
	}
	var res Result
	err = c.through(ctx, "search", &SearchRequest{Query: spec, Limit: limit}, &res, func() (any, error) {
		return c.backend.Search(ctx, q, limit)
	})
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// Count serves the count from cache when possible.
func (c *Cached) Count(ctx context.Context, q query.Node) (int, error) {
	spec, err := EncodeQuery(q)
	if err != nil {
		return 0, err
	}
	var n int
	err = c.through(ctx, "count", &CountRequest{Query: spec}, &n, func() (any, error) {
		return c.backend.Count(ctx, q)
	})
	return n, err
}

// Facets serves facet counts from cache when possible.
func (c *Cached) Facets(ctx context.Context, q query.Node, fields ...string) (map[string][]search.FacetCount, error) {
	spec, err := EncodeQuery(q)
	if err != nil {
		return nil, err
	}
	var facets map[string][]search.FacetCount
	err = c.through(ctx, "facets", &FacetsRequest{Query: spec, Fields: fields}, &facets, func() (any, error) {
		return c.backend.Facets(ctx, q, fields...)
	})
	return facets, err
}

// Invalidate drops every cached result. Call it after a commit makes new
// documents visible.
func (c *Cached) Invalidate(ctx context.Context) error {
	n, err := c.client.FlushByPattern(ctx, cachePrefix+"*")
	if err != nil {
		return fmt.Errorf("invalidating result cache: %w", err)
	}
	c.logger.Info("result cache invalidated", "keys", n)
	return nil
}

var _ Backend = (*Cached)(nil)
