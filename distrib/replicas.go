package distrib

import (
	"context"
	"fmt"
	"log/slog"

	scerrors "github.com/Adithya-Monish-Kumar-K/searchcore/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/searchcore/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/searchcore/pkg/resilience"
	"github.com/Adithya-Monish-Kumar-K/searchcore/query"
	"github.com/Adithya-Monish-Kumar-K/searchcore/search"
)

// Replicas fronts interchangeable copies of one partition. Each call goes to
// the first replica whose circuit admits it, failing over in order; a
// replica's circuit opens after repeated failures so later calls skip it
// until the reset timeout.
type Replicas struct {
	backends []Backend
	breakers []*resilience.Breaker
	logger   *slog.Logger
}

// NewReplicas builds a failover group over the backends.
func NewReplicas(backends []Backend, cfg resilience.BreakerConfig) *Replicas {
	breakers := make([]*resilience.Breaker, len(backends))
	for i := range backends {
		breakers[i] = resilience.NewBreaker(fmt.Sprintf("replica-%d", i), cfg)
	}
	return &Replicas{
		backends: backends,
		breakers: breakers,
		logger:   logger.WithComponent("distrib.replicas"),
	}
}

// do tries each replica in order until one succeeds.
func (r *Replicas) do(op string, fn func(b Backend) error) error {
	var lastErr error
	for i, b := range r.backends {
		err := r.breakers[i].Execute(func() error { return fn(b) })
		if err == nil {
			return nil
		}
		lastErr = err
		r.logger.Warn("replica failed, trying next", "op", op, "replica", i, "error", err)
	}
	if lastErr == nil {
		return scerrors.Newf(op, "", scerrors.ErrShardUnavailable, "no replicas configured")
	}
	return scerrors.Newf(op, "", scerrors.ErrShardUnavailable, "all %d replicas failed: %v", len(r.backends), lastErr)
}

// Search queries the first healthy replica.
func (r *Replicas) Search(ctx context.Context, q query.Node, limit int) (*Result, error) {
	var res *Result
	err := r.do("search", func(b Backend) error {
		var err error
		res, err = b.Search(ctx, q, limit)
		return err
	})
	return res, err
}

// Count queries the first healthy replica.
func (r *Replicas) Count(ctx context.Context, q query.Node) (int, error) {
	var n int
	err := r.do("count", func(b Backend) error {
		var err error
		n, err = b.Count(ctx, q)
		return err
	})
	return n, err
}

// Facets queries the first healthy replica.
func (r *Replicas) Facets(ctx context.Context, q query.Node, fields ...string) (map[string][]search.FacetCount, error) {
	var facets map[string][]search.FacetCount
	err := r.do("facets", func(b Backend) error {
		var err error
		facets, err = b.Facets(ctx, q, fields...)
		return err
	})
	return facets, err
}

var _ Backend = (*Replicas)(nil)
