package distrib

import (
	"context"

	"github.com/Adithya-Monish-Kumar-K/searchcore/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/searchcore/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/searchcore/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/searchcore/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/searchcore/pkg/resilience"
)

// Cluster is a fully wired query frontend: remote shard connections fanned
// out through Shards, optionally fronted by a Redis result cache.
type Cluster struct {
	Backend Backend

	remotes  []*Remote
	redis    *redis.Client
	stopFns  []func(context.Context) error
	shutdown bool
}

// NewCluster dials the shard and replica addresses from cfg and assembles the
// backend chain. Each entry in cfg.Distribution.Shards is a partition; if
// cfg.Distribution.Replicas is non-empty, every partition address is paired
// with the replica address at the same position and wrapped in a failover
// group. A Redis-backed result cache is layered on when cfg.Redis.CacheTTL is
// positive and the cache is reachable.
func NewCluster(cfg *config.Config, m *metrics.Metrics) (*Cluster, error) {
	log := logger.WithComponent("cluster")
	if m == nil {
		m = metrics.New()
	}

	c := &Cluster{}
	dial := cfg.Distribution.DialTimeout

	backends := make([]Backend, 0, len(cfg.Distribution.Shards))
	for i, addr := range cfg.Distribution.Shards {
		primary := NewRemote(addr, dial)
		c.remotes = append(c.remotes, primary)
		if i < len(cfg.Distribution.Replicas) {
			replica := NewRemote(cfg.Distribution.Replicas[i], dial)
			c.remotes = append(c.remotes, replica)
			backends = append(backends, NewReplicas(
				[]Backend{primary, replica}, resilience.BreakerConfig{},
			))
		} else {
			backends = append(backends, primary)
		}
	}

	c.Backend = NewShards(backends, cfg.Distribution.Shards, cfg.Distribution, m)

	if cfg.Redis.CacheTTL > 0 {
		client, err := redis.NewClient(cfg.Redis)
		if err != nil {
			log.Warn("result cache unavailable, querying uncached", "error", err)
		} else {
			c.redis = client
			c.Backend = NewCached(c.Backend, client, cfg.Redis.CacheTTL)
		}
	}

	if cfg.Metrics.Enabled {
		c.stopFns = append(c.stopFns, m.StartServer(cfg.Metrics.Port))
	}

	log.Info("cluster assembled",
		"shards", len(cfg.Distribution.Shards),
		"replicas", len(cfg.Distribution.Replicas),
		"cached", c.redis != nil)
	return c, nil
}

// Close tears down remote connections, the cache client, and the metrics
// listener.
func (c *Cluster) Close(ctx context.Context) error {
	if c.shutdown {
		return nil
	}
	c.shutdown = true
	var first error
	for _, fn := range c.stopFns {
		if err := fn(ctx); err != nil && first == nil {
			first = err
		}
	}
	for _, r := range c.remotes {
		if err := r.Close(); err != nil && first == nil {
			first = err
		}
	}
	if c.redis != nil {
		if err := c.redis.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
