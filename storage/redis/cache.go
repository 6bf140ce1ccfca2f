// Package rediscache backs the dashboard stats cache with Redis so counters
// survive restarts and are shared across API instances.
package rediscache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/trezcool/mainino/core"
	"github.com/trezcool/mainino/core/dashboard"
)

type StatsCache struct {
	client *redis.Client
	ttl    time.Duration
}

var _ dashboard.Cache = (*StatsCache)(nil) // interface compliance check

func NewStatsCache(conf *core.Config) *StatsCache {
	return &StatsCache{
		client: redis.NewClient(&redis.Options{
			Addr:     conf.Redis.Addr,
			Password: conf.Redis.Password,
			DB:       conf.Redis.DB,
		}),
		ttl: conf.Redis.StatsTTL,
	}
}

func (c *StatsCache) GetStats(ctx context.Context, callerID string) (*dashboard.Stats, error) {
	val, err := c.client.Get(ctx, statsKey(callerID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "reading cached stats")
	}

	var stats dashboard.Stats
	if err = json.Unmarshal(val, &stats); err != nil {
		return nil, errors.Wrap(err, "decoding cached stats")
	}
	return &stats, nil
}

func (c *StatsCache) SetStats(ctx context.Context, callerID string, stats dashboard.Stats) error {
	val, err := json.Marshal(stats)
	if err != nil {
		return errors.Wrap(err, "encoding stats")
	}
	return errors.Wrap(c.client.Set(ctx, statsKey(callerID), val, c.ttl).Err(), "caching stats")
}

func (c *StatsCache) DeleteStats(ctx context.Context, callerIDs ...string) error {
	keys := make([]string, 0, len(callerIDs))
	for _, id := range callerIDs {
		keys = append(keys, statsKey(id))
	}
	return errors.Wrap(c.client.Del(ctx, keys...).Err(), "invalidating stats")
}

func (c *StatsCache) Close() error {
	return c.client.Close()
}

func statsKey(callerID string) string {
	return "stats:" + callerID
}
