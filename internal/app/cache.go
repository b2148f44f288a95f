package app

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shrimpsizemoose/trekker/logger"

	"github.com/shrimpsizemoose/housecup/internal/metrics"
	"github.com/shrimpsizemoose/housecup/internal/scoring"
)

// RedisLeaderboardCache memoizes standings in Redis so every server
// process shares one snapshot. The generation lives next to it under
// "<key>:version".
type RedisLeaderboardCache struct {
	redis   *redis.Client
	key     string
	version string
	ttl     time.Duration
}

func NewRedisLeaderboardCache(client *redis.Client, key string, ttl time.Duration) *RedisLeaderboardCache {
	return &RedisLeaderboardCache{redis: client, key: key, version: key + ":version", ttl: ttl}
}

func (c *RedisLeaderboardCache) Generation(ctx context.Context) uint64 {
	generation, err := c.generation(ctx, c.redis)
	if err != nil {
		logger.Error.Printf("Leaderboard cache version read failed: %v", err)
	}
	return generation
}

func (c *RedisLeaderboardCache) generation(ctx context.Context, cmd redis.Cmdable) (uint64, error) {
	raw, err := cmd.Get(ctx, c.version).Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return strconv.ParseUint(raw, 10, 64)
}

func (c *RedisLeaderboardCache) GetLeaderboard(ctx context.Context) ([]scoring.Standing, bool) {
	raw, err := c.redis.Get(ctx, c.key).Bytes()
	if errors.Is(err, redis.Nil) {
		metrics.LeaderboardCacheTotal.WithLabelValues("miss").Inc()
		return nil, false
	}
	if err != nil {
		logger.Error.Printf("Leaderboard cache read failed: %v", err)
		metrics.LeaderboardCacheTotal.WithLabelValues("error").Inc()
		return nil, false
	}

	var standings []scoring.Standing
	if err := json.Unmarshal(raw, &standings); err != nil {
		logger.Error.Printf("Leaderboard cache holds garbage: %v", err)
		metrics.LeaderboardCacheTotal.WithLabelValues("error").Inc()
		return nil, false
	}
	metrics.LeaderboardCacheTotal.WithLabelValues("hit").Inc()
	return standings, true
}

// SetLeaderboard stores standings only while the version key still holds
// generation. WATCH aborts the write if an invalidation lands in between.
func (c *RedisLeaderboardCache) SetLeaderboard(ctx context.Context, generation uint64, standings []scoring.Standing) {
	raw, err := json.Marshal(standings)
	if err != nil {
		logger.Error.Printf("Failed to encode leaderboard for cache: %v", err)
		return
	}

	err = c.redis.Watch(ctx, func(tx *redis.Tx) error {
		current, err := c.generation(ctx, tx)
		if err != nil {
			return err
		}
		if current != generation {
			metrics.LeaderboardCacheTotal.WithLabelValues("stale").Inc()
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, c.key, raw, c.ttl)
			return nil
		})
		return err
	}, c.version)
	if errors.Is(err, redis.TxFailedErr) {
		metrics.LeaderboardCacheTotal.WithLabelValues("stale").Inc()
		return
	}
	if err != nil {
		logger.Error.Printf("Leaderboard cache write failed: %v", err)
	}
}

func (c *RedisLeaderboardCache) Invalidate(ctx context.Context) {
	_, err := c.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, c.version)
		pipe.Del(ctx, c.key)
		return nil
	})
	if err != nil {
		logger.Error.Printf("Leaderboard cache invalidation failed: %v", err)
	}
}
