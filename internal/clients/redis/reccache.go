package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/cinematch/cinematch-backend/internal/logger"
	"github.com/cinematch/cinematch-backend/internal/types"
)

// RecommendationCache holds each user's active recommendation list so
// repeat reads skip postgres. Generation and item-state writes must
// invalidate. A nil *RecCache is safe to call: every method degrades to a
// miss/no-op, so the server runs without redis.
type RecommendationCache interface {
	Get(ctx context.Context, key string) ([]*types.Recommendation, bool)
	Set(ctx context.Context, key string, recs []*types.Recommendation) error
	Invalidate(ctx context.Context, key string) error
	Close() error
}

type recCache struct {
	log *logger.Logger
	rdb *goredis.Client
	ttl time.Duration
}

func NewRecommendationCache(log *logger.Logger) (RecommendationCache, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}

	addr := strings.TrimSpace(os.Getenv("REDIS_ADDR"))
	if addr == "" {
		return nil, fmt.Errorf("missing REDIS_ADDR")
	}

	ttl := 15 * time.Minute
	if v := strings.TrimSpace(os.Getenv("REDIS_REC_TTL")); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil && parsed > 0 {
			ttl = parsed
		}
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &recCache{
		log: log.With("client", "RecommendationCache"),
		rdb: rdb,
		ttl: ttl,
	}, nil
}

func (c *recCache) Get(ctx context.Context, key string) ([]*types.Recommendation, bool) {
	if c == nil || c.rdb == nil {
		return nil, false
	}
	raw, err := c.rdb.Get(ctx, key).Bytes()
	if err != nil {
		return nil, false
	}
	var recs []*types.Recommendation
	if err := json.Unmarshal(raw, &recs); err != nil {
		c.log.Warn("bad cached recommendation payload, dropping", "key", key, "error", err)
		_ = c.rdb.Del(ctx, key).Err()
		return nil, false
	}
	return recs, true
}

func (c *recCache) Set(ctx context.Context, key string, recs []*types.Recommendation) error {
	if c == nil || c.rdb == nil {
		return nil
	}
	raw, err := json.Marshal(recs)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, key, raw, c.ttl).Err()
}

func (c *recCache) Invalidate(ctx context.Context, key string) error {
	if c == nil || c.rdb == nil {
		return nil
	}
	return c.rdb.Del(ctx, key).Err()
}

func (c *recCache) Close() error {
	if c == nil || c.rdb == nil {
		return nil
	}
	return c.rdb.Close()
}
