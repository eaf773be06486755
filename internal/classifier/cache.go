package classifier

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"mailclassifier/internal/model"
)

// VerdictCache stores verdicts produced by the gateway, keyed by prompt. Implementations must
// treat storage failures as cache misses.
type VerdictCache interface {
	Get(ctx context.Context, key string) (model.Verdict, bool)
	Put(ctx context.Context, key string, v model.Verdict)
}

// RedisVerdictCache keeps verdicts in Redis under "verdict:<prompt hash>".
type RedisVerdictCache struct {
	rdb    *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

func NewRedisVerdictCache(rdb *redis.Client, ttl time.Duration, logger *zap.Logger) *RedisVerdictCache {
	return &RedisVerdictCache{rdb: rdb, ttl: ttl, logger: logger}
}

func (c *RedisVerdictCache) Get(ctx context.Context, key string) (model.Verdict, bool) {
	data, err := c.rdb.Get(ctx, cacheKey(key)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("Verdict cache read failed", zap.Error(err))
		}
		return model.Verdict{}, false
	}

	var v model.Verdict
	if err := json.Unmarshal(data, &v); err != nil {
		// 旧格式或被篡改的数据：当作未命中
		c.logger.Warn("Discarding invalid cached verdict", zap.Error(err))
		return model.Verdict{}, false
	}
	return v, true
}

func (c *RedisVerdictCache) Put(ctx context.Context, key string, v model.Verdict) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, cacheKey(key), data, c.ttl).Err(); err != nil {
		c.logger.Warn("Verdict cache write failed", zap.Error(err))
	}
}

func cacheKey(key string) string {
	return "verdict:" + key
}
