package classifier

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"mailclassifier/internal/model"
)

func TestRedisVerdictCache(t *testing.T) {
	addr := os.Getenv("REDIS_TEST_ADDR")
	if addr == "" {
		t.Skip("skipping Redis integration test; set REDIS_TEST_ADDR to run")
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = rdb.Close() })

	ctx := context.Background()
	cache := NewRedisVerdictCache(rdb, time.Minute, zap.NewNop())
	key := BuildPrompt(model.EmailInput{Sender: "cache@test", Subject: time.Now().String()}).Key()
	t.Cleanup(func() { rdb.Del(ctx, cacheKey(key)) })

	_, ok := cache.Get(ctx, key)
	assert.False(t, ok)

	want := model.Verdict{Category: model.CategoryUrgent, Confidence: 0.93, Reason: "deadline"}
	cache.Put(ctx, key, want)

	got, ok := cache.Get(ctx, key)
	require.True(t, ok)
	assert.Equal(t, want, got)

	// 非法分类写入后读出视为未命中
	require.NoError(t, rdb.Set(ctx, cacheKey(key), `{"category":"finance","confidence":0.5}`, time.Minute).Err())
	_, ok = cache.Get(ctx, key)
	assert.False(t, ok)
}

func TestRedisVerdictCache_UnavailableIsMiss(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 100 * time.Millisecond, MaxRetries: -1})
	t.Cleanup(func() { _ = rdb.Close() })
	cache := NewRedisVerdictCache(rdb, time.Minute, zap.NewNop())

	cache.Put(context.Background(), "k", model.Verdict{Category: model.CategoryWork, Confidence: 0.5})
	_, ok := cache.Get(context.Background(), "k")

	assert.False(t, ok)
}
