package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vitwit/paylink/logger"
	"github.com/vitwit/paylink/types"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestMemoryCache(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache()
	mint := solana.MustPublicKeyFromBase58("Gh9ZwEmdLJ8DscKNTkTqPbNwLNNBjuSzaG9Vp2KGtKJr")

	_, ok := c.Get(ctx, mint)
	assert.False(t, ok)

	c.Set(ctx, &types.CurrencyMetadata{Mint: mint, Decimals: 6})

	meta, ok := c.Get(ctx, mint)
	require.True(t, ok)
	assert.Equal(t, uint8(6), meta.Decimals)

	c.Set(ctx, nil)
	_, ok = c.Get(ctx, solana.PublicKey{})
	assert.False(t, ok)
}

// Set PAYLINK_TEST_REDIS=host:port to run against a live server.
func TestRedisCache(t *testing.T) {
	addr := os.Getenv("PAYLINK_TEST_REDIS")
	if addr == "" {
		t.Skip("PAYLINK_TEST_REDIS not set")
	}
	ctx := context.Background()

	c, err := NewRedisCache(ctx, &types.RedisConfig{Addr: addr, TTL: time.Minute}, nil)
	require.NoError(t, err)
	defer c.Close()

	mint := solana.NewWallet().PublicKey()
	_, ok := c.Get(ctx, mint)
	assert.False(t, ok)

	c.Set(ctx, &types.CurrencyMetadata{Mint: mint, Decimals: 9})
	meta, ok := c.Get(ctx, mint)
	require.True(t, ok)
	assert.Equal(t, uint8(9), meta.Decimals)
	assert.True(t, meta.Mint.Equals(mint))
}

func TestRedisCacheUnreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := NewRedisCache(ctx, &types.RedisConfig{Addr: "127.0.0.1:1"}, nil)
	assert.Equal(t, types.ErrConfigError, types.CodeOf(err))
}

func TestRedisCacheLogsFailedWrites(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	c := &RedisCache{
		client: redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", MaxRetries: -1}),
		ttl:    time.Minute,
		log:    logger.NewZapLoggerFrom(zap.New(core)),
	}
	defer c.Close()

	mint := solana.NewWallet().PublicKey()
	c.Set(context.Background(), &types.CurrencyMetadata{Mint: mint, Decimals: 6})

	entries := logs.FilterMessage("failed to cache mint metadata").All()
	require.Len(t, entries, 1)
	assert.Equal(t, mint.String(), entries[0].ContextMap()["mint"])

	_, ok := c.Get(context.Background(), mint)
	assert.False(t, ok)
}
