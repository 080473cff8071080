package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/redis/go-redis/v9"
	"github.com/vitwit/paylink/logger"
	"github.com/vitwit/paylink/types"
)

const keyPrefix = "paylink:mint:"

// DefaultTTL applies when RedisConfig.TTL is zero.
const DefaultTTL = 24 * time.Hour

// RedisCache shares mint metadata between processes.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
	log    logger.Logger
}

var _ MetadataCache = (*RedisCache)(nil)

// NewRedisCache connects and pings the server. Write failures after that
// are logged and otherwise ignored; a miss only costs a ledger read.
func NewRedisCache(ctx context.Context, cfg *types.RedisConfig, log logger.Logger) (*RedisCache, error) {
	if log == nil {
		log = logger.NoopLogger{}
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, types.WrapError(types.ErrConfigError, err, "redis %s unreachable", cfg.Addr)
	}

	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	return &RedisCache{client: client, ttl: ttl, log: log}, nil
}

func (c *RedisCache) Get(ctx context.Context, mint solana.PublicKey) (*types.CurrencyMetadata, bool) {
	data, err := c.client.Get(ctx, keyPrefix+mint.String()).Bytes()
	if err != nil {
		return nil, false
	}

	var meta types.CurrencyMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, false
	}
	return &meta, true
}

func (c *RedisCache) Set(ctx context.Context, meta *types.CurrencyMetadata) {
	if meta == nil {
		return
	}

	data, err := json.Marshal(meta)
	if err != nil {
		c.log.Warn("failed to encode mint metadata", map[string]any{"mint": meta.Mint.String(), "error": err.Error()})
		return
	}
	if err := c.client.Set(ctx, keyPrefix+meta.Mint.String(), data, c.ttl).Err(); err != nil {
		c.log.Warn("failed to cache mint metadata", map[string]any{"mint": meta.Mint.String(), "error": err.Error()})
	}
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}
