// Package cache stores currency metadata that the ledger would otherwise be
// asked for on every amount conversion. Settlement state is never cached.
package cache

import (
	"context"
	"sync"

	"github.com/gagliardetto/solana-go"
	"github.com/vitwit/paylink/types"
)

// MetadataCache remembers mint metadata. Misses and backend failures are
// both reported as ok == false; the caller falls back to the ledger.
type MetadataCache interface {
	Get(ctx context.Context, mint solana.PublicKey) (*types.CurrencyMetadata, bool)
	Set(ctx context.Context, meta *types.CurrencyMetadata)
}

// MemoryCache is a process local MetadataCache.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[solana.PublicKey]types.CurrencyMetadata
}

var _ MetadataCache = (*MemoryCache)(nil)

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[solana.PublicKey]types.CurrencyMetadata)}
}

func (c *MemoryCache) Get(_ context.Context, mint solana.PublicKey) (*types.CurrencyMetadata, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	meta, ok := c.entries[mint]
	if !ok {
		return nil, false
	}
	return &meta, true
}

func (c *MemoryCache) Set(_ context.Context, meta *types.CurrencyMetadata) {
	if meta == nil {
		return
	}

	c.mu.Lock()
	c.entries[meta.Mint] = *meta
	c.mu.Unlock()
}
