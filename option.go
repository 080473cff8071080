package paylink

import (
	"time"

	"github.com/vitwit/paylink/cache"
	"github.com/vitwit/paylink/clients"
	"github.com/vitwit/paylink/logger"
	"github.com/vitwit/paylink/metrics"
)

type Option func(*PayLink)

func WithLogger(l logger.Logger) Option {
	return func(p *PayLink) {
		p.logger = l
	}
}

func WithMetrics(r metrics.Recorder) Option {
	return func(p *PayLink) {
		p.metrics = r
	}
}

// WithTimeout bounds each one-shot ledger operation.
func WithTimeout(t time.Duration) Option {
	return func(p *PayLink) {
		p.timeout = t
	}
}

// WithPollInterval sets the delay between settlement checks.
func WithPollInterval(d time.Duration) Option {
	return func(p *PayLink) {
		p.pollInterval = d
	}
}

// WithMetadataCache replaces the default in-process mint metadata cache.
func WithMetadataCache(c cache.MetadataCache) Option {
	return func(p *PayLink) {
		p.cache = c
	}
}

// WithLedger supplies the ledger instead of dialing the configured RPC
// endpoint. The memory network requires it unless a fresh ledger is wanted.
func WithLedger(l clients.Ledger) Option {
	return func(p *PayLink) {
		p.ledger = l
	}
}
