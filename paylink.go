// Package paylink creates Solana payment links and verifies their settlement
// by watching the ledger for a transaction tagged with the link's reference.
// No off-ledger state is kept: every fact is re-read from the chain.
package paylink

import (
	"context"
	"io"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/vitwit/paylink/amount"
	"github.com/vitwit/paylink/cache"
	"github.com/vitwit/paylink/clients"
	"github.com/vitwit/paylink/lifecycle"
	"github.com/vitwit/paylink/logger"
	"github.com/vitwit/paylink/metrics"
	"github.com/vitwit/paylink/settlement"
	"github.com/vitwit/paylink/transaction"
	"github.com/vitwit/paylink/types"
	"github.com/vitwit/paylink/verification"
)

// PayLink is the main entry point. It is safe for concurrent use.
type PayLink struct {
	config    *types.Config
	programID solana.PublicKey

	ledger     clients.Ledger
	ownsLedger bool
	cache      cache.MetadataCache
	codec      *amount.Codec
	manager    *lifecycle.Manager
	builder    *transaction.Builder
	poller     *settlement.Poller

	logger       logger.Logger
	metrics      metrics.Recorder
	timeout      time.Duration
	pollInterval time.Duration
}

// New validates config and wires the components. A nil config means
// DefaultConfig.
func New(config *types.Config, opts ...Option) (*PayLink, error) {
	if config == nil {
		config = types.DefaultConfig()
	}
	cfg := *config
	cfg.ApplyDefaults()

	p := &PayLink{config: &cfg}
	for _, opt := range opts {
		opt(p)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	programID, err := cfg.Program()
	if err != nil {
		return nil, err
	}
	usdc, err := cfg.USDC()
	if err != nil {
		return nil, err
	}
	p.programID = programID

	if p.logger == nil {
		p.logger = logger.NoopLogger{}
	}
	if p.metrics == nil {
		if cfg.EnableMetrics {
			p.metrics = metrics.NewPrometheusRecorder()
		} else {
			p.metrics = metrics.NoopRecorder{}
		}
	}
	if p.timeout <= 0 {
		p.timeout = cfg.DefaultTimeout
	}
	if p.pollInterval > 0 {
		cfg.Poll.Interval = p.pollInterval
	}

	if p.ledger == nil {
		ledger, err := newLedger(&cfg, programID, p.logger, p.metrics)
		if err != nil {
			return nil, err
		}
		p.ledger = ledger
		p.ownsLedger = true
	}

	if p.cache == nil {
		p.cache, err = newCache(&cfg, p.logger)
		if err != nil {
			p.Close()
			return nil, err
		}
	}

	p.codec = amount.NewCodec(types.NewCurrencies(usdc), p.ledger, p.cache)
	p.manager = lifecycle.NewManager(p.ledger, p.codec, programID, p.timeout, p.logger, p.metrics)
	p.builder = transaction.NewBuilder(p.ledger, p.codec, p.logger, p.metrics)
	p.poller = settlement.NewPoller(p.ledger, cfg.Poll, p.logger, p.metrics)

	p.logger.Info("paylink ready", map[string]any{
		"network": cfg.Network.String(),
		"program": programID.String(),
	})
	return p, nil
}

func newLedger(cfg *types.Config, programID solana.PublicKey, log logger.Logger, rec metrics.Recorder) (clients.Ledger, error) {
	if cfg.Network == types.NetworkMemory {
		return clients.NewMemoryLedger(programID), nil
	}
	return clients.NewSolanaClient(cfg.Network, cfg.RPCEndpoint(), log, rec)
}

func newCache(cfg *types.Config, log logger.Logger) (cache.MetadataCache, error) {
	if cfg.Redis == nil {
		return cache.NewMemoryCache(), nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), cfg.DefaultTimeout)
	defer cancel()

	c, err := cache.NewRedisCache(ctx, cfg.Redis, log)
	if err != nil {
		return nil, err
	}
	log.Info("using redis metadata cache", map[string]any{"addr": cfg.Redis.Addr})
	return c, nil
}

// Config returns a copy of the effective configuration.
func (p *PayLink) Config() types.Config {
	return *p.config
}

// Ledger exposes the ledger the facade reads from.
func (p *PayLink) Ledger() clients.Ledger {
	return p.ledger
}

// Metrics returns the recorder in use.
func (p *PayLink) Metrics() metrics.Recorder {
	return p.metrics
}

// CreateUserProfile opens owner's profile. Required once before links.
func (p *PayLink) CreateUserProfile(ctx context.Context, owner lifecycle.Signer) (*types.UserProfile, error) {
	return p.manager.CreateUserProfile(ctx, owner)
}

// GetUserProfile reads owner's profile.
func (p *PayLink) GetUserProfile(ctx context.Context, owner solana.PublicKey) (*types.UserProfile, error) {
	return p.manager.GetUserProfile(ctx, owner)
}

// CreatePaymentLink stores a request for amountDecimal of currency.
func (p *PayLink) CreatePaymentLink(
	ctx context.Context,
	owner lifecycle.Signer,
	amountDecimal string,
	currency types.CurrencyTag,
) (*types.PaymentLink, error) {
	return p.manager.CreatePaymentLink(ctx, owner, amountDecimal, currency)
}

// UpdatePaymentLink applies patch to the link in owner's slot index.
func (p *PayLink) UpdatePaymentLink(
	ctx context.Context,
	owner lifecycle.Signer,
	index uint8,
	patch types.PaymentLinkPatch,
) (*types.PaymentLink, error) {
	return p.manager.UpdatePaymentLink(ctx, owner, index, patch)
}

// RemovePaymentLink closes the link in owner's slot index.
func (p *PayLink) RemovePaymentLink(ctx context.Context, owner lifecycle.Signer, index uint8) error {
	return p.manager.RemovePaymentLink(ctx, owner, index)
}

// GetPaymentLink reads a link by address.
func (p *PayLink) GetPaymentLink(ctx context.Context, address solana.PublicKey) (*types.PaymentLink, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	return p.manager.GetPaymentLink(ctx, address)
}

// ListPaymentLinks returns owner's live links ordered by slot.
func (p *PayLink) ListPaymentLinks(ctx context.Context, owner solana.PublicKey) ([]*types.PaymentLink, error) {
	return p.manager.ListPaymentLinks(ctx, owner)
}

// BuildSettlementTransaction returns the base64 unsigned transaction that
// pays link from payer. The payer's wallet signs and submits it.
func (p *PayLink) BuildSettlementTransaction(ctx context.Context, payer solana.PublicKey, link *types.PaymentLink) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	tx, err := p.builder.Build(ctx, transaction.Request{
		Payer:     payer,
		Recipient: link.Owner,
		Amount:    link.Amount,
		Currency:  link.Currency,
		Reference: link.Reference,
		Memo:      p.config.Memo,
	})
	if err != nil {
		return "", err
	}
	return transaction.Encode(tx)
}

// Expectation resolves what a settlement of link must deliver.
func (p *PayLink) Expectation(link *types.PaymentLink) (verification.Expectation, error) {
	currency, err := p.codec.Currency(link.Currency)
	if err != nil {
		return verification.Expectation{}, err
	}
	return verification.NewExpectation(link, currency), nil
}

// CheckSettlement runs a single search and validation for link.
func (p *PayLink) CheckSettlement(ctx context.Context, link *types.PaymentLink) (*settlement.Observation, error) {
	exp, err := p.Expectation(link)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	return p.poller.Check(ctx, exp)
}

// CheckSettlements checks many links concurrently. Entries fail
// independently; results keep the order of links.
func (p *PayLink) CheckSettlements(ctx context.Context, links []*types.PaymentLink) ([]settlement.BatchResult, error) {
	exps := make([]verification.Expectation, len(links))
	for i, link := range links {
		exp, err := p.Expectation(link)
		if err != nil {
			return nil, err
		}
		exps[i] = exp
	}
	return p.poller.CheckBatch(ctx, exps)
}

// VerifySettlement validates a specific transaction against link without
// searching for the reference.
func (p *PayLink) VerifySettlement(ctx context.Context, link *types.PaymentLink, sig solana.Signature) (*verification.Result, error) {
	exp, err := p.Expectation(link)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	details, err := p.ledger.GetTransactionDetails(ctx, sig)
	if err != nil {
		return nil, err
	}
	return verification.VerifyTransfer(details, exp), nil
}

// WatchSettlement polls until link is paid or a wrong payment lands.
// onStatusChange receives waiting first and then each change of status.
func (p *PayLink) WatchSettlement(
	ctx context.Context,
	link *types.PaymentLink,
	onStatusChange func(types.SettlementStatus),
) (*settlement.Subscription, error) {
	exp, err := p.Expectation(link)
	if err != nil {
		return nil, err
	}
	return p.poller.Watch(ctx, exp, onStatusChange), nil
}

// FormatAmount renders the link's amount as a decimal string.
func (p *PayLink) FormatAmount(ctx context.Context, link *types.PaymentLink) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	return p.codec.ToDecimal(ctx, link.Amount, link.Currency)
}

// Close releases the ledger connection and the metadata cache.
func (p *PayLink) Close() {
	if p.ownsLedger && p.ledger != nil {
		p.ledger.Close()
	}
	if closer, ok := p.cache.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			p.logger.Warn("failed to close metadata cache", map[string]any{"error": err.Error()})
		}
	}
}

// Version information
const Version = "1.0.0"

// GetVersion returns version information
func GetVersion() map[string]interface{} {
	return map[string]interface{}{
		"library_version": Version,
		"supported_networks": []string{
			types.NetworkSolanaMainnet.String(),
			types.NetworkSolanaDevnet.String(),
			types.NetworkSolanaLocalnet.String(),
			types.NetworkMemory.String(),
		},
		"supported_currencies": []string{
			types.CurrencySOL.String(),
			types.CurrencyUSDC.String(),
		},
	}
}
