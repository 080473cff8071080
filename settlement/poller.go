// Package settlement watches the ledger for the transaction that pays a link.
package settlement

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/google/uuid"
	"github.com/vitwit/paylink/logger"
	"github.com/vitwit/paylink/metrics"
	"github.com/vitwit/paylink/types"
	"github.com/vitwit/paylink/verification"
)

// Source is the part of the ledger the poller reads.
type Source interface {
	FindSignaturesForReference(ctx context.Context, reference solana.PublicKey, commitment rpc.CommitmentType) ([]solana.Signature, error)
	GetTransactionDetails(ctx context.Context, sig solana.Signature) (*types.TransactionDetails, error)
	GetNetwork() types.Network
}

// State is the poller's internal view of one link.
type State string

const (
	StateSearching  State = "searching"
	StateValidating State = "validating"
	StateConfirmed  State = "confirmed"
	StateRejected   State = "rejected"
)

// Status maps a state onto the user-visible vocabulary.
func (s State) Status() types.SettlementStatus {
	switch s {
	case StateConfirmed:
		return types.StatusPaid
	case StateRejected:
		return types.StatusError
	default:
		return types.StatusWaiting
	}
}

// Observation is the outcome of one poll cycle.
type Observation struct {
	State     State                  `json:"state"`
	Status    types.SettlementStatus `json:"status"`
	Signature *solana.Signature      `json:"signature,omitempty"`
	Reason    string                 `json:"reason,omitempty"`
	Detail    string                 `json:"detail,omitempty"`
}

func observe(state State) *Observation {
	return &Observation{State: state, Status: state.Status()}
}

// Poller is safe for concurrent use; every watch runs on its own goroutine.
type Poller struct {
	source  Source
	cfg     types.PollConfig
	log     logger.Logger
	metrics metrics.Recorder
}

// NewPoller fills zero fields of cfg with the defaults.
func NewPoller(source Source, cfg types.PollConfig, log logger.Logger, rec metrics.Recorder) *Poller {
	if cfg.Interval <= 0 {
		cfg.Interval = types.DefaultPollInterval
	}
	if cfg.AttemptTimeout <= 0 {
		cfg.AttemptTimeout = types.DefaultAttemptTimeout
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = types.DefaultMaxBackoff
	}
	if cfg.MaxBackoff < cfg.Interval {
		cfg.MaxBackoff = cfg.Interval
	}
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = types.DefaultFailureThreshold
	}
	if log == nil {
		log = logger.NoopLogger{}
	}
	if rec == nil {
		rec = metrics.NoopRecorder{}
	}
	return &Poller{source: source, cfg: cfg, log: log, metrics: rec}
}

// Check runs one Searching -> Validating -> Confirmed|Rejected cycle.
// Ledger failures are returned as errors and never produce Rejected; a
// referenced transaction the ledger cannot decode does.
func (p *Poller) Check(ctx context.Context, exp verification.Expectation) (*Observation, error) {
	sigs, err := p.source.FindSignaturesForReference(ctx, exp.Reference, rpc.CommitmentConfirmed)
	if err != nil {
		return nil, err
	}
	if len(sigs) == 0 {
		return observe(StateSearching), nil
	}

	// newest first; the earliest payment is the one that counts
	sig := sigs[len(sigs)-1]

	details, err := p.source.GetTransactionDetails(ctx, sig)
	if err != nil {
		if errors.Is(err, types.ErrNotFoundError) {
			// indexed but not yet served at this commitment
			return observe(StateSearching), nil
		}
		if types.KindOf(err) == types.KindSemanticMismatch {
			// served but undecodable; retrying cannot change that
			obs := observe(StateRejected)
			obs.Signature = &sig
			obs.Reason = verification.ReasonTransactionMalformed
			obs.Detail = err.Error()
			return obs, nil
		}
		return nil, err
	}

	res := verification.VerifyTransfer(details, exp)
	if !res.IsValid {
		obs := observe(StateRejected)
		obs.Signature = &sig
		obs.Reason = res.InvalidReason
		obs.Detail = res.Detail
		return obs, nil
	}

	obs := observe(StateConfirmed)
	obs.Signature = &sig
	return obs, nil
}

// Subscription controls one running watch.
type Subscription struct {
	id     string
	cancel context.CancelFunc
	done   chan struct{}

	// held while a callback runs so Cancel can wait for it
	deliverMu sync.Mutex
	cancelled atomic.Bool

	mu      sync.RWMutex
	lastErr error
	last    *Observation
}

func (s *Subscription) ID() string { return s.id }

// Cancel stops the watch. It is idempotent, and once it returns no callback
// is running or will run. It must not be called from inside the callback.
func (s *Subscription) Cancel() {
	s.cancelled.Store(true)
	s.cancel()
	s.deliverMu.Lock()
	s.deliverMu.Unlock()
}

// Done is closed when the watch loop has exited.
func (s *Subscription) Done() <-chan struct{} { return s.done }

// LastError returns the error of the most recent failed attempt, or nil
// once an attempt succeeds again.
func (s *Subscription) LastError() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastErr
}

// Observation returns the most recent successful poll result.
func (s *Subscription) Observation() *Observation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.last
}

func (s *Subscription) record(obs *Observation, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastErr = err
	if obs != nil {
		s.last = obs
	}
}

func (s *Subscription) deliver(fn func(types.SettlementStatus), status types.SettlementStatus) {
	s.deliverMu.Lock()
	defer s.deliverMu.Unlock()
	if s.cancelled.Load() {
		return
	}
	fn(status)
}

// Watch polls until the link is paid or rejected, ctx ends, or the
// subscription is cancelled. onStatus receives Waiting first and then only
// changes of status.
func (p *Poller) Watch(ctx context.Context, exp verification.Expectation, onStatus func(types.SettlementStatus)) *Subscription {
	ctx, cancel := context.WithCancel(ctx)
	sub := &Subscription{
		id:     uuid.NewString(),
		cancel: cancel,
		done:   make(chan struct{}),
	}

	if onStatus == nil {
		onStatus = func(types.SettlementStatus) {}
	}

	go p.run(ctx, sub, exp, onStatus)
	return sub
}

func (p *Poller) run(ctx context.Context, sub *Subscription, exp verification.Expectation, onStatus func(types.SettlementStatus)) {
	defer close(sub.done)
	defer sub.cancel()

	log := logger.With(p.log, map[string]any{
		"subscription": sub.id,
		"reference":    exp.Reference.String(),
	})
	labels := map[string]string{"network": p.source.GetNetwork().String()}

	current := types.StatusWaiting
	sub.deliver(onStatus, current)
	log.Debug("watch started", nil)

	failures := 0

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Debug("watch stopped", nil)
			return
		case <-timer.C:
		}

		attemptCtx, cancel := context.WithTimeout(ctx, p.cfg.AttemptTimeout)
		start := time.Now()
		obs, err := p.Check(attemptCtx, exp)
		cancel()
		p.metrics.ObserveLatency("poll_attempt", time.Since(start), labels)

		if err != nil {
			if ctx.Err() != nil {
				return
			}
			failures++
			sub.record(nil, err)
			p.metrics.IncCounter("poll_failure", labels)
			log.Debug("poll attempt failed", map[string]any{
				"attempt_failures": failures,
				"error":            err.Error(),
			})
			if failures == p.cfg.FailureThreshold {
				p.metrics.IncCounter("poll_failure_streak", labels)
				log.Warn("ledger unreachable, still waiting", map[string]any{
					"consecutive_failures": failures,
					"error":                err.Error(),
				})
			}

			timer.Reset(p.backoff(failures))
			continue
		}

		if failures >= p.cfg.FailureThreshold {
			log.Info("ledger reachable again", map[string]any{"after_failures": failures})
		}
		failures = 0
		sub.record(obs, nil)

		if obs.Status != current {
			current = obs.Status
			sub.deliver(onStatus, current)
		}

		switch obs.State {
		case StateConfirmed:
			p.metrics.IncCounter("settlement_confirmed", labels)
			log.Info("payment link settled", map[string]any{"signature": obs.Signature.String()})
			return
		case StateRejected:
			p.metrics.IncCounter("settlement_rejected", labels)
			log.Warn("settlement transaction rejected", map[string]any{
				"signature": obs.Signature.String(),
				"reason":    obs.Reason,
				"detail":    obs.Detail,
			})
			return
		}

		timer.Reset(p.cfg.Interval)
	}
}

// backoff doubles the interval per consecutive failure, capped at MaxBackoff.
func (p *Poller) backoff(failures int) time.Duration {
	d := p.cfg.Interval
	for i := 0; i < failures && d < p.cfg.MaxBackoff; i++ {
		d *= 2
	}
	if d > p.cfg.MaxBackoff {
		d = p.cfg.MaxBackoff
	}
	return d
}
