// Package lifecycle creates, updates and removes payment links and the
// profiles that number them. Every mutation is one signed transaction
// carrying one program instruction.
package lifecycle

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/vitwit/paylink/amount"
	"github.com/vitwit/paylink/clients"
	"github.com/vitwit/paylink/derivation"
	"github.com/vitwit/paylink/logger"
	"github.com/vitwit/paylink/metrics"
	"github.com/vitwit/paylink/program"
	"github.com/vitwit/paylink/types"
	"github.com/vitwit/paylink/utils"
)

// MaxLinks is the number of slots a one-byte counter can hand out.
const MaxLinks = 255

// Signer authorizes mutations. solana.PrivateKey satisfies it.
type Signer interface {
	PublicKey() solana.PublicKey
	Sign(message []byte) (solana.Signature, error)
}

type Manager struct {
	ledger    clients.Ledger
	codec     *amount.Codec
	programID solana.PublicKey
	timeout   time.Duration
	log       logger.Logger
	metrics   metrics.Recorder
}

// NewManager returns a manager bound to one program deployment.
func NewManager(
	ledger clients.Ledger,
	codec *amount.Codec,
	programID solana.PublicKey,
	timeout time.Duration,
	log logger.Logger,
	rec metrics.Recorder,
) *Manager {
	if timeout <= 0 {
		timeout = types.DefaultTimeout
	}
	if log == nil {
		log = logger.NoopLogger{}
	}
	if rec == nil {
		rec = metrics.NoopRecorder{}
	}
	return &Manager{
		ledger:    ledger,
		codec:     codec,
		programID: programID,
		timeout:   timeout,
		log:       log,
		metrics:   rec,
	}
}

func (m *Manager) labels() map[string]string {
	return map[string]string{"network": m.ledger.GetNetwork().String()}
}

// CreateUserProfile opens the profile that numbers owner's links. A second
// call fails with ALREADY_EXISTS.
func (m *Manager) CreateUserProfile(ctx context.Context, owner Signer) (*types.UserProfile, error) {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	addr, err := derivation.UserProfileAddress(m.programID, owner.PublicKey())
	if err != nil {
		return nil, err
	}

	inst := program.NewCreateUserProfileInstruction(m.programID, addr.PublicKey, owner.PublicKey())
	sig, err := m.submit(ctx, owner, inst)
	if err != nil {
		m.log.Error("create user profile failed", map[string]any{
			"owner": owner.PublicKey().String(),
			"error": err.Error(),
		})
		return nil, err
	}

	m.metrics.IncCounter("profile_created", m.labels())
	m.log.Info("user profile created", map[string]any{
		"owner":     owner.PublicKey().String(),
		"address":   addr.PublicKey.String(),
		"signature": sig.String(),
	})

	return &types.UserProfile{Address: addr.PublicKey, Owner: owner.PublicKey()}, nil
}

// CreatePaymentLink converts amountDecimal into minor units of currency and
// stores it in owner's next slot under a fresh reference. Input is checked
// before the ledger is touched. A slot taken concurrently is retried once.
func (m *Manager) CreatePaymentLink(
	ctx context.Context,
	owner Signer,
	amountDecimal string,
	currency types.CurrencyTag,
) (*types.PaymentLink, error) {
	if _, err := utils.ValidateAmount(amountDecimal); err != nil {
		return nil, err
	}
	if _, err := m.codec.Currency(currency); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	minor, err := m.codec.ToMinorUnits(ctx, amountDecimal, currency)
	if err != nil {
		return nil, err
	}
	reference, err := utils.NewReference()
	if err != nil {
		return nil, err
	}

	var link *types.PaymentLink
	for attempt := 1; ; attempt++ {
		link, err = m.createLink(ctx, owner, minor, currency, reference)
		if err == nil || attempt > 1 || !errors.Is(err, types.ErrStaleIndexError) {
			break
		}
		m.log.Warn("link slot taken concurrently, retrying", map[string]any{
			"owner": owner.PublicKey().String(),
		})
	}
	if err != nil {
		return nil, err
	}

	m.metrics.IncCounter("link_created", m.labels())
	m.log.Info("payment link created", map[string]any{
		"owner":    link.Owner.String(),
		"address":  link.Address.String(),
		"index":    link.Index,
		"amount":   link.Amount,
		"currency": link.Currency.String(),
	})
	return link, nil
}

func (m *Manager) createLink(
	ctx context.Context,
	owner Signer,
	minor uint64,
	currency types.CurrencyTag,
	reference solana.PublicKey,
) (*types.PaymentLink, error) {
	profile, err := m.GetUserProfile(ctx, owner.PublicKey())
	if err != nil {
		return nil, err
	}
	if profile.LastLinkIndex >= MaxLinks {
		return nil, types.NewError(types.ErrIndexExhausted, "owner %s has used all %d link slots", profile.Owner, MaxLinks)
	}

	index := profile.LastLinkIndex
	addr, err := derivation.PaymentLinkAddress(m.programID, owner.PublicKey(), index)
	if err != nil {
		return nil, err
	}

	inst, err := program.NewCreatePaymentLinkInstruction(
		m.programID,
		profile.Address,
		addr.PublicKey,
		owner.PublicKey(),
		minor,
		currency,
		reference,
	)
	if err != nil {
		return nil, err
	}
	if _, err := m.submit(ctx, owner, inst); err != nil {
		return nil, err
	}

	return &types.PaymentLink{
		Address:   addr.PublicKey,
		Owner:     owner.PublicKey(),
		Amount:    minor,
		Currency:  currency,
		Reference: reference,
		Index:     index,
	}, nil
}

// UpdatePaymentLink changes the amount, the currency or both of the link in
// owner's slot index. A new amount is read in the currency the link will
// have after the update.
func (m *Manager) UpdatePaymentLink(
	ctx context.Context,
	owner Signer,
	index uint8,
	patch types.PaymentLinkPatch,
) (*types.PaymentLink, error) {
	if patch.IsEmpty() {
		return nil, types.NewError(types.ErrInvalidPatch, "patch changes nothing")
	}
	if patch.Amount != nil {
		if _, err := utils.ValidateAmount(*patch.Amount); err != nil {
			return nil, err
		}
	}
	if patch.Currency != nil {
		if _, err := m.codec.Currency(*patch.Currency); err != nil {
			return nil, err
		}
	}

	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	current, err := m.ownedLink(ctx, owner.PublicKey(), index)
	if err != nil {
		return nil, err
	}

	currency := current.Currency
	if patch.Currency != nil {
		currency = *patch.Currency
	}

	var newAmount *uint64
	if patch.Amount != nil {
		minor, err := m.codec.ToMinorUnits(ctx, *patch.Amount, currency)
		if err != nil {
			return nil, err
		}
		newAmount = &minor
	}

	inst, err := program.NewUpdatePaymentLinkInstruction(
		m.programID,
		current.Address,
		owner.PublicKey(),
		index,
		newAmount,
		patch.Currency,
	)
	if err != nil {
		return nil, err
	}
	if _, err := m.submit(ctx, owner, inst); err != nil {
		return nil, err
	}

	updated := *current
	updated.Currency = currency
	if newAmount != nil {
		updated.Amount = *newAmount
	}

	m.metrics.IncCounter("link_updated", m.labels())
	m.log.Info("payment link updated", map[string]any{
		"address":  updated.Address.String(),
		"index":    index,
		"amount":   updated.Amount,
		"currency": updated.Currency.String(),
	})
	return &updated, nil
}

// RemovePaymentLink closes the link account and returns its rent to owner.
// The slot is never handed out again.
func (m *Manager) RemovePaymentLink(ctx context.Context, owner Signer, index uint8) error {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	link, err := m.ownedLink(ctx, owner.PublicKey(), index)
	if err != nil {
		return err
	}
	profile, err := derivation.UserProfileAddress(m.programID, owner.PublicKey())
	if err != nil {
		return err
	}

	inst := program.NewRemovePaymentLinkInstruction(m.programID, profile.PublicKey, link.Address, owner.PublicKey(), index)
	if _, err := m.submit(ctx, owner, inst); err != nil {
		return err
	}

	m.metrics.IncCounter("link_removed", m.labels())
	m.log.Info("payment link removed", map[string]any{
		"address": link.Address.String(),
		"index":   index,
	})
	return nil
}

// ownedLink reads the link in owner's slot and rejects links owned by
// anyone else before the program would.
func (m *Manager) ownedLink(ctx context.Context, owner solana.PublicKey, index uint8) (*types.PaymentLink, error) {
	link, err := m.GetPaymentLinkByIndex(ctx, owner, index)
	if err != nil {
		return nil, err
	}
	if !link.Owner.Equals(owner) {
		return nil, types.NewError(types.ErrUnauthorized, "link %s belongs to %s", link.Address, link.Owner)
	}
	return link, nil
}

// GetUserProfile returns NOT_FOUND until the profile has been created.
func (m *Manager) GetUserProfile(ctx context.Context, owner solana.PublicKey) (*types.UserProfile, error) {
	addr, err := derivation.UserProfileAddress(m.programID, owner)
	if err != nil {
		return nil, err
	}

	acc, err := m.ledger.GetAccount(ctx, addr.PublicKey)
	if err != nil {
		if errors.Is(err, types.ErrNotFoundError) {
			return nil, types.WrapError(types.ErrNotFound, err, "no user profile for %s", owner)
		}
		return nil, err
	}
	if !acc.Owner.Equals(m.programID) {
		return nil, types.NewError(types.ErrNotFound, "account %s is not a user profile", addr.PublicKey)
	}

	record, err := program.DecodeUserProfile(acc.Data)
	if err != nil {
		return nil, types.WrapError(types.ErrNotFound, err, "account %s is not a user profile", addr.PublicKey)
	}
	return record.ToUserProfile(addr.PublicKey), nil
}

// GetPaymentLink reads a link by account address.
func (m *Manager) GetPaymentLink(ctx context.Context, address solana.PublicKey) (*types.PaymentLink, error) {
	acc, err := m.ledger.GetAccount(ctx, address)
	if err != nil {
		return nil, err
	}
	return m.decodeLink(acc)
}

// GetPaymentLinkByIndex reads the link in owner's slot index.
func (m *Manager) GetPaymentLinkByIndex(ctx context.Context, owner solana.PublicKey, index uint8) (*types.PaymentLink, error) {
	addr, err := derivation.PaymentLinkAddress(m.programID, owner, index)
	if err != nil {
		return nil, err
	}
	return m.GetPaymentLink(ctx, addr.PublicKey)
}

// ListPaymentLinks returns owner's live links ordered by slot.
func (m *Manager) ListPaymentLinks(ctx context.Context, owner solana.PublicKey) ([]*types.PaymentLink, error) {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	accounts, err := m.ledger.GetProgramAccounts(ctx, m.programID, types.AccountFilter{
		Offset: program.OwnerOffset,
		Bytes:  owner.Bytes(),
	})
	if err != nil {
		return nil, err
	}

	links := make([]*types.PaymentLink, 0, len(accounts))
	for _, acc := range accounts {
		// profiles share the owner offset
		if !program.IsPaymentLink(acc.Data) {
			continue
		}
		link, err := m.decodeLink(acc)
		if err != nil {
			m.log.Warn("skipping undecodable link account", map[string]any{
				"address": acc.Address.String(),
				"error":   err.Error(),
			})
			continue
		}
		links = append(links, link)
	}

	sort.Slice(links, func(i, j int) bool { return links[i].Index < links[j].Index })
	return links, nil
}

func (m *Manager) decodeLink(acc *types.AccountInfo) (*types.PaymentLink, error) {
	if !acc.Owner.Equals(m.programID) || !program.IsPaymentLink(acc.Data) {
		return nil, types.NewError(types.ErrNotFound, "account %s is not a payment link", acc.Address)
	}
	record, err := program.DecodePaymentLink(acc.Data)
	if err != nil {
		return nil, types.WrapError(types.ErrNotFound, err, "account %s is not a payment link", acc.Address)
	}
	return record.ToPaymentLink(acc.Address), nil
}

// submit wraps inst in a transaction paid and signed by signer.
func (m *Manager) submit(ctx context.Context, signer Signer, inst solana.Instruction) (solana.Signature, error) {
	start := time.Now()
	defer func() {
		m.metrics.ObserveLatency("submit_instruction", time.Since(start), m.labels())
	}()

	checkpoint, err := m.ledger.GetRecentCheckpoint(ctx)
	if err != nil {
		return solana.Signature{}, err
	}

	tx, err := solana.NewTransaction(
		[]solana.Instruction{inst},
		checkpoint.Blockhash,
		solana.TransactionPayer(signer.PublicKey()),
	)
	if err != nil {
		return solana.Signature{}, types.WrapError(types.ErrSubmitFailed, err, "failed to assemble transaction")
	}

	message, err := tx.Message.MarshalBinary()
	if err != nil {
		return solana.Signature{}, types.WrapError(types.ErrSubmitFailed, err, "failed to encode message")
	}
	sig, err := signer.Sign(message)
	if err != nil {
		return solana.Signature{}, types.WrapError(types.ErrSubmitFailed, err, "failed to sign transaction")
	}
	tx.Signatures = []solana.Signature{sig}

	return m.ledger.SubmitTransaction(ctx, tx)
}
