package paylink

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vitwit/paylink/clients"
	"github.com/vitwit/paylink/settlement"
	"github.com/vitwit/paylink/transaction"
	"github.com/vitwit/paylink/types"
)

type harness struct {
	pl     *PayLink
	ledger *clients.MemoryLedger
	mint   solana.PublicKey
	shop   solana.PrivateKey
	payer  solana.PrivateKey
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	programID := solana.MustPublicKeyFromBase58(types.DefaultProgramID)
	ledger := clients.NewMemoryLedger(programID)
	mint := solana.NewWallet().PublicKey()
	require.NoError(t, ledger.AddMint(mint, 6))

	shop := solana.NewWallet().PrivateKey
	payer := solana.NewWallet().PrivateKey
	ledger.Airdrop(shop.PublicKey(), 5*solana.LAMPORTS_PER_SOL)
	ledger.Airdrop(payer.PublicKey(), 5*solana.LAMPORTS_PER_SOL)
	_, err := ledger.MintTo(mint, payer.PublicKey(), 50_000_000)
	require.NoError(t, err)
	_, err = ledger.MintTo(mint, shop.PublicKey(), 0)
	require.NoError(t, err)

	cfg := types.DefaultConfig()
	cfg.Network = types.NetworkMemory
	cfg.USDCMint = mint.String()
	cfg.Memo = "order-42"

	pl, err := New(cfg, WithLedger(ledger), WithPollInterval(5*time.Millisecond))
	require.NoError(t, err)
	t.Cleanup(pl.Close)

	return &harness{pl: pl, ledger: ledger, mint: mint, shop: shop, payer: payer}
}

// settle signs the built transaction the way a wallet would and lands it.
func (h *harness) settle(t *testing.T, link *types.PaymentLink) solana.Signature {
	t.Helper()
	ctx := context.Background()

	encoded, err := h.pl.BuildSettlementTransaction(ctx, h.payer.PublicKey(), link)
	require.NoError(t, err)

	tx, err := transaction.Decode(encoded)
	require.NoError(t, err)
	tx.Signatures = nil
	_, err = tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if key.Equals(h.payer.PublicKey()) {
			return &h.payer
		}
		return nil
	})
	require.NoError(t, err)

	sig, err := h.ledger.SubmitTransaction(ctx, tx)
	require.NoError(t, err)
	return sig
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	_, err := New(&types.Config{Network: "bitcoin"})
	assert.True(t, errors.Is(err, &types.PaylinkError{Code: types.ErrConfigError}))

	_, err = New(&types.Config{Network: types.NetworkMemory, ProgramID: "not-a-key"})
	assert.Error(t, err)
}

func TestNewMemoryNetworkWithoutLedger(t *testing.T) {
	pl, err := New(&types.Config{Network: types.NetworkMemory})
	require.NoError(t, err)
	defer pl.Close()

	assert.Equal(t, types.NetworkMemory, pl.Ledger().GetNetwork())
	assert.Equal(t, types.DefaultPollInterval, pl.Config().Poll.Interval)
}

func TestSettleNativeLink(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.pl.CreateUserProfile(ctx, h.shop)
	require.NoError(t, err)
	link, err := h.pl.CreatePaymentLink(ctx, h.shop, "1.5", types.CurrencySOL)
	require.NoError(t, err)

	display, err := h.pl.FormatAmount(ctx, link)
	require.NoError(t, err)
	assert.Equal(t, "1.5", display)

	obs, err := h.pl.CheckSettlement(ctx, link)
	require.NoError(t, err)
	assert.Equal(t, types.StatusWaiting, obs.Status)

	before := h.ledger.Balance(h.shop.PublicKey())
	sig := h.settle(t, link)

	obs, err = h.pl.CheckSettlement(ctx, link)
	require.NoError(t, err)
	assert.Equal(t, types.StatusPaid, obs.Status)
	assert.Equal(t, sig, *obs.Signature)
	assert.Equal(t, before+1_500_000_000, h.ledger.Balance(h.shop.PublicKey()))
}

func TestWatchTokenLink(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.pl.CreateUserProfile(ctx, h.shop)
	require.NoError(t, err)
	link, err := h.pl.CreatePaymentLink(ctx, h.shop, "12.5", types.CurrencyUSDC)
	require.NoError(t, err)
	assert.Equal(t, uint64(12_500_000), link.Amount)

	var (
		mu       sync.Mutex
		statuses []types.SettlementStatus
	)
	sub, err := h.pl.WatchSettlement(ctx, link, func(s types.SettlementStatus) {
		mu.Lock()
		defer mu.Unlock()
		statuses = append(statuses, s)
	})
	require.NoError(t, err)
	defer sub.Cancel()

	h.settle(t, link)

	select {
	case <-sub.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("watch did not finish")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []types.SettlementStatus{types.StatusWaiting, types.StatusPaid}, statuses)
	assert.Equal(t, settlement.StateConfirmed, sub.Observation().State)
	assert.Equal(t, uint64(12_500_000), h.ledger.TokenBalance(h.mint, h.shop.PublicKey()))
}

func TestUpdatedLinkRejectsOldAmount(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.pl.CreateUserProfile(ctx, h.shop)
	require.NoError(t, err)
	link, err := h.pl.CreatePaymentLink(ctx, h.shop, "1", types.CurrencySOL)
	require.NoError(t, err)

	// paid at the old price, then the owner raises it
	h.settle(t, link)
	two := "2"
	updated, err := h.pl.UpdatePaymentLink(ctx, h.shop, link.Index, types.PaymentLinkPatch{Amount: &two})
	require.NoError(t, err)

	obs, err := h.pl.CheckSettlement(ctx, updated)
	require.NoError(t, err)
	assert.Equal(t, types.StatusError, obs.Status)
	assert.Equal(t, settlement.StateRejected, obs.State)
}

func TestListAndRemoveThroughFacade(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.pl.CreateUserProfile(ctx, h.shop)
	require.NoError(t, err)
	for _, a := range []string{"1", "2"} {
		_, err := h.pl.CreatePaymentLink(ctx, h.shop, a, types.CurrencySOL)
		require.NoError(t, err)
	}
	require.NoError(t, h.pl.RemovePaymentLink(ctx, h.shop, 0))

	links, err := h.pl.ListPaymentLinks(ctx, h.shop.PublicKey())
	require.NoError(t, err)
	require.Len(t, links, 1)
	assert.Equal(t, uint8(1), links[0].Index)

	profile, err := h.pl.GetUserProfile(ctx, h.shop.PublicKey())
	require.NoError(t, err)
	assert.Equal(t, uint8(2), profile.LastLinkIndex)
}

func TestGetVersion(t *testing.T) {
	v := GetVersion()
	assert.Equal(t, Version, v["library_version"])
	assert.Contains(t, v["supported_currencies"], "USDC")
}

func TestCheckSettlementsBatch(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.pl.CreateUserProfile(ctx, h.shop)
	require.NoError(t, err)
	paid, err := h.pl.CreatePaymentLink(ctx, h.shop, "0.5", types.CurrencySOL)
	require.NoError(t, err)
	open, err := h.pl.CreatePaymentLink(ctx, h.shop, "3", types.CurrencyUSDC)
	require.NoError(t, err)
	h.settle(t, paid)

	results, err := h.pl.CheckSettlements(ctx, []*types.PaymentLink{paid, open})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, types.StatusPaid, results[0].Observation.Status)
	assert.Equal(t, types.StatusWaiting, results[1].Observation.Status)
}
