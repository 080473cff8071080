package verification

import (
	"context"
	"errors"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vitwit/paylink/amount"
	"github.com/vitwit/paylink/clients"
	"github.com/vitwit/paylink/transaction"
	"github.com/vitwit/paylink/types"
)

type payFixture struct {
	ledger     *clients.MemoryLedger
	builder    *transaction.Builder
	currencies *types.Currencies
	mint       solana.PublicKey
	payer      solana.PrivateKey
	shop       solana.PublicKey
}

func newPayFixture(t *testing.T) *payFixture {
	t.Helper()

	ledger := clients.NewMemoryLedger(solana.MustPublicKeyFromBase58(types.DefaultProgramID))
	mint := solana.NewWallet().PublicKey()
	require.NoError(t, ledger.AddMint(mint, 6))

	payer := solana.NewWallet().PrivateKey
	shop := solana.NewWallet().PublicKey()
	ledger.Airdrop(payer.PublicKey(), 10*solana.LAMPORTS_PER_SOL)
	_, err := ledger.MintTo(mint, payer.PublicKey(), 100_000_000)
	require.NoError(t, err)
	_, err = ledger.MintTo(mint, shop, 0)
	require.NoError(t, err)

	currencies := types.NewCurrencies(mint)
	codec := amount.NewCodec(currencies, ledger, nil)

	return &payFixture{
		ledger:     ledger,
		builder:    transaction.NewBuilder(ledger, codec, nil, nil),
		currencies: currencies,
		mint:       mint,
		payer:      payer,
		shop:       shop,
	}
}

func (f *payFixture) pay(t *testing.T, recipient solana.PublicKey, minor uint64, tag types.CurrencyTag, reference solana.PublicKey) *types.TransactionDetails {
	t.Helper()
	ctx := context.Background()

	tx, err := f.builder.Build(ctx, transaction.Request{
		Payer:     f.payer.PublicKey(),
		Recipient: recipient,
		Amount:    minor,
		Currency:  tag,
		Reference: reference,
	})
	require.NoError(t, err)

	_, err = tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if key.Equals(f.payer.PublicKey()) {
			return &f.payer
		}
		return nil
	})
	require.NoError(t, err)

	sig, err := f.ledger.SubmitTransaction(ctx, tx)
	require.NoError(t, err)

	details, err := f.ledger.GetTransactionDetails(ctx, sig)
	require.NoError(t, err)
	return details
}

func (f *payFixture) expect(t *testing.T, minor uint64, tag types.CurrencyTag, reference solana.PublicKey) Expectation {
	t.Helper()
	currency, err := f.currencies.Resolve(tag)
	require.NoError(t, err)
	return NewExpectation(&types.PaymentLink{
		Owner:     f.shop,
		Amount:    minor,
		Currency:  tag,
		Reference: reference,
	}, currency)
}

func TestVerifyNativeTransfer(t *testing.T) {
	f := newPayFixture(t)
	ref := solana.NewWallet().PublicKey()

	details := f.pay(t, f.shop, 1_500_000_000, types.CurrencySOL, ref)
	res := VerifyTransfer(details, f.expect(t, 1_500_000_000, types.CurrencySOL, ref))

	require.True(t, res.IsValid, res.Detail)
	assert.NoError(t, res.Err())
	assert.Equal(t, f.payer.PublicKey(), res.Payer)
	assert.Equal(t, details.Signature, res.Signature)
}

func TestVerifyTokenTransfer(t *testing.T) {
	f := newPayFixture(t)
	ref := solana.NewWallet().PublicKey()

	details := f.pay(t, f.shop, 2_000_000, types.CurrencyUSDC, ref)
	res := VerifyTransfer(details, f.expect(t, 2_000_000, types.CurrencyUSDC, ref))

	require.True(t, res.IsValid, res.Detail)
	assert.Equal(t, uint64(2_000_000), res.Amount)
}

func TestVerifyMismatches(t *testing.T) {
	f := newPayFixture(t)
	stranger := solana.NewWallet().PublicKey()

	cases := []struct {
		name   string
		run    func(ref solana.PublicKey) *Result
		reason string
	}{
		{
			name: "amount",
			run: func(ref solana.PublicKey) *Result {
				d := f.pay(t, f.shop, 999, types.CurrencySOL, ref)
				return VerifyTransfer(d, f.expect(t, 1000, types.CurrencySOL, ref))
			},
			reason: ReasonAmountMismatch,
		},
		{
			name: "recipient",
			run: func(ref solana.PublicKey) *Result {
				d := f.pay(t, stranger, 1000, types.CurrencySOL, ref)
				return VerifyTransfer(d, f.expect(t, 1000, types.CurrencySOL, ref))
			},
			reason: ReasonRecipientMismatch,
		},
		{
			name: "currency",
			run: func(ref solana.PublicKey) *Result {
				d := f.pay(t, f.shop, 1000, types.CurrencySOL, ref)
				return VerifyTransfer(d, f.expect(t, 1000, types.CurrencyUSDC, ref))
			},
			reason: ReasonNotATransferCheckedInstruction,
		},
		{
			name: "token paid for native link",
			run: func(ref solana.PublicKey) *Result {
				d := f.pay(t, f.shop, 1000, types.CurrencyUSDC, ref)
				return VerifyTransfer(d, f.expect(t, 1000, types.CurrencySOL, ref))
			},
			reason: ReasonNotATransferInstruction,
		},
		{
			name: "token amount",
			run: func(ref solana.PublicKey) *Result {
				d := f.pay(t, f.shop, 1000, types.CurrencyUSDC, ref)
				return VerifyTransfer(d, f.expect(t, 1001, types.CurrencyUSDC, ref))
			},
			reason: ReasonAmountMismatch,
		},
		{
			name: "token account owned by recipient but not its associated account",
			run: func(ref solana.PublicKey) *Result {
				d := f.pay(t, f.shop, 1000, types.CurrencyUSDC, ref)
				ata, _, err := solana.FindAssociatedTokenAddress(f.shop, f.mint)
				require.NoError(t, err)

				// the ledger still reports the shop as owner of the swapped account
				keys := append(solana.PublicKeySlice(nil), d.AccountKeys...)
				for i, k := range keys {
					if k.Equals(ata) {
						keys[i] = solana.NewWallet().PublicKey()
					}
				}
				d.AccountKeys = keys
				return VerifyTransfer(d, f.expect(t, 1000, types.CurrencyUSDC, ref))
			},
			reason: ReasonRecipientMismatch,
		},
		{
			name: "reference absent",
			run: func(ref solana.PublicKey) *Result {
				d := f.pay(t, f.shop, 1000, types.CurrencySOL, ref)
				return VerifyTransfer(d, f.expect(t, 1000, types.CurrencySOL, solana.NewWallet().PublicKey()))
			},
			reason: ReasonReferenceNotFound,
		},
		{
			name: "failed transaction",
			run: func(ref solana.PublicKey) *Result {
				d := f.pay(t, f.shop, 1000, types.CurrencySOL, ref)
				d.Err = `{"InstructionError":[0,{"Custom":1}]}`
				return VerifyTransfer(d, f.expect(t, 1000, types.CurrencySOL, ref))
			},
			reason: ReasonTransactionFailed,
		},
		{
			name: "balance",
			run: func(ref solana.PublicKey) *Result {
				d := f.pay(t, f.shop, 1000, types.CurrencySOL, ref)
				post := append([]uint64(nil), d.PostBalances...)
				for i := range post {
					post[i] = d.PreBalances[i]
				}
				d.PostBalances = post
				return VerifyTransfer(d, f.expect(t, 1000, types.CurrencySOL, ref))
			},
			reason: ReasonBalanceMismatch,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res := tc.run(solana.NewWallet().PublicKey())
			assert.False(t, res.IsValid)
			assert.Equal(t, tc.reason, res.InvalidReason)
			assert.True(t, errors.Is(res.Err(), types.ErrSemanticMismatchError))
		})
	}
}

func TestVerifyMissingTransaction(t *testing.T) {
	res := VerifyTransfer(nil, Expectation{})
	assert.False(t, res.IsValid)
	assert.Equal(t, ReasonTransactionMissing, res.InvalidReason)
}
