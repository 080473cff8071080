package clients

import (
	"context"
	"errors"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/gagliardetto/solana-go/programs/token"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vitwit/paylink/derivation"
	"github.com/vitwit/paylink/program"
	"github.com/vitwit/paylink/types"
)

var testProgram = solana.MustPublicKeyFromBase58(types.DefaultProgramID)

func newKey(t *testing.T) solana.PrivateKey {
	t.Helper()
	key, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)
	return key
}

func submit(t *testing.T, l *MemoryLedger, signer solana.PrivateKey, instrs ...solana.Instruction) (solana.Signature, error) {
	t.Helper()
	ctx := context.Background()

	cp, err := l.GetRecentCheckpoint(ctx)
	require.NoError(t, err)

	tx, err := solana.NewTransaction(instrs, cp.Blockhash, solana.TransactionPayer(signer.PublicKey()))
	require.NoError(t, err)

	_, err = tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if key.Equals(signer.PublicKey()) {
			return &signer
		}
		return nil
	})
	require.NoError(t, err)

	return l.SubmitTransaction(ctx, tx)
}

func tagged(t *testing.T, inst solana.Instruction, reference solana.PublicKey) solana.Instruction {
	t.Helper()
	data, err := inst.Data()
	require.NoError(t, err)
	accounts := append(solana.AccountMetaSlice{}, inst.Accounts()...)
	accounts = append(accounts, solana.Meta(reference))
	return solana.NewInstruction(inst.ProgramID(), accounts, data)
}

func TestMemoryLedgerSystemTransfer(t *testing.T) {
	ctx := context.Background()
	l := NewMemoryLedger(testProgram)

	payer := newKey(t)
	recipient := newKey(t).PublicKey()
	reference := newKey(t).PublicKey()
	l.Airdrop(payer.PublicKey(), 5_000_000_000)

	transfer := system.NewTransferInstruction(1_000_000_000, payer.PublicKey(), recipient).Build()
	sig, err := submit(t, l, payer, tagged(t, transfer, reference))
	require.NoError(t, err)

	assert.Equal(t, uint64(1_000_000_000), l.Balance(recipient))
	assert.Equal(t, uint64(5_000_000_000-1_000_000_000-LamportsPerSignature), l.Balance(payer.PublicKey()))

	sigs, err := l.FindSignaturesForReference(ctx, reference, rpc.CommitmentConfirmed)
	require.NoError(t, err)
	require.Equal(t, []solana.Signature{sig}, sigs)

	details, err := l.GetTransactionDetails(ctx, sig)
	require.NoError(t, err)
	assert.True(t, details.Succeeded())
	assert.Equal(t, uint64(LamportsPerSignature), details.Fee)

	idx := -1
	for i, k := range details.AccountKeys {
		if k.Equals(recipient) {
			idx = i
		}
	}
	require.GreaterOrEqual(t, idx, 0)
	assert.Equal(t, uint64(0), details.PreBalances[idx])
	assert.Equal(t, uint64(1_000_000_000), details.PostBalances[idx])
}

func TestMemoryLedgerCommitmentVisibility(t *testing.T) {
	ctx := context.Background()
	l := NewMemoryLedger(testProgram)
	l.SetDefaultCommitment(rpc.ConfirmationStatusProcessed)

	payer := newKey(t)
	reference := newKey(t).PublicKey()
	l.Airdrop(payer.PublicKey(), solana.LAMPORTS_PER_SOL)

	transfer := system.NewTransferInstruction(10, payer.PublicKey(), newKey(t).PublicKey()).Build()
	sig, err := submit(t, l, payer, tagged(t, transfer, reference))
	require.NoError(t, err)

	sigs, err := l.FindSignaturesForReference(ctx, reference, rpc.CommitmentConfirmed)
	require.NoError(t, err)
	assert.Empty(t, sigs)

	_, err = l.GetTransactionDetails(ctx, sig)
	assert.True(t, errors.Is(err, types.ErrNotFoundError))

	require.NoError(t, l.SetCommitment(sig, rpc.ConfirmationStatusConfirmed))
	sigs, err = l.FindSignaturesForReference(ctx, reference, rpc.CommitmentConfirmed)
	require.NoError(t, err)
	assert.Len(t, sigs, 1)

	sigs, err = l.FindSignaturesForReference(ctx, reference, rpc.CommitmentFinalized)
	require.NoError(t, err)
	assert.Empty(t, sigs)
}

func TestMemoryLedgerTokenTransfer(t *testing.T) {
	ctx := context.Background()
	l := NewMemoryLedger(testProgram)

	mint := newKey(t).PublicKey()
	payer := newKey(t)
	recipient := newKey(t).PublicKey()
	l.Airdrop(payer.PublicKey(), solana.LAMPORTS_PER_SOL)
	require.NoError(t, l.AddMint(mint, 6))

	source, err := l.MintTo(mint, payer.PublicKey(), 10_000_000)
	require.NoError(t, err)
	dest, err := l.MintTo(mint, recipient, 0)
	require.NoError(t, err)

	meta, err := l.GetCurrencyMetadata(ctx, mint)
	require.NoError(t, err)
	assert.Equal(t, uint8(6), meta.Decimals)

	transfer := token.NewTransferCheckedInstruction(2_500_000, 6, source, mint, dest, payer.PublicKey(), nil).Build()
	sig, err := submit(t, l, payer, transfer)
	require.NoError(t, err)

	assert.Equal(t, uint64(2_500_000), l.TokenBalance(mint, recipient))
	assert.Equal(t, uint64(7_500_000), l.TokenBalance(mint, payer.PublicKey()))

	details, err := l.GetTransactionDetails(ctx, sig)
	require.NoError(t, err)
	require.Len(t, details.PostTokenBalances, 2)

	bad := token.NewTransferCheckedInstruction(1, 9, source, mint, dest, payer.PublicKey(), nil).Build()
	_, err = submit(t, l, payer, bad)
	assert.True(t, errors.Is(err, &types.PaylinkError{Code: types.ErrSubmitFailed}))
}

func TestMemoryLedgerProgramLifecycle(t *testing.T) {
	ctx := context.Background()
	l := NewMemoryLedger(testProgram)

	owner := newKey(t)
	l.Airdrop(owner.PublicKey(), 10*solana.LAMPORTS_PER_SOL)

	profile, err := derivation.UserProfileAddress(testProgram, owner.PublicKey())
	require.NoError(t, err)

	createProfile := program.NewCreateUserProfileInstruction(testProgram, profile.PublicKey, owner.PublicKey())
	_, err = submit(t, l, owner, createProfile)
	require.NoError(t, err)

	_, err = submit(t, l, owner, createProfile)
	assert.True(t, errors.Is(err, types.ErrAlreadyExistsError), "got %v", err)

	link0, err := derivation.PaymentLinkAddress(testProgram, owner.PublicKey(), 0)
	require.NoError(t, err)
	ref := newKey(t).PublicKey()

	createLink, err := program.NewCreatePaymentLinkInstruction(testProgram, profile.PublicKey, link0.PublicKey, owner.PublicKey(), 1_500_000_000, types.CurrencySOL, ref)
	require.NoError(t, err)
	_, err = submit(t, l, owner, createLink)
	require.NoError(t, err)

	// same slot again: the profile counter already moved on
	_, err = submit(t, l, owner, createLink)
	assert.True(t, errors.Is(err, types.ErrStaleIndexError), "got %v", err)

	acc, err := l.GetAccount(ctx, profile.PublicKey)
	require.NoError(t, err)
	decoded, err := program.DecodeUserProfile(acc.Data)
	require.NoError(t, err)
	assert.Equal(t, uint8(1), decoded.LastPaymentLink)

	accounts, err := l.GetProgramAccounts(ctx, testProgram, types.AccountFilter{
		Offset: program.OwnerOffset,
		Bytes:  owner.PublicKey().Bytes(),
	})
	require.NoError(t, err)
	assert.Len(t, accounts, 2)

	before := l.Balance(owner.PublicKey())
	remove := program.NewRemovePaymentLinkInstruction(testProgram, profile.PublicKey, link0.PublicKey, owner.PublicKey(), 0)
	_, err = submit(t, l, owner, remove)
	require.NoError(t, err)
	assert.Equal(t, before+RentExemption(program.PaymentLinkSpace)-LamportsPerSignature, l.Balance(owner.PublicKey()))

	_, err = l.GetAccount(ctx, link0.PublicKey)
	assert.True(t, errors.Is(err, types.ErrNotFoundError))

	amount := uint64(1)
	update, err := program.NewUpdatePaymentLinkInstruction(testProgram, link0.PublicKey, owner.PublicKey(), 0, &amount, nil)
	require.NoError(t, err)
	_, err = submit(t, l, owner, update)
	assert.True(t, errors.Is(err, types.ErrNotFoundError), "got %v", err)
}

func TestMemoryLedgerOutage(t *testing.T) {
	ctx := context.Background()
	l := NewMemoryLedger(testProgram).WithError(errors.New("connection refused"))

	_, err := l.GetRecentCheckpoint(ctx)
	assert.True(t, errors.Is(err, types.ErrNetworkUnavailableError))

	_, err = l.FindSignaturesForReference(ctx, solana.SystemProgramID, rpc.CommitmentConfirmed)
	assert.Equal(t, types.KindNetwork, types.KindOf(err))

	l.WithError(nil)
	_, err = l.GetRecentCheckpoint(ctx)
	assert.NoError(t, err)
}

func TestMemoryLedgerRejectsUnknownBlockhash(t *testing.T) {
	l := NewMemoryLedger(testProgram)
	payer := newKey(t)
	l.Airdrop(payer.PublicKey(), solana.LAMPORTS_PER_SOL)

	transfer := system.NewTransferInstruction(1, payer.PublicKey(), newKey(t).PublicKey()).Build()
	tx, err := solana.NewTransaction([]solana.Instruction{transfer}, solana.Hash{1}, solana.TransactionPayer(payer.PublicKey()))
	require.NoError(t, err)
	_, err = tx.Sign(func(solana.PublicKey) *solana.PrivateKey { return &payer })
	require.NoError(t, err)

	_, err = l.SubmitTransaction(context.Background(), tx)
	assert.Equal(t, types.ErrSubmitFailed, types.CodeOf(err))
}
