package clients

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/gagliardetto/solana-go/programs/token"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/vitwit/paylink/derivation"
	"github.com/vitwit/paylink/program"
	"github.com/vitwit/paylink/types"
)

const (
	LamportsPerSignature = 5000

	// validity window handed out with every checkpoint
	blockhashValidSlots = 150

	// system program: insufficient lamports
	systemInsufficientFunds uint32 = 1

	// token program
	tokenInsufficientFunds    uint32 = 1
	tokenMintMismatch         uint32 = 3
	tokenOwnerMismatch        uint32 = 4
	tokenMintDecimalsMismatch uint32 = 18

	// anchor framework
	anchorInstructionDidNotDeserialize uint32 = 102
	anchorAccountNotSigner             uint32 = 3010
)

// RentExemption is the minimum balance of an account holding space bytes.
func RentExemption(space int) uint64 {
	return uint64(128+space) * 3480 * 2
}

type memAccount struct {
	lamports uint64
	owner    solana.PublicKey
	data     []byte
}

func (a *memAccount) clone() *memAccount {
	c := *a
	c.data = append([]byte(nil), a.data...)
	return &c
}

type memTx struct {
	details *types.TransactionDetails
	status  rpc.ConfirmationStatusType
}

// MemoryLedger is an in-process Ledger. It executes the payment link
// program, system transfers and token TransferChecked atomically, and keeps
// enough history to answer reference searches. It backs tests, examples and
// the CLI's memory network.
type MemoryLedger struct {
	mu sync.RWMutex

	programID   solana.PublicKey
	accounts    map[solana.PublicKey]*memAccount
	txs         map[solana.Signature]*memTx
	byKey       map[solana.PublicKey][]solana.Signature
	blockhashes map[solana.Hash]uint64

	slot       uint64
	commitment rpc.ConfirmationStatusType
	err        error
}

var _ Ledger = (*MemoryLedger)(nil)

// NewMemoryLedger creates an empty ledger with programID deployed.
// Submitted transactions land as "confirmed" until SetDefaultCommitment.
func NewMemoryLedger(programID solana.PublicKey) *MemoryLedger {
	return &MemoryLedger{
		programID:   programID,
		accounts:    make(map[solana.PublicKey]*memAccount),
		txs:         make(map[solana.Signature]*memTx),
		byKey:       make(map[solana.PublicKey][]solana.Signature),
		blockhashes: make(map[solana.Hash]uint64),
		slot:        1,
		commitment:  rpc.ConfirmationStatusConfirmed,
	}
}

// WithError makes every subsequent call fail with err. Pass nil to recover.
func (l *MemoryLedger) WithError(err error) *MemoryLedger {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.err = err
	return l
}

// SetDefaultCommitment sets the status of transactions submitted from now on.
func (l *MemoryLedger) SetDefaultCommitment(status rpc.ConfirmationStatusType) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.commitment = status
}

// SetCommitment moves a landed transaction to another confirmation status.
func (l *MemoryLedger) SetCommitment(sig solana.Signature, status rpc.ConfirmationStatusType) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	tx, ok := l.txs[sig]
	if !ok {
		return types.NewError(types.ErrNotFound, "transaction %s not found", sig)
	}
	tx.status = status
	return nil
}

// Airdrop credits lamports to a system account, creating it if needed.
func (l *MemoryLedger) Airdrop(to solana.PublicKey, lamports uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()

	acc, ok := l.accounts[to]
	if !ok {
		acc = &memAccount{owner: solana.SystemProgramID}
		l.accounts[to] = acc
	}
	acc.lamports += lamports
}

// AddMint creates an initialized token mint.
func (l *MemoryLedger) AddMint(mint solana.PublicKey, decimals uint8) error {
	data, err := encodeBin(&token.Mint{Decimals: decimals, IsInitialized: true})
	if err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.accounts[mint] = &memAccount{
		lamports: RentExemption(len(data)),
		owner:    solana.TokenProgramID,
		data:     data,
	}
	return nil
}

// MintTo credits amount tokens to owner's associated token account,
// creating the account on first use.
func (l *MemoryLedger) MintTo(mint, owner solana.PublicKey, amount uint64) (solana.PublicKey, error) {
	ata, _, err := solana.FindAssociatedTokenAddress(owner, mint)
	if err != nil {
		return solana.PublicKey{}, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.accounts[mint]; !ok {
		return solana.PublicKey{}, types.NewError(types.ErrNotFound, "mint %s not found", mint)
	}

	var holding token.Account
	if acc, ok := l.accounts[ata]; ok {
		if err := bin.NewBinDecoder(acc.data).Decode(&holding); err != nil {
			return solana.PublicKey{}, err
		}
	} else {
		holding = token.Account{Mint: mint, Owner: owner, State: token.Initialized}
	}
	holding.Amount += amount

	data, err := encodeBin(&holding)
	if err != nil {
		return solana.PublicKey{}, err
	}
	l.accounts[ata] = &memAccount{
		lamports: RentExemption(len(data)),
		owner:    solana.TokenProgramID,
		data:     data,
	}
	return ata, nil
}

// Balance returns the lamports held by address.
func (l *MemoryLedger) Balance(address solana.PublicKey) uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if acc, ok := l.accounts[address]; ok {
		return acc.lamports
	}
	return 0
}

// TokenBalance returns owner's associated token balance for mint.
func (l *MemoryLedger) TokenBalance(mint, owner solana.PublicKey) uint64 {
	ata, _, err := solana.FindAssociatedTokenAddress(owner, mint)
	if err != nil {
		return 0
	}

	l.mu.RLock()
	defer l.mu.RUnlock()
	if holding, ok := decodeHolding(l.accounts[ata]); ok {
		return holding.Amount
	}
	return 0
}

func (l *MemoryLedger) GetAccount(_ context.Context, address solana.PublicKey) (*types.AccountInfo, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if l.err != nil {
		return nil, networkError(l.err, "failed to get account %s", address)
	}

	acc, ok := l.accounts[address]
	if !ok {
		return nil, types.NewError(types.ErrNotFound, "account %s not found", address)
	}
	return &types.AccountInfo{
		Address:  address,
		Owner:    acc.owner,
		Lamports: acc.lamports,
		Data:     append([]byte(nil), acc.data...),
	}, nil
}

func (l *MemoryLedger) GetProgramAccounts(
	_ context.Context,
	programID solana.PublicKey,
	filter types.AccountFilter,
) ([]*types.AccountInfo, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if l.err != nil {
		return nil, networkError(l.err, "failed to list accounts of %s", programID)
	}

	var out []*types.AccountInfo
	for address, acc := range l.accounts {
		if !acc.owner.Equals(programID) {
			continue
		}
		if len(filter.Bytes) > 0 {
			end := filter.Offset + uint64(len(filter.Bytes))
			if uint64(len(acc.data)) < end || !bytes.Equal(acc.data[filter.Offset:end], filter.Bytes) {
				continue
			}
		}
		out = append(out, &types.AccountInfo{
			Address:  address,
			Owner:    acc.owner,
			Lamports: acc.lamports,
			Data:     append([]byte(nil), acc.data...),
		})
	}

	sort.Slice(out, func(i, j int) bool {
		return bytes.Compare(out[i].Address[:], out[j].Address[:]) < 0
	})
	return out, nil
}

func (l *MemoryLedger) FindSignaturesForReference(
	_ context.Context,
	reference solana.PublicKey,
	commitment rpc.CommitmentType,
) ([]solana.Signature, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if l.err != nil {
		return nil, networkError(l.err, "failed to search signatures for %s", reference)
	}

	var sigs []solana.Signature
	for _, sig := range l.byKey[reference] {
		if meetsCommitment(l.txs[sig].status, commitment) {
			sigs = append(sigs, sig)
		}
	}
	return sigs, nil
}

func (l *MemoryLedger) GetTransactionDetails(_ context.Context, sig solana.Signature) (*types.TransactionDetails, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if l.err != nil {
		return nil, networkError(l.err, "failed to get transaction %s", sig)
	}

	tx, ok := l.txs[sig]
	if !ok || !meetsCommitment(tx.status, rpc.CommitmentConfirmed) {
		return nil, types.NewError(types.ErrNotFound, "transaction %s not found", sig)
	}

	d := *tx.details
	return &d, nil
}

func (l *MemoryLedger) GetCurrencyMetadata(ctx context.Context, mint solana.PublicKey) (*types.CurrencyMetadata, error) {
	acc, err := l.GetAccount(ctx, mint)
	if err != nil {
		return nil, err
	}
	return decodeMint(acc)
}

func (l *MemoryLedger) GetRecentCheckpoint(_ context.Context) (*types.Checkpoint, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.err != nil {
		return nil, networkError(l.err, "failed to get latest blockhash")
	}

	l.slot++
	var seed [8]byte
	binary.LittleEndian.PutUint64(seed[:], l.slot)
	hash := solana.Hash(sha256.Sum256(seed[:]))
	l.blockhashes[hash] = l.slot + blockhashValidSlots

	return &types.Checkpoint{Blockhash: hash, LastValidBlockHeight: l.slot + blockhashValidSlots}, nil
}

// SubmitTransaction verifies signatures, charges the fee and executes every
// instruction. Either all state changes apply or none do.
func (l *MemoryLedger) SubmitTransaction(_ context.Context, tx *solana.Transaction) (solana.Signature, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.err != nil {
		return solana.Signature{}, networkError(l.err, "failed to send transaction")
	}
	if len(tx.Signatures) == 0 || len(tx.Message.AccountKeys) == 0 {
		return solana.Signature{}, types.NewError(types.ErrSubmitFailed, "transaction is not signed")
	}
	if err := tx.VerifySignatures(); err != nil {
		return solana.Signature{}, types.WrapError(types.ErrSubmitFailed, err, "signature verification failed")
	}

	sig := tx.Signatures[0]
	if _, dup := l.txs[sig]; dup {
		return solana.Signature{}, types.NewError(types.ErrSubmitFailed, "transaction %s already processed", sig)
	}
	if expiry, ok := l.blockhashes[tx.Message.RecentBlockhash]; !ok || expiry < l.slot {
		return solana.Signature{}, types.NewError(types.ErrSubmitFailed, "blockhash not found")
	}

	keys := tx.Message.AccountKeys
	run := &execution{ledger: l, working: make(map[solana.PublicKey]*memAccount)}

	preBalances := make([]uint64, len(keys))
	preTokens := run.tokenBalances(keys)
	for i, k := range keys {
		if acc := run.get(k); acc != nil {
			preBalances[i] = acc.lamports
		}
	}

	fee := uint64(LamportsPerSignature) * uint64(tx.Message.Header.NumRequiredSignatures)
	payer := run.get(keys[0])
	if payer == nil || payer.lamports < fee {
		return solana.Signature{}, types.NewError(types.ErrSubmitFailed, "insufficient funds for fee")
	}
	payer.lamports -= fee

	for i, inst := range tx.Message.Instructions {
		if err := run.execute(&tx.Message, inst); err != nil {
			return solana.Signature{}, submitError(fmt.Errorf("error processing instruction %d: %w", i, err))
		}
	}

	postBalances := make([]uint64, len(keys))
	postTokens := run.tokenBalances(keys)
	for i, k := range keys {
		if acc := run.get(k); acc != nil {
			postBalances[i] = acc.lamports
		}
	}
	run.commit()

	l.slot++
	now := time.Now().UTC()
	details := &types.TransactionDetails{
		Signature:         sig,
		Slot:              l.slot,
		BlockTime:         &now,
		Transaction:       tx,
		AccountKeys:       append(solana.PublicKeySlice{}, keys...),
		Fee:               fee,
		PreBalances:       preBalances,
		PostBalances:      postBalances,
		PreTokenBalances:  preTokens,
		PostTokenBalances: postTokens,
	}
	l.txs[sig] = &memTx{details: details, status: l.commitment}

	for _, k := range keys {
		l.byKey[k] = append([]solana.Signature{sig}, l.byKey[k]...)
	}
	return sig, nil
}

func (l *MemoryLedger) GetNetwork() types.Network { return types.NetworkMemory }

func (l *MemoryLedger) Close() {}

// execution is the copy-on-write account view of one transaction.
type execution struct {
	ledger  *MemoryLedger
	working map[solana.PublicKey]*memAccount // nil marks a closed account
}

func (e *execution) get(pk solana.PublicKey) *memAccount {
	if acc, ok := e.working[pk]; ok {
		return acc
	}
	base, ok := e.ledger.accounts[pk]
	if !ok {
		return nil
	}
	acc := base.clone()
	e.working[pk] = acc
	return acc
}

func (e *execution) put(pk solana.PublicKey, acc *memAccount) {
	e.working[pk] = acc
}

func (e *execution) close(pk solana.PublicKey) {
	e.working[pk] = nil
}

func (e *execution) commit() {
	for pk, acc := range e.working {
		if acc == nil {
			delete(e.ledger.accounts, pk)
			continue
		}
		e.ledger.accounts[pk] = acc
	}
}

func (e *execution) tokenBalances(keys []solana.PublicKey) []types.TokenBalance {
	var out []types.TokenBalance
	for i, k := range keys {
		holding, ok := decodeHolding(e.get(k))
		if !ok {
			continue
		}
		tb := types.TokenBalance{
			AccountIndex: uint16(i),
			Owner:        holding.Owner,
			Mint:         holding.Mint,
			Amount:       holding.Amount,
		}
		if mint := e.get(holding.Mint); mint != nil {
			var m token.Mint
			if err := bin.NewBinDecoder(mint.data).Decode(&m); err == nil {
				tb.Decimals = m.Decimals
			}
		}
		out = append(out, tb)
	}
	return out
}

func (e *execution) execute(msg *solana.Message, inst solana.CompiledInstruction) error {
	keys := msg.AccountKeys
	if int(inst.ProgramIDIndex) >= len(keys) {
		return errors.New("program id index out of range")
	}
	programID := keys[inst.ProgramIDIndex]

	metas := make([]*solana.AccountMeta, len(inst.Accounts))
	for i, idx := range inst.Accounts {
		if int(idx) >= len(keys) {
			return errors.New("account index out of range")
		}
		pk := keys[idx]
		writable, err := msg.IsWritable(pk)
		if err != nil {
			return err
		}
		metas[i] = &solana.AccountMeta{PublicKey: pk, IsSigner: msg.IsSigner(pk), IsWritable: writable}
	}

	switch {
	case programID.Equals(solana.SystemProgramID):
		return e.executeSystem(metas, inst.Data)
	case programID.Equals(solana.TokenProgramID):
		return e.executeToken(metas, inst.Data)
	case programID.Equals(solana.MemoProgramID):
		return nil
	case programID.Equals(e.ledger.programID):
		return e.executeProgram(metas, inst.Data)
	default:
		return fmt.Errorf("program %s is not deployed", programID)
	}
}

func (e *execution) executeSystem(metas []*solana.AccountMeta, data []byte) error {
	decoded, err := system.DecodeInstruction(metas, data)
	if err != nil {
		return err
	}
	transfer, ok := decoded.Impl.(*system.Transfer)
	if !ok || transfer.Lamports == nil || len(metas) < 2 {
		return errors.New("unsupported system instruction")
	}
	if !metas[0].IsSigner {
		return errors.New("missing required signature for instruction")
	}
	return e.moveLamports(metas[0].PublicKey, metas[1].PublicKey, *transfer.Lamports)
}

func (e *execution) moveLamports(from, to solana.PublicKey, lamports uint64) error {
	src := e.get(from)
	if src == nil || src.lamports < lamports {
		return &program.ProgramError{Code: systemInsufficientFunds}
	}
	dst := e.get(to)
	if dst == nil {
		dst = &memAccount{owner: solana.SystemProgramID}
		e.put(to, dst)
	}
	src.lamports -= lamports
	dst.lamports += lamports
	return nil
}

func (e *execution) executeToken(metas []*solana.AccountMeta, data []byte) error {
	decoded, err := token.DecodeInstruction(metas, data)
	if err != nil {
		return err
	}
	transfer, ok := decoded.Impl.(*token.TransferChecked)
	if !ok || transfer.Amount == nil || transfer.Decimals == nil || len(metas) < 4 {
		return errors.New("unsupported token instruction")
	}

	source, mint, dest, owner := metas[0], metas[1], metas[2], metas[3]
	if !owner.IsSigner {
		return errors.New("missing required signature for instruction")
	}

	mintAcc := e.get(mint.PublicKey)
	var m token.Mint
	if mintAcc == nil || bin.NewBinDecoder(mintAcc.data).Decode(&m) != nil {
		return errors.New("invalid account data for instruction")
	}
	if m.Decimals != *transfer.Decimals {
		return &program.ProgramError{Code: tokenMintDecimalsMismatch}
	}

	src, ok := decodeHolding(e.get(source.PublicKey))
	if !ok {
		return errors.New("invalid account data for instruction")
	}
	dst, ok := decodeHolding(e.get(dest.PublicKey))
	if !ok {
		return errors.New("invalid account data for instruction")
	}
	if !src.Mint.Equals(mint.PublicKey) || !dst.Mint.Equals(mint.PublicKey) {
		return &program.ProgramError{Code: tokenMintMismatch}
	}
	if !src.Owner.Equals(owner.PublicKey) {
		return &program.ProgramError{Code: tokenOwnerMismatch}
	}
	if src.Amount < *transfer.Amount {
		return &program.ProgramError{Code: tokenInsufficientFunds}
	}
	if source.PublicKey.Equals(dest.PublicKey) {
		return nil
	}

	src.Amount -= *transfer.Amount
	dst.Amount += *transfer.Amount

	for pk, holding := range map[solana.PublicKey]*token.Account{source.PublicKey: src, dest.PublicKey: dst} {
		encoded, err := encodeBin(holding)
		if err != nil {
			return err
		}
		e.get(pk).data = encoded
	}
	return nil
}

func (e *execution) executeProgram(metas []*solana.AccountMeta, data []byte) error {
	inst, err := program.DecodeInstruction(data)
	if err != nil {
		return &program.ProgramError{Code: anchorInstructionDidNotDeserialize}
	}
	programID := e.ledger.programID

	switch inst.Kind {
	case program.KindCreateUserProfile:
		if len(metas) < 3 {
			return errors.New("not enough account keys")
		}
		authority, profile := metas[0], metas[1]
		if !authority.IsSigner {
			return &program.ProgramError{Code: anchorAccountNotSigner}
		}
		want, err := derivation.UserProfileAddress(programID, authority.PublicKey)
		if err := expectAddress(profile.PublicKey, want, err); err != nil {
			return err
		}
		return e.initAccount(authority.PublicKey, profile.PublicKey, &program.UserProfileAccount{
			Authority: authority.PublicKey,
		}, program.UserProfileSpace)

	case program.KindCreatePaymentLink:
		if len(metas) < 4 {
			return errors.New("not enough account keys")
		}
		profileMeta, linkMeta, authority := metas[0], metas[1], metas[2]
		if !authority.IsSigner {
			return &program.ProgramError{Code: anchorAccountNotSigner}
		}
		if !inst.Currency.IsValid() {
			return &program.ProgramError{Code: anchorInstructionDidNotDeserialize}
		}
		wantProfile, err := derivation.UserProfileAddress(programID, authority.PublicKey)
		if err := expectAddress(profileMeta.PublicKey, wantProfile, err); err != nil {
			return err
		}
		profileAcc := e.get(profileMeta.PublicKey)
		if profileAcc == nil {
			return &program.ProgramError{Code: program.CodeAccountNotInitialized}
		}
		profile, err := program.DecodeUserProfile(profileAcc.data)
		if err != nil {
			return &program.ProgramError{Code: program.CodeAccountDiscriminator}
		}
		wantLink, err := derivation.PaymentLinkAddress(programID, authority.PublicKey, profile.LastPaymentLink)
		if err := expectAddress(linkMeta.PublicKey, wantLink, err); err != nil {
			return err
		}
		if profile.LastPaymentLink == 255 {
			return errors.New("program panicked: last_payment_link overflow")
		}

		err = e.initAccount(authority.PublicKey, linkMeta.PublicKey, &program.PaymentLinkAccount{
			Authority: authority.PublicKey,
			Amount:    inst.Amount,
			Currency:  inst.Currency,
			Reference: inst.Reference,
			Idx:       profile.LastPaymentLink,
		}, program.PaymentLinkSpace)
		if err != nil {
			return err
		}

		profile.LastPaymentLink++
		encoded, err := program.EncodeAccount(profile, program.UserProfileSpace)
		if err != nil {
			return err
		}
		profileAcc.data = encoded
		return nil

	case program.KindUpdatePaymentLink:
		if len(metas) < 3 {
			return errors.New("not enough account keys")
		}
		linkMeta, authority := metas[0], metas[1]
		link, linkAcc, err := e.loadLink(linkMeta.PublicKey, authority, inst.Index)
		if err != nil {
			return err
		}
		if inst.NewAmount != nil {
			link.Amount = *inst.NewAmount
		}
		if inst.NewCurrency != nil {
			if !inst.NewCurrency.IsValid() {
				return &program.ProgramError{Code: anchorInstructionDidNotDeserialize}
			}
			link.Currency = *inst.NewCurrency
		}
		encoded, err := program.EncodeAccount(link, program.PaymentLinkSpace)
		if err != nil {
			return err
		}
		linkAcc.data = encoded
		return nil

	case program.KindRemovePaymentLink:
		if len(metas) < 4 {
			return errors.New("not enough account keys")
		}
		linkMeta, authority := metas[1], metas[2]
		_, linkAcc, err := e.loadLink(linkMeta.PublicKey, authority, inst.Index)
		if err != nil {
			return err
		}
		owner := e.get(authority.PublicKey)
		if owner == nil {
			owner = &memAccount{owner: solana.SystemProgramID}
			e.put(authority.PublicKey, owner)
		}
		owner.lamports += linkAcc.lamports
		e.close(linkMeta.PublicKey)
		return nil

	default:
		return &program.ProgramError{Code: anchorInstructionDidNotDeserialize}
	}
}

// loadLink applies the seeds, has_one and signer constraints of update and
// remove, in the order the program checks them.
func (e *execution) loadLink(address solana.PublicKey, authority *solana.AccountMeta, idx uint8) (*program.PaymentLinkAccount, *memAccount, error) {
	acc := e.get(address)
	if acc == nil {
		return nil, nil, &program.ProgramError{Code: program.CodeAccountNotInitialized}
	}
	link, err := program.DecodePaymentLink(acc.data)
	if err != nil {
		return nil, nil, &program.ProgramError{Code: program.CodeAccountDiscriminator}
	}
	if !authority.IsSigner {
		return nil, nil, &program.ProgramError{Code: anchorAccountNotSigner}
	}
	want, err := derivation.PaymentLinkAddress(e.ledger.programID, authority.PublicKey, idx)
	if err := expectAddress(address, want, err); err != nil {
		return nil, nil, err
	}
	if !link.Authority.Equals(authority.PublicKey) {
		return nil, nil, &program.ProgramError{Code: program.CodeConstraintHasOne}
	}
	return link, acc, nil
}

type marshaler interface {
	MarshalWithEncoder(enc *bin.Encoder) error
}

func (e *execution) initAccount(payer, address solana.PublicKey, record marshaler, space int) error {
	if existing := e.get(address); existing != nil {
		return &program.ProgramError{Code: program.CodeAccountInUse}
	}
	data, err := program.EncodeAccount(record, space)
	if err != nil {
		return err
	}

	rent := RentExemption(space)
	funder := e.get(payer)
	if funder == nil || funder.lamports < rent {
		return &program.ProgramError{Code: systemInsufficientFunds}
	}
	funder.lamports -= rent

	e.put(address, &memAccount{lamports: rent, owner: e.ledger.programID, data: data})
	return nil
}

func expectAddress(got solana.PublicKey, want derivation.Address, err error) error {
	if err != nil {
		return err
	}
	if !got.Equals(want.PublicKey) {
		return &program.ProgramError{Code: program.CodeConstraintSeeds}
	}
	return nil
}

func decodeHolding(acc *memAccount) (*token.Account, bool) {
	if acc == nil || !acc.owner.Equals(solana.TokenProgramID) {
		return nil, false
	}
	var holding token.Account
	if err := bin.NewBinDecoder(acc.data).Decode(&holding); err != nil {
		return nil, false
	}
	if holding.Mint.IsZero() {
		return nil, false
	}
	return &holding, true
}

func encodeBin(v any) ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := bin.NewBinEncoder(buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
