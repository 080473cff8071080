// Package verification decides whether a landed transaction settles a
// payment link. It is pure: the caller fetches the transaction.
package verification

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/gagliardetto/solana-go/programs/token"
	"github.com/vitwit/paylink/types"
)

// Expectation is what a settlement transaction must deliver.
type Expectation struct {
	Recipient solana.PublicKey
	Amount    uint64
	Currency  types.Currency
	Reference solana.PublicKey
}

// NewExpectation derives the expectation of a link whose currency has
// already been resolved.
func NewExpectation(link *types.PaymentLink, currency types.Currency) Expectation {
	return Expectation{
		Recipient: link.Owner,
		Amount:    link.Amount,
		Currency:  currency,
		Reference: link.Reference,
	}
}

// Result reports the outcome of VerifyTransfer.
type Result struct {
	IsValid       bool             `json:"isValid"`
	InvalidReason string           `json:"invalidReason,omitempty"`
	Detail        string           `json:"detail,omitempty"`
	Signature     solana.Signature `json:"signature"`
	Payer         solana.PublicKey `json:"payer,omitempty"`
	Amount        uint64           `json:"amount,omitempty"`
}

// Err returns a SEMANTIC_MISMATCH error for invalid results and nil otherwise.
func (r *Result) Err() error {
	if r.IsValid {
		return nil
	}
	msg := r.InvalidReason
	if r.Detail != "" {
		msg = fmt.Sprintf("%s: %s", r.InvalidReason, r.Detail)
	}
	return types.NewError(types.ErrSemanticMismatch, "%s", msg)
}

func invalid(sig solana.Signature, reason, format string, args ...any) *Result {
	return &Result{
		Signature:     sig,
		InvalidReason: reason,
		Detail:        fmt.Sprintf(format, args...),
	}
}

// referenced is the instruction that lists the reference among its keys.
type referenced struct {
	programID solana.PublicKey
	accounts  []*solana.AccountMeta
	indexes   []uint16
	data      []byte
}

// VerifyTransfer checks that details pays exp exactly. The instruction that
// carries the reference must itself be the transfer, and the recipient's
// balance must have moved by exactly the expected amount.
func VerifyTransfer(details *types.TransactionDetails, exp Expectation) *Result {
	if details == nil || details.Transaction == nil {
		return invalid(solana.Signature{}, ReasonTransactionMissing, "no transaction")
	}
	sig := details.Signature

	if !details.Succeeded() {
		return invalid(sig, ReasonTransactionFailed, "%s", details.Err)
	}

	keys := details.AccountKeys
	if len(keys) == 0 {
		keys = details.Transaction.Message.AccountKeys
	}

	inst, ok := findReferenced(details.Transaction, keys, exp.Reference)
	if !ok {
		return invalid(sig, ReasonReferenceNotFound, "reference %s", exp.Reference)
	}

	switch {
	case exp.Currency.Native:
		return verifyNative(details, inst, exp)
	case !exp.Currency.Mint.IsZero():
		return verifyToken(details, inst, exp)
	default:
		return invalid(sig, ReasonUnsupportedCurrency, "currency %s", exp.Currency.Symbol)
	}
}

func findReferenced(tx *solana.Transaction, keys solana.PublicKeySlice, reference solana.PublicKey) (*referenced, bool) {
	for _, inst := range tx.Message.Instructions {
		if int(inst.ProgramIDIndex) >= len(keys) {
			continue
		}

		accounts := make([]*solana.AccountMeta, 0, len(inst.Accounts))
		found, valid := false, true
		for _, idx := range inst.Accounts {
			if int(idx) >= len(keys) {
				valid = false
				break
			}
			pk := keys[idx]
			found = found || pk.Equals(reference)
			accounts = append(accounts, &solana.AccountMeta{PublicKey: pk, IsSigner: tx.Message.IsSigner(pk)})
		}

		if found && valid {
			return &referenced{
				programID: keys[inst.ProgramIDIndex],
				accounts:  accounts,
				indexes:   inst.Accounts,
				data:      inst.Data,
			}, true
		}
	}
	return nil, false
}

func verifyNative(details *types.TransactionDetails, inst *referenced, exp Expectation) *Result {
	sig := details.Signature

	if !inst.programID.Equals(solana.SystemProgramID) {
		return invalid(sig, ReasonNotATransferInstruction, "program %s", inst.programID)
	}
	decoded, err := system.DecodeInstruction(inst.accounts, inst.data)
	if err != nil {
		return invalid(sig, ReasonNotATransferInstruction, "%v", err)
	}
	transfer, ok := decoded.Impl.(*system.Transfer)
	if !ok || transfer.Lamports == nil || len(inst.accounts) < 2 {
		return invalid(sig, ReasonNotATransferInstruction, "system instruction is not a transfer")
	}

	from, to := inst.accounts[0].PublicKey, inst.accounts[1].PublicKey
	if !to.Equals(exp.Recipient) {
		return invalid(sig, ReasonRecipientMismatch, "paid %s, want %s", to, exp.Recipient)
	}
	if *transfer.Lamports != exp.Amount {
		return invalid(sig, ReasonAmountMismatch, "paid %d, want %d", *transfer.Lamports, exp.Amount)
	}

	idx := int(inst.indexes[1])
	if idx >= len(details.PreBalances) || idx >= len(details.PostBalances) {
		return invalid(sig, ReasonBalanceMismatch, "no balances recorded for recipient")
	}
	post := details.PostBalances[idx]
	if idx == 0 {
		// the recipient paid the fee
		post += details.Fee
	}
	pre := details.PreBalances[idx]
	if post < pre || post-pre != exp.Amount {
		return invalid(sig, ReasonBalanceMismatch, "balance moved from %d to %d, want +%d", pre, post, exp.Amount)
	}

	return &Result{IsValid: true, Signature: sig, Payer: from, Amount: *transfer.Lamports}
}

func verifyToken(details *types.TransactionDetails, inst *referenced, exp Expectation) *Result {
	sig := details.Signature
	mint := exp.Currency.Mint

	if !inst.programID.Equals(solana.TokenProgramID) {
		return invalid(sig, ReasonNotATransferCheckedInstruction, "program %s", inst.programID)
	}
	decoded, err := token.DecodeInstruction(inst.accounts, inst.data)
	if err != nil {
		return invalid(sig, ReasonNotATransferCheckedInstruction, "%v", err)
	}
	checked, ok := decoded.Impl.(*token.TransferChecked)
	if !ok || checked.Amount == nil || len(inst.accounts) < 4 {
		return invalid(sig, ReasonNotATransferCheckedInstruction, "token instruction is not transfer_checked")
	}

	gotMint, dest, owner := inst.accounts[1].PublicKey, inst.accounts[2].PublicKey, inst.accounts[3].PublicKey
	if !gotMint.Equals(mint) {
		return invalid(sig, ReasonMintMismatch, "paid in %s, want %s", gotMint, mint)
	}

	destIdx := inst.indexes[2]
	post, hasPost := findTokenBalance(details.PostTokenBalances, destIdx, mint)
	ata, _, err := solana.FindAssociatedTokenAddress(exp.Recipient, mint)
	if err != nil || !ata.Equals(dest) {
		return invalid(sig, ReasonRecipientMismatch, "paid to token account %s, want %s", dest, ata)
	}
	if *checked.Amount != exp.Amount {
		return invalid(sig, ReasonAmountMismatch, "paid %d, want %d", *checked.Amount, exp.Amount)
	}

	if !hasPost {
		return invalid(sig, ReasonBalanceMismatch, "no token balance recorded for %s", dest)
	}
	var preAmount uint64
	if pre, ok := findTokenBalance(details.PreTokenBalances, destIdx, mint); ok {
		preAmount = pre.Amount
	}
	if post.Amount < preAmount || post.Amount-preAmount != exp.Amount {
		return invalid(sig, ReasonBalanceMismatch, "token balance moved from %d to %d, want +%d", preAmount, post.Amount, exp.Amount)
	}

	return &Result{IsValid: true, Signature: sig, Payer: owner, Amount: *checked.Amount}
}

func findTokenBalance(balances []types.TokenBalance, index uint16, mint solana.PublicKey) (types.TokenBalance, bool) {
	for _, b := range balances {
		if b.AccountIndex == index && b.Mint.Equals(mint) {
			return b, true
		}
	}
	return types.TokenBalance{}, false
}
