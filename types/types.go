package types

import (
	"time"

	"github.com/gagliardetto/solana-go"
)

// UserProfile mirrors the on-chain profile account of a link owner.
type UserProfile struct {
	// Address of the profile account (derived, never stored off-chain).
	Address solana.PublicKey `json:"address"`

	// Owner is the signer that controls the profile.
	Owner solana.PublicKey `json:"owner"`

	// LastLinkIndex is the next unused link slot. It only ever grows.
	LastLinkIndex uint8 `json:"lastLinkIndex"`
}

// PaymentLink is a request for a fixed amount in one currency.
type PaymentLink struct {
	// Address of the link account.
	Address solana.PublicKey `json:"address"`

	// Owner created the link and receives the payment.
	Owner solana.PublicKey `json:"owner"`

	// Amount in minor units of Currency (lamports for SOL).
	Amount uint64 `json:"amount"`

	Currency CurrencyTag `json:"currency"`

	// Reference is the single-use key a settlement transaction must carry.
	Reference solana.PublicKey `json:"reference"`

	// Index is the owner's slot number assigned at creation.
	Index uint8 `json:"index"`
}

// PaymentLinkPatch carries the optional fields of an update.
// Nil fields are left unchanged.
type PaymentLinkPatch struct {
	Amount   *string      `json:"amount,omitempty"`
	Currency *CurrencyTag `json:"currency,omitempty"`
}

// IsEmpty reports whether the patch changes nothing.
func (p PaymentLinkPatch) IsEmpty() bool {
	return p.Amount == nil && p.Currency == nil
}

// SettlementStatus is the complete user-visible vocabulary of a watcher.
type SettlementStatus string

const (
	StatusWaiting SettlementStatus = "waiting"
	StatusPaid    SettlementStatus = "paid"
	StatusError   SettlementStatus = "error"
)

func (s SettlementStatus) String() string {
	return string(s)
}

// IsTerminal reports whether a watcher stops after reporting s.
func (s SettlementStatus) IsTerminal() bool {
	return s == StatusPaid || s == StatusError
}

// AccountInfo is a raw ledger account.
type AccountInfo struct {
	Address  solana.PublicKey `json:"address"`
	Owner    solana.PublicKey `json:"owner"`
	Lamports uint64           `json:"lamports"`
	Data     []byte           `json:"data"`
}

// AccountFilter selects program accounts whose data contains Bytes at Offset.
type AccountFilter struct {
	Offset uint64
	Bytes  []byte
}

// Checkpoint is a recent blockhash that bounds a transaction's validity.
type Checkpoint struct {
	Blockhash            solana.Hash `json:"blockhash"`
	LastValidBlockHeight uint64      `json:"lastValidBlockHeight"`
}

// CurrencyMetadata is what the ledger knows about a token mint.
type CurrencyMetadata struct {
	Mint     solana.PublicKey `json:"mint"`
	Decimals uint8            `json:"decimals"`
}

// TokenBalance is a token account balance captured in transaction metadata.
type TokenBalance struct {
	AccountIndex uint16           `json:"accountIndex"`
	Owner        solana.PublicKey `json:"owner"`
	Mint         solana.PublicKey `json:"mint"`
	Amount       uint64           `json:"amount"`
	Decimals     uint8            `json:"decimals"`
}

// TransactionDetails is our view of a landed transaction, independent of the
// RPC response format.
type TransactionDetails struct {
	Signature   solana.Signature    `json:"signature"`
	Slot        uint64              `json:"slot"`
	BlockTime   *time.Time          `json:"blockTime,omitempty"`
	Transaction *solana.Transaction `json:"-"`

	// AccountKeys are the static keys followed by any loaded through lookup
	// tables, in the order instruction account indexes refer to them.
	AccountKeys solana.PublicKeySlice `json:"accountKeys"`

	// Err is the ledger's execution error, empty when the transaction succeeded.
	Err string `json:"err,omitempty"`

	Fee               uint64         `json:"fee"`
	PreBalances       []uint64       `json:"preBalances"`
	PostBalances      []uint64       `json:"postBalances"`
	PreTokenBalances  []TokenBalance `json:"preTokenBalances"`
	PostTokenBalances []TokenBalance `json:"postTokenBalances"`
}

// Succeeded reports whether the transaction executed without error.
func (d *TransactionDetails) Succeeded() bool {
	return d.Err == ""
}
