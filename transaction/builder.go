// Package transaction assembles the unsigned settlement transaction a payer
// signs to pay a link.
package transaction

import (
	"context"
	"encoding/base64"
	"time"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/gagliardetto/solana-go/programs/token"
	"github.com/vitwit/paylink/amount"
	"github.com/vitwit/paylink/clients"
	"github.com/vitwit/paylink/logger"
	"github.com/vitwit/paylink/metrics"
	"github.com/vitwit/paylink/types"
)

// Request describes one settlement payment.
type Request struct {
	Payer     solana.PublicKey
	Recipient solana.PublicKey
	Amount    uint64
	Currency  types.CurrencyTag
	Reference solana.PublicKey

	// Memo precedes token transfers when non-empty.
	Memo string
}

// Builder only reads from the ledger.
type Builder struct {
	ledger  clients.Ledger
	codec   *amount.Codec
	log     logger.Logger
	metrics metrics.Recorder
}

func NewBuilder(ledger clients.Ledger, codec *amount.Codec, log logger.Logger, rec metrics.Recorder) *Builder {
	if log == nil {
		log = logger.NoopLogger{}
	}
	if rec == nil {
		rec = metrics.NoopRecorder{}
	}
	return &Builder{ledger: ledger, codec: codec, log: log, metrics: rec}
}

// Build returns an unsigned transaction paying req.Amount of req.Currency to
// req.Recipient, discoverable by req.Reference. The payer is the fee payer.
func (b *Builder) Build(ctx context.Context, req Request) (*solana.Transaction, error) {
	start := time.Now()
	defer func() {
		b.metrics.ObserveLatency("build_transaction", time.Since(start), map[string]string{
			"network": b.ledger.GetNetwork().String(),
		})
	}()

	if err := validateRequest(req); err != nil {
		return nil, err
	}

	currency, err := b.codec.Currency(req.Currency)
	if err != nil {
		return nil, err
	}

	var instructions []solana.Instruction

	switch currency.Tag {
	case types.CurrencySOL:
		transfer := system.NewTransferInstruction(req.Amount, req.Payer, req.Recipient).Build()
		tagged, err := WithReference(transfer, req.Reference)
		if err != nil {
			return nil, err
		}
		instructions = append(instructions, tagged)

	case types.CurrencyUSDC:
		meta, err := b.codec.Metadata(ctx, currency.Mint)
		if err != nil {
			return nil, err
		}

		source, _, err := solana.FindAssociatedTokenAddress(req.Payer, currency.Mint)
		if err != nil {
			return nil, types.WrapError(types.ErrInvalidAddress, err, "no token account for payer %s", req.Payer)
		}
		dest, _, err := solana.FindAssociatedTokenAddress(req.Recipient, currency.Mint)
		if err != nil {
			return nil, types.WrapError(types.ErrInvalidAddress, err, "no token account for recipient %s", req.Recipient)
		}

		if req.Memo != "" {
			instructions = append(instructions, NewMemoInstruction(req.Memo))
		}

		transfer := token.NewTransferCheckedInstruction(
			req.Amount,
			meta.Decimals,
			source,
			currency.Mint,
			dest,
			req.Payer,
			nil,
		).Build()
		tagged, err := WithReference(transfer, req.Reference)
		if err != nil {
			return nil, err
		}
		instructions = append(instructions, tagged)

	default:
		return nil, types.NewError(types.ErrUnsupportedCurrency, "unsupported currency %s", currency.Symbol)
	}

	checkpoint, err := b.ledger.GetRecentCheckpoint(ctx)
	if err != nil {
		if types.KindOf(err) != types.KindNetwork {
			err = types.WrapError(types.ErrNetworkUnavailable, err, "failed to fetch recent blockhash")
		}
		return nil, err
	}

	tx, err := solana.NewTransaction(instructions, checkpoint.Blockhash, solana.TransactionPayer(req.Payer))
	if err != nil {
		return nil, types.WrapError(types.ErrSubmitFailed, err, "failed to assemble transaction")
	}

	b.log.Debug("settlement transaction built", map[string]any{
		"payer":     req.Payer.String(),
		"recipient": req.Recipient.String(),
		"amount":    req.Amount,
		"currency":  currency.Symbol,
		"reference": req.Reference.String(),
	})

	return tx, nil
}

func validateRequest(req Request) error {
	if req.Amount == 0 {
		return types.NewError(types.ErrInvalidAmount, "amount must be greater than zero")
	}
	if req.Payer.IsZero() {
		return types.NewError(types.ErrInvalidAddress, "payer is required")
	}
	if req.Recipient.IsZero() {
		return types.NewError(types.ErrInvalidAddress, "recipient is required")
	}
	if req.Reference.IsZero() {
		return types.NewError(types.ErrInvalidAddress, "reference is required")
	}
	return nil
}

// WithReference appends reference to inst as a read-only, non-signer key.
func WithReference(inst solana.Instruction, reference solana.PublicKey) (solana.Instruction, error) {
	data, err := inst.Data()
	if err != nil {
		return nil, err
	}

	accounts := make(solana.AccountMetaSlice, 0, len(inst.Accounts())+1)
	accounts = append(accounts, inst.Accounts()...)
	accounts = append(accounts, solana.Meta(reference))

	return solana.NewInstruction(inst.ProgramID(), accounts, data), nil
}

// NewMemoInstruction records a UTF-8 note without any signer.
func NewMemoInstruction(memo string) solana.Instruction {
	return solana.NewInstruction(solana.MemoProgramID, solana.AccountMetaSlice{}, []byte(memo))
}

// Encode serializes tx to base64 wire format. Missing signatures are
// written as zero slots for the wallet to fill in.
func Encode(tx *solana.Transaction) (string, error) {
	out := *tx
	required := int(tx.Message.Header.NumRequiredSignatures)
	if len(out.Signatures) < required {
		sigs := make([]solana.Signature, required)
		copy(sigs, tx.Signatures)
		out.Signatures = sigs
	}

	raw, err := out.MarshalBinary()
	if err != nil {
		return "", types.WrapError(types.ErrSubmitFailed, err, "failed to serialize transaction")
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

// Decode parses a base64 transaction produced by Encode or a wallet.
func Decode(encoded string) (*solana.Transaction, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, types.WrapError(types.ErrSemanticMismatch, err, "invalid base64 transaction")
	}
	tx, err := solana.TransactionFromDecoder(bin.NewBinDecoder(raw))
	if err != nil {
		return nil, types.WrapError(types.ErrSemanticMismatch, err, "failed to decode transaction")
	}
	return tx, nil
}
