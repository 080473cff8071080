package clients

import (
	"context"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/vitwit/paylink/types"
)

// Ledger is everything the module reads from or writes to the chain.
// Implementations must be safe for concurrent use; watchers share one.
type Ledger interface {
	// GetAccount returns NOT_FOUND when the account does not exist.
	GetAccount(ctx context.Context, address solana.PublicKey) (*types.AccountInfo, error)
	GetProgramAccounts(ctx context.Context, program solana.PublicKey, filter types.AccountFilter) ([]*types.AccountInfo, error)

	// FindSignaturesForReference lists, newest first, the signatures of
	// transactions that mention reference and reached at least commitment.
	FindSignaturesForReference(ctx context.Context, reference solana.PublicKey, commitment rpc.CommitmentType) ([]solana.Signature, error)
	GetTransactionDetails(ctx context.Context, sig solana.Signature) (*types.TransactionDetails, error)

	GetCurrencyMetadata(ctx context.Context, mint solana.PublicKey) (*types.CurrencyMetadata, error)
	GetRecentCheckpoint(ctx context.Context) (*types.Checkpoint, error)

	// SubmitTransaction sends a signed transaction and waits until it is
	// confirmed or rejected.
	SubmitTransaction(ctx context.Context, tx *solana.Transaction) (solana.Signature, error)

	GetNetwork() types.Network
	Close()
}
