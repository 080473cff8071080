package clients

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"time"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/token"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/gagliardetto/solana-go/rpc/jsonrpc"
	"github.com/vitwit/paylink/logger"
	"github.com/vitwit/paylink/metrics"
	"github.com/vitwit/paylink/program"
	"github.com/vitwit/paylink/types"
)

// signatureSearchLimit bounds one getSignaturesForAddress page. A reference
// is single use, so more than a handful of hits is already abnormal.
const signatureSearchLimit = 1000

// confirmPollInterval paces getSignatureStatuses while waiting for a submit.
var confirmPollInterval = 2 * time.Second

// maxStatusFailures consecutive failed status calls end a submit with
// NETWORK_UNAVAILABLE instead of waiting out the context.
const maxStatusFailures = 3

// SolanaClient is the Ledger backed by a Solana JSON-RPC node.
type SolanaClient struct {
	network types.Network
	rpcURL  string
	client  *rpc.Client
	log     logger.Logger
	metrics metrics.Recorder
}

var _ Ledger = (*SolanaClient)(nil)

// NewSolanaClient creates a client for the given cluster endpoint.
func NewSolanaClient(network types.Network, rpcURL string, log logger.Logger, rec metrics.Recorder) (*SolanaClient, error) {
	if rpcURL == "" {
		rpcURL = network.DefaultRPCUrl()
	}
	if rpcURL == "" {
		return nil, types.NewError(types.ErrConfigError, "no rpc url for network %s", network)
	}
	if log == nil {
		log = logger.NoopLogger{}
	}
	if rec == nil {
		rec = metrics.NoopRecorder{}
	}

	return &SolanaClient{
		network: network,
		rpcURL:  rpcURL,
		client:  rpc.New(rpcURL),
		log:     log,
		metrics: rec,
	}, nil
}

func (c *SolanaClient) observe(op string, start time.Time) {
	c.metrics.ObserveLatency("rpc_"+op, time.Since(start), map[string]string{"network": c.network.String()})
}

// GetAccount fetches raw account data.
func (c *SolanaClient) GetAccount(ctx context.Context, address solana.PublicKey) (*types.AccountInfo, error) {
	defer c.observe("get_account", time.Now())

	out, err := c.client.GetAccountInfoWithOpts(ctx, address, &rpc.GetAccountInfoOpts{
		Encoding:   solana.EncodingBase64,
		Commitment: rpc.CommitmentConfirmed,
	})
	if errors.Is(err, rpc.ErrNotFound) || (err == nil && (out == nil || out.Value == nil)) {
		return nil, types.NewError(types.ErrNotFound, "account %s not found", address)
	}
	if err != nil {
		return nil, networkError(err, "failed to get account %s", address)
	}

	return toAccountInfo(address, out.Value), nil
}

// GetProgramAccounts lists accounts of program matching a memcmp filter.
func (c *SolanaClient) GetProgramAccounts(
	ctx context.Context,
	programID solana.PublicKey,
	filter types.AccountFilter,
) ([]*types.AccountInfo, error) {
	defer c.observe("get_program_accounts", time.Now())

	opts := &rpc.GetProgramAccountsOpts{
		Encoding:   solana.EncodingBase64,
		Commitment: rpc.CommitmentConfirmed,
	}
	if len(filter.Bytes) > 0 {
		opts.Filters = []rpc.RPCFilter{{
			Memcmp: &rpc.RPCFilterMemcmp{
				Offset: filter.Offset,
				Bytes:  solana.Base58(filter.Bytes),
			},
		}}
	}

	out, err := c.client.GetProgramAccountsWithOpts(ctx, programID, opts)
	if err != nil {
		return nil, networkError(err, "failed to list accounts of %s", programID)
	}

	accounts := make([]*types.AccountInfo, 0, len(out))
	for _, keyed := range out {
		if keyed == nil || keyed.Account == nil {
			continue
		}
		accounts = append(accounts, toAccountInfo(keyed.Pubkey, keyed.Account))
	}
	return accounts, nil
}

func toAccountInfo(address solana.PublicKey, acc *rpc.Account) *types.AccountInfo {
	info := &types.AccountInfo{
		Address:  address,
		Owner:    acc.Owner,
		Lamports: acc.Lamports,
	}
	if acc.Data != nil {
		info.Data = acc.Data.GetBinary()
	}
	return info
}

// FindSignaturesForReference queries the signatures that touched reference.
// Entries still at "processed" are dropped even if the node returns them.
func (c *SolanaClient) FindSignaturesForReference(
	ctx context.Context,
	reference solana.PublicKey,
	commitment rpc.CommitmentType,
) ([]solana.Signature, error) {
	defer c.observe("find_signatures", time.Now())

	if commitment != rpc.CommitmentFinalized {
		commitment = rpc.CommitmentConfirmed
	}

	limit := signatureSearchLimit
	out, err := c.client.GetSignaturesForAddressWithOpts(ctx, reference, &rpc.GetSignaturesForAddressOpts{
		Limit:      &limit,
		Commitment: commitment,
	})
	if err != nil {
		return nil, networkError(err, "failed to search signatures for %s", reference)
	}

	sigs := make([]solana.Signature, 0, len(out))
	for _, s := range out {
		if s == nil || !meetsCommitment(s.ConfirmationStatus, commitment) {
			continue
		}
		sigs = append(sigs, s.Signature)
	}
	return sigs, nil
}

func meetsCommitment(status rpc.ConfirmationStatusType, want rpc.CommitmentType) bool {
	switch status {
	case rpc.ConfirmationStatusFinalized:
		return true
	case rpc.ConfirmationStatusConfirmed:
		return want != rpc.CommitmentFinalized
	default:
		return false
	}
}

// GetTransactionDetails loads a confirmed transaction with its metadata.
func (c *SolanaClient) GetTransactionDetails(ctx context.Context, sig solana.Signature) (*types.TransactionDetails, error) {
	defer c.observe("get_transaction", time.Now())

	version := uint64(0)
	out, err := c.client.GetTransaction(ctx, sig, &rpc.GetTransactionOpts{
		Encoding:                       solana.EncodingBase64,
		Commitment:                     rpc.CommitmentConfirmed,
		MaxSupportedTransactionVersion: &version,
	})
	if errors.Is(err, rpc.ErrNotFound) || (err == nil && (out == nil || out.Transaction == nil)) {
		return nil, types.NewError(types.ErrNotFound, "transaction %s not found", sig)
	}
	if err != nil {
		return nil, networkError(err, "failed to get transaction %s", sig)
	}

	tx, err := out.Transaction.GetTransaction()
	if err != nil {
		return nil, types.WrapError(types.ErrSemanticMismatch, err, "failed to decode transaction %s", sig)
	}

	details := &types.TransactionDetails{
		Signature:   sig,
		Slot:        out.Slot,
		Transaction: tx,
		AccountKeys: append(solana.PublicKeySlice{}, tx.Message.AccountKeys...),
	}
	if out.BlockTime != nil {
		t := out.BlockTime.Time()
		details.BlockTime = &t
	}

	if meta := out.Meta; meta != nil {
		if meta.Err != nil {
			details.Err = describeTxError(meta.Err)
		}
		details.Fee = meta.Fee
		details.PreBalances = meta.PreBalances
		details.PostBalances = meta.PostBalances
		details.PreTokenBalances = toTokenBalances(meta.PreTokenBalances)
		details.PostTokenBalances = toTokenBalances(meta.PostTokenBalances)

		details.AccountKeys = append(details.AccountKeys, meta.LoadedAddresses.Writable...)
		details.AccountKeys = append(details.AccountKeys, meta.LoadedAddresses.ReadOnly...)
	}

	return details, nil
}

func toTokenBalances(in []rpc.TokenBalance) []types.TokenBalance {
	out := make([]types.TokenBalance, 0, len(in))
	for _, b := range in {
		tb := types.TokenBalance{
			AccountIndex: b.AccountIndex,
			Mint:         b.Mint,
		}
		if b.Owner != nil {
			tb.Owner = *b.Owner
		}
		if b.UiTokenAmount != nil {
			tb.Decimals = b.UiTokenAmount.Decimals
			if amount, err := strconv.ParseUint(b.UiTokenAmount.Amount, 10, 64); err == nil {
				tb.Amount = amount
			}
		}
		out = append(out, tb)
	}
	return out
}

// GetCurrencyMetadata reads a mint account and returns its decimals.
func (c *SolanaClient) GetCurrencyMetadata(ctx context.Context, mint solana.PublicKey) (*types.CurrencyMetadata, error) {
	acc, err := c.GetAccount(ctx, mint)
	if err != nil {
		return nil, err
	}
	return decodeMint(acc)
}

func decodeMint(acc *types.AccountInfo) (*types.CurrencyMetadata, error) {
	if !acc.Owner.Equals(solana.TokenProgramID) {
		return nil, types.NewError(types.ErrMetadataUnavailable, "account %s is not a token mint", acc.Address)
	}

	var mint token.Mint
	if err := bin.NewBinDecoder(acc.Data).Decode(&mint); err != nil {
		return nil, types.WrapError(types.ErrMetadataUnavailable, err, "failed to decode mint %s", acc.Address)
	}
	if !mint.IsInitialized {
		return nil, types.NewError(types.ErrMetadataUnavailable, "mint %s is not initialized", acc.Address)
	}

	return &types.CurrencyMetadata{Mint: acc.Address, Decimals: mint.Decimals}, nil
}

// GetRecentCheckpoint returns a finalized blockhash for new transactions.
func (c *SolanaClient) GetRecentCheckpoint(ctx context.Context) (*types.Checkpoint, error) {
	defer c.observe("get_latest_blockhash", time.Now())

	out, err := c.client.GetLatestBlockhash(ctx, rpc.CommitmentFinalized)
	if err != nil {
		return nil, networkError(err, "failed to get latest blockhash")
	}
	if out == nil || out.Value == nil {
		return nil, types.NewError(types.ErrNetworkUnavailable, "empty blockhash response")
	}

	return &types.Checkpoint{
		Blockhash:            out.Value.Blockhash,
		LastValidBlockHeight: out.Value.LastValidBlockHeight,
	}, nil
}

// SubmitTransaction broadcasts a signed transaction and polls its status
// until it is confirmed, fails, or ctx expires.
func (c *SolanaClient) SubmitTransaction(ctx context.Context, tx *solana.Transaction) (solana.Signature, error) {
	defer c.observe("submit", time.Now())

	sig, err := c.client.SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{
		PreflightCommitment: rpc.CommitmentConfirmed,
	})
	if err != nil {
		var rpcErr *jsonrpc.RPCError
		if errors.As(err, &rpcErr) {
			c.log.Warn("transaction rejected by node", map[string]any{
				"code":  rpcErr.Code,
				"error": rpcErr.Message,
			})
			return solana.Signature{}, submitError(err)
		}
		return solana.Signature{}, networkError(err, "failed to send transaction")
	}

	c.log.Debug("transaction sent", map[string]any{"signature": sig.String()})

	ticker := time.NewTicker(confirmPollInterval)
	defer ticker.Stop()

	failures := 0
	for {
		status, err := c.client.GetSignatureStatuses(ctx, false, sig)
		if err != nil && ctx.Err() == nil {
			failures++
			if failures >= maxStatusFailures {
				return sig, networkError(err, "failed to get status of transaction %s", sig)
			}
		} else {
			failures = 0
		}
		if err == nil && status != nil && len(status.Value) > 0 && status.Value[0] != nil {
			st := status.Value[0]
			if st.Err != nil {
				return sig, submitError(errors.New(describeTxError(st.Err)))
			}
			if st.ConfirmationStatus == rpc.ConfirmationStatusConfirmed ||
				st.ConfirmationStatus == rpc.ConfirmationStatusFinalized {
				c.log.Info("transaction confirmed", map[string]any{
					"signature": sig.String(),
					"slot":      st.Slot,
				})
				return sig, nil
			}
		}

		select {
		case <-ctx.Done():
			return sig, networkError(ctx.Err(), "transaction %s not confirmed", sig)
		case <-ticker.C:
		}
	}
}

var customCodePattern = regexp.MustCompile(`"Custom":\s*(\d+)`)

// describeTxError renders a status error as text. Custom instruction errors
// are rewritten into the form ParseProgramError recognizes.
func describeTxError(v any) string {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	if m := customCodePattern.FindSubmatch(raw); m != nil {
		if code, err := strconv.ParseUint(string(m[1]), 10, 32); err == nil {
			return (&program.ProgramError{Code: uint32(code)}).Error()
		}
	}
	return string(raw)
}

func (c *SolanaClient) GetNetwork() types.Network { return c.network }

func (c *SolanaClient) Close() {
	_ = c.client.Close()
}
