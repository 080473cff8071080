package clients

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vitwit/paylink/types"
)

type rpcRequest struct {
	ID     json.RawMessage `json:"id"`
	Method string          `json:"method"`
}

// rpcNode answers sendTransaction with sig and fails every status query.
func rpcNode(t *testing.T, sig solana.Signature, statusCalls *int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		resp := map[string]any{"jsonrpc": "2.0", "id": req.ID}
		switch req.Method {
		case "sendTransaction":
			resp["result"] = sig.String()
		case "getSignatureStatuses":
			atomic.AddInt32(statusCalls, 1)
			resp["error"] = map[string]any{"code": -32005, "message": "node is behind"}
		default:
			resp["error"] = map[string]any{"code": -32601, "message": "method not found"}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
}

func TestSubmitSurfacesStatusOutage(t *testing.T) {
	prev := confirmPollInterval
	confirmPollInterval = 5 * time.Millisecond
	t.Cleanup(func() { confirmPollInterval = prev })

	payer := newKey(t)
	tx, err := solana.NewTransaction(
		[]solana.Instruction{system.NewTransferInstruction(1, payer.PublicKey(), solana.NewWallet().PublicKey()).Build()},
		solana.Hash{1},
		solana.TransactionPayer(payer.PublicKey()),
	)
	require.NoError(t, err)
	_, err = tx.Sign(func(solana.PublicKey) *solana.PrivateKey { return &payer })
	require.NoError(t, err)

	var calls int32
	node := rpcNode(t, tx.Signatures[0], &calls)
	defer node.Close()

	client, err := NewSolanaClient(types.NetworkSolanaLocalnet, node.URL, nil, nil)
	require.NoError(t, err)
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	start := time.Now()
	sig, err := client.SubmitTransaction(ctx, tx)
	assert.Equal(t, tx.Signatures[0], sig)
	assert.Equal(t, types.ErrNetworkUnavailable, types.CodeOf(err))
	assert.EqualValues(t, maxStatusFailures, atomic.LoadInt32(&calls))
	assert.Less(t, time.Since(start), 5*time.Second)
}
