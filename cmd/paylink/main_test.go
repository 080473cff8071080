package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vitwit/paylink/types"
)

func flagsCmd() *cobra.Command {
	root := newRootCmd()
	cmd, _, _ := root.Find([]string{"link", "list"})
	_ = cmd.InheritedFlags()
	return cmd
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := loadConfig(flagsCmd(), "")
	require.NoError(t, err)
	assert.Equal(t, types.NetworkSolanaDevnet, cfg.Network)
	assert.Equal(t, types.DefaultPollInterval, cfg.Poll.Interval)
	assert.Nil(t, cfg.Redis)
}

func TestLoadConfigEnvironment(t *testing.T) {
	t.Setenv("PAYLINK_NETWORK", "solana-localnet")
	t.Setenv("PAYLINK_POLL_INTERVAL", "250ms")
	t.Setenv("PAYLINK_MEMO", "invoice-7")

	cfg, err := loadConfig(flagsCmd(), "")
	require.NoError(t, err)
	assert.Equal(t, types.NetworkSolanaLocalnet, cfg.Network)
	assert.Equal(t, 250*time.Millisecond, cfg.Poll.Interval)
	assert.Equal(t, "invoice-7", cfg.Memo)
	assert.Equal(t, "http://127.0.0.1:8899", cfg.RPCEndpoint())
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "paylink.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
network: solana-mainnet
rpc_url: https://rpc.example.com
poll:
  failure_threshold: 3
redis:
  addr: localhost:6379
  ttl: 1h
`), 0o600))

	cfg, err := loadConfig(flagsCmd(), path)
	require.NoError(t, err)
	assert.Equal(t, types.NetworkSolanaMainnet, cfg.Network)
	assert.Equal(t, "https://rpc.example.com", cfg.RPCUrl)
	assert.Equal(t, 3, cfg.Poll.FailureThreshold)
	require.NotNil(t, cfg.Redis)
	assert.Equal(t, time.Hour, cfg.Redis.TTL)
}

func TestLoadConfigRejectsBadNetwork(t *testing.T) {
	t.Setenv("PAYLINK_NETWORK", "ethereum")

	_, err := loadConfig(flagsCmd(), "")
	assert.Error(t, err)
}

func TestDemoSettles(t *testing.T) {
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"demo", "--amount", "2.5", "--currency", "usdc", "--log-level", "error"})

	require.NoError(t, root.Execute())
	assert.Contains(t, out.String(), `"display": "2.5 USDC"`)
	assert.Contains(t, out.String(), ": waiting")
	assert.Contains(t, out.String(), ": paid")
	assert.Contains(t, out.String(), "signature: ")
}

func TestSignerFromEnv(t *testing.T) {
	key := solana.NewWallet().PrivateKey
	t.Setenv(privateKeyEnv, key.String())

	flags := &globalFlags{keypair: "/does/not/exist.json"}
	got, err := flags.signer()
	require.NoError(t, err)
	assert.True(t, got.PublicKey().Equals(key.PublicKey()))
}
