package main

import (
	"context"
	"fmt"
	"os"

	"github.com/gagliardetto/solana-go"
	"github.com/spf13/cobra"
	"github.com/vitwit/paylink"
	"github.com/vitwit/paylink/logger"
	"github.com/vitwit/paylink/types"
	"github.com/vitwit/paylink/utils"
)

type globalFlags struct {
	configFile string
	keypair    string
	network    string
	rpcURL     string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}

	root := &cobra.Command{
		Use:   "paylink",
		Short: "Create Solana payment links and watch them settle",
		Long: `paylink stores fixed-amount payment requests on chain and verifies settlement
by polling the ledger for the transaction that carries each link's reference key.`,
		Version:       paylink.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&flags.configFile, "config", "", "config file (yaml, json or toml)")
	pf.StringVar(&flags.keypair, "keypair", "~/.config/solana/id.json", "solana-keygen keypair file used to sign")
	pf.StringVar(&flags.network, "network", string(types.NetworkSolanaDevnet), "solana-mainnet, solana-devnet, solana-localnet or memory")
	pf.StringVar(&flags.rpcURL, "rpc-url", "", "JSON-RPC endpoint, defaults to the network's public endpoint")
	pf.StringVar(&flags.logLevel, "log-level", "info", "debug, info, warn or error")

	root.AddCommand(
		newProfileCmd(flags),
		newLinkCmd(flags),
		newPayCmd(flags),
		newWatchCmd(flags),
		newServeCmd(flags),
		newDemoCmd(flags),
	)
	return root
}

// app is what every command needs once configuration is resolved.
type app struct {
	pl  *paylink.PayLink
	log *logger.ZapLogger
	cfg *types.Config
}

func newApp(cmd *cobra.Command, flags *globalFlags, opts ...paylink.Option) (*app, error) {
	cfg, err := loadConfig(cmd, flags.configFile)
	if err != nil {
		return nil, err
	}
	return newAppFromConfig(cfg, opts...)
}

func newAppFromConfig(cfg *types.Config, opts ...paylink.Option) (*app, error) {
	log := logger.NewZapLogger(cfg.LogLevel, "console")
	opts = append([]paylink.Option{paylink.WithLogger(log)}, opts...)

	pl, err := paylink.New(cfg, opts...)
	if err != nil {
		return nil, err
	}
	return &app{pl: pl, log: log, cfg: cfg}, nil
}

func (a *app) Close() {
	a.pl.Close()
	_ = a.log.Sync()
}

// privateKeyEnv holds a base58 secret key that takes precedence over
// --keypair, for hosts where writing a keypair file is awkward.
const privateKeyEnv = "PAYLINK_PRIVATE_KEY"

func (f *globalFlags) signer() (solana.PrivateKey, error) {
	if raw := os.Getenv(privateKeyEnv); raw != "" {
		return utils.PrivateKeyFromBase58(raw)
	}
	return utils.LoadKeypair(f.keypair)
}

// ownerArg returns the first argument as a public key, or the keypair's
// public key when no argument is given.
func (f *globalFlags) ownerArg(args []string) (solana.PublicKey, error) {
	if len(args) > 0 {
		return utils.ValidateAddress(args[0])
	}
	key, err := f.signer()
	if err != nil {
		return solana.PublicKey{}, err
	}
	return key.PublicKey(), nil
}

func (a *app) linkArg(ctx context.Context, raw string) (*types.PaymentLink, error) {
	address, err := utils.ValidateAddress(raw)
	if err != nil {
		return nil, err
	}
	return a.pl.GetPaymentLink(ctx, address)
}

// linkView is the printable form of a link.
type linkView struct {
	*types.PaymentLink
	Display string `json:"display"`
}

func (a *app) view(ctx context.Context, link *types.PaymentLink) (*linkView, error) {
	display, err := a.pl.FormatAmount(ctx, link)
	if err != nil {
		return nil, err
	}
	return &linkView{PaymentLink: link, Display: fmt.Sprintf("%s %s", display, link.Currency)}, nil
}

func printJSON(cmd *cobra.Command, v any) error {
	out, err := utils.NormalizeJSON(v)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return err
}
