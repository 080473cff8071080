package main

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/spf13/cobra"
	"github.com/vitwit/paylink"
	"github.com/vitwit/paylink/clients"
	"github.com/vitwit/paylink/transaction"
	"github.com/vitwit/paylink/types"
)

// newDemoCmd walks one link from creation to settlement on an in-process
// ledger. Nothing touches a real cluster.
func newDemoCmd(flags *globalFlags) *cobra.Command {
	var amount, currency string

	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Create, pay and watch a link on an in-memory ledger",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			tag, err := types.ParseCurrency(currency)
			if err != nil {
				return err
			}

			ledger, shop, payer, err := seedLedger()
			if err != nil {
				return err
			}

			cfg, err := loadConfig(cmd, flags.configFile)
			if err != nil {
				return err
			}
			cfg.Network = types.NetworkMemory
			cfg.RPCUrl = ""
			cfg.USDCMint = demoMint.String()

			a, err := newAppFromConfig(cfg, paylink.WithLedger(ledger))
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			if _, err := a.pl.CreateUserProfile(ctx, shop); err != nil {
				return err
			}
			link, err := a.pl.CreatePaymentLink(ctx, shop, amount, tag)
			if err != nil {
				return err
			}
			view, err := a.view(ctx, link)
			if err != nil {
				return err
			}
			if err := printJSON(cmd, view); err != nil {
				return err
			}

			encoded, err := a.pl.BuildSettlementTransaction(ctx, payer.PublicKey(), link)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "transaction: %s\n", encoded)

			// sign as the payer's wallet would
			tx, err := transaction.Decode(encoded)
			if err != nil {
				return err
			}
			tx.Signatures = nil
			if _, err := tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
				if key.Equals(payer.PublicKey()) {
					return &payer
				}
				return nil
			}); err != nil {
				return err
			}

			go func() {
				if _, err := ledger.SubmitTransaction(ctx, tx); err != nil {
					a.log.Error("demo payment failed", map[string]any{"error": err.Error()})
				}
			}()

			return watchLink(ctx, cmd, a, link)
		},
	}

	cmd.Flags().StringVar(&amount, "amount", "1.5", "decimal amount")
	cmd.Flags().StringVar(&currency, "currency", "sol", "sol or usdc")
	return cmd
}

var demoMint = solana.MustPublicKeyFromBase58("4zMMC9srt5Ri5X14GAgXhaHii3GnPAEERYPJgZJDncDU")

func seedLedger() (*clients.MemoryLedger, solana.PrivateKey, solana.PrivateKey, error) {
	ledger := clients.NewMemoryLedger(solana.MustPublicKeyFromBase58(types.DefaultProgramID))
	if err := ledger.AddMint(demoMint, 6); err != nil {
		return nil, nil, nil, err
	}

	shop := solana.NewWallet().PrivateKey
	payer := solana.NewWallet().PrivateKey
	ledger.Airdrop(shop.PublicKey(), 2*solana.LAMPORTS_PER_SOL)
	ledger.Airdrop(payer.PublicKey(), 100*solana.LAMPORTS_PER_SOL)

	if _, err := ledger.MintTo(demoMint, payer.PublicKey(), 1_000_000_000); err != nil {
		return nil, nil, nil, err
	}
	if _, err := ledger.MintTo(demoMint, shop.PublicKey(), 0); err != nil {
		return nil, nil, nil, err
	}
	return ledger, shop, payer, nil
}
