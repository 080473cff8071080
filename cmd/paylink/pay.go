package main

import (
	"github.com/gagliardetto/solana-go"
	"github.com/spf13/cobra"
	"github.com/vitwit/paylink/utils"
)

func newPayCmd(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pay",
		Short: "Build and verify settlement transactions",
	}
	cmd.AddCommand(newPayBuildCmd(flags), newPayVerifyCmd(flags))
	return cmd
}

func newPayBuildCmd(flags *globalFlags) *cobra.Command {
	var payer string

	cmd := &cobra.Command{
		Use:   "build <link>",
		Short: "Print the unsigned base64 transaction that pays a link",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var from solana.PublicKey
			var err error
			if payer != "" {
				from, err = utils.ValidateAddress(payer)
			} else {
				from, err = flags.ownerArg(nil)
			}
			if err != nil {
				return err
			}

			a, err := newApp(cmd, flags)
			if err != nil {
				return err
			}
			defer a.Close()

			link, err := a.linkArg(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			encoded, err := a.pl.BuildSettlementTransaction(cmd.Context(), from, link)
			if err != nil {
				return err
			}
			return printJSON(cmd, map[string]string{
				"payer":       from.String(),
				"reference":   link.Reference.String(),
				"transaction": encoded,
			})
		},
	}

	cmd.Flags().StringVar(&payer, "payer", "", "paying account, defaults to the keypair")
	return cmd
}

func newPayVerifyCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "verify <link> <signature>",
		Short: "Check whether a landed transaction settles a link",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			sig, err := utils.ValidateSignature(args[1])
			if err != nil {
				return err
			}
			a, err := newApp(cmd, flags)
			if err != nil {
				return err
			}
			defer a.Close()

			link, err := a.linkArg(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			res, err := a.pl.VerifySettlement(cmd.Context(), link, sig)
			if err != nil {
				return err
			}
			if err := printJSON(cmd, res); err != nil {
				return err
			}
			return res.Err()
		},
	}
}
