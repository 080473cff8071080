package main

import (
	"github.com/spf13/cobra"
	"github.com/vitwit/paylink/types"
)

func newLinkCmd(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "link",
		Short: "Create, update, remove and list payment links",
	}
	cmd.AddCommand(
		newLinkCreateCmd(flags),
		newLinkUpdateCmd(flags),
		newLinkRemoveCmd(flags),
		newLinkListCmd(flags),
		newLinkShowCmd(flags),
	)
	return cmd
}

func newLinkCreateCmd(flags *globalFlags) *cobra.Command {
	var amount, currency string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a link in the next free slot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			tag, err := types.ParseCurrency(currency)
			if err != nil {
				return err
			}
			owner, err := flags.signer()
			if err != nil {
				return err
			}
			a, err := newApp(cmd, flags)
			if err != nil {
				return err
			}
			defer a.Close()

			link, err := a.pl.CreatePaymentLink(cmd.Context(), owner, amount, tag)
			if err != nil {
				return err
			}
			view, err := a.view(cmd.Context(), link)
			if err != nil {
				return err
			}
			return printJSON(cmd, view)
		},
	}

	cmd.Flags().StringVar(&amount, "amount", "", "decimal amount, e.g. 1.5")
	cmd.Flags().StringVar(&currency, "currency", "sol", "sol or usdc")
	_ = cmd.MarkFlagRequired("amount")
	return cmd
}

func newLinkUpdateCmd(flags *globalFlags) *cobra.Command {
	var (
		index    uint8
		amount   string
		currency string
	)

	cmd := &cobra.Command{
		Use:   "update",
		Short: "Change the amount or currency of a link",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var patch types.PaymentLinkPatch
			if cmd.Flags().Changed("amount") {
				patch.Amount = &amount
			}
			if cmd.Flags().Changed("currency") {
				tag, err := types.ParseCurrency(currency)
				if err != nil {
					return err
				}
				patch.Currency = &tag
			}

			owner, err := flags.signer()
			if err != nil {
				return err
			}
			a, err := newApp(cmd, flags)
			if err != nil {
				return err
			}
			defer a.Close()

			link, err := a.pl.UpdatePaymentLink(cmd.Context(), owner, index, patch)
			if err != nil {
				return err
			}
			view, err := a.view(cmd.Context(), link)
			if err != nil {
				return err
			}
			return printJSON(cmd, view)
		},
	}

	cmd.Flags().Uint8Var(&index, "index", 0, "slot of the link")
	cmd.Flags().StringVar(&amount, "amount", "", "new decimal amount")
	cmd.Flags().StringVar(&currency, "currency", "", "new currency")
	_ = cmd.MarkFlagRequired("index")
	return cmd
}

func newLinkRemoveCmd(flags *globalFlags) *cobra.Command {
	var index uint8

	cmd := &cobra.Command{
		Use:   "remove",
		Short: "Close a link and reclaim its rent",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			owner, err := flags.signer()
			if err != nil {
				return err
			}
			a, err := newApp(cmd, flags)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.pl.RemovePaymentLink(cmd.Context(), owner, index); err != nil {
				return err
			}
			return printJSON(cmd, map[string]any{"removed": index})
		},
	}

	cmd.Flags().Uint8Var(&index, "index", 0, "slot of the link")
	_ = cmd.MarkFlagRequired("index")
	return cmd
}

func newLinkListCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "list [owner]",
		Short: "List live links, the keypair's by default",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			owner, err := flags.ownerArg(args)
			if err != nil {
				return err
			}
			a, err := newApp(cmd, flags)
			if err != nil {
				return err
			}
			defer a.Close()

			links, err := a.pl.ListPaymentLinks(cmd.Context(), owner)
			if err != nil {
				return err
			}
			views := make([]*linkView, 0, len(links))
			for _, link := range links {
				view, err := a.view(cmd.Context(), link)
				if err != nil {
					return err
				}
				views = append(views, view)
			}
			return printJSON(cmd, views)
		},
	}
}

func newLinkShowCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "show <address>",
		Short: "Show a link by address",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, flags)
			if err != nil {
				return err
			}
			defer a.Close()

			link, err := a.linkArg(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			view, err := a.view(cmd.Context(), link)
			if err != nil {
				return err
			}
			return printJSON(cmd, view)
		},
	}
}
