package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/vitwit/paylink/settlement"
	"github.com/vitwit/paylink/types"
)

func newWatchCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "watch <link>",
		Short: "Poll until a link is paid or a wrong payment lands",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApp(cmd, flags)
			if err != nil {
				return err
			}
			defer a.Close()

			link, err := a.linkArg(ctx, args[0])
			if err != nil {
				return err
			}
			return watchLink(ctx, cmd, a, link)
		},
	}
}

func watchLink(ctx context.Context, cmd *cobra.Command, a *app, link *types.PaymentLink) error {
	out := cmd.OutOrStdout()
	sub, err := a.pl.WatchSettlement(ctx, link, func(status types.SettlementStatus) {
		fmt.Fprintf(out, "%s: %s\n", link.Address, status)
	})
	if err != nil {
		return err
	}
	defer sub.Cancel()

	select {
	case <-sub.Done():
	case <-ctx.Done():
		return ctx.Err()
	}

	obs := sub.Observation()
	if obs == nil {
		return sub.LastError()
	}
	if obs.Signature != nil {
		fmt.Fprintf(out, "signature: %s\n", obs.Signature)
	}
	if obs.State != settlement.StateConfirmed {
		return types.NewError(types.ErrSemanticMismatch, "%s: %s", obs.Reason, obs.Detail)
	}
	return nil
}
