package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/vitwit/paylink/metrics"
	"github.com/vitwit/paylink/server"
)

func newServeCmd(flags *globalFlags) *cobra.Command {
	var (
		addr string
		opts server.Options
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the Solana Pay transaction request API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApp(cmd, flags)
			if err != nil {
				return err
			}
			defer a.Close()

			if prom, ok := a.pl.Metrics().(*metrics.PrometheusRecorder); ok {
				opts.Metrics = prom.Handler()
			}

			srv := server.New(a.pl, opts, a.log, a.pl.Metrics())
			return srv.ListenAndServe(ctx, addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", ":8080", "listen address")
	cmd.Flags().StringVar(&opts.Label, "label", server.DefaultLabel, "label shown by wallets")
	cmd.Flags().StringVar(&opts.Icon, "icon", "", "icon URL shown by wallets")
	cmd.Flags().StringVar(&opts.Message, "message", server.DefaultMessage, "message returned with each transaction")
	return cmd
}
