package main

import (
	"github.com/spf13/cobra"
)

func newProfileCmd(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Manage the user profile that numbers your links",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "create",
		Short: "Create the profile of the keypair",
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

			profile, err := a.pl.CreateUserProfile(cmd.Context(), owner)
			if err != nil {
				return err
			}
			return printJSON(cmd, profile)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "show [owner]",
		Short: "Show a profile, the keypair's by default",
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

			profile, err := a.pl.GetUserProfile(cmd.Context(), owner)
			if err != nil {
				return err
			}
			return printJSON(cmd, profile)
		},
	})

	return cmd
}
