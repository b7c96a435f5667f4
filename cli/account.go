package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/warp/videostore/rental"
)

// NewLoginCommand creates the login command.
func NewLoginCommand(root *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "login",
		Short:   "Check a customer's credentials",
		Example: `  videostore login --login alice --password password`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCustomer(cmd, root, func(ctx context.Context, s *session, cid rental.CustomerID) error {
				c, err := s.backend.Customer(ctx, cid)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s (customer %d).\n", c.Name(), cid)
				return nil
			})
		},
	}
}

// NewWhoamiCommand creates the whoami command.
func NewWhoamiCommand(root *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the customer's name and remaining rentals",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCustomer(cmd, root, func(ctx context.Context, s *session, cid rental.CustomerID) error {
				profile, err := s.accounts.Profile(ctx, cid)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), profile.Greeting())
				return nil
			})
		},
	}
}

// NewPlansCommand creates the plans command.
func NewPlansCommand(root *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "plans",
		Short: "List rental plans",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, root, func(ctx context.Context, s *session) error {
				plans, err := s.accounts.Plans(ctx)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				for _, p := range plans {
					fmt.Fprintf(out, "ID: %d NAME: %s MAX RENTALS: %d FEE: %s\n",
						p.ID, p.Name, p.MaxRentals, p.Price.StringFixed(2))
				}
				return nil
			})
		},
	}
}
