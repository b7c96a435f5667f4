package cli

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/warp/videostore/rental"
)

// NewPlanCommand creates the plan command.
func NewPlanCommand(root *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "plan <plan-id>",
		Short:   "Switch to another rental plan",
		Example: `  videostore plan 3 --login alice --password password`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("plan", args[0])
			if err != nil {
				return err
			}
			return runOutcome(cmd, root, func(ctx context.Context, s *session, cid rental.CustomerID) (rental.Outcome, error) {
				return s.core.ChoosePlan(ctx, cid, rental.PlanID(id))
			})
		},
	}
}

// NewRentCommand creates the rent command.
func NewRentCommand(root *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "rent <movie-id>",
		Short:   "Rent a movie",
		Example: `  videostore rent 1 --login alice --password password`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("movie", args[0])
			if err != nil {
				return err
			}
			return runOutcome(cmd, root, func(ctx context.Context, s *session, cid rental.CustomerID) (rental.Outcome, error) {
				return s.core.Rent(ctx, cid, rental.MovieID(id))
			})
		},
	}
}

// NewReturnCommand creates the return command.
func NewReturnCommand(root *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "return <movie-id>",
		Short: "Return a rented movie",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("movie", args[0])
			if err != nil {
				return err
			}
			return runOutcome(cmd, root, func(ctx context.Context, s *session, cid rental.CustomerID) (rental.Outcome, error) {
				return s.core.Return(ctx, cid, rental.MovieID(id))
			})
		},
	}
}

// runOutcome logs in, runs op with conflict retries and prints the outcome.
// Rejections are printed, not returned, matching the interactive console.
func runOutcome(cmd *cobra.Command, root *RootOptions, op func(context.Context, *session, rental.CustomerID) (rental.Outcome, error)) error {
	return withCustomer(cmd, root, func(ctx context.Context, s *session, cid rental.CustomerID) error {
		outcome, err := s.retry(ctx, func(ctx context.Context) (rental.Outcome, error) {
			return op(ctx, s, cid)
		})
		if err != nil {
			return err
		}
		if outcome.OK() {
			fmt.Fprintln(cmd.OutOrStdout(), "OK")
			return nil
		}
		fmt.Fprintln(cmd.OutOrStdout(), outcome.Message())
		return nil
	})
}

func parseID(kind, s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s id %q", kind, s)
	}
	return id, nil
}
