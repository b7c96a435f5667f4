package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/warp/videostore/api"
)

// NewSeedCommand creates the seed command.
func NewSeedCommand(root *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "seed [scenario]",
		Short: "Reset the database and load demo data",
		Long: fmt.Sprintf(`Reset the database and load a demo scenario (default: classic).

Available scenarios: %s
Every demo customer's password is %q.`, strings.Join(api.ScenarioIDs(), ", "), api.DemoPassword),
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: api.ScenarioIDs(),
		RunE: func(cmd *cobra.Command, args []string) error {
			scenario := "classic"
			if len(args) == 1 {
				scenario = args[0]
			}
			return withSession(cmd, root, func(ctx context.Context, s *session) error {
				if err := api.LoadScenario(ctx, s.backend, s.core, scenario); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Loaded scenario %s.\n", scenario)
				return nil
			})
		},
	}
}
