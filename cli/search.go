package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/warp/videostore/catalog"
	"github.com/warp/videostore/rental"
)

// SearchOptions holds flags for the search command.
type SearchOptions struct {
	*RootOptions
	Fast bool
}

// NewSearchCommand creates the search command.
func NewSearchCommand(root *RootOptions) *cobra.Command {
	opts := &SearchOptions{RootOptions: root}

	cmd := &cobra.Command{
		Use:   "search <title>",
		Short: "Search movies by title",
		Long: `Search movies whose title contains the given text, case-insensitively.

With --login the status line tells you which movies you already have.
--fast runs one query per relation instead of two per movie; the output is
identical.`,
		Example: `  videostore search star
  videostore search --fast "empire strikes" --login alice --password password`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, root, func(ctx context.Context, s *session) error {
				cid := rental.NoCustomer
				if root.Login != "" {
					id, err := s.authenticate(ctx)
					if err != nil {
						return fmt.Errorf("login: %w", err)
					}
					cid = id
				}

				search := s.searcher.Search
				if opts.Fast {
					search = s.searcher.FastSearch
				}
				listings, err := search(ctx, cid, args[0])
				if err != nil {
					return err
				}
				printListings(cmd.OutOrStdout(), listings)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&opts.Fast, "fast", false, "use set-oriented queries")

	return cmd
}

func printListings(w io.Writer, listings []catalog.Listing) {
	for _, l := range listings {
		fmt.Fprintf(w, "ID: %d NAME: %s YEAR: %d\n", l.Movie.ID, l.Movie.Name, l.Movie.Year)
		for _, d := range l.Directors {
			fmt.Fprintf(w, "\t\tDirector: %s\n", d)
		}
		for _, a := range l.Actors {
			fmt.Fprintf(w, "\t\tActor: %s\n", a)
		}
		fmt.Fprintf(w, "\t\tStatus: %s\n", l.Status)
	}
	fmt.Fprintln(w)
}
