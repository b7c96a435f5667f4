// Package cli implements the videostore command line.
package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/warp/videostore/catalog"
	"github.com/warp/videostore/config"
	"github.com/warp/videostore/logger"
	"github.com/warp/videostore/rental"
	"github.com/warp/videostore/store"
)

var ErrLoginRequired = errors.New("--login and --password are required")

// RootOptions holds global flags for all commands.
type RootOptions struct {
	EnvFile   string
	Database  string // SQLite path, overrides SQLITE_PATH
	Driver    string // overrides STORE_DRIVER
	LogLevel  string
	LogFormat string
	Login     string
	Password  string

	// Set in PersistentPreRunE.
	cfg config.Config
	log *slog.Logger
}

// NewRootCommand creates the root command for the videostore CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "videostore",
		Short: "Video rental store",
		Long: `Rent and return movies under a subscription plan.

Every customer command needs --login and --password. The store backend is
chosen with --driver (sqlite or postgres); environment variables and a .env
file supply the rest of the configuration.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.load(cmd)
		},
	}

	cmd.PersistentFlags().StringVar(&opts.EnvFile, "env-file", ".env", "dotenv file to load if present")
	cmd.PersistentFlags().StringVar(&opts.Database, "db", "", "SQLite database path (overrides SQLITE_PATH)")
	cmd.PersistentFlags().StringVar(&opts.Driver, "driver", "", "store driver: sqlite|postgres (overrides STORE_DRIVER)")
	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "", "debug|info|warn|error (overrides LOG_LEVEL)")
	cmd.PersistentFlags().StringVar(&opts.LogFormat, "log-format", "", "text|json (overrides LOG_FORMAT)")
	cmd.PersistentFlags().StringVarP(&opts.Login, "login", "u", "", "customer login")
	cmd.PersistentFlags().StringVarP(&opts.Password, "password", "p", "", "customer password")

	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewSeedCommand(opts))
	cmd.AddCommand(NewLoginCommand(opts))
	cmd.AddCommand(NewWhoamiCommand(opts))
	cmd.AddCommand(NewPlansCommand(opts))
	cmd.AddCommand(NewPlanCommand(opts))
	cmd.AddCommand(NewRentCommand(opts))
	cmd.AddCommand(NewReturnCommand(opts))
	cmd.AddCommand(NewSearchCommand(opts))

	return cmd
}

// load reads configuration, applies flag overrides and builds the logger.
func (o *RootOptions) load(cmd *cobra.Command) error {
	cfg, err := config.Load(o.EnvFile)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("db") {
		cfg.SQLitePath = o.Database
	}
	if flags.Changed("driver") {
		cfg.Driver = o.Driver
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = o.LogLevel
	}
	if flags.Changed("log-format") {
		cfg.LogFormat = o.LogFormat
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	log, err := logger.New(cfg.LogFormat, cfg.LogLevel)
	if err != nil {
		return err
	}
	slog.SetDefault(log)

	o.cfg = cfg
	o.log = log
	return nil
}

// =============================================================================
// SESSION
// =============================================================================

// session is one open backend with the services built on it.
type session struct {
	backend  store.Backend
	core     *rental.Core
	accounts *rental.Accounts
	searcher *catalog.Searcher
	opts     *RootOptions
}

func (o *RootOptions) open(ctx context.Context) (*session, error) {
	backend, err := store.Open(ctx, o.cfg, o.log)
	if err != nil {
		return nil, err
	}
	return &session{
		backend:  backend,
		core:     rental.NewCore(backend, rental.WithLogger(o.log)),
		accounts: rental.NewAccounts(backend),
		searcher: catalog.NewSearcher(backend, backend),
		opts:     o,
	}, nil
}

func (s *session) Close() error {
	return s.backend.Close()
}

// authenticate logs in with --login/--password.
func (s *session) authenticate(ctx context.Context) (rental.CustomerID, error) {
	if s.opts.Login == "" || s.opts.Password == "" {
		return rental.NoCustomer, ErrLoginRequired
	}
	return s.accounts.Login(ctx, s.opts.Login, s.opts.Password)
}

// retry runs a Core operation with the configured conflict retries.
func (s *session) retry(ctx context.Context, op func(context.Context) (rental.Outcome, error)) (rental.Outcome, error) {
	return rental.Retry(ctx, s.opts.cfg.ConflictRetries, s.opts.cfg.ConflictBackoff, op)
}

// withSession opens a session for the duration of fn.
func withSession(cmd *cobra.Command, opts *RootOptions, fn func(ctx context.Context, s *session) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	s, err := opts.open(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	if err := fn(ctx, s); err != nil {
		return err
	}
	return nil
}

// withCustomer opens a session and authenticates before calling fn.
func withCustomer(cmd *cobra.Command, opts *RootOptions, fn func(ctx context.Context, s *session, cid rental.CustomerID) error) error {
	return withSession(cmd, opts, func(ctx context.Context, s *session) error {
		cid, err := s.authenticate(ctx)
		if err != nil {
			return fmt.Errorf("login: %w", err)
		}
		return fn(ctx, s, cid)
	})
}
