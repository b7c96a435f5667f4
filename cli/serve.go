package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/warp/videostore/api"
	"github.com/warp/videostore/store"
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Port     int
	Scenario string
}

// NewServeCommand creates the serve command.
func NewServeCommand(root *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: root}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Long: `Run the HTTP API and the background auditor.

On SIGINT/SIGTERM the server stops accepting connections, waits up to 30s
for active requests, stops the auditor and closes the store.`,
		Example: `  # SQLite file in the working directory
  videostore serve --db ./data/videostore.db

  # Postgres, with demo data loaded on startup
  PG_CONN_URL=postgres://localhost/videostore videostore serve --driver postgres --scenario classic`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, opts)
		},
	}

	cmd.Flags().IntVar(&opts.Port, "port", 0, "HTTP port (overrides HTTP_PORT)")
	cmd.Flags().StringVar(&opts.Scenario, "scenario", "", "load a demo scenario before serving")

	return cmd
}

func runServe(cmd *cobra.Command, opts *ServeOptions) error {
	if cmd.Flags().Changed("port") {
		opts.cfg.HTTPPort = opts.Port
	}
	log := opts.log

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	backend, err := store.Open(ctx, opts.cfg, log)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer backend.Close()

	handler := api.NewHandler(backend, log)
	handler.ConflictRetries = opts.cfg.ConflictRetries
	handler.ConflictBackoff = opts.cfg.ConflictBackoff
	handler.Auditor.Enabled = opts.cfg.AuditEnabled
	handler.Auditor.CheckInterval = opts.cfg.AuditInterval

	if opts.Scenario != "" {
		if err := api.LoadScenario(ctx, backend, handler.Core, opts.Scenario); err != nil {
			return fmt.Errorf("load scenario: %w", err)
		}
		log.Info("scenario loaded", "scenario", opts.Scenario)
	}

	handler.Auditor.Start()
	defer handler.Auditor.Stop()

	server := &http.Server{
		Addr:         opts.cfg.Addr(),
		Handler:      api.NewRouter(handler, log),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("server starting", "addr", server.Addr, "driver", opts.cfg.Driver)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Info("server stopped")
	return nil
}
