package cli

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/cowork-labs/coedit/internal/collab"
	"github.com/cowork-labs/coedit/internal/config"
	"github.com/cowork-labs/coedit/internal/store"
	"github.com/cowork-labs/coedit/internal/ws"
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Config   string
	Listen   string
	Database string
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the collaborative editing server",
		Long: `Run the HTTP/WebSocket server hosting collaborative documents.

Edits stream over WebSocket connections, commit through per-document sync
controllers, and are archived to a SQLite database on an interval. An empty
database path disables the archive; documents then live in memory only.

Examples:
  coedit serve
  coedit serve --config ./coedit.yaml
  coedit serve --listen :9000 --db ./coedit.db`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Config, "config", "", "path to YAML config file")
	cmd.Flags().StringVar(&opts.Listen, "listen", "", "listen address (overrides config)")
	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite archive (overrides config)")

	return cmd
}

func runServe(opts *ServeOptions, cmd *cobra.Command) error {
	cfg, err := config.Load(opts.Config)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load config", err)
	}
	if opts.Listen != "" {
		cfg.Listen = opts.Listen
	}
	if cmd.Flags().Changed("db") {
		cfg.Database = opts.Database
	}

	logger := cfg.Logger(cmd.ErrOrStderr())
	registry := collab.NewRegistry(logger)
	gateway := ws.NewGateway(registry, logger)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// The archiver pulls from the registry on an interval; it is the only
	// component that touches the database.
	var wg sync.WaitGroup
	if cfg.Database != "" {
		st, err := store.Open(cfg.Database)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open database", err)
		}
		defer st.Close()

		archiver := store.NewArchiver(st, registry, logger)
		wg.Add(1)
		go func() {
			defer wg.Done()
			archiver.Run(ctx, cfg.Archive.Interval)
		}()
	}

	srv := &http.Server{Addr: cfg.Listen, Handler: gateway.Router()}
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	logger.Info("server listening", "addr", cfg.Listen, "db", cfg.Database)

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return WrapExitError(ExitCommandError, "server failed", err)
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("shutdown incomplete", "err", err)
	}

	// Cancelled context makes the archiver take a final pull before exiting.
	wg.Wait()
	return nil
}
