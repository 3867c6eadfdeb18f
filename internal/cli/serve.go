package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/sprintledger/internal/httpapi"
	"github.com/roach88/sprintledger/internal/jobs"
	"github.com/roach88/sprintledger/internal/telemetry"
	"github.com/roach88/sprintledger/internal/tracker"
)

// ShutdownTimeout bounds the graceful drain after a signal.
const ShutdownTimeout = 10 * time.Second

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Addr string

	// Ready, when set, receives the bound listener address. Used by tests.
	Ready chan<- string
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		Long: `Serve the tracker HTTP API.

Opens the configured store, starts the accepted-points reconciliation
schedule, and serves /api until interrupted.

Example:
  sprintledger serve --addr :8001 --db ./sprintledger.db
  SPRINTLEDGER_DB_DRIVER=postgres SPRINTLEDGER_DB_DSN=postgres://... sprintledger serve`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Addr, "addr", "", "listen address (overrides SPRINTLEDGER_HTTP_ADDR)")
	return cmd
}

func runServe(opts *ServeOptions, cmd *cobra.Command) error {
	cfg := opts.Config
	if opts.Addr != "" {
		cfg.HTTPAddr = opts.Addr
	}
	log := opts.logger(cmd)

	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, cfg.OTELEndpoint)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to set up tracing", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()
		if err := shutdownTracing(sctx); err != nil {
			log.Error().Err(err).Msg("tracing shutdown failed")
		}
	}()

	b, err := opts.openStore(ctx, log)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := b.close(); cerr != nil {
			log.Error().Err(cerr).Msg("error closing database")
		}
	}()

	svc := tracker.New(b.store, tracker.WithLogger(log))

	var reconciler *jobs.Reconciler
	if cfg.ReconcileCron != "" {
		reconciler, err = jobs.NewReconciler(cfg.ReconcileCron, svc, log)
		if err != nil {
			return WrapExitError(ExitCommandError, "invalid reconcile schedule", err)
		}
		reconciler.Start()
		log.Info().Str("schedule", cfg.ReconcileCron).Time("next", reconciler.Next()).Msg("reconciler started")
	}

	router := httpapi.NewRouter(svc, log, httpapi.Options{
		Dev:            cfg.Dev(),
		RequestTimeout: cfg.RequestTimeout,
		CORSOrigins:    cfg.CORSOrigins,
	})
	srv := &http.Server{
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	ln, err := net.Listen("tcp", cfg.HTTPAddr)
	if err != nil {
		return WrapExitError(ExitCommandError, fmt.Sprintf("failed to listen on %s", cfg.HTTPAddr), err)
	}
	log.Info().Str("addr", ln.Addr().String()).Str("driver", cfg.DBDriver).Msg("server listening")
	if opts.Ready != nil {
		opts.Ready <- ln.Addr().String()
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	var serveErr error
	select {
	case <-ctx.Done():
		log.Info().Msg("shutting down")
	case serveErr = <-errCh:
	}

	sctx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		log.Error().Err(err).Msg("http shutdown failed")
	}
	if reconciler != nil {
		if err := reconciler.Stop(sctx); err != nil {
			log.Error().Err(err).Msg("reconciler stop failed")
		}
	}

	if serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
		return WrapExitError(ExitFailure, "server error", serveErr)
	}
	log.Info().Msg("server stopped")
	return nil
}
