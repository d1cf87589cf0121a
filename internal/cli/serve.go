package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/nxcoord/internal/claim"
	"github.com/roach88/nxcoord/internal/httpapi"
)

// readHeaderTimeout bounds slow clients on the claim endpoint.
const readHeaderTimeout = 10 * time.Second

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Addr string

	// Ready receives the bound listen address once the server accepts
	// connections (for testing). May be nil.
	Ready chan<- string
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the claim HTTP server",
		Long: `Start the HTTP server exposing claims, health and audit queries.

Routes:
  POST /api/claim
  GET  /api/health
  GET  /api/attempts?gitSha=<sha>
  GET  /api/attempts/recent
  GET  /api/stats

The server shuts down gracefully on SIGINT or SIGTERM.

Example:
  nxcoord serve --db ./nxcoord.db --addr :8080
  nxcoord serve --store postgres --store-url postgres://localhost/nxcoord`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Addr, "addr", "", "listen address (overrides server.addr)")

	return cmd
}

func runServe(opts *ServeOptions, cmd *cobra.Command) error {
	// Setup signal handling for graceful shutdown
	// Use command's context if available (for testing), otherwise create one
	ctx, cancel := context.WithCancel(commandContext(cmd))
	defer cancel()

	e, err := opts.setup(ctx, cmd)
	if err != nil {
		return err
	}
	defer e.close()
	slog.SetDefault(e.logger)

	addr := e.cfg.Server.Addr
	if opts.Addr != "" {
		addr = opts.Addr
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan) // Prevent signal handler leak

	go func() {
		select {
		case sig := <-sigChan:
			e.logger.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
			// Parent context cancelled (e.g., from test)
		}
	}()

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to listen", err)
	}

	handler := httpapi.New(
		claim.NewArbiter(e.store, claim.WithLogger(e.logger)),
		claim.NewQueries(e.store, nil),
		e.logger,
	)
	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: readHeaderTimeout,
		ErrorLog:          slog.NewLogLogger(e.logger.Handler(), slog.LevelError),
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.Serve(ln)
	}()

	bound := ln.Addr().String()
	e.logger.Info("server starting", "addr", bound, "store", e.cfg.Store.Driver)
	fmt.Fprintf(cmd.OutOrStdout(), "Listening on %s\n", bound)
	if opts.Ready != nil {
		opts.Ready <- bound
	}

	select {
	case err := <-serveErr:
		return WrapExitError(ExitFailure, "server error", err)
	case <-ctx.Done():
	}

	shutdownCtx, stop := context.WithTimeout(context.Background(), e.cfg.Server.ShutdownTimeout())
	defer stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return WrapExitError(ExitFailure, "graceful shutdown failed", err)
	}
	if err := <-serveErr; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return WrapExitError(ExitFailure, "server error", err)
	}

	e.logger.Info("server stopped gracefully")
	return nil
}
