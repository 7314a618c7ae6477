package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/artifacts/internal/engine"
	"github.com/roach88/artifacts/internal/hooks"
	"github.com/roach88/artifacts/internal/metrics"
	"github.com/roach88/artifacts/internal/server"
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Listen string
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the record hooks over HTTP",
		Long: `Start the HTTP hook server. The host platform posts record events to
/hooks/created, /hooks/changed, /hooks/deleting and /hooks/annotated; each
request is reconciled synchronously before it is answered.

Example:
  artifacts serve --config ./artifacts.yaml
  artifacts serve --db /tmp/artifacts.db --listen 127.0.0.1:9090 --verbose`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Listen, "listen", "", "listen address (overrides config)")
	return cmd
}

func runServe(opts *ServeOptions, cmd *cobra.Command) error {
	e, err := opts.openEnv(cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	listen := e.config.Listen
	if opts.Listen != "" {
		listen = opts.Listen
	}

	rec := metrics.NewRecorder()
	srv := server.New(server.Deps{
		Engine:  e.engine(engine.WithObserver(rec)),
		Cleaner: hooks.NewCleaner(e.store, e.logger),
		Uploads: hooks.NewUploads(e.store, e.logger),
		Config:  e.config,
		Metrics: rec,
		Health:  e.store.DB(),
		Logger:  e.logger,
	})

	// The command's context lets tests stop the server.
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			e.logger.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	e.logger.Info("server starting", "db", e.config.Database, "listen", listen)
	fmt.Fprintf(cmd.OutOrStdout(), "Serving hooks on %s. Press Ctrl-C to stop.\n", listen)

	if err := srv.ListenAndServe(ctx, listen); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return WrapExitError(ExitCommandError, "server error", err)
	}

	e.logger.Info("server stopped gracefully")
	return nil
}
