// Package cli implements the artifacts command line.
package cli

import (
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/artifacts/internal/config"
	"github.com/roach88/artifacts/internal/engine"
	"github.com/roach88/artifacts/internal/ir"
	"github.com/roach88/artifacts/internal/store"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose  bool
	Format   string // "json" | "text"
	Config   string // path to the YAML config file
	Database string // overrides the config's database
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the artifacts CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "artifacts",
		Short: "Required-document rules engine",
		Long: `Maintain the set of required artifacts (documents) of cases and their
parties from administrator-authored artifact rules.

Rules are authored in CUE and loaded into the record store. The engine
reconciles artifacts when records are created or changed, either from the
hook commands or from the HTTP hook server.`,
		Version:       ir.EngineVersion,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return NewExitError(ExitCommandError,
					fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVarP(&opts.Config, "config", "c", "", "path to config file")
	cmd.PersistentFlags().StringVar(&opts.Database, "db", "", "path to SQLite database (overrides config)")

	cmd.AddCommand(NewMigrateCommand(opts))
	cmd.AddCommand(NewRulesCommand(opts))
	cmd.AddCommand(NewLabelsCommand(opts))
	cmd.AddCommand(NewCreatedCommand(opts))
	cmd.AddCommand(NewChangedCommand(opts))
	cmd.AddCommand(NewDeletingCommand(opts))
	cmd.AddCommand(NewAnnotatedCommand(opts))
	cmd.AddCommand(NewShowCommand(opts))
	cmd.AddCommand(NewReconcileCommand(opts))
	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))

	return cmd
}

// loadConfig reads --config and applies --db.
func (o *RootOptions) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(o.Config)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load config", err)
	}
	if o.Database != "" {
		cfg.Database = o.Database
	}
	return cfg, nil
}

// newLogger builds the text logger on w. --verbose forces debug level.
func (o *RootOptions) newLogger(cfg *config.Config, w io.Writer) *slog.Logger {
	level, err := config.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = slog.LevelInfo
	}
	if o.Verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// env is what a store-backed command works with.
type env struct {
	config *config.Config
	store  *store.Store
	logger *slog.Logger
}

// openEnv loads config, builds the logger on cmd's stderr and opens the
// store (applying migrations).
func (o *RootOptions) openEnv(cmd *cobra.Command) (*env, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, err
	}
	logger := o.newLogger(cfg, cmd.ErrOrStderr())

	logger.Debug("opening database", "path", cfg.Database)
	st, err := store.Open(cfg.Database)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	return &env{config: cfg, store: st, logger: logger}, nil
}

func (e *env) engine(opts ...engine.Option) *engine.Engine {
	return engine.New(e.store, append([]engine.Option{engine.WithLogger(e.logger)}, opts...)...)
}

func (e *env) Close() {
	if err := e.store.Close(); err != nil {
		e.logger.Error("error closing database", "error", err)
	}
}
