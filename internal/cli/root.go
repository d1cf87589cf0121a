package cli

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/nxcoord/internal/claim"
	"github.com/roach88/nxcoord/internal/config"
	"github.com/roach88/nxcoord/internal/logging"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose    bool
	Format     string // "text" | "json" | "yaml"
	ConfigFile string
	Store      string // store.driver override
	Database   string // store.path override
	StoreURL   string // store.url override
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json", "yaml"}

// NewRootCommand creates the root command for the nxcoord CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "nxcoord",
		Short: "nxcoord - exactly-once task claims",
		Long: `Coordinate build and task runners so each (project, task, commit) runs once.

The first agent to claim a task key is granted it; every later attempt is
denied and told who holds the claim. Every attempt is logged for audit.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Validate format flag
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (text|json|yaml)")
	cmd.PersistentFlags().StringVar(&opts.ConfigFile, "config", "", "config file (default: ./nxcoord.yaml)")
	cmd.PersistentFlags().StringVar(&opts.Store, "store", "", "store driver (sqlite|postgres|memory)")
	cmd.PersistentFlags().StringVar(&opts.Database, "db", "", "path to SQLite database")
	cmd.PersistentFlags().StringVar(&opts.StoreURL, "store-url", "", "PostgreSQL connection URL")

	// Add subcommands
	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewClaimCommand(opts))
	cmd.AddCommand(NewAttemptsCommand(opts))
	cmd.AddCommand(NewRecentCommand(opts))
	cmd.AddCommand(NewStatsCommand(opts))
	cmd.AddCommand(NewHealthCommand(opts))

	return cmd
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}

// LoadConfig resolves the layered configuration. Flags set on opts win over
// environment, file and defaults.
func (o *RootOptions) LoadConfig() (*config.Config, error) {
	v, err := config.New(o.ConfigFile)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load config", err)
	}

	overrides := map[string]string{
		"store.driver": o.Store,
		"store.path":   o.Database,
		"store.url":    o.StoreURL,
	}
	for key, val := range overrides {
		if val != "" {
			v.Set(key, val)
		}
	}
	if o.Verbose {
		v.Set("logging.level", "DEBUG")
	}

	cfg, err := config.Load(v)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid configuration", err)
	}
	return cfg, nil
}

// env bundles what a command needs once configuration is resolved.
type env struct {
	cfg       *config.Config
	logger    *slog.Logger
	store     claim.Store
	formatter *OutputFormatter
}

// setup loads configuration, builds the logger and opens the store. The
// caller must call close.
func (o *RootOptions) setup(ctx context.Context, cmd *cobra.Command) (*env, error) {
	cfg, err := o.LoadConfig()
	if err != nil {
		return nil, err
	}
	logger := logging.New(cmd.ErrOrStderr(), cfg.Logging.Level, cfg.Logging.Format)

	formatter := &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   o.Verbose,
	}

	logger.Debug("opening store", "driver", cfg.Store.Driver)
	st, err := OpenStore(ctx, cfg.Store)
	if err != nil {
		return nil, outputError(formatter, err)
	}
	return &env{cfg: cfg, logger: logger, store: st, formatter: formatter}, nil
}

func (e *env) close() {
	if err := e.store.Close(); err != nil {
		e.logger.Error("error closing store", "error", err)
	}
}

// commandContext returns the command's context, or Background when the
// command runs outside Execute.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
