package cli

import (
	"context"
	"fmt"
	"slices"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/roach88/sprintledger/internal/config"
	"github.com/roach88/sprintledger/internal/logger"
	"github.com/roach88/sprintledger/internal/record"
	"github.com/roach88/sprintledger/internal/store"
	"github.com/roach88/sprintledger/internal/store/postgres"
	"github.com/roach88/sprintledger/internal/tracker"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"

	// DB and Driver override SPRINTLEDGER_DB_DSN and SPRINTLEDGER_DB_DRIVER.
	DB     string
	Driver string

	// Config is loaded before any subcommand runs.
	Config config.Config
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the sprintledger root command.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "sprintledger",
		Short: "Agile tracker service",
		Long: `sprintledger keeps project, sprint, work item and time entry records
consistent: deletes cascade to dependents, logged hours roll up into work
items, and completed work rolls up into sprint accepted points.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return NewExitError(ExitCommandError,
					fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			return opts.loadConfig(cmd)
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.DB, "db", "", "database path or DSN (overrides "+config.Prefix+"DB_DSN)")
	cmd.PersistentFlags().StringVar(&opts.Driver, "driver", "", "store driver: sqlite3, sqlite or postgres (overrides "+config.Prefix+"DB_DRIVER)")

	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewSeedCommand(opts))
	cmd.AddCommand(NewRecalcCommand(opts))
	cmd.AddCommand(NewScenarioCommand(opts))

	return cmd
}

func (o *RootOptions) loadConfig(cmd *cobra.Command) error {
	cfg, err := config.Load()
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load config", err)
	}
	if cmd.Flags().Changed("db") {
		cfg.DBDSN = o.DB
	}
	if cmd.Flags().Changed("driver") {
		cfg.DBDriver = o.Driver
	}
	if err := cfg.Validate(); err != nil {
		return WrapExitError(ExitCommandError, "invalid config", err)
	}
	o.Config = cfg
	return nil
}

func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   o.Verbose,
	}
}

// logger writes to stderr. --verbose forces debug level.
func (o *RootOptions) logger(cmd *cobra.Command) zerolog.Logger {
	level := o.Config.LogLevel
	if o.Verbose {
		level = "debug"
	}
	return logger.New(logger.Options{Dev: o.Config.Dev(), Level: level, Out: cmd.ErrOrStderr()})
}

// backend is an open store plus its close function.
type backend struct {
	store record.Store
	close func() error
}

// openStore opens the configured store.
func (o *RootOptions) openStore(ctx context.Context, log zerolog.Logger) (*backend, error) {
	cfg := o.Config
	log.Debug().Str("driver", cfg.DBDriver).Msg("opening store")

	if cfg.DBDriver == config.DriverPostgres {
		st, err := postgres.Open(ctx, cfg.DBDSN, log)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to open database", err)
		}
		return &backend{store: st, close: st.Close}, nil
	}
	st, err := store.Open(cfg.DBDSN, store.WithDriver(cfg.DBDriver))
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	return &backend{store: st, close: st.Close}, nil
}

// withTracker opens the store, builds a tracker over it, and runs fn.
// The store is closed when fn returns.
func (o *RootOptions) withTracker(cmd *cobra.Command, fn func(ctx context.Context, svc *tracker.Service) error) error {
	ctx := commandContext(cmd)
	log := o.logger(cmd)

	b, err := o.openStore(ctx, log)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := b.close(); cerr != nil {
			log.Error().Err(cerr).Msg("error closing database")
		}
	}()

	return fn(ctx, tracker.New(b.store, tracker.WithLogger(log)))
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
