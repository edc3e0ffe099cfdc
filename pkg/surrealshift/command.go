package surrealshift

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/surrealdb/surrealshift/pkg/migration"
)

// Main runs the command line with args, which exclude the program name.
func Main(ctx context.Context, args []string) error {
	root := NewRootCommand()
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}

// NewRootCommand builds the surrealshift command tree.
func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "surrealshift",
		Short: "Phased PostgreSQL to SurrealDB migration coordinator",
		Long: `surrealshift mirrors an application's writes from PostgreSQL to SurrealDB,
compares reads between the two, and moves traffic to SurrealDB one phase at a
time without downtime.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := root.PersistentFlags()
	flags.String("config", "", "Path to a YAML configuration file")
	flags.Bool("memory", false, "Use in-memory stores instead of PostgreSQL and SurrealDB")
	flags.Int("phase", 1, "Initial migration phase (1-5)")
	flags.String("port", "8080", "HTTP server port")
	flags.String("journal", JournalMemory, "Compensation journal: memory, bolt or postgres")
	flags.String("journal-path", "", "File for the bolt journal")
	flags.Duration("reconcile-interval", 0, "How often run sweeps the journal; 0 disables")
	flags.Duration("reconcile-grace", 0, "Minimum age of the journal entries a sweep settles; 0 settles all")
	flags.String("log-level", "info", "Log level: trace, debug, info, warn or error")
	flags.Bool("log-console", false, "Human-readable log output")
	flags.String("log-file", "", "Append logs to this file instead of stdout")

	root.AddCommand(
		newRunCommand(),
		newMigrateCommand(),
		newBackfillCommand(),
		newReconcileCommand(),
		newPhaseCommand(),
	)
	return root
}

// loadConfig layers command-line flags over LoadConfig. Only flags given
// explicitly override the file and the environment.
func loadConfig(cmd *cobra.Command) (*Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}
	if err := applyFlags(cmd.Flags(), cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyFlags(fs *pflag.FlagSet, cfg *Config) error {
	var err error
	set := func(name string, apply func()) {
		if err == nil && fs.Changed(name) {
			apply()
		}
	}
	set("memory", func() { cfg.Memory, err = fs.GetBool("memory") })
	set("phase", func() { cfg.InitialPhase, err = fs.GetInt("phase") })
	set("port", func() { cfg.ServerPort, err = fs.GetString("port") })
	set("journal", func() { cfg.Journal, err = fs.GetString("journal") })
	set("journal-path", func() { cfg.JournalPath, err = fs.GetString("journal-path") })
	set("reconcile-interval", func() { cfg.ReconcileInterval, err = fs.GetDuration("reconcile-interval") })
	set("reconcile-grace", func() { cfg.ReconcileGrace, err = fs.GetDuration("reconcile-grace") })
	set("log-level", func() { cfg.LogLevel, err = fs.GetString("log-level") })
	set("log-console", func() { cfg.LogConsole, err = fs.GetBool("log-console") })
	set("log-file", func() { cfg.LogFile, err = fs.GetString("log-file") })
	return err
}

// withApp loads configuration, builds the App, runs fn and closes the App.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, app *App) error) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	app, err := New(ctx, cfg)
	if err != nil {
		return err
	}
	defer app.Close()
	return fn(ctx, app)
}

func newRunCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Serve the HTTP API",
		Long: `Serve the entity and migration control API until interrupted.

With --reconcile-interval the compensation journal is swept in the background.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, app *App) error {
				return app.Run(ctx)
			})
		},
	}
}

func newMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the schema in both stores",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, app *App) error {
				if err := app.Migrate(ctx); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Schema migrated in both stores")
				return nil
			})
		},
	}
}

func newBackfillCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "backfill",
		Short: "Copy existing primary records to the secondary store",
		Long: `Copy every record from the primary store to the secondary, in dependency
order. Missing records are created and divergent ones overwritten. Run it
once dual writes are enabled so nothing written meanwhile is missed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, app *App) error {
				results, err := app.Backfill(ctx)
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "ENTITY\tSCANNED\tCREATED\tUPDATED\tUNCHANGED\tFAILED")
				for _, r := range results {
					fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\t%d\n", r.Entity, r.Scanned, r.Created, r.Updated, r.Unchanged, r.Failed)
				}
				if ferr := tw.Flush(); ferr != nil && err == nil {
					err = ferr
				}
				return err
			})
		},
	}
}

func newReconcileCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "Settle pending compensation journal entries once",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, app *App) error {
				res, err := app.Reconcile(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Examined %d, consistent %d, restored %d, failed %d\n",
					res.Examined, res.Consistent, res.Restored, res.Failed)
				return nil
			})
		},
	}
}

func newPhaseCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "phase [n]",
		Short: "Print the flag table, or the row for phase n",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			phases := make([]migration.Phase, 0, int(migration.MaxPhase))
			if len(args) == 1 {
				n, err := strconv.Atoi(args[0])
				if err != nil {
					return fmt.Errorf("phase must be a number: %w", err)
				}
				phases = append(phases, migration.Phase(n))
			} else {
				for p := migration.MinPhase; p <= migration.MaxPhase; p++ {
					phases = append(phases, p)
				}
			}
			return printPhases(cmd.OutOrStdout(), phases)
		},
	}
}

func printPhases(w io.Writer, phases []migration.Phase) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PHASE\tNAME\tDUAL_WRITE\tDUAL_READ\tREAD_FROM_TARGET\tVALIDATION")
	for _, p := range phases {
		flags, err := migration.FlagsForPhase(p)
		if err != nil {
			return err
		}
		fmt.Fprintf(tw, "%d\t%s\t%t\t%t\t%t\t%t\n", int(p), p, flags.DualWrite, flags.DualRead, flags.ReadFromTarget, flags.Validation)
	}
	return tw.Flush()
}
