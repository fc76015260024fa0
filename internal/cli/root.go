// Package cli provides the command-line interface for the trading application.
package cli

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"trading-agent/internal/broker"
	"trading-agent/internal/config"
	"trading-agent/internal/journal"
	"trading-agent/internal/ledger"
	"trading-agent/internal/metrics"
	"trading-agent/internal/signals"
	"trading-agent/internal/store"
	"trading-agent/internal/trading"
	"trading-agent/pkg/utils"
)

// Version information
const (
	Version   = "0.1.0"
	BuildDate = "2026-10-01"
)

// App holds the application dependencies. The store and everything built
// on it are opened on first use.
type App struct {
	Config    *config.Config
	ConfigDir string
	Logger    zerolog.Logger
	Metrics   *metrics.Metrics
	Now       func() time.Time

	Store   *store.SQLiteStore
	Ledger  *ledger.Ledger
	Journal *journal.Journal
}

// NewRootCmd creates the root command for the CLI.
func NewRootCmd(cfg *config.Config, configDir string, logger zerolog.Logger) *cobra.Command {
	app := &App{
		Config:    cfg,
		ConfigDir: configDir,
		Logger:    logger,
		Metrics:   metrics.New(),
		Now:       time.Now,
	}

	rootCmd := &cobra.Command{
		Use:   "trader",
		Short: "NSE paper-trading decision and risk engine",
		Long: `trader evaluates a universe of NSE symbols against technical and
sentiment signals, enforces hard risk limits and executes approved trades
against a paper ledger. Every decision and trade is journaled.

Use 'trader help <command>' for more information about a command.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			debug, _ := cmd.Flags().GetBool("debug")
			if debug {
				app.Logger = app.Logger.Level(zerolog.DebugLevel)
			}
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return app.Close()
		},
	}

	rootCmd.PersistentFlags().Bool("json", false, "output in JSON format")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")

	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newConfigCmd(app))
	addLedgerCommands(rootCmd, app)
	addCycleCommands(rootCmd, app)
	addJournalCommands(rootCmd, app)

	return rootCmd
}

// open connects the store and loads the ledger. requireLedger fails with a
// StateError when the ledger was never initialized.
func (a *App) open(ctx context.Context, requireLedger bool) error {
	if a.Store == nil {
		st, err := store.NewSQLiteStore(a.Config.Trading.DBPath)
		if err != nil {
			return err
		}
		a.Store = st
		a.Ledger = ledger.New(st, a.Config.Risk.DailyLossPercent, a.Logger)
		a.Journal = journal.New(st, a.Config.Journal.AnalysisTTL, a.Logger)
	}

	if a.Ledger.Initialized() {
		return nil
	}
	if err := a.Ledger.Load(ctx); err != nil && requireLedger {
		return err
	}
	return nil
}

// coordinator wires a coordinator over the signals file at path.
func (a *App) coordinator(signalsPath string) (*trading.Coordinator, error) {
	opts, err := trading.OptionsFromConfig(a.Config)
	if err != nil {
		return nil, err
	}

	var src *signals.Static
	if signalsPath != "" {
		src, err = signals.LoadFile(signalsPath)
		if err != nil {
			return nil, err
		}
	} else {
		src = signals.NewStatic(a.Now(), nil)
	}

	return trading.New(trading.Deps{
		Ledger:    a.Ledger,
		Journal:   a.Journal,
		Technical: src,
		Sentiment: signals.NewCachedSentiment(src, a.Journal, a.Now, a.Logger),
		Executor:  broker.NewPaperExecutor(),
		Metrics:   a.Metrics,
		Logger:    a.Logger,
	}, opts), nil
}

// Close releases the store.
func (a *App) Close() error {
	if a.Store == nil {
		return nil
	}
	err := a.Store.Close()
	a.Store = nil
	return err
}

func defaultSignalsPath(configDir string) string {
	if configDir == "" {
		configDir = config.DefaultConfigDir()
	}
	return filepath.Join(configDir, "signals.json")
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if output.IsJSON() {
				return output.JSON(map[string]string{
					"version":    Version,
					"build_date": BuildDate,
				})
			}
			output.Printf("trader v%s\n", Version)
			output.Dim("Build date: %s", BuildDate)
			return nil
		},
	}
}

func newConfigCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
		Long:  "View and validate application configuration.",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if output.IsJSON() {
				return output.JSON(app.Config)
			}
			showConfig(output, app.Config)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show configuration directory path",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			dir := app.ConfigDir
			if dir == "" {
				dir = config.DefaultConfigDir()
			}
			if output.IsJSON() {
				return output.JSON(map[string]string{"path": dir})
			}
			output.Println(dir)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if err := app.Config.Validate(); err != nil {
				output.Error("Configuration validation failed: %v", err)
				return err
			}
			if output.IsJSON() {
				return output.JSON(map[string]bool{"valid": true})
			}
			output.Success("✓ Configuration is valid")
			return nil
		},
	})

	return cmd
}

func showConfig(output *Output, cfg *config.Config) {
	t := output.Table("CONFIGURATION", "Setting", "Value")
	t.AppendRow(row("Mode", cfg.Trading.Mode))
	t.AppendRow(row("Database", cfg.Trading.DBPath))
	t.AppendRow(row("Universe", fmt.Sprintf("%v", cfg.Trading.Universe)))
	t.AppendSeparator()
	t.AppendRow(row("Trading window", fmt.Sprintf("%s-%s IST", cfg.Risk.WindowStart, cfg.Risk.WindowEnd)))
	t.AppendRow(row("Max positions", cfg.Risk.MaxPositions))
	t.AppendRow(row("Max position", utils.FormatPercent(cfg.Risk.MaxPositionPercent)))
	t.AppendRow(row("Max stop-loss", utils.FormatPercent(cfg.Risk.MaxStopLossPercent)))
	t.AppendRow(row("Default stop-loss", utils.FormatPercent(cfg.Risk.DefaultStopLossPct)))
	t.AppendRow(row("Risk per trade", utils.FormatPercent(cfg.Risk.RiskPerTradePercent)))
	t.AppendRow(row("Daily loss limit", utils.FormatPercent(cfg.Risk.DailyLossPercent)))
	t.AppendSeparator()
	t.AppendRow(row("Technical threshold", cfg.Decision.TechnicalThreshold))
	t.AppendRow(row("High conviction", cfg.Decision.HighConviction))
	t.AppendRow(row("Collaborator timeout", cfg.Execution.Timeout))
	t.AppendRow(row("Parallelism", cfg.Execution.Parallelism))
	t.AppendRow(row("Analysis TTL", cfg.Journal.AnalysisTTL))
	t.Render()
}
