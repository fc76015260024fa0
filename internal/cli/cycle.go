package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"trading-agent/internal/models"
	"trading-agent/internal/trading"
	"trading-agent/pkg/utils"
)

func addCycleCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newCycleCmd(app))
	rootCmd.AddCommand(newMonitorCmd(app))
	rootCmd.AddCommand(newCloseCmd(app))
}

func newCycleCmd(app *App) *cobra.Command {
	var signalsPath, metricsFile string

	cmd := &cobra.Command{
		Use:   "cycle",
		Short: "Run one evaluation cycle over the universe",
		Long: `Run one evaluation cycle: decide per symbol, size and risk-check
actionable decisions, execute approved trades on the paper ledger, then
monitor open positions for stop-loss exits and the daily loss limit.`,
		Example: `  trader cycle
  trader cycle --signals ./signals.json --metrics-file /var/lib/node_exporter/trader.prom`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx := cmd.Context()

			if err := app.open(ctx, true); err != nil {
				return err
			}
			coord, err := app.coordinator(signalsPath)
			if err != nil {
				return err
			}

			report, err := coord.RunCycle(ctx, app.Now())
			if report != nil {
				if output.IsJSON() {
					if jerr := output.JSON(report); jerr != nil && err == nil {
						err = jerr
					}
				} else {
					printCycleReport(output, report)
				}
			}
			if metricsFile != "" {
				if merr := app.Metrics.WriteTextfile(metricsFile); merr != nil {
					app.Logger.Warn().Err(merr).Str("path", metricsFile).Msg("Failed to write metrics")
				}
			}
			return err
		},
	}

	cmd.Flags().StringVar(&signalsPath, "signals", defaultSignalsPath(app.ConfigDir), "JSON signals file")
	cmd.Flags().StringVar(&metricsFile, "metrics-file", "", "write Prometheus metrics to this textfile")
	return cmd
}

func newMonitorCmd(app *App) *cobra.Command {
	var signalsPath string

	cmd := &cobra.Command{
		Use:   "monitor",
		Short: "Check open positions for stop-loss exits",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx := cmd.Context()

			if err := app.open(ctx, true); err != nil {
				return err
			}
			coord, err := app.coordinator(signalsPath)
			if err != nil {
				return err
			}

			rep, err := coord.RunMonitoring(ctx, app.Now())
			if rep != nil {
				if output.IsJSON() {
					if jerr := output.JSON(rep); jerr != nil && err == nil {
						err = jerr
					}
				} else {
					printMonitorReport(output, *rep)
				}
			}
			return err
		},
	}

	cmd.Flags().StringVar(&signalsPath, "signals", defaultSignalsPath(app.ConfigDir), "JSON signals file")
	return cmd
}

func newCloseCmd(app *App) *cobra.Command {
	var signalsPath string

	cmd := &cobra.Command{
		Use:     "close SYMBOL",
		Short:   "Close an open position at the current price",
		Args:    cobra.ExactArgs(1),
		Example: "  trader close RELIANCE",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx := cmd.Context()
			symbol := strings.ToUpper(args[0])

			if err := app.open(ctx, true); err != nil {
				return err
			}
			coord, err := app.coordinator(signalsPath)
			if err != nil {
				return err
			}

			exec, err := coord.ClosePosition(ctx, symbol, app.Now())
			if err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(exec)
			}
			output.Success("✓ Closed %d %s at %s (%s)", exec.Quantity, exec.Symbol,
				utils.FormatINR(exec.Price), output.PnL(exec.RealizedPnL))
			output.Dim("Trade %s, order %s", exec.TradeID, exec.OrderID)
			return nil
		},
	}

	cmd.Flags().StringVar(&signalsPath, "signals", defaultSignalsPath(app.ConfigDir), "JSON signals file")
	return cmd
}

func printCycleReport(output *Output, report *trading.CycleReport) {
	output.Bold("Cycle %s: %s", report.ID, report.State)
	if report.Reason != "" {
		output.Warning("%s", report.Reason)
	}

	if len(report.Decisions) > 0 {
		t := output.Table("DECISIONS", "Symbol", "Score", "Sentiment", "Decision", "Confidence", "Outcome", "Reasoning")
		for _, d := range report.Decisions {
			t.AppendRow(row(d.Symbol, fmt.Sprintf("%.1f", d.TechnicalScore), d.SentimentLabel,
				output.Decision(string(d.Decision)), d.Confidence, output.Decision(string(d.Outcome)), d.Reasoning))
		}
		t.Render()
	}

	if len(report.Executions) > 0 {
		printExecutions(output, "EXECUTIONS", report.Executions)
	}
	for _, r := range report.Rejections {
		rules := make([]string, len(r.Rules))
		for i, rule := range r.Rules {
			rules[i] = string(rule)
		}
		output.Warning("✗ %s rejected: %s", r.Symbol, strings.Join(rules, ", "))
	}
	for _, e := range report.Errors {
		output.Error("! %s %s: %s", e.Symbol, e.Collaborator, e.Message)
	}

	if report.State == trading.StateLogged {
		printMonitorReport(output, report.Monitor)
	}
	printSnapshot(output, report.Final)
}

func printMonitorReport(output *Output, rep trading.MonitorReport) {
	if len(rep.StopLossExits) > 0 {
		printExecutions(output, "STOP-LOSS EXITS", rep.StopLossExits)
	}
	for _, a := range rep.Alerts {
		output.Warning("⚠ %s at %s is %.2f%% above stop %s", a.Symbol,
			utils.FormatINR(a.Price), a.DistancePct, utils.FormatINR(a.StopLoss))
	}
	for _, e := range rep.Errors {
		output.Error("! %s %s: %s", e.Symbol, e.Collaborator, e.Message)
	}
	output.Printf("Unrealized P&L: %s\n", output.PnL(rep.UnrealizedPnL))
	if rep.BreakerTripped {
		output.Error("Daily loss circuit breaker is ACTIVE")
	}
}

func printExecutions(output *Output, title string, execs []trading.Execution) {
	t := output.Table(title, "Trade", "Side", "Symbol", "Qty", "Price", "Stop", "P&L", "Order")
	for _, e := range execs {
		pnl := ""
		if e.Side == models.SideSell {
			pnl = output.PnL(e.RealizedPnL)
		}
		t.AppendRow(row(e.TradeID, output.Decision(string(e.Side)), e.Symbol, e.Quantity,
			utils.FormatINR(e.Price), utils.FormatINR(e.StopLoss), pnl, e.OrderID))
	}
	t.Render()
}
