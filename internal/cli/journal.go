package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"trading-agent/internal/models"
	"trading-agent/internal/store"
	"trading-agent/pkg/utils"
)

// addJournalCommands adds the read-only journal commands.
func addJournalCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newTradesCmd(app))
	rootCmd.AddCommand(newDecisionsCmd(app))
	rootCmd.AddCommand(newPnLCmd(app))
}

func newTradesCmd(app *App) *cobra.Command {
	var filter store.TradeFilter
	var side string

	cmd := &cobra.Command{
		Use:   "trades",
		Short: "List journaled trades",
		Example: `  trader trades --date 2026-10-15
  trader trades --symbol INFY --side SELL`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if err := app.open(cmd.Context(), false); err != nil {
				return err
			}

			filter.Symbol = strings.ToUpper(filter.Symbol)
			if side != "" {
				filter.Side = models.Side(strings.ToUpper(side))
				if !filter.Side.Valid() {
					return fmt.Errorf("invalid side %q", side)
				}
			}

			trades, err := app.Journal.Trades(cmd.Context(), filter)
			if err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(trades)
			}
			if len(trades) == 0 {
				output.Info("No trades recorded.")
				return nil
			}

			t := output.Table("TRADES", "Trade", "Time", "Side", "Symbol", "Qty", "Price", "Stop", "Confidence", "Exit")
			for _, tr := range trades {
				t.AppendRow(row(tr.TradeID, tr.Timestamp.In(utils.IndiaLocation).Format("15:04:05"),
					output.Decision(string(tr.Side)), tr.Symbol, tr.Quantity,
					utils.FormatINR(tr.Price), utils.FormatINR(tr.StopLoss), tr.Confidence, tr.ExitReason))
			}
			t.Render()
			return nil
		},
	}

	cmd.Flags().StringVar(&filter.Symbol, "symbol", "", "filter by symbol")
	cmd.Flags().StringVar(&filter.Date, "date", "", "filter by IST date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&side, "side", "", "filter by side (BUY or SELL)")
	cmd.Flags().IntVar(&filter.Limit, "limit", 50, "maximum rows")
	return cmd
}

func newDecisionsCmd(app *App) *cobra.Command {
	var filter store.DecisionFilter
	var outcome string

	cmd := &cobra.Command{
		Use:   "decisions",
		Short: "List journaled decisions",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if err := app.open(cmd.Context(), false); err != nil {
				return err
			}

			filter.Symbol = strings.ToUpper(filter.Symbol)
			filter.Outcome = models.DecisionOutcome(strings.ToUpper(outcome))

			decisions, err := app.Journal.Decisions(cmd.Context(), filter)
			if err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(decisions)
			}
			if len(decisions) == 0 {
				output.Info("No decisions recorded.")
				return nil
			}

			t := output.Table("DECISIONS", "Cycle", "Symbol", "Score", "Sentiment", "Decision", "Confidence", "Outcome", "Reasoning")
			for _, d := range decisions {
				t.AppendRow(row(d.CycleID, d.Symbol, fmt.Sprintf("%.1f", d.TechnicalScore), d.SentimentLabel,
					output.Decision(string(d.Decision)), d.Confidence, output.Decision(string(d.Outcome)), d.Reasoning))
			}
			t.Render()
			return nil
		},
	}

	cmd.Flags().StringVar(&filter.CycleID, "cycle", "", "filter by cycle id")
	cmd.Flags().StringVar(&filter.Symbol, "symbol", "", "filter by symbol")
	cmd.Flags().StringVar(&outcome, "outcome", "", "filter by outcome")
	cmd.Flags().IntVar(&filter.Limit, "limit", 50, "maximum rows")
	return cmd
}

func newPnLCmd(app *App) *cobra.Command {
	var days int

	cmd := &cobra.Command{
		Use:   "pnl [DATE]",
		Short: "Show daily P&L",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx := cmd.Context()
			if err := app.open(ctx, false); err != nil {
				return err
			}

			var rows []models.DailyPnL
			if len(args) == 1 {
				day, err := app.Journal.DailyPnL(ctx, args[0])
				if err != nil {
					return err
				}
				if day == nil {
					return fmt.Errorf("no P&L recorded for %s", args[0])
				}
				rows = []models.DailyPnL{*day}
			} else {
				var err error
				rows, err = app.Journal.RecentDays(ctx, days)
				if err != nil {
					return err
				}
			}

			if output.IsJSON() {
				return output.JSON(rows)
			}
			if len(rows) == 0 {
				output.Info("No P&L recorded.")
				return nil
			}

			t := output.Table("DAILY P&L", "Date", "Realized", "Unrealized", "Total", "Trades", "W/L", "Day start", "Breaker")
			for _, d := range rows {
				breaker := ""
				if d.CircuitBreakerHit {
					breaker = "HIT"
				}
				t.AppendRow(row(d.Date, output.PnL(d.RealizedPnL), output.PnL(d.UnrealizedPnL), output.PnL(d.Total()),
					d.TradeCount, fmt.Sprintf("%d/%d", d.Wins, d.Losses), utils.FormatINR(d.CapitalAtDayStart), breaker))
			}
			t.Render()
			return nil
		},
	}

	cmd.Flags().IntVar(&days, "days", 10, "number of recent days")
	return cmd
}
