package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"trading-agent/internal/ledger"
	"trading-agent/pkg/utils"
)

func addLedgerCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newInitCmd(app))
	rootCmd.AddCommand(newStatusCmd(app))
}

func newInitCmd(app *App) *cobra.Command {
	var capital float64

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize the paper ledger with starting capital",
		Example: `  trader init --capital 100000
  trader init --capital 500000 --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx := cmd.Context()

			if err := app.open(ctx, false); err != nil {
				return err
			}
			coord, err := app.coordinator("")
			if err != nil {
				return err
			}
			if err := coord.InitializeLedger(ctx, capital, app.Now()); err != nil {
				return err
			}

			snap := app.Ledger.Snapshot()
			if output.IsJSON() {
				return output.JSON(snap)
			}
			output.Success("✓ Ledger initialized with %s on %s", utils.FormatINR(snap.Cash), snap.CurrentDate)
			return nil
		},
	}

	cmd.Flags().Float64Var(&capital, "capital", 100000, "starting capital in INR")
	return cmd
}

func newStatusCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show cash, open positions and today's P&L",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if err := app.open(cmd.Context(), true); err != nil {
				return err
			}

			snap := app.Ledger.Snapshot()
			if output.IsJSON() {
				return output.JSON(map[string]interface{}{
					"ledger": snap,
					"market": utils.GetMarketStatus(app.Now()),
				})
			}
			printSnapshot(output, snap)
			output.Dim("Market: %s", utils.GetMarketStatus(app.Now()))
			return nil
		},
	}
}

func printSnapshot(output *Output, snap ledger.Snapshot) {
	t := output.Table("LEDGER", "Item", "Value")
	t.AppendRow(row("Date", snap.CurrentDate))
	t.AppendRow(row("Cash", utils.FormatINR(snap.Cash)))
	t.AppendRow(row("Invested", utils.FormatINR(snap.Invested())))
	t.AppendRow(row("Starting capital", utils.FormatINR(snap.StartingCapital)))
	t.AppendRow(row("Capital at day start", utils.FormatINR(snap.CapitalAtDayStart)))
	t.AppendSeparator()
	t.AppendRow(row("Realized P&L", output.PnL(snap.DailyRealizedPnL)))
	t.AppendRow(row("Unrealized P&L", output.PnL(snap.DailyUnrealizedPnL)))
	t.AppendRow(row("Trades today", fmt.Sprintf("%d (%dW/%dL)", snap.Day.TradeCount, snap.Day.Wins, snap.Day.Losses)))
	breaker := "inactive"
	if snap.CircuitBreakerActive {
		breaker = "ACTIVE"
	}
	t.AppendRow(row("Circuit breaker", breaker))
	t.Render()

	if len(snap.Positions) == 0 {
		output.Dim("No open positions")
		return
	}

	pt := output.Table("OPEN POSITIONS", "ID", "Symbol", "Qty", "Entry", "Stop", "Value", "Opened")
	for _, p := range snap.Positions {
		pt.AppendRow(row(p.ID, p.Symbol, p.Quantity,
			utils.FormatINR(p.EntryPrice), utils.FormatINR(p.StopLoss), utils.FormatINR(p.Value()),
			p.EntryTime.In(utils.IndiaLocation).Format("2006-01-02 15:04")))
	}
	pt.Render()
}
