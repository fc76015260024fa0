package config

import (
	"fmt"
	"os"
	"path/filepath"
)

const configTemplate = `# Trading Agent Configuration

[trading]
# Trading mode: only "paper" is supported
mode = "paper"
# SQLite database holding the ledger and journal
# db_path = "~/.config/trading-agent/trading.db"
# Candidate symbols evaluated each cycle
universe = ["RELIANCE", "TCS", "HDFCBANK", "INFY", "ICICIBANK"]

[risk]
# New BUY orders only inside [window_start, window_end) IST
window_start = "09:30"
window_end = "15:15"
# Maximum number of open positions
max_positions = 5
# Maximum position value as percentage of cash
max_position_percent = 10.0
# Maximum stop-loss distance as percentage of entry
max_stop_loss_percent = 5.0
# Stop-loss distance used when none is supplied
default_stop_loss_percent = 3.0
# Capital risked per trade
risk_per_trade_percent = 1.0
# Daily loss that trips the circuit breaker, as percentage of day-start capital
daily_loss_percent = 2.0

[decision]
# Composite score required for the technical criterion
technical_threshold = 60.0
# Composite score for HIGH confidence with bullish sentiment
high_conviction = 75.0

[execution]
# Timeout for each collaborator call
timeout = "10s"
# Symbols evaluated concurrently
parallelism = 4
# Order submission attempts (same idempotency token)
retry_attempts = 3
retry_delay = "200ms"
# Consecutive collaborator failures before calls are short-circuited
failure_threshold = 5
reset_timeout = "1m"
# Alert when price is within this percentage above the stop-loss
proximity_percent = 1.0

[journal]
# Cached analysis is ignored once older than this
analysis_ttl = "30m"

[logging]
# debug, info, warn, error
level = "info"
console = true
json = false
file = true
`

func createTemplateConfig(configDir string) error {
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	path := filepath.Join(configDir, "config.toml")
	if err := os.WriteFile(path, []byte(configTemplate), 0644); err != nil {
		return fmt.Errorf("writing config template: %w", err)
	}

	return nil
}
