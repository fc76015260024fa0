// Package config provides configuration management for the trading application.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Trading   TradingConfig   `mapstructure:"trading"`
	Risk      RiskConfig      `mapstructure:"risk"`
	Decision  DecisionConfig  `mapstructure:"decision"`
	Execution ExecutionConfig `mapstructure:"execution"`
	Journal   JournalConfig   `mapstructure:"journal"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// TradingConfig holds trading-related configuration.
type TradingConfig struct {
	Mode     string   `mapstructure:"mode"` // only "paper" is supported
	DBPath   string   `mapstructure:"db_path"`
	Universe []string `mapstructure:"universe"`
}

// RiskConfig holds the hard capital-preservation limits.
type RiskConfig struct {
	WindowStart         string  `mapstructure:"window_start"` // HH:MM IST, inclusive
	WindowEnd           string  `mapstructure:"window_end"`   // HH:MM IST, exclusive
	MaxPositions        int     `mapstructure:"max_positions"`
	MaxPositionPercent  float64 `mapstructure:"max_position_percent"`
	MaxStopLossPercent  float64 `mapstructure:"max_stop_loss_percent"`
	DefaultStopLossPct  float64 `mapstructure:"default_stop_loss_percent"`
	RiskPerTradePercent float64 `mapstructure:"risk_per_trade_percent"`
	DailyLossPercent    float64 `mapstructure:"daily_loss_percent"`
}

// DecisionConfig holds the decision matrix thresholds.
type DecisionConfig struct {
	TechnicalThreshold float64 `mapstructure:"technical_threshold"`
	HighConviction     float64 `mapstructure:"high_conviction"`
}

// ExecutionConfig governs collaborator calls and cycle parallelism.
type ExecutionConfig struct {
	Timeout          time.Duration `mapstructure:"timeout"`
	Parallelism      int           `mapstructure:"parallelism"`
	RetryAttempts    int           `mapstructure:"retry_attempts"`
	RetryDelay       time.Duration `mapstructure:"retry_delay"`
	FailureThreshold int           `mapstructure:"failure_threshold"`
	ResetTimeout     time.Duration `mapstructure:"reset_timeout"`
	ProximityPercent float64       `mapstructure:"proximity_percent"`
}

// JournalConfig holds journal settings.
type JournalConfig struct {
	AnalysisTTL time.Duration `mapstructure:"analysis_ttl"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `mapstructure:"level"`
	File    bool   `mapstructure:"file"`
	JSON    bool   `mapstructure:"json"`
	Console bool   `mapstructure:"console"`
}

// DefaultConfigDir returns the default configuration directory.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".config/trading-agent"
	}
	return filepath.Join(home, ".config", "trading-agent")
}

func newViper(configDir string) *viper.Viper {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("toml")
	if configDir != "" {
		v.AddConfigPath(configDir)
	}

	v.SetDefault("trading.mode", "paper")
	v.SetDefault("trading.db_path", filepath.Join(DefaultConfigDir(), "trading.db"))
	v.SetDefault("trading.universe", []string{"RELIANCE", "TCS", "HDFCBANK", "INFY", "ICICIBANK"})

	v.SetDefault("risk.window_start", "09:30")
	v.SetDefault("risk.window_end", "15:15")
	v.SetDefault("risk.max_positions", 5)
	v.SetDefault("risk.max_position_percent", 10.0)
	v.SetDefault("risk.max_stop_loss_percent", 5.0)
	v.SetDefault("risk.default_stop_loss_percent", 3.0)
	v.SetDefault("risk.risk_per_trade_percent", 1.0)
	v.SetDefault("risk.daily_loss_percent", 2.0)

	v.SetDefault("decision.technical_threshold", 60.0)
	v.SetDefault("decision.high_conviction", 75.0)

	v.SetDefault("execution.timeout", "10s")
	v.SetDefault("execution.parallelism", 4)
	v.SetDefault("execution.retry_attempts", 3)
	v.SetDefault("execution.retry_delay", "200ms")
	v.SetDefault("execution.failure_threshold", 5)
	v.SetDefault("execution.reset_timeout", "1m")
	v.SetDefault("execution.proximity_percent", 1.0)

	v.SetDefault("journal.analysis_ttl", "30m")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.file", true)
	v.SetDefault("logging.json", false)
	v.SetDefault("logging.console", true)
	return v
}

// Default returns the built-in configuration without reading any file.
func Default() *Config {
	cfg := &Config{}
	// Defaults alone always decode.
	_ = newViper("").Unmarshal(cfg)
	return cfg
}

// Load loads configuration from the specified directory.
// If configDir is empty, uses the default config directory. A missing
// config.toml is replaced by a template and the defaults are used.
func Load(configDir string) (*Config, error) {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}

	if err := loadDotEnv(configDir); err != nil {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	v := newViper(configDir)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config.toml: %w", err)
		}
		if err := createTemplateConfig(configDir); err != nil {
			return nil, err
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decoding config.toml: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// loadDotEnv reads configDir/.env if present. Variables already set win.
func loadDotEnv(configDir string) error {
	err := godotenv.Load(filepath.Join(configDir, ".env"))
	if err != nil && errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("TRADING_DB_PATH"); v != "" {
		cfg.Trading.DBPath = v
	}
	if v := os.Getenv("TRADING_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("TRADING_MODE"); v != "" {
		cfg.Trading.Mode = v
	}
	if v := os.Getenv("TRADING_UNIVERSE"); v != "" {
		var symbols []string
		for _, s := range strings.Split(v, ",") {
			if s = strings.TrimSpace(s); s != "" {
				symbols = append(symbols, strings.ToUpper(s))
			}
		}
		cfg.Trading.Universe = symbols
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Trading.Mode != "paper" {
		return fmt.Errorf("invalid trading mode: %s (only 'paper' is supported)", c.Trading.Mode)
	}
	if c.Trading.DBPath == "" {
		return fmt.Errorf("db_path must be set")
	}

	start, err := ParseClock(c.Risk.WindowStart)
	if err != nil {
		return fmt.Errorf("window_start: %w", err)
	}
	end, err := ParseClock(c.Risk.WindowEnd)
	if err != nil {
		return fmt.Errorf("window_end: %w", err)
	}
	if end <= start {
		return fmt.Errorf("window_end must be after window_start")
	}

	if c.Risk.MaxPositions < 1 {
		return fmt.Errorf("max_positions must be at least 1")
	}
	for name, pct := range map[string]float64{
		"max_position_percent":      c.Risk.MaxPositionPercent,
		"max_stop_loss_percent":     c.Risk.MaxStopLossPercent,
		"default_stop_loss_percent": c.Risk.DefaultStopLossPct,
		"risk_per_trade_percent":    c.Risk.RiskPerTradePercent,
		"daily_loss_percent":        c.Risk.DailyLossPercent,
	} {
		if pct <= 0 || pct > 100 {
			return fmt.Errorf("%s must be in (0, 100]", name)
		}
	}
	if c.Risk.DefaultStopLossPct > c.Risk.MaxStopLossPercent {
		return fmt.Errorf("default_stop_loss_percent exceeds max_stop_loss_percent")
	}

	if c.Decision.TechnicalThreshold < 0 || c.Decision.TechnicalThreshold > 100 {
		return fmt.Errorf("technical_threshold must be between 0 and 100")
	}
	if c.Decision.HighConviction < c.Decision.TechnicalThreshold || c.Decision.HighConviction > 100 {
		return fmt.Errorf("high_conviction must be between technical_threshold and 100")
	}

	if c.Execution.Timeout <= 0 {
		return fmt.Errorf("execution timeout must be positive")
	}
	if c.Execution.Parallelism < 1 {
		return fmt.Errorf("parallelism must be at least 1")
	}
	if c.Execution.RetryAttempts < 1 {
		return fmt.Errorf("retry_attempts must be at least 1")
	}
	if c.Journal.AnalysisTTL < 0 {
		return fmt.Errorf("analysis_ttl must be non-negative")
	}

	return nil
}

// IsPaperMode returns true if paper trading mode is enabled.
func (c *Config) IsPaperMode() bool {
	return c.Trading.Mode == "paper"
}

// ParseClock parses "HH:MM" into minutes after midnight.
func ParseClock(s string) (int, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("invalid clock time %q: %w", s, err)
	}
	return t.Hour()*60 + t.Minute(), nil
}
