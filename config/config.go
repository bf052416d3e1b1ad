// Package config holds the run configuration surface. Out-of-range values
// fail fast with ErrInvalidConfig before a run starts.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/openquant/backtester/market"
)

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("config: invalid")

const dateLayout = "2006-01-02"

// Config is the complete configuration for one backtest run.
type Config struct {
	Symbols   []string `json:"symbols" yaml:"symbols"`
	StartDate string   `json:"start_date" yaml:"start_date"`
	EndDate   string   `json:"end_date" yaml:"end_date"`
	Frequency string   `json:"frequency" yaml:"frequency"`

	InitialCapital float64 `json:"initial_capital" yaml:"initial_capital"`
	CommissionRate float64 `json:"commission_rate" yaml:"commission_rate"` // [0, 0.01]
	SlippageBPS    float64 `json:"slippage_bps" yaml:"slippage_bps"`

	// Risk controls. Zero disables.
	MaxPositionPct float64 `json:"max_position_pct" yaml:"max_position_pct"`
	StopLossPct    float64 `json:"stop_loss_pct" yaml:"stop_loss_pct"`
	TakeProfitPct  float64 `json:"take_profit_pct" yaml:"take_profit_pct"`

	Strategy StrategyConfig `json:"strategy" yaml:"strategy"`
	Journal  JournalConfig  `json:"journal" yaml:"journal"`
}

// StrategyConfig names the strategy and carries its parameter map.
type StrategyConfig struct {
	Name   string             `json:"name" yaml:"name"`
	Params map[string]float64 `json:"params,omitempty" yaml:"params,omitempty"`
}

// JournalConfig selects where run output is recorded.
type JournalConfig struct {
	Type       string `json:"type" yaml:"type"` // "sqlite", "csv" or ""
	DBPath     string `json:"db_path,omitempty" yaml:"db_path,omitempty"`
	FillsFile  string `json:"fills_file,omitempty" yaml:"fills_file,omitempty"`
	EquityFile string `json:"equity_file,omitempty" yaml:"equity_file,omitempty"`
}

// LoadFromFile loads configuration from a YAML or JSON file and validates it.
func LoadFromFile(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := &Config{}

	// Try YAML first, fall back to JSON
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		if jerr := json.Unmarshal(raw, cfg); jerr != nil {
			return nil, fmt.Errorf("parse config (tried YAML and JSON): %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks every field against its allowed range.
func (c *Config) Validate() error {
	if len(c.Symbols) == 0 {
		return invalid("symbols must not be empty")
	}
	for _, s := range c.Symbols {
		if strings.TrimSpace(s) == "" {
			return invalid("symbols must not contain blanks")
		}
	}

	start, end, err := c.Range()
	if err != nil {
		return err
	}
	if !start.Before(end) {
		return invalid("start_date must be before end_date")
	}

	if _, err := market.ParseFrequency(c.Frequency); err != nil {
		return invalid("frequency: %v", err)
	}

	if c.InitialCapital <= 0 {
		return invalid("initial_capital must be positive, got %v", c.InitialCapital)
	}
	if c.CommissionRate < 0 || c.CommissionRate > 0.01 {
		return invalid("commission_rate must be in [0, 0.01], got %v", c.CommissionRate)
	}
	if c.SlippageBPS < 0 {
		return invalid("slippage_bps must not be negative, got %v", c.SlippageBPS)
	}
	if c.MaxPositionPct < 0 || c.MaxPositionPct > 1 {
		return invalid("max_position_pct must be in [0, 1], got %v", c.MaxPositionPct)
	}
	if c.StopLossPct < 0 || c.StopLossPct >= 1 {
		return invalid("stop_loss_pct must be in [0, 1), got %v", c.StopLossPct)
	}
	if c.TakeProfitPct < 0 {
		return invalid("take_profit_pct must not be negative, got %v", c.TakeProfitPct)
	}

	if c.Strategy.Name == "" {
		return invalid("strategy.name is required")
	}

	switch c.Journal.Type {
	case "", "none":
	case "sqlite":
		if c.Journal.DBPath == "" {
			return invalid("journal.db_path is required for sqlite journal")
		}
	case "csv":
		if c.Journal.FillsFile == "" || c.Journal.EquityFile == "" {
			return invalid("journal.fills_file and journal.equity_file are required for csv journal")
		}
	default:
		return invalid("journal.type must be sqlite, csv or none, got %q", c.Journal.Type)
	}

	return nil
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
}

// Range parses the configured date range.
func (c *Config) Range() (start, end time.Time, err error) {
	start, err = time.Parse(dateLayout, c.StartDate)
	if err != nil {
		return time.Time{}, time.Time{}, invalid("start_date: %v", err)
	}
	end, err = time.Parse(dateLayout, c.EndDate)
	if err != nil {
		return time.Time{}, time.Time{}, invalid("end_date: %v", err)
	}
	return start, end, nil
}

// Freq returns the parsed frequency. Call after Validate.
func (c *Config) Freq() market.Frequency {
	f, _ := market.ParseFrequency(c.Frequency)
	return f
}

// Decimal views of the numeric knobs, for the engine.

func (c *Config) InitialCapitalDec() decimal.Decimal {
	return decimal.NewFromFloat(c.InitialCapital)
}

func (c *Config) CommissionRateDec() decimal.Decimal {
	return decimal.NewFromFloat(c.CommissionRate)
}

func (c *Config) SlippageBPSDec() decimal.Decimal {
	return decimal.NewFromFloat(c.SlippageBPS)
}

// SaveToFile writes the config as YAML (or JSON for .json paths).
func (c *Config) SaveToFile(path string) error {
	var (
		raw []byte
		err error
	)
	if strings.HasSuffix(path, ".json") {
		raw, err = json.MarshalIndent(c, "", "  ")
	} else {
		raw, err = yaml.Marshal(c)
	}
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, raw, 0644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}
