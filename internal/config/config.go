// Package config provides configuration management for the validation tool.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	yaml "gopkg.in/yaml.v3"
)

const (
	// defaultTrials is used when montecarlo.trials is unset
	defaultTrials = 1000
	// defaultRuinThreshold is the drawdown fraction counted as ruin
	defaultRuinThreshold = 0.20
	// defaultTradeFrequencyDays is used when backtest.trade_frequency_days is unset
	defaultTradeFrequencyDays = 7
	// dateLayout is the format for backtest start/end dates
	dateLayout = "2006-01-02"
)

// Config represents the complete application configuration.
type Config struct {
	Environment EnvironmentConfig `yaml:"environment"`
	Data        DataConfig        `yaml:"data"`
	Backtest    BacktestConfig    `yaml:"backtest"`
	Strategy    StrategyConfig    `yaml:"strategy"`
	MonteCarlo  MonteCarloConfig  `yaml:"montecarlo"`
	Risk        RiskConfig        `yaml:"risk"`
	Validation  ValidationConfig  `yaml:"validation"`
	Storage     StorageConfig     `yaml:"storage"`
}

// EnvironmentConfig defines the environment settings.
type EnvironmentConfig struct {
	LogLevel string `yaml:"log_level"` // debug | info | warn | error
}

// DataConfig defines where price history comes from.
type DataConfig struct {
	Provider string   `yaml:"provider"` // csv | synthetic
	CSVDir   string   `yaml:"csv_dir"`  // directory of <SYMBOL>.csv files
	Symbols  []string `yaml:"symbols"`
	Seed     uint64   `yaml:"seed"`    // synthetic provider seed
	Breaker  bool     `yaml:"breaker"` // guard the provider with a circuit breaker
}

// BacktestConfig defines the simulation window and frictions.
type BacktestConfig struct {
	Start                 string  `yaml:"start"` // YYYY-MM-DD
	End                   string  `yaml:"end"`   // YYYY-MM-DD
	InitialCapital        float64 `yaml:"initial_capital"`
	CommissionPerContract float64 `yaml:"commission_per_contract"`
	RiskFreeRate          float64 `yaml:"risk_free_rate"`
	TradeFrequencyDays    int     `yaml:"trade_frequency_days"`
}

// StrategyConfig defines the sample strategy parameters.
type StrategyConfig struct {
	Kind        string  `yaml:"kind"` // strangle | put_credit_spread
	DTETarget   int     `yaml:"dte_target"`
	DeltaTarget float64 `yaml:"delta_target"`
	MinIV       float64 `yaml:"min_iv"`
	MinCredit   float64 `yaml:"min_credit"`
	StrikeTick  float64 `yaml:"strike_tick"`
	Quantity    int     `yaml:"quantity"`
	Width       float64 `yaml:"width"` // spread only
}

// MonteCarloConfig defines the resampling run.
type MonteCarloConfig struct {
	Method        string  `yaml:"method"` // shuffle | bootstrap | parametric
	Trials        int     `yaml:"trials"`
	RuinThreshold float64 `yaml:"ruin_threshold"`
	Seed          uint64  `yaml:"seed"`
	Workers       int     `yaml:"workers"`
}

// RiskConfig defines the VaR calculation parameters.
type RiskConfig struct {
	Method      string `yaml:"method"` // historical | parametric | monte_carlo
	HorizonDays int    `yaml:"horizon_days"`
	Trials      int    `yaml:"trials"`
	Seed        uint64 `yaml:"seed"`
}

// ValidationConfig defines the verdict thresholds and cost model.
type ValidationConfig struct {
	MinScore              float64 `yaml:"min_score"`
	MaxRuinProbability    float64 `yaml:"max_ruin_probability"`
	MaxPathDependency     float64 `yaml:"max_path_dependency"`
	MinCostAdjustedSharpe float64 `yaml:"min_cost_adjusted_sharpe"`
	MaxVaR95Pct           float64 `yaml:"max_var_95_pct"`
	SlippagePerContract   float64 `yaml:"slippage_per_contract"`
}

// StorageConfig defines where validation run records are persisted.
type StorageConfig struct {
	Path string `yaml:"path"`
}

// Load reads and parses the configuration file from the specified path.
func Load(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = "config.yaml"
	}

	data, err := os.ReadFile(configPath) // #nosec G304 -- configPath is a user-provided config file path
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables
	expanded := os.ExpandEnv(string(data))

	var config Config
	dec := yaml.NewDecoder(strings.NewReader(expanded))
	dec.KnownFields(true)
	if err := dec.Decode(&config); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &config, nil
}

// Validate checks that all configuration values are valid and consistent.
func (c *Config) Validate() error {
	c.applyDefaults()

	switch c.Environment.LogLevel {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("environment.log_level must be debug, info, warn or error")
	}

	// Data validation
	if c.Data.Provider != "csv" && c.Data.Provider != "synthetic" {
		return fmt.Errorf("data.provider must be 'csv' or 'synthetic'")
	}
	if c.Data.Provider == "csv" && c.Data.CSVDir == "" {
		return fmt.Errorf("data.csv_dir is required for the csv provider")
	}
	if len(c.Data.Symbols) == 0 {
		return fmt.Errorf("data.symbols must list at least one symbol")
	}

	// Backtest validation
	start, err := time.Parse(dateLayout, c.Backtest.Start)
	if err != nil {
		return fmt.Errorf("backtest.start invalid: %w", err)
	}
	end, err := time.Parse(dateLayout, c.Backtest.End)
	if err != nil {
		return fmt.Errorf("backtest.end invalid: %w", err)
	}
	if !start.Before(end) {
		return fmt.Errorf("backtest.start (%s) must be before backtest.end (%s)",
			c.Backtest.Start, c.Backtest.End)
	}
	if c.Backtest.InitialCapital <= 0 {
		return fmt.Errorf("backtest.initial_capital must be > 0")
	}
	if c.Backtest.CommissionPerContract < 0 {
		return fmt.Errorf("backtest.commission_per_contract must be >= 0")
	}
	if c.Backtest.TradeFrequencyDays <= 0 {
		return fmt.Errorf("backtest.trade_frequency_days must be > 0")
	}

	// Strategy validation
	if c.Strategy.Kind != "strangle" && c.Strategy.Kind != "put_credit_spread" {
		return fmt.Errorf("strategy.kind must be 'strangle' or 'put_credit_spread'")
	}
	if c.Strategy.DTETarget <= 0 {
		return fmt.Errorf("strategy.dte_target must be > 0")
	}
	if c.Strategy.DeltaTarget <= 0 || c.Strategy.DeltaTarget >= 0.5 {
		return fmt.Errorf("strategy.delta_target must be in (0, 0.5)")
	}
	if c.Strategy.Quantity <= 0 {
		return fmt.Errorf("strategy.quantity must be > 0")
	}
	if c.Strategy.Kind == "put_credit_spread" && c.Strategy.Width <= 0 {
		return fmt.Errorf("strategy.width must be > 0 for put_credit_spread")
	}

	// Monte Carlo validation
	switch c.MonteCarlo.Method {
	case "shuffle", "bootstrap", "parametric":
	default:
		return fmt.Errorf("montecarlo.method must be shuffle, bootstrap or parametric")
	}
	if c.MonteCarlo.Trials <= 0 {
		return fmt.Errorf("montecarlo.trials must be > 0")
	}
	if c.MonteCarlo.RuinThreshold <= 0 || c.MonteCarlo.RuinThreshold >= 1 {
		return fmt.Errorf("montecarlo.ruin_threshold must be in (0,1)")
	}

	// Risk validation
	switch c.Risk.Method {
	case "historical", "parametric", "monte_carlo":
	default:
		return fmt.Errorf("risk.method must be historical, parametric or monte_carlo")
	}
	if c.Risk.HorizonDays <= 0 {
		return fmt.Errorf("risk.horizon_days must be > 0")
	}

	// Validation thresholds
	if c.Validation.MinScore < 0 || c.Validation.MinScore > 100 {
		return fmt.Errorf("validation.min_score must be between 0 and 100")
	}
	if c.Validation.MaxRuinProbability <= 0 || c.Validation.MaxRuinProbability > 1 {
		return fmt.Errorf("validation.max_ruin_probability must be in (0,1]")
	}
	if c.Validation.MaxPathDependency <= 0 || c.Validation.MaxPathDependency > 1 {
		return fmt.Errorf("validation.max_path_dependency must be in (0,1]")
	}
	if c.Validation.MaxVaR95Pct <= 0 {
		return fmt.Errorf("validation.max_var_95_pct must be > 0")
	}
	if c.Validation.SlippagePerContract < 0 {
		return fmt.Errorf("validation.slippage_per_contract must be >= 0")
	}

	return nil
}

// StartDate returns the parsed backtest start date. Validate must have
// succeeded first.
func (c *Config) StartDate() time.Time {
	t, _ := time.Parse(dateLayout, c.Backtest.Start)
	return t
}

// EndDate returns the parsed backtest end date.
func (c *Config) EndDate() time.Time {
	t, _ := time.Parse(dateLayout, c.Backtest.End)
	return t
}

// applyDefaults fills unset fields with working values.
func (c *Config) applyDefaults() {
	if c.Environment.LogLevel == "" {
		c.Environment.LogLevel = "info"
	}
	if c.Data.Provider == "" {
		c.Data.Provider = "synthetic"
	}
	if c.Backtest.TradeFrequencyDays == 0 {
		c.Backtest.TradeFrequencyDays = defaultTradeFrequencyDays
	}
	if c.Strategy.Kind == "" {
		c.Strategy.Kind = "strangle"
	}
	if c.Strategy.StrikeTick == 0 {
		c.Strategy.StrikeTick = 1.0
	}
	if c.Strategy.Quantity == 0 {
		c.Strategy.Quantity = 1
	}
	if c.MonteCarlo.Method == "" {
		c.MonteCarlo.Method = "shuffle"
	}
	if c.MonteCarlo.Trials == 0 {
		c.MonteCarlo.Trials = defaultTrials
	}
	if c.MonteCarlo.RuinThreshold == 0 {
		c.MonteCarlo.RuinThreshold = defaultRuinThreshold
	}
	if c.Risk.Method == "" {
		c.Risk.Method = "historical"
	}
	if c.Risk.HorizonDays == 0 {
		c.Risk.HorizonDays = 1
	}
	if c.Validation.MinScore == 0 {
		c.Validation.MinScore = 60
	}
	if c.Validation.MaxRuinProbability == 0 {
		c.Validation.MaxRuinProbability = 0.10
	}
	if c.Validation.MaxPathDependency == 0 {
		c.Validation.MaxPathDependency = 0.50
	}
	if c.Validation.MinCostAdjustedSharpe == 0 {
		c.Validation.MinCostAdjustedSharpe = 0.50
	}
	if c.Validation.MaxVaR95Pct == 0 {
		c.Validation.MaxVaR95Pct = 0.03
	}
	if c.Storage.Path == "" {
		c.Storage.Path = "validation_runs.json"
	}
}
