// Package config handles configuration loading and validation.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/tathienbao/options-lab/internal/hypothesis"
	"github.com/tathienbao/options-lab/internal/market"
	"github.com/tathienbao/options-lab/internal/metrics"
	"github.com/tathienbao/options-lab/internal/strategy"
	"github.com/tathienbao/options-lab/internal/types"
	"gopkg.in/yaml.v3"
)

// Config represents the full application configuration.
type Config struct {
	Simulation SimulationConfig   `yaml:"simulation"`
	Hypotheses []HypothesisConfig `yaml:"hypotheses"`
	Results    ResultsConfig      `yaml:"results"`
	Metrics    MetricsConfig      `yaml:"metrics"`
	Alerting   AlertingConfig     `yaml:"alerting"`
	Logging    LoggingConfig      `yaml:"logging"`
}

// SimulationConfig holds simulator and harness settings.
type SimulationConfig struct {
	InitialCash      float64                `yaml:"initial_cash"`
	Seed             uint64                 `yaml:"seed"`
	Underlying       string                 `yaml:"underlying"`
	ProgressInterval int                    `yaml:"progress_interval"`
	Quotes           map[string]QuoteConfig `yaml:"quotes"` // empty uses the built-in table
}

// QuoteConfig seeds one symbol.
type QuoteConfig struct {
	Price      float64 `yaml:"price"`
	Volatility float64 `yaml:"volatility"`
}

// HypothesisConfig is one hypothesis to test.
type HypothesisConfig struct {
	Name            string             `yaml:"name"`
	Description     string             `yaml:"description"`
	Strategy        string             `yaml:"strategy"`
	NumTrades       int                `yaml:"num_trades"`
	Parameters      map[string]float64 `yaml:"parameters"`
	SuccessCriteria map[string]float64 `yaml:"success_criteria"`
}

// ResultsConfig holds result store settings.
type ResultsConfig struct {
	Enabled         bool   `yaml:"enabled"`
	Dir             string `yaml:"dir"`
	SQLitePath      string `yaml:"sqlite_path"`
	WritesPerSecond int    `yaml:"writes_per_second"` // 0 = unthrottled
}

// MetricsConfig holds metrics settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Port    int    `yaml:"port"`
	Path    string `yaml:"path"`
}

// AlertingConfig holds alerting settings.
type AlertingConfig struct {
	Enabled bool     `yaml:"enabled"`
	Events  []string `yaml:"events"`
}

// LoggingConfig holds log settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // text | json
}

// Default returns the built-in configuration: the three reference
// hypotheses against SPY with 100,000 starting cash.
func Default() *Config {
	defs := strategy.Definitions()
	hyps := make([]HypothesisConfig, len(defs))
	for i, d := range defs {
		hyps[i] = HypothesisConfig{
			Name:            d.Name,
			Description:     d.Description,
			Strategy:        d.Strategy,
			NumTrades:       d.NumTrades,
			Parameters:      d.Parameters.Clone(),
			SuccessCriteria: copyMap(d.SuccessCriteria),
		}
	}

	return &Config{
		Simulation: SimulationConfig{
			InitialCash:      100000,
			Seed:             1,
			Underlying:       "SPY",
			ProgressInterval: hypothesis.DefaultProgressInterval,
		},
		Hypotheses: hyps,
		Results: ResultsConfig{
			Enabled: true,
			Dir:     "hypothesis_results",
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Port:    9090,
			Path:    "/metrics",
		},
		Alerting: AlertingConfig{
			Enabled: true,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	return LoadFromBytes(data)
}

// LoadFromBytes loads configuration from YAML bytes. Unset fields keep
// their defaults; a hypotheses list replaces the default list.
func LoadFromBytes(data []byte) (*Config, error) {
	// Expand environment variables
	expanded := os.ExpandEnv(string(data))

	cfg := Default()
	cfg.Hypotheses = nil

	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if cfg.Hypotheses == nil {
		cfg.Hypotheses = Default().Hypotheses
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// Validate validates the configuration and reports every problem at once.
func (c *Config) Validate() error {
	var errs []string

	// Simulation validation
	if c.Simulation.InitialCash <= 0 {
		errs = append(errs, "simulation.initial_cash must be positive")
	}
	if c.Simulation.Underlying == "" {
		errs = append(errs, "simulation.underlying is required")
	}
	if c.Simulation.ProgressInterval < 0 {
		errs = append(errs, "simulation.progress_interval must not be negative")
	}
	for sym, q := range c.Simulation.Quotes {
		if q.Price <= 0 {
			errs = append(errs, fmt.Sprintf("simulation.quotes.%s.price must be positive", sym))
		}
		if q.Volatility < 0 {
			errs = append(errs, fmt.Sprintf("simulation.quotes.%s.volatility must not be negative", sym))
		}
	}

	// Hypothesis validation
	if len(c.Hypotheses) == 0 {
		errs = append(errs, "at least one hypothesis is required")
	}
	seen := make(map[string]bool, len(c.Hypotheses))
	files := make(map[string]string, len(c.Hypotheses))
	for i, h := range c.Hypotheses {
		prefix := fmt.Sprintf("hypotheses[%d]", i)
		if h.Name == "" {
			errs = append(errs, prefix+".name is required")
		} else if seen[h.Name] {
			errs = append(errs, fmt.Sprintf("%s.name %q is duplicated", prefix, h.Name))
		} else {
			// Results of one run share a timestamp.
			file := hypothesis.Artifact{TestInfo: hypothesis.TestInfo{Name: h.Name, Strategy: h.Strategy}}.FileName()
			if other, ok := files[file]; ok {
				errs = append(errs, fmt.Sprintf("%s.name %q saves to the same result file as %q", prefix, h.Name, other))
			}
			files[file] = h.Name
		}
		seen[h.Name] = true

		if h.NumTrades <= 0 {
			errs = append(errs, prefix+".num_trades must be positive")
		}
		if _, err := strategy.New(h.Strategy, h.Parameters); err != nil {
			errs = append(errs, fmt.Sprintf("%s.strategy: %v", prefix, err))
		}
		if err := hypothesis.ValidateCriteria(h.SuccessCriteria); err != nil {
			errs = append(errs, fmt.Sprintf("%s.success_criteria: %v", prefix, err))
		}
	}

	// Results validation
	if c.Results.Enabled && c.Results.Dir == "" && c.Results.SQLitePath == "" {
		errs = append(errs, "results.dir or results.sqlite_path is required when results are enabled")
	}
	if c.Results.WritesPerSecond < 0 {
		errs = append(errs, "results.writes_per_second must not be negative")
	}

	// Metrics validation
	if c.Metrics.Enabled {
		if c.Metrics.Port <= 0 || c.Metrics.Port > 65535 {
			errs = append(errs, "metrics.port must be between 1 and 65535")
		}
		if !strings.HasPrefix(c.Metrics.Path, "/") {
			errs = append(errs, "metrics.path must start with /")
		}
	}

	// Logging validation
	if _, ok := parseLevel(c.Logging.Level); !ok {
		errs = append(errs, fmt.Sprintf("logging.level %q is not one of debug, info, warn, error", c.Logging.Level))
	}
	if f := c.Logging.Format; f != "" && f != "text" && f != "json" {
		errs = append(errs, fmt.Sprintf("logging.format %q must be text or json", f))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %s", types.ErrInvalidConfig, strings.Join(errs, "; "))
	}

	return nil
}

// HarnessConfig converts to hypothesis.Config.
func (c *Config) HarnessConfig() hypothesis.Config {
	hc := hypothesis.DefaultConfig()
	hc.InitialCash = decimal.NewFromFloat(c.Simulation.InitialCash)
	hc.Seed = c.Simulation.Seed
	hc.Underlying = c.Simulation.Underlying
	if c.Simulation.ProgressInterval > 0 {
		hc.ProgressInterval = c.Simulation.ProgressInterval
	}
	if len(c.Simulation.Quotes) > 0 {
		hc.Quotes = make(map[string]market.Quote, len(c.Simulation.Quotes))
		for sym, q := range c.Simulation.Quotes {
			hc.Quotes[sym] = market.Quote{Price: q.Price, Volatility: q.Volatility}
		}
	}
	return hc
}

// Definitions converts the hypotheses list.
func (c *Config) Definitions() []strategy.Definition {
	defs := make([]strategy.Definition, len(c.Hypotheses))
	for i, h := range c.Hypotheses {
		defs[i] = strategy.Definition{
			Name:            h.Name,
			Description:     h.Description,
			Strategy:        h.Strategy,
			NumTrades:       h.NumTrades,
			Parameters:      strategy.Parameters(copyMap(h.Parameters)),
			SuccessCriteria: copyMap(h.SuccessCriteria),
		}
	}
	return defs
}

// MetricsServerConfig converts to metrics.ServerConfig.
func (c *Config) MetricsServerConfig() metrics.ServerConfig {
	sc := metrics.DefaultServerConfig()
	sc.Port = c.Metrics.Port
	if c.Metrics.Path != "" {
		sc.MetricsPath = c.Metrics.Path
	}
	return sc
}

// LogLevel returns the configured slog level.
func (c *Config) LogLevel() slog.Level {
	level, _ := parseLevel(c.Logging.Level)
	return level
}

// IsAlertEventEnabled checks if an alert event type is enabled.
func (c *Config) IsAlertEventEnabled(event string) bool {
	if !c.Alerting.Enabled {
		return false
	}
	// If no events specified, all are enabled
	if len(c.Alerting.Events) == 0 {
		return true
	}
	for _, e := range c.Alerting.Events {
		if e == event || e == "all" {
			return true
		}
	}
	return false
}

func parseLevel(s string) (slog.Level, bool) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, true
	case "", "info":
		return slog.LevelInfo, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	default:
		return slog.LevelInfo, false
	}
}

func copyMap(m map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
