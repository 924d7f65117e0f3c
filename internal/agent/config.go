package agent

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ethpandaops/latquant/internal/export"
	"github.com/ethpandaops/latquant/internal/quantile"
	"github.com/ethpandaops/latquant/internal/sink"
	"github.com/ethpandaops/latquant/internal/source"
)

// Config is the top-level configuration for the latquant agent.
type Config struct {
	// LogLevel sets the logging verbosity (debug, info, warn, error).
	LogLevel string `yaml:"log_level"`

	// Range declares the observable value domain. Values outside it
	// are counted as rejected. The unit is whatever the source
	// emits; the bundled sources emit nanoseconds.
	Range RangeConfig `yaml:"range"`

	// Window configures the sliding time window.
	Window WindowConfig `yaml:"window"`

	// Quantiles lists the fractions reported in each snapshot.
	// Defaults to [0.5, 0.9, 0.99].
	Quantiles []float64 `yaml:"quantiles"`

	// ReportInterval is how often a snapshot is computed.
	// Defaults to 5s.
	ReportInterval time.Duration `yaml:"report_interval"`

	// Source configures sample ingestion.
	Source source.Config `yaml:"source"`

	// Sinks configures snapshot export sinks.
	Sinks sink.Config `yaml:"sinks"`

	// Health configures the Prometheus health metrics server.
	Health export.HealthConfig `yaml:"health"`
}

// RangeConfig is the inclusive value domain of the estimator.
type RangeConfig struct {
	Start uint64 `yaml:"start"`
	End   uint64 `yaml:"end"`
}

// WindowConfig configures the sliding window ring.
type WindowConfig struct {
	// Capacity is the number of retained windows. Defaults to 12.
	Capacity int `yaml:"capacity"`

	// Duration is the length of one window. Defaults to 5s.
	Duration time.Duration `yaml:"duration"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		LogLevel: "info",
		Range: RangeConfig{
			Start: 0,
			End:   100_000,
		},
		Window: WindowConfig{
			Capacity: 12,
			Duration: 5 * time.Second,
		},
		Quantiles:      []float64{0.5, 0.9, 0.99},
		ReportInterval: 5 * time.Second,
		Sinks: sink.Config{
			Log: sink.LogConfig{Enabled: true},
		},
		Health: export.HealthConfig{
			Addr: ":9090",
		},
	}
}

// LoadConfig reads and parses a YAML configuration file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}

	cfg := DefaultConfig()

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Validate checks the configuration for required fields and consistency.
func (c *Config) Validate() error {
	if c.Range.End < c.Range.Start {
		return fmt.Errorf("range.end must be >= range.start")
	}

	if size := c.Range.End - c.Range.Start + 1; size == 0 || size > quantile.MaxRangeSize {
		return fmt.Errorf(
			"range spans %d values, maximum is %d", size, quantile.MaxRangeSize,
		)
	}

	if c.Window.Capacity <= 0 {
		return fmt.Errorf("window.capacity must be positive")
	}

	if c.Window.Duration <= 0 {
		return fmt.Errorf("window.duration must be positive")
	}

	if c.ReportInterval <= 0 {
		return fmt.Errorf("report_interval must be positive")
	}

	if len(c.Quantiles) == 0 {
		return fmt.Errorf("at least one quantile fraction is required")
	}

	for _, f := range c.Quantiles {
		if f < 0 || f > 1 {
			return fmt.Errorf("quantile fraction %v is outside [0, 1]", f)
		}
	}

	if err := c.Source.Validate(); err != nil {
		return fmt.Errorf("source: %w", err)
	}

	if err := c.Sinks.HTTP.Validate(); err != nil {
		return fmt.Errorf("sinks.http: %w", err)
	}

	if c.Sinks.ClickHouse.Enabled && c.Sinks.ClickHouse.ClickHouse.Endpoint == "" {
		return fmt.Errorf("sinks.clickhouse.clickhouse.endpoint is required when enabled")
	}

	return nil
}
