// Package source provides sample ingestion for the agent. A source
// emits integer samples with nanosecond timestamps on a channel; the
// agent is the single consumer.
package source

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
)

// Sample is one observed value with the timestamp it was observed at.
// Timestamps are Unix nanoseconds.
type Sample struct {
	Value     uint64
	Timestamp uint64
}

// Source defines the interface for sample producers.
type Source interface {
	// Name returns the source's name for logging.
	Name() string
	// Start begins producing samples. The samples channel is closed
	// when the source is exhausted or stopped.
	Start(ctx context.Context) error
	// Stop shuts down the source.
	Stop() error
	// Samples returns the channel samples are delivered on.
	Samples() <-chan Sample
}

// Source type constants.
const (
	TypeSynthetic = "synthetic"
	TypeFile      = "file"
)

// Config selects and configures a sample source.
type Config struct {
	// Type is the source type: synthetic or file.
	// Defaults to synthetic.
	Type string `yaml:"type"`

	Synthetic SyntheticConfig `yaml:"synthetic"`
	File      FileConfig      `yaml:"file"`
}

// Validate checks the source configuration.
func (c *Config) Validate() error {
	switch c.Type {
	case "", TypeSynthetic:
		return c.Synthetic.Validate()
	case TypeFile:
		return c.File.Validate()
	default:
		return fmt.Errorf("unknown source type: %s", c.Type)
	}
}

// New creates the configured Source.
func New(log logrus.FieldLogger, cfg Config) (Source, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	switch cfg.Type {
	case "", TypeSynthetic:
		return NewSynthetic(log, cfg.Synthetic), nil
	case TypeFile:
		return NewFile(log, cfg.File), nil
	default:
		return nil, fmt.Errorf("unknown source type: %s", cfg.Type)
	}
}
