// Package sink fans quantile snapshots out to their configured
// destinations (log, ClickHouse, HTTP).
package sink

import (
	"context"
	"time"

	"github.com/ethpandaops/latquant/internal/export"
	httpexport "github.com/ethpandaops/latquant/internal/export/http"
)

// Config holds configuration for all sinks.
type Config struct {
	Log        LogConfig            `yaml:"log"`
	ClickHouse ClickHouseSinkConfig `yaml:"clickhouse"`
	HTTP       httpexport.Config    `yaml:"http"`
}

// QuantileValue is one estimated quantile inside a snapshot.
type QuantileValue struct {
	Fraction float64
	Value    uint64
}

// Snapshot is the result of one quantile computation over the
// sliding window, fanned out to every enabled sink.
type Snapshot struct {
	// Time is when the snapshot was computed.
	Time time.Time
	// WindowStart is the active window's start, Unix nanoseconds.
	WindowStart uint64
	// Samples is the number of observations the snapshot covers.
	Samples uint64
	// Values holds one entry per configured fraction, in config order.
	Values []QuantileValue
}

// Sink defines the interface for snapshot consumers.
type Sink interface {
	// Name returns the sink's name for logging.
	Name() string
	// Start initializes the sink.
	Start(ctx context.Context) error
	// Stop shuts down the sink, flushing buffered data.
	Stop() error
	// HandleSnapshot processes a single snapshot. It must not block
	// the caller.
	HandleSnapshot(snap Snapshot)
}

// ClickHouseSinkConfig configures the ClickHouse snapshot sink.
type ClickHouseSinkConfig struct {
	Enabled    bool                    `yaml:"enabled"`
	ClickHouse export.ClickHouseConfig `yaml:"clickhouse"`
}
