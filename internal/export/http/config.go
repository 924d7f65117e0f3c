package http

import (
	"errors"
	"time"
)

// Config configures the HTTP snapshot exporter.
type Config struct {
	// Enabled enables the HTTP exporter.
	Enabled bool `yaml:"enabled"`

	// Address is the HTTP endpoint snapshots are POSTed to.
	Address string `yaml:"address"`

	// Headers are additional HTTP headers to include in requests.
	Headers map[string]string `yaml:"headers"`

	// Compression selects the request body compression.
	// Valid values: none, gzip, zstd, zlib, snappy. Defaults to gzip.
	Compression string `yaml:"compression"`

	// BatchSize is the maximum number of snapshots per request.
	// Defaults to 64.
	BatchSize int `yaml:"batch_size"`

	// BatchTimeout is the maximum time to wait before sending a
	// partial batch. Defaults to 5s.
	BatchTimeout time.Duration `yaml:"batch_timeout"`

	// ExportTimeout bounds a single export request. Defaults to 30s.
	ExportTimeout time.Duration `yaml:"export_timeout"`

	// MaxQueueSize is the maximum number of queued snapshots;
	// snapshots are dropped once the queue is full. Defaults to 4096.
	MaxQueueSize int `yaml:"max_queue_size"`

	// Workers is the number of concurrent export workers.
	// Defaults to 1.
	Workers int `yaml:"workers"`

	// KeepAlive enables HTTP keep-alive connections. Defaults to true.
	KeepAlive *bool `yaml:"keep_alive"`

	// MetaClientName identifies the emitting instance in exported
	// snapshots.
	MetaClientName string `yaml:"meta_client_name"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	keepAlive := true

	return Config{
		Compression:   CompressionGzip,
		BatchSize:     64,
		BatchTimeout:  5 * time.Second,
		ExportTimeout: 30 * time.Second,
		MaxQueueSize:  4096,
		Workers:       1,
		KeepAlive:     &keepAlive,
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if !c.Enabled {
		return nil
	}

	if c.Address == "" {
		return errors.New("http address is required when enabled")
	}

	if c.BatchSize <= 0 {
		return errors.New("batch_size must be greater than 0")
	}

	if c.MaxQueueSize <= 0 {
		return errors.New("max_queue_size must be greater than 0")
	}

	if c.BatchSize > c.MaxQueueSize {
		return errors.New("batch_size cannot be greater than max_queue_size")
	}

	if c.Workers <= 0 {
		return errors.New("workers must be greater than 0")
	}

	switch c.Compression {
	case "", CompressionNone, CompressionGzip, CompressionZstd,
		CompressionZlib, CompressionSnappy:
	default:
		return errors.New("invalid compression type: " + c.Compression)
	}

	return nil
}

// ApplyDefaults fills unset fields from DefaultConfig.
func (c *Config) ApplyDefaults() {
	defaults := DefaultConfig()

	if c.Compression == "" {
		c.Compression = defaults.Compression
	}

	if c.BatchSize <= 0 {
		c.BatchSize = defaults.BatchSize
	}

	if c.BatchTimeout <= 0 {
		c.BatchTimeout = defaults.BatchTimeout
	}

	if c.ExportTimeout <= 0 {
		c.ExportTimeout = defaults.ExportTimeout
	}

	if c.MaxQueueSize <= 0 {
		c.MaxQueueSize = defaults.MaxQueueSize
	}

	if c.Workers <= 0 {
		c.Workers = defaults.Workers
	}

	if c.KeepAlive == nil {
		c.KeepAlive = defaults.KeepAlive
	}
}

// IsKeepAlive reports whether HTTP keep-alive is enabled.
func (c *Config) IsKeepAlive() bool {
	if c.KeepAlive == nil {
		return true
	}

	return *c.KeepAlive
}
