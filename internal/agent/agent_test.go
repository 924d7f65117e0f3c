package agent

import (
	"context"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/ethpandaops/latquant/internal/export"
	"github.com/ethpandaops/latquant/internal/sink"
	"github.com/ethpandaops/latquant/internal/source"
)

func testAgentConfig() *Config {
	cfg := DefaultConfig()
	cfg.Health = export.HealthConfig{Addr: "127.0.0.1:0"}
	cfg.ReportInterval = 50 * time.Millisecond
	cfg.Window.Duration = 100 * time.Millisecond
	cfg.Sinks.Log = sink.LogConfig{Enabled: true}
	cfg.Source = source.Config{
		Type: source.TypeSynthetic,
		Synthetic: source.SyntheticConfig{
			Rate: 5000,
			Min:  0,
			Max:  10_000,
		},
	}

	return cfg
}

func TestAgent_StartStop(t *testing.T) {
	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)

	a, err := New(log, testAgentConfig())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, a.Start(ctx))

	// Let a few report intervals pass with samples flowing.
	time.Sleep(300 * time.Millisecond)

	require.NoError(t, a.Stop())
}

func TestNew_InvalidWindow(t *testing.T) {
	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)

	cfg := testAgentConfig()
	cfg.Window.Capacity = 0

	_, err := New(log, cfg)
	require.Error(t, err)
}
