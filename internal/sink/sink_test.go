package sink

import (
	"context"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() logrus.FieldLogger {
	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)

	return log
}

func TestToSnapshotJSON(t *testing.T) {
	now := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)

	snap := Snapshot{
		Time:        now,
		WindowStart: 1_000_000,
		Samples:     250,
		Values: []QuantileValue{
			{Fraction: 0.5, Value: 120},
			{Fraction: 0.99, Value: 4500},
		},
	}

	items := toSnapshotJSON(snap, "node-1")
	require.Len(t, items, 2)

	assert.Equal(t, now.Format(time.RFC3339Nano), items[0].SnapshotTime)
	assert.Equal(t, uint64(1_000_000), items[0].WindowStartNs)
	assert.Equal(t, 0.5, items[0].Fraction)
	assert.Equal(t, uint64(120), items[0].Value)
	assert.Equal(t, uint64(250), items[0].Samples)
	assert.Equal(t, "node-1", items[0].MetaClientName)

	assert.Equal(t, 0.99, items[1].Fraction)
	assert.Equal(t, uint64(4500), items[1].Value)
}

func TestLogSink_HandleSnapshot(t *testing.T) {
	s := NewLogSink(testLogger(), LogConfig{Enabled: true})
	require.NoError(t, s.Start(context.Background()))

	// Must not panic on an empty snapshot.
	s.HandleSnapshot(Snapshot{})

	s.HandleSnapshot(Snapshot{
		Time:    time.Now(),
		Samples: 10,
		Values:  []QuantileValue{{Fraction: 0.5, Value: 7}},
	})

	require.NoError(t, s.Stop())
}
