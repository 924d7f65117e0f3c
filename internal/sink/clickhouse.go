package sink

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ethpandaops/latquant/internal/export"
)

// ClickHouseSink writes snapshot rows to ClickHouse in batches. Each
// snapshot expands to one row per configured fraction.
type ClickHouseSink struct {
	log    logrus.FieldLogger
	writer *export.ClickHouseWriter
	health *export.HealthMetrics

	mu    sync.Mutex
	batch []snapshotRow

	cancel context.CancelFunc
	done   chan struct{}
	snapCh chan Snapshot
}

type snapshotRow struct {
	SnapshotTime  time.Time
	WindowStartNs uint64
	Fraction      float64
	Value         uint64
	Samples       uint64
	ClientName    string
}

var _ Sink = (*ClickHouseSink)(nil)

// NewClickHouseSink creates a new ClickHouse snapshot sink.
func NewClickHouseSink(
	log logrus.FieldLogger,
	cfg ClickHouseSinkConfig,
	health *export.HealthMetrics,
) *ClickHouseSink {
	return &ClickHouseSink{
		log:    log.WithField("sink", "clickhouse"),
		writer: export.NewClickHouseWriter(log, cfg.ClickHouse),
		health: health,
		batch:  make([]snapshotRow, 0, cfg.ClickHouse.BatchSize),
		done:   make(chan struct{}),
		snapCh: make(chan Snapshot, 256),
	}
}

func (s *ClickHouseSink) Name() string { return "clickhouse" }

func (s *ClickHouseSink) Start(ctx context.Context) error {
	if err := s.writer.Start(ctx); err != nil {
		return err
	}

	if s.health != nil {
		s.health.ClickHouseConnected.Set(1)
	}

	ctx, s.cancel = context.WithCancel(ctx)

	go s.runLoop(ctx)

	s.log.Info("ClickHouse sink started")

	return nil
}

func (s *ClickHouseSink) Stop() error {
	if s.cancel == nil {
		return s.writer.Stop()
	}

	s.cancel()
	<-s.done

	// Flush whatever is left.
	s.mu.Lock()
	remaining := s.batch
	s.batch = nil
	s.mu.Unlock()

	if len(remaining) > 0 {
		if err := s.flush(context.Background(), remaining); err != nil {
			s.log.WithError(err).Error("Final flush failed")
			s.reportError("final_flush")
		}
	}

	return s.writer.Stop()
}

func (s *ClickHouseSink) HandleSnapshot(snap Snapshot) {
	select {
	case s.snapCh <- snap:
	default:
		s.log.Warn("ClickHouse sink channel full, dropping snapshot")
		s.reportError("queue_full")
	}
}

func (s *ClickHouseSink) runLoop(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(s.writer.Config().FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case snap := <-s.snapCh:
			s.addSnapshot(ctx, snap)
		case <-ticker.C:
			s.tickFlush(ctx)
		}
	}
}

func (s *ClickHouseSink) addSnapshot(ctx context.Context, snap Snapshot) {
	clientName := s.writer.Config().MetaClientName

	s.mu.Lock()

	for _, qv := range snap.Values {
		s.batch = append(s.batch, snapshotRow{
			SnapshotTime:  snap.Time,
			WindowStartNs: snap.WindowStart,
			Fraction:      qv.Fraction,
			Value:         qv.Value,
			Samples:       snap.Samples,
			ClientName:    clientName,
		})
	}

	shouldFlush := len(s.batch) >= s.writer.Config().BatchSize

	var toFlush []snapshotRow

	if shouldFlush {
		toFlush = s.batch
		s.batch = s.batch[:0]
	}

	s.mu.Unlock()

	if shouldFlush {
		if err := s.flush(ctx, toFlush); err != nil {
			s.log.WithError(err).Error("Batch flush failed")
			s.reportError("flush")
		}
	}
}

func (s *ClickHouseSink) tickFlush(ctx context.Context) {
	s.mu.Lock()

	if len(s.batch) == 0 {
		s.mu.Unlock()

		return
	}

	toFlush := s.batch
	s.batch = s.batch[:0]
	s.mu.Unlock()

	if err := s.flush(ctx, toFlush); err != nil {
		s.log.WithError(err).Error("Periodic flush failed")
		s.reportError("flush")
	}
}

func (s *ClickHouseSink) flush(ctx context.Context, rows []snapshotRow) error {
	if len(rows) == 0 {
		return nil
	}

	start := time.Now()

	cfg := s.writer.Config()
	table := fmt.Sprintf("%s.%s", cfg.Database, cfg.Table)

	batch, err := s.writer.Conn().PrepareBatch(
		ctx,
		fmt.Sprintf(
			"INSERT INTO %s (snapshot_time, window_start_ns, fraction, value, samples, meta_client_name)",
			table,
		),
	)
	if err != nil {
		return fmt.Errorf("preparing batch: %w", err)
	}

	for _, row := range rows {
		if err := batch.Append(
			row.SnapshotTime,
			row.WindowStartNs,
			row.Fraction,
			row.Value,
			row.Samples,
			row.ClientName,
		); err != nil {
			return fmt.Errorf("appending row: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("sending batch of %d rows: %w", len(rows), err)
	}

	if s.health != nil {
		s.health.SinkFlushDuration.WithLabelValues("clickhouse").
			Observe(time.Since(start).Seconds())
		s.health.SinkBatchSize.WithLabelValues("clickhouse").
			Observe(float64(len(rows)))
	}

	s.log.WithField("rows", len(rows)).
		Debug("Flushed snapshot rows")

	return nil
}

func (s *ClickHouseSink) reportError(kind string) {
	if s.health != nil {
		s.health.ExportErrors.WithLabelValues("clickhouse", kind).Inc()
	}
}
