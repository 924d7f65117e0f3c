package sink

import (
	"context"
	"time"

	processor "github.com/ethpandaops/go-batch-processor"
	"github.com/sirupsen/logrus"

	"github.com/ethpandaops/latquant/internal/export"
	httpexport "github.com/ethpandaops/latquant/internal/export/http"
)

// SnapshotJSON is the JSON schema for HTTP export of snapshots.
// One object is emitted per fraction per snapshot.
type SnapshotJSON struct {
	SnapshotTime   string  `json:"snapshot_time"`
	WindowStartNs  uint64  `json:"window_start_ns"`
	Fraction       float64 `json:"fraction"`
	Value          uint64  `json:"value"`
	Samples        uint64  `json:"samples"`
	MetaClientName string  `json:"meta_client_name,omitempty"`
}

// HTTPSink streams snapshots to an HTTP endpoint as NDJSON batches.
type HTTPSink struct {
	log    logrus.FieldLogger
	cfg    httpexport.Config
	health *export.HealthMetrics

	proc *processor.BatchItemProcessor[SnapshotJSON]
}

var _ Sink = (*HTTPSink)(nil)

// NewHTTPSink creates a new HTTP snapshot sink.
func NewHTTPSink(
	log logrus.FieldLogger,
	cfg httpexport.Config,
	health *export.HealthMetrics,
) (*HTTPSink, error) {
	proc, err := httpexport.NewProcessor[SnapshotJSON](log, cfg, "snapshot_http")
	if err != nil {
		return nil, err
	}

	return &HTTPSink{
		log:    log.WithField("sink", "http"),
		cfg:    cfg,
		health: health,
		proc:   proc,
	}, nil
}

func (s *HTTPSink) Name() string { return "http" }

func (s *HTTPSink) Start(ctx context.Context) error {
	s.proc.Start(ctx)

	s.log.WithField("address", s.cfg.Address).Info("HTTP sink started")

	return nil
}

func (s *HTTPSink) Stop() error {
	return s.proc.Shutdown(context.Background())
}

func (s *HTTPSink) HandleSnapshot(snap Snapshot) {
	items := toSnapshotJSON(snap, s.cfg.MetaClientName)

	if err := s.proc.Write(context.Background(), items); err != nil {
		s.log.WithError(err).Debug("HTTP export failed (queue may be full)")

		if s.health != nil {
			s.health.ExportErrors.WithLabelValues("http", "queue").Inc()
		}
	}
}

func toSnapshotJSON(snap Snapshot, clientName string) []*SnapshotJSON {
	items := make([]*SnapshotJSON, 0, len(snap.Values))

	for _, qv := range snap.Values {
		items = append(items, &SnapshotJSON{
			SnapshotTime:   snap.Time.Format(time.RFC3339Nano),
			WindowStartNs:  snap.WindowStart,
			Fraction:       qv.Fraction,
			Value:          qv.Value,
			Samples:        snap.Samples,
			MetaClientName: clientName,
		})
	}

	return items
}
