package export

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/http/pprof"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// HealthConfig configures the Prometheus health metrics server.
type HealthConfig struct {
	// Addr is the listen address for the health metrics server.
	// Defaults to ":9090".
	Addr string `yaml:"addr"`
}

// HealthMetrics exposes Prometheus metrics for agent health.
type HealthMetrics struct {
	log      logrus.FieldLogger
	addr     string
	server   *http.Server
	listener net.Listener
	registry *prometheus.Registry

	// Ingestion
	SamplesReceived prometheus.Counter
	SamplesRejected prometheus.Counter

	// Window state
	WindowAdvances  prometheus.Counter
	WindowSamples   prometheus.Gauge
	QuantileValue   *prometheus.GaugeVec // fraction
	SnapshotsTotal  prometheus.Counter
	QuantileErrors  prometheus.Counter
	InsertDuration  prometheus.Histogram
	ReportDuration  prometheus.Histogram

	// Export
	ExportErrors        *prometheus.CounterVec // sink, error_type
	ClickHouseConnected prometheus.Gauge
	SinkFlushDuration   *prometheus.HistogramVec // sink
	SinkBatchSize       *prometheus.HistogramVec // sink

	running atomic.Bool
}

// NewHealthMetrics creates a new health metrics server.
func NewHealthMetrics(
	log logrus.FieldLogger,
	cfg HealthConfig,
) *HealthMetrics {
	reg := prometheus.NewRegistry()

	h := &HealthMetrics{
		log:      log.WithField("component", "health"),
		addr:     cfg.Addr,
		registry: reg,

		SamplesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "latquant",
			Name:      "samples_received_total",
			Help:      "Total samples received from the source.",
		}),
		SamplesRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "latquant",
			Name:      "samples_rejected_total",
			Help:      "Total samples rejected as outside the declared value range.",
		}),
		WindowAdvances: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "latquant",
			Name:      "window_advances_total",
			Help:      "Total sliding window advancement steps.",
		}),
		WindowSamples: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "latquant",
			Name:      "window_samples",
			Help:      "Samples currently retained across all windows.",
		}),
		QuantileValue: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "latquant",
				Name:      "quantile_value",
				Help:      "Latest estimated quantile value by fraction.",
			},
			[]string{"fraction"},
		),
		SnapshotsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "latquant",
			Name:      "snapshots_total",
			Help:      "Total quantile snapshots computed.",
		}),
		QuantileErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "latquant",
			Name:      "quantile_errors_total",
			Help:      "Total failed quantile computations.",
		}),
		InsertDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "latquant",
			Name:      "insert_duration_seconds",
			Help:      "Time spent inserting one sample.",
			Buckets:   prometheus.ExponentialBuckets(1e-7, 10, 6),
		}),
		ReportDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "latquant",
			Name:      "report_duration_seconds",
			Help:      "Time spent computing one quantile snapshot.",
			Buckets:   prometheus.ExponentialBuckets(1e-6, 10, 6),
		}),
		ExportErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "latquant",
				Name:      "export_errors_total",
				Help:      "Total export errors by sink and error type.",
			},
			[]string{"sink", "error_type"},
		),
		ClickHouseConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "latquant",
			Name:      "clickhouse_connected",
			Help:      "Whether the ClickHouse sink is connected (1=yes, 0=no).",
		}),
		SinkFlushDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "latquant",
				Name:      "sink_flush_duration_seconds",
				Help:      "Sink flush latency.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"sink"},
		),
		SinkBatchSize: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "latquant",
				Name:      "sink_batch_size",
				Help:      "Rows per sink flush.",
				Buckets:   prometheus.ExponentialBuckets(1, 4, 8),
			},
			[]string{"sink"},
		),
	}

	reg.MustRegister(
		h.SamplesReceived,
		h.SamplesRejected,
		h.WindowAdvances,
		h.WindowSamples,
		h.QuantileValue,
		h.SnapshotsTotal,
		h.QuantileErrors,
		h.InsertDuration,
		h.ReportDuration,
		h.ExportErrors,
		h.ClickHouseConnected,
		h.SinkFlushDuration,
		h.SinkBatchSize,
	)

	return h
}

// Start begins serving the /metrics endpoint.
func (h *HealthMetrics) Start(_ context.Context) error {
	if h.addr == "" {
		h.addr = ":9090"
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(
		h.registry,
		promhttp.HandlerOpts{},
	))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "ok")
	})

	// pprof endpoints for CPU/memory profiling.
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)

	ln, err := net.Listen("tcp", h.addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", h.addr, err)
	}

	h.listener = ln

	h.server = &http.Server{
		Handler: mux,
	}

	h.running.Store(true)

	go func() {
		h.log.WithField("addr", ln.Addr().String()).
			Info("Health metrics server started")

		if err := h.server.Serve(ln); err != nil &&
			err != http.ErrServerClosed {
			h.log.WithError(err).
				Error("Health metrics server error")
		}

		h.running.Store(false)
	}()

	return nil
}

// Addr returns the actual listener address. Useful when started
// with ":0" to get the OS-assigned port.
func (h *HealthMetrics) Addr() string {
	if h.listener != nil {
		return h.listener.Addr().String()
	}

	return h.addr
}

// Stop shuts down the health metrics server.
func (h *HealthMetrics) Stop() error {
	if h.server == nil {
		return nil
	}

	return h.server.Close()
}
