package agent

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ethpandaops/latquant/internal/export"
	"github.com/ethpandaops/latquant/internal/quantile"
	"github.com/ethpandaops/latquant/internal/sink"
	"github.com/ethpandaops/latquant/internal/source"
)

// Agent is the top-level orchestrator for latquant.
type Agent interface {
	// Start initializes all components and begins estimation.
	Start(ctx context.Context) error
	// Stop shuts down all components gracefully.
	Stop() error
}

type agent struct {
	log    logrus.FieldLogger
	cfg    *Config
	health *export.HealthMetrics
	src    source.Source
	sinks  []sink.Sink

	// window is only touched from the run goroutine. Inserts and
	// quantile queries are serialized there, which is the single-
	// writer discipline the estimator requires.
	window          *quantile.SlidingWindow
	lastWindowStart uint64

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a new Agent.
func New(log logrus.FieldLogger, cfg *Config) (Agent, error) {
	health := export.NewHealthMetrics(log, cfg.Health)

	window, err := quantile.NewSlidingWindow(
		cfg.Window.Capacity,
		uint64(cfg.Window.Duration.Nanoseconds()),
		cfg.Range.Start,
		cfg.Range.End,
	)
	if err != nil {
		return nil, fmt.Errorf("creating sliding window: %w", err)
	}

	src, err := source.New(log, cfg.Source)
	if err != nil {
		return nil, fmt.Errorf("creating source: %w", err)
	}

	a := &agent{
		log:    log.WithField("component", "agent"),
		cfg:    cfg,
		health: health,
		src:    src,
		window: window,
		sinks:  make([]sink.Sink, 0, 3),
	}

	if cfg.Sinks.Log.Enabled {
		a.sinks = append(a.sinks, sink.NewLogSink(log, cfg.Sinks.Log))
	}

	if cfg.Sinks.ClickHouse.Enabled {
		a.sinks = append(a.sinks, sink.NewClickHouseSink(
			log, cfg.Sinks.ClickHouse, health,
		))
	}

	if cfg.Sinks.HTTP.Enabled {
		httpSink, err := sink.NewHTTPSink(log, cfg.Sinks.HTTP, health)
		if err != nil {
			return nil, fmt.Errorf("creating HTTP sink: %w", err)
		}

		a.sinks = append(a.sinks, httpSink)
	}

	return a, nil
}

func (a *agent) Start(ctx context.Context) error {
	ctx, a.cancel = context.WithCancel(ctx)

	if err := a.health.Start(ctx); err != nil {
		return fmt.Errorf("starting health metrics: %w", err)
	}

	for _, s := range a.sinks {
		if err := s.Start(ctx); err != nil {
			return fmt.Errorf("starting %s sink: %w", s.Name(), err)
		}

		a.log.WithField("sink", s.Name()).Info("Sink started")
	}

	if err := a.src.Start(ctx); err != nil {
		return fmt.Errorf("starting %s source: %w", a.src.Name(), err)
	}

	a.wg.Add(1)

	go a.run(ctx)

	a.log.WithFields(logrus.Fields{
		"range_start":     a.cfg.Range.Start,
		"range_end":       a.cfg.Range.End,
		"window_capacity": a.cfg.Window.Capacity,
		"window_duration": a.cfg.Window.Duration,
	}).Info("Agent started")

	return nil
}

func (a *agent) Stop() error {
	if a.cancel != nil {
		a.cancel()
	}

	a.wg.Wait()

	var errs []error

	if err := a.src.Stop(); err != nil {
		errs = append(errs, fmt.Errorf("stopping source: %w", err))
	}

	for _, s := range a.sinks {
		if err := s.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("stopping %s sink: %w", s.Name(), err))
		}
	}

	if err := a.health.Stop(); err != nil {
		errs = append(errs, fmt.Errorf("stopping health metrics: %w", err))
	}

	return errors.Join(errs...)
}

// run is the single-writer loop. All window mutation and every
// quantile query happens here.
func (a *agent) run(ctx context.Context) {
	defer a.wg.Done()

	ticker := time.NewTicker(a.cfg.ReportInterval)
	defer ticker.Stop()

	samples := a.src.Samples()

	for {
		select {
		case <-ctx.Done():
			return
		case s, ok := <-samples:
			if !ok {
				// Source exhausted; keep reporting until stopped.
				a.log.Info("Sample source exhausted")

				samples = nil

				continue
			}

			a.insert(s)
		case <-ticker.C:
			a.report()
		}
	}
}

func (a *agent) insert(s source.Sample) {
	start := time.Now()

	err := a.window.Insert(s.Value, s.Timestamp)

	a.health.InsertDuration.Observe(time.Since(start).Seconds())
	a.health.SamplesReceived.Inc()

	if err != nil {
		if errors.Is(err, quantile.ErrValueOutOfRange) {
			a.health.SamplesRejected.Inc()

			a.log.WithField("value", s.Value).
				Debug("Sample outside declared range")

			return
		}

		a.log.WithError(err).Error("Insert failed")
	}
}

func (a *agent) report() {
	start := time.Now()

	values, err := a.window.Quantiles(a.cfg.Quantiles)
	if err != nil {
		if errors.Is(err, quantile.ErrNoData) {
			a.log.Debug("No samples in window, skipping snapshot")

			return
		}

		a.health.QuantileErrors.Inc()
		a.log.WithError(err).Error("Quantile computation failed")

		return
	}

	a.health.ReportDuration.Observe(time.Since(start).Seconds())
	a.health.SnapshotsTotal.Inc()
	a.health.WindowSamples.Set(float64(a.window.Samples()))
	a.trackAdvances()

	snap := sink.Snapshot{
		Time:        time.Now(),
		WindowStart: a.window.WindowStart(),
		Samples:     a.window.Samples(),
		Values:      make([]sink.QuantileValue, len(values)),
	}

	for i, f := range a.cfg.Quantiles {
		snap.Values[i] = sink.QuantileValue{Fraction: f, Value: values[i]}

		a.health.QuantileValue.
			WithLabelValues(strconv.FormatFloat(f, 'g', -1, 64)).
			Set(float64(values[i]))
	}

	for _, s := range a.sinks {
		s.HandleSnapshot(snap)
	}
}

func (a *agent) trackAdvances() {
	ws := a.window.WindowStart()

	if a.lastWindowStart != 0 && ws > a.lastWindowStart {
		steps := (ws - a.lastWindowStart) / a.window.Duration()
		a.health.WindowAdvances.Add(float64(steps))
	}

	a.lastWindowStart = ws
}
