package sink

import (
	"context"
	"strconv"

	"github.com/sirupsen/logrus"
)

// LogConfig configures the logging sink.
type LogConfig struct {
	Enabled bool `yaml:"enabled"`
}

// LogSink writes every snapshot to the log. It is the default sink
// and doubles as the human-readable output of the agent.
type LogSink struct {
	log logrus.FieldLogger
	cfg LogConfig
}

var _ Sink = (*LogSink)(nil)

// NewLogSink creates a new logging sink.
func NewLogSink(log logrus.FieldLogger, cfg LogConfig) *LogSink {
	return &LogSink{
		log: log.WithField("sink", "log"),
		cfg: cfg,
	}
}

func (s *LogSink) Name() string { return "log" }

func (s *LogSink) Start(_ context.Context) error {
	s.log.Info("Log sink started")

	return nil
}

func (s *LogSink) Stop() error {
	return nil
}

func (s *LogSink) HandleSnapshot(snap Snapshot) {
	fields := logrus.Fields{
		"samples":      snap.Samples,
		"window_start": snap.WindowStart,
	}

	for _, qv := range snap.Values {
		fields["p"+strconv.FormatFloat(qv.Fraction*100, 'f', -1, 64)] = qv.Value
	}

	s.log.WithFields(fields).Info("Quantile snapshot")
}
