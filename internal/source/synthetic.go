package source

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"

	"github.com/sirupsen/logrus"
)

// SyntheticConfig configures the synthetic latency generator.
type SyntheticConfig struct {
	// Rate is the number of samples generated per second.
	// Defaults to 1000.
	Rate int `yaml:"rate"`

	// Min and Max bound the generated values (inclusive). The
	// distribution is exponential-ish, skewed towards Min, which
	// resembles a service latency profile.
	Min uint64 `yaml:"min"`
	Max uint64 `yaml:"max"`
}

// Validate checks the generator configuration.
func (c *SyntheticConfig) Validate() error {
	if c.Rate < 0 {
		return errors.New("synthetic.rate must not be negative")
	}

	if c.Max != 0 && c.Max < c.Min {
		return errors.New("synthetic.max must be >= synthetic.min")
	}

	return nil
}

// Synthetic generates pseudo-random latency samples at a fixed rate.
type Synthetic struct {
	log logrus.FieldLogger
	cfg SyntheticConfig

	out    chan Sample
	cancel context.CancelFunc
	done   chan struct{}
}

var _ Source = (*Synthetic)(nil)

// NewSynthetic creates a new synthetic sample generator.
func NewSynthetic(log logrus.FieldLogger, cfg SyntheticConfig) *Synthetic {
	if cfg.Rate <= 0 {
		cfg.Rate = 1000
	}

	if cfg.Max == 0 {
		cfg.Max = 10_000
	}

	return &Synthetic{
		log:  log.WithField("source", "synthetic"),
		cfg:  cfg,
		out:  make(chan Sample, 1024),
		done: make(chan struct{}),
	}
}

func (s *Synthetic) Name() string { return TypeSynthetic }

func (s *Synthetic) Samples() <-chan Sample { return s.out }

func (s *Synthetic) Start(ctx context.Context) error {
	ctx, s.cancel = context.WithCancel(ctx)

	go s.run(ctx)

	s.log.WithFields(logrus.Fields{
		"rate": s.cfg.Rate,
		"min":  s.cfg.Min,
		"max":  s.cfg.Max,
	}).Info("Synthetic source started")

	return nil
}

func (s *Synthetic) Stop() error {
	if s.cancel != nil {
		s.cancel()
		<-s.done
	}

	return nil
}

func (s *Synthetic) run(ctx context.Context) {
	defer close(s.done)
	defer close(s.out)

	interval := time.Second / time.Duration(s.cfg.Rate)
	if interval <= 0 {
		interval = time.Microsecond
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case t := <-ticker.C:
			sample := Sample{
				Value:     s.generate(),
				Timestamp: uint64(t.UnixNano()),
			}

			select {
			case s.out <- sample:
			case <-ctx.Done():
				return
			}
		}
	}
}

// generate draws a value in [Min, Max], skewed towards Min.
func (s *Synthetic) generate() uint64 {
	f := rand.ExpFloat64() / 6
	if f > 1 {
		f = 1
	}

	span := float64(s.cfg.Max - s.cfg.Min)

	return s.cfg.Min + uint64(f*span)
}
