package source

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// FileConfig configures the line-oriented file source.
type FileConfig struct {
	// Path is the file to read samples from. "-" reads stdin.
	Path string `yaml:"path"`
}

// Validate checks the file source configuration.
func (c *FileConfig) Validate() error {
	if c.Path == "" {
		return errors.New("file.path is required")
	}

	return nil
}

// File replays samples from a text file or stdin. Each line is either
// "value" or "value timestamp_ns"; lines without a timestamp are
// stamped with the read time. Blank lines and lines starting with #
// are skipped, malformed lines are logged and dropped.
type File struct {
	log logrus.FieldLogger
	cfg FileConfig

	out    chan Sample
	cancel context.CancelFunc
	done   chan struct{}
}

var _ Source = (*File)(nil)

// NewFile creates a new file source.
func NewFile(log logrus.FieldLogger, cfg FileConfig) *File {
	return &File{
		log:  log.WithField("source", "file"),
		cfg:  cfg,
		out:  make(chan Sample, 1024),
		done: make(chan struct{}),
	}
}

func (f *File) Name() string { return TypeFile }

func (f *File) Samples() <-chan Sample { return f.out }

func (f *File) Start(ctx context.Context) error {
	var (
		r     io.ReadCloser
		err   error
		stdin bool
	)

	if f.cfg.Path == "-" {
		r = os.Stdin
		stdin = true
	} else {
		r, err = os.Open(f.cfg.Path)
		if err != nil {
			return fmt.Errorf("opening sample file: %w", err)
		}
	}

	ctx, f.cancel = context.WithCancel(ctx)

	go f.run(ctx, r, stdin)

	f.log.WithField("path", f.cfg.Path).Info("File source started")

	return nil
}

func (f *File) Stop() error {
	if f.cancel != nil {
		f.cancel()
		<-f.done
	}

	return nil
}

func (f *File) run(ctx context.Context, r io.ReadCloser, stdin bool) {
	defer close(f.done)
	defer close(f.out)

	if !stdin {
		defer r.Close()
	}

	scanner := bufio.NewScanner(r)

	var lineNo int

	for scanner.Scan() {
		lineNo++

		sample, ok := f.parseLine(scanner.Text(), lineNo)
		if !ok {
			continue
		}

		select {
		case f.out <- sample:
		case <-ctx.Done():
			return
		}
	}

	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		f.log.WithError(err).Error("Reading samples failed")
	}
}

func (f *File) parseLine(line string, lineNo int) (Sample, bool) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return Sample{}, false
	}

	fields := strings.Fields(line)
	if len(fields) > 2 {
		f.log.WithField("line", lineNo).Warn("Dropping malformed sample line")

		return Sample{}, false
	}

	value, err := strconv.ParseUint(fields[0], 10, 64)
	if err != nil {
		f.log.WithField("line", lineNo).WithError(err).
			Warn("Dropping sample with invalid value")

		return Sample{}, false
	}

	timestamp := uint64(time.Now().UnixNano())

	if len(fields) == 2 {
		timestamp, err = strconv.ParseUint(fields[1], 10, 64)
		if err != nil {
			f.log.WithField("line", lineNo).WithError(err).
				Warn("Dropping sample with invalid timestamp")

			return Sample{}, false
		}
	}

	return Sample{Value: value, Timestamp: timestamp}, true
}
