package source

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLog() logrus.FieldLogger {
	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)

	return log
}

func collect(t *testing.T, src Source, want int) []Sample {
	t.Helper()

	samples := make([]Sample, 0, want)
	timeout := time.After(5 * time.Second)

	for len(samples) < want {
		select {
		case s, ok := <-src.Samples():
			if !ok {
				return samples
			}

			samples = append(samples, s)
		case <-timeout:
			t.Fatalf("timed out after %d samples", len(samples))
		}
	}

	return samples
}

func TestFile_ReadsSamples(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "samples.txt")

	data := `# latency_ns timestamp_ns
120 1000
450 1005

not-a-number 1010
300
99 1020 extra
77 1030
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	src := NewFile(testLog(), FileConfig{Path: path})
	require.NoError(t, src.Start(context.Background()))

	defer src.Stop()

	samples := collect(t, src, 4)
	require.Len(t, samples, 4)

	assert.Equal(t, Sample{Value: 120, Timestamp: 1000}, samples[0])
	assert.Equal(t, Sample{Value: 450, Timestamp: 1005}, samples[1])

	// Line without timestamp gets stamped at read time.
	assert.Equal(t, uint64(300), samples[2].Value)
	assert.NotZero(t, samples[2].Timestamp)

	assert.Equal(t, Sample{Value: 77, Timestamp: 1030}, samples[3])

	// Channel closes at EOF.
	_, ok := <-src.Samples()
	assert.False(t, ok)
}

func TestFile_MissingFile(t *testing.T) {
	src := NewFile(testLog(), FileConfig{Path: "/nonexistent/samples.txt"})
	err := src.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "opening sample file")
}

func TestSynthetic_GeneratesWithinBounds(t *testing.T) {
	src := NewSynthetic(testLog(), SyntheticConfig{
		Rate: 10_000,
		Min:  100,
		Max:  200,
	})
	require.NoError(t, src.Start(context.Background()))

	defer src.Stop()

	for _, s := range collect(t, src, 50) {
		assert.GreaterOrEqual(t, s.Value, uint64(100))
		assert.LessOrEqual(t, s.Value, uint64(200))
		assert.NotZero(t, s.Timestamp)
	}
}

func TestConfig_Validate(t *testing.T) {
	cfg := Config{}
	require.NoError(t, cfg.Validate())

	cfg = Config{Type: TypeFile}
	require.Error(t, cfg.Validate())

	cfg = Config{Type: "kafka"}
	require.Error(t, cfg.Validate())

	cfg = Config{Type: TypeSynthetic, Synthetic: SyntheticConfig{Min: 10, Max: 5}}
	require.Error(t, cfg.Validate())
}
