package export

import (
	"context"
	"fmt"
	"io"
	"net/http"
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

func startHealth(t *testing.T) *HealthMetrics {
	t.Helper()

	h := NewHealthMetrics(testLog(), HealthConfig{
		Addr: "127.0.0.1:0",
	})

	require.NoError(t, h.Start(context.Background()))

	t.Cleanup(func() {
		h.Stop()
	})

	// Give server a moment to start serving.
	time.Sleep(50 * time.Millisecond)

	return h
}

func TestHealthMetrics_StartStop(t *testing.T) {
	h := startHealth(t)
	assert.True(t, h.running.Load())
	assert.NotEmpty(t, h.Addr())
}

func TestHealthMetrics_MetricsExposed(t *testing.T) {
	h := startHealth(t)

	h.SamplesReceived.Inc()
	h.SamplesReceived.Inc()
	h.SamplesRejected.Inc()
	h.WindowSamples.Set(42)
	h.QuantileValue.WithLabelValues("0.99").Set(1500)

	resp, err := http.Get(fmt.Sprintf("http://%s/metrics", h.Addr()))
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	bodyStr := string(body)
	assert.Contains(t, bodyStr, "latquant_samples_received_total 2")
	assert.Contains(t, bodyStr, "latquant_samples_rejected_total 1")
	assert.Contains(t, bodyStr, "latquant_window_samples 42")
	assert.Contains(t, bodyStr, `latquant_quantile_value{fraction="0.99"} 1500`)
}

func TestHealthMetrics_Healthz(t *testing.T) {
	h := startHealth(t)

	resp, err := http.Get(fmt.Sprintf("http://%s/healthz", h.Addr()))
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", string(body))
}
