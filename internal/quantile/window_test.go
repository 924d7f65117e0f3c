package quantile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSlidingWindow_InvalidArgs(t *testing.T) {
	_, err := NewSlidingWindow(0, 10, 0, 100)
	require.ErrorIs(t, err, ErrInvalidCapacity)

	_, err = NewSlidingWindow(3, 0, 0, 100)
	require.ErrorIs(t, err, ErrInvalidDuration)

	_, err = NewSlidingWindow(3, 10, 100, 0)
	require.ErrorIs(t, err, ErrInvalidRange)
}

func TestSlidingWindow_Advance(t *testing.T) {
	w, err := NewSlidingWindow(3, 10, 0, 100)
	require.NoError(t, err)

	require.NoError(t, w.Insert(1, 0))
	require.NoError(t, w.Insert(2, 5))
	require.NoError(t, w.Insert(3, 5))
	assert.Equal(t, 0, w.CurrentWindow())
	assert.Equal(t, uint64(0), w.WindowStart())

	// 100 is ten windows past the anchor; advancing lands the ring
	// on slot (0+10)%3 = 1 with every old slot evicted.
	require.NoError(t, w.Insert(3, 100))
	assert.Equal(t, 1, w.CurrentWindow())
	assert.Equal(t, uint64(100), w.WindowStart())
}

func TestSlidingWindow_FirstInsertAnchorsGrid(t *testing.T) {
	w, err := NewSlidingWindow(3, 10, 0, 100)
	require.NoError(t, err)

	// 17 floor-aligns to a window starting at 10.
	require.NoError(t, w.Insert(5, 17))
	assert.Equal(t, uint64(10), w.WindowStart())

	// 19 is still inside [10, 20); 20 starts the next window.
	require.NoError(t, w.Insert(6, 19))
	assert.Equal(t, 0, w.CurrentWindow())

	require.NoError(t, w.Insert(7, 20))
	assert.Equal(t, 1, w.CurrentWindow())
	assert.Equal(t, uint64(20), w.WindowStart())
}

func TestSlidingWindow_MergeMatchesSingleHistogram(t *testing.T) {
	w, err := NewSlidingWindow(4, 10, 0, 100)
	require.NoError(t, err)

	h, err := NewHistogram(0, 100)
	require.NoError(t, err)

	// All timestamps within capacity*duration of the first, so no
	// eviction occurs and the merge must equal a single histogram.
	values := []uint64{3, 14, 14, 27, 50, 50, 50, 81, 99, 100}

	for i, v := range values {
		ts := uint64(i) * 3
		require.NoError(t, w.Insert(v, ts))
		require.NoError(t, h.AddValue(v))
	}

	for _, f := range []float64{0, 0.1, 0.5, 0.9, 0.99, 1} {
		want, err := h.EstimateQuantile(f)
		require.NoError(t, err)

		got, err := w.EstimateQuantile(f)
		require.NoError(t, err)
		assert.Equal(t, want, got, "fraction %v", f)
	}
}

func TestSlidingWindow_Eviction(t *testing.T) {
	w, err := NewSlidingWindow(3, 10, 0, 100)
	require.NoError(t, err)

	// Fill the first window with large values.
	for i := 0; i < 10; i++ {
		require.NoError(t, w.Insert(100, 1))
	}

	// Walk forward one window at a time. After three advances the
	// first window's slot has been overwritten.
	require.NoError(t, w.Insert(10, 10))
	require.NoError(t, w.Insert(10, 20))
	require.NoError(t, w.Insert(10, 30))

	v, err := w.EstimateQuantile(1.0)
	require.NoError(t, err)
	assert.Equal(t, uint64(10), v, "evicted values must not influence the result")

	assert.Equal(t, uint64(3), w.Samples())
}

func TestSlidingWindow_ExpiredWindowsStillMergedUntilOverwritten(t *testing.T) {
	w, err := NewSlidingWindow(3, 10, 0, 100)
	require.NoError(t, err)

	require.NoError(t, w.Insert(100, 0))
	require.NoError(t, w.Insert(10, 10))

	// The window holding 100 is only one slot back; with no further
	// inserts it still contributes to the merge.
	v, err := w.EstimateQuantile(1.0)
	require.NoError(t, err)
	assert.Equal(t, uint64(100), v)
}

func TestSlidingWindow_FarJumpEqualsStepwise(t *testing.T) {
	// Advancing across a huge timestamp jump must leave the same
	// observable state as advancing one window at a time.
	bulk, err := NewSlidingWindow(5, 10, 0, 100)
	require.NoError(t, err)

	require.NoError(t, bulk.Insert(7, 3))
	require.NoError(t, bulk.Insert(9, 1_000_003))

	// 100000 steps from slot 0 with capacity 5 lands back on slot 0.
	assert.Equal(t, 0, bulk.CurrentWindow())
	assert.Equal(t, uint64(1_000_000), bulk.WindowStart())

	// All pre-jump data is gone, only the new sample remains.
	assert.Equal(t, uint64(1), bulk.Samples())

	v, err := bulk.EstimateQuantile(0.5)
	require.NoError(t, err)
	assert.Equal(t, uint64(9), v)
}

func TestSlidingWindow_InsertOutOfRangeValue(t *testing.T) {
	w, err := NewSlidingWindow(3, 10, 0, 100)
	require.NoError(t, err)

	require.NoError(t, w.Insert(5, 0))

	// The value is rejected, but the time-driven advance sticks.
	err = w.Insert(500, 25)
	require.ErrorIs(t, err, ErrValueOutOfRange)
	assert.Equal(t, 2, w.CurrentWindow())
	assert.Equal(t, uint64(20), w.WindowStart())
	assert.Equal(t, uint64(1), w.Samples())
}

func TestSlidingWindow_EstimateQuantile_Errors(t *testing.T) {
	w, err := NewSlidingWindow(3, 10, 0, 100)
	require.NoError(t, err)

	_, err = w.EstimateQuantile(1.5)
	require.ErrorIs(t, err, ErrInvalidFraction)

	_, err = w.EstimateQuantile(0.5)
	require.ErrorIs(t, err, ErrNoData)
}

func TestSlidingWindow_QueryIdempotent(t *testing.T) {
	w, err := NewSlidingWindow(3, 10, 0, 100)
	require.NoError(t, err)

	for i := uint64(1); i <= 50; i++ {
		require.NoError(t, w.Insert(i, i))
	}

	first, err := w.EstimateQuantile(0.9)
	require.NoError(t, err)

	second, err := w.EstimateQuantile(0.9)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestSlidingWindow_Quantiles(t *testing.T) {
	w, err := NewSlidingWindow(2, 10, 0, 100)
	require.NoError(t, err)

	for i := uint64(1); i <= 100; i++ {
		require.NoError(t, w.Insert(i, 0))
	}

	values, err := w.Quantiles([]float64{0.5, 0.9, 0.99})
	require.NoError(t, err)
	assert.Equal(t, []uint64{50, 90, 99}, values)

	_, err = w.Quantiles([]float64{0.5, -1})
	require.ErrorIs(t, err, ErrInvalidFraction)
}

func TestSlidingWindow_Quantiles_NoData(t *testing.T) {
	w, err := NewSlidingWindow(2, 10, 0, 100)
	require.NoError(t, err)

	_, err = w.Quantiles([]float64{0.5})
	require.ErrorIs(t, err, ErrNoData)
}

func TestSlidingWindow_TimestampBeforeActiveWindow(t *testing.T) {
	w, err := NewSlidingWindow(3, 10, 0, 100)
	require.NoError(t, err)

	require.NoError(t, w.Insert(1, 50))
	assert.Equal(t, uint64(50), w.WindowStart())

	// A straggler timestamp never rewinds the ring; it lands in the
	// active window.
	require.NoError(t, w.Insert(2, 12))
	assert.Equal(t, 0, w.CurrentWindow())
	assert.Equal(t, uint64(50), w.WindowStart())
	assert.Equal(t, uint64(2), w.Samples())
}
