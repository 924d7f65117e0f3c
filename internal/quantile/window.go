package quantile

// SlidingWindow partitions time into fixed-duration windows, each
// backed by its own Histogram, and answers quantile queries over the
// union of all retained windows. Time is driven entirely by the
// timestamps passed to Insert; there is no background clock.
//
// The first inserted timestamp anchors the window grid: windowStart is
// floor-aligned to a multiple of duration and every later window
// begins exactly one duration after the previous one. Advancing the
// active window overwrites the slot capacity positions behind it,
// which evicts the oldest retained window.
//
// SlidingWindow is single-writer: it is not safe for unsynchronized
// concurrent use, including Insert concurrent with EstimateQuantile.
type SlidingWindow struct {
	capacity    int
	duration    uint64
	start       uint64
	end         uint64
	windows     []*Histogram
	current     int
	windowStart uint64
	initialized bool
}

// NewSlidingWindow creates a sliding window of capacity histograms,
// each covering one duration-long time slice over the value range
// [start, end]. Timestamps and duration share one unit, chosen by
// the caller.
func NewSlidingWindow(capacity int, duration, start, end uint64) (*SlidingWindow, error) {
	if capacity <= 0 {
		return nil, ErrInvalidCapacity
	}

	if duration == 0 {
		return nil, ErrInvalidDuration
	}

	windows := make([]*Histogram, capacity)

	for i := range windows {
		h, err := NewHistogram(start, end)
		if err != nil {
			return nil, err
		}

		windows[i] = h
	}

	return &SlidingWindow{
		capacity: capacity,
		duration: duration,
		start:    start,
		end:      end,
		windows:  windows,
	}, nil
}

// Insert records value in the window that covers timestamp, advancing
// and evicting windows first if timestamp lies beyond the active
// window. Advancement is purely time-driven and is kept even when the
// value itself is rejected as out of range.
func (w *SlidingWindow) Insert(value, timestamp uint64) error {
	if !w.initialized {
		w.windowStart = timestamp - timestamp%w.duration
		w.initialized = true
	}

	w.advanceTo(timestamp)

	return w.windows[w.current].AddValue(value)
}

// advanceTo rotates the ring until the active window covers
// timestamp. Each step moves exactly one duration and resets the slot
// it lands on. Timestamps before the active window are left alone;
// they fall through to the active window.
func (w *SlidingWindow) advanceTo(timestamp uint64) {
	if timestamp < w.windowStart+w.duration {
		return
	}

	steps := (timestamp - w.windowStart) / w.duration

	// A jump of capacity windows or more expires every retained
	// window, so the rotation collapses to resetting all slots.
	// Observable state is identical to stepping one window at a
	// time, without the cost being proportional to the jump.
	if steps >= uint64(w.capacity) {
		for _, h := range w.windows {
			h.Reset()
		}

		w.current = (w.current + int(steps%uint64(w.capacity))) % w.capacity
		w.windowStart += steps * w.duration

		return
	}

	for ; steps > 0; steps-- {
		w.current = (w.current + 1) % w.capacity
		w.windows[w.current].Reset()
		w.windowStart += w.duration
	}
}

// EstimateQuantile returns the nearest-rank quantile over the merged
// counts of all retained windows. Windows whose time has logically
// passed still contribute until an insert physically overwrites them.
func (w *SlidingWindow) EstimateQuantile(fraction float64) (uint64, error) {
	if err := validateFraction(fraction); err != nil {
		return 0, err
	}

	combined, total := w.merge()
	if total == 0 {
		return 0, ErrNoData
	}

	return selectRank(combined, w.start, total, fraction)
}

// Quantiles answers several fractions from a single merge pass. It
// fails on the first invalid fraction and returns ErrNoData when no
// window holds any observation.
func (w *SlidingWindow) Quantiles(fractions []float64) ([]uint64, error) {
	for _, f := range fractions {
		if err := validateFraction(f); err != nil {
			return nil, err
		}
	}

	combined, total := w.merge()
	if total == 0 {
		return nil, ErrNoData
	}

	values := make([]uint64, len(fractions))

	for i, f := range fractions {
		v, err := selectRank(combined, w.start, total, f)
		if err != nil {
			return nil, err
		}

		values[i] = v
	}

	return values, nil
}

func (w *SlidingWindow) merge() ([]uint64, uint64) {
	combined := make([]uint64, w.end-w.start+1)

	var total uint64

	for _, h := range w.windows {
		for i, count := range h.counts {
			combined[i] += count
		}

		total += h.total
	}

	return combined, total
}

// Samples returns the number of observations across all retained
// windows.
func (w *SlidingWindow) Samples() uint64 {
	var total uint64

	for _, h := range w.windows {
		total += h.total
	}

	return total
}

// CurrentWindow returns the index of the active window slot.
func (w *SlidingWindow) CurrentWindow() int { return w.current }

// WindowStart returns the timestamp at which the active window began.
// It is zero until the first insert.
func (w *SlidingWindow) WindowStart() uint64 { return w.windowStart }

// Capacity returns the number of retained windows.
func (w *SlidingWindow) Capacity() int { return w.capacity }

// Duration returns the length of one window.
func (w *SlidingWindow) Duration() uint64 { return w.duration }
