// Package quantile provides exact quantile estimation over integer
// values from a known, fixed range. A Histogram counts every observed
// value individually, and a SlidingWindow keeps a ring of histograms
// so quantiles can be answered over recent time only.
package quantile

import "math"

// MaxRangeSize caps the number of counters a single histogram may
// allocate. Ranges are configuration input, so an oversized range is
// rejected instead of being allowed to demand an arbitrary allocation.
const MaxRangeSize = 1 << 26

// Histogram is an exact counting histogram over the inclusive value
// range [start, end]. Insertion is O(1), quantile lookup is O(range).
//
// Histogram is not safe for concurrent use.
type Histogram struct {
	start  uint64
	end    uint64
	counts []uint64
	total  uint64
}

// NewHistogram creates an empty histogram covering [start, end].
func NewHistogram(start, end uint64) (*Histogram, error) {
	if end < start {
		return nil, ErrInvalidRange
	}

	// size wraps to zero when the range covers the whole uint64
	// domain, which is far past the cap anyway.
	size := end - start + 1
	if size == 0 || size > MaxRangeSize {
		return nil, ErrRangeTooLarge
	}

	return &Histogram{
		start:  start,
		end:    end,
		counts: make([]uint64, size),
	}, nil
}

// AddValue records one observation of value. Values outside
// [start, end] are rejected without modifying any state.
func (h *Histogram) AddValue(value uint64) error {
	if value < h.start || value > h.end {
		return ErrValueOutOfRange
	}

	h.counts[value-h.start]++
	h.total++

	return nil
}

// EstimateQuantile returns the value at the given fraction of the
// observed distribution using the nearest-rank method. A fraction of
// 0 returns the minimum observed value and 1 the maximum.
func (h *Histogram) EstimateQuantile(fraction float64) (uint64, error) {
	if err := validateFraction(fraction); err != nil {
		return 0, err
	}

	if h.total == 0 {
		return 0, ErrNoData
	}

	return selectRank(h.counts, h.start, h.total, fraction)
}

// Start returns the inclusive lower bound of the value range.
func (h *Histogram) Start() uint64 { return h.start }

// End returns the inclusive upper bound of the value range.
func (h *Histogram) End() uint64 { return h.end }

// Total returns the number of recorded observations.
func (h *Histogram) Total() uint64 { return h.total }

// Reset clears all counters, keeping the allocated range.
func (h *Histogram) Reset() {
	clear(h.counts)
	h.total = 0
}

func validateFraction(fraction float64) error {
	if math.IsNaN(fraction) || fraction < 0 || fraction > 1 {
		return ErrInvalidFraction
	}

	return nil
}

// selectRank performs the nearest-rank scan shared by Histogram and
// SlidingWindow. The target rank is round(fraction*total - 1) clamped
// to [0, total-1]; the result is the value whose cumulative count
// first exceeds it. total must equal the sum of counts.
func selectRank(counts []uint64, start, total uint64, fraction float64) (uint64, error) {
	rank := int64(math.Round(fraction*float64(total) - 1))
	if rank < 0 {
		rank = 0
	}

	if uint64(rank) >= total {
		rank = int64(total) - 1
	}

	var cumulative uint64

	for i, count := range counts {
		cumulative += count
		if cumulative > uint64(rank) {
			return start + uint64(i), nil
		}
	}

	return 0, ErrQuantileNotFound
}
