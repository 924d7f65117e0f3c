package quantile

import "errors"

// Errors returned by Histogram and SlidingWindow. All of them are
// recoverable caller errors except ErrQuantileNotFound, which signals
// corrupted internal state and is unreachable under normal operation.
var (
	// ErrInvalidRange is returned when a histogram is constructed
	// with end < start.
	ErrInvalidRange = errors.New("end must be >= start")

	// ErrRangeTooLarge is returned when the requested value range
	// would allocate more than MaxRangeSize counters.
	ErrRangeTooLarge = errors.New("value range too large")

	// ErrValueOutOfRange is returned when an inserted value falls
	// outside the declared [start, end] range.
	ErrValueOutOfRange = errors.New("value out of range")

	// ErrInvalidFraction is returned when a quantile fraction is
	// outside [0, 1].
	ErrInvalidFraction = errors.New("fraction must be between 0 and 1")

	// ErrNoData is returned when a quantile is requested before any
	// value has been recorded.
	ErrNoData = errors.New("no values recorded")

	// ErrInvalidCapacity is returned when a sliding window is
	// constructed with a non-positive window count.
	ErrInvalidCapacity = errors.New("capacity must be greater than zero")

	// ErrInvalidDuration is returned when a sliding window is
	// constructed with a zero window duration.
	ErrInvalidDuration = errors.New("duration must be greater than zero")

	// ErrQuantileNotFound indicates the cumulative scan ran past the
	// end of the counters without reaching the target rank. That can
	// only happen if the running total and the counters disagree, so
	// it is a defect signal, not an input error.
	ErrQuantileNotFound = errors.New("quantile not found: histogram state corrupted")
)
