package driftwatch

import "math"

// resyncInterval is how many incremental updates the sliding window accepts
// before recomputing its running sums from the buffer. Incremental
// subtraction accumulates floating-point drift; a periodic full pass bounds
// it.
const resyncInterval = 4096

// Tracker maintains online estimates of the stream's central tendency and
// dispersion over a bounded recent horizon. Implementations are not safe for
// concurrent use; the Detector serializes access.
type Tracker interface {
	// Update folds a new value into the window and returns the resulting
	// mean and standard deviation. O(1) per call.
	Update(value float64) (mean, stddev float64)

	// Count returns the number of samples contributing to the current
	// estimate. For a hard window this never exceeds the window size.
	Count() int64

	// Seen returns the total number of samples observed since the last
	// Reset, independent of eviction. Used for warm-up accounting.
	Seen() int64

	// Mean returns the current mean, or 0 before the first sample.
	Mean() float64

	// StdDev returns the current standard deviation, or 0 before the
	// first sample.
	StdDev() float64

	// Reset discards all state, returning the tracker to its initial
	// empty condition.
	Reset()
}

// newTracker builds a tracker from configuration: a decay-weighted tracker
// when HalfLife is set, otherwise a fixed sliding window.
func newTracker(cfg Config) Tracker {
	if cfg.HalfLife > 0 {
		return newEWMATracker(cfg.HalfLife)
	}
	return newWindowTracker(cfg.WindowSize)
}

// windowTracker keeps a circular buffer of the last N values and derives
// mean and variance from incrementally maintained running sums.
type windowTracker struct {
	values  []float64
	size    int
	head    int
	count   int
	seen    int64
	sum     float64
	sumSq   float64
	pending int // updates since last full recompute
}

func newWindowTracker(size int) *windowTracker {
	if size <= 0 {
		size = 100
	}
	return &windowTracker{
		values: make([]float64, size),
		size:   size,
	}
}

func (w *windowTracker) Update(value float64) (float64, float64) {
	if w.count == w.size {
		evicted := w.values[w.head]
		w.sum -= evicted
		w.sumSq -= evicted * evicted
	} else {
		w.count++
	}
	w.values[w.head] = value
	w.head = (w.head + 1) % w.size
	w.sum += value
	w.sumSq += value * value
	w.seen++

	w.pending++
	if w.pending >= resyncInterval {
		w.resync()
	}

	return w.Mean(), w.StdDev()
}

// resync recomputes the running sums from the buffer to shed accumulated
// floating-point error.
func (w *windowTracker) resync() {
	w.sum = 0
	w.sumSq = 0
	for i := 0; i < w.count; i++ {
		v := w.values[i]
		w.sum += v
		w.sumSq += v * v
	}
	w.pending = 0
}

func (w *windowTracker) Count() int64 { return int64(w.count) }
func (w *windowTracker) Seen() int64  { return w.seen }

func (w *windowTracker) Mean() float64 {
	if w.count == 0 {
		return 0
	}
	return w.sum / float64(w.count)
}

func (w *windowTracker) StdDev() float64 {
	if w.count < 2 {
		return 0
	}
	n := float64(w.count)
	mean := w.sum / n
	variance := (w.sumSq - n*mean*mean) / (n - 1)
	// Incremental subtraction can drive a tiny variance below zero.
	if variance < 0 {
		variance = 0
	}
	return math.Sqrt(variance)
}

func (w *windowTracker) Reset() {
	w.head = 0
	w.count = 0
	w.seen = 0
	w.sum = 0
	w.sumSq = 0
	w.pending = 0
}

// ewmaTracker maintains an exponentially weighted mean and variance with no
// buffer. The smoothing factor is derived from a configured half-life: after
// halfLife samples an observation's weight has decayed to one half.
type ewmaTracker struct {
	alpha    float64
	mean     float64
	variance float64
	seen     int64
}

func newEWMATracker(halfLife int) *ewmaTracker {
	if halfLife <= 0 {
		halfLife = 50
	}
	return &ewmaTracker{
		alpha: 1 - math.Exp(-math.Ln2/float64(halfLife)),
	}
}

func (e *ewmaTracker) Update(value float64) (float64, float64) {
	e.seen++
	if e.seen == 1 {
		e.mean = value
		e.variance = 0
		return e.mean, 0
	}
	diff := value - e.mean
	e.mean += e.alpha * diff
	e.variance = (1 - e.alpha) * (e.variance + e.alpha*diff*diff)
	return e.mean, e.StdDev()
}

func (e *ewmaTracker) Count() int64 { return e.seen }
func (e *ewmaTracker) Seen() int64  { return e.seen }

func (e *ewmaTracker) Mean() float64 {
	return e.mean
}

func (e *ewmaTracker) StdDev() float64 {
	if e.seen < 2 {
		return 0
	}
	return math.Sqrt(e.variance)
}

func (e *ewmaTracker) Reset() {
	e.mean = 0
	e.variance = 0
	e.seen = 0
}
