package driftwatch

import (
	"sync"
)

// RunState is the detector's run state. All transitions are operator
// triggered; there are no internal transitions.
type RunState int

const (
	// StateStopped is the initial state. Submitted samples are dropped and
	// no window statistics exist.
	StateStopped RunState = iota
	// StateRunning accepts and classifies samples.
	StateRunning
	// StatePaused stops analyzing while preserving window statistics.
	StatePaused
)

func (s RunState) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StatePaused:
		return "paused"
	default:
		return "stopped"
	}
}

// Stats is a snapshot of detector counters and window statistics.
type Stats struct {
	State       string  `json:"state"`
	Processed   int64   `json:"processed"`
	Anomalies   int64   `json:"anomalies"`
	Dropped     int64   `json:"dropped"`
	Invalid     int64   `json:"invalid"`
	Sensitivity float64 `json:"sensitivity"`
	WindowCount int64   `json:"window_count"`
	Mean        float64 `json:"mean"`
	StdDev      float64 `json:"stddev"`
}

// Detector owns the per-sample pipeline: it sequences tracker update and
// scoring under a single lock, owns the run state machine, and publishes
// every classified sample to its event hub.
//
// A Detector supports one producer calling Submit and any number of
// goroutines issuing control calls concurrently.
type Detector struct {
	cfg Config
	hub *Hub

	mu          sync.Mutex
	state       RunState
	tracker     Tracker
	sensitivity float64

	processed int64
	anomalies int64
	dropped   int64
	invalid   int64
}

// New creates a stopped detector from the given configuration.
func New(cfg Config) (*Detector, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	d := &Detector{
		cfg:         cfg,
		hub:         NewHub(cfg.ChannelCapacity, cfg.FanOut),
		state:       StateStopped,
		sensitivity: cfg.Sensitivity,
	}
	metricSensitivity.Set(cfg.Sensitivity)
	return d, nil
}

// Hub returns the detector's event hub.
func (d *Detector) Hub() *Hub {
	return d.hub
}

// Subscribe attaches a consumer to the event hub.
func (d *Detector) Subscribe() (*Subscription, error) {
	return d.hub.Subscribe()
}

// Start transitions Stopped or Paused to Running. Starting from Stopped
// allocates a fresh window; starting from Paused reuses the existing one.
// Idempotent when already running.
func (d *Detector) Start() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state == StateRunning {
		return
	}
	if d.tracker == nil {
		d.tracker = newTracker(d.cfg)
	}
	d.state = StateRunning
}

// Pause transitions Running to Paused. The window is preserved untouched;
// samples submitted while paused are dropped, not buffered.
func (d *Detector) Pause() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state == StateRunning {
		d.state = StatePaused
	}
}

// Resume transitions Paused to Running. Nothing is recomputed or discarded.
func (d *Detector) Resume() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state == StatePaused {
		d.state = StateRunning
	}
}

// Stop transitions any state to Stopped and discards the window. A
// subsequent Start begins a fresh model. Safe to call while a sample is in
// flight: the in-flight update either commits before the stop or not at all.
func (d *Detector) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.state = StateStopped
	d.tracker = nil
}

// Close stops the detector and closes the event hub.
func (d *Detector) Close() {
	d.Stop()
	d.hub.Close()
}

// SetSensitivity atomically updates the anomaly threshold. Legal in any run
// state; takes effect on the next processed sample. Out-of-domain values are
// rejected with ErrInvalidParameter and the previous value is retained.
func (d *Detector) SetSensitivity(v float64) error {
	if err := validateSensitivity(v); err != nil {
		return err
	}
	d.mu.Lock()
	d.sensitivity = v
	d.mu.Unlock()
	metricSensitivity.Set(v)
	return nil
}

// Sensitivity returns the current anomaly threshold.
func (d *Detector) Sensitivity() float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.sensitivity
}

// State returns the current run state.
func (d *Detector) State() RunState {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Submit feeds one sample through the pipeline. When the detector is not
// running the sample is silently dropped (pausing means "stop analyzing",
// not "buffer for later"). Non-finite values are rejected with
// ErrInvalidSample without touching the window.
func (d *Detector) Submit(s Sample) error {
	if !s.Valid() {
		d.mu.Lock()
		d.invalid++
		d.mu.Unlock()
		metricSamplesInvalid.Inc()
		return newSampleError(s, "non-finite value")
	}

	d.mu.Lock()
	if d.state != StateRunning {
		d.dropped++
		d.mu.Unlock()
		metricSamplesDropped.Inc()
		return nil
	}

	// Score against the window as it stood before this sample: folding a
	// large spike in first would inflate the dispersion estimate and mask
	// the very deviation being measured.
	mean, stddev := d.tracker.Mean(), d.tracker.StdDev()
	prior := d.tracker.Seen()
	d.tracker.Update(s.Value)

	// Before the first sample the mean is undefined and the stddev is
	// treated as infinite, so nothing can score.
	warmedUp := prior > 0 && d.tracker.Seen() >= int64(d.cfg.WarmupCount)
	score, isAnomaly := scoreSample(s.Value, mean, stddev, d.sensitivity, warmedUp)
	curMean, curStdDev := d.tracker.Mean(), d.tracker.StdDev()

	cs := ClassifiedSample{
		Sample:    s,
		Score:     score,
		Mean:      mean,
		StdDev:    stddev,
		IsAnomaly: isAnomaly,
	}
	if isAnomaly {
		cs.Kind, cs.Severity = classify(s.Value, mean, score, d.sensitivity)
		d.anomalies++
	}
	d.processed++
	d.mu.Unlock()

	metricSamplesProcessed.Inc()
	metricWindowMean.Set(curMean)
	metricWindowStdDev.Set(curStdDev)
	if isAnomaly {
		metricAnomaliesDetected.Inc()
	}

	d.hub.Publish(cs)
	return nil
}

// Stats returns a snapshot of counters and window statistics.
func (d *Detector) Stats() Stats {
	d.mu.Lock()
	defer d.mu.Unlock()
	st := Stats{
		State:       d.state.String(),
		Processed:   d.processed,
		Anomalies:   d.anomalies,
		Dropped:     d.dropped,
		Invalid:     d.invalid,
		Sensitivity: d.sensitivity,
	}
	if d.tracker != nil {
		st.WindowCount = d.tracker.Count()
		st.Mean = d.tracker.Mean()
		st.StdDev = d.tracker.StdDev()
	}
	return st
}
