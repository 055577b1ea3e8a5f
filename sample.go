package driftwatch

import (
	"math"
	"time"
)

// Sample is a single timestamped scalar reading from the monitored stream.
// Samples must arrive in non-decreasing timestamp order; the engine does not
// reorder.
type Sample struct {
	// Timestamp in nanoseconds since the Unix epoch.
	Timestamp int64 `json:"timestamp"`

	// Value is the observed reading.
	Value float64 `json:"value"`
}

// Time returns the sample timestamp as a time.Time.
func (s Sample) Time() time.Time {
	return time.Unix(0, s.Timestamp)
}

// Valid reports whether the sample carries a finite value.
func (s Sample) Valid() bool {
	return !math.IsNaN(s.Value) && !math.IsInf(s.Value, 0)
}

// AnomalyKind describes the direction of a flagged deviation.
type AnomalyKind string

const (
	// KindNone marks samples that were not flagged.
	KindNone AnomalyKind = ""
	// KindSpike marks deviations above the window mean.
	KindSpike AnomalyKind = "spike"
	// KindDip marks deviations below the window mean.
	KindDip AnomalyKind = "dip"
)

// Severity grades flagged samples by how far the score exceeds the threshold.
type Severity string

const (
	// SeverityNone marks samples that were not flagged.
	SeverityNone Severity = ""
	// SeverityWarning marks scores within one unit above the threshold.
	SeverityWarning Severity = "warning"
	// SeverityCritical marks scores at least one unit above the threshold.
	SeverityCritical Severity = "critical"
)

// ClassifiedSample is the engine's output: the input sample plus its
// normalized deviation score and anomaly verdict. Produced once per accepted
// sample and immutable thereafter.
type ClassifiedSample struct {
	Sample Sample `json:"sample"`

	// Score is |value-mean| / max(stddev, floor) against the window at the
	// time the sample was processed. Zero during warm-up.
	Score float64 `json:"score"`

	// Mean and StdDev snapshot the window statistics used for scoring.
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"stddev"`

	// IsAnomaly is true when Score exceeds the sensitivity threshold.
	IsAnomaly bool `json:"is_anomaly"`

	// Kind and Severity are set only when IsAnomaly is true.
	Kind     AnomalyKind `json:"kind,omitempty"`
	Severity Severity    `json:"severity,omitempty"`
}
