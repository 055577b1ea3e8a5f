package driftwatch

import "math"

// scoreFloor is the minimum standard deviation used when normalizing a
// deviation. It keeps the score finite when the stream is constant.
const scoreFloor = 1e-9

// scoreSample converts a value plus the current window statistics into a
// normalized deviation score and an anomaly verdict. Pure and deterministic.
//
// During warm-up (warmedUp=false) the statistics are too unreliable to
// trust, so the score is 0 and nothing is flagged regardless of magnitude.
func scoreSample(value, mean, stddev, sensitivity float64, warmedUp bool) (float64, bool) {
	if !warmedUp {
		return 0, false
	}
	score := math.Abs(value-mean) / math.Max(stddev, scoreFloor)
	return score, score > sensitivity
}

// classify grades a flagged sample: direction relative to the mean and a
// severity from how far the score landed past the threshold.
func classify(value, mean, score, sensitivity float64) (AnomalyKind, Severity) {
	kind := KindSpike
	if value < mean {
		kind = KindDip
	}
	severity := SeverityWarning
	if score >= sensitivity+1 {
		severity = SeverityCritical
	}
	return kind, severity
}
