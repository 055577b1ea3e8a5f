package driftwatch

import (
	"math"
	"testing"
)

func TestScoreSample_Basic(t *testing.T) {
	score, isAnomaly := scoreSample(16, 10, 2, 2.5, true)
	if math.Abs(score-3) > 1e-9 {
		t.Errorf("expected score 3, got %f", score)
	}
	if !isAnomaly {
		t.Error("expected anomaly at score 3 with sensitivity 2.5")
	}

	score, isAnomaly = scoreSample(12, 10, 2, 2.5, true)
	if math.Abs(score-1) > 1e-9 {
		t.Errorf("expected score 1, got %f", score)
	}
	if isAnomaly {
		t.Error("did not expect anomaly at score 1")
	}
}

func TestScoreSample_WarmupSuppression(t *testing.T) {
	// During warm-up the verdict is always negative, regardless of
	// magnitude.
	score, isAnomaly := scoreSample(1e12, 0, 0, 0.1, false)
	if score != 0 {
		t.Errorf("expected score 0 during warm-up, got %f", score)
	}
	if isAnomaly {
		t.Error("expected no anomaly during warm-up")
	}
}

func TestScoreSample_ZeroStdDevFloor(t *testing.T) {
	// Constant stream: stddev 0, score must stay finite via the floor.
	score, isAnomaly := scoreSample(100, 10, 0, 3.0, true)
	if math.IsInf(score, 0) || math.IsNaN(score) {
		t.Fatalf("expected finite score, got %f", score)
	}
	if !isAnomaly {
		t.Error("expected large deviation against constant stream to be flagged")
	}

	// Value on the mean scores zero even with a zero stddev.
	score, isAnomaly = scoreSample(10, 10, 0, 3.0, true)
	if score != 0 || isAnomaly {
		t.Errorf("expected zero score, got %f (anomaly=%v)", score, isAnomaly)
	}
}

func TestScoreSample_SensitivityMonotonicity(t *testing.T) {
	// For a fixed input the score is unchanged; only the flag threshold
	// moves. Increasing sensitivity never creates an anomaly.
	values := []float64{9.5, 11, 14, 20, 35}
	sensitivities := []float64{0.5, 1, 2, 3, 5, 10}

	for _, v := range values {
		prevFlag := true
		var prevScore float64
		for i, s := range sensitivities {
			score, flag := scoreSample(v, 10, 2, s, true)
			if i > 0 {
				if score != prevScore {
					t.Fatalf("score changed with sensitivity: %f vs %f", score, prevScore)
				}
				if flag && !prevFlag {
					t.Fatalf("raising sensitivity to %f created an anomaly for value %f", s, v)
				}
			}
			prevScore = score
			prevFlag = flag
		}
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name         string
		value, mean  float64
		score, sens  float64
		wantKind     AnomalyKind
		wantSeverity Severity
	}{
		{"spike warning", 20, 10, 3.2, 3.0, KindSpike, SeverityWarning},
		{"spike critical", 40, 10, 5.0, 3.0, KindSpike, SeverityCritical},
		{"dip warning", 2, 10, 3.5, 3.0, KindDip, SeverityWarning},
		{"dip critical", -30, 10, 8.0, 3.0, KindDip, SeverityCritical},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kind, severity := classify(tt.value, tt.mean, tt.score, tt.sens)
			if kind != tt.wantKind {
				t.Errorf("kind = %s, want %s", kind, tt.wantKind)
			}
			if severity != tt.wantSeverity {
				t.Errorf("severity = %s, want %s", severity, tt.wantSeverity)
			}
		})
	}
}
