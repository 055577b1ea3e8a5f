package driftwatch

import (
	"context"
	"math"
	"math/rand"
	"time"
)

// SampleSource produces ordered numeric samples for a detector. Any producer
// (simulator, file reader, socket) can satisfy it.
type SampleSource interface {
	// Run delivers samples via submit until the context ends or the
	// source is exhausted. Submit errors for individual samples are the
	// source's to handle; they do not stop the run.
	Run(ctx context.Context, submit func(Sample) error) error
}

// SimulatorConfig configures the synthetic stream generator.
type SimulatorConfig struct {
	// BaseValue is the stream's base level. Default: 100.
	BaseValue float64

	// Noise is the half-width of the uniform noise band. Default: 10.
	Noise float64

	// SeasonalPeriod is the length of the sawtooth seasonal pattern in
	// samples. Default: 100.
	SeasonalPeriod int

	// AnomalyRatio is the fraction of points spiked into anomalies.
	// Default: 0.05.
	AnomalyRatio float64

	// AnomalyMin and AnomalyMax bound the injected spike magnitude.
	// Defaults: 50 and 100.
	AnomalyMin float64
	AnomalyMax float64

	// CorruptRatio is the fraction of points emitted as NaN, simulating
	// corrupt readings. Default: 0.01.
	CorruptRatio float64

	// Interval between samples. Default: 10ms.
	Interval time.Duration

	// NumPoints limits the run; 0 means unlimited.
	NumPoints int

	// Seed for the random source; 0 seeds from the clock.
	Seed int64
}

// DefaultSimulatorConfig returns the generator defaults.
func DefaultSimulatorConfig() SimulatorConfig {
	return SimulatorConfig{
		BaseValue:      100,
		Noise:          10,
		SeasonalPeriod: 100,
		AnomalyRatio:   0.05,
		AnomalyMin:     50,
		AnomalyMax:     100,
		CorruptRatio:   0.01,
		Interval:       10 * time.Millisecond,
		NumPoints:      1000,
	}
}

// Simulator generates a stream mixing a base level, a sawtooth seasonal
// pattern, uniform noise, occasional spike anomalies, and the occasional
// corrupt (NaN) reading.
type Simulator struct {
	cfg SimulatorConfig
	rng *rand.Rand
	i   int
}

// NewSimulator creates a simulator, filling zero config fields with
// defaults.
func NewSimulator(cfg SimulatorConfig) *Simulator {
	def := DefaultSimulatorConfig()
	if cfg.BaseValue == 0 {
		cfg.BaseValue = def.BaseValue
	}
	if cfg.Noise == 0 {
		cfg.Noise = def.Noise
	}
	if cfg.SeasonalPeriod <= 0 {
		cfg.SeasonalPeriod = def.SeasonalPeriod
	}
	if cfg.AnomalyMin == 0 {
		cfg.AnomalyMin = def.AnomalyMin
	}
	if cfg.AnomalyMax == 0 {
		cfg.AnomalyMax = def.AnomalyMax
	}
	if cfg.Interval <= 0 {
		cfg.Interval = def.Interval
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Simulator{
		cfg: cfg,
		rng: rand.New(rand.NewSource(seed)),
	}
}

// Next generates the next value. Returns NaN for corrupt points.
func (s *Simulator) Next() float64 {
	i := s.i
	s.i++

	if s.cfg.CorruptRatio > 0 && s.rng.Float64() < s.cfg.CorruptRatio {
		return math.NaN()
	}

	value := s.cfg.BaseValue + s.rng.Float64()*2*s.cfg.Noise - s.cfg.Noise
	value += float64(i % s.cfg.SeasonalPeriod)
	if s.cfg.AnomalyRatio > 0 && s.rng.Float64() < s.cfg.AnomalyRatio {
		value += s.cfg.AnomalyMin + s.rng.Float64()*(s.cfg.AnomalyMax-s.cfg.AnomalyMin)
	}
	return value
}

// Run pumps samples into submit at the configured interval until the point
// budget is exhausted or the context ends. Rejected samples (corrupt points)
// are generated anyway so that downstream InvalidSample handling is
// exercised; their errors are ignored here.
func (s *Simulator) Run(ctx context.Context, submit func(Sample) error) error {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for n := 0; s.cfg.NumPoints == 0 || n < s.cfg.NumPoints; n++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
		_ = submit(Sample{Timestamp: time.Now().UnixNano(), Value: s.Next()})
	}
	return nil
}
