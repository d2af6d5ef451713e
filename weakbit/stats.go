package weakbit

import (
	"math"
)

// TimingStats summarizes the timing of one cell across revolutions.
type TimingStats struct {
	Mean     float64
	Variance float64 // Population variance
	Min      float64
	Max      float64
	Count    int

	m2 float64
}

// Add accumulates one sample (Welford's single-pass update).
func (s *TimingStats) Add(x float64) {
	s.Count++
	if s.Count == 1 {
		s.Mean, s.Min, s.Max = x, x, x
		s.m2, s.Variance = 0, 0
		return
	}
	delta := x - s.Mean
	s.Mean += delta / float64(s.Count)
	s.m2 += delta * (x - s.Mean)
	s.Variance = s.m2 / float64(s.Count)
	s.Min = math.Min(s.Min, x)
	s.Max = math.Max(s.Max, x)
}

// StdDev returns the standard deviation.
func (s TimingStats) StdDev() float64 {
	return math.Sqrt(s.Variance)
}

// Spread returns the difference between the largest and smallest sample.
func (s TimingStats) Spread() float64 {
	return s.Max - s.Min
}

// Dispersion returns Variance/Mean², the squared coefficient of variation.
// A zero mean with non-zero variance is infinitely dispersed.
func (s TimingStats) Dispersion() float64 {
	if s.Variance == 0 {
		return 0
	}
	if s.Mean == 0 {
		return math.Inf(1)
	}
	return s.Variance / (s.Mean * s.Mean)
}

// Compute returns the statistics of a set of samples.
func Compute(samples []float64) TimingStats {
	var s TimingStats
	for _, x := range samples {
		s.Add(x)
	}
	return s
}
