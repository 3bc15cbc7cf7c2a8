package metrics

import "math"

// RunningStats accumulates mean and variance in one pass (Welford).
// The zero value is ready to use.
type RunningStats struct {
	n    int
	mean float64
	m2   float64
}

// Add folds one observation into the running statistics
func (s *RunningStats) Add(x float64) {
	s.n++
	delta := x - s.mean
	s.mean += delta / float64(s.n)
	s.m2 += delta * (x - s.mean)
}

// Mean returns the running mean, or 0 when nothing was added
func (s *RunningStats) Mean() float64 {
	return s.mean
}

// StdDev returns the population standard deviation; 0 below two observations.
func (s *RunningStats) StdDev() float64 {
	if s.n < 2 {
		return 0
	}
	return math.Sqrt(s.m2 / float64(s.n))
}

func (s *RunningStats) Count() int {
	return s.n
}
