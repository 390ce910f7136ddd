// Package stats derives live frame statistics from the event histories the
// output merger maintains: per-swap-chain present rings and the late-stage
// reprojection deques.
package stats

// RunningStat summarizes a scalar stream: count, sum, and max.
//
// Average() and Max() both return 0 for an empty stat; that zero is part of
// the output contract (console and CSV report 0, not a sentinel, when no
// samples exist).
type RunningStat struct {
	count uint64
	sum   float64
	max   float64
}

// Add records one sample.
func (s *RunningStat) Add(x float64) {
	if s.count == 0 || x > s.max {
		s.max = x
	}
	s.count++
	s.sum += x
}

// Count returns the number of samples recorded.
func (s *RunningStat) Count() uint64 { return s.count }

// Sum returns the sum of all samples.
func (s *RunningStat) Sum() float64 { return s.sum }

// Average returns the mean of all samples, or 0 when empty.
func (s *RunningStat) Average() float64 {
	if s.count == 0 {
		return 0
	}
	return s.sum / float64(s.count)
}

// Max returns the largest sample, or 0 when empty.
func (s *RunningStat) Max() float64 {
	if s.count == 0 {
		return 0
	}
	return s.max
}
