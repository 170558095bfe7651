package stats

import "math"

// Stats aggregates the temperatures of one station. All values are in
// tenths of a degree.
type Stats struct {
	Sum   int64
	Count uint32
	Min   int16
	Max   int16
}

// New returns an empty aggregate. Its Min and Max are sentinels that any
// recorded value replaces.
func New() Stats {
	return Stats{
		Min: math.MaxInt16,
		Max: math.MinInt16,
	}
}

func (s *Stats) Add(v int16) {
	s.Min = min(s.Min, v)
	s.Max = max(s.Max, v)
	s.Sum += int64(v)
	s.Count++
}

// Merge folds o into s. Merging is associative and commutative.
func (s *Stats) Merge(o Stats) {
	s.Min = min(s.Min, o.Min)
	s.Max = max(s.Max, o.Max)
	s.Sum += o.Sum
	s.Count += o.Count
}

// AvgTenths returns the mean in tenths of a degree, rounded half away from
// zero.
func (s Stats) AvgTenths() int64 {
	if s.Count == 0 {
		return 0
	}
	n := int64(s.Count)
	q, r := s.Sum/n, s.Sum%n
	if 2*r >= n {
		q++
	} else if 2*r <= -n {
		q--
	}
	return q
}
