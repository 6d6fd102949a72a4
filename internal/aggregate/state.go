package aggregate

// State is a combinable running aggregate. Batched callers build one State
// per batch and Combine them in batch order, which yields the same count,
// min, max, first and last as a sequential pass.
type State struct {
	Count int64
	Sum   float64
	Min   float64
	Max   float64
	First float64
	Last  float64
}

// Add folds one value into s.
func (s *State) Add(v float64) {
	if s.Count == 0 {
		s.Min, s.Max, s.First = v, v, v
	}
	if v < s.Min {
		s.Min = v
	}
	if v > s.Max {
		s.Max = v
	}
	s.Count++
	s.Sum += v
	s.Last = v
}

// Combine merges o into s; o must cover values that come after s's.
func (s *State) Combine(o State) {
	if o.Count == 0 {
		return
	}
	if s.Count == 0 {
		*s = o
		return
	}
	if o.Min < s.Min {
		s.Min = o.Min
	}
	if o.Max > s.Max {
		s.Max = o.Max
	}
	s.Count += o.Count
	s.Sum += o.Sum
	s.Last = o.Last
}

// Avg returns the mean, or 0 for an empty state.
func (s State) Avg() float64 {
	if s.Count == 0 {
		return 0
	}
	return s.Sum / float64(s.Count)
}

// Result returns the built-in reducer's value for name. Unknown names yield
// the sum, matching Resolve.
func (s State) Result(name string) any {
	switch Canonical(name) {
	case Count:
		return float64(s.Count)
	case Average:
		return s.Avg()
	case Min:
		if s.Count == 0 {
			return float64(0)
		}
		return s.Min
	case Max:
		if s.Count == 0 {
			return float64(0)
		}
		return s.Max
	case First:
		if s.Count == 0 {
			return ""
		}
		return s.First
	case Last:
		if s.Count == 0 {
			return ""
		}
		return s.Last
	default:
		return s.Sum
	}
}
