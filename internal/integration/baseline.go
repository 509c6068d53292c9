package integration

import "strconv"

// profileBaseline returns the profile-wide baseline for opts, or nil when each
// peak uses its own straight line.
func profileBaseline(values []float64, opts Options) []float64 {
	if opts.Baseline != BaselineRollingMinimum {
		return nil
	}
	return RollingMinimum(values, opts.BaselineWindow)
}

// RollingMinimum estimates a slowly varying background: the minimum over a
// centered window, then the mean of those minima over the same window. Windows
// are truncated at the profile ends.
func RollingMinimum(values []float64, window int) []float64 {
	n := len(values)
	half := window / 2

	lows := make([]float64, n)
	for i := range values {
		lo, hi := max(0, i-half), min(n-1, i+half)
		m := values[lo]
		for _, v := range values[lo+1 : hi+1] {
			m = min(m, v)
		}
		lows[i] = m
	}

	// prefix sums give each window mean in O(1)
	prefix := make([]float64, n+1)
	for i, v := range lows {
		prefix[i+1] = prefix[i] + v
	}
	out := make([]float64, n)
	for i := range out {
		lo, hi := max(0, i-half), min(n-1, i+half)
		out[i] = (prefix[hi+1] - prefix[lo]) / float64(hi-lo+1)
	}
	return out
}

func itoa(i int) string { return strconv.Itoa(i) }
