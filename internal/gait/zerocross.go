package gait

// ZeroCrossings returns the ordered indices immediately preceding each
// sign change of the series, using three-valued sign so transitions into
// and out of exact zero count as changes. A series with fewer than two
// samples or no sign changes yields nil, which downstream reads as "zero
// turns detected".
func ZeroCrossings(series []float64) []int {
	var out []int
	for i := 0; i+1 < len(series); i++ {
		if sign(series[i+1]) != sign(series[i]) {
			out = append(out, i)
		}
	}
	return out
}

func sign(v float64) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}
