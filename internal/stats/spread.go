package stats

import "sort"

// SpreadParams configures a top/bottom-N spread. Count is the number of
// extreme hours per side; ResolutionMin is the number of minutes between
// observations, so N scales with the sampling rate.
type SpreadParams struct {
	Count         int
	ResolutionMin int
}

// N is the number of observations summed on each side.
func (p SpreadParams) N() int {
	return p.Count * (60 / p.ResolutionMin)
}

// Spread sorts a single window ascending and returns the sum of the top
// N observations minus the sum of the bottom N. Windows shorter than N
// use every available observation on the short side rather than failing;
// a one-sample window therefore yields 0.
func (p SpreadParams) Spread(window []float64) float64 {
	arranged := make([]float64, len(window))
	copy(arranged, window)
	sort.Float64s(arranged)

	n := p.N()
	lo := len(arranged) - n
	if lo < 0 {
		lo = 0
	}
	hi := n
	if hi > len(arranged) {
		hi = len(arranged)
	}
	return sum(arranged[lo:]) - sum(arranged[:hi])
}

// DailySpreads applies the spread to each calendar-day window of the
// series.
func DailySpreads(s Series, p SpreadParams) []Daily {
	days, buckets := dailyBuckets(s)
	out := make([]Daily, 0, len(days))
	for _, day := range days {
		out = append(out, Daily{Day: day, Value: p.Spread(buckets[day])})
	}
	return out
}

func sum(vals []float64) float64 {
	total := 0.0
	for _, v := range vals {
		total += v
	}
	return total
}
