package stats

// NegativeDuration returns, for every calendar day present in the
// series, the length of the longest run of consecutive strictly negative
// samples. The count is in samples at the series' native resolution;
// scaling to hours is the caller's concern. NaN is treated as
// non-negative, so it interrupts a streak.
func NegativeDuration(s Series) []Daily {
	days, buckets := dailyBuckets(s)
	out := make([]Daily, 0, len(days))
	for _, day := range days {
		out = append(out, Daily{Day: day, Value: float64(longestRun(buckets[day]))})
	}
	return out
}

// longestRun finds the longest maximal block of negative values using an
// edge scan over a sentinel-padded binary mask: a rising edge opens a
// run, the matching falling edge closes it, and the sentinels guarantee
// every edge is paired.
func longestRun(window []float64) int {
	mask := make([]int8, len(window)+2)
	for i, v := range window {
		if v < 0 { // NaN compares false
			mask[i+1] = 1
		}
	}

	best, start := 0, 0
	for i := 1; i < len(mask); i++ {
		switch mask[i] - mask[i-1] {
		case 1:
			start = i
		case -1:
			if run := i - start; run > best {
				best = run
			}
		}
	}
	return best
}
