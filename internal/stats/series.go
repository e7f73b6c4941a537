// Package stats holds the pure time-series statistics derived from
// normalized market data: daily negative-price streaks, top/bottom-N
// spreads, and the revenue-to-capacity index. Nothing here performs I/O
// or holds state.
package stats

import (
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"
)

// Series is an ordered sequence of (timestamp, value) samples at an
// arbitrary fixed interval. Negative and NaN values are significant.
type Series struct {
	Times  []time.Time
	Values []float64
}

// Daily is one scalar per calendar day, in the timezone of the source
// series.
type Daily struct {
	Day   time.Time
	Value float64
}

// dayOf truncates a timestamp to midnight of its calendar day, keeping
// the location.
func dayOf(ts time.Time) time.Time {
	y, m, d := ts.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, ts.Location())
}

// civilDay is a location-free calendar date, used as a map key where
// timestamps from different sources must land on the same day. A
// time.Time key would compare location pointers and never match across
// zones.
type civilDay struct {
	year  int
	month time.Month
	day   int
}

func civilOf(ts time.Time) civilDay {
	y, m, d := ts.Date()
	return civilDay{year: y, month: m, day: d}
}

// dailyBuckets partitions a series into per-day sample windows, days
// ordered ascending. Sample order within a day follows the input.
func dailyBuckets(s Series) ([]time.Time, map[time.Time][]float64) {
	buckets := map[time.Time][]float64{}
	for i, ts := range s.Times {
		day := dayOf(ts)
		buckets[day] = append(buckets[day], s.Values[i])
	}
	days := make([]time.Time, 0, len(buckets))
	for day := range buckets {
		days = append(days, day)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })
	return days, buckets
}

// MeanDaily averages daily values across days.
func MeanDaily(daily []Daily) float64 {
	vals := make([]float64, len(daily))
	for i, d := range daily {
		vals[i] = d.Value
	}
	return stat.Mean(vals, nil)
}
