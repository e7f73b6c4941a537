package stats

import (
	"math"
	"sort"
	"time"

	"caiso-ops/internal/table"
)

// RevenueIndex builds the fleet index: revenue rows grouped by
// (timestamp, service grouping), pivoted into one column per service,
// then divided by the fleet capacity of the containing day. The capacity
// table is sampled on a daily grid under volumeCol; timestamps floor to
// that grid for the lookup. Days with zero or missing capacity propagate
// NaN, not an error.
func RevenueIndex(revenue, capacity *table.Table, volumeCol string, opts AggOptions) (*table.Table, error) {
	times, err := revenue.TimeCol("timestamp")
	if err != nil {
		return nil, err
	}
	markets, err := revenue.StringCol("market")
	if err != nil {
		return nil, err
	}
	values, err := revenue.FloatCol("revenue")
	if err != nil {
		return nil, err
	}

	services := AggregateServices(markets, opts)

	// Group-sum by (timestamp, service). Some streams report NaN for
	// empty intervals; those count as zero, matching the pivot fill.
	type cellKey struct {
		ts      time.Time
		service string
	}
	sums := map[cellKey]float64{}
	tsSet := map[time.Time]struct{}{}
	svcSet := map[string]struct{}{}
	for i := range times {
		v := values[i]
		if math.IsNaN(v) {
			v = 0
		}
		key := cellKey{ts: times[i], service: services[i]}
		sums[key] += v
		tsSet[times[i]] = struct{}{}
		svcSet[services[i]] = struct{}{}
	}

	timestamps := make([]time.Time, 0, len(tsSet))
	for ts := range tsSet {
		timestamps = append(timestamps, ts)
	}
	sort.Slice(timestamps, func(i, j int) bool { return timestamps[i].Before(timestamps[j]) })

	svcNames := make([]string, 0, len(svcSet))
	for svc := range svcSet {
		svcNames = append(svcNames, svc)
	}
	sort.Strings(svcNames)

	capByDay, err := dailyCapacity(capacity, volumeCol)
	if err != nil {
		return nil, err
	}

	out := table.New(table.Column{Name: "timestamp", Kind: table.KindTime, Times: timestamps})
	for _, svc := range svcNames {
		col := table.Column{Name: svc, Kind: table.KindFloat, Floats: make([]float64, len(timestamps))}
		for i, ts := range timestamps {
			denom, ok := capByDay[civilOf(ts)]
			if !ok || denom == 0 {
				col.Floats[i] = math.NaN()
				continue
			}
			col.Floats[i] = sums[cellKey{ts: ts, service: svc}] / denom
		}
		out.Cols = append(out.Cols, col)
	}
	return out, nil
}

// dailyCapacity indexes a coarse capacity table by civil calendar date,
// so lookups work regardless of which zone either table's timestamps
// carry. On duplicate days the first occurrence wins; capacity tables
// are sorted by date at normalization time, so this is deterministic.
func dailyCapacity(capacity *table.Table, volumeCol string) (map[civilDay]float64, error) {
	dates, err := capacity.TimeCol("date")
	if err != nil {
		return nil, err
	}
	volumes, err := capacity.FloatCol(volumeCol)
	if err != nil {
		return nil, err
	}
	byDay := make(map[civilDay]float64, len(dates))
	for i, d := range dates {
		day := civilOf(d)
		if _, dup := byDay[day]; dup {
			continue
		}
		byDay[day] = volumes[i]
	}
	return byDay, nil
}
