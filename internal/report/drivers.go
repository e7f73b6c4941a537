package report

import (
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"

	"caiso-ops/internal/stats"
	"caiso-ops/internal/table"
)

// Row is one line of the key-drivers table.
type Row struct {
	Variable  string  `json:"variable"`
	Units     string  `json:"units"`
	Ref       float64 `json:"ref"`
	Curr      float64 `json:"curr"`
	PctChange float64 `json:"pct_change"`
}

// Pair is the (reference, current) value of one driver, the shape
// downstream table formatters consume.
type Pair struct {
	Ref  float64 `json:"ref"`
	Curr float64 `json:"curr"`
}

// DriverTable aggregates market-structure statistics for a reference
// period and the current period.
type DriverTable struct {
	CurrStart time.Time
	CurrEnd   time.Time
	RefStart  time.Time
	RefEnd    time.Time

	Data *Data
}

type entryFunc func(start, end time.Time) (float64, error)

type entry struct {
	label string
	units string
	fn    entryFunc
}

// entries returns the table rows in display order.
func (dt *DriverTable) entries() []entry {
	return []entry{
		{"Merchant Revenues", "$/kW/year", dt.BatteryRevenues},
		{"TB4 Spreads", "$/MWh", dt.PriceSpreads},
		{"Negatively Priced Hours", "No. Hours", dt.NegativePrices},
		{"Average Negative Price", "$/MWh", dt.NegativePriceMagnitude},
		{"Average Negative Duration", "No. Hours", dt.NegativePriceDuration},
		{"Solar Gen.", "TWh", dt.SolarGeneration},
		{"Solar Peak", "GW", dt.SolarPeak},
		{"Load", "GW", dt.LoadTotal},
		{"Net Load", "GW", dt.LoadNet},
		{"Regulation Prices", "$/MW", dt.RegulationPrices},
	}
}

// Create evaluates every entry for both periods.
func (dt *DriverTable) Create() ([]Row, error) {
	rows := make([]Row, 0, 10)
	for _, e := range dt.entries() {
		ref, err := e.fn(dt.RefStart, dt.RefEnd)
		if err != nil {
			return nil, err
		}
		curr, err := e.fn(dt.CurrStart, dt.CurrEnd)
		if err != nil {
			return nil, err
		}
		// A zero reference has no meaningful percentage change; NaN
		// marks it rather than letting the division produce Inf.
		pct := math.NaN()
		if ref != 0 {
			pct = 100 * (curr - ref) / ref
		}
		rows = append(rows, Row{
			Variable:  e.label,
			Units:     e.units,
			Ref:       ref,
			Curr:      curr,
			PctChange: pct,
		})
	}
	return rows, nil
}

// Summary returns the label-keyed pairs plus unit strings, for
// downstream table assemblers.
func (dt *DriverTable) Summary() (map[string]Pair, map[string]string, error) {
	rows, err := dt.Create()
	if err != nil {
		return nil, nil, err
	}
	pairs := make(map[string]Pair, len(rows))
	units := make(map[string]string, len(rows))
	for _, r := range rows {
		pairs[r.Variable] = Pair{Ref: r.Ref, Curr: r.Curr}
		units[r.Variable] = r.Units
	}
	return pairs, units, nil
}

// rtScale converts real-time 5-minute sample counts to hours.
const rtScale = 12

func marketScale(market string) float64 {
	if market == "rt" {
		return rtScale
	}
	return 1
}

// BatteryRevenues sums the fleet index over the period and annualizes
// to $/kW/year.
func (dt *DriverTable) BatteryRevenues(start, end time.Time) (float64, error) {
	index, err := dt.Data.Index()
	if err != nil {
		return 0, err
	}
	window, err := index.Between("timestamp", start, end)
	if err != nil {
		return 0, err
	}

	total := 0.0
	for _, col := range window.Cols {
		if col.Kind != table.KindFloat {
			continue
		}
		for _, v := range col.Floats {
			if !math.IsNaN(v) {
				total += v
			}
		}
	}
	days := end.Sub(start).Hours() / 24
	return total * (365 / days) / 1_000, nil
}

// PriceSpreads averages the daily TB4 spread over the period, $/MWh.
func (dt *DriverTable) PriceSpreads(start, end time.Time) (float64, error) {
	return dt.priceSpreads(start, end, "da", 4)
}

func (dt *DriverTable) priceSpreads(start, end time.Time, market string, tb int) (float64, error) {
	resolution := 60
	if market == "rt" {
		resolution = 5
	}
	series, err := dt.priceSeries(market, start, end)
	if err != nil {
		return 0, err
	}
	daily := stats.DailySpreads(series, stats.SpreadParams{Count: tb, ResolutionMin: resolution})
	return stats.MeanDaily(daily), nil
}

// NegativePrices counts the hours with negative prices in the period.
func (dt *DriverTable) NegativePrices(start, end time.Time) (float64, error) {
	return dt.negativePrices(start, end, "da")
}

func (dt *DriverTable) negativePrices(start, end time.Time, market string) (float64, error) {
	series, err := dt.priceSeries(market, start, end)
	if err != nil {
		return 0, err
	}
	count := 0
	for _, v := range series.Values {
		if v < 0 {
			count++
		}
	}
	return float64(count) / marketScale(market), nil
}

// NegativePriceMagnitude is the average price conditional on the period
// being negatively priced.
func (dt *DriverTable) NegativePriceMagnitude(start, end time.Time) (float64, error) {
	series, err := dt.priceSeries("da", start, end)
	if err != nil {
		return 0, err
	}
	var neg []float64
	for _, v := range series.Values {
		if v < 0 {
			neg = append(neg, v)
		}
	}
	if len(neg) == 0 {
		return math.NaN(), nil
	}
	return stat.Mean(neg, nil), nil
}

// NegativePriceDuration is the daily average of the longest negative
// streak, in hours.
func (dt *DriverTable) NegativePriceDuration(start, end time.Time) (float64, error) {
	return dt.negativePriceDuration(start, end, "da")
}

func (dt *DriverTable) negativePriceDuration(start, end time.Time, market string) (float64, error) {
	series, err := dt.priceSeries(market, start, end)
	if err != nil {
		return 0, err
	}
	daily := stats.NegativeDuration(series)
	return stats.MeanDaily(daily) / marketScale(market), nil
}

// SolarGeneration totals solar output over the period, in TWh.
func (dt *DriverTable) SolarGeneration(start, end time.Time) (float64, error) {
	hourly, err := dt.solarHourly(start, end)
	if err != nil {
		return 0, err
	}
	total := 0.0
	for _, v := range hourly.Values {
		total += v
	}
	return total / 1_000_000, nil
}

// SolarPeak averages the daily peak of hourly solar output, in GW.
func (dt *DriverTable) SolarPeak(start, end time.Time) (float64, error) {
	hourly, err := dt.solarHourly(start, end)
	if err != nil {
		return 0, err
	}
	days, buckets := dailyWindows(hourly)
	peaks := make([]float64, 0, len(days))
	for _, day := range days {
		peak := math.Inf(-1)
		for _, v := range buckets[day] {
			if v > peak {
				peak = v
			}
		}
		peaks = append(peaks, peak)
	}
	return stat.Mean(peaks, nil) / 1_000, nil
}

// LoadTotal averages system load over the period, in GW.
func (dt *DriverTable) LoadTotal(start, end time.Time) (float64, error) {
	load, err := dt.Data.Load()
	if err != nil {
		return 0, err
	}
	series, err := seriesBetween(load, "load", start, end)
	if err != nil {
		return 0, err
	}
	return meanFinite(series.Values) / 1_000, nil
}

// LoadNet averages net load (load minus solar and wind), in GW.
func (dt *DriverTable) LoadNet(start, end time.Time) (float64, error) {
	netLoad, err := dt.Data.NetLoad()
	if err != nil {
		return 0, err
	}
	series, err := seriesBetween(netLoad, "net_load", start, end)
	if err != nil {
		return 0, err
	}
	return meanFinite(series.Values) / 1_000, nil
}

// RegulationPrices is the volume-weighted average of the day-ahead
// regulation-up and regulation-down prices, in $/MW. Forward-market
// volumes weight the average.
func (dt *DriverTable) RegulationPrices(start, end time.Time) (float64, error) {
	anc, err := dt.Data.DAAncillary()
	if err != nil {
		return 0, err
	}
	window, err := anc.Between("timestamp", start, end)
	if err != nil {
		return 0, err
	}
	regUp, err := window.FloatCol("reg_up")
	if err != nil {
		return 0, err
	}
	regDown, err := window.FloatCol("reg_down")
	if err != nil {
		return 0, err
	}

	upVol, downVol, err := dt.regulationVolumes(start, end)
	if err != nil {
		return 0, err
	}

	prices := []float64{meanFinite(regUp), meanFinite(regDown)}
	weights := []float64{upVol, downVol}
	return stat.Mean(prices, weights), nil
}

// regulationVolumes sums contracted forward-market regulation volumes
// over the period.
func (dt *DriverTable) regulationVolumes(start, end time.Time) (up, down float64, err error) {
	volumes, err := dt.Data.ContractedVolumes()
	if err != nil {
		return 0, 0, err
	}
	window, err := volumes.Between("timestamp", start, end)
	if err != nil {
		return 0, 0, err
	}
	markets, err := window.StringCol("market")
	if err != nil {
		return 0, 0, err
	}
	vols, err := window.FloatCol("volume_mw")
	if err != nil {
		return 0, 0, err
	}
	for i, m := range markets {
		if math.IsNaN(vols[i]) {
			continue
		}
		switch m {
		case "ifm ru":
			up += vols[i]
		case "ifm rd":
			down += vols[i]
		}
	}
	return up, down, nil
}

// priceSeries extracts the period's LMP series for a market.
func (dt *DriverTable) priceSeries(market string, start, end time.Time) (stats.Series, error) {
	var (
		prices *table.Table
		err    error
	)
	if market == "rt" {
		prices, err = dt.Data.RTEnergy()
	} else {
		prices, err = dt.Data.DAEnergy()
	}
	if err != nil {
		return stats.Series{}, err
	}
	window, err := prices.Between("timestamp", start, end)
	if err != nil {
		return stats.Series{}, err
	}
	return seriesFrom(window, "lmp")
}

func (dt *DriverTable) solarHourly(start, end time.Time) (stats.Series, error) {
	mix, err := dt.Data.FuelMix()
	if err != nil {
		return stats.Series{}, err
	}
	series, err := seriesBetween(mix, "solar", start, end)
	if err != nil {
		return stats.Series{}, err
	}
	return hourlyMean(series), nil
}

func seriesBetween(t *table.Table, valueCol string, start, end time.Time) (stats.Series, error) {
	window, err := t.Between("timestamp", start, end)
	if err != nil {
		return stats.Series{}, err
	}
	return seriesFrom(window, valueCol)
}

func seriesFrom(t *table.Table, valueCol string) (stats.Series, error) {
	times, err := t.TimeCol("timestamp")
	if err != nil {
		return stats.Series{}, err
	}
	values, err := t.FloatCol(valueCol)
	if err != nil {
		return stats.Series{}, err
	}
	return stats.Series{Times: times, Values: values}, nil
}

// hourlyMean resamples a series onto an hourly grid by averaging.
func hourlyMean(s stats.Series) stats.Series {
	sums := map[time.Time]float64{}
	counts := map[time.Time]int{}
	for i, ts := range s.Times {
		hour := ts.Truncate(time.Hour)
		if math.IsNaN(s.Values[i]) {
			continue
		}
		sums[hour] += s.Values[i]
		counts[hour]++
	}
	hours := make([]time.Time, 0, len(sums))
	for h := range sums {
		hours = append(hours, h)
	}
	sort.Slice(hours, func(i, j int) bool { return hours[i].Before(hours[j]) })

	out := stats.Series{
		Times:  hours,
		Values: make([]float64, len(hours)),
	}
	for i, h := range hours {
		out.Values[i] = sums[h] / float64(counts[h])
	}
	return out
}

// dailyWindows buckets a series into per-day value windows.
func dailyWindows(s stats.Series) ([]time.Time, map[time.Time][]float64) {
	buckets := map[time.Time][]float64{}
	for i, ts := range s.Times {
		y, m, d := ts.Date()
		day := time.Date(y, m, d, 0, 0, 0, 0, ts.Location())
		buckets[day] = append(buckets[day], s.Values[i])
	}
	days := make([]time.Time, 0, len(buckets))
	for day := range buckets {
		days = append(days, day)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })
	return days, buckets
}
