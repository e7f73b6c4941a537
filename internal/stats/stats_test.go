package stats

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"caiso-ops/internal/table"
)

func hourlySeries(day time.Time, values []float64) Series {
	s := Series{Values: values}
	for i := range values {
		s.Times = append(s.Times, day.Add(time.Duration(i)*time.Hour))
	}
	return s
}

func TestNegativeDuration(t *testing.T) {
	day := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		values []float64
		want   float64
	}{
		{
			name:   "longest run in the middle",
			values: []float64{-4, -1, 3, -6, -2, -5},
			want:   3,
		},
		{
			name:   "all non-negative",
			values: []float64{0, 1, 2},
			want:   0,
		},
		{
			name:   "all negative",
			values: []float64{-1, -1, -1},
			want:   3,
		},
		{
			name:   "run open at the end",
			values: []float64{1, -1, -2},
			want:   2,
		},
		{
			name:   "nan interrupts a streak",
			values: []float64{-1, math.NaN(), -1, -1},
			want:   2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			daily := NegativeDuration(hourlySeries(day, tt.values))
			require.Len(t, daily, 1)
			assert.Equal(t, day, daily[0].Day)
			assert.Equal(t, tt.want, daily[0].Value)
		})
	}
}

func TestNegativeDurationSplitsByDay(t *testing.T) {
	d1 := time.Date(2025, 3, 1, 23, 0, 0, 0, time.UTC)
	d2 := time.Date(2025, 3, 2, 0, 0, 0, 0, time.UTC)
	s := Series{
		Times:  []time.Time{d1, d2, d2.Add(time.Hour)},
		Values: []float64{-1, -1, -1},
	}

	daily := NegativeDuration(s)
	require.Len(t, daily, 2)
	assert.Equal(t, 1.0, daily[0].Value)
	assert.Equal(t, 2.0, daily[1].Value)
}

func TestSpread(t *testing.T) {
	tests := []struct {
		name   string
		params SpreadParams
		window []float64
		want   float64
	}{
		{
			name:   "hourly top and bottom one",
			params: SpreadParams{Count: 1, ResolutionMin: 60},
			window: []float64{10, 2, 30, 4, 50, 6},
			want:   48,
		},
		{
			name:   "five minute resolution scales n",
			params: SpreadParams{Count: 1, ResolutionMin: 5},
			window: []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16, 17, 18, 19, 20, 21, 22, 23, 24},
			// top 12 sum 222, bottom 12 sum 78
			want: 144,
		},
		{
			name:   "window shorter than n yields zero",
			params: SpreadParams{Count: 2, ResolutionMin: 60},
			window: []float64{5},
			want:   0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, tt.params.Spread(tt.window), 1e-9)
		})
	}
}

func TestDailySpreads(t *testing.T) {
	day := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	daily := DailySpreads(hourlySeries(day, []float64{10, 2, 30, 4, 50, 6}),
		SpreadParams{Count: 1, ResolutionMin: 60})

	require.Len(t, daily, 1)
	assert.InDelta(t, 48, daily[0].Value, 1e-9)
}

func TestAggregateServices(t *testing.T) {
	labels := []string{"ifm energy", "fmm energy", "rtd energy", "ruc energy", "ifm ru", "fmm sr"}

	got := AggregateServices(labels, DefaultAggOptions())
	assert.Equal(t, []string{"da_energy", "rt_energy", "rt_energy", "rt_energy", "as", "as"}, got)

	got = AggregateServices(labels, AggOptions{AggEnergy: true})
	assert.Equal(t, []string{"energy", "energy", "energy", "energy", "ru", "sr"}, got)

	got = AggregateServices(labels, AggOptions{})
	assert.Equal(t, []string{"ifm_energy", "fmm_energy", "rtd_energy", "ruc_energy", "ru", "sr"}, got)
}

func TestRevenueIndex(t *testing.T) {
	ts := time.Date(2025, 1, 1, 3, 0, 0, 0, time.UTC)
	revenue := table.New(
		table.Column{Name: "timestamp", Kind: table.KindTime, Times: []time.Time{ts, ts, ts}},
		table.Column{Name: "market", Kind: table.KindString, Strings: []string{"ifm energy", "fmm energy", "ifm ru"}},
		table.Column{Name: "revenue", Kind: table.KindFloat, Floats: []float64{200, 50, math.NaN()}},
	)
	capacity := table.New(
		table.Column{Name: "date", Kind: table.KindTime, Times: []time.Time{
			time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		}},
		table.Column{Name: "mw", Kind: table.KindFloat, Floats: []float64{100}},
	)

	out, err := RevenueIndex(revenue, capacity, "mw", DefaultAggOptions())
	require.NoError(t, err)
	assert.Equal(t, []string{"timestamp", "as", "da_energy", "rt_energy"}, out.Names())
	require.Equal(t, 1, out.Len())

	da, err := out.FloatCol("da_energy")
	require.NoError(t, err)
	assert.InDelta(t, 2.0, da[0], 1e-9)

	rt, err := out.FloatCol("rt_energy")
	require.NoError(t, err)
	assert.InDelta(t, 0.5, rt[0], 1e-9)

	// NaN revenue counts as zero, not NaN.
	as, err := out.FloatCol("as")
	require.NoError(t, err)
	assert.InDelta(t, 0.0, as[0], 1e-9)
}

func TestRevenueIndexMissingCapacityIsNaN(t *testing.T) {
	ts := time.Date(2025, 1, 2, 3, 0, 0, 0, time.UTC)
	revenue := table.New(
		table.Column{Name: "timestamp", Kind: table.KindTime, Times: []time.Time{ts}},
		table.Column{Name: "market", Kind: table.KindString, Strings: []string{"ifm energy"}},
		table.Column{Name: "revenue", Kind: table.KindFloat, Floats: []float64{10}},
	)
	capacity := table.New(
		table.Column{Name: "date", Kind: table.KindTime, Times: []time.Time{
			time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		}},
		table.Column{Name: "mw", Kind: table.KindFloat, Floats: []float64{0}},
	)

	out, err := RevenueIndex(revenue, capacity, "mw", DefaultAggOptions())
	require.NoError(t, err)

	da, err := out.FloatCol("da_energy")
	require.NoError(t, err)
	assert.True(t, math.IsNaN(da[0]), "missing capacity day must propagate NaN")
}

func TestRevenueIndexCapacityDatesAcrossZones(t *testing.T) {
	// Capacity dates carrying a different zone than the revenue
	// timestamps still resolve by calendar date.
	est := time.FixedZone("EST", -5*3600)
	ts := time.Date(2025, 1, 1, 3, 0, 0, 0, time.UTC)
	revenue := table.New(
		table.Column{Name: "timestamp", Kind: table.KindTime, Times: []time.Time{ts}},
		table.Column{Name: "market", Kind: table.KindString, Strings: []string{"ifm energy"}},
		table.Column{Name: "revenue", Kind: table.KindFloat, Floats: []float64{10}},
	)
	capacity := table.New(
		table.Column{Name: "date", Kind: table.KindTime, Times: []time.Time{
			time.Date(2025, 1, 1, 0, 0, 0, 0, est),
		}},
		table.Column{Name: "mw", Kind: table.KindFloat, Floats: []float64{100}},
	)

	out, err := RevenueIndex(revenue, capacity, "mw", DefaultAggOptions())
	require.NoError(t, err)

	da, err := out.FloatCol("da_energy")
	require.NoError(t, err)
	assert.InDelta(t, 0.1, da[0], 1e-9)
}

func TestRevenueIndexMissingColumn(t *testing.T) {
	revenue := table.New(table.Column{Name: "timestamp", Kind: table.KindTime})
	capacity := table.New(table.Column{Name: "date", Kind: table.KindTime})

	_, err := RevenueIndex(revenue, capacity, "mw", DefaultAggOptions())
	var schemaErr *table.SchemaError
	require.ErrorAs(t, err, &schemaErr)
	assert.Equal(t, "market", schemaErr.Column)
}

func TestMeanDaily(t *testing.T) {
	daily := []Daily{{Value: 1}, {Value: 2}, {Value: 3}}
	assert.InDelta(t, 2.0, MeanDaily(daily), 1e-9)
}
