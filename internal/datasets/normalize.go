package datasets

import (
	"time"

	"caiso-ops/internal/table"
)

// marketTZ is the grid operator's local timezone. Every cached dataset
// stores wall-clock time in this zone with the offset dropped.
var marketTZ = func() *time.Location {
	loc, err := time.LoadLocation("America/Los_Angeles")
	if err != nil {
		panic(err)
	}
	return loc
}()

// normalizeIntervalPrices is the shared shape of the warehouse price
// normalizers: localize the interval start, drop the operational
// bookkeeping columns, rename to the canonical timestamp, sort, dedupe.
func normalizeIntervalPrices(t *table.Table, drop []string) (*table.Table, error) {
	out := t.Clone()
	if err := out.ConvertToWall("intervalstarttime", marketTZ); err != nil {
		return nil, err
	}
	if err := out.Drop(drop...); err != nil {
		return nil, err
	}
	if err := out.Rename("intervalstarttime", "timestamp"); err != nil {
		return nil, err
	}
	if err := out.SortBy("timestamp"); err != nil {
		return nil, err
	}
	out.DropDuplicates()
	return out, nil
}

func normalizeASPrices(t *table.Table) (*table.Table, error) {
	return normalizeIntervalPrices(t, []string{
		"intervalendtime", "opr_dt", "opr_hr", "opr_interval", "opr_type",
		"market_run_id", "price_unit",
	})
}

func normalizeEnergyPrices(t *table.Table) (*table.Table, error) {
	return normalizeIntervalPrices(t, []string{
		"intervalendtime", "opr_dt", "opr_hr", "opr_interval",
		"market_run_id", "price_unit",
	})
}

func normalizeRenewableGeneration(t *table.Table) (*table.Table, error) {
	return normalizeIntervalPrices(t, []string{
		"intervalendtime", "opr_dt", "opr_hr", "opr_interval",
		"market_run_id", "market_run_id_pos", "renew_pos", "group",
	})
}

func normalizeIndexCapacity(t *table.Table) (*table.Table, error) {
	out := t.Clone()
	if !out.HasCol("date") {
		return nil, &table.SchemaError{Column: "date"}
	}
	if err := out.SortBy("date"); err != nil {
		return nil, err
	}
	out.DropDuplicates()
	return out, nil
}

// normalizeIndexSeries handles the index price/revenue/volume tables:
// localize the timestamp, keep the market label as a secondary sort key,
// drop the redundant date column plus any extras.
func normalizeIndexSeries(t *table.Table, extraDrops ...string) (*table.Table, error) {
	out := t.Clone()
	if err := out.ConvertToWall("timestamp", marketTZ); err != nil {
		return nil, err
	}
	drops := append([]string{"date"}, extraDrops...)
	if err := out.Drop(drops...); err != nil {
		return nil, err
	}
	if err := out.SortBy("timestamp", "market"); err != nil {
		return nil, err
	}
	out.DropDuplicates()
	return out, nil
}

func normalizeIndexPrice(t *table.Table) (*table.Table, error) {
	return normalizeIndexSeries(t)
}

func normalizeIndexRevenue(t *table.Table) (*table.Table, error) {
	return normalizeIndexSeries(t)
}

func normalizeIndexVolume(t *table.Table) (*table.Table, error) {
	return normalizeIndexSeries(t, "period_length")
}

// normalizeLocalIntervals handles datasets staged from API pulls that
// already carry local interval timestamps alongside UTC duplicates.
func normalizeLocalIntervals(t *table.Table) (*table.Table, error) {
	out := t.Clone()
	if !out.HasCol("interval_start_local") {
		return nil, &table.SchemaError{Column: "interval_start_local"}
	}
	if err := out.Drop("interval_start_utc", "interval_end_local", "interval_end_utc"); err != nil {
		return nil, err
	}
	if err := out.Rename("interval_start_local", "timestamp"); err != nil {
		return nil, err
	}
	if err := out.SortBy("timestamp"); err != nil {
		return nil, err
	}
	out.DropDuplicates()
	return out, nil
}

// masterListCols are the generator-capability columns the report keeps.
var masterListCols = []string{
	"RESOURCE_ID", "GEN_UNIT_NAME", "NET_DEPENDABLE_CAPACITY",
	"NAMEPLATE_CAPACITY", "OWNER_OR_QF", "ENERGY_SOURCE", "ZONE",
	"PTO_AREA", "COD", "BAA_ID", "UDC",
}

// normalizeMasterList filters the generator master list down to
// storage resources: nodal aggregation, LESR energy source, known
// commercial-operation date; newest first, one row per resource.
func normalizeMasterList(t *table.Table) (*table.Table, error) {
	aggType, err := t.StringCol("RESOURCE_AGG_TYPE")
	if err != nil {
		return nil, err
	}
	source, err := t.StringCol("ENERGY_SOURCE")
	if err != nil {
		return nil, err
	}

	keep := make([]int, 0, t.Len())
	for i := range aggType {
		if aggType[i] == "N" && source[i] == "LESR" {
			keep = append(keep, i)
		}
	}
	filtered := t.Take(keep)

	out, err := filtered.Select(masterListCols...)
	if err != nil {
		return nil, err
	}
	out = out.Clone()

	cod, ok := out.Col("COD")
	if !ok {
		return nil, &table.SchemaError{Column: "COD"}
	}
	keep = keep[:0]
	for i := 0; i < out.Len(); i++ {
		if !codMissing(cod, i) {
			keep = append(keep, i)
		}
	}
	out = out.Take(keep)

	if err := out.SortBy("COD"); err != nil {
		return nil, err
	}
	out = reverseRows(out)
	out = dedupeByString(out, "RESOURCE_ID")
	return out, nil
}

func codMissing(c *table.Column, i int) bool {
	switch c.Kind {
	case table.KindTime:
		return c.Times[i].IsZero()
	case table.KindString:
		return c.Strings[i] == ""
	default:
		return false
	}
}

func reverseRows(t *table.Table) *table.Table {
	n := t.Len()
	rows := make([]int, n)
	for i := range rows {
		rows[i] = n - 1 - i
	}
	return t.Take(rows)
}

// dedupeByString keeps the first row per distinct value of the named
// string column.
func dedupeByString(t *table.Table, col string) *table.Table {
	vals, err := t.StringCol(col)
	if err != nil {
		return t
	}
	seen := map[string]struct{}{}
	keep := make([]int, 0, len(vals))
	for i, v := range vals {
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		keep = append(keep, i)
	}
	return t.Take(keep)
}

// normalizeIdentity passes raw rows through untouched.
func normalizeIdentity(t *table.Table) (*table.Table, error) {
	return t.Clone(), nil
}
