package warehouse

import (
	"fmt"
	"strings"
)

// Builder renders the per-dataset warehouse queries. Schema is the
// qualified prefix of the market tables (e.g. "iceberg.prod"); empty
// means unqualified, which the tests and the sqlite fixture schema use.
type Builder struct {
	Schema string
}

func (b Builder) table(name string) string {
	if b.Schema == "" {
		return name
	}
	return b.Schema + "." + name
}

// dateBounded renders the shared shape of the market queries: a full
// SELECT over one table, half-open on the date column, ordered by the
// interval column.
func (b Builder) dateBounded(tbl, alias, dateCol, orderCol, first, final string, extra string, filt Expr) Query {
	base := fmt.Sprintf(
		"SELECT * FROM %s AS %s WHERE %s.%s >= DATE '%s' AND %s.%s < DATE '%s'%s ORDER BY %s.%s",
		b.table(tbl), alias,
		alias, dateCol, first,
		alias, dateCol, final,
		extra,
		alias, orderCol,
	)
	return Query{Base: base, Filter: filt}
}

// ASPricesDA selects day-ahead ancillary service prices.
func (b Builder) ASPricesDA(first, final string, filt Expr) Query {
	return b.dateBounded("caiso_dam_as_price", "as_pr_da", "opr_dt", "intervalstarttime", first, final, "", filt)
}

// ASPricesRT selects real-time (FMM) ancillary service prices.
func (b Builder) ASPricesRT(first, final string, filt Expr) Query {
	return b.dateBounded("caiso_fmm_as_price", "as_pr_rt", "opr_dt", "intervalstarttime", first, final, "", filt)
}

// EnergyPricesDA selects day-ahead LMPs for the given nodes.
func (b Builder) EnergyPricesDA(first, final string, nodes []string, filt Expr) Query {
	return b.dateBounded("caiso_dam_lmp", "pr_da", "opr_dt", "intervalstarttime", first, final,
		nodeClause("pr_da", nodes), filt)
}

// EnergyPricesRT selects real-time dispatch LMPs for the given nodes.
func (b Builder) EnergyPricesRT(first, final string, nodes []string, filt Expr) Query {
	return b.dateBounded("caiso_rtd_lmp", "pr_rt", "opr_dt", "intervalstarttime", first, final,
		nodeClause("pr_rt", nodes), filt)
}

// IndexCapacity selects the daily fleet capacity series.
func (b Builder) IndexCapacity(first, final string, filt Expr) Query {
	return b.dateBounded("caiso_index_capacity", "ixc", "date", "date", first, final, "", filt)
}

// IndexPrice selects the fleet index price data.
func (b Builder) IndexPrice(first, final string, filt Expr) Query {
	return b.dateBounded("caiso_index_price_data", "ixp", "timestamp", "timestamp", first, final, "", filt)
}

// IndexRevenue selects the fleet index revenue streams.
func (b Builder) IndexRevenue(first, final string, filt Expr) Query {
	return b.dateBounded("caiso_index_revenue", "ixr", "timestamp", "timestamp", first, final, "", filt)
}

// IndexVolume selects the fleet index contracted volumes.
func (b Builder) IndexVolume(first, final string, filt Expr) Query {
	return b.dateBounded("caiso_index_volume_data", "ixv", "timestamp", "timestamp", first, final, "", filt)
}

// GenerationFuelMix selects system-wide generation by fuel type.
func (b Builder) GenerationFuelMix(first, final string, filt Expr) Query {
	return b.dateBounded("caiso_generation_by_fuel_type", "gen_fuel", "time", "time", first, final, "", filt)
}

// RenewableGeneration selects wind and solar generation.
func (b Builder) RenewableGeneration(first, final string, filt Expr) Query {
	return b.dateBounded("caiso_wind_solar_gen", "green_gen", "opr_dt", "intervalstarttime", first, final, "", filt)
}

func nodeClause(alias string, nodes []string) string {
	if len(nodes) == 0 {
		return ""
	}
	quoted := make([]string, len(nodes))
	for i, n := range nodes {
		quoted[i] = "'" + strings.ReplaceAll(n, "'", "''") + "'"
	}
	return fmt.Sprintf(" AND %s.node IN (%s)", alias, strings.Join(quoted, ", "))
}
