// Package report assembles the recurring market-drivers report from
// cached datasets and the derived statistics.
package report

import (
	"math"

	"caiso-ops/internal/datasets"
	"caiso-ops/internal/pool"
	"caiso-ops/internal/table"
)

// ancRegionHub is the ancillary price hub that factors in generation,
// load and intertie nodes.
const ancRegionHub = "AS_CAISO_EXP"

// Data memoizes the dataset loads a report needs, one fetch per dataset
// per report run regardless of how many entries consume it.
type Data struct {
	catalog *datasets.Catalog
	query   pool.Query

	daEnergy *table.Table
	rtEnergy *table.Table
	daAnc    *table.Table
	rtAnc    *table.Table
	fuelMix  *table.Table
	load     *table.Table
	netLoad  *table.Table
	index    *table.Table
	volumes  *table.Table
}

// NewData wraps a catalog with a fetch window wide enough to cover both
// report periods.
func NewData(catalog *datasets.Catalog, query pool.Query) *Data {
	return &Data{catalog: catalog, query: query}
}

func (d *Data) DAEnergy() (*table.Table, error) {
	if d.daEnergy == nil {
		t, err := d.catalog.EnergyPrices("da", d.query)
		if err != nil {
			return nil, err
		}
		d.daEnergy = t
	}
	return d.daEnergy, nil
}

func (d *Data) RTEnergy() (*table.Table, error) {
	if d.rtEnergy == nil {
		t, err := d.catalog.EnergyPrices("rt", d.query)
		if err != nil {
			return nil, err
		}
		d.rtEnergy = t
	}
	return d.rtEnergy, nil
}

func (d *Data) DAAncillary() (*table.Table, error) {
	if d.daAnc == nil {
		t, err := d.catalog.ASPrices("da", d.query)
		if err != nil {
			return nil, err
		}
		d.daAnc, err = filterHub(t)
		if err != nil {
			return nil, err
		}
	}
	return d.daAnc, nil
}

func (d *Data) RTAncillary() (*table.Table, error) {
	if d.rtAnc == nil {
		t, err := d.catalog.ASPrices("rt", d.query)
		if err != nil {
			return nil, err
		}
		d.rtAnc = t
	}
	return d.rtAnc, nil
}

func (d *Data) FuelMix() (*table.Table, error) {
	if d.fuelMix == nil {
		t, err := d.catalog.Generation("all", d.query)
		if err != nil {
			return nil, err
		}
		d.fuelMix = t
	}
	return d.fuelMix, nil
}

func (d *Data) Load() (*table.Table, error) {
	if d.load == nil {
		t, err := d.catalog.Load(d.query)
		if err != nil {
			return nil, err
		}
		d.load = t
	}
	return d.load, nil
}

func (d *Data) Index() (*table.Table, error) {
	if d.index == nil {
		t, err := d.catalog.Index("mw", d.query)
		if err != nil {
			return nil, err
		}
		d.index = t
	}
	return d.index, nil
}

func (d *Data) ContractedVolumes() (*table.Table, error) {
	if d.volumes == nil {
		t, err := d.catalog.IndexVolume(d.query)
		if err != nil {
			return nil, err
		}
		d.volumes = t
	}
	return d.volumes, nil
}

// NetLoad joins system load against solar-plus-wind generation on
// matching timestamps: net_load = load - (solar + wind).
func (d *Data) NetLoad() (*table.Table, error) {
	if d.netLoad != nil {
		return d.netLoad, nil
	}
	load, err := d.Load()
	if err != nil {
		return nil, err
	}
	mix, err := d.FuelMix()
	if err != nil {
		return nil, err
	}

	mixTimes, err := mix.TimeCol("timestamp")
	if err != nil {
		return nil, err
	}
	solar, err := mix.FloatCol("solar")
	if err != nil {
		return nil, err
	}
	wind, err := mix.FloatCol("wind")
	if err != nil {
		return nil, err
	}
	renewables := make(map[int64]float64, len(mixTimes))
	for i, ts := range mixTimes {
		renewables[ts.UnixNano()] = solar[i] + wind[i]
	}

	loadTimes, err := load.TimeCol("timestamp")
	if err != nil {
		return nil, err
	}
	loadVals, err := load.FloatCol("load")
	if err != nil {
		return nil, err
	}

	out := table.New(
		table.Column{Name: "timestamp", Kind: table.KindTime},
		table.Column{Name: "net_load", Kind: table.KindFloat},
	)
	for i, ts := range loadTimes {
		sw, ok := renewables[ts.UnixNano()]
		if !ok {
			continue
		}
		out.Cols[0].Times = append(out.Cols[0].Times, ts)
		out.Cols[1].Floats = append(out.Cols[1].Floats, loadVals[i]-sw)
	}
	d.netLoad = out
	return out, nil
}

// filterHub keeps the ancillary rows priced at the exchange hub.
func filterHub(t *table.Table) (*table.Table, error) {
	regions, err := t.StringCol("anc_region")
	if err != nil {
		return nil, err
	}
	keep := make([]int, 0, len(regions))
	for i, r := range regions {
		if r == ancRegionHub {
			keep = append(keep, i)
		}
	}
	return t.Take(keep), nil
}

// meanFinite averages the non-NaN values; empty input yields NaN.
func meanFinite(vals []float64) float64 {
	total, n := 0.0, 0
	for _, v := range vals {
		if math.IsNaN(v) {
			continue
		}
		total += v
		n++
	}
	if n == 0 {
		return math.NaN()
	}
	return total / float64(n)
}
