// Package datasets declares the cacheable market datasets: their pool
// locations, remote bindings and one-time normalizers. The catalog is
// the facade the report and API layers fetch through.
package datasets

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"caiso-ops/internal/oasis"
	"caiso-ops/internal/pool"
	"caiso-ops/internal/stats"
	"caiso-ops/internal/table"
	"caiso-ops/internal/warehouse"
)

// ParamError reports an unsupported enum value passed by the caller. It
// is raised before any I/O.
type ParamError struct {
	Param string
	Value string
}

func (e *ParamError) Error() string {
	return fmt.Sprintf("unrecognized %s: %q", e.Param, e.Value)
}

// defaultNode is the system price hub used when no node list is given.
const defaultNode = "DGAP_CISO-APND"

// Catalog binds the cache pool to the remote sources. A nil warehouse or
// OASIS client leaves the corresponding datasets cache-only: loading
// them against an empty pool fails with a pool.ConfigError.
type Catalog struct {
	pool    *pool.Pool
	wh      *warehouse.Interface
	builder warehouse.Builder
	oasis   *oasis.Client
	log     zerolog.Logger
}

func NewCatalog(p *pool.Pool, wh *warehouse.Interface, b warehouse.Builder, oc *oasis.Client, log zerolog.Logger) *Catalog {
	return &Catalog{pool: p, wh: wh, builder: b, oasis: oc, log: log}
}

// dateRange renders a query's bounds the way the warehouse queries
// expect; an unset final date means today.
func dateRange(q pool.Query) (first, final string) {
	end := q.Final
	if end.IsZero() {
		end = time.Now()
	}
	return q.First.Format("2006-01-02"), end.Format("2006-01-02")
}

// sqlFetch binds a query builder to the warehouse, or leaves the dataset
// cache-only when no warehouse is configured.
func (c *Catalog) sqlFetch(build func(first, final string) warehouse.Query) pool.FetchFunc {
	if c.wh == nil {
		return nil
	}
	return func(q pool.Query) (*table.Table, error) {
		first, final := dateRange(q)
		return c.wh.ReadSQL(context.Background(), build(first, final))
	}
}

func (c *Catalog) oasisFetch(query string) pool.FetchFunc {
	if c.oasis == nil {
		return nil
	}
	return func(q pool.Query) (*table.Table, error) {
		return c.oasis.Pull(context.Background(), query, q.First, q.Final, oasis.PullOptions{})
	}
}

// Dataset descriptors. Descriptors are values built per call; the pool
// resolves them against its root.

func (c *Catalog) asPricesDataset(market string) pool.Dataset {
	return pool.Dataset{
		Name:    "as_prices_" + market,
		InDir:   "as_prices/" + market,
		OutFile: "as_prices_" + market + ".bin",
		Fetch: c.sqlFetch(func(first, final string) warehouse.Query {
			if market == "rt" {
				return c.builder.ASPricesRT(first, final, nil)
			}
			return c.builder.ASPricesDA(first, final, nil)
		}),
		Normalize: normalizeASPrices,
	}
}

func (c *Catalog) energyPricesDataset(market string, nodes []string) pool.Dataset {
	return pool.Dataset{
		Name:    "energy_prices_" + market,
		InDir:   "energy_prices/" + market,
		OutFile: "energy_prices_" + market + ".bin",
		Fetch: c.sqlFetch(func(first, final string) warehouse.Query {
			if market == "rt" {
				return c.builder.EnergyPricesRT(first, final, nodes, nil)
			}
			return c.builder.EnergyPricesDA(first, final, nodes, nil)
		}),
		Normalize: normalizeEnergyPrices,
	}
}

func (c *Catalog) nodalEnergyPricesDataset(market string, nodes []string) pool.Dataset {
	ds := c.energyPricesDataset(market, nodes)
	ds.Name = "energy_prices_nodal_" + market
	ds.InDir = "energy_prices/nodal/" + market
	ds.OutFile = "energy_prices_nodal_" + market + ".bin"
	return ds
}

func (c *Catalog) indexCapacityDataset() pool.Dataset {
	return pool.Dataset{
		Name:      "index_capacity",
		InDir:     "index_capacity",
		OutFile:   "index_capacity.bin",
		Fetch:     c.sqlFetch(func(first, final string) warehouse.Query { return c.builder.IndexCapacity(first, final, nil) }),
		Normalize: normalizeIndexCapacity,
	}
}

func (c *Catalog) indexPriceDataset() pool.Dataset {
	return pool.Dataset{
		Name:      "index_price",
		InDir:     "index_price",
		OutFile:   "index_price.bin",
		Fetch:     c.sqlFetch(func(first, final string) warehouse.Query { return c.builder.IndexPrice(first, final, nil) }),
		Normalize: normalizeIndexPrice,
	}
}

func (c *Catalog) indexRevenueDataset() pool.Dataset {
	return pool.Dataset{
		Name:      "index_revenue",
		InDir:     "index_revenue",
		OutFile:   "index_revenue.bin",
		Fetch:     c.sqlFetch(func(first, final string) warehouse.Query { return c.builder.IndexRevenue(first, final, nil) }),
		Normalize: normalizeIndexRevenue,
	}
}

func (c *Catalog) indexVolumeDataset() pool.Dataset {
	return pool.Dataset{
		Name:      "index_volume",
		InDir:     "index_volume",
		OutFile:   "index_volume.bin",
		Fetch:     c.sqlFetch(func(first, final string) warehouse.Query { return c.builder.IndexVolume(first, final, nil) }),
		Normalize: normalizeIndexVolume,
	}
}

func (c *Catalog) renewableGenerationDataset() pool.Dataset {
	return pool.Dataset{
		Name:      "generation_renewable",
		InDir:     "generation/renewable",
		OutFile:   "generation_renewable.bin",
		Fetch:     c.sqlFetch(func(first, final string) warehouse.Query { return c.builder.RenewableGeneration(first, final, nil) }),
		Normalize: normalizeRenewableGeneration,
	}
}

// fuelMixDataset is staged from API pulls rather than the warehouse, so
// it carries no fetch binding: populate the pool manually.
func (c *Catalog) fuelMixDataset() pool.Dataset {
	return pool.Dataset{
		Name:      "generation_all",
		InDir:     "generation/all",
		OutFile:   "generation_all.bin",
		Normalize: normalizeLocalIntervals,
	}
}

// loadDataset is likewise cache-only.
func (c *Catalog) loadDataset() pool.Dataset {
	return pool.Dataset{
		Name:      "load",
		InDir:     "load",
		OutFile:   "load.bin",
		Normalize: normalizeLocalIntervals,
	}
}

func (c *Catalog) masterListDataset() pool.Dataset {
	return pool.Dataset{
		Name:      "master_list",
		InDir:     "master_list",
		OutFile:   "master_list.bin",
		Fetch:     c.oasisFetch("master_list"),
		Normalize: normalizeMasterList,
	}
}

func (c *Catalog) resourceNodesDataset() pool.Dataset {
	return pool.Dataset{
		Name:      "resource_node",
		InDir:     "resource_node",
		OutFile:   "resource_node.bin",
		Fetch:     c.oasisFetch("resource_node"),
		Normalize: normalizeIdentity,
	}
}

// Fetch facade.

func validMarket(market string) error {
	if market != "da" && market != "rt" {
		return &ParamError{Param: "market", Value: market}
	}
	return nil
}

// ASPrices loads ancillary service prices for a market.
func (c *Catalog) ASPrices(market string, q pool.Query) (*table.Table, error) {
	if err := validMarket(market); err != nil {
		return nil, err
	}
	return c.pool.Load(c.asPricesDataset(market), q)
}

// EnergyPrices loads system-hub energy prices for a market.
func (c *Catalog) EnergyPrices(market string, q pool.Query) (*table.Table, error) {
	if err := validMarket(market); err != nil {
		return nil, err
	}
	return c.pool.Load(c.energyPricesDataset(market, []string{defaultNode}), q)
}

// NodalEnergyPrices loads energy prices at every node attached to a
// storage resource, per the asset database.
func (c *Catalog) NodalEnergyPrices(market string, q pool.Query) (*table.Table, error) {
	if err := validMarket(market); err != nil {
		return nil, err
	}
	nodes, err := c.storageNodes(q)
	if err != nil {
		return nil, err
	}
	return c.pool.Load(c.nodalEnergyPricesDataset(market, nodes), q)
}

// Generation loads generation data by kind ("all" or "renewable").
func (c *Catalog) Generation(kind string, q pool.Query) (*table.Table, error) {
	switch kind {
	case "all":
		return c.pool.Load(c.fuelMixDataset(), q)
	case "renewable":
		return c.pool.Load(c.renewableGenerationDataset(), q)
	default:
		return nil, &ParamError{Param: "generation kind", Value: kind}
	}
}

func (c *Catalog) IndexCapacity(q pool.Query) (*table.Table, error) {
	return c.pool.Load(c.indexCapacityDataset(), q)
}

func (c *Catalog) IndexPrice(q pool.Query) (*table.Table, error) {
	return c.pool.Load(c.indexPriceDataset(), q)
}

func (c *Catalog) IndexRevenue(q pool.Query) (*table.Table, error) {
	return c.pool.Load(c.indexRevenueDataset(), q)
}

func (c *Catalog) IndexVolume(q pool.Query) (*table.Table, error) {
	return c.pool.Load(c.indexVolumeDataset(), q)
}

func (c *Catalog) Load(q pool.Query) (*table.Table, error) {
	return c.pool.Load(c.loadDataset(), q)
}

func (c *Catalog) MasterList(q pool.Query) (*table.Table, error) {
	return c.pool.Load(c.masterListDataset(), q)
}

func (c *Catalog) ResourceNodes(q pool.Query) (*table.Table, error) {
	return c.pool.Load(c.resourceNodesDataset(), q)
}

// Index computes the fleet revenue index normalized by capacity. norm
// selects the capacity basis: "mw" or "mwh".
func (c *Catalog) Index(norm string, q pool.Query) (*table.Table, error) {
	if norm != "mw" && norm != "mwh" {
		return nil, &ParamError{Param: "norm", Value: norm}
	}
	revenue, err := c.IndexRevenue(q)
	if err != nil {
		return nil, err
	}
	capacity, err := c.IndexCapacity(q)
	if err != nil {
		return nil, err
	}
	return stats.RevenueIndex(revenue, capacity, norm+"_capacity", stats.DefaultAggOptions())
}

// AssetDatabase joins the master list with resource nodes, adding a
// NODE_ID column. Resources without a node mapping carry an empty node.
func (c *Catalog) AssetDatabase(q pool.Query) (*table.Table, error) {
	masters, err := c.MasterList(q)
	if err != nil {
		return nil, err
	}
	nodes, err := c.ResourceNodes(q)
	if err != nil {
		return nil, err
	}

	resourceIDs, err := nodes.StringCol("RESOURCE_ID")
	if err != nil {
		return nil, err
	}
	nodeIDs, err := nodes.StringCol("NODE_ID")
	if err != nil {
		return nil, err
	}
	byResource := make(map[string]string, len(resourceIDs))
	for i, rid := range resourceIDs {
		if _, dup := byResource[rid]; !dup {
			byResource[rid] = nodeIDs[i]
		}
	}

	out := masters.Clone()
	ids, err := out.StringCol("RESOURCE_ID")
	if err != nil {
		return nil, err
	}
	nodeCol := table.Column{Name: "NODE_ID", Kind: table.KindString, Strings: make([]string, len(ids))}
	for i, rid := range ids {
		nodeCol.Strings[i] = byResource[rid]
	}
	out.Cols = append(out.Cols, nodeCol)
	return out, nil
}

// storageNodes lists the distinct price nodes attached to storage
// resources.
func (c *Catalog) storageNodes(q pool.Query) ([]string, error) {
	assets, err := c.AssetDatabase(q)
	if err != nil {
		return nil, err
	}
	ids, err := assets.StringCol("NODE_ID")
	if err != nil {
		return nil, err
	}
	seen := map[string]struct{}{}
	nodes := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		nodes = append(nodes, id)
	}
	return nodes, nil
}

// Names lists every dataset the catalog can resolve, for discovery
// surfaces.
func (c *Catalog) Names() []string {
	return []string{
		"as_prices_da", "as_prices_rt",
		"energy_prices_da", "energy_prices_rt",
		"generation_all", "generation_renewable",
		"index_capacity", "index_price", "index_revenue", "index_volume",
		"load", "master_list", "resource_node",
	}
}

// ByName resolves a dataset descriptor from its logical name. Nodal
// price datasets are excluded: they need an asset-database pass first.
func (c *Catalog) ByName(name string) (pool.Dataset, error) {
	switch name {
	case "as_prices_da":
		return c.asPricesDataset("da"), nil
	case "as_prices_rt":
		return c.asPricesDataset("rt"), nil
	case "energy_prices_da":
		return c.energyPricesDataset("da", []string{defaultNode}), nil
	case "energy_prices_rt":
		return c.energyPricesDataset("rt", []string{defaultNode}), nil
	case "generation_all":
		return c.fuelMixDataset(), nil
	case "generation_renewable":
		return c.renewableGenerationDataset(), nil
	case "index_capacity":
		return c.indexCapacityDataset(), nil
	case "index_price":
		return c.indexPriceDataset(), nil
	case "index_revenue":
		return c.indexRevenueDataset(), nil
	case "index_volume":
		return c.indexVolumeDataset(), nil
	case "load":
		return c.loadDataset(), nil
	case "master_list":
		return c.masterListDataset(), nil
	case "resource_node":
		return c.resourceNodesDataset(), nil
	}
	return pool.Dataset{}, &ParamError{Param: "dataset", Value: name}
}

// LoadByName loads any catalog dataset through the pool.
func (c *Catalog) LoadByName(name string, q pool.Query) (*table.Table, error) {
	ds, err := c.ByName(name)
	if err != nil {
		return nil, err
	}
	return c.pool.Load(ds, q)
}
