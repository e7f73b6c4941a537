package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"caiso-ops/internal/config"
	"caiso-ops/internal/datasets"
	"caiso-ops/internal/oasis"
	"caiso-ops/internal/pool"
	"caiso-ops/internal/report"
	"caiso-ops/internal/warehouse"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	_ = godotenv.Load()

	switch os.Args[1] {
	case "fetch":
		cmdFetch(os.Args[2:])
	case "report":
		cmdReport(os.Args[2:])
	case "datasets":
		cmdDatasets(os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Println("usage:")
	fmt.Println("  cli fetch --config config.yaml --dataset energy_prices_da --first 2025-01-01 --final 2025-02-01")
	fmt.Println("  cli report --config config.yaml --out results/drivers.csv")
	fmt.Println("  cli datasets --config config.yaml")
	fmt.Println("")
	fmt.Println("notes:")
	fmt.Println("  - fetch pulls a dataset into the cache pool and prints its shape")
	fmt.Println("  - report writes the quarterly drivers table as CSV")
}

func cmdFetch(args []string) {
	fs := flag.NewFlagSet("fetch", flag.ExitOnError)
	cfgPath := fs.String("config", "config.yaml", "Path to YAML config")
	name := fs.String("dataset", "", "Dataset name (see `cli datasets`)")
	first := fs.String("first", "", "Window start, YYYY-MM-DD")
	final := fs.String("final", "", "Window end, YYYY-MM-DD (empty=now)")
	_ = fs.Parse(args)

	if *name == "" {
		fmt.Println("--dataset is required")
		os.Exit(2)
	}
	if *first == "" {
		fmt.Println("--first is required")
		os.Exit(2)
	}

	catalog, _ := buildCatalog(*cfgPath)

	q := pool.Query{First: parseDate(*first)}
	if *final != "" {
		q.Final = parseDate(*final)
	}

	t, err := catalog.LoadByName(*name, q)
	if err != nil {
		fatal(err)
	}
	fmt.Printf("%s: %d rows, columns %v\n", *name, t.Len(), t.Names())
}

func cmdReport(args []string) {
	fs := flag.NewFlagSet("report", flag.ExitOnError)
	cfgPath := fs.String("config", "config.yaml", "Path to YAML config")
	outPath := fs.String("out", "results/drivers.csv", "Output CSV path")
	currStart := fs.String("curr-start", "", "Override current period start, YYYY-MM-DD")
	currEnd := fs.String("curr-end", "", "Override current period end, YYYY-MM-DD")
	_ = fs.Parse(args)

	catalog, cfg := buildCatalog(*cfgPath)

	cs, ce, rs, re := cfg.ReportPeriods()
	if *currStart != "" {
		cs = parseDate(*currStart)
	}
	if *currEnd != "" {
		ce = parseDate(*currEnd)
	}

	dt := &report.DriverTable{
		CurrStart: cs,
		CurrEnd:   ce,
		RefStart:  rs,
		RefEnd:    re,
		Data:      report.NewData(catalog, pool.Query{First: rs, Final: ce}),
	}
	rows, err := dt.Create()
	if err != nil {
		fatal(err)
	}

	if err := os.MkdirAll(filepath.Dir(*outPath), 0o755); err != nil {
		fatal(err)
	}
	if err := report.WriteDriversCSV(*outPath, dt, rows); err != nil {
		fatal(err)
	}
	fmt.Printf("Wrote %d rows to %s\n", len(rows), *outPath)
}

func cmdDatasets(args []string) {
	fs := flag.NewFlagSet("datasets", flag.ExitOnError)
	cfgPath := fs.String("config", "config.yaml", "Path to YAML config")
	_ = fs.Parse(args)

	catalog, _ := buildCatalog(*cfgPath)
	for _, name := range catalog.Names() {
		fmt.Println(name)
	}
}

func buildCatalog(cfgPath string) (*datasets.Catalog, *config.Config) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		fatal(err)
	}

	log := zerolog.New(os.Stderr).Level(zerolog.WarnLevel).With().Timestamp().Logger()

	p := pool.New(cfg.PoolRoot, log)

	var wh *warehouse.Interface
	if cfg.Warehouse.DSN != "" {
		wh, err = warehouse.Open(cfg.Warehouse.Driver, cfg.Warehouse.DSN, log)
		if err != nil {
			fatal(err)
		}
	}

	oc := oasis.NewClient(cfg.Oasis.BaseURL, log)
	return datasets.NewCatalog(p, wh, warehouse.Builder{Schema: cfg.Warehouse.Schema}, oc, log), cfg
}

func parseDate(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		fatal(err)
	}
	return t
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, "error:", err)
	os.Exit(1)
}
