package pool

import (
	"archive/zip"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"caiso-ops/internal/table"
)

func testPool(t *testing.T) *Pool {
	t.Helper()
	return New(t.TempDir(), zerolog.Nop())
}

func fixedTable() *table.Table {
	return table.New(
		table.Column{Name: "timestamp", Kind: table.KindTime, Times: []time.Time{
			time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
			time.Date(2025, 1, 1, 1, 0, 0, 0, time.UTC),
		}},
		table.Column{Name: "lmp", Kind: table.KindFloat, Floats: []float64{-4, 12}},
	)
}

func countingFetch(calls *int, t *table.Table) FetchFunc {
	return func(Query) (*table.Table, error) {
		*calls++
		return t, nil
	}
}

func TestLoadFetchesOnceThenServesCache(t *testing.T) {
	p := testPool(t)
	calls := 0
	ds := Dataset{
		Name:    "energy_prices_da",
		InDir:   "prices/da",
		OutFile: "prices/da.bin",
		Fetch:   countingFetch(&calls, fixedTable()),
	}

	first, err := p.Load(ds, Query{First: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)

	second, err := p.Load(ds, Query{First: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)})
	require.NoError(t, err)
	assert.Equal(t, 1, calls, "cached load must not refetch")
	assert.True(t, first.Equal(second))
}

func TestLoadFetchMatchesManualStaging(t *testing.T) {
	src := fixedTable()

	fetched := testPool(t)
	calls := 0
	ds := Dataset{Name: "x", InDir: "x/raw", OutFile: "x/out.bin", Fetch: countingFetch(&calls, src)}
	viaFetch, err := fetched.Load(ds, Query{})
	require.NoError(t, err)

	staged := testPool(t)
	dsManual := Dataset{Name: "x", InDir: "x/raw", OutFile: "x/out.bin"}
	require.NoError(t, table.WriteArtifact(filepath.Join(staged.Source(dsManual), "data.bin"), src))
	viaStage, err := staged.Load(dsManual, Query{})
	require.NoError(t, err)

	assert.True(t, viaFetch.Equal(viaStage))
}

func TestLoadWithoutSourceIsConfigError(t *testing.T) {
	p := testPool(t)
	ds := Dataset{Name: "load", InDir: "load/raw", OutFile: "load/out.bin"}

	_, err := p.Load(ds, Query{})
	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "load", cfgErr.Dataset)
}

func TestLoadStagedCSVDirectory(t *testing.T) {
	p := testPool(t)
	ds := Dataset{Name: "gen", InDir: "gen/raw", OutFile: "gen/out.bin"}

	dir := p.Source(ds)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	// Lexical order: a.csv rows land before b.csv rows.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.csv"), []byte("v\n2\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.csv"), []byte("v\n1\n"), 0o644))
	// Hidden files are not staged data.
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".DS_Store"), []byte("junk"), 0o644))

	got, err := p.Load(ds, Query{})
	require.NoError(t, err)

	v, err := got.FloatCol("v")
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2}, v)
}

func TestLoadStagedZipArchive(t *testing.T) {
	p := testPool(t)
	ds := Dataset{Name: "zipped", InDir: "zipped/raw", OutFile: "zipped/out.bin"}

	dir := p.Source(ds)
	require.NoError(t, os.MkdirAll(dir, 0o755))

	f, err := os.Create(filepath.Join(dir, "batch.zip"))
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	w, err := zw.Create("rows.csv")
	require.NoError(t, err)
	_, err = w.Write([]byte("v\n7\n8\n"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())

	got, err := p.Load(ds, Query{})
	require.NoError(t, err)

	v, err := got.FloatCol("v")
	require.NoError(t, err)
	assert.Equal(t, []float64{7, 8}, v)
}

func TestLoadNormalizeFailureLeavesNoArtifact(t *testing.T) {
	p := testPool(t)
	calls := 0
	boom := errors.New("bad shape")
	ds := Dataset{
		Name:    "broken",
		InDir:   "broken/raw",
		OutFile: "broken/out.bin",
		Fetch:   countingFetch(&calls, fixedTable()),
		Normalize: func(*table.Table) (*table.Table, error) {
			return nil, boom
		},
	}

	_, err := p.Load(ds, Query{})
	require.ErrorIs(t, err, boom)

	_, statErr := os.Stat(p.Target(ds))
	assert.True(t, os.IsNotExist(statErr), "failed normalize must not promote an artifact")
}

func TestLoadDefaultNormalizeDropsDuplicates(t *testing.T) {
	p := testPool(t)
	dup := table.New(table.Column{Name: "v", Kind: table.KindFloat, Floats: []float64{1, 1, 2}})
	calls := 0
	ds := Dataset{Name: "dups", InDir: "dups/raw", OutFile: "dups/out.bin", Fetch: countingFetch(&calls, dup)}

	got, err := p.Load(ds, Query{})
	require.NoError(t, err)
	assert.Equal(t, 2, got.Len())
}
