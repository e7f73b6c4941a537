// Package pool implements the cache-backed dataset fetcher. A pool is a
// directory tree holding, per dataset, a staging area of raw files and a
// single normalized columnar artifact. Loads resolve against the artifact
// first, then the staging area, and only then the dataset's bound fetch
// function.
package pool

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"caiso-ops/internal/table"
)

// Query carries the parameters handed to a dataset's fetch function.
type Query struct {
	First   time.Time
	Final   time.Time
	Filters map[string]string
}

// FetchFunc pulls raw rows for a date range from a remote source.
type FetchFunc func(q Query) (*table.Table, error)

// NormalizeFunc is a dataset's one-time post-processing step, applied at
// cache-population time and never on cached reads.
type NormalizeFunc func(t *table.Table) (*table.Table, error)

// Dataset describes one cacheable dataset. Values are immutable once
// constructed; descriptors are cheap and built per call.
type Dataset struct {
	Name      string
	InDir     string
	OutFile   string
	Fetch     FetchFunc
	Normalize NormalizeFunc
}

// ConfigError reports a load against a dataset that has neither cached
// data nor a bound remote source.
type ConfigError struct {
	Dataset string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("dataset %q has no remote source; stage its raw files under the pool manually", e.Dataset)
}

// rawStageFile is the artifact name fetch results are staged under
// before normalization.
const rawStageFile = "data.bin"

// Pool is a cache root. Contents persist across process runs and are
// never automatically invalidated; delete the target artifact to force a
// refetch.
type Pool struct {
	root string
	log  zerolog.Logger
}

func New(root string, log zerolog.Logger) *Pool {
	return &Pool{root: root, log: log}
}

func (p *Pool) Root() string { return p.root }

// Source is the staging directory (or file) holding a dataset's raw data.
func (p *Pool) Source(ds Dataset) string { return filepath.Join(p.root, ds.InDir) }

// Target is the dataset's normalized artifact path.
func (p *Pool) Target(ds Dataset) string { return filepath.Join(p.root, ds.OutFile) }

// Load resolves a dataset: an existing target artifact is returned as-is,
// otherwise staged raw data is normalized and promoted, otherwise the
// bound fetch function is invoked and its result staged, normalized and
// promoted. Cached reads never re-validate query parameters; callers are
// responsible for keeping parameters consistent per target path.
//
// No locking is performed: concurrent callers racing on an empty cache
// may both fetch, and the last write wins. Writes are rename-atomic, so
// a torn artifact is never observed.
func (p *Pool) Load(ds Dataset, q Query) (*table.Table, error) {
	target := p.Target(ds)
	if _, err := os.Stat(target); err == nil {
		p.log.Debug().Str("dataset", ds.Name).Str("target", target).Msg("cache hit")
		return table.ReadArtifact(target)
	}

	raw, err := p.read(ds, q)
	if err != nil {
		return nil, err
	}

	normalized, err := p.normalize(ds, raw)
	if err != nil {
		return nil, err
	}
	if err := table.WriteArtifact(target, normalized); err != nil {
		return nil, fmt.Errorf("persist %s: %w", target, err)
	}
	p.log.Info().Str("dataset", ds.Name).Int("rows", normalized.Len()).Str("target", target).Msg("cached dataset")
	return normalized, nil
}

func (p *Pool) normalize(ds Dataset, raw *table.Table) (*table.Table, error) {
	if ds.Normalize == nil {
		out := raw.Clone()
		out.DropDuplicates()
		return out, nil
	}
	out, err := ds.Normalize(raw)
	if err != nil {
		return nil, fmt.Errorf("normalize %s: %w", ds.Name, err)
	}
	return out, nil
}

// read resolves the raw rows for a dataset, fetching and staging them if
// the source location is empty.
func (p *Pool) read(ds Dataset, q Query) (*table.Table, error) {
	source := p.Source(ds)

	info, err := os.Stat(source)
	switch {
	case err == nil && !info.IsDir():
		return p.readFile(source)
	case err == nil && info.IsDir():
		entries, err := usableEntries(source)
		if err != nil {
			return nil, err
		}
		if len(entries) > 0 {
			return p.readDir(source, entries)
		}
	}

	if ds.Fetch == nil {
		return nil, &ConfigError{Dataset: ds.Name}
	}

	p.log.Info().
		Str("dataset", ds.Name).
		Time("first", q.First).
		Time("final", q.Final).
		Msg("cache miss, fetching from remote source")

	fetched, err := ds.Fetch(q)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", ds.Name, err)
	}
	if err := table.WriteArtifact(filepath.Join(source, rawStageFile), fetched); err != nil {
		return nil, fmt.Errorf("stage %s: %w", ds.Name, err)
	}

	// Re-read through the staging path so a fetched dataset and a
	// manually staged one take the exact same route to the target.
	entries, err := usableEntries(source)
	if err != nil {
		return nil, err
	}
	return p.readDir(source, entries)
}

// usableEntries lists non-hidden regular files in lexical order.
// Finder droppings like .DS_Store do not count as staged data.
func usableEntries(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}

func (p *Pool) readDir(dir string, names []string) (*table.Table, error) {
	out := &table.Table{}
	for _, name := range names {
		path := filepath.Join(dir, name)
		var t *table.Table
		var err error
		if strings.EqualFold(filepath.Ext(name), ".zip") {
			t, err = p.readZip(path)
		} else {
			t, err = p.readFile(path)
		}
		if err != nil {
			return nil, err
		}
		if err := out.Append(t); err != nil {
			return nil, fmt.Errorf("concat %s: %w", path, err)
		}
	}
	return out, nil
}

func (p *Pool) readFile(path string) (*table.Table, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	t, err := table.ReadAuto(raw, path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return t, nil
}

// readZip concatenates every tabular member of a single-level archive,
// in archive order.
func (p *Pool) readZip(path string) (*table.Table, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer zr.Close()

	out := &table.Table{}
	for _, member := range zr.File {
		base := filepath.Base(member.Name)
		if member.FileInfo().IsDir() || strings.HasPrefix(base, ".") {
			continue
		}
		rc, err := member.Open()
		if err != nil {
			return nil, fmt.Errorf("open %s!%s: %w", path, member.Name, err)
		}
		raw, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("read %s!%s: %w", path, member.Name, err)
		}
		t, err := table.ReadAuto(raw, member.Name)
		if err != nil {
			return nil, fmt.Errorf("read %s!%s: %w", path, member.Name, err)
		}
		if err := out.Append(t); err != nil {
			return nil, fmt.Errorf("concat %s!%s: %w", path, member.Name, err)
		}
	}
	return out, nil
}
