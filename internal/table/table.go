package table

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Kind identifies the element type of a column.
type Kind int

const (
	KindTime Kind = iota
	KindFloat
	KindString
)

func (k Kind) String() string {
	switch k {
	case KindTime:
		return "time"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	}
	return "unknown"
}

// SchemaError reports a required column missing from a table.
type SchemaError struct {
	Column string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("missing required column %q", e.Column)
}

// Column is a typed, named vector. Exactly one of the value slices is
// populated, matching Kind.
type Column struct {
	Name    string      `msgpack:"name"`
	Kind    Kind        `msgpack:"kind"`
	Times   []time.Time `msgpack:"times,omitempty"`
	Floats  []float64   `msgpack:"floats,omitempty"`
	Strings []string    `msgpack:"strings,omitempty"`
}

func (c *Column) len() int {
	switch c.Kind {
	case KindTime:
		return len(c.Times)
	case KindFloat:
		return len(c.Floats)
	default:
		return len(c.Strings)
	}
}

// cell renders row i as a string; used for duplicate detection.
func (c *Column) cell(i int) string {
	switch c.Kind {
	case KindTime:
		return c.Times[i].Format(time.RFC3339Nano)
	case KindFloat:
		if math.IsNaN(c.Floats[i]) {
			return "NaN"
		}
		return strconv.FormatFloat(c.Floats[i], 'g', -1, 64)
	default:
		return c.Strings[i]
	}
}

// Table is a column-oriented tabular value. Columns keep their declared
// order; all columns have equal length.
type Table struct {
	Cols []Column `msgpack:"cols"`
}

// New returns an empty table with the given columns.
func New(cols ...Column) *Table {
	return &Table{Cols: cols}
}

// Len returns the number of rows.
func (t *Table) Len() int {
	if len(t.Cols) == 0 {
		return 0
	}
	return t.Cols[0].len()
}

// Names returns the column names in declared order.
func (t *Table) Names() []string {
	out := make([]string, len(t.Cols))
	for i := range t.Cols {
		out[i] = t.Cols[i].Name
	}
	return out
}

// Col returns the named column, or false if absent.
func (t *Table) Col(name string) (*Column, bool) {
	for i := range t.Cols {
		if t.Cols[i].Name == name {
			return &t.Cols[i], true
		}
	}
	return nil, false
}

// HasCol reports whether the named column exists.
func (t *Table) HasCol(name string) bool {
	_, ok := t.Col(name)
	return ok
}

// TimeCol returns the named column's time values, failing with a
// SchemaError when the column is absent or not time-typed.
func (t *Table) TimeCol(name string) ([]time.Time, error) {
	c, ok := t.Col(name)
	if !ok || c.Kind != KindTime {
		return nil, &SchemaError{Column: name}
	}
	return c.Times, nil
}

// FloatCol returns the named column's float values, failing with a
// SchemaError when the column is absent or not float-typed.
func (t *Table) FloatCol(name string) ([]float64, error) {
	c, ok := t.Col(name)
	if !ok || c.Kind != KindFloat {
		return nil, &SchemaError{Column: name}
	}
	return c.Floats, nil
}

// StringCol returns the named column's string values, failing with a
// SchemaError when the column is absent or not string-typed.
func (t *Table) StringCol(name string) ([]string, error) {
	c, ok := t.Col(name)
	if !ok || c.Kind != KindString {
		return nil, &SchemaError{Column: name}
	}
	return c.Strings, nil
}

// Drop removes the named columns. Missing columns are a SchemaError.
func (t *Table) Drop(names ...string) error {
	for _, name := range names {
		if !t.HasCol(name) {
			return &SchemaError{Column: name}
		}
		kept := t.Cols[:0]
		for _, c := range t.Cols {
			if c.Name != name {
				kept = append(kept, c)
			}
		}
		t.Cols = kept
	}
	return nil
}

// Rename changes a column's name in place.
func (t *Table) Rename(old, new string) error {
	c, ok := t.Col(old)
	if !ok {
		return &SchemaError{Column: old}
	}
	c.Name = new
	return nil
}

// Select returns a new table holding only the named columns, in the
// requested order. Column data is shared, not copied.
func (t *Table) Select(names ...string) (*Table, error) {
	out := &Table{Cols: make([]Column, 0, len(names))}
	for _, name := range names {
		c, ok := t.Col(name)
		if !ok {
			return nil, &SchemaError{Column: name}
		}
		out.Cols = append(out.Cols, *c)
	}
	return out, nil
}

// Append concatenates rows of other onto t. Schemas must match by name
// and kind in order.
func (t *Table) Append(other *Table) error {
	if len(t.Cols) == 0 {
		t.Cols = append(t.Cols, other.Cols...)
		return nil
	}
	if len(t.Cols) != len(other.Cols) {
		return fmt.Errorf("column count mismatch: %d vs %d", len(t.Cols), len(other.Cols))
	}
	for i := range t.Cols {
		oc := &other.Cols[i]
		c := &t.Cols[i]
		if c.Name != oc.Name || c.Kind != oc.Kind {
			return fmt.Errorf("column %d mismatch: %s/%s vs %s/%s",
				i, c.Name, c.Kind, oc.Name, oc.Kind)
		}
		c.Times = append(c.Times, oc.Times...)
		c.Floats = append(c.Floats, oc.Floats...)
		c.Strings = append(c.Strings, oc.Strings...)
	}
	return nil
}

// SortBy stably sorts rows by the given key columns, primary first.
func (t *Table) SortBy(keys ...string) error {
	cols := make([]*Column, 0, len(keys))
	for _, k := range keys {
		c, ok := t.Col(k)
		if !ok {
			return &SchemaError{Column: k}
		}
		cols = append(cols, c)
	}

	n := t.Len()
	perm := make([]int, n)
	for i := range perm {
		perm[i] = i
	}
	sort.SliceStable(perm, func(a, b int) bool {
		i, j := perm[a], perm[b]
		for _, c := range cols {
			switch c.Kind {
			case KindTime:
				if c.Times[i].Before(c.Times[j]) {
					return true
				}
				if c.Times[j].Before(c.Times[i]) {
					return false
				}
			case KindFloat:
				if c.Floats[i] < c.Floats[j] {
					return true
				}
				if c.Floats[j] < c.Floats[i] {
					return false
				}
			default:
				if c.Strings[i] < c.Strings[j] {
					return true
				}
				if c.Strings[j] < c.Strings[i] {
					return false
				}
			}
		}
		return false
	})
	t.applyPerm(perm)
	return nil
}

func (t *Table) applyPerm(perm []int) {
	for ci := range t.Cols {
		c := &t.Cols[ci]
		switch c.Kind {
		case KindTime:
			next := make([]time.Time, len(perm))
			for i, p := range perm {
				next[i] = c.Times[p]
			}
			c.Times = next
		case KindFloat:
			next := make([]float64, len(perm))
			for i, p := range perm {
				next[i] = c.Floats[p]
			}
			c.Floats = next
		default:
			next := make([]string, len(perm))
			for i, p := range perm {
				next[i] = c.Strings[p]
			}
			c.Strings = next
		}
	}
}

// DropDuplicates removes exact-duplicate rows, keeping the first
// occurrence. Row order is otherwise preserved.
func (t *Table) DropDuplicates() {
	n := t.Len()
	seen := make(map[string]struct{}, n)
	keep := make([]int, 0, n)
	var sb strings.Builder
	for i := 0; i < n; i++ {
		sb.Reset()
		for ci := range t.Cols {
			sb.WriteString(t.Cols[ci].cell(i))
			sb.WriteByte('\x1f')
		}
		key := sb.String()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		keep = append(keep, i)
	}
	if len(keep) != n {
		t.applyPerm(keep)
	}
}

// Between returns the rows whose value in the named time column falls in
// [start, end]. Column data is copied.
func (t *Table) Between(col string, start, end time.Time) (*Table, error) {
	times, err := t.TimeCol(col)
	if err != nil {
		return nil, err
	}
	keep := make([]int, 0, len(times))
	for i, ts := range times {
		if !ts.Before(start) && !ts.After(end) {
			keep = append(keep, i)
		}
	}
	out := t.Clone()
	out.applyPerm(keep)
	return out, nil
}

// ConvertToWall rewrites a time column as wall-clock time in loc with the
// offset dropped (the result carries UTC so equality is stable across
// machines).
func (t *Table) ConvertToWall(col string, loc *time.Location) error {
	times, err := t.TimeCol(col)
	if err != nil {
		return err
	}
	for i, ts := range times {
		local := ts.In(loc)
		y, mo, d := local.Date()
		h, mi, s := local.Clock()
		times[i] = time.Date(y, mo, d, h, mi, s, local.Nanosecond(), time.UTC)
	}
	return nil
}

// Take returns a new table holding the given rows, in the order listed.
func (t *Table) Take(rows []int) *Table {
	out := t.Clone()
	out.applyPerm(rows)
	return out
}

// Clone returns a deep copy of the table.
func (t *Table) Clone() *Table {
	out := &Table{Cols: make([]Column, len(t.Cols))}
	for i, c := range t.Cols {
		nc := Column{Name: c.Name, Kind: c.Kind}
		nc.Times = append(nc.Times, c.Times...)
		nc.Floats = append(nc.Floats, c.Floats...)
		nc.Strings = append(nc.Strings, c.Strings...)
		out.Cols[i] = nc
	}
	return out
}

// Equal reports whether two tables have identical schemas and rows.
// NaN cells compare equal to NaN.
func (t *Table) Equal(other *Table) bool {
	if len(t.Cols) != len(other.Cols) || t.Len() != other.Len() {
		return false
	}
	for i := range t.Cols {
		a, b := &t.Cols[i], &other.Cols[i]
		if a.Name != b.Name || a.Kind != b.Kind {
			return false
		}
		for r := 0; r < t.Len(); r++ {
			if a.cell(r) != b.cell(r) {
				return false
			}
		}
	}
	return true
}
