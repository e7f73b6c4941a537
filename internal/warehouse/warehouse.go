// Package warehouse is the SQL remote-source adapter. Queries are
// rendered as plain text (see Builder and Expr) and executed through
// database/sql; the wired driver is the pure-Go sqlite build, but any
// database/sql driver serves.
package warehouse

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"caiso-ops/internal/table"
)

// UpstreamError reports a query or scan failure against the warehouse.
// It is surfaced as-is; no retry is attempted.
type UpstreamError struct {
	Op  string
	Err error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("warehouse: %s: %v", e.Op, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// Interface is an open warehouse connection.
type Interface struct {
	db  *sql.DB
	log zerolog.Logger
}

// Open connects to the warehouse. Credentials arrive inside the DSN and
// are supplied by configuration, never defaulted here.
func Open(driver, dsn string, log zerolog.Logger) (*Interface, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open warehouse: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping warehouse: %w", err)
	}
	return &Interface{db: db, log: log}, nil
}

func (w *Interface) Close() error { return w.db.Close() }

// ReadSQL executes a rendered query and scans the result set into a
// table. Column kinds are inferred from the first non-NULL value;
// integer and byte-string numerics widen to float.
func (w *Interface) ReadSQL(ctx context.Context, q Query) (*table.Table, error) {
	text := q.SQL()
	w.log.Debug().Str("query", text).Msg("warehouse read")

	rows, err := w.db.QueryContext(ctx, text)
	if err != nil {
		return nil, &UpstreamError{Op: "query", Err: err}
	}
	defer rows.Close()

	names, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var records [][]any
	for rows.Next() {
		cells := make([]any, len(names))
		ptrs := make([]any, len(names))
		for i := range cells {
			ptrs[i] = &cells[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, &UpstreamError{Op: "scan", Err: err}
		}
		records = append(records, cells)
	}
	if err := rows.Err(); err != nil {
		return nil, &UpstreamError{Op: "rows", Err: err}
	}

	t := &table.Table{Cols: make([]table.Column, len(names))}
	for ci, name := range names {
		t.Cols[ci] = buildColumn(name, records, ci)
	}
	return t, nil
}

func buildColumn(name string, records [][]any, ci int) table.Column {
	kind := table.KindString
	for _, rec := range records {
		k, decided := scanKind(rec[ci])
		if decided {
			kind = k
			break
		}
	}

	col := table.Column{Name: name, Kind: kind}
	for _, rec := range records {
		switch kind {
		case table.KindTime:
			col.Times = append(col.Times, scanTime(rec[ci]))
		case table.KindFloat:
			col.Floats = append(col.Floats, scanFloat(rec[ci]))
		default:
			col.Strings = append(col.Strings, scanString(rec[ci]))
		}
	}
	return col
}

func scanKind(v any) (table.Kind, bool) {
	switch x := v.(type) {
	case nil:
		return table.KindString, false
	case time.Time:
		return table.KindTime, true
	case float64, int64:
		return table.KindFloat, true
	case []byte:
		return textKind(string(x)), true
	case string:
		return textKind(x), true
	default:
		return table.KindString, true
	}
}

func textKind(s string) table.Kind {
	if _, ok := table.ParseTime(s); ok {
		return table.KindTime
	}
	if _, err := strconv.ParseFloat(s, 64); err == nil {
		return table.KindFloat
	}
	return table.KindString
}

func scanTime(v any) time.Time {
	switch x := v.(type) {
	case time.Time:
		return x
	case []byte:
		ts, _ := table.ParseTime(string(x))
		return ts
	case string:
		ts, _ := table.ParseTime(x)
		return ts
	default:
		return time.Time{}
	}
}

func scanFloat(v any) float64 {
	switch x := v.(type) {
	case float64:
		return x
	case int64:
		return float64(x)
	case []byte:
		f, err := strconv.ParseFloat(string(x), 64)
		if err != nil {
			return math.NaN()
		}
		return f
	case string:
		f, err := strconv.ParseFloat(x, 64)
		if err != nil {
			return math.NaN()
		}
		return f
	default:
		return math.NaN()
	}
}

func scanString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case []byte:
		return string(x)
	default:
		return fmt.Sprint(x)
	}
}
