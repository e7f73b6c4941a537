package table

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"path/filepath"
	"sort"
	"strconv"
	"time"
)

// FormatError reports a file that none of the supported tabular readers
// could decode.
type FormatError struct {
	Ext string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("unrecognized tabular file format: %q", e.Ext)
}

var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// ParseTime tries the supported timestamp layouts in order.
func ParseTime(s string) (time.Time, bool) {
	return parseTime(s)
}

func parseTime(s string) (time.Time, bool) {
	for _, layout := range timeLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}

// ReadCSV decodes a header-led CSV stream into a table. Column kinds are
// inferred from the first non-empty value of each column: timestamp
// layouts first, then float, else string. Unparseable or empty float
// cells become NaN.
func ReadCSV(r io.Reader) (*Table, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("read csv: empty input")
	}

	header := records[0]
	rows := records[1:]
	t := &Table{Cols: make([]Column, len(header))}

	for ci, name := range header {
		kind := inferKind(rows, ci)
		col := Column{Name: name, Kind: kind}
		for _, row := range rows {
			raw := ""
			if ci < len(row) {
				raw = row[ci]
			}
			switch kind {
			case KindTime:
				ts, ok := parseTime(raw)
				if !ok && raw != "" {
					return nil, fmt.Errorf("column %q: bad timestamp %q", name, raw)
				}
				col.Times = append(col.Times, ts)
			case KindFloat:
				v, err := strconv.ParseFloat(raw, 64)
				if err != nil {
					v = math.NaN()
				}
				col.Floats = append(col.Floats, v)
			default:
				col.Strings = append(col.Strings, raw)
			}
		}
		t.Cols[ci] = col
	}
	return t, nil
}

func inferKind(rows [][]string, ci int) Kind {
	for _, row := range rows {
		if ci >= len(row) || row[ci] == "" {
			continue
		}
		if _, ok := parseTime(row[ci]); ok {
			return KindTime
		}
		if _, err := strconv.ParseFloat(row[ci], 64); err == nil {
			return KindFloat
		}
		return KindString
	}
	return KindString
}

// ReadJSON decodes either a bare array of flat objects or an envelope
// object carrying the rows under a "data" key (the shape market-data
// APIs return). Columns are ordered alphabetically by key.
func ReadJSON(r io.Reader) (*Table, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	var rows []map[string]any
	if err := json.Unmarshal(raw, &rows); err != nil {
		var envelope struct {
			Data []map[string]any `json:"data"`
		}
		if err2 := json.Unmarshal(raw, &envelope); err2 != nil || envelope.Data == nil {
			return nil, fmt.Errorf("read json: %w", err)
		}
		rows = envelope.Data
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("read json: no rows")
	}

	keySet := map[string]struct{}{}
	for _, row := range rows {
		for k := range row {
			keySet[k] = struct{}{}
		}
	}
	keys := make([]string, 0, len(keySet))
	for k := range keySet {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	t := &Table{Cols: make([]Column, 0, len(keys))}
	for _, key := range keys {
		col := Column{Name: key, Kind: jsonKind(rows, key)}
		for _, row := range rows {
			v := row[key]
			switch col.Kind {
			case KindTime:
				s, _ := v.(string)
				ts, _ := parseTime(s)
				col.Times = append(col.Times, ts)
			case KindFloat:
				f, ok := v.(float64)
				if !ok {
					f = math.NaN()
				}
				col.Floats = append(col.Floats, f)
			default:
				col.Strings = append(col.Strings, jsonString(v))
			}
		}
		t.Cols = append(t.Cols, col)
	}
	return t, nil
}

func jsonKind(rows []map[string]any, key string) Kind {
	for _, row := range rows {
		switch v := row[key].(type) {
		case nil:
			continue
		case float64:
			return KindFloat
		case string:
			if _, ok := parseTime(v); ok {
				return KindTime
			}
			return KindString
		default:
			return KindString
		}
	}
	return KindString
}

func jsonString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	default:
		return fmt.Sprint(x)
	}
}

// ReadAuto decodes raw bytes by trying each supported format in turn:
// the msgpack columnar artifact, then JSON, then CSV. The file name is
// only used to report the extension on failure.
func ReadAuto(raw []byte, name string) (*Table, error) {
	if t, err := DecodeArtifact(raw); err == nil {
		return t, nil
	}
	if t, err := ReadJSON(bytes.NewReader(raw)); err == nil {
		return t, nil
	}
	if t, err := ReadCSV(bytes.NewReader(raw)); err == nil {
		return t, nil
	}
	return nil, &FormatError{Ext: filepath.Ext(name)}
}
