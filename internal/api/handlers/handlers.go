// Package handlers exposes the cached datasets and the drivers report
// over HTTP.
package handlers

import (
	"errors"
	"math"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"caiso-ops/internal/datasets"
	"caiso-ops/internal/oasis"
	"caiso-ops/internal/pool"
	"caiso-ops/internal/report"
	"caiso-ops/internal/table"
	"caiso-ops/internal/warehouse"
)

// maxRows caps dataset responses; full artifacts belong on disk, not in
// an HTTP body.
const maxRows = 10_000

type Handler struct {
	Catalog *datasets.Catalog
	Log     zerolog.Logger

	CurrStart, CurrEnd time.Time
	RefStart, RefEnd   time.Time
}

// ListDatasets handles GET /api/v1/datasets.
func (h *Handler) ListDatasets(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"datasets": h.Catalog.Names()})
}

// GetDataset handles GET /api/v1/datasets/:name. Query params first and
// final (YYYY-MM-DD) bound the fetch when the dataset is not cached yet.
func (h *Handler) GetDataset(c *gin.Context) {
	name := c.Param("name")

	q, err := queryFromParams(c)
	if err != nil {
		writeError(c, http.StatusBadRequest, "BAD_DATE", err.Error())
		return
	}

	t, err := h.Catalog.LoadByName(name, q)
	if err != nil {
		h.writeLoadError(c, err)
		return
	}

	rows := t.Len()
	truncated := false
	if rows > maxRows {
		rows = maxRows
		truncated = true
	}
	c.JSON(http.StatusOK, gin.H{
		"dataset":   name,
		"rows":      tableRows(t, rows),
		"row_count": t.Len(),
		"truncated": truncated,
	})
}

// GetDrivers handles GET /api/v1/report/drivers.
func (h *Handler) GetDrivers(c *gin.Context) {
	dt := &report.DriverTable{
		CurrStart: h.CurrStart,
		CurrEnd:   h.CurrEnd,
		RefStart:  h.RefStart,
		RefEnd:    h.RefEnd,
		Data:      report.NewData(h.Catalog, pool.Query{First: h.RefStart, Final: h.CurrEnd}),
	}
	rows, err := dt.Create()
	if err != nil {
		h.writeLoadError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"ref_period":  gin.H{"start": h.RefStart, "end": h.RefEnd},
		"curr_period": gin.H{"start": h.CurrStart, "end": h.CurrEnd},
		"rows":        driverRows(rows),
	})
}

// driverRows renders report rows with JSON-safe numbers. Report values
// can legitimately be NaN (no negative-price samples in a period, zero
// reference value); encoding/json rejects NaN and Inf, so they map to
// null like dataset cells do.
func driverRows(rows []report.Row) []map[string]any {
	out := make([]map[string]any, len(rows))
	for i, r := range rows {
		out[i] = map[string]any{
			"variable":   r.Variable,
			"units":      r.Units,
			"ref":        jsonNumber(r.Ref),
			"curr":       jsonNumber(r.Curr),
			"pct_change": jsonNumber(r.PctChange),
		}
	}
	return out
}

func jsonNumber(v float64) any {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return v
}

func (h *Handler) writeLoadError(c *gin.Context, err error) {
	var paramErr *datasets.ParamError
	var cfgErr *pool.ConfigError
	var schemaErr *table.SchemaError
	var unknownErr *oasis.UnknownDatasetError
	var upstreamErr *oasis.UpstreamError
	var whErr *warehouse.UpstreamError

	switch {
	case errors.As(err, &paramErr):
		writeError(c, http.StatusBadRequest, "BAD_PARAM", err.Error())
	case errors.As(err, &unknownErr):
		writeError(c, http.StatusNotFound, "UNKNOWN_DATASET", err.Error())
	case errors.As(err, &cfgErr):
		writeError(c, http.StatusConflict, "NO_REMOTE_SOURCE", err.Error())
	case errors.As(err, &schemaErr):
		writeError(c, http.StatusUnprocessableEntity, "SCHEMA_ERROR", err.Error())
	case errors.As(err, &upstreamErr), errors.As(err, &whErr):
		writeError(c, http.StatusBadGateway, "UPSTREAM_ERROR", err.Error())
	default:
		h.Log.Error().Err(err).Msg("load failed")
		writeError(c, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
	}
}

func writeError(c *gin.Context, status int, code, message string) {
	c.JSON(status, gin.H{
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	})
}

func queryFromParams(c *gin.Context) (pool.Query, error) {
	q := pool.Query{}
	if first := c.Query("first"); first != "" {
		t, err := time.Parse("2006-01-02", first)
		if err != nil {
			return q, err
		}
		q.First = t
	}
	if final := c.Query("final"); final != "" {
		t, err := time.Parse("2006-01-02", final)
		if err != nil {
			return q, err
		}
		q.Final = t
	}
	return q, nil
}

// tableRows renders the first n rows as JSON objects. NaN has no JSON
// representation, so it maps to null.
func tableRows(t *table.Table, n int) []map[string]any {
	rows := make([]map[string]any, n)
	for i := 0; i < n; i++ {
		row := make(map[string]any, len(t.Cols))
		for ci := range t.Cols {
			col := &t.Cols[ci]
			switch col.Kind {
			case table.KindTime:
				row[col.Name] = col.Times[i]
			case table.KindFloat:
				if math.IsNaN(col.Floats[i]) {
					row[col.Name] = nil
				} else {
					row[col.Name] = col.Floats[i]
				}
			default:
				row[col.Name] = col.Strings[i]
			}
		}
		rows[i] = row
	}
	return rows
}
