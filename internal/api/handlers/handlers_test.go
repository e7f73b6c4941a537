package handlers

import (
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"caiso-ops/internal/datasets"
	"caiso-ops/internal/pool"
	"caiso-ops/internal/report"
	"caiso-ops/internal/table"
	"caiso-ops/internal/warehouse"
)

func testRouter(t *testing.T) (*gin.Engine, *pool.Pool, *datasets.Catalog) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	p := pool.New(t.TempDir(), zerolog.Nop())
	catalog := datasets.NewCatalog(p, nil, warehouse.Builder{}, nil, zerolog.Nop())
	h := &Handler{Catalog: catalog, Log: zerolog.Nop()}

	r := gin.New()
	r.GET("/api/v1/datasets", h.ListDatasets)
	r.GET("/api/v1/datasets/:name", h.GetDataset)
	return r, p, catalog
}

func do(r *gin.Engine, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	r.ServeHTTP(w, req)
	return w
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body.Error.Code
}

func TestListDatasets(t *testing.T) {
	r, _, catalog := testRouter(t)
	w := do(r, "/api/v1/datasets")
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Datasets []string `json:"datasets"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, catalog.Names(), body.Datasets)
}

func TestGetDatasetServesCachedRows(t *testing.T) {
	r, p, catalog := testRouter(t)

	ds, err := catalog.ByName("load")
	require.NoError(t, err)
	require.NoError(t, table.WriteArtifact(p.Target(ds), table.New(
		table.Column{Name: "timestamp", Kind: table.KindTime, Times: []time.Time{
			time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		}},
		table.Column{Name: "load", Kind: table.KindFloat, Floats: []float64{25000}},
	)))

	w := do(r, "/api/v1/datasets/load")
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Dataset   string           `json:"dataset"`
		Rows      []map[string]any `json:"rows"`
		RowCount  int              `json:"row_count"`
		Truncated bool             `json:"truncated"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "load", body.Dataset)
	assert.Equal(t, 1, body.RowCount)
	assert.False(t, body.Truncated)
	require.Len(t, body.Rows, 1)
	assert.Equal(t, 25000.0, body.Rows[0]["load"])
}

func TestGetDatasetUnknownName(t *testing.T) {
	r, _, _ := testRouter(t)
	w := do(r, "/api/v1/datasets/nope")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "BAD_PARAM", errorCode(t, w))
}

func TestGetDatasetWithoutSourceConflicts(t *testing.T) {
	r, _, _ := testRouter(t)
	w := do(r, "/api/v1/datasets/load")
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "NO_REMOTE_SOURCE", errorCode(t, w))
}

func TestGetDatasetBadDateParam(t *testing.T) {
	r, _, _ := testRouter(t)
	w := do(r, "/api/v1/datasets/load?first=01-01-2025")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "BAD_DATE", errorCode(t, w))
}

func TestGetDatasetWarehouseFailureIsBadGateway(t *testing.T) {
	gin.SetMode(gin.TestMode)

	// A reachable warehouse with no tables: fetches fail upstream.
	wh, err := warehouse.Open("sqlite", "file:handlers?mode=memory&cache=shared", zerolog.Nop())
	require.NoError(t, err)
	defer wh.Close()

	p := pool.New(t.TempDir(), zerolog.Nop())
	catalog := datasets.NewCatalog(p, wh, warehouse.Builder{}, nil, zerolog.Nop())
	h := &Handler{Catalog: catalog, Log: zerolog.Nop()}

	r := gin.New()
	r.GET("/api/v1/datasets/:name", h.GetDataset)

	w := do(r, "/api/v1/datasets/energy_prices_da?first=2025-01-01&final=2025-02-01")
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Equal(t, "UPSTREAM_ERROR", errorCode(t, w))
}

func TestDriverRowsAreJSONSafe(t *testing.T) {
	rows := driverRows([]report.Row{
		{Variable: "Average Negative Price", Units: "$/MWh", Ref: -3.6, Curr: math.NaN(), PctChange: math.Inf(1)},
	})

	raw, err := json.Marshal(rows)
	require.NoError(t, err, "NaN and Inf must not reach the JSON encoder")
	assert.Contains(t, string(raw), `"ref":-3.6`)
	assert.Contains(t, string(raw), `"curr":null`)
	assert.Contains(t, string(raw), `"pct_change":null`)
}

func TestNaNRendersAsNull(t *testing.T) {
	r, p, catalog := testRouter(t)

	ds, err := catalog.ByName("load")
	require.NoError(t, err)
	require.NoError(t, table.WriteArtifact(p.Target(ds), table.New(
		table.Column{Name: "timestamp", Kind: table.KindTime, Times: []time.Time{
			time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		}},
		table.Column{Name: "load", Kind: table.KindFloat, Floats: []float64{math.NaN()}},
	)))

	w := do(r, "/api/v1/datasets/load")
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Rows []map[string]any `json:"rows"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Rows, 1)
	assert.Nil(t, body.Rows[0]["load"])
}
