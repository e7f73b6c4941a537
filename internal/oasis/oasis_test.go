package oasis

import (
	"archive/zip"
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClient(baseURL string) *Client {
	return NewClient(baseURL, zerolog.Nop())
}

func TestRequestURL(t *testing.T) {
	c := testClient("https://example.test/SingleZip")
	first := time.Date(2025, 1, 5, 0, 0, 0, 0, time.UTC)
	final := time.Date(2025, 1, 8, 0, 0, 0, 0, time.UTC)

	endpoint, err := c.RequestURL("resource_node", first, final, PullOptions{})
	require.NoError(t, err)

	u, err := url.Parse(endpoint)
	require.NoError(t, err)
	params := u.Query()
	assert.Equal(t, "6", params.Get("resultformat"))
	assert.Equal(t, "ATL_RESOURCE", params.Get("queryname"))
	assert.Equal(t, "1", params.Get("version"))
	assert.Equal(t, "20250105T07:00-0000", params.Get("startdatetime"))
	assert.Equal(t, "20250108T07:00-0000", params.Get("enddatetime"))
	assert.Equal(t, "ALL", params.Get("resource_id"))
	assert.Equal(t, "ALL", params.Get("agge_type"))
	assert.Equal(t, "ALL", params.Get("resource_type"))
}

func TestRequestURLZeroFinalIsOneDay(t *testing.T) {
	c := testClient("https://example.test/SingleZip")
	first := time.Date(2025, 1, 5, 0, 0, 0, 0, time.UTC)

	endpoint, err := c.RequestURL("master_list", first, time.Time{}, PullOptions{ResourceID: "RES_1"})
	require.NoError(t, err)

	u, err := url.Parse(endpoint)
	require.NoError(t, err)
	params := u.Query()
	assert.Equal(t, "ATL_GEN_CAP_LST", params.Get("queryname"))
	assert.Equal(t, "4", params.Get("version"))
	assert.Equal(t, "20250106T07:00-0000", params.Get("enddatetime"))
	assert.Equal(t, "RES_1", params.Get("resource_id"))
}

func TestRequestURLUnknownQuery(t *testing.T) {
	c := testClient("https://example.test/SingleZip")

	_, err := c.RequestURL("load_forecast", time.Now(), time.Time{}, PullOptions{})
	var unknownErr *UnknownDatasetError
	require.ErrorAs(t, err, &unknownErr)
	assert.Equal(t, "load_forecast", unknownErr.Query)
}

func zipOfCSVs(t *testing.T, members map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, body := range members {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestPullDecodesArchive(t *testing.T) {
	payload := zipOfCSVs(t, map[string]string{
		"b_resource.csv": "RESOURCE_ID,MW\nRES_2,20\n",
		"a_resource.csv": "RESOURCE_ID,MW\nRES_1,10\n",
		"readme.txt":     "not data",
	})

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "ATL_RESOURCE", r.URL.Query().Get("queryname"))
		w.Write(payload)
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	got, err := c.Pull(context.Background(), "resource_node",
		time.Date(2025, 1, 5, 0, 0, 0, 0, time.UTC), time.Time{}, PullOptions{})
	require.NoError(t, err)

	// Members concatenate in name order.
	ids, err := got.StringCol("RESOURCE_ID")
	require.NoError(t, err)
	assert.Equal(t, []string{"RES_1", "RES_2"}, ids)
}

func TestPullUpstreamStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	_, err := c.Pull(context.Background(), "resource_node", time.Now(), time.Time{}, PullOptions{})
	var upstreamErr *UpstreamError
	require.ErrorAs(t, err, &upstreamErr)
	assert.Equal(t, http.StatusTooManyRequests, upstreamErr.Status)
}

func TestPullEmptyArchive(t *testing.T) {
	payload := zipOfCSVs(t, map[string]string{"notes.txt": "no csv here"})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(payload)
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	_, err := c.Pull(context.Background(), "resource_node", time.Now(), time.Time{}, PullOptions{})
	var upstreamErr *UpstreamError
	assert.ErrorAs(t, err, &upstreamErr)
}
