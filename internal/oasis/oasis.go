// Package oasis pulls public grid-operator data through the OASIS
// SingleZip endpoint: each request returns a zip archive of CSV files.
package oasis

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"caiso-ops/internal/table"
)

const defaultBaseURL = "https://oasis.caiso.com/oasisapi/SingleZip"

// querySpec maps a logical query name onto the OASIS queryname and its
// pinned API version.
type querySpec struct {
	Name    string
	Version string
}

var queries = map[string]querySpec{
	"resource_node": {Name: "ATL_RESOURCE", Version: "1"},
	"master_list":   {Name: "ATL_GEN_CAP_LST", Version: "4"},
}

// UnknownDatasetError reports a pull for a query name not in the
// catalog. Raised before any I/O.
type UnknownDatasetError struct {
	Query string
}

func (e *UnknownDatasetError) Error() string {
	return fmt.Sprintf("unrecognized OASIS query name: %q", e.Query)
}

// UpstreamError reports a transport, status or payload failure from the
// remote endpoint. It is surfaced as-is; no retry is attempted.
type UpstreamError struct {
	Status  int
	Message string
	Err     error
}

func (e *UpstreamError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("oasis: %s (status %d)", e.Message, e.Status)
	}
	return "oasis: " + e.Message
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// Client talks to an OASIS-compatible endpoint.
type Client struct {
	BaseURL string
	HTTP    *http.Client
	log     zerolog.Logger
}

// NewClient builds a client. An empty baseURL selects the public
// endpoint.
func NewClient(baseURL string, log zerolog.Logger) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		BaseURL: baseURL,
		HTTP:    &http.Client{Timeout: 60 * time.Second},
		log:     log,
	}
}

// PullOptions narrows a pull; zero values mean "ALL".
type PullOptions struct {
	ResourceID   string
	AggType      string
	ResourceType string
}

func (o PullOptions) orAll() PullOptions {
	if o.ResourceID == "" {
		o.ResourceID = "ALL"
	}
	if o.AggType == "" {
		o.AggType = "ALL"
	}
	if o.ResourceType == "" {
		o.ResourceType = "ALL"
	}
	return o
}

// Pull fetches one query for [first, final). A zero final date means one
// day after first.
func (c *Client) Pull(ctx context.Context, query string, first, final time.Time, opts PullOptions) (*table.Table, error) {
	endpoint, err := c.RequestURL(query, first, final, opts)
	if err != nil {
		return nil, err
	}

	c.log.Info().Str("query", query).Str("url", endpoint).Msg("oasis pull")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, &UpstreamError{Message: "build request", Err: err}
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, &UpstreamError{Message: "execute request", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &UpstreamError{
			Status:  resp.StatusCode,
			Message: fmt.Sprintf("query %q returned %s", query, resp.Status),
		}
	}

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &UpstreamError{Message: "read response body", Err: err}
	}
	return decodeArchive(payload)
}

// RequestURL renders the SingleZip URL for a query. Unknown query names
// fail here, before any network traffic.
func (c *Client) RequestURL(query string, first, final time.Time, opts PullOptions) (string, error) {
	spec, ok := queries[query]
	if !ok {
		return "", &UnknownDatasetError{Query: query}
	}
	if final.IsZero() {
		final = first.AddDate(0, 0, 1)
	}
	opts = opts.orAll()

	params := url.Values{}
	params.Set("resultformat", "6")
	params.Set("queryname", spec.Name)
	params.Set("version", spec.Version)
	params.Set("startdatetime", oasisStamp(first))
	params.Set("enddatetime", oasisStamp(final))
	params.Set("resource_id", opts.ResourceID)
	params.Set("agge_type", opts.AggType)
	params.Set("resource_type", opts.ResourceType)
	return c.BaseURL + "?" + params.Encode(), nil
}

// oasisStamp formats a date the way the endpoint expects: the calendar
// day anchored at 07:00 UTC.
func oasisStamp(t time.Time) string {
	return t.Format("20060102") + "T07:00-0000"
}

// decodeArchive concatenates the CSV members of a response archive, in
// name order.
func decodeArchive(payload []byte) (*table.Table, error) {
	zr, err := zip.NewReader(bytes.NewReader(payload), int64(len(payload)))
	if err != nil {
		return nil, &UpstreamError{Message: "malformed response archive", Err: err}
	}

	members := make([]*zip.File, 0, len(zr.File))
	for _, f := range zr.File {
		if strings.HasSuffix(strings.ToLower(f.Name), ".csv") {
			members = append(members, f)
		}
	}
	if len(members) == 0 {
		return nil, &UpstreamError{Message: "response archive holds no csv data"}
	}
	sort.Slice(members, func(i, j int) bool { return members[i].Name < members[j].Name })

	out := &table.Table{}
	for _, member := range members {
		rc, err := member.Open()
		if err != nil {
			return nil, &UpstreamError{Message: "open archive member " + member.Name, Err: err}
		}
		t, err := table.ReadCSV(rc)
		rc.Close()
		if err != nil {
			return nil, &UpstreamError{Message: "decode archive member " + member.Name, Err: err}
		}
		if err := out.Append(t); err != nil {
			return nil, &UpstreamError{Message: "concat archive member " + member.Name, Err: err}
		}
	}
	return out, nil
}
