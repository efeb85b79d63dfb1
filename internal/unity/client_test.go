package unity

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, h http.HandlerFunc, opts ...Option) *Client {
	t.Helper()
	server := httptest.NewServer(h)
	t.Cleanup(server.Close)
	opts = append([]Option{WithBaseURL(server.URL), WithRetryWait(time.Millisecond, 5*time.Millisecond)}, opts...)
	return New("unused.example.com", "test-token", opts...)
}

func TestListSchemasFollowsPageToken(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, "/"+schemasPath, r.URL.Path)
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		assert.Equal(t, "prod", r.URL.Query().Get("catalog_name"))

		switch r.URL.Query().Get("page_token") {
		case "":
			w.Write([]byte(`{"schemas":[{"name":"sales","catalog_name":"prod"}],"next_page_token":"p2"}`))
		case "p2":
			w.Write([]byte(`{"schemas":[{"name":"hr","catalog_name":"prod"}]}`))
		default:
			t.Errorf("unexpected page token %q", r.URL.Query().Get("page_token"))
		}
	})

	schemas, err := c.ListSchemas(context.Background(), "prod")
	require.NoError(t, err)
	require.Len(t, schemas, 2)
	assert.Equal(t, "sales", schemas[0].Name)
	assert.Equal(t, "hr", schemas[1].Name)
	assert.Equal(t, int32(2), calls.Load())
}

func TestEmptyPageTokenEndsPagination(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"catalogs":[{"name":"prod"},{"name":"dev"}],"next_page_token":""}`))
	})

	catalogs, err := c.ListCatalogs(context.Background())
	require.NoError(t, err)
	assert.Len(t, catalogs, 2)
}

func TestListTablesDecodesRecords(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "prod", q.Get("catalog_name"))
		assert.Equal(t, "sales", q.Get("schema_name"))
		w.Write([]byte(`{"tables":[{
			"name":"orders","catalog_name":"prod","schema_name":"sales",
			"table_type":"MANAGED","data_source_format":"DELTA",
			"updated_at":1700000000000,"updated_by":"etl","properties":{"k":"v"}
		},{
			"name":"v_orders","catalog_name":"prod","schema_name":"sales",
			"table_type":"VIEW","updated_at":1700000000001,"updated_by":"etl"
		}]}`))
	})

	tables, err := c.ListTables(context.Background(), "prod", "sales")
	require.NoError(t, err)
	require.Len(t, tables, 2)
	assert.Equal(t, "DELTA", tables[0].DataSourceFormat)
	assert.Equal(t, int64(1700000000000), tables[0].UpdatedAt)
	assert.Equal(t, "v", tables[0].Properties["k"])
	assert.Empty(t, tables[1].DataSourceFormat)
}

func TestMissingTablesArrayIsEmpty(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	})

	tables, err := c.ListTables(context.Background(), "prod", "empty")
	require.NoError(t, err)
	assert.Empty(t, tables)
}

func TestServerErrorIsRetried(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, "busy", http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"catalogs":[{"name":"prod"}]}`))
	})

	catalogs, err := c.ListCatalogs(context.Background())
	require.NoError(t, err)
	assert.Len(t, catalogs, 1)
	assert.Equal(t, int32(3), calls.Load())
}

func TestRetriesExhausted(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "boom", http.StatusInternalServerError)
	})

	_, err := c.ListCatalogs(context.Background())
	require.Error(t, err)
	assert.Equal(t, int32(DefaultMaxRetries+1), calls.Load())
}

func TestClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, `{"error_code":"CATALOG_DOES_NOT_EXIST"}`, http.StatusNotFound)
	})

	_, err := c.ListSchemas(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	assert.Contains(t, apiErr.Error(), "CATALOG_DOES_NOT_EXIST")
	assert.Equal(t, int32(1), calls.Load())
}

func TestForbiddenIsNotNotFound(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "forbidden", http.StatusForbidden)
	})

	_, err := c.ListCatalogs(context.Background())
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrNotFound))
}

func TestRepeatedPageTokenFails(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"catalogs":[],"next_page_token":"same"}`))
	})

	_, err := c.ListCatalogs(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "same page token")
}

func TestFetchPageKeepsCallerParams(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "tok", r.URL.Query().Get("page_token"))
		w.Write([]byte(`{"next_page_token":"next"}`))
	}, WithRateLimit(1000, 1))

	params := url.Values{"catalog_name": {"prod"}}
	_, next, err := c.FetchPage(context.Background(), tablesPath, params, "tok")
	require.NoError(t, err)
	assert.Equal(t, "next", next)
	assert.Empty(t, params.Get("page_token"))
}
