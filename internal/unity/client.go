package unity

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/time/rate"
)

const (
	catalogsPath = "api/2.1/unity-catalog/catalogs"
	schemasPath  = "api/2.1/unity-catalog/schemas"
	tablesPath   = "api/2.1/unity-catalog/tables"

	DefaultMaxRetries = 3

	maxErrorBody = 512
)

// Client talks to the Unity Catalog REST API.
type Client struct {
	baseURL string
	token   string
	http    *retryablehttp.Client
	limiter *rate.Limiter
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the https://<host> base, e.g. for an httptest server.
func WithBaseURL(u string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(u, "/")
	}
}

// WithMaxRetries sets how many times a transient failure is retried.
func WithMaxRetries(n int) Option {
	return func(c *Client) {
		c.http.RetryMax = n
	}
}

// WithRetryWait bounds the exponential backoff between retries.
func WithRetryWait(min, max time.Duration) Option {
	return func(c *Client) {
		c.http.RetryWaitMin = min
		c.http.RetryWaitMax = max
	}
}

// WithRateLimit caps outgoing requests per second. rps <= 0 disables the limit.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithLogger routes retry diagnostics to logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.http.Logger = logger
		}
	}
}

// WithHTTPClient replaces the underlying *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http.HTTPClient = hc
	}
}

// New creates a client for host authenticating with a bearer token.
func New(host, token string, opts ...Option) *Client {
	rc := retryablehttp.NewClient()
	rc.RetryMax = DefaultMaxRetries
	rc.Backoff = retryablehttp.DefaultBackoff
	rc.CheckRetry = retryablehttp.DefaultRetryPolicy
	rc.Logger = nil

	c := &Client{
		baseURL: "https://" + strings.TrimRight(host, "/"),
		token:   token,
		http:    rc,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FetchPage performs one GET of resourcePath with the given filter params.
// A non-empty pageToken is sent as page_token. The returned token is empty
// once the service reports no further pages.
func (c *Client) FetchPage(ctx context.Context, resourcePath string, params url.Values, pageToken string) (json.RawMessage, string, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, "", fmt.Errorf("waiting for rate limiter: %w", err)
		}
	}

	q := url.Values{}
	for k, vs := range params {
		q[k] = append([]string(nil), vs...)
	}
	if pageToken != "" {
		q.Set("page_token", pageToken)
	}
	u := c.baseURL + "/" + strings.TrimLeft(resourcePath, "/")
	if len(q) > 0 {
		u += "?" + q.Encode()
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, "", fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("GET %s: %w", resourcePath, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("reading response from %s: %w", resourcePath, err)
	}

	if resp.StatusCode >= 400 {
		msg := strings.TrimSpace(string(body))
		if len(msg) > maxErrorBody {
			msg = msg[:maxErrorBody]
		}
		return nil, "", &APIError{StatusCode: resp.StatusCode, Path: resourcePath, Body: msg}
	}

	var page struct {
		NextPageToken string `json:"next_page_token"`
	}
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, "", fmt.Errorf("parsing response from %s: %w", resourcePath, err)
	}
	return body, page.NextPageToken, nil
}

// ListCatalogs returns every catalog visible to the token.
func (c *Client) ListCatalogs(ctx context.Context) ([]CatalogInfo, error) {
	return listAll(ctx, c, catalogsPath, nil, func(r *listCatalogsResponse) []CatalogInfo {
		return r.Catalogs
	})
}

// ListSchemas returns the schemas of a catalog.
func (c *Client) ListSchemas(ctx context.Context, catalog string) ([]SchemaInfo, error) {
	params := url.Values{"catalog_name": {catalog}}
	return listAll(ctx, c, schemasPath, params, func(r *listSchemasResponse) []SchemaInfo {
		return r.Schemas
	})
}

// ListTables returns the tables of catalog.schema.
func (c *Client) ListTables(ctx context.Context, catalog, schema string) ([]TableInfo, error) {
	params := url.Values{"catalog_name": {catalog}, "schema_name": {schema}}
	return listAll(ctx, c, tablesPath, params, func(r *listTablesResponse) []TableInfo {
		return r.Tables
	})
}

// listAll follows next_page_token until the service stops returning one.
func listAll[R any, T any](ctx context.Context, c *Client, path string, params url.Values, items func(*R) []T) ([]T, error) {
	var (
		out   []T
		token string
	)
	for {
		body, next, err := c.FetchPage(ctx, path, params, token)
		if err != nil {
			return nil, err
		}
		var page R
		if err := json.Unmarshal(body, &page); err != nil {
			return nil, fmt.Errorf("decoding %s page: %w", path, err)
		}
		out = append(out, items(&page)...)

		if next == "" {
			return out, nil
		}
		if next == token {
			return nil, fmt.Errorf("%s: service returned the same page token twice", path)
		}
		token = next
	}
}
