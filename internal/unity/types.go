package unity

import (
	"errors"
	"fmt"
	"net/http"
)

// CatalogInfo is a catalog record as returned by the metadata service.
type CatalogInfo struct {
	Name    string `json:"name"`
	Comment string `json:"comment,omitempty"`
}

// SchemaInfo is a schema record.
type SchemaInfo struct {
	Name        string `json:"name"`
	CatalogName string `json:"catalog_name"`
}

// TableInfo is a table record. UpdatedAt is epoch milliseconds.
type TableInfo struct {
	Name             string            `json:"name"`
	CatalogName      string            `json:"catalog_name"`
	SchemaName       string            `json:"schema_name"`
	TableType        string            `json:"table_type"`
	DataSourceFormat string            `json:"data_source_format,omitempty"`
	UpdatedAt        int64             `json:"updated_at"`
	UpdatedBy        string            `json:"updated_by"`
	Properties       map[string]string `json:"properties,omitempty"`
}

type listCatalogsResponse struct {
	Catalogs []CatalogInfo `json:"catalogs"`
}

type listSchemasResponse struct {
	Schemas []SchemaInfo `json:"schemas"`
}

type listTablesResponse struct {
	Tables []TableInfo `json:"tables"`
}

// ErrNotFound matches an APIError carrying HTTP 404.
var ErrNotFound = errors.New("resource not found")

// APIError is a non-retryable (4xx) response from the metadata service.
type APIError struct {
	StatusCode int
	Path       string
	Body       string
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("GET %s: %d %s", e.Path, e.StatusCode, http.StatusText(e.StatusCode))
	if e.Body != "" {
		msg += ": " + e.Body
	}
	return msg
}

func (e *APIError) Is(target error) bool {
	return target == ErrNotFound && e.StatusCode == http.StatusNotFound
}
