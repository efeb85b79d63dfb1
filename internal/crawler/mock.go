package crawler

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ucsync/ucsync/internal/unity"
)

// MockLister is an in-memory Lister for tests. Errs is keyed by "catalogs",
// "<catalog>" or "<catalog>.<schema>"; Tables by "<catalog>.<schema>".
type MockLister struct {
	Catalogs []unity.CatalogInfo
	Schemas  map[string][]unity.SchemaInfo
	Tables   map[string][]unity.TableInfo
	Errs     map[string]error
	Delay    time.Duration

	mu          sync.Mutex
	calls       []string
	inFlight    atomic.Int32
	maxInFlight atomic.Int32
}

func (m *MockLister) ListCatalogs(ctx context.Context) ([]unity.CatalogInfo, error) {
	if err := m.enter(ctx, "catalogs"); err != nil {
		return nil, err
	}
	defer m.inFlight.Add(-1)
	return m.Catalogs, nil
}

func (m *MockLister) ListSchemas(ctx context.Context, catalog string) ([]unity.SchemaInfo, error) {
	if err := m.enter(ctx, catalog); err != nil {
		return nil, err
	}
	defer m.inFlight.Add(-1)
	s, ok := m.Schemas[catalog]
	if !ok {
		return nil, &unity.APIError{StatusCode: 404, Path: "schemas?catalog_name=" + catalog}
	}
	return s, nil
}

func (m *MockLister) ListTables(ctx context.Context, catalog, schema string) ([]unity.TableInfo, error) {
	key := catalog + "." + schema
	if err := m.enter(ctx, key); err != nil {
		return nil, err
	}
	defer m.inFlight.Add(-1)
	return m.Tables[key], nil
}

// Calls returns the keys of every request made so far.
func (m *MockLister) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

// MaxInFlight returns the highest number of concurrent requests observed.
func (m *MockLister) MaxInFlight() int {
	return int(m.maxInFlight.Load())
}

func (m *MockLister) enter(ctx context.Context, key string) error {
	m.mu.Lock()
	m.calls = append(m.calls, key)
	m.mu.Unlock()

	n := m.inFlight.Add(1)
	for {
		cur := m.maxInFlight.Load()
		if n <= cur || m.maxInFlight.CompareAndSwap(cur, n) {
			break
		}
	}
	if m.Delay > 0 {
		select {
		case <-time.After(m.Delay):
		case <-ctx.Done():
			m.inFlight.Add(-1)
			return ctx.Err()
		}
	}
	if err, ok := m.Errs[key]; ok {
		m.inFlight.Add(-1)
		return fmt.Errorf("mock %s: %w", key, err)
	}
	return nil
}
