package scrape

import (
	"context"
	"fmt"
	"sync"
)

// SourceAdapter fetches raw candidate rows from one external source site.
// One implementation exists per configured data source name; page-markup
// specifics stay inside the adapter.
type SourceAdapter interface {
	// Name returns the data source name the adapter is registered under
	Name() string
	// Fetch retrieves all raw rows from the given URL
	Fetch(ctx context.Context, sourceURL string) ([]RawRecord, error)
}

// AdapterRegistry holds the configured source adapters keyed by data source
// name. Lookups for unknown names fail rather than falling back.
type AdapterRegistry struct {
	mu       sync.RWMutex
	adapters map[string]SourceAdapter
}

// NewAdapterRegistry creates an empty adapter registry
func NewAdapterRegistry() *AdapterRegistry {
	return &AdapterRegistry{
		adapters: make(map[string]SourceAdapter),
	}
}

// Register adds a new source adapter to the registry
func (r *AdapterRegistry) Register(adapter SourceAdapter) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := adapter.Name()
	if _, exists := r.adapters[name]; exists {
		return fmt.Errorf("source adapter %s already registered", name)
	}

	r.adapters[name] = adapter
	return nil
}

// Get returns the adapter registered under the given data source name
func (r *AdapterRegistry) Get(name string) (SourceAdapter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	adapter, exists := r.adapters[name]
	if !exists {
		return nil, fmt.Errorf("no source adapter registered for %q", name)
	}
	return adapter, nil
}

// Names lists the registered data source names
func (r *AdapterRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.adapters))
	for name := range r.adapters {
		names = append(names, name)
	}
	return names
}
