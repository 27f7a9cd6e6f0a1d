package schema

import (
	"context"
	"sync"

	"github.com/ontoforge/ontoforge-go/internal/apptype"
)

// Source loads a full schema snapshot for an ontology from storage.
type Source interface {
	ReadFullSchema(ctx context.Context, ontologyKey string) (*apptype.SchemaSnapshot, error)
}

// Cache holds one immutable schema snapshot per ontology, loaded lazily and
// replaced wholesale. The contract is eventual consistency: a stale snapshot
// is served until Invalidate is called for that ontology.
type Cache struct {
	mu        sync.RWMutex
	source    Source
	snapshots map[string]*apptype.SchemaSnapshot
}

// NewCache creates a cache backed by the given source.
func NewCache(source Source) *Cache {
	return &Cache{
		source:    source,
		snapshots: make(map[string]*apptype.SchemaSnapshot),
	}
}

// Snapshot returns the cached snapshot for an ontology, loading it on first
// use. Concurrent loaders of the same ontology are collapsed by
// double-checked locking.
func (c *Cache) Snapshot(ctx context.Context, ontologyKey string) (*apptype.SchemaSnapshot, error) {
	c.mu.RLock()
	snap, ok := c.snapshots[ontologyKey]
	c.mu.RUnlock()
	if ok {
		return snap, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if snap, ok = c.snapshots[ontologyKey]; ok {
		return snap, nil
	}
	snap, err := c.source.ReadFullSchema(ctx, ontologyKey)
	if err != nil {
		return nil, err
	}
	c.snapshots[ontologyKey] = snap
	return snap, nil
}

// Invalidate drops the cached snapshot for one ontology.
func (c *Cache) Invalidate(ontologyKey string) {
	c.mu.Lock()
	delete(c.snapshots, ontologyKey)
	c.mu.Unlock()
}

// Reset drops every cached snapshot.
func (c *Cache) Reset() {
	c.mu.Lock()
	c.snapshots = make(map[string]*apptype.SchemaSnapshot)
	c.mu.Unlock()
}
