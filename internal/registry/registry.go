package registry

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/bits-and-blooms/bloom/v3"
)

// Store is the authoritative membership check behind the bloom filter.
type Store interface {
	GameExists(ctx context.Context, tableID string) (bool, error)
	GameIDs(ctx context.Context) ([]string, error)
}

// Registry answers "have we already processed this table?" cheaply. A
// bloom filter front-ends the store: a negative answer is definitive, a
// positive one is re-checked against the store before a game is skipped.
type Registry struct {
	store Store

	mu     sync.Mutex
	filter *bloom.BloomFilter
}

// New builds a registry seeded with every table ID the store already
// holds.
func New(ctx context.Context, store Store) (*Registry, error) {
	r := &Registry{
		store:  store,
		filter: bloom.NewWithEstimates(500000, 0.001),
	}

	ids, err := store.GameIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to seed registry: %w", err)
	}
	for _, id := range ids {
		r.filter.AddString(id)
	}
	log.Printf("[Registry] Seeded with %d processed games", len(ids))
	return r, nil
}

// Seen reports whether the table has already been processed. Bloom false
// positives are resolved against the store, so a true result is reliable.
func (r *Registry) Seen(ctx context.Context, tableID string) (bool, error) {
	r.mu.Lock()
	inFilter := r.filter.TestString(tableID)
	r.mu.Unlock()

	if !inFilter {
		return false, nil
	}

	exists, err := r.store.GameExists(ctx, tableID)
	if err != nil {
		return false, fmt.Errorf("registry store check: %w", err)
	}
	return exists, nil
}

// Mark records the table as processed.
func (r *Registry) Mark(tableID string) {
	r.mu.Lock()
	r.filter.AddString(tableID)
	r.mu.Unlock()
}
