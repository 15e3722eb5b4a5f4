package transfer

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/roach88/vault/internal/ir"
)

// MemoryHoldings is an in-memory Holdings. Safe for concurrent use.
type MemoryHoldings struct {
	mu       sync.Mutex
	holdings map[string]ir.Holding
}

// NewMemoryHoldings returns a MemoryHoldings seeded with holdings.
func NewMemoryHoldings(holdings ...ir.Holding) *MemoryHoldings {
	m := &MemoryHoldings{holdings: make(map[string]ir.Holding, len(holdings))}
	for _, h := range holdings {
		m.holdings[h.ID] = h
	}
	return m
}

// Holding returns the holding with the given id.
func (m *MemoryHoldings) Holding(_ context.Context, id string) (ir.Holding, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	h, ok := m.holdings[id]
	if !ok {
		return ir.Holding{}, fmt.Errorf("holding %s: %w", id, ErrUnknownHolding)
	}
	return h, nil
}

// PutHolding creates or replaces a holding.
func (m *MemoryHoldings) PutHolding(_ context.Context, h ir.Holding) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.holdings[h.ID] = h
	return nil
}

// All returns every holding sorted by id.
func (m *MemoryHoldings) All() []ir.Holding {
	m.mu.Lock()
	defer m.mu.Unlock()

	all := make([]ir.Holding, 0, len(m.holdings))
	for _, h := range m.holdings {
		all = append(all, h)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	return all
}
