package catalog

import (
	"context"
	"fmt"
	"os"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"
)

// MemoryStore is an in-memory, thread-safe Store.
type MemoryStore struct {
	mu    sync.RWMutex
	items map[string]*Garment
}

// NewMemoryStore creates a store holding copies of garments.
func NewMemoryStore(garments ...*Garment) *MemoryStore {
	s := &MemoryStore{items: make(map[string]*Garment, len(garments))}
	for _, g := range garments {
		s.items[g.ID] = g.Clone()
	}
	return s
}

// Get implements Store.
func (s *MemoryStore) Get(_ context.Context, id string) (*Garment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.items[id]
	if !ok {
		return nil, ErrNotFound
	}
	return g.Clone(), nil
}

// List implements Store. Results are ordered by ID.
func (s *MemoryStore) List(_ context.Context) ([]*Garment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Garment, 0, len(s.items))
	for _, g := range s.items {
		out = append(out, g.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// catalogFile is the on-disk YAML layout:
//
//	garments:
//	  - id: organic-cotton-tshirt
//	    name: Organic Cotton T-Shirt
//	    esg_claims: [...]
type catalogFile struct {
	Garments []*Garment `yaml:"garments"`
}

// LoadFile reads a YAML catalog and returns a MemoryStore over it.
// Every entry is validated and IDs must be unique.
func LoadFile(path string) (*MemoryStore, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes a YAML catalog document.
func Parse(data []byte) (*MemoryStore, error) {
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	if len(f.Garments) == 0 {
		return nil, fmt.Errorf("parse catalog: no garments defined")
	}

	seen := make(map[string]bool, len(f.Garments))
	for _, g := range f.Garments {
		if g == nil {
			return nil, fmt.Errorf("parse catalog: empty garment entry")
		}
		if err := Validate(g); err != nil {
			return nil, err
		}
		if seen[g.ID] {
			return nil, fmt.Errorf("parse catalog: duplicate garment id %q", g.ID)
		}
		seen[g.ID] = true
	}
	return NewMemoryStore(f.Garments...), nil
}
