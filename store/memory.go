package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/embedsync/cascade/entity"
)

// Memory is a mutex-guarded in-memory Store. Instances are deep-copied on
// the way in and out, so callers never alias stored documents, matching
// the isolation a real document store gives.
type Memory struct {
	mu   sync.RWMutex
	docs map[string]map[string]*entity.Instance // type qualified -> id -> instance
}

// NewMemory creates an empty in-memory store
func NewMemory() *Memory {
	return &Memory{
		docs: make(map[string]map[string]*entity.Instance),
	}
}

// Get loads one instance by id
func (m *Memory) Get(ctx context.Context, t *entity.Type, id string) (*entity.Instance, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	inst, ok := m.docs[t.Qualified()][id]
	if !ok {
		return nil, fmt.Errorf("%w: %s(%s)", ErrNotFound, t.Qualified(), id)
	}
	return inst.Clone(), nil
}

// Save upserts an instance and reports whether it was created
func (m *Memory) Save(ctx context.Context, inst *entity.Instance) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := inst.Type.Qualified()
	byID, ok := m.docs[key]
	if !ok {
		byID = make(map[string]*entity.Instance)
		m.docs[key] = byID
	}

	_, exists := byID[inst.ID]
	byID[inst.ID] = inst.Clone()
	return !exists, nil
}

// Delete removes an instance
func (m *Memory) Delete(ctx context.Context, inst *entity.Instance) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	byID, ok := m.docs[inst.Type.Qualified()]
	if _, found := byID[inst.ID]; !ok || !found {
		return fmt.Errorf("%w: %s", ErrNotFound, inst)
	}
	delete(byID, inst.ID)
	return nil
}

// FindByEmbeddedID scans instances of t for an embedded copy with the
// given identity in the named field
func (m *Memory) FindByEmbeddedID(ctx context.Context, t *entity.Type, field, id string) (Iterator, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var matches []*entity.Instance
	for _, inst := range m.docs[t.Qualified()] {
		if EmbedsID(inst.Field(field), id) {
			matches = append(matches, inst.Clone())
		}
	}
	return NewSliceIterator(matches), nil
}

// Len reports how many instances of t are stored, for tests
func (m *Memory) Len(t *entity.Type) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.docs[t.Qualified()])
}
