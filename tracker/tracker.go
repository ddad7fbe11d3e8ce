// Package tracker implements the watched-fields change detection: a digest
// of the interesting part of a source document, snapshotted at construction
// and compared on every save so no-op propagations can be skipped. Digests
// live in an explicit side table keyed by instance identity rather than on
// the instance itself.
package tracker

import (
	"context"
	"sync"

	"github.com/embedsync/cascade/entity"
	"github.com/embedsync/cascade/logger"
)

// HashStore is the side table holding the last-known watch digest per
// instance. Keys are "namespace.Name/id".
type HashStore interface {
	// Get returns the stored digest, "" when absent
	Get(ctx context.Context, key string) (string, error)
	// Put stores a digest
	Put(ctx context.Context, key, digest string) error
	// Delete removes a stored digest
	Delete(ctx context.Context, key string) error
}

// MemoryStore is the in-process HashStore
type MemoryStore struct {
	mu      sync.RWMutex
	digests map[string]string
}

// NewMemoryStore creates an empty in-process HashStore
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		digests: make(map[string]string),
	}
}

func (s *MemoryStore) Get(ctx context.Context, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.digests[key], nil
}

func (s *MemoryStore) Put(ctx context.Context, key, digest string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.digests[key] = digest
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.digests, key)
	return nil
}

// Tracker owns the digest lifecycle around saves and deletes
type Tracker struct {
	store HashStore
	log   *logger.Logger
}

// New creates a tracker on top of a HashStore
func New(store HashStore, log *logger.Logger) *Tracker {
	return &Tracker{store: store, log: log}
}

// Record snapshots the instance's current digest. Called right after
// construction, so the first propagating save has a baseline to compare
// against.
func (t *Tracker) Record(ctx context.Context, inst *entity.Instance, w *Watch) error {
	digest, err := w.Digest(inst)
	if err != nil {
		return err
	}
	return t.store.Put(ctx, inst.Key(), digest)
}

// Changed recomputes the digest and compares it against the stored one.
// An instance with no stored digest counts as changed.
func (t *Tracker) Changed(ctx context.Context, inst *entity.Instance, w *Watch) (bool, string, error) {
	digest, err := w.Digest(inst)
	if err != nil {
		return false, "", err
	}

	prev, err := t.store.Get(ctx, inst.Key())
	if err != nil {
		return false, "", err
	}

	changed := prev != digest
	if !changed {
		t.log.Debug("watch digest unchanged", "key", inst.Key())
	}
	return changed, digest, nil
}

// Commit stores the new digest once propagation proceeds
func (t *Tracker) Commit(ctx context.Context, inst *entity.Instance, digest string) error {
	return t.store.Put(ctx, inst.Key(), digest)
}

// Forget drops the stored digest after the instance is deleted
func (t *Tracker) Forget(ctx context.Context, inst *entity.Instance) error {
	return t.store.Delete(ctx, inst.Key())
}
