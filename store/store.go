// Package store defines the document-store interface the cascade engine
// persists through, plus an in-memory implementation. A Postgres-backed
// implementation lives in store/postgres.
package store

import (
	"context"
	"errors"

	"github.com/embedsync/cascade/entity"
)

var (
	// ErrNotFound means no document matched the given type and id
	ErrNotFound = errors.New("document not found")
	// ErrIteratorDone is returned by Iterator.Next when the sequence is
	// exhausted
	ErrIteratorDone = errors.New("iterator done")
)

// Iterator is a lazy sequence of instances. Callers must call Stop when
// finished with it.
type Iterator interface {
	// Next returns the next instance or ErrIteratorDone
	Next(ctx context.Context) (*entity.Instance, error)
	// Stop releases resources held by the iterator
	Stop()
}

// Store is the narrow persistence surface the engine consumes
type Store interface {
	// Get loads one instance by id
	Get(ctx context.Context, t *entity.Type, id string) (*entity.Instance, error)

	// Save upserts an instance and reports whether it was created rather
	// than updated
	Save(ctx context.Context, inst *entity.Instance) (created bool, err error)

	// Delete removes an instance
	Delete(ctx context.Context, inst *entity.Instance) error

	// FindByEmbeddedID finds all instances of t whose field holds an
	// embedded copy with the given identity: the field value itself, a
	// member of a list, or a member of an id-keyed set map.
	FindByEmbeddedID(ctx context.Context, t *entity.Type, field, id string) (Iterator, error)
}

// EmbedsID reports whether a field value holds an embedded copy with the
// given identity, under any of the three embedding shapes.
func EmbedsID(fieldValue any, id string) bool {
	switch val := fieldValue.(type) {
	case map[string]any:
		// Scalar embed: the value is the copy itself
		if docID, ok := val[entity.IDField].(string); ok && docID == id {
			return true
		}
		// Set embed: id-keyed members
		if _, ok := val[id].(map[string]any); ok {
			return true
		}
	case []any:
		for _, member := range val {
			doc, ok := member.(map[string]any)
			if !ok {
				continue
			}
			if docID, ok := doc[entity.IDField].(string); ok && docID == id {
				return true
			}
		}
	}
	return false
}

// sliceIterator serves a pre-built result set
type sliceIterator struct {
	items []*entity.Instance
	pos   int
}

// NewSliceIterator wraps a slice of instances in the Iterator interface
func NewSliceIterator(items []*entity.Instance) Iterator {
	return &sliceIterator{items: items}
}

func (it *sliceIterator) Next(ctx context.Context) (*entity.Instance, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if it.pos >= len(it.items) {
		return nil, ErrIteratorDone
	}
	inst := it.items[it.pos]
	it.pos++
	return inst, nil
}

func (it *sliceIterator) Stop() {}
