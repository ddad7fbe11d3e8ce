// Package signal is the synchronous lifecycle-event dispatch the
// persistence layer drives: after-construct, after-save and after-delete
// notifications per entity type. Listeners run inline, in registration
// order, on the goroutine that triggered the event.
package signal

import (
	"context"
	"errors"
	"sync"

	"github.com/embedsync/cascade/entity"
)

// SaveEvent is delivered after an instance was persisted
type SaveEvent struct {
	Instance *entity.Instance
	// Created distinguishes a first insert from an update
	Created bool
}

// DeleteEvent is delivered after an instance was deleted
type DeleteEvent struct {
	Instance *entity.Instance
}

// ConstructListener runs after an instance is constructed in memory
type ConstructListener func(ctx context.Context, inst *entity.Instance) error

// SaveListener runs after an instance is persisted
type SaveListener func(ctx context.Context, ev SaveEvent) error

// DeleteListener runs after an instance is deleted
type DeleteListener func(ctx context.Context, ev DeleteEvent) error

// Dispatcher routes lifecycle events to listeners registered per entity
// type
type Dispatcher struct {
	mu        sync.RWMutex
	construct map[string][]ConstructListener
	save      map[string][]SaveListener
	delete    map[string][]DeleteListener
}

// NewDispatcher creates an empty dispatcher
func NewDispatcher() *Dispatcher {
	return &Dispatcher{
		construct: make(map[string][]ConstructListener),
		save:      make(map[string][]SaveListener),
		delete:    make(map[string][]DeleteListener),
	}
}

// AfterConstruct registers a listener for post-construction events of t
func (d *Dispatcher) AfterConstruct(t *entity.Type, fn ConstructListener) {
	d.mu.Lock()
	defer d.mu.Unlock()
	key := t.Qualified()
	d.construct[key] = append(d.construct[key], fn)
}

// AfterSave registers a listener for post-save events of t
func (d *Dispatcher) AfterSave(t *entity.Type, fn SaveListener) {
	d.mu.Lock()
	defer d.mu.Unlock()
	key := t.Qualified()
	d.save[key] = append(d.save[key], fn)
}

// AfterDelete registers a listener for post-delete events of t
func (d *Dispatcher) AfterDelete(t *entity.Type, fn DeleteListener) {
	d.mu.Lock()
	defer d.mu.Unlock()
	key := t.Qualified()
	d.delete[key] = append(d.delete[key], fn)
}

// Constructed notifies construct listeners. All listeners run; their
// errors are joined.
func (d *Dispatcher) Constructed(ctx context.Context, inst *entity.Instance) error {
	d.mu.RLock()
	listeners := d.construct[inst.Type.Qualified()]
	d.mu.RUnlock()

	var errs []error
	for _, fn := range listeners {
		if err := fn(ctx, inst); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Saved notifies save listeners. All listeners run; their errors are
// joined and surface to the caller of the triggering save.
func (d *Dispatcher) Saved(ctx context.Context, inst *entity.Instance, created bool) error {
	d.mu.RLock()
	listeners := d.save[inst.Type.Qualified()]
	d.mu.RUnlock()

	ev := SaveEvent{Instance: inst, Created: created}
	var errs []error
	for _, fn := range listeners {
		if err := fn(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Deleted notifies delete listeners. All listeners run; their errors are
// joined and surface to the caller of the triggering delete.
func (d *Dispatcher) Deleted(ctx context.Context, inst *entity.Instance) error {
	d.mu.RLock()
	listeners := d.delete[inst.Type.Qualified()]
	d.mu.RUnlock()

	ev := DeleteEvent{Instance: inst}
	var errs []error
	for _, fn := range listeners {
		if err := fn(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
