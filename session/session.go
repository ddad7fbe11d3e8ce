// Package session is a thin persistence facade tying the document store
// and the lifecycle dispatcher together: every construct, save and delete
// goes through here so the registered cascade bindings fire.
package session

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/embedsync/cascade/entity"
	"github.com/embedsync/cascade/logger"
	"github.com/embedsync/cascade/signal"
	"github.com/embedsync/cascade/store"
)

// Session drives instance lifecycles against one store
type Session struct {
	store   store.Store
	signals *signal.Dispatcher
	log     *logger.Logger
}

// New creates a session
func New(st store.Store, signals *signal.Dispatcher, log *logger.Logger) *Session {
	return &Session{
		store:   st,
		signals: signals,
		log:     log,
	}
}

// NewInstance constructs an in-memory instance and fires the
// post-construct signal. An empty id gets a fresh UUID.
func (s *Session) NewInstance(ctx context.Context, t *entity.Type, id string, fields map[string]any) (*entity.Instance, error) {
	if id == "" {
		id = uuid.NewString()
	}
	inst := entity.New(t, id, fields)
	if err := s.signals.Constructed(ctx, inst); err != nil {
		return nil, fmt.Errorf("construct %s: %w", inst, err)
	}
	return inst, nil
}

// Get loads one instance by id
func (s *Session) Get(ctx context.Context, t *entity.Type, id string) (*entity.Instance, error) {
	return s.store.Get(ctx, t, id)
}

// Save persists an instance, then fires the post-save signal with the
// created flag. Propagation runs inline; its errors surface here.
func (s *Session) Save(ctx context.Context, inst *entity.Instance) error {
	created, err := s.store.Save(ctx, inst)
	if err != nil {
		return fmt.Errorf("save %s: %w", inst, err)
	}
	s.log.Debug("instance saved", "instance", inst.String(), "created", created)
	return s.signals.Saved(ctx, inst, created)
}

// Delete removes an instance, then fires the post-delete signal
func (s *Session) Delete(ctx context.Context, inst *entity.Instance) error {
	if err := s.store.Delete(ctx, inst); err != nil {
		return fmt.Errorf("delete %s: %w", inst, err)
	}
	s.log.Debug("instance deleted", "instance", inst.String())
	return s.signals.Deleted(ctx, inst)
}
