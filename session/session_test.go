package session

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/embedsync/cascade/entity"
	"github.com/embedsync/cascade/logger"
	"github.com/embedsync/cascade/signal"
	"github.com/embedsync/cascade/store"
)

func TestSession_NewInstanceGeneratesID(t *testing.T) {
	s := New(store.NewMemory(), signal.NewDispatcher(), logger.Discard())
	typ := &entity.Type{Namespace: "crm", Name: "Contact"}

	a, err := s.NewInstance(context.Background(), typ, "", nil)
	require.NoError(t, err)
	b, err := s.NewInstance(context.Background(), typ, "", nil)
	require.NoError(t, err)

	assert.NotEmpty(t, a.ID)
	assert.NotEqual(t, a.ID, b.ID)
}

func TestSession_LifecycleSignals(t *testing.T) {
	ctx := context.Background()
	signals := signal.NewDispatcher()
	s := New(store.NewMemory(), signals, logger.Discard())
	typ := &entity.Type{Namespace: "crm", Name: "Contact"}

	var log []string
	signals.AfterConstruct(typ, func(ctx context.Context, inst *entity.Instance) error {
		log = append(log, "construct")
		return nil
	})
	signals.AfterSave(typ, func(ctx context.Context, ev signal.SaveEvent) error {
		if ev.Created {
			log = append(log, "save-created")
		} else {
			log = append(log, "save-updated")
		}
		return nil
	})
	signals.AfterDelete(typ, func(ctx context.Context, ev signal.DeleteEvent) error {
		log = append(log, "delete")
		return nil
	})

	inst, err := s.NewInstance(ctx, typ, "c1", map[string]any{"name": "Ada"})
	require.NoError(t, err)
	require.NoError(t, s.Save(ctx, inst))
	require.NoError(t, s.Save(ctx, inst))
	require.NoError(t, s.Delete(ctx, inst))

	assert.Equal(t, []string{"construct", "save-created", "save-updated", "delete"}, log)
}
