package signal

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/embedsync/cascade/entity"
)

var contactType = &entity.Type{Namespace: "crm", Name: "Contact"}

func TestDispatcher_ListenersRunInOrder(t *testing.T) {
	d := NewDispatcher()
	var order []int

	d.AfterSave(contactType, func(ctx context.Context, ev SaveEvent) error {
		order = append(order, 1)
		return nil
	})
	d.AfterSave(contactType, func(ctx context.Context, ev SaveEvent) error {
		order = append(order, 2)
		return nil
	})

	inst := entity.New(contactType, "c1", nil)
	require.NoError(t, d.Saved(context.Background(), inst, false))
	assert.Equal(t, []int{1, 2}, order)
}

func TestDispatcher_TypeScoped(t *testing.T) {
	d := NewDispatcher()
	other := &entity.Type{Namespace: "crm", Name: "Account"}

	fired := false
	d.AfterDelete(other, func(ctx context.Context, ev DeleteEvent) error {
		fired = true
		return nil
	})

	inst := entity.New(contactType, "c1", nil)
	require.NoError(t, d.Deleted(context.Background(), inst))
	assert.False(t, fired, "listener for another type must not fire")
}

func TestDispatcher_ErrorsJoinAndAllListenersRun(t *testing.T) {
	d := NewDispatcher()
	boom := errors.New("boom")
	secondRan := false

	d.AfterConstruct(contactType, func(ctx context.Context, inst *entity.Instance) error {
		return boom
	})
	d.AfterConstruct(contactType, func(ctx context.Context, inst *entity.Instance) error {
		secondRan = true
		return nil
	})

	err := d.Constructed(context.Background(), entity.New(contactType, "c1", nil))
	assert.ErrorIs(t, err, boom)
	assert.True(t, secondRan, "a failing listener must not starve later ones")
}

func TestDispatcher_SaveEventCarriesCreatedFlag(t *testing.T) {
	d := NewDispatcher()
	var got []bool

	d.AfterSave(contactType, func(ctx context.Context, ev SaveEvent) error {
		got = append(got, ev.Created)
		return nil
	})

	inst := entity.New(contactType, "c1", nil)
	require.NoError(t, d.Saved(context.Background(), inst, true))
	require.NoError(t, d.Saved(context.Background(), inst, false))
	assert.Equal(t, []bool{true, false}, got)
}
