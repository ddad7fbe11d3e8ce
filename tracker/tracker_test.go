package tracker

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/embedsync/cascade/deephash"
	"github.com/embedsync/cascade/entity"
	"github.com/embedsync/cascade/logger"
)

var contactType = &entity.Type{Namespace: "crm", Name: "Contact"}

func newContact(fields map[string]any) *entity.Instance {
	return entity.New(contactType, "c1", fields)
}

func TestWatchFields_DigestStableAndSelective(t *testing.T) {
	w := Fields("name", "email")
	inst := newContact(map[string]any{"name": "Ada", "email": "ada@example.com", "notes": "x"})

	d1, err := w.Digest(inst)
	require.NoError(t, err)

	// Unwatched field changes do not move the digest
	inst.SetField("notes", "y")
	d2, err := w.Digest(inst)
	require.NoError(t, err)
	assert.Equal(t, d1, d2)

	// Watched field changes do
	inst.SetField("email", "ada@other.example")
	d3, err := w.Digest(inst)
	require.NoError(t, err)
	assert.NotEqual(t, d1, d3)
}

func TestWatchFields_MissingFieldIsNull(t *testing.T) {
	w := Fields("name", "phone")
	inst := newContact(map[string]any{"name": "Ada"})

	_, err := w.Digest(inst)
	require.NoError(t, err)

	withNil := newContact(map[string]any{"name": "Ada", "phone": nil})
	d1, _ := w.Digest(inst)
	d2, err := w.Digest(withNil)
	require.NoError(t, err)
	assert.Equal(t, d1, d2, "absent field and explicit nil must digest identically")
}

func TestWatchFields_UnhashableValue(t *testing.T) {
	w := Fields("blob")
	inst := newContact(map[string]any{"blob": make(chan int)})

	_, err := w.Digest(inst)
	assert.ErrorIs(t, err, deephash.ErrUnhashable)
}

func TestWatchExpr_Projection(t *testing.T) {
	w, err := Expr(`doc.name + "|" + doc.plan`)
	require.NoError(t, err)

	inst := newContact(map[string]any{"name": "Ada", "plan": "pro", "notes": "x"})
	d1, err := w.Digest(inst)
	require.NoError(t, err)

	inst.SetField("notes", "y")
	d2, err := w.Digest(inst)
	require.NoError(t, err)
	assert.Equal(t, d1, d2)

	inst.SetField("plan", "enterprise")
	d3, err := w.Digest(inst)
	require.NoError(t, err)
	assert.NotEqual(t, d1, d3)
}

func TestWatchExpr_CompileError(t *testing.T) {
	_, err := Expr(`doc.name +`)
	assert.Error(t, err)
}

func TestWatchExpr_NonStringResult(t *testing.T) {
	w, err := Expr(`doc.age`)
	require.NoError(t, err)

	inst := newContact(map[string]any{"age": 41})
	_, err = w.Digest(inst)
	assert.ErrorContains(t, err, "did not return string")
}

func TestTracker_Lifecycle(t *testing.T) {
	ctx := context.Background()
	tr := New(NewMemoryStore(), logger.Discard())
	w := Fields("name")
	inst := newContact(map[string]any{"name": "Ada"})

	require.NoError(t, tr.Record(ctx, inst, w))

	changed, _, err := tr.Changed(ctx, inst, w)
	require.NoError(t, err)
	assert.False(t, changed, "no change since snapshot")

	inst.SetField("name", "Grace")
	changed, digest, err := tr.Changed(ctx, inst, w)
	require.NoError(t, err)
	assert.True(t, changed)

	require.NoError(t, tr.Commit(ctx, inst, digest))
	changed, _, err = tr.Changed(ctx, inst, w)
	require.NoError(t, err)
	assert.False(t, changed, "digest committed, no further change")

	require.NoError(t, tr.Forget(ctx, inst))
	changed, _, err = tr.Changed(ctx, inst, w)
	require.NoError(t, err)
	assert.True(t, changed, "no stored digest counts as changed")
}

func TestMemoryStore_Contract(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	got, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Empty(t, got, "absent key reads as empty digest")

	require.NoError(t, s.Put(ctx, "k", "abc"))
	got, err = s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "abc", got)

	require.NoError(t, s.Delete(ctx, "k"))
	got, err = s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Empty(t, got)
}
