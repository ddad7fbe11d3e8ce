package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_RegisterAndLookup(t *testing.T) {
	r := NewRegistry()
	org := r.MustRegister("account", "Organization")

	got, err := r.Lookup("account", "Organization")
	require.NoError(t, err)
	assert.Same(t, org, got)

	_, err = r.Lookup("account", "Missing")
	assert.ErrorIs(t, err, ErrUnknownType)
}

func TestRegistry_DuplicateFailsLoudly(t *testing.T) {
	r := NewRegistry()
	r.MustRegister("account", "Organization")

	err := r.Register(&Type{Namespace: "account", Name: "Organization"})
	assert.ErrorIs(t, err, ErrDuplicateType)
}

func TestRegistry_Resolve(t *testing.T) {
	r := NewRegistry()
	org := r.MustRegister("account", "Organization")
	profile := r.MustRegister("account", "UserProfile")

	t.Run("type handle passes through", func(t *testing.T) {
		got, err := r.Resolve(profile, org)
		require.NoError(t, err)
		assert.Same(t, org, got)
	})

	t.Run("qualified string", func(t *testing.T) {
		got, err := r.Resolve(profile, "account.Organization")
		require.NoError(t, err)
		assert.Same(t, org, got)
	})

	t.Run("unqualified string uses context namespace", func(t *testing.T) {
		got, err := r.Resolve(profile, "Organization")
		require.NoError(t, err)
		assert.Same(t, org, got)
	})

	t.Run("unknown name", func(t *testing.T) {
		_, err := r.Resolve(profile, "billing.Invoice")
		assert.ErrorIs(t, err, ErrUnknownType)
	})

	t.Run("not a string or type", func(t *testing.T) {
		_, err := r.Resolve(profile, 42)
		assert.ErrorIs(t, err, ErrInvalidReference)
	})
}

func TestInstance_DocIsIsolatedCopy(t *testing.T) {
	typ := &Type{Namespace: "crm", Name: "Contact"}
	inst := New(typ, "c1", map[string]any{
		"name":  "Ada",
		"email": map[string]any{"work": "ada@example.com"},
	})

	doc := inst.Doc()
	assert.Equal(t, "c1", doc["id"])

	// Mutating the doc must not leak back into the instance
	doc["name"] = "Grace"
	doc["email"].(map[string]any)["work"] = "grace@example.com"
	assert.Equal(t, "Ada", inst.Field("name"))
	assert.Equal(t, "ada@example.com", inst.Field("email").(map[string]any)["work"])
}

func TestInstance_Key(t *testing.T) {
	typ := &Type{Namespace: "crm", Name: "Contact"}
	inst := New(typ, "c1", nil)
	assert.Equal(t, "crm.Contact/c1", inst.Key())
}
