// Package entity holds the schemaless document model: entity types, live
// instances, and the type registry used to resolve string references.
package entity

import "fmt"

// IDField is the document key carrying an embedded copy's identity.
const IDField = "id"

// Type describes an entity type registered with a Registry
type Type struct {
	// Namespace groups related types, e.g. "account"
	Namespace string
	// Name is the type name inside the namespace, e.g. "Organization"
	Name string
}

// Qualified returns the "namespace.Name" form of the type
func (t *Type) Qualified() string {
	return t.Namespace + "." + t.Name
}

func (t *Type) String() string {
	return t.Qualified()
}

// Instance is a live document of some Type. Fields hold JSON-shaped
// values: nil, bool, string, numbers, []any and map[string]any.
type Instance struct {
	Type   *Type
	ID     string
	Fields map[string]any
}

// New creates an instance with its own copy of fields
func New(t *Type, id string, fields map[string]any) *Instance {
	return &Instance{
		Type:   t,
		ID:     id,
		Fields: copyMap(fields),
	}
}

// Field returns the named field's value, nil when absent
func (i *Instance) Field(name string) any {
	return i.Fields[name]
}

// SetField sets the named field's value
func (i *Instance) SetField(name string, value any) {
	if i.Fields == nil {
		i.Fields = make(map[string]any)
	}
	i.Fields[name] = value
}

// Doc returns the instance as an embeddable document: a deep copy of
// Fields with the identity merged in under IDField.
func (i *Instance) Doc() map[string]any {
	doc := copyMap(i.Fields)
	if doc == nil {
		doc = make(map[string]any, 1)
	}
	doc[IDField] = i.ID
	return doc
}

// Clone returns a deep copy of the instance
func (i *Instance) Clone() *Instance {
	return &Instance{
		Type:   i.Type,
		ID:     i.ID,
		Fields: copyMap(i.Fields),
	}
}

func (i *Instance) String() string {
	return fmt.Sprintf("%s(%s)", i.Type.Qualified(), i.ID)
}

// Key returns the side-table key "namespace.Name/id" for the instance
func (i *Instance) Key() string {
	return i.Type.Qualified() + "/" + i.ID
}

func copyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = copyValue(v)
	}
	return out
}

func copyValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return copyMap(val)
	case []any:
		out := make([]any, len(val))
		for i, member := range val {
			out[i] = copyValue(member)
		}
		return out
	default:
		return v
	}
}
