package entity

import (
	"errors"
	"fmt"
	"strings"
	"sync"
)

var (
	// ErrInvalidReference means a type reference was neither a *Type nor a
	// string
	ErrInvalidReference = errors.New("invalid type reference")
	// ErrUnknownType means a registry lookup found nothing
	ErrUnknownType = errors.New("unknown entity type")
	// ErrDuplicateType means a type with the same qualified name was
	// already registered
	ErrDuplicateType = errors.New("duplicate entity type")
)

// Registry maps qualified names to entity types. It is populated during
// application wiring and read-only afterwards; there is no ambient global
// registry.
type Registry struct {
	mu    sync.RWMutex
	types map[string]*Type
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		types: make(map[string]*Type),
	}
}

// Register adds a type to the registry. Registering the same qualified
// name twice fails loudly.
func (r *Registry) Register(t *Type) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	qualified := t.Qualified()
	if _, exists := r.types[qualified]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateType, qualified)
	}
	r.types[qualified] = t
	return nil
}

// MustRegister registers a new type and panics on duplicates. Intended
// for wiring code where a duplicate is a programming error.
func (r *Registry) MustRegister(namespace, name string) *Type {
	t := &Type{Namespace: namespace, Name: name}
	if err := r.Register(t); err != nil {
		panic(err)
	}
	return t
}

// Lookup finds a type by namespace and name
func (r *Registry) Lookup(namespace, name string) (*Type, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.types[namespace+"."+name]
	if !ok {
		return nil, fmt.Errorf("%w: %s.%s", ErrUnknownType, namespace, name)
	}
	return t, nil
}

// Resolve turns a type reference into a concrete type. A *Type passes
// through unchanged. A "namespace.Name" string resolves via the registry;
// an unqualified "Name" resolves in the context type's namespace.
func (r *Registry) Resolve(context *Type, ref any) (*Type, error) {
	switch val := ref.(type) {
	case *Type:
		return val, nil
	case string:
		namespace, name, found := strings.Cut(val, ".")
		if !found {
			// Unqualified name, assume the context type's namespace
			namespace, name = context.Namespace, val
		}
		return r.Lookup(namespace, name)
	}
	return nil, fmt.Errorf("%w: %T (want *entity.Type or string)", ErrInvalidReference, ref)
}
