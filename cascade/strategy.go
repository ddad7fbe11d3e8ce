package cascade

import (
	"errors"
	"fmt"
	"slices"

	"github.com/embedsync/cascade/entity"
)

// ErrUnsupportedCollection means a collection-bound field held something
// that is neither a list ([]any) nor an id-keyed set (map[string]any).
var ErrUnsupportedCollection = errors.New("unsupported collection type")

// strategy locates the embedded copy inside a target's field and either
// replaces it with the source's current state or clears it.
type strategy interface {
	apply(target *entity.Instance, field string, source *entity.Instance, remove bool) error
}

// scalarStrategy handles fields holding exactly one embedded copy. No
// identity check is needed since there is only one slot.
type scalarStrategy struct{}

func (scalarStrategy) apply(target *entity.Instance, field string, source *entity.Instance, remove bool) error {
	if remove {
		target.SetField(field, nil)
		return nil
	}
	target.SetField(field, source.Doc())
	return nil
}

// collectionStrategy handles fields holding several embedded copies: an
// ordered list ([]any of docs) or an unordered set (map[string]any keyed
// by member id). A member whose identity matches the source is replaced
// in place (lists keep their order) or removed. No matching member is a
// silent no-op.
type collectionStrategy struct{}

func (collectionStrategy) apply(target *entity.Instance, field string, source *entity.Instance, remove bool) error {
	switch members := target.Field(field).(type) {
	case nil:
		return nil
	case []any:
		for i, member := range members {
			doc, ok := member.(map[string]any)
			if !ok {
				continue
			}
			if id, ok := doc[entity.IDField].(string); !ok || id != source.ID {
				continue
			}
			if remove {
				target.SetField(field, slices.Delete(members, i, i+1))
			} else {
				members[i] = source.Doc()
			}
			return nil
		}
		return nil
	case map[string]any:
		if _, ok := members[source.ID]; ok {
			if remove {
				delete(members, source.ID)
			} else {
				members[source.ID] = source.Doc()
			}
		}
		return nil
	default:
		return fmt.Errorf("%w: %T", ErrUnsupportedCollection, members)
	}
}
