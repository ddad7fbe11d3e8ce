// Package deephash produces stable 64-bit hashes of JSON-shaped value
// trees so "did this subtree change" checks are cheap. Equal mappings hash
// identically regardless of key order; sequences are order-sensitive; sets
// are order-insensitive.
package deephash

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"reflect"
	"sort"

	"github.com/cespare/xxhash/v2"
)

// ErrUnhashable is returned for values that are neither scalars nor
// recognized containers of hashable values.
var ErrUnhashable = errors.New("unhashable type")

// Set is an explicitly unordered sequence. Members are hashed in
// canonical sorted-by-hash order, so two Sets with the same members in
// different order hash identically.
type Set []any

// Type tags keep scalars of different kinds from colliding (e.g. the
// string "1" vs the integer 1).
const (
	tagNil    = 'n'
	tagBool   = 'b'
	tagInt    = 'i'
	tagUint   = 'u'
	tagFloat  = 'f'
	tagString = 's'
	tagSeq    = 'l'
	tagMap    = 'm'
	tagSet    = 'z'
)

// Hash computes a stable hash of v.
func Hash(v any) (uint64, error) {
	switch val := v.(type) {
	case nil:
		return scalarHash(tagNil, nil), nil
	case bool:
		if val {
			return scalarHash(tagBool, []byte{1}), nil
		}
		return scalarHash(tagBool, []byte{0}), nil
	case string:
		return scalarHash(tagString, []byte(val)), nil
	case int:
		return intHash(int64(val)), nil
	case int8:
		return intHash(int64(val)), nil
	case int16:
		return intHash(int64(val)), nil
	case int32:
		return intHash(int64(val)), nil
	case int64:
		return intHash(val), nil
	case uint:
		return uintHash(uint64(val)), nil
	case uint8:
		return uintHash(uint64(val)), nil
	case uint16:
		return uintHash(uint64(val)), nil
	case uint32:
		return uintHash(uint64(val)), nil
	case uint64:
		return uintHash(val), nil
	case float32:
		return floatHash(float64(val)), nil
	case float64:
		return floatHash(val), nil
	case Set:
		return setHash([]any(val))
	case []any:
		return seqHash(val)
	case map[string]any:
		return mapHash(val)
	}
	return reflectHash(v)
}

// reflectHash covers typed slices, string-keyed maps and scalar kinds that
// did not match a concrete case above.
func reflectHash(v any) (uint64, error) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return scalarHash(tagNil, nil), nil
		}
		return Hash(rv.Elem().Interface())
	case reflect.Bool:
		return Hash(rv.Bool())
	case reflect.String:
		return Hash(rv.String())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return intHash(rv.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return uintHash(rv.Uint()), nil
	case reflect.Float32, reflect.Float64:
		return floatHash(rv.Float()), nil
	case reflect.Slice, reflect.Array:
		members := make([]any, rv.Len())
		for i := range members {
			members[i] = rv.Index(i).Interface()
		}
		return seqHash(members)
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return 0, fmt.Errorf("%w: %T (map keys must be strings)", ErrUnhashable, v)
		}
		m := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			m[iter.Key().String()] = iter.Value().Interface()
		}
		return mapHash(m)
	}
	return 0, fmt.Errorf("%w: %T", ErrUnhashable, v)
}

func scalarHash(tag byte, b []byte) uint64 {
	d := xxhash.New()
	d.Write([]byte{tag})
	d.Write(b)
	return d.Sum64()
}

func intHash(v int64) uint64 {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(v))
	return scalarHash(tagInt, buf[:])
}

func uintHash(v uint64) uint64 {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], v)
	return scalarHash(tagUint, buf[:])
}

func floatHash(v float64) uint64 {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], math.Float64bits(v))
	return scalarHash(tagFloat, buf[:])
}

func seqHash(members []any) (uint64, error) {
	d := xxhash.New()
	d.Write([]byte{tagSeq})
	var buf [8]byte
	for _, m := range members {
		h, err := Hash(m)
		if err != nil {
			return 0, err
		}
		binary.BigEndian.PutUint64(buf[:], h)
		d.Write(buf[:])
	}
	return d.Sum64(), nil
}

// mapHash hashes (key, child-hash) pairs sorted by key, so insertion
// order never leaks into the result.
func mapHash(m map[string]any) (uint64, error) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	d := xxhash.New()
	d.Write([]byte{tagMap})
	var buf [8]byte
	for _, k := range keys {
		h, err := Hash(m[k])
		if err != nil {
			return 0, err
		}
		d.WriteString(k)
		binary.BigEndian.PutUint64(buf[:], h)
		d.Write(buf[:])
	}
	return d.Sum64(), nil
}

// setHash hashes member hashes in sorted order since member order is
// unspecified.
func setHash(members []any) (uint64, error) {
	hashes := make([]uint64, 0, len(members))
	for _, m := range members {
		h, err := Hash(m)
		if err != nil {
			return 0, err
		}
		hashes = append(hashes, h)
	}
	sort.Slice(hashes, func(i, j int) bool { return hashes[i] < hashes[j] })

	d := xxhash.New()
	d.Write([]byte{tagSet})
	var buf [8]byte
	for _, h := range hashes {
		binary.BigEndian.PutUint64(buf[:], h)
		d.Write(buf[:])
	}
	return d.Sum64(), nil
}
