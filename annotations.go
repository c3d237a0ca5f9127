package modelpart

import (
	"fmt"
	"maps"
	"slices"
)

// Annotations is a key-value store of arbitrarily typed values attached to an
// entity or a model part. It is the mechanism by which callers decorate the mesh
// with solver-specific data (e.g. material parameters on Properties, or
// boundary-condition flags on Nodes).
//
// Unlike the solver's own runtime, Annotations never materialise a default
// value for a missing key; Get fails instead.
//
// The zero value is ready to use. Annotations are not safe for concurrent use.
type Annotations struct {
	m map[string]any
}

// Has reports whether a value is stored under the given key.
func (a *Annotations) Has(key string) bool {
	_, ok := a.m[key]
	return ok
}

// Get returns the value stored under the given key. If the key is absent, Get
// returns an error wrapping ErrKeyNotFound.
func (a *Annotations) Get(key string) (any, error) {
	v, ok := a.m[key]
	if !ok {
		return nil, fmt.Errorf("annotation %q: %w", key, ErrKeyNotFound)
	}
	return v, nil
}

// Set stores the value under the given key, overwriting any previous value.
func (a *Annotations) Set(key string, value any) {
	// Make the zero-value meaningful.
	if a.m == nil {
		a.m = make(map[string]any)
	}
	a.m[key] = value
}

// HasData reports whether any value is stored at all.
func (a *Annotations) HasData() bool {
	return len(a.m) != 0
}

// GetData returns a snapshot of all stored values. Modifying the returned map
// does not affect the Annotations.
func (a *Annotations) GetData() map[string]any {
	data := make(map[string]any, len(a.m))
	maps.Copy(data, a.m)
	return data
}

// Keys returns the stored keys in lexicographic order. Printing and
// serialisation iterate annotations in this order to keep their output
// reproducible.
func (a *Annotations) Keys() []string {
	return slices.Sorted(maps.Keys(a.m))
}

// Lookup returns the value stored under the given key, asserted to type V. It
// fails with ErrKeyNotFound if the key is absent, and with ErrAnnotationType if
// the stored value is not a V.
func Lookup[V any](a *Annotations, key string) (V, error) {
	var zero V
	v, err := a.Get(key)
	if err != nil {
		return zero, err
	}
	x, ok := v.(V)
	if !ok {
		return zero, fmt.Errorf("annotation %q holds %T, not %T: %w", key, v, zero, ErrAnnotationType)
	}
	return x, nil
}
