// Package field implements the neighbour-indexed Field<T> data type: a
// default value plus a sparse map of per-neighbour exceptions, together with
// pointwise map/fold/align operations.
//
// © 2025 fieldrt authors. MIT License.
package field

import (
	"cmp"
	"errors"
	"sort"
)

// ErrEmptyFold is returned when Fold is asked to reduce over an empty id
// domain — a program error, since the context is expected to always
// contain at least the self entry.
var ErrEmptyFold = errors.New("field: fold over empty domain")

// Field is a value observed per-neighbour: a default plus exceptions keyed
// by device id. An exception value equal to the default is permitted but
// semantically redundant; operators never depend on redundant exceptions
// being present or absent.
type Field[ID comparable, T any] struct {
	Default    T
	Exceptions map[ID]T
}

// Constant returns a field with no exceptions: every neighbour observes v.
func Constant[ID comparable, T any](v T) Field[ID, T] {
	return Field[ID, T]{Default: v}
}

// FromPairs builds a field from a default and parallel id/value slices.
func FromPairs[ID comparable, T any](def T, ids []ID, values []T) Field[ID, T] {
	f := Field[ID, T]{Default: def}
	if len(ids) == 0 {
		return f
	}
	f.Exceptions = make(map[ID]T, len(ids))
	for i, id := range ids {
		f.Exceptions[id] = values[i]
	}
	return f
}

// At returns the value for id, falling back to the default when id has no
// exception recorded.
func (f Field[ID, T]) At(id ID) T {
	if v, ok := f.Exceptions[id]; ok {
		return v
	}
	return f.Default
}

// Self is At(selfID); provided for readability at call sites that read a
// field's contribution for the device evaluating it.
func (f Field[ID, T]) Self(selfID ID) T {
	return f.At(selfID)
}

// Align restricts f to exactly the given ids: missing ids are filled with
// the default, extra ids (present in f.Exceptions but not in ids) are
// dropped. The result is a fresh field; the input is never mutated.
func Align[ID comparable, T any](f Field[ID, T], ids []ID) Field[ID, T] {
	out := Field[ID, T]{Default: f.Default}
	if len(ids) == 0 {
		return out
	}
	out.Exceptions = make(map[ID]T, len(ids))
	for _, id := range ids {
		out.Exceptions[id] = f.At(id)
	}
	return out
}

// domainUnion collects the sorted union of every field's exception-id
// domain, using less to order heterogeneous-but-comparable ids.
func domainUnion[ID comparable](less func(a, b ID) bool, maps ...map[ID]struct{}) []ID {
	seen := make(map[ID]struct{})
	for _, m := range maps {
		for id := range m {
			seen[id] = struct{}{}
		}
	}
	out := make([]ID, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out
}

func keySet[ID comparable, T any](m map[ID]T) map[ID]struct{} {
	out := make(map[ID]struct{}, len(m))
	for k := range m {
		out[k] = struct{}{}
	}
	return out
}

// Map1 applies op pointwise to a single field.
func Map1[ID comparable, A, R any](less func(a, b ID) bool, op func(A) R, f Field[ID, A]) Field[ID, R] {
	out := Field[ID, R]{Default: op(f.Default)}
	if len(f.Exceptions) == 0 {
		return out
	}
	out.Exceptions = make(map[ID]R, len(f.Exceptions))
	for id, v := range f.Exceptions {
		out.Exceptions[id] = op(v)
	}
	return out
}

// Map2 applies op pointwise across two fields: the result default is
// op(defaults...), and exceptions cover the union of exception domains —
// a missing argument for a given id falls back to that argument's default.
func Map2[ID comparable, A, B, R any](less func(a, b ID) bool, op func(A, B) R, f1 Field[ID, A], f2 Field[ID, B]) Field[ID, R] {
	out := Field[ID, R]{Default: op(f1.Default, f2.Default)}
	ids := domainUnion(less, keySet(f1.Exceptions), keySet(f2.Exceptions))
	if len(ids) == 0 {
		return out
	}
	out.Exceptions = make(map[ID]R, len(ids))
	for _, id := range ids {
		out.Exceptions[id] = op(f1.At(id), f2.At(id))
	}
	return out
}

// Fold reduces field f over ids (ascending order, as returned by context's
// Align) using self-projected values, in a consistent left-to-right order
// so non-commutative op behaves deterministically. Fails with ErrEmptyFold
// when ids is empty.
func Fold[ID comparable, T any](op func(acc, v T) T, f Field[ID, T], ids []ID) (T, error) {
	var zero T
	if len(ids) == 0 {
		return zero, ErrEmptyFold
	}
	acc := f.Self(ids[0])
	for _, id := range ids[1:] {
		acc = op(acc, f.Self(id))
	}
	return acc, nil
}

// Domain returns the sorted exception ids of f — the domain Fold should
// reduce over when no external alignment list (e.g. from Context.Align)
// is available.
func Domain[ID cmp.Ordered, T any](f Field[ID, T]) []ID {
	out := make([]ID, 0, len(f.Exceptions))
	for id := range f.Exceptions {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// AllTrue implements the implicit "all-true" reduction used by conditions
// over Field[bool]: true only if every exception (and the default, when it
// participates through ids) is true.
func AllTrue[ID comparable](f Field[ID, bool], ids []ID) bool {
	for _, id := range ids {
		if !f.Self(id) {
			return false
		}
	}
	return true
}
