// Package context holds a device's view of recent neighbour exports (the
// "context" of spec.md §4.4): an ordered collection of (device -> export,
// metric) entries with bounded size and eviction. Two implementations
// (Online, Batched) share the Context interface; both tie-break eviction
// by (metric, id) ascending, per the Open Question resolved in spec.md §9.
//
// © 2025 fieldrt authors. MIT License.
package context

import (
	"cmp"

	"github.com/fieldrt/fieldrt/internal/export"
	"github.com/fieldrt/fieldrt/internal/field"
	"github.com/fieldrt/fieldrt/internal/trace"
)

// Policy produces and ages the scalar eviction metric attached to each
// context entry.
type Policy[ID cmp.Ordered] interface {
	// Build computes the initial metric for a message from "from" received
	// by "self" at time recvAt, observed at time now.
	Build(self ID, now float64, from ID, recvAt float64) float64
	// Update ages an existing metric forward to selfNow.
	Update(m float64, selfNow float64) float64
}

// Entry is one context slot: the last export received from (or produced
// by, for the self entry) device From, together with its eviction metric.
type Entry[ID cmp.Ordered] struct {
	From   ID
	Export *export.Export
	Metric float64
}

// Context is the shared contract implemented by Online and Batched.
type Context[ID cmp.Ordered] interface {
	// Insert adds or replaces the entry for fromID. If metric >= threshold
	// the insert is dropped; if the resulting size exceeds hoodSize the
	// worst (highest-metric, tie-broken by largest id) entry is evicted.
	// The boundary is inclusive so that RetainPolicy's "evict at exactly T
	// rounds unseen" (spec.md §3's "m <= 0") lands on the same entry the
	// hood-size eviction rule would pick as worst.
	Insert(fromID ID, e *export.Export, metric, threshold float64, hoodSize int)

	// Freeze switches the context from write to read mode: entries are
	// sorted ascending by id, truncated to hoodSize (keeping the lowest
	// metrics), and selfID is guaranteed present.
	Freeze(hoodSize int, selfID ID)

	// Unfreeze ages every entry's metric via policy.Update, drops entries
	// at or beyond threshold (self is pinned and never evicted), and
	// switches back to write mode.
	Unfreeze(selfNow float64, policy Policy[ID], threshold float64)

	// Align returns the sorted list of ids (including self) whose export
	// contains key, for use as a field's exception domain.
	Align(key trace.Hash) []ID

	// Entries returns the frozen, ascending-by-id entry list. Valid only
	// between Freeze and Unfreeze.
	Entries() []Entry[ID]

	// ReplaceSelf installs the device's freshly produced export as its own
	// entry (step 4 of spec.md §4.6's round procedure). Self is pinned and
	// never evicted by this call.
	ReplaceSelf(selfID ID, e *export.Export, metric float64)
}

// Old returns self's previous value at key from c's self entry, or def if
// self has no export yet or the key is absent there.
func Old[ID cmp.Ordered, T any](c Context[ID], key trace.Hash, def T, selfID ID) T {
	for _, e := range c.Entries() {
		if e.From == selfID {
			return export.GetOr[T](e.Export, key, def)
		}
	}
	return def
}

// Nbr builds a field whose default is def and whose exceptions are, for
// each neighbour id in Align(key) (including self), that neighbour's value
// at key — falling back to def when a neighbour aligned at key via some
// other type-compatible path but this device has never seen a value there.
func Nbr[ID cmp.Ordered, T any](c Context[ID], key trace.Hash, def T, selfID ID) field.Field[ID, T] {
	ids := c.Align(key)
	f := field.Field[ID, T]{Default: def}
	if len(ids) == 0 {
		return f
	}
	f.Exceptions = make(map[ID]T, len(ids))
	for _, id := range ids {
		val := def
		for _, e := range c.Entries() {
			if e.From == id {
				val = export.GetOr[T](e.Export, key, def)
				break
			}
		}
		f.Exceptions[id] = val
	}
	return f
}
