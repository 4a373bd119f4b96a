// Package aggregate implements the four field-calculus aggregate
// primitives (old, nbr, branch/align, cycle) against the per-device
// round environment, per spec.md §4.5.
//
// © 2025 fieldrt authors. MIT License.
package aggregate

import (
	"cmp"

	ctxpkg "github.com/fieldrt/fieldrt/internal/context"
	"github.com/fieldrt/fieldrt/internal/export"
	"github.com/fieldrt/fieldrt/internal/field"
	"github.com/fieldrt/fieldrt/internal/rng"
	"github.com/fieldrt/fieldrt/internal/trace"
)

// Env bundles everything an aggregate operator needs: the live trace, the
// frozen context being read, the export being built, the device's own id
// and round time, its random source, and its persistent local storage.
type Env[ID cmp.Ordered] struct {
	Trace   *trace.Trace
	Context ctxpkg.Context[ID]
	Self    ID
	Now     float64
	Export  *export.Export
	RNG     rng.Source
	Storage *Storage
}

// key computes the current code-point's export/context key: cp is pushed,
// the local-scope counter (always 0 for leaf calls; Cycle uses a nonzero
// iteration key instead) is folded in via Trace.Hash, then cp is popped so
// the caller's trace is left exactly as it found it.
func (e *Env[ID]) key(cp trace.CodePoint) trace.Hash {
	e.Trace.Push(cp)
	h := e.Trace.Hash(0)
	e.Trace.Pop()
	return h
}

// Old implements spec.md §4.5's old(code_point, initial, update):
//  1. scope the trace at cp
//  2. prev := context.old<T>(key, initial)
//  3. next := update(prev)
//  4. export.insert<T>(key, next)
//  5. return next
func Old[ID cmp.Ordered, T any](e *Env[ID], cp trace.CodePoint, initial T, update func(prev T) T) T {
	e.Trace.Push(cp)
	key := e.Trace.Hash(0)
	prev := ctxpkg.Old[ID, T](e.Context, key, initial, e.Self)
	next := update(prev)
	export.Insert(e.Export, key, next)
	e.Trace.Pop()
	return next
}

// Nbr implements spec.md §4.5's nbr(code_point, initial, update):
//  1. scope the trace at cp
//  2. f := context.nbr<T>(key, initial, self)
//  3. next := update(f); this is the local value this device contributes
//     next round
//  4. export.insert<T>(key, next)
//  5. return f
func Nbr[ID cmp.Ordered, T any](e *Env[ID], cp trace.CodePoint, initial T, update func(f field.Field[ID, T]) T) field.Field[ID, T] {
	e.Trace.Push(cp)
	key := e.Trace.Hash(0)
	f := ctxpkg.Nbr[ID, T](e.Context, key, initial, e.Self)
	next := update(f)
	export.Insert(e.Export, key, next)
	e.Trace.Pop()
	return f
}

// OldNbr implements the combined old+nbr general form: a three-parameter
// update (prevLocal, neighboursField) -> (result, nextLocal). result is
// returned; nextLocal becomes both the stored old value and the published
// nbr value for the next round.
func OldNbr[ID cmp.Ordered, T any](e *Env[ID], cp trace.CodePoint, initial T, update func(prevLocal T, nbrs field.Field[ID, T]) (result T, nextLocal T)) T {
	e.Trace.Push(cp)
	key := e.Trace.Hash(0)
	prevLocal := ctxpkg.Old[ID, T](e.Context, key, initial, e.Self)
	nbrs := ctxpkg.Nbr[ID, T](e.Context, key, initial, e.Self)
	result, nextLocal := update(prevLocal, nbrs)
	export.Insert(e.Export, key, nextLocal)
	e.Trace.Pop()
	return result
}

// Branch implements spec.md §4.5's branch/align: it pushes a
// branch-specific code point before evaluating one of thenFn/elseFn so
// that messages produced in one branch are tagged under that branch and
// never align with messages from the other — neighbours that did not pass
// through the same branch contribute neither to nbr fields nor to fold
// domains computed inside it.
func Branch[ID cmp.Ordered, T any](e *Env[ID], cp trace.CodePoint, cond bool, thenFn, elseFn func(*Env[ID]) T) T {
	e.Trace.Push(cp)
	defer e.Trace.Pop()
	if cond {
		e.Trace.PushKey(1)
		defer e.Trace.Pop()
		return thenFn(e)
	}
	e.Trace.PushKey(0)
	defer e.Trace.Pop()
	return elseFn(e)
}

// KeyScope implements spec.md §4.5's dynamic process key: it mixes k
// (modulo 2^HashLen) into the trace so that two devices choosing the same
// k align within body, while devices choosing different ks do not.
func KeyScope[ID cmp.Ordered, T any](e *Env[ID], k uint64, body func(*Env[ID]) T) T {
	e.Trace.PushKey(k)
	defer e.Trace.Pop()
	return body(e)
}

// Cycle implements spec.md §4.5's repeated evaluation: iteration i of a
// loop at call site cp gets key (cp, i), stable across devices, via the
// trace's Cycle helper.
func Cycle[ID cmp.Ordered, T any](e *Env[ID], cp trace.CodePoint, i int, body func(*Env[ID]) T) T {
	enter, leave := e.Trace.Cycle(cp)(i)
	enter()
	defer leave()
	return body(e)
}
