package aggregate

import (
	"math"
	"testing"

	ctxpkg "github.com/fieldrt/fieldrt/internal/context"
	"github.com/fieldrt/fieldrt/internal/export"
	"github.com/fieldrt/fieldrt/internal/field"
	"github.com/fieldrt/fieldrt/internal/rng"
	"github.com/fieldrt/fieldrt/internal/trace"
)

func newTestEnv(selfID int, ctx ctxpkg.Context[int]) *Env[int] {
	return &Env[int]{
		Trace:   trace.New(),
		Context: ctx,
		Self:    selfID,
		Now:     0,
		Export:  export.New(),
		RNG:     rng.New(1),
		Storage: NewStorage(),
	}
}

func keyFor(cp trace.CodePoint) trace.Hash {
	tr := trace.New()
	tr.Push(cp)
	h := tr.Hash(0)
	tr.Pop()
	return h
}

// TestOldNbrInsertIntoExport is Testable Property 2: export.has<T>(hash(cp))
// after a round holds exactly for the code points the program actually
// called old/nbr at, and not for others.
func TestOldNbrInsertIntoExport(t *testing.T) {
	ctx := ctxpkg.NewOnline[int]()
	ctx.ReplaceSelf(1, export.New(), 0)
	ctx.Freeze(10, 1)
	env := newTestEnv(1, ctx)

	Old[int, int](env, 5, 0, func(prev int) int { return prev + 1 })
	Nbr[int, int](env, 9, 0, func(f field.Field[int, int]) int { return 42 })

	if !export.Has[int](env.Export, keyFor(5)) {
		t.Fatalf("export must hold a value at the code point old() was called at")
	}
	if !export.Has[int](env.Export, keyFor(9)) {
		t.Fatalf("export must hold a value at the code point nbr() was called at")
	}
	if export.Has[int](env.Export, keyFor(123)) {
		t.Fatalf("export must not hold a value at a code point never called this round")
	}
}

// TestBranchIsolatesFields is S4: a device executing the "then" branch of a
// conditional must see a field whose domain excludes a neighbour that took
// the other branch, because the neighbour's export never aligned at the
// same branch-scoped key.
func TestBranchIsolatesFields(t *testing.T) {
	bExport := export.New() // B took the "else" branch: never inserted the then-branch's nbr key
	ctx := ctxpkg.NewOnline[int]()
	ctx.Insert(2, bExport, 0, math.Inf(1), 10)
	ctx.ReplaceSelf(1, export.New(), 0)
	ctx.Freeze(10, 1)

	env := newTestEnv(1, ctx)

	f := Branch[int, field.Field[int, int]](env, 0, true,
		func(e *Env[int]) field.Field[int, int] {
			return Nbr[int, int](e, 1, 0, func(fld field.Field[int, int]) int { return 7 })
		},
		func(e *Env[int]) field.Field[int, int] {
			t.Fatalf("else branch must not run when cond is true")
			return field.Field[int, int]{}
		},
	)

	domain := field.Domain(f)
	if len(domain) != 1 || domain[0] != 1 {
		t.Fatalf("branch-scoped field domain = %v, want exactly [1] (self only)", domain)
	}
}

func TestKeyScopeSeparatesDifferentKeys(t *testing.T) {
	ctx := ctxpkg.NewOnline[int]()
	ctx.ReplaceSelf(1, export.New(), 0)
	ctx.Freeze(10, 1)
	env := newTestEnv(1, ctx)

	var k1, k2 trace.Hash
	KeyScope[int, struct{}](env, 1, func(e *Env[int]) struct{} {
		Old[int, int](e, 0, 0, func(prev int) int { return 1 })
		k1 = e.Trace.Hash(0)
		return struct{}{}
	})
	KeyScope[int, struct{}](env, 2, func(e *Env[int]) struct{} {
		k2 = e.Trace.Hash(0)
		return struct{}{}
	})
	if k1 == k2 {
		t.Fatalf("different KeyScope keys must not collide: k1=%d k2=%d", k1, k2)
	}
}

func TestCycleIterationsProduceDistinctKeys(t *testing.T) {
	ctx := ctxpkg.NewOnline[int]()
	ctx.ReplaceSelf(1, export.New(), 0)
	ctx.Freeze(10, 1)
	env := newTestEnv(1, ctx)

	var k0, k1 trace.Hash
	Cycle[int, struct{}](env, 3, 0, func(e *Env[int]) struct{} {
		k0 = e.Trace.Hash(0)
		return struct{}{}
	})
	Cycle[int, struct{}](env, 3, 1, func(e *Env[int]) struct{} {
		k1 = e.Trace.Hash(0)
		return struct{}{}
	})
	if k0 == k1 {
		t.Fatalf("distinct cycle iterations must produce distinct keys")
	}
	if env.Trace.Depth() != 0 {
		t.Fatalf("trace must be balanced after both cycle calls, depth=%d", env.Trace.Depth())
	}
}
