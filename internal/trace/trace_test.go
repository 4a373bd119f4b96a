package trace

import "testing"

func TestPushPopIsIdentity(t *testing.T) {
	tr := New()
	tr.Push(7)
	before := tr.Hash(0)
	tr.Push(42)
	tr.Push(9)
	tr.Pop()
	tr.Pop()
	after := tr.Hash(0)
	if before != after {
		t.Fatalf("push;push;push;pop;pop did not restore hash: before=%d after=%d", before, after)
	}
	tr.Pop()
	if tr.Depth() != 0 {
		t.Fatalf("expected empty stack after unwinding, got depth %d", tr.Depth())
	}
}

func TestPushPopSingleStep(t *testing.T) {
	tr := New()
	h0 := tr.Hash(0)
	tr.Push(3)
	tr.Pop()
	h1 := tr.Hash(0)
	if h0 != h1 {
		t.Fatalf("single push/pop is not identity: %d != %d", h0, h1)
	}
}

func TestHashFactorIsInvertible(t *testing.T) {
	if (HashFactor*HashInverse)%hashMod != 1 {
		t.Fatalf("HashInverse is not the modular inverse of HashFactor mod 2^%d", HashLen)
	}
}

func TestPushChangesHash(t *testing.T) {
	tr := New()
	h0 := tr.Hash(0)
	tr.Push(1)
	h1 := tr.Hash(0)
	if h0 == h1 {
		t.Fatalf("push did not change the hash")
	}
}

func TestTwoDevicesAlignOnIdenticalPath(t *testing.T) {
	a, b := New(), New()
	path := []CodePoint{1, 2, 3}
	for _, cp := range path {
		a.Push(cp)
		b.Push(cp)
	}
	if a.Hash(0) != b.Hash(0) {
		t.Fatalf("two traces following identical code paths must align")
	}
}

func TestDivergentPathsDoNotAlign(t *testing.T) {
	a, b := New(), New()
	a.Push(1)
	a.Push(2)
	b.Push(1)
	b.Push(3)
	if a.Hash(0) == b.Hash(0) {
		t.Fatalf("traces following different code paths must not align")
	}
}

func TestLocalCounterIsPackedAboveHashLen(t *testing.T) {
	tr := New()
	tr.Push(5)
	h0 := tr.Hash(0)
	h1 := tr.Hash(1)
	if h0 == h1 {
		t.Fatalf("distinct local counters must produce distinct keys")
	}
	if uint64(h1)-uint64(h0) != hashMod {
		t.Fatalf("local counter must be packed exactly above HashLen bits")
	}
}

func TestCycleProducesStableKeyPerIteration(t *testing.T) {
	tr := New()
	scope := tr.Cycle(11)
	enter0, leave0 := scope(0)
	enter0()
	k0 := tr.Hash(0)
	leave0()

	enter1, leave1 := scope(1)
	enter1()
	k1 := tr.Hash(0)
	leave1()

	if k0 == k1 {
		t.Fatalf("different cycle iterations must produce different keys")
	}
	if tr.Depth() != 0 {
		t.Fatalf("cycle scope must leave the trace balanced, depth=%d", tr.Depth())
	}

	// A second device replaying iteration 0 must align with the first.
	other := New()
	oscope := other.Cycle(11)
	oenter, oleave := oscope(0)
	oenter()
	ok0 := other.Hash(0)
	oleave()
	if ok0 != k0 {
		t.Fatalf("same cycle iteration on a different trace must align")
	}
}

func TestPopOnEmptyStackPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected Pop on empty stack to panic")
		}
	}()
	New().Pop()
}
