package context

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fieldrt/fieldrt/internal/export"
)

func hasID(entries []Entry[int], id int) bool {
	for _, e := range entries {
		if e.From == id {
			return true
		}
	}
	return false
}

// TestFreezeOrdersAscendingWithSelf is Testable Property 1: after Freeze the
// context iterates ids in strictly ascending order with exactly one
// occurrence of self_id, for both Context implementations.
func TestFreezeOrdersAscendingWithSelf(t *testing.T) {
	for _, ctx := range []Context[int]{NewOnline[int](), NewBatched[int]()} {
		ctx.Insert(5, export.New(), 0, math.Inf(1), 10)
		ctx.Insert(3, export.New(), 0, math.Inf(1), 10)
		ctx.Insert(7, export.New(), 0, math.Inf(1), 10)
		ctx.ReplaceSelf(4, export.New(), 0)
		ctx.Freeze(10, 4)

		entries := ctx.Entries()
		require.Lenf(t, entries, 4, "expected 3 neighbours + self")
		selfCount := 0
		for i, e := range entries {
			if e.From == 4 {
				selfCount++
			}
			if i > 0 {
				require.Lessf(t, entries[i-1].From, e.From, "Entries() not strictly ascending by id: %+v", entries)
			}
		}
		require.Equal(t, 1, selfCount, "self must appear exactly once")
	}
}

// TestFreezeSeedsSelfOnFirstRound reproduces the production round-1 path
// (device.Round calls Freeze before ReplaceSelf, and Join never seeds
// self): a brand-new context that has never seen an Insert or a
// ReplaceSelf must still satisfy Testable Property 1 on its very first
// Freeze.
func TestFreezeSeedsSelfOnFirstRound(t *testing.T) {
	for _, ctx := range []Context[int]{NewOnline[int](), NewBatched[int]()} {
		ctx.Freeze(10, 4)

		entries := ctx.Entries()
		require.Len(t, entries, 1, "a fresh context must contain exactly self after its first Freeze")
		require.Equal(t, 4, entries[0].From)

		aligned := ctx.Align(0)
		require.Equal(t, []int{4}, aligned, "Align must include self even with no prior write")
	}
}

// TestNoEvictionWithInfiniteThreshold is Testable Property 6: with
// threshold = +Inf and hood_size >= degree+1, no context ever evicts, even
// across repeated Unfreeze aging.
func TestNoEvictionWithInfiniteThreshold(t *testing.T) {
	for _, ctx := range []Context[int]{NewOnline[int](), NewBatched[int]()} {
		ids := []int{10, 20, 30, 40, 50}
		for _, id := range ids {
			ctx.Insert(id, export.New(), 0, math.Inf(1), len(ids)+1)
		}
		ctx.ReplaceSelf(1, export.New(), 0)
		ctx.Freeze(len(ids)+1, 1)
		require.Len(t, ctx.Entries(), len(ids)+1, "threshold=+Inf must not evict any entry")

		policy := NewRetainPolicy[int](math.Inf(1))
		ctx.Unfreeze(1000, policy, math.Inf(1))
		ctx.Freeze(len(ids)+1, 1)
		require.Len(t, ctx.Entries(), len(ids)+1, "Unfreeze with threshold=+Inf must not evict any entry")
	}
}

// TestRetainEvictsAfterSilence is S5 from spec.md: with retain(T=2) and a
// neighbour that stops sending, its context entry must be gone after
// exactly two rounds of silence, and present after fewer.
func TestRetainEvictsAfterSilence(t *testing.T) {
	for _, ctx := range []Context[int]{NewOnline[int](), NewBatched[int]()} {
		const neighbour, self, threshold = 2, 1, 2.0
		policy := NewRetainPolicy[int](threshold)

		ctx.Insert(neighbour, export.New(), 0, threshold, 10)
		ctx.ReplaceSelf(self, export.New(), 0)
		ctx.Freeze(10, self)
		require.True(t, hasID(ctx.Entries(), neighbour), "neighbour entry must be present immediately after Insert")

		ctx.Unfreeze(1, policy, threshold) // one silent round: age 0 -> 1
		ctx.Freeze(10, self)
		require.True(t, hasID(ctx.Entries(), neighbour), "neighbour entry must survive a single silent round under retain(T=2)")

		ctx.Unfreeze(2, policy, threshold) // second silent round: age 1 -> 2, evict
		ctx.Freeze(10, self)
		require.False(t, hasID(ctx.Entries(), neighbour), "neighbour entry must be evicted after exactly two silent rounds under retain(T=2)")
		require.True(t, hasID(ctx.Entries(), self), "self must never be evicted")
	}
}
