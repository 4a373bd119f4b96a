// Package programs collects small field-calculus programs exercising the
// aggregate primitives end to end, the way arena-cache's examples/basic
// exercises the public Cache API. None of these allocate a network of
// their own — each is a device.Program[ID] a caller joins to a
// fieldrt.Simulation.
//
// © 2025 fieldrt authors. MIT License.
package programs

import (
	"cmp"
	"math"

	"github.com/fieldrt/fieldrt/internal/aggregate"
	"github.com/fieldrt/fieldrt/internal/field"
	"github.com/fieldrt/fieldrt/internal/trace"
)

const (
	cpCounter trace.CodePoint = iota + 1
	cpHopCount
	cpGradient
	cpBranchDemo
	cpBranchLeft
	cpBranchRight
)

// Counter increments a local round counter forever: old(0, n => n+1).
// This is the minimal sanity-check program (S1): after k rounds every
// device's counter reads k.
func Counter[ID cmp.Ordered](e *aggregate.Env[ID]) error {
	aggregate.Old[ID, int](e, cpCounter, 0, func(prev int) int { return prev + 1 })
	return nil
}

// SourcePredicate decides which device id is the distinguished source
// for distance-style programs.
type SourcePredicate[ID any] func(id ID) bool

// HopCount computes, at every device, the minimum number of hops to any
// device for which isSource returns true (S2). The source itself reports
// 0; an unreached device (no path yet established) reports
// math.MaxInt32.
func HopCount[ID cmp.Ordered](isSource SourcePredicate[ID]) func(*aggregate.Env[ID]) error {
	return func(e *aggregate.Env[ID]) error {
		aggregate.OldNbr[ID, int](e, cpHopCount, math.MaxInt32, func(prevLocal int, nbrs field.Field[ID, int]) (int, int) {
			if isSource(e.Self) {
				return 0, 0
			}
			best := prevLocal
			for _, id := range field.Domain(nbrs) {
				if v := nbrs.At(id); v != math.MaxInt32 && v+1 < best {
					best = v + 1
				}
			}
			return best, best
		})
		return nil
	}
}

// Gradient computes, at every device, an estimated Euclidean distance to
// the nearest source device, given a distanceTo function giving the
// distance from a device to a neighbour. It is the classic field-calculus
// gradient: g = 0 at a source, else min over neighbours of (their g +
// distance to them), relaxed every round the way a Bellman-Ford
// single-source shortest path relaxes.
func Gradient[ID cmp.Ordered](isSource SourcePredicate[ID], distanceTo func(self, nbr ID) float64) func(*aggregate.Env[ID]) error {
	return func(e *aggregate.Env[ID]) error {
		aggregate.OldNbr[ID, float64](e, cpGradient, math.Inf(1), func(prevLocal float64, nbrs field.Field[ID, float64]) (float64, float64) {
			if isSource(e.Self) {
				return 0, 0
			}
			best := prevLocal
			for _, id := range field.Domain(nbrs) {
				v := nbrs.At(id)
				if math.IsInf(v, 1) {
					continue
				}
				cand := v + distanceTo(e.Self, id)
				if cand < best {
					best = cand
				}
			}
			return best, best
		})
		return nil
	}
}

// BranchSum demonstrates branch/align isolation (S4): devices for which
// cond is true sum a nbr field among themselves; devices for which cond
// is false compute a different nbr field among themselves. The two
// branches never see each other's contributions, since Branch tags each
// arm's keys distinctly.
func BranchSum[ID cmp.Ordered](cond func(self ID) bool, contribution func(self ID) float64) func(*aggregate.Env[ID]) error {
	return func(e *aggregate.Env[ID]) error {
		aggregate.Branch[ID, float64](e, cpBranchDemo, cond(e.Self),
			func(e *aggregate.Env[ID]) float64 {
				f := aggregate.Nbr[ID, float64](e, cpBranchLeft, contribution(e.Self), func(field.Field[ID, float64]) float64 {
					return contribution(e.Self)
				})
				ids := field.Domain(f)
				if len(ids) == 0 {
					ids = []ID{e.Self}
				}
				sum, err := field.Fold(func(acc, v float64) float64 { return acc + v }, f, ids)
				if err != nil {
					return contribution(e.Self)
				}
				return sum
			},
			func(e *aggregate.Env[ID]) float64 {
				f := aggregate.Nbr[ID, float64](e, cpBranchRight, contribution(e.Self), func(field.Field[ID, float64]) float64 {
					return contribution(e.Self)
				})
				ids := field.Domain(f)
				if len(ids) == 0 {
					ids = []ID{e.Self}
				}
				sum, err := field.Fold(func(acc, v float64) float64 { return acc + v }, f, ids)
				if err != nil {
					return contribution(e.Self)
				}
				return sum
			},
		)
		return nil
	}
}
