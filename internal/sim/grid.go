// Package sim implements the simulated connector of spec.md §4.7: a
// uniform spatial cell grid, a pluggable connection predicate, message
// delivery, and the scheduling of round and cell-leave events, plus the
// round scheduler of §4.8 and the global event-loop dispatcher. There is
// no separate send event: a device's export is delivered to its linked
// neighbours immediately after its round, with no transmission delay.
//
// © 2025 fieldrt authors. MIT License.
package sim

import "math"

// CellID packs a grid coordinate pair into one comparable value, per the
// "flat map cell_id -> cell" re-architecture note in spec.md §9 — cells
// reference neighbour cells by id, never by pointer.
type CellID int64

const cellCoordBits = 32
const cellCoordMask = (int64(1) << cellCoordBits) - 1

func packCellID(cx, cy int64) CellID {
	return CellID(((cx & cellCoordMask) << cellCoordBits) | (cy & cellCoordMask))
}

func unpackCellID(c CellID) (cx, cy int64) {
	v := int64(c)
	cy = v & cellCoordMask
	cx = (v >> cellCoordBits) & cellCoordMask
	// sign-extend from cellCoordBits
	if cx&(1<<(cellCoordBits-1)) != 0 {
		cx -= 1 << cellCoordBits
	}
	if cy&(1<<(cellCoordBits-1)) != 0 {
		cy -= 1 << cellCoordBits
	}
	return cx, cy
}

// Grid is a uniform cell index with cell side equal to the maximum
// connection radius. It holds only the cell side; the set of live cells,
// keyed by CellID, is owned by Index.
type Grid struct {
	Side float64
}

// NewGrid returns a Grid with the given cell side (the maximum connection
// radius across every connection predicate in use).
func NewGrid(side float64) *Grid {
	if side <= 0 {
		panic("sim: grid cell side must be positive")
	}
	return &Grid{Side: side}
}

// CellOf returns the id of the cell containing position (x, y).
func (g *Grid) CellOf(x, y float64) CellID {
	cx := int64(math.Floor(x / g.Side))
	cy := int64(math.Floor(y / g.Side))
	return packCellID(cx, cy)
}

// LinkedCells returns id plus the ids of every cell within Chebyshev
// distance 1 (the cell itself plus its 8 neighbours), per spec.md §4.7.
func (g *Grid) LinkedCells(id CellID) []CellID {
	cx, cy := unpackCellID(id)
	out := make([]CellID, 0, 9)
	for dx := int64(-1); dx <= 1; dx++ {
		for dy := int64(-1); dy <= 1; dy++ {
			out = append(out, packCellID(cx+dx, cy+dy))
		}
	}
	return out
}

// LeaveTime returns the earliest time t >= now at which a device at
// position (x, y) moving with constant velocity (vx, vy) crosses a
// boundary of the cell grid, or math.Inf(1) if the device is stationary.
// Per S6 in spec.md §8, a device at (0.4, 0) with velocity (1, 0) and a
// cell side equal to the connection radius leaves its [0,1)x[0,1) cell at
// time 0.6 (plus the caller-supplied epsilon margin).
func (g *Grid) LeaveTime(now, x, y, vx, vy float64) float64 {
	tx := axisLeaveTime(now, x, vx, g.Side)
	ty := axisLeaveTime(now, y, vy, g.Side)
	return math.Min(tx, ty)
}

func axisLeaveTime(now, pos, vel, side float64) float64 {
	if vel == 0 {
		return math.Inf(1)
	}
	cellIdx := math.Floor(pos / side)
	var boundary float64
	if vel > 0 {
		boundary = (cellIdx + 1) * side
	} else {
		boundary = cellIdx * side
	}
	dt := (boundary - pos) / vel
	if dt < 0 {
		dt = 0
	}
	return now + dt
}
