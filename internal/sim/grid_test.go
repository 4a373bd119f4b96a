package sim

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestLeaveTimeMatchesScenario is S6: a device at (0.4, 0) moving with
// velocity (1, 0) inside a grid whose cell side equals the connection
// radius (1) leaves its [0,1)x[0,1) cell at time 0.6; the epsilon safety
// margin added on top is the caller's (the connector's) responsibility, not
// Grid.LeaveTime's.
func TestLeaveTimeMatchesScenario(t *testing.T) {
	g := NewGrid(1)
	got := g.LeaveTime(0, 0.4, 0, 1, 0)
	require.InDelta(t, 0.6, got, 1e-9)
}

func TestLeaveTimeStationaryDeviceNeverLeaves(t *testing.T) {
	g := NewGrid(1)
	got := g.LeaveTime(0, 0.4, 0.4, 0, 0)
	require.True(t, math.IsInf(got, 1), "stationary device must never leave its cell, got %v", got)
}

func TestLeaveTimeNegativeVelocityCrossesLowerBoundary(t *testing.T) {
	g := NewGrid(1)
	// at x=0.4 moving left (-1), the cell's lower boundary is at x=0.
	got := g.LeaveTime(0, 0.4, 0, -1, 0)
	require.InDelta(t, 0.4, got, 1e-9)
}

func TestCellOfAndLinkedCells(t *testing.T) {
	g := NewGrid(1)
	id := g.CellOf(0.4, 0.4)
	linked := g.LinkedCells(id)
	require.Len(t, linked, 9, "LinkedCells must return the cell plus its 8 neighbours")
	require.Contains(t, linked, id, "LinkedCells must include the cell itself")
}
