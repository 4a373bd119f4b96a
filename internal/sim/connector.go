package sim

import (
	"cmp"
	"math"
	"strconv"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/fieldrt/fieldrt/internal/clock"
	"github.com/fieldrt/fieldrt/internal/device"
	"github.com/fieldrt/fieldrt/internal/export"
	"github.com/fieldrt/fieldrt/internal/rng"
)

// participant bundles everything the connector needs to drive one
// device: the device itself, its motion, its current cell, its wake
// sequence, and the program it evaluates each round.
type participant[ID comparable] struct {
	dev      *device.Device[ID]
	mover    Mover
	cell     CellID
	sequence Sequence
	program  any // device.Program[ID], boxed to keep participant non-generic-method-bound
	power    float64
	rank     int
}

// Connector wires a Grid, a cell Index, a connection Predicate and a
// Scheduler together into the simulated network described in spec.md
// §4.7: it owns motion, membership, and message delivery, and drives
// devices' rounds from a single global event loop. Its locking
// discipline: the sender's mutex is held for its round and the delivery
// that follows, and each delivery goroutine locks exactly one target's
// mutex, never a second one, so concurrent delivery across disjoint
// targets can never deadlock.
type Connector[ID cmp.Ordered] struct {
	grid      *Grid
	index     *Index[ID]
	predicate Predicate[ID]
	scheduler *Scheduler[ID]
	clock     *clock.Simulated
	rng       rng.Source
	epsilon   float64
	log       *zap.Logger

	mu           sync.RWMutex
	participants map[ID]*participant[ID]

	sg singleflight.Group

	sentBytes int64
}

// NewConnector returns an empty connector over grid, using predicate to
// decide links and source for any randomness the predicate or the
// scheduling needs. epsilon is the safety margin added to every
// predicted cell-leave time, so that a device scheduled to leave at
// exactly its boundary is never delivered a stale neighbour list.
func NewConnector[ID cmp.Ordered](grid *Grid, predicate Predicate[ID], clk *clock.Simulated, source rng.Source, epsilon float64, log *zap.Logger) *Connector[ID] {
	if log == nil {
		log = zap.NewNop()
	}
	return &Connector[ID]{
		grid:         grid,
		index:        NewIndex[ID](grid),
		predicate:    predicate,
		scheduler:    NewScheduler[ID](),
		clock:        clk,
		rng:          source,
		epsilon:      epsilon,
		log:          log,
		participants: make(map[ID]*participant[ID]),
	}
}

// Join registers a device to be driven by the connector: it places the
// device in the grid at its mover's position at t0, and schedules its
// first round (per sequence) and its first predicted cell-leave event.
func Join[ID cmp.Ordered](c *Connector[ID], dev *device.Device[ID], mover Mover, sequence Sequence, program device.Program[ID], power float64, rank int, t0 float64) {
	x, y := mover.Position(t0)
	cid := c.index.Place(dev.ID, x, y)

	c.mu.Lock()
	c.participants[dev.ID] = &participant[ID]{
		dev: dev, mover: mover, cell: cid, sequence: sequence, program: program, power: power, rank: rank,
	}
	c.mu.Unlock()

	if t, ok := sequence.Next(t0); ok {
		c.scheduler.Schedule(t, EventRound, dev.ID)
	}
	c.scheduleLeave(dev.ID, t0)
}

// Device returns the device joined under id, or nil if no such device was
// ever joined. Used by callers that need to inspect a device's storage or
// last export after a run (see pkg/fieldrt.Simulation.Storage).
func (c *Connector[ID]) Device(id ID) *device.Device[ID] {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.participants[id]
	if !ok {
		return nil
	}
	return p.dev
}

// PositionOf returns the current position of a joined device, as tracked
// by its Mover, or ok=false if no such device was ever joined. Used to
// give eviction policies (see context.MinkowskiPolicy) a real spatial
// term without requiring Policy itself to know about geometry.
func (c *Connector[ID]) PositionOf(id ID) (x, y float64, ok bool) {
	c.mu.RLock()
	p, ok := c.participants[id]
	c.mu.RUnlock()
	if !ok {
		return 0, 0, false
	}
	x, y = p.mover.Position(c.clock.Now())
	return x, y, true
}

func (c *Connector[ID]) scheduleLeave(id ID, now float64) {
	c.mu.RLock()
	p, ok := c.participants[id]
	c.mu.RUnlock()
	if !ok {
		return
	}
	x, y := p.mover.Position(now)
	vx, vy := p.mover.Velocity()
	t := c.grid.LeaveTime(now, x, y, vx, vy)
	if math.IsInf(t, 1) {
		return
	}
	c.scheduler.Schedule(t+c.epsilon, EventCellLeave, id)
}

func (c *Connector[ID]) neighbours(cid CellID) []ID {
	key := strconv.FormatInt(int64(cid), 10)
	v, _, _ := c.sg.Do(key, func() (any, error) {
		return c.index.Neighbours(cid), nil
	})
	return v.([]ID)
}

// Run drains the scheduler until the queue is empty or until now
// exceeds deadline, returning the number of rounds completed.
func (c *Connector[ID]) Run(deadline float64) int {
	rounds := 0
	c.scheduler.Run(func(e *Event[ID]) bool {
		if e.Time > deadline {
			return false
		}
		c.clock.Advance(e.Time)
		switch e.Kind {
		case EventRound:
			c.runRound(e.Who, e.Time)
			rounds++
		case EventCellLeave:
			c.handleLeave(e.Who, e.Time)
		}
		return true
	})
	return rounds
}

func (c *Connector[ID]) handleLeave(id ID, now float64) {
	c.mu.RLock()
	p, ok := c.participants[id]
	c.mu.RUnlock()
	if !ok {
		return
	}
	x, y := p.mover.Position(now)
	newCell := c.index.Move(id, p.cell, x, y)
	c.mu.Lock()
	p.cell = newCell
	c.mu.Unlock()
	c.scheduleLeave(id, now)
}

func (c *Connector[ID]) runRound(id ID, now float64) {
	c.mu.RLock()
	p, ok := c.participants[id]
	c.mu.RUnlock()
	if !ok {
		return
	}

	p.dev.Mu.Lock()
	newExport, err := p.dev.Round(now, c.rng, p.program.(device.Program[ID]))
	if err != nil {
		p.dev.Mu.Unlock()
		c.log.Warn("round aborted", zap.Any("device", id), zap.Error(err))
	} else {
		c.deliver(p, id, now, newExport)
		p.dev.Mu.Unlock()
	}

	if t, ok := p.sequence.Next(now); ok {
		c.scheduler.Schedule(t, EventRound, id)
	}
}

// deliver pushes newExport to every currently linked neighbour. It is
// called with the sender's mutex held. The candidates from the sender's
// linked cells are fetched once; each candidate's predicate check and
// insert then runs in its own errgroup goroutine, which locks only that
// one target's mutex.
func (c *Connector[ID]) deliver(self *participant[ID], selfID ID, now float64, newExport *export.Export) {
	sx, sy := self.mover.Position(now)
	selfInfo := NodeInfo[ID]{ID: selfID, X: sx, Y: sy, Power: self.power, Rank: self.rank}

	candidates := c.neighbours(self.cell)

	var wg errgroup.Group
	var mu sync.Mutex
	var delivered int
	for _, other := range candidates {
		other := other
		if other == selfID {
			continue
		}
		wg.Go(func() error {
			c.mu.RLock()
			target, ok := c.participants[other]
			c.mu.RUnlock()
			if !ok {
				return nil
			}
			tx, ty := target.mover.Position(now)
			targetInfo := NodeInfo[ID]{ID: other, X: tx, Y: ty, Power: target.power, Rank: target.rank}
			if !c.predicate.Connect(selfInfo, targetInfo) {
				return nil
			}

			target.dev.Mu.Lock()
			metric := target.dev.Policy.Build(other, now, selfID, now)
			target.dev.Context.Insert(selfID, newExport, metric, target.dev.Threshold, target.dev.HoodSize)
			target.dev.Mu.Unlock()

			mu.Lock()
			delivered++
			mu.Unlock()
			return nil
		})
	}
	_ = wg.Wait()
	c.log.Debug("delivered export", zap.Any("from", selfID), zap.Int("count", delivered))
}
