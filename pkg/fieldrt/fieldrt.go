package fieldrt

import (
	"cmp"
	"fmt"
	"math"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fieldrt/fieldrt/internal/aggregate"
	"github.com/fieldrt/fieldrt/internal/clock"
	ctxpkg "github.com/fieldrt/fieldrt/internal/context"
	"github.com/fieldrt/fieldrt/internal/device"
	"github.com/fieldrt/fieldrt/internal/rng"
	"github.com/fieldrt/fieldrt/internal/sim"
)

// Simulation is a complete simulated aggregate-computing network: a
// clock, a connector, and every joined device. It is the top-level type
// applications construct via New and drive via Run, the way arena-cache's
// Cache[K,V] is the single entry point fronting its internal shard/arena
// machinery.
type Simulation[ID cmp.Ordered] struct {
	cfg       *config
	clock     *clock.Simulated
	connector *sim.Connector[ID]
	rng       rng.Source
	metrics   *metricsSink
	recorder  *recorder
	runID     uuid.UUID

	log *zap.Logger
}

// RunID returns the simulation's unique run identifier, generated once at
// New and attached to every log line this simulation emits — the same
// field lets log lines from multiple concurrent Simulation runs in one
// process (e.g. a benchmark sweep) be told apart.
func (s *Simulation[ID]) RunID() uuid.UUID { return s.runID }

// New constructs a Simulation starting at time t0, applying opts over
// sensible defaults (hood size 32, threshold 10, clique connectivity,
// once-per-time-unit rounds).
func New[ID cmp.Ordered](t0 float64, opts ...Option) (*Simulation[ID], error) {
	cfg := defaultConfig()
	if err := applyOptions(cfg, opts); err != nil {
		return nil, err
	}

	runID := uuid.New()
	cfg.logger = cfg.logger.With(zap.String("run_id", runID.String()))

	clk := clock.NewSimulated(t0)
	source := rng.New(cfg.seed)

	predicate, err := buildPredicate[ID](cfg, source)
	if err != nil {
		return nil, err
	}

	radius := cfg.radius
	if cfg.predicateKind == predicateHierarchical {
		radius = cfg.hierarchyOuter
	}
	if radius <= 0 {
		radius = 1.0 // clique/degenerate topologies still need a finite cell side
	}
	grid := sim.NewGrid(radius)

	connector := sim.NewConnector[ID](grid, predicate, clk, source, cfg.epsilon, cfg.logger)

	m, err := newMetricsSink(cfg.registry)
	if err != nil {
		return nil, fmt.Errorf("fieldrt: metrics: %w", err)
	}

	var rec *recorder
	if cfg.recordPath != "" {
		rec, err = newRecorder(cfg.recordPath)
		if err != nil {
			return nil, fmt.Errorf("fieldrt: record log: %w", err)
		}
	}

	return &Simulation[ID]{
		cfg:       cfg,
		clock:     clk,
		connector: connector,
		rng:       source,
		metrics:   m,
		recorder:  rec,
		runID:     runID,
		log:       cfg.logger,
	}, nil
}

func buildPredicate[ID cmp.Ordered](cfg *config, source rng.Source) (sim.Predicate[ID], error) {
	switch cfg.predicateKind {
	case predicateClique:
		return sim.Clique[ID](), nil
	case predicateFixed:
		return sim.Fixed[ID](cfg.radius), nil
	case predicatePowered:
		return sim.Powered[ID](cfg.radius), nil
	case predicateRadial:
		return sim.Radial[ID](cfg.radius, cfg.halfRadius, source), nil
	case predicateHierarchical:
		return sim.Hierarchical[ID](cfg.hierarchyInner, cfg.hierarchyOuter), nil
	default:
		return nil, fmt.Errorf("fieldrt: unknown predicate kind %d", cfg.predicateKind)
	}
}

// Join creates a device at the given id, running program every time its
// schedule fires, moving according to mover, with the given power and
// rank attributes (consulted only by the Powered and Hierarchical
// predicates).
func (s *Simulation[ID]) Join(id ID, mover sim.Mover, program device.Program[ID], power float64, rank int) {
	policy := s.buildPolicy(id)
	ctx := s.buildContext(policy)
	dev := device.New[ID](id, ctx, s.cfg.hoodSize, s.cfg.threshold, policy, s.log.With(zap.Any("device", id)))
	s.metrics.observeJoin()
	sim.Join[ID](s.connector, dev, mover, s.cfg.schedule, s.wrapProgram(program), power, rank, s.clock.Now())
}

func (s *Simulation[ID]) wrapProgram(program device.Program[ID]) device.Program[ID] {
	if s.recorder == nil && s.metrics == nil {
		return program
	}
	return func(env *aggregate.Env[ID]) error {
		err := program(env)
		s.metrics.observeRound(err == nil)
		if err == nil && s.recorder != nil {
			s.recorder.record(fmt.Sprint(env.Self), env.Now, env.Export)
		}
		return err
	}
}

func (s *Simulation[ID]) buildPolicy(self ID) ctxpkg.Policy[ID] {
	if s.cfg.useMinkowski {
		return ctxpkg.NewMinkowskiPolicy[ID](s.cfg.threshold, s.cfg.minkowskiSpaceWeight, s.distance)
	}
	return ctxpkg.NewRetainPolicy[ID](s.cfg.threshold)
}

// distance returns the current Euclidean separation between two joined
// devices, as tracked by their Movers, for MinkowskiPolicy's spatial
// eviction term. A device not yet registered with the connector (self,
// queried while its own Join call is still constructing it) contributes
// zero distance rather than failing; by the time Policy.Build actually
// runs, every device it is asked about has been joined.
func (s *Simulation[ID]) distance(a, b ID) float64 {
	ax, ay, aok := s.connector.PositionOf(a)
	bx, by, bok := s.connector.PositionOf(b)
	if !aok || !bok {
		return 0
	}
	dx, dy := ax-bx, ay-by
	return math.Sqrt(dx*dx + dy*dy)
}

func (s *Simulation[ID]) buildContext(policy ctxpkg.Policy[ID]) ctxpkg.Context[ID] {
	switch s.cfg.policyKind {
	case policyBatched:
		return ctxpkg.NewBatched[ID]()
	default:
		return ctxpkg.NewOnline[ID]()
	}
}

// Run drains every scheduled round and cell-leave event up to
// deadline, returning the number of rounds completed network-wide.
func (s *Simulation[ID]) Run(deadline float64) int {
	return s.connector.Run(deadline)
}

// Now returns the simulation's current logical time.
func (s *Simulation[ID]) Now() float64 { return s.clock.Now() }

// Storage returns the persistent local storage of the joined device id,
// or nil if no such device was ever joined — a post-hoc inspection hook
// for callers (tests, demos) that want to read back a value a program
// recorded with aggregate.StorageSet, without threading it through the
// export wire format.
func (s *Simulation[ID]) Storage(id ID) *aggregate.Storage {
	if dev := s.connector.Device(id); dev != nil {
		return dev.Storage
	}
	return nil
}

// Close releases the simulation's recorder, if one was configured.
func (s *Simulation[ID]) Close() error {
	if s.recorder != nil {
		return s.recorder.Close()
	}
	return nil
}
