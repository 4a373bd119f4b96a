// Package fieldrt is the public facade of the runtime: it ties together
// the aggregate-computing core (internal/aggregate, internal/context,
// internal/export, internal/trace, internal/field) and the simulated
// connector (internal/sim) behind one configuration surface, the way
// arena-cache's pkg package fronts its internal shard/loader machinery.
//
// © 2025 fieldrt authors. MIT License.
package fieldrt

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/fieldrt/fieldrt/internal/sim"
)

// Option configures a Simulation. Options never allocate unless
// strictly necessary — they capture pointers to external objects
// (registry, logger, schedule) the same way arena-cache's Option does.
type Option func(*config)

// config bundles every knob that influences simulation behaviour. All
// fields are immutable once the Simulation is constructed.
type config struct {
	hoodSize  int
	threshold float64
	epsilon   float64
	seed      int64

	predicateKind  predicateKind
	radius         float64
	halfRadius     float64
	powerRatio     float64
	hierarchyInner float64
	hierarchyOuter float64

	policyKind contextPolicyKind
	schedule   sim.Sequence

	useMinkowski         bool
	minkowskiSpaceWeight float64

	registry *prometheus.Registry
	logger   *zap.Logger

	recordPath string // optional badger-backed export log, see record.go
}

type predicateKind int

const (
	predicateClique predicateKind = iota
	predicateFixed
	predicatePowered
	predicateRadial
	predicateHierarchical
)

type contextPolicyKind int

const (
	policyOnline contextPolicyKind = iota
	policyBatched
)

func defaultConfig() *config {
	return &config{
		hoodSize:      32,
		threshold:     10.0,
		epsilon:       1e-6,
		seed:          1,
		predicateKind: predicateClique,
		policyKind:    policyOnline,
		schedule:      sim.Periodic(1.0),
		logger:        zap.NewNop(),
	}
}

// WithHoodSize bounds the number of retained neighbour entries per
// device context, evicted by the configured retention policy once
// exceeded.
func WithHoodSize(n int) Option {
	return func(c *config) { c.hoodSize = n }
}

// WithThreshold sets the message-age threshold past which a neighbour
// entry is discarded during Context.Unfreeze, regardless of hood size.
func WithThreshold(t float64) Option {
	return func(c *config) { c.threshold = t }
}

// WithRetainPolicy switches the eviction policy to the message-age-only
// RetainPolicy. This is the default.
func WithRetainPolicy() Option {
	return func(c *config) { c.useMinkowski = false }
}

// WithMinkowskiSpace weights eviction by spatial distance in addition to
// message age, with the given space/time trade-off weight.
func WithMinkowskiSpace(spaceWeight float64) Option {
	return func(c *config) {
		c.useMinkowski = true
		c.minkowskiSpaceWeight = spaceWeight
	}
}

// WithBatchedContext switches the context implementation from the
// online max-heap variant to the freeze-time sort-and-truncate variant.
// Both implement identical eviction semantics; Batched trades per-Insert
// cost for a cheaper Freeze when hoodSize is large relative to traffic.
func WithBatchedContext() Option {
	return func(c *config) { c.policyKind = policyBatched }
}

// WithSeed fixes the pseudo-random seed used by connection predicates
// and any program invoking the runtime's random-draw primitive.
func WithSeed(seed int64) Option {
	return func(c *config) { c.seed = seed }
}

// WithEpsilon sets the safety margin added to predicted cell-boundary
// crossing times, avoiding races between a device's motion and the
// connector's membership bookkeeping.
func WithEpsilon(eps float64) Option {
	return func(c *config) { c.epsilon = eps }
}

// WithClique connects every device to every other device unconditionally.
// This is the default connection predicate.
func WithClique() Option {
	return func(c *config) { c.predicateKind = predicateClique }
}

// WithFixedRadius connects devices within a fixed Euclidean radius.
func WithFixedRadius(radius float64) Option {
	return func(c *config) {
		c.predicateKind = predicateFixed
		c.radius = radius
	}
}

// WithPoweredRadius connects devices within radius scaled by the
// geometric mean of their per-device power attributes.
func WithPoweredRadius(radius, powerRatio float64) Option {
	return func(c *config) {
		c.predicateKind = predicatePowered
		c.radius = radius
		c.powerRatio = powerRatio
	}
}

// WithRadial connects devices probabilistically: impossible beyond
// radius, decaying smoothly with distance within it, 0.5 at halfRadius.
func WithRadial(radius, halfRadius float64) Option {
	return func(c *config) {
		c.predicateKind = predicateRadial
		c.radius = radius
		c.halfRadius = halfRadius
	}
}

// WithHierarchical connects same-rank devices within outerRadius and
// devices one rank apart within the shorter innerRadius; devices more
// than one rank apart never connect.
func WithHierarchical(innerRadius, outerRadius float64) Option {
	return func(c *config) {
		c.predicateKind = predicateHierarchical
		c.hierarchyInner = innerRadius
		c.hierarchyOuter = outerRadius
	}
}

// WithSchedule overrides the default once-per-time-unit round schedule
// every device runs on.
func WithSchedule(s sim.Sequence) Option {
	return func(c *config) { c.schedule = s }
}

// WithMetrics enables Prometheus metrics collection for the simulation.
// Passing nil disables metrics (default).
func WithMetrics(reg *prometheus.Registry) Option {
	return func(c *config) { c.registry = reg }
}

// WithLogger plugs an external zap.Logger. The runtime never logs on the
// per-round hot path above Debug level; only state transitions and
// aborted rounds are emitted.
func WithLogger(l *zap.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithRecordLog enables an append-only Badger-backed log at path with one
// summary entry (device, round time, typed-key count) per export produced
// during the run. This is strictly an inspection aid —
// see record.go — never consulted by the round procedure itself.
func WithRecordLog(path string) Option {
	return func(c *config) { c.recordPath = path }
}

func applyOptions(cfg *config, opts []Option) error {
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.hoodSize <= 0 {
		return errInvalidHoodSize
	}
	if cfg.threshold <= 0 {
		return errInvalidThreshold
	}
	if cfg.epsilon <= 0 {
		return errInvalidEpsilon
	}
	return nil
}

var (
	errInvalidHoodSize  = errors.New("fieldrt: hood size must be > 0")
	errInvalidThreshold = errors.New("fieldrt: threshold must be > 0")
	errInvalidEpsilon   = errors.New("fieldrt: epsilon must be > 0")
)
