// Package device implements the per-device round state machine and round
// procedure of spec.md §4.6: Idle -> Receiving -> Running -> Sending ->
// Idle.
//
// © 2025 fieldrt authors. MIT License.
package device

import (
	"cmp"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/fieldrt/fieldrt/internal/aggregate"
	ctxpkg "github.com/fieldrt/fieldrt/internal/context"
	"github.com/fieldrt/fieldrt/internal/export"
	"github.com/fieldrt/fieldrt/internal/rng"
	"github.com/fieldrt/fieldrt/internal/trace"
)

// State is one of the four device round states from spec.md §4.6.
type State int32

const (
	Idle State = iota
	Receiving
	Running
	Sending
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Receiving:
		return "receiving"
	case Running:
		return "running"
	case Sending:
		return "sending"
	default:
		return "unknown"
	}
}

// Program is the field-calculus program a device evaluates every round.
type Program[ID cmp.Ordered] func(env *aggregate.Env[ID]) error

// Device owns all round-to-round state for one network participant: its
// context (and the mutex serialising access to it, per spec.md §5), its
// persistent storage, and its current round state. Device owns its own
// mutex; the connector's send step holds the sender's mutex and each of
// its delivery goroutines then acquires a single target device's mutex —
// never two target mutexes in one goroutine — which is deadlock-free
// because the lock order is always (sender, single target).
type Device[ID cmp.Ordered] struct {
	Mu      sync.Mutex
	ID      ID
	Context ctxpkg.Context[ID]
	Storage *aggregate.Storage

	HoodSize  int
	Threshold float64
	Policy    ctxpkg.Policy[ID]

	state State
	log   *zap.Logger

	lastExport *export.Export
}

// New constructs a Device with an empty context and storage.
func New[ID cmp.Ordered](id ID, ctx ctxpkg.Context[ID], hoodSize int, threshold float64, policy ctxpkg.Policy[ID], log *zap.Logger) *Device[ID] {
	if log == nil {
		log = zap.NewNop()
	}
	return &Device[ID]{
		ID:        id,
		Context:   ctx,
		Storage:   aggregate.NewStorage(),
		HoodSize:  hoodSize,
		Threshold: threshold,
		Policy:    policy,
		state:     Idle,
		log:       log,
	}
}

// State returns the device's current round state.
func (d *Device[ID]) State() State { return d.state }

func (d *Device[ID]) setState(s State) {
	d.log.Debug("device state transition", zap.Any("device", d.ID), zap.Stringer("from", d.state), zap.Stringer("to", s))
	d.state = s
}

// Round runs one full round procedure at time now, per spec.md §4.6:
// freeze the context, reset the trace, run program to completion, install
// the produced export as the self entry with a fresh metric, unfreeze, and
// return the new export for the connector to schedule outbound.
//
// Round must be called with Mu held by the caller (the simulator's
// dispatcher) for the duration of the call, so that concurrent deliveries
// from the connector never race with a round in progress.
func (d *Device[ID]) Round(now float64, source rng.Source, program Program[ID]) (*export.Export, error) {
	d.setState(Receiving)
	d.Context.Freeze(d.HoodSize, d.ID)

	d.setState(Running)
	tr := trace.New()
	newExport := export.New()

	env := &aggregate.Env[ID]{
		Trace:   tr,
		Context: d.Context,
		Self:    d.ID,
		Now:     now,
		Export:  newExport,
		RNG:     source,
		Storage: d.Storage,
	}

	if err := runProgram(d, env, program); err != nil {
		d.setState(Idle)
		return nil, err
	}

	d.setState(Sending)
	metric := d.Policy.Build(d.ID, now, d.ID, now)
	d.Context.ReplaceSelf(d.ID, newExport, metric)
	d.Context.Unfreeze(now, d.Policy, d.Threshold)
	d.lastExport = newExport

	d.setState(Idle)
	return newExport, nil
}

// runProgram executes program, converting any panic (such as one raised by
// export.Get's alignment checks) into a structured error so the caller can
// abort just this device's round and continue the simulation, per spec.md
// §7's propagation policy. An error the program returns itself (such as
// field.Fold's ErrEmptyFold) is passed through unchanged.
func runProgram[ID cmp.Ordered](d *Device[ID], env *aggregate.Env[ID], program Program[ID]) (err error) {
	defer func() {
		if r := recover(); r != nil {
			if e, ok := r.(error); ok {
				err = fmt.Errorf("device %v: round aborted: %w", d.ID, e)
				return
			}
			err = fmt.Errorf("device %v: round aborted: %v", d.ID, r)
		}
	}()
	return program(env)
}

// LastExport returns the export produced by the device's most recent
// completed round, or nil before the first round.
func (d *Device[ID]) LastExport() *export.Export {
	return d.lastExport
}
