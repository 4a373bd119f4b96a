// Package rng provides the pluggable random source the aggregate core and
// connector depend on: uniform int/real draws from a seedable generator.
// spec.md §1 lists this as an external collaborator interface, not a
// concrete statistical-distribution library — the runtime core never
// reaches for a general-purpose distribution package, consistent with
// spec.md's Non-goals.
//
// © 2025 fieldrt authors. MIT License.
package rng

import "math/rand"

// Source is the interface the runtime depends on: uniform draws plus
// seeding, so a program or a test can swap in a deterministic generator.
type Source interface {
	// Float64 returns a uniform value in [0, 1).
	Float64() float64
	// IntN returns a uniform value in [0, n).
	IntN(n int) int
	// Seed reseeds the generator deterministically.
	Seed(seed int64)
}

// mathRand adapts math/rand.Rand to Source.
type mathRand struct {
	r *rand.Rand
}

// New returns a Source seeded with seed, backed by math/rand — the
// standard-library generator is sufficient here since spec.md explicitly
// keeps statistical/distribution libraries out of the core's scope; only
// uniform int/real draws are needed.
func New(seed int64) Source {
	return &mathRand{r: rand.New(rand.NewSource(seed))}
}

func (m *mathRand) Float64() float64 { return m.r.Float64() }
func (m *mathRand) IntN(n int) int   { return m.r.Intn(n) }
func (m *mathRand) Seed(seed int64)  { m.r.Seed(seed) }
