package sim

// Mover reports a device's position and velocity as a function of
// simulated time, decoupling the connector's geometry from any one
// motion model.
type Mover interface {
	// Position returns the (x, y) coordinates at time t.
	Position(t float64) (x, y float64)
	// Velocity returns the current (vx, vy), used only to predict the
	// next cell-boundary crossing.
	Velocity() (vx, vy float64)
}

// Stationary is a Mover that never moves.
type Stationary struct {
	X, Y float64
}

func (s Stationary) Position(float64) (float64, float64) { return s.X, s.Y }
func (s Stationary) Velocity() (float64, float64)        { return 0, 0 }

// LinearMover moves at a constant velocity from a reference position
// fixed at reference time T0.
type LinearMover struct {
	X0, Y0 float64
	Vx, Vy float64
	T0     float64
}

// NewLinearMover returns a mover at (x0, y0) at time t0, translating at
// constant velocity (vx, vy) thereafter.
func NewLinearMover(x0, y0, vx, vy, t0 float64) *LinearMover {
	return &LinearMover{X0: x0, Y0: y0, Vx: vx, Vy: vy, T0: t0}
}

func (m *LinearMover) Position(t float64) (float64, float64) {
	dt := t - m.T0
	return m.X0 + m.Vx*dt, m.Y0 + m.Vy*dt
}

func (m *LinearMover) Velocity() (float64, float64) { return m.Vx, m.Vy }
