package control

import "sync"

// Engine is the discrete P+I+D recurrence described in spec §4.2. Unlike the
// teacher's Controller.Compute (internal/control/pid/controller.go in the
// reference tree), the integrator here is a pure per-tick sum — not
// multiplied by a measured dt, and not back-calculated on saturation. That
// is the contract: Ki is "per tick", and anti-windup is bound-clamp only.
type Engine struct {
	mu sync.Mutex

	kp, ki, kd float64

	integratorMin float64
	integratorMax float64

	integrator float64
	derivator  float64 // previous error

	pValue, iValue, dValue float64
	lastOutput             float64
}

// NewEngine builds an Engine with the given gains and integrator bounds.
func NewEngine(kp, ki, kd, integratorMin, integratorMax float64) *Engine {
	return &Engine{
		kp:            kp,
		ki:            ki,
		kd:            kd,
		integratorMin: integratorMin,
		integratorMax: integratorMax,
	}
}

// Step runs one PID recurrence step and returns the control variable u.
//
//	error      = setpoint - measurement
//	P          = Kp * error
//	integrator = clamp(integrator + error, min, max)
//	I          = Ki * integrator
//	D          = Kd * (error - derivator)
//	derivator  = error
//	output     = P + I + D
func (e *Engine) Step(setpoint, measurement float64) float64 {
	e.mu.Lock()
	defer e.mu.Unlock()

	err := setpoint - measurement

	e.pValue = e.kp * err

	e.integrator += err
	if e.integrator > e.integratorMax {
		e.integrator = e.integratorMax
	} else if e.integrator < e.integratorMin {
		e.integrator = e.integratorMin
	}
	e.iValue = e.ki * e.integrator

	e.dValue = e.kd * (err - e.derivator)
	e.derivator = err

	e.lastOutput = e.pValue + e.iValue + e.dValue
	return e.lastOutput
}

// Reset zeros the integrator and derivator. Called whenever the setpoint is
// changed manually (§4.1 set_setpoint) so that the next Step starts clean.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.integrator = 0
	e.derivator = 0
}

// SetIntegrator overrides the integrator accumulator directly (set_integrator RPC).
func (e *Engine) SetIntegrator(v float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.integrator = v
}

// SetDerivator overrides the derivator (previous error) directly (set_derivator RPC).
func (e *Engine) SetDerivator(v float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.derivator = v
}

// SetGains updates Kp, Ki, Kd in place (set_kp/i/d RPCs).
func (e *Engine) SetGains(kp, ki, kd float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.kp, e.ki, e.kd = kp, ki, kd
}

// SetIntegratorBounds updates the anti-windup clamp range in place, used by
// reload_from_config when a reloaded config changes integrator_min/max.
func (e *Engine) SetIntegratorBounds(min, max float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.integratorMin, e.integratorMax = min, max
}

// State returns the engine's current integrator, derivator and last output,
// primarily for diagnostics and tests.
func (e *Engine) State() (integrator, derivator, lastOutput float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.integrator, e.derivator, e.lastOutput
}

// Terms returns the last computed P, I, D components.
func (e *Engine) Terms() (p, i, d float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pValue, e.iValue, e.dValue
}
