package control

import "errors"

// Error kinds from the error-handling design: each is non-fatal to the
// control loop except where noted. They exist so callers (and tests) can
// classify a tick's outcome with errors.Is rather than string matching.
var (
	// ErrTransientMeasurement covers a store being unreachable or an empty
	// read window. The loop continues; actuators are commanded off at
	// arbitration because the last measurement is marked invalid.
	ErrTransientMeasurement = errors.New("control: transient measurement error")

	// ErrConfigResolution covers a missing sensor or method row. The
	// controller enters a degraded state (continues ticking on stale
	// config) rather than exiting.
	ErrConfigResolution = errors.New("control: config resolution error")

	// ErrActuatorCommand covers a failed relay/PWM dispatch. It is logged
	// and retried on the next tick; it never blocks the loop.
	ErrActuatorCommand = errors.New("control: actuator command failed")
)
