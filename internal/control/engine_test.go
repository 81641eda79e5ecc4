package control_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/deepaucksharma/pidctl/internal/control"
)

func TestEngine_BasicControlStep(t *testing.T) {
	// period = 30, Kp=2, Ki=0.5, Kd=1, integrator in [-100,100],
	// setpoint=25, measurement=20 (error=5).
	e := control.NewEngine(2, 0.5, 1, -100, 100)
	u := e.Step(25, 20)

	p, i, d := e.Terms()
	assert.InDelta(t, 10.0, p, 1e-9)
	assert.InDelta(t, 2.5, i, 1e-9)
	assert.InDelta(t, 5.0, d, 1e-9)
	assert.InDelta(t, 17.5, u, 1e-9)

	integrator, _, _ := e.State()
	assert.InDelta(t, 5.0, integrator, 1e-9)
}

func TestEngine_IntegratorClamp(t *testing.T) {
	e := control.NewEngine(1, 1, 0, -100, 3)

	e.Step(4, 0) // error 4
	e.Step(4, 0) // error 4 again

	integrator, _, _ := e.State()
	assert.InDelta(t, 3.0, integrator, 1e-9)

	_, i, _ := e.Terms()
	assert.InDelta(t, 3.0, i, 1e-9) // Ki=1 * integrator(3)
}

func TestEngine_Linearity(t *testing.T) {
	e1 := control.NewEngine(2, 0, 0, -1000, 1000)
	e2 := control.NewEngine(2, 0, 0, -1000, 1000)

	u1 := e1.Step(10, 0) // error 10
	u2 := e2.Step(20, 0) // error 20, double

	assert.InDelta(t, u1*2, u2, 1e-9)
}

func TestEngine_DerivativeLaw(t *testing.T) {
	e := control.NewEngine(0, 0, 2, -1000, 1000)
	e.Step(10, 0) // error 10, derivator 0 -> D = 2*(10-0) = 20
	_, _, d1 := e.Terms()
	assert.InDelta(t, 20.0, d1, 1e-9)

	e.Step(15, 0) // error 15, derivator 10 -> D = 2*(15-10) = 10
	_, _, d2 := e.Terms()
	assert.InDelta(t, 10.0, d2, 1e-9)
}

func TestEngine_ResetZeroesIntegratorAndDerivator(t *testing.T) {
	e := control.NewEngine(1, 1, 1, -1000, 1000)
	e.Step(10, 0)
	e.Reset()

	integrator, derivator, _ := e.State()
	assert.Equal(t, 0.0, integrator)
	assert.Equal(t, 0.0, derivator)

	// next step uses the zeroed state
	e.Step(5, 0)
	p, i, d := e.Terms()
	assert.InDelta(t, 5.0, p, 1e-9)
	assert.InDelta(t, 5.0, i, 1e-9) // integrator now 5
	assert.InDelta(t, 5.0, d, 1e-9) // derivator was 0
}
