package control_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/deepaucksharma/pidctl/internal/actuator"
	"github.com/deepaucksharma/pidctl/internal/control"
)

// recordingDriver remembers the options of the last RelayOn call.
type recordingDriver struct {
	*actuator.MemoryDriver
	lastOn actuator.RelayOnOptions
}

func (r *recordingDriver) RelayOn(ctx context.Context, id string, opts actuator.RelayOnOptions) error {
	r.lastOn = opts
	return r.MemoryDriver.RelayOn(ctx, id, opts)
}

func TestArbiter_RelayDurationClamp(t *testing.T) {
	driver := &recordingDriver{MemoryDriver: actuator.NewMemoryDriver()}
	a := control.NewArbiter(driver, zaptest.NewLogger(t))

	cfg := control.Config{
		Direction:        control.DirectionRaise,
		OutputMode:       control.OutputModeRelay,
		RaiseActuatorID:  "heater",
		RaiseMinDuration: 1,
		RaiseMaxDuration: 10,
	}

	a.Apply(context.Background(), cfg, 25.0)

	state, err := driver.RelayState(context.Background(), "heater")
	require.NoError(t, err)
	assert.Equal(t, actuator.StateOn, state)
	// u = 25 is clamped to RaiseMaxDuration = 10 seconds.
	assert.Equal(t, 10*time.Second, driver.lastOn.Duration)
}

func TestArbiter_Interlock_BothDirections(t *testing.T) {
	driver := actuator.NewMemoryDriver()
	a := control.NewArbiter(driver, zaptest.NewLogger(t))

	cfg := control.Config{
		Direction:       control.DirectionBoth,
		OutputMode:      control.OutputModeRelay,
		RaiseActuatorID: "raise",
		LowerActuatorID: "lower",
		RaiseMaxDuration: 10,
		LowerMaxDuration: 10,
	}

	// lower currently on
	require.NoError(t, driver.RelayOn(context.Background(), "lower", actuator.RelayOnOptions{Duration: time.Minute}))

	a.Apply(context.Background(), cfg, 3.0)

	lowerState, _ := driver.RelayState(context.Background(), "lower")
	assert.Equal(t, actuator.StateOff, lowerState)
}

func TestArbiter_PWM_DutyCap(t *testing.T) {
	driver := actuator.NewMemoryDriver()
	a := control.NewArbiter(driver, zaptest.NewLogger(t))

	cfg := control.Config{
		Direction:       control.DirectionRaise,
		OutputMode:      control.OutputModePWM,
		RaiseActuatorID: "heater",
		Period:          30 * time.Second,
	}

	a.Apply(context.Background(), cfg, 100.0) // u > period(30) -> duty = 100
	assert.InDelta(t, 100.0, driver.DutyCycle("heater"), 1e-9)

	a.Apply(context.Background(), cfg, 15.0) // duty(period/2) = 50
	assert.InDelta(t, 50.0, driver.DutyCycle("heater"), 1e-9)
}

func TestArbiter_InvalidMeasurement_CommandsOff(t *testing.T) {
	driver := actuator.NewMemoryDriver()
	a := control.NewArbiter(driver, zaptest.NewLogger(t))

	cfg := control.Config{
		Direction:       control.DirectionBoth,
		OutputMode:      control.OutputModeRelay,
		RaiseActuatorID: "raise",
		LowerActuatorID: "lower",
	}

	require.NoError(t, driver.RelayOn(context.Background(), "raise", actuator.RelayOnOptions{Duration: time.Minute}))

	a.Off(context.Background(), cfg)

	raiseState, _ := driver.RelayState(context.Background(), "raise")
	lowerState, _ := driver.RelayState(context.Background(), "lower")
	assert.Equal(t, actuator.StateOff, raiseState)
	assert.Equal(t, actuator.StateOff, lowerState)
}
