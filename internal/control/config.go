// Package control implements the discrete PID control loop: the supervisor
// that drives a periodic tick, the PID recurrence itself, and the output
// arbiter that turns a control variable into actuator commands.
package control

import "time"

// Direction selects which actuators a controller is permitted to drive.
type Direction string

const (
	DirectionRaise Direction = "raise"
	DirectionLower Direction = "lower"
	DirectionBoth  Direction = "both"
)

// OutputMode selects how the control variable is translated into an
// actuator command.
type OutputMode string

const (
	OutputModeRelay OutputMode = "relay"
	OutputModePWM   OutputMode = "pwm"
)

// Config is the immutable-per-activation PID configuration. It is reloaded
// wholesale by Supervisor.ReloadFromConfig.
type Config struct {
	ID   string `json:"id" yaml:"id"`
	Name string `json:"name" yaml:"name"`

	Kp float64 `json:"kp" yaml:"kp"`
	Ki float64 `json:"ki" yaml:"ki"`
	Kd float64 `json:"kd" yaml:"kd"`

	Period time.Duration `json:"period" yaml:"period"`

	IntegratorMin float64 `json:"integrator_min" yaml:"integrator_min"`
	IntegratorMax float64 `json:"integrator_max" yaml:"integrator_max"`

	Direction  Direction  `json:"direction" yaml:"direction"`
	OutputMode OutputMode `json:"output_mode" yaml:"output_mode"`

	DefaultSetpoint float64 `json:"default_setpoint" yaml:"default_setpoint"`
	MethodID        string  `json:"method_id,omitempty" yaml:"method_id,omitempty"`

	RaiseActuatorID     string        `json:"raise_actuator_id,omitempty" yaml:"raise_actuator_id,omitempty"`
	RaiseMinDuration     float64       `json:"raise_min_duration" yaml:"raise_min_duration"`
	RaiseMaxDuration     float64       `json:"raise_max_duration" yaml:"raise_max_duration"`
	RaiseMinOffDuration  time.Duration `json:"raise_min_off_duration" yaml:"raise_min_off_duration"`

	LowerActuatorID     string        `json:"lower_actuator_id,omitempty" yaml:"lower_actuator_id,omitempty"`
	LowerMinDuration     float64       `json:"lower_min_duration" yaml:"lower_min_duration"`
	LowerMaxDuration     float64       `json:"lower_max_duration" yaml:"lower_max_duration"`
	LowerMinOffDuration  time.Duration `json:"lower_min_off_duration" yaml:"lower_min_off_duration"`

	MaxMeasureAge time.Duration `json:"max_measure_age" yaml:"max_measure_age"`

	MeasurementKind string `json:"measurement_kind" yaml:"measurement_kind"`
	SensorID        string `json:"sensor_id" yaml:"sensor_id"`
	SensorPeriod    time.Duration `json:"sensor_period" yaml:"sensor_period"`

	Activated bool `json:"activated" yaml:"activated"`
	Held      bool `json:"held" yaml:"held"`
	Paused    bool `json:"paused" yaml:"paused"`
}

// Sensor is the minimal sensor record the Measurement Source needs.
type Sensor struct {
	UniqueID string        `json:"unique_id" yaml:"unique_id"`
	Period   time.Duration `json:"period" yaml:"period"`
}

// lookbackWindow implements the §4.3 rule:
// max(60s, floor(1.5 * sensor_period)).
func lookbackWindow(sensorPeriod time.Duration) time.Duration {
	scaled := (sensorPeriod * 3 / 2).Truncate(time.Second)
	if scaled < 60*time.Second {
		return 60 * time.Second
	}
	return scaled
}
