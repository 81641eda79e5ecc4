package control

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/deepaucksharma/pidctl/internal/actuator"
)

// Arbiter maps a control variable u to actuator commands per spec §4.5. It
// is invoked only after a valid measurement; on an invalid measurement the
// caller must instead call Off.
type Arbiter struct {
	driver actuator.Driver
	logger *zap.Logger
}

// NewArbiter builds an Arbiter over the given actuator driver.
func NewArbiter(driver actuator.Driver, logger *zap.Logger) *Arbiter {
	return &Arbiter{driver: driver, logger: logger}
}

// dutyFromU implements "duty(u) = 100 if u > period else (u/period)*100".
func dutyFromU(u, period float64) float64 {
	if period <= 0 {
		return 0
	}
	if u > period {
		return 100
	}
	return (u / period) * 100
}

func clampDuty(duty, min, max float64) float64 {
	if max > 0 && duty > max {
		return max
	}
	if min > 0 && duty < min {
		return min
	}
	return duty
}

// Off commands any configured actuators off. Used when the last measurement
// is invalid.
func (a *Arbiter) Off(ctx context.Context, cfg Config) {
	if cfg.RaiseActuatorID != "" && (cfg.Direction == DirectionRaise || cfg.Direction == DirectionBoth) {
		if err := a.driver.RelayOff(ctx, cfg.RaiseActuatorID, false); err != nil {
			a.logActuatorErr(cfg, cfg.RaiseActuatorID, "off", err)
		}
	}
	if cfg.LowerActuatorID != "" && (cfg.Direction == DirectionLower || cfg.Direction == DirectionBoth) {
		if err := a.driver.RelayOff(ctx, cfg.LowerActuatorID, false); err != nil {
			a.logActuatorErr(cfg, cfg.LowerActuatorID, "off", err)
		}
	}
}

// Apply dispatches the control variable u to the configured actuators. The
// dispatch order within one tick is: interlock-off, then the on/off/duty
// command for the active direction, per spec §5 ordering guarantee.
func (a *Arbiter) Apply(ctx context.Context, cfg Config, u float64) {
	periodSeconds := cfg.Period.Seconds()

	if (cfg.Direction == DirectionRaise || cfg.Direction == DirectionBoth) && cfg.RaiseActuatorID != "" {
		a.applyRaise(ctx, cfg, u, periodSeconds)
	}
	if (cfg.Direction == DirectionLower || cfg.Direction == DirectionBoth) && cfg.LowerActuatorID != "" {
		a.applyLower(ctx, cfg, u, periodSeconds)
	}
}

func (a *Arbiter) applyRaise(ctx context.Context, cfg Config, u, period float64) {
	if u > 0 {
		if cfg.Direction == DirectionBoth && cfg.LowerActuatorID != "" {
			if state, err := a.driver.RelayState(ctx, cfg.LowerActuatorID); err == nil && state != actuator.StateOff {
				if err := a.driver.RelayOff(ctx, cfg.LowerActuatorID, false); err != nil {
					a.logActuatorErr(cfg, cfg.LowerActuatorID, "interlock-off", err)
				}
			}
		}

		switch cfg.OutputMode {
		case OutputModeRelay:
			onSeconds := u
			if cfg.RaiseMaxDuration > 0 && onSeconds > cfg.RaiseMaxDuration {
				onSeconds = cfg.RaiseMaxDuration
			}
			if onSeconds > cfg.RaiseMinDuration {
				err := a.driver.RelayOn(ctx, cfg.RaiseActuatorID, actuator.RelayOnOptions{
					Duration: durationSeconds(onSeconds),
					MinOff:   cfg.RaiseMinOffDuration,
				})
				if err != nil {
					a.logActuatorErr(cfg, cfg.RaiseActuatorID, "relay_on", err)
				}
			}
		case OutputModePWM:
			// Note: RaiseMinDuration/RaiseMaxDuration are reused here as
			// percent bounds while relay mode above treats them as
			// seconds — a suspected field-overload inherited from the
			// distilled spec's source (see SPEC_FULL.md §9); preserved,
			// not "fixed".
			duty := clampDuty(dutyFromU(u, period), cfg.RaiseMinDuration, cfg.RaiseMaxDuration)
			if err := a.driver.RelayOn(ctx, cfg.RaiseActuatorID, actuator.RelayOnOptions{DutyCycle: &duty}); err != nil {
				a.logActuatorErr(cfg, cfg.RaiseActuatorID, "pwm", err)
			}
		}
		return
	}

	switch cfg.OutputMode {
	case OutputModeRelay:
		if err := a.driver.RelayOff(ctx, cfg.RaiseActuatorID, false); err != nil {
			a.logActuatorErr(cfg, cfg.RaiseActuatorID, "off", err)
		}
	case OutputModePWM:
		zero := 0.0
		if err := a.driver.RelayOn(ctx, cfg.RaiseActuatorID, actuator.RelayOnOptions{DutyCycle: &zero}); err != nil {
			a.logActuatorErr(cfg, cfg.RaiseActuatorID, "pwm", err)
		}
	}
}

func (a *Arbiter) applyLower(ctx context.Context, cfg Config, u, period float64) {
	if u < 0 {
		if cfg.Direction == DirectionBoth && cfg.RaiseActuatorID != "" {
			if state, err := a.driver.RelayState(ctx, cfg.RaiseActuatorID); err == nil && state != actuator.StateOff {
				if err := a.driver.RelayOff(ctx, cfg.RaiseActuatorID, false); err != nil {
					a.logActuatorErr(cfg, cfg.RaiseActuatorID, "interlock-off", err)
				}
			}
		}

		mag := -u
		switch cfg.OutputMode {
		case OutputModeRelay:
			onSeconds := mag
			if cfg.LowerMaxDuration > 0 && onSeconds > cfg.LowerMaxDuration {
				onSeconds = cfg.LowerMaxDuration
			}
			if onSeconds > cfg.LowerMinDuration {
				err := a.driver.RelayOn(ctx, cfg.LowerActuatorID, actuator.RelayOnOptions{
					Duration: durationSeconds(onSeconds),
					MinOff:   cfg.LowerMinOffDuration,
				})
				if err != nil {
					a.logActuatorErr(cfg, cfg.LowerActuatorID, "relay_on", err)
				}
			}
		case OutputModePWM:
			// Mirrors the upstream double-negation quirk documented in
			// SPEC_FULL.md §9: the magnitude is clamped against the
			// (positive) direction bounds, then the actuator is still
			// driven with the non-negative duty — observable behavior
			// is "actuator receives magnitude", preserved verbatim.
			duty := clampDuty(dutyFromU(mag, period), cfg.LowerMinDuration, cfg.LowerMaxDuration)
			if err := a.driver.RelayOn(ctx, cfg.LowerActuatorID, actuator.RelayOnOptions{DutyCycle: &duty}); err != nil {
				a.logActuatorErr(cfg, cfg.LowerActuatorID, "pwm", err)
			}
		}
		return
	}

	switch cfg.OutputMode {
	case OutputModeRelay:
		if err := a.driver.RelayOff(ctx, cfg.LowerActuatorID, false); err != nil {
			a.logActuatorErr(cfg, cfg.LowerActuatorID, "off", err)
		}
	case OutputModePWM:
		zero := 0.0
		if err := a.driver.RelayOn(ctx, cfg.LowerActuatorID, actuator.RelayOnOptions{DutyCycle: &zero}); err != nil {
			a.logActuatorErr(cfg, cfg.LowerActuatorID, "pwm", err)
		}
	}
}

// logActuatorErr wraps a driver dispatch failure as ErrActuatorCommand and
// logs it. The loop never blocks on this: the next tick retries.
func (a *Arbiter) logActuatorErr(cfg Config, actuatorID, action string, err error) {
	if a.logger == nil {
		return
	}
	wrapped := fmt.Errorf("%w: %s %s: %v", ErrActuatorCommand, actuatorID, action, err)
	a.logger.Warn("actuator command failed", zap.String("controller_id", cfg.ID), zap.Error(wrapped))
}
