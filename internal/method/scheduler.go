package method

import (
	"math"
	"time"

	"gonum.org/v1/gonum/interp"
)

// secondsOfDay scales a wall-clock moment to seconds since local midnight.
func secondsOfDay(t time.Time) float64 {
	return float64(t.Hour()*3600 + t.Minute()*60 + t.Second())
}

// timeOfDay rewrites t's calendar date to an arbitrary fixed date, keeping
// only H:M:S, so Daily comparisons only look at time-of-day.
func timeOfDay(t time.Time) time.Time {
	return time.Date(0, 1, 1, t.Hour(), t.Minute(), t.Second(), 0, time.UTC)
}

// interpolate implements the "signed interpolation" rule common to
// Date/Daily/Duration: direction of travel is from start to end regardless
// of which is numerically larger. fraction is fit as the two-knot curve
// [0,1] -> [start,end] and evaluated via gonum's PiecewiseLinear, rather
// than hand-rolled arithmetic, since this is exactly the curve-evaluation
// concern gonum/interp exists for.
func interpolate(start float64, end *float64, fraction float64) float64 {
	endVal := start
	if end != nil {
		endVal = *end
	}

	var pl interp.PiecewiseLinear
	if err := pl.Fit([]float64{0, 1}, []float64{start, endVal}); err != nil {
		return start
	}
	return pl.Predict(fraction)
}

// Resolve computes the effective setpoint for m at time now, given the
// controller's default setpoint. onPersistStart is invoked exactly once,
// when a Duration method transitions Ready -> concrete start time, so the
// caller can persist it via the config store; onPersistEnd is invoked once
// on the Ended transition. Both transitions are monotonic: once a Duration
// method is Ended it never un-ends.
func Resolve(m *Method, now time.Time, defaultSetpoint float64, onPersistStart func(time.Time), onPersistEnd func()) float64 {
	if m == nil {
		return defaultSetpoint
	}

	switch m.Kind {
	case KindDate:
		if v, ok := resolveDate(m.Rows, now); ok {
			return v
		}
	case KindDaily:
		if v, ok := resolveDaily(m.Rows, now); ok {
			return v
		}
	case KindDailySine:
		if m.Sine != nil {
			return resolveSine(*m.Sine, now)
		}
	case KindDailyBezier:
		if m.Bezier != nil {
			return resolveBezier(*m.Bezier, now)
		}
	case KindDuration:
		if v, ok := resolveDuration(m, now, onPersistStart, onPersistEnd); ok {
			return v
		}
	}
	return defaultSetpoint
}

func resolveDate(rows []DataRow, now time.Time) (float64, bool) {
	for _, r := range rows {
		if now.Before(r.TimeStart) || !now.Before(r.TimeEnd) {
			continue
		}
		total := r.TimeEnd.Sub(r.TimeStart).Seconds()
		if total <= 0 {
			continue
		}
		part := now.Sub(r.TimeStart).Seconds()
		return interpolate(r.SetpointStart, r.SetpointEnd, part/total), true
	}
	return 0, false
}

func resolveDaily(rows []DataRow, now time.Time) (float64, bool) {
	daily := timeOfDay(now)
	for _, r := range rows {
		start := timeOfDay(r.TimeStart)
		end := timeOfDay(r.TimeEnd)
		if daily.Before(start) || !daily.Before(end) {
			continue
		}
		total := end.Sub(start).Seconds()
		if total <= 0 {
			continue
		}
		part := daily.Sub(start).Seconds()
		return interpolate(r.SetpointStart, r.SetpointEnd, part/total), true
	}
	return 0, false
}

// resolveSine implements setpoint = amplitude*sin(frequency*theta + shift_angle) + shift_y,
// with theta the seconds-of-day scaled by 2*pi/86400.
func resolveSine(p SineParams, now time.Time) float64 {
	theta := secondsOfDay(now) * (2 * math.Pi / 86400)
	return p.Amplitude*math.Sin(p.Frequency*theta+p.ShiftAngle) + p.ShiftY
}

// resolveBezier evaluates the cubic Bezier curve (x0,y0)..(x3,y3) at the
// parametric position implied by seconds-of-day and shift_angle, returning
// the y component. No example in the reference corpus ships a cubic-Bezier
// evaluator as a library (gonum has splines/interpolation but not Bezier
// curves), so this is stdlib math — see DESIGN.md.
func resolveBezier(p BezierParams, now time.Time) float64 {
	t := secondsOfDay(now)/86400 + p.ShiftAngle/(2*math.Pi)
	t = math.Mod(t, 1)
	if t < 0 {
		t += 1
	}

	mt := 1 - t
	// Cubic Bezier basis: B(t) = (1-t)^3*P0 + 3(1-t)^2*t*P1 + 3(1-t)*t^2*P2 + t^3*P3
	y := mt*mt*mt*p.Y0 + 3*mt*mt*t*p.Y1 + 3*mt*t*t*p.Y2 + t*t*t*p.Y3
	return y
}

func resolveDuration(m *Method, now time.Time, onPersistStart func(time.Time), onPersistEnd func()) (float64, bool) {
	if m.Marker == StartEnded {
		return 0, false
	}

	if m.Marker == StartReady || (m.Marker == "" && m.StartTime.IsZero()) {
		m.Marker = ""
		m.StartTime = now
		if onPersistStart != nil {
			onPersistStart(now)
		}
	}

	elapsed := now.Sub(m.StartTime).Seconds()

	var total float64
	for _, r := range m.Rows {
		rowStart := total
		total += r.DurationSec
		if elapsed >= rowStart && elapsed < total {
			fraction := (elapsed - rowStart) / r.DurationSec
			return interpolate(r.SetpointStart, r.SetpointEnd, fraction), true
		}
	}

	// Exhausted: mark Ended, persist, and fall back to default.
	m.Marker = StartEnded
	if onPersistEnd != nil {
		onPersistEnd()
	}
	return 0, false
}
