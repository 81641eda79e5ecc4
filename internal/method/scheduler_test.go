package method_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deepaucksharma/pidctl/internal/method"
)

func ptr(f float64) *float64 { return &f }

func TestResolve_DailyInterpolation(t *testing.T) {
	// daily row [09:00:00, 10:00:00] start=20 end=30; at 09:30:00 expect 25.
	base := time.Date(2026, 7, 29, 0, 0, 0, 0, time.UTC)
	m := &method.Method{
		Kind: method.KindDaily,
		Rows: []method.DataRow{{
			SetpointStart: 20,
			SetpointEnd:   ptr(30),
			TimeStart:     base.Add(9 * time.Hour),
			TimeEnd:       base.Add(10 * time.Hour),
		}},
	}

	now := base.Add(9*time.Hour + 30*time.Minute)
	got := method.Resolve(m, now, 0, nil, nil)
	assert.InDelta(t, 25.0, got, 1e-9)
}

func TestResolve_DailyBoundaries(t *testing.T) {
	base := time.Date(2026, 7, 29, 0, 0, 0, 0, time.UTC)
	m := &method.Method{
		Kind: method.KindDaily,
		Rows: []method.DataRow{{
			SetpointStart: 20,
			SetpointEnd:   ptr(30),
			TimeStart:     base.Add(9 * time.Hour),
			TimeEnd:       base.Add(10 * time.Hour),
		}},
	}

	assert.InDelta(t, 20.0, method.Resolve(m, base.Add(9*time.Hour), 0, nil, nil), 1e-9)
}

func TestResolve_NoMatchFallsBackToDefault(t *testing.T) {
	base := time.Date(2026, 7, 29, 0, 0, 0, 0, time.UTC)
	m := &method.Method{Kind: method.KindDaily, Rows: nil}
	got := method.Resolve(m, base, 42, nil, nil)
	assert.Equal(t, 42.0, got)
}

func TestResolve_DailySine(t *testing.T) {
	base := time.Date(2026, 7, 29, 0, 0, 0, 0, time.UTC)
	m := &method.Method{
		Kind: method.KindDailySine,
		Sine: &method.SineParams{Amplitude: 10, Frequency: 1, ShiftAngle: 0, ShiftY: 50},
	}
	// at midnight theta=0 => sin(0)=0 => setpoint = shiftY
	got := method.Resolve(m, base, 0, nil, nil)
	assert.InDelta(t, 50.0, got, 1e-9)
}

func TestResolve_DailyBezierEndpoints(t *testing.T) {
	base := time.Date(2026, 7, 29, 0, 0, 0, 0, time.UTC)
	m := &method.Method{
		Kind: method.KindDailyBezier,
		Bezier: &method.BezierParams{
			X0: 0, Y0: 10,
			X1: 0.33, Y1: 10,
			X2: 0.66, Y2: 20,
			X3: 1, Y3: 20,
		},
	}
	// at t=0 (midnight, no shift) the curve should start at Y0.
	got := method.Resolve(m, base, 0, nil, nil)
	assert.InDelta(t, 10.0, got, 1e-6)
}

func TestResolve_Duration_PersistsStartOnce(t *testing.T) {
	now := time.Date(2026, 7, 29, 12, 0, 0, 0, time.UTC)
	m := &method.Method{
		Kind:   method.KindDuration,
		Marker: method.StartReady,
		Rows: []method.DataRow{
			{SetpointStart: 10, SetpointEnd: ptr(20), DurationSec: 60},
			{SetpointStart: 20, SetpointEnd: ptr(20), DurationSec: 60},
		},
	}

	var persisted time.Time
	calls := 0
	onStart := func(t time.Time) { persisted = t; calls++ }

	got := method.Resolve(m, now, 0, onStart, nil)
	assert.InDelta(t, 10.0, got, 1e-9)
	require.Equal(t, 1, calls)
	assert.Equal(t, now, persisted)
	assert.True(t, m.StartTime.Equal(now))

	// Second call at +30s should not re-persist the start.
	_ = method.Resolve(m, now.Add(30*time.Second), 0, onStart, nil)
	assert.Equal(t, 1, calls)
}

func TestResolve_Duration_EndsAndPersistsOnce(t *testing.T) {
	start := time.Date(2026, 7, 29, 12, 0, 0, 0, time.UTC)
	m := &method.Method{
		Kind:      method.KindDuration,
		StartTime: start,
		Rows: []method.DataRow{
			{SetpointStart: 10, SetpointEnd: ptr(10), DurationSec: 60},
		},
	}

	endCalls := 0
	onEnd := func() { endCalls++ }

	got := method.Resolve(m, start.Add(120*time.Second), 99, nil, onEnd)
	assert.Equal(t, 99.0, got)
	assert.Equal(t, method.StartEnded, m.Marker)
	require.Equal(t, 1, endCalls)

	// Once ended, stays ended and uses default without re-invoking onEnd.
	got2 := method.Resolve(m, start.Add(200*time.Second), 99, nil, onEnd)
	assert.Equal(t, 99.0, got2)
	assert.Equal(t, 1, endCalls)
}
