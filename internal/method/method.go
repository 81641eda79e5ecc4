// Package method resolves a time-varying setpoint schedule (spec §4.4). A
// Method is a closed sum type over five kinds (Date, Daily, DailySine,
// DailyBezier, Duration) — the tagged-variant redesign called for in
// spec.md §9's Design Notes, replacing the original string-dispatch.
package method

import "time"

// Kind enumerates the five method arms.
type Kind string

const (
	KindDate       Kind = "Date"
	KindDaily      Kind = "Daily"
	KindDailySine  Kind = "DailySine"
	KindDailyBezier Kind = "DailyBezier"
	KindDuration   Kind = "Duration"
)

// Start-timestamp sentinel values that must round-trip bit-exact through
// the config store (spec §6).
const (
	StartReady = "Ready"
	StartEnded = "Ended"
)

// TimeLayout is the ISO-8601 UTC layout spec §6 mandates for persisted
// timestamps: "YYYY-MM-DDTHH:MM:SS[.ffffff]".
const TimeLayout = "2006-01-02T15:04:05.999999"

// DataRow is one row of a Date/Daily/Duration method. SetpointEnd is a
// pointer so "absent" (constant segment) is distinguishable from zero.
type DataRow struct {
	SetpointStart float64
	SetpointEnd   *float64

	// Date/Daily
	TimeStart time.Time // Daily: only H:M:S is meaningful
	TimeEnd   time.Time

	// Duration
	DurationSec float64
}

// SineParams carries a DailySine method's single data row.
type SineParams struct {
	Amplitude  float64
	Frequency  float64
	ShiftAngle float64
	ShiftY     float64
}

// BezierParams carries a DailyBezier method's single data row: four cubic
// Bezier control points plus a phase shift.
type BezierParams struct {
	ShiftAngle float64
	X0, Y0     float64
	X1, Y1     float64
	X2, Y2     float64
	X3, Y3     float64
}

// Method is the tagged-variant method entity from spec §3.
type Method struct {
	ID   string
	Kind Kind

	// StartTime holds the Duration method's persisted marker: StartReady,
	// StartEnded, or an actual timestamp. Zero-value Time with Marker ==
	// StartReady means "not yet started".
	Marker    string // StartReady | StartEnded | "" (meaning: concrete time below)
	StartTime time.Time

	Rows   []DataRow
	Sine   *SineParams
	Bezier *BezierParams
}
