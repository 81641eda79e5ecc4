// Package timeseries implements the time-series store contract (spec §6):
// reading the newest sensor measurement and writing diagnostic metrics
// back, plus the bounded-queue Metrics Sink that drains writes off the
// control-loop hot path.
package timeseries

import (
	"context"
	"time"
)

// Sample is one (timestamp, value) reading.
type Sample struct {
	Timestamp time.Time
	Value     float64
}

// Store is the external time-series collaborator contract.
type Store interface {
	// ReadLast returns the newest sample for sensorID/kind within lookback
	// of now, or ok=false if the window held nothing.
	ReadLast(ctx context.Context, sensorID, kind string, lookback time.Duration) (Sample, bool, error)

	// Write is fire-and-forget: callers never block on it, and errors are
	// only ever logged.
	Write(ctx context.Context, controllerID, field string, value float64)
}
