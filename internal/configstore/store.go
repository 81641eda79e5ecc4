// Package configstore implements the persistent configuration store
// contract (spec §6): PID, Method, and Sensor records, plus the
// transactional update of a Method's time_start marker.
package configstore

import (
	"context"

	"github.com/deepaucksharma/pidctl/internal/control"
	"github.com/deepaucksharma/pidctl/internal/method"
)

// Store is the persistent configuration store contract.
type Store interface {
	GetPID(ctx context.Context, id string) (control.Config, error)
	ListPIDs(ctx context.Context) ([]control.Config, error)
	GetMethod(ctx context.Context, id string) (*method.Method, error)
	GetSensor(ctx context.Context, id string) (control.Sensor, error)

	// UpdateMethodStartTime transactionally sets a Method's persisted
	// time_start marker to value (one of method.StartReady,
	// method.StartEnded, or an ISO-8601 timestamp string).
	UpdateMethodStartTime(ctx context.Context, methodID, value string) error
}
