package configstore_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/deepaucksharma/pidctl/internal/configstore"
	"github.com/deepaucksharma/pidctl/internal/control"
	"github.com/deepaucksharma/pidctl/internal/method"
)

func openTestStore(t *testing.T) *configstore.SQLiteStore {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pidctl.db")
	s, err := configstore.NewSQLiteStore(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSQLiteStore_PIDRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	cfg := control.Config{
		ID:              "pid-1",
		Kp:              2,
		Ki:              0.5,
		Kd:              1,
		Period:          30 * time.Second,
		IntegratorMin:   -100,
		IntegratorMax:   100,
		Direction:       control.DirectionBoth,
		OutputMode:      control.OutputModeRelay,
		DefaultSetpoint: 25,
	}
	require.NoError(t, s.UpsertPID(ctx, cfg))

	got, err := s.GetPID(ctx, "pid-1")
	require.NoError(t, err)
	require.Equal(t, cfg, got)

	_, err = s.GetPID(ctx, "missing")
	require.Error(t, err)
}

func TestSQLiteStore_MethodTransactionalStartTime(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	end := 30.0
	m := &method.Method{
		ID:   "method-1",
		Kind: method.KindDuration,
		Rows: []method.DataRow{
			{SetpointStart: 10, SetpointEnd: &end, DurationSec: 60},
		},
	}
	require.NoError(t, s.UpsertMethod(ctx, m))

	got, err := s.GetMethod(ctx, "method-1")
	require.NoError(t, err)
	require.Equal(t, method.StartReady, got.Marker)
	require.Len(t, got.Rows, 1)

	require.NoError(t, s.UpdateMethodStartTime(ctx, "method-1", method.StartEnded))
	got2, err := s.GetMethod(ctx, "method-1")
	require.NoError(t, err)
	require.Equal(t, method.StartEnded, got2.Marker)

	err = s.UpdateMethodStartTime(ctx, "no-such-method", method.StartEnded)
	require.Error(t, err)
}

func TestSQLiteStore_SineMethodRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	m := &method.Method{
		ID:   "sine-1",
		Kind: method.KindDailySine,
		Sine: &method.SineParams{Amplitude: 10, Frequency: 1, ShiftAngle: 0.5, ShiftY: 25},
	}
	require.NoError(t, s.UpsertMethod(ctx, m))

	got, err := s.GetMethod(ctx, "sine-1")
	require.NoError(t, err)
	require.NotNil(t, got.Sine)
	require.Equal(t, *m.Sine, *got.Sine)
	require.Nil(t, got.Bezier)
}

func TestSQLiteStore_BezierMethodRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	m := &method.Method{
		ID:   "bezier-1",
		Kind: method.KindDailyBezier,
		Bezier: &method.BezierParams{
			ShiftAngle: 0.1,
			X0: 0, Y0: 10,
			X1: 1, Y1: 20,
			X2: 2, Y2: 15,
			X3: 3, Y3: 5,
		},
	}
	require.NoError(t, s.UpsertMethod(ctx, m))

	got, err := s.GetMethod(ctx, "bezier-1")
	require.NoError(t, err)
	require.NotNil(t, got.Bezier)
	require.Equal(t, *m.Bezier, *got.Bezier)
	require.Nil(t, got.Sine)

	// A re-upsert (e.g. a reload) must overwrite, not append, params_json.
	m.Bezier.Y0 = 99
	require.NoError(t, s.UpsertMethod(ctx, m))
	got2, err := s.GetMethod(ctx, "bezier-1")
	require.NoError(t, err)
	require.Equal(t, 99.0, got2.Bezier.Y0)
}

func TestSQLiteStore_SensorRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertSensor(ctx, control.Sensor{UniqueID: "sensor-1", Period: 10 * time.Second}))

	got, err := s.GetSensor(ctx, "sensor-1")
	require.NoError(t, err)
	require.Equal(t, 10*time.Second, got.Period)
}
