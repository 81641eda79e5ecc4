package configstore

import (
	"context"
	"fmt"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/deepaucksharma/pidctl/internal/control"
	"github.com/deepaucksharma/pidctl/internal/method"
)

// SeedFile is the on-disk YAML document shape used to bulk-load controller
// definitions, mirroring spec.md's framing of PID/Method/Sensor as records
// a human-editable config surface fronts. Loading goes through koanf
// (github.com/knadh/koanf/v2 + its file provider and yaml parser), the
// layered-config library the teacher pulls in for the OTel collector's own
// config.
type SeedFile struct {
	Sensors []control.Sensor  `koanf:"sensors"`
	Methods []SeedMethod      `koanf:"methods"`
	PIDs    []control.Config  `koanf:"pids"`
}

// SeedMethod is the YAML-friendly projection of method.Method: a flat
// struct koanf can unmarshal directly, converted to the tagged-variant
// method.Method by toMethod.
type SeedMethod struct {
	ID   string `koanf:"id"`
	Kind string `koanf:"kind"`

	Rows []struct {
		SetpointStart float64  `koanf:"setpoint_start"`
		SetpointEnd   *float64 `koanf:"setpoint_end"`
		TimeStart     string   `koanf:"time_start"`
		TimeEnd       string   `koanf:"time_end"`
		DurationSec   float64  `koanf:"duration_sec"`
	} `koanf:"rows"`

	Sine *struct {
		Amplitude  float64 `koanf:"amplitude"`
		Frequency  float64 `koanf:"frequency"`
		ShiftAngle float64 `koanf:"shift_angle"`
		ShiftY     float64 `koanf:"shift_y"`
	} `koanf:"sine"`

	Bezier *struct {
		ShiftAngle float64 `koanf:"shift_angle"`
		X0, Y0     float64
		X1, Y1     float64
		X2, Y2     float64
		X3, Y3     float64
	} `koanf:"bezier"`
}

// LoadSeedFile reads and parses a YAML seed document at path.
func LoadSeedFile(path string) (*SeedFile, error) {
	k := koanf.New(".")
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("configstore: load seed file: %w", err)
	}

	var seed SeedFile
	if err := k.Unmarshal("", &seed); err != nil {
		return nil, fmt.Errorf("configstore: unmarshal seed file: %w", err)
	}
	return &seed, nil
}

// Apply writes every record in seed into store, overwriting existing rows
// with the same id.
func Apply(ctx context.Context, store *SQLiteStore, seed *SeedFile) error {
	for _, sensor := range seed.Sensors {
		if err := store.UpsertSensor(ctx, sensor); err != nil {
			return fmt.Errorf("configstore: seed sensor %s: %w", sensor.UniqueID, err)
		}
	}
	for _, sm := range seed.Methods {
		m, err := toMethod(sm)
		if err != nil {
			return fmt.Errorf("configstore: seed method %s: %w", sm.ID, err)
		}
		if err := store.UpsertMethod(ctx, m); err != nil {
			return fmt.Errorf("configstore: seed method %s: %w", sm.ID, err)
		}
	}
	for _, cfg := range seed.PIDs {
		if err := store.UpsertPID(ctx, cfg); err != nil {
			return fmt.Errorf("configstore: seed pid %s: %w", cfg.ID, err)
		}
	}
	return nil
}

func toMethod(sm SeedMethod) (*method.Method, error) {
	m := &method.Method{ID: sm.ID, Kind: method.Kind(sm.Kind), Marker: method.StartReady}

	for _, r := range sm.Rows {
		row := method.DataRow{
			SetpointStart: r.SetpointStart,
			SetpointEnd:   r.SetpointEnd,
			DurationSec:   r.DurationSec,
		}
		if r.TimeStart != "" {
			ts, err := parseISOTimestamp(r.TimeStart)
			if err != nil {
				return nil, fmt.Errorf("time_start: %w", err)
			}
			row.TimeStart = ts
		}
		if r.TimeEnd != "" {
			te, err := parseISOTimestamp(r.TimeEnd)
			if err != nil {
				return nil, fmt.Errorf("time_end: %w", err)
			}
			row.TimeEnd = te
		}
		m.Rows = append(m.Rows, row)
	}

	if sm.Sine != nil {
		m.Sine = &method.SineParams{
			Amplitude:  sm.Sine.Amplitude,
			Frequency:  sm.Sine.Frequency,
			ShiftAngle: sm.Sine.ShiftAngle,
			ShiftY:     sm.Sine.ShiftY,
		}
	}
	if sm.Bezier != nil {
		m.Bezier = &method.BezierParams{
			ShiftAngle: sm.Bezier.ShiftAngle,
			X0: sm.Bezier.X0, Y0: sm.Bezier.Y0,
			X1: sm.Bezier.X1, Y1: sm.Bezier.Y1,
			X2: sm.Bezier.X2, Y2: sm.Bezier.Y2,
			X3: sm.Bezier.X3, Y3: sm.Bezier.Y3,
		}
	}

	return m, nil
}
