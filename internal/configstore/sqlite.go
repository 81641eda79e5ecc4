package configstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/deepaucksharma/pidctl/internal/control"
	"github.com/deepaucksharma/pidctl/internal/method"
)

// SQLiteStore persists PID/Method/MethodData/Sensor records in SQLite,
// grounded on services/benchmark/internal/store/sqlite_store.go's use of
// github.com/mattn/go-sqlite3 with a schema-on-open CREATE TABLE IF NOT
// EXISTS, and on the original Mycodo daemon's own SQLite-backed
// databases.models (PID/Method/MethodData/Sensor tables).
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (creating if absent) the database at path and
// ensures its schema exists.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("configstore: open failed: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the underlying database handle.
func (s *SQLiteStore) Close() error { return s.db.Close() }

func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS pid_controllers (
		id TEXT PRIMARY KEY,
		config_json TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS methods (
		id TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		time_start TEXT NOT NULL DEFAULT 'Ready',
		params_json TEXT
	);

	CREATE TABLE IF NOT EXISTS method_data (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		method_id TEXT NOT NULL,
		row_json TEXT NOT NULL,
		row_order INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_method_data_method ON method_data(method_id);

	CREATE TABLE IF NOT EXISTS sensors (
		unique_id TEXT PRIMARY KEY,
		period_seconds REAL NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("configstore: schema init failed: %w", err)
	}
	return nil
}

// UpsertPID stores cfg's JSON representation, keyed by its ID. Used by seed
// loading and by reload_from_config's source of truth.
func (s *SQLiteStore) UpsertPID(ctx context.Context, cfg control.Config) error {
	data, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("configstore: marshal PID config: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO pid_controllers (id, config_json) VALUES (?, ?)
		 ON CONFLICT(id) DO UPDATE SET config_json = excluded.config_json`,
		cfg.ID, string(data))
	return err
}

// GetPID implements Store.
func (s *SQLiteStore) GetPID(ctx context.Context, id string) (control.Config, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT config_json FROM pid_controllers WHERE id = ?`, id).Scan(&data)
	if err == sql.ErrNoRows {
		return control.Config{}, fmt.Errorf("%w: pid %s not found", control.ErrConfigResolution, id)
	}
	if err != nil {
		return control.Config{}, fmt.Errorf("configstore: get pid: %w", err)
	}

	var cfg control.Config
	if err := json.Unmarshal([]byte(data), &cfg); err != nil {
		return control.Config{}, fmt.Errorf("configstore: unmarshal pid config: %w", err)
	}
	return cfg, nil
}

// ListPIDs returns every stored PID config.
func (s *SQLiteStore) ListPIDs(ctx context.Context) ([]control.Config, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT config_json FROM pid_controllers`)
	if err != nil {
		return nil, fmt.Errorf("configstore: list pids: %w", err)
	}
	defer rows.Close()

	var out []control.Config
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var cfg control.Config
		if err := json.Unmarshal([]byte(data), &cfg); err != nil {
			return nil, fmt.Errorf("configstore: unmarshal pid config: %w", err)
		}
		out = append(out, cfg)
	}
	return out, rows.Err()
}

// UpsertMethod stores a method's kind, ordered rows, and (for
// DailySine/DailyBezier) its params_json blob — the Sine/Bezier struct
// pointers have no row representation, so they are JSON-encoded into a
// dedicated column rather than silently dropped. The marker is written only
// when the method row is first inserted; an existing row keeps its
// persisted time_start.
func (s *SQLiteStore) UpsertMethod(ctx context.Context, m *method.Method) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("configstore: begin tx: %w", err)
	}
	defer tx.Rollback()

	marker := m.Marker
	if marker == "" {
		marker = method.StartReady
	}

	var params sql.NullString
	switch m.Kind {
	case method.KindDailySine:
		if m.Sine != nil {
			data, err := json.Marshal(m.Sine)
			if err != nil {
				return fmt.Errorf("configstore: marshal sine params: %w", err)
			}
			params = sql.NullString{String: string(data), Valid: true}
		}
	case method.KindDailyBezier:
		if m.Bezier != nil {
			data, err := json.Marshal(m.Bezier)
			if err != nil {
				return fmt.Errorf("configstore: marshal bezier params: %w", err)
			}
			params = sql.NullString{String: string(data), Valid: true}
		}
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO methods (id, kind, time_start, params_json) VALUES (?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET kind = excluded.kind, params_json = excluded.params_json`,
		m.ID, string(m.Kind), marker, params)
	if err != nil {
		return fmt.Errorf("configstore: upsert method: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM method_data WHERE method_id = ?`, m.ID); err != nil {
		return fmt.Errorf("configstore: clear method rows: %w", err)
	}

	for i, row := range m.Rows {
		data, err := json.Marshal(row)
		if err != nil {
			return fmt.Errorf("configstore: marshal method row: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO method_data (method_id, row_json, row_order) VALUES (?, ?, ?)`,
			m.ID, string(data), i); err != nil {
			return fmt.Errorf("configstore: insert method row: %w", err)
		}
	}

	return tx.Commit()
}

// GetMethod implements Store.
func (s *SQLiteStore) GetMethod(ctx context.Context, id string) (*method.Method, error) {
	var kind, marker string
	var params sql.NullString
	err := s.db.QueryRowContext(ctx, `SELECT kind, time_start, params_json FROM methods WHERE id = ?`, id).Scan(&kind, &marker, &params)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: method %s not found", control.ErrConfigResolution, id)
	}
	if err != nil {
		return nil, fmt.Errorf("configstore: get method: %w", err)
	}

	m := &method.Method{ID: id, Kind: method.Kind(kind)}
	if marker == method.StartReady || marker == method.StartEnded {
		m.Marker = marker
	} else if ts, perr := parseISOTimestamp(marker); perr == nil {
		m.StartTime = ts
	}

	if params.Valid {
		switch m.Kind {
		case method.KindDailySine:
			var sine method.SineParams
			if err := json.Unmarshal([]byte(params.String), &sine); err != nil {
				return nil, fmt.Errorf("configstore: unmarshal sine params: %w", err)
			}
			m.Sine = &sine
		case method.KindDailyBezier:
			var bezier method.BezierParams
			if err := json.Unmarshal([]byte(params.String), &bezier); err != nil {
				return nil, fmt.Errorf("configstore: unmarshal bezier params: %w", err)
			}
			m.Bezier = &bezier
		}
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT row_json FROM method_data WHERE method_id = ? ORDER BY row_order`, id)
	if err != nil {
		return nil, fmt.Errorf("configstore: list method rows: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var row method.DataRow
		if err := json.Unmarshal([]byte(data), &row); err != nil {
			return nil, fmt.Errorf("configstore: unmarshal method row: %w", err)
		}
		m.Rows = append(m.Rows, row)
	}

	return m, rows.Err()
}

// UpdateMethodStartTime implements the spec §6 transactional update of a
// Method's persisted time_start marker. "Ready" and "Ended" are preserved
// bit-exact.
func (s *SQLiteStore) UpdateMethodStartTime(ctx context.Context, methodID, value string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("configstore: begin tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `UPDATE methods SET time_start = ? WHERE id = ?`, value, methodID)
	if err != nil {
		return fmt.Errorf("configstore: update time_start: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: method %s not found", control.ErrConfigResolution, methodID)
	}
	return tx.Commit()
}

// UpsertSensor stores a sensor record.
func (s *SQLiteStore) UpsertSensor(ctx context.Context, sensor control.Sensor) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sensors (unique_id, period_seconds) VALUES (?, ?)
		 ON CONFLICT(unique_id) DO UPDATE SET period_seconds = excluded.period_seconds`,
		sensor.UniqueID, sensor.Period.Seconds())
	return err
}

// GetSensor implements Store.
func (s *SQLiteStore) GetSensor(ctx context.Context, id string) (control.Sensor, error) {
	var periodSeconds float64
	err := s.db.QueryRowContext(ctx, `SELECT period_seconds FROM sensors WHERE unique_id = ?`, id).Scan(&periodSeconds)
	if err == sql.ErrNoRows {
		return control.Sensor{}, fmt.Errorf("%w: sensor %s not found", control.ErrConfigResolution, id)
	}
	if err != nil {
		return control.Sensor{}, fmt.Errorf("configstore: get sensor: %w", err)
	}
	return control.Sensor{UniqueID: id, Period: durationFromSeconds(periodSeconds)}, nil
}
