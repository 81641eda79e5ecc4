package timeseries

import (
	"context"
	"fmt"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"go.uber.org/zap"
)

// InfluxStore implements Store against an InfluxDB v2 bucket, grounded on
// the same client (github.com/influxdata/influxdb-client-go/v2) the
// reference corpus's dimmer control-loop manifest depends on. It replaces
// the original Mycodo daemon's read_last_influxdb/write_influxdb_value
// helpers (raw InfluxDB 1.x HTTP queries) with the typed v2 client.
type InfluxStore struct {
	client influxdb2.Client
	org    string
	bucket string
	write  api.WriteAPI
	logger *zap.Logger
}

// NewInfluxStore opens a client against addr, authenticated with token, and
// scoped to org/bucket. The write API is asynchronous and batched by the
// client itself; InfluxStore.Write only enqueues a point.
func NewInfluxStore(addr, token, org, bucket string, logger *zap.Logger) *InfluxStore {
	client := influxdb2.NewClient(addr, token)
	return &InfluxStore{
		client: client,
		org:    org,
		bucket: bucket,
		write:  client.WriteAPI(org, bucket),
		logger: logger,
	}
}

// Close flushes pending writes and releases the underlying HTTP client.
func (s *InfluxStore) Close() {
	s.write.Flush()
	s.client.Close()
}

// ReadLast implements the §4.3 measurement fetch: the newest point for
// sensorID/kind within the last `lookback`.
func (s *InfluxStore) ReadLast(ctx context.Context, sensorID, kind string, lookback time.Duration) (Sample, bool, error) {
	query := fmt.Sprintf(`
		from(bucket: %q)
		  |> range(start: -%ds)
		  |> filter(fn: (r) => r._measurement == %q and r.sensor_id == %q)
		  |> last()
	`, s.bucket, int64(lookback.Seconds()), kind, sensorID)

	result, err := s.client.QueryAPI(s.org).Query(ctx, query)
	if err != nil {
		return Sample{}, false, fmt.Errorf("timeseries: query failed: %w", err)
	}
	defer result.Close()

	if !result.Next() {
		if result.Err() != nil {
			return Sample{}, false, fmt.Errorf("timeseries: query iteration failed: %w", result.Err())
		}
		return Sample{}, false, nil
	}

	rec := result.Record()
	value, ok := rec.Value().(float64)
	if !ok {
		return Sample{}, false, fmt.Errorf("timeseries: non-numeric value for %s/%s", sensorID, kind)
	}

	return Sample{Timestamp: rec.Time(), Value: value}, true, nil
}

// Write enqueues controllerID/field=value for async flush. Failures never
// propagate to the caller — they are only logged, per the fire-and-forget
// contract in spec §6/§7.
func (s *InfluxStore) Write(ctx context.Context, controllerID, field string, value float64) {
	point := influxdb2.NewPoint(
		field,
		map[string]string{"controller_id": controllerID},
		map[string]interface{}{"value": value},
		time.Now(),
	)
	s.write.WritePoint(point)

	errCh := s.write.Errors()
	select {
	case err := <-errCh:
		if err != nil && s.logger != nil {
			s.logger.Warn("timeseries write failed",
				zap.String("controller_id", controllerID),
				zap.String("field", field),
				zap.Error(err))
		}
	default:
	}
}
