// Package daemon wires the per-controller Supervisors, the shared
// time-series store and metrics sink, and the config store into one
// long-running process, and exposes their lifecycle RPCs over HTTP.
package daemon

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/deepaucksharma/pidctl/internal/actuator"
	"github.com/deepaucksharma/pidctl/internal/configstore"
	"github.com/deepaucksharma/pidctl/internal/control"
	"github.com/deepaucksharma/pidctl/internal/obsmetrics"
	"github.com/deepaucksharma/pidctl/internal/timeseries"
)

// Daemon owns every active Supervisor plus the collaborators they share.
type Daemon struct {
	mu          sync.RWMutex
	supervisors map[string]*control.Supervisor

	driver      actuator.Driver
	store       timeseries.Store
	sink        *timeseries.MetricsSink
	configStore *configstore.SQLiteStore
	metrics     *obsmetrics.Registry
	logger      *zap.Logger

	cancel context.CancelFunc
}

// New builds a Daemon. driver, store and configStore must already be
// constructed (hardware/InfluxDB/SQLite wiring is the caller's concern);
// the Daemon only owns Supervisor lifecycles and the metrics sink built on
// top of store.
func New(driver actuator.Driver, store timeseries.Store, configStore *configstore.SQLiteStore, logger *zap.Logger) *Daemon {
	metrics := obsmetrics.NewRegistry()
	sink := timeseries.NewMetricsSink(store, 256, logger, func(controllerID string) {
		metrics.ObserveDropped(controllerID)
	})

	return &Daemon{
		supervisors: make(map[string]*control.Supervisor),
		driver:      driver,
		store:       store,
		sink:        sink,
		configStore: configStore,
		metrics:     metrics,
		logger:      logger,
	}
}

// Metrics exposes the Prometheus registry for the HTTP server to mount.
func (d *Daemon) Metrics() *obsmetrics.Registry { return d.metrics }

// LoadAndStart instantiates a Supervisor for every PID config currently in
// the config store and starts each one's tick loop.
func (d *Daemon) LoadAndStart(ctx context.Context) error {
	cfgs, err := d.configStore.ListPIDs(ctx)
	if err != nil {
		return fmt.Errorf("daemon: list pids: %w", err)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	d.cancel = cancel

	d.mu.Lock()
	defer d.mu.Unlock()
	for _, cfg := range cfgs {
		sup := control.NewSupervisor(cfg, d.driver, d.store, d.sink, d.configStore, d.metrics, d.logger)
		d.supervisors[cfg.ID] = sup
		go sup.Run(runCtx)
		d.logger.Info("controller started", zap.String("controller_id", cfg.ID))
	}
	return nil
}

// Shutdown stops every Supervisor and closes the metrics sink.
func (d *Daemon) Shutdown() {
	d.mu.RLock()
	sups := make([]*control.Supervisor, 0, len(d.supervisors))
	for _, s := range d.supervisors {
		sups = append(sups, s)
	}
	d.mu.RUnlock()

	if d.cancel != nil {
		d.cancel()
	}
	for _, s := range sups {
		s.Stop()
	}
	d.sink.Close()
}

var errNotFound = fmt.Errorf("daemon: controller not found")

func (d *Daemon) get(id string) (*control.Supervisor, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	s, ok := d.supervisors[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", errNotFound, id)
	}
	return s, nil
}

// Hold implements the hold() RPC for controller id.
func (d *Daemon) Hold(id string) error {
	s, err := d.get(id)
	if err != nil {
		return err
	}
	s.Hold()
	return nil
}

// Pause implements the pause() RPC for controller id.
func (d *Daemon) Pause(id string) error {
	s, err := d.get(id)
	if err != nil {
		return err
	}
	s.Pause()
	return nil
}

// Resume implements the resume() RPC for controller id.
func (d *Daemon) Resume(id string) error {
	s, err := d.get(id)
	if err != nil {
		return err
	}
	s.Resume()
	return nil
}

// StopController implements the stop() RPC for controller id, and removes
// it from the daemon's active set.
func (d *Daemon) StopController(id string) error {
	s, err := d.get(id)
	if err != nil {
		return err
	}
	s.Stop()

	d.mu.Lock()
	delete(d.supervisors, id)
	d.mu.Unlock()
	return nil
}

// Reload implements the reload_from_config() RPC for controller id.
func (d *Daemon) Reload(ctx context.Context, id string) error {
	s, err := d.get(id)
	if err != nil {
		return err
	}
	return s.ReloadFromConfig(ctx)
}

// SetSetpoint implements the set_setpoint(x) RPC for controller id.
func (d *Daemon) SetSetpoint(id string, value float64) error {
	s, err := d.get(id)
	if err != nil {
		return err
	}
	s.SetSetpoint(value)
	return nil
}

// List returns every active controller id, for the status endpoint.
func (d *Daemon) List() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	ids := make([]string, 0, len(d.supervisors))
	for id := range d.supervisors {
		ids = append(ids, id)
	}
	return ids
}
