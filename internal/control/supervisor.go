package control

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/deepaucksharma/pidctl/internal/actuator"
	"github.com/deepaucksharma/pidctl/internal/method"
	"github.com/deepaucksharma/pidctl/internal/timeseries"
)

// ConfigStore is the slice of the persistent config store a Supervisor
// needs. Defined here (not imported from internal/configstore) so that
// package, which already imports control, does not close an import cycle;
// *configstore.SQLiteStore satisfies this structurally.
type ConfigStore interface {
	GetPID(ctx context.Context, id string) (Config, error)
	GetMethod(ctx context.Context, id string) (*method.Method, error)
	UpdateMethodStartTime(ctx context.Context, methodID, value string) error
}

// MetricsRecorder is the slice of operational-metrics instrumentation a
// Supervisor drives; internal/obsmetrics.Registry satisfies it.
type MetricsRecorder interface {
	ObserveTick(controllerID string, seconds, output float64)
	ObserveTickFailure(controllerID string)
}

// Supervisor runs one controller's periodic tick loop: the per-controller
// task the spec's §4.1 Controller Supervisor and §5 concurrency model
// describe, grounded on the teacher's own Ticker+select run loops but
// holding PID-domain state (Engine, Arbiter, Method) rather than pipeline
// component state.
type Supervisor struct {
	mu sync.Mutex

	cfg Config

	activated bool
	held      bool
	paused    bool
	stopped   bool

	currentSetpoint      float64
	lastMeasurementValid bool

	method *method.Method

	engine      *Engine
	arbiter     *Arbiter
	store       timeseries.Store
	sink        *timeseries.MetricsSink
	configStore ConfigStore
	metrics     MetricsRecorder
	logger      *zap.Logger

	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// NewSupervisor builds a Supervisor for cfg. If cfg.MethodID is set, the
// bound method is loaded eagerly from configStore; a failure there is
// non-fatal (spec's ErrConfigResolution: the controller runs degraded on
// its default setpoint rather than refusing to start).
func NewSupervisor(
	cfg Config,
	driver actuator.Driver,
	store timeseries.Store,
	sink *timeseries.MetricsSink,
	configStore ConfigStore,
	metrics MetricsRecorder,
	logger *zap.Logger,
) *Supervisor {
	s := &Supervisor{
		cfg:             cfg,
		activated:       cfg.Activated,
		held:            cfg.Held,
		paused:          cfg.Paused,
		currentSetpoint: cfg.DefaultSetpoint,
		engine:          NewEngine(cfg.Kp, cfg.Ki, cfg.Kd, cfg.IntegratorMin, cfg.IntegratorMax),
		arbiter:         NewArbiter(driver, logger),
		store:           store,
		sink:            sink,
		configStore:     configStore,
		metrics:         metrics,
		logger:          logger,
		stopCh:          make(chan struct{}),
		doneCh:          make(chan struct{}),
	}

	if cfg.MethodID != "" && configStore != nil {
		if m, err := configStore.GetMethod(context.Background(), cfg.MethodID); err == nil {
			s.method = m
		} else if logger != nil {
			logger.Warn("method load failed, running on default setpoint",
				zap.String("controller_id", cfg.ID), zap.Error(err))
		}
	}

	return s
}

// Run drives the tick loop until ctx is cancelled or Stop is called. It
// blocks; call it from its own goroutine.
func (s *Supervisor) Run(ctx context.Context) {
	defer close(s.doneCh)

	period := s.cfg.Period
	if period <= 0 {
		period = time.Second
	}

	// Wake every 100ms and act only once the deadline has passed.
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	deadline := time.Now().Add(period)

	for {
		select {
		case <-ctx.Done():
			s.shutdownActuators()
			return
		case <-s.stopCh:
			s.shutdownActuators()
			return
		case now := <-ticker.C:
			if now.Before(deadline) {
				continue
			}
			// Catch-up: advance the deadline by whole periods rather than
			// replaying missed ticks (spec §4.1 step 1 / §5 timing
			// discipline: this bounds integrator growth on a stall at the
			// cost of under-regulating briefly).
			for !now.Before(deadline) {
				deadline = deadline.Add(period)
			}
			s.tickSafely(ctx, now)
		}
	}
}

// tickSafely recovers a panic in the tick body (FatalLoop in the
// error-handling design): it is logged and the loop continues rather than
// exiting, since only an explicit Stop terminates the controller.
func (s *Supervisor) tickSafely(ctx context.Context, now time.Time) {
	defer func() {
		if r := recover(); r != nil && s.logger != nil {
			s.logger.Error("panic recovered in tick body, continuing",
				zap.String("controller_id", s.cfg.ID), zap.Any("panic", r))
		}
	}()
	s.tick(ctx, now)
}

func (s *Supervisor) tick(ctx context.Context, now time.Time) {
	start := time.Now()

	s.mu.Lock()
	cfg := s.cfg
	activated, held, paused, stopped := s.activated, s.held, s.paused, s.stopped
	s.mu.Unlock()

	if stopped || !activated {
		return
	}

	// gateMeasureAndEngine depends only on paused, matching the gates the
	// daemon this was distilled from uses; held only extends gateArbiter.
	// The practical effect: held+paused together run the Arbiter off of
	// whatever control variable the Engine last computed, i.e. "PID
	// Engine is skipped so the last control variable persists unchanged"
	// (held alone, without pausing, does not by itself stop the Engine).
	gateMeasureAndEngine := !paused
	gateArbiter := !paused || held

	var output float64
	tickedMeasurement := false

	if gateMeasureAndEngine {
		tickedMeasurement = true
		valid := s.readAndStep(ctx, cfg, now)

		s.mu.Lock()
		s.lastMeasurementValid = valid
		s.mu.Unlock()

		if s.metrics != nil && !valid {
			s.metrics.ObserveTickFailure(cfg.ID)
		}
	}

	if gateArbiter {
		s.mu.Lock()
		valid := s.lastMeasurementValid
		s.mu.Unlock()

		_, _, lastOutput := s.engine.State()
		output = lastOutput

		if valid {
			s.arbiter.Apply(ctx, cfg, output)
		} else {
			s.arbiter.Off(ctx, cfg)
		}
	}

	if tickedMeasurement && s.metrics != nil {
		s.metrics.ObserveTick(cfg.ID, time.Since(start).Seconds(), output)
	}
}

// readAndStep invokes the Measurement Source, then (if a fresh reading was
// obtained) the Setpoint Scheduler and PID Engine, then publishes both to
// the Metrics Sink. It returns whether the measurement was valid.
func (s *Supervisor) readAndStep(ctx context.Context, cfg Config, now time.Time) bool {
	lookback := lookbackWindow(cfg.SensorPeriod)
	sample, ok, err := s.store.ReadLast(ctx, cfg.SensorID, cfg.MeasurementKind, lookback)

	valid := ok && err == nil
	if !valid {
		// Store unreachable or an empty read window: ErrTransientMeasurement.
		// The last measurement is marked invalid and the arbiter (if gated
		// on this tick) commands actuators off rather than acting on stale
		// state.
		transientErr := fmt.Errorf("%w: empty read window for sensor %s", ErrTransientMeasurement, cfg.SensorID)
		if err != nil {
			transientErr = fmt.Errorf("%w: %v", ErrTransientMeasurement, err)
		}
		if s.logger != nil {
			s.logger.Warn("transient measurement error", zap.String("controller_id", cfg.ID), zap.Error(transientErr))
		}
		return false
	}

	// StaleMeasurement is diagnostic only: age beyond MaxMeasureAge is
	// logged but the reading is still used (spec §7/§8 scenario 6).
	if cfg.MaxMeasureAge > 0 && now.Sub(sample.Timestamp) > cfg.MaxMeasureAge && s.logger != nil {
		s.logger.Warn("stale measurement",
			zap.String("controller_id", cfg.ID),
			zap.Duration("age", now.Sub(sample.Timestamp)),
			zap.Duration("max_measure_age", cfg.MaxMeasureAge))
	}

	s.mu.Lock()
	m := s.method
	setpoint := cfg.DefaultSetpoint
	if m != nil {
		setpoint = method.Resolve(m, now, cfg.DefaultSetpoint, s.persistMethodStartFor(cfg), s.persistMethodEndFor(cfg))
	} else {
		setpoint = s.currentSetpoint
	}
	s.currentSetpoint = setpoint
	s.mu.Unlock()

	output := s.engine.Step(setpoint, sample.Value)

	s.sink.Publish(cfg.ID, "setpoint", setpoint)
	if cfg.OutputMode == OutputModePWM {
		s.sink.Publish(cfg.ID, "duty_cycle", signedDutyMetric(output, cfg.Period.Seconds()))
	} else {
		s.sink.Publish(cfg.ID, "pid_output", output)
	}

	return true
}

// signedDutyMetric computes the signed duty-cycle percent recorded to the
// Metrics Sink: magnitude scaled the same way the Arbiter scales a PWM
// command, with the sign of u reattached (spec §4.6: "duty_cycle (pwm
// mode, signed)").
func signedDutyMetric(u, period float64) float64 {
	duty := dutyFromU(math.Abs(u), period)
	if u < 0 {
		return -duty
	}
	return duty
}

// persistMethodStartFor and persistMethodEndFor build the config-store
// persistence callbacks method.Resolve expects, closing over cfg so the
// write goes to the right method row. A nil configStore (test/dev mode)
// makes them no-ops.
func (s *Supervisor) persistMethodStartFor(cfg Config) func(time.Time) {
	return func(t time.Time) {
		if s.configStore == nil {
			return
		}
		if err := s.configStore.UpdateMethodStartTime(context.Background(), cfg.MethodID, t.Format(method.TimeLayout)); err != nil && s.logger != nil {
			s.logger.Warn("persist method start failed", zap.String("controller_id", cfg.ID), zap.Error(err))
		}
	}
}

func (s *Supervisor) persistMethodEndFor(cfg Config) func() {
	return func() {
		if s.configStore == nil {
			return
		}
		if err := s.configStore.UpdateMethodStartTime(context.Background(), cfg.MethodID, method.StartEnded); err != nil && s.logger != nil {
			s.logger.Warn("persist method end failed", zap.String("controller_id", cfg.ID), zap.Error(err))
		}
	}
}

func (s *Supervisor) shutdownActuators() {
	s.mu.Lock()
	cfg := s.cfg
	methodID := cfg.MethodID
	s.stopped = true
	s.mu.Unlock()

	s.arbiter.Off(context.Background(), cfg)

	if methodID != "" && s.configStore != nil {
		if err := s.configStore.UpdateMethodStartTime(context.Background(), methodID, method.StartEnded); err != nil && s.logger != nil {
			s.logger.Warn("mark method ended on stop failed", zap.String("controller_id", cfg.ID), zap.Error(err))
		}
	}
}

// Stop requests the loop terminate at the next tick boundary (spec §5
// cancellation): configured actuators are commanded off, and a bound
// Duration method's start timestamp is marked Ended.
func (s *Supervisor) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
	<-s.doneCh
}

// Hold sets the held flag (spec §4.1 hold()).
func (s *Supervisor) Hold() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.held = true
}

// Pause sets the paused flag (spec §4.1 pause()).
func (s *Supervisor) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paused = true
}

// Resume clears held and paused and sets activated (spec §4.1 resume()).
func (s *Supervisor) Resume() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activated = true
	s.held = false
	s.paused = false
}

// SetSetpoint overrides the current setpoint directly and resets the
// Engine's integrator and derivator to 0 (spec invariant: "set_setpoint(s)
// => on the next PID step, integrator and derivator are 0 before the step
// uses them").
func (s *Supervisor) SetSetpoint(value float64) {
	s.mu.Lock()
	s.currentSetpoint = value
	s.mu.Unlock()
	s.engine.Reset()
}

// SetIntegrator implements the set_integrator RPC.
func (s *Supervisor) SetIntegrator(value float64) { s.engine.SetIntegrator(value) }

// SetDerivator implements the set_derivator RPC.
func (s *Supervisor) SetDerivator(value float64) { s.engine.SetDerivator(value) }

// SetGains implements the set_kp/i/d RPCs.
func (s *Supervisor) SetGains(kp, ki, kd float64) { s.engine.SetGains(kp, ki, kd) }

// ReloadFromConfig re-reads cfg.ID's PID configuration (and its bound
// method, if any) from the config store and swaps it in. The Engine's
// accumulated integrator/derivator survive the reload; the Engine takes the
// new gains and integrator bounds, and the Supervisor takes the new config
// as a whole, including its activated/held/paused flags and method binding.
func (s *Supervisor) ReloadFromConfig(ctx context.Context) error {
	if s.configStore == nil {
		return nil
	}

	cfg, err := s.configStore.GetPID(ctx, s.cfg.ID)
	if err != nil {
		return err
	}

	var m *method.Method
	if cfg.MethodID != "" {
		m, err = s.configStore.GetMethod(ctx, cfg.MethodID)
		if err != nil {
			if s.logger != nil {
				s.logger.Warn("method reload failed, keeping prior method binding",
					zap.String("controller_id", cfg.ID), zap.Error(err))
			}
			m = s.method
		}
	}

	s.mu.Lock()
	s.cfg = cfg
	s.activated, s.held, s.paused = cfg.Activated, cfg.Held, cfg.Paused
	s.method = m
	s.mu.Unlock()

	s.engine.SetGains(cfg.Kp, cfg.Ki, cfg.Kd)
	s.engine.SetIntegratorBounds(cfg.IntegratorMin, cfg.IntegratorMax)
	return nil
}

// State returns a snapshot of the Supervisor's externally visible
// lifecycle flags and current setpoint, for get_* accessor RPCs and tests.
func (s *Supervisor) State() (activated, held, paused bool, setpoint float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activated, s.held, s.paused, s.currentSetpoint
}
