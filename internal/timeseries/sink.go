package timeseries

import (
	"context"

	"go.uber.org/zap"
)

// write is one queued metric publish.
type write struct {
	controllerID string
	field        string
	value        float64
}

// MetricsSink is the §4.6 Metrics Sink: it publishes setpoint and
// pid_output/duty_cycle samples to a Store, asynchronously, via a single
// bounded channel drained by one worker goroutine. This is the hardened
// reading of spec.md §9's "bounded-drop queue drained by a dedicated
// worker" — rather than one goroutine per write, which is what a literal
// translation of the original per-write threading.Thread would produce.
type MetricsSink struct {
	store  Store
	queue  chan write
	logger *zap.Logger
	done   chan struct{}
	onDrop func(controllerID string)
}

// NewMetricsSink starts the drain worker. capacity bounds how many pending
// writes can queue before new ones are dropped (and logged) rather than
// blocking the control loop. onDrop, if non-nil, is called on every dropped
// write so a caller can surface it as an operational counter; it may be nil.
func NewMetricsSink(store Store, capacity int, logger *zap.Logger, onDrop func(controllerID string)) *MetricsSink {
	s := &MetricsSink{
		store:  store,
		queue:  make(chan write, capacity),
		logger: logger,
		done:   make(chan struct{}),
		onDrop: onDrop,
	}
	go s.run()
	return s
}

func (s *MetricsSink) run() {
	defer close(s.done)
	for w := range s.queue {
		s.store.Write(context.Background(), w.controllerID, w.field, w.value)
	}
}

// Publish enqueues a write. If the queue is full, the write is dropped and
// logged rather than blocking the tick that called it.
func (s *MetricsSink) Publish(controllerID, field string, value float64) {
	select {
	case s.queue <- write{controllerID: controllerID, field: field, value: value}:
	default:
		if s.logger != nil {
			s.logger.Warn("metrics sink queue full, dropping sample",
				zap.String("controller_id", controllerID),
				zap.String("field", field))
		}
		if s.onDrop != nil {
			s.onDrop(controllerID)
		}
	}
}

// Close stops accepting writes and waits for the drain worker to finish
// whatever was already queued.
func (s *MetricsSink) Close() {
	close(s.queue)
	<-s.done
}
