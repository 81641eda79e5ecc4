package timeseries_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zaptest"

	"github.com/deepaucksharma/pidctl/internal/timeseries"
)

type fakeStore struct {
	mu     sync.Mutex
	writes []string
}

func (f *fakeStore) ReadLast(ctx context.Context, sensorID, kind string, lookback time.Duration) (timeseries.Sample, bool, error) {
	return timeseries.Sample{}, false, nil
}

func (f *fakeStore) Write(ctx context.Context, controllerID, field string, value float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes = append(f.writes, controllerID+"/"+field)
}

func (f *fakeStore) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.writes)
}

func TestMetricsSink_PublishesAsync(t *testing.T) {
	store := &fakeStore{}
	sink := timeseries.NewMetricsSink(store, 8, zaptest.NewLogger(t), nil)

	sink.Publish("pid-1", "setpoint", 25.0)
	sink.Publish("pid-1", "pid_output", 17.5)
	sink.Close()

	assert.Equal(t, 2, store.count())
}

// blockingStore holds each Write until release is closed, so a test can keep
// the sink's worker busy.
type blockingStore struct {
	fakeStore
	started chan struct{}
	release chan struct{}
}

func (b *blockingStore) Write(ctx context.Context, controllerID, field string, value float64) {
	b.started <- struct{}{}
	<-b.release
	b.fakeStore.Write(ctx, controllerID, field, value)
}

func TestMetricsSink_DropsWhenFull(t *testing.T) {
	store := &blockingStore{started: make(chan struct{}, 1), release: make(chan struct{})}
	var drops int
	sink := timeseries.NewMetricsSink(store, 1, zaptest.NewLogger(t), func(string) { drops++ })

	// The worker takes the first sample and blocks inside Write; the second
	// fills the one-slot queue, so the third must be dropped without blocking.
	sink.Publish("pid-1", "setpoint", 1.0)
	<-store.started
	sink.Publish("pid-1", "setpoint", 2.0)
	sink.Publish("pid-1", "setpoint", 3.0)
	assert.Equal(t, 1, drops)

	close(store.release)
	sink.Close()
	assert.Equal(t, 2, store.count())
}
