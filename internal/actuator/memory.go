package actuator

import (
	"context"
	"sync"
	"time"
)

// relay tracks the observable state of one actuator id.
type relay struct {
	state     RelayState
	dutyCycle float64
	offAt     time.Time // when an on-duration would expire; stored only, never checked
	lastOff   time.Time
}

// MemoryDriver is a goroutine-safe, in-process Driver used for tests and for
// running the daemon without real hardware attached. It does not run
// timers: relay_on's Duration is stored but never acted on, so a relay
// stays "on" until the next relay_off call, like a dumb GPIO driver that a
// supervising loop must keep re-commanding every tick.
type MemoryDriver struct {
	mu     sync.Mutex
	relays map[string]*relay
}

// NewMemoryDriver returns an empty driver; relays come into existence on
// first command and default to "off".
func NewMemoryDriver() *MemoryDriver {
	return &MemoryDriver{relays: make(map[string]*relay)}
}

func (d *MemoryDriver) get(id string) *relay {
	r, ok := d.relays[id]
	if !ok {
		r = &relay{state: StateOff}
		d.relays[id] = r
	}
	return r
}

// RelayOn commands id on, honoring MinOff: if the relay was turned off more
// recently than MinOff ago, the command is rejected.
func (d *MemoryDriver) RelayOn(ctx context.Context, id string, opts RelayOnOptions) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	r := d.get(id)
	now := time.Now()
	if opts.MinOff > 0 && !r.lastOff.IsZero() && now.Sub(r.lastOff) < opts.MinOff {
		return nil
	}

	r.state = StateOn
	if opts.DutyCycle != nil {
		r.dutyCycle = *opts.DutyCycle
	} else {
		r.dutyCycle = 100
	}
	if opts.Duration > 0 {
		r.offAt = now.Add(opts.Duration)
	}
	return nil
}

// RelayOff commands id off and records a MinOff floor starting now.
func (d *MemoryDriver) RelayOff(ctx context.Context, id string, triggerConditionals bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	r := d.get(id)
	if r.state == StateOn {
		r.lastOff = time.Now()
	}
	r.state = StateOff
	r.dutyCycle = 0
	return nil
}

// RelayState reports the last commanded state.
func (d *MemoryDriver) RelayState(ctx context.Context, id string) (RelayState, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.get(id).state, nil
}

// DutyCycle exposes the last commanded PWM duty, for tests.
func (d *MemoryDriver) DutyCycle(id string) float64 {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.get(id).dutyCycle
}
