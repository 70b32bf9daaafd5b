package gameserver

import (
	"context"
	"sync"
	"time"
)

// TickFunc is invoked once per tick with the time since the previous tick.
type TickFunc func(ctx context.Context, elapsed time.Duration)

// Ticker runs registered callbacks at a fixed interval.
// Callbacks are invoked sequentially on the ticker's goroutine.
//
// Invariant: each callback is invoked at most once per tick interval.
type Ticker struct {
	interval time.Duration
	mu       sync.Mutex
	ticks    map[string]TickFunc
	order    []string
}

// NewTicker returns a ticker that fires every interval.
//
// Precondition: interval must be > 0.
func NewTicker(interval time.Duration) *Ticker {
	if interval <= 0 {
		panic("gameserver.NewTicker: interval must be > 0")
	}
	return &Ticker{
		interval: interval,
		ticks:    make(map[string]TickFunc),
	}
}

// Interval returns the tick interval.
func (t *Ticker) Interval() time.Duration { return t.interval }

// Register registers fn under name. Replaces any existing callback of that
// name; callbacks run in registration order.
func (t *Ticker) Register(name string, fn TickFunc) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.ticks[name]; !ok {
		t.order = append(t.order, name)
	}
	t.ticks[name] = fn
}

// Unregister removes the callback registered under name.
func (t *Ticker) Unregister(name string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.ticks[name]; !ok {
		return
	}
	delete(t.ticks, name)
	for i, n := range t.order {
		if n == name {
			t.order = append(t.order[:i], t.order[i+1:]...)
			break
		}
	}
}

// Start runs the tick loop on a new goroutine until ctx is cancelled.
func (t *Ticker) Start(ctx context.Context) {
	go t.Run(ctx)
}

// Run runs the tick loop on the calling goroutine until ctx is cancelled.
//
// Postcondition: every registered callback is invoked once per interval.
func (t *Ticker) Run(ctx context.Context) {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()
	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			elapsed := now.Sub(last)
			last = now
			t.mu.Lock()
			callbacks := make([]TickFunc, 0, len(t.order))
			for _, n := range t.order {
				callbacks = append(callbacks, t.ticks[n])
			}
			t.mu.Unlock()
			for _, fn := range callbacks {
				fn(ctx, elapsed)
			}
		}
	}
}

// CombatTick returns a TickFunc that advances o while it is active.
// Tick errors other than ErrNoCombat are passed to onErr when it is non-nil.
func CombatTick(o *Orchestrator, onErr func(error)) TickFunc {
	return func(ctx context.Context, elapsed time.Duration) {
		if !o.IsActive() {
			return
		}
		if _, err := o.Tick(ctx, elapsed); err != nil && onErr != nil {
			onErr(err)
		}
	}
}
