package engine

import (
	"context"
	"sync"
	"time"
)

// Clock drives the tick and regime loops and owns deferred regime tasks,
// so stopping it cancels everything the simulation still has in flight.
type Clock struct {
	// lifecycle serializes Start and Stop so a restart is one step
	lifecycle sync.Mutex

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	tasks   map[uint64]*time.Timer
	nextID  uint64
	running bool
}

// NewClock returns a stopped clock.
func NewClock() *Clock {
	return &Clock{tasks: make(map[uint64]*time.Timer)}
}

// Start launches onTick every tickEvery and onRegime every regimeEvery.
// Starting a running clock restarts both loops instead of stacking them;
// deferred tasks survive the restart.
func (c *Clock) Start(tickEvery, regimeEvery time.Duration, onTick, onRegime func()) {
	c.lifecycle.Lock()
	defer c.lifecycle.Unlock()
	c.stopLoops()

	ctx, cancel := context.WithCancel(context.Background())
	c.mu.Lock()
	c.cancel = cancel
	c.running = true
	c.mu.Unlock()

	c.wg.Add(2)
	go c.loop(ctx, tickEvery, onTick)
	go c.loop(ctx, regimeEvery, onRegime)
}

func (c *Clock) loop(ctx context.Context, every time.Duration, fn func()) {
	defer c.wg.Done()
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fn()
		}
	}
}

// Stop cancels both loops and every pending deferred task, then waits for
// an in-progress callback to return. Stopping a stopped clock is a no-op.
// Callbacks must not call Start or Stop.
func (c *Clock) Stop() {
	c.lifecycle.Lock()
	defer c.lifecycle.Unlock()

	c.mu.Lock()
	for id, t := range c.tasks {
		t.Stop()
		delete(c.tasks, id)
	}
	c.mu.Unlock()
	c.stopLoops()
}

func (c *Clock) stopLoops() {
	c.mu.Lock()
	cancel := c.cancel
	c.cancel = nil
	c.running = false
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	c.wg.Wait()
}

// After schedules fn once after d. The task is dropped if the clock is
// stopped first.
func (c *Clock) After(d time.Duration, fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.nextID++
	id := c.nextID
	c.tasks[id] = time.AfterFunc(d, func() {
		c.mu.Lock()
		_, live := c.tasks[id]
		delete(c.tasks, id)
		c.mu.Unlock()
		if live {
			fn()
		}
	})
}

// Running reports whether the loops are active.
func (c *Clock) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

// Pending reports the number of deferred tasks not yet fired.
func (c *Clock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.tasks)
}
