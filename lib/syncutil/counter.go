package syncutil

// Counter is a non-negative integer that goroutines can atomically
// increment, reset, or block on until it reaches a specific value. It is
// the primitive the scheduler's serial-vs-concurrent test scenarios are
// built on (see the package-level "counter of 1,000,000" scenario in the
// task package): the final sum is itself accumulated through a Counter so
// that threaded and single-goroutine runs are provably identical.
type Counter struct {
	mu    *Mutex
	cond  *Cond
	value int
}

// NewCounter creates a Counter starting at zero. required selects whether
// Increment/Reset actually synchronize with concurrent waiters or run as
// a lightweight single-goroutine shell.
func NewCounter(required bool) *Counter {
	mu := NewMutex(required, false)
	return &Counter{
		mu:   mu,
		cond: NewCond(mu, required),
	}
}

// Increment adds one to the counter and wakes any goroutine blocked in
// WaitFor.
func (c *Counter) Increment() {
	_ = c.mu.Lock()
	c.value++
	c.cond.Broadcast()
	_ = c.mu.Unlock(nil)
}

// Reset sets the counter back to zero and wakes any goroutine blocked in
// WaitFor.
func (c *Counter) Reset() {
	_ = c.mu.Lock()
	c.value = 0
	_ = c.mu.Unlock(nil)
	c.cond.Broadcast()
}

// Value returns the counter's current value.
func (c *Counter) Value() int {
	_ = c.mu.Lock()
	v := c.value
	_ = c.mu.Unlock(nil)
	return v
}

// WaitFor blocks until the counter equals value. Spurious wakeups are
// handled internally: the predicate is re-checked every time the
// condition variable wakes.
func (c *Counter) WaitFor(value int) {
	_ = c.mu.Lock()
	for c.value != value {
		c.cond.Wait()
	}
	_ = c.mu.Unlock(nil)
}
