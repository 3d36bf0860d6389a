package attack

import (
	"sync"
	"time"
)

// fakeClock jumps forward by the requested duration on every After call.
// overshoot is added to each jump to simulate a late wake-up.
type fakeClock struct {
	mu        sync.Mutex
	now       time.Time
	overshoot time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	c.now = c.now.Add(d + c.overshoot)
	now := c.now
	c.mu.Unlock()

	ch := make(chan time.Time, 1)
	ch <- now
	return ch
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// stuckClock never fires.
type stuckClock struct{ *fakeClock }

func (c *stuckClock) After(time.Duration) <-chan time.Time {
	return make(chan time.Time)
}
