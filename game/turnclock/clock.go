package turnclock

import (
	"log"
	"runtime/debug"
	"sync"
	"time"
)

// ExpireFunc is called when a deadline fires.
type ExpireFunc func(id int64, gen uint64)

type entry struct {
	gen       uint64
	timer     *time.Timer
	expiresAt time.Time
}

// Clock tracks pending turn deadlines keyed by session id.
type Clock struct {
	mu      sync.Mutex
	entries map[int64]*entry
	nextGen uint64
	now     func() time.Time
}

// New creates an empty clock.
func New() *Clock {
	return &Clock{
		entries: make(map[int64]*entry),
		now:     time.Now,
	}
}

// Arm schedules fn to run after d, replacing any pending deadline for id.
func (c *Clock) Arm(id int64, d time.Duration, fn ExpireFunc) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	if old, ok := c.entries[id]; ok {
		old.timer.Stop()
	}

	c.nextGen++
	gen := c.nextGen
	e := &entry{gen: gen, expiresAt: c.now().Add(d)}
	e.timer = schedule(id, gen, d, fn)
	c.entries[id] = e

	return gen
}

// Retry runs fn again after d for an expired deadline that could not be
// resolved yet. It does nothing and returns false once gen was claimed,
// cancelled or replaced. The reported deadline is unchanged.
func (c *Clock) Retry(id int64, gen uint64, d time.Duration, fn ExpireFunc) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[id]
	if !ok || e.gen != gen {
		return false
	}
	e.timer.Stop()
	e.timer = schedule(id, gen, d, fn)
	return true
}

func schedule(id int64, gen uint64, d time.Duration, fn ExpireFunc) *time.Timer {
	return time.AfterFunc(d, func() {
		defer func() {
			if r := recover(); r != nil {
				log.Printf("[CLOCK] expiry handler for session %d panicked: %v\n%s", id, r, debug.Stack())
			}
		}()
		fn(id, gen)
	})
}

// Claim removes the deadline for id if gen is still current. It returns
// false when the deadline was cancelled or replaced in the meantime.
func (c *Clock) Claim(id int64, gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[id]
	if !ok || e.gen != gen {
		return false
	}
	delete(c.entries, id)
	return true
}

// Cancel stops and removes the pending deadline for id, if any.
func (c *Clock) Cancel(id int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[id]; ok {
		e.timer.Stop()
		delete(c.entries, id)
	}
}

// ExpiresAt returns the pending deadline for id.
func (c *Clock) ExpiresAt(id int64) (time.Time, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[id]
	if !ok {
		return time.Time{}, false
	}
	return e.expiresAt, true
}

// Remaining returns the time left before the deadline for id minus buffer,
// floored at zero.
func (c *Clock) Remaining(id int64, buffer time.Duration) (time.Duration, bool) {
	at, ok := c.ExpiresAt(id)
	if !ok {
		return 0, false
	}
	left := at.Sub(c.now()) - buffer
	if left < 0 {
		left = 0
	}
	return left, true
}

// Pending returns the number of armed deadlines.
func (c *Clock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
