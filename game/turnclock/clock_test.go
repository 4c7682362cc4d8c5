package turnclock

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestClockFires(t *testing.T) {
	c := New()
	fired := make(chan uint64, 1)

	gen := c.Arm(1, 10*time.Millisecond, func(id int64, g uint64) {
		if c.Claim(id, g) {
			fired <- g
		}
	})

	select {
	case got := <-fired:
		if got != gen {
			t.Errorf("Expected generation %d, got %d", gen, got)
		}
	case <-time.After(time.Second):
		t.Fatal("Deadline never fired")
	}

	if c.Pending() != 0 {
		t.Errorf("Expected no pending deadlines after claim, got %d", c.Pending())
	}
}

func TestClockCancel(t *testing.T) {
	c := New()
	var calls atomic.Int32

	c.Arm(1, 20*time.Millisecond, func(id int64, g uint64) {
		calls.Add(1)
	})
	c.Cancel(1)

	time.Sleep(60 * time.Millisecond)
	if calls.Load() != 0 {
		t.Errorf("Cancelled deadline fired %d times", calls.Load())
	}
	if _, ok := c.ExpiresAt(1); ok {
		t.Error("Expected no deadline after cancel")
	}
}

func TestClockClaim(t *testing.T) {
	t.Run("stale generation is rejected", func(t *testing.T) {
		c := New()
		noop := func(int64, uint64) {}

		first := c.Arm(1, time.Hour, noop)
		second := c.Arm(1, time.Hour, noop)
		defer c.Cancel(1)

		if c.Claim(1, first) {
			t.Error("Claim succeeded for a replaced deadline")
		}
		if !c.Claim(1, second) {
			t.Error("Claim failed for the current deadline")
		}
		if c.Claim(1, second) {
			t.Error("Claim succeeded twice for the same deadline")
		}
	})

	t.Run("expiry after a move is a no-op", func(t *testing.T) {
		c := New()
		gen := c.Arm(1, time.Hour, func(int64, uint64) {})
		// A move cancels the deadline before the callback gets to claim it.
		c.Cancel(1)
		if c.Claim(1, gen) {
			t.Error("Claim succeeded after cancel")
		}
	})

	t.Run("sessions are independent", func(t *testing.T) {
		c := New()
		a := c.Arm(1, time.Hour, func(int64, uint64) {})
		b := c.Arm(2, time.Hour, func(int64, uint64) {})
		defer c.Cancel(2)

		if !c.Claim(1, a) {
			t.Error("Claim failed for session 1")
		}
		if c.Claim(1, b) {
			t.Error("Generation of session 2 claimed session 1")
		}
		if c.Pending() != 1 {
			t.Errorf("Expected 1 pending deadline, got %d", c.Pending())
		}
	})
}

func TestClockRetry(t *testing.T) {
	t.Run("current generation fires again", func(t *testing.T) {
		c := New()
		defer c.Cancel(1)
		fired := make(chan uint64, 2)
		var attempts atomic.Int32

		var fn ExpireFunc
		fn = func(id int64, g uint64) {
			if attempts.Add(1) == 1 {
				if !c.Retry(id, g, 10*time.Millisecond, fn) {
					t.Error("Retry failed for the current deadline")
				}
				return
			}
			if c.Claim(id, g) {
				fired <- g
			}
		}
		gen := c.Arm(1, 10*time.Millisecond, fn)

		select {
		case got := <-fired:
			if got != gen {
				t.Errorf("Expected generation %d, got %d", gen, got)
			}
		case <-time.After(time.Second):
			t.Fatal("Retried deadline never fired")
		}
		if attempts.Load() != 2 {
			t.Errorf("Expected 2 attempts, got %d", attempts.Load())
		}
	})

	t.Run("replaced or cancelled generation is not retried", func(t *testing.T) {
		c := New()
		noop := func(int64, uint64) {}

		first := c.Arm(1, time.Hour, noop)
		c.Arm(1, time.Hour, noop)
		if c.Retry(1, first, time.Millisecond, noop) {
			t.Error("Retry succeeded for a replaced deadline")
		}

		c.Cancel(1)
		if c.Retry(1, first, time.Millisecond, noop) {
			t.Error("Retry succeeded after cancel")
		}
		if c.Pending() != 0 {
			t.Errorf("Expected no pending deadlines, got %d", c.Pending())
		}
	})
}

func TestClockRemaining(t *testing.T) {
	c := New()
	base := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return base }

	c.Arm(1, 33*time.Second, func(int64, uint64) {})
	defer c.Cancel(1)

	c.now = func() time.Time { return base.Add(10 * time.Second) }
	left, ok := c.Remaining(1, 3*time.Second)
	if !ok {
		t.Fatal("Expected a pending deadline")
	}
	if left != 20*time.Second {
		t.Errorf("Expected 20s remaining, got %v", left)
	}

	c.now = func() time.Time { return base.Add(32 * time.Second) }
	left, _ = c.Remaining(1, 3*time.Second)
	if left != 0 {
		t.Errorf("Expected remaining time floored at zero, got %v", left)
	}

	if _, ok := c.Remaining(99, 0); ok {
		t.Error("Expected no deadline for unknown session")
	}
}

func TestClockRecoversPanics(t *testing.T) {
	c := New()
	done := make(chan struct{})

	c.Arm(1, 5*time.Millisecond, func(int64, uint64) {
		defer close(done)
		panic("boom")
	})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Handler never ran")
	}
}
