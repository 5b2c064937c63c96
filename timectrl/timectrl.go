package timectrl

import (
	"fmt"
	"math"
	"sync"
)

// Slot is a simulated instant measured in slots since the start of a run.
type Slot int64

// Seconds converts the slot count to seconds for the given slot duration.
func (s Slot) Seconds(slotDuration float64) float64 {
	return float64(s) * slotDuration
}

// SlotsFor returns how many whole slots fit into duration seconds.
func SlotsFor(duration, slotDuration float64) Slot {
	if slotDuration <= 0 || duration <= 0 {
		return 0
	}
	return Slot(math.Floor(duration/slotDuration + 1e-9))
}

// SimClock is an interface for reading simulation time. Components that only
// observe time depend on it rather than on the concrete SlotClock.
type SimClock interface {
	// Now returns the current simulation time.
	Now() Slot
}

// SlotClock is the simulation clock of a single run. It never moves backwards
// and is advanced only by the driver that owns it.
type SlotClock struct {
	mu      sync.RWMutex
	current Slot
	horizon Slot

	listeners []func(from, to Slot)
}

// NewSlotClock constructs a clock at slot zero bounded by horizon.
func NewSlotClock(horizon Slot) *SlotClock {
	return &SlotClock{horizon: horizon}
}

// Now returns the current simulation time. Implements SimClock.
func (c *SlotClock) Now() Slot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current
}

// Horizon returns the exclusive upper bound of the run.
func (c *SlotClock) Horizon() Slot {
	return c.horizon
}

// Expired reports whether the clock reached its horizon.
func (c *SlotClock) Expired() bool {
	return c.Now() >= c.horizon
}

// AddListener registers a callback invoked after every advance.
func (c *SlotClock) AddListener(fn func(from, to Slot)) {
	c.listeners = append(c.listeners, fn)
}

// AdvanceBy moves the clock forward by n slots.
func (c *SlotClock) AdvanceBy(n Slot) error {
	if n < 0 {
		return fmt.Errorf("timectrl: cannot advance by negative %d slots", n)
	}
	return c.AdvanceTo(c.Now() + n)
}

// AdvanceTo moves the clock to t. Moving backwards is rejected.
func (c *SlotClock) AdvanceTo(t Slot) error {
	c.mu.Lock()
	from := c.current
	if t < from {
		c.mu.Unlock()
		return fmt.Errorf("timectrl: cannot move clock back from %d to %d", from, t)
	}
	c.current = t
	c.mu.Unlock()

	if t == from {
		return nil
	}
	for _, fn := range c.listeners {
		fn(from, t)
	}
	return nil
}
