package core

import (
	"errors"
	"fmt"
	"strings"

	"github.com/signalsfoundry/csma-simulator/timectrl"
)

// ErrInvalidConfig is returned (wrapped) when a RunConfig cannot be simulated.
var ErrInvalidConfig = errors.New("invalid run configuration")

// Defaults taken from the reference 802.11-style setup: 10 µs slots, 10 s runs,
// 1500-byte frames on a 12 Mbps channel.
const (
	DefaultSlotDuration  = 10e-6
	DefaultDuration      = 10.0
	DefaultCWMin         = 8
	DefaultCWMax         = 1024
	DefaultMaxRetries    = 7
	DefaultFrameSizeBits = 1500 * 8
)

// Timing holds the inter-frame spacing and airtime parameters. SlotTime is the
// number of clock slots in one backoff slot-time; every other field is
// expressed in slot-times.
type Timing struct {
	SlotTime int
	DIFS     int
	SIFS     int
	ACK      int
	FrameTx  int
}

// DefaultTiming mirrors the reference constants: 10-slot slot-time,
// DIFS = 3, SIFS = 1, ACK = 2 slot-times and a 200-slot frame.
func DefaultTiming() Timing {
	return Timing{
		SlotTime: 10,
		DIFS:     3,
		SIFS:     1,
		ACK:      2,
		FrameTx:  20,
	}
}

// DIFSSlots is the DIFS duration in clock slots.
func (t Timing) DIFSSlots() timectrl.Slot {
	return timectrl.Slot(t.DIFS * t.SlotTime)
}

// BackoffSlots converts a backoff draw into clock slots.
func (t Timing) BackoffSlots(backoff int) timectrl.Slot {
	return timectrl.Slot(backoff * t.SlotTime)
}

// TxCycleSlots is the medium occupancy of one successful exchange:
// frame airtime, SIFS and the ACK.
func (t Timing) TxCycleSlots() timectrl.Slot {
	return timectrl.Slot((t.FrameTx + t.SIFS + t.ACK) * t.SlotTime)
}

// StationConfig describes one contending station.
type StationConfig struct {
	ID string
	// ArrivalRate is the mean Poisson arrival rate in frames per second.
	ArrivalRate float64
	// Seed feeds the station's private random streams, which are also keyed
	// by ID. Stations may share a seed.
	Seed uint64
}

// RunConfig is the complete input of a single simulation run.
type RunConfig struct {
	SlotDuration  float64 // seconds per clock slot
	Duration      float64 // seconds of simulated time
	Timing        Timing
	CWMin         int
	CWMax         int
	MaxRetries    int
	FrameSizeBits int
	Stations      []StationConfig
	// Visibility maps an observer to the stations whose transmissions it can
	// sense. Stations absent from the map sense nobody.
	Visibility map[string][]string
}

// DefaultRunConfig returns a config with every protocol parameter at its
// default and no stations.
func DefaultRunConfig() RunConfig {
	return RunConfig{
		SlotDuration:  DefaultSlotDuration,
		Duration:      DefaultDuration,
		Timing:        DefaultTiming(),
		CWMin:         DefaultCWMin,
		CWMax:         DefaultCWMax,
		MaxRetries:    DefaultMaxRetries,
		FrameSizeBits: DefaultFrameSizeBits,
	}
}

// HorizonSlots is the clock bound of the run.
func (c RunConfig) HorizonSlots() timectrl.Slot {
	return timectrl.SlotsFor(c.Duration, c.SlotDuration)
}

// Validate checks the configuration before any simulated time elapses.
func (c RunConfig) Validate() error {
	if c.SlotDuration <= 0 {
		return invalidf("slot duration must be positive, got %v", c.SlotDuration)
	}
	if c.Duration <= 0 {
		return invalidf("duration must be positive, got %v", c.Duration)
	}
	if c.CWMin < 1 {
		return invalidf("cw_min must be at least 1, got %d", c.CWMin)
	}
	if c.CWMin > c.CWMax {
		return invalidf("cw_min %d exceeds cw_max %d", c.CWMin, c.CWMax)
	}
	if !reachableByDoubling(c.CWMin, c.CWMax) {
		lo, hi := doublingBounds(c.CWMin, c.CWMax)
		return invalidf("cw_max %d is not cw_min %d times a power of two; the window doubles from cw_min on each collision and is capped at cw_max, which it must reach exactly (try %d or %d)",
			c.CWMax, c.CWMin, lo, hi)
	}
	if c.MaxRetries < 0 {
		return invalidf("max retries must not be negative, got %d", c.MaxRetries)
	}
	if c.FrameSizeBits <= 0 {
		return invalidf("frame size must be positive, got %d bits", c.FrameSizeBits)
	}
	if err := c.Timing.validate(); err != nil {
		return err
	}
	if len(c.Stations) == 0 {
		return invalidf("at least one station is required")
	}

	ids := make(map[string]struct{}, len(c.Stations))
	for _, st := range c.Stations {
		id := strings.TrimSpace(st.ID)
		if id == "" {
			return invalidf("station id is required")
		}
		if _, dup := ids[id]; dup {
			return invalidf("duplicate station id %q", id)
		}
		ids[id] = struct{}{}
		if st.ArrivalRate < 0 {
			return invalidf("station %q: arrival rate must not be negative, got %v", id, st.ArrivalRate)
		}
	}

	for observer, targets := range c.Visibility {
		if _, ok := ids[observer]; !ok {
			return invalidf("visibility references unknown station %q", observer)
		}
		for _, target := range targets {
			if _, ok := ids[target]; !ok {
				return invalidf("visibility of %q references unknown station %q", observer, target)
			}
		}
	}
	return nil
}

func (t Timing) validate() error {
	if t.SlotTime < 1 {
		return invalidf("slot time must be at least one clock slot, got %d", t.SlotTime)
	}
	if t.DIFS < 0 || t.SIFS < 0 || t.ACK < 0 || t.FrameTx < 0 {
		return invalidf("timing fields must not be negative: %+v", t)
	}
	return nil
}

func reachableByDoubling(lo, hi int) bool {
	for cw := lo; cw > 0 && cw <= hi; cw *= 2 {
		if cw == hi {
			return true
		}
	}
	return false
}

// doublingBounds returns the cw_min doublings just below and above cw.
func doublingBounds(cwMin, cw int) (lo, hi int) {
	lo = cwMin
	for lo*2 <= cw {
		lo *= 2
	}
	return lo, lo * 2
}

func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
}
