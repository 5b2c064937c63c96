package core

import (
	"math"

	"github.com/signalsfoundry/csma-simulator/timectrl"
)

// GenerateArrivals samples a Poisson arrival process of the given rate
// (frames/second) over duration seconds and returns the arrival instants in
// slots. The result is strictly increasing and bounded by the run horizon;
// a zero rate yields no arrivals.
func GenerateArrivals(rate, duration, slotDuration float64, rng RandomSource) []timectrl.Slot {
	horizon := timectrl.SlotsFor(duration, slotDuration)
	if rate <= 0 || horizon == 0 || rng == nil {
		return nil
	}

	arrivals := make([]timectrl.Slot, 0, int(math.Min(rate*duration, 1<<20)))
	elapsed := 0.0
	for {
		elapsed += rng.ExpFloat64() / rate
		if elapsed >= duration {
			break
		}
		slot := timectrl.Slot(elapsed / slotDuration)
		// Two arrivals truncated into one slot keep their order on adjacent slots.
		if n := len(arrivals); n > 0 && slot <= arrivals[n-1] {
			slot = arrivals[n-1] + 1
		}
		if slot >= horizon {
			break
		}
		arrivals = append(arrivals, slot)
	}
	return arrivals
}
