package core

import "github.com/signalsfoundry/csma-simulator/timectrl"

// runMetrics accumulates channel statistics during a run. Only the driver
// writes to it.
type runMetrics struct {
	busy   timectrl.Slot
	delays []timectrl.Slot
}

func (m *runMetrics) addBusy(n timectrl.Slot) {
	m.busy += n
}

func (m *runMetrics) addDelay(d timectrl.Slot) {
	m.delays = append(m.delays, d)
}

// Summary holds the metrics derived from a RunResult.
type Summary struct {
	Generated           int     `json:"generated" yaml:"generated"`
	Successes           int     `json:"successes" yaml:"successes"`
	Collisions          int     `json:"collisions" yaml:"collisions"`
	Dropped             int     `json:"dropped" yaml:"dropped"`
	Remaining           int     `json:"remaining" yaml:"remaining"`
	ThroughputBps       float64 `json:"throughput_bps" yaml:"throughput_bps"`
	CollisionRate       float64 `json:"collision_rate" yaml:"collision_rate"`
	AverageDelaySlots   float64 `json:"average_delay_slots" yaml:"average_delay_slots"`
	AverageDelaySeconds float64 `json:"average_delay_seconds" yaml:"average_delay_seconds"`
	Utilization         float64 `json:"utilization" yaml:"utilization"`
}

// StationSummary is Summary scoped to one station. Utilization is the share of
// the horizon spent carrying that station's frames.
type StationSummary struct {
	ID string `json:"id" yaml:"id"`
	Summary
}

// Summarize derives throughput, collision rate, average delay and utilization
// from the raw counters. Every ratio falls back to zero when its denominator is
// zero.
func Summarize(r *RunResult) Summary {
	if r == nil {
		return Summary{}
	}
	t := r.Totals()
	return Summary{
		Generated:           t.Generated,
		Successes:           t.Successes,
		Collisions:          t.Collisions,
		Dropped:             t.Dropped,
		Remaining:           t.Remaining,
		ThroughputBps:       throughput(t.Successes, r.FrameSizeBits, r.DurationSeconds),
		CollisionRate:       ratio(float64(t.Collisions), float64(t.Generated)),
		AverageDelaySlots:   meanSlots(r.Delays),
		AverageDelaySeconds: meanSlots(r.Delays) * r.SlotDuration,
		Utilization:         ratio(float64(r.BusySlots), float64(r.HorizonSlots)),
	}
}

// SummarizeStations derives per-station metrics. Station busy time is
// reconstructed from its successes and the tx cycle of timing.
func SummarizeStations(r *RunResult, timing Timing) []StationSummary {
	if r == nil {
		return nil
	}
	out := make([]StationSummary, 0, len(r.Stations))
	for _, s := range r.Stations {
		busy := timectrl.Slot(s.Successes) * timing.TxCycleSlots()
		out = append(out, StationSummary{
			ID: s.ID,
			Summary: Summary{
				Generated:           s.Generated,
				Successes:           s.Successes,
				Collisions:          s.Collisions,
				Dropped:             s.Dropped,
				Remaining:           s.Remaining,
				ThroughputBps:       throughput(s.Successes, r.FrameSizeBits, r.DurationSeconds),
				CollisionRate:       ratio(float64(s.Collisions), float64(s.Generated)),
				AverageDelaySlots:   meanSlots(s.Delays),
				AverageDelaySeconds: meanSlots(s.Delays) * r.SlotDuration,
				Utilization:         ratio(float64(busy), float64(r.HorizonSlots)),
			},
		})
	}
	return out
}

func throughput(successes, frameBits int, seconds float64) float64 {
	return ratio(float64(successes)*float64(frameBits), seconds)
}

func ratio(num, den float64) float64 {
	if den == 0 {
		return 0
	}
	return num / den
}

func meanSlots(samples []timectrl.Slot) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, d := range samples {
		sum += float64(d)
	}
	return sum / float64(len(samples))
}
