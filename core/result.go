package core

import "github.com/signalsfoundry/csma-simulator/timectrl"

// StationResult holds a station's terminal counters.
type StationResult struct {
	ID                    string          `json:"id" yaml:"id"`
	ArrivalRate           float64         `json:"arrival_rate" yaml:"arrival_rate"`
	Generated             int             `json:"generated" yaml:"generated"`
	Successes             int             `json:"successes" yaml:"successes"`
	Collisions            int             `json:"collisions" yaml:"collisions"`
	Dropped               int             `json:"dropped" yaml:"dropped"`
	Remaining             int             `json:"remaining" yaml:"remaining"`
	FinalContentionWindow int             `json:"final_contention_window" yaml:"final_contention_window"`
	// Delays holds the station's per-success samples, measured as in RunResult.
	Delays                []timectrl.Slot `json:"delays,omitempty" yaml:"delays,omitempty"`
}

// RunResult is the record produced by one run. Derived metrics are computed
// from it by Summarize.
type RunResult struct {
	BusySlots       timectrl.Slot   `json:"busy_slots" yaml:"busy_slots"`
	// Delays holds one sample per delivered frame, in clock slots: from the
	// frame's arrival to the start of the winning round, plus frame, SIFS and
	// ACK time. The winning round's DIFS and backoff are not included, so a
	// frame that finds the channel free on arrival reports exactly one
	// transmission cycle.
	Delays          []timectrl.Slot `json:"delays,omitempty" yaml:"delays,omitempty"`
	Stations        []StationResult `json:"stations" yaml:"stations"`
	HorizonSlots    timectrl.Slot   `json:"horizon_slots" yaml:"horizon_slots"`
	EndSlot         timectrl.Slot   `json:"end_slot" yaml:"end_slot"`
	Rounds          int             `json:"rounds" yaml:"rounds"`
	SlotDuration    float64         `json:"slot_duration" yaml:"slot_duration"`
	DurationSeconds float64         `json:"duration_seconds" yaml:"duration_seconds"`
	FrameSizeBits   int             `json:"frame_size_bits" yaml:"frame_size_bits"`
}

// Totals sums the per-station counters.
func (r *RunResult) Totals() StationResult {
	var t StationResult
	if r == nil {
		return t
	}
	t.ID = "total"
	for _, s := range r.Stations {
		t.ArrivalRate += s.ArrivalRate
		t.Generated += s.Generated
		t.Successes += s.Successes
		t.Collisions += s.Collisions
		t.Dropped += s.Dropped
		t.Remaining += s.Remaining
	}
	return t
}

// Station looks up a station's result by id.
func (r *RunResult) Station(id string) (StationResult, bool) {
	if r == nil {
		return StationResult{}, false
	}
	for _, s := range r.Stations {
		if s.ID == id {
			return s, true
		}
	}
	return StationResult{}, false
}

// StripDelays returns a copy without the per-frame delay samples.
func (r *RunResult) StripDelays() *RunResult {
	if r == nil {
		return nil
	}
	out := *r
	out.Delays = nil
	out.Stations = make([]StationResult, len(r.Stations))
	for i, s := range r.Stations {
		s.Delays = nil
		out.Stations[i] = s
	}
	return &out
}
