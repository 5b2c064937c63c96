package model

// DefaultArrivalRates are the offered loads (frames/second) swept by default.
var DefaultArrivalRates = []float64{100, 200, 300, 500, 800, 1000}

// TimingDefinition carries the inter-frame spacing of a scenario. SlotTime is
// in clock slots; the remaining fields are in slot-times.
type TimingDefinition struct {
	SlotTime int `json:"slot_time" yaml:"slot_time"`
	DIFS     int `json:"difs" yaml:"difs"`
	SIFS     int `json:"sifs" yaml:"sifs"`
	ACK      int `json:"ack" yaml:"ack"`
	FrameTx  int `json:"frame_tx" yaml:"frame_tx"`
}

// StationDefinition describes a station taking part in a scenario.
type StationDefinition struct {
	ID          string  `json:"id" yaml:"id"`
	ArrivalRate float64 `json:"arrival_rate" yaml:"arrival_rate"` // frames per second
	// Seed pins the station's random streams. When nil it is derived from the
	// scenario seed and the station id.
	Seed *uint64 `json:"seed,omitempty" yaml:"seed,omitempty"`
}

// Scenario is the file-level description of a simulation run.
type Scenario struct {
	Name          string              `json:"name" yaml:"name"`
	Seed          uint64              `json:"seed" yaml:"seed"`
	SlotDuration  float64             `json:"slot_duration" yaml:"slot_duration"` // seconds
	Duration      float64             `json:"duration" yaml:"duration"`           // seconds
	Timing        TimingDefinition    `json:"timing" yaml:"timing"`
	CWMin         int                 `json:"cw_min" yaml:"cw_min"`
	CWMax         int                 `json:"cw_max" yaml:"cw_max"`
	MaxRetries    int                 `json:"max_retries" yaml:"max_retries"`
	FrameSizeBits int                 `json:"frame_size_bits" yaml:"frame_size_bits"`
	Stations      []StationDefinition `json:"stations" yaml:"stations"`
	// Visibility maps each observer to the stations it can sense.
	Visibility map[string][]string `json:"visibility,omitempty" yaml:"visibility,omitempty"`
}

// BaseScenario returns the protocol defaults with no stations.
func BaseScenario() Scenario {
	return Scenario{
		Name:         "csma-ca",
		Seed:         1,
		SlotDuration: 10e-6,
		Duration:     10,
		Timing: TimingDefinition{
			SlotTime: 10,
			DIFS:     3,
			SIFS:     1,
			ACK:      2,
			FrameTx:  20,
		},
		CWMin:         8,
		CWMax:         1024,
		MaxRetries:    7,
		FrameSizeBits: 1500 * 8,
	}
}

// DefaultScenario is the hidden-terminal setup: stations A and B both reach
// the access point but not each other, and the access point carries its own
// downlink traffic.
func DefaultScenario() Scenario {
	sc := BaseScenario()
	sc.Name = "hidden-terminal"
	sc.Stations = []StationDefinition{
		{ID: "A", ArrivalRate: DefaultArrivalRates[0]},
		{ID: "B", ArrivalRate: DefaultArrivalRates[0]},
		{ID: "AP", ArrivalRate: DefaultArrivalRates[0]},
	}
	sc.Visibility = map[string][]string{
		"A":  {"AP"},
		"B":  {"AP"},
		"AP": {"A", "B"},
	}
	return sc
}

// WithArrivalRate returns a copy in which every station offers rate frames/s.
func (s Scenario) WithArrivalRate(rate float64) Scenario {
	out := s.Clone()
	for i := range out.Stations {
		out.Stations[i].ArrivalRate = rate
	}
	return out
}

// Clone deep-copies the scenario.
func (s Scenario) Clone() Scenario {
	out := s
	out.Stations = make([]StationDefinition, len(s.Stations))
	for i, st := range s.Stations {
		if st.Seed != nil {
			seed := *st.Seed
			st.Seed = &seed
		}
		out.Stations[i] = st
	}
	if s.Visibility != nil {
		out.Visibility = make(map[string][]string, len(s.Visibility))
		for k, v := range s.Visibility {
			out.Visibility[k] = append([]string(nil), v...)
		}
	}
	return out
}

// StationIDs lists station ids in declaration order.
func (s Scenario) StationIDs() []string {
	ids := make([]string, len(s.Stations))
	for i, st := range s.Stations {
		ids[i] = st.ID
	}
	return ids
}
