package core

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/signalsfoundry/csma-simulator/internal/logging"
	"github.com/signalsfoundry/csma-simulator/timectrl"
)

// ErrAlreadyRun is returned when Run is called twice on one Simulator.
var ErrAlreadyRun = errors.New("simulation already ran")

// Simulator is the contention resolution loop. It owns the clock, every
// station and the run metrics, and runs synchronously to completion.
type Simulator struct {
	cfg        RunConfig
	clock      *timectrl.SlotClock
	stations   []*Station
	index      map[*Station]int
	visibility *Visibility
	ready      *readyIndex
	metrics    runMetrics
	observer   Observer
	log        logging.Logger

	// transmitter is set only while a success is being resolved.
	transmitter *Station
	rounds      int
	ran         bool
}

type simOptions struct {
	log            logging.Logger
	observers      []Observer
	clockListeners []func(from, to timectrl.Slot)
	backoffSources map[string]RandomSource
	arrivals       map[string][]timectrl.Slot
}

// Option configures a Simulator.
type Option func(*simOptions)

// WithLogger sets the run logger.
func WithLogger(log logging.Logger) Option {
	return func(o *simOptions) { o.log = log }
}

// WithObserver registers an outcome observer. Observers are called in
// registration order.
func WithObserver(obs Observer) Option {
	return func(o *simOptions) {
		if obs != nil {
			o.observers = append(o.observers, obs)
		}
	}
}

// WithClockListener registers a callback invoked on every clock advance.
func WithClockListener(fn func(from, to timectrl.Slot)) Option {
	return func(o *simOptions) {
		if fn != nil {
			o.clockListeners = append(o.clockListeners, fn)
		}
	}
}

// WithRandomSource replaces the backoff stream of one station.
func WithRandomSource(stationID string, src RandomSource) Option {
	return func(o *simOptions) {
		if o.backoffSources == nil {
			o.backoffSources = make(map[string]RandomSource)
		}
		o.backoffSources[stationID] = src
	}
}

// WithArrivals replaces the generated arrivals of one station.
func WithArrivals(stationID string, arrivals []timectrl.Slot) Option {
	return func(o *simOptions) {
		if o.arrivals == nil {
			o.arrivals = make(map[string][]timectrl.Slot)
		}
		o.arrivals[stationID] = append([]timectrl.Slot(nil), arrivals...)
	}
}

// NewSimulator validates cfg and builds every station with its arrival queue.
func NewSimulator(cfg RunConfig, opts ...Option) (*Simulator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := simOptions{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.log == nil {
		o.log = logging.Noop()
	}

	ids := make([]string, len(cfg.Stations))
	for i, st := range cfg.Stations {
		ids[i] = st.ID
	}
	for id := range o.arrivals {
		if !slices.Contains(ids, id) {
			return nil, fmt.Errorf("%w: arrivals given for unknown station %q", ErrInvalidConfig, id)
		}
	}
	for id := range o.backoffSources {
		if !slices.Contains(ids, id) {
			return nil, fmt.Errorf("%w: random source given for unknown station %q", ErrInvalidConfig, id)
		}
	}

	vis, err := NewVisibility(cfg.Visibility, ids...)
	if err != nil {
		return nil, err
	}

	horizon := cfg.HorizonSlots()
	stations := make([]*Station, len(cfg.Stations))
	index := make(map[*Station]int, len(cfg.Stations))
	for i, sc := range cfg.Stations {
		arrivalRand, backoffRand := stationRands(sc.Seed, sc.ID)
		arrivals, forced := o.arrivals[sc.ID]
		if forced {
			if err := checkArrivals(sc.ID, arrivals, horizon); err != nil {
				return nil, err
			}
		} else {
			arrivals = GenerateArrivals(sc.ArrivalRate, cfg.Duration, cfg.SlotDuration, arrivalRand)
		}

		var backoff RandomSource = backoffRand
		if src, ok := o.backoffSources[sc.ID]; ok {
			backoff = src
		}

		st := NewStation(sc.ID, arrivals, cfg.CWMin, cfg.CWMax, cfg.MaxRetries, backoff)
		stations[i] = st
		index[st] = i
	}

	clock := timectrl.NewSlotClock(horizon)
	for _, fn := range o.clockListeners {
		clock.AddListener(fn)
	}

	var observer Observer = multiObserver(o.observers)
	if len(o.observers) == 1 {
		observer = o.observers[0]
	}

	return &Simulator{
		cfg:        cfg,
		clock:      clock,
		stations:   stations,
		index:      index,
		visibility: vis,
		ready:      newReadyIndex(stations),
		observer:   observer,
		log:        o.log,
	}, nil
}

// Stations exposes the live stations for inspection.
func (s *Simulator) Stations() []*Station {
	return append([]*Station(nil), s.stations...)
}

// Clock exposes the run clock for read-only use.
func (s *Simulator) Clock() timectrl.SimClock {
	return s.clock
}

// Visibility returns the sensing relation in use.
func (s *Simulator) Visibility() *Visibility {
	return s.visibility
}

// Run advances the simulation until the horizon is reached or no frames are
// left, and returns the result record. It does not stop early on ctx
// cancellation; ctx carries logging and tracing scope only.
func (s *Simulator) Run(ctx context.Context) (*RunResult, error) {
	if s.ran {
		return nil, ErrAlreadyRun
	}
	s.ran = true

	s.log.Info(ctx, "simulation started",
		logging.Int("stations", len(s.stations)),
		logging.Int64("horizon_slots", int64(s.clock.Horizon())),
		logging.Int("frames", s.pendingFrames()),
	)

	for !s.clock.Expired() {
		more, err := s.step(ctx)
		if err != nil {
			return nil, err
		}
		if !more {
			break
		}
	}

	res := s.result()
	sum := Summarize(res)
	s.log.Info(ctx, "simulation finished",
		logging.Int64("end_slot", int64(res.EndSlot)),
		logging.Int("rounds", res.Rounds),
		logging.Int("successes", sum.Successes),
		logging.Int("collisions", sum.Collisions),
		logging.Int("dropped", sum.Dropped),
	)
	return res, nil
}

// step runs one contention round. It returns false once no station has a
// pending frame.
func (s *Simulator) step(ctx context.Context) (bool, error) {
	now := s.clock.Now()

	busy := s.visibility.BusyFlags(s.stations, s.transmitter)
	var idle []*Station
	for _, st := range s.stations {
		if st.HasFrameReady(now) && !busy[st.ID()] {
			idle = append(idle, st)
		}
	}

	if len(idle) == 0 {
		next, ok := s.ready.earliest()
		if !ok {
			return false, nil
		}
		return true, s.clock.AdvanceTo(max(now+1, next))
	}

	s.rounds++
	minBackoff := -1
	for _, st := range idle {
		if st.State() != StationContending {
			st.StartBackoff()
		}
		if minBackoff < 0 || st.Backoff() < minBackoff {
			minBackoff = st.Backoff()
		}
	}

	contenders := make([]*Station, 0, len(idle))
	for _, st := range idle {
		if st.Backoff() == minBackoff {
			contenders = append(contenders, st)
		}
	}

	if err := s.clock.AdvanceBy(s.cfg.Timing.DIFSSlots() + s.cfg.Timing.BackoffSlots(minBackoff)); err != nil {
		return false, err
	}

	if len(contenders) == 1 {
		return true, s.resolveSuccess(ctx, now, contenders[0])
	}
	s.resolveCollision(ctx, contenders)
	return true, nil
}

func (s *Simulator) resolveSuccess(ctx context.Context, roundStart timectrl.Slot, st *Station) error {
	s.transmitter = st
	st.setState(StationTransmitting)

	head, _ := st.Head()
	cycle := s.cfg.Timing.TxCycleSlots()
	delay := roundStart - head.Arrival + cycle

	st.ResetContentionWindow()
	st.recordSuccess(delay)
	s.metrics.addDelay(delay)

	if err := s.clock.AdvanceBy(cycle); err != nil {
		return err
	}
	s.metrics.addBusy(cycle)

	st.popHead()
	s.ready.refresh(s.index[st])
	st.setState(StationIdle)
	s.transmitter = nil

	s.observe(ctx, Event{
		Kind:             EventSuccess,
		At:               s.clock.Now(),
		StationID:        st.ID(),
		Contenders:       []string{st.ID()},
		Retries:          head.Retries,
		Delay:            delay,
		ContentionWindow: st.ContentionWindow(),
	})
	return nil
}

func (s *Simulator) resolveCollision(ctx context.Context, contenders []*Station) {
	now := s.clock.Now()
	ids := make([]string, len(contenders))
	for i, st := range contenders {
		ids[i] = st.ID()
	}

	for _, st := range contenders {
		retries := st.IncrementRetry(0)
		st.recordCollision()

		if st.RetryLimitReached(0) {
			st.popHead()
			st.recordDrop()
			s.observe(ctx, Event{Kind: EventCollision, At: now, StationID: st.ID(), Contenders: ids,
				Retries: retries, ContentionWindow: st.ContentionWindow()})
			s.observe(ctx, Event{Kind: EventDrop, At: now, StationID: st.ID(), Contenders: ids,
				Retries: retries, ContentionWindow: st.ContentionWindow()})
		} else {
			st.DoubleContentionWindow()
			backoff := st.StartBackoff()
			st.reschedule(now + s.cfg.Timing.BackoffSlots(backoff))
			s.observe(ctx, Event{Kind: EventCollision, At: now, StationID: st.ID(), Contenders: ids,
				Retries: retries, ContentionWindow: st.ContentionWindow(), Backoff: backoff})
		}

		st.setState(StationIdle)
		s.ready.refresh(s.index[st])
	}
}

func (s *Simulator) observe(ctx context.Context, ev Event) {
	if s.observer != nil {
		s.observer.Observe(ctx, ev)
	}
}

func (s *Simulator) pendingFrames() int {
	n := 0
	for _, st := range s.stations {
		n += st.QueueLen()
	}
	return n
}

func (s *Simulator) result() *RunResult {
	res := &RunResult{
		BusySlots:       s.metrics.busy,
		Delays:          append([]timectrl.Slot(nil), s.metrics.delays...),
		Stations:        make([]StationResult, len(s.stations)),
		HorizonSlots:    s.clock.Horizon(),
		EndSlot:         s.clock.Now(),
		Rounds:          s.rounds,
		SlotDuration:    s.cfg.SlotDuration,
		DurationSeconds: s.cfg.Duration,
		FrameSizeBits:   s.cfg.FrameSizeBits,
	}
	for i, st := range s.stations {
		res.Stations[i] = StationResult{
			ID:                    st.ID(),
			ArrivalRate:           s.cfg.Stations[i].ArrivalRate,
			Generated:             st.Generated(),
			Successes:             st.Successes(),
			Collisions:            st.Collisions(),
			Dropped:               st.Dropped(),
			Remaining:             st.QueueLen(),
			FinalContentionWindow: st.ContentionWindow(),
			Delays:                st.Delays(),
		}
	}
	return res
}

func checkArrivals(id string, arrivals []timectrl.Slot, horizon timectrl.Slot) error {
	for i, at := range arrivals {
		if at < 0 || at >= horizon {
			return fmt.Errorf("%w: station %q arrival %d outside [0, %d)", ErrInvalidConfig, id, at, horizon)
		}
		if i > 0 && at <= arrivals[i-1] {
			return fmt.Errorf("%w: station %q arrivals must be strictly increasing", ErrInvalidConfig, id)
		}
	}
	return nil
}
