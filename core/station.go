package core

import (
	"fmt"

	"github.com/signalsfoundry/csma-simulator/timectrl"
)

// StationState is the protocol phase of a station as assigned by the driver.
type StationState int

const (
	// StationIdle means no backoff is in progress.
	StationIdle StationState = iota
	// StationContending means a backoff value has been drawn for the head frame.
	StationContending
	// StationTransmitting is held only while the driver resolves a success.
	StationTransmitting
)

func (s StationState) String() string {
	switch s {
	case StationIdle:
		return "IDLE"
	case StationContending:
		return "CONTENDING"
	case StationTransmitting:
		return "TRANSMITTING"
	default:
		return fmt.Sprintf("StationState(%d)", int(s))
	}
}

// Frame is one queued frame. Ready differs from Arrival once the frame has
// been rescheduled after a collision.
type Frame struct {
	Arrival timectrl.Slot
	Ready   timectrl.Slot
	Retries int
}

// Station holds the passive per-station protocol state. It never advances
// time on its own; the Simulator drives every transition.
type Station struct {
	id string

	cwMin      int
	cwMax      int
	maxRetries int

	cw      int
	backoff int
	state   StationState

	queue []Frame
	rng   RandomSource
	// gen changes whenever the head frame or its ready time changes.
	gen uint64

	generated  int
	successes  int
	collisions int
	dropped    int
	delays     []timectrl.Slot
}

// NewStation builds a station whose queue holds the given arrival instants in
// order. rng drives backoff draws.
func NewStation(id string, arrivals []timectrl.Slot, cwMin, cwMax, maxRetries int, rng RandomSource) *Station {
	queue := make([]Frame, len(arrivals))
	for i, at := range arrivals {
		queue[i] = Frame{Arrival: at, Ready: at}
	}
	return &Station{
		id:         id,
		cwMin:      cwMin,
		cwMax:      cwMax,
		maxRetries: maxRetries,
		cw:         cwMin,
		queue:      queue,
		rng:        rng,
		generated:  len(arrivals),
	}
}

func (s *Station) ID() string                  { return s.id }
func (s *Station) ContentionWindow() int       { return s.cw }
func (s *Station) Backoff() int                { return s.backoff }
func (s *Station) State() StationState         { return s.state }
func (s *Station) QueueLen() int               { return len(s.queue) }
func (s *Station) Generated() int              { return s.generated }
func (s *Station) Successes() int              { return s.successes }
func (s *Station) Collisions() int             { return s.collisions }
func (s *Station) Dropped() int                { return s.dropped }
func (s *Station) MaxRetries() int             { return s.maxRetries }
func (s *Station) Delays() []timectrl.Slot     { return append([]timectrl.Slot(nil), s.delays...) }

// RetryCounts returns the retry count of every queued frame, index-aligned
// with the queue.
func (s *Station) RetryCounts() []int {
	out := make([]int, len(s.queue))
	for i, f := range s.queue {
		out[i] = f.Retries
	}
	return out
}

// Head returns the frame at the front of the queue.
func (s *Station) Head() (Frame, bool) {
	if len(s.queue) == 0 {
		return Frame{}, false
	}
	return s.queue[0], true
}

// HasFrameReady reports whether the head frame may contend at time t.
func (s *Station) HasFrameReady(t timectrl.Slot) bool {
	return len(s.queue) > 0 && s.queue[0].Ready <= t
}

// StartBackoff draws a backoff uniformly from [0, cw-1] and marks the station
// as contending. The queue is untouched.
func (s *Station) StartBackoff() int {
	s.backoff = s.rng.IntN(s.cw)
	s.state = StationContending
	return s.backoff
}

// DoubleContentionWindow applies binary exponential backoff, capped at cwMax.
func (s *Station) DoubleContentionWindow() {
	s.cw = min(s.cw*2, s.cwMax)
}

// ResetContentionWindow returns the window to cwMin after a success.
func (s *Station) ResetContentionWindow() {
	s.cw = s.cwMin
}

// IncrementRetry bumps the retry count of frame i and returns the new value.
func (s *Station) IncrementRetry(i int) int {
	s.queue[i].Retries++
	return s.queue[i].Retries
}

// RetryLimitReached reports whether frame i exhausted its retries.
func (s *Station) RetryLimitReached(i int) bool {
	return s.queue[i].Retries >= s.maxRetries
}

func (s *Station) setState(st StationState) {
	s.state = st
}

// popHead removes the head frame together with its retry count.
func (s *Station) popHead() Frame {
	f := s.queue[0]
	s.queue[0] = Frame{}
	s.queue = s.queue[1:]
	s.gen++
	return f
}

func (s *Station) reschedule(ready timectrl.Slot) {
	s.queue[0].Ready = ready
	s.gen++
}

func (s *Station) recordSuccess(delay timectrl.Slot) {
	s.successes++
	s.delays = append(s.delays, delay)
}

func (s *Station) recordCollision() {
	s.collisions++
}

func (s *Station) recordDrop() {
	s.dropped++
}
