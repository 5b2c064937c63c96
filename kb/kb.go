package kb

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/signalsfoundry/csma-simulator/core"
)

var (
	// ErrRunNotFound is returned when a run id is unknown to the store.
	ErrRunNotFound = errors.New("run not found")
	// ErrRunExists is returned when a record is added under an id already in use.
	ErrRunExists = errors.New("run already exists")
)

// EventType indicates what kind of change happened in the store.
type EventType int

const (
	EventRunStored EventType = iota
	EventRunDeleted
)

func (t EventType) String() string {
	switch t {
	case EventRunStored:
		return "run_stored"
	case EventRunDeleted:
		return "run_deleted"
	default:
		return "unknown"
	}
}

// Event is emitted to subscribers when something interesting happens.
type Event struct {
	Type EventType
	Run  Record
}

// Record is one completed simulation run. Result is shared between readers
// and must be treated as read-only once stored.
type Record struct {
	ID       string `json:"id" yaml:"id"`
	Scenario string `json:"scenario" yaml:"scenario"`
	// SweepID groups the runs of one load sweep; empty for single runs.
	SweepID string `json:"sweep_id,omitempty" yaml:"sweep_id,omitempty"`
	// ArrivalRate is the per-station offered load the run was swept at.
	ArrivalRate float64         `json:"arrival_rate" yaml:"arrival_rate"`
	CreatedAt   time.Time       `json:"created_at" yaml:"created_at"`
	Summary     core.Summary    `json:"summary" yaml:"summary"`
	Result      *core.RunResult `json:"result,omitempty" yaml:"result,omitempty"`
}

// Store is an in-memory, thread-safe store of completed runs.
type Store struct {
	mu sync.RWMutex

	runs map[string]*Record
	now  func() time.Time

	nextSub int
	subs    map[int]func(Event)
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the timestamp source used for CreatedAt.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// NewStore constructs an empty store.
func NewStore(opts ...Option) *Store {
	s := &Store{
		runs: make(map[string]*Record),
		now:  time.Now,
		subs: make(map[int]func(Event)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Add stores rec and returns its id. A missing id is generated and a missing
// summary is computed from the result.
func (s *Store) Add(rec Record) (string, error) {
	rec.ID = strings.TrimSpace(rec.ID)
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.Summary == (core.Summary{}) && rec.Result != nil {
		rec.Summary = core.Summarize(rec.Result)
	}

	s.mu.Lock()
	if _, exists := s.runs[rec.ID]; exists {
		s.mu.Unlock()
		return "", fmt.Errorf("%w: %q", ErrRunExists, rec.ID)
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = s.now()
	}
	stored := rec
	s.runs[rec.ID] = &stored
	subs := s.snapshotSubs()
	s.mu.Unlock()

	// Notify subscribers outside the lock to avoid deadlocks.
	notify(subs, Event{Type: EventRunStored, Run: rec})
	return rec.ID, nil
}

// Get returns the run with the given id.
func (s *Store) Get(id string) (Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.runs[id]
	if !ok {
		return Record{}, fmt.Errorf("%w: %q", ErrRunNotFound, id)
	}
	return *rec, nil
}

// Delete removes the run with the given id.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	rec, ok := s.runs[id]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrRunNotFound, id)
	}
	delete(s.runs, id)
	subs := s.snapshotSubs()
	s.mu.Unlock()

	notify(subs, Event{Type: EventRunDeleted, Run: *rec})
	return nil
}

// List returns a snapshot of all runs, oldest first.
func (s *Store) List() []Record {
	s.mu.RLock()
	res := make([]Record, 0, len(s.runs))
	for _, rec := range s.runs {
		res = append(res, *rec)
	}
	s.mu.RUnlock()

	sort.Slice(res, func(i, j int) bool {
		if !res[i].CreatedAt.Equal(res[j].CreatedAt) {
			return res[i].CreatedAt.Before(res[j].CreatedAt)
		}
		return res[i].ID < res[j].ID
	})
	return res
}

// ListSweep returns the runs of one sweep ordered by arrival rate.
func (s *Store) ListSweep(sweepID string) []Record {
	s.mu.RLock()
	var res []Record
	for _, rec := range s.runs {
		if rec.SweepID == sweepID {
			res = append(res, *rec)
		}
	}
	s.mu.RUnlock()

	sort.Slice(res, func(i, j int) bool {
		if res[i].ArrivalRate != res[j].ArrivalRate {
			return res[i].ArrivalRate < res[j].ArrivalRate
		}
		return res[i].ID < res[j].ID
	})
	return res
}

// Len reports the number of stored runs.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.runs)
}

// Subscribe registers a callback for store events. It returns an unsubscribe
// function that is safe to call more than once.
func (s *Store) Subscribe(fn func(Event)) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subs, id)
	}
}

// snapshotSubs must be called with s.mu held. Subscribers are returned in
// registration order.
func (s *Store) snapshotSubs() []func(Event) {
	ids := make([]int, 0, len(s.subs))
	for id := range s.subs {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	out := make([]func(Event), len(ids))
	for i, id := range ids {
		out[i] = s.subs[id]
	}
	return out
}

func notify(subs []func(Event), ev Event) {
	for _, sub := range subs {
		sub(ev)
	}
}
