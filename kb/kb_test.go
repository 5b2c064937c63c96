package kb

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/signalsfoundry/csma-simulator/core"
)

func fixedClock(start time.Time) func() time.Time {
	var mu sync.Mutex
	next := start
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t := next
		next = next.Add(time.Second)
		return t
	}
}

func sampleResult(successes int) *core.RunResult {
	return &core.RunResult{
		HorizonSlots:    1000,
		SlotDuration:    10e-6,
		DurationSeconds: 0.01,
		FrameSizeBits:   12000,
		BusySlots:       230,
		Stations:        []core.StationResult{{ID: "A", Generated: successes, Successes: successes}},
	}
}

func TestAddAndGetRun(t *testing.T) {
	store := NewStore()
	id, err := store.Add(Record{Scenario: "hidden-terminal", Result: sampleResult(1)})
	if err != nil {
		t.Fatalf("Add error: %v", err)
	}
	if id == "" {
		t.Fatalf("Add returned empty id")
	}

	got, err := store.Get(id)
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if got.Scenario != "hidden-terminal" || got.CreatedAt.IsZero() {
		t.Fatalf("Get returned %#v", got)
	}
	if got.Summary.Successes != 1 {
		t.Fatalf("summary successes = %d, want 1", got.Summary.Successes)
	}
}

func TestAddRunDuplicate(t *testing.T) {
	store := NewStore()
	if _, err := store.Add(Record{ID: "r1"}); err != nil {
		t.Fatalf("first Add error: %v", err)
	}
	if _, err := store.Add(Record{ID: "r1"}); !errors.Is(err, ErrRunExists) {
		t.Fatalf("duplicate Add err = %v, want ErrRunExists", err)
	}
}

func TestGetAndDeleteMissing(t *testing.T) {
	store := NewStore()
	if _, err := store.Get("missing"); !errors.Is(err, ErrRunNotFound) {
		t.Fatalf("Get err = %v, want ErrRunNotFound", err)
	}
	if err := store.Delete("missing"); !errors.Is(err, ErrRunNotFound) {
		t.Fatalf("Delete err = %v, want ErrRunNotFound", err)
	}
}

func TestListOrdersByCreation(t *testing.T) {
	store := NewStore(WithClock(fixedClock(time.Unix(100, 0))))
	for i := range 3 {
		if _, err := store.Add(Record{ID: fmt.Sprintf("r-%d", 2-i)}); err != nil {
			t.Fatalf("Add error: %v", err)
		}
	}

	list := store.List()
	if len(list) != 3 || store.Len() != 3 {
		t.Fatalf("List len=%d, want 3", len(list))
	}
	for i, want := range []string{"r-2", "r-1", "r-0"} {
		if list[i].ID != want {
			t.Fatalf("List[%d] = %s, want %s", i, list[i].ID, want)
		}
	}
}

func TestListSweepOrdersByRate(t *testing.T) {
	store := NewStore()
	for _, rate := range []float64{800, 100, 300} {
		if _, err := store.Add(Record{SweepID: "s1", ArrivalRate: rate}); err != nil {
			t.Fatalf("Add error: %v", err)
		}
	}
	if _, err := store.Add(Record{SweepID: "other", ArrivalRate: 50}); err != nil {
		t.Fatalf("Add error: %v", err)
	}

	runs := store.ListSweep("s1")
	if len(runs) != 3 {
		t.Fatalf("ListSweep len=%d, want 3", len(runs))
	}
	if runs[0].ArrivalRate != 100 || runs[2].ArrivalRate != 800 {
		t.Fatalf("sweep not ordered by rate: %v, %v", runs[0].ArrivalRate, runs[2].ArrivalRate)
	}
}

func TestSubscribeAndUnsubscribe(t *testing.T) {
	store := NewStore()

	var events []Event
	unsubscribe := store.Subscribe(func(e Event) { events = append(events, e) })

	id, err := store.Add(Record{Scenario: "s"})
	if err != nil {
		t.Fatalf("Add error: %v", err)
	}
	if err := store.Delete(id); err != nil {
		t.Fatalf("Delete error: %v", err)
	}
	if len(events) != 2 || events[0].Type != EventRunStored || events[1].Type != EventRunDeleted {
		t.Fatalf("events = %#v", events)
	}
	if events[0].Run.ID != id {
		t.Fatalf("event run id = %s, want %s", events[0].Run.ID, id)
	}

	unsubscribe()
	unsubscribe()
	if _, err := store.Add(Record{}); err != nil {
		t.Fatalf("Add error: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("unsubscribed callback still invoked")
	}
}

func TestUnsubscribeKeepsOtherSubscribers(t *testing.T) {
	store := NewStore()
	var first, second int
	unsubFirst := store.Subscribe(func(Event) { first++ })
	store.Subscribe(func(Event) { second++ })

	unsubFirst()
	if _, err := store.Add(Record{}); err != nil {
		t.Fatalf("Add error: %v", err)
	}
	if first != 0 || second != 1 {
		t.Fatalf("first=%d second=%d, want 0 and 1", first, second)
	}
}

func TestConcurrentAccess(t *testing.T) {
	store := NewStore()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, _ = store.Add(Record{SweepID: "s", ArrivalRate: float64(i)})
		}()
		go func() {
			defer wg.Done()
			_ = store.List()
			_ = store.ListSweep("s")
		}()
	}
	wg.Wait()

	if store.Len() != 10 {
		t.Fatalf("Len = %d, want 10", store.Len())
	}
}
