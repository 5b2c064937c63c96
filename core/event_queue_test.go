package core

import (
	"testing"

	"github.com/signalsfoundry/csma-simulator/timectrl"
)

func TestEventQueueOrdersByTimeThenInsertion(t *testing.T) {
	q := newEventQueue()
	q.push(&queuedEvent{at: 30, station: 0})
	q.push(&queuedEvent{at: 10, station: 1})
	q.push(&queuedEvent{at: 30, station: 2})
	q.push(&queuedEvent{at: 20, station: 3})

	var order []int
	for q.Len() > 0 {
		order = append(order, q.pop().station)
	}
	want := []int{1, 3, 0, 2}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("pop order = %v, want %v", order, want)
		}
	}
	if q.pop() != nil || q.peek() != nil {
		t.Fatalf("empty queue should return nil")
	}
}

func TestReadyIndexSkipsStaleEntries(t *testing.T) {
	a := NewStation("A", []timectrl.Slot{5, 50}, 8, 1024, 7, nil)
	b := NewStation("B", []timectrl.Slot{20}, 8, 1024, 7, nil)
	idx := newReadyIndex([]*Station{a, b})

	if at, ok := idx.earliest(); !ok || at != 5 {
		t.Fatalf("earliest = %d, %v; want 5", at, ok)
	}

	a.reschedule(80)
	idx.refresh(0)
	if at, _ := idx.earliest(); at != 20 {
		t.Fatalf("earliest after reschedule = %d, want 20", at)
	}

	b.popHead()
	idx.refresh(1)
	if at, _ := idx.earliest(); at != 80 {
		t.Fatalf("earliest after B drained = %d, want 80", at)
	}

	a.popHead()
	idx.refresh(0)
	if at, _ := idx.earliest(); at != 50 {
		t.Fatalf("earliest after A popped = %d, want 50", at)
	}

	a.popHead()
	idx.refresh(0)
	if _, ok := idx.earliest(); ok {
		t.Fatalf("expected no pending frames")
	}
}

func TestEventKindString(t *testing.T) {
	kinds := map[EventKind]string{
		EventFrameReady: "frame_ready",
		EventSuccess:    "success",
		EventCollision:  "collision",
		EventDrop:       "drop",
		EventKind(99):   "unknown",
	}
	for k, want := range kinds {
		if got := k.String(); got != want {
			t.Errorf("%d.String() = %q, want %q", int(k), got, want)
		}
	}
}
