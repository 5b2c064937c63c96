package core

import (
	"container/heap"

	"github.com/signalsfoundry/csma-simulator/timectrl"
)

// EventKind classifies timestamped simulation events.
type EventKind int

const (
	// EventFrameReady marks the instant a station's head frame may contend.
	EventFrameReady EventKind = iota
	EventSuccess
	EventCollision
	EventDrop
)

func (k EventKind) String() string {
	switch k {
	case EventFrameReady:
		return "frame_ready"
	case EventSuccess:
		return "success"
	case EventCollision:
		return "collision"
	case EventDrop:
		return "drop"
	default:
		return "unknown"
	}
}

// queuedEvent is an entry of eventQueue. gen snapshots the station generation
// so entries made stale by later queue changes can be skipped lazily.
type queuedEvent struct {
	at      timectrl.Slot
	seq     uint64
	kind    EventKind
	station int
	gen     uint64
}

type eventHeap []*queuedEvent

func (h eventHeap) Len() int { return len(h) }
func (h eventHeap) Less(i, j int) bool {
	if h[i].at != h[j].at {
		return h[i].at < h[j].at
	}
	return h[i].seq < h[j].seq
}
func (h eventHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *eventHeap) Push(x any) { *h = append(*h, x.(*queuedEvent)) }

func (h *eventHeap) Pop() any {
	old := *h
	n := len(old)
	ev := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return ev
}

// eventQueue orders events by time, then by insertion order.
type eventQueue struct {
	h   eventHeap
	seq uint64
}

func newEventQueue() *eventQueue {
	q := &eventQueue{}
	heap.Init(&q.h)
	return q
}

func (q *eventQueue) Len() int { return q.h.Len() }

func (q *eventQueue) push(ev *queuedEvent) {
	q.seq++
	ev.seq = q.seq
	heap.Push(&q.h, ev)
}

func (q *eventQueue) peek() *queuedEvent {
	if q.h.Len() == 0 {
		return nil
	}
	return q.h[0]
}

func (q *eventQueue) pop() *queuedEvent {
	if q.h.Len() == 0 {
		return nil
	}
	return heap.Pop(&q.h).(*queuedEvent)
}

// readyIndex tracks the head-ready instant of every station.
type readyIndex struct {
	q        *eventQueue
	stations []*Station
}

func newReadyIndex(stations []*Station) *readyIndex {
	idx := &readyIndex{q: newEventQueue(), stations: stations}
	for i := range stations {
		idx.refresh(i)
	}
	return idx
}

// refresh records station i's current head frame, if any.
func (r *readyIndex) refresh(i int) {
	st := r.stations[i]
	head, ok := st.Head()
	if !ok {
		return
	}
	r.q.push(&queuedEvent{at: head.Ready, kind: EventFrameReady, station: i, gen: st.gen})
}

// earliest returns the smallest head-ready instant across all stations,
// discarding stale entries on the way.
func (r *readyIndex) earliest() (timectrl.Slot, bool) {
	for {
		ev := r.q.peek()
		if ev == nil {
			return 0, false
		}
		st := r.stations[ev.station]
		if ev.gen == st.gen && st.QueueLen() > 0 {
			return ev.at, true
		}
		r.q.pop()
	}
}
