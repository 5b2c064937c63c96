package core

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/signalsfoundry/csma-simulator/timectrl"
)

func hiddenTerminalVisibility(t *testing.T) *Visibility {
	t.Helper()
	v, err := NewVisibility(map[string][]string{
		"A":  {"AP"},
		"B":  {"AP"},
		"AP": {"A", "B"},
	}, "A", "B", "AP")
	if err != nil {
		t.Fatalf("NewVisibility: %v", err)
	}
	return v
}

func TestCanSenseIsAsymmetric(t *testing.T) {
	v, err := NewVisibility(map[string][]string{"A": {"B", "A"}})
	if err != nil {
		t.Fatalf("NewVisibility: %v", err)
	}
	if !v.CanSense("A", "B") {
		t.Fatalf("A should sense B")
	}
	if v.CanSense("B", "A") {
		t.Fatalf("B should not sense A")
	}
	if v.CanSense("A", "A") {
		t.Fatalf("a station never senses itself")
	}
	if got := v.Sensed("A"); !reflect.DeepEqual(got, []string{"B"}) {
		t.Fatalf("Sensed(A) = %v, want [B]", got)
	}
}

func TestBusyFlags(t *testing.T) {
	v := hiddenTerminalVisibility(t)
	a := NewStation("A", nil, 8, 1024, 7, nil)
	b := NewStation("B", nil, 8, 1024, 7, nil)
	ap := NewStation("AP", nil, 8, 1024, 7, nil)
	all := []*Station{a, b, ap}

	busy := v.BusyFlags(all, a)
	want := map[string]bool{"A": false, "B": false, "AP": true}
	if !reflect.DeepEqual(busy, want) {
		t.Fatalf("BusyFlags(transmitter=A) = %v, want %v", busy, want)
	}

	busy = v.BusyFlags(all, nil)
	for id, isBusy := range busy {
		if isBusy {
			t.Fatalf("%s perceives busy with no transmitter", id)
		}
	}
}

func TestHiddenPairs(t *testing.T) {
	v := hiddenTerminalVisibility(t)
	got := v.HiddenPairs([]string{"A", "B", "AP"})
	want := [][2]string{{"A", "B"}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("HiddenPairs = %v, want %v", got, want)
	}
}

func TestNewVisibilityRejectsUnknownIDs(t *testing.T) {
	_, err := NewVisibility(map[string][]string{"A": {"Q"}}, "A", "B")
	if !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("error = %v, want ErrInvalidConfig", err)
	}
}

func TestHiddenStationsCollideAtAccessPoint(t *testing.T) {
	cfg := testConfig("A", "B", "AP")
	cfg.Visibility = map[string][]string{"A": {"AP"}, "B": {"AP"}, "AP": {"A", "B"}}

	sim, err := NewSimulator(cfg,
		WithArrivals("A", []timectrl.Slot{0}),
		WithArrivals("B", []timectrl.Slot{0}),
		WithRandomSource("A", &fixedDraws{draws: []int{2, 6}}),
		WithRandomSource("B", &fixedDraws{draws: []int{2, 1}}),
	)
	if err != nil {
		t.Fatalf("NewSimulator: %v", err)
	}

	if _, err := sim.step(context.Background()); err != nil {
		t.Fatalf("step: %v", err)
	}
	a, b := sim.Stations()[0], sim.Stations()[1]
	if a.Collisions() != 1 || b.Collisions() != 1 {
		t.Fatalf("hidden stations with equal backoff should both collide, got %d/%d", a.Collisions(), b.Collisions())
	}
}
