package core

import (
	"math"
	"reflect"
	"testing"

	"github.com/signalsfoundry/csma-simulator/timectrl"
)

// constGap returns the same exponential sample every time.
type constGap float64

func (g constGap) IntN(int) int        { return 0 }
func (g constGap) ExpFloat64() float64 { return float64(g) }

func TestGenerateArrivalsPoissonProperties(t *testing.T) {
	const (
		rate     = 1000.0
		duration = 10.0
		slot     = 10e-6
	)
	arrivals := GenerateArrivals(rate, duration, slot, NewStationRand(7, streamArrivals))
	horizon := timectrl.SlotsFor(duration, slot)

	for i, at := range arrivals {
		if at < 0 || at >= horizon {
			t.Fatalf("arrival %d = %d outside [0, %d)", i, at, horizon)
		}
		if i > 0 && at <= arrivals[i-1] {
			t.Fatalf("arrivals not strictly increasing at %d: %d after %d", i, at, arrivals[i-1])
		}
	}

	expected := rate * duration
	if got := float64(len(arrivals)); math.Abs(got-expected) > 0.05*expected {
		t.Fatalf("generated %v arrivals, want about %v", got, expected)
	}
}

func TestGenerateArrivalsZeroRate(t *testing.T) {
	if got := GenerateArrivals(0, 10, 10e-6, NewStationRand(1, streamArrivals)); len(got) != 0 {
		t.Fatalf("zero rate produced %d arrivals", len(got))
	}
}

func TestGenerateArrivalsTruncatesAndSeparates(t *testing.T) {
	// Half-slot gaps truncate two arrivals into the same slot.
	got := GenerateArrivals(1, 3, 1, constGap(0.5))
	want := []timectrl.Slot{0, 1, 2}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("arrivals = %v, want %v", got, want)
	}
}

func TestGenerateArrivalsIndependentStreams(t *testing.T) {
	a := GenerateArrivals(500, 1, 10e-6, NewStationRand(DeriveSeed(1, "A"), streamArrivals))
	b := GenerateArrivals(500, 1, 10e-6, NewStationRand(DeriveSeed(1, "B"), streamArrivals))
	if reflect.DeepEqual(a, b) {
		t.Fatalf("stations with distinct seeds replayed identical arrivals")
	}

	again := GenerateArrivals(500, 1, 10e-6, NewStationRand(DeriveSeed(1, "A"), streamArrivals))
	if !reflect.DeepEqual(a, again) {
		t.Fatalf("same seed produced different arrivals")
	}
}

func TestStationRandsSeparateSharedSeed(t *testing.T) {
	arrA, backA := stationRands(0, "A")
	arrB, backB := stationRands(0, "B")

	a := GenerateArrivals(100, 1, 10e-6, arrA)
	b := GenerateArrivals(100, 1, 10e-6, arrB)
	if reflect.DeepEqual(a, b) {
		t.Fatalf("stations sharing seed 0 replayed identical arrivals")
	}

	same := true
	for i := 0; i < 16; i++ {
		if backA.IntN(1024) != backB.IntN(1024) {
			same = false
		}
	}
	if same {
		t.Fatalf("stations sharing seed 0 drew identical backoffs")
	}

	again, _ := stationRands(0, "A")
	if !reflect.DeepEqual(a, GenerateArrivals(100, 1, 10e-6, again)) {
		t.Fatalf("same seed and id produced different arrivals")
	}
}
