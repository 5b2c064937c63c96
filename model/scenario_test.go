package model

import "testing"

func TestDefaultScenarioIsHiddenTerminal(t *testing.T) {
	sc := DefaultScenario()

	if got := len(sc.Stations); got != 3 {
		t.Fatalf("stations = %d, want 3", got)
	}
	if got := sc.Visibility["A"]; len(got) != 1 || got[0] != "AP" {
		t.Fatalf("A visibility = %v, want [AP]", got)
	}
	for _, id := range sc.Visibility["A"] {
		if id == "B" {
			t.Fatalf("A must not sense B")
		}
	}
}

func TestWithArrivalRateDoesNotAlias(t *testing.T) {
	seed := uint64(9)
	base := DefaultScenario()
	base.Stations[0].Seed = &seed

	loaded := base.WithArrivalRate(800)
	for _, st := range loaded.Stations {
		if st.ArrivalRate != 800 {
			t.Fatalf("%s rate = %v, want 800", st.ID, st.ArrivalRate)
		}
	}
	if base.Stations[0].ArrivalRate != DefaultArrivalRates[0] {
		t.Fatalf("base scenario mutated: %v", base.Stations[0].ArrivalRate)
	}

	*loaded.Stations[0].Seed = 10
	loaded.Visibility["A"][0] = "X"
	if seed != 9 || base.Visibility["A"][0] != "AP" {
		t.Fatalf("clone shares memory with the original")
	}
}
