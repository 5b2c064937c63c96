package core

import (
	"errors"
	"strings"
	"testing"
)

func TestScenarioFromFileYAML(t *testing.T) {
	sc, err := ScenarioFromFile("testdata/two_station.yaml")
	if err != nil {
		t.Fatalf("ScenarioFromFile: %v", err)
	}

	if sc.Name != "two-station" || sc.Duration != 0.5 || sc.CWMin != 16 || sc.CWMax != 512 {
		t.Fatalf("unexpected scenario header: %+v", sc)
	}
	// Fields absent from the file keep their defaults.
	if sc.SlotDuration != 10e-6 || sc.MaxRetries != 7 || sc.Timing.DIFS != 3 {
		t.Fatalf("defaults not applied: %+v", sc)
	}

	cfg, err := RunConfigFromScenario(sc)
	if err != nil {
		t.Fatalf("RunConfigFromScenario: %v", err)
	}
	if len(cfg.Stations) != 2 {
		t.Fatalf("stations = %d, want 2", len(cfg.Stations))
	}
	if cfg.Stations[0].Seed != DeriveSeed(7, "STA1") {
		t.Fatalf("STA1 seed = %d, want derived", cfg.Stations[0].Seed)
	}
	if cfg.Stations[1].Seed != 99 {
		t.Fatalf("STA2 seed = %d, want 99", cfg.Stations[1].Seed)
	}
	if got := cfg.Visibility["STA1"]; len(got) != 1 || got[0] != "STA2" {
		t.Fatalf("STA1 visibility = %v", got)
	}
	if cfg.Timing.TxCycleSlots() != 230 {
		t.Fatalf("tx cycle = %d, want 230", cfg.Timing.TxCycleSlots())
	}
}

func TestLoadScenarioJSON(t *testing.T) {
	doc := `{"name":"json","seed":3,"duration":1,"stations":[{"id":"X","arrival_rate":50}]}`
	sc, err := LoadScenario(strings.NewReader(doc), FormatJSON)
	if err != nil {
		t.Fatalf("LoadScenario: %v", err)
	}
	if sc.Name != "json" || len(sc.Stations) != 1 || sc.Stations[0].ArrivalRate != 50 {
		t.Fatalf("unexpected scenario: %+v", sc)
	}
	if sc.CWMin != 8 || sc.CWMax != 1024 {
		t.Fatalf("contention defaults lost: %+v", sc)
	}
}

func TestLoadScenarioRejectsUnknownFields(t *testing.T) {
	cases := map[ScenarioFormat]string{
		FormatYAML: "name: x\nslot_tme: 1\n",
		FormatJSON: `{"name":"x","slot_tme":1}`,
	}
	for format, doc := range cases {
		if _, err := LoadScenario(strings.NewReader(doc), format); !errors.Is(err, ErrInvalidScenario) {
			t.Fatalf("%s: expected ErrInvalidScenario, got %v", format, err)
		}
	}
	if _, err := LoadScenario(strings.NewReader("{}"), ScenarioFormat("toml")); !errors.Is(err, ErrInvalidScenario) {
		t.Fatalf("unsupported format accepted: %v", err)
	}
}

func TestLoadScenarioEmptyDocumentUsesDefaults(t *testing.T) {
	sc, err := LoadScenario(strings.NewReader(""), FormatYAML)
	if err != nil {
		t.Fatalf("LoadScenario: %v", err)
	}
	if len(sc.Stations) != 3 || sc.Visibility["A"][0] != "AP" {
		t.Fatalf("expected hidden-terminal defaults, got %+v", sc)
	}

	cfg, err := RunConfigFromScenario(sc)
	if err != nil {
		t.Fatalf("RunConfigFromScenario: %v", err)
	}
	if cfg.HorizonSlots() != 1_000_000 {
		t.Fatalf("horizon = %d, want 1000000", cfg.HorizonSlots())
	}
}

func TestRunConfigFromScenarioValidates(t *testing.T) {
	sc, err := LoadScenario(strings.NewReader("cw_min: 8\ncw_max: 100\n"), FormatYAML)
	if err != nil {
		t.Fatalf("LoadScenario: %v", err)
	}
	if _, err := RunConfigFromScenario(sc); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig for cw_max 100, got %v", err)
	}
}

func TestFormatFromPath(t *testing.T) {
	if FormatFromPath("a/b.JSON") != FormatJSON {
		t.Fatalf("json extension not detected")
	}
	if FormatFromPath("a/b.yml") != FormatYAML || FormatFromPath("noext") != FormatYAML {
		t.Fatalf("yaml should be the default format")
	}
}
