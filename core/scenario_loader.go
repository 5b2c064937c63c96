package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/signalsfoundry/csma-simulator/model"
)

// ErrInvalidScenario is returned (wrapped) when a scenario document cannot be
// decoded.
var ErrInvalidScenario = errors.New("invalid scenario")

// ScenarioFormat selects the scenario encoding.
type ScenarioFormat string

const (
	FormatYAML ScenarioFormat = "yaml"
	FormatJSON ScenarioFormat = "json"
)

// FormatFromPath picks the format from a file extension, defaulting to YAML.
func FormatFromPath(path string) ScenarioFormat {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return FormatJSON
	}
	return FormatYAML
}

// LoadScenario decodes a scenario on top of the protocol defaults. A document
// without stations gets the default hidden-terminal stations. Unknown fields
// are rejected.
func LoadScenario(r io.Reader, format ScenarioFormat) (model.Scenario, error) {
	sc := model.BaseScenario()

	var err error
	switch format {
	case FormatJSON:
		dec := json.NewDecoder(r)
		dec.DisallowUnknownFields()
		err = dec.Decode(&sc)
	case FormatYAML, "":
		dec := yaml.NewDecoder(r)
		dec.KnownFields(true)
		err = dec.Decode(&sc)
	default:
		return model.Scenario{}, fmt.Errorf("%w: unsupported format %q", ErrInvalidScenario, format)
	}
	if err != nil && !errors.Is(err, io.EOF) {
		return model.Scenario{}, fmt.Errorf("%w: decode %s: %v", ErrInvalidScenario, format, err)
	}

	if len(sc.Stations) == 0 {
		def := model.DefaultScenario()
		sc.Stations = def.Stations
		if sc.Visibility == nil {
			sc.Visibility = def.Visibility
		}
	}
	return sc, nil
}

// ScenarioFromFile reads and decodes the scenario at path.
func ScenarioFromFile(path string) (model.Scenario, error) {
	f, err := os.Open(path)
	if err != nil {
		return model.Scenario{}, fmt.Errorf("open scenario %q: %w", path, err)
	}
	defer f.Close()

	sc, err := LoadScenario(f, FormatFromPath(path))
	if err != nil {
		return model.Scenario{}, fmt.Errorf("load scenario %q: %w", path, err)
	}
	return sc, nil
}

// RunConfigFromScenario converts a scenario into a validated RunConfig,
// deriving per-station seeds from the scenario seed where none is pinned.
func RunConfigFromScenario(sc model.Scenario) (RunConfig, error) {
	cfg := RunConfig{
		SlotDuration: sc.SlotDuration,
		Duration:     sc.Duration,
		Timing: Timing{
			SlotTime: sc.Timing.SlotTime,
			DIFS:     sc.Timing.DIFS,
			SIFS:     sc.Timing.SIFS,
			ACK:      sc.Timing.ACK,
			FrameTx:  sc.Timing.FrameTx,
		},
		CWMin:         sc.CWMin,
		CWMax:         sc.CWMax,
		MaxRetries:    sc.MaxRetries,
		FrameSizeBits: sc.FrameSizeBits,
		Stations:      make([]StationConfig, len(sc.Stations)),
	}
	for i, st := range sc.Stations {
		seed := DeriveSeed(sc.Seed, st.ID)
		if st.Seed != nil {
			seed = *st.Seed
		}
		cfg.Stations[i] = StationConfig{
			ID:          strings.TrimSpace(st.ID),
			ArrivalRate: st.ArrivalRate,
			Seed:        seed,
		}
	}
	if len(sc.Visibility) > 0 {
		cfg.Visibility = make(map[string][]string, len(sc.Visibility))
		for k, v := range sc.Visibility {
			cfg.Visibility[k] = append([]string(nil), v...)
		}
	}

	if err := cfg.Validate(); err != nil {
		return RunConfig{}, err
	}
	return cfg, nil
}
