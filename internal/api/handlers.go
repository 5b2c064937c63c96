package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/signalsfoundry/csma-simulator/core"
	"github.com/signalsfoundry/csma-simulator/kb"
	"github.com/signalsfoundry/csma-simulator/model"
)

const maxBodyBytes = 1 << 20

// SweepRequest is the body of POST /v1/sweeps. Omitted rates fall back to
// the default load points and an omitted scenario to the hidden-terminal
// setup.
type SweepRequest struct {
	Rates    []float64       `json:"rates,omitempty"`
	Scenario json.RawMessage `json:"scenario,omitempty"`
}

type runList struct {
	Runs []kb.Record `json:"runs"`
}

func (s *Server) createRun(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, r, fmt.Errorf("%w: read body: %v", ErrBadRequest, err))
		return
	}
	sc, err := core.LoadScenario(bytes.NewReader(body), formatFromContentType(r.Header.Get("Content-Type")))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.checkDuration(sc); err != nil {
		writeError(w, r, err)
		return
	}

	rec, err := s.runner.Run(r.Context(), sc)
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Location", "/v1/runs/"+rec.ID)
	writeJSON(w, http.StatusCreated, rec)
}

func (s *Server) listRuns(w http.ResponseWriter, r *http.Request) {
	var runs []kb.Record
	if sweepID := r.URL.Query().Get("sweep_id"); sweepID != "" {
		runs = s.store.ListSweep(sweepID)
	} else {
		runs = s.store.List()
	}
	for i := range runs {
		runs[i].Result = nil
	}
	if runs == nil {
		runs = []kb.Record{}
	}
	writeJSON(w, http.StatusOK, runList{Runs: runs})
}

func (s *Server) getRun(w http.ResponseWriter, r *http.Request) {
	rec, err := s.store.Get(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) deleteRun(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Delete(mux.Vars(r)["id"]); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) createSweep(w http.ResponseWriter, r *http.Request) {
	var req SweepRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, r, fmt.Errorf("%w: decode sweep request: %v", ErrBadRequest, err))
		return
	}

	sc, err := core.LoadScenario(bytes.NewReader(req.Scenario), core.FormatJSON)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.checkDuration(sc); err != nil {
		writeError(w, r, err)
		return
	}
	rates := req.Rates
	if len(rates) == 0 {
		rates = model.DefaultArrivalRates
	}

	res, err := s.runner.Sweep(r.Context(), sc, rates)
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Location", "/v1/sweeps/"+res.ID)
	writeJSON(w, http.StatusCreated, res)
}

func (s *Server) getSweep(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	points := s.store.ListSweep(id)
	if len(points) == 0 {
		writeError(w, r, fmt.Errorf("%w: sweep %q", kb.ErrRunNotFound, id))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"id":       id,
		"scenario": points[0].Scenario,
		"points":   points,
	})
}

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	if s.health == nil {
		writeJSON(w, http.StatusOK, map[string]string{"status": healthpb.HealthCheckResponse_SERVING.String()})
		return
	}
	resp, err := s.health.Check(r.Context(), &healthpb.HealthCheckRequest{Service: ServiceName})
	if err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "UNKNOWN", "error": err.Error()})
		return
	}
	code := http.StatusOK
	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]string{"status": resp.GetStatus().String()})
}

func (s *Server) checkDuration(sc model.Scenario) error {
	if s.maxDuration > 0 && sc.Duration > s.maxDuration {
		return fmt.Errorf("%w: %v s > %v s", ErrTooLong, sc.Duration, s.maxDuration)
	}
	return nil
}

func formatFromContentType(ct string) core.ScenarioFormat {
	if strings.Contains(strings.ToLower(ct), "yaml") {
		return core.FormatYAML
	}
	return core.FormatJSON
}
