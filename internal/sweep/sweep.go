// Package sweep executes scenarios, alone or across a range of offered loads,
// and files every completed run in the result store.
package sweep

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sort"
	"sync"
	"time"


	"github.com/signalsfoundry/csma-simulator/core"
	"github.com/signalsfoundry/csma-simulator/internal/logging"
	"github.com/signalsfoundry/csma-simulator/internal/observability"
	"github.com/signalsfoundry/csma-simulator/kb"
	"github.com/signalsfoundry/csma-simulator/model"
)

// ErrNoRates is returned when a sweep is requested without any arrival rate.
var ErrNoRates = errors.New("sweep needs at least one arrival rate")

// Runner executes scenarios against a shared store and collector.
type Runner struct {
	store     *kb.Store
	collector *observability.SimCollector
	log       logging.Logger
	workers   int
	keepDelay bool
	debugLog  bool
}

// Option configures a Runner.
type Option func(*Runner)

// WithCollector attaches Prometheus metrics to every run.
func WithCollector(c *observability.SimCollector) Option {
	return func(r *Runner) { r.collector = c }
}

// WithLogger sets the base logger. Runs log through a run-scoped child.
func WithLogger(log logging.Logger) Option {
	return func(r *Runner) {
		if log != nil {
			r.log = log
		}
	}
}

// WithWorkers bounds the number of concurrent runs in a sweep. Values below
// one fall back to GOMAXPROCS.
func WithWorkers(n int) Option {
	return func(r *Runner) { r.workers = n }
}

// WithDelaySamples keeps the per-frame delay samples in stored results.
func WithDelaySamples(keep bool) Option {
	return func(r *Runner) { r.keepDelay = keep }
}

// WithEventLog logs every contention outcome at debug level.
func WithEventLog(enabled bool) Option {
	return func(r *Runner) { r.debugLog = enabled }
}

// NewRunner builds a Runner. A nil store gets a private one.
func NewRunner(store *kb.Store, opts ...Option) *Runner {
	if store == nil {
		store = kb.NewStore()
	}
	r := &Runner{store: store, log: logging.Noop()}
	for _, opt := range opts {
		opt(r)
	}
	if r.workers < 1 {
		r.workers = runtime.GOMAXPROCS(0)
	}
	return r
}

// Store returns the store results are filed in.
func (r *Runner) Store() *kb.Store {
	return r.store
}

// Run simulates sc once and stores the result.
func (r *Runner) Run(ctx context.Context, sc model.Scenario) (kb.Record, error) {
	return r.run(ctx, sc, "", averageRate(sc))
}

// Result is the outcome of one sweep. Points are ordered by arrival rate.
type Result struct {
	ID       string      `json:"id" yaml:"id"`
	Scenario string      `json:"scenario" yaml:"scenario"`
	Points   []kb.Record `json:"points" yaml:"points"`
}

// Sweep runs sc once per arrival rate, with every station offering that
// rate, on a bounded pool of workers. The first failing run cancels the
// runs that have not started yet and its error is returned.
func (r *Runner) Sweep(ctx context.Context, sc model.Scenario, rates []float64) (Result, error) {
	if len(rates) == 0 {
		return Result{}, ErrNoRates
	}
	for _, rate := range rates {
		if rate < 0 {
			return Result{}, fmt.Errorf("%w: arrival rate must not be negative, got %v", core.ErrInvalidConfig, rate)
		}
	}

	sweepID := logging.NewID()
	ctx, span := observability.StartSpan(ctx, "csma.sweep",
		observability.AttrSweepID.String(sweepID),
		observability.AttrScenario.String(sc.Name),
		observability.AttrSweepPoints.Int(len(rates)),
	)
	log := r.log.With(logging.String("sweep_id", sweepID))
	log.Info(ctx, "sweep started",
		logging.String("scenario", sc.Name),
		logging.Int("points", len(rates)),
		logging.Int("workers", r.workers),
	)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		points   = make([]kb.Record, 0, len(rates))
		firstErr error
	)
	sem := make(chan struct{}, r.workers)

	for _, rate := range rates {
		wg.Add(1)
		go func(rate float64) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			if ctx.Err() != nil {
				return
			}
			rec, err := r.run(ctx, sc.WithArrivalRate(rate), sweepID, rate)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if firstErr == nil {
					firstErr = fmt.Errorf("arrival rate %v: %w", rate, err)
					cancel()
				}
				return
			}
			points = append(points, rec)
		}(rate)
	}
	wg.Wait()

	if firstErr == nil && ctx.Err() != nil {
		firstErr = ctx.Err()
	}
	observability.EndSpan(span, firstErr)
	if firstErr != nil {
		log.Error(ctx, "sweep failed", logging.Error(firstErr))
		return Result{}, firstErr
	}

	sort.Slice(points, func(i, j int) bool { return points[i].ArrivalRate < points[j].ArrivalRate })
	log.Info(ctx, "sweep finished", logging.Int("points", len(points)))
	return Result{ID: sweepID, Scenario: sc.Name, Points: points}, nil
}

func (r *Runner) run(ctx context.Context, sc model.Scenario, sweepID string, rate float64) (kb.Record, error) {
	start := time.Now()
	ctx, log := logging.WithRunLogger(ctx, r.log)
	runID := logging.RunIDFromContext(ctx)
	ctx = logging.ContextWithLogger(ctx, log)

	ctx, span := observability.StartSpan(ctx, "csma.run",
		observability.RunAttributes(sc.Name, rate, len(sc.Stations))...)

	rec, err := r.execute(ctx, sc, log)
	elapsed := time.Since(start)
	r.collector.RecordRun(sc.Name, rec.Summary, elapsed, err)
	observability.EndSpan(span, err)
	if err != nil {
		return kb.Record{}, err
	}

	rec.ID = runID
	rec.SweepID = sweepID
	rec.ArrivalRate = rate
	if _, err := r.store.Add(rec); err != nil {
		return kb.Record{}, err
	}
	log.Debug(ctx, "run stored", logging.Int64("elapsed_ms", elapsed.Milliseconds()))
	return rec, nil
}

func (r *Runner) execute(ctx context.Context, sc model.Scenario, log logging.Logger) (kb.Record, error) {
	cfg, err := core.RunConfigFromScenario(sc)
	if err != nil {
		return kb.Record{}, err
	}

	opts := []core.Option{core.WithLogger(log)}
	if r.collector != nil {
		opts = append(opts, core.WithObserver(r.collector))
	}
	if r.debugLog {
		opts = append(opts, core.WithObserver(core.LogObserver(log)))
	}

	sim, err := core.NewSimulator(cfg, opts...)
	if err != nil {
		return kb.Record{}, err
	}
	res, err := sim.Run(ctx)
	if err != nil {
		return kb.Record{}, err
	}

	rec := kb.Record{
		Scenario: sc.Name,
		Summary:  core.Summarize(res),
		Result:   res,
	}
	if !r.keepDelay {
		rec.Result = res.StripDelays()
	}
	return rec, nil
}

func averageRate(sc model.Scenario) float64 {
	if len(sc.Stations) == 0 {
		return 0
	}
	var sum float64
	for _, st := range sc.Stations {
		sum += st.ArrivalRate
	}
	return sum / float64(len(sc.Stations))
}
