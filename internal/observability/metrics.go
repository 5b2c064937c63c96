package observability

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/signalsfoundry/csma-simulator/core"
)

// SimCollector bundles Prometheus metrics for contention outcomes. It
// implements core.Observer so it can be attached to a Simulator directly.
type SimCollector struct {
	gatherer prometheus.Gatherer

	Deliveries *prometheus.CounterVec
	Collisions *prometheus.CounterVec
	Drops      *prometheus.CounterVec
	Delay      prometheus.Histogram

	Runs          *prometheus.CounterVec
	RunDuration   prometheus.Histogram
	Utilization   *prometheus.GaugeVec
	Throughput    *prometheus.GaugeVec
	CollisionRate *prometheus.GaugeVec
}

var _ core.Observer = (*SimCollector)(nil)

// NewSimCollector registers simulation metrics against the provided
// registerer, defaulting to the global Prometheus registry when nil.
func NewSimCollector(reg prometheus.Registerer) (*SimCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	deliveries, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "csma_frames_delivered_total",
		Help: "Frames acknowledged by the access point, labeled by station.",
	}, []string{"station"}), "csma_frames_delivered_total")
	if err != nil {
		return nil, err
	}
	collisions, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "csma_collisions_total",
		Help: "Transmission attempts lost to a collision, labeled by station.",
	}, []string{"station"}), "csma_collisions_total")
	if err != nil {
		return nil, err
	}
	drops, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "csma_frames_dropped_total",
		Help: "Frames discarded after exhausting their retries, labeled by station.",
	}, []string{"station"}), "csma_frames_dropped_total")
	if err != nil {
		return nil, err
	}
	delay, err := register(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "csma_frame_delay_slots",
		Help:    "Access delay of delivered frames in clock slots.",
		Buckets: prometheus.ExponentialBuckets(230, 2, 12),
	}), "csma_frame_delay_slots")
	if err != nil {
		return nil, err
	}

	runs, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "csma_runs_total",
		Help: "Simulation runs, labeled by outcome.",
	}, []string{"outcome"}), "csma_runs_total")
	if err != nil {
		return nil, err
	}
	runDuration, err := register(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "csma_run_wall_seconds",
		Help:    "Wall-clock time spent executing a simulation run.",
		Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
	}), "csma_run_wall_seconds")
	if err != nil {
		return nil, err
	}
	utilization, err := register(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "csma_channel_utilization",
		Help: "Share of the horizon the medium carried successful exchanges in the last run of a scenario.",
	}, []string{"scenario"}), "csma_channel_utilization")
	if err != nil {
		return nil, err
	}
	throughput, err := register(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "csma_throughput_bits_per_second",
		Help: "Delivered payload rate in the last run of a scenario.",
	}, []string{"scenario"}), "csma_throughput_bits_per_second")
	if err != nil {
		return nil, err
	}
	collisionRate, err := register(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "csma_collision_rate",
		Help: "Collisions per generated frame in the last run of a scenario.",
	}, []string{"scenario"}), "csma_collision_rate")
	if err != nil {
		return nil, err
	}

	return &SimCollector{
		gatherer:      gatherer,
		Deliveries:    deliveries,
		Collisions:    collisions,
		Drops:         drops,
		Delay:         delay,
		Runs:          runs,
		RunDuration:   runDuration,
		Utilization:   utilization,
		Throughput:    throughput,
		CollisionRate: collisionRate,
	}, nil
}

// Observe records one contention outcome.
func (c *SimCollector) Observe(_ context.Context, ev core.Event) {
	if c == nil {
		return
	}
	switch ev.Kind {
	case core.EventSuccess:
		c.Deliveries.WithLabelValues(ev.StationID).Inc()
		c.Delay.Observe(float64(ev.Delay))
	case core.EventCollision:
		c.Collisions.WithLabelValues(ev.StationID).Inc()
	case core.EventDrop:
		c.Drops.WithLabelValues(ev.StationID).Inc()
	}
}

// RecordRun stores the headline metrics of a finished run under its
// scenario name. A non-nil err counts the run as failed and leaves the
// gauges untouched.
func (c *SimCollector) RecordRun(scenario string, sum core.Summary, elapsed time.Duration, err error) {
	if c == nil {
		return
	}
	c.RunDuration.Observe(elapsed.Seconds())
	if err != nil {
		c.Runs.WithLabelValues("failed").Inc()
		return
	}
	c.Runs.WithLabelValues("completed").Inc()
	c.Utilization.WithLabelValues(scenario).Set(sum.Utilization)
	c.Throughput.WithLabelValues(scenario).Set(sum.ThroughputBps)
	c.CollisionRate.WithLabelValues(scenario).Set(sum.CollisionRate)
}

// Gatherer returns the Prometheus gatherer associated with the collector.
func (c *SimCollector) Gatherer() prometheus.Gatherer {
	if c == nil {
		return nil
	}
	return c.gatherer
}

// Handler exposes a ready-to-use /metrics handler.
func (c *SimCollector) Handler() http.Handler {
	return handlerFor(c.Gatherer())
}

func handlerFor(gatherer prometheus.Gatherer) http.Handler {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
