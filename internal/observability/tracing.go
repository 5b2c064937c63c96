package observability

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/signalsfoundry/csma-simulator/internal/logging"
)

const tracerName = "github.com/signalsfoundry/csma-simulator"

// Span exporters.
const (
	ExporterStdout = "stdout"
	ExporterOTLP   = "otlp"
)

// Span attribute keys shared by run and sweep spans.
const (
	AttrScenario    = attribute.Key("csma.scenario")
	AttrArrivalRate = attribute.Key("csma.arrival_rate")
	AttrStations    = attribute.Key("csma.stations")
	AttrSweepID     = attribute.Key("csma.sweep_id")
	AttrSweepPoints = attribute.Key("csma.sweep_points")
	attrCommand     = attribute.Key("csma.command")
)

// TracingConfig governs how tracing is initialised.
type TracingConfig struct {
	Enabled     bool
	ServiceName string
	// Command is the csmasim subcommand being traced (run, sweep or serve).
	// It is recorded on the resource and picks the default sample ratio.
	Command     string
	Exporter    string
	Endpoint    string // otlp only
	SampleRatio float64
	// Writer receives stdout exporter output; defaults to os.Stdout.
	Writer io.Writer
}

// DefaultSampleRatio keeps every span of a one-shot run or sweep, which
// produce a handful of spans each, and a tenth of the request traffic of a
// long-lived server.
func DefaultSampleRatio(command string) float64 {
	if command == "serve" {
		return 0.1
	}
	return 1
}

// TracingConfigFromEnv reads CSMASIM_TRACING_* for the given subcommand.
// Resource attributes may be added through OTEL_RESOURCE_ATTRIBUTES.
func TracingConfigFromEnv(command string) TracingConfig {
	return tracingConfigFrom(os.Getenv, command)
}

func tracingConfigFrom(getenv func(string) string, command string) TracingConfig {
	cfg := TracingConfig{
		Enabled:     strings.EqualFold(getenv("CSMASIM_TRACING_ENABLED"), "true"),
		ServiceName: "csmasim",
		Command:     command,
		Exporter:    ExporterStdout,
		Endpoint:    getenv("CSMASIM_OTLP_ENDPOINT"),
		SampleRatio: DefaultSampleRatio(command),
	}
	if v := getenv("CSMASIM_TRACING_SERVICE_NAME"); v != "" {
		cfg.ServiceName = v
	}
	if v := getenv("CSMASIM_TRACING_EXPORTER"); v != "" {
		cfg.Exporter = strings.ToLower(v)
	}
	if v := getenv("CSMASIM_TRACING_SAMPLE_RATIO"); v != "" {
		if ratio, err := strconv.ParseFloat(v, 64); err == nil && ratio >= 0 && ratio <= 1 {
			cfg.SampleRatio = ratio
		}
	}
	return cfg
}

// InitTracing installs the global tracer provider for one csmasim process and
// returns a shutdown function that flushes pending spans. When tracing is
// disabled a noop provider is installed so spans cost nothing.
func InitTracing(ctx context.Context, cfg TracingConfig, log logging.Logger) (func(context.Context) error, error) {
	if log == nil {
		log = logging.Noop()
	}

	if !cfg.Enabled {
		otel.SetTracerProvider(noop.NewTracerProvider())
		otel.SetTextMapPropagator(propagation.TraceContext{})
		return func(context.Context) error { return nil }, nil
	}

	exp, err := newExporter(ctx, cfg)
	if err != nil {
		return nil, err
	}
	res, err := newResource(ctx, cfg)
	if err != nil {
		return nil, err
	}

	// Run spans inherit the sampling decision of their sweep.
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRatio))),
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	log.Info(ctx, "tracing enabled",
		logging.String("exporter", cfg.Exporter),
		logging.String("command", cfg.Command),
		logging.Float64("sample_ratio", cfg.SampleRatio),
	)
	return tp.Shutdown, nil
}

func newResource(ctx context.Context, cfg TracingConfig) (*resource.Resource, error) {
	attrs := []attribute.KeyValue{
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceNamespace("csmasim"),
	}
	if cfg.Command != "" {
		attrs = append(attrs, attrCommand.String(cfg.Command))
	}
	res, err := resource.New(ctx,
		resource.WithFromEnv(),
		resource.WithProcessPID(),
		resource.WithAttributes(attrs...),
	)
	if err != nil {
		return nil, fmt.Errorf("create resource: %w", err)
	}
	return res, nil
}

func newExporter(ctx context.Context, cfg TracingConfig) (sdktrace.SpanExporter, error) {
	switch strings.ToLower(cfg.Exporter) {
	case ExporterStdout, "":
		w := cfg.Writer
		if w == nil {
			w = os.Stdout
		}
		return stdouttrace.New(stdouttrace.WithWriter(w), stdouttrace.WithoutTimestamps())
	case ExporterOTLP, "otlpgrpc":
		endpoint := cfg.Endpoint
		if endpoint == "" {
			endpoint = "localhost:4317"
		}
		return otlptrace.New(ctx, otlptracegrpc.NewClient(
			otlptracegrpc.WithEndpoint(endpoint),
			otlptracegrpc.WithDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
		))
	default:
		return nil, fmt.Errorf("unsupported tracing exporter %q (want %s or %s)", cfg.Exporter, ExporterStdout, ExporterOTLP)
	}
}

// RunAttributes describes one simulation run on a span.
func RunAttributes(scenario string, rate float64, stations int) []attribute.KeyValue {
	return []attribute.KeyValue{
		AttrScenario.String(scenario),
		AttrArrivalRate.Float64(rate),
		AttrStations.Int(stations),
	}
}

// StartSpan starts an internal span on the global tracer provider. Request and
// run ids on ctx are attached as attributes.
func StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	if reqID := logging.RequestIDFromContext(ctx); reqID != "" {
		attrs = append(attrs, attribute.String("request_id", reqID))
	}
	if runID := logging.RunIDFromContext(ctx); runID != "" {
		attrs = append(attrs, attribute.String("run_id", runID))
	}
	return otel.Tracer(tracerName).Start(ctx, name, trace.WithAttributes(attrs...))
}

// EndSpan records err on span, if any, and ends it.
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// ShutdownWithTimeout flushes spans within five seconds, logging rather than
// returning a failure.
func ShutdownWithTimeout(ctx context.Context, shutdown func(context.Context) error, log logging.Logger) {
	if shutdown == nil {
		return
	}
	if log == nil {
		log = logging.Noop()
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := shutdown(ctx); err != nil {
		log.Warn(ctx, "tracing shutdown failed", logging.Error(err))
	}
}
