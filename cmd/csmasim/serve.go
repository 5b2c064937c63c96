package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/signalsfoundry/csma-simulator/internal/api"
	"github.com/signalsfoundry/csma-simulator/internal/logging"
	"github.com/signalsfoundry/csma-simulator/internal/observability"
	"github.com/signalsfoundry/csma-simulator/internal/sweep"
	"github.com/signalsfoundry/csma-simulator/kb"
)

func (c *cli) newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the simulation API over HTTP and gRPC health checks",
		Example: `  csmasim serve --listen :8080 --grpc-listen :9090
  CSMASIM_MAX_DURATION=30 csmasim serve`,
		Args: cobra.NoArgs,
		RunE: c.runServe,
	}

	f := cmd.Flags()
	f.String("listen", ":8080", "HTTP address for the API and /metrics")
	f.String("grpc-listen", ":9090", "gRPC address for the health service; empty disables it")
	f.Float64("max-duration", 60, "largest simulated duration a request may ask for, in seconds")
	f.Int("workers", 0, "concurrent simulations per sweep (0 = GOMAXPROCS)")
	f.Bool("event-log", false, "log every collision, delivery and drop at debug level")
	return cmd
}

func (c *cli) runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	simMetrics, err := observability.NewSimCollector(reg)
	if err != nil {
		return fmt.Errorf("init metrics: %w", err)
	}
	transport, err := observability.NewTransportCollector(reg)
	if err != nil {
		return fmt.Errorf("init metrics: %w", err)
	}

	store := kb.NewStore()
	store.Subscribe(func(ev kb.Event) {
		c.log.Info(context.Background(), "result store updated",
			logging.String("event", ev.Type.String()),
			logging.String("run_id", ev.Run.ID),
			logging.String("scenario", ev.Run.Scenario),
			logging.Float64("arrival_rate", ev.Run.ArrivalRate),
		)
	})
	runner := sweep.NewRunner(store,
		sweep.WithLogger(c.log),
		sweep.WithCollector(simMetrics),
		sweep.WithWorkers(c.v.GetInt("workers")),
		sweep.WithEventLog(c.v.GetBool("event-log")),
	)

	grpcServer, hs := api.NewGRPCServer(c.log, transport)
	handler := api.NewServer(api.Config{
		Runner:      runner,
		Transport:   transport,
		Metrics:     simMetrics.Handler(),
		Health:      hs,
		Logger:      c.log,
		MaxDuration: c.v.GetFloat64("max-duration"),
	})

	httpLis, err := net.Listen("tcp", c.v.GetString("listen"))
	if err != nil {
		return fmt.Errorf("listen http: %w", err)
	}
	httpSrv := &http.Server{Handler: handler, ReadHeaderTimeout: 10 * time.Second}
	errCh := make(chan error, 2)
	go func() {
		if err := httpSrv.Serve(httpLis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()
	c.log.Info(ctx, "serving HTTP API", logging.String("addr", httpLis.Addr().String()))

	if addr := c.v.GetString("grpc-listen"); addr != "" {
		grpcLis, err := net.Listen("tcp", addr)
		if err != nil {
			_ = httpSrv.Close()
			return fmt.Errorf("listen grpc: %w", err)
		}
		go func() {
			if err := grpcServer.Serve(grpcLis); err != nil {
				errCh <- fmt.Errorf("grpc server: %w", err)
			}
		}()
		c.log.Info(ctx, "serving gRPC health", logging.String("addr", grpcLis.Addr().String()))
	}

	var serveErr error
	select {
	case <-ctx.Done():
	case serveErr = <-errCh:
	}

	c.log.Info(context.Background(), "shutting down")
	hs.Shutdown()
	grpcServer.GracefulStop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil && serveErr == nil {
		serveErr = err
	}
	return serveErr
}
