// Package main runs the simulated imagery, detection and tasking services on
// one port, for trying skctl without backend credentials.
package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"skctl/internal/logger"
	"skctl/internal/observability"
	"skctl/internal/simulator"
)

func main() {
	addr := flag.String("addr", ":8080", "listen address")
	steps := flag.Int("steps", 2, "status polls before a pipeline finishes")
	tokens := flag.String("tokens", "", "comma separated accepted tokens (default: any)")
	rps := flag.Float64("rate", 0, "requests per second per token (0 = unlimited)")
	burst := flag.Int("burst", 10, "rate limit burst")
	failing := flag.String("fail-scenes", "", "comma separated scene ids whose pipelines fail")
	otelEndpoint := flag.String("otel-endpoint", "", "OTLP/gRPC collector address")
	logLevel := flag.String("log-level", "info", "log level")
	flag.Parse()

	level, err := logger.ParseLevel(*logLevel)
	if err != nil {
		log.Fatalf("Invalid log level: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := observability.InitTracer(ctx, "skctl-sim", *otelEndpoint)
	if err != nil {
		log.Fatalf("Failed to init tracing: %v", err)
	}
	defer func() {
		if err := shutdownTracer(context.Background()); err != nil {
			log.Printf("Failed to shutdown tracer: %v", err)
		}
	}()

	metricsHandler, shutdownMetrics, err := observability.InitMetrics()
	if err != nil {
		log.Fatalf("Failed to init metrics: %v", err)
	}
	defer func() {
		if err := shutdownMetrics(context.Background()); err != nil {
			log.Printf("Failed to shutdown metrics: %v", err)
		}
	}()

	opts := []simulator.Option{
		simulator.WithSteps(*steps),
		simulator.WithLogger(logger.New(os.Stderr, level)),
	}
	if *tokens != "" {
		opts = append(opts, simulator.WithTokens(strings.Split(*tokens, ",")...))
	}
	if *rps > 0 {
		opts = append(opts, simulator.WithRateLimit(*rps, *burst))
	}
	for _, id := range strings.Split(*failing, ",") {
		if id != "" {
			opts = append(opts, simulator.WithFailingScene(id))
		}
	}
	backend := simulator.NewBackend(opts...)

	meter := otel.Meter("skctl/simulator")
	_, err = meter.Int64ObservableGauge("skctl.simulator.pipelines",
		metric.WithDescription("Pipelines held by the simulator, by status"),
		metric.WithInt64Callback(func(ctx context.Context, obs metric.Int64Observer) error {
			for status, n := range backend.Count() {
				obs.Observe(n, metric.WithAttributes(attribute.String("status", status.String())))
			}
			return nil
		}),
	)
	if err != nil {
		log.Printf("Failed to register pipeline gauge: %v", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/", backend.Handler())
	mux.Handle("GET /metrics", metricsHandler)

	srv := simulator.NewServer(*addr, mux)
	log.Printf("skctl simulator listening on %s", *addr)
	if err := srv.Run(ctx); err != nil {
		log.Fatalf("Server stopped: %v", err)
	}
	log.Println("Server exited properly")
}
