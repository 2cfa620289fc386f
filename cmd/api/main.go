// Package main is the entry point of the station service.
//
// It loads the configuration, assembles the sample source, the forecast
// supplier and the monitoring engine, and runs the scheduler, the telemetry
// flusher and the HTTP API until SIGINT or SIGTERM.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/go-playground/validator/v10"
	"golang.org/x/sync/errgroup"

	"stazione/internal/alerts"
	"stazione/internal/api/handlers"
	"stazione/internal/config"
	"stazione/internal/core"
	"stazione/internal/external"
	"stazione/internal/monitor"
	"stazione/internal/sources"
	"stazione/internal/telemetry"
	"stazione/internal/types"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)
	logger.Info("stazione starting",
		"environment", cfg.Environment,
		"version", cfg.Build.Version,
		"commit", cfg.Build.Commit,
		"port", cfg.Server.Port,
		"sample_source", cfg.Sensor.Source,
		"forecast_source", cfg.Forecast.Source,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := buildApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.close()

	return a.run(ctx)
}

// telemetrySink is what the process needs from a metrics backend.
type telemetrySink interface {
	core.MetricsCollector
	monitor.TickObserver
	monitor.FallbackRecorder
	Run(ctx context.Context) error
}

// app is the assembled process. buildApp wires it, run drives it.
type app struct {
	cfg       *config.Config
	logger    *slog.Logger
	engine    *monitor.Engine
	scheduler *monitor.Scheduler
	server    *core.Server
	sink      telemetrySink
	closers   []func()
}

func buildApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: logger}
	clock := types.RealClock{}
	val := validator.New(validator.WithRequiredStructEnabled())

	var awsCfg aws.Config
	if cfg.NeedsAWS() {
		var err error
		awsCfg, err = loadAWSConfig(ctx, cfg.AWS)
		if err != nil {
			return nil, err
		}
	}

	a.sink = telemetry.NopRecorder{}
	if cfg.Observability.MetricsEnabled {
		cw := cloudwatch.NewFromConfig(awsCfg, func(o *cloudwatch.Options) {
			if cfg.AWS.EndpointURL != "" {
				o.BaseEndpoint = aws.String(cfg.AWS.EndpointURL)
			}
		})
		a.sink = telemetry.NewRecorder(cw, cfg.Observability.MetricNamespace, logger,
			telemetry.WithFlushInterval(cfg.Observability.MetricsFlushInterval),
			telemetry.WithClock(clock),
		)
	}

	var probes []core.HealthProbe

	var source monitor.SampleSource
	switch cfg.Sensor.Source {
	case config.SourceMQTT:
		mq, err := sources.NewMQTTSource(sources.MQTTConfig{
			Broker:         cfg.Sensor.MQTTBroker,
			Topic:          cfg.Sensor.MQTTTopic,
			ClientID:       cfg.Sensor.MQTTClientID,
			Username:       cfg.Sensor.MQTTUsername,
			Password:       cfg.Sensor.MQTTPassword.Unmask(),
			QoS:            byte(cfg.Sensor.MQTTQoS),
			ConnectTimeout: cfg.Sensor.MQTTTimeout,
		}, val, clock, logger)
		if err != nil {
			return nil, fmt.Errorf("connecting sample source: %w", err)
		}
		a.closers = append(a.closers, mq.Close)
		probes = append(probes, mq)
		source = mq
	default:
		source = sources.NewSimulator(nil, clock)
	}

	var forecast monitor.ForecastSupplier
	switch cfg.Forecast.Source {
	case config.ForecastHTTP:
		client := external.NewBaseClient(
			&http.Client{Timeout: cfg.Forecast.Timeout},
			"forecast",
			external.DefaultRetryPolicy(),
			cfg.Forecast.UserAgent,
			external.WithLogger(logger),
		)
		forecast = sources.NewHTTPForecast(client, cfg.Forecast.URL, val)
	default:
		forecast = sources.NewSimulatedForecast(nil)
	}

	fallback := cfg.Forecast.Fallback
	engine, err := monitor.NewEngine(monitor.EngineConfig{
		Source:           source,
		Forecast:         forecast,
		ForecastTimeout:  cfg.Forecast.Timeout,
		ForecastFallback: &fallback,
		Fallbacks:        a.sink,
		Clock:            clock,
		Logger:           logger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating engine: %w", err)
	}
	a.engine = engine

	// Only the simulator can invent history; a real station starts cold.
	if cfg.Sensor.Source == config.SourceSimulator && cfg.Station.BackfillSamples > 0 {
		n, err := engine.Backfill(ctx, cfg.Station.BackfillSamples, cfg.Station.BackfillSpacing)
		if err != nil {
			return nil, fmt.Errorf("backfilling samples: %w", err)
		}
		logger.Info("sample window backfilled", "samples", n, "spacing", cfg.Station.BackfillSpacing)
	}

	observers := []monitor.TickObserver{a.sink}
	if cfg.AWS.AlertQueueURL != "" {
		sqsClient := sqs.NewFromConfig(awsCfg, func(o *sqs.Options) {
			if cfg.AWS.EndpointURL != "" {
				o.BaseEndpoint = aws.String(cfg.AWS.EndpointURL)
			}
		})
		observers = append(observers, alerts.NewLevelChangePublisher(sqsClient, cfg.AWS.AlertQueueURL, logger))
	}

	a.scheduler = monitor.NewScheduler(engine, monitor.SchedulerConfig{
		Interval:  cfg.Station.TickInterval,
		Observers: observers,
		Clock:     clock,
		Logger:    logger,
	})
	probes = append(probes, monitor.NewLivenessProbe(engine, a.scheduler.Interval(), clock))

	srv, err := core.NewServer(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("creating server: %w", err)
	}
	srv.Metrics = a.sink
	srv.HealthProbes = probes

	stationHandler := handlers.NewStationHandler(engine, logger)
	srv.V1RouteRegistrars = append(srv.V1RouteRegistrars, stationHandler.RegisterRoutes)
	if err := srv.MountRoutes(); err != nil {
		return nil, fmt.Errorf("mounting routes: %w", err)
	}
	a.server = srv

	return a, nil
}

// run blocks until ctx is canceled or a component fails, then shuts the
// HTTP server down within the configured deadline.
func (a *app) run(ctx context.Context) error {
	addr := ":" + a.cfg.Server.Port
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           a.server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return a.scheduler.Run(gctx)
	})
	g.Go(func() error {
		return a.sink.Run(gctx)
	})
	g.Go(func() error {
		a.logger.Info("HTTP server listening", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		a.logger.Info("initiating graceful shutdown")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), a.cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			a.logger.Error("HTTP server shutdown error", "error", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	a.logger.Info("stazione stopped cleanly")
	return nil
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// loadAWSConfig resolves credentials from the default chain. EndpointURL is
// applied per client so LocalStack can stand in for both services.
func loadAWSConfig(ctx context.Context, cfg config.AWSConfig) (aws.Config, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("loading AWS config: %w", err)
	}
	return awsCfg, nil
}

// newLogger creates a JSON slog.Logger on stdout for the given level.
func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}
