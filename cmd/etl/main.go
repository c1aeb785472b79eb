package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/couchcryptid/retail-weather-etl/internal/adapter/csvfile"
	httpadapter "github.com/couchcryptid/retail-weather-etl/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/retail-weather-etl/internal/adapter/kafka"
	"github.com/couchcryptid/retail-weather-etl/internal/adapter/postgres"
	"github.com/couchcryptid/retail-weather-etl/internal/config"
	"github.com/couchcryptid/retail-weather-etl/internal/observability"
	"github.com/couchcryptid/retail-weather-etl/internal/pipeline"
	"github.com/couchcryptid/retail-weather-etl/internal/reconcile"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	sink, closeSink, err := buildSink(cfg, logger)
	if err != nil {
		logger.Error("failed to build sink", "sink", cfg.Sink, "error", err)
		os.Exit(1)
	}

	sales := csvfile.NewSalesReader(cfg.SalesPath, logger)
	weather := csvfile.NewWeatherReader(cfg.WeatherPath, logger)

	opts := reconcile.Options{
		StrictGeo:     cfg.StrictGeo,
		FallbackOrder: cfg.FallbackOrder,
		IdealBand:     &reconcile.Band{Min: cfg.IdealTempMin, Max: cfg.IdealTempMax},
	}
	p := pipeline.New(sales, weather, sink, opts, cfg.Workers, logger, metrics)

	srv := httpadapter.NewServer(cfg.HTTPAddr, p, p, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// Run the reconciliation pass. The HTTP surface stays up afterwards so
	// metrics and the coverage report remain scrapeable until shutdown.
	runErr := make(chan error, 1)
	go func() {
		stats, err := p.Run(ctx)
		if err != nil {
			runErr <- err
			return
		}
		logger.Info("reconciliation run complete",
			"sales_read", stats.SalesRead,
			"weather_facts", stats.WeatherFacts,
			"enriched", stats.Enriched,
			"rejected_sales", stats.RejectedSales,
			"rejected_weather", stats.RejectedWeather,
			"unknown_cities", stats.UnknownCities)
		runErr <- nil
	}()

	exitCode := 0
	select {
	case err := <-runErr:
		if err != nil {
			logger.Error("pipeline error", "error", err)
			exitCode = 1
		} else {
			<-ctx.Done()
		}
	case <-ctx.Done():
	}

	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if err := closeSink(); err != nil {
		logger.Error("sink close error", "error", err)
	}

	logger.Info("shutdown complete")
	os.Exit(exitCode)
}

// buildSink constructs the configured sink and returns it alongside its
// close function.
func buildSink(cfg *config.Config, logger *slog.Logger) (pipeline.Sink, func() error, error) {
	switch cfg.Sink {
	case config.SinkKafka:
		w := kafkaadapter.NewWriter(cfg, logger)
		return w, w.Close, nil
	case config.SinkPostgres:
		w, err := postgres.NewWriter(cfg.PostgresDSN, logger)
		if err != nil {
			return nil, nil, err
		}
		return w, w.Close, nil
	default:
		w, err := csvfile.NewWriter(cfg.OutputPath)
		if err != nil {
			return nil, nil, err
		}
		return w, w.Close, nil
	}
}
