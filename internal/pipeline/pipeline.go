// Package pipeline orchestrates a reconciliation run: build the immutable
// weather and geo snapshots, map sales records to enriched records in
// parallel, audit coverage, and load the output into the configured sink.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/couchcryptid/retail-weather-etl/internal/audit"
	"github.com/couchcryptid/retail-weather-etl/internal/domain"
	"github.com/couchcryptid/retail-weather-etl/internal/geo"
	"github.com/couchcryptid/retail-weather-etl/internal/observability"
	"github.com/couchcryptid/retail-weather-etl/internal/reconcile"
	"github.com/couchcryptid/retail-weather-etl/internal/weatherstore"
)

// SalesSource reads the finite sales record sequence, returning the records
// and a count of rows rejected for malformed dates.
type SalesSource interface {
	ReadSales(ctx context.Context) ([]domain.SalesRecord, int, error)
}

// WeatherSource reads the finite weather observation sequence, pre-merged
// into facts, plus its rejection tally.
type WeatherSource interface {
	ReadWeather(ctx context.Context) ([]domain.WeatherFact, int, error)
}

// Sink consumes the enriched output stream.
type Sink interface {
	WriteBatch(ctx context.Context, records []domain.EnrichedRecord) error
}

// RunStats summarizes one completed run.
type RunStats struct {
	SalesRead       int
	WeatherFacts    int
	Enriched        int
	RejectedSales   int
	RejectedWeather int
	UnknownCities   int
	Report          domain.CoverageReport
}

// Pipeline wires sources, the reconciler, the auditor, and a sink.
type Pipeline struct {
	sales   SalesSource
	weather WeatherSource
	sink    Sink
	opts    reconcile.Options
	workers int
	logger  *slog.Logger
	metrics *observability.Metrics

	ready atomic.Bool

	mu         sync.Mutex
	lastReport *domain.CoverageReport
}

// New creates a Pipeline. workers bounds the parallel map; values below 1
// are treated as 1.
func New(sales SalesSource, weather WeatherSource, sink Sink, opts reconcile.Options, workers int, logger *slog.Logger, metrics *observability.Metrics) *Pipeline {
	if workers < 1 {
		workers = 1
	}
	return &Pipeline{
		sales:   sales,
		weather: weather,
		sink:    sink,
		opts:    opts,
		workers: workers,
		logger:  logger,
		metrics: metrics,
	}
}

// CheckReadiness returns nil once a run has built its snapshots, or an error
// describing why the service is not yet ready.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("no reconciliation run has built its stores yet")
	}
	return nil
}

// LastReport returns the coverage report of the most recent completed run.
func (p *Pipeline) LastReport() (domain.CoverageReport, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.lastReport == nil {
		return domain.CoverageReport{}, false
	}
	return *p.lastReport, true
}

// Run executes one complete reconciliation pass. Store construction errors
// (duplicate weather facts) and, in strict-geo mode, unknown cities abort the
// run; per-record malformed dates are tallied and skipped.
func (p *Pipeline) Run(ctx context.Context) (*RunStats, error) {
	start := time.Now()
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	// Phase one: both snapshots are fully built before any worker starts;
	// afterwards they are read-only, so the parallel map needs no locking.
	facts, rejectedWeather, err := p.weather.ReadWeather(ctx)
	if err != nil {
		return nil, fmt.Errorf("load weather observations: %w", err)
	}
	p.metrics.RecordsRejected.WithLabelValues("weather").Add(float64(rejectedWeather))

	store, err := weatherstore.New(facts)
	if err != nil {
		return nil, fmt.Errorf("build weather store: %w", err)
	}

	sales, rejectedSales, err := p.sales.ReadSales(ctx)
	if err != nil {
		return nil, fmt.Errorf("load sales records: %w", err)
	}
	p.metrics.RecordsRejected.WithLabelValues("sales").Add(float64(rejectedSales))

	hierarchy := geo.Build(sales)
	p.ready.Store(true)

	p.logger.Info("snapshots built",
		"weather_facts", store.Len(),
		"cities", hierarchy.Len(),
		"sales_records", len(sales),
		"rejected_sales", rejectedSales,
		"rejected_weather", rejectedWeather,
	)

	// Phase two: parallel per-record map. Results are written by index so
	// the output preserves input order regardless of scheduling.
	reconciler := reconcile.New(store, hierarchy, p.opts, p.logger)
	results := make([]reconcile.Result, len(sales))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)
	for i := range sales {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res, err := reconciler.Reconcile(sales[i])
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("reconcile: %w", err)
	}

	enriched := make([]domain.EnrichedRecord, len(results))
	unknownCities := 0
	for i, res := range results {
		enriched[i] = res.Record
		if res.UnknownCity {
			unknownCities++
		}
		p.observeTiers(res.Record)
	}
	p.metrics.RecordsReconciled.Add(float64(len(enriched)))
	p.metrics.UnknownCities.Add(float64(unknownCities))

	report := audit.Report(enriched)
	p.setReport(report)

	if err := p.sink.WriteBatch(ctx, enriched); err != nil {
		return nil, fmt.Errorf("load enriched records: %w", err)
	}

	p.metrics.RunDuration.Observe(time.Since(start).Seconds())

	stats := &RunStats{
		SalesRead:       len(sales) + rejectedSales,
		WeatherFacts:    store.Len(),
		Enriched:        len(enriched),
		RejectedSales:   rejectedSales,
		RejectedWeather: rejectedWeather,
		UnknownCities:   unknownCities,
		Report:          report,
	}

	p.logger.Info("run complete",
		"enriched", stats.Enriched,
		"unknown_cities", stats.UnknownCities,
		"temperature_pct", report.TemperaturePct,
		"humidity_pct", report.HumidityPct,
		"condition_pct", report.ConditionPct,
		"duration", time.Since(start),
	)

	return stats, nil
}

func (p *Pipeline) observeTiers(rec domain.EnrichedRecord) {
	p.metrics.AttributeTier.WithLabelValues("temperature", string(rec.TemperatureTier)).Inc()
	p.metrics.AttributeTier.WithLabelValues("humidity", string(rec.HumidityTier)).Inc()
	p.metrics.AttributeTier.WithLabelValues("condition", string(rec.ConditionTier)).Inc()
}

func (p *Pipeline) setReport(report domain.CoverageReport) {
	p.mu.Lock()
	p.lastReport = &report
	p.mu.Unlock()

	p.metrics.CoveragePercent.WithLabelValues("temperature").Set(report.TemperaturePct)
	p.metrics.CoveragePercent.WithLabelValues("humidity").Set(report.HumidityPct)
	p.metrics.CoveragePercent.WithLabelValues("condition").Set(report.ConditionPct)
}
