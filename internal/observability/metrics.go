package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// reconciliation pipeline.
type Metrics struct {
	RecordsReconciled prometheus.Counter
	RecordsRejected   *prometheus.CounterVec // labels: source={sales,weather}
	UnknownCities     prometheus.Counter
	PipelineRunning   prometheus.Gauge

	// Resolution accounting.
	AttributeTier   *prometheus.CounterVec // labels: attribute={temperature,humidity,condition}, tier
	CoveragePercent *prometheus.GaugeVec   // labels: attribute

	RunDuration prometheus.Histogram
}

// NewMetrics creates and registers all pipeline metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		RecordsReconciled: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "retail_weather_etl",
			Name:      "records_reconciled_total",
			Help:      "Total sales records enriched with a weather context.",
		}),
		RecordsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "retail_weather_etl",
			Name:      "records_rejected_total",
			Help:      "Input rows excluded for malformed dates, by source.",
		}, []string{"source"}),
		UnknownCities: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "retail_weather_etl",
			Name:      "unknown_city_total",
			Help:      "Records whose city was absent from the geo hierarchy.",
		}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "retail_weather_etl",
			Name:      "pipeline_running",
			Help:      "1 while a reconciliation run is active, 0 otherwise.",
		}),
		AttributeTier: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "retail_weather_etl",
			Name:      "attribute_tier_total",
			Help:      "Resolved attribute values by fallback tier.",
		}, []string{"attribute", "tier"}),
		CoveragePercent: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "retail_weather_etl",
			Name:      "coverage_percent",
			Help:      "Percentage of records with the attribute populated, from the last run.",
		}, []string{"attribute"}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "retail_weather_etl",
			Name:      "run_duration_seconds",
			Help:      "Duration of a complete build-reconcile-load run.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}),
	}

	prometheus.MustRegister(
		m.RecordsReconciled,
		m.RecordsRejected,
		m.UnknownCities,
		m.PipelineRunning,
		m.AttributeTier,
		m.CoveragePercent,
		m.RunDuration,
	)

	return m
}

// NewMetricsForTesting creates Metrics with a fresh registry to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return &Metrics{
		RecordsReconciled: prometheus.NewCounter(prometheus.CounterOpts{Namespace: "retail_weather_etl", Name: "records_reconciled_total"}),
		RecordsRejected:   prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "retail_weather_etl", Name: "records_rejected_total"}, []string{"source"}),
		UnknownCities:     prometheus.NewCounter(prometheus.CounterOpts{Namespace: "retail_weather_etl", Name: "unknown_city_total"}),
		PipelineRunning:   prometheus.NewGauge(prometheus.GaugeOpts{Namespace: "retail_weather_etl", Name: "pipeline_running"}),
		AttributeTier:     prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "retail_weather_etl", Name: "attribute_tier_total"}, []string{"attribute", "tier"}),
		CoveragePercent:   prometheus.NewGaugeVec(prometheus.GaugeOpts{Namespace: "retail_weather_etl", Name: "coverage_percent"}, []string{"attribute"}),
		RunDuration:       prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: "retail_weather_etl", Name: "run_duration_seconds"}),
	}
}
