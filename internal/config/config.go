package config

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/couchcryptid/retail-weather-etl/internal/domain"
)

// Sink selection values.
const (
	SinkCSV      = "csv"
	SinkKafka    = "kafka"
	SinkPostgres = "postgres"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	SalesPath   string
	WeatherPath string

	Sink       string
	OutputPath string

	KafkaBrokers   []string
	KafkaSinkTopic string

	PostgresDSN string

	// Reconciliation behavior.
	StrictGeo     bool
	FallbackOrder []domain.Tier
	Workers       int

	// Ideal-weather band, applied in the configured canonical unit with no
	// conversion. The source data mixes Kelvin- and Celsius-looking bands,
	// so the unit is configuration rather than a hard-coded assumption.
	TempUnit     string
	IdealTempMin float64
	IdealTempMax float64

	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration
}

// Load reads configuration from the environment (and an optional .env file),
// applying defaults where unset.
func Load() (*Config, error) {
	// A missing .env is fine; real deployments set the environment directly.
	_ = godotenv.Load()

	shutdownTimeout, err := parseDuration("SHUTDOWN_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}

	workers, err := parseInt("WORKERS", runtime.NumCPU())
	if err != nil {
		return nil, err
	}
	if workers <= 0 {
		return nil, errors.New("WORKERS must be positive")
	}

	fallbackOrder, err := parseFallbackOrder(envOrDefault("FALLBACK_ORDER", "state,region,global"))
	if err != nil {
		return nil, err
	}

	idealMin, err := parseFloat("IDEAL_TEMP_MIN", 268)
	if err != nil {
		return nil, err
	}
	idealMax, err := parseFloat("IDEAL_TEMP_MAX", 299)
	if err != nil {
		return nil, err
	}
	if idealMin >= idealMax {
		return nil, errors.New("IDEAL_TEMP_MIN must be below IDEAL_TEMP_MAX")
	}

	cfg := &Config{
		SalesPath:   envOrDefault("SALES_CSV", "data/sales.csv"),
		WeatherPath: envOrDefault("WEATHER_CSV", "data/weather.csv"),

		Sink:       envOrDefault("SINK", SinkCSV),
		OutputPath: envOrDefault("OUTPUT_CSV", "data/enriched.csv"),

		KafkaBrokers:   parseBrokers(envOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaSinkTopic: envOrDefault("KAFKA_SINK_TOPIC", "enriched-sales"),

		PostgresDSN: os.Getenv("POSTGRES_DSN"),

		StrictGeo:     envOrDefault("STRICT_GEO", "false") == "true",
		FallbackOrder: fallbackOrder,
		Workers:       workers,

		TempUnit:     strings.ToLower(envOrDefault("TEMP_UNIT", "kelvin")),
		IdealTempMin: idealMin,
		IdealTempMax: idealMax,

		HTTPAddr:        envOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        envOrDefault("LOG_LEVEL", "info"),
		LogFormat:       envOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,
	}

	if cfg.SalesPath == "" {
		return nil, errors.New("SALES_CSV is required")
	}
	if cfg.WeatherPath == "" {
		return nil, errors.New("WEATHER_CSV is required")
	}
	if cfg.TempUnit != "kelvin" && cfg.TempUnit != "celsius" {
		return nil, fmt.Errorf("invalid TEMP_UNIT %q: want kelvin or celsius", cfg.TempUnit)
	}

	switch cfg.Sink {
	case SinkCSV:
		if cfg.OutputPath == "" {
			return nil, errors.New("OUTPUT_CSV is required for the csv sink")
		}
	case SinkKafka:
		if len(cfg.KafkaBrokers) == 0 {
			return nil, errors.New("KAFKA_BROKERS is required for the kafka sink")
		}
		if cfg.KafkaSinkTopic == "" {
			return nil, errors.New("KAFKA_SINK_TOPIC is required for the kafka sink")
		}
	case SinkPostgres:
		if cfg.PostgresDSN == "" {
			return nil, errors.New("POSTGRES_DSN is required for the postgres sink")
		}
	default:
		return nil, fmt.Errorf("invalid SINK %q: want csv, kafka, or postgres", cfg.Sink)
	}

	return cfg, nil
}

// parseFallbackOrder maps a comma-separated tier list ("state,region,global")
// to fallback tiers. Subsets disable the omitted tiers; duplicates are an error.
func parseFallbackOrder(s string) ([]domain.Tier, error) {
	names := map[string]domain.Tier{
		"state":  domain.TierStateAvg,
		"region": domain.TierRegionAvg,
		"global": domain.TierGlobalAvg,
	}

	var order []domain.Tier
	seen := make(map[domain.Tier]bool)
	for _, part := range strings.Split(s, ",") {
		part = strings.ToLower(strings.TrimSpace(part))
		if part == "" {
			continue
		}
		tier, ok := names[part]
		if !ok {
			return nil, fmt.Errorf("invalid FALLBACK_ORDER entry %q: want state, region, or global", part)
		}
		if seen[tier] {
			return nil, fmt.Errorf("duplicate FALLBACK_ORDER entry %q", part)
		}
		seen[tier] = true
		order = append(order, tier)
	}
	if len(order) == 0 {
		return nil, errors.New("FALLBACK_ORDER must name at least one tier")
	}
	return order, nil
}

func parseBrokers(s string) []string {
	var brokers []string
	for _, b := range strings.Split(s, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(envOrDefault(key, def))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parseInt(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func parseFloat(key string, def float64) (float64, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}
