// Command validate performs end-to-end data integrity checks across a
// reconciliation run: the sales CSV, the weather CSV, and the enriched output
// CSV. It verifies row accounting, tier enum correctness, value/tier
// agreement, and replays the reconciliation with the actual pipeline packages
// to confirm the output matches.
//
// Usage:
//
//	go run ./cmd/validate \
//	  -sales data/sales.csv \
//	  -weather data/weather.csv \
//	  -enriched data/enriched.csv
package main

import (
	"context"
	"encoding/csv"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/retail-weather-etl/internal/adapter/csvfile"
	"github.com/couchcryptid/retail-weather-etl/internal/audit"
	"github.com/couchcryptid/retail-weather-etl/internal/domain"
	"github.com/couchcryptid/retail-weather-etl/internal/geo"
	"github.com/couchcryptid/retail-weather-etl/internal/reconcile"
	"github.com/couchcryptid/retail-weather-etl/internal/weatherstore"
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	salesPath := flag.String("sales", "", "path to the sales CSV")
	weatherPath := flag.String("weather", "", "path to the weather CSV")
	enrichedPath := flag.String("enriched", "", "path to the enriched output CSV")
	flag.Parse()

	if *salesPath == "" || *weatherPath == "" || *enrichedPath == "" {
		flag.Usage()
		os.Exit(1)
	}

	if code := run(*salesPath, *weatherPath, *enrichedPath); code != 0 {
		os.Exit(code)
	}
}

func run(salesPath, weatherPath, enrichedPath string) int {
	fmt.Println("=== Reconciliation Integrity Validation ===")
	fmt.Println()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ctx := context.Background()

	sales, rejectedSales, err := csvfile.NewSalesReader(salesPath, logger).ReadSales(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load sales CSV: %v\n", err)
		return 1
	}
	weather, rejectedWeather, err := csvfile.NewWeatherReader(weatherPath, logger).ReadWeather(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load weather CSV: %v\n", err)
		return 1
	}
	enriched, err := loadEnrichedCSV(enrichedPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load enriched CSV: %v\n", err)
		return 1
	}

	phases := []*phase{
		validateSourceIntegrity(sales, weather),
		validateRowAccounting(sales, enriched),
		validateTierAgreement(enriched),
		validateReplay(sales, weather, enriched),
	}

	fmt.Println()
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-44s %s\n", p.name, status)
	}

	fmt.Println()
	fmt.Printf("Records: %d sales (%d rejected), %d weather facts (%d rejected), %d enriched\n",
		len(sales), rejectedSales, len(weather), rejectedWeather, len(enriched))
	printCoverage(enriched)

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Println("\nAll validations passed.")
		return 0
	}
	fmt.Println("\nValidation FAILED.")
	return 1
}

// ── Phase 1: Source Integrity ──
// Row ids must be unique and weather facts must be one per (date, city).

func validateSourceIntegrity(sales []domain.SalesRecord, weather []domain.WeatherFact) *phase {
	p := &phase{name: "Phase 1: Source Integrity"}

	seenRows := map[string]bool{}
	for i := range sales {
		id := sales[i].RowID
		if id == "" {
			p.errorf("sales record %d: empty row id", i)
			continue
		}
		if seenRows[id] {
			p.errorf("sales row id %q appears more than once", id)
		}
		seenRows[id] = true
	}

	type factKey struct {
		date domain.Date
		city string
	}
	seenFacts := map[factKey]bool{}
	for i := range weather {
		k := factKey{date: weather[i].Date, city: weather[i].City}
		if seenFacts[k] {
			p.errorf("weather fact for %s/%s appears more than once", weather[i].Date, weather[i].City)
		}
		seenFacts[k] = true
	}
	return p
}

// ── Phase 2: Row Accounting ──
// Every accepted sales row must appear exactly once in the output, in order.

func validateRowAccounting(sales []domain.SalesRecord, enriched []domain.EnrichedRecord) *phase {
	p := &phase{name: "Phase 2: Row Accounting"}

	if len(sales) != len(enriched) {
		p.errorf("sales has %d accepted rows, enriched has %d", len(sales), len(enriched))
		return p
	}
	for i := range sales {
		if sales[i].RowID != enriched[i].RowID {
			p.errorf("position %d: sales row id %q, enriched row id %q", i, sales[i].RowID, enriched[i].RowID)
		}
	}
	return p
}

// ── Phase 3: Tier Agreement ──
// Tier values must be valid and agree with attribute presence.

var validTiers = map[domain.Tier]bool{
	domain.TierExact:     true,
	domain.TierStateAvg:  true,
	domain.TierRegionAvg: true,
	domain.TierGlobalAvg: true,
	domain.TierMissing:   true,
}

func validateTierAgreement(enriched []domain.EnrichedRecord) *phase {
	p := &phase{name: "Phase 3: Tier Agreement"}

	for i := range enriched {
		e := &enriched[i]
		pf := func(format string, args ...any) {
			p.errorf("row %s: "+format, append([]any{e.RowID}, args...)...)
		}

		for _, tier := range []domain.Tier{e.TemperatureTier, e.HumidityTier, e.ConditionTier} {
			if !validTiers[tier] {
				pf("invalid tier %q", tier)
			}
		}

		if (e.Temperature != nil) != (e.TemperatureTier != domain.TierMissing) {
			pf("temperature presence disagrees with tier %q", e.TemperatureTier)
		}
		if (e.Humidity != nil) != (e.HumidityTier != domain.TierMissing) {
			pf("humidity presence disagrees with tier %q", e.HumidityTier)
		}
		if (e.Condition != "") != (e.ConditionTier != domain.TierMissing) {
			pf("condition presence disagrees with tier %q", e.ConditionTier)
		}

		if e.IdealWeather != nil && e.Temperature == nil {
			pf("ideal_weather set without a resolved temperature")
		}
		if e.ProcessedAt.IsZero() {
			pf("processed_at is zero")
		}
	}
	return p
}

// ── Phase 4: Replay ──
// Re-runs the reconciliation with the real packages and compares values.

func validateReplay(sales []domain.SalesRecord, weather []domain.WeatherFact, enriched []domain.EnrichedRecord) *phase {
	p := &phase{name: "Phase 4: Replay (recompute and compare)"}

	store, err := weatherstore.New(weather)
	if err != nil {
		p.errorf("building weather store: %v", err)
		return p
	}
	hierarchy := geo.Build(sales)
	rec := reconcile.New(store, hierarchy, reconcile.Options{}, slog.New(slog.NewTextHandler(io.Discard, nil)))

	byRowID := map[string]*domain.EnrichedRecord{}
	for i := range enriched {
		byRowID[enriched[i].RowID] = &enriched[i]
	}

	for i := range sales {
		result, err := rec.Reconcile(sales[i])
		if err != nil {
			p.errorf("row %s: replay failed: %v", sales[i].RowID, err)
			continue
		}
		got, ok := byRowID[sales[i].RowID]
		if !ok {
			continue // already reported in Phase 2
		}
		compareRecords(p, &result.Record, got)
	}
	return p
}

func compareRecords(p *phase, want, got *domain.EnrichedRecord) {
	id := want.RowID
	if got.TemperatureTier != want.TemperatureTier {
		p.errorf("row %s: temperature tier: expected %q, got %q", id, want.TemperatureTier, got.TemperatureTier)
	}
	if !ptrFloatEq(got.Temperature, want.Temperature) {
		p.errorf("row %s: temperature: expected %s, got %s", id, ptrFloat(want.Temperature), ptrFloat(got.Temperature))
	}
	if got.HumidityTier != want.HumidityTier {
		p.errorf("row %s: humidity tier: expected %q, got %q", id, want.HumidityTier, got.HumidityTier)
	}
	if !ptrFloatEq(got.Humidity, want.Humidity) {
		p.errorf("row %s: humidity: expected %s, got %s", id, ptrFloat(want.Humidity), ptrFloat(got.Humidity))
	}
	if got.ConditionTier != want.ConditionTier {
		p.errorf("row %s: condition tier: expected %q, got %q", id, want.ConditionTier, got.ConditionTier)
	}
	if got.Condition != want.Condition {
		p.errorf("row %s: condition: expected %q, got %q", id, want.Condition, got.Condition)
	}
}

func printCoverage(enriched []domain.EnrichedRecord) {
	report := audit.Report(enriched)
	fmt.Printf("Coverage: temperature %.1f%%, humidity %.1f%%, condition %.1f%%\n",
		report.TemperaturePct, report.HumidityPct, report.ConditionPct)
}

// ── Enriched CSV loading ──

func loadEnrichedCSV(path string) ([]domain.EnrichedRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	all, err := r.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(all) == 0 {
		return nil, fmt.Errorf("empty file: %s", path)
	}

	idx := map[string]int{}
	for i, h := range all[0] {
		idx[strings.ToLower(strings.TrimSpace(h))] = i
	}
	get := func(row []string, col string) string {
		i, ok := idx[col]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	var records []domain.EnrichedRecord
	for n, row := range all[1:] {
		date, derr := domain.ParseDate(get(row, "order_date"))
		if derr != nil {
			return nil, fmt.Errorf("line %d: %v", n+2, derr)
		}
		e := domain.EnrichedRecord{
			SalesRecord: domain.SalesRecord{
				RowID:     get(row, "row_id"),
				OrderID:   get(row, "order_id"),
				OrderDate: date,
				City:      get(row, "city"),
				State:     get(row, "state"),
				Region:    get(row, "region"),
				ProductID: get(row, "product_id"),
			},
			Condition:       get(row, "condition"),
			TemperatureTier: domain.Tier(get(row, "temperature_tier")),
			HumidityTier:    domain.Tier(get(row, "humidity_tier")),
			ConditionTier:   domain.Tier(get(row, "condition_tier")),
		}
		e.Temperature = parseOptFloat(get(row, "temperature"))
		e.Humidity = parseOptFloat(get(row, "humidity"))
		if v := get(row, "ideal_weather"); v != "" {
			b := v == "true"
			e.IdealWeather = &b
		}
		if ts := get(row, "processed_at"); ts != "" {
			t, terr := time.Parse(time.RFC3339, ts)
			if terr != nil {
				return nil, fmt.Errorf("line %d: processed_at: %v", n+2, terr)
			}
			e.ProcessedAt = t
		}
		records = append(records, e)
	}
	return records, nil
}

func parseOptFloat(s string) *float64 {
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &v
}

// ── Helpers ──

func floatEq(a, b float64) bool {
	return math.Abs(a-b) < 1e-6
}

func ptrFloatEq(a, b *float64) bool {
	if a == nil && b == nil {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	return floatEq(*a, *b)
}

func ptrFloat(v *float64) string {
	if v == nil {
		return "<nil>"
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}
