// Command genfixtures generates deterministic sales and weather CSV fixtures
// for the test suites. It runs the actual reconciliation packages over the
// generated data so the printed tier and coverage stats match real pipeline
// behavior.
//
// Usage:
//
//	go run ./cmd/genfixtures \
//	  -sales-out data/fixtures/sales.csv \
//	  -weather-out data/fixtures/weather.csv \
//	  -rows 500 -seed 42
package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/retail-weather-etl/internal/domain"
	"github.com/couchcryptid/retail-weather-etl/internal/geo"
	"github.com/couchcryptid/retail-weather-etl/internal/reconcile"
	"github.com/couchcryptid/retail-weather-etl/internal/weatherstore"
)

var baseDate = time.Date(2014, time.March, 1, 0, 0, 0, 0, time.UTC)

type cityDef struct {
	city   string
	state  string
	region string
	// hasWeather controls whether this city ever appears in the weather
	// fixture, so some records must fall back to scoped averages.
	hasWeather bool
}

var cities = []cityDef{
	{"Seattle", "Washington", "West", true},
	{"Tacoma", "Washington", "West", true},
	{"Spokane", "Washington", "West", false},
	{"Portland", "Oregon", "West", true},
	{"Los Angeles", "California", "West", true},
	{"Houston", "Texas", "Central", true},
	{"Dallas", "Texas", "Central", false},
	{"Chicago", "Illinois", "Central", true},
	{"New York City", "New York", "East", true},
	{"Philadelphia", "Pennsylvania", "East", false},
	{"Miami", "Florida", "South", true},
	{"Atlanta", "Georgia", "South", true},
}

var conditions = []string{"clear", "cloudy", "rain", "snow", "fog"}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	salesOut := flag.String("sales-out", "", "output path for the sales CSV fixture")
	weatherOut := flag.String("weather-out", "", "output path for the weather CSV fixture")
	rows := flag.Int("rows", 500, "number of sales rows to generate")
	seed := flag.Int64("seed", 42, "random seed")
	days := flag.Int("days", 30, "number of order-date days starting at 2014-03-01")
	flag.Parse()

	if *salesOut == "" || *weatherOut == "" {
		flag.Usage()
		return fmt.Errorf("missing required flags: -sales-out, -weather-out")
	}

	rng := rand.New(rand.NewSource(*seed))

	sales := genSales(rng, *rows, *days)
	weather := genWeather(rng, *days)

	if err := writeSalesCSV(*salesOut, sales); err != nil {
		return fmt.Errorf("writing sales fixture: %w", err)
	}
	log.Printf("wrote sales fixture: %s (%d rows)", *salesOut, len(sales))

	if err := writeWeatherCSV(*weatherOut, weather); err != nil {
		return fmt.Errorf("writing weather fixture: %w", err)
	}
	log.Printf("wrote weather fixture: %s (%d facts)", *weatherOut, len(weather))

	return printStats(sales, weather)
}

func genSales(rng *rand.Rand, rows, days int) []domain.SalesRecord {
	records := make([]domain.SalesRecord, 0, rows)
	for i := 0; i < rows; i++ {
		c := cities[rng.Intn(len(cities))]
		day := baseDate.AddDate(0, 0, rng.Intn(days))
		records = append(records, domain.SalesRecord{
			RowID:     strconv.Itoa(i + 1),
			OrderID:   fmt.Sprintf("US-2014-%06d", 100000+i),
			OrderDate: domain.NewDate(day.Year(), day.Month(), day.Day()),
			City:      c.city,
			State:     c.state,
			Region:    c.region,
			ProductID: fmt.Sprintf("OFF-PA-%04d", rng.Intn(1000)),
			Sales:     float64(rng.Intn(50000)) / 100,
			Quantity:  1 + rng.Intn(9),
			Profit:    float64(rng.Intn(20000)-5000) / 100,
		})
	}
	return records
}

func genWeather(rng *rand.Rand, days int) []domain.WeatherFact {
	var facts []domain.WeatherFact
	for d := 0; d < days; d++ {
		day := baseDate.AddDate(0, 0, d)
		for _, c := range cities {
			if !c.hasWeather {
				continue
			}
			// Roughly one city-day in ten has no observation at all.
			if rng.Intn(10) == 0 {
				continue
			}
			fact := domain.WeatherFact{
				Date: domain.NewDate(day.Year(), day.Month(), day.Day()),
				City: c.city,
			}
			if rng.Intn(20) != 0 {
				t := 268 + rng.Float64()*35
				fact.Temperature = &t
			}
			if rng.Intn(20) != 0 {
				h := 20 + rng.Float64()*75
				fact.Humidity = &h
			}
			if rng.Intn(20) != 0 {
				fact.Condition = conditions[rng.Intn(len(conditions))]
			}
			facts = append(facts, fact)
		}
	}
	return facts
}

func writeSalesCSV(path string, records []domain.SalesRecord) error {
	rows := [][]string{{
		"Row ID", "Order ID", "Order Date", "City", "State", "Region",
		"Product ID", "Sales", "Quantity", "Profit",
	}}
	for i := range records {
		r := &records[i]
		rows = append(rows, []string{
			r.RowID, r.OrderID, r.OrderDate.String(), r.City, r.State, r.Region,
			r.ProductID,
			strconv.FormatFloat(r.Sales, 'f', 2, 64),
			strconv.Itoa(r.Quantity),
			strconv.FormatFloat(r.Profit, 'f', 2, 64),
		})
	}
	return writeCSV(path, rows)
}

func writeWeatherCSV(path string, facts []domain.WeatherFact) error {
	rows := [][]string{{"Date", "City", "Temperature", "Humidity", "Condition"}}
	for i := range facts {
		f := &facts[i]
		row := []string{f.Date.String(), f.City, "", "", f.Condition}
		if f.Temperature != nil {
			row[2] = strconv.FormatFloat(*f.Temperature, 'f', 2, 64)
		}
		if f.Humidity != nil {
			row[3] = strconv.FormatFloat(*f.Humidity, 'f', 2, 64)
		}
		rows = append(rows, row)
	}
	return writeCSV(path, rows)
}

func writeCSV(path string, rows [][]string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.WriteAll(rows); err != nil {
		return err
	}
	w.Flush()
	return w.Error()
}

// printStats reconciles the generated fixtures and prints tier counts for
// updating test assertions.
func printStats(sales []domain.SalesRecord, weather []domain.WeatherFact) error {
	// Fixed clock for reproducible ProcessedAt timestamps.
	domain.SetClock(clockwork.NewFakeClockAt(
		time.Date(2014, time.April, 1, 6, 0, 0, 0, time.UTC),
	))
	defer domain.SetClock(nil)

	store, err := weatherstore.New(weather)
	if err != nil {
		return fmt.Errorf("building weather store: %w", err)
	}
	hierarchy := geo.Build(sales)

	rec := reconcile.New(store, hierarchy, reconcile.Options{}, slog.Default())

	tierCounts := map[domain.Tier]int{}
	for i := range sales {
		result, err := rec.Reconcile(sales[i])
		if err != nil {
			return fmt.Errorf("reconciling row %s: %w", sales[i].RowID, err)
		}
		tierCounts[result.Record.TemperatureTier]++
	}

	fmt.Println("\n=== Stats for updating test assertions ===")
	fmt.Printf("Total: %d\n", len(sales))
	fmt.Printf("Temperature tiers: exact=%d, state_avg=%d, region_avg=%d, global_avg=%d, missing=%d\n",
		tierCounts[domain.TierExact], tierCounts[domain.TierStateAvg],
		tierCounts[domain.TierRegionAvg], tierCounts[domain.TierGlobalAvg],
		tierCounts[domain.TierMissing])
	return nil
}
