// Package csvfile reads the sales and weather CSV exports and writes the
// enriched output stream. Rows carrying malformed dates are rejected and
// tallied; the run continues without them.
package csvfile

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/couchcryptid/retail-weather-etl/internal/domain"
)

// Sales CSV column headers, superstore-export style.
const (
	colRowID     = "row id"
	colOrderID   = "order id"
	colOrderDate = "order date"
	colCity      = "city"
	colState     = "state"
	colRegion    = "region"
	colProductID = "product id"
	colSales     = "sales"
	colQuantity  = "quantity"
	colProfit    = "profit"
)

// Weather CSV column headers.
const (
	colDate        = "date"
	colTemperature = "temperature"
	colHumidity    = "humidity"
	colCondition   = "condition"
)

// SalesReader loads sales records from a CSV export.
type SalesReader struct {
	path   string
	logger *slog.Logger
}

// NewSalesReader creates a reader for the CSV file at path.
func NewSalesReader(path string, logger *slog.Logger) *SalesReader {
	return &SalesReader{path: path, logger: logger}
}

// ReadSales parses the whole file. Rows with unparseable order dates are
// excluded and counted in the returned rejection tally.
func (r *SalesReader) ReadSales(ctx context.Context) ([]domain.SalesRecord, int, error) {
	rows, header, err := readAll(ctx, r.path)
	if err != nil {
		return nil, 0, fmt.Errorf("read sales csv: %w", err)
	}

	required := []string{colRowID, colOrderID, colOrderDate, colCity, colState, colRegion}
	if err := header.require(required); err != nil {
		return nil, 0, fmt.Errorf("sales csv %s: %w", r.path, err)
	}

	records := make([]domain.SalesRecord, 0, len(rows))
	rejected := 0
	for i, row := range rows {
		date, err := domain.ParseDate(header.get(row, colOrderDate))
		if err != nil {
			var malformed *domain.MalformedDateError
			if !errors.As(err, &malformed) {
				return nil, 0, err
			}
			rejected++
			r.logger.Warn("rejecting sales row with malformed date",
				"row", i+2, // 1-based, after the header
				"value", malformed.Value,
			)
			continue
		}

		records = append(records, domain.SalesRecord{
			RowID:     header.get(row, colRowID),
			OrderID:   header.get(row, colOrderID),
			OrderDate: date,
			City:      header.get(row, colCity),
			State:     header.get(row, colState),
			Region:    header.get(row, colRegion),
			ProductID: header.get(row, colProductID),
			Sales:     parseFloatOrZero(header.get(row, colSales)),
			Quantity:  parseIntOrZero(header.get(row, colQuantity)),
			Profit:    parseFloatOrZero(header.get(row, colProfit)),
		})
	}

	return records, rejected, nil
}

// WeatherReader loads weather observations from a CSV file. Observations may
// arrive one row per attribute source, so rows for the same (date, city) are
// pre-merged into a single fact.
type WeatherReader struct {
	path   string
	logger *slog.Logger
}

// NewWeatherReader creates a reader for the CSV file at path.
func NewWeatherReader(path string, logger *slog.Logger) *WeatherReader {
	return &WeatherReader{path: path, logger: logger}
}

// ReadWeather parses the whole file into merged facts, in first-seen order.
// Rows with unparseable dates are excluded and tallied. Two rows claiming a
// non-null value for the same attribute of the same (date, city) are a
// *domain.DuplicateWeatherFactError — fatal, since silently picking one would
// hide corrupt input.
func (r *WeatherReader) ReadWeather(ctx context.Context) ([]domain.WeatherFact, int, error) {
	rows, header, err := readAll(ctx, r.path)
	if err != nil {
		return nil, 0, fmt.Errorf("read weather csv: %w", err)
	}

	if err := header.require([]string{colDate, colCity}); err != nil {
		return nil, 0, fmt.Errorf("weather csv %s: %w", r.path, err)
	}

	type key struct {
		date domain.Date
		city string
	}
	index := make(map[key]int)
	facts := make([]domain.WeatherFact, 0, len(rows))
	rejected := 0

	for i, row := range rows {
		date, err := domain.ParseDate(header.get(row, colDate))
		if err != nil {
			var malformed *domain.MalformedDateError
			if !errors.As(err, &malformed) {
				return nil, 0, err
			}
			rejected++
			r.logger.Warn("rejecting weather row with malformed date",
				"row", i+2,
				"value", malformed.Value,
			)
			continue
		}

		incoming := domain.WeatherFact{
			Date:        date,
			City:        header.get(row, colCity),
			Temperature: parseOptionalFloat(header.get(row, colTemperature)),
			Humidity:    parseOptionalFloat(header.get(row, colHumidity)),
			Condition:   header.get(row, colCondition),
		}

		k := key{date: date, city: incoming.City}
		at, seen := index[k]
		if !seen {
			index[k] = len(facts)
			facts = append(facts, incoming)
			continue
		}

		merged, err := mergeFacts(facts[at], incoming)
		if err != nil {
			return nil, 0, err
		}
		facts[at] = merged
	}

	return facts, rejected, nil
}

// mergeFacts combines two partial observations of the same (date, city).
// Populated attributes must be disjoint.
func mergeFacts(existing, incoming domain.WeatherFact) (domain.WeatherFact, error) {
	dup := &domain.DuplicateWeatherFactError{Date: existing.Date, City: existing.City}

	if incoming.Temperature != nil {
		if existing.Temperature != nil {
			return domain.WeatherFact{}, dup
		}
		existing.Temperature = incoming.Temperature
	}
	if incoming.Humidity != nil {
		if existing.Humidity != nil {
			return domain.WeatherFact{}, dup
		}
		existing.Humidity = incoming.Humidity
	}
	if incoming.Condition != "" {
		if existing.Condition != "" {
			return domain.WeatherFact{}, dup
		}
		existing.Condition = incoming.Condition
	}
	return existing, nil
}

// header maps lowercased column names to positions.
type header map[string]int

func (h header) require(cols []string) error {
	for _, col := range cols {
		if _, ok := h[col]; !ok {
			return fmt.Errorf("missing required column %q", col)
		}
	}
	return nil
}

// get returns the trimmed cell for col, or "" when the column is absent or
// the row is short.
func (h header) get(row []string, col string) string {
	idx, ok := h[col]
	if !ok || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

func readAll(ctx context.Context, path string) ([][]string, header, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1 // tolerate ragged rows; get() guards lookups

	first, err := reader.Read()
	if err != nil {
		if err == io.EOF {
			return nil, nil, errors.New("empty file")
		}
		return nil, nil, err
	}

	h := make(header, len(first))
	for i, name := range first {
		h[strings.ToLower(strings.TrimSpace(name))] = i
	}

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, nil, err
	}
	return rows, h, nil
}

// parseFloatOrZero parses a string as float64, returning 0 on failure.
// Monetary columns are best-effort; only dates gate record acceptance.
func parseFloatOrZero(s string) float64 {
	if s == "" {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}

func parseIntOrZero(s string) int {
	if s == "" {
		return 0
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}

// parseOptionalFloat distinguishes absent from zero: empty or unparseable
// cells are absent, not 0.
func parseOptionalFloat(s string) *float64 {
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &v
}
