package csvfile

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/couchcryptid/retail-weather-etl/internal/domain"
)

// enrichedHeader is the flat, engine-agnostic output schema: the sales
// columns followed by the resolved weather context and its tiers.
var enrichedHeader = []string{
	"row_id", "order_id", "order_date", "city", "state", "region",
	"product_id", "sales", "quantity", "profit",
	"temperature", "humidity", "condition",
	"temperature_tier", "humidity_tier", "condition_tier",
	"ideal_weather", "processed_at",
}

// Writer writes enriched records to a CSV file. It implements pipeline.Sink
// and is safe for concurrent use.
type Writer struct {
	mu     sync.Mutex
	file   *os.File
	writer *csv.Writer
}

// NewWriter creates (or truncates) the CSV file at path and writes the header
// row. Intermediate directories are created automatically.
func NewWriter(path string) (*Writer, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("csv: create output dir: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("csv: create file %q: %w", path, err)
	}

	w := csv.NewWriter(f)
	if err := w.Write(enrichedHeader); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("csv: write header: %w", err)
	}
	w.Flush()

	return &Writer{file: f, writer: w}, nil
}

// WriteBatch appends the records in order.
func (w *Writer) WriteBatch(_ context.Context, records []domain.EnrichedRecord) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	for _, rec := range records {
		if err := w.writer.Write(enrichedRow(rec)); err != nil {
			return fmt.Errorf("csv: write row %s: %w", rec.RowID, err)
		}
	}
	w.writer.Flush()
	return w.writer.Error()
}

// Close flushes and closes the underlying file.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.writer.Flush()
	if err := w.writer.Error(); err != nil {
		_ = w.file.Close()
		return err
	}
	return w.file.Close()
}

func enrichedRow(rec domain.EnrichedRecord) []string {
	return []string{
		rec.RowID,
		rec.OrderID,
		rec.OrderDate.String(),
		rec.City,
		rec.State,
		rec.Region,
		rec.ProductID,
		formatFloat(rec.Sales),
		strconv.Itoa(rec.Quantity),
		formatFloat(rec.Profit),
		formatOptionalFloat(rec.Temperature),
		formatOptionalFloat(rec.Humidity),
		rec.Condition,
		string(rec.TemperatureTier),
		string(rec.HumidityTier),
		string(rec.ConditionTier),
		formatOptionalBool(rec.IdealWeather),
		rec.ProcessedAt.UTC().Format(time.RFC3339),
	}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// formatOptionalFloat keeps absent values as empty cells, never zeroes.
func formatOptionalFloat(v *float64) string {
	if v == nil {
		return ""
	}
	return formatFloat(*v)
}

func formatOptionalBool(v *bool) string {
	if v == nil {
		return ""
	}
	return strconv.FormatBool(*v)
}
