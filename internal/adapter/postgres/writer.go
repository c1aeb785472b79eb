package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	_ "github.com/lib/pq"

	"github.com/couchcryptid/retail-weather-etl/internal/domain"
)

// Writer persists enriched records to PostgreSQL.
// It implements pipeline.Sink.
type Writer struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewWriter opens a connection to PostgreSQL, runs schema migrations, and
// returns a ready-to-use Writer.
func NewWriter(dsn string, logger *slog.Logger) (*Writer, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}

	w := &Writer{db: db, logger: logger}
	if err := w.migrate(); err != nil {
		return nil, fmt.Errorf("postgres: migrate: %w", err)
	}
	return w, nil
}

func (w *Writer) migrate() error {
	_, err := w.db.Exec(`
		CREATE TABLE IF NOT EXISTS enriched_sales (
			row_id           TEXT PRIMARY KEY,
			order_id         TEXT        NOT NULL,
			order_date       DATE        NOT NULL,
			city             TEXT        NOT NULL DEFAULT '',
			state            TEXT        NOT NULL DEFAULT '',
			region           TEXT        NOT NULL DEFAULT '',
			product_id       TEXT        NOT NULL DEFAULT '',
			sales            NUMERIC(12,4) NOT NULL DEFAULT 0,
			quantity         INTEGER     NOT NULL DEFAULT 0,
			profit           NUMERIC(12,4) NOT NULL DEFAULT 0,
			temperature      DOUBLE PRECISION,
			humidity         DOUBLE PRECISION,
			condition        TEXT        NOT NULL DEFAULT '',
			temperature_tier TEXT        NOT NULL,
			humidity_tier    TEXT        NOT NULL,
			condition_tier   TEXT        NOT NULL,
			ideal_weather    BOOLEAN,
			processed_at     TIMESTAMPTZ NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_enriched_sales_order_date ON enriched_sales(order_date);
		CREATE INDEX IF NOT EXISTS idx_enriched_sales_city       ON enriched_sales(city);
		CREATE INDEX IF NOT EXISTS idx_enriched_sales_temp_tier  ON enriched_sales(temperature_tier);
	`)
	return err
}

const insertColumns = 18

// WriteBatch batch-inserts enriched records. Row ids already present are left
// untouched, so re-runs over the same input are idempotent.
func (w *Writer) WriteBatch(ctx context.Context, records []domain.EnrichedRecord) error {
	const batchSize = 50
	for i := 0; i < len(records); i += batchSize {
		end := i + batchSize
		if end > len(records) {
			end = len(records)
		}
		if err := w.insertBatch(ctx, records[i:end]); err != nil {
			return err
		}
	}
	return nil
}

func (w *Writer) insertBatch(ctx context.Context, batch []domain.EnrichedRecord) error {
	valueStrings := make([]string, 0, len(batch))
	valueArgs := make([]interface{}, 0, len(batch)*insertColumns)

	for idx := range batch {
		r := &batch[idx]
		base := idx * insertColumns
		placeholders := make([]string, insertColumns)
		for j := range placeholders {
			placeholders[j] = fmt.Sprintf("$%d", base+j+1)
		}
		valueStrings = append(valueStrings, "("+strings.Join(placeholders, ",")+")")
		valueArgs = append(valueArgs,
			r.RowID, r.OrderID, r.OrderDate.String(), r.City, r.State, r.Region,
			r.ProductID, r.Sales, r.Quantity, r.Profit,
			r.Temperature, r.Humidity, r.Condition,
			string(r.TemperatureTier), string(r.HumidityTier), string(r.ConditionTier),
			r.IdealWeather, r.ProcessedAt)
	}

	query := fmt.Sprintf(`
		INSERT INTO enriched_sales (
			row_id, order_id, order_date, city, state, region,
			product_id, sales, quantity, profit,
			temperature, humidity, condition,
			temperature_tier, humidity_tier, condition_tier,
			ideal_weather, processed_at
		)
		VALUES %s
		ON CONFLICT (row_id) DO NOTHING
	`, strings.Join(valueStrings, ","))

	if _, err := w.db.ExecContext(ctx, query, valueArgs...); err != nil {
		return fmt.Errorf("postgres: insert batch: %w", err)
	}
	return nil
}

func (w *Writer) Close() error {
	return w.db.Close()
}
