package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/retail-weather-etl/internal/config"
	"github.com/couchcryptid/retail-weather-etl/internal/domain"
)

// Writer produces enriched records to a Kafka topic.
// It implements pipeline.Sink.
type Writer struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured sink topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaSinkTopic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Writer{writer: w, logger: logger}
}

// WriteBatch serializes and publishes multiple enriched records to the sink
// Kafka topic in a single WriteMessages call for efficiency.
func (w *Writer) WriteBatch(ctx context.Context, records []domain.EnrichedRecord) error {
	if len(records) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(records))
	for i := range records {
		msg, err := serializeToMessage(records[i])
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	return w.writer.WriteMessages(ctx, msgs...)
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals an EnrichedRecord into a Kafka message keyed by
// row id, so re-runs of the same input land on the same partition.
func serializeToMessage(record domain.EnrichedRecord) (kafkago.Message, error) {
	data, err := json.Marshal(record)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize enriched record: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(record.RowID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "temperature_tier", Value: []byte(record.TemperatureTier)},
			{Key: "processed_at", Value: []byte(record.ProcessedAt.Format(time.RFC3339))},
		},
	}, nil
}
