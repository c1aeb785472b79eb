package pipeline_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/retail-weather-etl/internal/domain"
	"github.com/couchcryptid/retail-weather-etl/internal/observability"
	"github.com/couchcryptid/retail-weather-etl/internal/pipeline"
	"github.com/couchcryptid/retail-weather-etl/internal/reconcile"
)

var marchFirst = domain.NewDate(2014, time.March, 1)

func ptr(v float64) *float64 { return &v }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// --- mocks ---

type mockSales struct {
	records  []domain.SalesRecord
	rejected int
	err      error
}

func (m *mockSales) ReadSales(_ context.Context) ([]domain.SalesRecord, int, error) {
	return m.records, m.rejected, m.err
}

type mockWeather struct {
	facts    []domain.WeatherFact
	rejected int
	err      error
}

func (m *mockWeather) ReadWeather(_ context.Context) ([]domain.WeatherFact, int, error) {
	return m.facts, m.rejected, m.err
}

type mockSink struct {
	mu      sync.Mutex
	batches [][]domain.EnrichedRecord
	err     error
}

func (m *mockSink) WriteBatch(_ context.Context, records []domain.EnrichedRecord) error {
	if m.err != nil {
		return m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.batches = append(m.batches, records)
	return nil
}

func (m *mockSink) all() []domain.EnrichedRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.EnrichedRecord
	for _, b := range m.batches {
		out = append(out, b...)
	}
	return out
}

func salesRecord(rowID, city, state, region string) domain.SalesRecord {
	return domain.SalesRecord{
		RowID:     rowID,
		OrderID:   "CA-2014-10" + rowID,
		OrderDate: marchFirst,
		City:      city,
		State:     state,
		Region:    region,
	}
}

func newPipeline(sales *mockSales, weather *mockWeather, sink *mockSink, opts reconcile.Options, workers int) *pipeline.Pipeline {
	return pipeline.New(sales, weather, sink, opts, workers, discardLogger(), observability.NewMetricsForTesting())
}

// --- tests ---

func TestRunHappyPath(t *testing.T) {
	// Seattle has no fact, Tacoma (also WA) does: Seattle's temperature
	// must come back as the state average.
	sales := &mockSales{records: []domain.SalesRecord{
		salesRecord("1", "Seattle", "WA", "West"),
		salesRecord("2", "Tacoma", "WA", "West"),
	}}
	weather := &mockWeather{facts: []domain.WeatherFact{
		{Date: marchFirst, City: "Tacoma", Temperature: ptr(18), Humidity: ptr(71), Condition: "rain"},
	}}
	sink := &mockSink{}

	p := newPipeline(sales, weather, sink, reconcile.Options{}, 4)

	require.Error(t, p.CheckReadiness(context.Background()))
	_, ok := p.LastReport()
	assert.False(t, ok)

	stats, err := p.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, stats.SalesRead)
	assert.Equal(t, 1, stats.WeatherFacts)
	assert.Equal(t, 2, stats.Enriched)
	assert.Equal(t, 0, stats.UnknownCities)

	out := sink.all()
	require.Len(t, out, 2)

	seattle := out[0]
	assert.Equal(t, "1", seattle.RowID)
	assert.Equal(t, domain.TierStateAvg, seattle.TemperatureTier)
	assert.Equal(t, 18.0, *seattle.Temperature)

	tacoma := out[1]
	assert.Equal(t, domain.TierExact, tacoma.TemperatureTier)
	assert.Equal(t, "rain", tacoma.Condition)

	require.NoError(t, p.CheckReadiness(context.Background()))
	report, ok := p.LastReport()
	require.True(t, ok)
	assert.Equal(t, 2, report.TotalRecords)
	assert.Equal(t, 100.0, report.TemperaturePct)
	assert.Equal(t, report, stats.Report)
}

func TestRunPreservesInputOrder(t *testing.T) {
	var records []domain.SalesRecord
	ids := []string{"10", "2", "7", "31", "4", "25", "1", "19"}
	for _, id := range ids {
		records = append(records, salesRecord(id, "Seattle", "WA", "West"))
	}

	sales := &mockSales{records: records}
	weather := &mockWeather{}
	sink := &mockSink{}

	p := newPipeline(sales, weather, sink, reconcile.Options{}, 8)
	_, err := p.Run(context.Background())
	require.NoError(t, err)

	out := sink.all()
	require.Len(t, out, len(ids))
	for i, id := range ids {
		assert.Equal(t, id, out[i].RowID)
	}
}

func TestRunDeterministic(t *testing.T) {
	domain.SetClock(clockwork.NewFakeClockAt(time.Date(2014, time.March, 2, 6, 0, 0, 0, time.UTC)))
	defer domain.SetClock(nil)

	records := []domain.SalesRecord{
		salesRecord("1", "Seattle", "WA", "West"),
		salesRecord("2", "Dallas", "TX", "Central"),
		salesRecord("3", "Portland", "OR", "West"),
	}
	facts := []domain.WeatherFact{
		{Date: marchFirst, City: "Tacoma", Temperature: ptr(18)},
		{Date: marchFirst, City: "Portland", Humidity: ptr(71), Condition: "rain"},
		{Date: marchFirst, City: "Dallas", Temperature: ptr(25), Condition: "clear"},
	}

	// The Tacoma record exists so the hierarchy can place Tacoma's fact;
	// it participates in the averages like any other.
	records = append(records, salesRecord("99", "Tacoma", "WA", "West"))

	run := func() []domain.EnrichedRecord {
		sales := &mockSales{records: records}
		weather := &mockWeather{facts: facts}
		sink := &mockSink{}

		p := newPipeline(sales, weather, sink, reconcile.Options{}, 4)
		_, err := p.Run(context.Background())
		require.NoError(t, err)
		return sink.all()
	}

	first := run()
	second := run()

	dateCmp := cmp.Comparer(func(a, b domain.Date) bool { return a == b })
	if diff := cmp.Diff(first, second, dateCmp); diff != "" {
		t.Fatalf("pipeline output not deterministic (-first +second):\n%s", diff)
	}
}

// The hierarchy is derived from the reconciled sales population itself, so
// within a single run the unknown-city path is a record with a blank city
// cell: geo.Build skips it and Resolve fails for it.
func TestRunUnknownCityEmittedAndTallied(t *testing.T) {
	blankCity := salesRecord("2", "", "WA", "West")
	sales := &mockSales{records: []domain.SalesRecord{
		salesRecord("1", "Seattle", "WA", "West"),
		blankCity,
	}}
	weather := &mockWeather{facts: []domain.WeatherFact{
		{Date: marchFirst, City: "Seattle", Temperature: ptr(12)},
	}}
	sink := &mockSink{}

	p := newPipeline(sales, weather, sink, reconcile.Options{}, 2)
	stats, err := p.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, stats.UnknownCities)

	out := sink.all()
	require.Len(t, out, 2, "demoted records are emitted, not dropped")
	assert.Equal(t, domain.TierExact, out[0].TemperatureTier)
	// State and region were skipped for the blank-city record; global
	// still applies.
	assert.Equal(t, domain.TierGlobalAvg, out[1].TemperatureTier)
	assert.Equal(t, 12.0, *out[1].Temperature)
}

func TestRunStrictGeoAborts(t *testing.T) {
	sales := &mockSales{records: []domain.SalesRecord{
		salesRecord("1", "Seattle", "WA", "West"),
		salesRecord("2", "", "WA", "West"),
	}}
	weather := &mockWeather{facts: []domain.WeatherFact{
		{Date: marchFirst, City: "Seattle", Temperature: ptr(12)},
	}}
	sink := &mockSink{}

	p := newPipeline(sales, weather, sink, reconcile.Options{StrictGeo: true}, 1)
	_, err := p.Run(context.Background())
	require.Error(t, err)

	var unknown *domain.UnknownCityError
	assert.ErrorAs(t, err, &unknown)
	assert.Empty(t, sink.all())
}

func TestRunSourceErrors(t *testing.T) {
	sink := &mockSink{}

	t.Run("weather source failure", func(t *testing.T) {
		p := newPipeline(&mockSales{}, &mockWeather{err: errors.New("boom")}, sink, reconcile.Options{}, 1)
		_, err := p.Run(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "load weather observations")
	})

	t.Run("duplicate weather fact is fatal", func(t *testing.T) {
		weather := &mockWeather{facts: []domain.WeatherFact{
			{Date: marchFirst, City: "Seattle", Temperature: ptr(10)},
			{Date: marchFirst, City: "Seattle", Temperature: ptr(11)},
		}}
		p := newPipeline(&mockSales{}, weather, sink, reconcile.Options{}, 1)
		_, err := p.Run(context.Background())
		require.Error(t, err)

		var dup *domain.DuplicateWeatherFactError
		assert.ErrorAs(t, err, &dup)
	})

	t.Run("sales source failure", func(t *testing.T) {
		p := newPipeline(&mockSales{err: errors.New("boom")}, &mockWeather{}, sink, reconcile.Options{}, 1)
		_, err := p.Run(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "load sales records")
	})

	t.Run("sink failure", func(t *testing.T) {
		failing := &mockSink{err: errors.New("disk full")}
		p := newPipeline(&mockSales{records: []domain.SalesRecord{salesRecord("1", "Seattle", "WA", "West")}},
			&mockWeather{}, failing, reconcile.Options{}, 1)
		_, err := p.Run(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "load enriched records")
	})
}

func TestRunRejectionTallies(t *testing.T) {
	sales := &mockSales{
		records:  []domain.SalesRecord{salesRecord("1", "Seattle", "WA", "West")},
		rejected: 3,
	}
	weather := &mockWeather{rejected: 2}
	sink := &mockSink{}

	p := newPipeline(sales, weather, sink, reconcile.Options{}, 1)
	stats, err := p.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, stats.RejectedSales)
	assert.Equal(t, 2, stats.RejectedWeather)
	assert.Equal(t, 4, stats.SalesRead) // 1 reconciled + 3 rejected
	assert.Equal(t, 1, stats.Enriched)  // rejected rows never reach output
}

func TestRunEmptyInputs(t *testing.T) {
	sink := &mockSink{}
	p := newPipeline(&mockSales{}, &mockWeather{}, sink, reconcile.Options{}, 4)

	stats, err := p.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0, stats.Enriched)
	assert.Equal(t, 0, stats.Report.TotalRecords)
	assert.Equal(t, 0.0, stats.Report.TemperaturePct)
}
