package weatherstore_test

import (
	"testing"
	"time"

	"github.com/couchcryptid/retail-weather-etl/internal/domain"
	"github.com/couchcryptid/retail-weather-etl/internal/geo"
	"github.com/couchcryptid/retail-weather-etl/internal/weatherstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testDate = domain.NewDate(2014, time.March, 1)

func ptr(v float64) *float64 { return &v }

func fact(city string, temp, humidity *float64, condition string) domain.WeatherFact {
	return domain.WeatherFact{
		Date:        testDate,
		City:        city,
		Temperature: temp,
		Humidity:    humidity,
		Condition:   condition,
	}
}

func testHierarchy() *geo.Hierarchy {
	return geo.Build([]domain.SalesRecord{
		{City: "Seattle", State: "WA", Region: "West"},
		{City: "Tacoma", State: "WA", Region: "West"},
		{City: "Portland", State: "OR", Region: "West"},
		{City: "Dallas", State: "TX", Region: "Central"},
	})
}

func TestLookup(t *testing.T) {
	store, err := weatherstore.New([]domain.WeatherFact{
		fact("Seattle", ptr(12.5), nil, "rain"),
	})
	require.NoError(t, err)

	got, ok := store.Lookup(testDate, "Seattle")
	require.True(t, ok)
	assert.Equal(t, 12.5, *got.Temperature)
	assert.Nil(t, got.Humidity)
	assert.Equal(t, "rain", got.Condition)

	_, ok = store.Lookup(testDate, "Dallas")
	assert.False(t, ok)

	_, ok = store.Lookup(domain.NewDate(2014, time.March, 2), "Seattle")
	assert.False(t, ok)
}

func TestNewRejectsDuplicateFact(t *testing.T) {
	_, err := weatherstore.New([]domain.WeatherFact{
		fact("Seattle", ptr(10), nil, ""),
		fact("Seattle", ptr(11), nil, ""),
	})
	require.Error(t, err)

	var dup *domain.DuplicateWeatherFactError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, "Seattle", dup.City)
	assert.Equal(t, testDate, dup.Date)
}

func TestAverageByStateIgnoresAbsentValues(t *testing.T) {
	store, err := weatherstore.New([]domain.WeatherFact{
		fact("Seattle", ptr(10), ptr(80), ""),
		fact("Tacoma", ptr(20), nil, ""),    // humidity absent: excluded from the mean
		fact("Portland", ptr(100), nil, ""), // OR, out of scope
		fact("Dallas", ptr(100), ptr(5), ""),
	})
	require.NoError(t, err)

	sum := store.AverageByState(testDate, "WA", testHierarchy())
	require.NotNil(t, sum.Temperature)
	assert.Equal(t, 15.0, *sum.Temperature)
	require.NotNil(t, sum.Humidity)
	assert.Equal(t, 80.0, *sum.Humidity)
}

func TestAverageByRegion(t *testing.T) {
	store, err := weatherstore.New([]domain.WeatherFact{
		fact("Seattle", ptr(10), nil, ""),
		fact("Portland", ptr(30), nil, ""),
		fact("Dallas", ptr(100), nil, ""),
	})
	require.NoError(t, err)

	sum := store.AverageByRegion(testDate, "West", testHierarchy())
	require.NotNil(t, sum.Temperature)
	assert.Equal(t, 20.0, *sum.Temperature)
}

func TestAverageGlobalIncludesUnresolvableCities(t *testing.T) {
	// Atlantis appears only in weather data and is invisible to the
	// hierarchy; it must still count globally.
	store, err := weatherstore.New([]domain.WeatherFact{
		fact("Seattle", ptr(10), nil, ""),
		fact("Atlantis", ptr(30), nil, ""),
	})
	require.NoError(t, err)

	h := testHierarchy()
	state := store.AverageByState(testDate, "WA", h)
	require.NotNil(t, state.Temperature)
	assert.Equal(t, 10.0, *state.Temperature)

	global := store.AverageGlobal(testDate)
	require.NotNil(t, global.Temperature)
	assert.Equal(t, 20.0, *global.Temperature)
}

func TestSummaryConditionRepresentativeIsLowestCity(t *testing.T) {
	store, err := weatherstore.New([]domain.WeatherFact{
		fact("Tacoma", nil, nil, "snow"),
		fact("Seattle", nil, nil, "rain"),
		fact("Portland", nil, nil, ""), // empty condition never represents
	})
	require.NoError(t, err)

	sum := store.AverageGlobal(testDate)
	assert.Equal(t, "rain", sum.Condition)
	assert.Nil(t, sum.Temperature)
	assert.Nil(t, sum.Humidity)
}

func TestSummaryEmptyScope(t *testing.T) {
	store, err := weatherstore.New([]domain.WeatherFact{
		fact("Dallas", ptr(25), nil, "clear"),
	})
	require.NoError(t, err)

	sum := store.AverageByState(testDate, "WA", testHierarchy())
	assert.True(t, sum.Empty())

	sum = store.AverageGlobal(domain.NewDate(2014, time.March, 2))
	assert.True(t, sum.Empty())
}
