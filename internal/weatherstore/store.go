// Package weatherstore provides the immutable snapshot of per-(date, city)
// weather facts consulted during reconciliation: point lookups plus the
// scoped averages backing the state/region/global fallback tiers.
package weatherstore

import (
	"sort"

	"github.com/couchcryptid/retail-weather-etl/internal/domain"
	"github.com/couchcryptid/retail-weather-etl/internal/geo"
)

// CityResolver maps a weather fact's city into the geographic hierarchy.
// Facts whose city cannot be resolved are excluded from state and region
// scopes but still contribute to global averages.
type CityResolver interface {
	Resolve(city string) (geo.Placement, error)
}

type factKey struct {
	date domain.Date
	city string
}

// Store is a read-only index of weather facts. Build it fully before
// reconciliation starts; it is safe for concurrent reads afterward.
type Store struct {
	byKey  map[factKey]domain.WeatherFact
	byDate map[domain.Date][]domain.WeatherFact // sorted by city name
}

// New builds a Store from a finite fact slice. A second fact for the same
// (date, city) pair is a *domain.DuplicateWeatherFactError: the construction
// fails fast rather than silently picking one.
func New(facts []domain.WeatherFact) (*Store, error) {
	s := &Store{
		byKey:  make(map[factKey]domain.WeatherFact, len(facts)),
		byDate: make(map[domain.Date][]domain.WeatherFact),
	}

	for _, fact := range facts {
		key := factKey{date: fact.Date, city: fact.City}
		if _, ok := s.byKey[key]; ok {
			return nil, &domain.DuplicateWeatherFactError{Date: fact.Date, City: fact.City}
		}
		s.byKey[key] = fact
		s.byDate[fact.Date] = append(s.byDate[fact.Date], fact)
	}

	// Sort per-date slices by city so scoped scans iterate in a total
	// order; the representative condition pick depends on this.
	for date := range s.byDate {
		facts := s.byDate[date]
		sort.Slice(facts, func(i, j int) bool { return facts[i].City < facts[j].City })
	}

	return s, nil
}

// Lookup returns the fact for (date, city), if any. A miss is a legitimate,
// common case — no error.
func (s *Store) Lookup(date domain.Date, city string) (domain.WeatherFact, bool) {
	fact, ok := s.byKey[factKey{date: date, city: city}]
	return fact, ok
}

// Len returns the number of stored facts.
func (s *Store) Len() int {
	return len(s.byKey)
}

// AverageByState summarizes the date's facts whose city resolves to state.
func (s *Store) AverageByState(date domain.Date, state string, resolver CityResolver) domain.WeatherSummary {
	return s.summarize(date, func(city string) bool {
		p, err := resolver.Resolve(city)
		return err == nil && p.State == state
	})
}

// AverageByRegion summarizes the date's facts whose city resolves to region.
func (s *Store) AverageByRegion(date domain.Date, region string, resolver CityResolver) domain.WeatherSummary {
	return s.summarize(date, func(city string) bool {
		p, err := resolver.Resolve(city)
		return err == nil && p.Region == region
	})
}

// AverageGlobal summarizes all facts for the date regardless of geography.
func (s *Store) AverageGlobal(date domain.Date) domain.WeatherSummary {
	return s.summarize(date, func(string) bool { return true })
}

// summarize averages the numeric attributes over in-scope facts, ignoring
// absent values rather than treating them as zero. Condition is categorical
// and not averaged: the representative is the first non-empty condition in
// city order, i.e. the lowest city name in scope.
func (s *Store) summarize(date domain.Date, inScope func(city string) bool) domain.WeatherSummary {
	var (
		sumTemp, sumHumidity     float64
		tempCount, humidityCount int
		condition                string
	)

	for _, fact := range s.byDate[date] {
		if !inScope(fact.City) {
			continue
		}
		if fact.Temperature != nil {
			sumTemp += *fact.Temperature
			tempCount++
		}
		if fact.Humidity != nil {
			sumHumidity += *fact.Humidity
			humidityCount++
		}
		if condition == "" && fact.Condition != "" {
			condition = fact.Condition
		}
	}

	var summary domain.WeatherSummary
	if tempCount > 0 {
		mean := sumTemp / float64(tempCount)
		summary.Temperature = &mean
	}
	if humidityCount > 0 {
		mean := sumHumidity / float64(humidityCount)
		summary.Humidity = &mean
	}
	summary.Condition = condition
	return summary
}
