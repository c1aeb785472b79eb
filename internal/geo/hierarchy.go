// Package geo holds the static city → (state, region) hierarchy used as the
// fallback key for weather imputation. It is derived data: the reference
// population is the distinct (city, state, region) triples present in the
// sales input, not an external gazetteer.
package geo

import (
	"github.com/couchcryptid/retail-weather-etl/internal/domain"
)

// Placement is a city's position in the hierarchy.
type Placement struct {
	State  string
	Region string
}

// Hierarchy is an immutable city lookup. Build it fully before reconciliation
// starts; it is safe for concurrent reads afterward.
type Hierarchy struct {
	placements map[string]Placement
}

// Build derives the hierarchy from the sales population. Each city maps to
// exactly one state (the source reference table enforces this); the first
// triple seen for a city wins. Cities appearing only in weather data are not
// represented — callers tolerate that gap.
func Build(records []domain.SalesRecord) *Hierarchy {
	placements := make(map[string]Placement, len(records))
	for _, rec := range records {
		if rec.City == "" {
			continue
		}
		if _, ok := placements[rec.City]; ok {
			continue
		}
		placements[rec.City] = Placement{State: rec.State, Region: rec.Region}
	}
	return &Hierarchy{placements: placements}
}

// Resolve returns the placement for city, or a *domain.UnknownCityError if
// the city was never observed in the sales population.
func (h *Hierarchy) Resolve(city string) (Placement, error) {
	p, ok := h.placements[city]
	if !ok {
		return Placement{}, &domain.UnknownCityError{City: city}
	}
	return p, nil
}

// Len returns the number of known cities.
func (h *Hierarchy) Len() int {
	return len(h.placements)
}
