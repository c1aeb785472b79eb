// Package reconcile implements the weather-to-sales reconciliation: mapping
// each sales record to an enriched record by walking an ordered fallback of
// geographic scopes per weather attribute.
package reconcile

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/couchcryptid/retail-weather-etl/internal/domain"
	"github.com/couchcryptid/retail-weather-etl/internal/geo"
	"github.com/couchcryptid/retail-weather-etl/internal/weatherstore"
)

// Band is an inclusive temperature range in the configured canonical unit.
type Band struct {
	Min float64
	Max float64
}

// Contains reports whether v falls inside the band.
func (b Band) Contains(v float64) bool {
	return v >= b.Min && v <= b.Max
}

// Options control fallback behavior.
type Options struct {
	// StrictGeo aborts the run when a record's city is unknown to the
	// hierarchy and a state or region tier would have been consulted.
	// When false (the default) those tiers are skipped and the run
	// continues.
	StrictGeo bool

	// FallbackOrder lists the tiers tried after an exact lookup misses,
	// in order. Tiers may be omitted to disable them. Nil means
	// DefaultFallbackOrder.
	FallbackOrder []domain.Tier

	// IdealBand, when set, stamps each record whose temperature resolved
	// with whether the value falls inside the band.
	IdealBand *Band
}

// DefaultFallbackOrder is state, then region, then global.
func DefaultFallbackOrder() []domain.Tier {
	return []domain.Tier{domain.TierStateAvg, domain.TierRegionAvg, domain.TierGlobalAvg}
}

// Result pairs an enriched record with per-record accounting the pipeline
// tallies.
type Result struct {
	Record domain.EnrichedRecord

	// UnknownCity is true when the record's city was absent from the
	// hierarchy and geo-scoped tiers were skipped for it.
	UnknownCity bool
}

// Reconciler resolves a weather context for sales records. It reads only the
// immutable store and hierarchy, so a single Reconciler is safe for
// concurrent use once both are fully built.
type Reconciler struct {
	store  *weatherstore.Store
	geo    *geo.Hierarchy
	order  []domain.Tier
	opts   Options
	logger *slog.Logger
}

// New creates a Reconciler over fully built snapshots.
func New(store *weatherstore.Store, hierarchy *geo.Hierarchy, opts Options, logger *slog.Logger) *Reconciler {
	order := opts.FallbackOrder
	if order == nil {
		order = DefaultFallbackOrder()
	}
	return &Reconciler{
		store:  store,
		geo:    hierarchy,
		order:  order,
		opts:   opts,
		logger: logger,
	}
}

// Reconcile maps one sales record to one enriched record. The three weather
// attributes resolve independently: each walks exact → fallback tiers →
// missing with early exit, so one record may carry different tiers per
// attribute. In strict-geo mode an unknown city that blocked a geo-scoped
// tier is returned as an error instead of being demoted.
func (r *Reconciler) Reconcile(rec domain.SalesRecord) (Result, error) {
	scan := r.newTierScan(rec)

	var exactTemp, exactHumidity *float64
	var exactCondition string
	if exact, ok := r.store.Lookup(rec.OrderDate, rec.City); ok {
		exactTemp = exact.Temperature
		exactHumidity = exact.Humidity
		exactCondition = exact.Condition
	}

	out := domain.EnrichedRecord{SalesRecord: rec}
	out.Temperature, out.TemperatureTier = scan.resolveNumeric(exactTemp, func(s domain.WeatherSummary) *float64 { return s.Temperature })
	out.Humidity, out.HumidityTier = scan.resolveNumeric(exactHumidity, func(s domain.WeatherSummary) *float64 { return s.Humidity })
	out.Condition, out.ConditionTier = scan.resolveCondition(exactCondition)

	if scan.geoSkipped {
		if r.opts.StrictGeo {
			return Result{}, fmt.Errorf("reconcile row %s: %w", rec.RowID, &domain.UnknownCityError{City: rec.City})
		}
		r.logger.Warn("city unknown to hierarchy, geo tiers skipped",
			"row_id", rec.RowID,
			"city", rec.City,
		)
	}

	if r.opts.IdealBand != nil && out.Temperature != nil {
		ideal := r.opts.IdealBand.Contains(*out.Temperature)
		out.IdealWeather = &ideal
	}

	out.ProcessedAt = domain.Now()

	return Result{Record: out, UnknownCity: scan.geoSkipped}, nil
}

// tierScan walks the fallback tiers for one record, computing each tier's
// summary at most once across the three attributes.
type tierScan struct {
	r   *Reconciler
	rec domain.SalesRecord

	placement    geo.Placement
	hasPlacement bool
	geoSkipped   bool

	cache map[domain.Tier]domain.WeatherSummary
}

func (r *Reconciler) newTierScan(rec domain.SalesRecord) *tierScan {
	scan := &tierScan{
		r:     r,
		rec:   rec,
		cache: make(map[domain.Tier]domain.WeatherSummary, len(r.order)),
	}

	p, err := r.geo.Resolve(rec.City)
	if err == nil {
		scan.placement = p
		scan.hasPlacement = true
		return scan
	}
	var unknown *domain.UnknownCityError
	if !errors.As(err, &unknown) {
		// Resolve only ever misses; anything else would be a
		// programming error, surfaced on the first geo tier.
		r.logger.Error("unexpected geo resolve failure", "city", rec.City, "error", err)
	}
	return scan
}

// summary returns the tier's scoped summary. ok is false when the tier
// cannot be attempted because the record's city is unknown to the hierarchy.
func (s *tierScan) summary(tier domain.Tier) (domain.WeatherSummary, bool) {
	if cached, ok := s.cache[tier]; ok {
		return cached, true
	}

	var sum domain.WeatherSummary
	switch tier {
	case domain.TierStateAvg:
		if !s.hasPlacement {
			s.geoSkipped = true
			return domain.WeatherSummary{}, false
		}
		sum = s.r.store.AverageByState(s.rec.OrderDate, s.placement.State, s.r.geo)
	case domain.TierRegionAvg:
		if !s.hasPlacement {
			s.geoSkipped = true
			return domain.WeatherSummary{}, false
		}
		sum = s.r.store.AverageByRegion(s.rec.OrderDate, s.placement.Region, s.r.geo)
	case domain.TierGlobalAvg:
		sum = s.r.store.AverageGlobal(s.rec.OrderDate)
	default:
		return domain.WeatherSummary{}, false
	}

	s.cache[tier] = sum
	return sum, true
}

// resolveNumeric walks exact → fallback tiers for one numeric attribute,
// stopping at the first tier that carries a value.
func (s *tierScan) resolveNumeric(exact *float64, field func(domain.WeatherSummary) *float64) (*float64, domain.Tier) {
	if exact != nil {
		return exact, domain.TierExact
	}
	for _, tier := range s.r.order {
		sum, ok := s.summary(tier)
		if !ok {
			continue
		}
		if v := field(sum); v != nil {
			return v, tier
		}
	}
	return nil, domain.TierMissing
}

// resolveCondition is the categorical twin of resolveNumeric: no averaging,
// the tier's deterministic representative wins.
func (s *tierScan) resolveCondition(exact string) (string, domain.Tier) {
	if exact != "" {
		return exact, domain.TierExact
	}
	for _, tier := range s.r.order {
		sum, ok := s.summary(tier)
		if !ok {
			continue
		}
		if sum.Condition != "" {
			return sum.Condition, tier
		}
	}
	return "", domain.TierMissing
}
