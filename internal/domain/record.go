package domain

import "time"

// Tier identifies the fallback level at which a weather attribute was
// resolved for a record.
type Tier string

const (
	TierExact     Tier = "exact"
	TierStateAvg  Tier = "state_avg"
	TierRegionAvg Tier = "region_avg"
	TierGlobalAvg Tier = "global_avg"
	TierMissing   Tier = "missing"
)

// SalesRecord is one product line of a retail order. OrderID is not unique
// (an order spans one row per product line); RowID is. Records are created by
// the ingestion layer and never mutated afterward.
type SalesRecord struct {
	RowID     string  `json:"row_id"`
	OrderID   string  `json:"order_id"`
	OrderDate Date    `json:"order_date"`
	City      string  `json:"city"`
	State     string  `json:"state"`
	Region    string  `json:"region"`
	ProductID string  `json:"product_id"`
	Sales     float64 `json:"sales"`
	Quantity  int     `json:"quantity"`
	Profit    float64 `json:"profit"`
}

// WeatherFact is the merged observation for one (date, city) pair. At most
// one fact exists per pair. Any field may be absent: nil pointers for the
// numeric attributes, empty string for condition.
type WeatherFact struct {
	Date        Date     `json:"date"`
	City        string   `json:"city"`
	Temperature *float64 `json:"temperature,omitempty"`
	Humidity    *float64 `json:"humidity,omitempty"`
	Condition   string   `json:"condition,omitempty"`
}

// WeatherSummary is a scope-level aggregate over weather facts: arithmetic
// means for the numeric attributes (absent values ignored, not zeroed) and a
// deterministic representative condition.
type WeatherSummary struct {
	Temperature *float64
	Humidity    *float64
	Condition   string
}

// Empty reports whether the summary carries no attribute at all.
func (s WeatherSummary) Empty() bool {
	return s.Temperature == nil && s.Humidity == nil && s.Condition == ""
}

// EnrichedRecord is a SalesRecord plus its resolved weather context. Created
// once by the reconciler and immutable afterward.
type EnrichedRecord struct {
	SalesRecord

	Temperature *float64 `json:"temperature,omitempty"`
	Humidity    *float64 `json:"humidity,omitempty"`
	Condition   string   `json:"condition,omitempty"`

	TemperatureTier Tier `json:"temperature_tier"`
	HumidityTier    Tier `json:"humidity_tier"`
	ConditionTier   Tier `json:"condition_tier"`

	// IdealWeather is set only when a temperature resolved: whether the
	// value falls inside the configured ideal band.
	IdealWeather *bool `json:"ideal_weather,omitempty"`

	ProcessedAt time.Time `json:"processed_at"`
}

// CoverageReport summarizes post-reconciliation completeness. Percentages are
// 0 for an empty run.
type CoverageReport struct {
	TotalRecords       int `json:"total_records"`
	TemperatureCovered int `json:"temperature_covered"`
	HumidityCovered    int `json:"humidity_covered"`
	ConditionCovered   int `json:"condition_covered"`

	TemperaturePct float64 `json:"temperature_pct"`
	HumidityPct    float64 `json:"humidity_pct"`
	ConditionPct   float64 `json:"condition_pct"`
}
