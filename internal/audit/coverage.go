// Package audit computes post-reconciliation completeness statistics used to
// validate imputation quality.
package audit

import "github.com/couchcryptid/retail-weather-etl/internal/domain"

// Report builds a CoverageReport over a materialized run: for each weather
// attribute, how many records resolved at any tier other than missing. Pure
// function of its input; recomputed fully per run rather than maintained
// incrementally. Empty input yields zero percentages, not a division by zero.
func Report(records []domain.EnrichedRecord) domain.CoverageReport {
	report := domain.CoverageReport{TotalRecords: len(records)}

	for _, rec := range records {
		if rec.TemperatureTier != domain.TierMissing {
			report.TemperatureCovered++
		}
		if rec.HumidityTier != domain.TierMissing {
			report.HumidityCovered++
		}
		if rec.ConditionTier != domain.TierMissing {
			report.ConditionCovered++
		}
	}

	report.TemperaturePct = percent(report.TemperatureCovered, report.TotalRecords)
	report.HumidityPct = percent(report.HumidityCovered, report.TotalRecords)
	report.ConditionPct = percent(report.ConditionCovered, report.TotalRecords)
	return report
}

func percent(covered, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(covered) / float64(total) * 100
}
