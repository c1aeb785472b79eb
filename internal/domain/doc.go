// Package domain models retail sales transactions and the per-city daily
// weather context attached to them.
//
// # Data Sources
//
// Sales records come from superstore-style transaction exports: one row per
// product line, so OrderID repeats across rows and RowID is the only unique
// per-record identifier. Weather observations come from per-city daily feeds
// where any of temperature, humidity, or condition may be missing
// independently — partial observations are legal and common.
//
// # Reconciliation Tiers
//
// Each sales record is enriched with a best-effort weather context. The three
// weather attributes are resolved independently, each walking an ordered
// fallback until a value is found:
//
//	exact       the (date, city) fact itself carries the attribute
//	state_avg   mean over facts whose city maps to the record's state
//	region_avg  mean over facts whose city maps to the record's region
//	global_avg  mean over all facts for the record's date
//	missing     no fact anywhere for the date carries the attribute
//
// It is normal for one record's temperature to resolve at exact while its
// humidity resolves at region_avg: missing fields occur independently per
// fact. Numeric attributes are averaged with absent values ignored (never
// treated as zero). Condition is categorical and never averaged; when a tier
// has several candidates the representative comes from the fact with the
// lowest city name, so repeated runs over identical snapshots produce
// byte-identical output.
//
// # Geographic Hierarchy
//
// The city → (state, region) mapping is derived from the distinct triples in
// the sales data itself, not from an external gazetteer. A city seen only in
// weather data is therefore invisible to the hierarchy; scoped averages skip
// such facts and global averages still include them.
//
// # Dates
//
// Dates are civil days in UTC. Superstore exports use US layouts (1/2/2006,
// 01/02/2006) alongside ISO 2006-01-02; anything else is a
// [MalformedDateError] and the carrying record is rejected and tallied, never
// silently coerced.
//
// # Coverage
//
// A CoverageReport summarizes post-reconciliation completeness: for each
// attribute, the count and percentage of records whose tier is not missing.
// An empty run reports zero percent rather than dividing by zero.
package domain
