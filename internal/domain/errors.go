package domain

import "fmt"

// UnknownCityError reports a city absent from the derived geographic
// hierarchy. Recoverable: the reconciler demotes the affected attributes to
// missing unless strict-geo mode is on.
type UnknownCityError struct {
	City string
}

func (e *UnknownCityError) Error() string {
	return fmt.Sprintf("city %q not present in geo hierarchy", e.City)
}

// MalformedDateError reports an unparseable date on a sales record or
// weather observation. The carrying record is rejected and tallied; the run
// continues.
type MalformedDateError struct {
	Value string
}

func (e *MalformedDateError) Error() string {
	return fmt.Sprintf("malformed date %q", e.Value)
}

// DuplicateWeatherFactError reports two weather facts claiming the same
// (date, city) pair. Fatal at store construction: picking one silently would
// hide corrupt input the caller must fix.
type DuplicateWeatherFactError struct {
	Date Date
	City string
}

func (e *DuplicateWeatherFactError) Error() string {
	return fmt.Sprintf("duplicate weather fact for %s/%s", e.Date, e.City)
}
