// Package scoring implements the bucket classification tables and the
// score aggregation for company site assessments.
//
// Every metric maps into one of five buckets worth 1 to 5 points. Location
// and company scores are the mean of their five parameter points, the
// overall score the mean of the two, all rounded to one decimal.
package scoring

import "github.com/rotisserie/eris"

// Metric identifies a range-bucketed quantity.
type Metric string

const (
	MetricEmploymentDensity Metric = "employment_density" // employed persons per 1000 residents
	MetricCommuterShare     Metric = "commuter_share"     // in-commuters as percent of employees
	MetricMotorizationRate  Metric = "motorization_rate"  // cars per 1000 residents
	MetricCarModalSplit     Metric = "car_modal_split"    // percent of trips by car
	MetricHeadcount         Metric = "headcount"
	MetricStopDistance      Metric = "stop_distance"     // meters to nearest transit stop
	MetricMotorwayDistance  Metric = "motorway_distance" // meters to nearest motorway entry
	MetricParkingDistance   Metric = "parking_distance"  // meters to nearest parking facility
)

// Parameter keys for the two categorical metrics.
const (
	KeyTransitQuality = "transit_quality"
	KeySector         = "sector"
)

// Bucket is the classification result for a metric value.
type Bucket struct {
	Label  string
	Points int
}

// ErrUnknownMetric reports a metric with no classification table. This is
// a programming error; batch callers abort instead of skipping the company.
var ErrUnknownMetric = eris.New("scoring: unknown metric")

// Classify maps a measured value to its bucket for the given metric.
func Classify(value float64, metric Metric) (Bucket, error) {
	t, ok := rangeTables[metric]
	if !ok {
		return Bucket{}, eris.Wrapf(ErrUnknownMetric, "classify %s", metric)
	}
	return t.classify(value), nil
}

// TransitClassPoints returns the points for a transit quality class A-E.
// Classes outside the table are an error; the caller decides whether a
// fallback class should have been substituted beforehand.
func TransitClassPoints(class string) (int, error) {
	pts, ok := transitPoints[class]
	if !ok {
		return 0, eris.Errorf("scoring: unknown transit class %q", class)
	}
	return pts, nil
}

// DefaultSectorPoints is the neutral score for sectors outside the table.
const DefaultSectorPoints = 3

// SectorPoints returns the points for an industry sector. ok reports
// whether the sector is part of the fixed table; callers substitute
// DefaultSectorPoints when it is not.
func SectorPoints(sector string) (pts int, ok bool) {
	pts, ok = sectorPoints[sector]
	return pts, ok
}

// Fallback values substituted by the scorer when a geo lookup fails.
const (
	FallbackTransitClass      = "C"
	FallbackStopDistanceM     = 500.0
	FallbackMotorwayDistanceM = 3000.0
	FallbackParkingDistanceM  = 200.0
)

// UnknownPlace labels a distance whose place name could not be resolved.
const UnknownPlace = "Unbekannt"
