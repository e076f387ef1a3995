// Package geo provides the production lookups behind scoring.GeoLookup:
// the federal transit quality table, the public transport stop registry,
// and Overpass-backed motorway entry and parking searches.
package geo

import (
	"context"
	"fmt"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/raumwerk/standort-cli/internal/resilience"
	"github.com/raumwerk/standort-cli/pkg/overpass"
)

// Place names reported when a lookup succeeds but finds nothing nearby.
const (
	NoRampFound    = "Keine gefunden"
	NoParkingFound = "Kein Parkplatz gefunden"
	UnnamedParking = "Parkplatz ohne Namen"
)

// Distances reported alongside the no-match place names. Both land in the
// worst bucket of their metric.
const (
	noRampDistanceM    = 10000.0
	noParkingDistanceM = 1000.0
)

// Default search radii for the Overpass lookups.
const (
	DefaultMotorwayRadiusM = 20000
	DefaultParkingRadiusM  = 1000
)

// Sources bundles the data sources for all four lookups. Any source may be
// nil, in which case the lookups that need it return an error and the
// scorer applies its fallback values. The two Overpass lookups share a
// circuit breaker so a dead endpoint fails fast instead of stalling every
// company in a batch.
type Sources struct {
	transit *TransitTable
	stops   *StopIndex
	osm     overpass.Client
	breaker *resilience.CircuitBreaker

	motorwayRadiusM int
	parkingRadiusM  int
}

// SourceOption configures optional Sources behavior.
type SourceOption func(*Sources)

// WithBreaker overrides the circuit breaker config for the Overpass lookups.
func WithBreaker(cfg resilience.CircuitBreakerConfig) SourceOption {
	return func(s *Sources) {
		s.breaker = newOverpassBreaker(cfg)
	}
}

// NewSources builds a Sources over the given datasets and Overpass client.
// Non-positive radii fall back to the defaults.
func NewSources(transit *TransitTable, stops *StopIndex, osm overpass.Client, motorwayRadiusM, parkingRadiusM int, opts ...SourceOption) *Sources {
	if motorwayRadiusM <= 0 {
		motorwayRadiusM = DefaultMotorwayRadiusM
	}
	if parkingRadiusM <= 0 {
		parkingRadiusM = DefaultParkingRadiusM
	}
	s := &Sources{
		transit:         transit,
		stops:           stops,
		osm:             osm,
		breaker:         newOverpassBreaker(resilience.DefaultCircuitBreakerConfig()),
		motorwayRadiusM: motorwayRadiusM,
		parkingRadiusM:  parkingRadiusM,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func newOverpassBreaker(cfg resilience.CircuitBreakerConfig) *resilience.CircuitBreaker {
	if cfg.ShouldTrip == nil {
		// Only availability failures count. A malformed query is our
		// bug, not a sign the endpoint is down.
		cfg.ShouldTrip = resilience.IsTransient
	}
	if cfg.OnStateChange == nil {
		cfg.OnStateChange = func(from, to resilience.CircuitState) {
			if to == resilience.CircuitOpen {
				zap.L().Warn("overpass circuit opened", zap.Stringer("from", from))
				return
			}
			zap.L().Info("overpass circuit state changed",
				zap.Stringer("from", from),
				zap.Stringer("to", to),
			)
		}
	}
	return resilience.NewCircuitBreaker(cfg)
}

// TransitQuality resolves the transit quality class for a municipality from
// the federal table.
func (s *Sources) TransitQuality(_ context.Context, municipality string) (string, float64, error) {
	if s.transit == nil {
		return "", 0, eris.New("geo: transit table not loaded")
	}
	return s.transit.Lookup(municipality)
}

// NearestStop returns the closest public transport stop and its distance
// in meters.
func (s *Sources) NearestStop(_ context.Context, lat, lon float64) (string, float64, error) {
	if s.stops == nil {
		return "", 0, eris.New("geo: stop registry not loaded")
	}
	return s.stops.Nearest(lat, lon)
}

// NearestMotorwayAccess resolves the closest motorway entry via Overpass.
// A search that finds no entry within the radius is a successful lookup:
// it reports the Keine gefunden placeholder at 10 km rather than an error.
func (s *Sources) NearestMotorwayAccess(ctx context.Context, lat, lon float64) (string, float64, error) {
	if s.osm == nil {
		return "", 0, eris.New("geo: overpass client not configured")
	}
	ramp, err := resilience.ExecuteVal(ctx, s.breaker, func(ctx context.Context) (*overpass.Ramp, error) {
		return s.osm.NearestMotorwayRamp(ctx, lat, lon, s.motorwayRadiusM)
	})
	if err != nil {
		return "", 0, err
	}
	if ramp == nil {
		return NoRampFound, noRampDistanceM, nil
	}
	name := ramp.Name
	if name == "" {
		name = fmt.Sprintf("Auffahrt %d", ramp.WayID)
	}
	return name, ramp.Distance, nil
}

// NearestParking resolves the closest parking facility via Overpass. Like
// the ramp lookup, an empty result within the radius is not an error.
func (s *Sources) NearestParking(ctx context.Context, lat, lon float64) (string, float64, error) {
	if s.osm == nil {
		return "", 0, eris.New("geo: overpass client not configured")
	}
	facility, err := resilience.ExecuteVal(ctx, s.breaker, func(ctx context.Context) (*overpass.Facility, error) {
		return s.osm.NearestParking(ctx, lat, lon, s.parkingRadiusM)
	})
	if err != nil {
		return "", 0, err
	}
	if facility == nil {
		return NoParkingFound, noParkingDistanceM, nil
	}
	name := facility.Name
	if name == "" {
		name = UnnamedParking
	}
	return name, facility.Distance, nil
}
