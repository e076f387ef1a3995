package scoring

import (
	"context"
	"fmt"
	"math"
	"strconv"

	"go.uber.org/zap"

	"github.com/raumwerk/standort-cli/internal/model"
)

// GeoLookup resolves the externally sourced metrics: transit quality for a
// municipality and the three distances around a company site. Lookups
// return an error when the underlying source fails; the scorer substitutes
// the documented fallback values and keeps going.
type GeoLookup interface {
	// TransitQuality returns the transit quality class (A-E) and the
	// mean quality score behind it for a municipality.
	TransitQuality(ctx context.Context, municipality string) (class string, score float64, err error)

	// NearestStop returns the closest public transport stop and its
	// distance in meters.
	NearestStop(ctx context.Context, lat, lon float64) (name string, meters float64, err error)

	// NearestMotorwayAccess returns the closest motorway entry and its
	// distance in meters.
	NearestMotorwayAccess(ctx context.Context, lat, lon float64) (name string, meters float64, err error)

	// NearestParking returns the closest parking facility and its
	// distance in meters.
	NearestParking(ctx context.Context, lat, lon float64) (name string, meters float64, err error)
}

// Display labels for the report sheets.
const (
	labelTransitQuality    = "ÖV-Anbindungsqualität"
	labelEmploymentDensity = "Beschäftigte pro 1000 Einwohner"
	labelCommuterShare     = "Einpendler-Anteil"
	labelMotorizationRate  = "Motorisierungsgrad"
	labelCarModalSplit     = "Modal Split Auto"
	labelHeadcount         = "Mitarbeiterzahl"
	labelStopDistance      = "Nächste ÖV-Haltestelle"
	labelSector            = "Branche"
	labelMotorwayDistance  = "Autobahn-Distanz"
	labelParkingDistance   = "Parkplatz-Distanz"
)

// Scorer classifies location and company parameters and aggregates them
// into an assessment.
type Scorer struct {
	geo GeoLookup
}

// NewScorer creates a Scorer that resolves external metrics through geo.
func NewScorer(geo GeoLookup) *Scorer {
	return &Scorer{geo: geo}
}

// Score assesses one company against its location. The five location
// parameters are classified first, then the five company parameters; geo
// lookups always run in the order transit quality, stop, motorway,
// parking. Lookup failures degrade to fallback values, anything else
// fails the company.
func (s *Scorer) Score(ctx context.Context, loc *model.Location, co *model.Company) (*model.Assessment, error) {
	a := &model.Assessment{
		Company:  co.Name,
		Address:  fmt.Sprintf("%s (%v, %v)", co.Address, co.Lat, co.Lon),
		Location: loc.Name,
	}

	// Transit quality: the portfolio may pin the class, otherwise it is
	// resolved from the transit dataset.
	class := loc.TransitClass
	if class == "" {
		resolved, _, err := s.geo.TransitQuality(ctx, loc.Name)
		if err != nil {
			zap.L().Warn("scoring: transit quality lookup failed, using fallback",
				zap.String("location", loc.Name),
				zap.String("fallback", FallbackTransitClass),
				zap.Error(err))
			resolved = FallbackTransitClass
		}
		class = resolved
	}
	transitPts, err := TransitClassPoints(class)
	if err != nil {
		return nil, err
	}
	a.LocationParameters = append(a.LocationParameters, model.Parameter{
		Key:    KeyTransitQuality,
		Label:  labelTransitQuality,
		Value:  class,
		Bucket: class,
		Points: transitPts,
	})

	locParams := []struct {
		metric Metric
		label  string
		value  string
		v      float64
	}{
		{MetricEmploymentDensity, labelEmploymentDensity, fmt.Sprintf("%.1f", loc.EmploymentDensity()), loc.EmploymentDensity()},
		{MetricCommuterShare, labelCommuterShare, formatPercent(loc.CommuterShare()), loc.CommuterShare()},
		{MetricMotorizationRate, labelMotorizationRate, formatNumber(loc.MotorizationRate), loc.MotorizationRate},
		{MetricCarModalSplit, labelCarModalSplit, formatPercent(loc.CarModalSplit), loc.CarModalSplit},
	}
	for _, lp := range locParams {
		p, err := rangeParam(lp.metric, lp.label, lp.value, lp.v)
		if err != nil {
			return nil, err
		}
		a.LocationParameters = append(a.LocationParameters, p)
	}

	// Company parameters, in report order.
	p, err := rangeParam(MetricHeadcount, labelHeadcount, strconv.Itoa(co.Headcount), float64(co.Headcount))
	if err != nil {
		return nil, err
	}
	a.CompanyParameters = append(a.CompanyParameters, p)

	stopName, stopDist := s.lookupDistance(ctx, co, "stop", s.geo.NearestStop, FallbackStopDistanceM)
	p, err = rangeParam(MetricStopDistance, labelStopDistance, formatDistance(stopDist, stopName), stopDist)
	if err != nil {
		return nil, err
	}
	a.CompanyParameters = append(a.CompanyParameters, p)

	sectorPts, known := SectorPoints(co.Sector)
	if !known {
		zap.L().Debug("scoring: sector outside table, using neutral points",
			zap.String("company", co.Name),
			zap.String("sector", co.Sector))
		sectorPts = DefaultSectorPoints
	}
	a.CompanyParameters = append(a.CompanyParameters, model.Parameter{
		Key:    KeySector,
		Label:  labelSector,
		Value:  co.Sector,
		Bucket: co.Sector,
		Points: sectorPts,
	})

	rampName, rampDist := s.lookupDistance(ctx, co, "motorway", s.geo.NearestMotorwayAccess, FallbackMotorwayDistanceM)
	p, err = rangeParam(MetricMotorwayDistance, labelMotorwayDistance, formatDistance(rampDist, rampName), rampDist)
	if err != nil {
		return nil, err
	}
	a.CompanyParameters = append(a.CompanyParameters, p)

	parkName, parkDist := s.lookupDistance(ctx, co, "parking", s.geo.NearestParking, FallbackParkingDistanceM)
	p, err = rangeParam(MetricParkingDistance, labelParkingDistance, formatDistance(parkDist, parkName), parkDist)
	if err != nil {
		return nil, err
	}
	a.CompanyParameters = append(a.CompanyParameters, p)

	a.Scores.Location = round1(meanPoints(a.LocationParameters))
	a.Scores.Company = round1(meanPoints(a.CompanyParameters))
	a.Scores.Overall = round1((a.Scores.Location + a.Scores.Company) / 2)

	return a, nil
}

// lookupDistance runs one distance lookup and substitutes the fallback
// distance and the Unbekannt placeholder when it fails.
func (s *Scorer) lookupDistance(
	ctx context.Context,
	co *model.Company,
	kind string,
	lookup func(context.Context, float64, float64) (string, float64, error),
	fallbackM float64,
) (string, float64) {
	name, meters, err := lookup(ctx, co.Lat, co.Lon)
	if err != nil {
		zap.L().Warn("scoring: distance lookup failed, using fallback",
			zap.String("company", co.Name),
			zap.String("lookup", kind),
			zap.Float64("fallback_m", fallbackM),
			zap.Error(err))
		return UnknownPlace, fallbackM
	}
	return name, meters
}

// rangeParam classifies v and assembles the report parameter for it.
func rangeParam(metric Metric, label, value string, v float64) (model.Parameter, error) {
	b, err := Classify(v, metric)
	if err != nil {
		return model.Parameter{}, err
	}
	return model.Parameter{
		Key:    string(metric),
		Label:  label,
		Value:  value,
		Bucket: b.Label,
		Points: b.Points,
	}, nil
}

func meanPoints(params []model.Parameter) float64 {
	if len(params) == 0 {
		return 0
	}
	sum := 0
	for _, p := range params {
		sum += p.Points
	}
	return float64(sum) / float64(len(params))
}

// round1 rounds half away from zero to one decimal.
func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

// formatNumber renders a raw indicator without trailing zeros.
func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatPercent(v float64) string {
	return fmt.Sprintf("%.2f%%", v)
}

func formatDistance(meters float64, place string) string {
	return fmt.Sprintf("%.0f m (%s)", meters, place)
}
