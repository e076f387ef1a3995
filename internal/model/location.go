// Package model defines the domain types shared across the scoring
// pipeline: locations, companies, assessments, and runs.
package model

import "github.com/rotisserie/eris"

// Location holds the municipal indicators a company site is scored
// against. The employment density and commuter share are derived during
// construction and always stay consistent with the raw inputs; build
// values with NewLocation instead of a struct literal.
type Location struct {
	Name string `json:"name"`

	Employees        float64 `json:"employees"`         // employed persons in the municipality
	Residents        float64 `json:"residents"`         // resident population
	InCommuters      float64 `json:"in_commuters"`      // persons commuting into the municipality
	MotorizationRate float64 `json:"motorization_rate"` // cars per 1000 residents
	CarModalSplit    float64 `json:"car_modal_split"`   // percent of trips made by car

	// TransitClass optionally pins the transit quality class (A-E)
	// instead of resolving it from the transit dataset.
	TransitClass string `json:"transit_class,omitempty"`

	employmentDensity float64
	commuterShare     float64
}

// NewLocation builds a Location and derives the employment density and the
// in-commuter share. Residents and employees must be positive; otherwise
// the derived metrics are undefined and the location is rejected.
func NewLocation(name string, employees, residents, inCommuters, motorizationRate, carModalSplit float64) (*Location, error) {
	if name == "" {
		return nil, eris.New("location: name is required")
	}
	if residents <= 0 {
		return nil, eris.Errorf("location %s: residents must be positive, got %v", name, residents)
	}
	if employees <= 0 {
		return nil, eris.Errorf("location %s: employees must be positive, got %v", name, employees)
	}

	loc := &Location{
		Name:             name,
		Employees:        employees,
		Residents:        residents,
		InCommuters:      inCommuters,
		MotorizationRate: motorizationRate,
		CarModalSplit:    carModalSplit,
	}
	loc.employmentDensity = employees / (residents / 1000)
	loc.commuterShare = inCommuters / employees * 100
	return loc, nil
}

// EmploymentDensity returns employed persons per 1000 residents.
func (l *Location) EmploymentDensity() float64 { return l.employmentDensity }

// CommuterShare returns in-commuters as a percentage of employed persons.
func (l *Location) CommuterShare() float64 { return l.commuterShare }
