package model

// Parameter is one classified metric inside an assessment: the formatted
// raw value, the bucket it fell into, and the points the bucket awards.
type Parameter struct {
	Key    string `json:"key"`
	Label  string `json:"label"`
	Value  string `json:"value"`
	Bucket string `json:"bucket"`
	Points int    `json:"points"`
}

// Scores holds the aggregate scores, each rounded to one decimal.
type Scores struct {
	Location float64 `json:"location"`
	Company  float64 `json:"company"`
	Overall  float64 `json:"overall"`
}

// Assessment is the complete scoring record for one company. Parameters
// keep their classification order so reports render identically across
// runs.
type Assessment struct {
	Company            string      `json:"company"`
	Address            string      `json:"address"` // display form including coordinates
	Location           string      `json:"location"`
	LocationParameters []Parameter `json:"location_parameters"`
	CompanyParameters  []Parameter `json:"company_parameters"`
	Scores             Scores      `json:"scores"`
}

// Param returns the parameter with the given key from either section.
func (a *Assessment) Param(key string) (Parameter, bool) {
	for _, p := range a.LocationParameters {
		if p.Key == key {
			return p, true
		}
	}
	for _, p := range a.CompanyParameters {
		if p.Key == key {
			return p, true
		}
	}
	return Parameter{}, false
}
