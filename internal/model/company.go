package model

import "github.com/rotisserie/eris"

// Company is one company site to assess. Location names the municipal
// indicator set the site is scored against.
type Company struct {
	Name      string  `json:"name"`
	Address   string  `json:"address"`
	Lat       float64 `json:"lat"`
	Lon       float64 `json:"lon"`
	Headcount int     `json:"headcount"`
	Sector    string  `json:"sector"`
	Location  string  `json:"location"`
}

// NewCompany validates the inputs and builds a Company.
func NewCompany(name, address string, lat, lon float64, headcount int, sector, location string) (*Company, error) {
	if name == "" {
		return nil, eris.New("company: name is required")
	}
	if lat < -90 || lat > 90 {
		return nil, eris.Errorf("company %s: latitude %v out of range", name, lat)
	}
	if lon < -180 || lon > 180 {
		return nil, eris.Errorf("company %s: longitude %v out of range", name, lon)
	}
	if headcount <= 0 {
		return nil, eris.Errorf("company %s: headcount must be positive, got %d", name, headcount)
	}
	return &Company{
		Name:      name,
		Address:   address,
		Lat:       lat,
		Lon:       lon,
		Headcount: headcount,
		Sector:    sector,
		Location:  location,
	}, nil
}
