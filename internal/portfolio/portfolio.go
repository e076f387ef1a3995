// Package portfolio loads the scoring input document: the municipalities
// under consideration and the companies to assess, each company referencing
// its municipality by name.
package portfolio

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/raumwerk/standort-cli/internal/model"
)

// ErrUnknownLocation marks a company referencing a municipality the
// document does not define.
var ErrUnknownLocation = eris.New("portfolio: location not defined")

// Document is the top-level portfolio structure.
type Document struct {
	Locations map[string]LocationSpec `yaml:"locations"`
	Companies []CompanySpec           `yaml:"companies"`
}

// LocationSpec holds the raw municipality inputs. The derived metrics are
// computed by the model factory, not stored here.
type LocationSpec struct {
	Employees        float64 `yaml:"employees"`
	Residents        float64 `yaml:"residents"`
	InCommuters      float64 `yaml:"in_commuters"`
	MotorizationRate float64 `yaml:"motorization_rate"`
	CarModalSplit    float64 `yaml:"car_modal_split"`

	// TransitClass pins the transit quality class (A-E) and skips the
	// dataset lookup when set.
	TransitClass string `yaml:"transit_class,omitempty"`
}

// CompanySpec holds one company to assess.
type CompanySpec struct {
	Name      string  `yaml:"name"`
	Address   string  `yaml:"address"`
	Lat       float64 `yaml:"lat"`
	Lon       float64 `yaml:"lon"`
	Headcount int     `yaml:"headcount"`
	Sector    string  `yaml:"sector"`
	Location  string  `yaml:"location"`
}

// Load reads a portfolio document from a YAML file.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "portfolio: read %s", path)
	}
	return Parse(data)
}

// Parse decodes a portfolio document from YAML bytes.
func Parse(data []byte) (*Document, error) {
	// The YAML has a top-level "portfolio" key
	var wrapper struct {
		Portfolio Document `yaml:"portfolio"`
	}
	if err := yaml.Unmarshal(data, &wrapper); err != nil {
		return nil, eris.Wrap(err, "portfolio: parse document")
	}

	doc := &wrapper.Portfolio
	if len(doc.Companies) == 0 {
		return nil, eris.New("portfolio: no companies defined")
	}
	return doc, nil
}

// Location builds the model for the municipality named key. A company
// referencing an undefined municipality is a per-company fault, reported
// here and skipped by the caller.
func (d *Document) Location(key string) (*model.Location, error) {
	spec, ok := d.Locations[key]
	if !ok {
		return nil, eris.Wrapf(ErrUnknownLocation, "location %q", key)
	}
	loc, err := model.NewLocation(key, spec.Employees, spec.Residents, spec.InCommuters, spec.MotorizationRate, spec.CarModalSplit)
	if err != nil {
		return nil, err
	}
	loc.TransitClass = spec.TransitClass
	return loc, nil
}

// Company builds the model for one company spec.
func (c CompanySpec) Company() (*model.Company, error) {
	return model.NewCompany(c.Name, c.Address, c.Lat, c.Lon, c.Headcount, c.Sector, c.Location)
}
