package geo

import (
	"encoding/csv"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	shp "github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/raumwerk/standort-cli/pkg/swissgrid"
)

// StopIndex is an in-memory registry of public transport stops in WGS84.
type StopIndex struct {
	stops []Stop
}

// Stop is a single public transport stop.
type Stop struct {
	Name string
	Lat  float64
	Lon  float64
}

// LoadStopsCSV reads the federal stop registry CSV at path. Expected
// columns are name, e and n with LV95 coordinates, converted to WGS84 once
// at load time.
func LoadStopsCSV(path, encoding string) (*StopIndex, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "geo: open stop registry %s", path)
	}
	defer f.Close() //nolint:errcheck
	return ParseStopsCSV(f, encoding)
}

// ParseStopsCSV reads stop rows from r.
func ParseStopsCSV(r io.Reader, encoding string) (*StopIndex, error) {
	decoded, err := decodeReader(r, encoding)
	if err != nil {
		return nil, err
	}

	cr := csv.NewReader(decoded)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, eris.Wrap(err, "geo: read stop registry header")
	}
	idx, err := columnIndex(header, "name", "e", "n")
	if err != nil {
		return nil, err
	}

	var stops []Stop
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, eris.Wrap(err, "geo: read stop registry row")
		}
		name := strings.TrimSpace(rec[idx["name"]])
		east, err := strconv.ParseFloat(strings.TrimSpace(rec[idx["e"]]), 64)
		if err != nil {
			return nil, eris.Wrapf(err, "geo: parse easting for stop %q", name)
		}
		north, err := strconv.ParseFloat(strings.TrimSpace(rec[idx["n"]]), 64)
		if err != nil {
			return nil, eris.Wrapf(err, "geo: parse northing for stop %q", name)
		}
		lat, lon := swissgrid.ToWGS84(east, north)
		stops = append(stops, Stop{Name: name, Lat: lat, Lon: lon})
	}
	if len(stops) == 0 {
		return nil, eris.New("geo: stop registry is empty")
	}
	return &StopIndex{stops: stops}, nil
}

// LoadStopsShapefile reads stops from a point shapefile with LV95
// coordinates, taking each stop's name from nameField.
func LoadStopsShapefile(path, nameField string) (*StopIndex, error) {
	reader, err := shp.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "geo: open stop shapefile %s", path)
	}
	defer reader.Close() //nolint:errcheck

	nameIdx := -1
	for i, f := range reader.Fields() {
		// DBF field names are NUL-padded fixed-width strings.
		if strings.EqualFold(strings.TrimRight(f.String(), "\x00"), nameField) {
			nameIdx = i
			break
		}
	}
	if nameIdx < 0 {
		return nil, eris.Errorf("geo: stop shapefile has no %q field", nameField)
	}

	var stops []Stop
	skipped := 0
	for reader.Next() {
		_, shape := reader.Shape()
		point, ok := shape.(*shp.Point)
		if !ok {
			skipped++
			continue
		}
		name := strings.TrimSpace(reader.Attribute(nameIdx))
		lat, lon := swissgrid.ToWGS84(point.X, point.Y)
		stops = append(stops, Stop{Name: name, Lat: lat, Lon: lon})
	}
	if skipped > 0 {
		zap.L().Debug("geo: skipped non-point shapes", zap.String("path", path), zap.Int("count", skipped))
	}
	if len(stops) == 0 {
		return nil, eris.Errorf("geo: stop shapefile %s has no point features", path)
	}
	return &StopIndex{stops: stops}, nil
}

// Nearest returns the name and great-circle distance in meters of the stop
// closest to (lat, lon).
func (x *StopIndex) Nearest(lat, lon float64) (string, float64, error) {
	if len(x.stops) == 0 {
		return "", 0, eris.New("geo: stop registry is empty")
	}
	best := 0
	bestDist := math.Inf(1)
	for i := range x.stops {
		d := swissgrid.Haversine(lat, lon, x.stops[i].Lat, x.stops[i].Lon)
		if d < bestDist {
			best = i
			bestDist = d
		}
	}
	return x.stops[best].Name, bestDist, nil
}

// Len reports the number of stops in the index.
func (x *StopIndex) Len() int {
	return len(x.stops)
}
