package overpass

import (
	"context"
	"fmt"
	"math"

	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/xy"

	"github.com/raumwerk/standort-cli/pkg/swissgrid"
)

// Facility is a parking facility. Name may be empty for unnamed features.
type Facility struct {
	Name     string
	Distance float64 // planar meters from the query point
}

// NearestParking finds the closest amenity=parking feature within radiusM
// meters of (lat, lon). Distances are measured on the LV95 plane to the
// feature outline and are zero when the point lies inside it. Returns nil
// when the radius contains no parking at all.
func (c *client) NearestParking(ctx context.Context, lat, lon float64, radiusM int) (*Facility, error) {
	ql := fmt.Sprintf(`[out:json][timeout:%d];
(
  node(around:%d,%.6f,%.6f)["amenity"="parking"];
  way(around:%d,%.6f,%.6f)["amenity"="parking"];
);
out geom;
relation(around:%d,%.6f,%.6f)["amenity"="parking"];
out center;`, serverTimeoutSecs, radiusM, lat, lon, radiusM, lat, lon, radiusM, lat, lon)

	resp, err := c.query(ctx, ql)
	if err != nil {
		return nil, err
	}

	pe, pn := swissgrid.FromWGS84(lat, lon)
	point := geom.Coord{pe, pn}

	var best *Facility
	for _, el := range resp.Elements {
		dist, ok := facilityDistance(point, el)
		if !ok {
			continue
		}
		if best == nil || dist < best.Distance {
			best = &Facility{Name: el.Tags["name"], Distance: dist}
		}
	}
	return best, nil
}

// facilityDistance computes the planar distance from point to a parking
// element, projecting the element into LV95 first.
func facilityDistance(point geom.Coord, el element) (float64, bool) {
	switch el.Type {
	case "node":
		return pointDistance(point, el.Lat, el.Lon), true

	case "way":
		if len(el.Geometry) == 0 {
			return 0, false
		}
		if len(el.Geometry) == 1 {
			return pointDistance(point, el.Geometry[0].Lat, el.Geometry[0].Lon), true
		}
		flat := make([]float64, 0, len(el.Geometry)*2)
		for _, g := range el.Geometry {
			e, n := swissgrid.FromWGS84(g.Lat, g.Lon)
			flat = append(flat, e, n)
		}
		closed := len(el.Geometry) >= 4 && el.Geometry[0] == el.Geometry[len(el.Geometry)-1]
		if closed && xy.IsPointInRing(geom.XY, point, flat) {
			return 0, true
		}
		return xy.DistanceFromPointToLineString(geom.XY, point, flat), true

	case "relation":
		if el.Center == nil {
			return 0, false
		}
		return pointDistance(point, el.Center.Lat, el.Center.Lon), true

	default:
		return 0, false
	}
}

func pointDistance(point geom.Coord, lat, lon float64) float64 {
	e, n := swissgrid.FromWGS84(lat, lon)
	return math.Hypot(point.X()-e, point.Y()-n)
}
