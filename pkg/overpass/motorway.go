package overpass

import (
	"context"
	"fmt"
	"slices"

	"github.com/raumwerk/standort-cli/pkg/swissgrid"
)

// Ramp is a motorway entry point. Name is the OSM name or ref of the link
// way and may be empty when the way carries neither tag.
type Ramp struct {
	Name     string
	WayID    int64
	Lat      float64
	Lon      float64
	Distance float64 // meters from the query point
}

// NearestMotorwayRamp finds the closest motorway entry within radiusM meters
// of (lat, lon).
//
// Entry points are endpoints of motorway_link ways that do not also belong
// to a motorway way: a link endpoint on the motorway itself is where the
// ramp merges, the other endpoint is where traffic enters. Returns nil when
// the radius contains no such endpoint.
func (c *client) NearestMotorwayRamp(ctx context.Context, lat, lon float64, radiusM int) (*Ramp, error) {
	ql := fmt.Sprintf(`[out:json][timeout:%d];
way(around:%d,%.6f,%.6f)["highway"~"motorway|motorway_link"]->.mw;
(.mw; >;);
out body;`, serverTimeoutSecs, radiusM, lat, lon)

	resp, err := c.query(ctx, ql)
	if err != nil {
		return nil, err
	}

	nodes := make(map[int64]element)
	nodeHighways := make(map[int64][]string)
	var links []element

	for _, el := range resp.Elements {
		switch el.Type {
		case "node":
			nodes[el.ID] = el
		case "way":
			hwy := el.Tags["highway"]
			for _, id := range el.Nodes {
				nodeHighways[id] = append(nodeHighways[id], hwy)
			}
			if hwy == "motorway_link" {
				links = append(links, el)
			}
		}
	}

	// Link endpoints that never touch a motorway way are entries.
	entries := make(map[int64]element)
	for _, w := range links {
		if len(w.Nodes) == 0 {
			continue
		}
		for _, id := range []int64{w.Nodes[0], w.Nodes[len(w.Nodes)-1]} {
			if !slices.Contains(nodeHighways[id], "motorway") {
				entries[id] = w
			}
		}
	}
	if len(entries) == 0 {
		return nil, nil
	}

	// Sorted iteration keeps the result stable when distances tie.
	ids := make([]int64, 0, len(entries))
	for id := range entries {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	var best *Ramp
	for _, id := range ids {
		node, ok := nodes[id]
		if !ok {
			continue
		}
		w := entries[id]
		dist := swissgrid.Haversine(lat, lon, node.Lat, node.Lon)
		if best == nil || dist < best.Distance {
			name := w.Tags["name"]
			if name == "" {
				name = w.Tags["ref"]
			}
			best = &Ramp{
				Name:     name,
				WayID:    w.ID,
				Lat:      node.Lat,
				Lon:      node.Lon,
				Distance: dist,
			}
		}
	}
	if best == nil {
		return nil, nil
	}
	return best, nil
}
