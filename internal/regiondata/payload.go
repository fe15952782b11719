// Package regiondata holds the per-region detail payloads shown in the
// zoomed map view and the cache that coordinates fetching them.
package regiondata

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"wasco/mapcore/internal/colorscale"
)

// Payload is the detail bundle for one region and scenario. Every field is
// optional and consumers must check each one independently. A stored
// Payload is never mutated.
type Payload struct {
	Places        *geojson.FeatureCollection            `json:"places,omitempty"`
	Countries     *geojson.FeatureCollection            `json:"countries,omitempty"`
	Rivers        *geojson.FeatureCollection            `json:"rivers,omitempty"`
	DDM           *geojson.FeatureCollection            `json:"ddm,omitempty"`
	Basins        *geojson.FeatureCollection            `json:"basins,omitempty"`
	Grid          []GridCell                            `json:"grid,omitempty"`
	GridQuintiles map[colorscale.GridVariable][]float64 `json:"gridQuintiles,omitempty"`
}

// Empty reports whether the payload carries nothing worth caching.
func (p *Payload) Empty() bool {
	if p == nil {
		return true
	}
	return p.Places == nil &&
		p.Countries == nil &&
		p.Rivers == nil &&
		p.DDM == nil &&
		p.Basins == nil &&
		len(p.Grid) == 0 &&
		len(p.GridQuintiles) == 0
}

// Quintiles returns the quintile breakpoints for v, if present.
func (p *Payload) Quintiles(v colorscale.GridVariable) ([]float64, bool) {
	if p == nil {
		return nil, false
	}
	q, ok := p.GridQuintiles[v]
	return q, ok && len(q) > 0
}

// GridCell is one half-degree cell with values per grid variable keyed by
// period start year.
type GridCell struct {
	Centre orb.Point
	Values map[colorscale.GridVariable]map[int]float64
}

// Value returns the cell's value for v in the period starting at startYear.
func (c GridCell) Value(v colorscale.GridVariable, startYear int) (float64, bool) {
	byYear, ok := c.Values[v]
	if !ok {
		return 0, false
	}
	val, ok := byYear[startYear]
	return val, ok
}

// Bound returns the cell's square in geographic coordinates.
func (c GridCell) Bound() orb.Bound {
	const half = 0.25
	return orb.Bound{
		Min: orb.Point{c.Centre[0] - half, c.Centre[1] - half},
		Max: orb.Point{c.Centre[0] + half, c.Centre[1] + half},
	}
}

// Polygon returns the cell square as a closed ring.
func (c GridCell) Polygon() orb.Polygon {
	b := c.Bound()
	return orb.Polygon{orb.Ring{
		{b.Min[0], b.Min[1]},
		{b.Min[0], b.Max[1]},
		{b.Max[0], b.Max[1]},
		{b.Max[0], b.Min[1]},
		{b.Min[0], b.Min[1]},
	}}
}

// UnmarshalJSON decodes the flat wire form
// {"centre":[lon,lat],"pop":{"1980":1.5},...}.
func (c *GridCell) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	centre, ok := raw["centre"]
	if !ok {
		return fmt.Errorf("grid cell: missing centre")
	}
	var pt [2]float64
	if err := json.Unmarshal(centre, &pt); err != nil {
		return fmt.Errorf("grid cell centre: %w", err)
	}
	c.Centre = orb.Point(pt)
	c.Values = make(map[colorscale.GridVariable]map[int]float64)

	for name, msg := range raw {
		if name == "centre" {
			continue
		}
		v, ok := colorscale.ParseGridVariable(name)
		if !ok {
			continue
		}
		var byYear map[string]*float64
		if err := json.Unmarshal(msg, &byYear); err != nil {
			return fmt.Errorf("grid cell %s: %w", name, err)
		}
		values := make(map[int]float64, len(byYear))
		for year, val := range byYear {
			if val == nil {
				continue
			}
			y, err := strconv.Atoi(year)
			if err != nil {
				return fmt.Errorf("grid cell %s: start year %q: %w", name, year, err)
			}
			values[y] = *val
		}
		c.Values[v] = values
	}
	return nil
}

func (c GridCell) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(c.Values)+1)
	out["centre"] = [2]float64{c.Centre[0], c.Centre[1]}
	for v, byYear := range c.Values {
		years := make(map[string]float64, len(byYear))
		for y, val := range byYear {
			years[strconv.Itoa(y)] = val
		}
		out[string(v)] = years
	}
	return json.Marshal(out)
}
