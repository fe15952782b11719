// Package dataset loads the base map geometry and the per-region water
// statistics, and derives the value table the map colors regions by.
package dataset

import (
	"sort"

	"github.com/paulmach/orb"
)

// km3ToM3 converts consumption figures published in km³/year.
const km3ToM3 = 1e9

// Datum is one region's statistics for one period. Consumption figures are
// in m³/year.
type Datum struct {
	StartYear int `json:"startYear"`
	EndYear   int `json:"endYear"`
	FeatureID int `json:"featureId"`

	Population   float64 `json:"population"`
	Availability float64 `json:"availability"`

	ConsumptionIrrigation    float64 `json:"consumptionIrrigation"`
	ConsumptionDomestic      float64 `json:"consumptionDomestic"`
	ConsumptionElectric      float64 `json:"consumptionElectric"`
	ConsumptionLivestock     float64 `json:"consumptionLivestock"`
	ConsumptionManufacturing float64 `json:"consumptionManufacturing"`
	ConsumptionTotal         float64 `json:"consumptionTotal"`

	// Nil when the source reports NA.
	Stress   *float64 `json:"stress,omitempty"`
	Shortage *float64 `json:"shortage,omitempty"`
	Kcal     *float64 `json:"kcal,omitempty"`
}

// TimeAggregate groups every region's datum for one period.
type TimeAggregate struct {
	StartYear int           `json:"startYear"`
	EndYear   int           `json:"endYear"`
	Data      map[int]Datum `json:"data"`
}

// WaterRegion is one food production unit polygon.
type WaterRegion struct {
	FeatureID     int
	WorldRegionID int
	Geometry      orb.Geometry
}

// WaterRegions is the region polygon set, ordered as loaded.
type WaterRegions struct {
	Features []WaterRegion
	index    map[int]int
}

func NewWaterRegions(features []WaterRegion) *WaterRegions {
	w := &WaterRegions{Features: features, index: make(map[int]int, len(features))}
	for i, f := range features {
		w.index[f.FeatureID] = i
	}
	return w
}

func (w *WaterRegions) Find(id int) (WaterRegion, bool) {
	if w == nil {
		return WaterRegion{}, false
	}
	i, ok := w.index[id]
	if !ok {
		return WaterRegion{}, false
	}
	return w.Features[i], true
}

func (w *WaterRegions) Len() int {
	if w == nil {
		return 0
	}
	return len(w.Features)
}

// WorldRegion is an aggregate region used as a map filter.
type WorldRegion struct {
	ID       int          `json:"id"`
	Name     string       `json:"name"`
	Geometry orb.Geometry `json:"-"`
}

// Base is the geometry loaded once per map lifetime.
type Base struct {
	Land         orb.Geometry
	WaterRegions *WaterRegions
	WorldRegions []WorldRegion
}

// WorldRegion returns the filter region with id. Zero means global.
func (b *Base) WorldRegion(id int) (WorldRegion, bool) {
	if b == nil || id == 0 {
		return WorldRegion{}, false
	}
	for _, r := range b.WorldRegions {
		if r.ID == id {
			return r, true
		}
	}
	return WorldRegion{}, false
}

func sortPeriods(periods []TimeAggregate) {
	sort.Slice(periods, func(i, j int) bool {
		if periods[i].StartYear != periods[j].StartYear {
			return periods[i].StartYear < periods[j].StartYear
		}
		return periods[i].EndYear < periods[j].EndYear
	})
}
