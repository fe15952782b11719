package dataset

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// rawHistoricalDatum is one row of the historical statistics file.
// Consumption figures are km³/year and may be absent.
type rawHistoricalDatum struct {
	ID      int      `json:"id"`
	Y0      int      `json:"y0"`
	Y1      int      `json:"y1"`
	Pop     float64  `json:"pop"`
	Avail   float64  `json:"avail"`
	ConsIrr *float64 `json:"consIrr"`
	ConsDom *float64 `json:"consDom"`
	ConsEle *float64 `json:"consEle"`
	ConsLiv *float64 `json:"consLiv"`
	ConsMfg *float64 `json:"consMfg"`
	Short   *float64 `json:"short"`
	Stress  *float64 `json:"stress"`
}

func orZero(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}

func (r rawHistoricalDatum) datum() Datum {
	irr, dom, ele, liv, mfg := orZero(r.ConsIrr), orZero(r.ConsDom), orZero(r.ConsEle), orZero(r.ConsLiv), orZero(r.ConsMfg)
	return Datum{
		StartYear:                r.Y0,
		EndYear:                  r.Y1,
		FeatureID:                r.ID,
		Population:               r.Pop,
		Availability:             r.Avail,
		ConsumptionIrrigation:    irr * km3ToM3,
		ConsumptionDomestic:      dom * km3ToM3,
		ConsumptionElectric:      ele * km3ToM3,
		ConsumptionLivestock:     liv * km3ToM3,
		ConsumptionManufacturing: mfg * km3ToM3,
		ConsumptionTotal:         (irr + dom + ele + liv + mfg) * km3ToM3,
		Stress:                   r.Stress,
		Shortage:                 r.Short,
	}
}

// DecodeHistorical reads the historical statistics array and groups it by
// period, oldest first.
func DecodeHistorical(r io.Reader) ([]TimeAggregate, error) {
	var rows []rawHistoricalDatum
	if err := json.NewDecoder(r).Decode(&rows); err != nil {
		return nil, fmt.Errorf("decode historical statistics: %w", err)
	}

	type period struct{ y0, y1 int }
	byPeriod := make(map[period]*TimeAggregate)
	var periods []TimeAggregate
	for _, row := range rows {
		p := period{row.Y0, row.Y1}
		agg, ok := byPeriod[p]
		if !ok {
			agg = &TimeAggregate{StartYear: row.Y0, EndYear: row.Y1, Data: make(map[int]Datum)}
			byPeriod[p] = agg
		}
		agg.Data[row.ID] = row.datum()
	}
	for _, agg := range byPeriod {
		periods = append(periods, *agg)
	}
	sortPeriods(periods)
	return periods, nil
}

type rawFutureDatum struct {
	Pop     float64  `json:"pop"`
	Avail   float64  `json:"avail"`
	ConsIrr *float64 `json:"consIrr"`
	Stress  *float64 `json:"stress"`
	Kcal    *float64 `json:"kcal"`
}

type rawFuturePeriod struct {
	Y0   int                       `json:"y0"`
	Y1   int                       `json:"y1"`
	Data map[string]rawFutureDatum `json:"data"`
}

// DecodeFuture reads one future scenario file.
func DecodeFuture(r io.Reader) ([]TimeAggregate, error) {
	var raw []rawFuturePeriod
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode future statistics: %w", err)
	}

	periods := make([]TimeAggregate, 0, len(raw))
	for _, p := range raw {
		agg := TimeAggregate{StartYear: p.Y0, EndYear: p.Y1, Data: make(map[int]Datum, len(p.Data))}
		for rawID, d := range p.Data {
			id, err := strconv.Atoi(rawID)
			if err != nil {
				return nil, fmt.Errorf("future statistics %d-%d: region id %q: %w", p.Y0, p.Y1, rawID, err)
			}
			irr := orZero(d.ConsIrr) * km3ToM3
			agg.Data[id] = Datum{
				StartYear:             p.Y0,
				EndYear:               p.Y1,
				FeatureID:             id,
				Population:            d.Pop,
				Availability:          d.Avail,
				ConsumptionIrrigation: irr,
				ConsumptionTotal:      irr,
				Stress:                d.Stress,
				Kcal:                  d.Kcal,
			}
		}
		periods = append(periods, agg)
	}
	sortPeriods(periods)
	return periods, nil
}

// DecodeWaterRegions reads the region feature collection. Each feature
// carries integer featureId and worldRegionID properties.
func DecodeWaterRegions(r io.Reader) (*WaterRegions, error) {
	fc, err := decodeFeatureCollection(r)
	if err != nil {
		return nil, fmt.Errorf("decode water regions: %w", err)
	}
	features := make([]WaterRegion, 0, len(fc.Features))
	for i, f := range fc.Features {
		id, ok := intProperty(f.Properties, "featureId")
		if !ok {
			return nil, fmt.Errorf("decode water regions: feature %d has no featureId", i)
		}
		world, _ := intProperty(f.Properties, "worldRegionID")
		features = append(features, WaterRegion{FeatureID: id, WorldRegionID: world, Geometry: f.Geometry})
	}
	return NewWaterRegions(features), nil
}

// DecodeWorldRegions reads the world region feature collection.
func DecodeWorldRegions(r io.Reader) ([]WorldRegion, error) {
	fc, err := decodeFeatureCollection(r)
	if err != nil {
		return nil, fmt.Errorf("decode world regions: %w", err)
	}
	out := make([]WorldRegion, 0, len(fc.Features))
	for i, f := range fc.Features {
		id, ok := intProperty(f.Properties, "featureId")
		if !ok {
			return nil, fmt.Errorf("decode world regions: feature %d has no featureId", i)
		}
		out = append(out, WorldRegion{
			ID:       id,
			Name:     f.Properties.MustString("featureName", ""),
			Geometry: f.Geometry,
		})
	}
	return out, nil
}

// DecodeLand reads the land mass as a GeoJSON feature collection and merges
// it into one geometry collection.
func DecodeLand(r io.Reader) (orb.Geometry, error) {
	fc, err := decodeFeatureCollection(r)
	if err != nil {
		return nil, fmt.Errorf("decode land: %w", err)
	}
	land := make(orb.Collection, 0, len(fc.Features))
	for _, f := range fc.Features {
		if f.Geometry != nil {
			land = append(land, f.Geometry)
		}
	}
	return land, nil
}

func decodeFeatureCollection(r io.Reader) (*geojson.FeatureCollection, error) {
	body, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return geojson.UnmarshalFeatureCollection(body)
}

func intProperty(p geojson.Properties, key string) (int, bool) {
	switch v := p[key].(type) {
	case float64:
		return int(v), true
	case int:
		return v, true
	case string:
		n, err := strconv.Atoi(v)
		return n, err == nil
	default:
		return 0, false
	}
}
