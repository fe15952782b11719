package mapview

import (
	"strconv"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"wasco/mapcore/internal/colorscale"
	"wasco/mapcore/internal/geo"
	"wasco/mapcore/internal/regiondata"
	"wasco/mapcore/internal/scene"
)

// Layer ids in paint order.
const (
	LayerGlobe            = "globe-fill"
	LayerCountries        = "countries"
	LayerWaterRegions     = "water-regions"
	LayerGrid             = "grid-data"
	LayerSelectedRegion   = "selected-region"
	LayerCountryBorders   = "country-borders"
	LayerBasins           = "basins"
	LayerBasinLabels      = "basin-labels"
	LayerCountryLabels    = "country-labels"
	LayerDDM              = "ddm"
	LayerRivers           = "rivers"
	LayerPlaces           = "places"
	LayerPlaceLabels      = "places-labels"
	LayerGridLegend       = "grid-legend"
	LayerScarcityLegend   = "scarcity-legend"
	LayerClickableRegions = "clickable-water-regions"
)

const (
	colorLand      = "#d2e2e6"
	colorRegionRim = "#ecf4f8"
	colorDDM       = "#71bcd5"
	colorGrayDark  = "#555555"
	colorPlace     = "grey"

	legendMargin = 40
)

// mapLayers follow the camera.
var mapLayers = []string{
	LayerGlobe,
	LayerCountries,
	LayerWaterRegions,
	LayerGrid,
	LayerSelectedRegion,
	LayerCountryBorders,
	LayerBasins,
	LayerBasinLabels,
	LayerCountryLabels,
	LayerDDM,
	LayerRivers,
	LayerPlaces,
	LayerPlaceLabels,
	LayerClickableRegions,
}

// zoomLayers only hold content while the region view is drawn.
var zoomLayers = []string{
	LayerGrid,
	LayerSelectedRegion,
	LayerCountryBorders,
	LayerBasins,
	LayerBasinLabels,
	LayerCountryLabels,
	LayerDDM,
	LayerRivers,
	LayerPlaces,
	LayerPlaceLabels,
	LayerGridLegend,
}

func newGraph() *scene.Graph {
	specs := make([]scene.LayerSpec, 0, len(mapLayers)+2)
	for _, id := range mapLayers {
		if id == LayerClickableRegions {
			specs = append(specs,
				scene.LayerSpec{ID: LayerGridLegend},
				scene.LayerSpec{ID: LayerScarcityLegend},
			)
		}
		specs = append(specs, scene.LayerSpec{ID: id, Clip: true})
	}
	return scene.New(specs...)
}

func regionKey(id int) string { return strconv.Itoa(id) }

// drawMap draws the base map for the current width.
func (m *Map) drawMap() {
	m.path = geo.NewPath(geo.NewProjection(m.props.Width))
	m.graph.SetClipPath(m.path.Sphere())

	m.graph.Enter(LayerGlobe, scene.Node{
		Key:   "sphere",
		Kind:  scene.KindPath,
		Attrs: map[string]string{"d": m.path.Sphere(), "fill": "white"},
	})
	if m.base.Land != nil {
		m.graph.Enter(LayerCountries, scene.Node{
			Key:   "land",
			Kind:  scene.KindPath,
			Attrs: map[string]string{"d": m.path.D(m.base.Land), "fill": colorLand},
		})
	}

	regions := m.base.WaterRegions.Features
	fills := make([]scene.Node, 0, len(regions))
	hits := make([]scene.Node, 0, len(regions))
	for _, r := range regions {
		d := m.path.D(r.Geometry)
		if d == "" {
			continue
		}
		fills = append(fills, scene.Node{
			Key:  regionKey(r.FeatureID),
			Kind: scene.KindPath,
			Attrs: map[string]string{
				"d":             d,
				"class":         "water-region",
				"stroke":        colorRegionRim,
				"stroke-width":  "0.5",
				"vector-effect": "non-scaling-stroke",
			},
		})
		hits = append(hits, scene.Node{
			Key:  regionKey(r.FeatureID),
			Kind: scene.KindPath,
			Attrs: map[string]string{
				"d":              d,
				"class":          "clickable-water-region",
				"fill":           "none",
				"pointer-events": "all",
			},
		})
	}
	m.graph.Enter(LayerWaterRegions, fills...)
	m.graph.Enter(LayerClickableRegions, hits...)
	m.recolor()
}

// clearMap empties every layer.
func (m *Map) clearMap() {
	for _, id := range mapLayers {
		m.graph.Clear(id)
	}
	m.graph.Clear(LayerGridLegend)
	m.graph.Clear(LayerScarcityLegend)
	m.graph.SetHidden(LayerWaterRegions, false)
	m.transform = geo.Identity
}

// removeZoomed tears down every zoom-only overlay.
func (m *Map) removeZoomed() {
	for _, id := range zoomLayers {
		m.graph.Clear(id)
	}
	m.graph.SetHidden(LayerWaterRegions, false)
}

// recolor restyles region fills from the current data and selection.
func (m *Map) recolor() {
	scale := colorscale.Build(m.props.DataType, m.thresholds())
	selected, hasSelection := 0, m.props.SelectedRegion != nil
	if hasSelection {
		selected = *m.props.SelectedRegion
	}

	m.graph.SetAttrAll(LayerWaterRegions, "fill", func(n scene.Node) string {
		id, err := strconv.Atoi(n.Key)
		if err != nil {
			return colorscale.MissingDataColor
		}
		v, ok := m.props.Data.Value(id)
		if !ok {
			return colorscale.MissingDataColor
		}
		return scale.Color(v)
	})
	m.graph.SetAttrAll(LayerWaterRegions, "opacity", func(n scene.Node) string {
		if hasSelection && n.Key != regionKey(selected) {
			return "0.5"
		}
		return ""
	})
	m.graph.SetAttrAll(LayerWaterRegions, "stroke", func(n scene.Node) string {
		if hasSelection && n.Key == regionKey(selected) {
			return "black"
		}
		return colorRegionRim
	})
	if hasSelection {
		m.graph.Raise(LayerWaterRegions, regionKey(selected))
	}
}

func (m *Map) thresholds() []float64 {
	if len(m.props.Thresholds) > 0 {
		return m.props.Thresholds
	}
	return colorscale.DefaultThresholds(m.props.DataType)
}

// zoomToGlobal fits the camera to the world-region filter and outlines it,
// or resets the camera when no filter is active.
func (m *Map) zoomToGlobal() {
	t := geo.Identity
	m.graph.Clear(LayerSelectedRegion)
	if wr, ok := m.base.WorldRegion(m.props.WorldRegion); ok && wr.Geometry != nil {
		if b, ok := m.path.Bounds(wr.Geometry); ok {
			w, h := m.props.Width, geo.Height(m.props.Width)
			t = geo.Fit(b, w, h, geo.FitOptions{Clamp: true})
		}
		if d := m.path.D(wr.Geometry); d != "" {
			m.graph.Enter(LayerSelectedRegion, scene.Node{
				Key:  worldRegionKey(wr.ID),
				Kind: scene.KindPath,
				Attrs: map[string]string{
					"d":             d,
					"class":         "world-region",
					"fill":          "none",
					"stroke":        colorGrayDark,
					"stroke-width":  "1",
					"vector-effect": "non-scaling-stroke",
				},
			})
		}
	}
	m.applyTransform(t)
}

func worldRegionKey(id int) string { return "world-" + strconv.Itoa(id) }

func (m *Map) applyTransform(t geo.Transform) {
	m.transform = t
	s := t.String()
	if t == geo.Identity {
		s = ""
	}
	for _, id := range mapLayers {
		m.graph.SetTransform(id, s)
	}
}

// zoomToRegion draws the region view for the selected region once its
// detail is cached, and issues the fetch otherwise.
func (m *Map) zoomToRegion() {
	if !m.vm.ZoomRequested() {
		return
	}
	id, ok := m.vm.SelectedRegion()
	if !ok {
		return
	}
	region, ok := m.base.WaterRegions.Find(id)
	if !ok {
		return
	}
	key := m.keyFor(id)
	payload, ok := m.cache.Get(key)
	if !ok {
		m.cache.Ensure(m.fetchCtx, key, m.requestFor(id), m.onFetched)
		return
	}

	if !m.props.ZoomedIn {
		m.queueSetZoomedIn(true)
	}
	m.vm.Fulfill(id)

	w, h := m.props.Width, geo.Height(m.props.Width)
	b, ok := m.path.Bounds(region.Geometry)
	if !ok {
		b = geo.Viewport(w, h)
	}
	t := geo.Fit(b, w, h, geo.FitOptions{MinScale: 1, BottomMargin: legendMargin})

	m.graph.Enter(LayerSelectedRegion, scene.Node{
		Key:  regionKey(id),
		Kind: scene.KindPath,
		Attrs: map[string]string{
			"d":            m.path.D(region.Geometry),
			"fill":         "none",
			"stroke":       colorGrayDark,
			"stroke-width": geo.Num(0.5 / t.K),
			"opacity":      "0.8",
		},
	})
	m.drawOverlays(payload, t.K)
	m.drawGrid(payload)

	m.graph.SetHidden(LayerWaterRegions, true)
	m.applyTransform(t)
}

// redrawGrid replaces the grid cells and their legend in place.
func (m *Map) redrawGrid() {
	id, ok := m.vm.SelectedRegion()
	if !ok {
		return
	}
	payload, ok := m.cache.Get(m.keyFor(id))
	if !ok {
		return
	}
	m.graph.Clear(LayerGrid)
	m.graph.Clear(LayerGridLegend)
	m.drawGrid(payload)
}

func (m *Map) drawGrid(p *regiondata.Payload) {
	quintiles, ok := p.Quintiles(m.props.GridVariable)
	if !ok || m.props.Data == nil {
		return
	}
	scale := colorscale.NewThreshold(quintiles, colorscale.GridQuintileColors(m.props.GridVariable))
	year := m.props.Data.StartYear

	nodes := make([]scene.Node, 0, len(p.Grid))
	for i, cell := range p.Grid {
		fill := "none"
		if v, ok := cell.Value(m.props.GridVariable, year); ok {
			fill = scale.Color(v)
		}
		nodes = append(nodes, scene.Node{
			Key:   strconv.Itoa(i),
			Kind:  scene.KindPath,
			Attrs: map[string]string{"d": m.path.D(cell.Polygon()), "fill": fill},
		})
	}
	m.graph.Enter(LayerGrid, nodes...)
	m.drawGridLegend(scale)
}

func (m *Map) drawOverlays(p *regiondata.Payload, k float64) {
	hairline := geo.Num(1 / k)
	riverWidth := geo.Num(1.5 / k)

	m.enterFeatures(LayerDDM, p.DDM, map[string]string{
		"fill": "none", "stroke": colorDDM, "stroke-width": riverWidth, "opacity": "0.8",
	})
	m.enterFeatures(LayerRivers, p.Rivers, map[string]string{
		"fill": "none", "stroke": "blue", "stroke-width": riverWidth,
	})
	m.enterFeatures(LayerCountryBorders, p.Countries, map[string]string{
		"fill": "none", "stroke": "black", "stroke-width": hairline,
	})
	m.enterFeatures(LayerBasins, p.Basins, map[string]string{
		"fill": "none", "stroke": "purple", "stroke-width": hairline,
	})
	m.enterLabels(LayerCountryLabels, p.Countries, k, "")
	m.enterLabels(LayerBasinLabels, p.Basins, k, "purple")

	places := m.path.WithPointRadius(5 / k)
	if p.Places == nil {
		return
	}
	var dots, labels []scene.Node
	for i, f := range p.Places.Features {
		if f == nil || f.Geometry == nil {
			continue
		}
		key := featureKey(f, i)
		dots = append(dots, scene.Node{
			Key:   key,
			Kind:  scene.KindPath,
			Attrs: map[string]string{"d": places.D(f.Geometry), "fill": colorPlace},
		})
		pt, ok := f.Geometry.(orb.Point)
		if !ok {
			continue
		}
		x, y := m.path.Projection().Project(pt)
		labels = append(labels, scene.Node{
			Key:  key,
			Kind: scene.KindText,
			Text: f.Properties.MustString("name", ""),
			Attrs: map[string]string{
				"x":         geo.Num(x),
				"y":         geo.Num(y),
				"dx":        geo.Num(8 / k),
				"font-size": geo.Num(10/k) + "px",
			},
		})
	}
	m.graph.Enter(LayerPlaces, dots...)
	m.graph.Enter(LayerPlaceLabels, labels...)
}

func (m *Map) enterFeatures(layer string, fc *geojson.FeatureCollection, style map[string]string) {
	if fc == nil {
		return
	}
	nodes := make([]scene.Node, 0, len(fc.Features))
	for i, f := range fc.Features {
		if f == nil || f.Geometry == nil {
			continue
		}
		d := m.path.D(f.Geometry)
		if d == "" {
			continue
		}
		attrs := make(map[string]string, len(style)+1)
		for k, v := range style {
			attrs[k] = v
		}
		attrs["d"] = d
		nodes = append(nodes, scene.Node{Key: featureKey(f, i), Kind: scene.KindPath, Attrs: attrs})
	}
	m.graph.Enter(layer, nodes...)
}

func (m *Map) enterLabels(layer string, fc *geojson.FeatureCollection, k float64, fill string) {
	if fc == nil {
		return
	}
	var nodes []scene.Node
	for i, f := range fc.Features {
		if f == nil || f.Geometry == nil {
			continue
		}
		name := f.Properties.MustString("name", "")
		if name == "" {
			continue
		}
		x, y, ok := m.path.Centroid(f.Geometry)
		if !ok {
			continue
		}
		attrs := map[string]string{
			"x":           geo.Num(x),
			"y":           geo.Num(y),
			"text-anchor": "middle",
			"font-size":   geo.Num(12/k) + "px",
		}
		if fill != "" {
			attrs["fill"] = fill
		}
		nodes = append(nodes, scene.Node{Key: featureKey(f, i), Kind: scene.KindText, Text: name, Attrs: attrs})
	}
	m.graph.Enter(layer, nodes...)
}

func featureKey(f *geojson.Feature, i int) string {
	switch id := f.ID.(type) {
	case string:
		if id != "" {
			return id
		}
	case float64:
		return geo.Num(id)
	}
	return strconv.Itoa(i)
}
