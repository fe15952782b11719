package mapview

import (
	"math"
	"strconv"
	"strings"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"

	"wasco/mapcore/internal/colorscale"
	"wasco/mapcore/internal/geo"
	"wasco/mapcore/internal/scene"
	"wasco/mapcore/internal/viewstate"
)

const (
	gridLegendWidth    = 240
	gridLegendTickSize = 13
	gridLegendBarH     = 8
	gridLabelSize      = 14
	gridLegendMinWidth = 270
)

// legendLocked names the legend on screen: the grid legend while the
// region view is drawn, the scarcity legend whenever the map is not zoomed
// in on scarcity data.
func (m *Map) legendLocked() string {
	switch {
	case m.loading || !m.drawn:
		return ""
	case m.vm.Phase() == viewstate.ZoomFulfilled:
		return LegendGrid
	case !m.props.ZoomedIn && m.props.DataType == colorscale.DataTypeScarcity:
		return LegendScarcity
	}
	return ""
}

func (m *Map) syncLegendsLocked() {
	legend := m.legendLocked()
	if legend == LegendScarcity {
		if m.graph.Len(LayerScarcityLegend) == 0 {
			m.drawScarcityLegend()
		}
	} else if m.graph.Len(LayerScarcityLegend) > 0 {
		m.graph.Clear(LayerScarcityLegend)
	}
	m.graph.SetHidden(LayerGridLegend, legend != LegendGrid)
}

func (m *Map) drawScarcityLegend() {
	w, h := m.props.Width, geo.Height(m.props.Width)
	m.graph.SetLayerAttr(LayerScarcityLegend, "transform",
		"translate("+geo.Num(math.Round(w*0.5))+","+geo.Num(math.Round(h-26))+")")

	colors := colorscale.Colors(colorscale.DataTypeScarcity)
	bars := []struct {
		x, width float64
		label    string
		labelX   float64
	}{
		{0, 50, "Stress", 25},
		{50, 115, "Stress + Shortage", 108},
		{165, 65, "Shortage", 197},
	}
	nodes := []scene.Node{{
		Key:   "caption",
		Kind:  scene.KindText,
		Text:  "Water scarcity",
		Attrs: map[string]string{"x": "0", "y": "-6", "font-weight": "bold"},
	}}
	for i, b := range bars {
		color := colors[min(i, len(colors)-1)]
		nodes = append(nodes,
			scene.Node{
				Key:  "bar-" + strconv.Itoa(i),
				Kind: scene.KindRect,
				Attrs: map[string]string{
					"x": geo.Num(b.x), "y": "0",
					"width": geo.Num(b.width), "height": "10",
					"fill": color,
				},
			},
			scene.Node{
				Key:  "label-" + strconv.Itoa(i),
				Kind: scene.KindText,
				Text: b.label,
				Attrs: map[string]string{
					"x": geo.Num(b.labelX), "y": "22", "text-anchor": "middle",
				},
			},
		)
	}
	m.graph.Enter(LayerScarcityLegend, nodes...)
}

// drawGridLegend draws the quintile legend on a log scale.
func (m *Map) drawGridLegend(scale colorscale.Threshold) {
	quintiles := scale.Domain()
	if len(quintiles) == 0 {
		return
	}
	w, h := m.props.Width, geo.Height(m.props.Width)
	lo := math.Max(0.0001, quintiles[0])
	hi := quintiles[len(quintiles)-1] * 2
	if !(hi > lo) {
		// A degenerate domain still needs a drawable log scale.
		hi = lo * 10
	}
	x := logScale(lo, hi, gridLegendWidth)

	label := colorscale.GridLabel(m.props.GridVariable)
	bgWidth := math.Max(gridLegendMinWidth, textWidth(label, gridLabelSize)+30)

	m.graph.SetLayerAttr(LayerGridLegend, "transform",
		"translate("+geo.Num(w-400)+","+geo.Num(h-30)+")")

	nodes := []scene.Node{
		{
			Key:  "background",
			Kind: scene.KindRect,
			Attrs: map[string]string{
				"x": "-15", "y": "-28", "height": "54",
				"width": geo.Num(bgWidth), "fill": "white", "opacity": "0.9",
			},
		},
		{
			Key:  "caption",
			Kind: scene.KindText,
			Text: label,
			Attrs: map[string]string{
				"x": "0", "y": "-10", "font-weight": "bold",
				"font-size": strconv.Itoa(gridLabelSize) + "px",
			},
		},
	}

	for i, color := range scale.Range() {
		from, fromOK, to, toOK := scale.InvertExtent(color)
		if !fromOK {
			from = lo
		}
		if !toOK {
			to = hi
		}
		x0, x1 := x(from), x(to)
		if x1 <= x0 {
			continue
		}
		nodes = append(nodes, scene.Node{
			Key:  "bar-" + strconv.Itoa(i),
			Kind: scene.KindRect,
			Attrs: map[string]string{
				"x": geo.Num(x0), "y": "0",
				"width": geo.Num(x1 - x0), "height": strconv.Itoa(gridLegendBarH),
				"fill": color,
			},
		})
	}
	for i, q := range quintiles {
		tx := geo.Num(x(q))
		nodes = append(nodes,
			scene.Node{
				Key:  "tick-" + strconv.Itoa(i),
				Kind: scene.KindPath,
				Attrs: map[string]string{
					"d":      "M" + tx + ",0V" + strconv.Itoa(gridLegendTickSize),
					"stroke": "black",
				},
			},
			scene.Node{
				Key:  "tick-label-" + strconv.Itoa(i),
				Kind: scene.KindText,
				Text: formatSI(q),
				Attrs: map[string]string{
					"x": tx, "y": strconv.Itoa(gridLegendTickSize + 10), "text-anchor": "middle",
				},
			},
		)
	}
	m.graph.Enter(LayerGridLegend, nodes...)
}

// logScale maps [lo, hi] onto [0, width] logarithmically. Values outside
// the domain are clamped.
func logScale(lo, hi, width float64) func(float64) float64 {
	llo, lhi := math.Log(lo), math.Log(hi)
	return func(v float64) float64 {
		if v <= 0 || lhi == llo {
			return 0
		}
		t := (math.Log(v) - llo) / (lhi - llo)
		return math.Max(0, math.Min(1, t)) * width
	}
}

// textWidth measures s in pixels at the given font size.
func textWidth(s string, size float64) float64 {
	face := basicfont.Face7x13
	adv := font.MeasureString(face, s)
	return float64(adv) / 64 * size / float64(face.Height)
}

var siPrefixes = []string{"y", "z", "a", "f", "p", "n", "µ", "m", "", "k", "M", "G", "T", "P", "E", "Z", "Y"}

// formatSI formats v with two significant digits and an SI prefix, e.g.
// 1500 as "1.5k" and 0.5 as "500m".
func formatSI(v float64) string {
	if v == 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	const digits = 2
	// Round first so the exponent reflects carries such as 999 -> 1.0e+03.
	sci := strconv.FormatFloat(v, 'e', digits-1, 64)
	mant, exp, _ := strings.Cut(sci, "e")
	e, err := strconv.Atoi(exp)
	if err != nil {
		return sci
	}
	m, err := strconv.ParseFloat(mant, 64)
	if err != nil {
		return sci
	}

	i := max(-24, min(24, floorDiv(e, 3)*3))
	decimals := max(0, digits-1-(e-i))
	scaled := m * math.Pow10(e-i)
	return strconv.FormatFloat(scaled, 'f', decimals, 64) + siPrefixes[i/3+8]
}

func floorDiv(a, b int) int {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}
