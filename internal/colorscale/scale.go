package colorscale

import (
	"slices"
	"sort"
)

// Threshold is a step scale: thresholds t[0] < ... < t[n-1] split the line
// into n+1 bands, each mapped to one color.
type Threshold struct {
	domain []float64
	colors []string
}

// NewThreshold builds a step scale. Missing trailing colors repeat the last
// color; surplus colors are ignored.
func NewThreshold(domain []float64, colors []string) Threshold {
	d := slices.Clone(domain)
	c := make([]string, len(d)+1)
	for i := range c {
		switch {
		case i < len(colors):
			c[i] = colors[i]
		case len(colors) > 0:
			c[i] = colors[len(colors)-1]
		default:
			c[i] = MissingDataColor
		}
	}
	return Threshold{domain: d, colors: c}
}

// Build returns the classification scale for a data type. Band colors are
// reversed for larger-is-better types; the threshold order is not.
func Build(dt DataType, thresholds []float64) Threshold {
	colors := append([]string{BelowThresholdColor}, dataTypeColors[dt]...)
	if len(colors) < len(thresholds)+1 {
		last := colors[len(colors)-1]
		for len(colors) < len(thresholds)+1 {
			colors = append(colors, last)
		}
	}
	if LargerIsBetter(dt) {
		colors = colors[:len(thresholds)+1]
		slices.Reverse(colors)
	}
	return NewThreshold(thresholds, colors)
}

// Band returns the index of the band containing v. A value equal to a
// threshold belongs to the band above it.
func (s Threshold) Band(v float64) int {
	return sort.Search(len(s.domain), func(i int) bool { return s.domain[i] > v })
}

func (s Threshold) Color(v float64) string {
	return s.colors[s.Band(v)]
}

func (s Threshold) Domain() []float64 { return slices.Clone(s.domain) }

func (s Threshold) Range() []string { return slices.Clone(s.colors) }

// InvertExtent returns the [lo, hi) extent of the first band with the given
// color. Open ends are reported through the ok flags.
func (s Threshold) InvertExtent(color string) (lo float64, loOK bool, hi float64, hiOK bool) {
	i := slices.Index(s.colors, color)
	if i < 0 {
		return 0, false, 0, false
	}
	if i > 0 {
		lo, loOK = s.domain[i-1], true
	}
	if i < len(s.domain) {
		hi, hiOK = s.domain[i], true
	}
	return lo, loOK, hi, hiOK
}
