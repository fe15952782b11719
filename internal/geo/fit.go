package geo

import (
	"math"

	"github.com/paulmach/orb"
)

const (
	fitFill     = 0.9
	minFitScale = 1.0
	maxFitScale = 8.0
)

// Transform is a zoom transform: translate by (X, Y), then scale by K.
type Transform struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	K float64 `json:"k"`
}

var Identity = Transform{K: 1}

func (t Transform) String() string {
	return "translate(" + num(t.X) + "," + num(t.Y) + ") scale(" + num(t.K) + ")"
}

// Apply maps a point in map space to the transformed screen position.
func (t Transform) Apply(x, y float64) (float64, float64) {
	return x*t.K + t.X, y*t.K + t.Y
}

type FitOptions struct {
	// Clamp limits the scale to [1, 8]; used for global and world-region fits.
	Clamp bool
	// MinScale is the lowest scale an unclamped fit may produce.
	MinScale float64
	// BottomMargin reserves screen space below the fitted area, e.g. for a legend.
	BottomMargin float64
}

// Fit computes the transform that makes b fill 90% of a width x height
// viewport, centred in the area left after the bottom margin.
func Fit(b orb.Bound, width, height float64, opts FitOptions) Transform {
	if width <= 0 || height <= 0 {
		return Identity
	}
	h := height - math.Max(0, opts.BottomMargin)
	if h <= 0 {
		h = height
	}

	dx := b.Max[0] - b.Min[0]
	dy := b.Max[1] - b.Min[1]
	x := (b.Min[0] + b.Max[0]) / 2
	y := (b.Min[1] + b.Max[1]) / 2

	extent := math.Max(dx/width, dy/h)
	var k float64
	if extent <= 0 {
		k = maxFitScale
	} else {
		k = fitFill / extent
	}
	if opts.Clamp {
		k = math.Max(minFitScale, math.Min(maxFitScale, k))
	} else if opts.MinScale > 0 && k < opts.MinScale {
		k = opts.MinScale
	}

	return Transform{
		X: width/2 - k*x,
		Y: h/2 - k*y,
		K: k,
	}
}

// Viewport returns the full-canvas bounds, used when no world region is
// selected.
func Viewport(width, height float64) orb.Bound {
	return orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{width, height}}
}
