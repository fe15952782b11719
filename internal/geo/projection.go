// Package geo projects geographic geometries into map screen space and
// computes camera fits for the map views.
package geo

import (
	"math"

	"github.com/paulmach/orb"
)

const (
	widthToHeight = 1.9
	widthToScale  = 4.6
	widthToX      = 2.2
	heightToY     = 1.7
)

// Projection is a Natural Earth I projection sized for a container width.
type Projection struct {
	width  float64
	height float64
	scale  float64
	tx     float64
	ty     float64
}

// Height returns the map height used for a container width.
func Height(width float64) float64 {
	return math.Ceil(width / widthToHeight)
}

func NewProjection(width float64) Projection {
	h := Height(width)
	return Projection{
		width:  width,
		height: h,
		scale:  width / widthToScale,
		tx:     width / widthToX,
		ty:     h / heightToY,
	}
}

func (p Projection) Width() float64  { return p.width }
func (p Projection) Height() float64 { return p.height }
func (p Projection) Scale() float64  { return p.scale }

func (p Projection) Translate() (float64, float64) { return p.tx, p.ty }

// Project maps a lon/lat point in degrees to screen coordinates.
func (p Projection) Project(pt orb.Point) (float64, float64) {
	x, y := naturalEarth1(pt[0]*math.Pi/180, pt[1]*math.Pi/180)
	return p.tx + x*p.scale, p.ty - y*p.scale
}

func naturalEarth1(lambda, phi float64) (float64, float64) {
	phi2 := phi * phi
	phi4 := phi2 * phi2
	x := lambda * (0.8707 - 0.131979*phi2 + phi4*(-0.013791+phi4*(0.003971*phi2-0.001529*phi4)))
	y := phi * (1.007226 + phi2*(0.015085+phi4*(-0.044475+0.028874*phi2-0.005916*phi4)))
	return x, y
}
