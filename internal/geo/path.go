package geo

import (
	"math"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
)

const defaultPointRadius = 4.5

// Path renders geometries as SVG path data through a projection.
type Path struct {
	proj        Projection
	pointRadius float64
}

func NewPath(proj Projection) Path {
	return Path{proj: proj, pointRadius: defaultPointRadius}
}

// WithPointRadius returns a copy drawing points as circles of radius r.
func (p Path) WithPointRadius(r float64) Path {
	p.pointRadius = r
	return p
}

func (p Path) Projection() Projection { return p.proj }

// D returns the path data for g, or "" when g has nothing to draw.
func (p Path) D(g orb.Geometry) string {
	var sb strings.Builder
	p.write(&sb, g)
	return sb.String()
}

func (p Path) write(sb *strings.Builder, g orb.Geometry) {
	switch g := g.(type) {
	case orb.Point:
		p.writePoint(sb, g)
	case orb.MultiPoint:
		for _, pt := range g {
			p.writePoint(sb, pt)
		}
	case orb.LineString:
		p.writeLine(sb, g, false)
	case orb.MultiLineString:
		for _, ls := range g {
			p.writeLine(sb, ls, false)
		}
	case orb.Ring:
		p.writeLine(sb, g, true)
	case orb.Polygon:
		for _, r := range g {
			p.writeLine(sb, r, true)
		}
	case orb.MultiPolygon:
		for _, poly := range g {
			for _, r := range poly {
				p.writeLine(sb, r, true)
			}
		}
	case orb.Collection:
		for _, c := range g {
			p.write(sb, c)
		}
	case orb.Bound:
		p.writeLine(sb, g.ToRing(), true)
	}
}

func (p Path) writePoint(sb *strings.Builder, pt orb.Point) {
	x, y := p.proj.Project(pt)
	r := p.pointRadius
	sb.WriteString("M")
	sb.WriteString(num(x))
	sb.WriteString(",")
	sb.WriteString(num(y))
	sb.WriteString("m0,")
	sb.WriteString(num(r))
	sb.WriteString("a")
	sb.WriteString(num(r) + "," + num(r))
	sb.WriteString(" 0 1,1 0,")
	sb.WriteString(num(-2 * r))
	sb.WriteString("a")
	sb.WriteString(num(r) + "," + num(r))
	sb.WriteString(" 0 1,1 0,")
	sb.WriteString(num(2 * r))
	sb.WriteString("Z")
}

func (p Path) writeLine(sb *strings.Builder, pts []orb.Point, closed bool) {
	if len(pts) == 0 {
		return
	}
	n := len(pts)
	if closed && n > 1 && pts[0] == pts[n-1] {
		n--
	}
	for i := 0; i < n; i++ {
		x, y := p.proj.Project(pts[i])
		if i == 0 {
			sb.WriteString("M")
		} else {
			sb.WriteString("L")
		}
		sb.WriteString(num(x))
		sb.WriteString(",")
		sb.WriteString(num(y))
	}
	if closed {
		sb.WriteString("Z")
	}
}

// Sphere returns the outline of the whole globe.
func (p Path) Sphere() string {
	var ring orb.Ring
	for lat := -90.0; lat <= 90; lat += 2.5 {
		ring = append(ring, orb.Point{180, lat})
	}
	for lat := 90.0; lat >= -90; lat -= 2.5 {
		ring = append(ring, orb.Point{-180, lat})
	}
	var sb strings.Builder
	p.writeLine(&sb, ring, true)
	return sb.String()
}

// Bounds returns the screen-space bounding box of g. ok is false for empty
// geometries.
func (p Path) Bounds(g orb.Geometry) (b orb.Bound, ok bool) {
	first := true
	visit := func(pt orb.Point) {
		x, y := p.proj.Project(pt)
		if first {
			b = orb.Bound{Min: orb.Point{x, y}, Max: orb.Point{x, y}}
			first = false
			return
		}
		b = b.Extend(orb.Point{x, y})
	}
	eachPoint(g, visit)
	return b, !first
}

// Centroid returns the screen-space centroid of g. Areas dominate lines and
// lines dominate points.
func (p Path) Centroid(g orb.Geometry) (float64, float64, bool) {
	var ax, ay, area float64
	var lx, ly, length float64
	var px, py, count float64

	addRing := func(r []orb.Point) {
		for i := 0; i+1 < len(r); i++ {
			x0, y0 := p.proj.Project(r[i])
			x1, y1 := p.proj.Project(r[i+1])
			cross := x0*y1 - x1*y0
			area += cross
			ax += (x0 + x1) * cross
			ay += (y0 + y1) * cross
		}
	}
	addLine := func(l []orb.Point) {
		for i := 0; i+1 < len(l); i++ {
			x0, y0 := p.proj.Project(l[i])
			x1, y1 := p.proj.Project(l[i+1])
			d := math.Hypot(x1-x0, y1-y0)
			length += d
			lx += (x0 + x1) / 2 * d
			ly += (y0 + y1) / 2 * d
		}
	}

	var walk func(orb.Geometry)
	walk = func(g orb.Geometry) {
		switch g := g.(type) {
		case orb.Point:
			x, y := p.proj.Project(g)
			px += x
			py += y
			count++
		case orb.MultiPoint:
			for _, pt := range g {
				walk(pt)
			}
		case orb.LineString:
			addLine(g)
		case orb.MultiLineString:
			for _, ls := range g {
				addLine(ls)
			}
		case orb.Ring:
			addRing(closeRing(g))
		case orb.Polygon:
			for _, r := range g {
				addRing(closeRing(r))
			}
		case orb.MultiPolygon:
			for _, poly := range g {
				walk(poly)
			}
		case orb.Collection:
			for _, c := range g {
				walk(c)
			}
		}
	}
	walk(g)

	switch {
	case math.Abs(area) > 1e-9:
		return ax / (3 * area), ay / (3 * area), true
	case length > 0:
		return lx / length, ly / length, true
	case count > 0:
		return px / count, py / count, true
	default:
		return 0, 0, false
	}
}

func closeRing(r []orb.Point) []orb.Point {
	if len(r) > 1 && r[0] != r[len(r)-1] {
		out := make([]orb.Point, len(r), len(r)+1)
		copy(out, r)
		return append(out, r[0])
	}
	return r
}

func eachPoint(g orb.Geometry, fn func(orb.Point)) {
	switch g := g.(type) {
	case orb.Point:
		fn(g)
	case orb.MultiPoint:
		for _, pt := range g {
			fn(pt)
		}
	case orb.LineString:
		for _, pt := range g {
			fn(pt)
		}
	case orb.MultiLineString:
		for _, ls := range g {
			eachPoint(ls, fn)
		}
	case orb.Ring:
		for _, pt := range g {
			fn(pt)
		}
	case orb.Polygon:
		for _, r := range g {
			eachPoint(r, fn)
		}
	case orb.MultiPolygon:
		for _, poly := range g {
			eachPoint(poly, fn)
		}
	case orb.Collection:
		for _, c := range g {
			eachPoint(c, fn)
		}
	case orb.Bound:
		fn(g.Min)
		fn(g.Max)
	}
}

func num(v float64) string {
	r := math.Round(v*1000) / 1000
	if r == 0 {
		r = 0
	}
	return strconv.FormatFloat(r, 'f', -1, 64)
}

// Num formats a screen coordinate the way path data does.
func Num(v float64) string { return num(v) }
