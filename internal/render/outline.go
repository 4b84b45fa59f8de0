package render

import (
	"fmt"
	"math"
	"os"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/encoding/shp"
	"gonum.org/v1/plot/plotter"
)

// Outline is a polyline in longitude and latitude degrees, such as a piece of
// coastline or a border.
type Outline []geom.Point

// LoadOutlines reads the shapes of the given shapefiles as outlines. Polygon
// rings and line strings are kept; points are ignored. Shapefiles must be in
// geographic coordinates.
func LoadOutlines(paths ...string) ([]Outline, error) {
	var out []Outline
	for _, path := range paths {
		d, err := shp.NewDecoder(os.ExpandEnv(path))
		if err != nil {
			return nil, fmt.Errorf("opening outlines %s: %w", path, err)
		}
		for {
			var rec struct {
				geom.Geom
			}
			if !d.DecodeRow(&rec) {
				break
			}
			out = appendOutlines(out, rec.Geom)
		}
		err = d.Error()
		d.Close()
		if err != nil {
			return nil, fmt.Errorf("reading outlines %s: %w", path, err)
		}
	}
	return out, nil
}

func appendOutlines(out []Outline, g geom.Geom) []Outline {
	switch g := g.(type) {
	case geom.Polygon:
		for _, ring := range g {
			out = append(out, Outline(ring))
		}
	case geom.MultiPolygon:
		for _, p := range g {
			out = appendOutlines(out, p)
		}
	case geom.LineString:
		out = append(out, Outline(g))
	case geom.MultiLineString:
		for _, l := range g {
			out = append(out, Outline(l))
		}
	}
	return out
}

// lines converts the outline into plottable pieces. With shift set,
// longitudes west of Greenwich are moved into 180..360 to match grids that run
// from 0 to 360 degrees east. The outline is split wherever it would jump
// across the whole map.
func (o Outline) lines(shift bool) []plotter.XYs {
	var out []plotter.XYs
	var cur plotter.XYs
	for _, p := range o {
		if math.IsNaN(p.X) || math.IsNaN(p.Y) {
			continue
		}
		x := p.X
		if shift && x < 0 {
			x += 360
		}
		if len(cur) > 0 && math.Abs(x-cur[len(cur)-1].X) > 180 {
			if len(cur) > 1 {
				out = append(out, cur)
			}
			cur = nil
		}
		cur = append(cur, plotter.XY{X: x, Y: p.Y})
	}
	if len(cur) > 1 {
		out = append(out, cur)
	}
	return out
}
