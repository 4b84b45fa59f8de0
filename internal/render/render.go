// Package render draws temperature fields as map images and encodes them as
// animated GIFs.
package render

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/rtm0/climanim/internal/dataset"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"
)

// Options configure the images.
type Options struct {
	Width      int // pixels
	Height     int // pixels
	DPI        int
	ColorMap   string
	Shapefiles []string // outlines drawn over geographic fields
}

// DefaultOptions match a 10x5 inch figure at 100 dpi.
var DefaultOptions = Options{Width: 1000, Height: 500, DPI: 100, ColorMap: DefaultColorMap}

// Scale is the value range mapped onto the color map.
type Scale struct {
	Min, Max float64
}

// drawable returns a range the plotting code can use. Degenerate and empty
// ranges are widened; the scale itself is left as it is.
func (s Scale) drawable() (lo, hi float64) {
	lo, hi = s.Min, s.Max
	if math.IsNaN(lo) || math.IsNaN(hi) || math.IsInf(lo, 0) || math.IsInf(hi, 0) {
		return 0, 1
	}
	if lo == hi {
		return lo - 0.5, hi + 0.5
	}
	return lo, hi
}

const (
	paletteColors = 200
	legendFrac    = 0.2
)

var (
	nanColor     = color.Gray{Y: 200}
	outlineStyle = draw.LineStyle{Color: color.Black, Width: vg.Points(0.6)}
)

// Renderer draws frames. It is safe for concurrent use: every Draw builds its
// own plot and canvas.
type Renderer struct {
	opts     Options
	outlines []Outline
	pal      color.Palette
}

// NewRenderer checks the options and loads the outline shapefiles.
func NewRenderer(opts Options) (*Renderer, error) {
	if opts.Width <= 0 || opts.Height <= 0 || opts.DPI <= 0 {
		return nil, fmt.Errorf("invalid image size %dx%d at %d dpi", opts.Width, opts.Height, opts.DPI)
	}
	cm, err := NewColorMap(opts.ColorMap)
	if err != nil {
		return nil, err
	}
	outlines, err := LoadOutlines(opts.Shapefiles...)
	if err != nil {
		return nil, err
	}
	return &Renderer{opts: opts, outlines: outlines, pal: gifPalette(cm)}, nil
}

// Draw renders one frame: the field as a heat map under a title and frame
// label, with outlines when the field is geographic and a colorbar for the
// scale labelled with the units.
func (r *Renderer) Draw(title, label, units string, f dataset.Field, sc Scale) (*image.Paletted, error) {
	lo, hi := sc.drawable()
	cm, err := NewColorMap(r.opts.ColorMap)
	if err != nil {
		return nil, err
	}
	cm.SetMax(hi)
	cm.SetMin(lo)

	p := plot.New()
	p.Title.Text = title + "\n" + label
	g := newFieldGrid(f)
	hm := plotter.NewHeatMap(g, cm.Palette(paletteColors))
	hm.Min, hm.Max = lo, hi
	hm.NaN = nanColor
	hm.Rasterized = true
	p.Add(hm)
	xmin, xmax, ymin, ymax := hm.DataRange()

	if g.geographic {
		p.X.Label.Text = "Longitude"
		p.Y.Label.Text = "Latitude"
		shift := xmax > 180
		for _, o := range r.outlines {
			for _, xys := range o.lines(shift) {
				l, err := plotter.NewLine(xys)
				if err != nil {
					return nil, err
				}
				l.LineStyle = outlineStyle
				p.Add(l)
			}
		}
	} else {
		p.HideAxes()
	}
	p.X.Min, p.X.Max = xmin, xmax
	p.Y.Min, p.Y.Max = ymin, ymax

	cb := plot.New()
	cb.Add(&plotter.ColorBar{ColorMap: cm})
	cb.HideY()
	cb.X.Padding = 0
	cb.X.Label.Text = units

	w := vg.Length(r.opts.Width) / vg.Length(r.opts.DPI) * vg.Inch
	h := vg.Length(r.opts.Height) / vg.Length(r.opts.DPI) * vg.Inch
	img := vgimg.NewWith(vgimg.UseWH(w, h), vgimg.UseDPI(r.opts.DPI), vgimg.UseBackgroundColor(color.White))
	dc := draw.New(img)
	legendH := h * legendFrac
	p.Draw(draw.Crop(dc, 0, 0, legendH, 0))
	cb.Draw(draw.Crop(dc, w/10, -w/10, 0, legendH-h))

	return quantize(img.Image(), r.pal), nil
}

// fieldGrid presents a field to the heat map with x and y increasing. Fields
// without coordinates are drawn with their first row at the top.
type fieldGrid struct {
	f          dataset.Field
	geographic bool
	flipRows   bool
	flipCols   bool
}

var _ plotter.GridXYZ = fieldGrid{}

func newFieldGrid(f dataset.Field) fieldGrid {
	g := fieldGrid{f: f, geographic: f.Geographic()}
	if !g.geographic {
		g.flipRows = true
		return g
	}
	g.flipRows = f.Rows > 1 && f.Lat[0] > f.Lat[f.Rows-1]
	g.flipCols = f.Cols > 1 && f.Lon[0] > f.Lon[f.Cols-1]
	return g
}

func (g fieldGrid) Dims() (c, r int) { return g.f.Cols, g.f.Rows }

func (g fieldGrid) row(r int) int {
	if g.flipRows {
		return g.f.Rows - 1 - r
	}
	return r
}

func (g fieldGrid) col(c int) int {
	if g.flipCols {
		return g.f.Cols - 1 - c
	}
	return c
}

func (g fieldGrid) Z(c, r int) float64 { return g.f.At(g.row(r), g.col(c)) }

func (g fieldGrid) X(c int) float64 {
	if !g.geographic {
		return float64(c)
	}
	return g.f.Lon[g.col(c)]
}

func (g fieldGrid) Y(r int) float64 {
	if !g.geographic {
		return float64(r)
	}
	return g.f.Lat[g.row(r)]
}

// gifPalette returns 256 colors: samples of the color map followed by greys
// for text, axes, missing cells and the background.
func gifPalette(cm palette.ColorMap) color.Palette {
	cm.SetMax(1)
	cm.SetMin(0)
	pal := make(color.Palette, 0, 256)
	pal = append(pal, cm.Palette(paletteColors).Colors()...)
	greys := 256 - len(pal)
	for i := 0; i < greys; i++ {
		y := uint8(i * 255 / (greys - 1))
		pal = append(pal, color.RGBA{R: y, G: y, B: y, A: 255})
	}
	return pal
}

// quantize maps an image onto the palette, caching the nearest color of
// every distinct pixel value.
func quantize(src image.Image, pal color.Palette) *image.Paletted {
	b := src.Bounds()
	dst := image.NewPaletted(b, pal)
	cache := make(map[color.RGBA]uint8)
	index := func(c color.RGBA) uint8 {
		i, ok := cache[c]
		if !ok {
			i = uint8(pal.Index(c))
			cache[c] = i
		}
		return i
	}
	if rgba, ok := src.(*image.RGBA); ok {
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				o := rgba.PixOffset(x, y)
				px := rgba.Pix[o : o+4 : o+4]
				dst.SetColorIndex(x, y, index(color.RGBA{R: px[0], G: px[1], B: px[2], A: px[3]}))
			}
		}
		return dst
	}
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			dst.SetColorIndex(x, y, index(color.RGBAModel.Convert(src.At(x, y)).(color.RGBA)))
		}
	}
	return dst
}
