package dataset

import (
	"errors"
	"fmt"
	"math"

	"github.com/batchatco/go-native-netcdf/netcdf"
	"github.com/batchatco/go-native-netcdf/netcdf/api"
)

// DefaultUnits labels variables that have no units attribute.
const DefaultUnits = "°C"

var (
	// ErrNoTime is returned for files without a time coordinate variable.
	ErrNoTime = errors.New("no time coordinate")

	// ErrNotTimeSeries is returned when the requested variable is not indexed
	// by the time dimension first.
	ErrNotTimeSeries = errors.New("variable is not a time series")
)

// Names tried, in order, for the coordinate variables.
var (
	timeNames = []string{"time", "valid_time"}
	latNames  = []string{"latitude", "lat"}
	lonNames  = []string{"longitude", "lon"}
)

// Scanner reads a gridded time series from a NetCDF file one time step at a
// time.
type Scanner struct {
	nc       api.Group
	name     string
	vg       api.VarGetter
	shape    []int // shape of one time step
	ts       []Date
	la       []float64
	lo       []float64
	units    string
	pk       packing
	pos      int
	field    Field
	date     Date
	err      error
	narrowed int
}

// NewScanner opens filePath and prepares to read the variable varName from
// it. The time coordinate is decoded up front so that dates are available
// before any field is read.
func NewScanner(filePath, varName string) (*Scanner, error) {
	nc, err := netcdf.Open(filePath)
	if err != nil {
		return nil, err
	}
	s, err := newScanner(nc, varName)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("%s: %w", filePath, err)
	}
	return s, nil
}

func newScanner(nc api.Group, varName string) (*Scanner, error) {
	s := &Scanner{nc: nc, name: varName}

	tvg, err := firstVarGetter(nc, timeNames)
	if err != nil {
		return nil, ErrNoTime
	}
	offsets, err := values(tvg)
	if err != nil {
		return nil, fmt.Errorf("reading time: %w", err)
	}
	tunits, _ := attrString(tvg.Attributes(), "units")
	cal, _ := attrString(tvg.Attributes(), "calendar")
	td, err := NewTimeDecoder(tunits, cal)
	if err != nil {
		return nil, err
	}
	s.ts = make([]Date, len(offsets))
	for i, off := range offsets {
		if s.ts[i], err = td.Decode(off); err != nil {
			return nil, fmt.Errorf("time step %d: %w", i, err)
		}
	}

	// Coordinates are optional; without them the field is drawn on its
	// index grid.
	if vg, err := firstVarGetter(nc, latNames); err == nil {
		s.la, _ = values(vg)
	}
	if vg, err := firstVarGetter(nc, lonNames); err == nil {
		s.lo, _ = values(vg)
	}

	s.vg, err = nc.GetVarGetter(varName)
	if err != nil {
		return nil, fmt.Errorf("variable %q: %w", varName, err)
	}
	dims := s.vg.Dimensions()
	tdims := tvg.Dimensions()
	if len(dims) == 0 || len(tdims) == 0 || dims[0] != tdims[0] {
		return nil, fmt.Errorf("%w: %q has dimensions %v", ErrNotTimeSeries, varName, dims)
	}
	if n := int(s.vg.Len()); n != len(s.ts) {
		return nil, fmt.Errorf("%w: %q has %d steps, time has %d", ErrNotTimeSeries, varName, n, len(s.ts))
	}
	if len(s.ts) > 0 {
		// The step shape is that of the first slab without its time axis.
		v, err := s.vg.GetSlice(0, 1)
		if err != nil {
			return nil, fmt.Errorf("reading %q: %w", varName, err)
		}
		_, shape, err := flatten(v)
		if err != nil {
			return nil, fmt.Errorf("reading %q: %w", varName, err)
		}
		if len(shape) > 0 {
			s.shape = shape[1:]
		}
	}

	s.units = DefaultUnits
	if u, ok := attrString(s.vg.Attributes(), "units"); ok && u != "" {
		s.units = u
	}
	s.pk = newPacking(s.vg.Attributes())
	return s, nil
}

func firstVarGetter(nc api.Group, names []string) (api.VarGetter, error) {
	var err error
	for _, name := range names {
		var vg api.VarGetter
		if vg, err = nc.GetVarGetter(name); err == nil {
			return vg, nil
		}
	}
	return nil, err
}

func values(vg api.VarGetter) ([]float64, error) {
	v, err := vg.Values()
	if err != nil {
		return nil, err
	}
	data, _, err := flatten(v)
	return data, err
}

// Close closes the scanner.
func (s *Scanner) Close() {
	s.nc.Close()
}

// Summary returns the summary information about the file suitable for
// logging.
func (s *Scanner) Summary() []any {
	summary := []any{
		"var", s.name,
		"units", s.units,
		"stepShape", s.shape,
		"tsCnt", len(s.ts),
		"laCnt", len(s.la),
		"loCnt", len(s.lo),
	}
	if len(s.ts) > 0 {
		summary = append(summary, "first", s.ts[0].String(), "last", s.ts[len(s.ts)-1].String())
	}
	return summary
}

// Len returns the number of time steps in the file.
func (s *Scanner) Len() int {
	return len(s.ts)
}

// Dates returns the decoded time coordinate.
func (s *Scanner) Dates() []Date {
	return s.ts
}

// Units returns the variable's units label, DefaultUnits if it has none.
func (s *Scanner) Units() string {
	return s.units
}

// Narrowed returns how many times a leading axis longer than 1 was cut to
// its first index while reducing fields to 2D.
func (s *Scanner) Narrowed() int {
	return s.narrowed
}

// Scan reads the field for the next time step.
func (s *Scanner) Scan() bool {
	if s.err != nil || s.pos >= len(s.ts) {
		return false
	}
	f, err := s.ReadAt(s.pos)
	if err != nil {
		s.err = err
		return false
	}
	s.field = f
	s.date = s.ts[s.pos]
	s.pos++
	return true
}

// Field returns the field read by the last Scan.
func (s *Scanner) Field() Field {
	return s.field
}

// Date returns the date of the field read by the last Scan.
func (s *Scanner) Date() Date {
	return s.date
}

// Err returns the first read error encountered by Scan.
func (s *Scanner) Err() error {
	return s.err
}

// ReadAt reads the field at time index i, reduced to two dimensions, with
// missing values set to NaN and packing undone.
func (s *Scanner) ReadAt(i int) (Field, error) {
	if i < 0 || i >= len(s.ts) {
		return Field{}, fmt.Errorf("time index %d out of range [0, %d)", i, len(s.ts))
	}
	v, err := s.vg.GetSlice(int64(i), int64(i+1))
	if err != nil {
		return Field{}, fmt.Errorf("reading %q at step %d: %w", s.name, i, err)
	}
	data, _, err := flatten(v)
	if err != nil {
		return Field{}, fmt.Errorf("reading %q at step %d: %w", s.name, i, err)
	}
	if len(data) != product(s.shape) {
		return Field{}, fmt.Errorf("reading %q at step %d: got %d values for shape %v", s.name, i, len(data), s.shape)
	}
	s.pk.apply(data)
	f, dropped := Reduce2D(data, s.shape)
	s.narrowed += dropped
	if len(s.la) == f.Rows && len(s.lo) == f.Cols {
		f.Lat, f.Lon = s.la, s.lo
	}
	return f, nil
}

// packing undoes CF packing and masks fill values.
type packing struct {
	scale  float64
	offset float64
	fill   []float64
}

func newPacking(am api.AttributeMap) packing {
	p := packing{scale: 1}
	if v, ok := attrFloats(am, "scale_factor"); ok && len(v) > 0 {
		p.scale = v[0]
	}
	if v, ok := attrFloats(am, "add_offset"); ok && len(v) > 0 {
		p.offset = v[0]
	}
	for _, key := range []string{"_FillValue", "missing_value"} {
		if v, ok := attrFloats(am, key); ok {
			p.fill = append(p.fill, v...)
		}
	}
	return p
}

func (p packing) apply(data []float64) {
	for i, v := range data {
		if math.IsNaN(v) || p.isFill(v) {
			data[i] = math.NaN()
			continue
		}
		data[i] = v*p.scale + p.offset
	}
}

func (p packing) isFill(v float64) bool {
	for _, f := range p.fill {
		if v == f {
			return true
		}
	}
	return false
}
