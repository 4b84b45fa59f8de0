// Package datasettest writes small NetCDF files for tests.
package datasettest

import (
	"testing"
	"time"

	"github.com/batchatco/go-native-netcdf/netcdf/api"
	"github.com/batchatco/go-native-netcdf/netcdf/cdf"
	"github.com/batchatco/go-native-netcdf/netcdf/util"
)

// TimeUnits is the time unit used when a Series does not set one.
const TimeUnits = "days since 1850-01-01 00:00:00"

// Series describes the content of a test file.
type Series struct {
	Variable  string
	Units     string // omitted when empty
	TimeUnits string
	Calendar  string // omitted when empty
	Times     []float64
	Lat, Lon  []float32 // coordinate variables, omitted when nil
	Level     bool      // add a singleton level axis after time
	FillValue *float32
	Data      [][][]float32 // [time][lat][lon]

	// TimeName names the time coordinate, "time" when empty.
	TimeName string

	// Packed replaces Data with short integers, unpacked by readers as
	// value*ScaleFactor+AddOffset. The fill and missing values of packed data
	// are given in the packed type.
	Packed       [][][]int16
	ScaleFactor  *float32
	AddOffset    *float32
	PackedFill   *int16
	MissingValue *int16
}

// Write writes s to path as a classic NetCDF file.
func Write(tb testing.TB, path string, s Series) {
	tb.Helper()
	w, err := cdf.OpenWriter(path)
	if err != nil {
		tb.Fatal(err)
	}
	tu := s.TimeUnits
	if tu == "" {
		tu = TimeUnits
	}
	tname := s.TimeName
	if tname == "" {
		tname = "time"
	}
	tattrs := attrs(tb, "units", tu)
	if s.Calendar != "" {
		tattrs.Add("calendar", s.Calendar)
	}
	add(tb, w, tname, api.Variable{Values: s.Times, Dimensions: []string{tname}, Attributes: tattrs})
	if s.Lat != nil {
		add(tb, w, "latitude", api.Variable{Values: s.Lat, Dimensions: []string{"latitude"}, Attributes: attrs(tb, "units", "degrees_north")})
	}
	if s.Lon != nil {
		add(tb, w, "longitude", api.Variable{Values: s.Lon, Dimensions: []string{"longitude"}, Attributes: attrs(tb, "units", "degrees_east")})
	}

	vattrs := attrs(tb)
	if s.Units != "" {
		vattrs.Add("units", s.Units)
	}
	if s.FillValue != nil {
		vattrs.Add("_FillValue", *s.FillValue)
	}
	if s.ScaleFactor != nil {
		vattrs.Add("scale_factor", *s.ScaleFactor)
	}
	if s.AddOffset != nil {
		vattrs.Add("add_offset", *s.AddOffset)
	}
	if s.PackedFill != nil {
		vattrs.Add("_FillValue", *s.PackedFill)
	}
	if s.MissingValue != nil {
		vattrs.Add("missing_value", *s.MissingValue)
	}
	v := api.Variable{Values: s.Data, Dimensions: []string{tname, "latitude", "longitude"}, Attributes: vattrs}
	switch {
	case s.Packed != nil && s.Level:
		withLevel := make([][][][]int16, len(s.Packed))
		for i, d := range s.Packed {
			withLevel[i] = [][][]int16{d}
		}
		v.Values = withLevel
	case s.Packed != nil:
		v.Values = s.Packed
	case s.Level:
		withLevel := make([][][][]float32, len(s.Data))
		for i, d := range s.Data {
			withLevel[i] = [][][]float32{d}
		}
		v.Values = withLevel
	}
	if s.Level {
		v.Dimensions = []string{tname, "level", "latitude", "longitude"}
	}
	add(tb, w, s.Variable, v)
	if err := w.Close(); err != nil {
		tb.Fatal(err)
	}
}

// varWriter is the part of the classic format writer used here.
type varWriter interface {
	AddVar(name string, v api.Variable) error
}

func add(tb testing.TB, w varWriter, name string, v api.Variable) {
	tb.Helper()
	if err := w.AddVar(name, v); err != nil {
		tb.Fatalf("adding %s: %v", name, err)
	}
}

func attrs(tb testing.TB, kv ...any) *util.OrderedMap {
	tb.Helper()
	om, err := util.NewOrderedMap(nil, nil)
	if err != nil {
		tb.Fatal(err)
	}
	for i := 0; i+1 < len(kv); i += 2 {
		om.Add(kv[i].(string), kv[i+1])
	}
	return om
}

// MonthlyTimes returns n offsets in days since 1850-01-01, one on the 15th of
// each month starting at the given year and month.
func MonthlyTimes(year int, month time.Month, n int) []float64 {
	base := time.Date(1850, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]float64, n)
	for i := range out {
		t := time.Date(year, month+time.Month(i), 15, 0, 0, 0, 0, time.UTC)
		out[i] = t.Sub(base).Hours() / 24
	}
	return out
}

// Grid returns nt fields of rows x cols values computed by fn.
func Grid(nt, rows, cols int, fn func(t, r, c int) float32) [][][]float32 {
	out := make([][][]float32, nt)
	for t := range out {
		out[t] = make([][]float32, rows)
		for r := range out[t] {
			out[t][r] = make([]float32, cols)
			for c := range out[t][r] {
				out[t][r][c] = fn(t, r, c)
			}
		}
	}
	return out
}
