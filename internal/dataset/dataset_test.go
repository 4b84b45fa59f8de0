package dataset_test

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/rtm0/climanim/internal/dataset"
	"github.com/rtm0/climanim/internal/dataset/datasettest"
)

func TestCollect(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{
		"tas_2021_regrid.nc",
		"tas_1990_regrid.nc",
		"tas_2005_regrid_kelvin.nc",
		"tas_2005_regrid.nc.bak",
		"notes.txt",
	} {
		if err := os.WriteFile(filepath.Join(dir, name), nil, 0o644); err != nil {
			t.Fatal(err)
		}
	}

	got, err := dataset.Collect(dir, "*_regrid.nc")
	if err != nil {
		t.Fatal(err)
	}
	want := []string{
		filepath.Join(dir, "tas_1990_regrid.nc"),
		filepath.Join(dir, "tas_2021_regrid.nc"),
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}

	got, err = dataset.Collect(dir, "*_regrid_kelvin.nc")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || filepath.Base(got[0]) != "tas_2005_regrid_kelvin.nc" {
		t.Errorf("kelvin variant: got %v", got)
	}
}

func TestCollectEmpty(t *testing.T) {
	got, err := dataset.Collect(t.TempDir(), "*_regrid.nc")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Errorf("got %v, want nothing", got)
	}
	if _, err := dataset.Collect(t.TempDir(), "[_regrid.nc"); err == nil {
		t.Error("malformed pattern should fail")
	}
}

func TestCollectExpandsEnv(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a_regrid.nc"), nil, 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CLIMANIM_TEST_DIR", dir)
	got, err := dataset.Collect("$CLIMANIM_TEST_DIR", "*_regrid.nc")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Errorf("got %v", got)
	}
}

func TestReduce2D(t *testing.T) {
	data := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12}
	tests := []struct {
		shape      []int
		rows, cols int
		dropped    int
		want       []float64
	}{
		{[]int{3, 4}, 3, 4, 0, data},
		{[]int{1, 3, 4}, 3, 4, 0, data},
		{[]int{1, 1, 3, 4}, 3, 4, 0, data},
		{[]int{2, 2, 3}, 2, 3, 1, data[:6]},
		{[]int{12}, 1, 12, 0, data},
		{nil, 1, 1, 0, data[:1]},
	}
	for _, test := range tests {
		f, dropped := dataset.Reduce2D(data, test.shape)
		if f.Rows != test.rows || f.Cols != test.cols || dropped != test.dropped {
			t.Errorf("%v: got %dx%d dropped %d", test.shape, f.Rows, f.Cols, dropped)
		}
		if !reflect.DeepEqual(f.Data, test.want) {
			t.Errorf("%v: got %v", test.shape, f.Data)
		}
	}
}

func TestRange(t *testing.T) {
	nan := math.NaN()
	a := dataset.Field{Rows: 1, Cols: 3, Data: []float64{nan, 2, 5}}
	b := dataset.Field{Rows: 1, Cols: 3, Data: []float64{-1, nan, 3}}
	min, max, ok := dataset.Range(a, b)
	if !ok || min != -1 || max != 5 {
		t.Errorf("got %v %v %v", min, max, ok)
	}
	if _, _, ok := dataset.Range(dataset.Field{Rows: 1, Cols: 1, Data: []float64{nan}}); ok {
		t.Error("all-NaN range should not be ok")
	}
}

func writeSeries(t *testing.T, s datasettest.Series) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "series.nc")
	datasettest.Write(t, path, s)
	return path
}

func TestScanner(t *testing.T) {
	fill := float32(-999)
	path := writeSeries(t, datasettest.Series{
		Variable:  "t2m",
		Units:     "K",
		Times:     datasettest.MonthlyTimes(2020, time.December, 3),
		Lat:       []float32{10, -10},
		Lon:       []float32{0, 90, 180},
		FillValue: &fill,
		Data: datasettest.Grid(3, 2, 3, func(ti, r, c int) float32 {
			if ti == 1 && r == 0 && c == 0 {
				return fill
			}
			return float32(100*ti + 10*r + c)
		}),
	})

	s, err := dataset.NewScanner(path, "t2m")
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	if s.Len() != 3 || s.Units() != "K" {
		t.Fatalf("len %d units %q", s.Len(), s.Units())
	}
	var labels []string
	var fields []dataset.Field
	for s.Scan() {
		labels = append(labels, s.Date().YearMonth())
		fields = append(fields, s.Field())
	}
	if err := s.Err(); err != nil {
		t.Fatal(err)
	}
	if want := []string{"2020-12", "2021-01", "2021-02"}; !reflect.DeepEqual(labels, want) {
		t.Errorf("labels %v, want %v", labels, want)
	}
	f := fields[2]
	if f.Rows != 2 || f.Cols != 3 || f.At(1, 2) != 212 {
		t.Errorf("field %+v", f)
	}
	if !f.Geographic() || f.Lat[1] != -10 || f.Lon[2] != 180 {
		t.Errorf("coordinates %v %v", f.Lat, f.Lon)
	}
	if !math.IsNaN(fields[1].At(0, 0)) {
		t.Errorf("fill value not masked: %v", fields[1].At(0, 0))
	}
}

func TestScannerDefaultsAndLevels(t *testing.T) {
	path := writeSeries(t, datasettest.Series{
		Variable: "tas_mean",
		Times:    datasettest.MonthlyTimes(1999, time.January, 2),
		Level:    true,
		Data:     datasettest.Grid(2, 2, 2, func(ti, r, c int) float32 { return float32(ti + r + c) }),
	})
	s, err := dataset.NewScanner(path, "tas_mean")
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	if s.Units() != dataset.DefaultUnits {
		t.Errorf("units %q", s.Units())
	}
	f, err := s.ReadAt(1)
	if err != nil {
		t.Fatal(err)
	}
	if f.Rows != 2 || f.Cols != 2 || f.At(1, 1) != 3 {
		t.Errorf("field %+v", f)
	}
	if f.Geographic() {
		t.Error("field without coordinates reported as geographic")
	}
	if s.Narrowed() != 0 {
		t.Errorf("singleton level counted as narrowed: %d", s.Narrowed())
	}
	if _, err := s.ReadAt(2); err == nil {
		t.Error("out of range read should fail")
	}
}

func TestScannerErrors(t *testing.T) {
	path := writeSeries(t, datasettest.Series{
		Variable: "t2m",
		Times:    []float64{0},
		Data:     datasettest.Grid(1, 1, 1, func(int, int, int) float32 { return 1 }),
	})
	if _, err := dataset.NewScanner(path, "tas_mean"); err == nil {
		t.Error("missing variable should fail")
	}
	if _, err := dataset.NewScanner(filepath.Join(t.TempDir(), "missing.nc"), "t2m"); err == nil {
		t.Error("missing file should fail")
	}

	bad := writeSeries(t, datasettest.Series{
		Variable:  "t2m",
		TimeUnits: "months",
		Times:     []float64{0},
		Data:      datasettest.Grid(1, 1, 1, func(int, int, int) float32 { return 1 }),
	})
	if _, err := dataset.NewScanner(bad, "t2m"); !errors.Is(err, dataset.ErrBadTimeUnits) {
		t.Errorf("got %v, want %v", err, dataset.ErrBadTimeUnits)
	}
}

func TestScannerPacked(t *testing.T) {
	scale, offset := float32(0.5), float32(250)
	fill, missing := int16(-32767), int16(-32766)
	raw := func(ti, r, c int) int16 { return int16(100*ti + 10*r + c) }
	packed := make([][][]int16, 2)
	for ti := range packed {
		packed[ti] = make([][]int16, 2)
		for r := range packed[ti] {
			packed[ti][r] = make([]int16, 3)
			for c := range packed[ti][r] {
				packed[ti][r][c] = raw(ti, r, c)
			}
		}
	}
	packed[0][0][0] = fill
	packed[1][1][2] = missing

	path := writeSeries(t, datasettest.Series{
		Variable:     "t2m",
		Units:        "K",
		TimeName:     "valid_time",
		Times:        datasettest.MonthlyTimes(2020, time.December, 2),
		Lat:          []float32{10, -10},
		Lon:          []float32{0, 90, 180},
		Level:        true,
		Packed:       packed,
		ScaleFactor:  &scale,
		AddOffset:    &offset,
		PackedFill:   &fill,
		MissingValue: &missing,
	})

	s, err := dataset.NewScanner(path, "t2m")
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	var labels []string
	var fields []dataset.Field
	for s.Scan() {
		labels = append(labels, s.Date().YearMonth())
		fields = append(fields, s.Field())
	}
	if err := s.Err(); err != nil {
		t.Fatal(err)
	}
	if want := []string{"2020-12", "2021-01"}; !reflect.DeepEqual(labels, want) {
		t.Fatalf("labels %v, want %v", labels, want)
	}
	if !math.IsNaN(fields[0].At(0, 0)) {
		t.Errorf("packed fill value not masked: %v", fields[0].At(0, 0))
	}
	if !math.IsNaN(fields[1].At(1, 2)) {
		t.Errorf("missing value not masked: %v", fields[1].At(1, 2))
	}
	for ti, f := range fields {
		if f.Rows != 2 || f.Cols != 3 || !f.Geographic() {
			t.Fatalf("step %d: field %+v", ti, f)
		}
		for r := 0; r < f.Rows; r++ {
			for c := 0; c < f.Cols; c++ {
				if (ti == 0 && r == 0 && c == 0) || (ti == 1 && r == 1 && c == 2) {
					continue
				}
				want := float64(raw(ti, r, c))*0.5 + 250
				if got := f.At(r, c); got != want {
					t.Errorf("step %d (%d, %d): got %v, want %v", ti, r, c, got, want)
				}
			}
		}
	}
	if s.Narrowed() != 0 {
		t.Errorf("narrowed %d", s.Narrowed())
	}
}
