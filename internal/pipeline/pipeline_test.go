package pipeline

import (
	"errors"
	"image/gif"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rtm0/climanim/internal/anim"
	"github.com/rtm0/climanim/internal/dataset/datasettest"
	"github.com/rtm0/climanim/internal/render"
)

var logger = slog.New(slog.NewTextHandler(io.Discard, nil))

func newTestRunner(t *testing.T, out string) *Runner {
	t.Helper()
	r, err := render.NewRenderer(render.Options{Width: 160, Height: 100, DPI: 40})
	if err != nil {
		t.Fatal(err)
	}
	return NewRunner(logger, r, Options{OutputDir: out})
}

// writeInputs writes file A with Dec 2020, Jan 2021 and Feb 2021 and file B
// with Jun 2021, Jul 2021 and Dec 2021.
func writeInputs(t *testing.T, dir string) {
	t.Helper()
	grid := datasettest.Grid(3, 2, 3, func(ti, r, c int) float32 { return float32(ti + r + c) })
	datasettest.Write(t, filepath.Join(dir, "a_regrid.nc"), datasettest.Series{
		Variable: "t2m",
		Times:    datasettest.MonthlyTimes(2020, time.December, 3),
		Data:     grid,
	})
	times := datasettest.MonthlyTimes(2021, time.June, 7)
	datasettest.Write(t, filepath.Join(dir, "b_regrid.nc"), datasettest.Series{
		Variable: "t2m",
		Times:    []float64{times[0], times[1], times[6]},
		Data:     grid,
	})
	// Not matched by the pattern.
	datasettest.Write(t, filepath.Join(dir, "c_regrid_kelvin.nc"), datasettest.Series{
		Variable: "t2m",
		Times:    datasettest.MonthlyTimes(2022, time.January, 3),
		Data:     grid,
	})
}

func testDataset(dir string) Dataset {
	return Dataset{
		Name:          "test",
		Dir:           dir,
		Pattern:       "*_regrid.nc",
		Variable:      "t2m",
		MonthlyOutput: "monthly.gif",
		MonthlyTitle:  "Monthly",
		WinterOutput:  "winter.gif",
		WinterTitle:   "Winter",
	}
}

func frameCount(t *testing.T, path string) int {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	g, err := gif.DecodeAll(f)
	if err != nil {
		t.Fatal(err)
	}
	return len(g.Image)
}

func TestRun(t *testing.T) {
	in, out := t.TempDir(), t.TempDir()
	writeInputs(t, in)

	res := newTestRunner(t, out).Run(testDataset(in))
	if res.Files != 2 {
		t.Errorf("%d files, want 2", res.Files)
	}
	if res.MonthlyErr != nil || res.WinterErr != nil {
		t.Fatalf("errors: %v, %v", res.MonthlyErr, res.WinterErr)
	}
	if res.MonthlyFrames != 6 || res.WinterFrames != 3 {
		t.Errorf("frames %d and %d, want 6 and 3", res.MonthlyFrames, res.WinterFrames)
	}
	if n := frameCount(t, filepath.Join(out, "monthly.gif")); n != 6 {
		t.Errorf("monthly gif has %d frames", n)
	}
	if n := frameCount(t, filepath.Join(out, "winter.gif")); n != 3 {
		t.Errorf("winter gif has %d frames", n)
	}
	if len(res.Written()) != 2 {
		t.Errorf("written %v", res.Written())
	}

	entries, err := os.ReadDir(out)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Errorf("output dir holds %d entries, want only the two animations", len(entries))
	}
}

func TestRunNoFiles(t *testing.T) {
	out := t.TempDir()
	res := newTestRunner(t, out).Run(testDataset(t.TempDir()))
	if res.Files != 0 || len(res.Written()) != 0 {
		t.Errorf("got %+v", res)
	}
}

func TestRunAllFilesFail(t *testing.T) {
	in, out := t.TempDir(), t.TempDir()
	if err := os.WriteFile(filepath.Join(in, "x_regrid.nc"), []byte("garbage"), 0o644); err != nil {
		t.Fatal(err)
	}
	res := newTestRunner(t, out).Run(testDataset(in))
	if !errors.Is(res.MonthlyErr, anim.ErrNoFrames) {
		t.Errorf("monthly error %v, want ErrNoFrames", res.MonthlyErr)
	}
	if _, err := os.Stat(filepath.Join(out, "monthly.gif")); !os.IsNotExist(err) {
		t.Errorf("monthly.gif written for an empty sequence: %v", err)
	}
}

func TestRunAll(t *testing.T) {
	in, out := t.TempDir(), t.TempDir()
	writeInputs(t, in)
	a := testDataset(in)
	b := testDataset(in)
	b.Name, b.MonthlyOutput, b.WinterOutput = "other", "m2.gif", "w2.gif"
	empty := testDataset(t.TempDir())
	empty.Name = "empty"

	results := newTestRunner(t, out).RunAll([]Dataset{a, empty, b}, 2)
	if len(results) != 3 {
		t.Fatalf("%d results", len(results))
	}
	for i, want := range []string{"test", "empty", "other"} {
		if results[i].Dataset != want {
			t.Errorf("result %d is %q, want %q", i, results[i].Dataset, want)
		}
	}
	if len(results[0].Written()) != 2 || len(results[1].Written()) != 0 || len(results[2].Written()) != 2 {
		t.Errorf("written %v %v %v", results[0].Written(), results[1].Written(), results[2].Written())
	}
}
