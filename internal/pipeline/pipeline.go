// Package pipeline runs the animation products of configured datasets.
package pipeline

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rtm0/climanim/internal/anim"
	"github.com/rtm0/climanim/internal/dataset"
	"github.com/rtm0/climanim/internal/render"
	"github.com/rtm0/climanim/internal/season"
)

// Dataset describes one input source and its two outputs.
type Dataset struct {
	Name          string
	Dir           string
	Pattern       string
	Variable      string
	MonthlyOutput string
	MonthlyTitle  string
	WinterOutput  string
	WinterTitle   string
}

// DefaultDatasets are the HadCRUT5 and ERA5 sources.
var DefaultDatasets = []Dataset{
	{
		Name:          "hadcrut5",
		Dir:           "./HadCRUT5",
		Pattern:       "*_regrid.nc",
		Variable:      "tas_mean",
		MonthlyOutput: "hadcrut5_monthly_evolution.gif",
		MonthlyTitle:  "HadCRUT5 Monthly Evolution",
		WinterOutput:  "hadcrut5_winter_mean.gif",
		WinterTitle:   "HadCRUT5 Winter Mean Temperature",
	},
	{
		Name:          "era5",
		Dir:           "./ERA5",
		Pattern:       "*_regrid.nc",
		Variable:      "t2m",
		MonthlyOutput: "era5_monthly_evolution.gif",
		MonthlyTitle:  "ERA5 Monthly Evolution",
		WinterOutput:  "era5_winter_mean.gif",
		WinterTitle:   "ERA5 Winter Mean Temperature",
	},
}

// Options are shared by every dataset run.
type Options struct {
	OutputDir    string
	Policy       anim.ScalePolicy
	Season       season.Options
	MonthlyDelay time.Duration
	WinterDelay  time.Duration
}

// Result reports what one dataset run did.
type Result struct {
	Dataset string
	Files   int

	MonthlyFrames int
	MonthlyPath   string // empty if nothing was written
	MonthlyErr    error

	WinterFrames int
	WinterPath   string
	WinterErr    error
}

// Written returns the paths of the files written.
func (r Result) Written() []string {
	var out []string
	for _, p := range []string{r.MonthlyPath, r.WinterPath} {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Runner performs dataset runs. Runs share nothing but the runner itself,
// which is read-only, so several can proceed at once.
type Runner struct {
	logger   *slog.Logger
	renderer *render.Renderer
	opts     Options
}

// NewRunner returns a runner drawing with r.
func NewRunner(logger *slog.Logger, r *render.Renderer, opts Options) *Runner {
	return &Runner{logger: logger, renderer: r, opts: opts}
}

// Run collects the files of ds and writes its monthly and winter animations.
// Failures are logged and recorded in the result; an empty file list skips
// both products.
func (r *Runner) Run(ds Dataset) Result {
	logger := r.logger.With("dataset", ds.Name)
	res := Result{Dataset: ds.Name}

	files, err := dataset.Collect(ds.Dir, ds.Pattern)
	if err != nil {
		logger.Error("Could not collect files", "dir", ds.Dir, "pattern", ds.Pattern, "err", err)
		res.MonthlyErr, res.WinterErr = err, err
		return res
	}
	res.Files = len(files)
	if len(files) == 0 {
		logger.Warn("No input files", "dir", ds.Dir, "pattern", ds.Pattern)
		return res
	}
	logger.Info("Collected files", "count", len(files), "first", files[0], "last", files[len(files)-1])

	monthly := anim.Monthly(logger, files, ds.Variable, ds.MonthlyTitle, r.opts.Policy, r.opts.MonthlyDelay)
	res.MonthlyFrames = monthly.Len()
	res.MonthlyPath, res.MonthlyErr = r.write(logger, ds.MonthlyOutput, monthly)

	agg := season.WinterMeans(logger, files, ds.Variable, r.opts.Season)
	if agg.Len() == 0 {
		logger.Warn("No winter samples in any file")
		return res
	}
	logger.Info("Computed winter means", "count", agg.Len(), "years", agg.Years())
	winter := anim.Winter(agg, ds.WinterTitle, r.opts.Policy, r.opts.WinterDelay)
	res.WinterFrames = winter.Len()
	res.WinterPath, res.WinterErr = r.write(logger, ds.WinterOutput, winter)
	return res
}

// write encodes seq into name under the output directory. The animation is
// written to a temporary file first and renamed into place.
func (r *Runner) write(logger *slog.Logger, name string, seq *anim.Sequence) (string, error) {
	if seq.Len() == 0 {
		logger.Error("Nothing to animate", "output", name, "err", anim.ErrNoFrames)
		return "", anim.ErrNoFrames
	}
	path := filepath.Join(os.ExpandEnv(r.opts.OutputDir), name)
	start := time.Now()
	if err := writeAtomic(path, seq, r.renderer); err != nil {
		logger.Error("Could not write animation", "output", path, "err", err)
		return "", err
	}
	logger.Info("Wrote animation", "output", path, "frames", seq.Len(),
		"in", time.Since(start).Round(time.Millisecond))
	return path, nil
}

func writeAtomic(path string, seq *anim.Sequence, rd *render.Renderer) (err error) {
	f, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer func() {
		if err != nil {
			f.Close()
			os.Remove(f.Name())
		}
	}()
	if err = seq.Encode(f, rd); err != nil {
		return fmt.Errorf("encoding %s: %w", path, err)
	}
	if err = f.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", path, err)
	}
	if err = os.Rename(f.Name(), path); err != nil {
		return fmt.Errorf("renaming %s: %w", path, err)
	}
	return nil
}

// RunAll runs every dataset using up to concurrency workers and returns the
// results in the order of datasets.
func (r *Runner) RunAll(datasets []Dataset, concurrency int) []Result {
	if concurrency < 1 {
		concurrency = 1
	}
	results := make([]Result, len(datasets))
	jobs := make(chan int)
	progressCh := make(chan string)
	var wg sync.WaitGroup
	for n := 0; n < concurrency; n++ {
		wg.Add(1)
		go func() {
			for i := range jobs {
				results[i] = r.Run(datasets[i])
				progressCh <- datasets[i].Name
			}
			wg.Done()
		}()
	}
	done := make(chan struct{})
	go func() {
		var finished int
		start := time.Now()
		for name := range progressCh {
			finished++
			r.logger.Info("progress", "finished", name,
				"datasets", fmt.Sprintf("%d/%d", finished, len(datasets)),
				"in", time.Since(start).Round(time.Second))
		}
		close(done)
	}()
	for i := range datasets {
		jobs <- i
	}
	close(jobs)
	wg.Wait()
	close(progressCh)
	<-done
	return results
}
