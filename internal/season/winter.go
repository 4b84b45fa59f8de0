// Package season computes seasonal mean fields from gridded time series.
package season

import (
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/rtm0/climanim/internal/dataset"
	"gonum.org/v1/gonum/floats"
)

// Winter is the meteorological northern hemisphere winter, DJF.
var Winter = []time.Month{time.December, time.January, time.February}

// Options control how samples are grouped into yearly means.
type Options struct {
	// Months are the months kept. Winter is used when empty.
	Months []time.Month

	// MergeYears combines the same year found in different files into one
	// mean over all of their samples. Otherwise each file contributes its
	// own entry and duplicate years are kept.
	MergeYears bool

	// SeasonYear assigns December samples to the following year, so that a
	// group is one winter spanning the turn of the year. Otherwise samples
	// are grouped by the calendar year of their timestamp.
	SeasonYear bool
}

// Mean is the mean field of one year.
type Mean struct {
	Year   int
	Field  dataset.Field
	Source int // index of the input file it came from, -1 when merged
}

// Aggregate holds yearly mean fields in output order.
type Aggregate struct {
	Means []Mean
	Units string // units of the last file that contributed
}

// Years returns the year of every mean, parallel to Fields.
func (a Aggregate) Years() []int {
	years := make([]int, len(a.Means))
	for i, m := range a.Means {
		years[i] = m.Year
	}
	return years
}

// Fields returns the mean fields, parallel to Years.
func (a Aggregate) Fields() []dataset.Field {
	fields := make([]dataset.Field, len(a.Means))
	for i, m := range a.Means {
		fields[i] = m.Field
	}
	return fields
}

// Len returns the number of yearly means.
func (a Aggregate) Len() int {
	return len(a.Means)
}

// WinterMeans reads varName from every file, keeps the samples whose month is
// one of opts.Months and averages them per year, skipping missing values.
// Files that cannot be opened or hold no matching samples are skipped.
func WinterMeans(logger *slog.Logger, files []string, varName string, opts Options) Aggregate {
	months := opts.Months
	if len(months) == 0 {
		months = Winter
	}
	keep := make(map[time.Month]bool, len(months))
	for _, m := range months {
		keep[m] = true
	}

	var agg Aggregate
	merged := make(map[int]*accumulator)
	for i, file := range files {
		groups, units, ok := fileMeans(logger, file, varName, keep, opts.SeasonYear)
		if !ok {
			continue
		}
		agg.Units = units
		for _, g := range groups {
			if !opts.MergeYears {
				agg.Means = append(agg.Means, Mean{Year: g.year, Field: g.mean(), Source: i})
				continue
			}
			m, exists := merged[g.year]
			if !exists {
				merged[g.year] = g
				continue
			}
			if !m.field.SameShape(g.field) {
				logger.Warn("Grid shape differs from earlier files, year not merged",
					"file", file, "year", g.year)
				continue
			}
			m.merge(g)
		}
	}
	if opts.MergeYears {
		years := make([]int, 0, len(merged))
		for y := range merged {
			years = append(years, y)
		}
		sort.Ints(years)
		for _, y := range years {
			agg.Means = append(agg.Means, Mean{Year: y, Field: merged[y].mean(), Source: -1})
		}
	}
	return agg
}

// fileMeans returns the per-year accumulators of one file in ascending year
// order.
func fileMeans(logger *slog.Logger, file, varName string, keep map[time.Month]bool, seasonYear bool) ([]*accumulator, string, bool) {
	s, err := dataset.NewScanner(file, varName)
	if err != nil {
		logger.Error("Could not open file", "file", file, "err", err)
		return nil, "", false
	}
	defer s.Close()

	byYear := make(map[int]*accumulator)
	var years []int
	for i, d := range s.Dates() {
		if !keep[d.Month] {
			continue
		}
		year := d.Year
		if seasonYear && d.Month == time.December {
			year++
		}
		f, err := s.ReadAt(i)
		if err != nil {
			logger.Error("Could not read time step", "file", file, "date", d.String(), "err", err)
			continue
		}
		acc, ok := byYear[year]
		if !ok {
			acc = newAccumulator(year, f)
			byYear[year] = acc
			years = append(years, year)
		}
		if !acc.field.SameShape(f) {
			logger.Error("Grid shape changed within file", "file", file, "date", d.String())
			continue
		}
		acc.add(f)
	}
	if len(years) == 0 {
		logger.Debug("No samples in the selected months", "file", file)
		return nil, "", false
	}
	if n := s.Narrowed(); n > 0 {
		logger.Debug("Leading axes reduced to their first index", "file", file, "count", n)
	}
	sort.Ints(years)
	groups := make([]*accumulator, len(years))
	for i, y := range years {
		groups[i] = byYear[y]
	}
	return groups, s.Units(), true
}

// accumulator sums the non-missing values of each grid cell.
type accumulator struct {
	year  int
	field dataset.Field // shape and coordinates of the group
	sum   []float64
	count []float64
}

func newAccumulator(year int, like dataset.Field) *accumulator {
	return &accumulator{
		year:  year,
		field: dataset.Field{Rows: like.Rows, Cols: like.Cols, Lat: like.Lat, Lon: like.Lon},
		sum:   make([]float64, len(like.Data)),
		count: make([]float64, len(like.Data)),
	}
}

func (a *accumulator) add(f dataset.Field) {
	for i, v := range f.Data {
		if math.IsNaN(v) {
			continue
		}
		a.sum[i] += v
		a.count[i]++
	}
}

func (a *accumulator) merge(b *accumulator) {
	floats.Add(a.sum, b.sum)
	floats.Add(a.count, b.count)
}

// mean returns the mean field. Cells without any value are NaN.
func (a *accumulator) mean() dataset.Field {
	f := a.field
	f.Data = make([]float64, len(a.sum))
	floats.DivTo(f.Data, a.sum, a.count)
	return f
}
