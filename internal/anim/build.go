package anim

import (
	"log/slog"
	"strconv"
	"time"

	"github.com/rtm0/climanim/internal/dataset"
	"github.com/rtm0/climanim/internal/season"
)

// Monthly builds a sequence with one frame per time step of every file,
// labelled YYYY-MM, in file order and then time order. Files that cannot be
// opened are logged and skipped. The units are those of the last file read.
// A zero delay means MonthlyDelay.
func Monthly(logger *slog.Logger, files []string, varName, title string, policy ScalePolicy, delay time.Duration) *Sequence {
	if delay == 0 {
		delay = MonthlyDelay
	}
	seq := &Sequence{Title: title, Units: dataset.DefaultUnits, Delay: delay, Policy: policy}
	for i, file := range files {
		s, err := dataset.NewScanner(file, varName)
		if err != nil {
			logger.Error("Could not open file", "file", file, "err", err)
			continue
		}
		logger.Info("Reading file", append([]any{"file", file}, s.Summary()...)...)
		seq.Units = s.Units()
		for s.Scan() {
			seq.Append(s.Date().YearMonth(), s.Field(), i)
		}
		if err := s.Err(); err != nil {
			logger.Error("Could not read file", "file", file, "err", err)
		}
		if n := s.Narrowed(); n > 0 {
			logger.Debug("Leading axes reduced to their first index", "file", file, "count", n)
		}
		s.Close()
	}
	return seq
}

// Winter builds a sequence with one frame per yearly mean, labelled with the
// year, in the order of the aggregate. A zero delay means WinterDelay.
func Winter(agg season.Aggregate, title string, policy ScalePolicy, delay time.Duration) *Sequence {
	if delay == 0 {
		delay = WinterDelay
	}
	units := agg.Units
	if units == "" {
		units = dataset.DefaultUnits
	}
	seq := &Sequence{Title: title, Units: units, Delay: delay, Policy: policy}
	for _, m := range agg.Means {
		seq.Append(strconv.Itoa(m.Year), m.Field, m.Source)
	}
	return seq
}
