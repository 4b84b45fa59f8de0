package dataset

import (
	"errors"
	"math"
	"testing"
	"time"
)

func TestTimeDecoder(t *testing.T) {
	tests := []struct {
		units, calendar string
		offset          float64
		want            Date
	}{
		{"hours since 1900-01-01 00:00:00.0", "gregorian", 1060200, Date{Year: 2020, Month: time.December, Day: 12}},
		{"hours since 1900-01-01 00:00:00.0", "", 0, Date{Year: 1900, Month: time.January, Day: 1}},
		{"days since 1850-01-01 00:00:00", "standard", 15.5, Date{Year: 1850, Month: time.January, Day: 16, Second: 43200}},
		{"days since 1850-1-1", "proleptic_gregorian", -1, Date{Year: 1849, Month: time.December, Day: 31}},
		{"seconds since 1970-01-01T00:00:00Z", "", 86400*365 + 3661, Date{Year: 1971, Month: time.January, Day: 1, Second: 3661}},
		{"days since 2000-01-01", "noleap", 59, Date{Year: 2000, Month: time.March, Day: 1}},
		{"days since 2000-01-01", "365_day", 365, Date{Year: 2001, Month: time.January, Day: 1}},
		{"days since 2000-01-01", "all_leap", 59, Date{Year: 2000, Month: time.February, Day: 29}},
		{"days since 2000-01-01", "360_day", 59, Date{Year: 2000, Month: time.February, Day: 30}},
		{"days since 2000-01-01", "360_day", -1, Date{Year: 1999, Month: time.December, Day: 30}},
		{"minutes since 2021-06-30 23:00", "", 90, Date{Year: 2021, Month: time.July, Day: 1, Second: 1800}},
		{"days since 1850-01-01T00:00:00+00:00", "", 1, Date{Year: 1850, Month: time.January, Day: 2}},
		{"days since 1850-01-01 0:0:0 UTC", "", 1, Date{Year: 1850, Month: time.January, Day: 2}},
		{"hours since 2000-01-01 00:00:00 +05:00", "", 0, Date{Year: 1999, Month: time.December, Day: 31, Second: 19 * 3600}},
		{"hours since 2000-01-01T06:30:00-0130", "", 0, Date{Year: 2000, Month: time.January, Day: 1, Second: 8 * 3600}},
		{"hours since 2000-01-01 -03", "", 1, Date{Year: 2000, Month: time.January, Day: 1, Second: 4 * 3600}},
	}
	for _, test := range tests {
		td, err := NewTimeDecoder(test.units, test.calendar)
		if err != nil {
			t.Errorf("%q %q: %v", test.units, test.calendar, err)
			continue
		}
		got, err := td.Decode(test.offset)
		if err != nil {
			t.Errorf("%q %v: %v", test.units, test.offset, err)
			continue
		}
		if got != test.want {
			t.Errorf("%q %q %v: got %v, want %v", test.units, test.calendar, test.offset, got, test.want)
		}
	}
}

func TestTimeDecoderErrors(t *testing.T) {
	tests := []struct {
		units, calendar string
		want            error
	}{
		{"", "", ErrBadTimeUnits},
		{"hours", "", ErrBadTimeUnits},
		{"fortnights since 1900-01-01", "", ErrBadTimeUnits},
		{"hours since yesterday", "", ErrBadTimeUnits},
		{"hours since 1900-13-01", "", ErrBadTimeUnits},
		{"hours since 1900-01-01", "julian", ErrBadCalendar},
		{"hours since 1900-01-01 00:00:00+5:xx", "", ErrBadTimeUnits},
		{"hours since 1900-01-01 00:00:00 CET", "", ErrBadTimeUnits},
	}
	for _, test := range tests {
		_, err := NewTimeDecoder(test.units, test.calendar)
		if !errors.Is(err, test.want) {
			t.Errorf("%q %q: got %v, want %v", test.units, test.calendar, err, test.want)
		}
	}
}

func TestDateYearMonth(t *testing.T) {
	d := Date{Year: 987, Month: time.March, Day: 4}
	if got := d.YearMonth(); got != "0987-03" {
		t.Errorf("got %q", got)
	}
}

func TestTimeDecoderOffsetRange(t *testing.T) {
	td, err := NewTimeDecoder("days since 1850-01-01", "")
	if err != nil {
		t.Fatal(err)
	}
	for _, off := range []float64{1e300, -1e300, 2e12, math.Inf(1), math.NaN()} {
		if d, err := td.Decode(off); err == nil {
			t.Errorf("%v: got %v, want an error", off, d)
		}
	}
	if _, err := td.Decode(1e9); err != nil {
		t.Errorf("large but valid offset: %v", err)
	}
}
