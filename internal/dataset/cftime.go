package dataset

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrBadTimeUnits is returned when a time coordinate's units attribute is
	// not of the form "<unit> since <reference date>".
	ErrBadTimeUnits = errors.New("unsupported time units")

	// ErrBadCalendar is returned for calendars other than the CF standard,
	// proleptic Gregorian, 365, 366 and 360 day calendars.
	ErrBadCalendar = errors.New("unsupported calendar")
)

// Date is a calendar date and time of day in the calendar of the file it was
// read from. It is not a time.Time because some model calendars have dates
// such as February 30th.
type Date struct {
	Year   int
	Month  time.Month
	Day    int
	Second int // seconds since midnight
}

// YearMonth formats the date as YYYY-MM.
func (d Date) YearMonth() string {
	return fmt.Sprintf("%04d-%02d", d.Year, int(d.Month))
}

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d %02d:%02d:%02d", d.Year, int(d.Month), d.Day,
		d.Second/3600, d.Second/60%60, d.Second%60)
}

// TimeDecoder converts CF time offsets into calendar dates.
type TimeDecoder struct {
	unit     float64 // seconds per offset unit
	ref      Date
	calendar calendar
}

// NewTimeDecoder parses a CF "units" attribute such as
// "hours since 1900-01-01 00:00:00.0" together with a "calendar" attribute.
// An empty calendar means "standard".
func NewTimeDecoder(units, cal string) (*TimeDecoder, error) {
	parts := strings.SplitN(strings.TrimSpace(units), " since ", 2)
	if len(parts) != 2 {
		return nil, fmt.Errorf("%w: %q", ErrBadTimeUnits, units)
	}
	unit, ok := unitSeconds[strings.ToLower(strings.TrimSpace(parts[0]))]
	if !ok {
		return nil, fmt.Errorf("%w: unknown unit in %q", ErrBadTimeUnits, units)
	}
	ref, err := parseRefDate(parts[1])
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrBadTimeUnits, units, err)
	}
	c, ok := calendars[strings.ToLower(strings.TrimSpace(cal))]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrBadCalendar, cal)
	}
	return &TimeDecoder{unit: unit, ref: ref, calendar: c}, nil
}

var unitSeconds = map[string]float64{
	"seconds": 1, "second": 1, "secs": 1, "sec": 1, "s": 1,
	"minutes": 60, "minute": 60, "mins": 60, "min": 60,
	"hours": 3600, "hour": 3600, "hrs": 3600, "hr": 3600, "h": 3600,
	"days": 86400, "day": 86400, "d": 86400,
}

// maxOffsetSeconds bounds decodable offsets to about three billion years so
// that day arithmetic cannot overflow.
const maxOffsetSeconds = 1e17

// Decode converts an offset from the reference date into a date.
func (td *TimeDecoder) Decode(offset float64) (Date, error) {
	fsecs := offset * td.unit
	if math.IsNaN(fsecs) || math.Abs(fsecs) > maxOffsetSeconds {
		return Date{}, fmt.Errorf("invalid time offset %v", offset)
	}
	secs := int64(math.Round(fsecs))
	refDay := td.calendar.dayNumber(td.ref.Year, td.ref.Month, td.ref.Day)
	total := int64(td.ref.Second) + secs
	day := refDay + floorDiv(total, 86400)
	y, m, d := td.calendar.date(day)
	return Date{Year: y, Month: m, Day: d, Second: int(total - floorDiv(total, 86400)*86400)}, nil
}

// parseRefDate parses the reference date of a CF time unit. It accepts
// "1900-01-01", "1900-1-1 0:0:0", "1970-01-01T00:00:00Z" and trailing
// fractional seconds, a UTC marker or a numeric zone offset.
func parseRefDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	s = strings.Replace(s, "T", " ", 1)
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return Date{}, errors.New("missing reference date")
	}
	ymd := strings.Split(fields[0], "-")
	neg := false
	if strings.HasPrefix(fields[0], "-") {
		neg = true
		ymd = strings.Split(fields[0][1:], "-")
	}
	if len(ymd) != 3 {
		return Date{}, fmt.Errorf("bad date %q", fields[0])
	}
	var nums [3]int
	for i, p := range ymd {
		n, err := strconv.Atoi(p)
		if err != nil {
			return Date{}, fmt.Errorf("bad date %q", fields[0])
		}
		nums[i] = n
	}
	if neg {
		nums[0] = -nums[0]
	}
	if nums[1] < 1 || nums[1] > 12 || nums[2] < 1 || nums[2] > 31 {
		return Date{}, fmt.Errorf("bad date %q", fields[0])
	}
	d := Date{Year: nums[0], Month: time.Month(nums[1]), Day: nums[2]}
	if len(fields) > 1 {
		secs, err := parseClock(fields[1:])
		if err != nil {
			return Date{}, err
		}
		d.Second = secs
	}
	return d, nil
}

// parseClock parses the time of day following a reference date, such as
// "00:00:00.0", "0:0:0 UTC", "12:00:00Z", "00:00:00+00:00" or
// "06:00 -05:00", and returns it in seconds since midnight UTC. The result is
// outside 0..86399 when the zone offset moves it to another day.
func parseClock(fields []string) (int, error) {
	clock, zone := fields[0], ""
	if strings.HasPrefix(clock, "+") || strings.HasPrefix(clock, "-") {
		clock, zone = "", clock
	} else if i := strings.LastIndexAny(clock, "+-"); i > 0 {
		clock, zone = clock[:i], clock[i:]
	}
	if zone == "" && len(fields) > 1 {
		zone = fields[1]
	}
	clock = strings.TrimSuffix(clock, "Z")

	var secs float64
	if clock != "" {
		hms := strings.Split(clock, ":")
		if len(hms) > 3 {
			return 0, fmt.Errorf("bad time of day %q", fields[0])
		}
		mult := []float64{3600, 60, 1}
		for i, p := range hms {
			v, err := strconv.ParseFloat(p, 64)
			if err != nil {
				return 0, fmt.Errorf("bad time of day %q", fields[0])
			}
			secs += v * mult[i]
		}
	}
	off, err := parseZone(zone)
	if err != nil {
		return 0, err
	}
	return int(math.Round(secs)) - off, nil
}

// parseZone returns the offset east of UTC in seconds of a zone written as
// "UTC", "Z", "+HH", "+HH:MM" or "+HHMM".
func parseZone(zone string) (int, error) {
	switch strings.ToUpper(zone) {
	case "", "Z", "UTC", "GMT":
		return 0, nil
	}
	sign := 1
	switch zone[0] {
	case '+':
	case '-':
		sign = -1
	default:
		return 0, fmt.Errorf("bad time zone %q", zone)
	}
	hm := strings.ReplaceAll(zone[1:], ":", "")
	if len(hm) != 2 && len(hm) != 4 {
		return 0, fmt.Errorf("bad time zone %q", zone)
	}
	h, err := strconv.Atoi(hm[:2])
	if err != nil || h > 14 {
		return 0, fmt.Errorf("bad time zone %q", zone)
	}
	var m int
	if len(hm) == 4 {
		if m, err = strconv.Atoi(hm[2:]); err != nil || m > 59 {
			return 0, fmt.Errorf("bad time zone %q", zone)
		}
	}
	return sign * (h*3600 + m*60), nil
}

// calendar maps dates to a running day number and back.
type calendar interface {
	dayNumber(y int, m time.Month, d int) int64
	date(day int64) (int, time.Month, int)
}

var calendars = map[string]calendar{
	"":                    gregorian{},
	"standard":            gregorian{},
	"gregorian":           gregorian{},
	"proleptic_gregorian": gregorian{},
	"noleap":              fixedYear{length: 365, months: monthLengths(false)},
	"365_day":             fixedYear{length: 365, months: monthLengths(false)},
	"all_leap":            fixedYear{length: 366, months: monthLengths(true)},
	"366_day":             fixedYear{length: 366, months: monthLengths(true)},
	"360_day":             fixedYear{length: 360, months: [12]int{30, 30, 30, 30, 30, 30, 30, 30, 30, 30, 30, 30}},
}

// gregorian uses proleptic Gregorian arithmetic through package time. The
// Julian dates before 1582-10-15 in the CF "standard" calendar are not
// reproduced; none of the supported datasets reach that far back.
type gregorian struct{}

var unixEpochDay = time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC)

func (gregorian) dayNumber(y int, m time.Month, d int) int64 {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return floorDiv(t.Unix(), 86400)
}

func (gregorian) date(day int64) (int, time.Month, int) {
	return unixEpochDay.AddDate(0, 0, int(day)).Date()
}

// fixedYear is a calendar whose years all have the same length.
type fixedYear struct {
	length int64
	months [12]int
}

func (c fixedYear) dayNumber(y int, m time.Month, d int) int64 {
	n := int64(y) * c.length
	for i := 0; i < int(m)-1; i++ {
		n += int64(c.months[i])
	}
	return n + int64(d-1)
}

func (c fixedYear) date(day int64) (int, time.Month, int) {
	y := floorDiv(day, c.length)
	rem := int(day - y*c.length)
	m := 0
	for m < 11 && rem >= c.months[m] {
		rem -= c.months[m]
		m++
	}
	return int(y), time.Month(m + 1), rem + 1
}

func monthLengths(leap bool) [12]int {
	feb := 28
	if leap {
		feb = 29
	}
	return [12]int{31, feb, 31, 30, 31, 30, 31, 31, 30, 31, 30, 31}
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
