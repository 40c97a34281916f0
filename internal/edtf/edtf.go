// Package edtf parses the subset of the Extended Date/Time Format (EDTF)
// found in harvested metadata: partial dates, uncertain and approximate
// qualifiers, unspecified trailing year digits, and intervals.
//
//	1975           year
//	1975-03        month
//	1975-03-03     day
//	1975?  1975~  1975%
//	197X   19XX    (also 197u, 19uu)
//	1975/1980  1975-03/..  ../1980
package edtf

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// ErrInvalid is returned for strings that are not EDTF.
var ErrInvalid = errors.New("edtf: invalid date")

// Precision is the finest unit a Date specifies.
type Precision int

const (
	PrecisionCentury Precision = iota
	PrecisionDecade
	PrecisionYear
	PrecisionMonth
	PrecisionDay
)

func (p Precision) String() string {
	switch p {
	case PrecisionCentury:
		return "century"
	case PrecisionDecade:
		return "decade"
	case PrecisionYear:
		return "year"
	case PrecisionMonth:
		return "month"
	default:
		return "day"
	}
}

// Date is a single EDTF date, optionally the start of an interval.
type Date struct {
	Year        int
	Month       int
	Day         int
	Precision   Precision
	Uncertain   bool
	Approximate bool

	// Interval is set when the date opens an interval. OpenStart marks
	// "../end"; a nil To marks "start/..".
	Interval  bool
	OpenStart bool
	To        *Date
}

var pointPattern = regexp.MustCompile(`^(-?\d{4}|\d{3}[uX]|\d{2}[uX]{2})(?:-(\d{2})(?:-(\d{2}))?)?([?~%]?)$`)

// Parse parses s as an EDTF date or interval.
func Parse(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Date{}, ErrInvalid
	}
	if from, to, ok := strings.Cut(s, "/"); ok {
		return parseInterval(from, to)
	}
	return parsePoint(s)
}

// MustParse is Parse for literals known to be valid.
func MustParse(s string) Date {
	d, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return d
}

func parseInterval(from, to string) (Date, error) {
	if strings.Contains(to, "/") {
		return Date{}, ErrInvalid
	}
	var d Date
	switch from {
	case "..":
		if to == ".." {
			return Date{}, ErrInvalid
		}
		d.OpenStart = true
	default:
		start, err := parsePoint(from)
		if err != nil {
			return Date{}, err
		}
		d = start
	}
	d.Interval = true
	if to != ".." {
		end, err := parsePoint(to)
		if err != nil {
			return Date{}, err
		}
		if !d.OpenStart && end.Time().Before(d.Time()) {
			return Date{}, fmt.Errorf("%w: interval ends before it starts", ErrInvalid)
		}
		d.To = &end
	}
	return d, nil
}

func parsePoint(s string) (Date, error) {
	m := pointPattern.FindStringSubmatch(s)
	if m == nil {
		return Date{}, ErrInvalid
	}

	var d Date
	yearText := strings.NewReplacer("u", "0", "X", "0").Replace(m[1])
	year, err := strconv.Atoi(yearText)
	if err != nil {
		return Date{}, ErrInvalid
	}
	d.Year = year

	unspecified := strings.Count(m[1], "u") + strings.Count(m[1], "X")
	switch unspecified {
	case 0:
		d.Precision = PrecisionYear
	case 1:
		d.Precision = PrecisionDecade
	default:
		d.Precision = PrecisionCentury
	}
	if unspecified > 0 && m[2] != "" {
		return Date{}, ErrInvalid
	}

	if m[2] != "" {
		d.Month, _ = strconv.Atoi(m[2])
		if d.Month < 1 || d.Month > 12 {
			return Date{}, ErrInvalid
		}
		d.Precision = PrecisionMonth
	}
	if m[3] != "" {
		d.Day, _ = strconv.Atoi(m[3])
		t := time.Date(d.Year, time.Month(d.Month), d.Day, 0, 0, 0, 0, time.UTC)
		if d.Day < 1 || t.Day() != d.Day {
			return Date{}, ErrInvalid
		}
		d.Precision = PrecisionDay
	}

	switch m[4] {
	case "?":
		d.Uncertain = true
	case "~":
		d.Approximate = true
	case "%":
		d.Uncertain = true
		d.Approximate = true
	}
	return d, nil
}

// FromTime returns a day-precision Date for t.
func FromTime(t time.Time) Date {
	return Date{Year: t.Year(), Month: int(t.Month()), Day: t.Day(), Precision: PrecisionDay}
}

// Time returns the first instant the date covers, in UTC. Open starts
// return the zero time.
func (d Date) Time() time.Time {
	if d.OpenStart {
		return time.Time{}
	}
	month, day := d.Month, d.Day
	if month == 0 {
		month = 1
	}
	if day == 0 {
		day = 1
	}
	return time.Date(d.Year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
}

// String renders the date in EDTF.
func (d Date) String() string {
	if !d.Interval {
		return d.point()
	}
	from, to := "..", ".."
	if !d.OpenStart {
		from = d.point()
	}
	if d.To != nil {
		to = d.To.point()
	}
	return from + "/" + to
}

func (d Date) point() string {
	var b strings.Builder
	year := fmt.Sprintf("%04d", d.Year)
	if d.Year < 0 {
		year = fmt.Sprintf("-%04d", -d.Year)
	}
	switch d.Precision {
	case PrecisionCentury:
		b.WriteString(year[:len(year)-2] + "XX")
	case PrecisionDecade:
		b.WriteString(year[:len(year)-1] + "X")
	default:
		b.WriteString(year)
	}
	if d.Precision >= PrecisionMonth {
		fmt.Fprintf(&b, "-%02d", d.Month)
	}
	if d.Precision >= PrecisionDay {
		fmt.Fprintf(&b, "-%02d", d.Day)
	}
	switch {
	case d.Uncertain && d.Approximate:
		b.WriteString("%")
	case d.Uncertain:
		b.WriteString("?")
	case d.Approximate:
		b.WriteString("~")
	}
	return b.String()
}

// MarshalText implements encoding.TextMarshaler.
func (d Date) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Date) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
