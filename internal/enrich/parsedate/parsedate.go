// Package parsedate normalizes free-text date values.
package parsedate

import (
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/araddon/dateparse"

	"github.com/jlicht/krikri/internal/domain/record"
	"github.com/jlicht/krikri/internal/edtf"
)

var monthDayYear = regexp.MustCompile(`^(\d{1,2})\D(\d{1,2})\D(\d{4})$`)

// longLayouts are tried before the general parser, which does not accept
// month names without a comma.
var longLayouts = []struct {
	layout    string
	precision edtf.Precision
}{
	{"January 2 2006", edtf.PrecisionDay},
	{"January 2, 2006", edtf.PrecisionDay},
	{"Jan 2 2006", edtf.PrecisionDay},
	{"Jan 2, 2006", edtf.PrecisionDay},
	{"Jan. 2, 2006", edtf.PrecisionDay},
	{"2 January 2006", edtf.PrecisionDay},
	{"2 Jan 2006", edtf.PrecisionDay},
	{"January 2006", edtf.PrecisionMonth},
	{"Jan 2006", edtf.PrecisionMonth},
}

// ParseDate converts string values holding dates into date values. Values
// that are not strings, or that no parser accepts, are returned unchanged.
type ParseDate struct{}

// EnrichValue returns the parsed date, or v unchanged.
func (ParseDate) EnrichValue(v record.Value) []record.Value {
	if !v.IsText() {
		return []record.Value{v}
	}
	d, ok := Parse(v.Text)
	if !ok {
		return []record.Value{v}
	}
	return []record.Value{record.Date(d).WithAttributesOf(v)}
}

// Parse tries, in order: EDTF, month/day/year with any single non-digit
// separator, then general date formats. It reports false when none match.
func Parse(s string) (edtf.Date, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return edtf.Date{}, false
	}
	if d, err := edtf.Parse(s); err == nil {
		return d, true
	}
	if d, ok := parseMonthDayYear(s); ok {
		return d, true
	}
	if !strings.ContainsFunc(s, unicode.IsDigit) {
		return edtf.Date{}, false
	}
	// The general parser reads long digit runs as Unix timestamps.
	if len(s) > maxDigitDate && !strings.ContainsFunc(s, isNotDigit) {
		return edtf.Date{}, false
	}
	return parseGeneral(s)
}

// maxDigitDate is the length of the longest all-digit date, yyyymmdd.
const maxDigitDate = 8

func isNotDigit(r rune) bool {
	return r < '0' || r > '9'
}

func parseMonthDayYear(s string) (edtf.Date, bool) {
	m := monthDayYear.FindStringSubmatch(s)
	if m == nil {
		return edtf.Date{}, false
	}
	month, _ := strconv.Atoi(m[1])
	day, _ := strconv.Atoi(m[2])
	year, _ := strconv.Atoi(m[3])
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if month < 1 || month > 12 || t.Day() != day {
		return edtf.Date{}, false
	}
	return edtf.FromTime(t), true
}

func parseGeneral(s string) (edtf.Date, bool) {
	for _, l := range longLayouts {
		if t, err := time.Parse(l.layout, s); err == nil {
			d := edtf.FromTime(t)
			if l.precision == edtf.PrecisionMonth {
				d.Day = 0
				d.Precision = edtf.PrecisionMonth
			}
			return d, true
		}
	}
	t, err := dateparse.ParseAny(s)
	if err != nil {
		return edtf.Date{}, false
	}
	return edtf.FromTime(t), true
}
