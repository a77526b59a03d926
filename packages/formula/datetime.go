package formula

import (
	"math"
	"strings"
	"time"
)

var (
	// serial 1 is 1900-01-01 in the 1900 system
	epoch1900 = time.Date(1899, 12, 31, 0, 0, 0, 0, time.UTC)
	// serial 0 is 1904-01-01 in the 1904 system
	epoch1904 = time.Date(1904, 1, 1, 0, 0, 0, 0, time.UTC)
)

const (
	// 9999-12-31 in the 1900 system
	maxSerial1900 = 2958465
	// days between the two epochs
	epochOffset1904 = 1462
	// serial of the fictional 1900-02-29 kept for compatibility
	leapBugSerial = 60
)

// civilDate is a calendar date that can also hold 1900-02-29
type civilDate struct {
	year  int
	month time.Month
	day   int
}

func (s CalculationSettings) maxSerial() int {
	if s.DateSystem == DateSystem1904 {
		return maxSerial1900 - epochOffset1904
	}
	return maxSerial1900
}

// serialFromDate maps a year, month and day to a serial number. month and
// day overflow roll into neighbouring months and years. years 0-1899 are
// offset by 1900.
func (s CalculationSettings) serialFromDate(year, month, day int) (float64, bool) {
	if year >= 0 && year < 1900 {
		year += 1900
	}
	if year < 0 || year > 9999 {
		return 0, false
	}
	first := time.Date(year, time.Month(1), 1, 0, 0, 0, 0, time.UTC).AddDate(0, month-1, 0)
	serial := s.serialFromTime(first) + float64(day-1)
	if serial < 0 || serial > float64(s.maxSerial()) {
		return 0, false
	}
	return serial, true
}

// serialFromTime converts a time to a serial with the time of day as the
// fraction
func (s CalculationSettings) serialFromTime(t time.Time) float64 {
	t = time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)
	midnight := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	frac := t.Sub(midnight).Seconds() / 86400

	var days int
	if s.DateSystem == DateSystem1904 {
		days = daysBetween(epoch1904, midnight)
	} else {
		days = daysBetween(epoch1900, midnight)
		if days >= leapBugSerial {
			days++
		}
	}
	return float64(days) + frac
}

func daysBetween(from, to time.Time) int {
	return int(math.Round(to.Sub(from).Hours() / 24))
}

// dateFromSerial converts the integer part of a serial to a calendar date
func (s CalculationSettings) dateFromSerial(serial float64) (civilDate, bool) {
	if math.IsNaN(serial) || serial < 0 || serial >= float64(s.maxSerial()+1) {
		return civilDate{}, false
	}
	days := int(math.Floor(serial))
	if s.DateSystem == DateSystem1904 {
		t := epoch1904.AddDate(0, 0, days)
		return civilDate{t.Year(), t.Month(), t.Day()}, true
	}
	switch {
	case days == 0:
		// displayed as 1900-01-00
		return civilDate{1900, time.January, 0}, true
	case days == leapBugSerial:
		return civilDate{1900, time.February, 29}, true
	case days > leapBugSerial:
		days--
	}
	t := epoch1900.AddDate(0, 0, days)
	return civilDate{t.Year(), t.Month(), t.Day()}, true
}

// timeFromSerial converts a serial to a time. 1900-02-29 reads as
// 1900-03-01.
func (s CalculationSettings) timeFromSerial(serial float64) (time.Time, bool) {
	d, ok := s.dateFromSerial(serial)
	if !ok {
		return time.Time{}, false
	}
	h, m, sec := clockFromSerial(serial)
	return time.Date(d.year, d.month, d.day, h, m, sec, 0, time.UTC), true
}

// clockFromSerial splits the fraction of a serial into hours, minutes and
// seconds, rounded to the nearest second
func clockFromSerial(serial float64) (int, int, int) {
	frac := serial - math.Floor(serial)
	secs := int(math.Round(frac * 86400))
	if secs >= 86400 {
		secs = 86399
	}
	return secs / 3600, secs / 60 % 60, secs % 60
}

// weekdayOf returns 0 for Sunday through 6 for Saturday
func (s CalculationSettings) weekdayOf(serial float64) int {
	days := int(math.Floor(serial))
	if s.DateSystem == DateSystem1904 {
		days += epochOffset1904
	}
	// serial 1 (1900-01-01) is treated as a Sunday
	return ((days-1)%7 + 7) % 7
}

func isWeekend(weekday int) bool {
	return weekday == 0 || weekday == 6
}

// addMonths moves a serial by whole months, clamping the day to the end of
// the target month
func (s CalculationSettings) addMonths(serial float64, months int, endOfMonth bool) (float64, bool) {
	d, ok := s.dateFromSerial(serial)
	if !ok {
		return 0, false
	}
	first := time.Date(d.year, d.month, 1, 0, 0, 0, 0, time.UTC).AddDate(0, months, 0)
	last := first.AddDate(0, 1, -1).Day()
	day := d.day
	if endOfMonth || day > last {
		day = last
	}
	if day < 1 {
		day = 1
	}
	return s.serialFromDate(first.Year(), int(first.Month()), day)
}

var dateLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	"1/2/2006",
	"1-2-2006",
	"2-Jan-2006",
	"2 Jan 2006",
	"2 January 2006",
	"Jan 2, 2006",
	"January 2, 2006",
	"Jan 2 2006",
	"January 2 2006",
	"2-Jan-06",
	"1/2/06",
}

var timeLayouts = []string{
	"15:04",
	"15:04:05",
	"3:04 PM",
	"3:04:05 PM",
	"3:04PM",
	"3:04:05PM",
}

// parseDateText reads date and date-time text into a serial. a missing date
// part gives a time-only fraction.
func (s CalculationSettings) parseDateText(text string) (float64, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return 0, false
	}
	for _, dl := range dateLayouts {
		if t, err := time.Parse(dl, text); err == nil {
			return s.serialFromDate(t.Year(), int(t.Month()), t.Day())
		}
		for _, tl := range timeLayouts {
			if t, err := time.Parse(dl+" "+tl, text); err == nil {
				serial, ok := s.serialFromDate(t.Year(), int(t.Month()), t.Day())
				return serial + clockFraction(t), ok
			}
		}
	}
	for _, tl := range timeLayouts {
		if t, err := time.Parse(tl, strings.ToUpper(text)); err == nil {
			return clockFraction(t), true
		}
	}
	return 0, false
}

func clockFraction(t time.Time) float64 {
	return float64(t.Hour()*3600+t.Minute()*60+t.Second()) / 86400
}
