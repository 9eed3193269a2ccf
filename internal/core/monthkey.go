// Package core holds the budget domain: month keys, money, records and the
// budget error taxonomy. It has no knowledge of storage or transport.
package core

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// MonthKey identifies a calendar month as "YYYY-MM". Keys are zero padded,
// so lexicographic comparison orders them chronologically.
type MonthKey string

// maxKeyIterations bounds every key walk. 6000 months is 500 years, far
// beyond any plausible budget range; hitting the cap means malformed input.
const maxKeyIterations = 6000

var (
	ErrInvalidMonthKey  = errors.New("invalid month key")
	ErrInvalidPeriodKey = errors.New("invalid period key")
	ErrRangeTooLong     = errors.New("month range too long")

	monthKeyRe = regexp.MustCompile(`^\d{4}-(0[1-9]|1[0-2])$`)
)

// MonthKeyOf returns the key for the month containing t, evaluated in UTC so
// that a date near midnight cannot drift into a neighbouring month.
func MonthKeyOf(t time.Time) MonthKey {
	u := t.UTC()
	return MonthKey(fmt.Sprintf("%04d-%02d", u.Year(), int(u.Month())))
}

// ParseMonthKey validates and returns a MonthKey from its string form.
func ParseMonthKey(s string) (MonthKey, error) {
	if !monthKeyRe.MatchString(s) {
		return "", fmt.Errorf("%w: %q", ErrInvalidMonthKey, s)
	}
	return MonthKey(s), nil
}

// Valid reports whether the key is well formed.
func (k MonthKey) Valid() bool {
	return monthKeyRe.MatchString(string(k))
}

// YearMonth returns the numeric year and month of the key.
func (k MonthKey) YearMonth() (int, int) {
	year, _ := strconv.Atoi(string(k)[:4])
	month, _ := strconv.Atoi(string(k)[5:])
	return year, month
}

// Range returns the half-open UTC interval [start, end) covering the month.
func (k MonthKey) Range() (time.Time, time.Time) {
	year, month := k.YearMonth()
	start := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 1, 0)
}

// Next returns the following month's key, rolling the year on December.
func (k MonthKey) Next() MonthKey {
	year, month := k.YearMonth()
	month++
	if month > 12 {
		month = 1
		year++
	}
	return MonthKey(fmt.Sprintf("%04d-%02d", year, month))
}

// Prev returns the preceding month's key, rolling the year on January.
func (k MonthKey) Prev() MonthKey {
	year, month := k.YearMonth()
	month--
	if month < 1 {
		month = 12
		year--
	}
	return MonthKey(fmt.Sprintf("%04d-%02d", year, month))
}

// Keys enumerates the closed range [from..to] in order. It fails when the
// range is inverted or would exceed the iteration cap.
func Keys(from, to MonthKey) ([]MonthKey, error) {
	if from > to {
		return nil, fmt.Errorf("%w: %s > %s", ErrInvalidMonthKey, from, to)
	}
	var keys []MonthKey
	for k := from; k <= to; k = k.Next() {
		keys = append(keys, k)
		if len(keys) > maxKeyIterations {
			return nil, fmt.Errorf("%w: %s..%s", ErrRangeTooLong, from, to)
		}
	}
	return keys, nil
}

// ISOWeekStart returns the Monday starting the given ISO week, in UTC.
// Week 1 is the week containing January 4th; its Monday anchors the year.
func ISOWeekStart(year, week int) time.Time {
	jan4 := time.Date(year, time.January, 4, 0, 0, 0, 0, time.UTC)
	wd := int(jan4.Weekday())
	if wd == 0 { // Sunday
		wd = 7
	}
	monday := jan4.AddDate(0, 0, -(wd - 1))
	return monday.AddDate(0, 0, (week-1)*7)
}

// AddMonths advances t by n calendar months, clamping the day of month so
// that Jan 31 + 1 month lands on Feb 28/29 instead of spilling into March.
func AddMonths(t time.Time, n int) time.Time {
	u := t.UTC()
	year, month, day := u.Date()
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC).AddDate(0, n, 0)
	last := first.AddDate(0, 1, -1).Day()
	if day > last {
		day = last
	}
	return time.Date(first.Year(), first.Month(), day, 0, 0, 0, 0, time.UTC)
}

// PeriodWindow resolves a budget period key into the half-open UTC interval
// it spans. Supported shapes: "2025" (year), "2025-03" (month), "2025-Q1"
// (quarter), "2025-W12" (ISO week).
func PeriodWindow(periodKey string) (time.Time, time.Time, error) {
	s := strings.TrimSpace(periodKey)
	switch {
	case regexp.MustCompile(`^\d{4}$`).MatchString(s):
		year, _ := strconv.Atoi(s)
		start := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
		return start, start.AddDate(1, 0, 0), nil
	case monthKeyRe.MatchString(s):
		start, end := MonthKey(s).Range()
		return start, end, nil
	case regexp.MustCompile(`^\d{4}-Q[1-4]$`).MatchString(s):
		year, _ := strconv.Atoi(s[:4])
		q, _ := strconv.Atoi(s[6:])
		start := time.Date(year, time.Month((q-1)*3+1), 1, 0, 0, 0, 0, time.UTC)
		return start, start.AddDate(0, 3, 0), nil
	case regexp.MustCompile(`^\d{4}-W(0[1-9]|[1-4]\d|5[0-3])$`).MatchString(s):
		year, _ := strconv.Atoi(s[:4])
		week, _ := strconv.Atoi(s[6:])
		start := ISOWeekStart(year, week)
		return start, start.AddDate(0, 0, 7), nil
	default:
		return time.Time{}, time.Time{}, fmt.Errorf("%w: %q", ErrInvalidPeriodKey, periodKey)
	}
}
