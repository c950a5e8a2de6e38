// Package timeparse normalizes free-text date and time input from chat
// messages into canonical values. Parsing is pure: results depend only on
// the input text and the reference "now" passed in for past-date checks.
package timeparse

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// ParseError reports unparseable or invalid input, naming the offending token.
type ParseError struct {
	Token  string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("timeparse: %q: %s", e.Token, e.Reason)
}

// Date is a calendar day without a time zone.
type Date struct {
	Year  int        `json:"year"`
	Month time.Month `json:"month"`
	Day   int        `json:"day"`
}

// DateOf truncates t to its calendar day.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// Time returns the midnight instant of the date in loc.
func (d Date) Time(loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, loc)
}

// Before reports whether d is an earlier calendar day than other.
func (d Date) Before(other Date) bool {
	if d.Year != other.Year {
		return d.Year < other.Year
	}
	if d.Month != other.Month {
		return d.Month < other.Month
	}
	return d.Day < other.Day
}

// IsZero reports whether the date is unset.
func (d Date) IsZero() bool {
	return d.Year == 0 && d.Month == 0 && d.Day == 0
}

// String formats the date in the canonical DD/MM/YYYY form shown to users.
func (d Date) String() string {
	return fmt.Sprintf("%02d/%02d/%04d", d.Day, d.Month, d.Year)
}

// ISO formats the date as YYYY-MM-DD for storage and choice ids.
func (d Date) ISO() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Day)
}

// ParseISO parses a YYYY-MM-DD string as produced by Date.ISO.
func ParseISO(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return Date{}, &ParseError{Token: s, Reason: "not a YYYY-MM-DD date"}
	}
	return DateOf(t), nil
}

// TimeOfDay is a clock time within a day, minute resolution.
type TimeOfDay struct {
	Hour   int `json:"hour"`
	Minute int `json:"minute"`
}

// Minutes returns minutes since midnight.
func (t TimeOfDay) Minutes() int {
	return t.Hour*60 + t.Minute
}

// FromMinutes builds a TimeOfDay from minutes since midnight.
func FromMinutes(m int) TimeOfDay {
	return TimeOfDay{Hour: m / 60, Minute: m % 60}
}

// String formats the time as HH:MM.
func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

var dateRE = regexp.MustCompile(`^(\d{1,2})[/\- ](\d{1,2})[/\- ](\d{4})$`)

// ParseDate parses free-text date input. Accepted layouts are DD/MM/YYYY,
// DD-MM-YYYY and "DD MM YYYY". Dates before now's calendar day are rejected.
func ParseDate(text string, now time.Time) (Date, error) {
	token := strings.TrimSpace(text)
	if token == "" {
		return Date{}, &ParseError{Token: text, Reason: "empty date"}
	}

	m := dateRE.FindStringSubmatch(token)
	if m == nil {
		return Date{}, &ParseError{Token: token, Reason: "expected a date like 25/12/2025"}
	}

	day, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	year, _ := strconv.Atoi(m[3])

	if month < 1 || month > 12 {
		return Date{}, &ParseError{Token: m[2], Reason: "month out of range"}
	}
	if day < 1 || day > daysInMonth(year, time.Month(month)) {
		return Date{}, &ParseError{Token: m[1], Reason: "day out of range"}
	}

	d := Date{Year: year, Month: time.Month(month), Day: day}
	if d.Before(DateOf(now)) {
		return Date{}, &ParseError{Token: token, Reason: "date is in the past"}
	}
	return d, nil
}

func daysInMonth(year int, month time.Month) int {
	// Day 0 of the next month is the last day of this one.
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

var (
	clockRE    = regexp.MustCompile(`^(\d{1,2}):(\d{2})$`)
	compactRE  = regexp.MustCompile(`^(\d{4})$`)
	meridiemRE = regexp.MustCompile(`^(\d{1,2})(?::(\d{2}))?\s*(am|pm)$`)
)

// ParseTime parses free-text time input. Accepted layouts are H:MM, HHMM and
// Ham/pm (with an optional :MM part).
func ParseTime(text string) (TimeOfDay, error) {
	token := strings.ToLower(strings.TrimSpace(text))
	if token == "" {
		return TimeOfDay{}, &ParseError{Token: text, Reason: "empty time"}
	}

	var hour, minute int
	switch {
	case clockRE.MatchString(token):
		m := clockRE.FindStringSubmatch(token)
		hour, _ = strconv.Atoi(m[1])
		minute, _ = strconv.Atoi(m[2])
	case compactRE.MatchString(token):
		m := compactRE.FindStringSubmatch(token)
		hour, _ = strconv.Atoi(m[1][:2])
		minute, _ = strconv.Atoi(m[1][2:])
	case meridiemRE.MatchString(token):
		m := meridiemRE.FindStringSubmatch(token)
		hour, _ = strconv.Atoi(m[1])
		if m[2] != "" {
			minute, _ = strconv.Atoi(m[2])
		}
		if hour < 1 || hour > 12 {
			return TimeOfDay{}, &ParseError{Token: m[1], Reason: "hour out of range"}
		}
		if m[3] == "pm" && hour != 12 {
			hour += 12
		} else if m[3] == "am" && hour == 12 {
			hour = 0
		}
	default:
		return TimeOfDay{}, &ParseError{Token: token, Reason: "expected a time like 14:30 or 2pm"}
	}

	if hour > 23 {
		return TimeOfDay{}, &ParseError{Token: token, Reason: "hour out of range"}
	}
	if minute > 59 {
		return TimeOfDay{}, &ParseError{Token: token, Reason: "minute out of range"}
	}
	return TimeOfDay{Hour: hour, Minute: minute}, nil
}
