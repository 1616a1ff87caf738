// Package timecalc parses segment dates and clock times and computes
// durations between them, treating an end time earlier than its start as
// falling on the next day.
package timecalc

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"time"
)

const (
	dateLayout = "2006-01-02"

	// Day is the length of the rollover applied to an end time that is
	// earlier than its start.
	Day = 24 * time.Hour
)

var (
	// ErrInvalidFormat is returned for a malformed date or clock string.
	ErrInvalidFormat = errors.New("invalid format")
	// ErrInvalidInput is returned when formatting a negative duration.
	ErrInvalidInput = errors.New("invalid input")
)

var (
	dateRE  = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	clockRE = regexp.MustCompile(`^([01]\d|2[0-3]):([0-5]\d):([0-5]\d)$`)
)

// Interval is a resolved segment in absolute time.
type Interval struct {
	Start time.Time
	End   time.Time
}

// Minutes returns the whole minutes between Start and End.
func (i Interval) Minutes() int {
	return int(i.End.Sub(i.Start) / time.Minute)
}

// ParseDate parses a YYYY-MM-DD date as midnight UTC.
func ParseDate(s string) (time.Time, error) {
	if !dateRE.MatchString(s) {
		return time.Time{}, fmt.Errorf("date %q: %w", s, ErrInvalidFormat)
	}
	t, err := time.ParseInLocation(dateLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("date %q: %w", s, ErrInvalidFormat)
	}
	return t, nil
}

// ParseClock parses an HH:MM:SS time of day as the offset from midnight.
func ParseClock(s string) (time.Duration, error) {
	m := clockRE.FindStringSubmatch(s)
	if m == nil {
		return 0, fmt.Errorf("time %q: %w", s, ErrInvalidFormat)
	}
	hh, _ := strconv.Atoi(m[1])
	mm, _ := strconv.Atoi(m[2])
	ss, _ := strconv.Atoi(m[3])
	return time.Duration(hh)*time.Hour + time.Duration(mm)*time.Minute + time.Duration(ss)*time.Second, nil
}

// Resolve returns the absolute interval for start and end on date. An end
// earlier than start is moved to the following day; only one rollover is
// applied.
func Resolve(date, start, end string) (Interval, error) {
	day, err := ParseDate(date)
	if err != nil {
		return Interval{}, err
	}
	from, err := ParseClock(start)
	if err != nil {
		return Interval{}, err
	}
	to, err := ParseClock(end)
	if err != nil {
		return Interval{}, err
	}
	iv := Interval{Start: day.Add(from), End: day.Add(to)}
	if iv.End.Before(iv.Start) {
		iv.End = iv.End.Add(Day)
	}
	return iv, nil
}

// DurationMinutes returns the whole minutes from start to end on date,
// applying the rollover rule. Sub-minute remainders are dropped.
func DurationMinutes(date, start, end string) (int, error) {
	iv, err := Resolve(date, start, end)
	if err != nil {
		return 0, err
	}
	return iv.Minutes(), nil
}

// MinutesSinceMidnight returns the whole minutes between 00:00:00 and clock.
func MinutesSinceMidnight(clock string) (int, error) {
	d, err := ParseClock(clock)
	if err != nil {
		return 0, err
	}
	return int(d / time.Minute), nil
}
