// Package tzconvert converts civil wall-clock times between IANA time zones.
//
// A WallClock is a zone-naive date and 12-hour time as a user types it. Converting
// attaches the source zone to those clock digits, takes the instant they denote,
// and renders that instant on the clock of each target zone using the offset in
// effect at that instant, so daylight-saving rules apply per date.
//
// Around daylight-saving transitions a wall time may not exist (spring-forward
// gap) or may exist twice (fall-back overlap). The time package normalises the
// first forward by the length of the gap and picks one of the two offsets for
// the second; Result.Instant carries the instant that was actually used.
package tzconvert

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Meridiem is the AM/PM half of a 12-hour clock.
type Meridiem string

// Meridiem values.
const (
	AM Meridiem = "AM"
	PM Meridiem = "PM"
)

// wallClockLayout is the composed form a WallClock is parsed from.
const wallClockLayout = "2006-01-02 03:04 PM"

// WallClock is a civil date and 12-hour time-of-day with no zone attached.
type WallClock struct {
	Meridiem Meridiem   `json:"meridiem"`
	Year     int        `json:"year"`
	Month    time.Month `json:"month"`
	Day      int        `json:"day"`
	Hour     int        `json:"hour"`   // 1-12
	Minute   int        `json:"minute"` // 0-59
}

// IsZero reports whether no part of the wall clock was filled in.
func (w WallClock) IsZero() bool {
	return w == WallClock{}
}

// String composes the wall clock as "2024-07-04 09:00 AM".
func (w WallClock) String() string {
	return fmt.Sprintf("%04d-%02d-%02d %02d:%02d %s", w.Year, int(w.Month), w.Day, w.Hour, w.Minute, w.Meridiem)
}

// Validate checks the clock fields. Calendar validity (Feb 30) is checked by In.
func (w WallClock) Validate() error {
	if w.Hour < 1 || w.Hour > 12 {
		return formatErr(w.String(), "hour %d out of range 1-12", w.Hour)
	}
	if w.Minute < 0 || w.Minute > 59 {
		return formatErr(w.String(), "minute %d out of range 0-59", w.Minute)
	}
	if w.Meridiem != AM && w.Meridiem != PM {
		return formatErr(w.String(), "meridiem %q is not AM or PM", w.Meridiem)
	}
	return nil
}

// In attaches loc to the wall clock and returns the instant it denotes.
func (w WallClock) In(loc *time.Location) (time.Time, error) {
	if err := w.Validate(); err != nil {
		return time.Time{}, err
	}
	s := w.String()
	t, err := time.ParseInLocation(wallClockLayout, s, loc)
	if err != nil {
		return time.Time{}, &FormatError{Input: s, Err: err}
	}
	return t, nil
}

// Hour24 returns the hour on a 24-hour clock.
func (w WallClock) Hour24() int {
	h := w.Hour % 12
	if w.Meridiem == PM {
		h += 12
	}
	return h
}

// FromTime returns the wall clock t shows in its own location.
func FromTime(t time.Time) WallClock {
	w := WallClock{
		Year:     t.Year(),
		Month:    t.Month(),
		Day:      t.Day(),
		Minute:   t.Minute(),
		Meridiem: AM,
	}
	h := t.Hour()
	if h >= 12 {
		w.Meridiem = PM
	}
	w.Hour = h % 12
	if w.Hour == 0 {
		w.Hour = 12
	}
	return w
}

// Now returns the current wall clock in zone.
func Now(zone string, now time.Time) (WallClock, error) {
	loc, err := time.LoadLocation(zone)
	if err != nil {
		return WallClock{}, &UnresolvedZoneError{Zone: zone, Err: err}
	}
	return FromTime(now.In(loc)), nil
}

// ParseWallClock builds a WallClock from form-style input: date "2024-07-04",
// clock "09:00" and meridiem "AM". With an empty meridiem the clock is read as
// 24-hour time. Empty date or clock returns ErrIncompleteInput.
func ParseWallClock(date, clock, meridiem string) (WallClock, error) {
	date = strings.TrimSpace(date)
	clock = strings.TrimSpace(clock)
	if date == "" || clock == "" {
		return WallClock{}, fmt.Errorf("%w: date and time are required", ErrIncompleteInput)
	}
	input := strings.TrimSpace(date + " " + clock + " " + meridiem)

	d, err := time.Parse(time.DateOnly, date)
	if err != nil {
		return WallClock{}, &FormatError{Input: input, Err: err}
	}

	parts := strings.Split(clock, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return WallClock{}, formatErr(input, "time %q is not hh:mm", clock)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil {
		return WallClock{}, formatErr(input, "hour %q is not a number", parts[0])
	}
	minute, ok := twoDigits(parts[1])
	if !ok {
		return WallClock{}, formatErr(input, "minute %q is not two digits", parts[1])
	}
	if len(parts) == 3 {
		if sec, ok := twoDigits(parts[2]); !ok || sec > 59 {
			return WallClock{}, formatErr(input, "seconds %q is not two digits 00-59", parts[2])
		}
	}

	w := WallClock{Year: d.Year(), Month: d.Month(), Day: d.Day(), Hour: hour, Minute: minute}
	switch m := Meridiem(strings.ToUpper(strings.TrimSpace(meridiem))); m {
	case AM, PM:
		w.Meridiem = m
	case "":
		if hour < 0 || hour > 23 {
			return WallClock{}, formatErr(input, "hour %d out of range 0-23", hour)
		}
		w.Meridiem = AM
		if hour >= 12 {
			w.Meridiem = PM
		}
		w.Hour = hour % 12
		if w.Hour == 0 {
			w.Hour = 12
		}
	default:
		return WallClock{}, formatErr(input, "meridiem %q is not AM or PM", meridiem)
	}

	if err := w.Validate(); err != nil {
		return WallClock{}, err
	}
	return w, nil
}

// ParseDateTime parses the wire form of a wall clock. Accepted shapes:
//
//	2024-07-04 09:00 AM
//	2024-07-04 9:00pm
//	2024-07-04 21:00
//	2024-07-04T21:00
//	2024-07-04T21:00:00
func ParseDateTime(s string) (WallClock, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return WallClock{}, fmt.Errorf("%w: date and time are required", ErrIncompleteInput)
	}

	var meridiem string
	upper := strings.ToUpper(s)
	if strings.HasSuffix(upper, "AM") || strings.HasSuffix(upper, "PM") {
		meridiem = upper[len(upper)-2:]
		s = strings.TrimSpace(s[:len(s)-2])
	}

	date, clock, ok := strings.Cut(s, " ")
	if !ok {
		date, clock, ok = strings.Cut(s, "T")
	}
	if !ok {
		return WallClock{}, formatErr(s, "expected a date and a time")
	}
	return ParseWallClock(date, clock, meridiem)
}

// twoDigits parses exactly two ASCII digits.
func twoDigits(s string) (int, bool) {
	if len(s) != 2 || s[0] < '0' || s[0] > '9' || s[1] < '0' || s[1] > '9' {
		return 0, false
	}
	return int(s[0]-'0')*10 + int(s[1]-'0'), true
}

// StepHour moves a 12-hour clock hour by delta, wrapping within 1-12.
func StepHour(hour, delta int) int {
	return ((hour-1+delta)%12+12)%12 + 1
}

// StepMinute moves a minute by delta, wrapping within 0-59.
func StepMinute(minute, delta int) int {
	return ((minute+delta)%60 + 60) % 60
}

// FormatOffset renders an offset in seconds east of UTC as "+05:30".
func FormatOffset(seconds int) string {
	sign := '+'
	if seconds < 0 {
		sign = '-'
		seconds = -seconds
	}
	return fmt.Sprintf("%c%02d:%02d", sign, seconds/3600, (seconds%3600)/60)
}
