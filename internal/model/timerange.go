package model

import (
	"fmt"
	"time"
)

// TimeOfDay is a wall-clock time with no date attached, stored as minutes
// since midnight. Slots keep wall-clock times so a recurring template means
// "every Monday at 09:00 local" regardless of DST shifts.
type TimeOfDay int

// ParseTimeOfDay parses "HH:MM".
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	var h, m int
	if _, err := fmt.Sscanf(s, "%d:%d", &h, &m); err != nil {
		return 0, fmt.Errorf("parse time of day %q: %w", s, err)
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, fmt.Errorf("time of day %q out of range", s)
	}
	return TimeOfDay(h*60 + m), nil
}

func (t TimeOfDay) Hour() int    { return int(t) / 60 }
func (t TimeOfDay) Minute() int  { return int(t) % 60 }
func (t TimeOfDay) Minutes() int { return int(t) }

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour(), t.Minute())
}

func (t TimeOfDay) MarshalJSON() ([]byte, error) {
	return []byte(`"` + t.String() + `"`), nil
}

func (t *TimeOfDay) UnmarshalJSON(data []byte) error {
	s := string(data)
	if len(s) < 2 || s[0] != '"' || s[len(s)-1] != '"' {
		return fmt.Errorf("time of day must be a %q string", "HH:MM")
	}
	parsed, err := ParseTimeOfDay(s[1 : len(s)-1])
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// On materializes the wall-clock time on the given calendar day in loc.
func (t TimeOfDay) On(date time.Time, loc *time.Location) time.Time {
	return time.Date(date.Year(), date.Month(), date.Day(), t.Hour(), t.Minute(), 0, 0, loc)
}

// TimeOfDayFrom extracts the wall-clock component of an instant in loc.
func TimeOfDayFrom(instant time.Time, loc *time.Location) TimeOfDay {
	local := instant.In(loc)
	return TimeOfDay(local.Hour()*60 + local.Minute())
}

// TimeRange is a half-open wall-clock interval [Start, End).
type TimeRange struct {
	Start TimeOfDay `json:"start"`
	End   TimeOfDay `json:"end"`
}

func (r TimeRange) IsValid() bool { return r.Start < r.End }

func (r TimeRange) DurationMinutes() int { return int(r.End - r.Start) }

// Overlaps reports whether the two half-open intervals share any time.
func (r TimeRange) Overlaps(other TimeRange) bool {
	return r.Start < other.End && other.Start < r.End
}

// Contains reports whether other lies fully within r.
func (r TimeRange) Contains(other TimeRange) bool {
	return r.Start <= other.Start && other.End <= r.End
}

// AlignsTo reports whether other starts on a unitMinutes boundary measured
// from r.Start and spans a whole number of units.
func (r TimeRange) AlignsTo(other TimeRange, unitMinutes int) bool {
	if unitMinutes <= 0 {
		return false
	}
	offset := int(other.Start - r.Start)
	return offset >= 0 && offset%unitMinutes == 0 && other.DurationMinutes()%unitMinutes == 0
}

// DateOnly is the wire and storage format for calendar dates.
const DateOnly = "2006-01-02"

// ParseDate parses a YYYY-MM-DD calendar date (UTC midnight).
func ParseDate(s string) (time.Time, error) {
	d, err := time.Parse(DateOnly, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return d, nil
}

// SameDate compares the calendar-day components of two times.
func SameDate(a, b time.Time) bool {
	return a.Year() == b.Year() && a.Month() == b.Month() && a.Day() == b.Day()
}
