package booking

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	minutesPerHour = 60
	minutesPerDay  = 24 * minutesPerHour

	dateOnlyLayout = "2006-01-02"
)

// TimeOfDay is a clock time expressed as minutes since midnight.
type TimeOfDay int

// DateOnly is a calendar date normalized to "YYYY-MM-DD".
type DateOnly struct {
	value string
}

// TimeRange is a half-open [Start, End) window within one day.
type TimeRange struct {
	Start TimeOfDay
	End   TimeOfDay
}

// ParseTimeOfDay accepts "H:MM AM/PM", "HH:MM", or "HH:MM:SS" and returns
// minutes since midnight.
func ParseTimeOfDay(raw string) (TimeOfDay, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return 0, fmt.Errorf("%w: empty value", ErrInvalidTimeFormat)
	}

	meridiem := ""
	upper := strings.ToUpper(trimmed)
	switch {
	case strings.HasSuffix(upper, "AM"):
		meridiem = "AM"
	case strings.HasSuffix(upper, "PM"):
		meridiem = "PM"
	}
	if meridiem != "" {
		upper = strings.TrimSpace(strings.TrimSuffix(upper, meridiem))
	}

	parts := strings.Split(upper, ":")
	if len(parts) != 2 && len(parts) != 3 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTimeFormat, raw)
	}
	hour, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTimeFormat, raw)
	}
	minute, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTimeFormat, raw)
	}
	if len(parts) == 3 {
		if _, err := strconv.Atoi(strings.TrimSpace(parts[2])); err != nil {
			return 0, fmt.Errorf("%w: %q", ErrInvalidTimeFormat, raw)
		}
	}

	if meridiem != "" {
		if hour < 1 || hour > 12 {
			return 0, fmt.Errorf("%w: %q", ErrInvalidTimeFormat, raw)
		}
		if hour == 12 {
			hour = 0
		}
		if meridiem == "PM" {
			hour += 12
		}
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTimeFormat, raw)
	}
	return TimeOfDay(hour*minutesPerHour + minute), nil
}

// Minutes returns the raw minutes-since-midnight value.
func (timeOfDay TimeOfDay) Minutes() int {
	return int(timeOfDay)
}

// String formats the time as "HH:MM".
func (timeOfDay TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", int(timeOfDay)/minutesPerHour, int(timeOfDay)%minutesPerHour)
}

// Valid reports whether the value falls within a single day.
func (timeOfDay TimeOfDay) Valid() bool {
	return timeOfDay >= 0 && timeOfDay <= minutesPerDay
}

// NewTimeRange validates that end is strictly after start.
func NewTimeRange(start TimeOfDay, end TimeOfDay) (TimeRange, error) {
	if !start.Valid() || !end.Valid() {
		return TimeRange{}, fmt.Errorf("%w: out of day bounds", ErrInvalidTimeRange)
	}
	if end <= start {
		return TimeRange{}, fmt.Errorf("%w: end must be after start", ErrInvalidTimeRange)
	}
	return TimeRange{Start: start, End: end}, nil
}

// Overlaps reports whether two half-open ranges intersect. Touching
// endpoints do not overlap.
func (timeRange TimeRange) Overlaps(other TimeRange) bool {
	return RangesOverlap(timeRange.Start, timeRange.End, other.Start, other.End)
}

// DurationMinutes returns the range length in minutes.
func (timeRange TimeRange) DurationMinutes() int {
	return int(timeRange.End - timeRange.Start)
}

// RangesOverlap reports intersection of two half-open [start, end) ranges.
func RangesOverlap(aStart, aEnd, bStart, bEnd TimeOfDay) bool {
	return aStart < bEnd && bStart < aEnd
}

// ParseDateOnly normalizes a date string to "YYYY-MM-DD", stripping any
// time-of-day or timezone component.
func ParseDateOnly(raw string) (DateOnly, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return DateOnly{}, fmt.Errorf("%w: empty value", ErrInvalidDateFormat)
	}
	for _, layout := range []string{dateOnlyLayout, time.RFC3339, "2006-01-02T15:04:05", "2006-01-02 15:04:05"} {
		if parsed, err := time.Parse(layout, trimmed); err == nil {
			return DateOnly{value: parsed.Format(dateOnlyLayout)}, nil
		}
	}
	return DateOnly{}, fmt.Errorf("%w: %q", ErrInvalidDateFormat, raw)
}

// DateOnlyFromTime truncates a time.Time to its calendar date.
func DateOnlyFromTime(value time.Time) DateOnly {
	return DateOnly{value: value.Format(dateOnlyLayout)}
}

// String returns the normalized "YYYY-MM-DD" form.
func (date DateOnly) String() string {
	return date.value
}

// IsZero reports whether the date is unset.
func (date DateOnly) IsZero() bool {
	return date.value == ""
}

// Time returns the date at midnight UTC.
func (date DateOnly) Time() time.Time {
	parsed, _ := time.Parse(dateOnlyLayout, date.value)
	return parsed
}
