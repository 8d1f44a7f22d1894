package schedule

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	secondsPerDay = 24 * 60 * 60
	lastMinute    = 23*60 + 59 // 23:59, in minutes since midnight
)

// TimeOfDay is a wall-clock time expressed in seconds since midnight.
type TimeOfDay int

// Clock builds a TimeOfDay from its parts. Out-of-range parts are not checked.
func Clock(hour, minute, second int) TimeOfDay {
	return TimeOfDay(hour*3600 + minute*60 + second)
}

// TimeOfDayOf returns the wall-clock time of t in t's own location.
func TimeOfDayOf(t time.Time) TimeOfDay {
	h, m, s := t.Clock()
	return Clock(h, m, s)
}

// ParseTimeOfDay parses "HH:MM" or "HH:MM:SS".
func ParseTimeOfDay(raw string) (TimeOfDay, error) {
	s := strings.TrimSpace(raw)
	parts := strings.Split(s, ":")
	if len(parts) != 2 && len(parts) != 3 {
		return 0, fmt.Errorf("invalid time %q, expected HH:MM or HH:MM:SS", raw)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("invalid hour in %q", raw)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 || len(parts[1]) != 2 {
		return 0, fmt.Errorf("invalid minute in %q", raw)
	}
	sec := 0
	if len(parts) == 3 {
		sec, err = strconv.Atoi(parts[2])
		if err != nil || sec < 0 || sec > 59 || len(parts[2]) != 2 {
			return 0, fmt.Errorf("invalid second in %q", raw)
		}
	}
	return Clock(h, m, sec), nil
}

// Hour returns the hour in [0, 23].
func (t TimeOfDay) Hour() int { return int(t) / 3600 }

// Minute returns the minute within the hour.
func (t TimeOfDay) Minute() int { return int(t) % 3600 / 60 }

// Second returns the second within the minute.
func (t TimeOfDay) Second() int { return int(t) % 60 }

// Minutes returns the whole minutes since midnight.
func (t TimeOfDay) Minutes() int { return int(t) / 60 }

// Valid reports whether t lies within a single day.
func (t TimeOfDay) Valid() bool { return t >= 0 && t < secondsPerDay }

// On materializes t on the calendar day of day, in loc.
// Wall-clock times that do not exist on that day (DST gaps) are normalized
// by time.Date.
func (t TimeOfDay) On(day time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = day.Location()
	}
	y, mo, d := day.Date()
	return time.Date(y, mo, d, t.Hour(), t.Minute(), t.Second(), 0, loc)
}

func (t TimeOfDay) String() string {
	if t.Second() != 0 {
		return fmt.Sprintf("%02d:%02d:%02d", t.Hour(), t.Minute(), t.Second())
	}
	return fmt.Sprintf("%02d:%02d", t.Hour(), t.Minute())
}
