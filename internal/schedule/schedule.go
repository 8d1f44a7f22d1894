package schedule

import (
	"strings"
	"time"
)

const (
	DateFormat = "2006-01-02"
	timeFormat = "15:04"
)

// Schedule is the ordered list of posting instants for one posting day.
// It is created by Generate and consumed front to back with Next.
type Schedule struct {
	// Day is midnight of the posting day.
	Day time.Time
	// Times is strictly increasing.
	Times []time.Time
}

func (s *Schedule) Empty() bool { return s == nil || len(s.Times) == 0 }

func (s *Schedule) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Times)
}

// Next removes and returns the earliest remaining instant.
func (s *Schedule) Next() (time.Time, bool) {
	if s.Empty() {
		return time.Time{}, false
	}
	t := s.Times[0]
	s.Times = s.Times[1:]
	return t, true
}

// Peek returns the earliest remaining instant without removing it.
func (s *Schedule) Peek() (time.Time, bool) {
	if s.Empty() {
		return time.Time{}, false
	}
	return s.Times[0], true
}

// Clock returns the remaining instants formatted as HH:MM.
func (s *Schedule) Clock() []string {
	if s == nil {
		return nil
	}
	out := make([]string, 0, len(s.Times))
	for _, t := range s.Times {
		out = append(out, t.Format(timeFormat))
	}
	return out
}

// String renders "[2006-01-02] 07:27 07:54 ...".
func (s *Schedule) String() string {
	if s == nil {
		return "[]"
	}
	var b strings.Builder
	b.WriteString("[")
	b.WriteString(s.Day.Format(DateFormat))
	b.WriteString("]")
	for _, c := range s.Clock() {
		b.WriteString(" ")
		b.WriteString(c)
	}
	return b.String()
}
