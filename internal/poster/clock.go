package poster

import "time"

// Clock is the loop's source of time. Tests replace it to run a whole
// posting day without sleeping.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

// SystemClock reports wall time in Location (local time when nil).
type SystemClock struct {
	Location *time.Location
}

func (c SystemClock) Now() time.Time {
	if c.Location == nil {
		return time.Now()
	}
	return time.Now().In(c.Location)
}

func (SystemClock) After(d time.Duration) <-chan time.Time { return time.After(d) }
