package schedule

import (
	"fmt"
	"strings"
)

// Mode names as they appear in configuration files.
const (
	ModeFixed   = "fixed"
	ModeUniform = "uniform"
)

// minSpacingSeconds is the smallest distance between two uniform slots.
const minSpacingSeconds = 60

// Config is one of Fixed or Uniform. The set is closed: the marker method is
// unexported, so only this package can add a mode.
type Config interface {
	Mode() string
	Validate() error
	isScheduleConfig()
}

// Fixed posts around configured anchor times.
type Fixed struct {
	// Anchors need not be sorted.
	Anchors       []TimeOfDay
	JitterMinutes int
}

// Uniform posts Count times, evenly spread inside the window.
type Uniform struct {
	Count       int
	WindowStart TimeOfDay
	WindowEnd   TimeOfDay
}

func (Fixed) isScheduleConfig()   {}
func (Uniform) isScheduleConfig() {}

func (Fixed) Mode() string   { return ModeFixed }
func (Uniform) Mode() string { return ModeUniform }

// Validate requires at least one in-day anchor and a non-negative jitter.
func (c Fixed) Validate() error {
	if len(c.Anchors) == 0 {
		return configErr(ModeFixed, "at least one anchor is required")
	}
	if c.JitterMinutes < 0 {
		return configErr(ModeFixed, fmt.Sprintf("jitter_minutes must be >= 0 (got %d)", c.JitterMinutes))
	}
	for _, a := range c.Anchors {
		if !a.Valid() {
			return configErr(ModeFixed, fmt.Sprintf("anchor %d is outside the day", int(a)))
		}
	}
	return nil
}

// Validate requires a positive count and a window of at least two minutes.
func (c Uniform) Validate() error {
	if c.Count <= 0 {
		return configErr(ModeUniform, fmt.Sprintf("count must be > 0 (got %d)", c.Count))
	}
	if !c.WindowStart.Valid() || !c.WindowEnd.Valid() {
		return configErr(ModeUniform, "window bounds must lie within the day")
	}
	if c.WindowEnd <= c.WindowStart {
		return configErr(ModeUniform, fmt.Sprintf("window_end %s must be after window_start %s", c.WindowEnd, c.WindowStart))
	}
	// Stricter than the count and window-order rules: with the one-minute
	// floor, a window under two minutes yields no slot, so it is rejected
	// here instead of producing a schedule that is exhausted on arrival.
	if int(c.WindowEnd-c.WindowStart) < 2*minSpacingSeconds {
		return configErr(ModeUniform, "window must span at least two minutes")
	}
	return nil
}

// ConfigError reports a malformed schedule config.
type ConfigError struct {
	Mode   string
	Reason string
}

func (e *ConfigError) Error() string {
	if e.Mode == "" {
		return "schedule config: " + e.Reason
	}
	return "schedule config (" + e.Mode + "): " + e.Reason
}

func configErr(mode, reason string) error {
	return &ConfigError{Mode: mode, Reason: reason}
}

// ParseConfig builds a Config from the raw configuration values.
// Exactly one of the mode-specific inputs is consulted, selected by mode.
func ParseConfig(mode string, anchors []string, jitterMinutes int, count int, windowStart, windowEnd string) (Config, error) {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case ModeFixed:
		c := Fixed{JitterMinutes: jitterMinutes}
		for _, raw := range anchors {
			a, err := ParseTimeOfDay(raw)
			if err != nil {
				return nil, configErr(ModeFixed, err.Error())
			}
			c.Anchors = append(c.Anchors, a)
		}
		if err := c.Validate(); err != nil {
			return nil, err
		}
		return c, nil
	case ModeUniform:
		start, err := ParseTimeOfDay(windowStart)
		if err != nil {
			return nil, configErr(ModeUniform, "window_start: "+err.Error())
		}
		end, err := ParseTimeOfDay(windowEnd)
		if err != nil {
			return nil, configErr(ModeUniform, "window_end: "+err.Error())
		}
		c := Uniform{Count: count, WindowStart: start, WindowEnd: end}
		if err := c.Validate(); err != nil {
			return nil, err
		}
		return c, nil
	default:
		return nil, configErr("", fmt.Sprintf("unknown mode %q (want %q or %q)", mode, ModeFixed, ModeUniform))
	}
}
