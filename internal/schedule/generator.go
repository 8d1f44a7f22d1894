package schedule

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"quotebot/pkg/logx"
	"quotebot/pkg/randx"
)

// Generator turns a Config into the posting instants of one cycle.
type Generator struct {
	rng randx.Source
	log logx.Logger
}

// NewGenerator returns a Generator. A nil rng draws from a time-seeded source.
func NewGenerator(rng randx.Source, log logx.Logger) *Generator {
	if rng == nil {
		rng = randx.New(0)
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Generator{rng: rng, log: log}
}

// Generate computes the schedule for the current posting day, or for the
// next day when every slot of today has already passed.
//
// All instants are expressed in now's location.
func (g *Generator) Generate(now time.Time, cfg Config) (Schedule, error) {
	if cfg == nil {
		return Schedule{}, configErr("", "no schedule mode configured")
	}
	if err := cfg.Validate(); err != nil {
		return Schedule{}, err
	}

	var (
		s   Schedule
		err error
	)
	switch c := cfg.(type) {
	case Fixed:
		s = g.fixed(now, c)
	case Uniform:
		s = g.uniform(now, c)
	default:
		err = configErr(cfg.Mode(), fmt.Sprintf("unsupported schedule config %T", cfg))
	}
	if err != nil {
		return Schedule{}, err
	}

	g.log.Debug("schedule generated",
		logx.String("mode", cfg.Mode()),
		logx.String("day", s.Day.Format(DateFormat)),
		logx.String("times", strings.Join(s.Clock(), " ")),
		logx.Int("slots", s.Len()),
	)
	return s, nil
}

func (g *Generator) fixed(now time.Time, c Fixed) Schedule {
	clocks := make([]TimeOfDay, 0, len(c.Anchors))
	for _, a := range c.Anchors {
		clocks = append(clocks, jitter(a, c.JitterMinutes, g.rng))
	}
	sort.Slice(clocks, func(i, j int) bool { return clocks[i] < clocks[j] })

	day := midnight(now)
	if clocks[len(clocks)-1] < TimeOfDayOf(now) {
		day = day.AddDate(0, 0, 1)
	}

	out := make([]time.Time, 0, len(clocks))
	for _, tod := range clocks {
		t := tod.On(day, now.Location())
		if !t.After(now) {
			continue
		}
		out = append(out, t)
	}
	return Schedule{Day: day, Times: dedupe(out)}
}

// jitter moves anchor by a whole number of minutes drawn from
// [-jitter, +jitter], clamped so the result stays within 00:00..23:59.
func jitter(anchor TimeOfDay, jitterMinutes int, rng randx.Source) TimeOfDay {
	if jitterMinutes <= 0 {
		return anchor
	}
	minutes := anchor.Minutes()
	lo := min(jitterMinutes, minutes)
	hi := min(jitterMinutes, lastMinute-minutes)
	offset := randx.IntRange(rng, -lo, hi)
	return anchor + TimeOfDay(offset*60)
}

func (g *Generator) uniform(now time.Time, c Uniform) Schedule {
	span := int(c.WindowEnd - c.WindowStart)
	count := c.Count
	spacing := span / (count + 1)
	if spacing < minSpacingSeconds {
		spacing = minSpacingSeconds
		count = span/spacing - 1
		g.log.Warn("requested post count reduced to keep one post per minute at most",
			logx.Int("requested", c.Count),
			logx.Int("count", count),
			logx.Int("window_seconds", span),
		)
	}

	slots := make([]TimeOfDay, 0, count)
	for k := 1; k <= count; k++ {
		slots = append(slots, c.WindowStart+TimeOfDay(k*spacing))
	}

	day := midnight(now)
	if len(slots) > 0 && TimeOfDayOf(now) > slots[len(slots)-1] {
		day = day.AddDate(0, 0, 1)
	}

	out := make([]time.Time, 0, len(slots))
	for _, tod := range slots {
		out = append(out, tod.On(day, now.Location()))
	}
	return Schedule{Day: day, Times: out}
}

func midnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// dedupe drops repeated instants from a sorted slice. Two anchors can jitter
// onto the same minute; the schedule must stay strictly increasing.
func dedupe(ts []time.Time) []time.Time {
	if len(ts) < 2 {
		return ts
	}
	out := ts[:1]
	for _, t := range ts[1:] {
		if t.Equal(out[len(out)-1]) {
			continue
		}
		out = append(out, t)
	}
	return out
}
