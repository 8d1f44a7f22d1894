package poster

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"quotebot/internal/schedule"
)

const (
	computedFormat = "2006-01-02 15:04:05 MST-0700"
	slotFormat     = "[2006-01-02] 15:04"
)

// writeScheduleLog overwrites path with the instants of one cycle:
//
//	Computed on [2024-05-01 08:00:00 CEST+0200]
//	[2024-05-01] 09:12
//	[2024-05-01] 12:03
func writeScheduleLog(path string, now time.Time, sch schedule.Schedule) error {
	var b strings.Builder
	fmt.Fprintf(&b, "Computed on [%s]\n", now.Format(computedFormat))
	for _, t := range sch.Times {
		b.WriteString(t.Format(slotFormat))
		b.WriteByte('\n')
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, []byte(b.String()), 0o644)
}
