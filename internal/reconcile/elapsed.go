package reconcile

import (
	"fmt"
	"time"
)

// UnknownElapsed is displayed when no trustworthy duration exists.
const UnknownElapsed = "unknown"

// Elapsed returns how long a document has been (or was) processing.
// The second value is false when the start is missing or the clocks
// disagree badly enough to produce a negative duration.
func Elapsed(startedAt, finishedAt *time.Time, now time.Time) (time.Duration, bool) {
	if startedAt == nil || startedAt.IsZero() {
		return 0, false
	}
	end := now
	if finishedAt != nil && !finishedAt.IsZero() {
		end = *finishedAt
	}
	d := end.Sub(*startedAt)
	if d < 0 {
		return 0, false
	}
	return d, true
}

// FormatElapsed renders a duration as "42s", "3m07s" or "1h02m".
func FormatElapsed(d time.Duration, ok bool) string {
	if !ok || d < 0 {
		return UnknownElapsed
	}
	d = d.Round(time.Second)
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm%02ds", int(d.Minutes()), int(d.Seconds())%60)
	default:
		return fmt.Sprintf("%dh%02dm", int(d.Hours()), int(d.Minutes())%60)
	}
}
