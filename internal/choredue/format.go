package choredue

import (
	"time"

	"github.com/dustin/go-humanize"
)

// Relative renders a due instant relative to now, e.g. "3 hours ago" for an
// overdue chore or "2 days from now" for an upcoming one. Used by the due view's
// JSON response and by the materializer when composing notification bodies.
func Relative(due, now time.Time) string {
	return humanize.RelTime(due, now, "ago", "from now")
}
