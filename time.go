package auth

import (
	"fmt"
	"time"
)

var timeAgoUnits = []struct {
	name    string
	seconds int64
}{
	{"year", 31536000},
	{"month", 2592000},
	{"week", 604800},
	{"day", 86400},
	{"hour", 3600},
	{"minute", 60},
}

// TimeAgo renders the elapsed time between t and now using the largest
// whole unit, e.g. "3 hours ago". Anything under a minute, including
// times in the future, is "just now".
func TimeAgo(t, now time.Time) string {
	seconds := int64(now.Sub(t) / time.Second)

	for _, unit := range timeAgoUnits {
		n := seconds / unit.seconds
		if n >= 1 {
			if n == 1 {
				return fmt.Sprintf("1 %s ago", unit.name)
			}
			return fmt.Sprintf("%d %ss ago", n, unit.name)
		}
	}

	return "just now"
}
