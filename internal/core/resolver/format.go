package resolver

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var isoDurationRe = regexp.MustCompile(`^PT(?:(\d+)H)?(?:(\d+)M)?(?:(\d+)S)?$`)

// FormatDuration renders either a count of seconds ("253") or an ISO-8601
// duration ("PT4M13S") as a clock string ("4:13"). Anything else is
// returned unchanged; empty input becomes "Unknown".
func FormatDuration(d string) string {
	d = strings.TrimSpace(d)
	if d == "" || d == "Unknown" {
		return "Unknown"
	}

	if secs, err := strconv.Atoi(d); err == nil {
		return FormatSeconds(secs)
	}

	m := isoDurationRe.FindStringSubmatch(d)
	if m == nil {
		return d
	}
	hours, _ := strconv.Atoi(m[1])
	minutes, _ := strconv.Atoi(m[2])
	seconds, _ := strconv.Atoi(m[3])
	if m[1] != "" {
		return fmt.Sprintf("%d:%02d:%02d", hours, minutes, seconds)
	}
	return fmt.Sprintf("%d:%02d", minutes, seconds)
}

// FormatSeconds renders seconds as m:ss, or h:mm:ss past the hour
func FormatSeconds(total int) string {
	if total < 0 {
		total = 0
	}
	h := total / 3600
	m := (total % 3600) / 60
	s := total % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

// FormatViewCount abbreviates large counts: 1.5K, 2.3M, 1.0B
func FormatViewCount(n uint64) string {
	switch {
	case n >= 1_000_000_000:
		return fmt.Sprintf("%.1fB", float64(n)/1e9)
	case n >= 1_000_000:
		return fmt.Sprintf("%.1fM", float64(n)/1e6)
	case n >= 1_000:
		return fmt.Sprintf("%.1fK", float64(n)/1e3)
	}
	return strconv.FormatUint(n, 10)
}
