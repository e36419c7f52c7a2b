package sessions

import (
	"fmt"
	"time"
	"unicode/utf8"
)

// maxTitle is the longest title shown in the session list, in runes.
const maxTitle = 50

// ShortTitle cuts titles longer than 50 runes and appends "...".
func ShortTitle(s string) string {
	if utf8.RuneCountInString(s) <= maxTitle {
		return s
	}
	return string([]rune(s)[:maxTitle]) + "..."
}

// TimeAgo renders t relative to now the way the session list shows it.
func TimeAgo(t, now time.Time) string {
	d := now.Sub(t)
	switch {
	case d < time.Minute:
		return "Just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d/time.Minute))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d/time.Hour))
	case d < 7*24*time.Hour:
		return fmt.Sprintf("%dd ago", int(d/(24*time.Hour)))
	default:
		return t.Format("Jan 2, 2006")
	}
}
