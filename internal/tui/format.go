package tui

import (
	"fmt"

	"github.com/goodtune/mediatimer/internal/policy"
)

// Clock formats seconds as H:MM:SS, or MM:SS under an hour.
func Clock(seconds int64) string {
	if seconds < 0 {
		seconds = 0
	}
	h := seconds / 3600
	m := (seconds % 3600) / 60
	s := seconds % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}

// Human formats seconds as "1h 05m", "12m" or "45s".
func Human(seconds int64) string {
	switch {
	case seconds >= 3600:
		return fmt.Sprintf("%dh %02dm", seconds/3600, (seconds%3600)/60)
	case seconds >= 60:
		return fmt.Sprintf("%dm", seconds/60)
	default:
		return fmt.Sprintf("%ds", seconds)
	}
}

// Icon returns the list marker for a category.
func Icon(c policy.Category) string {
	switch c {
	case policy.CategoryMovie:
		return "🎬"
	case policy.CategoryAdult:
		return "🔞"
	default:
		return "📺"
	}
}
