package pipeline

import "strings"

// DefaultBotMarkers are login fragments of dependency-update bots.
var DefaultBotMarkers = []string{"renovate", "dependabot"}

// BotFilter drops requests whose author login contains a denylisted marker.
type BotFilter struct {
	markers []string
}

// NewBotFilter lowercases markers and ignores blank ones.
func NewBotFilter(markers []string) BotFilter {
	var f BotFilter
	for _, m := range markers {
		m = strings.ToLower(strings.TrimSpace(m))
		if m != "" {
			f.markers = append(f.markers, m)
		}
	}
	return f
}

// IsBot reports whether login matches any marker, ignoring case.
func (f BotFilter) IsBot(login string) bool {
	login = strings.ToLower(login)
	for _, m := range f.markers {
		if strings.Contains(login, m) {
			return true
		}
	}
	return false
}
