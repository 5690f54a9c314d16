package extract

import (
	"regexp"
	"strings"
	"time"
)

// DefaultDateLayouts are tried in order when no layouts are configured.
var DefaultDateLayouts = []string{
	"1/2/2006",
	"1/2/06",
	"2006-01-02",
	"January 2, 2006",
	"Jan 2, 2006",
}

var monthDot = regexp.MustCompile(`^([A-Za-z]{3,9})\.`)

// ParseDate parses s with the first layout that accepts it.
func ParseDate(s string, layouts []string) (*time.Time, bool) {
	s = strings.Join(strings.Fields(s), " ")
	if s == "" {
		return nil, false
	}
	s = monthDot.ReplaceAllString(s, "$1")
	// "March 4 2024" -> "March 4, 2024"
	if parts := strings.Fields(s); len(parts) == 3 && !strings.HasSuffix(parts[1], ",") && isAlpha(parts[0]) {
		s = parts[0] + " " + parts[1] + ", " + parts[2]
	}
	if len(layouts) == 0 {
		layouts = DefaultDateLayouts
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return &t, true
		}
	}
	return nil, false
}

func isAlpha(s string) bool {
	for _, r := range s {
		if (r < 'A' || r > 'Z') && (r < 'a' || r > 'z') {
			return false
		}
	}
	return s != ""
}
