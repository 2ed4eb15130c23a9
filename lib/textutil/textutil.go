package textutil

import (
	"regexp"
	"strings"
)

var whitespaceRegex = regexp.MustCompile(`\s+`)

// NormalizeKey collapses a display string into a stable identity key:
// lowercased with all whitespace removed. "Joe's Diner" and
// "joe's  diner" produce the same key.
func NormalizeKey(name string) string {
	name = strings.ToLower(name)
	name = strings.Trim(name, " \n\t")
	name = whitespaceRegex.ReplaceAllString(name, "")
	return name
}

// CollapseWhitespace trims a string and folds inner runs of whitespace
// into single spaces.
func CollapseWhitespace(s string) string {
	s = strings.Trim(s, " \n\t")
	return whitespaceRegex.ReplaceAllString(s, " ")
}

var nonSlugRegex = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify converts a display name to lower-dash-case.
func Slugify(name string) string {
	name = strings.ToLower(name)
	name = nonSlugRegex.ReplaceAllString(name, "-")
	return strings.Trim(name, "-")
}

func MatchName(name string, matchers []string) bool {
	name = NormalizeKey(name)
	for _, m := range matchers {
		if strings.Contains(name, m) {
			return true
		}
	}
	return false
}
