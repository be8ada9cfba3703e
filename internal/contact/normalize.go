package contact

import (
	"regexp"
	"strings"
)

// whitespaceRegex matches one or more whitespace characters
var whitespaceRegex = regexp.MustCompile(`\s+`)

// CleanName trims a display name and collapses internal whitespace,
// preserving case.
func CleanName(s string) string {
	return whitespaceRegex.ReplaceAllString(strings.TrimSpace(s), " ")
}

// Key returns the case-insensitive comparison key for names, emails and link values:
// trimmed and lowercased.
func Key(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// SameText reports whether a and b are equal under case-insensitive comparison.
// Two empty strings are not considered equal.
func SameText(a, b string) bool {
	ka, kb := Key(a), Key(b)
	return ka != "" && ka == kb
}

// CleanTags trims tags, drops empties and removes exact duplicates
// (tags are case-sensitive), keeping first-occurrence order.
func CleanTags(tags []string) []string {
	if tags == nil {
		return nil
	}
	seen := make(map[string]bool, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

// HasTag reports whether tags contains tag exactly.
func HasTag(tags []string, tag string) bool {
	for _, t := range tags {
		if t == tag {
			return true
		}
	}
	return false
}
