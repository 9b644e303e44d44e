package bookmarks

import (
	"strings"
	"unicode/utf8"

	"linksaver/internal/domain"
)

const maxTagLen = 50

// NormalizeTags trims, lowercases and dedupes tags, keeping the first
// domain.MaxTags in input order. Empty tags and a leading '#' are dropped.
func NormalizeTags(tags []string) []string {
	seen := make(map[string]bool, len(tags))
	out := make([]string, 0, len(tags))

	for _, tag := range tags {
		tag = strings.ToLower(strings.TrimSpace(tag))
		tag = strings.TrimSpace(strings.TrimLeft(tag, "#"))
		tag = strings.Join(strings.Fields(tag), "-")
		if tag == "" || seen[tag] {
			continue
		}
		if utf8.RuneCountInString(tag) > maxTagLen {
			tag = string([]rune(tag)[:maxTagLen])
		}
		seen[tag] = true
		out = append(out, tag)
		if len(out) == domain.MaxTags {
			break
		}
	}
	return out
}
