package metadata

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

const ellipsis = "..."

const (
	maxTitleLen       = 200
	maxSummaryLen     = 350
	maxDescriptionLen = 300
	// reader content up to this length is used as the summary verbatim
	verbatimContentLen = 400
)

var (
	whitespaceRun = regexp.MustCompile(`\s+`)
	sentence      = regexp.MustCompile(`[^.!?]+[.!?]+`)
	markdownLink  = regexp.MustCompile(`!?\[([^\]]*)\]\([^)]*\)`)
)

// collapseWhitespace folds every whitespace run (newlines included) into one space and trims.
func collapseWhitespace(s string) string {
	return strings.TrimSpace(whitespaceRun.ReplaceAllString(s, " "))
}

// truncate shortens s to at most max runes, marking the cut with an ellipsis.
func truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	r := []rune(s)
	return string(r[:max-len(ellipsis)]) + ellipsis
}

// summarizeContent turns cleaned reader output into a summary.
// Short content is kept as is. Longer content keeps whole leading sentences
// while they fit in maxSummaryLen, or is hard-truncated when not even the
// first sentence fits.
func summarizeContent(content string) string {
	content = collapseWhitespace(content)
	if utf8.RuneCountInString(content) <= verbatimContentLen {
		return content
	}

	var b strings.Builder
	length := 0
	for _, s := range sentence.FindAllString(content, -1) {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		n := utf8.RuneCountInString(s)
		if length > 0 {
			n++
		}
		if length+n > maxSummaryLen {
			break
		}
		if length > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(s)
		length += n
	}

	if length == 0 {
		return truncate(content, maxSummaryLen)
	}
	return b.String()
}
