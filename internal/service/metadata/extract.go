package metadata

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// textStrategy reads one candidate value from a parsed document.
// An empty result means "not found, try the next one".
type textStrategy func(doc *goquery.Document) string

var titleStrategies = []textStrategy{
	metaStrategy("og:title"),
	metaStrategy("twitter:title"),
	titleElement,
}

var descriptionStrategies = []textStrategy{
	metaStrategy("og:description"),
	metaStrategy("description"),
}

// iconRels are the <link rel> values consulted for favicons, in order
var iconRels = []string{"icon", "shortcut icon", "apple-touch-icon"}

func firstMatch(doc *goquery.Document, strategies []textStrategy) string {
	for _, s := range strategies {
		if v := collapseWhitespace(s(doc)); v != "" {
			return v
		}
	}
	return ""
}

// metaStrategy matches <meta property=key> or <meta name=key>, ignoring case
func metaStrategy(key string) textStrategy {
	return func(doc *goquery.Document) string {
		return metaContent(doc, key)
	}
}

func metaContent(doc *goquery.Document, key string) string {
	var content string
	doc.Find("meta").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		property, _ := s.Attr("property")
		name, _ := s.Attr("name")
		if !strings.EqualFold(strings.TrimSpace(property), key) && !strings.EqualFold(strings.TrimSpace(name), key) {
			return true
		}
		if v, ok := s.Attr("content"); ok && strings.TrimSpace(v) != "" {
			content = v
			return false
		}
		return true
	})
	return content
}

func titleElement(doc *goquery.Document) string {
	return doc.Find("title").First().Text()
}

// extractTitle runs the title chain, falling back to hostname.
func extractTitle(doc *goquery.Document, hostname string) string {
	title := firstMatch(doc, titleStrategies)
	if title == "" {
		title = hostname
	}
	return truncate(title, maxTitleLen)
}

// extractDescription returns the page's own description, or "" when it has none.
func extractDescription(doc *goquery.Document) string {
	desc := firstMatch(doc, descriptionStrategies)
	if desc == "" {
		return ""
	}
	return truncate(desc, maxDescriptionLen)
}

// faviconCandidates lists absolute http(s) icon URLs in probe order,
// ending with /favicon.ico at the site root. Duplicates are dropped.
func faviconCandidates(doc *goquery.Document, pageURL *url.URL) []string {
	base := pageURL
	if href, ok := doc.Find("base[href]").First().Attr("href"); ok {
		if b, err := pageURL.Parse(strings.TrimSpace(href)); err == nil {
			base = b
		}
	}

	seen := make(map[string]bool)
	var candidates []string
	add := func(u *url.URL) {
		if u == nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return
		}
		s := u.String()
		if seen[s] {
			return
		}
		seen[s] = true
		candidates = append(candidates, s)
	}

	links := doc.Find("link[rel][href]")
	for _, rel := range iconRels {
		links.Each(func(_ int, s *goquery.Selection) {
			v, _ := s.Attr("rel")
			if !strings.EqualFold(collapseWhitespace(v), rel) {
				return
			}
			href, _ := s.Attr("href")
			href = strings.TrimSpace(href)
			if href == "" {
				return
			}
			if u, err := base.Parse(href); err == nil {
				add(u)
			}
		})
	}

	add(pageURL.ResolveReference(&url.URL{Path: "/favicon.ico"}))
	return candidates
}
