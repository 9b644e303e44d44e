// Package linkurl derives canonical forms of bookmark URLs for cache keys
// and in-flight deduplication.
package linkurl

import (
	"net/url"
	"strings"
)

// trackingParams are query parameters that never change the page content
var trackingParams = []string{
	"utm_source", "utm_medium", "utm_campaign", "utm_content", "utm_term",
	"si", "fbclid", "gclid", "ref", "source", "msclkid", "igshid",
}

// Canonical returns a normalized string form of u:
// lowercased scheme and host, no "www." prefix, no default port,
// no fragment and no tracking parameters. u is not modified.
func Canonical(u *url.URL) string {
	canonical := *u
	canonical.User = nil
	canonical.Fragment = ""
	canonical.RawFragment = ""
	canonical.Scheme = strings.ToLower(canonical.Scheme)

	host := strings.ToLower(canonical.Hostname())
	host = strings.TrimPrefix(host, "www.")
	port := canonical.Port()
	if (canonical.Scheme == "http" && port == "80") || (canonical.Scheme == "https" && port == "443") {
		port = ""
	}
	if strings.Contains(host, ":") {
		host = "[" + host + "]"
	}
	if port != "" {
		host += ":" + port
	}
	canonical.Host = host

	if canonical.Path == "" {
		canonical.Path = "/"
		canonical.RawPath = ""
	}

	canonical.RawQuery = fixMalformedQueryString(canonical.RawQuery)
	q := canonical.Query()
	for _, param := range trackingParams {
		q.Del(param)
	}
	canonical.RawQuery = q.Encode()

	return canonical.String()
}

// fixMalformedQueryString turns extra "?" separators into "&",
// as produced by chat clients that append share IDs with a second "?".
func fixMalformedQueryString(rawQuery string) string {
	return strings.ReplaceAll(rawQuery, "?", "&")
}
