package utils

import (
	"regexp"
	"strings"
)

var spaceRe = regexp.MustCompile(`\s+`)

// CleanText collapses runs of whitespace and trims the result.
func CleanText(text string) string {
	return strings.TrimSpace(spaceRe.ReplaceAllString(text, " "))
}

// NormalizeURL normalizes a URL for consistent frontier identity: the
// fragment is dropped, the host is lowercased and a trailing slash removed.
// Two spellings of the same page must collapse to one frontier entry.
func NormalizeURL(url string) string {
	if idx := strings.Index(url, "#"); idx > 0 {
		url = url[:idx]
	}

	if idx := strings.Index(url, "://"); idx > 0 {
		scheme := url[:idx+3]
		rest := url[idx+3:]
		if slashIdx := strings.Index(rest, "/"); slashIdx > 0 {
			url = scheme + strings.ToLower(rest[:slashIdx]) + rest[slashIdx:]
		} else {
			url = scheme + strings.ToLower(rest)
		}
	}

	return strings.TrimSuffix(url, "/")
}
