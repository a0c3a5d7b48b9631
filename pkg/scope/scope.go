package scope

import (
	"net/url"
	"strings"
)

// Mode selects how tightly candidate URLs are bound to the start URL.
type Mode string

const (
	// ModeHost accepts any path on the start URL's host.
	ModeHost Mode = "host"
	// ModePath additionally requires the candidate's path to begin with the
	// start URL's path prefix.
	ModePath Mode = "path"
)

// nonWebExts are asset suffixes that never lead to crawlable pages.
var nonWebExts = []string{".jpg", ".jpeg", ".png", ".gif", ".svg", ".ico", ".pdf", ".zip", ".mp4", ".mp3", ".css", ".js"}

// Scope decides whether a discovered URL is eligible for the frontier.
// It has no side effects and never panics on malformed input.
type Scope struct {
	mode       Mode
	host       string
	pathPrefix string
}

// New builds a Scope anchored at startURL. The start URL must parse; callers
// validate it once at construction so InScope can stay infallible.
func New(startURL string, mode Mode) (*Scope, error) {
	u, err := url.Parse(startURL)
	if err != nil {
		return nil, err
	}
	return &Scope{
		mode:       mode,
		host:       u.Host,
		pathPrefix: u.Path,
	}, nil
}

// Mode reports the active scoping mode.
func (s *Scope) Mode() Mode {
	return s.mode
}

// InScope reports whether a candidate URL is eligible for the frontier.
// Malformed URLs are out of scope, never an error.
func (s *Scope) InScope(candidate string) bool {
	u, err := url.Parse(candidate)
	if err != nil {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	if u.Fragment != "" {
		return false
	}
	if u.Host != s.host {
		return false
	}
	lower := strings.ToLower(u.Path)
	for _, ext := range nonWebExts {
		if strings.HasSuffix(lower, ext) {
			return false
		}
	}
	if s.mode == ModePath && !strings.HasPrefix(u.Path, s.pathPrefix) {
		return false
	}
	return true
}
