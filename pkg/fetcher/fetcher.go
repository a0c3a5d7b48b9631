// Package fetcher retrieves pages over HTTP and extracts the textual content,
// title and outbound links the rest of the pipeline works with.
package fetcher

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/markusmobius/go-trafilatura"
	"github.com/temoto/robotstxt"
	"golang.org/x/net/html"
	"golang.org/x/time/rate"

	"github.com/amosWeiskopf/sitescout/internal/models"
	"github.com/amosWeiskopf/sitescout/pkg/utils"
)

var userAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/117.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/16.5 Safari/605.1.15",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:109.0) Gecko/20100101 Firefox/115.0",
}

// ErrRobotsDisallowed marks pages the site's robots.txt excludes.
var ErrRobotsDisallowed = errors.New("disallowed by robots.txt")

// Error is a fetch failure for one URL. Fetch failures are expected and
// non-fatal to a crawl: the page is skipped, not retried within the run.
type Error struct {
	URL   string
	Cause error
}

func (e *Error) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Cause)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Options configures a Fetcher.
type Options struct {
	Timeout           time.Duration
	RequestsPerSecond int
	RespectRobots     bool
}

// Fetcher fetches pages with request pacing and optional robots.txt
// compliance. Safe for use by a single crawl loop; the robots cache is
// mutex-guarded for the documented concurrent extension.
type Fetcher struct {
	client  *http.Client
	limiter *rate.Limiter
	respect bool
	logger  *log.Logger

	robotsMu sync.Mutex
	robots   map[string]*robotstxt.RobotsData
}

// New creates a Fetcher.
func New(opts Options, logger *log.Logger) *Fetcher {
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}
	if opts.RequestsPerSecond <= 0 {
		opts.RequestsPerSecond = 4
	}
	jar, _ := cookiejar.New(nil)
	transport := &http.Transport{
		MaxIdleConns:        10,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     30 * time.Second,
	}
	return &Fetcher{
		client:  &http.Client{Transport: transport, Timeout: opts.Timeout, Jar: jar},
		limiter: rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1),
		respect: opts.RespectRobots,
		logger:  logger.With("component", "fetcher"),
		robots:  make(map[string]*robotstxt.RobotsData),
	}
}

// Fetch retrieves one page. Failures come back as *Error; callers treat them
// as "skip, do not keep, do not enqueue links".
func (f *Fetcher) Fetch(ctx context.Context, pageURL string) (*models.PageContent, error) {
	u, err := url.Parse(pageURL)
	if err != nil {
		return nil, &Error{URL: pageURL, Cause: err}
	}

	if f.respect && !f.allowedByRobots(ctx, u) {
		return nil, &Error{URL: pageURL, Cause: ErrRobotsDisallowed}
	}

	if err := f.limiter.Wait(ctx); err != nil {
		return nil, &Error{URL: pageURL, Cause: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, &Error{URL: pageURL, Cause: err}
	}
	req.Header.Set("User-Agent", userAgents[rand.Intn(len(userAgents))])
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &Error{URL: pageURL, Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &Error{URL: pageURL, Cause: fmt.Errorf("status %d", resp.StatusCode)}
	}
	if !isWebpageMIME(resp.Header.Get("Content-Type")) {
		return nil, &Error{URL: pageURL, Cause: fmt.Errorf("non-webpage content type %q", resp.Header.Get("Content-Type"))}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{URL: pageURL, Cause: err}
	}

	text := utils.CleanText(extractText(body))
	title, links := extractTitleAndLinks(body, pageURL)

	return &models.PageContent{
		URL:   pageURL,
		Title: title,
		Text:  text,
		Links: links,
	}, nil
}

// allowedByRobots checks the host's robots.txt, fetching and caching it on
// first use. Unreachable or unparsable robots.txt permits the crawl; a host
// without one is cached as allow-all so robots.txt is requested once per host.
func (f *Fetcher) allowedByRobots(ctx context.Context, u *url.URL) bool {
	f.robotsMu.Lock()
	data, ok := f.robots[u.Host]
	f.robotsMu.Unlock()

	if !ok {
		fetched, transient := f.fetchRobots(ctx, u)
		if transient {
			return true
		}
		data = fetched
		f.robotsMu.Lock()
		f.robots[u.Host] = data
		f.robotsMu.Unlock()
	}
	if data == nil {
		return true
	}
	return data.TestAgent(u.Path, "sitescout")
}

// fetchRobots retrieves and parses one host's robots.txt. A missing or
// unparsable file yields a nil, cacheable allow-all entry; a transport error
// is transient and must not be cached.
func (f *Fetcher) fetchRobots(ctx context.Context, u *url.URL) (data *robotstxt.RobotsData, transient bool) {
	robotsURL := fmt.Sprintf("%s://%s/robots.txt", u.Scheme, u.Host)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return nil, false
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, true
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, false
	}
	data, err = robotstxt.FromResponse(resp)
	if err != nil {
		f.logger.Debug("unparsable robots.txt", "host", u.Host, "error", err)
		return nil, false
	}
	return data, false
}

func isWebpageMIME(contentType string) bool {
	mimeType := strings.Split(strings.ToLower(contentType), ";")[0]
	switch strings.TrimSpace(mimeType) {
	case "text/html", "application/xhtml+xml", "application/xhtml", "text/xml", "application/xml", "":
		return true
	}
	return false
}

// extractText pulls the main content text via trafilatura, falling back to a
// plain text walk for pages trafilatura rejects.
func extractText(body []byte) string {
	result, err := trafilatura.Extract(bytes.NewReader(body), trafilatura.Options{})
	if err == nil && result != nil && result.ContentText != "" {
		return result.ContentText
	}
	return fallbackTextExtraction(body)
}

func fallbackTextExtraction(body []byte) string {
	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return ""
	}
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "nav", "footer":
				return
			}
		}
		if n.Type == html.TextNode {
			if t := strings.TrimSpace(n.Data); t != "" {
				b.WriteString(t)
				b.WriteString(" ")
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return strings.TrimSpace(b.String())
}

// extractTitleAndLinks walks the parsed document once, collecting the title
// and outbound links resolved against the page URL, de-duplicated by URL.
func extractTitleAndLinks(body []byte, baseURL string) (string, []models.Link) {
	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return "", nil
	}

	var title string
	var foundTitle bool
	var links []models.Link
	seen := make(map[string]bool)

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "title":
				if !foundTitle && n.FirstChild != nil {
					title = strings.TrimSpace(n.FirstChild.Data)
					foundTitle = true
				}
			case "a":
				var href string
				for _, attr := range n.Attr {
					if attr.Key == "href" {
						href = attr.Val
					}
				}
				if href != "" {
					abs := resolveURL(baseURL, href)
					if !seen[abs] {
						seen[abs] = true
						links = append(links, models.Link{
							URL:        abs,
							AnchorText: nodeText(n),
						})
					}
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	return title, links
}

func nodeText(n *html.Node) string {
	if n.Type == html.TextNode {
		return strings.TrimSpace(n.Data)
	}
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		b.WriteString(nodeText(c))
	}
	return strings.TrimSpace(b.String())
}

func resolveURL(base, ref string) string {
	baseURL, err := url.Parse(base)
	if err != nil {
		return ref
	}
	refURL, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return baseURL.ResolveReference(refURL).String()
}
