package crawler

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/url"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/nao1215/nucheck/internal/markup"
)

// Default crawl limits.
const (
	// DefaultMaxPages bounds how many pages one crawl returns.
	DefaultMaxPages = 50

	// DefaultDelay is the pause between page captures.
	DefaultDelay = 200 * time.Millisecond
)

// Capturer reads the markup of a URL. *markup.Fetcher implements it, so
// crawl requests carry the same cookies and headers as validation.
type Capturer interface {
	Capture(ctx context.Context, target string) (*markup.Document, error)
}

// Page is a page found by the spider.
type Page struct {
	// URL is the normalized page URL.
	URL string

	// Title is the document title, if any.
	Title string

	// Depth is the number of links followed from the start page.
	Depth int
}

// Spider walks the links of a site breadth first and returns the HTML
// pages it finds on the start page's host.
type Spider struct {
	// capturer fetches pages.
	capturer Capturer

	// maxDepth limits how deep to crawl from the starting URL.
	// 0 means only the starting page, 1 means one level of links, etc.
	maxDepth int

	// maxPages limits the total number of pages returned.
	maxPages int

	// delay is the time to wait between requests.
	delay time.Duration

	// ignorePatterns are URL path patterns to skip during crawling.
	// Patterns use glob syntax (e.g., "/admin/*", "*.pdf").
	ignorePatterns []string

	// followPatterns are URL path patterns to follow during crawling.
	// If set, only URLs matching these patterns are crawled.
	followPatterns []string

	logger *slog.Logger

	// visited tracks normalized URLs already queued.
	visited map[string]bool

	// mutex protects visited and pageCount.
	mutex sync.Mutex

	// pageCount tracks pages returned.
	pageCount int
}

// SpiderOption configures a Spider.
type SpiderOption func(*Spider)

// WithMaxDepth sets the maximum crawl depth.
// 0 = only the starting page, 1 = starting page plus linked pages, etc.
func WithMaxDepth(depth int) SpiderOption {
	return func(s *Spider) {
		s.maxDepth = depth
	}
}

// WithMaxPages sets the maximum number of pages to return.
func WithMaxPages(maxPages int) SpiderOption {
	return func(s *Spider) {
		s.maxPages = maxPages
	}
}

// WithDelay sets the delay between requests.
func WithDelay(d time.Duration) SpiderOption {
	return func(s *Spider) {
		s.delay = d
	}
}

// WithIgnorePatterns sets URL path patterns to skip during crawling.
// Patterns use glob syntax (e.g., "/admin/*", "*.pdf", "/logout*").
func WithIgnorePatterns(patterns []string) SpiderOption {
	return func(s *Spider) {
		s.ignorePatterns = patterns
	}
}

// WithFollowPatterns sets URL path patterns to follow during crawling.
// If set, only URLs matching at least one pattern are crawled.
func WithFollowPatterns(patterns []string) SpiderOption {
	return func(s *Spider) {
		s.followPatterns = patterns
	}
}

// WithSpiderLogger sets the logger for skipped pages.
func WithSpiderLogger(logger *slog.Logger) SpiderOption {
	return func(s *Spider) {
		s.logger = logger
	}
}

// NewSpider creates a Spider that captures pages with capturer.
func NewSpider(capturer Capturer, opts ...SpiderOption) *Spider {
	s := &Spider{
		capturer: capturer,
		maxDepth: 1,
		maxPages: DefaultMaxPages,
		delay:    DefaultDelay,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		visited:  make(map[string]bool),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Crawl captures startURL and follows same-host links up to the configured
// depth. The start page is always first. Pages that cannot be captured or
// are not HTML are skipped, except the start page, whose error is returned.
// On cancellation the pages found so far are returned with ctx.Err().
func (s *Spider) Crawl(ctx context.Context, startURL string) ([]Page, error) {
	start, err := url.Parse(startURL)
	if err != nil {
		return nil, fmt.Errorf("invalid start URL: %w", err)
	}
	if start.Scheme != "http" && start.Scheme != "https" {
		return nil, fmt.Errorf("invalid start URL: %s is not an http(s) URL", startURL)
	}

	pages := make([]Page, 0)
	queue := []queueItem{{url: markup.NormalizeTarget(startURL), depth: 0}}
	s.markVisited(queue[0].url)

	for len(queue) > 0 && s.count() < s.maxPages {
		if err := ctx.Err(); err != nil {
			return pages, err
		}

		item := queue[0]
		queue = queue[1:]

		page, links, err := s.fetchPage(ctx, item)
		if err != nil {
			if item.depth == 0 {
				return nil, err
			}
			s.logger.Warn("skipping page", "url", item.url, "error", err)
			continue
		}
		if page == nil {
			continue
		}

		pages = append(pages, *page)
		s.increment()

		if item.depth < s.maxDepth {
			for _, link := range links {
				link = markup.NormalizeTarget(link)
				if s.isVisited(link) || !s.isSameSite(start.Host, link) || !s.shouldCrawl(link) {
					continue
				}
				s.markVisited(link)
				queue = append(queue, queueItem{url: link, depth: item.depth + 1})
			}
		}

		if s.delay > 0 && len(queue) > 0 {
			select {
			case <-ctx.Done():
				return pages, ctx.Err()
			case <-time.After(s.delay):
			}
		}
	}

	return pages, nil
}

// queueItem represents an item in the crawl queue.
type queueItem struct {
	url   string
	depth int
}

// fetchPage captures one page and extracts its links. It returns a nil page
// for documents that are not HTML.
func (s *Spider) fetchPage(ctx context.Context, item queueItem) (*Page, []string, error) {
	doc, err := s.capturer.Capture(ctx, item.url)
	if err != nil {
		return nil, nil, err
	}
	if !isHTML(doc.ContentType) {
		s.logger.Debug("skipping non-HTML page", "url", item.url, "contentType", doc.ContentType)
		return nil, nil, nil
	}

	page := &Page{URL: item.url, Title: doc.Title, Depth: item.depth}

	parser, err := NewParser(item.url)
	if err != nil {
		return page, nil, nil
	}
	result, err := parser.Parse(strings.NewReader(doc.Markup))
	if err != nil {
		return page, nil, nil
	}
	return page, result.InternalLinks, nil
}

// isHTML reports whether contentType names an HTML document. An empty
// content type is taken as HTML.
func isHTML(contentType string) bool {
	if contentType == "" {
		return true
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mediaType == "text/html" || mediaType == "application/xhtml+xml"
}

func (s *Spider) isVisited(pageURL string) bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.visited[pageURL]
}

func (s *Spider) markVisited(pageURL string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.visited[pageURL] = true
}

func (s *Spider) count() int {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.pageCount
}

func (s *Spider) increment() {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.pageCount++
}

// isSameSite checks that targetURL has the same host and port as baseHost.
func (s *Spider) isSameSite(baseHost, targetURL string) bool {
	u, err := url.Parse(targetURL)
	if err != nil {
		return false
	}
	return strings.EqualFold(u.Host, baseHost)
}

// Reset clears the spider's state, allowing it to be reused.
func (s *Spider) Reset() {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.visited = make(map[string]bool)
	s.pageCount = 0
}

// Stats returns current crawl statistics.
func (s *Spider) Stats() SpiderStats {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return SpiderStats{
		PagesVisited: s.pageCount,
		URLsQueued:   len(s.visited),
	}
}

// SpiderStats contains crawl statistics.
type SpiderStats struct {
	// PagesVisited is the number of pages returned.
	PagesVisited int

	// URLsQueued is the number of unique URLs encountered.
	URLsQueued int
}

// shouldCrawl checks a URL against the ignore and follow patterns.
// An ignored path is never crawled. When follow patterns are set, the
// path must match one of them.
func (s *Spider) shouldCrawl(targetURL string) bool {
	u, err := url.Parse(targetURL)
	if err != nil {
		return false
	}

	path := u.Path
	if path == "" {
		path = "/"
	}

	for _, pattern := range s.ignorePatterns {
		if matchPattern(pattern, path) {
			return false
		}
	}

	if len(s.followPatterns) == 0 {
		return true
	}
	for _, pattern := range s.followPatterns {
		if matchPattern(pattern, path) {
			return true
		}
	}
	return false
}

// matchPattern checks if a path matches a glob pattern.
//
// Examples:
//   - "/admin/*" matches "/admin/dashboard" and "/admin/users/1"
//   - "*.pdf" matches "/docs/file.pdf"
//   - "/api/v?" matches "/api/v1"
func matchPattern(pattern, path string) bool {
	if prefix, ok := strings.CutSuffix(pattern, "/*"); ok {
		if strings.HasPrefix(path, prefix+"/") || path == prefix {
			return true
		}
	}

	if ext, ok := strings.CutPrefix(pattern, "*"); ok && strings.HasPrefix(ext, ".") {
		if strings.HasSuffix(path, ext) {
			return true
		}
	}

	matched, err := filepath.Match(pattern, path)
	if err != nil {
		return false
	}
	if matched {
		return true
	}

	// Patterns without a slash also match the last path segment
	if strings.Contains(pattern, "*") && !strings.Contains(pattern, "/") {
		matched, err := filepath.Match(pattern, filepath.Base(path))
		if err == nil && matched {
			return true
		}
	}

	return false
}
