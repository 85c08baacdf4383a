package crawler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/nao1215/nucheck/internal/markup"
)

// TestParser tests link extraction.
func TestParser(t *testing.T) {
	t.Parallel()

	const page = `<!DOCTYPE html>
<html><head><title>Links</title></head><body>
<a href="/about">About</a>
<a href="contact.html#form">Contact</a>
<a href="https://example.com/about">About again</a>
<a href="https://other.example.org/">Elsewhere</a>
<a href="/brochure.pdf">Brochure</a>
<a href="mailto:info@example.com">Mail</a>
<a href="javascript:void(0)">Script</a>
<a href="#top">Top</a>
<a href="/private" rel="external nofollow">Private</a>
<a href="/archive.html" download>Archive</a>
<map><area href="/map-target" alt="map"></map>
</body></html>`

	parser, err := NewParser("https://example.com/docs/")
	if err != nil {
		t.Fatalf("NewParser() error = %v", err)
	}
	result, err := parser.Parse(strings.NewReader(page))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	wantInternal := []string{
		"https://example.com/about",
		"https://example.com/docs/contact.html",
		"https://example.com/map-target",
	}
	if len(result.InternalLinks) != len(wantInternal) {
		t.Fatalf("InternalLinks = %v, want %v", result.InternalLinks, wantInternal)
	}
	for i, want := range wantInternal {
		if result.InternalLinks[i] != want {
			t.Errorf("InternalLinks[%d] = %q, want %q", i, result.InternalLinks[i], want)
		}
	}

	if len(result.ExternalLinks) != 1 || result.ExternalLinks[0] != "https://other.example.org/" {
		t.Errorf("ExternalLinks = %v", result.ExternalLinks)
	}
	// The pdf is a link but not a page
	if len(result.Links) != 5 {
		t.Errorf("expected 5 distinct http(s) links, got %v", result.Links)
	}
}

func TestParserBaseElement(t *testing.T) {
	t.Parallel()

	parser, err := NewParser("https://example.com/a/b/page.html")
	if err != nil {
		t.Fatal(err)
	}
	result, err := parser.Parse(strings.NewReader(
		`<head><base href="/root/"></head><body><a href="child">Child</a></body>`))
	if err != nil {
		t.Fatal(err)
	}
	if len(result.InternalLinks) != 1 || result.InternalLinks[0] != "https://example.com/root/child" {
		t.Errorf("InternalLinks = %v", result.InternalLinks)
	}
}

func TestResolveURL(t *testing.T) {
	t.Parallel()

	parser, err := NewParser("http://example.com/dir/page")
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		href string
		want string
	}{
		{"", ""},
		{"#section", ""},
		{"mailto:a@example.com", ""},
		{"tel:+100", ""},
		{"ftp://example.com/file", ""},
		{"  other  ", "http://example.com/dir/other"},
		{"../up?q=1#frag", "http://example.com/up?q=1"},
		{"//cdn.example.com/x", "http://cdn.example.com/x"},
	}

	for _, tt := range tests {
		t.Run(tt.href, func(t *testing.T) {
			t.Parallel()

			if got := resolveURL(parser.baseURL, tt.href); got != tt.want {
				t.Errorf("resolveURL(%q) = %q, want %q", tt.href, got, tt.want)
			}
		})
	}
}

// newSite serves pages keyed by path. Unknown paths return 404.
func newSite(t *testing.T, pages map[string]string) *httptest.Server {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := pages[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		if strings.HasSuffix(r.URL.Path, ".json") {
			w.Header().Set("Content-Type", "application/json")
		} else {
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
		}
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server
}

func urls(pages []Page) []string {
	out := make([]string, 0, len(pages))
	for _, p := range pages {
		out = append(out, p.URL)
	}
	return out
}

// TestSpider tests crawling through a markup fetcher.
func TestSpider(t *testing.T) {
	t.Parallel()

	site := map[string]string{
		"/":          `<title>Home</title><a href="/a">A</a><a href="/b">B</a><a href="/missing">Gone</a><a href="/data.json">Data</a>`,
		"/a":         `<title>A</title><a href="/">Home</a><a href="/a/deep">Deep</a>`,
		"/b":         `<title>B</title><a href="/b#frag">Self</a>`,
		"/a/deep":    `<title>Deep</title>`,
		"/data.json": `{"a":1}`,
	}

	t.Run("only the start page at depth 0", func(t *testing.T) {
		t.Parallel()

		server := newSite(t, site)
		spider := NewSpider(markup.NewFetcher(), WithMaxDepth(0), WithDelay(0))

		pages, err := spider.Crawl(t.Context(), server.URL)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(pages) != 1 {
			t.Fatalf("expected 1 page, got %v", urls(pages))
		}
		if pages[0].URL != server.URL+"/" || pages[0].Title != "Home" || pages[0].Depth != 0 {
			t.Errorf("unexpected start page %+v", pages[0])
		}
	})

	t.Run("breadth first within depth", func(t *testing.T) {
		t.Parallel()

		server := newSite(t, site)
		spider := NewSpider(markup.NewFetcher(), WithMaxDepth(1), WithDelay(0))

		pages, err := spider.Crawl(t.Context(), server.URL+"/")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		got := urls(pages)
		want := []string{server.URL + "/", server.URL + "/a", server.URL + "/b"}
		if len(got) != len(want) {
			t.Fatalf("Crawl() = %v, want %v", got, want)
		}
		for i := range want {
			if got[i] != want[i] {
				t.Errorf("Crawl()[%d] = %q, want %q", i, got[i], want[i])
			}
		}

		stats := spider.Stats()
		if stats.PagesVisited != 3 {
			t.Errorf("expected 3 pages visited, got %d", stats.PagesVisited)
		}
	})

	t.Run("deeper crawl", func(t *testing.T) {
		t.Parallel()

		server := newSite(t, site)
		spider := NewSpider(markup.NewFetcher(), WithMaxDepth(2), WithDelay(0))

		pages, err := spider.Crawl(t.Context(), server.URL)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(pages) != 4 {
			t.Fatalf("expected 4 pages, got %v", urls(pages))
		}
		if last := pages[3]; last.URL != server.URL+"/a/deep" || last.Depth != 2 {
			t.Errorf("unexpected deepest page %+v", last)
		}
	})

	t.Run("max pages", func(t *testing.T) {
		t.Parallel()

		server := newSite(t, site)
		spider := NewSpider(markup.NewFetcher(), WithMaxDepth(5), WithMaxPages(2), WithDelay(0))

		pages, err := spider.Crawl(t.Context(), server.URL)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(pages) != 2 {
			t.Errorf("expected 2 pages, got %v", urls(pages))
		}
	})

	t.Run("ignore patterns", func(t *testing.T) {
		t.Parallel()

		server := newSite(t, site)
		spider := NewSpider(markup.NewFetcher(), WithMaxDepth(2), WithDelay(0), WithIgnorePatterns([]string{"/a/*"}))

		pages, err := spider.Crawl(t.Context(), server.URL)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		for _, p := range pages {
			if strings.HasPrefix(p.URL, server.URL+"/a") {
				t.Errorf("ignored page crawled: %s", p.URL)
			}
		}
	})

	t.Run("start page failure", func(t *testing.T) {
		t.Parallel()

		server := newSite(t, site)
		spider := NewSpider(markup.NewFetcher(), WithDelay(0))

		_, err := spider.Crawl(t.Context(), server.URL+"/missing")
		if !errors.Is(err, markup.ErrUnexpectedStatus) {
			t.Errorf("expected ErrUnexpectedStatus, got %v", err)
		}
	})

	t.Run("rejects non-URL start", func(t *testing.T) {
		t.Parallel()

		spider := NewSpider(markup.NewFetcher())
		if _, err := spider.Crawl(t.Context(), "index.html"); err == nil {
			t.Error("expected error for a file target")
		}
	})

	t.Run("cancellation", func(t *testing.T) {
		t.Parallel()

		server := newSite(t, site)
		spider := NewSpider(markup.NewFetcher(), WithMaxDepth(2), WithDelay(time.Hour))

		ctx, cancel := context.WithTimeout(t.Context(), 50*time.Millisecond)
		defer cancel()

		pages, err := spider.Crawl(ctx, server.URL)
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Fatalf("expected deadline exceeded, got %v", err)
		}
		if len(pages) != 1 {
			t.Errorf("expected the start page before the delay, got %v", urls(pages))
		}
	})
}

func TestSpiderReset(t *testing.T) {
	t.Parallel()

	server := newSite(t, map[string]string{"/": `<title>Only</title>`})
	spider := NewSpider(markup.NewFetcher(), WithDelay(0))

	if _, err := spider.Crawl(t.Context(), server.URL); err != nil {
		t.Fatal(err)
	}
	spider.Reset()

	if stats := spider.Stats(); stats.PagesVisited != 0 || stats.URLsQueued != 0 {
		t.Errorf("expected empty stats after Reset, got %+v", stats)
	}
	pages, err := spider.Crawl(t.Context(), server.URL)
	if err != nil {
		t.Fatal(err)
	}
	if len(pages) != 1 {
		t.Errorf("expected the page again after Reset, got %v", urls(pages))
	}
}

func TestIsHTML(t *testing.T) {
	t.Parallel()

	tests := []struct {
		contentType string
		want        bool
	}{
		{"", true},
		{"text/html", true},
		{"text/html; charset=utf-8", true},
		{"application/xhtml+xml", true},
		{"application/json", false},
		{"image/png", false},
		{"not a ; media type ;;", false},
	}

	for _, tt := range tests {
		if got := isHTML(tt.contentType); got != tt.want {
			t.Errorf("isHTML(%q) = %v, want %v", tt.contentType, got, tt.want)
		}
	}
}

// TestMatchPattern tests glob matching of URL paths.
func TestMatchPattern(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		pattern string
		path    string
		want    bool
	}{
		{"admin prefix match", "/admin/*", "/admin/dashboard", true},
		{"admin prefix exact", "/admin/*", "/admin", true},
		{"admin prefix no match", "/admin/*", "/user/profile", false},
		{"admin prefix partial no match", "/admin/*", "/administrator", false},
		{"pdf extension", "*.pdf", "/docs/file.pdf", true},
		{"pdf extension no match", "*.pdf", "/docs/file.txt", false},
		{"exact match", "/logout", "/logout", true},
		{"exact no match", "/logout", "/login", false},
		{"wildcard middle", "/api/v?/users", "/api/v1/users", true},
		{"wildcard middle no match", "/api/v?/users", "/api/v10/users", false},
		{"root path", "/", "/", true},
		{"nested admin", "/admin/*", "/admin/users/edit", true},
		{"last segment", "draft-*", "/blog/draft-1", true},
		{"bad pattern", "[", "/", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := matchPattern(tt.pattern, tt.path); got != tt.want {
				t.Errorf("matchPattern(%q, %q) = %v, want %v", tt.pattern, tt.path, got, tt.want)
			}
		})
	}
}

// TestShouldCrawl tests URL filtering based on patterns.
func TestShouldCrawl(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		opts []SpiderOption
		url  string
		want bool
	}{
		{name: "no patterns", url: "http://example.com/any/path", want: true},
		{name: "ignored", opts: []SpiderOption{WithIgnorePatterns([]string{"/admin/*"})}, url: "http://example.com/admin/x", want: false},
		{name: "not ignored", opts: []SpiderOption{WithIgnorePatterns([]string{"/admin/*"})}, url: "http://example.com/blog", want: true},
		{name: "followed", opts: []SpiderOption{WithFollowPatterns([]string{"/docs/*"})}, url: "http://example.com/docs/a", want: true},
		{name: "not followed", opts: []SpiderOption{WithFollowPatterns([]string{"/docs/*"})}, url: "http://example.com/blog", want: false},
		{
			name: "ignore wins over follow",
			opts: []SpiderOption{
				WithFollowPatterns([]string{"/docs/*"}),
				WithIgnorePatterns([]string{"/docs/old/*"}),
			},
			url:  "http://example.com/docs/old/a",
			want: false,
		},
		{name: "empty path is root", opts: []SpiderOption{WithFollowPatterns([]string{"/"})}, url: "http://example.com", want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			spider := NewSpider(markup.NewFetcher(), tt.opts...)
			if got := spider.shouldCrawl(tt.url); got != tt.want {
				t.Errorf("shouldCrawl(%q) = %v, want %v", tt.url, got, tt.want)
			}
		})
	}
}

func TestIsSameSite(t *testing.T) {
	t.Parallel()

	spider := NewSpider(markup.NewFetcher())

	tests := []struct {
		url  string
		want bool
	}{
		{"http://example.com/page", true},
		{"http://EXAMPLE.com/page", true},
		{"http://example.com:8080/page", false},
		{"http://sub.example.com/page", false},
		{"://bad", false},
	}

	for _, tt := range tests {
		if got := spider.isSameSite("example.com", tt.url); got != tt.want {
			t.Errorf("isSameSite(%q) = %v, want %v", tt.url, got, tt.want)
		}
	}
}
