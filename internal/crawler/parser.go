package crawler

import (
	"io"
	"net/url"
	"path"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// skippedExtensions are link suffixes that never point at an HTML document.
var skippedExtensions = map[string]bool{
	".css": true, ".js": true, ".mjs": true, ".json": true, ".xml": true, ".txt": true,
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".svg": true, ".webp": true, ".ico": true, ".avif": true,
	".pdf": true, ".zip": true, ".gz": true, ".tar": true, ".dmg": true, ".exe": true,
	".mp3": true, ".mp4": true, ".webm": true, ".ogg": true, ".wav": true,
	".woff": true, ".woff2": true, ".ttf": true, ".otf": true,
}

// Parser extracts the links of an HTML document.
type Parser struct {
	// baseURL is the URL of the page being parsed, used for resolving relative URLs.
	baseURL *url.URL
}

// ParseResult contains the links found in one document.
type ParseResult struct {
	// Links contains every resolved http(s) link, in document order.
	Links []string

	// InternalLinks are links to the same host and port that may be HTML.
	InternalLinks []string

	// ExternalLinks are links to other hosts.
	ExternalLinks []string
}

// NewParser creates a new HTML parser with the given base URL.
// The base URL is used to resolve relative links.
func NewParser(baseURL string) (*Parser, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, err
	}
	return &Parser{baseURL: u}, nil
}

// Parse reads the document and collects <a> and <area> links.
// A <base href> before the first link changes how later links resolve.
func (p *Parser) Parse(content io.Reader) (*ParseResult, error) {
	doc, err := html.Parse(content)
	if err != nil {
		return nil, err
	}

	result := &ParseResult{
		Links:         make([]string, 0),
		InternalLinks: make([]string, 0),
		ExternalLinks: make([]string, 0),
	}
	seen := make(map[string]bool)
	base := p.baseURL

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.DataAtom {
			case atom.Base:
				if href := getAttr(n, "href"); href != "" {
					if u, err := url.Parse(strings.TrimSpace(href)); err == nil {
						base = p.baseURL.ResolveReference(u)
					}
				}
			case atom.A, atom.Area:
				if hasRel(n, "nofollow") || hasAttr(n, "download") {
					break
				}
				link := resolveURL(base, getAttr(n, "href"))
				if link != "" && !seen[link] {
					seen[link] = true
					result.Links = append(result.Links, link)
					p.classifyLink(link, result)
				}
			}
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	return result, nil
}

// resolveURL resolves href against base and drops the fragment.
// Links that are not http(s) resolve to "".
func resolveURL(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") {
		return ""
	}

	u, err := url.Parse(href)
	if err != nil {
		return ""
	}

	resolved := base.ResolveReference(u)
	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return ""
	}
	resolved.Fragment = ""
	resolved.RawFragment = ""
	return resolved.String()
}

// classifyLink sorts link into internal or external.
func (p *Parser) classifyLink(link string, result *ParseResult) {
	u, err := url.Parse(link)
	if err != nil {
		return
	}

	if !strings.EqualFold(u.Host, p.baseURL.Host) {
		result.ExternalLinks = append(result.ExternalLinks, link)
		return
	}
	if skippedExtensions[strings.ToLower(path.Ext(u.Path))] {
		return
	}
	result.InternalLinks = append(result.InternalLinks, link)
}

// getAttr retrieves an attribute value from an HTML node.
func getAttr(n *html.Node, key string) string {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val
		}
	}
	return ""
}

func hasAttr(n *html.Node, key string) bool {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return true
		}
	}
	return false
}

// hasRel reports whether the space-separated rel attribute holds value.
func hasRel(n *html.Node, value string) bool {
	for _, rel := range strings.Fields(strings.ToLower(getAttr(n, "rel"))) {
		if rel == value {
			return true
		}
	}
	return false
}
