package markup

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html/charset"
	"golang.org/x/text/encoding"
)

// StdinTarget is the target name that reads markup from standard input.
const StdinTarget = "-"

// DefaultMaxBodySize bounds how much markup is read from any source.
const DefaultMaxBodySize = 10 * 1024 * 1024

// Errors returned by Capture.
var (
	// ErrEmptyTarget is returned for a blank target.
	ErrEmptyTarget = errors.New("empty target")

	// ErrUnexpectedStatus is returned when a page fetch does not return 2xx.
	ErrUnexpectedStatus = errors.New("unexpected HTTP status")

	// ErrBodyTooLarge is returned when a source holds more than the
	// configured maximum body size.
	ErrBodyTooLarge = errors.New("markup exceeds the maximum body size")
)

// SourceKind tells where a target's markup comes from.
type SourceKind int

const (
	// SourceFile reads a local file.
	SourceFile SourceKind = iota
	// SourceURL fetches an http or https URL.
	SourceURL
	// SourceStdin reads standard input.
	SourceStdin
)

// String returns the lowercase name of the source kind.
func (k SourceKind) String() string {
	switch k {
	case SourceURL:
		return "url"
	case SourceStdin:
		return "stdin"
	default:
		return "file"
	}
}

// KindOf classifies a target.
func KindOf(target string) SourceKind {
	if target == StdinTarget {
		return SourceStdin
	}
	lower := strings.ToLower(target)
	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
		return SourceURL
	}
	return SourceFile
}

// Site holds per-site request settings for URL targets.
type Site struct {
	// Cookie is sent as the Cookie header when non-empty.
	Cookie string

	// Headers are extra request headers.
	Headers map[string]string
}

// SiteResolver returns the request settings for a host.
type SiteResolver func(host string) Site

// Document is the captured markup of one target.
type Document struct {
	// Target is the target as given by the user.
	Target string

	// Source is where the markup came from.
	Source SourceKind

	// Markup is the UTF-8 markup that will be submitted.
	Markup string

	// Title is the text of the first <title> element, if any.
	Title string

	// ContentType is the response content type for URL targets.
	ContentType string
}

// Fetcher captures markup from URLs, files or standard input.
type Fetcher struct {
	// client performs URL fetches.
	client *http.Client

	// userAgent is sent with URL fetches.
	userAgent string

	// maxBodySize limits the bytes read from any source.
	maxBodySize int64

	// serialize re-renders the parsed document before submission.
	serialize bool

	// stdin is read for the "-" target.
	stdin io.Reader

	// sites supplies cookies and headers per host.
	sites SiteResolver
}

// FetcherOption configures a Fetcher.
type FetcherOption func(*Fetcher)

// WithHTTPClient sets the client used for URL targets.
func WithHTTPClient(c *http.Client) FetcherOption {
	return func(f *Fetcher) {
		f.client = c
	}
}

// WithUserAgent sets the User-Agent header for URL targets.
func WithUserAgent(ua string) FetcherOption {
	return func(f *Fetcher) {
		f.userAgent = ua
	}
}

// WithMaxBodySize sets the read limit. Values <= 0 keep the default.
func WithMaxBodySize(size int64) FetcherOption {
	return func(f *Fetcher) {
		if size > 0 {
			f.maxBodySize = size
		}
	}
}

// WithSerialize enables re-serialization through the HTML parser.
func WithSerialize(enabled bool) FetcherOption {
	return func(f *Fetcher) {
		f.serialize = enabled
	}
}

// WithStdin sets the reader used for the "-" target.
func WithStdin(r io.Reader) FetcherOption {
	return func(f *Fetcher) {
		f.stdin = r
	}
}

// WithSites sets the per-host settings lookup.
func WithSites(resolve SiteResolver) FetcherOption {
	return func(f *Fetcher) {
		f.sites = resolve
	}
}

// NewFetcher creates a Fetcher.
func NewFetcher(opts ...FetcherOption) *Fetcher {
	f := &Fetcher{
		client:      &http.Client{},
		maxBodySize: DefaultMaxBodySize,
		stdin:       os.Stdin,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Capture reads the markup for target.
//
// The result is always UTF-8. When serialization is enabled the markup is
// the doctype followed by the re-rendered <html> element, which is what a
// browser would hand over after its own parse.
func (f *Fetcher) Capture(ctx context.Context, target string) (*Document, error) {
	if strings.TrimSpace(target) == "" {
		return nil, ErrEmptyTarget
	}

	doc := &Document{Target: target, Source: KindOf(target)}

	var (
		raw []byte
		err error
	)
	switch doc.Source {
	case SourceStdin:
		raw, err = f.read(f.stdin, "")
		if err != nil {
			return nil, fmt.Errorf("failed to read standard input: %w", err)
		}
	case SourceURL:
		raw, doc.ContentType, err = f.fetch(ctx, target)
		if err != nil {
			return nil, err
		}
	default:
		raw, err = f.readFile(target)
		if err != nil {
			return nil, err
		}
	}

	doc.Markup = string(raw)
	doc.Title = Title(doc.Markup)

	if f.serialize {
		serialized, err := Serialize(doc.Markup)
		if err != nil {
			return nil, err
		}
		doc.Markup = serialized
	}

	return doc, nil
}

// fetch GETs a page and returns its body converted to UTF-8.
func (f *Fetcher) fetch(ctx context.Context, target string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, "", fmt.Errorf("invalid target URL: %w", err)
	}

	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}
	if f.sites != nil {
		site := f.sites(hostOf(target))
		if site.Cookie != "" {
			req.Header.Set("Cookie", site.Cookie)
		}
		for k, v := range site.Headers {
			req.Header.Set(k, v)
		}
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("failed to fetch %s: %w", target, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, "", fmt.Errorf("%w: %s returned %s", ErrUnexpectedStatus, target, resp.Status)
	}

	contentType := resp.Header.Get("Content-Type")
	body, err := f.read(resp.Body, contentType)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read %s: %w", target, err)
	}
	return body, contentType, nil
}

// readFile reads a local file as markup.
func (f *Fetcher) readFile(path string) ([]byte, error) {
	file, err := os.Open(path) //nolint:gosec // User-provided target path is intentional
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer file.Close()

	body, err := f.read(file, "")
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return body, nil
}

// read reads at most maxBodySize bytes and converts them to UTF-8.
//
// A BOM or a charset in contentType decides the encoding. Otherwise a body
// that is valid UTF-8 as a whole is taken as UTF-8, and only other bodies
// fall back to the <meta> prescan of the first 1024 bytes.
func (f *Fetcher) read(r io.Reader, contentType string) ([]byte, error) {
	raw, err := io.ReadAll(io.LimitReader(r, f.maxBodySize+1))
	if err != nil {
		return nil, err
	}
	if int64(len(raw)) > f.maxBodySize {
		return nil, fmt.Errorf("%w (%d bytes)", ErrBodyTooLarge, f.maxBodySize)
	}

	enc, _, certain := charset.DetermineEncoding(raw, contentType)
	if !certain && utf8.Valid(raw) {
		return raw, nil
	}
	if enc == encoding.Nop {
		return raw, nil
	}
	return enc.NewDecoder().Bytes(raw)
}

// hostOf returns the lowercase host of a URL target, without port.
func hostOf(target string) string {
	u, err := url.Parse(target)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}

// NormalizeTarget returns a canonical form of target for history lookups.
// URLs lose their fragment and get a lowercase scheme and host with "/" for
// an empty path. Other targets are returned unchanged.
func NormalizeTarget(target string) string {
	if KindOf(target) != SourceURL {
		return target
	}
	u, err := url.Parse(target)
	if err != nil {
		return target
	}
	u.Fragment = ""
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	if u.Path == "" {
		u.Path = "/"
	}
	return u.String()
}
