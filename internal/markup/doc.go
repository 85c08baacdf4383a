// Package markup captures the HTML that nucheck submits for validation.
//
// A target is one of:
//   - "-": markup is read from standard input
//   - an http:// or https:// URL: the page is fetched with GET
//   - anything else: a local file path
//
// All sources are converted to UTF-8 using golang.org/x/net/html/charset,
// which honours the Content-Type charset, a byte order mark, or a <meta>
// declaration in the first kilobyte.
//
// # Serialization
//
// With WithSerialize(true) the captured markup is parsed and re-rendered
// as the doctype, a newline and the <html> element. This reproduces what a
// page looks like after a browser has parsed it, including DOM repair.
//
// # Usage
//
//	f := markup.NewFetcher(markup.WithUserAgent("nucheck"))
//	doc, err := f.Capture(ctx, "https://example.com/")
package markup
