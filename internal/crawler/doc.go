// Package crawler discovers the pages of a site so they can be validated
// together.
//
// A Spider starts from one URL, captures it through a Capturer (normally
// the same markup.Fetcher used for validation, so per-site cookies and
// headers apply), and follows <a> and <area> links breadth first. Only
// links on the start page's host and port are followed, links to obvious
// non-HTML resources are dropped, and ignore/follow glob patterns narrow
// the walk further.
//
// # Usage
//
//	spider := crawler.NewSpider(fetcher, crawler.WithMaxDepth(2))
//	pages, err := spider.Crawl(ctx, "https://example.com/")
package crawler
