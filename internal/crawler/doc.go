// Package crawler discovers outbound links on a target site.
//
// # Architecture
//
// The Spider walks a site breadth-first from a seed URL. Pages are retrieved
// through a fetcher.Fetcher, so the same traversal works for direct HTTP
// fetches and for rendered pages. Every crawl keeps its own frontier and
// visited set, which makes a Spider safe to share between goroutines.
//
// # Bounds
//
//   - At most maxPages pages are attempted (failed fetches count).
//   - Same-site links are followed only while depth < maxDepth.
//   - At most maxLinks off-site anchors are collected; traversal continues
//     after the cap is reached.
//
// # Failures
//
// A failed page never aborts the crawl. It is recorded in Result.Errors and
// the next frontier entry is processed. When the seed page itself is refused
// by the site, Result.Blocked is set so callers can report a protected site.
//
// # Usage
//
//	spider := crawler.NewSpider(fetcher.NewHTTPFetcher(), crawler.WithMaxDepth(2))
//	result, err := spider.Crawl(ctx, "https://example.com/")
//	links := crawler.Dedupe(result.Links)
package crawler
