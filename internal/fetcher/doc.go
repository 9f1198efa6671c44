// Package fetcher retrieves HTML pages for the crawler.
//
// Two strategies are provided behind the Fetcher interface:
//   - HTTPFetcher performs a direct GET with browser-like headers.
//   - RenderFetcher asks a headless rendering service for the final DOM
//     so that JavaScript-heavy sites expose their anchors.
//
// Every failure is reported as a *FetchError whose Kind tells callers
// whether the site actively refused the request (blocked) or the attempt
// simply failed (transient). Use errors.Is with ErrBlocked or ErrTransient.
package fetcher
