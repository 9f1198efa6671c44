// Package main provides the entry point for the backlinkscan CLI.
//
// backlinkscan crawls sites for outbound links, folds every scan into a
// per-target backlink index and delivers periodic reports.
//
// Usage:
//
//	backlinkscan scan example.com
//	backlinkscan reindex
//	backlinkscan serve
//
// See --help for all available options.
package main

// main is the entry point for backlinkscan.
func main() {
	Execute()
}
