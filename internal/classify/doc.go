// Package classify assigns categories to discovered links.
//
// Classification is a pure function of the link's host and rel attributes.
// No network calls are made and the result is deterministic.
//
// # Priority
//
// The primary classifier checks hosts in a fixed order:
//  1. Social networks (host or parent domain in the social list)
//  2. Directory-like hosts (host contains "directory", "listing", "wiki", ...)
//  3. Everything else is editorial
//
// Unparseable links and links without a host fall back to "other".
//
// The display classifier adds a superset (sponsored, ugc, edu, gov, news,
// forum, wiki, ecommerce) used by reports. Rel attributes take priority over
// host rules there.
package classify
