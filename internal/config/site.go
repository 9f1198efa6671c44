package config

import (
	"maps"

	"github.com/nao1215/backlinkscan/internal/crawler"
	"github.com/nao1215/backlinkscan/internal/fetcher"
)

// SiteConfig holds site-specific configuration for a single target domain.
// This allows customizing crawl behavior per site, for example a cookie
// that skips a consent wall.
type SiteConfig struct {
	// Cookie is an HTTP cookie to use when crawling this site.
	// Format: "name=value" or "name1=value1; name2=value2"
	Cookie string `yaml:"cookie,omitempty"`

	// Headers are custom HTTP headers to include in requests to this site.
	Headers map[string]string `yaml:"headers,omitempty"`

	// Depth overrides the global crawl depth for this site unless --depth
	// was given explicitly. If zero, the global CrawlDepth is used.
	Depth int `yaml:"depth,omitempty"`

	// IgnorePatterns are URL patterns to skip during crawling.
	// Patterns are matched against the URL path using glob syntax.
	IgnorePatterns []string `yaml:"ignorePatterns,omitempty"`

	// FollowPatterns are URL patterns to follow during crawling.
	// If specified, only URLs matching these patterns are crawled.
	FollowPatterns []string `yaml:"followPatterns,omitempty"`
}

// HasTransportSettings reports whether the site needs its own HTTP client.
func (sc SiteConfig) HasTransportSettings() bool {
	return sc.Cookie != "" || len(sc.Headers) > 0
}

// GetSiteConfig returns the configuration for a specific domain.
// It merges the site-specific configuration with defaults.
// A nil File yields an empty SiteConfig.
func (cf *File) GetSiteConfig(domain string) SiteConfig {
	if cf == nil {
		return SiteConfig{}
	}

	result := cf.Defaults
	if cf.Defaults.Headers != nil {
		result.Headers = maps.Clone(cf.Defaults.Headers)
	}

	if siteConfig, ok := cf.Sites[domain]; ok {
		if siteConfig.Cookie != "" {
			result.Cookie = siteConfig.Cookie
		}
		if siteConfig.Depth != 0 {
			result.Depth = siteConfig.Depth
		}
		if len(siteConfig.Headers) > 0 {
			if result.Headers == nil {
				result.Headers = make(map[string]string)
			}
			maps.Copy(result.Headers, siteConfig.Headers)
		}
		if len(siteConfig.IgnorePatterns) > 0 {
			result.IgnorePatterns = siteConfig.IgnorePatterns
		}
		if len(siteConfig.FollowPatterns) > 0 {
			result.FollowPatterns = siteConfig.FollowPatterns
		}
	}

	return result
}

// CrawlDepthFor returns the link depth for domain. An explicit --depth wins,
// then the site entry, then the file defaults, then the flag default.
func (c *Config) CrawlDepthFor(domain string) int {
	if c.CrawlDepthSet {
		return c.CrawlDepth
	}
	if depth := c.File.GetSiteConfig(domain).Depth; depth != 0 {
		return depth
	}
	return c.CrawlDepth
}

// SpiderOptions returns the crawl settings for domain: global bounds from
// c, overridden by the site configuration.
func (c *Config) SpiderOptions(domain string) []crawler.SpiderOption {
	site := c.File.GetSiteConfig(domain)

	opts := []crawler.SpiderOption{
		crawler.WithMaxDepth(c.CrawlDepthFor(domain)),
		crawler.WithMaxPages(c.MaxPages),
		crawler.WithMaxLinks(c.MaxLinks),
		crawler.WithDelay(c.CrawlDelay),
	}
	if len(site.IgnorePatterns) > 0 {
		opts = append(opts, crawler.WithIgnorePatterns(site.IgnorePatterns))
	}
	if len(site.FollowPatterns) > 0 {
		opts = append(opts, crawler.WithFollowPatterns(site.FollowPatterns))
	}
	return opts
}

// ClientConfig returns the HTTP client settings for domain: the egress
// proxy from the environment plus the site's cookie and headers.
func (c *Config) ClientConfig(domain string) fetcher.ClientConfig {
	site := c.File.GetSiteConfig(domain)
	return fetcher.ClientConfig{
		Proxy:   c.Env.Proxy,
		Site:    domain,
		Cookie:  site.Cookie,
		Headers: site.Headers,
	}
}
