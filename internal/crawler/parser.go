package crawler

import (
	"io"
	"net/url"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"
)

// maxAnchorTextRunes caps stored anchor text.
const maxAnchorTextRunes = 200

// Parser extracts anchors from HTML content.
//
// Design decision: golang.org/x/net/html is used instead of regular
// expressions because real-world markup is frequently malformed and the
// tokenizer recovers the same tree a browser would.
type Parser struct {
	// baseURL resolves relative hrefs. A <base href> element overrides it.
	baseURL *url.URL
}

// ParseResult is the information extracted from one page.
type ParseResult struct {
	// Title is the text of the <title> element.
	Title string

	// Anchors are the resolved http(s) links in document order.
	Anchors []Anchor
}

// Anchor is a single <a href> element.
type Anchor struct {
	// URL is the absolute link target without fragment.
	URL string

	// Rel is the raw rel attribute.
	Rel string

	// Text is the collapsed visible text, or the alt text of a linked image.
	Text string
}

// NewParser creates a parser that resolves links against baseURL.
func NewParser(baseURL string) (*Parser, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, err
	}
	return &Parser{baseURL: u}, nil
}

// Parse parses HTML content and returns its title and anchors.
func (p *Parser) Parse(content io.Reader) (*ParseResult, error) {
	doc, err := html.Parse(content)
	if err != nil {
		return nil, err
	}

	base := p.baseURL
	if href := findBaseHref(doc); href != "" {
		if u, err := base.Parse(href); err == nil {
			base = u
		}
	}

	result := &ParseResult{Anchors: make([]Anchor, 0)}

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "title":
				if result.Title == "" {
					result.Title = collapseSpace(textOf(n))
				}
			case "a":
				if link := resolveURL(base, getAttr(n, "href")); link != "" {
					result.Anchors = append(result.Anchors, Anchor{
						URL:  link,
						Rel:  getAttr(n, "rel"),
						Text: anchorText(n),
					})
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

// findBaseHref returns the href of the first <base> element.
func findBaseHref(n *html.Node) string {
	if n.Type == html.ElementNode && n.Data == "base" {
		return strings.TrimSpace(getAttr(n, "href"))
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if href := findBaseHref(c); href != "" {
			return href
		}
	}
	return ""
}

// resolveURL resolves href against base. Non-navigational links
// (fragments, javascript:, mailto:, tel:, data:) and non-http(s) schemes
// resolve to "".
func resolveURL(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") {
		return ""
	}

	lower := strings.ToLower(href)
	for _, prefix := range []string{"javascript:", "mailto:", "tel:", "data:"} {
		if strings.HasPrefix(lower, prefix) {
			return ""
		}
	}

	u, err := base.Parse(href)
	if err != nil {
		return ""
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return ""
	}
	if u.Host == "" {
		return ""
	}
	u.Fragment = ""
	u.RawFragment = ""
	return u.String()
}

// anchorText returns the visible text of an anchor, falling back to the alt
// text of images inside it.
func anchorText(n *html.Node) string {
	if text := collapseSpace(textOf(n)); text != "" {
		return truncateRunes(text, maxAnchorTextRunes)
	}

	var alt string
	var find func(*html.Node)
	find = func(c *html.Node) {
		if alt != "" {
			return
		}
		if c.Type == html.ElementNode && c.Data == "img" {
			alt = collapseSpace(getAttr(c, "alt"))
		}
		for cc := c.FirstChild; cc != nil; cc = cc.NextSibling {
			find(cc)
		}
	}
	find(n)
	return truncateRunes(alt, maxAnchorTextRunes)
}

// textOf concatenates all descendant text nodes of n, skipping scripts and styles.
func textOf(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(c *html.Node) {
		switch {
		case c.Type == html.TextNode:
			sb.WriteString(c.Data)
			sb.WriteString(" ")
		case c.Type == html.ElementNode && (c.Data == "script" || c.Data == "style"):
			return
		}
		for cc := c.FirstChild; cc != nil; cc = cc.NextSibling {
			walk(cc)
		}
	}
	walk(n)
	return sb.String()
}

// collapseSpace trims s and replaces every whitespace run with one space.
func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// truncateRunes cuts s to at most limit runes.
func truncateRunes(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return strings.TrimSpace(string(runes[:limit]))
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
