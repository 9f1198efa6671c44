package report

import (
	"fmt"
	"io"
	"strings"
)

// SimpleWriter outputs human-readable text digests for terminal display.
//
// Design decision: We use plain text with ASCII formatting rather than
// ANSI colors so the output can be piped to files or other tools.
type SimpleWriter struct {
	baseWriter

	// verbose lists every new link instead of the count only.
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithVerbose enables the new-link listing.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{
		baseWriter: newBaseWriter(output),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Write outputs the digest in human-readable format.
func (w *SimpleWriter) Write(digest *Digest) (int, error) {
	var sb strings.Builder

	w.writeHeader(&sb, digest)
	for _, dom := range digest.Domains {
		w.writeDomain(&sb, dom)
	}
	if len(digest.Domains) == 0 {
		sb.WriteString("No monitored domains.\n\n")
	}
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")

	return io.WriteString(w.output, sb.String())
}

// writeHeader writes the report header with period information.
func (w *SimpleWriter) writeHeader(sb *strings.Builder, digest *Digest) {
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("                          BACKLINK REPORT\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n\n")

	fmt.Fprintf(sb, "Period:         %s\n", periodText(digest))
	fmt.Fprintf(sb, "Domains:        %d\n", len(digest.Domains))
	fmt.Fprintf(sb, "Indexed Links:  %d\n", digest.TotalLinks())
	fmt.Fprintf(sb, "New Links:      %d\n", digest.TotalNewLinks())
	sb.WriteString("\n")
}

// writeDomain writes the section of one domain.
func (w *SimpleWriter) writeDomain(sb *strings.Builder, dom DomainDigest) {
	s := dom.Summary

	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	fmt.Fprintf(sb, "%s\n", strings.ToUpper(s.Target))
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")

	fmt.Fprintf(sb, "  Indexed Links:      %d\n", s.TotalLinks)
	fmt.Fprintf(sb, "  Referring Domains:  %d\n", s.ReferringDomains)
	fmt.Fprintf(sb, "  Authority Trend:    %s\n", trendText(s.Authority))
	fmt.Fprintf(sb, "  Toxicity:           %s\n", percentText(s.ToxicityPercent))
	fmt.Fprintf(sb, "  Nofollow:           %s\n", percentText(s.NofollowPercent))
	fmt.Fprintf(sb, "  Velocity (%dd):     +%d / -%d (%.1f per day)\n",
		s.Velocity.WindowDays, s.Velocity.New, s.Velocity.Lost, s.Velocity.PerDay)
	fmt.Fprintf(sb, "  Last Scan:          %s\n", lastScanText(s.LastScanAt))

	if len(s.Categories) > 0 {
		sb.WriteString("\n  Categories:\n")
		for _, c := range s.Categories {
			fmt.Fprintf(sb, "    %-14s %d\n", c.Label+":", c.Count)
		}
	}

	if len(s.TopDomains) > 0 {
		sb.WriteString("\n  Top Referring Domains:\n")
		for _, d := range s.TopDomains {
			fmt.Fprintf(sb, "    %-40s %d\n", truncateString(d.Domain, 40), d.Links)
		}
	}

	if w.verbose && len(dom.NewLinks) > 0 {
		sb.WriteString("\n  New Links:\n")
		for _, l := range dom.NewLinks {
			fmt.Fprintf(sb, "    %s [%s, %s]\n", l.LinkingURL, l.Category.Label(), relText(l.Rel))
		}
		if more := dom.NewLinkCount - len(dom.NewLinks); more > 0 {
			fmt.Fprintf(sb, "    ...and %d more\n", more)
		}
	}
	sb.WriteString("\n")
}
