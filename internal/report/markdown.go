package report

import (
	"io"
	"strconv"

	"github.com/nao1215/backlinkscan/internal/analysis"
	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"
)

// MarkdownWriter renders digests as Markdown. It produces the email body.
//
// Design decision: We use the nao1215/markdown library for fluent markdown
// generation, which gives us tables, mermaid charts and GitHub-flavored
// alerts without string templating.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
	}
}

// Write outputs the digest in Markdown format.
func (w *MarkdownWriter) Write(digest *Digest) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, digest)

	if len(digest.Domains) == 0 {
		md.Note("You are not monitoring any domains yet.")
		md.PlainText("")
	}
	for _, dom := range digest.Domains {
		w.writeDomain(md, dom)
	}

	w.writeFooter(md)

	return len(md.String()), md.Build()
}

// writeHeader writes the report title and period table.
func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, digest *Digest) {
	md.H1("Backlink Report")
	md.PlainText("")

	rows := [][]string{
		{"Period", periodText(digest)},
		{"Domains", strconv.Itoa(len(digest.Domains))},
		{"Indexed Links", strconv.Itoa(digest.TotalLinks())},
		{"New Links", strconv.Itoa(digest.TotalNewLinks())},
	}
	if digest.Plan != "" {
		rows = append(rows, []string{"Plan", digest.Plan})
	}

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows:   rows,
	})
	md.PlainText("")
}

// writeDomain writes the section of one monitored domain.
func (w *MarkdownWriter) writeDomain(md *markdown.Markdown, dom DomainDigest) {
	s := dom.Summary

	md.H2(s.Target)
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Metric", "Value"},
		Rows: [][]string{
			{"Indexed Links", strconv.Itoa(s.TotalLinks)},
			{"Referring Domains", strconv.Itoa(s.ReferringDomains)},
			{"Authority Trend", trendText(s.Authority)},
			{"Toxicity", percentText(s.ToxicityPercent)},
			{"Nofollow", percentText(s.NofollowPercent)},
			{"New (" + strconv.Itoa(s.Velocity.WindowDays) + "d)", strconv.Itoa(s.Velocity.New)},
			{"Lost (" + strconv.Itoa(s.Velocity.WindowDays) + "d)", strconv.Itoa(s.Velocity.Lost)},
			{"Last Scan", lastScanText(s.LastScanAt)},
		},
	})
	md.PlainText("")

	w.writeAlert(md, dom)

	if len(s.Categories) > 0 {
		w.writePieChart(md, dom)
	}

	if len(s.TopDomains) > 0 {
		md.H3("Top Referring Domains")
		md.PlainText("")
		rows := make([][]string, len(s.TopDomains))
		for i, d := range s.TopDomains {
			rows[i] = []string{d.Domain, strconv.Itoa(d.Links)}
		}
		md.Table(markdown.TableSet{
			Header: []string{"Domain", "Links"},
			Rows:   rows,
		})
		md.PlainText("")
	}

	w.writeNewLinks(md, dom)
}

// writePieChart writes a mermaid pie chart of the category breakdown.
func (w *MarkdownWriter) writePieChart(md *markdown.Markdown, dom DomainDigest) {
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Links by Category"),
		piechart.WithShowData(true),
	)
	for _, c := range dom.Summary.Categories {
		chart.LabelAndIntValue(c.Label, uint64(c.Count)) //nolint:gosec // counts are non-negative
	}

	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

// writeAlert writes one alert describing the health of the link profile.
func (w *MarkdownWriter) writeAlert(md *markdown.Markdown, dom DomainDigest) {
	s := dom.Summary
	switch {
	case s.TotalLinks == 0:
		md.Note("No backlinks indexed yet. Run a scan to start tracking this domain.")
	case s.ToxicityPercent >= toxicityCaution:
		md.Cautionf("%s of links look toxic. Review them and consider a disavow file.", percentText(s.ToxicityPercent))
	case s.ToxicityPercent >= toxicityWarning:
		md.Warningf("%s of links look toxic.", percentText(s.ToxicityPercent))
	case s.Authority.Direction == analysis.DirectionDown:
		md.Importantf("Referring domains dropped by %d since the previous scan.", -s.Authority.Delta)
	default:
		md.Tip("Link profile looks healthy.")
	}
	md.PlainText("")
}

// writeNewLinks lists links first seen during the period.
func (w *MarkdownWriter) writeNewLinks(md *markdown.Markdown, dom DomainDigest) {
	md.H3("New Links")
	md.PlainText("")

	if dom.NewLinkCount == 0 {
		md.PlainText("No new links this period.")
		md.PlainText("")
		return
	}

	rows := make([][]string, len(dom.NewLinks))
	for i, l := range dom.NewLinks {
		anchor := l.AnchorText
		if anchor == "" {
			anchor = "-"
		}
		rows[i] = []string{
			truncateString(l.LinkingURL, 60),
			truncateString(anchor, 40),
			l.Category.Label(),
			relText(l.Rel),
			l.FirstSeen.UTC().Format(dateLayout),
		}
	}
	md.Table(markdown.TableSet{
		Header: []string{"URL", "Anchor", "Category", "Rel", "First Seen"},
		Rows:   rows,
	})
	md.PlainText("")

	if more := dom.NewLinkCount - len(dom.NewLinks); more > 0 {
		md.PlainTextf("...and %d more.", more)
		md.PlainText("")
	}
}

// writeFooter writes the report footer.
func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainText("*Report generated by [backlinkscan](https://github.com/nao1215/backlinkscan)*")
}
