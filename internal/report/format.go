package report

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/nao1215/backlinkscan/internal/analysis"
	"github.com/nao1215/backlinkscan/internal/model"
)

// dateLayout is used for every date shown in a report.
const dateLayout = "2006-01-02"

// Toxicity thresholds that raise an alert in the report.
const (
	toxicityCaution = 20.0
	toxicityWarning = 10.0
)

// periodText renders the reporting period.
func periodText(d *Digest) string {
	return d.PeriodStart.UTC().Format(dateLayout) + " to " + d.PeriodEnd.UTC().Format(dateLayout)
}

// trendText renders an authority trend such as "up +3 (12 -> 15)".
func trendText(t analysis.Trend) string {
	switch t.Direction {
	case analysis.DirectionUp:
		return fmt.Sprintf("up +%d (%d -> %d)", t.Delta, t.Previous, t.Current)
	case analysis.DirectionDown:
		return fmt.Sprintf("down %d (%d -> %d)", t.Delta, t.Previous, t.Current)
	default:
		return fmt.Sprintf("flat (%d)", t.Current)
	}
}

// percentText renders a percentage with one decimal.
func percentText(p float64) string {
	return strconv.FormatFloat(p, 'f', 1, 64) + "%"
}

// lastScanText renders the time of the latest scan.
func lastScanText(t *time.Time) string {
	if t == nil {
		return "never"
	}
	return t.UTC().Format("2006-01-02 15:04 MST")
}

// relText lists the rel flags of a link, or "follow".
func relText(rel model.RelFlags) string {
	var parts []string
	if rel.NoFollow {
		parts = append(parts, "nofollow")
	}
	if rel.Sponsored {
		parts = append(parts, "sponsored")
	}
	if rel.UGC {
		parts = append(parts, "ugc")
	}
	if len(parts) == 0 {
		return "follow"
	}
	return strings.Join(parts, ", ")
}

// truncateString truncates a string to maxLen characters with ellipsis.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
