package report

import (
	"bytes"
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"

	"github.com/Abhishekkr206/WebBaseline/baseline"
)

var tierPaint = map[baseline.Tier][]color.Attribute{
	baseline.TierLimited: {color.FgRed, color.Bold},
	baseline.TierNewly:   {color.FgYellow},
	baseline.TierWidely:  {color.FgGreen},
}

// writeText renders findings grouped per file with a summary footer, the
// way linters print. Badges are padded before coloring so escape codes do
// not break the column layout.
func writeText(w io.Writer, rpt *Report, colored bool) error {
	paint := func(s string, attrs ...color.Attribute) string {
		if !colored {
			return s
		}
		return color.New(attrs...).Sprint(s)
	}

	var buf bytes.Buffer
	for _, file := range rpt.files() {
		fmt.Fprintln(&buf, paint(file, color.Underline))
		for _, f := range rpt.byFile(file) {
			pos := fmt.Sprintf("%d:%d", f.Line, f.Column)
			badge := paint(fmt.Sprintf("%-8s", f.Tier), tierPaint[f.Tier]...)
			fmt.Fprintf(&buf, "  %-8s %s %-28s %s\n", pos, badge, f.Label(), f.Key)
		}
		fmt.Fprintln(&buf)
	}

	if len(rpt.Findings) == 0 {
		fmt.Fprintf(&buf, "no baseline findings across %d file(s)", rpt.Files)
	} else {
		fmt.Fprintf(&buf, "%s, %s, %s across %d file(s)",
			paint(fmt.Sprintf("%d limited", rpt.Count(baseline.TierLimited)), tierPaint[baseline.TierLimited]...),
			paint(fmt.Sprintf("%d newly", rpt.Count(baseline.TierNewly)), tierPaint[baseline.TierNewly]...),
			paint(fmt.Sprintf("%d widely", rpt.Count(baseline.TierWidely)), tierPaint[baseline.TierWidely]...),
			rpt.Files)
	}
	if rpt.Skipped > 0 {
		fmt.Fprintf(&buf, ", %d skipped", rpt.Skipped)
	}
	if rpt.Elapsed > 0 {
		fmt.Fprintf(&buf, " in %s", rpt.Elapsed.Round(time.Millisecond))
	}
	if rpt.Dataset != "" {
		fmt.Fprintf(&buf, " (dataset: %s)", rpt.Dataset)
	}
	fmt.Fprintln(&buf)

	_, err := w.Write(buf.Bytes())
	return err
}
