package report

import (
	"fmt"
	"io"

	"github.com/beevik/etree"

	"github.com/Abhishekkr206/WebBaseline/baseline"
)

// writeJUnit renders the report as a JUnit xml document for CI dashboards:
// one testsuite per scanned file with findings, one testcase per finding.
// Limited-tier findings count as failures, the other tiers pass.
func writeJUnit(w io.Writer, rpt *Report) error {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)

	suites := doc.CreateElement("testsuites")
	suites.CreateAttr("name", rpt.Tool)
	suites.CreateAttr("tests", fmt.Sprintf("%d", len(rpt.Findings)))
	suites.CreateAttr("failures", fmt.Sprintf("%d", rpt.Count(baseline.TierLimited)))
	suites.CreateAttr("time", fmt.Sprintf("%.3f", rpt.Elapsed.Seconds()))

	for _, file := range rpt.files() {
		findings := rpt.byFile(file)
		failures := 0
		for _, f := range findings {
			if f.Tier == baseline.TierLimited {
				failures++
			}
		}

		suite := suites.CreateElement("testsuite")
		suite.CreateAttr("name", file)
		suite.CreateAttr("tests", fmt.Sprintf("%d", len(findings)))
		suite.CreateAttr("failures", fmt.Sprintf("%d", failures))

		for _, f := range findings {
			tc := suite.CreateElement("testcase")
			tc.CreateAttr("name", fmt.Sprintf("%s at %d:%d", f.Key, f.Line, f.Column))
			tc.CreateAttr("classname", file)
			if f.Tier == baseline.TierLimited {
				fail := tc.CreateElement("failure")
				fail.CreateAttr("message", fmt.Sprintf("%s is Baseline limited", f.Label()))
				fail.CreateAttr("type", "baseline/limited")
				fail.SetText(fmt.Sprintf("%s (%s) has limited availability across core browsers", f.Label(), f.Key))
			}
		}
	}

	doc.Indent(2)
	_, err := doc.WriteTo(w)
	return err
}
