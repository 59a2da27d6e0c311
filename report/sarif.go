package report

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/Abhishekkr206/WebBaseline/baseline"
)

// Minimal SARIF 2.1.0 document: one run, one rule per tier, one result per
// finding with a physical location. Enough for code hosts to annotate
// files, nothing more.
type (
	sarifLog struct {
		Schema  string     `json:"$schema"`
		Version string     `json:"version"`
		Runs    []sarifRun `json:"runs"`
	}
	sarifRun struct {
		Tool    sarifTool     `json:"tool"`
		Results []sarifResult `json:"results"`
	}
	sarifTool struct {
		Driver sarifDriver `json:"driver"`
	}
	sarifDriver struct {
		Name    string      `json:"name"`
		Version string      `json:"version,omitempty"`
		Rules   []sarifRule `json:"rules"`
	}
	sarifRule struct {
		ID               string       `json:"id"`
		ShortDescription sarifMessage `json:"shortDescription"`
	}
	sarifMessage struct {
		Text string `json:"text"`
	}
	sarifResult struct {
		RuleID    string          `json:"ruleId"`
		Level     string          `json:"level"`
		Message   sarifMessage    `json:"message"`
		Locations []sarifLocation `json:"locations"`
	}
	sarifLocation struct {
		PhysicalLocation sarifPhysical `json:"physicalLocation"`
	}
	sarifPhysical struct {
		ArtifactLocation sarifArtifact `json:"artifactLocation"`
		Region           sarifRegion   `json:"region"`
	}
	sarifArtifact struct {
		URI string `json:"uri"`
	}
	sarifRegion struct {
		StartLine   int `json:"startLine"`
		StartColumn int `json:"startColumn,omitempty"`
		EndColumn   int `json:"endColumn,omitempty"`
	}
)

func sarifRuleID(tier baseline.Tier) string {
	return "baseline/" + tier.String()
}

func sarifLevel(tier baseline.Tier) string {
	switch tier {
	case baseline.TierLimited:
		return "warning"
	case baseline.TierNewly:
		return "note"
	default:
		return "none"
	}
}

func writeSARIF(w io.Writer, rpt *Report) error {
	run := sarifRun{
		Tool: sarifTool{Driver: sarifDriver{
			Name:    rpt.Tool,
			Version: rpt.Version,
			Rules: []sarifRule{
				{ID: sarifRuleID(baseline.TierLimited), ShortDescription: sarifMessage{Text: "Feature has limited availability across core browsers"}},
				{ID: sarifRuleID(baseline.TierNewly), ShortDescription: sarifMessage{Text: "Feature is newly available across core browsers"}},
				{ID: sarifRuleID(baseline.TierWidely), ShortDescription: sarifMessage{Text: "Feature is widely available across core browsers"}},
			},
		}},
		Results: make([]sarifResult, 0, len(rpt.Findings)),
	}
	for _, f := range rpt.Findings {
		run.Results = append(run.Results, sarifResult{
			RuleID:  sarifRuleID(f.Tier),
			Level:   sarifLevel(f.Tier),
			Message: sarifMessage{Text: fmt.Sprintf("%s is Baseline %s (%s)", f.Label(), f.Tier, f.Key)},
			Locations: []sarifLocation{{PhysicalLocation: sarifPhysical{
				ArtifactLocation: sarifArtifact{URI: f.File},
				Region: sarifRegion{
					StartLine:   f.Line,
					StartColumn: f.Column,
					EndColumn:   f.Column + f.Length,
				},
			}}},
		})
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(sarifLog{
		Schema:  "https://json.schemastore.org/sarif-2.1.0.json",
		Version: "2.1.0",
		Runs:    []sarifRun{run},
	})
}
