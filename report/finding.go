// Package report turns scan results into located findings and renders them
// for people and machines: colored console text, json, SARIF for code
// hosts, JUnit for CI, and markdown summaries.
package report

import (
	"sort"
	"time"

	"github.com/maruel/natural"

	"github.com/Abhishekkr206/WebBaseline/baseline"
	"github.com/Abhishekkr206/WebBaseline/compat"
	"github.com/Abhishekkr206/WebBaseline/misc"
	"github.com/Abhishekkr206/WebBaseline/scan"
)

// Finding is one feature occurrence located in a scanned source.
type Finding struct {
	File      string        `json:"file"`
	Line      int           `json:"line"`
	Column    int           `json:"column"`
	Key       string        `json:"key"`
	FeatureID string        `json:"feature,omitempty"`
	Name      string        `json:"name,omitempty"`
	Tier      baseline.Tier `json:"tier"`
	Text      string        `json:"text"`
	Start     int           `json:"start"`
	Length    int           `json:"length"`
}

// Label is the human name of the finding's feature, falling back to the key.
func (f Finding) Label() string {
	if f.Name != "" {
		return f.Name
	}
	return f.Key
}

// Collect converts the spans of one scanned document into findings with
// line and column positions. The dataset decorates findings with feature
// ids and names; it may be nil. Output is ordered by position in the file,
// with the plain property key sorting before its compound keys when both
// sit on the same span.
func Collect(file, text string, res scan.Result, ds *compat.Dataset) []Finding {
	if res.Empty() {
		return nil
	}
	starts := lineStarts(text)
	findings := make([]Finding, 0, res.Total())
	for _, tier := range baseline.Tiers() {
		for _, span := range res.Bucket(tier) {
			f := Finding{
				File:   file,
				Key:    span.Key,
				Tier:   tier,
				Start:  span.Start,
				Length: span.Length,
			}
			f.Line, f.Column = position(starts, span.Start)
			if end := span.End(); span.Start >= 0 && end <= len(text) && span.Start <= end {
				f.Text = text[span.Start:end]
			}
			if feat, ok := ds.Lookup(span.Key); ok {
				f.FeatureID = feat.ID
				f.Name = feat.Name
			}
			findings = append(findings, f)
		}
	}
	sort.SliceStable(findings, func(i, j int) bool {
		if findings[i].Start != findings[j].Start {
			return findings[i].Start < findings[j].Start
		}
		return findings[i].Key < findings[j].Key
	})
	return findings
}

// Report aggregates the findings of one run together with its metadata.
type Report struct {
	Tool     string        `json:"tool"`
	Version  string        `json:"version"`
	Started  time.Time     `json:"started"`
	Elapsed  time.Duration `json:"elapsed_ns"`
	Dataset  string        `json:"dataset,omitempty"`
	Files    int           `json:"files"`
	Skipped  int           `json:"skipped"`
	Findings []Finding     `json:"findings"`
}

// New creates an empty run report stamped with program identity.
func New(dataset string) *Report {
	return &Report{
		Tool:    misc.GetAppName(),
		Version: misc.GetVersion(),
		Started: time.Now(),
		Dataset: dataset,
	}
}

// Add appends findings to the report.
func (r *Report) Add(findings ...Finding) {
	r.Findings = append(r.Findings, findings...)
}

// Count reports the number of findings in one tier.
func (r *Report) Count(tier baseline.Tier) int {
	n := 0
	for _, f := range r.Findings {
		if f.Tier == tier {
			n++
		}
	}
	return n
}

// Worst returns the narrowest-support tier present among the findings; ok
// is false when there are none.
func (r *Report) Worst() (baseline.Tier, bool) {
	if len(r.Findings) == 0 {
		return baseline.TierWidely, false
	}
	worst := baseline.TierWidely
	for _, f := range r.Findings {
		if f.Tier < worst {
			worst = f.Tier
		}
	}
	return worst, true
}

// Sort orders findings for presentation: files in natural order, positions
// ascending within a file.
func (r *Report) Sort() {
	sort.SliceStable(r.Findings, func(i, j int) bool {
		if r.Findings[i].File != r.Findings[j].File {
			return natural.Less(r.Findings[i].File, r.Findings[j].File)
		}
		if r.Findings[i].Start != r.Findings[j].Start {
			return r.Findings[i].Start < r.Findings[j].Start
		}
		return r.Findings[i].Key < r.Findings[j].Key
	})
}

// files returns distinct file names in presentation order. Call Sort first.
func (r *Report) files() []string {
	var names []string
	last := ""
	for i, f := range r.Findings {
		if i == 0 || f.File != last {
			names = append(names, f.File)
			last = f.File
		}
	}
	return names
}

// byFile returns the findings of one file, assuming sorted order.
func (r *Report) byFile(name string) []Finding {
	var out []Finding
	for _, f := range r.Findings {
		if f.File == name {
			out = append(out, f)
		}
	}
	return out
}

func lineStarts(text string) []int {
	starts := []int{0}
	for i := 0; i < len(text); i++ {
		if text[i] == '\n' {
			starts = append(starts, i+1)
		}
	}
	return starts
}

// position maps a byte offset to 1-based line and column numbers.
func position(starts []int, offset int) (int, int) {
	i := sort.Search(len(starts), func(i int) bool { return starts[i] > offset }) - 1
	if i < 0 {
		i = 0
	}
	return i + 1, offset - starts[i] + 1
}
