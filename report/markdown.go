package report

import (
	_ "embed"
	"io"
	"text/template"
	"time"

	sprig "github.com/go-task/slim-sprig/v3"
	"github.com/gosimple/slug"

	"github.com/Abhishekkr206/WebBaseline/baseline"
)

//go:embed report.md.tmpl
var markdownTmplText string

var markdownTmpl = template.Must(template.New("markdown").Funcs(markdownFuncs()).Parse(markdownTmplText))

func markdownFuncs() template.FuncMap {
	funcs := sprig.FuncMap()
	// Explicit anchors: markdown hosts disagree on how headings become
	// fragment ids, a generated slug works on all of them.
	funcs["anchor"] = slug.Make
	return funcs
}

type markdownFile struct {
	Name     string
	Findings []Finding
}

type markdownData struct {
	Tool    string
	Version string
	Started time.Time
	Dataset string
	Limited int
	Newly   int
	Widely  int
	Scanned int
	Skipped int
	Files   []markdownFile
}

func writeMarkdown(w io.Writer, rpt *Report) error {
	data := markdownData{
		Tool:    rpt.Tool,
		Version: rpt.Version,
		Started: rpt.Started,
		Dataset: rpt.Dataset,
		Limited: rpt.Count(baseline.TierLimited),
		Newly:   rpt.Count(baseline.TierNewly),
		Widely:  rpt.Count(baseline.TierWidely),
		Scanned: rpt.Files,
		Skipped: rpt.Skipped,
	}
	for _, file := range rpt.files() {
		data.Files = append(data.Files, markdownFile{Name: file, Findings: rpt.byFile(file)})
	}
	return markdownTmpl.Execute(w, data)
}
