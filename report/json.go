package report

import (
	"encoding/json"
	"io"
)

// writeJSON emits the whole report as an indented json document. Tiers
// marshal as their names, elapsed time as nanoseconds.
func writeJSON(w io.Writer, rpt *Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(rpt)
}
