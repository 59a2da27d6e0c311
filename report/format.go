package report

import (
	"fmt"
	"io"

	yaml "gopkg.in/yaml.v3"
)

// Format selects the output renderer for a run report.
type Format int

const (
	FormatText Format = iota
	FormatJSON
	FormatSARIF
	FormatJUnit
	FormatMarkdown
)

var formatNames = map[Format]string{
	FormatText:     "text",
	FormatJSON:     "json",
	FormatSARIF:    "sarif",
	FormatJUnit:    "junit",
	FormatMarkdown: "markdown",
}

func (f Format) String() string {
	if name, ok := formatNames[f]; ok {
		return name
	}
	return fmt.Sprintf("Format(%d)", int(f))
}

// ParseFormat converts a format name back to its value.
func ParseFormat(name string) (Format, error) {
	for f, n := range formatNames {
		if n == name {
			return f, nil
		}
	}
	return FormatText, fmt.Errorf("%s is not a valid report format", name)
}

// MarshalText implements encoding.TextMarshaler.
func (f Format) MarshalText() ([]byte, error) {
	return []byte(f.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (f *Format) UnmarshalText(text []byte) error {
	v, err := ParseFormat(string(text))
	if err != nil {
		return err
	}
	*f = v
	return nil
}

// MarshalYAML marshals Format to YAML by name.
func (f Format) MarshalYAML() (any, error) {
	return f.String(), nil
}

// UnmarshalYAML unmarshals Format from its YAML name.
func (f *Format) UnmarshalYAML(value *yaml.Node) error {
	var name string
	if err := value.Decode(&name); err != nil {
		return err
	}
	return f.UnmarshalText([]byte(name))
}

// Formats lists the known format names for help text.
func Formats() []string {
	return []string{"text", "json", "sarif", "junit", "markdown"}
}

// Write renders the report in this format. The report is sorted first so
// every renderer sees the same presentation order.
func (f Format) Write(w io.Writer, rpt *Report) error {
	rpt.Sort()
	switch f {
	case FormatJSON:
		return writeJSON(w, rpt)
	case FormatSARIF:
		return writeSARIF(w, rpt)
	case FormatJUnit:
		return writeJUnit(w, rpt)
	case FormatMarkdown:
		return writeMarkdown(w, rpt)
	default:
		return writeText(w, rpt, false)
	}
}

// WriteConsole renders the text format with color enabled when the
// destination is known to support it.
func WriteConsole(w io.Writer, rpt *Report, colored bool) error {
	rpt.Sort()
	return writeText(w, rpt, colored)
}
