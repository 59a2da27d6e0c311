package config

import (
	"fmt"
	"os"

	yaml "gopkg.in/yaml.v3"
)

// ColorMode controls when console output gets ANSI colors.
type ColorMode int

const (
	ColorAuto ColorMode = iota
	ColorAlways
	ColorNever
)

var colorModeNames = []string{"auto", "always", "never"}

func (m ColorMode) String() string {
	if m < 0 || int(m) >= len(colorModeNames) {
		return fmt.Sprintf("ColorMode(%d)", int(m))
	}
	return colorModeNames[m]
}

// ParseColorMode converts a name into a ColorMode.
func ParseColorMode(name string) (ColorMode, error) {
	for i, n := range colorModeNames {
		if n == name {
			return ColorMode(i), nil
		}
	}
	return ColorAuto, fmt.Errorf("%q is not a valid color mode", name)
}

func (m ColorMode) MarshalText() ([]byte, error) {
	if m < 0 || int(m) >= len(colorModeNames) {
		return nil, fmt.Errorf("%d is not a valid color mode", int(m))
	}
	return []byte(m.String()), nil
}

func (m *ColorMode) UnmarshalText(text []byte) error {
	v, err := ParseColorMode(string(text))
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// MarshalYAML marshals ColorMode to YAML by name.
func (m ColorMode) MarshalYAML() (any, error) {
	return m.String(), nil
}

// UnmarshalYAML unmarshals ColorMode from its YAML name.
func (m *ColorMode) UnmarshalYAML(value *yaml.Node) error {
	var name string
	if err := value.Decode(&name); err != nil {
		return err
	}
	return m.UnmarshalText([]byte(name))
}

// ColorModeNames lists the accepted color mode names.
func ColorModeNames() []string {
	return append([]string(nil), colorModeNames...)
}

// Enabled reports whether stream should receive colored output.
func (m ColorMode) Enabled(stream *os.File) bool {
	switch m {
	case ColorAlways:
		return true
	case ColorNever:
		return false
	default:
		return EnableColorOutput(stream)
	}
}

// FailMode picks which finding tiers make a check exit with an error.
type FailMode int

const (
	// FailNever always exits clean.
	FailNever FailMode = iota
	// FailLimited fails when limited-availability features were found.
	FailLimited
	// FailNewly fails on newly available features too.
	FailNewly
	// FailAny fails on any finding at all.
	FailAny
)

var failModeNames = []string{"never", "limited", "newly", "any"}

func (m FailMode) String() string {
	if m < 0 || int(m) >= len(failModeNames) {
		return fmt.Sprintf("FailMode(%d)", int(m))
	}
	return failModeNames[m]
}

// ParseFailMode converts a name into a FailMode.
func ParseFailMode(name string) (FailMode, error) {
	for i, n := range failModeNames {
		if n == name {
			return FailMode(i), nil
		}
	}
	return FailNever, fmt.Errorf("%q is not a valid fail mode", name)
}

func (m FailMode) MarshalText() ([]byte, error) {
	if m < 0 || int(m) >= len(failModeNames) {
		return nil, fmt.Errorf("%d is not a valid fail mode", int(m))
	}
	return []byte(m.String()), nil
}

func (m *FailMode) UnmarshalText(text []byte) error {
	v, err := ParseFailMode(string(text))
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// MarshalYAML marshals FailMode to YAML by name.
func (m FailMode) MarshalYAML() (any, error) {
	return m.String(), nil
}

// UnmarshalYAML unmarshals FailMode from its YAML name.
func (m *FailMode) UnmarshalYAML(value *yaml.Node) error {
	var name string
	if err := value.Decode(&name); err != nil {
		return err
	}
	return m.UnmarshalText([]byte(name))
}

// FailModeNames lists the accepted fail mode names.
func FailModeNames() []string {
	return append([]string(nil), failModeNames...)
}

// Triggered reports whether the given tier counts breach the mode.
func (m FailMode) Triggered(limited, newly, widely int) bool {
	switch m {
	case FailLimited:
		return limited > 0
	case FailNewly:
		return limited+newly > 0
	case FailAny:
		return limited+newly+widely > 0
	default:
		return false
	}
}
