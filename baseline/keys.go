package baseline

import "strings"

// Feature keys follow the browser-compat-data dotted naming scheme, e.g.
// "css.properties.display" or "html.elements.dialog".
const (
	cssPropPrefix    = "css.properties."
	htmlElementsPref = "html.elements."
)

// CSSKey derives the feature key for a CSS property. Property case is
// preserved: the dataset itself is lowercase, so mistyped properties simply
// miss the index instead of being papered over.
func CSSKey(property string) string {
	return cssPropPrefix + property
}

// CSSValueKey derives the compound feature key for a property/value pair,
// e.g. ("display", "grid") -> "css.properties.display.grid".
func CSSValueKey(property, value string) string {
	return cssPropPrefix + property + "." + value
}

// HTMLKey derives the feature key for an HTML element. Tag names are
// case-insensitive in HTML, so the key is always lowercased.
func HTMLKey(tag string) string {
	return htmlElementsPref + strings.ToLower(tag)
}
