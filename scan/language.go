package scan

import "strings"

// Family selects which extraction pass applies to a document language.
type Family int

const (
	// FamilyNone disables extraction, the scan yields nothing.
	FamilyNone Family = iota
	// FamilyCSS runs the declaration pass.
	FamilyCSS
	// FamilyHTML runs the tag pass.
	FamilyHTML
)

func (f Family) String() string {
	switch f {
	case FamilyCSS:
		return "css"
	case FamilyHTML:
		return "html"
	default:
		return "none"
	}
}

// CSS dialects share the declaration syntax closely enough for the informal
// pass to work on them. This is a closed set: fringe dialects with diverging
// syntax (stylus and friends) stay out.
var cssLanguages = map[string]struct{}{
	"css":  {},
	"scss": {},
	"less": {},
	"sass": {},
}

// LanguageFamily maps an editor-style language id to its extraction family.
// Anything with "html" in the id counts as HTML so templating flavors like
// "vue-html" scan too; CSS membership is exact.
func LanguageFamily(languageID string) Family {
	if _, ok := cssLanguages[languageID]; ok {
		return FamilyCSS
	}
	if strings.Contains(languageID, "html") {
		return FamilyHTML
	}
	return FamilyNone
}
