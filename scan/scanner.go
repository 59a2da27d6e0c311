// Package scan extracts web-platform feature usage from raw HTML and CSS
// text. Extraction is deliberately regex-driven, not parser-driven: the
// declaration and tag patterns over-approximate, and bogus candidates are
// culled by the dataset lookup instead of by syntax awareness. That keeps
// the scanner forgiving on malformed input at the cost of ignoring comments
// and context, which is the intended trade-off. Do not swap the patterns
// for a real parser.
package scan

import (
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/Abhishekkr206/WebBaseline/baseline"
)

// Resolver answers dotted feature-key lookups with nil for unknown keys.
// *compat.Dataset satisfies it.
type Resolver interface {
	Resolve(key string) *baseline.SupportStatus
}

var (
	// Informal "identifier : value ;" shape. Unterminated declarations do
	// not match, so a missing semicolon drops the candidate entirely.
	cssDeclRe = regexp.MustCompile(`([A-Za-z-]+)\s*:\s*([^;]*);`)

	// Opening or closing tag name right after the delimiter.
	htmlTagRe = regexp.MustCompile(`</?([A-Za-z][A-Za-z0-9-]*)`)
)

// Scanner turns document text into tier-bucketed feature spans using a
// Resolver for dataset lookups.
type Scanner struct {
	res Resolver
	log *zap.Logger
}

// NewScanner creates a scanner around the given resolver. Logger may be nil.
func NewScanner(res Resolver, log *zap.Logger) *Scanner {
	if log == nil {
		log = zap.NewNop()
	}
	return &Scanner{res: res, log: log.Named("scanner")}
}

// Scan extracts feature spans from text according to the document language.
// It is a pure function of its arguments: no stored state, no side effects,
// identical calls give identical results. Languages outside the CSS and
// HTML families produce an empty result, as does a nil resolver. Scan never
// fails; every per-candidate problem degrades to skipping that candidate.
func (s *Scanner) Scan(text, languageID string) Result {
	if s.res == nil {
		return Result{}
	}
	switch LanguageFamily(languageID) {
	case FamilyCSS:
		return s.scanCSS(text)
	case FamilyHTML:
		return s.scanHTML(text)
	default:
		return Result{}
	}
}

// scanCSS walks the declaration matches in document order. Each match can
// yield up to two spans, both covering just the property name: the bare
// property key, and a compound property.value key when the trimmed value is
// non-empty. Property case is preserved in the key.
func (s *Scanner) scanCSS(text string) Result {
	var res Result
	for _, m := range cssDeclRe.FindAllStringSubmatchIndex(text, -1) {
		prop := text[m[2]:m[3]]
		span := Span{Start: m[2], Length: m[3] - m[2]}
		s.emit(&res, baseline.CSSKey(prop), span)
		if value := strings.TrimSpace(text[m[4]:m[5]]); value != "" {
			s.emit(&res, baseline.CSSValueKey(prop, value), span)
		}
	}
	return res
}

// scanHTML collects the distinct lowercased tag names in first-appearance
// order, resolves each exactly once, and for every name the dataset knows
// re-scans the text to mark all of its occurrences, opening and closing
// tags alike. Span offsets start right after the < or </ delimiter.
func (s *Scanner) scanHTML(text string) Result {
	var (
		res   Result
		order []string
		seen  = make(map[string]struct{})
	)
	for _, m := range htmlTagRe.FindAllStringSubmatch(text, -1) {
		name := strings.ToLower(m[1])
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		order = append(order, name)
	}
	for _, name := range order {
		key := baseline.HTMLKey(name)
		st := s.res.Resolve(key)
		if st == nil {
			continue
		}
		re, err := regexp.Compile(`(?i)</?(` + regexp.QuoteMeta(name) + `)\b`)
		if err != nil {
			// this should never happen for names produced by htmlTagRe
			s.log.Debug("Tag pattern did not compile", zap.String("tag", name), zap.Error(err))
			continue
		}
		tier := baseline.Classify(st)
		for _, om := range re.FindAllStringSubmatchIndex(text, -1) {
			res.add(tier, Span{Key: key, Start: om[2], Length: om[3] - om[2]})
		}
	}
	return res
}

// emit buckets one span if its key resolves; unknown keys add nothing.
func (s *Scanner) emit(res *Result, key string, span Span) {
	st := s.res.Resolve(key)
	if st == nil {
		return
	}
	span.Key = key
	res.add(baseline.Classify(st), span)
}
