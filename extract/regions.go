// Package extract pulls embedded CSS out of HTML documents: the contents of
// style elements and the values of style attributes, each with the byte
// offset where it starts in the host document. Offsets let a caller scan a
// region on its own and then shift results back into host positions.
package extract

import (
	"bytes"
	"strings"

	parse "github.com/tdewolff/parse/v2"
	"github.com/tdewolff/parse/v2/html"
)

// RegionKind tells where in the markup a CSS region came from.
type RegionKind int

const (
	// StyleTag is the text content of a <style> element.
	StyleTag RegionKind = iota
	// StyleAttr is the value of a style="" attribute.
	StyleAttr
)

func (k RegionKind) String() string {
	if k == StyleAttr {
		return "style-attribute"
	}
	return "style-tag"
}

// Region is one stretch of CSS embedded in an HTML document. Offset is the
// byte position of Content's first byte in the original document.
type Region struct {
	Content string
	Offset  int
	Kind    RegionKind
}

// CSSRegions lexes an HTML document and returns its embedded CSS regions in
// document order. Lexing is best-effort: on any lexer error the regions
// collected so far are returned, and style attributes inside foreign
// content (svg, math) are not visited.
func CSSRegions(text string) []Region {
	var (
		regions []Region
		inStyle bool
	)
	input := parse.NewInputString(text)
	l := html.NewLexer(input)
	for {
		tt, data := l.Next()
		switch tt {
		case html.ErrorToken:
			return regions
		case html.StartTagToken:
			inStyle = strings.EqualFold(string(l.Text()), "style")
		case html.StartTagVoidToken, html.EndTagToken:
			inStyle = false
		case html.AttributeToken:
			if !strings.EqualFold(string(l.Text()), "style") {
				continue
			}
			val := l.AttrVal()
			idx := bytes.LastIndex(data, val)
			if len(val) == 0 || idx < 0 {
				continue
			}
			start := input.Offset() - len(data) + idx
			if len(val) > 1 && (val[0] == '"' || val[0] == '\'') {
				val = val[1 : len(val)-1]
				start++
			}
			if len(val) == 0 {
				continue
			}
			regions = append(regions, Region{Content: string(val), Offset: start, Kind: StyleAttr})
		case html.TextToken:
			if inStyle && len(data) > 0 {
				regions = append(regions, Region{
					Content: string(data),
					Offset:  input.Offset() - len(data),
					Kind:    StyleTag,
				})
			}
		}
	}
}
