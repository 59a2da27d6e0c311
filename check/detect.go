// Package check walks sources, scans them for web platform features and
// produces the compatibility report.
package check

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/h2non/filetype"
	"github.com/h2non/filetype/matchers"
	"golang.org/x/net/html/charset"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/encoding/unicode/utf32"

	"github.com/Abhishekkr206/WebBaseline/scan"
)

type srcEncoding int

const (
	encUnknown srcEncoding = iota
	encUTF8
	encUTF16BigEndian
	encUTF16LittleEndian
	encUTF32BigEndian
	encUTF32LittleEndian
)

func isUTF32BigEndianBOM4(data []byte) bool {
	return len(data) >= 4 && data[0] == 0x00 && data[1] == 0x00 && data[2] == 0xFE && data[3] == 0xFF
}

func isUTF32LittleEndianBOM4(data []byte) bool {
	return len(data) >= 4 && data[0] == 0xFF && data[1] == 0xFE && data[2] == 0x00 && data[3] == 0x00
}

func isUTF8BOM3(data []byte) bool {
	return len(data) >= 3 && data[0] == 0xEF && data[1] == 0xBB && data[2] == 0xBF
}

func isUTF16BigEndianBOM2(data []byte) bool {
	return len(data) >= 2 && data[0] == 0xFE && data[1] == 0xFF
}

func isUTF16LittleEndianBOM2(data []byte) bool {
	return len(data) >= 2 && data[0] == 0xFF && data[1] == 0xFE
}

// detectUTF sniffs the byte order mark at the start of buf. UTF-32 marks are
// checked first, an UTF-32LE mark starts with the UTF-16LE one.
func detectUTF(buf []byte) srcEncoding {
	switch {
	case isUTF32BigEndianBOM4(buf):
		return encUTF32BigEndian
	case isUTF32LittleEndianBOM4(buf):
		return encUTF32LittleEndian
	case isUTF8BOM3(buf):
		return encUTF8
	case isUTF16BigEndianBOM2(buf):
		return encUTF16BigEndian
	case isUTF16LittleEndianBOM2(buf):
		return encUTF16LittleEndian
	default:
		return encUnknown
	}
}

// selectReader wraps r with a decoder turning enc into plain UTF-8. The byte
// order mark does not survive the conversion.
func selectReader(r io.Reader, enc srcEncoding) io.Reader {
	switch enc {
	case encUnknown:
		return r
	case encUTF8:
		return unicode.UTF8BOM.NewDecoder().Reader(r)
	case encUTF16BigEndian:
		return unicode.UTF16(unicode.BigEndian, unicode.UseBOM).NewDecoder().Reader(r)
	case encUTF16LittleEndian:
		return unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewDecoder().Reader(r)
	case encUTF32BigEndian:
		return utf32.UTF32(utf32.BigEndian, utf32.UseBOM).NewDecoder().Reader(r)
	case encUTF32LittleEndian:
		return utf32.UTF32(utf32.LittleEndian, utf32.UseBOM).NewDecoder().Reader(r)
	default:
		// this should never happen
		panic("unsupported encoding requested")
	}
}

// languageFor maps a file extension to the scanner language id. Empty means
// no scanner handles the file type.
func languageFor(ext string) string {
	switch strings.ToLower(ext) {
	case ".css":
		return "css"
	case ".scss":
		return "scss"
	case ".less":
		return "less"
	case ".sass":
		return "sass"
	case ".html", ".htm":
		return "html"
	case ".xhtml":
		return "xhtml"
	case ".vue":
		return "vue-html"
	default:
		return ""
	}
}

// isBundleFile sniffs if path is a zip site bundle. The extension gates the
// check, the content signature decides. Only a file we cannot read at all is
// an error, anything else with wrong content is simply not a bundle.
func isBundleFile(path string) (bool, error) {
	if !strings.EqualFold(filepath.Ext(path), ".zip") {
		return false, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer f.Close()

	head := make([]byte, 512)
	n, err := f.Read(head)
	if err != nil && err != io.EOF {
		return false, err
	}

	t, err := filetype.Match(head[:n])
	if err != nil {
		return false, nil
	}
	return t == matchers.TypeZip, nil
}

// isBinary sniffs data for a known binary signature. Text in any supported
// encoding has none, so a match means the extension lies about the content.
func isBinary(data []byte) bool {
	kind, err := filetype.Match(data)
	return err == nil && kind != filetype.Unknown
}

// decodeText converts raw source bytes to UTF-8 text. HTML family documents
// go through standard charset sniffing (byte order mark, then meta
// declarations, windows-1252 as the last resort), style sheets get byte
// order mark handling with UTF-8 assumed otherwise.
func decodeText(data []byte, family scan.Family) (string, error) {
	if family == scan.FamilyHTML {
		r, err := charset.NewReader(bytes.NewReader(data), "")
		if err != nil {
			return "", err
		}
		text, err := io.ReadAll(r)
		if err != nil {
			return "", err
		}
		return string(text), nil
	}

	text, err := io.ReadAll(selectReader(bytes.NewReader(data), detectUTF(data)))
	if err != nil {
		return "", err
	}
	return string(text), nil
}
