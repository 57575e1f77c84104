package source

import (
	"bytes"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/unicode"
)

// ErrBinary is returned for content that looks like a binary file.
var ErrBinary = errors.New("binary content")

const binarySniffLen = 8 * 1024

var (
	bomUTF8    = []byte{0xEF, 0xBB, 0xBF}
	bomUTF16LE = []byte{0xFF, 0xFE}
	bomUTF16BE = []byte{0xFE, 0xFF}

	// PEP 263 coding declaration.
	codingCookie = regexp.MustCompile(`^[ \t\f]*#.*?coding[:=][ \t]*([-\w.]+)`)
)

// Decode converts raw file bytes to UTF-8. The sequence is: byte order
// marks, the NUL-byte binary check, a coding cookie in the first two lines,
// plain UTF-8, and finally Windows-1252. It returns the decoded text and the
// name of the encoding used.
func Decode(data []byte) ([]byte, string, error) {
	switch {
	case bytes.HasPrefix(data, bomUTF8):
		return data[len(bomUTF8):], "utf-8-sig", nil
	case bytes.HasPrefix(data, bomUTF16LE):
		return transform(unicode.UTF16(unicode.LittleEndian, unicode.ExpectBOM), data, "utf-16-le")
	case bytes.HasPrefix(data, bomUTF16BE):
		return transform(unicode.UTF16(unicode.BigEndian, unicode.ExpectBOM), data, "utf-16-be")
	}

	sniff := data
	if len(sniff) > binarySniffLen {
		sniff = sniff[:binarySniffLen]
	}
	if bytes.IndexByte(sniff, 0) >= 0 {
		return nil, "", ErrBinary
	}

	if name := cookie(data); name != "" && !isUTF8Name(name) {
		if enc := lookup(name); enc != nil {
			return transform(enc, data, name)
		}
	}

	if utf8.Valid(data) {
		return data, "utf-8", nil
	}
	return transform(charmap.Windows1252, data, "windows-1252")
}

func transform(enc encoding.Encoding, data []byte, name string) ([]byte, string, error) {
	out, err := enc.NewDecoder().Bytes(data)
	if err != nil {
		return nil, "", fmt.Errorf("decoding as %s: %w", name, err)
	}
	return out, name, nil
}

// cookie returns the declared encoding from the first two lines, if any.
func cookie(data []byte) string {
	for i := 0; i < 2 && len(data) > 0; i++ {
		line := data
		rest := []byte(nil)
		if j := bytes.IndexByte(data, '\n'); j >= 0 {
			line, rest = data[:j], data[j+1:]
		}
		if m := codingCookie.FindSubmatch(line); m != nil {
			return strings.ToLower(string(m[1]))
		}
		// The cookie may only follow a comment or blank line.
		trimmed := bytes.TrimSpace(line)
		if len(trimmed) > 0 && trimmed[0] != '#' {
			return ""
		}
		data = rest
	}
	return ""
}

func isUTF8Name(name string) bool {
	switch strings.ReplaceAll(name, "_", "-") {
	case "utf-8", "utf8", "utf-8-sig":
		return true
	}
	return false
}

// lookup maps a Python codec name to an encoding. Python spellings such as
// latin-1 or iso_8859_15 are normalized before the WHATWG label lookup.
func lookup(name string) encoding.Encoding {
	name = strings.ReplaceAll(name, "_", "-")
	for _, candidate := range []string{name, strings.ReplaceAll(name, "-", "")} {
		if enc, err := htmlindex.Get(candidate); err == nil {
			return enc
		}
	}
	return nil
}
