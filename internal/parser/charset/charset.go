// Package charset picks the text decoder for operator exports, which come in
// UTF-8, Latin-1 or Windows-1252 without any declaration.
package charset

import (
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

// Pick resolves an encoding name. It returns nil for UTF-8. "auto" (and "")
// chooses Windows-1252 when sample is not valid UTF-8. When truncated is true
// the sample may end mid-rune, so up to UTFMax-1 trailing bytes are forgiven.
func Pick(name string, sample []byte, truncated bool) (encoding.Encoding, error) {
	switch strings.ToLower(strings.ReplaceAll(strings.TrimSpace(name), "_", "-")) {
	case "utf-8", "utf8":
		return nil, nil
	case "latin1", "latin-1", "iso-8859-1", "iso8859-1":
		return charmap.ISO8859_1, nil
	case "windows-1252", "cp1252":
		return charmap.Windows1252, nil
	case "", "auto":
		if utf8.Valid(sample) {
			return nil, nil
		}
		if truncated {
			for i := 1; i < utf8.UTFMax && i < len(sample); i++ {
				if utf8.Valid(sample[:len(sample)-i]) {
					return nil, nil
				}
			}
		}
		return charmap.Windows1252, nil
	default:
		return nil, fmt.Errorf("unsupported encoding %q", name)
	}
}

// NewReader wraps r with enc's decoder. A nil enc returns r unchanged.
func NewReader(r io.Reader, enc encoding.Encoding) io.Reader {
	if enc == nil {
		return r
	}
	return transform.NewReader(r, enc.NewDecoder())
}
