package subtitle

import (
	"io"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Encoding selects the output byte encoding, per spec.md §5's
// `encoding ∈ {Utf8, Utf16Le, Latin1}`.
type Encoding int

const (
	EncodingUTF8 Encoding = iota
	EncodingUTF16LE
	EncodingLatin1
)

var (
	utf8BOM    = []byte{0xEF, 0xBB, 0xBF}
	utf16leBOM = []byte{0xFF, 0xFE}
)

// NewEncodingWriter wraps w so that UTF-8 text written through it is
// transcoded to the chosen Encoding, preceded by the appropriate BOM
// for UTF-8/UTF-16LE; Latin-1 carries no BOM, per spec.md §4.8.
func NewEncodingWriter(w io.Writer, enc Encoding) (io.Writer, error) {
	switch enc {
	case EncodingUTF8:
		if _, err := w.Write(utf8BOM); err != nil {
			return nil, err
		}
		return w, nil
	case EncodingUTF16LE:
		if _, err := w.Write(utf16leBOM); err != nil {
			return nil, err
		}
		enc := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)
		return transform.NewWriter(w, enc.NewEncoder()), nil
	case EncodingLatin1:
		return transform.NewWriter(w, charmap.ISO8859_1.NewEncoder()), nil
	default:
		return w, nil
	}
}
