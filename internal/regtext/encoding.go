package regtext

import (
	"errors"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

var errUnsupportedEncoding = errors.New("regtext: unsupported encoding")

// dialect captures what differs between the version 5 and REGEDIT4 formats:
// the header, the file encoding, and how string data inside hex(2)/hex(7)
// values is encoded.
type dialect struct {
	header string
	file   encoding.Encoding // nil writes UTF-8 as-is
	inner  encoding.Encoding // encoding of strings embedded in hex data
	unit   int               // size of the string terminator in bytes
}

func dialectFor(name string) (dialect, error) {
	utf16le := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)
	switch strings.ToUpper(name) {
	case "", EncodingUTF16LE:
		return dialect{
			header: RegFileHeader,
			file:   unicode.UTF16(unicode.LittleEndian, unicode.UseBOM),
			inner:  utf16le,
			unit:   UTF16CodeUnitSize,
		}, nil
	case EncodingUTF8:
		return dialect{header: RegFileHeader, inner: utf16le, unit: UTF16CodeUnitSize}, nil
	case EncodingWindows1252, "CP1252", "ANSI":
		return dialect{
			header: Regedit4Header,
			file:   charmap.Windows1252,
			inner:  charmap.Windows1252,
			unit:   1,
		}, nil
	}
	return dialect{}, errUnsupportedEncoding
}

// encodeFile converts the UTF-8 rendering to the dialect's file encoding.
// Characters the code page cannot represent become '?'.
func (d dialect) encodeFile(text string) ([]byte, error) {
	if d.file == nil {
		return []byte(text), nil
	}
	out, _, err := transform.Bytes(d.file.NewEncoder(), []byte(d.representable(text)))
	return out, err
}

// zeroTerminated encodes s for embedding in hex data, followed by a
// terminator of one code unit.
func (d dialect) zeroTerminated(s string) ([]byte, error) {
	b, _, err := transform.Bytes(d.inner.NewEncoder(), []byte(d.representable(s)))
	if err != nil {
		return nil, err
	}
	return append(b, make([]byte, d.unit)...), nil
}

// representable substitutes '?' for runes the ANSI code page lacks, which
// is what regedit writes for them.
func (d dialect) representable(s string) string {
	if d.inner != charmap.Windows1252 {
		return strings.ToValidUTF8(s, "\uFFFD")
	}
	return strings.Map(func(r rune) rune {
		if _, ok := charmap.Windows1252.EncodeRune(r); !ok {
			return '?'
		}
		return r
	}, s)
}
