package subst

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/text/encoding/charmap"
)

// ErrUnknownEol reports an EOL style string that isn't one this package
// understands. It is never raised by the scheduler or file cache, and
// neither DetectEOL nor Translate returns it.
var ErrUnknownEol = errors.New("subst: unknown eol style")

// Result reports what Translate changed, mirroring
// svn_subst_translate_string2's two independent out-flags.
type Result struct {
	Data                  []byte
	TranslatedToUTF8      bool
	TranslatedLineEndings bool
}

// Translate reencodes src from fromCharset into UTF-8 and, if
// normalizeLineEndings is true, rewrites CRLF and bare CR sequences to
// LF. Each of the two transformations independently reports whether it
// actually changed anything, so a caller storing the result can tell
// whether a lossless round-trip was possible.
func Translate(src []byte, fromCharset string, normalizeLineEndings bool) (Result, error) {
	data := src
	var toUTF8 bool

	if !isUTF8Charset(fromCharset) {
		decoded, err := decodeCharset(data, fromCharset)
		if err != nil {
			return Result{}, err
		}
		toUTF8 = !bytes.Equal(decoded, data)
		data = decoded
	}

	var lineEndingsChanged bool
	if normalizeLineEndings {
		normalized := normalizeEOL(data)
		lineEndingsChanged = !bytes.Equal(normalized, data)
		data = normalized
	}

	return Result{
		Data:                  data,
		TranslatedToUTF8:      toUTF8,
		TranslatedLineEndings: lineEndingsChanged,
	}, nil
}

func isUTF8Charset(charset string) bool {
	return strings.EqualFold(charset, "UTF-8") || strings.EqualFold(charset, "UTF8")
}

func decodeCharset(data []byte, charset string) ([]byte, error) {
	switch {
	case strings.EqualFold(charset, "ISO-8859-1"), strings.EqualFold(charset, "Latin1"), strings.EqualFold(charset, "Latin-1"):
		return charmap.ISO8859_1.NewDecoder().Bytes(data)
	default:
		return nil, fmt.Errorf("subst: unsupported source charset %q", charset)
	}
}

// normalizeEOL rewrites CRLF and bare CR into LF.
func normalizeEOL(data []byte) []byte {
	data = bytes.ReplaceAll(data, []byte("\r\n"), []byte("\n"))
	return bytes.ReplaceAll(data, []byte("\r"), []byte("\n"))
}
