// Package editor reads and writes paper sources on disk: encoding
// detection and conversion, and timestamped backups before overwrites.
package editor

import (
	"bytes"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/encoding/unicode"

	"latex-workbench/internal/logger"
	"latex-workbench/internal/types"
)

// Encoding names. EncodingAuto only accepts UTF-8 (with or without BOM) and
// BOM-marked UTF-16; anything else must be configured explicitly.
const (
	EncodingAuto    = "auto"
	EncodingUTF8    = "utf-8"
	EncodingUTF8BOM = "utf-8-bom"
	EncodingGBK     = "gbk"
	EncodingUTF16LE = "utf-16le"
	EncodingUTF16BE = "utf-16be"
	EncodingUnknown = "unknown"
)

var (
	bomUTF8    = []byte{0xEF, 0xBB, 0xBF}
	bomUTF16LE = []byte{0xFF, 0xFE}
	bomUTF16BE = []byte{0xFE, 0xFF}
)

// ParseEncoding normalises a configured encoding name.
func ParseEncoding(name string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", EncodingAuto:
		return EncodingAuto, nil
	case EncodingUTF8, "utf8":
		return EncodingUTF8, nil
	case EncodingUTF8BOM:
		return EncodingUTF8BOM, nil
	case EncodingGBK, "gb2312", "gb18030":
		return EncodingGBK, nil
	case EncodingUTF16LE:
		return EncodingUTF16LE, nil
	case EncodingUTF16BE:
		return EncodingUTF16BE, nil
	default:
		return "", types.NewAppErrorWithDetails(types.ErrConfig, "unsupported encoding", name, nil)
	}
}

// EncodingHandler converts between on-disk bytes and UTF-8 text.
type EncodingHandler struct {
	preferred string
}

// NewEncodingHandler creates a handler for the configured encoding name.
func NewEncodingHandler(preferred string) (*EncodingHandler, error) {
	enc, err := ParseEncoding(preferred)
	if err != nil {
		return nil, err
	}
	return &EncodingHandler{preferred: enc}, nil
}

// Preferred returns the configured encoding.
func (h *EncodingHandler) Preferred() string {
	return h.preferred
}

// Detect guesses the encoding of data. Used for reporting; Decode never
// acts on a GBK guess unless GBK is configured.
func Detect(data []byte) string {
	switch {
	case bytes.HasPrefix(data, bomUTF8):
		return EncodingUTF8BOM
	case bytes.HasPrefix(data, bomUTF16LE):
		return EncodingUTF16LE
	case bytes.HasPrefix(data, bomUTF16BE):
		return EncodingUTF16BE
	case utf8.Valid(data):
		return EncodingUTF8
	case isValidGBK(data):
		return EncodingGBK
	}
	return EncodingUnknown
}

func isValidGBK(data []byte) bool {
	decoded, err := simplifiedchinese.GBK.NewDecoder().Bytes(data)
	if err != nil {
		return false
	}
	return utf8.Valid(decoded) && !bytes.ContainsRune(decoded, utf8.RuneError)
}

// Decode converts data to text and reports the encoding it was read as.
func (h *EncodingHandler) Decode(data []byte) (string, string, error) {
	enc := h.preferred
	if enc == EncodingAuto {
		switch detected := Detect(data); detected {
		case EncodingUTF8, EncodingUTF8BOM, EncodingUTF16LE, EncodingUTF16BE:
			enc = detected
		default:
			logger.Warn("document is not valid UTF-8", logger.String("detected", detected))
			return "", "", types.NewAppErrorWithDetails(types.ErrEncoding,
				"document is not valid UTF-8",
				fmt.Sprintf("detected %s, set the encoding explicitly", detected), nil)
		}
	}

	switch enc {
	case EncodingUTF8, EncodingUTF8BOM:
		data = bytes.TrimPrefix(data, bomUTF8)
		if !utf8.Valid(data) {
			return "", "", types.NewAppError(types.ErrEncoding, "document is not valid UTF-8", nil)
		}
		return string(data), enc, nil
	}

	text, err := codec(enc).NewDecoder().Bytes(data)
	if err != nil {
		return "", "", types.NewAppErrorWithDetails(types.ErrEncoding, "failed to decode document", enc, err)
	}
	return string(text), enc, nil
}

// Encode converts text to bytes in enc.
func (h *EncodingHandler) Encode(text, enc string) ([]byte, error) {
	switch enc {
	case EncodingUTF8:
		return []byte(text), nil
	case EncodingUTF8BOM:
		return append(append([]byte{}, bomUTF8...), text...), nil
	case EncodingGBK, EncodingUTF16LE, EncodingUTF16BE:
		data, err := codec(enc).NewEncoder().Bytes([]byte(text))
		if err != nil {
			return nil, types.NewAppErrorWithDetails(types.ErrEncoding, "failed to encode document", enc, err)
		}
		return data, nil
	}
	return nil, types.NewAppErrorWithDetails(types.ErrEncoding, "unsupported encoding", enc, nil)
}

// TargetEncoding picks the encoding to write with: the configured one, or
// when automatic, whatever the existing file was read as.
func (h *EncodingHandler) TargetEncoding(existing []byte) string {
	if h.preferred != EncodingAuto {
		return h.preferred
	}
	switch detected := Detect(existing); detected {
	case EncodingUTF8BOM, EncodingUTF16LE, EncodingUTF16BE:
		return detected
	}
	return EncodingUTF8
}

func codec(enc string) encoding.Encoding {
	switch enc {
	case EncodingGBK:
		return simplifiedchinese.GBK
	case EncodingUTF16LE:
		return unicode.UTF16(unicode.LittleEndian, unicode.UseBOM)
	case EncodingUTF16BE:
		return unicode.UTF16(unicode.BigEndian, unicode.UseBOM)
	}
	return unicode.UTF8
}
