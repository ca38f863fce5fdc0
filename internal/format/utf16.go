package format

import (
	"fmt"

	"golang.org/x/text/encoding/unicode"
)

var utf16le = unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)

// EncodeUTF16 converts s to UTF-16LE without a byte-order mark.
func EncodeUTF16(s string) ([]byte, error) {
	out, err := utf16le.NewEncoder().Bytes([]byte(s))
	if err != nil {
		return nil, fmt.Errorf("utf16 encode: %w", err)
	}
	return out, nil
}

// DecodeUTF16 converts UTF-16LE bytes back to a Go string.
func DecodeUTF16(b []byte) (string, error) {
	if len(b)%2 != 0 {
		return "", fmt.Errorf("utf16 decode: odd length %d: %w", len(b), ErrTruncated)
	}
	out, err := utf16le.NewDecoder().Bytes(b)
	if err != nil {
		return "", fmt.Errorf("utf16 decode: %w", err)
	}
	return string(out), nil
}
