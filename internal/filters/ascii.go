package filters

import (
	"bytes"
	"encoding/ascii85"
	"encoding/hex"
	"fmt"
)

// ASCIIHexDecode decodes ASCII hexadecimal encoded data.
// Whitespace is ignored, > marks end of data, and an odd final digit is
// treated as if followed by 0.
func ASCIIHexDecode(data []byte) ([]byte, error) {
	digits := make([]byte, 0, len(data))
	for _, c := range data {
		if c == '>' {
			break
		}
		if isWhitespace(c) {
			continue
		}
		digits = append(digits, c)
	}
	if len(digits)%2 != 0 {
		digits = append(digits, '0')
	}
	out := make([]byte, len(digits)/2)
	if _, err := hex.Decode(out, digits); err != nil {
		return nil, fmt.Errorf("invalid hex data: %w", err)
	}
	return out, nil
}

// ASCIIHexEncode encodes data as upper-case hex terminated by >.
func ASCIIHexEncode(data []byte) []byte {
	out := make([]byte, hex.EncodedLen(len(data)), hex.EncodedLen(len(data))+1)
	hex.Encode(out, data)
	return append(bytes.ToUpper(out), '>')
}

// ASCII85Decode decodes ASCII base-85 encoded data. The optional <~ prefix
// and the ~> end marker are honoured; whitespace is ignored.
func ASCII85Decode(data []byte) ([]byte, error) {
	data = bytes.TrimLeft(data, " \t\r\n\f\x00")
	data = bytes.TrimPrefix(data, []byte("<~"))
	if end := bytes.Index(data, []byte("~>")); end >= 0 {
		data = data[:end]
	}
	for _, c := range data {
		if !isWhitespace(c) && (c < '!' || c > 'u') && c != 'z' {
			return nil, fmt.Errorf("invalid ASCII85 character: %q", c)
		}
	}

	out := make([]byte, 4*len(data)+4)
	n, _, err := ascii85.Decode(out, data, true)
	if err != nil {
		return nil, fmt.Errorf("invalid ASCII85 data: %w", err)
	}
	return out[:n], nil
}
