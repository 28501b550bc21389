package core

import (
	"bytes"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/unicode/norm"
)

// pdfDocDiffs lists the PDFDocEncoding code points that differ from Latin-1.
var pdfDocDiffs = map[byte]rune{
	0x18: '˘', 0x19: 'ˇ', 0x1A: 'ˆ', 0x1B: '˙',
	0x1C: '˝', 0x1D: '˛', 0x1E: '˚', 0x1F: '˜',
	0x80: '•', 0x81: '†', 0x82: '‡', 0x83: '…',
	0x84: '—', 0x85: '–', 0x86: 'ƒ', 0x87: '⁄',
	0x88: '‹', 0x89: '›', 0x8A: '−', 0x8B: '‰',
	0x8C: '„', 0x8D: '“', 0x8E: '”', 0x8F: '‘',
	0x90: '’', 0x91: '‚', 0x92: '™', 0x93: 'ﬁ',
	0x94: 'ﬂ', 0x95: 'Ł', 0x96: 'Œ', 0x97: 'Š',
	0x98: 'Ÿ', 0x99: 'Ž', 0x9A: 'ı', 0x9B: 'ł',
	0x9C: 'œ', 0x9D: 'š', 0x9E: 'ž', 0xA0: '€',
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Text decodes a PDF text string: UTF-16BE when it starts with a byte
// order mark, UTF-8 with a BOM, PDFDocEncoding otherwise. The result is
// NFC normalised.
func (s String) Text() string {
	b := []byte(s)
	switch {
	case len(b) >= 2 && b[0] == 0xFE && b[1] == 0xFF:
		dec := unicode.UTF16(unicode.BigEndian, unicode.ExpectBOM).NewDecoder()
		out, err := dec.Bytes(b)
		if err == nil {
			return norm.NFC.String(string(out))
		}
	case bytes.HasPrefix(b, utf8BOM):
		return norm.NFC.String(string(b[len(utf8BOM):]))
	}

	runes := make([]rune, 0, len(b))
	for _, c := range b {
		if r, ok := pdfDocDiffs[c]; ok {
			runes = append(runes, r)
			continue
		}
		runes = append(runes, rune(c))
	}
	return norm.NFC.String(string(runes))
}

// TextString encodes s as a PDF text string. ASCII text is stored as is;
// anything else becomes UTF-16BE with a byte order mark.
func TextString(s string) String {
	ascii := true
	for i := 0; i < len(s); i++ {
		if s[i] >= 0x80 {
			ascii = false
			break
		}
	}
	if ascii {
		return String(s)
	}
	enc := unicode.UTF16(unicode.BigEndian, unicode.UseBOM).NewEncoder()
	out, err := enc.String(s)
	if err != nil {
		return String(s)
	}
	return String(out)
}
