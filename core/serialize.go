package core

import (
	"io"
	"math"
	"strconv"
)

// AppendObject appends the PDF syntax for obj to buf. Dictionary keys are
// written in sorted order and a stream's /Length always matches its data.
func AppendObject(buf []byte, obj Object) []byte {
	switch v := obj.(type) {
	case nil, Null:
		return append(buf, "null"...)
	case Bool:
		return strconv.AppendBool(buf, bool(v))
	case Int:
		return strconv.AppendInt(buf, int64(v), 10)
	case Real:
		return appendReal(buf, float64(v))
	case String:
		return appendString(buf, []byte(v))
	case Name:
		return appendName(buf, string(v))
	case Array:
		buf = append(buf, '[')
		for i, elem := range v {
			if i > 0 {
				buf = append(buf, ' ')
			}
			buf = AppendObject(buf, elem)
		}
		return append(buf, ']')
	case Dict:
		return appendDict(buf, v, nil)
	case *Stream:
		buf = appendDict(buf, v.Dict, Int(len(v.Data)))
		buf = append(buf, "\nstream\n"...)
		buf = append(buf, v.Data...)
		return append(buf, "\nendstream"...)
	case IndirectRef:
		buf = strconv.AppendInt(buf, int64(v.Number), 10)
		buf = append(buf, ' ')
		buf = strconv.AppendInt(buf, int64(v.Generation), 10)
		return append(buf, " R"...)
	}
	return append(buf, "null"...)
}

// WriteObject writes the PDF syntax for obj to w.
func WriteObject(w io.Writer, obj Object) (int, error) {
	return w.Write(AppendObject(nil, obj))
}

// AppendIndirectObject appends "num gen obj ... endobj".
func AppendIndirectObject(buf []byte, num, gen int, obj Object) []byte {
	buf = strconv.AppendInt(buf, int64(num), 10)
	buf = append(buf, ' ')
	buf = strconv.AppendInt(buf, int64(gen), 10)
	buf = append(buf, " obj\n"...)
	buf = AppendObject(buf, obj)
	return append(buf, "\nendobj\n"...)
}

func appendDict(buf []byte, d Dict, length Object) []byte {
	buf = append(buf, "<<"...)
	wroteLength := false
	for _, k := range d.Keys() {
		v := d[k]
		if k == "Length" && length != nil {
			v = length
			wroteLength = true
		}
		if IsNull(v) {
			continue
		}
		buf = appendName(buf, k)
		buf = append(buf, ' ')
		buf = AppendObject(buf, v)
	}
	if length != nil && !wroteLength {
		buf = append(buf, "/Length "...)
		buf = AppendObject(buf, length)
	}
	return append(buf, ">>"...)
}

// appendReal writes a number without exponent, trimmed of trailing zeros.
func appendReal(buf []byte, f float64) []byte {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return append(buf, '0')
	}
	if f == math.Trunc(f) && math.Abs(f) < 1e15 {
		return strconv.AppendInt(buf, int64(f), 10)
	}
	s := strconv.FormatFloat(f, 'f', 6, 64)
	for s[len(s)-1] == '0' {
		s = s[:len(s)-1]
	}
	if s[len(s)-1] == '.' {
		s = s[:len(s)-1]
	}
	if s == "-0" {
		s = "0"
	}
	return append(buf, s...)
}

// appendString writes a literal string, or a hex string when the value is
// mostly binary.
func appendString(buf []byte, s []byte) []byte {
	binary := 0
	for _, c := range s {
		if c < 0x20 && c != '\n' && c != '\r' && c != '\t' || c >= 0x7F {
			binary++
		}
	}
	if binary > len(s)/4 {
		const digits = "0123456789ABCDEF"
		buf = append(buf, '<')
		for _, c := range s {
			buf = append(buf, digits[c>>4], digits[c&0x0F])
		}
		return append(buf, '>')
	}

	buf = append(buf, '(')
	for _, c := range s {
		switch c {
		case '(', ')', '\\':
			buf = append(buf, '\\', c)
		case '\n':
			buf = append(buf, '\\', 'n')
		case '\r':
			buf = append(buf, '\\', 'r')
		case '\t':
			buf = append(buf, '\\', 't')
		default:
			if c < 0x20 || c >= 0x7F {
				buf = append(buf, '\\', '0'+(c>>6), '0'+(c>>3)&7, '0'+c&7)
				continue
			}
			buf = append(buf, c)
		}
	}
	return append(buf, ')')
}

// appendName writes /name, escaping delimiters, whitespace and bytes
// outside the printable range as #xx.
func appendName(buf []byte, name string) []byte {
	const digits = "0123456789ABCDEF"
	buf = append(buf, '/')
	for i := 0; i < len(name); i++ {
		c := name[i]
		if c < '!' || c > '~' || c == '#' || isDelimiter(c) {
			buf = append(buf, '#', digits[c>>4], digits[c&0x0F])
			continue
		}
		buf = append(buf, c)
	}
	return buf
}
