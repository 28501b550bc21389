package core

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
)

// TokenType represents the type of token
type TokenType int

const (
	TokenEOF TokenType = iota
	TokenComment
	TokenKeyword    // true, false, null, obj, endobj, stream, endstream, etc.
	TokenInteger    // 123
	TokenReal       // 3.14
	TokenString     // (hello)
	TokenHexString  // <48656C6C6F>
	TokenName       // /Type
	TokenArrayStart // [
	TokenArrayEnd   // ]
	TokenDictStart  // <<
	TokenDictEnd    // >>
	TokenRef        // 12 0 R, only inside arrays and dictionaries
)

var tokenTypeNames = [...]string{
	TokenEOF:        "EOF",
	TokenComment:    "Comment",
	TokenKeyword:    "Keyword",
	TokenInteger:    "Integer",
	TokenReal:       "Real",
	TokenString:     "String",
	TokenHexString:  "HexString",
	TokenName:       "Name",
	TokenArrayStart: "ArrayStart",
	TokenArrayEnd:   "ArrayEnd",
	TokenDictStart:  "DictStart",
	TokenDictEnd:    "DictEnd",
	TokenRef:        "Ref",
}

func (t TokenType) String() string {
	if t < 0 || int(t) >= len(tokenTypeNames) {
		return "Unknown"
	}
	return tokenTypeNames[t]
}

// Token represents a lexical token
type Token struct {
	Type  TokenType
	Value []byte
	Pos   int64 // Position in stream

	// Num and Gen are set for TokenRef.
	Num, Gen int
}

func (t *Token) String() string {
	return fmt.Sprintf("%s(%q)@%d", t.Type, t.Value, t.Pos)
}

// IsKeyword reports whether the token is the keyword kw.
func (t *Token) IsKeyword(kw string) bool {
	return t != nil && t.Type == TokenKeyword && string(t.Value) == kw
}

// ErrNotSeekable is returned by Seek on a lexer built over a plain io.Reader.
var ErrNotSeekable = errors.New("lexer source is not seekable")

// Lexer performs lexical analysis of PDF content.
//
// A lexer created with NewLexerAt reads from a random-access source and can
// be repositioned with Seek; one created with NewLexer reads forward only.
type Lexer struct {
	reader *bufio.Reader
	src    io.ReaderAt
	size   int64
	pos    int64
	depth  int // nesting of arrays and dictionaries
}

// NewLexer creates a new lexer reading forward from r
func NewLexer(r io.Reader) *Lexer {
	return &Lexer{reader: bufio.NewReader(r)}
}

// NewLexerAt creates a lexer over a random-access source of the given size,
// positioned at offset 0.
func NewLexerAt(src io.ReaderAt, size int64) *Lexer {
	l := &Lexer{src: src, size: size}
	l.reader = bufio.NewReader(io.NewSectionReader(src, 0, size))
	return l
}

// Seek repositions the lexer at offset and resets nesting state.
func (l *Lexer) Seek(offset int64) error {
	if l.src == nil {
		return ErrNotSeekable
	}
	if offset < 0 || offset > l.size {
		return fmt.Errorf("seek offset %d outside [0, %d]", offset, l.size)
	}
	l.reader.Reset(io.NewSectionReader(l.src, offset, l.size-offset))
	l.pos = offset
	l.depth = 0
	return nil
}

// Pos returns the byte offset of the next unread byte.
func (l *Lexer) Pos() int64 {
	return l.pos
}

// Size returns the size of a random-access source, or -1.
func (l *Lexer) Size() int64 {
	if l.src == nil {
		return -1
	}
	return l.size
}

// NextToken returns the next token from the input
func (l *Lexer) NextToken() (*Token, error) {
	if err := l.skipWhitespace(); err != nil && err != io.EOF {
		return nil, err
	}

	b, err := l.peek()
	if err == io.EOF {
		return &Token{Type: TokenEOF, Pos: l.pos}, nil
	}
	if err != nil {
		return nil, err
	}

	switch b {
	case '%':
		return l.readComment()
	case '[':
		l.readByte()
		l.depth++
		return &Token{Type: TokenArrayStart, Value: []byte{'['}, Pos: l.pos - 1}, nil
	case ']':
		l.readByte()
		l.leave()
		return &Token{Type: TokenArrayEnd, Value: []byte{']'}, Pos: l.pos - 1}, nil
	case '(':
		return l.readString()
	case '<':
		next, err := l.peekN(2)
		if err == nil && next[1] == '<' {
			l.discard(2)
			l.depth++
			return &Token{Type: TokenDictStart, Value: []byte("<<"), Pos: l.pos - 2}, nil
		}
		return l.readHexString()
	case '>':
		next, err := l.peekN(2)
		if err == nil && next[1] == '>' {
			l.discard(2)
			l.leave()
			return &Token{Type: TokenDictEnd, Value: []byte(">>"), Pos: l.pos - 2}, nil
		}
		// A lone '>' is not valid PDF; surface it as a keyword and let the
		// parser decide.
		l.readByte()
		return &Token{Type: TokenKeyword, Value: []byte{'>'}, Pos: l.pos - 1}, nil
	case '/':
		return l.readName()
	case ')', '{', '}':
		l.readByte()
		return &Token{Type: TokenKeyword, Value: []byte{b}, Pos: l.pos - 1}, nil
	}

	if isDigit(b) || b == '-' || b == '+' || b == '.' {
		return l.readNumber()
	}

	return l.readKeyword()
}

func (l *Lexer) leave() {
	if l.depth > 0 {
		l.depth--
	}
}

// readByte reads a single byte and advances position
func (l *Lexer) readByte() (byte, error) {
	b, err := l.reader.ReadByte()
	if err != nil {
		return 0, err
	}
	l.pos++
	return b, nil
}

// peek looks at the next byte without consuming it
func (l *Lexer) peek() (byte, error) {
	b, err := l.reader.Peek(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

// peekN looks at the next n bytes without consuming them
func (l *Lexer) peekN(n int) ([]byte, error) {
	return l.reader.Peek(n)
}

func (l *Lexer) discard(n int) {
	d, _ := l.reader.Discard(n)
	l.pos += int64(d)
}

// skipWhitespace skips all whitespace characters
// PDF whitespace: space (0x20), tab (0x09), LF (0x0A), CR (0x0D), FF (0x0C), null (0x00)
func (l *Lexer) skipWhitespace() error {
	for {
		b, err := l.peek()
		if err != nil {
			return err
		}
		if !isWhitespace(b) {
			return nil
		}
		l.readByte()
	}
}

// readComment reads a comment (% to end of line) and consumes the EOL.
func (l *Lexer) readComment() (*Token, error) {
	startPos := l.pos
	var buf bytes.Buffer

	for {
		b, err := l.peek()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if b == '\r' || b == '\n' {
			l.readByte()
			if b == '\r' {
				if next, err := l.peek(); err == nil && next == '\n' {
					l.readByte()
				}
			}
			break
		}
		l.readByte()
		buf.WriteByte(b)
	}

	return &Token{Type: TokenComment, Value: buf.Bytes(), Pos: startPos}, nil
}

// readString reads a literal string (hello)
func (l *Lexer) readString() (*Token, error) {
	startPos := l.pos
	var buf bytes.Buffer

	l.readByte() // (

	depth := 1
	for depth > 0 {
		b, err := l.readByte()
		if err != nil {
			return nil, fmt.Errorf("unterminated string at position %d: %w", startPos, err)
		}

		switch b {
		case '(':
			depth++
			buf.WriteByte(b)
		case ')':
			depth--
			if depth > 0 {
				buf.WriteByte(b)
			}
		case '\\':
			next, err := l.readByte()
			if err != nil {
				return nil, fmt.Errorf("unterminated string at position %d: %w", startPos, err)
			}
			switch next {
			case 'n':
				buf.WriteByte('\n')
			case 'r':
				buf.WriteByte('\r')
			case 't':
				buf.WriteByte('\t')
			case 'b':
				buf.WriteByte('\b')
			case 'f':
				buf.WriteByte('\f')
			case '\r':
				// line continuation
				if peek, err := l.peek(); err == nil && peek == '\n' {
					l.readByte()
				}
			case '\n':
			case '0', '1', '2', '3', '4', '5', '6', '7':
				val := next - '0'
				for i := 0; i < 2; i++ {
					peek, err := l.peek()
					if err != nil || !isOctalDigit(peek) {
						break
					}
					l.readByte()
					val = val*8 + (peek - '0')
				}
				buf.WriteByte(val)
			default:
				// \( \) \\ and unknown escapes keep the character
				buf.WriteByte(next)
			}
		case '\r':
			// an unescaped EOL in a string reads as a single LF
			if peek, err := l.peek(); err == nil && peek == '\n' {
				l.readByte()
			}
			buf.WriteByte('\n')
		default:
			buf.WriteByte(b)
		}
	}

	return &Token{Type: TokenString, Value: buf.Bytes(), Pos: startPos}, nil
}

// readHexString reads a hexadecimal string <48656C6C6F>. Whitespace is
// skipped; stray non-hex characters are dropped.
func (l *Lexer) readHexString() (*Token, error) {
	startPos := l.pos
	var buf bytes.Buffer

	l.readByte() // <

	for {
		b, err := l.readByte()
		if err != nil {
			return nil, fmt.Errorf("unterminated hex string at position %d: %w", startPos, err)
		}
		if b == '>' {
			break
		}
		if isHexDigit(b) {
			buf.WriteByte(b)
		}
	}

	return &Token{Type: TokenHexString, Value: buf.Bytes(), Pos: startPos}, nil
}

// readName reads a name object /Type
func (l *Lexer) readName() (*Token, error) {
	startPos := l.pos
	var buf bytes.Buffer

	l.readByte() // /

	for {
		b, err := l.peek()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if isWhitespace(b) || isDelimiter(b) {
			break
		}
		l.readByte()

		if b == '#' {
			hex, err := l.peekN(2)
			if err == nil && isHexDigit(hex[0]) && isHexDigit(hex[1]) {
				buf.WriteByte(hexValue(hex[0])<<4 | hexValue(hex[1]))
				l.discard(2)
				continue
			}
		}
		buf.WriteByte(b)
	}

	return &Token{Type: TokenName, Value: buf.Bytes(), Pos: startPos}, nil
}

// readNumber reads an integer or real number. Malformed input such as
// doubled signs, stray exponents or a lone sign is kept verbatim in the
// token; the parser salvages what it can.
func (l *Lexer) readNumber() (*Token, error) {
	startPos := l.pos
	var buf bytes.Buffer
	isReal := false

loop:
	for {
		b, err := l.peek()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		switch {
		case isDigit(b):
		case b == '.':
			isReal = true
		case b == '-' || b == '+':
		case b == 'e' || b == 'E':
			// only part of the number when a digit or sign follows
			next, err := l.peekN(2)
			if err != nil || !(isDigit(next[1]) || next[1] == '-' || next[1] == '+') {
				break loop
			}
			isReal = true
		default:
			break loop
		}
		l.readByte()
		buf.WriteByte(b)
	}

	value := buf.Bytes()
	if !isReal {
		if _, err := strconv.ParseInt(string(value), 10, 64); err != nil {
			isReal = true
		}
	}
	if isReal {
		return &Token{Type: TokenReal, Value: value, Pos: startPos}, nil
	}

	tok := &Token{Type: TokenInteger, Value: value, Pos: startPos}
	if l.depth > 0 && value[0] != '-' && value[0] != '+' {
		l.collapseRef(tok)
	}
	return tok, nil
}

// collapseRef turns tok into a TokenRef when the input continues with
// "<gen> R".
func (l *Lexer) collapseRef(tok *Token) {
	ahead, _ := l.reader.Peek(32)
	i := 0
	skipWS := func() int {
		start := i
		for i < len(ahead) && isWhitespace(ahead[i]) {
			i++
		}
		return i - start
	}
	if skipWS() == 0 {
		return
	}
	genStart := i
	for i < len(ahead) && isDigit(ahead[i]) {
		i++
	}
	if i == genStart || i-genStart > 5 {
		return
	}
	gen, _ := strconv.Atoi(string(ahead[genStart:i]))
	if skipWS() == 0 || i >= len(ahead) || ahead[i] != 'R' {
		return
	}
	i++
	if i < len(ahead) && !isWhitespace(ahead[i]) && !isDelimiter(ahead[i]) {
		return
	}
	num, err := strconv.Atoi(string(tok.Value))
	if err != nil {
		return
	}

	tok.Value = append(append([]byte{}, tok.Value...), ahead[:i]...)
	tok.Type = TokenRef
	tok.Num = num
	tok.Gen = gen
	l.discard(i)
}

// readKeyword reads a run of regular characters (true, false, null, R,
// obj, endobj, stream, operators in content streams, ...)
func (l *Lexer) readKeyword() (*Token, error) {
	startPos := l.pos
	var buf bytes.Buffer

	for {
		b, err := l.peek()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if isWhitespace(b) || isDelimiter(b) {
			break
		}
		l.readByte()
		buf.WriteByte(b)
	}

	return &Token{Type: TokenKeyword, Value: buf.Bytes(), Pos: startPos}, nil
}

// SkipStreamEOL consumes the end-of-line marker that follows the stream
// keyword: LF, CR LF, or a lone CR written by sloppy producers.
func (l *Lexer) SkipStreamEOL() error {
	// spaces before the EOL are tolerated
	for {
		b, err := l.peek()
		if err != nil {
			return err
		}
		if b != ' ' && b != '\t' {
			break
		}
		l.readByte()
	}
	b, err := l.peek()
	if err != nil {
		return err
	}
	switch b {
	case '\n':
		l.readByte()
	case '\r':
		l.readByte()
		if next, err := l.peek(); err == nil && next == '\n' {
			l.readByte()
		}
	}
	return nil
}

// ReadBytes reads exactly n bytes from the underlying reader.
// This is used for reading binary stream data.
func (l *Lexer) ReadBytes(n int) ([]byte, error) {
	data := make([]byte, n)
	read, err := io.ReadFull(l.reader, data)
	l.pos += int64(read)
	if err != nil {
		return data[:read], fmt.Errorf("unexpected EOF: expected %d bytes, got %d", n, read)
	}
	return data, nil
}

// ReadUntil consumes input up to and including marker and returns the bytes
// before it.
func (l *Lexer) ReadUntil(marker []byte) ([]byte, error) {
	var buf bytes.Buffer
	for {
		b, err := l.readByte()
		if err != nil {
			return buf.Bytes(), fmt.Errorf("%q not found: %w", marker, err)
		}
		buf.WriteByte(b)
		if bytes.HasSuffix(buf.Bytes(), marker) {
			return buf.Bytes()[:buf.Len()-len(marker)], nil
		}
	}
}

// HasPrefix reports whether the input after any whitespace starts with p.
func (l *Lexer) HasPrefix(p []byte) bool {
	l.skipWhitespace()
	ahead, _ := l.reader.Peek(len(p))
	return bytes.Equal(ahead, p)
}

// Discard skips n bytes of input.
func (l *Lexer) Discard(n int) {
	l.discard(n)
}

// Peek returns the next byte without consuming it
func (l *Lexer) Peek() (byte, error) {
	return l.peek()
}

// ReadByte reads and returns a single byte
func (l *Lexer) ReadByte() (byte, error) {
	return l.readByte()
}

func isWhitespace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r' || b == '\f' || b == 0
}

func isDelimiter(b byte) bool {
	return b == '(' || b == ')' || b == '<' || b == '>' || b == '[' || b == ']' ||
		b == '{' || b == '}' || b == '/' || b == '%'
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}

func isOctalDigit(b byte) bool {
	return b >= '0' && b <= '7'
}

func isHexDigit(b byte) bool {
	return (b >= '0' && b <= '9') || (b >= 'a' && b <= 'f') || (b >= 'A' && b <= 'F')
}

func hexValue(b byte) byte {
	switch {
	case b >= '0' && b <= '9':
		return b - '0'
	case b >= 'a' && b <= 'f':
		return b - 'a' + 10
	case b >= 'A' && b <= 'F':
		return b - 'A' + 10
	}
	return 0
}
