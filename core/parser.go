package core

import (
	"bytes"
	"fmt"
	"io"
	"strconv"

	tdstrconv "github.com/tdewolff/parse/v2/strconv"
)

// ReferenceResolver is an interface for resolving indirect references.
// This allows the parser to resolve indirect stream lengths when needed.
type ReferenceResolver interface {
	ResolveReference(ref IndirectRef) (Object, error)
}

// Parser parses PDF objects using a Lexer for tokenization.
// It supports parsing all PDF object types including indirect objects and streams.
type Parser struct {
	lexer    *Lexer
	pending  []*Token // pushed back tokens, last one is returned first
	resolver ReferenceResolver
	doc      DocID
}

// NewParser creates a new PDF parser reading forward from r.
func NewParser(r io.Reader) *Parser {
	return &Parser{lexer: NewLexer(r)}
}

// NewParserAt creates a parser over a random-access source. Use Seek to
// position it before parsing.
func NewParserAt(src io.ReaderAt, size int64) *Parser {
	return &Parser{lexer: NewLexerAt(src, size)}
}

// SetReferenceResolver sets the reference resolver for the parser.
// This is needed to resolve indirect stream lengths.
func (p *Parser) SetReferenceResolver(resolver ReferenceResolver) {
	p.resolver = resolver
}

// SetDocID binds every IndirectRef produced by the parser to doc.
func (p *Parser) SetDocID(doc DocID) {
	p.doc = doc
}

// Seek repositions the parser at offset, dropping any lookahead.
func (p *Parser) Seek(offset int64) error {
	p.pending = p.pending[:0]
	return p.lexer.Seek(offset)
}

// Lexer exposes the underlying tokenizer.
func (p *Parser) Lexer() *Lexer {
	return p.lexer
}

// NextToken returns the next non-comment token.
func (p *Parser) NextToken() (*Token, error) {
	if n := len(p.pending); n > 0 {
		tok := p.pending[n-1]
		p.pending = p.pending[:n-1]
		return tok, nil
	}
	for {
		tok, err := p.lexer.NextToken()
		if err != nil {
			return nil, err
		}
		if tok.Type != TokenComment {
			return tok, nil
		}
	}
}

// UnreadToken pushes tok back so the next NextToken returns it.
func (p *Parser) UnreadToken(tok *Token) {
	p.pending = append(p.pending, tok)
}

// ParseObject parses and returns the next PDF object from the input.
// It handles all PDF object types: null, boolean, integer, real, string,
// name, array, dictionary, and indirect references.
func (p *Parser) ParseObject() (Object, error) {
	tok, err := p.NextToken()
	if err != nil {
		return nil, err
	}
	return p.parseFrom(tok)
}

func (p *Parser) parseFrom(tok *Token) (Object, error) {
	switch tok.Type {
	case TokenEOF:
		return nil, io.EOF

	case TokenKeyword:
		switch string(tok.Value) {
		case "null":
			return Null{}, nil
		case "true":
			return Bool(true), nil
		case "false":
			return Bool(false), nil
		}
		return nil, fmt.Errorf("unexpected keyword %q at position %d", tok.Value, tok.Pos)

	case TokenInteger:
		return p.parseInteger(tok)

	case TokenReal:
		return parseReal(tok.Value), nil

	case TokenRef:
		return IndirectRef{Number: tok.Num, Generation: tok.Gen, Doc: p.doc}, nil

	case TokenString:
		return String(tok.Value), nil

	case TokenHexString:
		return String(decodeHex(tok.Value)), nil

	case TokenName:
		return Intern(tok.Value), nil

	case TokenArrayStart:
		return p.parseArray()

	case TokenDictStart:
		return p.parseDict()
	}

	return nil, fmt.Errorf("unexpected token %s at position %d", tok.Type, tok.Pos)
}

// parseInteger parses an integer or, when followed by "gen R", an indirect
// reference the lexer did not collapse.
func (p *Parser) parseInteger(tok *Token) (Object, error) {
	num, err := strconv.ParseInt(string(tok.Value), 10, 64)
	if err != nil {
		return parseReal(tok.Value), nil
	}

	second, err := p.NextToken()
	if err != nil {
		return Int(num), nil
	}
	if second.Type != TokenInteger {
		p.UnreadToken(second)
		return Int(num), nil
	}
	third, err := p.NextToken()
	if err != nil {
		p.UnreadToken(second)
		return Int(num), nil
	}
	if third.IsKeyword("R") {
		gen, err := strconv.Atoi(string(second.Value))
		if err == nil && num >= 0 {
			return IndirectRef{Number: int(num), Generation: gen, Doc: p.doc}, nil
		}
	}
	p.UnreadToken(third)
	p.UnreadToken(second)
	return Int(num), nil
}

// parseReal salvages the longest valid numeric prefix of a malformed
// number. Repeated leading signs collapse to one; nothing usable yields 0.
func parseReal(b []byte) Real {
	neg := false
	i := 0
	for i < len(b) && (b[i] == '-' || b[i] == '+') {
		if b[i] == '-' {
			neg = true
		}
		i++
	}
	f, n := tdstrconv.ParseFloat(b[i:])
	if n == 0 {
		return 0
	}
	if neg {
		f = -f
	}
	return Real(f)
}

func decodeHex(h []byte) []byte {
	out := make([]byte, 0, (len(h)+1)/2)
	for i := 0; i < len(h); i += 2 {
		hi := hexValue(h[i])
		var lo byte
		if i+1 < len(h) {
			lo = hexValue(h[i+1])
		}
		out = append(out, hi<<4|lo)
	}
	return out
}

// parseArray parses a PDF array "[obj1 obj2 ...]".
func (p *Parser) parseArray() (Object, error) {
	arr := Array{}
	for {
		tok, err := p.NextToken()
		if err != nil {
			return nil, err
		}
		switch tok.Type {
		case TokenArrayEnd:
			return arr, nil
		case TokenEOF:
			return nil, fmt.Errorf("unexpected EOF in array")
		case TokenDictEnd:
			// unbalanced: let the enclosing dictionary see it
			p.UnreadToken(tok)
			return arr, nil
		}

		obj, err := p.parseFrom(tok)
		if err != nil {
			return nil, fmt.Errorf("error parsing array element: %w", err)
		}
		arr = append(arr, obj)
	}
}

// parseDict parses a PDF dictionary "<< /Key value ... >>". Entries whose
// value is null are dropped, as the format defines them to be absent.
func (p *Parser) parseDict() (Object, error) {
	dict := make(Dict)
	for {
		tok, err := p.NextToken()
		if err != nil {
			return nil, err
		}
		switch tok.Type {
		case TokenDictEnd:
			return dict, nil
		case TokenEOF:
			return nil, fmt.Errorf("unexpected EOF in dictionary")
		case TokenName:
		default:
			if tok.IsKeyword("endobj") || tok.IsKeyword("stream") {
				// unterminated dictionary
				p.UnreadToken(tok)
				return dict, nil
			}
			return nil, fmt.Errorf("expected name for dictionary key, got %s at position %d", tok.Type, tok.Pos)
		}
		key := string(Intern(tok.Value))

		valTok, err := p.NextToken()
		if err != nil {
			return nil, err
		}
		if valTok.Type == TokenDictEnd {
			return dict, nil
		}
		value, err := p.parseFrom(valTok)
		if err != nil {
			return nil, fmt.Errorf("error parsing dictionary value for key '%s': %w", key, err)
		}
		if _, isNull := value.(Null); isNull {
			continue
		}
		dict[key] = value
	}
}

// ParseIndirectObjectAt seeks to offset and parses the indirect object there.
func (p *Parser) ParseIndirectObjectAt(offset int64) (*IndirectObject, error) {
	if err := p.Seek(offset); err != nil {
		return nil, err
	}
	return p.ParseIndirectObject()
}

// ParseIndirectObject parses an indirect object definition.
// Format: "num gen obj <object> endobj" or "num gen obj <dict> stream ... endstream endobj"
func (p *Parser) ParseIndirectObject() (*IndirectObject, error) {
	num, err := p.expectInt("object number")
	if err != nil {
		return nil, err
	}
	gen, err := p.expectInt("generation number")
	if err != nil {
		return nil, err
	}
	tok, err := p.NextToken()
	if err != nil {
		return nil, err
	}
	if !tok.IsKeyword("obj") {
		return nil, fmt.Errorf("expected 'obj' keyword, got %s", tok)
	}

	obj, err := p.ParseObject()
	if err != nil {
		return nil, fmt.Errorf("error parsing indirect object value: %w", err)
	}

	tok, err = p.NextToken()
	if err != nil {
		return nil, err
	}
	if tok.IsKeyword("stream") {
		dict, ok := obj.(Dict)
		if !ok {
			return nil, fmt.Errorf("stream must follow a dictionary")
		}
		stream, err := p.parseStream(dict)
		if err != nil {
			return nil, fmt.Errorf("error parsing stream: %w", err)
		}
		obj = stream
		if tok, err = p.NextToken(); err != nil {
			return nil, err
		}
	}

	// A missing endobj is tolerated; whatever follows stays unread.
	if !tok.IsKeyword("endobj") {
		p.UnreadToken(tok)
	}

	return &IndirectObject{
		Ref:    IndirectRef{Number: num, Generation: gen, Doc: p.doc},
		Object: obj,
	}, nil
}

func (p *Parser) expectInt(what string) (int, error) {
	tok, err := p.NextToken()
	if err != nil {
		return 0, err
	}
	if tok.Type != TokenInteger {
		return 0, fmt.Errorf("expected %s, got %s", what, tok)
	}
	n, err := strconv.Atoi(string(tok.Value))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", what, err)
	}
	return n, nil
}

var endstream = []byte("endstream")

// parseStream reads the payload after the stream keyword. /Length is trusted
// when endstream follows it; otherwise the payload is recovered by scanning
// for the endstream keyword.
func (p *Parser) parseStream(dict Dict) (*Stream, error) {
	if err := p.lexer.SkipStreamEOL(); err != nil {
		return nil, fmt.Errorf("failed to skip EOL after stream keyword: %w", err)
	}
	start := p.lexer.Pos()

	length := p.streamLength(dict)
	if size := p.lexer.Size(); length >= 0 && (size < 0 || start+int64(length) <= size) {
		data, err := p.lexer.ReadBytes(length)
		if err == nil && p.lexer.HasPrefix(endstream) {
			p.lexer.Discard(len(endstream))
			return &Stream{Dict: dict, Data: data}, nil
		}
	}

	if err := p.lexer.Seek(start); err != nil {
		return nil, fmt.Errorf("stream length %d is wrong and input cannot be rescanned: %w", length, err)
	}
	data, err := p.lexer.ReadUntil(endstream)
	if err != nil {
		return nil, err
	}
	data = trimEOL(data)
	dict["Length"] = Int(len(data))
	return &Stream{Dict: dict, Data: data}, nil
}

func (p *Parser) streamLength(dict Dict) int {
	switch v := dict.Get("Length").(type) {
	case Int:
		return int(v)
	case IndirectRef:
		if p.resolver == nil {
			return -1
		}
		resolved, err := p.resolver.ResolveReference(v)
		if err != nil {
			return -1
		}
		if n, ok := resolved.(Int); ok {
			return int(n)
		}
	}
	return -1
}

func trimEOL(b []byte) []byte {
	if bytes.HasSuffix(b, []byte("\r\n")) {
		return b[:len(b)-2]
	}
	if bytes.HasSuffix(b, []byte("\n")) || bytes.HasSuffix(b, []byte("\r")) {
		return b[:len(b)-1]
	}
	return b
}
