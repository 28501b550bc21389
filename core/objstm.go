package core

import (
	"bytes"
	"fmt"
	"strconv"
)

// ObjectStream represents a PDF Object Stream (Type /ObjStm), introduced in PDF 1.5.
// Object streams store multiple objects in a single compressed stream. The
// payload is decoded and its header parsed on first access.
type ObjectStream struct {
	stream  *Stream
	n       int
	first   int
	doc     DocID
	objects map[int]Object // index -> parsed object
	offsets []objectStreamOffset
	decoded []byte
}

// objectStreamOffset pairs an object number with its byte offset within the decoded data.
type objectStreamOffset struct {
	ObjNum int
	Offset int // relative to First
}

// NewObjectStream creates an ObjectStream from a Stream object.
// The stream must have Type /ObjStm and required entries /N and /First.
func NewObjectStream(stream *Stream) (*ObjectStream, error) {
	if stream == nil {
		return nil, fmt.Errorf("stream is nil")
	}
	if name, _ := stream.Dict.GetName("Type"); name != "ObjStm" {
		return nil, fmt.Errorf("stream is not an object stream, got type %q", name)
	}
	n, ok := stream.Dict.GetInt("N")
	if !ok || n < 0 {
		return nil, fmt.Errorf("object stream has invalid /N")
	}
	first, ok := stream.Dict.GetInt("First")
	if !ok || first < 0 {
		return nil, fmt.Errorf("object stream has invalid /First")
	}
	return &ObjectStream{
		stream:  stream,
		n:       int(n),
		first:   int(first),
		objects: make(map[int]Object),
	}, nil
}

// SetDocID binds references parsed from the stream to doc.
func (os *ObjectStream) SetDocID(doc DocID) {
	os.doc = doc
}

// N returns the number of objects stored in the stream.
func (os *ObjectStream) N() int {
	return os.n
}

// First returns the byte offset to the first object's data in the decoded stream.
func (os *ObjectStream) First() int {
	return os.first
}

// Extends returns the object stream this one extends, if any.
func (os *ObjectStream) Extends() (IndirectRef, bool) {
	return os.stream.Dict.GetIndirectRef("Extends")
}

func (os *ObjectStream) decode() error {
	if os.decoded != nil {
		return nil
	}
	decoded, err := os.stream.Decode()
	if err != nil {
		return fmt.Errorf("failed to decode object stream: %w", err)
	}
	os.decoded = decoded
	if err := os.parseHeader(); err != nil {
		return fmt.Errorf("failed to parse object stream header: %w", err)
	}
	return nil
}

// parseHeader parses the N pairs "objNum offset" preceding /First.
func (os *ObjectStream) parseHeader() error {
	if os.first > len(os.decoded) {
		return fmt.Errorf("First offset (%d) exceeds decoded data length (%d)", os.first, len(os.decoded))
	}

	lexer := NewLexer(bytes.NewReader(os.decoded[:os.first]))
	os.offsets = make([]objectStreamOffset, 0, os.n)
	for i := 0; i < os.n; i++ {
		num, err1 := nextInt(lexer)
		off, err2 := nextInt(lexer)
		if err1 != nil || err2 != nil {
			// a short header keeps the pairs read so far
			break
		}
		os.offsets = append(os.offsets, objectStreamOffset{ObjNum: num, Offset: off})
	}
	return nil
}

func nextInt(l *Lexer) (int, error) {
	tok, err := l.NextToken()
	if err != nil {
		return 0, err
	}
	if tok.Type != TokenInteger {
		return 0, fmt.Errorf("expected integer, got %s", tok)
	}
	return strconv.Atoi(string(tok.Value))
}

// GetObjectByIndex extracts an object by its index within the stream (0-based).
// Returns the object, its object number, and any error.
func (os *ObjectStream) GetObjectByIndex(index int) (Object, int, error) {
	if err := os.decode(); err != nil {
		return nil, 0, err
	}
	if index < 0 || index >= len(os.offsets) {
		return nil, 0, fmt.Errorf("index %d out of range [0, %d)", index, len(os.offsets))
	}
	num := os.offsets[index].ObjNum
	if obj, ok := os.objects[index]; ok {
		return obj, num, nil
	}

	offset := os.first + os.offsets[index].Offset
	end := len(os.decoded)
	if index+1 < len(os.offsets) {
		if next := os.first + os.offsets[index+1].Offset; next > offset && next < end {
			end = next
		}
	}
	if offset >= len(os.decoded) {
		return nil, 0, fmt.Errorf("object offset %d exceeds decoded data length %d", offset, len(os.decoded))
	}

	parser := NewParser(bytes.NewReader(os.decoded[offset:end]))
	parser.SetDocID(os.doc)
	obj, err := parser.ParseObject()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to parse object at index %d: %w", index, err)
	}
	os.objects[index] = obj
	return obj, num, nil
}

// GetObjectByNumber finds and extracts an object by its object number.
// Returns the object, its index within the stream, and any error.
func (os *ObjectStream) GetObjectByNumber(objNum int) (Object, int, error) {
	if err := os.decode(); err != nil {
		return nil, 0, err
	}
	for i, entry := range os.offsets {
		if entry.ObjNum == objNum {
			obj, _, err := os.GetObjectByIndex(i)
			return obj, i, err
		}
	}
	return nil, 0, fmt.Errorf("object %d not found in object stream", objNum)
}

// ObjectNumbers returns a slice of all object numbers stored in this stream.
func (os *ObjectStream) ObjectNumbers() ([]int, error) {
	if err := os.decode(); err != nil {
		return nil, err
	}
	nums := make([]int, len(os.offsets))
	for i, entry := range os.offsets {
		nums[i] = entry.ObjNum
	}
	return nums, nil
}
