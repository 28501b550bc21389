package core

import (
	"bytes"
	"strings"
	"testing"
)

func parseOne(t *testing.T, input string) Object {
	t.Helper()
	obj, err := NewParser(strings.NewReader(input)).ParseObject()
	if err != nil {
		t.Fatalf("ParseObject(%q) failed: %v", input, err)
	}
	return obj
}

func TestParseSimpleObjects(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"null", "null"},
		{"true", "true"},
		{"false", "false"},
		{"42", "42"},
		{"-3.5", "-3.5"},
		{"(text)", "text"},
		{"<414243>", "ABC"},
		{"<41424>", "AB@"},
		{"/Name", "/Name"},
		{"[1 2 /Three]", "[1 2 /Three]"},
		{"5 0 R", "5 0 R"},
		{"<< /B 2 /A 1 >>", "<</A 1 /B 2>>"},
	}
	for _, tt := range tests {
		if got := parseOne(t, tt.input).String(); got != tt.want {
			t.Errorf("ParseObject(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestParseMalformedNumbers(t *testing.T) {
	tests := []struct {
		input string
		want  Real
	}{
		{"--5", -5},
		{"1.2.3", 1.2},
		{"5-3", 5},
		{"-", 0},
		{".", 0},
	}
	for _, tt := range tests {
		got, ok := parseOne(t, tt.input).(Real)
		if !ok {
			t.Errorf("%q: not a Real", tt.input)
			continue
		}
		if got != tt.want {
			t.Errorf("%q = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestParseDictWithRefsAndNull(t *testing.T) {
	obj := parseOne(t, "<< /Pages 2 0 R /Kids [3 0 R 4 0 R] /Gone null /Count 2 >>")
	dict, ok := obj.(Dict)
	if !ok {
		t.Fatalf("got %T, want Dict", obj)
	}
	if ref, ok := dict.GetIndirectRef("Pages"); !ok || ref.Number != 2 {
		t.Errorf("Pages = %v", dict.Get("Pages"))
	}
	kids, _ := dict.GetArray("Kids")
	if len(kids) != 2 {
		t.Errorf("Kids has %d entries, want 2", len(kids))
	}
	if dict.Has("Gone") {
		t.Error("null-valued entry should be dropped")
	}
}

func TestParserBindsDocID(t *testing.T) {
	p := NewParser(strings.NewReader("[7 0 R]"))
	p.SetDocID(99)
	obj, err := p.ParseObject()
	if err != nil {
		t.Fatal(err)
	}
	ref := obj.(Array)[0].(IndirectRef)
	if ref.Doc != 99 {
		t.Errorf("ref.Doc = %d, want 99", ref.Doc)
	}
	if ref.Unbound().Doc != 0 {
		t.Error("Unbound should clear Doc")
	}
}

func TestParseIndirectObject(t *testing.T) {
	p := NewParser(strings.NewReader("12 3 obj\n<< /Type /Page >>\nendobj"))
	obj, err := p.ParseIndirectObject()
	if err != nil {
		t.Fatal(err)
	}
	if obj.Ref.Number != 12 || obj.Ref.Generation != 3 {
		t.Errorf("ref = %v", obj.Ref)
	}
	if name, _ := obj.Object.(Dict).GetName("Type"); name != "Page" {
		t.Errorf("Type = %q", name)
	}
}

func TestParseIndirectObjectHoldingRef(t *testing.T) {
	p := NewParser(strings.NewReader("4 0 obj 9 0 R endobj"))
	obj, err := p.ParseIndirectObject()
	if err != nil {
		t.Fatal(err)
	}
	if ref, ok := obj.Object.(IndirectRef); !ok || ref.Number != 9 {
		t.Errorf("object = %v, want 9 0 R", obj.Object)
	}
}

func TestParseStream(t *testing.T) {
	input := "1 0 obj\n<< /Length 5 >>\nstream\nhello\nendstream\nendobj\n"
	src := strings.NewReader(input)
	p := NewParserAt(src, src.Size())
	obj, err := p.ParseIndirectObject()
	if err != nil {
		t.Fatal(err)
	}
	s := obj.Object.(*Stream)
	if string(s.Data) != "hello" {
		t.Errorf("data = %q", s.Data)
	}
}

func TestParseStreamWrongLength(t *testing.T) {
	for _, length := range []string{"3", "40", "-1", "7 0 R"} {
		input := "1 0 obj\n<< /Length " + length + " >>\nstream\r\nhello world\r\nendstream\nendobj\n"
		src := strings.NewReader(input)
		p := NewParserAt(src, src.Size())
		obj, err := p.ParseIndirectObject()
		if err != nil {
			t.Fatalf("length %s: %v", length, err)
		}
		s := obj.Object.(*Stream)
		if string(s.Data) != "hello world" {
			t.Errorf("length %s: data = %q", length, s.Data)
		}
	}
}

type lengthResolver int

func (l lengthResolver) ResolveReference(ref IndirectRef) (Object, error) {
	return Int(l), nil
}

func TestParseStreamIndirectLength(t *testing.T) {
	input := "1 0 obj\n<< /Length 2 0 R >>\nstream\nabc\nendstream\nendobj\n"
	src := strings.NewReader(input)
	p := NewParserAt(src, src.Size())
	p.SetReferenceResolver(lengthResolver(3))
	obj, err := p.ParseIndirectObject()
	if err != nil {
		t.Fatal(err)
	}
	if got := obj.Object.(*Stream).Data; !bytes.Equal(got, []byte("abc")) {
		t.Errorf("data = %q", got)
	}
}

func TestParseMissingEndobj(t *testing.T) {
	src := strings.NewReader("1 0 obj << /A 1 >>\n2 0 obj (x) endobj")
	p := NewParserAt(src, src.Size())
	if _, err := p.ParseIndirectObject(); err != nil {
		t.Fatalf("first object: %v", err)
	}
	obj, err := p.ParseIndirectObject()
	if err != nil {
		t.Fatalf("second object: %v", err)
	}
	if obj.Ref.Number != 2 {
		t.Errorf("second object number = %d", obj.Ref.Number)
	}
}
