package core

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestDictAccessors(t *testing.T) {
	d := Dict{
		"Type":   Name("Page"),
		"Count":  Int(3),
		"Scale":  Real(1.5),
		"Title":  String("x"),
		"Open":   Bool(true),
		"Parent": IndirectRef{Number: 2},
		"Kids":   Array{Int(1)},
		"Res":    Dict{},
	}
	if n, ok := d.GetName("Type"); !ok || n != "Page" {
		t.Error("GetName")
	}
	if i, ok := d.GetInt("Count"); !ok || i != 3 {
		t.Error("GetInt")
	}
	if f, ok := d.GetNumber("Count"); !ok || f != 3 {
		t.Error("GetNumber on Int")
	}
	if f, ok := d.GetNumber("Scale"); !ok || f != 1.5 {
		t.Error("GetNumber on Real")
	}
	if _, ok := d.GetInt("Type"); ok {
		t.Error("GetInt on a Name should fail")
	}
	if diff := cmp.Diff([]string{"Count", "Kids", "Open", "Parent", "Res", "Scale", "Title", "Type"}, d.Keys()); diff != "" {
		t.Errorf("Keys mismatch (-want +got):\n%s", diff)
	}
}

func TestObjectTypeString(t *testing.T) {
	if ObjStream.String() != "Stream" || ObjectType(99).String() != "Unknown" {
		t.Error("ObjectType.String mismatch")
	}
}

func TestIntern(t *testing.T) {
	if Intern([]byte("Type")) != Name("Type") {
		t.Error("standard name")
	}
	if Intern([]byte("Custom#Name")) != Name("Custom#Name") {
		t.Error("non-standard name")
	}
}

func TestTextDecoding(t *testing.T) {
	tests := []struct {
		in   String
		want string
	}{
		{String("plain"), "plain"},
		{String("\xFE\xFF\x00H\x00i"), "Hi"},
		{String("\xEF\xBB\xBFcaf\xC3\xA9"), "café"},
		{String("\x93le"), "ﬁle"},
	}
	for _, tt := range tests {
		if got := tt.in.Text(); got != tt.want {
			t.Errorf("Text(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestTextStringRoundTrip(t *testing.T) {
	for _, s := range []string{"ascii only", "Grüße", "日本語"} {
		if got := TextString(s).Text(); got != s {
			t.Errorf("round trip of %q gave %q", s, got)
		}
	}
}

func TestDeepCopyIsolation(t *testing.T) {
	orig := Dict{"Kids": Array{IndirectRef{Number: 1}}, "S": &Stream{Dict: Dict{}, Data: []byte("abc")}}
	c := DeepCopy(orig).(Dict)
	c["Kids"].(Array)[0] = Int(0)
	c["S"].(*Stream).Data[0] = 'X'
	if _, ok := orig["Kids"].(Array)[0].(IndirectRef); !ok {
		t.Error("array shared with copy")
	}
	if orig["S"].(*Stream).Data[0] != 'a' {
		t.Error("stream data shared with copy")
	}
}

func TestMapAndWalkRefs(t *testing.T) {
	obj := Dict{"A": IndirectRef{Number: 1}, "B": Array{IndirectRef{Number: 2}, Int(5)}}
	mapped := MapRefs(obj, func(r IndirectRef) Object {
		return IndirectRef{Number: r.Number + 10}
	})
	var seen []int
	WalkRefs(mapped, func(r IndirectRef) { seen = append(seen, r.Number) })
	if diff := cmp.Diff([]int{11, 12}, seen); diff != "" {
		t.Errorf("refs mismatch (-want +got):\n%s", diff)
	}
}
