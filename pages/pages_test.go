package pages

import (
	"errors"
	"fmt"
	"testing"

	"github.com/tsawler/folio/core"
)

// mockResolver is an in-memory Resolver for testing
type mockResolver struct {
	objects map[int]core.Object
}

func newMockResolver() *mockResolver {
	return &mockResolver{objects: make(map[int]core.Object)}
}

func (m *mockResolver) AddObject(num int, obj core.Object) {
	m.objects[num] = obj
}

func (m *mockResolver) Resolve(obj core.Object) (core.Object, error) {
	ref, ok := obj.(core.IndirectRef)
	if !ok {
		return obj, nil
	}
	o, ok := m.objects[ref.Number]
	if !ok {
		return nil, fmt.Errorf("object %d not found", ref.Number)
	}
	return o, nil
}

func ref(n int) core.IndirectRef { return core.IndirectRef{Number: n} }

func box(a, b, c, d int) core.Array {
	return core.Array{core.Int(a), core.Int(b), core.Int(c), core.Int(d)}
}

// buildTree registers the root at object 1 and builds the tree.
func buildTree(t *testing.T, m *mockResolver, root core.Dict, opts ...Option) *Tree {
	t.Helper()
	m.AddObject(1, root)
	cat := NewCatalog(core.Dict{"Type": core.Name("Catalog"), "Pages": ref(1)}, m)
	tree, err := Build(cat, m, opts...)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return tree
}

// threePages builds root 1 with pages 10, 11, 12.
func threePages(t *testing.T) (*mockResolver, *Tree) {
	m := newMockResolver()
	for i := 10; i <= 12; i++ {
		m.AddObject(i, core.Dict{"Type": core.Name("Page"), "Parent": ref(1), "Label": core.Int(i)})
	}
	tree := buildTree(t, m, core.Dict{
		"Type":     core.Name("Pages"),
		"Count":    core.Int(3),
		"MediaBox": box(0, 0, 612, 792),
		"Kids":     core.Array{ref(10), ref(11), ref(12)},
	})
	return m, tree
}

func labels(t *testing.T, tree *Tree) []int {
	t.Helper()
	var out []int
	for i := 1; i <= tree.Count(); i++ {
		p, err := tree.GetPage(i)
		if err != nil {
			t.Fatalf("GetPage(%d): %v", i, err)
		}
		n, _ := p.Dict.GetInt("Label")
		out = append(out, int(n))
	}
	return out
}

func equalInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestCatalogPages(t *testing.T) {
	m := newMockResolver()
	m.AddObject(2, core.Dict{"Type": core.Name("Pages"), "Kids": core.Array{}})

	r, d, err := NewCatalog(core.Dict{"Pages": ref(2)}, m).Pages()
	if err != nil {
		t.Fatalf("failed to get pages: %v", err)
	}
	if r.Number != 2 || d.Get("Type") != core.Name("Pages") {
		t.Errorf("unexpected root %v %v", r, d)
	}

	_, _, err = NewCatalog(core.Dict{}, m).Pages()
	if !errors.Is(err, core.ErrStructural) {
		t.Errorf("expected ErrStructural for missing /Pages, got %v", err)
	}
}

func TestCatalogVersion(t *testing.T) {
	c := NewCatalog(core.Dict{"Version": core.Name("1.7")}, newMockResolver())
	if c.Version() != "1.7" {
		t.Errorf("expected 1.7, got %q", c.Version())
	}
}

func TestCatalogMetadata(t *testing.T) {
	m := newMockResolver()
	m.AddObject(5, &core.Stream{Dict: core.Dict{"Type": core.Name("Metadata")}, Data: []byte("<x/>")})

	s, err := NewCatalog(core.Dict{"Metadata": ref(5)}, m).Metadata()
	if err != nil || s == nil {
		t.Fatalf("Metadata: %v %v", s, err)
	}
	if s, err := NewCatalog(core.Dict{}, m).Metadata(); s != nil || err != nil {
		t.Errorf("missing metadata should be nil, nil; got %v %v", s, err)
	}
}

func TestPageTreeFlatStructure(t *testing.T) {
	_, tree := threePages(t)
	if tree.Count() != 3 {
		t.Fatalf("expected count=3, got %d", tree.Count())
	}
	if got := labels(t, tree); !equalInts(got, []int{10, 11, 12}) {
		t.Errorf("page order = %v", got)
	}
}

func TestPageTreeNestedStructure(t *testing.T) {
	m := newMockResolver()
	for i := 10; i <= 13; i++ {
		m.AddObject(i, core.Dict{"Type": core.Name("Page"), "Label": core.Int(i)})
	}
	m.AddObject(20, core.Dict{"Type": core.Name("Pages"), "Parent": ref(1), "Kids": core.Array{ref(10), ref(11)}})
	m.AddObject(21, core.Dict{"Type": core.Name("Pages"), "Parent": ref(1), "Kids": core.Array{ref(12), ref(13)}})

	tree := buildTree(t, m, core.Dict{"Type": core.Name("Pages"), "Count": core.Int(99), "Kids": core.Array{ref(20), ref(21)}})
	if got := labels(t, tree); !equalInts(got, []int{10, 11, 12, 13}) {
		t.Errorf("page order = %v", got)
	}

	// counts are rewritten to what the walk found
	if c, _ := m.objects[1].(core.Dict).GetInt("Count"); c != 4 {
		t.Errorf("root /Count = %d, want 4", c)
	}
	if c, _ := m.objects[20].(core.Dict).GetInt("Count"); c != 2 {
		t.Errorf("node /Count = %d, want 2", c)
	}
}

func TestInheritanceChain(t *testing.T) {
	m := newMockResolver()
	m.AddObject(30, core.Dict{"Type": core.Name("Page")})
	m.AddObject(31, core.Dict{"Type": core.Name("Page"), "Rotate": core.Int(180)})
	m.AddObject(20, core.Dict{
		"Type":   core.Name("Pages"),
		"Rotate": core.Int(90),
		"Kids":   core.Array{ref(30), ref(31)},
	})
	resources := core.Dict{"Font": core.Dict{}}
	tree := buildTree(t, m, core.Dict{
		"Type":      core.Name("Pages"),
		"MediaBox":  box(0, 0, 200, 400),
		"Resources": resources,
		"Kids":      core.Array{ref(20)},
	})

	p1, _ := tree.GetPage(1)
	if p1.Rotate() != 90 {
		t.Errorf("page 1 rotate = %d, want inherited 90", p1.Rotate())
	}
	if got := p1.MediaBox(); got != (Rectangle{0, 0, 200, 400}) {
		t.Errorf("page 1 media box = %v", got)
	}
	if res, _ := p1.Resources(); res == nil || !res.Has("Font") {
		t.Errorf("page 1 resources not inherited: %v", res)
	}
	if !p1.Dict.Has("MediaBox") || !p1.Dict.Has("Rotate") {
		t.Errorf("inherited keys must be copied into the leaf: %v", p1.Dict)
	}

	p2, _ := tree.GetPage(2)
	if p2.Rotate() != 180 {
		t.Errorf("page 2 rotate = %d, own value should win", p2.Rotate())
	}
	if got := p2.SizeWithRotation(); got.Width() != 200 || got.Height() != 400 {
		t.Errorf("180 degree rotation must not swap: %v", got)
	}
	if got := p1.SizeWithRotation(); got.Width() != 400 || got.Height() != 200 {
		t.Errorf("90 degree rotation must swap: %v", got)
	}
}

func TestDefaultLetterBox(t *testing.T) {
	m := newMockResolver()
	m.AddObject(10, core.Dict{})
	tree := buildTree(t, m, core.Dict{"Type": core.Name("Pages"), "Kids": core.Array{ref(10)}})

	r, err := tree.PageSize(1)
	if err != nil {
		t.Fatal(err)
	}
	if r != Letter {
		t.Errorf("expected Letter, got %v", r)
	}
	if typ, _ := m.objects[10].(core.Dict).GetName("Type"); typ != "Page" {
		t.Errorf("leaf should be stamped /Type /Page, got %q", typ)
	}
}

func TestKidsCycle(t *testing.T) {
	m := newMockResolver()
	m.AddObject(10, core.Dict{"Type": core.Name("Page")})
	// node 20 lists the root again, then a real page
	m.AddObject(20, core.Dict{"Type": core.Name("Pages"), "Kids": core.Array{ref(10), ref(1), ref(11)}})
	m.AddObject(11, core.Dict{"Type": core.Name("Page")})

	tree := buildTree(t, m, core.Dict{"Type": core.Name("Pages"), "Kids": core.Array{ref(20)}})
	if tree.Count() != 1 {
		t.Errorf("expected 1 page after truncation, got %d", tree.Count())
	}
	kids := m.objects[20].(core.Dict)["Kids"].(core.Array)
	if len(kids) != 1 {
		t.Errorf("offending /Kids should be truncated at the cycle, got %v", kids)
	}
}

func TestKidsBadEntries(t *testing.T) {
	tests := []struct {
		name string
		kid  core.Object
	}{
		{"direct dict", core.Dict{"Type": core.Name("Page")}},
		{"missing object", ref(99)},
		{"not a dict", ref(40)},
		{"duplicate", ref(10)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newMockResolver()
			m.AddObject(10, core.Dict{"Type": core.Name("Page")})
			m.AddObject(40, core.Int(3))
			tree := buildTree(t, m, core.Dict{"Type": core.Name("Pages"), "Kids": core.Array{ref(10), tt.kid, ref(10)}})
			if tree.Count() != 1 {
				t.Errorf("expected 1 page, got %d", tree.Count())
			}
		})
	}
}

func TestMaxDepth(t *testing.T) {
	m := newMockResolver()
	m.AddObject(100, core.Dict{"Type": core.Name("Page")})
	// chain of nodes 2..9, each holding the next; 9 holds the page
	for i := 2; i < 9; i++ {
		m.AddObject(i, core.Dict{"Type": core.Name("Pages"), "Kids": core.Array{ref(i + 1)}})
	}
	m.AddObject(9, core.Dict{"Type": core.Name("Pages"), "Kids": core.Array{ref(100)}})

	tree := buildTree(t, m, core.Dict{"Type": core.Name("Pages"), "Kids": core.Array{ref(2)}}, WithMaxDepth(4))
	if tree.Count() != 0 {
		t.Errorf("deep tree should be cut, got %d pages", tree.Count())
	}
}

func TestPageTreeOutOfBounds(t *testing.T) {
	_, tree := threePages(t)
	for _, n := range []int{0, -1, 4} {
		if _, err := tree.GetPage(n); !errors.Is(err, ErrPageNotFound) {
			t.Errorf("GetPage(%d): expected ErrPageNotFound, got %v", n, err)
		}
	}
	if _, err := tree.PageSize(9); !errors.Is(err, ErrPageNotFound) {
		t.Errorf("PageSize(9): expected ErrPageNotFound, got %v", err)
	}
}

func TestPageContents(t *testing.T) {
	m := newMockResolver()
	m.AddObject(5, &core.Stream{Data: []byte("a")})
	m.AddObject(6, &core.Stream{Data: []byte("b")})

	p := NewPage(ref(10), core.Dict{"Contents": ref(5)}, m)
	streams, err := p.Contents()
	if err != nil || len(streams) != 1 {
		t.Fatalf("single stream: %v %v", streams, err)
	}

	p = NewPage(ref(10), core.Dict{"Contents": core.Array{ref(5), ref(6)}}, m)
	streams, err = p.Contents()
	if err != nil || len(streams) != 2 || string(streams[1].Data) != "b" {
		t.Fatalf("stream array: %v %v", streams, err)
	}

	p = NewPage(ref(10), core.Dict{}, m)
	if streams, err := p.Contents(); streams != nil || err != nil {
		t.Errorf("no contents should be nil, nil")
	}
}

func TestCropBoxDefaultsToMediaBox(t *testing.T) {
	p := NewPage(ref(1), core.Dict{"MediaBox": box(0, 0, 100, 50)}, nil)
	if p.CropBox() != p.MediaBox() {
		t.Errorf("crop box %v should equal media box %v", p.CropBox(), p.MediaBox())
	}
	p.Dict["CropBox"] = box(10, 10, 90, 40)
	if got := p.CropBox(); got != (Rectangle{10, 10, 90, 40}) {
		t.Errorf("crop box = %v", got)
	}
}

func TestNormalizeRotation(t *testing.T) {
	tests := map[int]int{0: 0, 90: 90, 180: 180, 270: 270, 360: 0, 450: 90, -90: 270, -180: 180, 100: 90}
	for in, want := range tests {
		if got := NormalizeRotation(in); got != want {
			t.Errorf("NormalizeRotation(%d) = %d, want %d", in, got, want)
		}
	}
}

func TestRectangle(t *testing.T) {
	r := NewRectangle(100, 200, 0, 0)
	if r != (Rectangle{0, 0, 100, 200}) {
		t.Errorf("corners not normalised: %v", r)
	}
	if _, ok := RectangleFromArray(core.Array{core.Int(1)}, nil); ok {
		t.Error("short array accepted")
	}
	a := Rectangle{0, 0, 10.5, 20}.Array()
	if a[2] != core.Real(10.5) || a[3] != core.Int(20) {
		t.Errorf("Array() = %v", a)
	}
}

func TestInsert(t *testing.T) {
	m, tree := threePages(t)
	m.AddObject(50, core.Dict{"Label": core.Int(50)})
	m.AddObject(51, core.Dict{"Label": core.Int(51)})

	if err := tree.Insert(2, ref(50)); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := tree.Insert(5, ref(51)); err != nil {
		t.Fatalf("Insert at end: %v", err)
	}
	if got := labels(t, tree); !equalInts(got, []int{10, 50, 11, 12, 51}) {
		t.Errorf("page order = %v", got)
	}
	root := m.objects[1].(core.Dict)
	if c, _ := root.GetInt("Count"); c != 5 {
		t.Errorf("root /Count = %d, want 5", c)
	}
	page := m.objects[50].(core.Dict)
	if page["Parent"] != ref(1) || page["Type"] != core.Name("Page") || !page.Has("MediaBox") {
		t.Errorf("inserted page not wired: %v", page)
	}
	if err := tree.Insert(9, ref(51)); !errors.Is(err, ErrPageNotFound) {
		t.Errorf("expected ErrPageNotFound, got %v", err)
	}
}

func TestInsertNestedUpdatesAncestors(t *testing.T) {
	m := newMockResolver()
	m.AddObject(10, core.Dict{"Type": core.Name("Page"), "Parent": ref(20)})
	m.AddObject(20, core.Dict{"Type": core.Name("Pages"), "Parent": ref(1), "Kids": core.Array{ref(10)}})
	tree := buildTree(t, m, core.Dict{"Type": core.Name("Pages"), "Kids": core.Array{ref(20)}})

	m.AddObject(50, core.Dict{})
	if err := tree.Insert(1, ref(50)); err != nil {
		t.Fatal(err)
	}
	if c, _ := m.objects[20].(core.Dict).GetInt("Count"); c != 2 {
		t.Errorf("node /Count = %d, want 2", c)
	}
	if c, _ := m.objects[1].(core.Dict).GetInt("Count"); c != 2 {
		t.Errorf("root /Count = %d, want 2", c)
	}
	if m.objects[50].(core.Dict)["Parent"] != ref(20) {
		t.Error("inserted page should join the displaced page's parent")
	}
}

func TestDelete(t *testing.T) {
	m, tree := threePages(t)
	if err := tree.Delete(2); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if got := labels(t, tree); !equalInts(got, []int{10, 12}) {
		t.Errorf("page order = %v", got)
	}
	root := m.objects[1].(core.Dict)
	if c, _ := root.GetInt("Count"); c != 2 {
		t.Errorf("root /Count = %d, want 2", c)
	}
	if len(root["Kids"].(core.Array)) != 2 {
		t.Errorf("/Kids = %v", root["Kids"])
	}
	if err := tree.Delete(3); !errors.Is(err, ErrPageNotFound) {
		t.Errorf("expected ErrPageNotFound, got %v", err)
	}
}

func TestSelect(t *testing.T) {
	m, tree := threePages(t)
	dropped, err := tree.Select([]int{3, 1, 3, 7})
	if err != nil {
		t.Fatal(err)
	}
	if got := labels(t, tree); !equalInts(got, []int{12, 10}) {
		t.Errorf("page order = %v", got)
	}
	if len(dropped) != 1 || dropped[0] != ref(11) {
		t.Errorf("dropped = %v", dropped)
	}
	root := m.objects[1].(core.Dict)
	if c, _ := root.GetInt("Count"); c != 2 {
		t.Errorf("root /Count = %d, want 2", c)
	}
}

func TestRefs(t *testing.T) {
	_, tree := threePages(t)
	refs := tree.Refs()
	refs[0] = ref(999)
	if r, _ := tree.PageRef(1); r != ref(10) {
		t.Error("Refs must return a copy")
	}
	rootRef, root := tree.Root()
	if rootRef != ref(1) || root == nil {
		t.Errorf("Root() = %v %v", rootRef, root)
	}
}
