package stamper

import (
	"fmt"

	"github.com/tsawler/folio/core"
	"github.com/tsawler/folio/reader"
)

// importTable maps object numbers of one source document to the numbers
// their copies received in the stamped document.
type importTable struct {
	src  *reader.Reader
	refs map[int]core.IndirectRef
}

// Import copies obj, and everything it references, from src into the
// stamped document and returns the copy. Objects already imported from src
// are reused. Page dictionaries lose their /Parent link.
func (s *Stamper) Import(src *reader.Reader, obj core.Object) (core.Object, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	if src.DocID() == s.r.DocID() {
		return obj, nil
	}
	t, ok := s.imports[src.DocID()]
	if !ok {
		t = &importTable{src: src, refs: make(map[int]core.IndirectRef)}
		s.imports[src.DocID()] = t
	}

	var (
		queue   []int
		foreign error
	)
	remap := func(ref core.IndirectRef) core.Object {
		if ref.Doc != 0 && ref.Doc != src.DocID() {
			if foreign == nil {
				foreign = fmt.Errorf("%w: %s while importing", core.ErrForeignReference, ref)
			}
			return core.Null{}
		}
		if target, ok := t.refs[ref.Number]; ok {
			return target
		}
		target := s.AddObject(core.Null{})
		t.refs[ref.Number] = target
		queue = append(queue, ref.Number)
		return target
	}

	out := core.MapRefs(detach(obj), remap)
	for len(queue) > 0 {
		num := queue[0]
		queue = queue[1:]

		o, err := src.GetObject(num)
		if err != nil {
			return nil, fmt.Errorf("failed to import object %d: %w", num, err)
		}
		s.r.SetObject(t.refs[num].Number, core.MapRefs(detach(o), remap))
		src.Release(num)
	}
	if foreign != nil {
		return nil, foreign
	}
	return out, nil
}

// ImportPage turns page n of src into a form XObject in the stamped
// document. Draw it with the returned reference through AddResource.
func (s *Stamper) ImportPage(src *reader.Reader, n int) (core.IndirectRef, error) {
	if err := s.checkOpen(); err != nil {
		return core.IndirectRef{}, err
	}
	page, err := src.GetPage(n)
	if err != nil {
		return core.IndirectRef{}, err
	}
	content, err := src.PageContent(n)
	if err != nil {
		return core.IndirectRef{}, err
	}

	dict := core.Dict{
		"Type":    core.Name("XObject"),
		"Subtype": core.Name("Form"),
		"BBox":    page.CropBox().Array(),
	}
	if res := page.Dict.Get("Resources"); res != nil {
		imported, err := s.Import(src, res)
		if err != nil {
			return core.IndirectRef{}, err
		}
		dict["Resources"] = imported
	}

	form := core.NewStream(dict, content)
	if err := form.EncodeFlate(); err != nil {
		return core.IndirectRef{}, fmt.Errorf("failed to compress page %d: %w", n, err)
	}
	return s.AddObject(form), nil
}

// detach drops the /Parent link of a page dictionary so that importing a
// page does not pull in the source page tree.
func detach(obj core.Object) core.Object {
	d, ok := obj.(core.Dict)
	if !ok || !d.Has("Parent") {
		return obj
	}
	if typ, _ := d.GetName("Type"); typ != "Page" {
		return obj
	}
	c := d.Clone()
	delete(c, "Parent")
	return c
}
