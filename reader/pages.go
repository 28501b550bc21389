package reader

import (
	"bytes"
	"fmt"

	"github.com/tsawler/folio/core"
	"github.com/tsawler/folio/pages"
)

// PageCount returns the number of pages.
func (r *Reader) PageCount() int {
	if r.tree == nil {
		return 0
	}
	return r.tree.Count()
}

// Pages returns the page tree index.
func (r *Reader) Pages() *pages.Tree { return r.tree }

// GetPage returns page n (1-based). Out-of-range numbers fail with
// pages.ErrPageNotFound.
func (r *Reader) GetPage(n int) (*pages.Page, error) {
	return r.tree.GetPage(n)
}

// PageRef returns the reference of page n.
func (r *Reader) PageRef(n int) (core.IndirectRef, error) {
	return r.tree.PageRef(n)
}

// PageSize returns the media box of page n.
func (r *Reader) PageSize(n int) (pages.Rectangle, error) {
	return r.tree.PageSize(n)
}

// PageSizeWithRotation returns the media box of page n as displayed, with
// width and height swapped for 90 and 270 degree rotations.
func (r *Reader) PageSizeWithRotation(n int) (pages.Rectangle, error) {
	return r.tree.PageSizeWithRotation(n)
}

// PageRotation returns the rotation of page n: 0, 90, 180 or 270.
func (r *Reader) PageRotation(n int) (int, error) {
	p, err := r.tree.GetPage(n)
	if err != nil {
		return 0, err
	}
	return p.Rotate(), nil
}

// PageContent returns the decoded content streams of page n joined by
// newlines. Streams that fail to decode are skipped and logged.
func (r *Reader) PageContent(n int) ([]byte, error) {
	p, err := r.tree.GetPage(n)
	if err != nil {
		return nil, err
	}
	streams, err := p.Contents()
	if err != nil {
		return nil, fmt.Errorf("page %d: %w", n, err)
	}
	parts := make([][]byte, 0, len(streams))
	for i, s := range streams {
		data, err := s.Decode()
		if err != nil {
			r.log.Warn("skipping undecodable content stream", "page", n, "stream", i, "error", err)
			continue
		}
		parts = append(parts, data)
	}
	return bytes.Join(parts, []byte("\n")), nil
}

// InsertPage creates an empty page with the given media box and makes it
// page n (1..PageCount()+1).
func (r *Reader) InsertPage(n int, mediaBox pages.Rectangle) (core.IndirectRef, error) {
	if n < 1 || n > r.PageCount()+1 {
		return core.IndirectRef{}, fmt.Errorf("%w: cannot insert at %d of %d", pages.ErrPageNotFound, n, r.PageCount())
	}
	page := core.Dict{
		"Type":      core.Name("Page"),
		"MediaBox":  mediaBox.Array(),
		"Resources": core.Dict{},
	}
	ref := r.AddObject(page)
	if err := r.tree.Insert(n, ref); err != nil {
		return core.IndirectRef{}, err
	}
	r.pinAncestors(ref)
	return ref, nil
}

// DeletePage removes page n from the page tree.
func (r *Reader) DeletePage(n int) error {
	ref, err := r.tree.PageRef(n)
	if err != nil {
		return err
	}
	r.pinAncestors(ref)
	if err := r.tree.Delete(n); err != nil {
		return err
	}
	r.pruneForm(map[int]bool{ref.Number: true}, r.annotations([]core.IndirectRef{ref}))
	return nil
}

// SelectPages keeps only the listed pages (1-based) in the given order.
// Out-of-range and repeated numbers are ignored. Form fields whose widgets
// sat on dropped pages are removed from the AcroForm.
func (r *Reader) SelectPages(list []int) error {
	for _, ref := range r.tree.Refs() {
		r.pinAncestors(ref)
	}
	dropped, err := r.tree.Select(list)
	if err != nil {
		return err
	}
	if len(dropped) == 0 {
		return nil
	}
	gone := make(map[int]bool, len(dropped))
	for _, ref := range dropped {
		gone[ref.Number] = true
	}
	r.pruneForm(gone, r.annotations(dropped))
	return nil
}

// annotations returns the object numbers of the annotations on the given
// pages.
func (r *Reader) annotations(refs []core.IndirectRef) map[int]bool {
	out := make(map[int]bool)
	for _, ref := range refs {
		page, ok, err := r.res.Dict(ref)
		if err != nil || !ok {
			continue
		}
		annots, ok, err := r.res.Array(page.Get("Annots"))
		if err != nil || !ok {
			continue
		}
		for _, a := range annots {
			if ar, ok := a.(core.IndirectRef); ok {
				out[ar.Number] = true
			}
		}
	}
	return out
}

// pruneForm drops AcroForm widgets that belonged to removed pages, then any
// field left without widgets.
func (r *Reader) pruneForm(pagesGone, annotsGone map[int]bool) {
	formObj := r.catalog.Get("AcroForm")
	form, ok, err := r.res.Dict(formObj)
	if err != nil || !ok {
		return
	}
	fields, ok, err := r.res.Array(form.Get("Fields"))
	if err != nil || !ok {
		return
	}

	kept := make(core.Array, 0, len(fields))
	for _, f := range fields {
		if r.keepField(f, pagesGone, annotsGone, 0) {
			kept = append(kept, f)
		}
	}
	if len(kept) == len(fields) {
		return
	}
	r.log.Debug("pruned form fields", "removed", len(fields)-len(kept))
	form["Fields"] = kept
	if ref, ok := formObj.(core.IndirectRef); ok {
		r.pinned[ref.Number] = true
	}
}

func (r *Reader) keepField(obj core.Object, pagesGone, annotsGone map[int]bool, depth int) bool {
	ref, isRef := obj.(core.IndirectRef)
	if isRef && annotsGone[ref.Number] {
		return false
	}
	if depth >= r.cfg.MaxDepth {
		return true
	}
	field, ok, err := r.res.Dict(obj)
	if err != nil || !ok {
		return true
	}
	if p, ok := field.Get("P").(core.IndirectRef); ok && pagesGone[p.Number] {
		return false
	}
	kids, ok, err := r.res.Array(field.Get("Kids"))
	if err != nil || !ok || len(kids) == 0 {
		return true
	}

	kept := make(core.Array, 0, len(kids))
	for _, k := range kids {
		if r.keepField(k, pagesGone, annotsGone, depth+1) {
			kept = append(kept, k)
		}
	}
	if len(kept) == 0 {
		return false
	}
	if len(kept) != len(kids) {
		field["Kids"] = kept
		if isRef {
			r.pinned[ref.Number] = true
		}
	}
	return true
}

// pinAncestors keeps ref and its /Parent chain in memory so page tree edits
// survive Release.
func (r *Reader) pinAncestors(ref core.IndirectRef) {
	r.pinned[ref.Number] = true
	r.pinParents(ref)
}

// pinParents pins the /Parent chain of ref, but not ref itself.
func (r *Reader) pinParents(ref core.IndirectRef) {
	for depth := 0; depth <= r.cfg.MaxDepth; depth++ {
		d, ok, err := r.res.Dict(ref)
		if err != nil || !ok {
			return
		}
		parent, ok := d.Get("Parent").(core.IndirectRef)
		if !ok {
			return
		}
		if r.pinned[parent.Number] {
			return
		}
		r.pinned[parent.Number] = true
		ref = parent
	}
}
