package stamper

import (
	"fmt"

	"github.com/tsawler/folio/core"
)

// Bookmark is one entry of the document outline.
type Bookmark struct {
	Title    string
	Page     int // 1-based destination page
	Open     bool
	Children []Bookmark
}

// SetOutlines replaces the document outline. An empty list removes it.
func (s *Stamper) SetOutlines(bookmarks []Bookmark) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	catalog := s.r.Catalog()
	if len(bookmarks) == 0 {
		catalog.Delete("Outlines")
		if mode, _ := catalog.GetName("PageMode"); mode == "UseOutlines" {
			catalog.Delete("PageMode")
		}
		return nil
	}

	root := core.Dict{"Type": core.Name("Outlines")}
	rootRef := s.AddObject(root)
	count, err := s.outlineItems(rootRef, root, bookmarks)
	if err != nil {
		return err
	}
	root["Count"] = core.Int(count)

	catalog["Outlines"] = rootRef
	catalog["PageMode"] = core.Name("UseOutlines")
	return nil
}

// outlineItems links bookmarks as children of parent and returns the number
// of visible descendants.
func (s *Stamper) outlineItems(parentRef core.IndirectRef, parent core.Dict, bookmarks []Bookmark) (int, error) {
	refs := make([]core.IndirectRef, len(bookmarks))
	items := make([]core.Dict, len(bookmarks))
	for i, b := range bookmarks {
		page, err := s.r.PageRef(b.Page)
		if err != nil {
			return 0, fmt.Errorf("bookmark %q: %w", b.Title, err)
		}
		items[i] = core.Dict{
			"Title":  core.TextString(b.Title),
			"Parent": parentRef,
			"Dest":   core.Array{page, core.Name("Fit")},
		}
		refs[i] = s.AddObject(items[i])
	}

	visible := len(bookmarks)
	for i, item := range items {
		if i > 0 {
			item["Prev"] = refs[i-1]
		}
		if i < len(items)-1 {
			item["Next"] = refs[i+1]
		}
		if len(bookmarks[i].Children) == 0 {
			continue
		}
		n, err := s.outlineItems(refs[i], item, bookmarks[i].Children)
		if err != nil {
			return 0, err
		}
		if bookmarks[i].Open {
			item["Count"] = core.Int(n)
			visible += n
		} else {
			item["Count"] = core.Int(-len(bookmarks[i].Children))
		}
	}

	parent["First"] = refs[0]
	parent["Last"] = refs[len(refs)-1]
	return visible, nil
}
