// Package pages builds and edits the page index of a PDF document.
//
// [Build] walks the page tree below the catalog's /Pages entry and returns
// a [Tree], the flat list of page references in document order:
//
//	tree, err := pages.Build(pages.NewCatalog(catalog, res), res)
//	n := tree.Count()
//	page, err := tree.GetPage(1) // 1-based
//
// While walking, inheritable attributes (MediaBox, CropBox, Resources,
// Rotate) are copied into each leaf so that a [Page] never has to look at
// its ancestors. Malformed /Kids entries and cycles are cut off rather than
// failing the whole document.
//
// # Editing
//
// [Tree.Insert], [Tree.Delete] and [Tree.Select] change the live /Kids
// arrays and every affected /Count along with the index.
//
// # Object Resolution
//
// The [Resolver] interface abstracts object lookup so the page tree does
// not depend on the reader:
//
//	type Resolver interface {
//	    Resolve(obj core.Object) (core.Object, error)
//	}
package pages
