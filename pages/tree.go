package pages

import (
	"fmt"

	"github.com/tsawler/folio/core"
	"github.com/tsawler/folio/internal/logger"
)

// Tree is the flattened page index of a document. It owns the live /Kids
// arrays and /Count entries of the page tree and keeps them in step with
// the index on every edit.
type Tree struct {
	resolver Resolver
	rootRef  core.IndirectRef
	root     core.Dict
	refs     []core.IndirectRef
	maxDepth int
	log      *logger.Logger
}

// Option configures a Tree
type Option func(*Tree)

// WithLogger sets the logger used for repair messages.
func WithLogger(l *logger.Logger) Option {
	return func(t *Tree) { t.log = l }
}

// WithMaxDepth bounds the nesting depth of /Pages nodes (default: 64).
func WithMaxDepth(depth int) Option {
	return func(t *Tree) {
		if depth > 0 {
			t.maxDepth = depth
		}
	}
}

type frame struct {
	node  core.Dict
	kids  core.Array
	next  int
	attrs core.Dict
	depth int
	count int
}

// Build walks the page tree below the catalog's /Pages entry. Leaves get
// /Type /Page and any inherited MediaBox, CropBox, Resources and Rotate
// copied in; a leaf with no media box anywhere gets Letter. A kid that is not
// a reference, does not resolve to a dictionary, or was already visited
// truncates its /Kids array at that position. /Count entries are rewritten
// to match what was found.
func Build(catalog *Catalog, res Resolver, opts ...Option) (*Tree, error) {
	t := &Tree{resolver: res, maxDepth: 64}
	for _, opt := range opts {
		opt(t)
	}

	rootRef, root, err := catalog.Pages()
	if err != nil {
		return nil, err
	}
	t.rootRef, t.root = rootRef, root

	visited := make(map[refKey]bool)
	if rootRef.Number > 0 {
		visited[keyOf(rootRef)] = true
	}

	kids, err := t.kidsOf(root)
	if err != nil {
		return nil, err
	}
	stack := []*frame{{node: root, kids: kids, attrs: inherit(nil, root)}}

	for len(stack) > 0 {
		f := stack[len(stack)-1]
		if f.next >= len(f.kids) {
			f.node["Count"] = core.Int(f.count)
			stack = stack[:len(stack)-1]
			if len(stack) > 0 {
				stack[len(stack)-1].count += f.count
			}
			continue
		}
		i := f.next
		f.next++

		ref, dict, reason := t.kid(f.kids[i], visited)
		if reason == "" && isNode(dict) && f.depth+1 >= t.maxDepth {
			reason = "page tree too deep"
		}
		if reason != "" {
			t.log.Warn("truncating page tree /Kids", "index", i, "reason", reason)
			f.kids = f.kids[:i]
			f.node["Kids"] = f.kids
			continue
		}
		visited[keyOf(ref)] = true

		if isNode(dict) {
			kids, err := t.kidsOf(dict)
			if err != nil {
				return nil, err
			}
			stack = append(stack, &frame{
				node:  dict,
				kids:  kids,
				attrs: inherit(f.attrs, dict),
				depth: f.depth + 1,
			})
			continue
		}

		stampLeaf(dict, f.attrs)
		t.refs = append(t.refs, ref)
		f.count++
	}
	return t, nil
}

// kid checks one /Kids entry and returns why it is unusable, if it is.
func (t *Tree) kid(obj core.Object, visited map[refKey]bool) (core.IndirectRef, core.Dict, string) {
	ref, ok := obj.(core.IndirectRef)
	if !ok {
		return ref, nil, fmt.Sprintf("kid is a %s, not a reference", typeName(obj))
	}
	if visited[keyOf(ref)] {
		return ref, nil, fmt.Sprintf("%s revisits a page tree node", ref)
	}
	resolved, err := t.resolver.Resolve(ref)
	if err != nil {
		return ref, nil, err.Error()
	}
	dict, ok := resolved.(core.Dict)
	if !ok {
		return ref, nil, fmt.Sprintf("%s is a %s, not a dictionary", ref, typeName(resolved))
	}
	return ref, dict, ""
}

func typeName(obj core.Object) string {
	if obj == nil {
		return "null"
	}
	return obj.Type().String()
}

func isNode(d core.Dict) bool {
	typ, _ := d.GetName("Type")
	return typ == "Pages" || (typ != "Page" && d.Has("Kids"))
}

// inherit returns parent overridden by the inheritable keys present on node.
func inherit(parent, node core.Dict) core.Dict {
	out := make(core.Dict, len(inheritable))
	for k, v := range parent {
		out[k] = v
	}
	for _, k := range inheritable {
		if v := node.Get(k); v != nil {
			out[k] = v
		}
	}
	return out
}

func stampLeaf(d, attrs core.Dict) {
	d["Type"] = core.Name("Page")
	for _, k := range inheritable {
		if !d.Has(k) {
			if v := attrs.Get(k); v != nil {
				d[k] = v
			}
		}
	}
	if !d.Has("MediaBox") {
		d["MediaBox"] = Letter.Array()
	}
}

func missingInherited(d core.Dict) bool {
	for _, k := range inheritable {
		if !d.Has(k) {
			return true
		}
	}
	return false
}

func (t *Tree) kidsOf(node core.Dict) (core.Array, error) {
	obj := node.Get("Kids")
	if obj == nil {
		return nil, nil
	}
	resolved, err := t.resolver.Resolve(obj)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve /Kids: %w", err)
	}
	kids, _ := resolved.(core.Array)
	return kids, nil
}

type refKey struct{ num, gen int }

func keyOf(r core.IndirectRef) refKey { return refKey{r.Number, r.Generation} }

func sameRef(a, b core.IndirectRef) bool { return keyOf(a) == keyOf(b) }

// Count returns the number of pages.
func (t *Tree) Count() int { return len(t.refs) }

// Root returns the reference and dictionary of the page tree root.
func (t *Tree) Root() (core.IndirectRef, core.Dict) { return t.rootRef, t.root }

// Refs returns the page references in document order.
func (t *Tree) Refs() []core.IndirectRef {
	return append([]core.IndirectRef(nil), t.refs...)
}

// PageRef returns the reference of page n (1-based).
func (t *Tree) PageRef(n int) (core.IndirectRef, error) {
	if n < 1 || n > len(t.refs) {
		return core.IndirectRef{}, fmt.Errorf("%w: page %d of %d", ErrPageNotFound, n, len(t.refs))
	}
	return t.refs[n-1], nil
}

// GetPage returns page n (1-based).
func (t *Tree) GetPage(n int) (*Page, error) {
	ref, err := t.PageRef(n)
	if err != nil {
		return nil, err
	}
	d, err := t.dict(ref)
	if err != nil {
		return nil, err
	}
	if missingInherited(d) {
		// Re-read from the file after a release; inherit again.
		if _, parent, err := t.parentOf(d); err == nil {
			stampLeaf(d, t.ancestorAttrs(parent))
		}
	}
	return NewPage(ref, d, t.resolver), nil
}

// PageSize returns the media box of page n.
func (t *Tree) PageSize(n int) (Rectangle, error) {
	p, err := t.GetPage(n)
	if err != nil {
		return Rectangle{}, err
	}
	return p.Size(), nil
}

// PageSizeWithRotation returns the media box of page n with width and
// height swapped when the page is rotated by 90 or 270 degrees.
func (t *Tree) PageSizeWithRotation(n int) (Rectangle, error) {
	p, err := t.GetPage(n)
	if err != nil {
		return Rectangle{}, err
	}
	return p.SizeWithRotation(), nil
}

func (t *Tree) dict(ref core.IndirectRef) (core.Dict, error) {
	obj, err := t.resolver.Resolve(ref)
	if err != nil {
		return nil, err
	}
	d, ok := obj.(core.Dict)
	if !ok {
		return nil, fmt.Errorf("%w: %s is a %s, not a page dictionary", core.ErrStructural, ref, typeName(obj))
	}
	return d, nil
}

// parentOf returns the /Parent node of d, or the root when d has none.
func (t *Tree) parentOf(d core.Dict) (core.IndirectRef, core.Dict, error) {
	ref, ok := d.Get("Parent").(core.IndirectRef)
	if !ok {
		return t.rootRef, t.root, nil
	}
	parent, err := t.dict(ref)
	if err != nil {
		return ref, nil, err
	}
	return ref, parent, nil
}

// adjustCounts adds delta to /Count on node and every ancestor.
func (t *Tree) adjustCounts(node core.Dict, delta int) error {
	for depth := 0; node != nil; depth++ {
		if depth > t.maxDepth {
			return fmt.Errorf("%w: /Parent chain longer than %d", core.ErrStructural, t.maxDepth)
		}
		count, _ := node.GetInt("Count")
		node["Count"] = core.Int(int(count) + delta)

		ref, ok := node.Get("Parent").(core.IndirectRef)
		if !ok {
			return nil
		}
		var err error
		if node, err = t.dict(ref); err != nil {
			return err
		}
	}
	return nil
}

func indexOf(kids core.Array, ref core.IndirectRef) int {
	for i, k := range kids {
		if r, ok := k.(core.IndirectRef); ok && sameRef(r, ref) {
			return i
		}
	}
	return -1
}

// ancestorAttrs collects inheritable attributes from node and its ancestors,
// nearest first.
func (t *Tree) ancestorAttrs(node core.Dict) core.Dict {
	chain := []core.Dict{node}
	for len(chain) <= t.maxDepth {
		ref, ok := chain[len(chain)-1].Get("Parent").(core.IndirectRef)
		if !ok {
			break
		}
		d, err := t.dict(ref)
		if err != nil {
			break
		}
		chain = append(chain, d)
	}
	var attrs core.Dict
	for i := len(chain) - 1; i >= 0; i-- {
		attrs = inherit(attrs, chain[i])
	}
	return attrs
}

// Insert makes the page at ref page n (1-based, 1..Count+1). The page is
// placed in the same /Kids array as the page it displaces, or after the
// last page when n is Count+1.
func (t *Tree) Insert(n int, ref core.IndirectRef) error {
	count := len(t.refs)
	if n < 1 || n > count+1 {
		return fmt.Errorf("%w: cannot insert at %d of %d", ErrPageNotFound, n, count)
	}
	page, err := t.dict(ref)
	if err != nil {
		return err
	}

	parentRef, parent := t.rootRef, t.root
	var at int
	switch {
	case n <= count:
		target, err := t.dict(t.refs[n-1])
		if err != nil {
			return err
		}
		if parentRef, parent, err = t.parentOf(target); err != nil {
			return err
		}
		kids, err := t.kidsOf(parent)
		if err != nil {
			return err
		}
		if at = indexOf(kids, t.refs[n-1]); at < 0 {
			return fmt.Errorf("%w: %s missing from its parent /Kids", core.ErrStructural, t.refs[n-1])
		}
	case count > 0:
		last, err := t.dict(t.refs[count-1])
		if err != nil {
			return err
		}
		if parentRef, parent, err = t.parentOf(last); err != nil {
			return err
		}
		kids, err := t.kidsOf(parent)
		if err != nil {
			return err
		}
		at = len(kids)
	default:
		kids, err := t.kidsOf(parent)
		if err != nil {
			return err
		}
		at = len(kids)
	}

	kids, err := t.kidsOf(parent)
	if err != nil {
		return err
	}
	updated := make(core.Array, 0, len(kids)+1)
	updated = append(updated, kids[:at]...)
	updated = append(updated, ref)
	updated = append(updated, kids[at:]...)
	parent["Kids"] = updated

	if parentRef.Number > 0 {
		page["Parent"] = parentRef
	}
	stampLeaf(page, t.ancestorAttrs(parent))
	if err := t.adjustCounts(parent, 1); err != nil {
		return err
	}

	t.refs = append(t.refs, core.IndirectRef{})
	copy(t.refs[n:], t.refs[n-1:])
	t.refs[n-1] = ref
	return nil
}

// Delete removes page n (1-based) from the tree.
func (t *Tree) Delete(n int) error {
	ref, err := t.PageRef(n)
	if err != nil {
		return err
	}
	page, err := t.dict(ref)
	if err != nil {
		return err
	}
	_, parent, err := t.parentOf(page)
	if err != nil {
		return err
	}
	kids, err := t.kidsOf(parent)
	if err != nil {
		return err
	}
	at := indexOf(kids, ref)
	if at < 0 {
		return fmt.Errorf("%w: %s missing from its parent /Kids", core.ErrStructural, ref)
	}
	updated := make(core.Array, 0, len(kids)-1)
	updated = append(updated, kids[:at]...)
	updated = append(updated, kids[at+1:]...)
	parent["Kids"] = updated
	if err := t.adjustCounts(parent, -1); err != nil {
		return err
	}

	t.refs = append(t.refs[:n-1], t.refs[n:]...)
	return nil
}

// Select keeps only the listed pages (1-based), in the given order, as
// direct kids of the root. Out-of-range and repeated numbers are ignored.
// It returns the references of the pages that were dropped.
func (t *Tree) Select(pages []int) ([]core.IndirectRef, error) {
	seen := make(map[int]bool, len(pages))
	kept := make([]core.IndirectRef, 0, len(pages))
	for _, n := range pages {
		if n < 1 || n > len(t.refs) || seen[n] {
			continue
		}
		seen[n] = true
		ref := t.refs[n-1]
		page, err := t.dict(ref)
		if err != nil {
			return nil, err
		}
		if t.rootRef.Number > 0 {
			page["Parent"] = t.rootRef
		} else {
			delete(page, "Parent")
		}
		kept = append(kept, ref)
	}

	var dropped []core.IndirectRef
	for i, ref := range t.refs {
		if !seen[i+1] {
			dropped = append(dropped, ref)
		}
	}

	kids := make(core.Array, len(kept))
	for i, ref := range kept {
		kids[i] = ref
	}
	t.root["Kids"] = kids
	t.root["Count"] = core.Int(len(kept))
	t.refs = kept
	return dropped, nil
}
