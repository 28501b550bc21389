package pages

import (
	"errors"
	"fmt"

	"github.com/tsawler/folio/core"
)

// ErrPageNotFound is returned for page numbers outside 1..Count.
var ErrPageNotFound = errors.New("page not found")

// Resolver looks up indirect objects for the page tree.
type Resolver interface {
	Resolve(obj core.Object) (core.Object, error)
}

// inheritable lists the page attributes a /Pages node passes to its kids.
var inheritable = []string{"MediaBox", "CropBox", "Resources", "Rotate"}

// Letter is the media box used when neither a page nor its ancestors
// define one.
var Letter = Rectangle{URX: 612, URY: 792}

// Catalog represents the PDF document catalog (root of document structure)
type Catalog struct {
	dict     core.Dict
	resolver Resolver
}

// NewCatalog creates a new catalog from a dictionary
func NewCatalog(dict core.Dict, resolver Resolver) *Catalog {
	return &Catalog{dict: dict, resolver: resolver}
}

// Dict returns the underlying catalog dictionary.
func (c *Catalog) Dict() core.Dict { return c.dict }

// Version returns the /Version entry if present
func (c *Catalog) Version() string {
	if name, ok := c.dict.GetName("Version"); ok {
		return string(name)
	}
	return ""
}

// Pages returns the reference and dictionary of the page tree root.
func (c *Catalog) Pages() (core.IndirectRef, core.Dict, error) {
	obj := c.dict.Get("Pages")
	ref, _ := obj.(core.IndirectRef)
	if obj == nil {
		return ref, nil, fmt.Errorf("%w: catalog missing /Pages entry", core.ErrStructural)
	}
	resolved, err := c.resolver.Resolve(obj)
	if err != nil {
		return ref, nil, fmt.Errorf("failed to resolve /Pages: %w", err)
	}
	dict, ok := resolved.(core.Dict)
	if !ok {
		return ref, nil, fmt.Errorf("%w: invalid /Pages type %T", core.ErrStructural, resolved)
	}
	return ref, dict, nil
}

// Metadata returns the metadata stream if present
func (c *Catalog) Metadata() (*core.Stream, error) {
	obj := c.dict.Get("Metadata")
	if obj == nil {
		return nil, nil
	}
	resolved, err := c.resolver.Resolve(obj)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve /Metadata: %w", err)
	}
	stream, ok := resolved.(*core.Stream)
	if !ok {
		return nil, fmt.Errorf("invalid /Metadata type: %T", resolved)
	}
	return stream, nil
}

// Page is a leaf of the page tree. Build copies inherited attributes into
// the page dictionary, so accessors only consult Dict.
type Page struct {
	Ref      core.IndirectRef
	Dict     core.Dict
	resolver Resolver
}

// NewPage wraps a page dictionary.
func NewPage(ref core.IndirectRef, dict core.Dict, resolver Resolver) *Page {
	return &Page{Ref: ref, Dict: dict, resolver: resolver}
}

// MediaBox returns the page media box, or Letter if it is missing or
// malformed.
func (p *Page) MediaBox() Rectangle {
	if r, ok := p.box("MediaBox"); ok {
		return r
	}
	return Letter
}

// CropBox returns the crop box, defaulting to the media box.
func (p *Page) CropBox() Rectangle {
	if r, ok := p.box("CropBox"); ok {
		return r
	}
	return p.MediaBox()
}

func (p *Page) box(name string) (Rectangle, bool) {
	obj, err := p.resolve(p.Dict.Get(name))
	if err != nil {
		return Rectangle{}, false
	}
	arr, ok := obj.(core.Array)
	if !ok {
		return Rectangle{}, false
	}
	return RectangleFromArray(arr, p.resolver)
}

func (p *Page) resolve(obj core.Object) (core.Object, error) {
	if p.resolver == nil || obj == nil {
		return obj, nil
	}
	return p.resolver.Resolve(obj)
}

// Rotate returns the page rotation normalised to 0, 90, 180 or 270.
func (p *Page) Rotate() int {
	obj, err := p.resolve(p.Dict.Get("Rotate"))
	if err != nil {
		return 0
	}
	n, ok := core.Number(obj)
	if !ok {
		return 0
	}
	return NormalizeRotation(int(n))
}

// NormalizeRotation maps any multiple-of-90 angle, including negative ones,
// onto 0, 90, 180 or 270. Other angles are rounded down to a multiple of 90.
func NormalizeRotation(deg int) int {
	deg %= 360
	if deg < 0 {
		deg += 360
	}
	return deg / 90 * 90
}

// Resources returns the page resource dictionary, or nil if there is none.
func (p *Page) Resources() (core.Dict, error) {
	obj, err := p.resolve(p.Dict.Get("Resources"))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve Resources: %w", err)
	}
	d, _ := obj.(core.Dict)
	return d, nil
}

// Contents returns the page content stream(s) in drawing order.
func (p *Page) Contents() ([]*core.Stream, error) {
	obj, err := p.resolve(p.Dict.Get("Contents"))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve Contents: %w", err)
	}
	switch v := obj.(type) {
	case *core.Stream:
		return []*core.Stream{v}, nil
	case core.Array:
		streams := make([]*core.Stream, 0, len(v))
		for i, elem := range v {
			resolved, err := p.resolve(elem)
			if err != nil {
				return nil, fmt.Errorf("failed to resolve contents[%d]: %w", i, err)
			}
			if s, ok := resolved.(*core.Stream); ok {
				streams = append(streams, s)
			}
		}
		return streams, nil
	}
	return nil, nil
}

// Size returns the media box.
func (p *Page) Size() Rectangle { return p.MediaBox() }

// SizeWithRotation returns the media box with width and height swapped for
// 90 and 270 degree rotations.
func (p *Page) SizeWithRotation() Rectangle {
	r := p.MediaBox()
	if rot := p.Rotate(); rot == 90 || rot == 270 {
		return r.Rotate()
	}
	return r
}
