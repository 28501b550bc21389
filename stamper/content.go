package stamper

import (
	"bytes"
	"fmt"
	"sort"
	"strconv"

	"github.com/tsawler/folio/core"
	"github.com/tsawler/folio/pages"
)

// ContentProducer supplies drawing operators and the resources they use.
type ContentProducer interface {
	Content() []byte
	Resources() core.Dict
}

// resourcePrefix maps a resource category to the prefix of generated names.
var resourcePrefix = map[string]string{
	"Font":       "F",
	"XObject":    "Xo",
	"ExtGState":  "Gs",
	"ColorSpace": "Cs",
	"Pattern":    "P",
	"Shading":    "Sh",
	"Properties": "Pr",
}

// pageEdits collects the content added to one page.
type pageEdits struct {
	ref       core.IndirectRef
	existing  core.Dict // resource dictionary of the page when edits began
	resources core.Dict // category -> name -> object
	under     *PageContent
	over      *PageContent
}

// PageContent is a byte sink for operators drawn under or over a page's
// existing content.
type PageContent struct {
	edits *pageEdits
	buf   bytes.Buffer
}

// Write appends raw content stream operators.
func (c *PageContent) Write(p []byte) (int, error) {
	return c.buf.Write(p)
}

// Len returns the number of bytes written so far.
func (c *PageContent) Len() int { return c.buf.Len() }

// AddResource registers obj in the page resources under category kind
// (Font, XObject, ExtGState...) and returns the name to use in operators.
// Generated names never clash with the page's existing resources.
func (c *PageContent) AddResource(kind string, obj core.Object) (core.Name, error) {
	if kind == "" {
		return "", fmt.Errorf("resource category is empty")
	}
	prefix, ok := resourcePrefix[kind]
	if !ok {
		prefix = "R"
	}
	e := c.edits
	added, _ := e.resources[kind].(core.Dict)
	if added == nil {
		added = core.Dict{}
		e.resources[kind] = added
	}
	existing, _ := e.existing[kind].(core.Dict)

	for i := 1; ; i++ {
		name := prefix + strconv.Itoa(i)
		if existing.Has(name) || added.Has(name) {
			continue
		}
		added[name] = obj
		return core.Name(name), nil
	}
}

// ContentUnder returns the sink for content drawn beneath page n.
func (s *Stamper) ContentUnder(n int) (*PageContent, error) {
	e, err := s.edits(n)
	if err != nil {
		return nil, err
	}
	if e.under == nil {
		e.under = &PageContent{edits: e}
	}
	return e.under, nil
}

// ContentOver returns the sink for content drawn on top of page n.
func (s *Stamper) ContentOver(n int) (*PageContent, error) {
	e, err := s.edits(n)
	if err != nil {
		return nil, err
	}
	if e.over == nil {
		e.over = &PageContent{edits: e}
	}
	return e.over, nil
}

// Splice draws the producer's content on page n as a form XObject, beneath
// the existing content when under is true.
func (s *Stamper) Splice(n int, under bool, p ContentProducer) error {
	var (
		c   *PageContent
		err error
	)
	if under {
		c, err = s.ContentUnder(n)
	} else {
		c, err = s.ContentOver(n)
	}
	if err != nil {
		return err
	}
	box, err := s.r.PageSizeWithRotation(n)
	if err != nil {
		return err
	}

	dict := core.Dict{
		"Type":    core.Name("XObject"),
		"Subtype": core.Name("Form"),
		"BBox":    box.Array(),
	}
	if res := p.Resources(); len(res) > 0 {
		dict["Resources"] = res
	}
	form := core.NewStream(dict, append([]byte(nil), p.Content()...))
	if err := form.EncodeFlate(); err != nil {
		return fmt.Errorf("failed to compress form: %w", err)
	}

	name, err := c.AddResource("XObject", s.AddObject(form))
	if err != nil {
		return err
	}
	fmt.Fprintf(c, "q %s Do Q\n", core.AppendObject(nil, name))
	return nil
}

func (s *Stamper) edits(n int) (*pageEdits, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	page, err := s.r.GetPage(n)
	if err != nil {
		return nil, err
	}
	if e, ok := s.content[page.Ref.Number]; ok {
		return e, nil
	}
	res, err := page.Resources()
	if err != nil {
		return nil, err
	}
	e := &pageEdits{ref: page.Ref, resources: core.Dict{}}
	e.existing = make(core.Dict, len(res))
	for kind, obj := range res {
		sub, _, err := s.dict(obj)
		if err != nil {
			return nil, err
		}
		e.existing[kind] = sub
	}
	s.content[page.Ref.Number] = e
	return e, nil
}

// applyContent merges the collected content into the page dictionaries.
func (s *Stamper) applyContent() error {
	if len(s.content) == 0 {
		return nil
	}
	index := make(map[int]int)
	for i, ref := range s.r.Pages().Refs() {
		index[ref.Number] = i + 1
	}

	nums := make([]int, 0, len(s.content))
	for num := range s.content {
		nums = append(nums, num)
	}
	sort.Ints(nums)

	for _, num := range nums {
		n, ok := index[num]
		if !ok {
			s.log.Warn("page removed after content was added", "object", num)
			continue
		}
		page, err := s.r.GetPage(n)
		if err != nil {
			return err
		}
		if err := s.mergePage(page, s.content[num]); err != nil {
			return fmt.Errorf("page %d: %w", n, err)
		}
	}
	return nil
}

func (s *Stamper) mergePage(page *pages.Page, e *pageEdits) error {
	if err := s.mergeResources(page, e.resources); err != nil {
		return err
	}

	rot := rotation(page.Rotate(), page.MediaBox())
	var under, over []byte
	if e.under != nil {
		under = e.under.buf.Bytes()
	}
	if e.over != nil {
		over = e.over.buf.Bytes()
	}

	pre := make([]byte, 0, len(rot)+len(under)+16)
	pre = append(pre, "q\n"...)
	pre = append(pre, rot...)
	pre = append(pre, under...)
	pre = append(pre, "\nQ\nq\n"...)

	post := make([]byte, 0, len(rot)+len(over)+16)
	post = append(post, "\nQ\nq\n"...)
	post = append(post, rot...)
	post = append(post, over...)
	post = append(post, "\nQ\n"...)

	contents := core.Array{s.contentStream(pre)}
	switch v := page.Dict.Get("Contents").(type) {
	case core.IndirectRef:
		resolved, err := s.r.Resolve(v)
		if err != nil {
			return err
		}
		if arr, ok := resolved.(core.Array); ok {
			contents = append(contents, arr...)
		} else if resolved != nil && !core.IsNull(resolved) {
			contents = append(contents, v)
		}
	case core.Array:
		contents = append(contents, v...)
	case *core.Stream:
		contents = append(contents, s.AddObject(v))
	}
	contents = append(contents, s.contentStream(post))

	page.Dict["Contents"] = contents
	s.r.SetObject(page.Ref.Number, page.Dict)
	return nil
}

func (s *Stamper) contentStream(data []byte) core.IndirectRef {
	stm := core.NewStream(core.Dict{}, data)
	if len(data) > 64 {
		if err := stm.EncodeFlate(); err != nil {
			s.log.Debug("content left uncompressed", "error", err)
		}
	}
	return s.AddObject(stm)
}

// mergeResources copies the page resources into a fresh dictionary holding
// the added entries. Shared resource dictionaries are not modified.
func (s *Stamper) mergeResources(page *pages.Page, added core.Dict) error {
	if len(added) == 0 {
		return nil
	}
	res, err := page.Resources()
	if err != nil {
		return err
	}
	merged := res.Clone()
	for kind, entries := range added {
		sub, _, err := s.dict(merged.Get(kind))
		if err != nil {
			return err
		}
		out := sub.Clone()
		for name, obj := range entries.(core.Dict) {
			out[name] = obj
		}
		merged[kind] = out
	}
	page.Dict["Resources"] = merged
	return nil
}

// rotation returns the transform that maps the visible page, as reported
// by PageSizeWithRotation, onto the media box of a page rotated clockwise
// by deg degrees.
func rotation(deg int, box pages.Rectangle) []byte {
	num := func(f float64) string { return strconv.FormatFloat(f, 'f', -1, 64) }
	switch deg {
	case 90:
		return []byte("0 1 -1 0 " + num(box.LLX+box.URX) + " 0 cm\n")
	case 180:
		return []byte("-1 0 0 -1 " + num(box.LLX+box.URX) + " " + num(box.LLY+box.URY) + " cm\n")
	case 270:
		return []byte("0 -1 1 0 0 " + num(box.LLY+box.URY) + " cm\n")
	}
	return nil
}
