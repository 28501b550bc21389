package stamper

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tsawler/folio/core"
)

// ErrFieldNotFound is returned by SetFieldValue for unknown field names.
var ErrFieldNotFound = errors.New("form field not found")

// AddAnnotation adds an annotation to page n and returns its reference.
// Widget annotations carrying /FT and /T are registered as form fields.
func (s *Stamper) AddAnnotation(n int, annot core.Dict) (core.IndirectRef, error) {
	if err := s.checkOpen(); err != nil {
		return core.IndirectRef{}, err
	}
	page, err := s.r.GetPage(n)
	if err != nil {
		return core.IndirectRef{}, err
	}
	if !annot.Has("Type") {
		annot["Type"] = core.Name("Annot")
	}
	annot["P"] = page.Ref
	ref := s.AddObject(annot)

	annots, err := s.array(page.Dict.Get("Annots"))
	if err != nil {
		return core.IndirectRef{}, err
	}
	page.Dict["Annots"] = append(append(core.Array(nil), annots...), ref)
	s.r.SetObject(page.Ref.Number, page.Dict)

	subtype, _ := annot.GetName("Subtype")
	if subtype == "Widget" && annot.Has("FT") && annot.Has("T") {
		if err := s.addField(ref); err != nil {
			return core.IndirectRef{}, err
		}
	}
	return ref, nil
}

func (s *Stamper) addField(ref core.IndirectRef) error {
	form, err := s.acroForm()
	if err != nil {
		return err
	}
	fields, err := s.array(form.Get("Fields"))
	if err != nil {
		return err
	}
	form["Fields"] = append(append(core.Array(nil), fields...), ref)
	return nil
}

// acroForm returns the interactive form dictionary, creating it when the
// catalog has none. The returned dictionary is kept in memory.
func (s *Stamper) acroForm() (core.Dict, error) {
	catalog := s.r.Catalog()
	obj := catalog.Get("AcroForm")
	form, ok, err := s.dict(obj)
	if err != nil {
		return nil, err
	}
	if !ok {
		form = core.Dict{"Fields": core.Array{}}
		catalog["AcroForm"] = s.AddObject(form)
		return form, nil
	}
	s.update(obj, form)
	return form, nil
}

// SetFieldValue sets the value of the field with the fully qualified name
// (parent names joined by dots). Button fields take the name of an
// appearance state; other fields take text. Viewers are asked to
// regenerate appearances.
func (s *Stamper) SetFieldValue(name, value string) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	form, ok, err := s.dict(s.r.Catalog().Get("AcroForm"))
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s (document has no form)", ErrFieldNotFound, name)
	}
	fields, err := s.array(form.Get("Fields"))
	if err != nil {
		return err
	}

	ref, field, ft, err := s.findField(fields, strings.Split(name, "."), "", 0)
	if err != nil {
		return err
	}
	if field == nil {
		return fmt.Errorf("%w: %s", ErrFieldNotFound, name)
	}

	if ft == "Btn" {
		state := core.Name(value)
		field["V"] = state
		if field.Has("AP") {
			field["AS"] = state
		}
		if err := s.setKidsState(field, state); err != nil {
			return err
		}
	} else {
		field["V"] = core.TextString(value)
	}
	s.update(ref, field)

	form["NeedAppearances"] = core.Bool(true)
	s.update(s.r.Catalog().Get("AcroForm"), form)
	return nil
}

// findField walks the field hierarchy matching one name component per
// level. Fields without /T are transparent and match at the same level.
func (s *Stamper) findField(fields core.Array, parts []string, inheritedFT core.Name, depth int) (core.Object, core.Dict, core.Name, error) {
	if depth > 32 {
		return nil, nil, "", nil
	}
	for _, obj := range fields {
		field, ok, err := s.dict(obj)
		if err != nil {
			return nil, nil, "", err
		}
		if !ok {
			continue
		}
		ft := inheritedFT
		if v, ok := field.GetName("FT"); ok {
			ft = v
		}
		kids, err := s.array(field.Get("Kids"))
		if err != nil {
			return nil, nil, "", err
		}

		t, hasName := field.GetString("T")
		if !hasName {
			if ref, f, fft, err := s.findField(kids, parts, ft, depth+1); err != nil || f != nil {
				return ref, f, fft, err
			}
			continue
		}
		if t.Text() != parts[0] {
			continue
		}
		if len(parts) == 1 {
			return obj, field, ft, nil
		}
		if ref, f, fft, err := s.findField(kids, parts[1:], ft, depth+1); err != nil || f != nil {
			return ref, f, fft, err
		}
	}
	return nil, nil, "", nil
}

// setKidsState switches the appearance state of button widgets below a
// field.
func (s *Stamper) setKidsState(field core.Dict, state core.Name) error {
	kids, err := s.array(field.Get("Kids"))
	if err != nil {
		return err
	}
	for _, obj := range kids {
		kid, ok, err := s.dict(obj)
		if err != nil {
			return err
		}
		if !ok || kid.Has("T") {
			continue
		}
		ap, _, err := s.dict(kid.Get("AP"))
		if err != nil {
			return err
		}
		normal, _, err := s.dict(ap.Get("N"))
		if err != nil {
			return err
		}
		if normal.Has(string(state)) {
			kid["AS"] = state
		} else {
			kid["AS"] = core.Name("Off")
		}
		s.update(obj, kid)
	}
	return nil
}
