package stamper

import (
	"fmt"
	"time"

	"github.com/tsawler/folio/core"
)

// now is replaced in tests.
var now = time.Now

func (s *Stamper) applyInfo() error {
	if s.info == nil {
		return nil
	}
	trailer := s.r.Trailer()
	obj := trailer.Get("Info")
	old, _, err := s.dict(obj)
	if err != nil {
		return fmt.Errorf("failed to resolve /Info: %w", err)
	}
	info := old.Clone()
	for k, v := range s.info {
		if v == "" {
			delete(info, k)
			continue
		}
		info[k] = core.TextString(v)
	}
	if _, set := s.info["ModDate"]; !set {
		info["ModDate"] = core.String(pdfDate(now()))
	}

	if ref, ok := obj.(core.IndirectRef); ok && ref.Number > 0 {
		s.r.SetObject(ref.Number, info)
		return nil
	}
	trailer["Info"] = s.AddObject(info)
	return nil
}

// pdfDate formats t as a PDF date string, D:YYYYMMDDHHmmSSOHH'mm'.
func pdfDate(t time.Time) string {
	_, offset := t.Zone()
	if offset == 0 {
		return t.Format("D:20060102150405Z")
	}
	sign := '+'
	if offset < 0 {
		sign = '-'
		offset = -offset
	}
	return fmt.Sprintf("%s%c%02d'%02d'", t.Format("D:20060102150405"), sign, offset/3600, offset%3600/60)
}
