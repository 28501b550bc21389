// Package encrypted builds encrypted test documents. It is separate from
// pdftest so that core tests can use pdftest without an import cycle.
package encrypted

import (
	"fmt"

	"github.com/tsawler/folio/core"
	"github.com/tsawler/folio/crypt"
	"github.com/tsawler/folio/internal/pdftest"
)

// Document renders a one-page document whose objects are encrypted with h.
// The page draws content and the info dictionary has the given title.
func Document(h *crypt.Handler, content, title string) ([]byte, error) {
	id := h.ID()
	b := pdftest.New()
	b.Trailer = fmt.Sprintf("/Root 1 0 R /Info 5 0 R /Encrypt 6 0 R /ID [<%x> <%x>]", id, id)

	objs := map[int]core.Object{
		1: core.Dict{"Type": core.Name("Catalog"), "Pages": core.IndirectRef{Number: 2}},
		2: core.Dict{"Type": core.Name("Pages"), "Kids": core.Array{core.IndirectRef{Number: 3}}, "Count": core.Int(1)},
		3: core.Dict{"Type": core.Name("Page"), "Parent": core.IndirectRef{Number: 2}, "Contents": core.IndirectRef{Number: 4}},
		5: core.Dict{"Title": core.String(title)},
	}
	for num, obj := range objs {
		enc, err := h.EncryptObject(num, 0, obj)
		if err != nil {
			return nil, err
		}
		b.Add(num, string(core.AppendObject(nil, enc)))
	}
	data, err := h.EncryptStream(4, 0, []byte(content))
	if err != nil {
		return nil, err
	}
	b.AddStream(4, "<< >>", data)
	b.Add(6, string(core.AppendObject(nil, h.Dict())))
	return b.Bytes(), nil
}
