// Package stamper writes a modified copy of a document opened with the
// reader package.
//
// A Stamper takes over a Reader: page content can be added beneath or on
// top of existing pages, annotations and form values changed, the outline
// and info dictionary replaced, and objects or whole pages imported from
// other documents. Close writes every object reachable from the catalog
// exactly once, renumbered from 1, followed by a classic cross-reference
// table or, with [WithFullCompression], object streams and a
// cross-reference stream.
//
//	r, err := reader.Open("in.pdf")
//	if err != nil {
//	    return err
//	}
//	defer r.Close()
//
//	s, err := stamper.New(r, out)
//	if err != nil {
//	    return err
//	}
//	over, _ := s.ContentOver(1)
//	fmt.Fprint(over, "0 0 1 rg 36 36 72 72 re f")
//	return s.Close()
//
// Encrypted documents must be opened with the owner password. Their
// output keeps the source encryption unless [WithEncryption] is given.
package stamper
