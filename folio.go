// Package folio reads, inspects and rewrites PDF documents.
//
// The work is split across packages:
//
//   - reader opens a document and resolves its objects and pages
//   - stamper writes a modified copy of an opened document
//   - crypt implements the standard security handler
//   - pages, resolver and core hold the page tree, reference resolution
//     and the object model
//
// This package adds convenience entry points on top of them.
//
//	r, err := folio.Open("document.pdf")
//	if err != nil {
//	    // handle error
//	}
//	defer r.Close()
//	fmt.Println(r.PageCount())
//
// Several files can be summarised concurrently with [Inspect]:
//
//	reports, err := folio.Inspect(ctx, paths, folio.DefaultInspectConfig())
package folio

import (
	"bytes"
	"fmt"
	"io"

	"github.com/tsawler/folio/reader"
	"github.com/tsawler/folio/stamper"
)

// Open opens a PDF file. It is shorthand for reader.Open.
func Open(filename string, opts ...reader.Option) (*reader.Reader, error) {
	return reader.Open(filename, opts...)
}

// Rewrite opens src, lets edit modify it through a Stamper and writes the
// result to w. A nil edit copies the document, dropping unreachable
// objects.
func Rewrite(src []byte, w io.Writer, edit func(*stamper.Stamper) error, ropts []reader.Option, sopts ...stamper.Option) error {
	r, err := reader.NewFromBytes(src, ropts...)
	if err != nil {
		return err
	}
	defer r.Close()

	s, err := stamper.New(r, w, sopts...)
	if err != nil {
		return err
	}
	if edit != nil {
		if err := edit(s); err != nil {
			return fmt.Errorf("edit failed: %w", err)
		}
	}
	return s.Close()
}

// RewriteBytes is Rewrite returning the output as a byte slice.
func RewriteBytes(src []byte, edit func(*stamper.Stamper) error, ropts []reader.Option, sopts ...stamper.Option) ([]byte, error) {
	var buf bytes.Buffer
	if err := Rewrite(src, &buf, edit, ropts, sopts...); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Must is a helper that wraps a call to a function returning (T, error)
// and panics if the error is non-nil. It is intended for use in scripts
// or tests where error handling would be cumbersome.
//
//	count := folio.Must(folio.Open("document.pdf")).PageCount()
func Must[T any](val T, err error) T {
	if err != nil {
		panic(err)
	}
	return val
}
