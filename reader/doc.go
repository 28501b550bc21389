// Package reader opens PDF documents and resolves their objects.
//
// A Reader locates the %PDF- header, loads the cross-reference data
// (classic tables, xref streams, hybrid files and /Prev chains), falls back
// to a linear rebuild scan when that data is unusable, authenticates
// against the standard security handler and indexes the page tree.
//
// # Opening documents
//
//	r, err := reader.Open("document.pdf", reader.WithPassword("secret"))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer r.Close()
//
// [New] and [NewFromBytes] read from an io.ReaderAt or a byte slice. On unix
// systems [Open] memory-maps the file.
//
// # Loading modes
//
// By default every object is read and decrypted while opening. With
// [WithPartial] objects are read on first use, and [Reader.Release] drops a
// cached object so it is read again later. The catalog, the /Encrypt
// dictionary, page tree nodes and objects created in memory are never
// released.
//
// # Errors
//
// A file that is not a PDF, or whose structure cannot be recovered, fails
// with [ErrInvalidFormat]. A wrong password fails with crypt.ErrBadPassword.
// Individual objects that cannot be parsed read as null.
//
// A Reader is not safe for concurrent use.
package reader
