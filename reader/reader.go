package reader

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"

	"github.com/tsawler/folio/core"
	"github.com/tsawler/folio/crypt"
	"github.com/tsawler/folio/internal/logger"
	"github.com/tsawler/folio/pages"
	"github.com/tsawler/folio/resolver"
)

var (
	// ErrInvalidFormat is returned when the input is not a PDF file or its
	// structure cannot be recovered.
	ErrInvalidFormat = core.ErrInvalidFormat

	// ErrClosed is returned by operations on a closed Reader.
	ErrClosed = errors.New("reader is closed")
)

// PDFVersion represents a PDF version
type PDFVersion struct {
	Major int
	Minor int
}

// String returns the version as a string (e.g., "1.7")
func (v PDFVersion) String() string {
	return fmt.Sprintf("%d.%d", v.Major, v.Minor)
}

func (v PDFVersion) less(o PDFVersion) bool {
	return v.Major < o.Major || (v.Major == o.Major && v.Minor < o.Minor)
}

// Reader is an open PDF document. A Reader is not safe for concurrent use.
type Reader struct {
	cfg    Config
	log    *logger.Logger
	src    io.ReaderAt
	size   int64
	closer io.Closer
	closed bool
	doc    core.DocID

	version PDFVersion
	xref    *core.XRefTable
	trailer core.Dict
	rebuilt bool
	pending []int // object streams found by a rebuild, not yet indexed

	objects map[int]core.Object
	objStms map[int]*core.ObjectStream
	pinned  map[int]bool
	loading map[int]bool
	parsers []*core.Parser

	crypt  *crypt.Handler
	encNum int

	res      *resolver.Resolver
	catalog  core.Dict
	tree     *pages.Tree
	tampered bool
}

// Open opens the named file. On unix systems the file is memory-mapped.
func Open(filename string, opts ...Option) (*Reader, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to get file info: %w", err)
	}
	src, closer, err := openSource(f, info.Size())
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to map file: %w", err)
	}
	r, err := newReader(src, info.Size(), closer, opts)
	if err != nil {
		closer.Close()
		return nil, err
	}
	return r, nil
}

// New reads a document from src, which must hold size bytes.
func New(src io.ReaderAt, size int64, opts ...Option) (*Reader, error) {
	return newReader(src, size, nil, opts)
}

// NewFromBytes reads a document held in memory.
func NewFromBytes(data []byte, opts ...Option) (*Reader, error) {
	return newReader(bytes.NewReader(data), int64(len(data)), nil, opts)
}

func newReader(src io.ReaderAt, size int64, closer io.Closer, opts []Option) (*Reader, error) {
	o := options{cfg: DefaultConfig()}
	for _, opt := range opts {
		opt(&o)
	}
	if err := o.cfg.Validate(); err != nil {
		return nil, err
	}

	r := &Reader{
		cfg:    o.cfg,
		src:    src,
		size:   size,
		closer: closer,
		doc:    core.NewDocID(),
	}
	r.log = o.log.With("doc", uint64(r.doc))
	r.res = resolver.New(r, resolver.WithMaxDepth(r.cfg.MaxDepth))
	r.resetCache()

	if err := r.open(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Reader) resetCache() {
	r.objects = make(map[int]core.Object)
	r.objStms = make(map[int]*core.ObjectStream)
	r.pinned = make(map[int]bool)
	r.loading = make(map[int]bool)
}

// open runs the load sequence: header, cross-reference data (rebuilt when
// unreadable), encryption, catalog and page tree. A catalog or page tree
// that cannot be read from an intact xref triggers one rebuild.
func (r *Reader) open() error {
	if err := r.readHeader(); err != nil {
		return err
	}

	if err := r.loadXRef(); err != nil {
		r.log.Warn("cross-reference data unusable", "error", err)
		if err := r.rebuild(); err != nil {
			return err
		}
	}

	err := r.loadDocument()
	if err != nil && !r.rebuilt && !isPasswordError(err) {
		r.log.Warn("document structure unreadable, rebuilding", "error", err)
		if rerr := r.rebuild(); rerr != nil {
			return fmt.Errorf("%w (rebuild: %v)", err, rerr)
		}
		err = r.loadDocument()
	}
	if err != nil {
		return err
	}

	if !r.cfg.Partial {
		r.loadAll()
	}
	r.loading = make(map[int]bool)
	return nil
}

func isPasswordError(err error) bool {
	return errors.Is(err, crypt.ErrBadPassword) || errors.Is(err, crypt.ErrUnsupportedEncryption)
}

// loadDocument sets up decryption and reads the catalog and page tree.
func (r *Reader) loadDocument() error {
	r.resetCache()
	r.crypt, r.encNum = nil, 0
	if err := r.setupEncryption(); err != nil {
		return err
	}
	r.indexPendingStreams()

	root := r.trailer.Get("Root")
	catalog, ok, err := r.res.Dict(root)
	if err != nil {
		return fmt.Errorf("%w: failed to resolve catalog: %v", ErrInvalidFormat, err)
	}
	if !ok {
		return fmt.Errorf("%w: catalog is missing or not a dictionary", ErrInvalidFormat)
	}
	r.catalog = catalog
	if ref, ok := root.(core.IndirectRef); ok {
		r.pinned[ref.Number] = true
	}

	if v, ok := catalog.GetName("Version"); ok {
		if cv, ok := parseVersion([]byte(v)); ok && r.version.less(cv) {
			r.version = cv
		}
	}

	tree, err := pages.Build(pages.NewCatalog(catalog, r), r,
		pages.WithLogger(r.log), pages.WithMaxDepth(r.cfg.MaxDepth))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}
	r.tree = tree
	// Build repaired /Count and /Kids on the interior nodes.
	if rootRef, _ := tree.Root(); rootRef.Number > 0 {
		r.pinned[rootRef.Number] = true
	}
	for _, ref := range tree.Refs() {
		r.pinParents(ref)
	}
	return nil
}

var (
	headerRE  = regexp.MustCompile(`%PDF-(\d+)\.(\d+)`)
	versionRE = regexp.MustCompile(`^(\d+)\.(\d+)`)
)

// readHeader finds %PDF-x.y within the header window.
func (r *Reader) readHeader() error {
	n := int64(r.cfg.HeaderWindow)
	if r.size < n {
		n = r.size
	}
	buf := make([]byte, n)
	read, err := r.src.ReadAt(buf, 0)
	if err != nil && err != io.EOF {
		return fmt.Errorf("failed to read header: %w", err)
	}
	v, ok := parseVersion(buf[:read])
	if !ok {
		return fmt.Errorf("%w: no %%PDF- header in the first %d bytes", ErrInvalidFormat, n)
	}
	r.version = v
	return nil
}

func parseVersion(b []byte) (PDFVersion, bool) {
	m := headerRE.FindSubmatch(b)
	if m == nil {
		// catalog /Version values have no %PDF- prefix
		m = versionRE.FindSubmatch(b)
		if m == nil {
			return PDFVersion{}, false
		}
	}
	major, _ := strconv.Atoi(string(m[1]))
	minor, _ := strconv.Atoi(string(m[2]))
	return PDFVersion{Major: major, Minor: minor}, true
}

func (r *Reader) loadXRef() error {
	xp := core.NewXRefParser(r.src, r.size)
	xp.SetLogger(r.log)
	xp.SetDocID(r.doc)
	table, err := xp.Load()
	if err != nil {
		return err
	}
	r.xref = table
	r.trailer = table.Trailer
	return nil
}

func (r *Reader) rebuild() error {
	res, err := core.Rebuild(r.src, r.size, r.doc, r.log)
	if err != nil {
		return err
	}
	r.xref = res.Table
	r.trailer = res.Table.Trailer
	r.pending = res.ObjectStreams
	r.rebuilt = true
	return nil
}

// indexPendingStreams adds the members of object streams found by a
// rebuild. This runs after decryption is set up because the containers may
// be encrypted.
func (r *Reader) indexPendingStreams() {
	for _, num := range r.pending {
		stm, err := r.objectStream(num)
		if err != nil {
			r.log.Warn("rebuild: unreadable object stream", "object", num, "error", err)
			continue
		}
		members, err := stm.ObjectNumbers()
		if err != nil {
			r.log.Warn("rebuild: unreadable object stream header", "object", num, "error", err)
			continue
		}
		added := r.xref.AddObjectStream(num, members)
		r.log.Debug("rebuild: indexed object stream", "object", num, "members", len(members), "added", added)
	}
	r.pending = nil
	size, _ := r.trailer.GetInt("Size")
	if n := r.xref.MaxObjectNumber() + 1; n > int(size) {
		r.trailer["Size"] = core.Int(n)
	}
}

// setupEncryption authenticates against the /Encrypt dictionary, if any.
func (r *Reader) setupEncryption() error {
	encObj := r.trailer.Get("Encrypt")
	if core.IsNull(encObj) {
		return nil
	}
	if ref, ok := encObj.(core.IndirectRef); ok {
		r.encNum = ref.Number
		r.pinned[ref.Number] = true
	}
	enc, ok, err := r.res.Dict(encObj)
	if err != nil || !ok {
		return fmt.Errorf("%w: /Encrypt is not a dictionary", crypt.ErrUnsupportedEncryption)
	}

	h, err := crypt.NewHandler(enc, r.fileID())
	if err != nil {
		return err
	}
	if err := h.Authenticate(r.cfg.Password); err != nil {
		return err
	}
	r.crypt = h
	r.log.Debug("document decrypted", "revision", h.Revision(), "bits", h.KeyLength(), "owner", h.OwnerAuthenticated())

	// Anything read while resolving /Encrypt was read in the clear.
	for num := range r.objects {
		if num != r.encNum {
			delete(r.objects, num)
		}
	}
	r.objStms = make(map[int]*core.ObjectStream)
	return nil
}

// fileID returns the first /ID string of the trailer.
func (r *Reader) fileID() []byte {
	arr, ok, _ := r.res.Array(r.trailer.Get("ID"))
	if !ok || len(arr) == 0 {
		return nil
	}
	s, _ := arr[0].(core.String)
	return []byte(s)
}

// loadAll materialises every in-use object and drops the object stream
// helpers afterwards.
func (r *Reader) loadAll() {
	for _, num := range r.xref.ObjectNumbers() {
		if _, err := r.GetObject(num); err != nil {
			r.log.Warn("failed to load object", "object", num, "error", err)
		}
	}
	r.objStms = make(map[int]*core.ObjectStream)
}

// Close releases the byte source. Objects already loaded stay usable.
func (r *Reader) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	r.parsers = nil
	if r.closer != nil {
		return r.closer.Close()
	}
	return nil
}

// DocID returns the identifier bound to every reference read from this
// document.
func (r *Reader) DocID() core.DocID { return r.doc }

// Version returns the effective PDF version: the header version, raised by
// a catalog /Version entry.
func (r *Reader) Version() PDFVersion { return r.version }

// Trailer returns the merged trailer dictionary
func (r *Reader) Trailer() core.Dict { return r.trailer }

// XRefTable returns the cross-reference table
func (r *Reader) XRefTable() *core.XRefTable { return r.xref }

// Rebuilt reports whether the cross-reference table was reconstructed by
// scanning the file.
func (r *Reader) Rebuilt() bool { return r.rebuilt }

// Catalog returns the document catalog dictionary.
func (r *Reader) Catalog() core.Dict { return r.catalog }

// FileSize returns the size of the PDF file in bytes
func (r *Reader) FileSize() int64 { return r.size }

// NumObjects returns the object count from the trailer /Size, or the
// highest object number plus one when that is larger.
func (r *Reader) NumObjects() int {
	size, _ := r.trailer.GetInt("Size")
	n := int(size)
	if max := r.xref.MaxObjectNumber() + 1; max > n {
		n = max
	}
	return n
}

// Tamper marks the reader as handed to a writer and reports whether it
// already was.
func (r *Reader) Tamper() bool {
	was := r.tampered
	r.tampered = true
	return was
}

// Tampered reports whether the reader has been handed to a writer.
func (r *Reader) Tampered() bool { return r.tampered }

// Partial reports whether objects are loaded on demand.
func (r *Reader) Partial() bool { return r.cfg.Partial }
