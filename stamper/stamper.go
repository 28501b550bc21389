package stamper

import (
	"errors"
	"fmt"
	"io"

	"github.com/tsawler/folio/core"
	"github.com/tsawler/folio/crypt"
	"github.com/tsawler/folio/internal/logger"
	"github.com/tsawler/folio/reader"
)

var (
	// ErrTampered is returned when a reader is handed to a second stamper.
	ErrTampered = errors.New("reader is already used by a stamper")

	// ErrClosed is returned by operations on a closed Stamper.
	ErrClosed = errors.New("stamper is closed")
)

// Stamper modifies a loaded document and writes the result on Close.
// Changes are applied to the reader's objects, so the reader must not be
// used for anything else afterwards.
type Stamper struct {
	r       *reader.Reader
	w       io.Writer
	cfg     Config
	log     *logger.Logger
	encrypt *crypt.Params

	content map[int]*pageEdits
	info    map[string]string
	imports map[core.DocID]*importTable
	closed  bool
}

// New returns a Stamper that writes the modified form of r to w. An
// encrypted document must have been opened with its owner password.
func New(r *reader.Reader, w io.Writer, opts ...Option) (*Stamper, error) {
	o := options{cfg: DefaultConfig()}
	for _, opt := range opts {
		opt(&o)
	}
	if err := o.cfg.Validate(); err != nil {
		return nil, err
	}
	if o.encrypt != nil {
		if err := o.encrypt.Validate(); err != nil {
			return nil, err
		}
	}
	if !r.IsOpenedWithFullPermissions() {
		return nil, fmt.Errorf("%w: the owner password is required to modify the document", crypt.ErrBadPassword)
	}
	if r.Tamper() {
		return nil, ErrTampered
	}

	return &Stamper{
		r:       r,
		w:       w,
		cfg:     o.cfg,
		log:     o.log.With("doc", uint64(r.DocID())),
		encrypt: o.encrypt,
		content: make(map[int]*pageEdits),
		imports: make(map[core.DocID]*importTable),
	}, nil
}

// Reader returns the document being modified.
func (s *Stamper) Reader() *reader.Reader { return s.r }

// AddObject adds obj to the document and returns its reference. The object
// is only written if something reachable from the catalog refers to it.
func (s *Stamper) AddObject(obj core.Object) core.IndirectRef {
	return s.r.AddObject(obj)
}

// SetInfo updates the document information dictionary. An empty value
// removes the entry.
func (s *Stamper) SetInfo(entries map[string]string) {
	if s.info == nil {
		s.info = make(map[string]string, len(entries))
	}
	for k, v := range entries {
		s.info[k] = v
	}
}

// Close applies pending page content and writes the document.
func (s *Stamper) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true

	if err := s.applyContent(); err != nil {
		return err
	}
	if err := s.applyInfo(); err != nil {
		return err
	}
	return s.write()
}

func (s *Stamper) checkOpen() error {
	if s.closed {
		return ErrClosed
	}
	return nil
}

// update stores a modified dictionary back under its reference so it stays
// in memory.
func (s *Stamper) update(obj core.Object, d core.Dict) {
	if ref, ok := obj.(core.IndirectRef); ok {
		s.r.SetObject(ref.Number, d)
	}
}

// dict resolves obj to a dictionary.
func (s *Stamper) dict(obj core.Object) (core.Dict, bool, error) {
	resolved, err := s.r.Resolve(obj)
	if err != nil {
		return nil, false, err
	}
	switch v := resolved.(type) {
	case core.Dict:
		return v, true, nil
	case *core.Stream:
		return v.Dict, true, nil
	}
	return nil, false, nil
}

// array resolves obj to an array.
func (s *Stamper) array(obj core.Object) (core.Array, error) {
	resolved, err := s.r.Resolve(obj)
	if err != nil {
		return nil, err
	}
	arr, _ := resolved.(core.Array)
	return arr, nil
}
