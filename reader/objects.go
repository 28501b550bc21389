package reader

import (
	"errors"
	"fmt"

	"github.com/tsawler/folio/core"
	"github.com/tsawler/folio/crypt"
)

// GetObject returns object num. Free and unknown objects are Null. An object
// that cannot be parsed or decrypted is logged and also reads as Null.
func (r *Reader) GetObject(num int) (core.Object, error) {
	if obj, ok := r.objects[num]; ok {
		return obj, nil
	}
	if r.closed {
		return nil, ErrClosed
	}

	entry, ok := r.xref.Get(num)
	if !ok || !entry.InUse() {
		return core.Null{}, nil
	}
	if r.loading[num] {
		r.log.Debug("object depends on itself while loading", "object", num)
		return core.Null{}, nil
	}
	r.loading[num] = true
	defer delete(r.loading, num)

	obj, err := r.load(num, entry)
	if err != nil {
		if errors.Is(err, ErrClosed) {
			return nil, err
		}
		r.log.Debug("malformed object replaced by null", "object", num, "error", err)
		obj = core.Null{}
	}
	r.objects[num] = obj
	return obj, nil
}

func (r *Reader) load(num int, entry *core.XRefEntry) (core.Object, error) {
	if entry.Kind == core.EntryCompressed {
		return r.loadCompressed(num, entry)
	}
	if entry.Offset < 0 {
		// added in memory and since dropped
		return core.Null{}, nil
	}

	p := r.acquireParser()
	defer r.releaseParser(p)

	ind, err := p.ParseIndirectObjectAt(entry.Offset)
	if err != nil {
		return nil, &core.MalformedObjectError{Number: num, Offset: entry.Offset, Err: err}
	}
	if ind.Ref.Number != num {
		return nil, &core.MalformedObjectError{
			Number: num,
			Offset: entry.Offset,
			Err:    fmt.Errorf("object number mismatch: found %d", ind.Ref.Number),
		}
	}
	if ind.Ref.Generation != entry.Generation {
		r.log.Debug("generation mismatch", "object", num, "xref", entry.Generation, "found", ind.Ref.Generation)
	}

	obj := ind.Object
	if r.crypt != nil && num != r.encNum {
		obj, err = r.crypt.DecryptObject(num, ind.Ref.Generation, obj)
		if err != nil {
			return nil, &core.MalformedObjectError{Number: num, Offset: entry.Offset, Err: err}
		}
	}
	return obj, nil
}

// loadCompressed reads a member of an object stream. The container was
// decrypted as a whole, so members are never decrypted again.
func (r *Reader) loadCompressed(num int, entry *core.XRefEntry) (core.Object, error) {
	stm, err := r.objectStream(entry.StreamNumber)
	if err != nil {
		return nil, &core.MalformedObjectError{Number: num, Offset: -1, Err: err}
	}
	obj, found, err := stm.GetObjectByIndex(entry.Index)
	if err == nil && found == num {
		return obj, nil
	}
	// The index is only a hint; fall back to the stream's own header.
	obj, _, err = stm.GetObjectByNumber(num)
	if err != nil {
		return nil, &core.MalformedObjectError{Number: num, Offset: -1, Err: err}
	}
	return obj, nil
}

// objectStream returns the parsed container num, caching it until the
// container is released.
func (r *Reader) objectStream(num int) (*core.ObjectStream, error) {
	if stm, ok := r.objStms[num]; ok {
		return stm, nil
	}
	obj, err := r.GetObject(num)
	if err != nil {
		return nil, err
	}
	s, ok := obj.(*core.Stream)
	if !ok {
		return nil, fmt.Errorf("object %d is not an object stream", num)
	}
	stm, err := core.NewObjectStream(s)
	if err != nil {
		return nil, fmt.Errorf("object %d: %w", num, err)
	}
	stm.SetDocID(r.doc)
	r.objStms[num] = stm
	if r.cfg.Partial && !r.pinned[num] {
		// the ObjectStream keeps the payload it needs
		delete(r.objects, num)
	}
	return stm, nil
}

// Parsing an object may need another one (an indirect /Length), so parsers
// are pooled rather than shared.
func (r *Reader) acquireParser() *core.Parser {
	if n := len(r.parsers); n > 0 {
		p := r.parsers[n-1]
		r.parsers = r.parsers[:n-1]
		return p
	}
	p := core.NewParserAt(r.src, r.size)
	p.SetDocID(r.doc)
	p.SetReferenceResolver(r)
	return p
}

func (r *Reader) releaseParser(p *core.Parser) {
	if !r.closed {
		r.parsers = append(r.parsers, p)
	}
}

// ResolveReference returns the object ref points at. References read from
// another document fail with core.ErrForeignReference.
func (r *Reader) ResolveReference(ref core.IndirectRef) (core.Object, error) {
	if ref.Doc != 0 && ref.Doc != r.doc {
		return nil, fmt.Errorf("%w: %s", core.ErrForeignReference, ref)
	}
	return r.GetObject(ref.Number)
}

// Resolve follows indirect references until it reaches a direct object.
func (r *Reader) Resolve(obj core.Object) (core.Object, error) {
	return r.res.Resolve(obj)
}

// ResolveDeep returns a copy of obj with every nested reference replaced by
// its target. References that would close a cycle are kept as references.
func (r *Reader) ResolveDeep(obj core.Object) (core.Object, error) {
	return r.res.ResolveDeep(obj)
}

// Release drops the cached copy of object num so it is read from the file
// again on next use. It only has an effect in partial mode, and never on
// the catalog, the /Encrypt dictionary or objects added in memory.
func (r *Reader) Release(num int) {
	if !r.cfg.Partial || r.pinned[num] {
		return
	}
	delete(r.objects, num)
	delete(r.objStms, num)
}

// AddObject stores obj under a new object number and returns its reference.
func (r *Reader) AddObject(obj core.Object) core.IndirectRef {
	num := r.NumObjects()
	if num < 1 {
		num = 1
	}
	r.SetObject(num, obj)
	return core.IndirectRef{Number: num, Doc: r.doc}
}

// SetObject replaces object num in memory. The file is not modified.
func (r *Reader) SetObject(num int, obj core.Object) {
	if obj == nil {
		obj = core.Null{}
	}
	r.objects[num] = obj
	r.pinned[num] = true
	if entry, ok := r.xref.Get(num); !ok || !entry.InUse() {
		r.xref.Set(num, &core.XRefEntry{Kind: core.EntryInUse, Offset: -1})
	}
	if size, _ := r.trailer.GetInt("Size"); int(size) <= num {
		r.trailer["Size"] = core.Int(num + 1)
	}
}

// Ref returns a reference to object num bound to this document.
func (r *Reader) Ref(num int) core.IndirectRef {
	gen := 0
	if entry, ok := r.xref.Get(num); ok && entry.Kind == core.EntryInUse {
		gen = entry.Generation
	}
	return core.IndirectRef{Number: num, Generation: gen, Doc: r.doc}
}

// Crypt returns the security handler, or nil for unencrypted documents.
func (r *Reader) Crypt() *crypt.Handler { return r.crypt }

// EncryptionRef returns the object number of the /Encrypt dictionary, or 0.
func (r *Reader) EncryptionRef() int { return r.encNum }
