package stamper

import (
	"bufio"
	"bytes"
	"crypto/rand"
	"fmt"

	"github.com/tsawler/folio/core"
	"github.com/tsawler/folio/crypt"
	"github.com/tsawler/folio/internal/filters"
	"github.com/tsawler/folio/reader"
)

// countWriter tracks the output offset.
type countWriter struct {
	w   *bufio.Writer
	n   int64
	err error
}

func (c *countWriter) Write(p []byte) (int, error) {
	if c.err != nil {
		return 0, c.err
	}
	n, err := c.w.Write(p)
	c.n += int64(n)
	c.err = err
	return n, err
}

// output is the renumbered object graph that Close writes.
type output struct {
	objects []core.Object // objects[i] is written as object i+1
	root    core.Object
	info    core.Object
}

// collect computes the objects reachable from the trailer and assigns them
// consecutive numbers in discovery order.
func (s *Stamper) collect() (*output, error) {
	var (
		renum   = make(map[int]int)
		order   []int
		foreign error
	)
	encNum := s.r.EncryptionRef()
	remap := func(ref core.IndirectRef) core.Object {
		if ref.Doc != 0 && ref.Doc != s.r.DocID() {
			if foreign == nil {
				foreign = fmt.Errorf("%w: %s (use Import to copy objects between documents)", core.ErrForeignReference, ref)
			}
			return core.Null{}
		}
		if ref.Number == encNum {
			return core.Null{}
		}
		if n, ok := renum[ref.Number]; ok {
			return core.IndirectRef{Number: n}
		}
		if entry, ok := s.r.XRefTable().Get(ref.Number); !ok || !entry.InUse() {
			return core.Null{}
		}
		order = append(order, ref.Number)
		renum[ref.Number] = len(order)
		return core.IndirectRef{Number: len(order)}
	}

	trailer := s.r.Trailer()
	out := &output{root: core.MapRefs(trailer.Get("Root"), remap)}
	if info := trailer.Get("Info"); info != nil {
		out.info = core.MapRefs(info, remap)
	}

	for i := 0; i < len(order); i++ {
		obj, err := s.r.GetObject(order[i])
		if err != nil {
			return nil, fmt.Errorf("object %d: %w", order[i], err)
		}
		out.objects = append(out.objects, core.MapRefs(obj, remap))
		s.r.Release(order[i])
	}
	if foreign != nil {
		return nil, foreign
	}
	s.log.Debug("collected objects", "count", len(out.objects), "source", s.r.NumObjects())
	return out, nil
}

// security returns the handler and /ID for the output. The handler is nil
// for unencrypted output.
func (s *Stamper) security() (*crypt.Handler, core.Array, error) {
	first := s.sourceID()
	if first == nil {
		first = make([]byte, 16)
		if _, err := rand.Read(first); err != nil {
			return nil, nil, err
		}
	}
	second := make([]byte, 16)
	if _, err := rand.Read(second); err != nil {
		return nil, nil, err
	}
	id := core.Array{core.String(first), core.String(second)}

	switch {
	case s.encrypt != nil:
		h, err := crypt.New(*s.encrypt, first)
		if err != nil {
			return nil, nil, err
		}
		return h, id, nil
	case s.r.Crypt() != nil:
		h := s.r.Crypt()
		id[0] = core.String(h.ID())
		return h, id, nil
	}
	return nil, id, nil
}

func (s *Stamper) sourceID() []byte {
	if h := s.r.Crypt(); h != nil && len(h.ID()) > 0 {
		return append([]byte(nil), h.ID()...)
	}
	arr, _ := s.r.Trailer().Get("ID").(core.Array)
	if len(arr) == 0 {
		return nil
	}
	first, _ := arr[0].(core.String)
	if len(first) == 0 {
		return nil
	}
	return []byte(first)
}

// version returns the header version required by the output features.
func (s *Stamper) version(h *crypt.Handler) reader.PDFVersion {
	v := s.r.Version()
	raise := func(major, minor int) {
		if v.Major < major || (v.Major == major && v.Minor < minor) {
			v = reader.PDFVersion{Major: major, Minor: minor}
		}
	}
	if s.cfg.FullCompression {
		raise(1, 5)
	}
	if h != nil {
		switch h.Revision() {
		case 4:
			raise(1, 6)
		case 5:
			raise(1, 7)
		case 6:
			raise(2, 0)
		}
	}
	if s.cfg.MinVersion != "" {
		var major, minor int
		if _, err := fmt.Sscanf(s.cfg.MinVersion, "%d.%d", &major, &minor); err == nil {
			raise(major, minor)
		}
	}
	return v
}

func (s *Stamper) write() error {
	out, err := s.collect()
	if err != nil {
		return err
	}
	h, id, err := s.security()
	if err != nil {
		return err
	}

	bw := bufio.NewWriter(s.w)
	w := &countWriter{w: bw}
	v := s.version(h)
	fmt.Fprintf(w, "%%PDF-%d.%d\n%%\xE2\xE3\xCF\xD3\n", v.Major, v.Minor)

	trailer := core.Dict{"Root": out.root, "ID": id}
	if out.info != nil && !core.IsNull(out.info) {
		trailer["Info"] = out.info
	}

	if s.cfg.FullCompression {
		err = s.writeCompressed(w, out, h, trailer)
	} else {
		err = s.writeClassic(w, out, h, trailer)
	}
	if err != nil {
		return err
	}
	if w.err != nil {
		return fmt.Errorf("failed to write document: %w", w.err)
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("failed to write document: %w", err)
	}
	return nil
}

func writeIndirect(w *countWriter, num int, obj core.Object) {
	_, _ = w.Write(core.AppendIndirectObject(nil, num, 0, obj))
}

// seal encrypts a top-level object for writing as object num.
func seal(h *crypt.Handler, num int, obj core.Object) (core.Object, error) {
	if h == nil {
		return obj, nil
	}
	return h.EncryptObject(num, 0, obj)
}

func (s *Stamper) writeClassic(w *countWriter, out *output, h *crypt.Handler, trailer core.Dict) error {
	size := len(out.objects) + 1
	offsets := make([]int64, size, size+1)
	for i, obj := range out.objects {
		num := i + 1
		sealed, err := seal(h, num, obj)
		if err != nil {
			return err
		}
		offsets[num] = w.n
		writeIndirect(w, num, sealed)
	}
	if h != nil {
		offsets = append(offsets, w.n)
		writeIndirect(w, size, h.Dict())
		trailer["Encrypt"] = core.IndirectRef{Number: size}
		size++
	}
	trailer["Size"] = core.Int(size)

	start := w.n
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f\r\n", size)
	for _, off := range offsets[1:] {
		fmt.Fprintf(&buf, "%010d 00000 n\r\n", off)
	}
	buf.WriteString("trailer\n")
	buf.Write(core.AppendObject(nil, trailer))
	fmt.Fprintf(&buf, "\nstartxref\n%d\n%%%%EOF\n", start)
	_, _ = w.Write(buf.Bytes())
	return nil
}

// xrefRow is one entry of a cross-reference stream.
type xrefRow struct {
	kind   byte
	field2 int64
	field3 int
}

func (s *Stamper) writeCompressed(w *countWriter, out *output, h *crypt.Handler, trailer core.Dict) error {
	next := len(out.objects) + 1
	rows := make(map[int]xrefRow, next+8)
	encNum := 0
	if h != nil {
		encNum = next
		next++
	}

	var (
		members []int
		body    bytes.Buffer
		header  bytes.Buffer
	)
	flush := func() error {
		if len(members) == 0 {
			return nil
		}
		num := next
		next++
		data := make([]byte, 0, header.Len()+1+body.Len())
		data = append(data, header.Bytes()...)
		data = append(data, '\n')
		data = append(data, body.Bytes()...)
		stm := core.NewStream(core.Dict{
			"Type":  core.Name("ObjStm"),
			"N":     core.Int(len(members)),
			"First": core.Int(header.Len() + 1),
		}, data)
		if err := stm.EncodeFlate(); err != nil {
			return fmt.Errorf("failed to compress object stream: %w", err)
		}
		sealed, err := seal(h, num, stm)
		if err != nil {
			return err
		}
		rows[num] = xrefRow{kind: 1, field2: w.n}
		writeIndirect(w, num, sealed)
		for i, m := range members {
			rows[m] = xrefRow{kind: 2, field2: int64(num), field3: i}
		}
		members = members[:0]
		header.Reset()
		body.Reset()
		return nil
	}

	for i, obj := range out.objects {
		num := i + 1
		if _, isStream := obj.(*core.Stream); isStream {
			sealed, err := seal(h, num, obj)
			if err != nil {
				return err
			}
			rows[num] = xrefRow{kind: 1, field2: w.n}
			writeIndirect(w, num, sealed)
			continue
		}
		if header.Len() > 0 {
			header.WriteByte(' ')
		}
		fmt.Fprintf(&header, "%d %d", num, body.Len())
		body.Write(core.AppendObject(nil, obj))
		body.WriteByte('\n')
		members = append(members, num)
		if len(members) >= s.cfg.ObjectsPerStream {
			if err := flush(); err != nil {
				return err
			}
		}
	}
	if err := flush(); err != nil {
		return err
	}

	if h != nil {
		rows[encNum] = xrefRow{kind: 1, field2: w.n}
		writeIndirect(w, encNum, h.Dict())
		trailer["Encrypt"] = core.IndirectRef{Number: encNum}
	}

	xrefNum := next
	size := xrefNum + 1
	start := w.n
	rows[xrefNum] = xrefRow{kind: 1, field2: start}

	stm, err := xrefStream(rows, size, trailer)
	if err != nil {
		return err
	}
	writeIndirect(w, xrefNum, stm)
	fmt.Fprintf(w, "startxref\n%d\n%%%%EOF\n", start)
	return nil
}

// xrefStream encodes rows 0..size-1 as a cross-reference stream with
// /W [1 n 2], PNG Up prediction and Flate compression.
func xrefStream(rows map[int]xrefRow, size int, trailer core.Dict) (*core.Stream, error) {
	var max int64
	for _, r := range rows {
		if r.field2 > max {
			max = r.field2
		}
	}
	w2 := 1
	for max >= 1<<(8*w2) {
		w2++
	}
	width := 1 + w2 + 2

	data := make([]byte, 0, size*width)
	for num := 0; num < size; num++ {
		r, ok := rows[num]
		if !ok {
			r = xrefRow{}
			if num == 0 {
				r.field3 = 0xFFFF
			}
		}
		data = append(data, r.kind)
		for i := w2 - 1; i >= 0; i-- {
			data = append(data, byte(r.field2>>(8*i)))
		}
		data = append(data, byte(r.field3>>8), byte(r.field3))
	}

	predicted, err := filters.EncodePNG(data, width, 1, 8, filters.PNGUp)
	if err != nil {
		return nil, err
	}
	compressed, err := filters.FlateEncode(predicted)
	if err != nil {
		return nil, err
	}

	dict := trailer.Clone()
	dict["Type"] = core.Name("XRef")
	dict["Size"] = core.Int(size)
	dict["W"] = core.Array{core.Int(1), core.Int(w2), core.Int(2)}
	dict["Index"] = core.Array{core.Int(0), core.Int(size)}
	dict["Filter"] = core.Name("FlateDecode")
	dict["DecodeParms"] = core.Dict{
		"Predictor": core.Int(12),
		"Columns":   core.Int(width),
	}
	return core.NewStream(dict, compressed), nil
}
