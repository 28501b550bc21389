// Package pdftest assembles small PDF files with correct byte offsets for
// tests: classic tables, xref streams, object streams, hybrid files and
// incremental updates.
package pdftest

import (
	"bytes"
	"compress/zlib"
	"fmt"
	"regexp"
	"sort"
	"strconv"
)

type object struct {
	num    int
	body   string // dictionary or value
	stream []byte // non-nil for streams; body is then the dictionary without /Length
}

// Builder collects objects and serialises them as a PDF.
type Builder struct {
	Version string
	// Trailer holds extra trailer entries, e.g. "/Root 1 0 R /Info 5 0 R".
	Trailer string
	objects []object
}

// New returns a Builder for a PDF 1.7 file.
func New() *Builder {
	return &Builder{Version: "1.7"}
}

// Add adds an indirect object whose value is body.
func (b *Builder) Add(num int, body string) *Builder {
	b.objects = append(b.objects, object{num: num, body: body})
	return b
}

// AddStream adds a stream object; dict is the dictionary without /Length.
func (b *Builder) AddStream(num int, dict string, data []byte) *Builder {
	if data == nil {
		data = []byte{}
	}
	b.objects = append(b.objects, object{num: num, body: dict, stream: data})
	return b
}

func (b *Builder) sorted() []object {
	objs := append([]object(nil), b.objects...)
	sort.Slice(objs, func(i, j int) bool { return objs[i].num < objs[j].num })
	return objs
}

func (b *Builder) maxNum() int {
	max := 0
	for _, o := range b.objects {
		if o.num > max {
			max = o.num
		}
	}
	return max
}

func writeObject(buf *bytes.Buffer, o object) {
	fmt.Fprintf(buf, "%d 0 obj\n", o.num)
	if o.stream != nil {
		fmt.Fprintf(buf, "%s /Length %d >>\nstream\n", trimDictEnd(o.body), len(o.stream))
		buf.Write(o.stream)
		buf.WriteString("\nendstream")
	} else {
		buf.WriteString(o.body)
	}
	buf.WriteString("\nendobj\n")
}

// trimDictEnd strips the closing >> so /Length can be appended.
func trimDictEnd(dict string) string {
	d := bytes.TrimSpace([]byte(dict))
	if bytes.HasSuffix(d, []byte(">>")) {
		d = d[:len(d)-2]
	}
	return string(d)
}

func (b *Builder) header(buf *bytes.Buffer) {
	fmt.Fprintf(buf, "%%PDF-%s\n%%\xE2\xE3\xCF\xD3\n", b.Version)
}

// Bytes renders the file with a classic cross-reference table.
func (b *Builder) Bytes() []byte {
	var buf bytes.Buffer
	b.header(&buf)
	offsets := map[int]int{}
	for _, o := range b.sorted() {
		offsets[o.num] = buf.Len()
		writeObject(&buf, o)
	}
	size := b.maxNum() + 1
	xref := buf.Len()
	writeTable(&buf, offsets, size, true)
	fmt.Fprintf(&buf, "trailer\n<< /Size %d %s >>\nstartxref\n%d\n%%%%EOF\n", size, b.Trailer, xref)
	return buf.Bytes()
}

// writeTable writes one subsection per run of consecutive object numbers.
func writeTable(buf *bytes.Buffer, offsets map[int]int, size int, withZero bool) {
	nums := make([]int, 0, len(offsets)+1)
	if withZero {
		nums = append(nums, 0)
	}
	for n := range offsets {
		nums = append(nums, n)
	}
	sort.Ints(nums)

	buf.WriteString("xref\n")
	for i := 0; i < len(nums); {
		j := i
		for j+1 < len(nums) && nums[j+1] == nums[j]+1 {
			j++
		}
		fmt.Fprintf(buf, "%d %d\n", nums[i], j-i+1)
		for k := i; k <= j; k++ {
			if nums[k] == 0 {
				buf.WriteString("0000000000 65535 f\r\n")
				continue
			}
			fmt.Fprintf(buf, "%010d 00000 n\r\n", offsets[nums[k]])
		}
		i = j + 1
	}
}

type xrefRow struct {
	kind   byte
	f2, f3 int
}

func encodeRows(rows map[int]xrefRow, size int) (index string, data []byte) {
	nums := make([]int, 0, len(rows))
	for n := range rows {
		nums = append(nums, n)
	}
	sort.Ints(nums)
	var idx bytes.Buffer
	for i := 0; i < len(nums); {
		j := i
		for j+1 < len(nums) && nums[j+1] == nums[j]+1 {
			j++
		}
		fmt.Fprintf(&idx, "%d %d ", nums[i], j-i+1)
		for k := i; k <= j; k++ {
			r := rows[nums[k]]
			data = append(data, r.kind,
				byte(r.f2>>24), byte(r.f2>>16), byte(r.f2>>8), byte(r.f2),
				byte(r.f3>>8), byte(r.f3))
		}
		i = j + 1
	}
	return idx.String(), data
}

func deflate(data []byte) []byte {
	var buf bytes.Buffer
	w := zlib.NewWriter(&buf)
	w.Write(data)
	w.Close()
	return buf.Bytes()
}

// objStm builds an object stream holding the given non-stream objects.
func objStm(objs []object) (dict string, data []byte) {
	var head, body bytes.Buffer
	for _, o := range objs {
		fmt.Fprintf(&head, "%d %d ", o.num, body.Len())
		body.WriteString(o.body)
		body.WriteString("\n")
	}
	data = append(head.Bytes(), body.Bytes()...)
	return fmt.Sprintf("<< /Type /ObjStm /N %d /First %d /Filter /FlateDecode >>", len(objs), head.Len()), deflate(data)
}

// BytesXRefStream renders the file with an xref stream. Objects listed in
// compressed are stored in a single object stream.
func (b *Builder) BytesXRefStream(compressed ...int) []byte {
	inStm := map[int]bool{}
	for _, n := range compressed {
		inStm[n] = true
	}

	var buf bytes.Buffer
	b.header(&buf)
	rows := map[int]xrefRow{0: {kind: 0, f2: 0, f3: 65535}}

	var packed []object
	for _, o := range b.sorted() {
		if inStm[o.num] && o.stream == nil {
			packed = append(packed, o)
			continue
		}
		rows[o.num] = xrefRow{kind: 1, f2: buf.Len()}
		writeObject(&buf, o)
	}

	next := b.maxNum() + 1
	if len(packed) > 0 {
		stmNum := next
		next++
		dict, data := objStm(packed)
		rows[stmNum] = xrefRow{kind: 1, f2: buf.Len()}
		writeObject(&buf, object{num: stmNum, body: dict, stream: data})
		for i, o := range packed {
			rows[o.num] = xrefRow{kind: 2, f2: stmNum, f3: i}
		}
	}

	xrefNum := next
	size := xrefNum + 1
	xrefOff := buf.Len()
	rows[xrefNum] = xrefRow{kind: 1, f2: xrefOff}
	index, data := encodeRows(rows, size)
	dict := fmt.Sprintf("<< /Type /XRef /Size %d /W [1 4 2] /Index [%s] /Filter /FlateDecode %s >>", size, index, b.Trailer)
	writeObject(&buf, object{num: xrefNum, body: dict, stream: deflate(data)})
	fmt.Fprintf(&buf, "startxref\n%d\n%%%%EOF\n", xrefOff)
	return buf.Bytes()
}

// BytesHybrid renders a hybrid-reference file: objects listed in hidden
// live in an object stream that only the /XRefStm stream knows about.
func (b *Builder) BytesHybrid(hidden ...int) []byte {
	hide := map[int]bool{}
	for _, n := range hidden {
		hide[n] = true
	}

	var buf bytes.Buffer
	b.header(&buf)
	offsets := map[int]int{}
	var packed []object
	for _, o := range b.sorted() {
		if hide[o.num] {
			packed = append(packed, o)
			continue
		}
		offsets[o.num] = buf.Len()
		writeObject(&buf, o)
	}

	stmNum := b.maxNum() + 1
	xrefNum := stmNum + 1
	dict, data := objStm(packed)
	offsets[stmNum] = buf.Len()
	writeObject(&buf, object{num: stmNum, body: dict, stream: data})

	rows := map[int]xrefRow{}
	for i, o := range packed {
		rows[o.num] = xrefRow{kind: 2, f2: stmNum, f3: i}
	}
	xrefStmOff := buf.Len()
	rows[xrefNum] = xrefRow{kind: 1, f2: xrefStmOff}
	size := xrefNum + 1
	index, rowData := encodeRows(rows, size)
	writeObject(&buf, object{num: xrefNum, body: fmt.Sprintf("<< /Type /XRef /Size %d /W [1 4 2] /Index [%s] >>", size, index), stream: rowData})

	offsets[xrefNum] = xrefStmOff
	xref := buf.Len()
	writeTable(&buf, offsets, size, true)
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /XRefStm %d %s >>\nstartxref\n%d\n%%%%EOF\n", size, xrefStmOff, b.Trailer, xref)
	return buf.Bytes()
}

var startxrefRE = regexp.MustCompile(`startxref\s+(\d+)\s+%%EOF\s*$`)

// Update appends the builder's objects to base as an incremental update
// with a classic table whose /Prev points at base's last section.
func (b *Builder) Update(base []byte) []byte {
	m := startxrefRE.FindSubmatch(base)
	if m == nil {
		panic("pdftest: base has no startxref")
	}
	prev, _ := strconv.Atoi(string(m[1]))

	buf := bytes.NewBuffer(append([]byte(nil), base...))
	offsets := map[int]int{}
	for _, o := range b.sorted() {
		offsets[o.num] = buf.Len()
		writeObject(buf, o)
	}
	size := b.maxNum() + 1
	if sz := sizeOf(base); sz > size {
		size = sz
	}
	xref := buf.Len()
	writeTable(buf, offsets, size, false)
	fmt.Fprintf(buf, "trailer\n<< /Size %d /Prev %d %s >>\nstartxref\n%d\n%%%%EOF\n", size, prev, b.Trailer, xref)
	return buf.Bytes()
}

var sizeRE = regexp.MustCompile(`/Size (\d+)`)

func sizeOf(base []byte) int {
	all := sizeRE.FindAllSubmatch(base, -1)
	if len(all) == 0 {
		return 0
	}
	n, _ := strconv.Atoi(string(all[len(all)-1][1]))
	return n
}

// Pages returns a builder holding a catalog (1), page tree root (2) and n
// pages numbered from 3 whose content streams follow them, each drawing
// "page i".
func Pages(n int) *Builder {
	return PagesCatalog(n, "")
}

// PagesCatalog is Pages with extra entries, e.g. "/AcroForm 20 0 R", added
// to the catalog dictionary.
func PagesCatalog(n int, catalogExtra string) *Builder {
	b := New()
	b.Trailer = "/Root 1 0 R"
	b.Add(1, fmt.Sprintf("<< /Type /Catalog /Pages 2 0 R %s >>", catalogExtra))
	var kids bytes.Buffer
	for i := 0; i < n; i++ {
		page := 3 + 2*i
		fmt.Fprintf(&kids, "%d 0 R ", page)
		b.Add(page, fmt.Sprintf("<< /Type /Page /Parent 2 0 R /Contents %d 0 R >>", page+1))
		b.AddStream(page+1, "<< >>", []byte(fmt.Sprintf("BT /F1 12 Tf 72 720 Td (page %d) Tj ET", i+1)))
	}
	b.Add(2, fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d /MediaBox [0 0 612 792] >>", kids.String(), n))
	return b
}
