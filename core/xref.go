package core

import (
	"bytes"
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/tsawler/folio/internal/logger"
)

// EntryKind distinguishes the three kinds of cross-reference entries.
type EntryKind int

const (
	EntryFree       EntryKind = iota // f rows, type 0
	EntryInUse                       // n rows, type 1
	EntryCompressed                  // type 2, stored inside an object stream
)

// XRefEntry represents a single cross-reference table entry
type XRefEntry struct {
	Kind       EntryKind
	Offset     int64 // byte offset for in-use objects, next free object for free ones
	Generation int
	// StreamNumber and Index locate a compressed object inside its
	// object stream.
	StreamNumber int
	Index        int
}

// InUse reports whether the entry points at an object.
func (e *XRefEntry) InUse() bool {
	return e != nil && e.Kind != EntryFree
}

// XRefTable represents a PDF cross-reference table
type XRefTable struct {
	Entries map[int]*XRefEntry // Map from object number to XRef entry
	Trailer Dict               // Trailer dictionary
}

// NewXRefTable creates a new empty XRef table
func NewXRefTable() *XRefTable {
	return &XRefTable{
		Entries: make(map[int]*XRefEntry),
		Trailer: make(Dict),
	}
}

// Get retrieves an XRef entry by object number
func (x *XRefTable) Get(objNum int) (*XRefEntry, bool) {
	entry, ok := x.Entries[objNum]
	return entry, ok
}

// Set adds or updates an XRef entry
func (x *XRefTable) Set(objNum int, entry *XRefEntry) {
	x.Entries[objNum] = entry
}

// Len returns the number of entries in the table
func (x *XRefTable) Len() int {
	return len(x.Entries)
}

// MaxObjectNumber returns the highest object number with an entry.
func (x *XRefTable) MaxObjectNumber() int {
	max := 0
	for n := range x.Entries {
		if n > max {
			max = n
		}
	}
	return max
}

// ObjectNumbers returns the numbers of all in-use and compressed entries,
// sorted ascending.
func (x *XRefTable) ObjectNumbers() []int {
	nums := make([]int, 0, len(x.Entries))
	for n, e := range x.Entries {
		if e.InUse() {
			nums = append(nums, n)
		}
	}
	sort.Ints(nums)
	return nums
}

// mergeOlder adds entries and trailer keys from an older section without
// overwriting anything a newer section already defined.
func (x *XRefTable) mergeOlder(older *XRefTable) {
	for num, entry := range older.Entries {
		if _, ok := x.Entries[num]; !ok {
			x.Entries[num] = entry
		}
	}
	for k, v := range older.Trailer {
		if !x.Trailer.Has(k) {
			x.Trailer[k] = v
		}
	}
}

// AddObjectStream records the members of object stream streamNum as
// compressed entries, leaving objects that already have an entry alone.
func (x *XRefTable) AddObjectStream(streamNum int, members []int) int {
	added := 0
	for i, num := range members {
		if _, ok := x.Entries[num]; ok {
			continue
		}
		x.Entries[num] = &XRefEntry{Kind: EntryCompressed, StreamNumber: streamNum, Index: i}
		added++
	}
	return added
}

// trailerKeys are the keys an xref stream dictionary contributes to the
// logical trailer.
var trailerKeys = []string{"Size", "Root", "Info", "ID", "Encrypt", "Prev"}

// XRefParser parses PDF cross-reference sections from a random-access source.
type XRefParser struct {
	src    io.ReaderAt
	size   int64
	parser *Parser
	log    *logger.Logger
}

// NewXRefParser creates a new XRef parser
func NewXRefParser(src io.ReaderAt, size int64) *XRefParser {
	return &XRefParser{
		src:    src,
		size:   size,
		parser: NewParserAt(src, size),
	}
}

// SetLogger routes diagnostics to l.
func (x *XRefParser) SetLogger(l *logger.Logger) {
	x.log = l
}

// SetDocID binds the references found in trailers to doc.
func (x *XRefParser) SetDocID(doc DocID) {
	x.parser.SetDocID(doc)
}

const startxrefWindow = 2048

// FindXRef finds the byte offset of the last cross-reference section.
// PDFs end with "startxref\n<offset>\n%%EOF".
func (x *XRefParser) FindXRef() (int64, error) {
	readSize := int64(startxrefWindow)
	if x.size < readSize {
		readSize = x.size
	}
	buf := make([]byte, readSize)
	n, err := x.src.ReadAt(buf, x.size-readSize)
	if err != nil && err != io.EOF {
		return 0, fmt.Errorf("failed to read startxref area: %w", err)
	}
	buf = buf[:n]

	idx := bytes.LastIndex(buf, []byte("startxref"))
	if idx == -1 {
		return 0, fmt.Errorf("startxref not found")
	}

	rest := bytes.TrimLeft(buf[idx+len("startxref"):], " \t\r\n\f\x00")
	end := 0
	for end < len(rest) && isDigit(rest[end]) {
		end++
	}
	offset, err := strconv.ParseInt(string(rest[:end]), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid xref offset: %w", err)
	}
	if offset <= 0 || offset >= x.size {
		return 0, fmt.Errorf("xref offset %d outside file of %d bytes", offset, x.size)
	}
	return offset, nil
}

// Load walks every cross-reference section from the last startxref back
// through the /Prev chain. Entries from newer sections win; the trailer is
// the union of all trailers with newer keys taking precedence.
func (x *XRefParser) Load() (*XRefTable, error) {
	offset, err := x.FindXRef()
	if err != nil {
		return nil, err
	}

	table := NewXRefTable()
	visited := make(map[int64]bool)
	for {
		if visited[offset] {
			x.log.Warn("xref /Prev chain loops", "offset", offset)
			break
		}
		visited[offset] = true

		section, err := x.ParseSection(offset)
		if err != nil {
			return nil, fmt.Errorf("xref section at %d: %w", offset, err)
		}
		table.mergeOlder(section)

		prev, ok := section.Trailer.GetInt("Prev")
		if !ok {
			break
		}
		offset = int64(prev)
	}

	delete(table.Trailer, "Prev")
	delete(table.Trailer, "XRefStm")
	if !table.Trailer.Has("Root") {
		return nil, fmt.Errorf("trailer has no /Root")
	}
	return table, nil
}

// ParseSection parses the single cross-reference section at offset: a
// classic table (merged with its /XRefStm stream when hybrid) or an xref
// stream.
func (x *XRefParser) ParseSection(offset int64) (*XRefTable, error) {
	if err := x.parser.Seek(offset); err != nil {
		return nil, err
	}
	tok, err := x.parser.NextToken()
	if err != nil {
		return nil, err
	}

	if tok.IsKeyword("xref") {
		table, err := x.parseTable()
		if err != nil {
			return nil, err
		}
		if stm, ok := table.Trailer.GetInt("XRefStm"); ok {
			if err := x.mergeHybrid(table, int64(stm)); err != nil {
				x.log.Warn("ignoring broken /XRefStm", "offset", int64(stm), "error", err)
			}
		}
		return table, nil
	}

	if tok.Type == TokenInteger {
		x.parser.UnreadToken(tok)
		return x.parseStreamAt()
	}

	return nil, fmt.Errorf("expected xref table or stream, got %s", tok)
}

// mergeHybrid folds the entries of a hybrid file's xref stream into the
// classic table of the same section. Stream entries only replace rows the
// table leaves free or omits.
func (x *XRefParser) mergeHybrid(table *XRefTable, offset int64) error {
	if err := x.parser.Seek(offset); err != nil {
		return err
	}
	stm, err := x.parseStreamAt()
	if err != nil {
		return err
	}
	for num, entry := range stm.Entries {
		if existing, ok := table.Entries[num]; !ok || !existing.InUse() {
			table.Entries[num] = entry
		}
	}
	return nil
}

func (x *XRefParser) parseStreamAt() (*XRefTable, error) {
	obj, err := x.parser.ParseIndirectObject()
	if err != nil {
		return nil, fmt.Errorf("failed to parse xref stream object: %w", err)
	}
	stream, ok := obj.Object.(*Stream)
	if !ok {
		return nil, fmt.Errorf("object %d is %s, not an xref stream", obj.Ref.Number, obj.Object.Type())
	}
	return ParseXRefStream(stream)
}

// parseTable parses a classic table after the xref keyword, up to and
// including its trailer dictionary.
func (x *XRefParser) parseTable() (*XRefTable, error) {
	table := NewXRefTable()
	for {
		tok, err := x.parser.NextToken()
		if err != nil {
			return nil, err
		}
		switch {
		case tok.IsKeyword("trailer"):
			obj, err := x.parser.ParseObject()
			if err != nil {
				return nil, fmt.Errorf("failed to parse trailer dictionary: %w", err)
			}
			dict, ok := obj.(Dict)
			if !ok {
				return nil, fmt.Errorf("trailer is not a dictionary, got %s", obj.Type())
			}
			table.Trailer = dict
			return table, nil

		case tok.Type == TokenInteger:
			if err := x.parseSubsection(table, tok); err != nil {
				return nil, err
			}

		default:
			return nil, fmt.Errorf("unexpected %s in xref table", tok)
		}
	}
}

// parseSubsection reads "first count" followed by count rows of
// "offset generation n|f".
func (x *XRefParser) parseSubsection(table *XRefTable, firstTok *Token) error {
	first, err := strconv.Atoi(string(firstTok.Value))
	if err != nil {
		return fmt.Errorf("invalid subsection start %q", firstTok.Value)
	}
	countTok, err := x.parser.NextToken()
	if err != nil {
		return err
	}
	count, err := strconv.Atoi(string(countTok.Value))
	if countTok.Type != TokenInteger || err != nil || count < 0 {
		return fmt.Errorf("invalid subsection count %q", countTok.Value)
	}

	for i := 0; i < count; i++ {
		entry, err := x.parseRow()
		if err != nil {
			return fmt.Errorf("row %d of subsection %d: %w", i, first, err)
		}
		// Some writers start the first subsection at 1 while still
		// listing the free head of object 0.
		if i == 0 && first == 1 && entry.Kind == EntryFree && entry.Generation == 65535 {
			first = 0
		}
		table.Set(first+i, entry)
	}
	return nil
}

func (x *XRefParser) parseRow() (*XRefEntry, error) {
	var fields [3]*Token
	for i := range fields {
		tok, err := x.parser.NextToken()
		if err != nil {
			return nil, err
		}
		fields[i] = tok
	}
	if fields[0].Type != TokenInteger || fields[1].Type != TokenInteger {
		return nil, fmt.Errorf("malformed row %s %s", fields[0], fields[1])
	}
	offset, _ := strconv.ParseInt(string(fields[0].Value), 10, 64)
	gen, _ := strconv.Atoi(string(fields[1].Value))

	switch {
	case fields[2].IsKeyword("n"):
		return &XRefEntry{Kind: EntryInUse, Offset: offset, Generation: gen}, nil
	case fields[2].IsKeyword("f"):
		return &XRefEntry{Kind: EntryFree, Offset: offset, Generation: gen}, nil
	}
	return nil, fmt.Errorf("invalid in-use flag %q", fields[2].Value)
}
