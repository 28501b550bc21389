package core

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"sort"

	"github.com/tsawler/folio/internal/logger"
)

const linePrefixLen = 64

// RebuildResult is the outcome of a linear recovery scan.
type RebuildResult struct {
	Table *XRefTable
	// ObjectStreams lists the /Type /ObjStm containers found by the scan.
	// Their members are not yet indexed: the containers may need
	// decryption first, see XRefTable.AddObjectStream.
	ObjectStreams []int
}

// Rebuild reconstructs a cross-reference table by scanning the whole
// source for "N G obj" headers and trailer dictionaries. For every object
// number the last header with the highest generation wins; the last trailer
// carrying /Root becomes the trailer. Without one, a trailer is taken from
// an xref stream dictionary or synthesised around a /Type /Catalog object.
func Rebuild(src io.ReaderAt, size int64, doc DocID, log *logger.Logger) (*RebuildResult, error) {
	log.Warn("rebuilding cross-reference table", "size", size)

	table := NewXRefTable()
	var trailers []int64

	scanLines(io.NewSectionReader(src, 0, size), func(off int64, line []byte) {
		lead := 0
		for lead < len(line) && isWhitespace(line[lead]) {
			lead++
		}
		line = line[lead:]
		off += int64(lead)

		if bytes.HasPrefix(line, []byte("trailer")) {
			trailers = append(trailers, off+int64(len("trailer")))
			return
		}
		num, gen, ok := objectHeader(line)
		if !ok {
			return
		}
		if prev, exists := table.Entries[num]; exists && prev.Generation > gen {
			return
		}
		table.Set(num, &XRefEntry{Kind: EntryInUse, Offset: off, Generation: gen})
	})

	parser := NewParserAt(src, size)
	parser.SetDocID(doc)

	for _, off := range trailers {
		if err := parser.Seek(off); err != nil {
			continue
		}
		obj, err := parser.ParseObject()
		if err != nil {
			log.Debug("skipping unreadable trailer", "offset", off, "error", err)
			continue
		}
		if dict, ok := obj.(Dict); ok && dict.Has("Root") {
			table.Trailer = dict
		}
	}

	result := &RebuildResult{Table: table}
	var catalog *IndirectRef
	var streamTrailer Dict

	for _, num := range table.ObjectNumbers() {
		entry := table.Entries[num]
		obj, err := parser.ParseIndirectObjectAt(entry.Offset)
		if err != nil {
			log.Debug("rebuild: unreadable object", "object", num, "offset", entry.Offset, "error", err)
			continue
		}
		var dict Dict
		switch v := obj.Object.(type) {
		case Dict:
			dict = v
		case *Stream:
			dict = v.Dict
		default:
			continue
		}
		switch name, _ := dict.GetName("Type"); name {
		case "ObjStm":
			result.ObjectStreams = append(result.ObjectStreams, num)
		case "Catalog":
			ref := IndirectRef{Number: num, Generation: entry.Generation, Doc: doc}
			catalog = &ref
		case "XRef":
			if dict.Has("Root") {
				streamTrailer = dict
			}
		}
	}

	if !table.Trailer.Has("Root") {
		switch {
		case streamTrailer != nil:
			for _, k := range trailerKeys {
				if v, ok := streamTrailer[k]; ok {
					table.Trailer[k] = v
				}
			}
		case catalog != nil:
			log.Warn("no trailer found, using catalog object", "object", catalog.Number)
			table.Trailer["Root"] = *catalog
		default:
			return nil, fmt.Errorf("%w: rebuild found no trailer and no catalog", ErrInvalidFormat)
		}
	}

	delete(table.Trailer, "Prev")
	delete(table.Trailer, "XRefStm")
	table.Trailer["Size"] = Int(table.MaxObjectNumber() + 1)
	sort.Ints(result.ObjectStreams)

	log.Debug("rebuild complete", "objects", table.Len(), "objectStreams", len(result.ObjectStreams))
	return result, nil
}

// scanLines calls fn with the offset and (truncated) prefix of every line.
// CR, LF and CRLF all end a line.
func scanLines(r io.Reader, fn func(off int64, line []byte)) {
	br := bufio.NewReaderSize(r, 64*1024)
	var off, start int64
	prefix := make([]byte, 0, linePrefixLen)
	for {
		b, err := br.ReadByte()
		if err != nil {
			break
		}
		if b == '\n' || b == '\r' {
			if len(prefix) > 0 {
				fn(start, prefix)
			}
			prefix = prefix[:0]
			start = off + 1
		} else if len(prefix) < linePrefixLen {
			prefix = append(prefix, b)
		}
		off++
	}
	if len(prefix) > 0 {
		fn(start, prefix)
	}
}

// objectHeader matches "N G obj" at the start of line.
func objectHeader(line []byte) (num, gen int, ok bool) {
	i := 0
	readInt := func() (int, bool) {
		start := i
		v := 0
		for i < len(line) && isDigit(line[i]) && i-start < 10 {
			v = v*10 + int(line[i]-'0')
			i++
		}
		return v, i > start
	}
	skip := func() int {
		start := i
		for i < len(line) && isWhitespace(line[i]) {
			i++
		}
		return i - start
	}

	if num, ok = readInt(); !ok || skip() == 0 {
		return 0, 0, false
	}
	if gen, ok = readInt(); !ok {
		return 0, 0, false
	}
	skip()
	if !bytes.HasPrefix(line[i:], []byte("obj")) {
		return 0, 0, false
	}
	i += 3
	if i < len(line) && !isWhitespace(line[i]) && !isDelimiter(line[i]) {
		return 0, 0, false
	}
	return num, gen, true
}
