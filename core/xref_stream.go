package core

import "fmt"

// ParseXRefStream decodes a cross-reference stream (PDF 1.5+) into a table.
// The stream dictionary doubles as the section's trailer.
func ParseXRefStream(stream *Stream) (*XRefTable, error) {
	if name, _ := stream.Dict.GetName("Type"); name != "XRef" {
		return nil, fmt.Errorf("stream /Type is %q, want XRef", name)
	}

	wArr, ok := stream.Dict.GetArray("W")
	if !ok || len(wArr) < 3 {
		return nil, fmt.Errorf("xref stream missing /W")
	}
	var w [3]int
	rowLen := 0
	for i := range w {
		v, ok := wArr.GetInt(i)
		if !ok || v < 0 || v > 8 {
			return nil, fmt.Errorf("invalid /W entry %d", i)
		}
		w[i] = int(v)
		rowLen += w[i]
	}
	if rowLen == 0 {
		return nil, fmt.Errorf("xref stream /W is all zero")
	}

	size, _ := stream.Dict.GetInt("Size")
	index := []int{0, int(size)}
	if idx, ok := stream.Dict.GetArray("Index"); ok {
		index = index[:0]
		for i := range idx {
			v, ok := idx.GetInt(i)
			if !ok {
				return nil, fmt.Errorf("invalid /Index entry %d", i)
			}
			index = append(index, int(v))
		}
		if len(index)%2 != 0 {
			return nil, fmt.Errorf("/Index has odd length %d", len(index))
		}
	}

	data, err := stream.Decode()
	if err != nil {
		return nil, fmt.Errorf("failed to decode xref stream: %w", err)
	}

	table := NewXRefTable()
	pos := 0
	for i := 0; i < len(index); i += 2 {
		start, count := index[i], index[i+1]
		for j := 0; j < count; j++ {
			if pos+rowLen > len(data) {
				// short data: keep what was readable
				break
			}
			row := data[pos : pos+rowLen]
			pos += rowLen

			kind := int64(1)
			if w[0] > 0 {
				kind = readBigEndian(row[:w[0]])
			}
			f2 := readBigEndian(row[w[0] : w[0]+w[1]])
			f3 := readBigEndian(row[w[0]+w[1]:])

			num := start + j
			switch kind {
			case 0:
				table.Set(num, &XRefEntry{Kind: EntryFree, Offset: f2, Generation: int(f3)})
			case 1:
				table.Set(num, &XRefEntry{Kind: EntryInUse, Offset: f2, Generation: int(f3)})
			case 2:
				table.Set(num, &XRefEntry{Kind: EntryCompressed, StreamNumber: int(f2), Index: int(f3)})
			default:
				// unknown types are references to the null object
			}
		}
	}

	for _, k := range trailerKeys {
		if v, ok := stream.Dict[k]; ok {
			table.Trailer[k] = v
		}
	}
	return table, nil
}

// readBigEndian reads an unsigned big-endian integer of up to 8 bytes.
func readBigEndian(b []byte) int64 {
	var v int64
	for _, c := range b {
		v = v<<8 | int64(c)
	}
	return v
}
