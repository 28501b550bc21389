package filters

import (
	"bytes"
	"io"

	"golang.org/x/image/ccitt"
)

// CCITTFaxDecode decodes CCITT Group 3/4 fax compressed data.
//
// Parameters from the PDF decode parameters dictionary:
//   - K: Group selector (<0 Group 4, otherwise Group 3)
//   - Columns: Image width in pixels (default 1728)
//   - Rows: Image height in pixels (default 0, detected)
//   - BlackIs1: Bit interpretation (default false, maps to ccitt.Options.Invert)
//   - EncodedByteAlign: rows start on byte boundaries
func CCITTFaxDecode(data []byte, params Params) ([]byte, error) {
	columns := getIntParam(params, "Columns", 1728)
	rows := getIntParam(params, "Rows", 0)
	if rows == 0 {
		rows = ccitt.AutoDetectHeight
	}

	sf := ccitt.Group3
	if getIntParam(params, "K", 0) < 0 {
		sf = ccitt.Group4
	}
	opts := &ccitt.Options{
		Invert: getBoolParam(params, "BlackIs1", false),
		Align:  getBoolParam(params, "EncodedByteAlign", false),
	}

	reader := ccitt.NewReader(bytes.NewReader(data), ccitt.MSB, sf, columns, rows, opts)
	return io.ReadAll(reader)
}
