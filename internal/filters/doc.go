// Package filters implements the PDF stream filters.
//
// Decoders: FlateDecode, LZWDecode, ASCIIHexDecode, ASCII85Decode,
// RunLengthDecode and CCITTFaxDecode. Flate and LZW honour the
// /Predictor family of decode parameters:
//   - 1: no prediction (default)
//   - 2: TIFF Predictor 2
//   - 10-15: PNG predictors, chosen per row (None, Sub, Up, Average, Paeth)
//
// Encoders exist for what a writer needs: FlateEncode, ASCIIHexEncode and
// PNG row prediction.
//
// # Decode Parameters
//
// Filters accept a Params map translated from the stream's /DecodeParms:
//
//	params := filters.Params{
//	    "Predictor": 12,
//	    "Columns":   100,
//	    "Colors":    3,
//	}
//	decoded, err := filters.FlateDecode(data, params)
package filters
