package filters

import "fmt"

// PNG row filter types.
const (
	PNGNone byte = iota
	PNGSub
	PNGUp
	PNGAverage
	PNGPaeth
)

type rowLayout struct {
	bpc      int // bits per component
	colors   int
	rowBytes int // bytes per row of samples
	bpp      int // bytes per complete pixel, at least 1
}

func layoutFromParams(params Params) (rowLayout, error) {
	columns := getIntParam(params, "Columns", 1)
	colors := getIntParam(params, "Colors", 1)
	bpc := getIntParam(params, "BitsPerComponent", 8)
	return newLayout(columns, colors, bpc)
}

func newLayout(columns, colors, bpc int) (rowLayout, error) {
	switch bpc {
	case 1, 2, 4, 8, 16:
	default:
		return rowLayout{}, fmt.Errorf("unsupported BitsPerComponent %d", bpc)
	}
	if columns < 1 || colors < 1 {
		return rowLayout{}, fmt.Errorf("invalid predictor geometry: %d columns, %d colors", columns, colors)
	}
	bpp := (colors*bpc + 7) / 8
	return rowLayout{
		bpc:      bpc,
		colors:   colors,
		rowBytes: (columns*colors*bpc + 7) / 8,
		bpp:      bpp,
	}, nil
}

// unpredict undoes the predictor named in params, if any.
func unpredict(data []byte, params Params) ([]byte, error) {
	predictor := getIntParam(params, "Predictor", 1)
	switch {
	case predictor <= 1:
		return data, nil
	case predictor == 2:
		layout, err := layoutFromParams(params)
		if err != nil {
			return nil, err
		}
		return decodeTIFF(data, layout)
	case predictor >= 10 && predictor <= 15:
		layout, err := layoutFromParams(params)
		if err != nil {
			return nil, err
		}
		return decodePNG(data, layout)
	}
	return nil, fmt.Errorf("unsupported predictor: %d", predictor)
}

// decodeTIFF undoes TIFF Predictor 2: every sample is stored as the
// difference from the sample of the same component to its left.
func decodeTIFF(data []byte, l rowLayout) ([]byte, error) {
	if l.bpc != 8 && l.bpc != 16 {
		return nil, fmt.Errorf("TIFF predictor supports 8 or 16 bits per component, got %d", l.bpc)
	}
	out := append([]byte(nil), data...)
	rows := len(out) / l.rowBytes
	for r := 0; r < rows; r++ {
		row := out[r*l.rowBytes : (r+1)*l.rowBytes]
		if l.bpc == 8 {
			for i := l.colors; i < len(row); i++ {
				row[i] += row[i-l.colors]
			}
			continue
		}
		stride := 2 * l.colors
		for i := stride; i+1 < len(row); i += 2 {
			v := uint16(row[i])<<8 | uint16(row[i+1])
			left := uint16(row[i-stride])<<8 | uint16(row[i-stride+1])
			v += left
			row[i], row[i+1] = byte(v>>8), byte(v)
		}
	}
	return out, nil
}

// decodePNG undoes PNG prediction. Each row is prefixed with its own filter
// type byte. A trailing partial row is dropped.
func decodePNG(data []byte, l rowLayout) ([]byte, error) {
	stride := l.rowBytes + 1
	rows := len(data) / stride
	out := make([]byte, rows*l.rowBytes)
	prev := make([]byte, l.rowBytes)

	for r := 0; r < rows; r++ {
		filter := data[r*stride]
		src := data[r*stride+1 : (r+1)*stride]
		cur := out[r*l.rowBytes : (r+1)*l.rowBytes]

		for i := range cur {
			var left, upLeft byte
			if i >= l.bpp {
				left = cur[i-l.bpp]
				upLeft = prev[i-l.bpp]
			}
			up := prev[i]

			switch filter {
			case PNGNone:
				cur[i] = src[i]
			case PNGSub:
				cur[i] = src[i] + left
			case PNGUp:
				cur[i] = src[i] + up
			case PNGAverage:
				cur[i] = src[i] + byte((int(left)+int(up))/2)
			case PNGPaeth:
				cur[i] = src[i] + paeth(left, up, upLeft)
			default:
				return nil, fmt.Errorf("row %d: unknown PNG filter type %d", r, filter)
			}
		}
		prev = cur
	}
	return out, nil
}

// EncodePNG applies PNG prediction to data, using filters[r%len(filters)]
// as the filter type of row r.
func EncodePNG(data []byte, columns, colors, bpc int, filters ...byte) ([]byte, error) {
	l, err := newLayout(columns, colors, bpc)
	if err != nil {
		return nil, err
	}
	if len(filters) == 0 {
		filters = []byte{PNGUp}
	}
	if len(data)%l.rowBytes != 0 {
		return nil, fmt.Errorf("data size %d is not a multiple of row size %d", len(data), l.rowBytes)
	}

	rows := len(data) / l.rowBytes
	out := make([]byte, 0, rows*(l.rowBytes+1))
	prev := make([]byte, l.rowBytes)
	for r := 0; r < rows; r++ {
		cur := data[r*l.rowBytes : (r+1)*l.rowBytes]
		filter := filters[r%len(filters)]
		out = append(out, filter)
		for i := range cur {
			var left, upLeft byte
			if i >= l.bpp {
				left = cur[i-l.bpp]
				upLeft = prev[i-l.bpp]
			}
			up := prev[i]

			var predicted byte
			switch filter {
			case PNGSub:
				predicted = left
			case PNGUp:
				predicted = up
			case PNGAverage:
				predicted = byte((int(left) + int(up)) / 2)
			case PNGPaeth:
				predicted = paeth(left, up, upLeft)
			case PNGNone:
			default:
				return nil, fmt.Errorf("unknown PNG filter type %d", filter)
			}
			out = append(out, cur[i]-predicted)
		}
		prev = cur
	}
	return out, nil
}

// paeth implements the Paeth predictor from the PNG specification:
// a = left, b = above, c = upper left.
func paeth(a, b, c byte) byte {
	p := int(a) + int(b) - int(c)
	pa := abs(p - int(a))
	pb := abs(p - int(b))
	pc := abs(p - int(c))

	if pa <= pb && pa <= pc {
		return a
	} else if pb <= pc {
		return b
	}
	return c
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
