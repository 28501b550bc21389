package reader

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tsawler/folio/internal/pdftest"
)

func imageDoc() *pdftest.Builder {
	b := pdftest.New()
	b.Trailer = "/Root 1 0 R"
	b.Add(1, "<< /Type /Catalog /Pages 2 0 R >>")
	b.Add(2, "<< /Type /Pages /Kids [3 0 R] /Count 1 /Resources << /XObject << /Im2 5 0 R /Im1 4 0 R /Fm1 6 0 R /Im3 7 0 R >> >> >>")
	b.Add(3, "<< /Type /Page /Parent 2 0 R >>")
	b.AddStream(4, "<< /Type /XObject /Subtype /Image /Width 2 /Height 2 /ColorSpace /DeviceRGB /BitsPerComponent 8 >>",
		[]byte{255, 0, 0, 0, 255, 0, 0, 0, 255, 255, 255, 255})
	b.AddStream(5, "<< /Subtype /Image /Width 8 /Height 1 /ColorSpace [/ICCBased 8 0 R] /BitsPerComponent 1 >>", []byte{0xAA})
	b.AddStream(6, "<< /Subtype /Form /BBox [0 0 1 1] >>", []byte("q Q"))
	b.AddStream(7, "<< /Subtype /Image /Width 4 /Height 4 /ColorSpace /DeviceGray /BitsPerComponent 8 /Filter /DCTDecode >>", []byte{0xFF, 0xD8})
	b.AddStream(8, "<< /N 1 >>", []byte{})
	return b
}

func TestPageImages(t *testing.T) {
	r := open(t, imageDoc().Bytes())
	images, err := r.PageImages(1)
	require.NoError(t, err)
	require.Len(t, images, 3)

	rgb := images[0]
	assert.Equal(t, "Im1", rgb.Name)
	assert.Equal(t, 4, rgb.Ref.Number)
	assert.Equal(t, 2, rgb.Width)
	assert.Equal(t, "DeviceRGB", rgb.ColorSpace)
	assert.Equal(t, 3, rgb.Components)
	assert.Empty(t, rgb.Codec())

	img, err := rgb.Image()
	require.NoError(t, err)
	assert.Equal(t, color.NRGBA{R: 255, A: 255}, img.At(0, 0))
	assert.Equal(t, color.NRGBA{B: 255, A: 255}, img.At(0, 1))

	bilevel := images[1]
	assert.Equal(t, "ICCBased", bilevel.ColorSpace)
	assert.Equal(t, 1, bilevel.Components)
	assert.Equal(t, 1, bilevel.BitsPerComponent)
	data, err := bilevel.PNG()
	require.NoError(t, err)
	decoded, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 8, 1), decoded.Bounds())

	jpeg := images[2]
	assert.Equal(t, "DCTDecode", jpeg.Codec())
	assert.Equal(t, []string{"DCTDecode"}, jpeg.Filters)
	_, err = jpeg.Image()
	assert.Error(t, err)

	_, err = r.PageImages(2)
	assert.Error(t, err)
}

func TestUnpackSamples(t *testing.T) {
	tests := []struct {
		name          string
		data          []byte
		width, height int
		comps, bpc    int
		want          []byte
	}{
		{"8 bit", []byte{1, 2, 3, 4}, 2, 2, 1, 8, []byte{1, 2, 3, 4}},
		{"1 bit", []byte{0xA0}, 3, 1, 1, 1, []byte{255, 0, 255}},
		{"1 bit rows padded", []byte{0x80, 0x40}, 2, 2, 1, 1, []byte{255, 0, 0, 255}},
		{"2 bit", []byte{0x1B}, 4, 1, 1, 2, []byte{0, 85, 170, 255}},
		{"4 bit", []byte{0xF0, 0x80}, 3, 1, 1, 4, []byte{255, 0, 136}},
		{"16 bit", []byte{0x12, 0x34, 0xAB, 0xCD}, 2, 1, 1, 16, []byte{0x12, 0xAB}},
		{"rgb", []byte{1, 2, 3, 4, 5, 6}, 2, 1, 3, 8, []byte{1, 2, 3, 4, 5, 6}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := unpackSamples(tt.data, tt.width, tt.height, tt.comps, tt.bpc)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestUnpackSamplesErrors(t *testing.T) {
	_, err := unpackSamples([]byte{1, 2}, 2, 2, 1, 8)
	assert.ErrorContains(t, err, "insufficient data")
	_, err = unpackSamples([]byte{1}, 1, 1, 1, 3)
	assert.ErrorContains(t, err, "bits per component")
	_, err = unpackSamples(nil, 0, 1, 1, 8)
	assert.Error(t, err)
}
