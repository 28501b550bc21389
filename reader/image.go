package reader

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"sort"

	"github.com/tsawler/folio/core"
)

// ImageInfo describes an image XObject referenced from a page's resources.
type ImageInfo struct {
	Name             string // resource name, e.g. "Im1"
	Ref              core.IndirectRef
	Width            int
	Height           int
	ColorSpace       string // DeviceGray, DeviceRGB, ICCBased, Indexed...
	Components       int    // 0 when the color space is not understood
	BitsPerComponent int
	Filters          []string
	Length           int // stored payload size

	stream *core.Stream
}

// Codec returns the image codec the payload is still encoded with after
// decoding (DCTDecode, JPXDecode, JBIG2Decode), or "" for raw samples.
func (img *ImageInfo) Codec() string {
	for _, f := range img.Filters {
		switch f {
		case "DCTDecode", "DCT", "JPXDecode", "JBIG2Decode":
			return f
		}
	}
	return ""
}

// PageImages lists the image XObjects in the resources of page n, sorted by
// resource name. Form XObjects are not searched.
func (r *Reader) PageImages(n int) ([]ImageInfo, error) {
	page, err := r.tree.GetPage(n)
	if err != nil {
		return nil, err
	}
	resources, err := page.Resources()
	if err != nil || resources == nil {
		return nil, err
	}
	xobjects, ok, err := r.res.Dict(resources.Get("XObject"))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve XObject dictionary: %w", err)
	}
	if !ok {
		return nil, nil
	}

	var images []ImageInfo
	for name, obj := range xobjects {
		resolved, err := r.Resolve(obj)
		if err != nil {
			continue
		}
		stream, ok := resolved.(*core.Stream)
		if !ok {
			continue
		}
		if subtype, _ := stream.Dict.GetName("Subtype"); subtype != "Image" {
			continue
		}
		img := r.imageInfo(name, stream)
		if ref, ok := obj.(core.IndirectRef); ok {
			img.Ref = ref
		}
		images = append(images, img)
	}
	sort.Slice(images, func(i, j int) bool { return images[i].Name < images[j].Name })
	return images, nil
}

func (r *Reader) imageInfo(name string, stream *core.Stream) ImageInfo {
	d := stream.Dict
	img := ImageInfo{
		Name:             name,
		BitsPerComponent: 8,
		ColorSpace:       "DeviceGray",
		Components:       1,
		Filters:          stream.Filters(),
		Length:           len(stream.Data),
		stream:           stream,
	}
	if w, ok, _ := r.res.Number(d.Get("Width")); ok {
		img.Width = int(w)
	}
	if h, ok, _ := r.res.Number(d.Get("Height")); ok {
		img.Height = int(h)
	}
	if mask, _ := d.GetBool("ImageMask"); mask {
		img.BitsPerComponent = 1
		return img
	}
	if bpc, ok, _ := r.res.Number(d.Get("BitsPerComponent")); ok {
		img.BitsPerComponent = int(bpc)
	}
	if cs := d.Get("ColorSpace"); cs != nil {
		img.ColorSpace, img.Components = r.colorSpace(cs, 0)
	}
	return img
}

// colorSpace returns the family name of a color space and its number of
// components.
func (r *Reader) colorSpace(obj core.Object, depth int) (string, int) {
	resolved, err := r.Resolve(obj)
	if err != nil || depth > 4 {
		return "DeviceGray", 1
	}
	var family core.Name
	var arr core.Array
	switch v := resolved.(type) {
	case core.Name:
		family = v
	case core.Array:
		arr = v
		family, _ = v.GetName(0)
	}

	switch family {
	case "DeviceGray", "CalGray", "G":
		return string(family), 1
	case "DeviceRGB", "CalRGB", "Lab", "RGB":
		return string(family), 3
	case "DeviceCMYK", "CMYK":
		return string(family), 4
	case "Indexed", "I":
		return string(family), 1
	case "ICCBased":
		if len(arr) > 1 {
			if s, ok := r.resolveStream(arr[1]); ok {
				if n, ok := s.Dict.GetInt("N"); ok {
					return string(family), int(n)
				}
			}
		}
		return string(family), 0
	case "Separation":
		return string(family), 1
	case "DeviceN":
		if len(arr) > 1 {
			if names, ok, _ := r.res.Array(arr[1]); ok {
				return string(family), len(names)
			}
		}
	}
	return string(family), 0
}

func (r *Reader) resolveStream(obj core.Object) (*core.Stream, bool) {
	resolved, err := r.Resolve(obj)
	if err != nil {
		return nil, false
	}
	s, ok := resolved.(*core.Stream)
	return s, ok
}

// Image decodes the image into an image.Image. JPEG payloads and raw
// samples with 1, 3 or 4 components are supported; other codecs and
// palette images are not.
func (img *ImageInfo) Image() (image.Image, error) {
	data, err := img.stream.Decode()
	if err != nil {
		return nil, fmt.Errorf("failed to decode image %s: %w", img.Name, err)
	}
	switch img.Codec() {
	case "":
	case "DCTDecode", "DCT":
		return jpeg.Decode(bytes.NewReader(data))
	default:
		return nil, fmt.Errorf("image %s: %s is not supported", img.Name, img.Codec())
	}
	if img.ColorSpace == "Indexed" || img.ColorSpace == "I" {
		return nil, fmt.Errorf("image %s: indexed color is not supported", img.Name)
	}

	samples, err := unpackSamples(data, img.Width, img.Height, img.Components, img.BitsPerComponent)
	if err != nil {
		return nil, fmt.Errorf("image %s: %w", img.Name, err)
	}
	rect := image.Rect(0, 0, img.Width, img.Height)
	switch img.Components {
	case 1:
		return &image.Gray{Pix: samples, Stride: img.Width, Rect: rect}, nil
	case 3:
		out := image.NewNRGBA(rect)
		for i, j := 0, 0; i+2 < len(samples); i, j = i+3, j+4 {
			out.Pix[j], out.Pix[j+1], out.Pix[j+2], out.Pix[j+3] = samples[i], samples[i+1], samples[i+2], 0xFF
		}
		return out, nil
	case 4:
		return &image.CMYK{Pix: samples, Stride: 4 * img.Width, Rect: rect}, nil
	}
	return nil, fmt.Errorf("image %s: %d color components are not supported", img.Name, img.Components)
}

// PNG re-encodes the image as PNG.
func (img *ImageInfo) PNG() ([]byte, error) {
	decoded, err := img.Image()
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, decoded); err != nil {
		return nil, fmt.Errorf("failed to encode PNG: %w", err)
	}
	return buf.Bytes(), nil
}

// unpackSamples expands rows of bpc-bit samples to one byte per sample,
// scaled to 0-255. Rows start on byte boundaries.
func unpackSamples(data []byte, width, height, comps, bpc int) ([]byte, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid size %dx%d", width, height)
	}
	switch bpc {
	case 1, 2, 4, 8, 16:
	default:
		return nil, fmt.Errorf("unsupported bits per component: %d", bpc)
	}
	perRow := width * comps
	stride := (perRow*bpc + 7) / 8
	if len(data) < stride*height {
		return nil, fmt.Errorf("insufficient data: got %d, expected %d", len(data), stride*height)
	}

	out := make([]byte, perRow*height)
	maxVal := 1<<bpc - 1
	for y := 0; y < height; y++ {
		row := data[y*stride : (y+1)*stride]
		for x := 0; x < perRow; x++ {
			var v int
			switch bpc {
			case 8:
				v = int(row[x])
			case 16:
				v = int(row[2*x]) // high byte
			default:
				bit := x * bpc
				shift := 8 - bpc - bit%8
				v = int(row[bit/8]>>shift) & maxVal
			}
			if bpc < 8 {
				v = v * 255 / maxVal
			}
			out[y*perRow+x] = byte(v)
		}
	}
	return out, nil
}
