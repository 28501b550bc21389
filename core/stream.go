package core

import (
	"fmt"

	"github.com/tsawler/folio/internal/filters"
)

// Filters returns the stream's filter chain in application order.
func (s *Stream) Filters() []string {
	switch f := s.Dict.Get("Filter").(type) {
	case Name:
		return []string{string(f)}
	case Array:
		names := make([]string, 0, len(f))
		for _, obj := range f {
			if n, ok := obj.(Name); ok {
				names = append(names, string(n))
			}
		}
		return names
	}
	return nil
}

// HasFilter reports whether name occurs in the filter chain.
func (s *Stream) HasFilter(name string) bool {
	for _, f := range s.Filters() {
		if f == name {
			return true
		}
	}
	return false
}

// decodeParms returns the parameters for the i-th filter. /DP is the
// abbreviated key used in inline images and some older files.
func (s *Stream) decodeParms(i int) Dict {
	obj := s.Dict.Get("DecodeParms")
	if obj == nil {
		obj = s.Dict.Get("DP")
	}
	switch p := obj.(type) {
	case Dict:
		return p
	case Array:
		d, _ := p.Get(i).(Dict)
		return d
	}
	return nil
}

// Decode decodes the stream data according to the Filter(s) specified in the
// stream dictionary, applying filter chains left to right. Image codecs
// (DCTDecode, JPXDecode, JBIG2Decode) end the chain and their input is
// returned still encoded. An unknown filter yields *UnsupportedFilterError.
func (s *Stream) Decode() ([]byte, error) {
	data := s.Data
	for i, name := range s.Filters() {
		if isImageCodec(name) {
			return data, nil
		}
		var err error
		data, err = decodeWithFilter(data, name, s.decodeParms(i))
		if err != nil {
			return nil, fmt.Errorf("filter %d (%s) failed: %w", i, name, err)
		}
	}
	return data, nil
}

func isImageCodec(name string) bool {
	switch name {
	case "DCTDecode", "DCT", "JPXDecode", "JBIG2Decode":
		return true
	}
	return false
}

// decodeWithFilter applies a single filter to data.
func decodeWithFilter(data []byte, filterName string, params Dict) ([]byte, error) {
	switch filterName {
	case "FlateDecode", "Fl":
		return filters.FlateDecode(data, dictToParams(params))
	case "LZWDecode", "LZW":
		return filters.LZWDecode(data, dictToParams(params))
	case "ASCIIHexDecode", "AHx":
		return filters.ASCIIHexDecode(data)
	case "ASCII85Decode", "A85":
		return filters.ASCII85Decode(data)
	case "RunLengthDecode", "RL":
		return filters.RunLengthDecode(data)
	case "CCITTFaxDecode", "CCF":
		return filters.CCITTFaxDecode(data, dictToParams(params))
	case "Crypt":
		// Crypt filters are applied by the security handler when the
		// stream is loaded; Data is already plaintext here.
		return data, nil
	}
	return nil, &UnsupportedFilterError{Filter: filterName}
}

// dictToParams converts a Dict to filters.Params, translating PDF object
// types to Go primitive types (Int->int, Real->float64, Bool->bool, etc.).
func dictToParams(dict Dict) filters.Params {
	if dict == nil {
		return nil
	}
	params := make(filters.Params, len(dict))
	for k, v := range dict {
		switch obj := v.(type) {
		case Int:
			params[k] = int(obj)
		case Real:
			params[k] = float64(obj)
		case Bool:
			params[k] = bool(obj)
		case String:
			params[k] = string(obj)
		case Name:
			params[k] = string(obj)
		default:
			params[k] = v
		}
	}
	return params
}

// EncodeFlate replaces the payload with its Flate-compressed form and
// records the filter, keeping any existing chain after it.
func (s *Stream) EncodeFlate() error {
	enc, err := filters.FlateEncode(s.Data)
	if err != nil {
		return err
	}
	switch f := s.Dict.Get("Filter").(type) {
	case nil:
		s.Dict["Filter"] = Name("FlateDecode")
	case Name:
		s.Dict["Filter"] = Array{Name("FlateDecode"), f}
		if p, ok := s.Dict["DecodeParms"]; ok {
			s.Dict["DecodeParms"] = Array{Null{}, p}
		}
	case Array:
		s.Dict["Filter"] = append(Array{Name("FlateDecode")}, f...)
		if p, ok := s.Dict["DecodeParms"].(Array); ok {
			s.Dict["DecodeParms"] = append(Array{Null{}}, p...)
		}
	}
	s.Data = enc
	s.Dict["Length"] = Int(len(enc))
	return nil
}
