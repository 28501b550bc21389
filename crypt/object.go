package crypt

import (
	"fmt"

	"github.com/tsawler/folio/core"
)

// SkipStream reports whether a stream's payload is stored in the clear.
// Cross-reference streams are never encrypted, neither are metadata
// streams when EncryptMetadata is false, nor streams whose leading /Crypt
// filter names /Identity or an unencrypted /CF entry.
func (h *Handler) SkipStream(s *core.Stream) bool {
	t, _ := s.Dict.GetName("Type")
	if t == "XRef" {
		return true
	}
	if t == "Metadata" && !h.encryptMetadata {
		return true
	}
	m, err := h.streamMethod(s)
	return err == nil && m == methodIdentity
}

func cryptFilterName(s *core.Stream) core.Name {
	var parms core.Dict
	switch p := s.Dict.Get("DecodeParms").(type) {
	case core.Dict:
		parms = p
	case core.Array:
		parms, _ = p.Get(0).(core.Dict)
	}
	if name, ok := parms.GetName("Name"); ok {
		return name
	}
	return "Identity"
}

// isSignatureValue reports whether key in d holds a signature byte range
// value, which stays unencrypted.
func isSignatureValue(d core.Dict, key string) bool {
	return key == "Contents" && d.Has("ByteRange")
}

// isXRefStream reports whether obj is a cross-reference stream, whose
// dictionary strings (the /ID) are stored in the clear as well.
func isXRefStream(obj core.Object) bool {
	s, ok := obj.(*core.Stream)
	if !ok {
		return false
	}
	t, _ := s.Dict.GetName("Type")
	return t == "XRef"
}

// DecryptObject decrypts every string and stream payload in obj, which
// belongs to object num/gen. Containers are updated in place.
func (h *Handler) DecryptObject(num, gen int, obj core.Object) (core.Object, error) {
	if isXRefStream(obj) {
		return obj, nil
	}
	return h.walk(num, gen, obj, false)
}

// EncryptObject returns a copy of obj with every string and stream payload
// encrypted for object num/gen. obj itself is left untouched.
func (h *Handler) EncryptObject(num, gen int, obj core.Object) (core.Object, error) {
	if isXRefStream(obj) {
		return obj, nil
	}
	return h.walk(num, gen, core.DeepCopy(obj), true)
}

func (h *Handler) walk(num, gen int, obj core.Object, encrypt bool) (core.Object, error) {
	switch v := obj.(type) {
	case core.String:
		b, err := h.crypt(num, gen, h.strMethod, []byte(v), encrypt)
		if err != nil {
			return nil, fmt.Errorf("object %d %d: %w", num, gen, err)
		}
		return core.String(b), nil
	case core.Array:
		for i, item := range v {
			out, err := h.walk(num, gen, item, encrypt)
			if err != nil {
				return nil, err
			}
			v[i] = out
		}
		return v, nil
	case core.Dict:
		if err := h.walkDict(num, gen, v, encrypt); err != nil {
			return nil, err
		}
		return v, nil
	case *core.Stream:
		if err := h.walkDict(num, gen, v.Dict, encrypt); err != nil {
			return nil, err
		}
		if t, _ := v.Dict.GetName("Type"); t == "XRef" || (t == "Metadata" && !h.encryptMetadata) {
			return v, nil
		}
		m, err := h.streamMethod(v)
		if err != nil {
			return nil, fmt.Errorf("object %d %d stream: %w", num, gen, err)
		}
		if m == methodIdentity {
			return v, nil
		}
		data, err := h.crypt(num, gen, m, v.Data, encrypt)
		if err != nil {
			return nil, fmt.Errorf("object %d %d stream: %w", num, gen, err)
		}
		v.Data = data
		v.Dict["Length"] = core.Int(len(data))
		return v, nil
	}
	return obj, nil
}

func (h *Handler) walkDict(num, gen int, d core.Dict, encrypt bool) error {
	for k, item := range d {
		if isSignatureValue(d, k) {
			continue
		}
		out, err := h.walk(num, gen, item, encrypt)
		if err != nil {
			return err
		}
		d[k] = out
	}
	return nil
}
