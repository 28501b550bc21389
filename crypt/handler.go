package crypt

import (
	"crypto/md5"
	"errors"
	"fmt"
	"io"

	"github.com/tsawler/folio/core"
)

var (
	// ErrBadPassword is returned when neither the owner nor the user
	// password matches.
	ErrBadPassword = errors.New("bad password")

	// ErrUnsupportedEncryption is returned for security handlers, versions
	// or revisions that cannot be processed.
	ErrUnsupportedEncryption = errors.New("unsupported encryption")
)

// Handler is the standard security handler state for one document.
type Handler struct {
	v, r   int
	keyLen int // file key length in bytes

	o, u, oe, ue, perms []byte
	p                   int32
	encryptMetadata     bool
	id                  []byte

	strMethod, stmMethod method
	stdCFName            string
	filters              map[string]method

	key           []byte
	owner         bool
	authenticated bool

	rand io.Reader
}

// NewHandler parses an /Encrypt dictionary. id is the first element of the
// trailer /ID array (may be empty).
func NewHandler(enc core.Dict, id []byte) (*Handler, error) {
	filter, _ := enc.GetName("Filter")
	if filter != "Standard" {
		return nil, fmt.Errorf("%w: security handler /%s", ErrUnsupportedEncryption, filter)
	}
	v, _ := enc.GetInt("V")
	r, _ := enc.GetInt("R")

	h := &Handler{
		v:               int(v),
		r:               int(r),
		id:              id,
		encryptMetadata: true,
		rand:            defaultRand,
	}
	if b, ok := enc.GetBool("EncryptMetadata"); ok {
		h.encryptMetadata = bool(b)
	}
	if p, ok := enc.GetInt("P"); ok {
		h.p = int32(p)
	}
	o, _ := enc.GetString("O")
	u, _ := enc.GetString("U")
	h.o, h.u = []byte(o), []byte(u)

	switch h.r {
	case 2, 3, 4:
		if len(h.o) < 32 || len(h.u) < 32 {
			return nil, fmt.Errorf("%w: /O or /U shorter than 32 bytes", ErrUnsupportedEncryption)
		}
	case 5, 6:
		if len(h.o) < 48 || len(h.u) < 48 {
			return nil, fmt.Errorf("%w: /O or /U shorter than 48 bytes", ErrUnsupportedEncryption)
		}
		oe, _ := enc.GetString("OE")
		ue, _ := enc.GetString("UE")
		perms, _ := enc.GetString("Perms")
		h.oe, h.ue, h.perms = []byte(oe), []byte(ue), []byte(perms)
	default:
		return nil, fmt.Errorf("%w: revision %d", ErrUnsupportedEncryption, h.r)
	}

	switch h.v {
	case 1:
		h.keyLen = 5
		h.strMethod, h.stmMethod = methodRC4, methodRC4
	case 2:
		h.keyLen = 5
		if bits, ok := enc.GetInt("Length"); ok {
			if bits < 40 || bits > 128 || bits%8 != 0 {
				return nil, fmt.Errorf("%w: key length %d", ErrUnsupportedEncryption, bits)
			}
			h.keyLen = int(bits / 8)
		}
		h.strMethod, h.stmMethod = methodRC4, methodRC4
	case 4, 5:
		if err := h.parseCryptFilters(enc); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("%w: version %d", ErrUnsupportedEncryption, h.v)
	}
	if h.r == 2 {
		h.keyLen = 5
	}
	return h, nil
}

func (h *Handler) parseCryptFilters(enc core.Dict) error {
	cf, _ := enc.GetDict("CF")
	h.filters = make(map[string]method, len(cf))
	for name, obj := range cf {
		if sub, ok := obj.(core.Dict); ok {
			if m, _, err := cryptFilterMethod(sub); err == nil {
				h.filters[name] = m
			}
		}
	}

	lookup := func(key string) (method, error) {
		name, ok := enc.GetName(key)
		if !ok || name == "Identity" {
			return methodIdentity, nil
		}
		sub, ok := cf.GetDict(string(name))
		if !ok {
			return 0, fmt.Errorf("%w: crypt filter /%s not defined", ErrUnsupportedEncryption, name)
		}
		h.stdCFName = string(name)
		m, keyLen, err := cryptFilterMethod(sub)
		if err != nil {
			return 0, err
		}
		if keyLen > 0 {
			h.keyLen = keyLen
		}
		return m, nil
	}
	var err error
	if h.stmMethod, err = lookup("StmF"); err != nil {
		return err
	}
	if h.strMethod, err = lookup("StrF"); err != nil {
		return err
	}
	if h.v == 5 {
		h.keyLen = 32
	}
	if h.keyLen == 0 {
		h.keyLen = 16
	}
	return nil
}

// cryptFilterMethod returns the cipher of a /CF entry and the key length in
// bytes it asks for (0 when it does not use a key).
func cryptFilterMethod(sub core.Dict) (method, int, error) {
	cfm, _ := sub.GetName("CFM")
	switch cfm {
	case "V2":
		keyLen := 16
		if n, ok := sub.GetInt("Length"); ok {
			// Some writers give the length in bits here.
			if n > 16 {
				n /= 8
			}
			if n >= 5 && n <= 16 {
				keyLen = int(n)
			}
		}
		return methodRC4, keyLen, nil
	case "AESV2":
		return methodAESV2, 16, nil
	case "AESV3":
		return methodAESV3, 32, nil
	case "None", "":
		return methodIdentity, 0, nil
	}
	return 0, 0, fmt.Errorf("%w: crypt filter method /%s", ErrUnsupportedEncryption, cfm)
}

// streamMethod returns the cipher for a stream payload. A leading /Crypt
// filter selects a named entry of /CF instead of the /StmF default.
func (h *Handler) streamMethod(s *core.Stream) (method, error) {
	filters := s.Filters()
	if len(filters) == 0 || filters[0] != "Crypt" {
		return h.stmMethod, nil
	}
	name := cryptFilterName(s)
	if name == "Identity" {
		return methodIdentity, nil
	}
	if m, ok := h.filters[string(name)]; ok {
		return m, nil
	}
	if string(name) == h.stdCFName {
		return h.stmMethod, nil
	}
	return 0, fmt.Errorf("%w: crypt filter /%s not defined", ErrUnsupportedEncryption, name)
}

// Authenticate checks password against the owner entry and then against the
// user entry. An empty password opens documents with an empty user password.
func (h *Handler) Authenticate(password string) error {
	if h.r >= 5 {
		pw := modernPassword(password)
		key, ok, err := h.checkOwnerModern(pw)
		if err != nil {
			return err
		}
		owner := ok
		if !ok {
			if key, ok, err = h.checkUserModern(pw); err != nil {
				return err
			}
		}
		if !ok {
			return ErrBadPassword
		}
		if err := h.checkPerms(key); err != nil {
			return err
		}
		h.key, h.owner, h.authenticated = key, owner, true
		return nil
	}

	pw := legacyPassword(password)
	if key, ok := h.checkOwnerLegacy(pw); ok {
		h.key, h.owner, h.authenticated = key, true, true
		return nil
	}
	if key, ok := h.checkUserPadded(padPassword(pw)); ok {
		h.key, h.owner, h.authenticated = key, false, true
		return nil
	}
	return ErrBadPassword
}

// Authenticated reports whether a password has been accepted.
func (h *Handler) Authenticated() bool { return h.authenticated }

// OwnerAuthenticated reports whether the owner password was accepted.
func (h *Handler) OwnerAuthenticated() bool { return h.owner }

// Permissions returns the /P access bits.
func (h *Handler) Permissions() Permissions { return Permissions(uint32(h.p)) }

// EncryptMetadata reports whether XMP metadata streams are encrypted.
func (h *Handler) EncryptMetadata() bool { return h.encryptMetadata }

// Revision returns the /R value.
func (h *Handler) Revision() int { return h.r }

// KeyLength returns the file key length in bits.
func (h *Handler) KeyLength() int { return h.keyLen * 8 }

// ID returns the document identifier the handler was keyed with.
func (h *Handler) ID() []byte { return h.id }

// objectKey derives the per-object key (algorithm 1).
func (h *Handler) objectKey(num, gen int, m method) []byte {
	if m == methodAESV3 {
		return h.key
	}
	d := md5.New()
	d.Write(h.key)
	d.Write([]byte{byte(num), byte(num >> 8), byte(num >> 16), byte(gen), byte(gen >> 8)})
	if m == methodAESV2 {
		d.Write([]byte("sAlT"))
	}
	n := len(h.key) + 5
	if n > 16 {
		n = 16
	}
	return d.Sum(nil)[:n]
}

func (h *Handler) crypt(num, gen int, m method, data []byte, encrypt bool) ([]byte, error) {
	if !h.authenticated {
		return nil, ErrBadPassword
	}
	switch m {
	case methodIdentity:
		return data, nil
	case methodRC4:
		return rc4XOR(h.objectKey(num, gen, m), data), nil
	}
	key := h.objectKey(num, gen, m)
	if encrypt {
		return aesEncrypt(key, data, h.rand)
	}
	return aesDecrypt(key, data)
}

// DecryptString decrypts a string belonging to object num/gen.
func (h *Handler) DecryptString(num, gen int, data []byte) ([]byte, error) {
	return h.crypt(num, gen, h.strMethod, data, false)
}

// EncryptString encrypts a string belonging to object num/gen.
func (h *Handler) EncryptString(num, gen int, data []byte) ([]byte, error) {
	return h.crypt(num, gen, h.strMethod, data, true)
}

// DecryptStream decrypts stream data belonging to object num/gen.
func (h *Handler) DecryptStream(num, gen int, data []byte) ([]byte, error) {
	return h.crypt(num, gen, h.stmMethod, data, false)
}

// EncryptStream encrypts stream data belonging to object num/gen.
func (h *Handler) EncryptStream(num, gen int, data []byte) ([]byte, error) {
	return h.crypt(num, gen, h.stmMethod, data, true)
}
