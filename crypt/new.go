package crypt

import (
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/tsawler/folio/core"
)

// Params describes the encryption a writer applies to its output.
type Params struct {
	// Revision selects the standard handler revision.
	Revision int `validate:"oneof=2 3 4 5 6"`
	// KeyBits is the file key length: 40 for revision 2, 40-128 for
	// revisions 3 and 4, 256 for revisions 5 and 6.
	KeyBits int `validate:"min=40,max=256"`
	// AES selects AES-128 instead of RC4 for revision 4. Revisions 5 and 6
	// always use AES-256.
	AES           bool
	UserPassword  string
	OwnerPassword string
	Permissions   Permissions
	// EncryptMetadata leaves XMP streams in the clear when false. Only
	// revisions 4 and later honour it.
	EncryptMetadata bool
}

var validate = validator.New()

// Validate checks the parameter combination.
func (p Params) Validate() error {
	if err := validate.Struct(p); err != nil {
		return fmt.Errorf("%w: %v", ErrUnsupportedEncryption, err)
	}
	switch {
	case p.Revision == 2 && p.KeyBits != 40:
		return fmt.Errorf("%w: revision 2 requires a 40-bit key", ErrUnsupportedEncryption)
	case (p.Revision == 3 || p.Revision == 4) && (p.KeyBits > 128 || p.KeyBits%8 != 0):
		return fmt.Errorf("%w: revision %d key length %d", ErrUnsupportedEncryption, p.Revision, p.KeyBits)
	case p.Revision == 4 && p.AES && p.KeyBits != 128:
		return fmt.Errorf("%w: AES-128 requires a 128-bit key", ErrUnsupportedEncryption)
	case p.Revision >= 5 && p.KeyBits != 256:
		return fmt.Errorf("%w: revision %d requires a 256-bit key", ErrUnsupportedEncryption, p.Revision)
	}
	return nil
}

// New creates an authenticated handler with a fresh file key for writing.
// id is the first element of the output's /ID array.
func New(p Params, id []byte) (*Handler, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	h := &Handler{
		r:               p.Revision,
		keyLen:          p.KeyBits / 8,
		p:               p.Permissions.P(),
		id:              id,
		encryptMetadata: p.EncryptMetadata || p.Revision < 4,
		owner:           true,
		authenticated:   true,
		rand:            defaultRand,
	}

	switch p.Revision {
	case 2:
		h.v = 1
		h.strMethod, h.stmMethod = methodRC4, methodRC4
	case 3:
		h.v = 2
		h.strMethod, h.stmMethod = methodRC4, methodRC4
	case 4:
		h.v = 4
		h.strMethod, h.stmMethod = methodRC4, methodRC4
		if p.AES {
			h.strMethod, h.stmMethod = methodAESV2, methodAESV2
		}
		h.stdCFName = "StdCF"
	default:
		h.v = 5
		h.strMethod, h.stmMethod = methodAESV3, methodAESV3
		h.stdCFName = "StdCF"
	}

	owner := p.OwnerPassword
	if owner == "" {
		owner = p.UserPassword
	}

	if h.r >= 5 {
		key, err := randomBytes(h.rand, 32)
		if err != nil {
			return nil, err
		}
		h.key = key
		if err := h.modernEntries(modernPassword(p.UserPassword), modernPassword(owner)); err != nil {
			return nil, err
		}
		return h, nil
	}

	user := legacyPassword(p.UserPassword)
	h.o = h.computeO(legacyPassword(owner), user)
	h.key = h.fileKey(padPassword(user))
	h.u = h.computeU(h.key)
	return h, nil
}

// Dict returns the /Encrypt dictionary describing the handler.
func (h *Handler) Dict() core.Dict {
	d := core.Dict{
		"Filter": core.Name("Standard"),
		"V":      core.Int(h.v),
		"R":      core.Int(h.r),
		"O":      core.String(h.o),
		"U":      core.String(h.u),
		"P":      core.Int(h.p),
	}
	if h.v == 2 || h.v == 4 || h.v == 5 {
		d["Length"] = core.Int(h.keyLen * 8)
	}
	if h.v >= 4 {
		name := h.stdCFName
		if name == "" {
			name = "StdCF"
		}
		d["CF"] = core.Dict{
			name: core.Dict{
				"Type":      core.Name("CryptFilter"),
				"CFM":       core.Name(h.stmMethod.String()),
				"AuthEvent": core.Name("DocOpen"),
				"Length":    core.Int(h.keyLen),
			},
		}
		d["StmF"] = core.Name(name)
		d["StrF"] = core.Name(name)
		if !h.encryptMetadata {
			d["EncryptMetadata"] = core.Bool(false)
		}
	}
	if h.v == 5 {
		d["OE"] = core.String(h.oe)
		d["UE"] = core.String(h.ue)
		d["Perms"] = core.String(h.perms)
	}
	return d
}
