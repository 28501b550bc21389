package crypt

import (
	"bytes"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/binary"
	"fmt"
	"math/big"

	"golang.org/x/text/unicode/norm"
)

// modernPassword prepares a password for revisions 5 and 6: NFKC
// normalised UTF-8, at most 127 bytes.
func modernPassword(pw string) []byte {
	b := norm.NFKC.Bytes([]byte(pw))
	if len(b) > 127 {
		b = b[:127]
	}
	return b
}

// hashPassword computes the revision 5 digest or the revision 6
// hash 2.B over password, salt and udata.
func (h *Handler) hashPassword(pw, salt, udata []byte) ([]byte, error) {
	d := sha256.New()
	d.Write(pw)
	d.Write(salt)
	d.Write(udata)
	k := d.Sum(nil)
	if h.r == 5 {
		return k, nil
	}

	for round := 0; ; {
		seq := make([]byte, 0, len(pw)+len(k)+len(udata))
		seq = append(seq, pw...)
		seq = append(seq, k...)
		seq = append(seq, udata...)
		k1 := bytes.Repeat(seq, 64)

		e, err := aesCBCNoPad(k[:16], k[16:32], k1, true)
		if err != nil {
			return nil, err
		}

		// The first 16 bytes of E taken as a big-endian number, mod 3.
		switch new(big.Int).Mod(new(big.Int).SetBytes(e[:16]), big.NewInt(3)).Int64() {
		case 0:
			s := sha256.Sum256(e)
			k = s[:]
		case 1:
			s := sha512.Sum384(e)
			k = s[:]
		default:
			s := sha512.Sum512(e)
			k = s[:]
		}

		round++
		if round >= 64 && int(e[len(e)-1]) <= round-32 {
			break
		}
	}
	return k[:32], nil
}

// unwrapKey decrypts /UE or /OE with the intermediate key.
func unwrapKey(intermediate, wrapped []byte) ([]byte, error) {
	if len(wrapped) < 32 {
		return nil, fmt.Errorf("%w: wrapped key is %d bytes", ErrUnsupportedEncryption, len(wrapped))
	}
	return aesCBCNoPad(intermediate, nil, wrapped[:32], false)
}

func (h *Handler) checkUserModern(pw []byte) ([]byte, bool, error) {
	if len(h.u) < 48 {
		return nil, false, nil
	}
	hash, err := h.hashPassword(pw, h.u[32:40], nil)
	if err != nil {
		return nil, false, err
	}
	if !bytes.Equal(hash, h.u[:32]) {
		return nil, false, nil
	}
	ik, err := h.hashPassword(pw, h.u[40:48], nil)
	if err != nil {
		return nil, false, err
	}
	key, err := unwrapKey(ik, h.ue)
	return key, err == nil, err
}

func (h *Handler) checkOwnerModern(pw []byte) ([]byte, bool, error) {
	if len(h.o) < 48 || len(h.u) < 48 {
		return nil, false, nil
	}
	hash, err := h.hashPassword(pw, h.o[32:40], h.u[:48])
	if err != nil {
		return nil, false, err
	}
	if !bytes.Equal(hash, h.o[:32]) {
		return nil, false, nil
	}
	ik, err := h.hashPassword(pw, h.o[40:48], h.u[:48])
	if err != nil {
		return nil, false, err
	}
	key, err := unwrapKey(ik, h.oe)
	return key, err == nil, err
}

// checkPerms decrypts /Perms with the file key and compares it to /P.
func (h *Handler) checkPerms(key []byte) error {
	if len(h.perms) < 16 {
		return fmt.Errorf("%w: /Perms is missing or short", ErrBadPassword)
	}
	plain, err := aesECB(key, h.perms[:16], false)
	if err != nil {
		return err
	}
	if string(plain[9:12]) != "adb" {
		return fmt.Errorf("%w: /Perms does not decrypt", ErrBadPassword)
	}
	if int32(binary.LittleEndian.Uint32(plain[:4])) != h.p {
		return fmt.Errorf("%w: /Perms does not match /P", ErrBadPassword)
	}
	return nil
}

// modernEntries computes /U, /UE, /O, /OE and /Perms for a new file key.
func (h *Handler) modernEntries(userPw, ownerPw []byte) error {
	salts, err := randomBytes(h.rand, 32)
	if err != nil {
		return err
	}
	uvs, uks, ovs, oks := salts[0:8], salts[8:16], salts[16:24], salts[24:32]

	hash, err := h.hashPassword(userPw, uvs, nil)
	if err != nil {
		return err
	}
	h.u = append(append(hash, uvs...), uks...)
	ik, err := h.hashPassword(userPw, uks, nil)
	if err != nil {
		return err
	}
	if h.ue, err = aesCBCNoPad(ik, nil, h.key, true); err != nil {
		return err
	}

	if hash, err = h.hashPassword(ownerPw, ovs, h.u); err != nil {
		return err
	}
	h.o = append(append(hash, ovs...), oks...)
	if ik, err = h.hashPassword(ownerPw, oks, h.u); err != nil {
		return err
	}
	if h.oe, err = aesCBCNoPad(ik, nil, h.key, true); err != nil {
		return err
	}

	perms := make([]byte, 16)
	binary.LittleEndian.PutUint32(perms, uint32(h.p))
	perms[4], perms[5], perms[6], perms[7] = 0xFF, 0xFF, 0xFF, 0xFF
	perms[8] = 'F'
	if h.encryptMetadata {
		perms[8] = 'T'
	}
	copy(perms[9:12], "adb")
	tail, err := randomBytes(h.rand, 4)
	if err != nil {
		return err
	}
	copy(perms[12:], tail)
	h.perms, err = aesECB(h.key, perms, true)
	return err
}
