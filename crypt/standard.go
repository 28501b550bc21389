package crypt

import (
	"bytes"
	"crypto/md5"
	"encoding/binary"
)

var padding = []byte{
	0x28, 0xBF, 0x4E, 0x5E, 0x4E, 0x75, 0x8A, 0x41,
	0x64, 0x00, 0x4E, 0x56, 0xFF, 0xFA, 0x01, 0x08,
	0x2E, 0x2E, 0x00, 0xB6, 0xD0, 0x68, 0x3E, 0x80,
	0x2F, 0x0C, 0xA9, 0xFE, 0x64, 0x53, 0x69, 0x7A,
}

// legacyPassword encodes a password for revisions 2-4. Passwords made only
// of Latin-1 runes are sent byte per rune; anything else, including invalid
// UTF-8, goes through unchanged.
func legacyPassword(pw string) []byte {
	out := make([]byte, 0, len(pw))
	for _, r := range pw {
		if r > 0xFF {
			return []byte(pw)
		}
		out = append(out, byte(r))
	}
	return out
}

// padPassword truncates or pads pw to exactly 32 bytes.
func padPassword(pw []byte) []byte {
	out := make([]byte, 32)
	n := copy(out, pw)
	copy(out[n:], padding)
	return out
}

// fileKey is algorithm 2: derive the file key from a padded user password.
func (h *Handler) fileKey(padded []byte) []byte {
	n := h.keyLen
	d := md5.New()
	d.Write(padded)
	d.Write(h.o[:32])
	var p [4]byte
	binary.LittleEndian.PutUint32(p[:], uint32(h.p))
	d.Write(p[:])
	d.Write(h.id)
	if h.r >= 4 && !h.encryptMetadata {
		d.Write([]byte{0xFF, 0xFF, 0xFF, 0xFF})
	}
	key := d.Sum(nil)
	if h.r >= 3 {
		for i := 0; i < 50; i++ {
			sum := md5.Sum(key[:n])
			key = sum[:]
		}
	}
	return key[:n]
}

// ownerRC4Key is steps a-d of algorithm 3.
func (h *Handler) ownerRC4Key(ownerPw []byte) []byte {
	sum := md5.Sum(padPassword(ownerPw))
	key := sum[:]
	if h.r >= 3 {
		for i := 0; i < 50; i++ {
			sum = md5.Sum(key[:h.keyLen])
			key = sum[:]
		}
		return key[:h.keyLen]
	}
	return key[:5]
}

// computeO is algorithm 3.
func (h *Handler) computeO(ownerPw, userPw []byte) []byte {
	if len(ownerPw) == 0 {
		ownerPw = userPw
	}
	key := h.ownerRC4Key(ownerPw)
	out := rc4XOR(key, padPassword(userPw))
	if h.r >= 3 {
		out = rc4Rounds(key, out, 1, 19)
	}
	return out
}

// computeU is algorithms 4 and 5.
func (h *Handler) computeU(key []byte) []byte {
	if h.r == 2 {
		return rc4XOR(key, padding)
	}
	d := md5.New()
	d.Write(padding)
	d.Write(h.id)
	out := rc4XOR(key, d.Sum(nil))
	out = rc4Rounds(key, out, 1, 19)
	// The last 16 bytes are arbitrary; reuse the padding string.
	return append(out, padding[:16]...)
}

// rc4Rounds encrypts data with key XOR i for i from first to last,
// stepping downward when first > last.
func rc4Rounds(key, data []byte, first, last int) []byte {
	step := 1
	if first > last {
		step = -1
	}
	k := make([]byte, len(key))
	for i := first; ; i += step {
		for j := range key {
			k[j] = key[j] ^ byte(i)
		}
		data = rc4XOR(k, data)
		if i == last {
			break
		}
	}
	return data
}

// checkUserPadded is algorithm 6 run on an already padded password.
func (h *Handler) checkUserPadded(padded []byte) ([]byte, bool) {
	key := h.fileKey(padded)
	u := h.computeU(key)
	n := 32
	if h.r >= 3 {
		n = 16
	}
	if len(h.u) < n || !bytes.Equal(u[:n], h.u[:n]) {
		return nil, false
	}
	return key, true
}

// checkOwnerLegacy is algorithm 7: recover the user password from /O and
// validate it.
func (h *Handler) checkOwnerLegacy(pw []byte) ([]byte, bool) {
	key := h.ownerRC4Key(pw)
	var user []byte
	if h.r == 2 {
		user = rc4XOR(key, h.o[:32])
	} else {
		user = rc4Rounds(key, h.o[:32], 19, 0)
	}
	return h.checkUserPadded(user)
}
