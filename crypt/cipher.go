package crypt

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/rc4"
	"fmt"
	"io"
)

// method is the payload cipher selected by a crypt filter.
type method int

const (
	methodIdentity method = iota
	methodRC4
	methodAESV2
	methodAESV3
)

func (m method) String() string {
	switch m {
	case methodRC4:
		return "V2"
	case methodAESV2:
		return "AESV2"
	case methodAESV3:
		return "AESV3"
	}
	return "None"
}

func (m method) isAES() bool { return m == methodAESV2 || m == methodAESV3 }

func rc4XOR(key, data []byte) []byte {
	c, err := rc4.NewCipher(key)
	if err != nil {
		// key lengths are fixed by the handler; 1..256 bytes is always valid here
		panic(err)
	}
	out := make([]byte, len(data))
	c.XORKeyStream(out, data)
	return out
}

// aesDecrypt decrypts IV-prefixed AES-CBC data and strips PKCS#7 padding.
// Trailing bytes that do not fill a block are dropped and invalid padding
// is left in place; both occur in files written by sloppy producers.
func aesDecrypt(key, data []byte) ([]byte, error) {
	if len(data) == 0 {
		return data, nil
	}
	if len(data) < aes.BlockSize {
		return nil, fmt.Errorf("aes: ciphertext of %d bytes is shorter than the IV", len(data))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	iv := data[:aes.BlockSize]
	ct := data[aes.BlockSize:]
	ct = ct[:len(ct)-len(ct)%aes.BlockSize]
	if len(ct) == 0 {
		return []byte{}, nil
	}
	out := make([]byte, len(ct))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(out, ct)
	return unpad(out), nil
}

// aesEncrypt pads data with PKCS#7 and encrypts it with a random IV that
// is prepended to the result.
func aesEncrypt(key, data []byte, rnd io.Reader) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	n := aes.BlockSize - len(data)%aes.BlockSize
	padded := make([]byte, len(data), len(data)+n)
	copy(padded, data)
	padded = append(padded, bytes.Repeat([]byte{byte(n)}, n)...)

	out := make([]byte, aes.BlockSize+len(padded))
	if _, err := io.ReadFull(rnd, out[:aes.BlockSize]); err != nil {
		return nil, err
	}
	cipher.NewCBCEncrypter(block, out[:aes.BlockSize]).CryptBlocks(out[aes.BlockSize:], padded)
	return out, nil
}

func unpad(b []byte) []byte {
	n := int(b[len(b)-1])
	if n == 0 || n > aes.BlockSize || n > len(b) {
		return b
	}
	for _, c := range b[len(b)-n:] {
		if int(c) != n {
			return b
		}
	}
	return b[:len(b)-n]
}

// aesCBCNoPad runs AES-CBC over whole blocks with an explicit IV.
func aesCBCNoPad(key, iv, data []byte, encrypt bool) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	if len(data)%aes.BlockSize != 0 {
		return nil, fmt.Errorf("aes: %d bytes is not a whole number of blocks", len(data))
	}
	if iv == nil {
		iv = make([]byte, aes.BlockSize)
	}
	out := make([]byte, len(data))
	if encrypt {
		cipher.NewCBCEncrypter(block, iv).CryptBlocks(out, data)
	} else {
		cipher.NewCBCDecrypter(block, iv).CryptBlocks(out, data)
	}
	return out, nil
}

// aesECB encrypts or decrypts a single block sequence in ECB mode, used only
// for the 16-byte /Perms entry.
func aesECB(key, data []byte, encrypt bool) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	if len(data)%aes.BlockSize != 0 {
		return nil, fmt.Errorf("aes: %d bytes is not a whole number of blocks", len(data))
	}
	out := make([]byte, len(data))
	for i := 0; i < len(data); i += aes.BlockSize {
		if encrypt {
			block.Encrypt(out[i:], data[i:i+aes.BlockSize])
		} else {
			block.Decrypt(out[i:], data[i:i+aes.BlockSize])
		}
	}
	return out, nil
}

func randomBytes(rnd io.Reader, n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := io.ReadFull(rnd, b); err != nil {
		return nil, err
	}
	return b, nil
}

var defaultRand io.Reader = rand.Reader
