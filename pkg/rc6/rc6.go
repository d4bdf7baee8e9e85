// Package rc6 implements the RC6-32/20/32 block cipher: 32-bit words, 20
// rounds, a 32-byte key and a 16-byte block. This is the variant Allwinner
// uses to obfuscate IMAGEWTY firmware images. ECB only; callers apply it
// block by block.
package rc6

import (
	"encoding/binary"
	"fmt"
	"math/bits"
)

const (
	// BlockSize is the RC6 block size in bytes.
	BlockSize = 16
	// KeySize is the only key length accepted, in bytes.
	KeySize = 32

	rounds = 20
	// 2*rounds+4 round keys.
	numRoundKeys = 2*rounds + 4

	p32 = 0xb7e15163
	q32 = 0x9e3779b9
)

// Cipher is an instance of RC6 with an expanded key schedule. It implements
// crypto/cipher.Block.
type Cipher struct {
	s [numRoundKeys]uint32
}

type KeySizeError int

func (k KeySizeError) Error() string {
	return fmt.Sprintf("rc6: invalid key size %d", int(k))
}

// NewCipher expands a 32-byte key into a Cipher.
func NewCipher(key []byte) (*Cipher, error) {
	if len(key) != KeySize {
		return nil, KeySizeError(len(key))
	}

	var c Cipher
	var l [KeySize / 4]uint32
	for i := range l {
		l[i] = binary.LittleEndian.Uint32(key[i*4:])
	}

	c.s[0] = p32
	for i := 1; i < numRoundKeys; i++ {
		c.s[i] = c.s[i-1] + q32
	}

	var a, b uint32
	i, j := 0, 0
	for k := 0; k < 3*numRoundKeys; k++ {
		a = bits.RotateLeft32(c.s[i]+a+b, 3)
		c.s[i] = a
		b = bits.RotateLeft32(l[j]+a+b, int(a+b))
		l[j] = b
		i = (i + 1) % numRoundKeys
		j = (j + 1) % len(l)
	}

	return &c, nil
}

// BlockSize returns the cipher's block size in bytes.
func (c *Cipher) BlockSize() int { return BlockSize }

// Encrypt encrypts the 16-byte block in src into dst. Dst and src may
// overlap entirely.
func (c *Cipher) Encrypt(dst, src []byte) {
	a := binary.LittleEndian.Uint32(src[0:])
	b := binary.LittleEndian.Uint32(src[4:])
	d0 := binary.LittleEndian.Uint32(src[8:])
	d1 := binary.LittleEndian.Uint32(src[12:])

	b += c.s[0]
	d1 += c.s[1]
	for i := 1; i <= rounds; i++ {
		t := bits.RotateLeft32(b*(2*b+1), 5)
		u := bits.RotateLeft32(d1*(2*d1+1), 5)
		a = bits.RotateLeft32(a^t, int(u)) + c.s[2*i]
		d0 = bits.RotateLeft32(d0^u, int(t)) + c.s[2*i+1]
		a, b, d0, d1 = b, d0, d1, a
	}
	a += c.s[2*rounds+2]
	d0 += c.s[2*rounds+3]

	binary.LittleEndian.PutUint32(dst[0:], a)
	binary.LittleEndian.PutUint32(dst[4:], b)
	binary.LittleEndian.PutUint32(dst[8:], d0)
	binary.LittleEndian.PutUint32(dst[12:], d1)
}

// Decrypt decrypts the 16-byte block in src into dst. Dst and src may
// overlap entirely.
func (c *Cipher) Decrypt(dst, src []byte) {
	a := binary.LittleEndian.Uint32(src[0:])
	b := binary.LittleEndian.Uint32(src[4:])
	d0 := binary.LittleEndian.Uint32(src[8:])
	d1 := binary.LittleEndian.Uint32(src[12:])

	d0 -= c.s[2*rounds+3]
	a -= c.s[2*rounds+2]
	for i := rounds; i >= 1; i-- {
		a, b, d0, d1 = d1, a, b, d0
		u := bits.RotateLeft32(d1*(2*d1+1), 5)
		t := bits.RotateLeft32(b*(2*b+1), 5)
		d0 = bits.RotateLeft32(d0-c.s[2*i+1], -int(t)) ^ u
		a = bits.RotateLeft32(a-c.s[2*i], -int(u)) ^ t
	}
	d1 -= c.s[1]
	b -= c.s[0]

	binary.LittleEndian.PutUint32(dst[0:], a)
	binary.LittleEndian.PutUint32(dst[4:], b)
	binary.LittleEndian.PutUint32(dst[8:], d0)
	binary.LittleEndian.PutUint32(dst[12:], d1)
}
