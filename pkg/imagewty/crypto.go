package imagewty

import (
	"bytes"
	"crypto/cipher"
	"fmt"

	"golang.org/x/crypto/twofish"

	"github.com/openixkit/openiximg/pkg/rc6"
)

// CryptoSuite holds the fixed, domain-separated cipher contexts used by the
// IMAGEWTY envelope: one RC6 key each for the image header, the file-header
// table and the file contents, plus a Twofish context reserved for
// non-.fex payloads. All keys are constants of the format.
type CryptoSuite struct {
	Header      *rc6.Cipher
	FileTable   *rc6.Cipher
	FileContent *rc6.Cipher
	Twofish     *twofish.Cipher
}

// NewCryptoSuite derives all four contexts.
func NewCryptoSuite() (*CryptoSuite, error) {
	var cs CryptoSuite
	var err error

	for _, k := range []struct {
		dst  **rc6.Cipher
		fill byte
		last byte
	}{
		{&cs.Header, 0, 'i'},
		{&cs.FileTable, 1, 'm'},
		{&cs.FileContent, 2, 'g'},
	} {
		key := bytes.Repeat([]byte{k.fill}, rc6.KeySize)
		key[rc6.KeySize-1] = k.last
		*k.dst, err = rc6.NewCipher(key)
		if err != nil {
			return nil, fmt.Errorf("could not derive RC6 context: %w", err)
		}
	}

	cs.Twofish, err = twofish.NewCipher(TwofishKey())
	if err != nil {
		return nil, fmt.Errorf("could not derive Twofish context: %w", err)
	}

	return &cs, nil
}

// TwofishKey returns the 256-bit key for non-.fex payload content,
// generated by the packer's Fibonacci-like recurrence.
func TwofishKey() []byte {
	key := make([]byte, 32)
	key[0] = 5
	key[1] = 4
	for i := 2; i < len(key); i++ {
		key[i] = key[i-2] + key[i-1]
	}
	return key
}

// DecryptInPlace decrypts floor(len/16) blocks of data in place. Trailing
// bytes short of a block are left unchanged.
func DecryptInPlace(c cipher.Block, data []byte) {
	for len(data) >= rc6.BlockSize {
		c.Decrypt(data[:rc6.BlockSize], data[:rc6.BlockSize])
		data = data[rc6.BlockSize:]
	}
}

// EncryptInPlace is the inverse of DecryptInPlace, used when producing an
// encrypted envelope.
func EncryptInPlace(c cipher.Block, data []byte) {
	for len(data) >= rc6.BlockSize {
		c.Encrypt(data[:rc6.BlockSize], data[:rc6.BlockSize])
		data = data[rc6.BlockSize:]
	}
}
