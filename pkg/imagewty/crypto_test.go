package imagewty

import (
	"bytes"
	"testing"
)

func TestTwofishKey(t *testing.T) {
	key := TwofishKey()
	if len(key) != 32 {
		t.Fatalf("wrong key length: %d", len(key))
	}
	if key[0] != 5 || key[1] != 4 {
		t.Errorf("wrong seed bytes: %d, %d", key[0], key[1])
	}
	for i := 2; i < len(key); i++ {
		if key[i] != key[i-2]+key[i-1] {
			t.Errorf("recurrence broken at %d", i)
		}
	}
}

func TestCryptoSuiteRoundTrip(t *testing.T) {
	cs, err := NewCryptoSuite()
	if err != nil {
		t.Fatalf("NewCryptoSuite: %v", err)
	}

	data := make([]byte, 64+7)
	for i := range data {
		data[i] = byte(i * 31)
	}
	orig := append([]byte(nil), data...)

	for _, c := range []interface {
		Encrypt(dst, src []byte)
		Decrypt(dst, src []byte)
		BlockSize() int
	}{cs.Header, cs.FileTable, cs.FileContent, cs.Twofish} {
		buf := append([]byte(nil), data...)
		EncryptInPlace(c, buf)
		if bytes.Equal(buf[:64], orig[:64]) {
			t.Errorf("bulk encrypt left data unchanged")
		}
		if !bytes.Equal(buf[64:], orig[64:]) {
			t.Errorf("bulk encrypt touched the sub-block tail")
		}
		DecryptInPlace(c, buf)
		if !bytes.Equal(buf, orig) {
			t.Errorf("bulk round trip mismatch")
		}
	}
}

func TestCryptoSuiteDomainSeparation(t *testing.T) {
	cs, err := NewCryptoSuite()
	if err != nil {
		t.Fatalf("NewCryptoSuite: %v", err)
	}

	block := make([]byte, 16)
	var outs [][]byte
	for _, c := range []interface {
		Encrypt(dst, src []byte)
	}{cs.Header, cs.FileTable, cs.FileContent} {
		out := make([]byte, 16)
		c.Encrypt(out, block)
		outs = append(outs, out)
	}
	if bytes.Equal(outs[0], outs[1]) || bytes.Equal(outs[1], outs[2]) || bytes.Equal(outs[0], outs[2]) {
		t.Errorf("contexts are not domain separated")
	}
}
