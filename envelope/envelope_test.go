package envelope

import (
	"bytes"
	"crypto/aes"
	"encoding/hex"
	"testing"
)

func TestDeriveKeyKnownVector(t *testing.T) {
	key, err := DeriveKey("76561199131094380")
	if err != nil {
		t.Fatalf("DeriveKey() error: %v", err)
	}
	want, _ := hex.DecodeString("5981fa32f25da0ebbe6b83115403ebfb2725642ed54906290578bd60ba4aa787")
	if !bytes.Equal(key, want) {
		t.Errorf("DeriveKey() = %x, want %x", key, want)
	}
}

func TestDeriveKeyNoDigits(t *testing.T) {
	if _, err := DeriveKey("no-digits-here"); err != ErrAccountIDNoDigits {
		t.Errorf("DeriveKey() error = %v, want ErrAccountIDNoDigits", err)
	}
}

func TestDeriveKeyIgnoresNonDigits(t *testing.T) {
	a, err := DeriveKey("76561199131094380")
	if err != nil {
		t.Fatalf("DeriveKey() error: %v", err)
	}
	b, err := DeriveKey("id:76561199131094380!")
	if err != nil {
		t.Fatalf("DeriveKey() error: %v", err)
	}
	if !bytes.Equal(a, b) {
		t.Errorf("DeriveKey() should ignore non-digit characters: %x != %x", a, b)
	}
}

// TestECBSingleBlockFIPS197 checks the hand-rolled ECB mode against the
// FIPS-197 Appendix C.3 AES-256 known-answer test vector.
func TestECBSingleBlockFIPS197(t *testing.T) {
	key, _ := hex.DecodeString("000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f")
	plaintext, _ := hex.DecodeString("00112233445566778899aabbccddeeff")
	wantCipher, _ := hex.DecodeString("8ea2b7ca516745bfeafc49904b496089")

	block, err := aes.NewCipher(key)
	if err != nil {
		t.Fatalf("aes.NewCipher() error: %v", err)
	}

	ciphertext := make([]byte, len(plaintext))
	newECBEncrypter(block).CryptBlocks(ciphertext, plaintext)
	if !bytes.Equal(ciphertext, wantCipher) {
		t.Errorf("ECB encrypt = %x, want %x", ciphertext, wantCipher)
	}

	roundTrip := make([]byte, len(ciphertext))
	newECBDecrypter(block).CryptBlocks(roundTrip, ciphertext)
	if !bytes.Equal(roundTrip, plaintext) {
		t.Errorf("ECB decrypt = %x, want %x", roundTrip, plaintext)
	}
}

func TestPKCS7PadUnpadRoundTrip(t *testing.T) {
	for n := 0; n < 40; n++ {
		data := bytes.Repeat([]byte{0xAB}, n)
		padded := pkcs7Pad(data, aes.BlockSize)
		if len(padded)%aes.BlockSize != 0 {
			t.Fatalf("padded length %d not a multiple of block size", len(padded))
		}
		if len(padded) == 0 {
			t.Fatal("padded length must be positive")
		}
		p := padded[len(padded)-1]
		if p < 1 || int(p) > aes.BlockSize {
			t.Fatalf("invalid padding byte %d", p)
		}
		for i := len(padded) - int(p); i < len(padded); i++ {
			if padded[i] != p {
				t.Fatalf("padding byte at %d = %d, want %d", i, padded[i], p)
			}
		}

		unpadded := pkcs7Unpad(padded, aes.BlockSize)
		if !bytes.Equal(unpadded, data) {
			t.Errorf("pkcs7Unpad(pkcs7Pad(%d bytes)) mismatch", n)
		}
	}
}

func TestPKCS7UnpadInvalidPaddingPassesThrough(t *testing.T) {
	block := bytes.Repeat([]byte{0x01, 0x02}, 8) // 16 bytes, last byte 0x02 but only one 0x02 trailing byte expected... mismatched
	block[len(block)-1] = 0x05                   // claims 5 bytes of padding but they aren't all 0x05
	got := pkcs7Unpad(block, aes.BlockSize)
	if !bytes.Equal(got, block) {
		t.Error("pkcs7Unpad should pass through unchanged on invalid padding")
	}
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	accountID := "76561199131094380"
	doc := []byte("this is an arbitrary save document payload, not aligned to any block size")

	ciphertext, err := Encrypt(doc, accountID)
	if err != nil {
		t.Fatalf("Encrypt() error: %v", err)
	}
	if len(ciphertext)%aes.BlockSize != 0 {
		t.Fatalf("ciphertext length %d not block aligned", len(ciphertext))
	}

	got, err := Decrypt(ciphertext, accountID)
	if err != nil {
		t.Fatalf("Decrypt() error: %v", err)
	}
	if !bytes.Equal(got, doc) {
		t.Errorf("round trip mismatch: got %q, want %q", got, doc)
	}
}

func TestDecryptWrongKeyYieldsCorruptStream(t *testing.T) {
	ciphertext, err := Encrypt([]byte("payload"), "76561199131094380")
	if err != nil {
		t.Fatalf("Encrypt() error: %v", err)
	}
	_, err = Decrypt(ciphertext, "1111111111")
	if err == nil {
		t.Fatal("expected decryption with wrong account id to fail")
	}
	if _, ok := err.(*CorruptStreamError); !ok {
		t.Errorf("expected *CorruptStreamError, got %T: %v", err, err)
	}
}

func TestDecryptRejectsUnalignedCiphertext(t *testing.T) {
	_, err := Decrypt(make([]byte, 15), "76561199131094380")
	if err != ErrSizeNotBlockAligned {
		t.Errorf("Decrypt() error = %v, want ErrSizeNotBlockAligned", err)
	}
}
