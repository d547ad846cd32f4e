package base85

import (
	"bytes"
	"testing"
)

func TestRoundTrip(t *testing.T) {
	cases := [][]byte{
		{},
		{0x00},
		{0xFF},
		{0x01, 0x02},
		{0x01, 0x02, 0x03},
		{0x01, 0x02, 0x03, 0x04},
		{0x01, 0x02, 0x03, 0x04, 0x05},
		[]byte("hello, world! this is a longer payload to exercise several full groups."),
	}
	for _, c := range cases {
		enc := Encode(c)
		if enc[:2] != Prefix {
			t.Fatalf("Encode(%v) missing prefix: %s", c, enc)
		}
		dec, err := Decode(enc)
		if err != nil {
			t.Fatalf("Decode(%q) error: %v", enc, err)
		}
		if !bytes.Equal(dec, c) {
			t.Errorf("round trip mismatch: got %v, want %v", dec, c)
		}
	}
}

func TestDecodeMissingPrefix(t *testing.T) {
	if _, err := Decode("XYhello"); err != ErrInvalidPrefix {
		t.Errorf("expected ErrInvalidPrefix, got %v", err)
	}
}

func TestDecodeSkipsNonAlphabetBytes(t *testing.T) {
	enc := Encode([]byte{0x01, 0x02, 0x03, 0x04})
	// Inject whitespace, which is not in the alphabet, mid-stream.
	withNoise := enc[:4] + " \n\t" + enc[4:]
	dec, err := Decode(withNoise)
	if err != nil {
		t.Fatalf("Decode with noise error: %v", err)
	}
	if !bytes.Equal(dec, []byte{0x01, 0x02, 0x03, 0x04}) {
		t.Errorf("got %v", dec)
	}
}

func TestMirrorByte(t *testing.T) {
	if got := mirrorByte(0b10000000); got != 0b00000001 {
		t.Errorf("mirrorByte(0x80) = %08b, want %08b", got, 0b00000001)
	}
	if got := mirrorByte(0b00000000); got != 0 {
		t.Errorf("mirrorByte(0x00) = %08b, want 0", got)
	}
	if got := mirrorByte(mirrorByte(0b11010010)); got != 0b11010010 {
		t.Errorf("double mirror should be identity, got %08b", got)
	}
}
