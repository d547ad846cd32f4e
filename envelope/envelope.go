// Package envelope implements the save file's outer wire format: account-id
// derived AES-256-ECB encryption, PKCS#7 padding, and a zlib-or-raw-deflate
// compressed body with an Adler-32 + length trailer.
package envelope

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"hash/adler32"
	"io"
	"strconv"
	"strings"

	"github.com/h2non/filetype"
	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/zlib"
)

var (
	ErrAccountIDNoDigits  = errors.New("envelope: account id contains no digits")
	ErrSizeNotBlockAligned = errors.New("envelope: ciphertext length is not a multiple of the block size")
)

// baseKey is the fixed 32-byte key material every derived key starts from;
// only the first 8 bytes are ever replaced with the account id.
var baseKey = [32]byte{
	0x35, 0xec, 0x33, 0x77, 0xf3, 0x5d, 0xb0, 0xea,
	0xbe, 0x6b, 0x83, 0x11, 0x54, 0x03, 0xeb, 0xfb,
	0x27, 0x25, 0x64, 0x2e, 0xd5, 0x49, 0x06, 0x29,
	0x05, 0x78, 0xbd, 0x60, 0xba, 0x4a, 0xa7, 0x87,
}

// CorruptStreamError reports that the decompression stage could not make
// sense of a decrypted body, with enough context for an operator to tell
// "wrong key" apart from "not an envelope at all".
type CorruptStreamError struct {
	ZlibErr     error
	FlateErr    error
	HeadHex     string
	TailHex     string
	RawKind     string
	PaddedKind  string
}

func (e *CorruptStreamError) Error() string {
	return fmt.Sprintf("envelope: corrupt stream: zlib=%v flate=%v head=%s tail=%s raw_kind=%s padded_kind=%s",
		e.ZlibErr, e.FlateErr, e.HeadHex, e.TailHex, e.RawKind, e.PaddedKind)
}

func (e *CorruptStreamError) Unwrap() []error {
	return []error{e.ZlibErr, e.FlateErr}
}

// ChecksumMismatchError reports that the decompressed body's Adler-32 did
// not match the trailer.
type ChecksumMismatchError struct {
	Want, Got uint32
}

func (e *ChecksumMismatchError) Error() string {
	return fmt.Sprintf("envelope: adler32 mismatch: trailer=%08x computed=%08x", e.Want, e.Got)
}

// LengthMismatchError reports that the decompressed body's length did not
// match the trailer.
type LengthMismatchError struct {
	Want, Got int
}

func (e *LengthMismatchError) Error() string {
	return fmt.Sprintf("envelope: length mismatch: trailer=%d actual=%d", e.Want, e.Got)
}

// DeriveKey extracts the ASCII digits from accountID, folds them into an
// unsigned 64-bit integer, and XORs its little-endian bytes into the first
// 8 bytes of the fixed base key.
func DeriveKey(accountID string) ([]byte, error) {
	var digits strings.Builder
	for _, r := range accountID {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	if digits.Len() == 0 {
		return nil, ErrAccountIDNoDigits
	}

	sid, err := strconv.ParseUint(digits.String(), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("envelope: parsing account id digits: %w", err)
	}

	var sidLE [8]byte
	binary.LittleEndian.PutUint64(sidLE[:], sid)

	key := make([]byte, 32)
	copy(key, baseKey[:])
	for i := 0; i < 8; i++ {
		key[i] ^= sidLE[i]
	}
	return key, nil
}

// Decrypt reverses Encrypt: AES-256-ECB decryption, PKCS#7 unpadding, and
// decompression with checksum/length verification, returning the plain
// document bytes.
func Decrypt(ciphertext []byte, accountID string) ([]byte, error) {
	key, err := DeriveKey(accountID)
	if err != nil {
		return nil, err
	}
	if len(ciphertext)%aes.BlockSize != 0 {
		return nil, ErrSizeNotBlockAligned
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("envelope: building AES cipher: %w", err)
	}

	padded := make([]byte, len(ciphertext))
	newECBDecrypter(block).CryptBlocks(padded, ciphertext)

	body := pkcs7Unpad(padded, aes.BlockSize)

	decompressed, zlibErr, flateErr := decompressBody(body)
	if decompressed == nil {
		return nil, newCorruptStreamError(body, ciphertext, padded, zlibErr, flateErr)
	}

	if len(body) >= 8 {
		trailer := body[len(body)-8:]

		wantSum := binary.BigEndian.Uint32(trailer[0:4])
		wantLen := int(binary.LittleEndian.Uint32(trailer[4:8]))

		gotSum := adler32.Checksum(decompressed)
		if gotSum != wantSum {
			return nil, &ChecksumMismatchError{Want: wantSum, Got: gotSum}
		}
		if wantLen != len(decompressed) {
			return nil, &LengthMismatchError{Want: wantLen, Got: len(decompressed)}
		}
	}

	return decompressed, nil
}

func decompressBody(body []byte) ([]byte, error, error) {
	zr, zerr := zlib.NewReader(bytes.NewReader(body))
	if zerr == nil {
		defer zr.Close()
		out, err := readAllTolerant(zr)
		if err == nil {
			return out, nil, nil
		}
		zerr = err
	}

	fr := flate.NewReader(bytes.NewReader(body))
	defer fr.Close()
	out, ferr := readAllTolerant(fr)
	if ferr == nil {
		return out, nil, nil
	}

	return nil, zerr, ferr
}

// readAllTolerant reads as much as possible from r, treating a short read
// followed by a non-EOF error as a truncated-but-usable stream rather than
// an outright failure, so the caller can still recover a prefix of a body
// decompressed with the wrong tail bytes discarded.
func readAllTolerant(r io.Reader) ([]byte, error) {
	var buf bytes.Buffer
	chunk := make([]byte, 32*1024)
	for {
		n, err := r.Read(chunk)
		if n > 0 {
			buf.Write(chunk[:n])
		}
		if err != nil {
			if errors.Is(err, io.EOF) || buf.Len() > 0 {
				return buf.Bytes(), nil
			}
			return nil, err
		}
	}
}

func newCorruptStreamError(body, rawCiphertext, paddedBody []byte, zerr, ferr error) *CorruptStreamError {
	head := body
	if len(head) > 16 {
		head = head[:16]
	}
	tail := body
	if len(tail) > 8 {
		tail = tail[len(tail)-8:]
	}

	rawKind := "unknown"
	if kind, err := filetype.Match(rawCiphertext); err == nil && kind != filetype.Unknown {
		rawKind = kind.Extension
	}
	paddedKind := "unknown"
	if kind, err := filetype.Match(paddedBody); err == nil && kind != filetype.Unknown {
		paddedKind = kind.Extension
	}

	return &CorruptStreamError{
		ZlibErr:    zerr,
		FlateErr:   ferr,
		HeadHex:    hex.EncodeToString(head),
		TailHex:    hex.EncodeToString(tail),
		RawKind:    rawKind,
		PaddedKind: paddedKind,
	}
}

// Encrypt compresses doc with zlib at maximum level, appends an Adler-32 +
// length trailer, PKCS#7-pads to the AES block size, and encrypts with
// AES-256-ECB under the account-id derived key.
func Encrypt(doc []byte, accountID string) ([]byte, error) {
	key, err := DeriveKey(accountID)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	zw, err := zlib.NewWriterLevel(&buf, zlib.BestCompression)
	if err != nil {
		return nil, fmt.Errorf("envelope: building zlib writer: %w", err)
	}
	if _, err := zw.Write(doc); err != nil {
		return nil, fmt.Errorf("envelope: compressing document: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("envelope: flushing zlib writer: %w", err)
	}

	var trailer [8]byte
	binary.BigEndian.PutUint32(trailer[0:4], adler32.Checksum(doc))
	binary.LittleEndian.PutUint32(trailer[4:8], uint32(len(doc)))
	body := append(buf.Bytes(), trailer[:]...)

	padded := pkcs7Pad(body, aes.BlockSize)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("envelope: building AES cipher: %w", err)
	}
	out := make([]byte, len(padded))
	newECBEncrypter(block).CryptBlocks(out, padded)
	return out, nil
}

// pkcs7Pad pads data to a multiple of blockSize using the PKCS#7 scheme.
func pkcs7Pad(data []byte, blockSize int) []byte {
	padLen := blockSize - (len(data) % blockSize)
	padded := make([]byte, len(data)+padLen)
	copy(padded, data)
	for i := len(data); i < len(padded); i++ {
		padded[i] = byte(padLen)
	}
	return padded
}

// pkcs7Unpad removes PKCS#7 padding if the trailing bytes form a valid
// padding block; otherwise it returns data unchanged.
func pkcs7Unpad(data []byte, blockSize int) []byte {
	n := len(data)
	if n == 0 || n%blockSize != 0 {
		return data
	}
	p := int(data[n-1])
	if p < 1 || p > blockSize || p > n {
		return data
	}
	for i := n - p; i < n; i++ {
		if data[i] != byte(p) {
			return data
		}
	}
	return data[:n-p]
}

// ecb implements cipher.BlockMode over a cipher.Block in electronic
// codebook mode. The standard library deliberately omits ECB because it
// leaks plaintext structure; the save file's wire format requires it
// regardless.
type ecb struct {
	block     cipher.Block
	blockSize int
	decrypt   bool
}

func newECBEncrypter(block cipher.Block) cipher.BlockMode {
	return &ecb{block: block, blockSize: block.BlockSize()}
}

func newECBDecrypter(block cipher.Block) cipher.BlockMode {
	return &ecb{block: block, blockSize: block.BlockSize(), decrypt: true}
}

func (x *ecb) BlockSize() int { return x.blockSize }

func (x *ecb) CryptBlocks(dst, src []byte) {
	if len(src)%x.blockSize != 0 {
		panic("envelope: input not full blocks")
	}
	if len(dst) < len(src) {
		panic("envelope: output smaller than input")
	}
	for len(src) > 0 {
		if x.decrypt {
			x.block.Decrypt(dst[:x.blockSize], src[:x.blockSize])
		} else {
			x.block.Encrypt(dst[:x.blockSize], src[:x.blockSize])
		}
		src = src[x.blockSize:]
		dst = dst[x.blockSize:]
	}
}
