// Package itemtoken parses and emits the item-serial token grammar: a flat
// sequence of separators, variable-length integers, nested "part" records
// and length-prefixed strings, all layered on bitio.
package itemtoken

import (
	"encoding/base64"
	"errors"
	"fmt"

	"vaultcodec/bitio"
	"vaultcodec/varint"
)

var (
	ErrInvalidToken          = errors.New("itemtoken: invalid token")
	ErrUnterminatedList      = errors.New("itemtoken: unterminated list")
	ErrUnexpectedTokenInList = errors.New("itemtoken: unexpected token inside list")
)

// magicPrefix is the 7-bit literal every item-serial bit stream begins with.
const magicPrefix = 0b0010000

// Kind identifies which token grammar case a Token holds.
type Kind int

const (
	Sep1 Kind = iota
	Sep2
	VarIntTok
	VarBitTok
	PartTok
	StringTok
)

// PartSubtype identifies which of a Part's payload shapes is in effect.
type PartSubtype int

const (
	PartNone PartSubtype = iota
	PartInt
	PartList
)

// Part is a nested record carried by a PartTok: an index plus an optional
// single value or ordered list of values.
type Part struct {
	Index   uint32
	Subtype PartSubtype
	Value   uint32
	Values  []uint32
}

// Token is a tagged variant over the item-serial grammar's six cases.
type Token struct {
	Kind Kind
	Int  uint32 // payload for VarIntTok / VarBitTok
	Str  string // payload for StringTok
	Part Part   // payload for PartTok
}

// Parse decodes a full item-serial bit stream (magic prefix + token*) into
// an ordered token slice, dropping all but the first of any run of trailing
// Sep1 padding tokens introduced by Serialize's byte-alignment.
func Parse(data []byte) ([]Token, error) {
	r := bitio.NewBitReader(data)

	magic, err := r.ReadBits(7)
	if err != nil || magic != magicPrefix {
		return nil, ErrInvalidToken
	}

	var tokens []Token
	for r.Remaining() >= 2 {
		tok, err := readToken(r)
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, tok)
	}

	return dedupeTrailingSep1(tokens), nil
}

func dedupeTrailingSep1(tokens []Token) []Token {
	n := len(tokens)
	count := 0
	for i := n - 1; i >= 0 && tokens[i].Kind == Sep1; i-- {
		count++
	}
	if count > 1 {
		tokens = tokens[:n-(count-1)]
	}
	return tokens
}

// readToken reads one token's tag and payload, recursing into Part/List
// bodies as needed. It is shared between the top-level scan and nested
// list scans.
func readToken(r *bitio.BitReader) (Token, error) {
	tag2, err := r.ReadTwoBits()
	if err != nil {
		return Token{}, err
	}
	switch tag2 {
	case 0b00:
		return Token{Kind: Sep1}, nil
	case 0b01:
		return Token{Kind: Sep2}, nil
	case 0b10:
		bit, err := r.ReadBits(1)
		if err != nil {
			return Token{}, err
		}
		if bit == 0 {
			v, err := varint.ReadVarInt(r)
			if err != nil {
				return Token{}, err
			}
			return Token{Kind: VarIntTok, Int: v}, nil
		}
		part, err := readPart(r)
		if err != nil {
			return Token{}, err
		}
		return Token{Kind: PartTok, Part: part}, nil
	case 0b11:
		bit, err := r.ReadBits(1)
		if err != nil {
			return Token{}, err
		}
		if bit == 0 {
			v, err := varint.ReadVarBit(r)
			if err != nil {
				return Token{}, err
			}
			return Token{Kind: VarBitTok, Int: v}, nil
		}
		s, err := varint.ReadString(r)
		if err != nil {
			return Token{}, err
		}
		return Token{Kind: StringTok, Str: s}, nil
	}
	return Token{}, ErrInvalidToken
}

func readPart(r *bitio.BitReader) (Part, error) {
	idx, err := varint.ReadVarInt(r)
	if err != nil {
		return Part{}, err
	}

	isInt, err := r.ReadBits(1)
	if err != nil {
		return Part{}, err
	}
	if isInt == 1 {
		val, err := varint.ReadVarInt(r)
		if err != nil {
			return Part{}, err
		}
		lit, err := r.ReadBits(3)
		if err != nil {
			return Part{}, err
		}
		if lit != 0b000 {
			return Part{}, ErrInvalidToken
		}
		return Part{Index: idx, Subtype: PartInt, Value: val}, nil
	}

	sub, err := r.ReadBits(2)
	if err != nil {
		return Part{}, err
	}
	switch sub {
	case 0b10:
		return Part{Index: idx, Subtype: PartNone}, nil
	case 0b01:
		values, err := readPartList(r)
		if err != nil {
			return Part{}, err
		}
		return Part{Index: idx, Subtype: PartList, Values: values}, nil
	default:
		return Part{}, ErrInvalidToken
	}
}

// readPartList expects a Sep2 opener, reads VarInt/VarBit value tokens until
// a Sep1 terminator, and rejects any other token as a grammar violation.
func readPartList(r *bitio.BitReader) ([]uint32, error) {
	opener, err := readToken(r)
	if err != nil {
		return nil, err
	}
	if opener.Kind != Sep2 {
		return nil, ErrUnterminatedList
	}

	var values []uint32
	for {
		tok, err := readToken(r)
		if err != nil {
			return nil, err
		}
		switch tok.Kind {
		case Sep1:
			return values, nil
		case VarIntTok, VarBitTok:
			values = append(values, tok.Int)
		default:
			return nil, ErrUnexpectedTokenInList
		}
	}
}

// Serialize emits the magic prefix followed by each token in order, rounded
// up to a byte boundary with zero-fill.
func Serialize(tokens []Token) []byte {
	w := bitio.NewBitWriter()
	w.WriteN(magicPrefix, 7)
	for _, tok := range tokens {
		writeToken(w, tok)
	}
	return w.Finish()
}

func writeToken(w *bitio.BitWriter, tok Token) {
	switch tok.Kind {
	case Sep1:
		w.WriteN(0b00, 2)
	case Sep2:
		w.WriteN(0b01, 2)
	case VarIntTok:
		w.WriteN(0b100, 3)
		varint.WriteVarInt(w, tok.Int)
	case VarBitTok:
		w.WriteN(0b110, 3)
		varint.WriteVarBit(w, tok.Int)
	case PartTok:
		w.WriteN(0b101, 3)
		writePart(w, tok.Part)
	case StringTok:
		w.WriteN(0b111, 3)
		varint.WriteString(w, tok.Str)
	}
}

func writePart(w *bitio.BitWriter, part Part) {
	varint.WriteVarInt(w, part.Index)
	switch part.Subtype {
	case PartInt:
		w.WriteBit(1)
		varint.WriteVarInt(w, part.Value)
		w.WriteN(0b000, 3)
	case PartNone:
		w.WriteBit(0)
		w.WriteN(0b10, 2)
	case PartList:
		w.WriteBit(0)
		w.WriteN(0b01, 2)
		w.WriteN(0b01, 2) // Sep2 opener
		for _, v := range part.Values {
			writeCheaperValue(w, v)
		}
		w.WriteN(0b00, 2) // Sep1 terminator
	}
}

// writeCheaperValue picks whichever of VarInt/VarBit costs fewer bits,
// breaking ties in favor of VarInt.
func writeCheaperValue(w *bitio.BitWriter, v uint32) {
	if varint.CostVarInt(v) <= varint.CostVarBit(v) {
		w.WriteN(0b100, 3)
		varint.WriteVarInt(w, v)
	} else {
		w.WriteN(0b110, 3)
		varint.WriteVarBit(w, v)
	}
}

// legacySerialMagic marks the older, simpler serial family used by items
// imported from the franchise's prior title: a fixed 2-byte prefix plus a
// base64 payload, no token grammar at all.
const legacySerialMagic = '@'

// PackLegacy encodes data using the legacy item-serial family: "@" + a
// single type-tag byte + unpadded standard base64.
func PackLegacy(data []byte, prefix byte) (string, error) {
	enc := base64.RawStdEncoding.EncodeToString(data)
	return string([]byte{legacySerialMagic, prefix}) + enc, nil
}

// UnpackLegacy reverses PackLegacy.
func UnpackLegacy(serial string) ([]byte, error) {
	if len(serial) < 2 || serial[0] != legacySerialMagic {
		return nil, fmt.Errorf("itemtoken: legacy serial missing prefix: %w", ErrInvalidToken)
	}
	data, err := base64.RawStdEncoding.DecodeString(serial[2:])
	if err != nil {
		return nil, fmt.Errorf("itemtoken: legacy serial payload: %w", err)
	}
	return data, nil
}
