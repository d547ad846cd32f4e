package itemmodel

import (
	"testing"

	"vaultcodec/base85"
	"vaultcodec/itemtoken"
)

func buildSampleSerial(t *testing.T, tokens []itemtoken.Token) string {
	t.Helper()
	data := itemtoken.Serialize(tokens)
	return base85.Encode(data)
}

func sampleTokens() []itemtoken.Token {
	return []itemtoken.Token{
		{Kind: itemtoken.VarIntTok, Int: 0},  // ordinal 0: manufacturer index
		{Kind: itemtoken.VarIntTok, Int: 3},  // ordinal 1
		{Kind: itemtoken.VarIntTok, Int: 1},  // ordinal 2: level marker key
		{Kind: itemtoken.VarIntTok, Int: 27}, // ordinal 3: level value
		{Kind: itemtoken.PartTok, Part: itemtoken.Part{Index: 1, Subtype: itemtoken.PartInt, Value: 5}},
		{Kind: itemtoken.PartTok, Part: itemtoken.Part{Index: 9, Subtype: itemtoken.PartList, Values: []uint32{1, 2, 3}}},
		{Kind: itemtoken.Sep1},
	}
}

func TestDecodeExtractsManufacturerAndLevel(t *testing.T) {
	serial := buildSampleSerial(t, sampleTokens())

	m, err := Decode(serial)
	if err != nil {
		t.Fatalf("Decode() error: %v", err)
	}
	if m.ManufacturerIndex != 0 {
		t.Errorf("ManufacturerIndex = %d, want 0", m.ManufacturerIndex)
	}
	if m.Level != 27 {
		t.Errorf("Level = %d, want 27", m.Level)
	}
	if len(m.Parts) != 2 {
		t.Fatalf("len(Parts) = %d, want 2", len(m.Parts))
	}
}

func TestDecodeToSerialRoundTrip(t *testing.T) {
	serial := buildSampleSerial(t, sampleTokens())

	m, err := Decode(serial)
	if err != nil {
		t.Fatalf("Decode() error: %v", err)
	}
	got, err := m.ToSerial()
	if err != nil {
		t.Fatalf("ToSerial() error: %v", err)
	}

	m2, err := Decode(got)
	if err != nil {
		t.Fatalf("re-Decode() error: %v", err)
	}
	if len(m2.Tokens) != len(m.Tokens) {
		t.Fatalf("re-decoded token count = %d, want %d", len(m2.Tokens), len(m.Tokens))
	}
	for i := range m.Tokens {
		if m.Tokens[i] != m2.Tokens[i] {
			t.Errorf("token %d mismatch: got %+v, want %+v", i, m2.Tokens[i], m.Tokens[i])
		}
	}
}

func TestCanonicaliseIsIdempotent(t *testing.T) {
	serial := buildSampleSerial(t, sampleTokens())

	once, err := Canonicalise(serial)
	if err != nil {
		t.Fatalf("Canonicalise() error: %v", err)
	}
	twice, err := Canonicalise(once)
	if err != nil {
		t.Fatalf("Canonicalise(Canonicalise()) error: %v", err)
	}
	if once != twice {
		t.Errorf("canonicalise not idempotent: %q != %q", once, twice)
	}
}

func TestSetLevelPreservesOtherTokens(t *testing.T) {
	serial := buildSampleSerial(t, sampleTokens())
	m, err := Decode(serial)
	if err != nil {
		t.Fatalf("Decode() error: %v", err)
	}

	before := append([]itemtoken.Token(nil), m.Tokens...)
	if err := m.SetLevel(99); err != nil {
		t.Fatalf("SetLevel() error: %v", err)
	}
	if m.Level != 99 {
		t.Errorf("Level after SetLevel = %d, want 99", m.Level)
	}

	for i := range before {
		if i == m.LevelValueTokenIndex {
			continue
		}
		if before[i] != m.Tokens[i] {
			t.Errorf("token %d changed unexpectedly: got %+v, want %+v", i, m.Tokens[i], before[i])
		}
	}
}

func TestSetLevelMissingFails(t *testing.T) {
	tokens := []itemtoken.Token{
		{Kind: itemtoken.VarIntTok, Int: 0},
		{Kind: itemtoken.Sep1},
	}
	serial := buildSampleSerial(t, tokens)
	m, err := Decode(serial)
	if err != nil {
		t.Fatalf("Decode() error: %v", err)
	}
	if err := m.SetLevel(5); err != ErrLevelTokenMissing {
		t.Errorf("SetLevel() error = %v, want ErrLevelTokenMissing", err)
	}
}

func TestSetManufacturerIndex(t *testing.T) {
	serial := buildSampleSerial(t, sampleTokens())
	m, err := Decode(serial)
	if err != nil {
		t.Fatalf("Decode() error: %v", err)
	}
	if err := m.SetManufacturerIndex(4); err != nil {
		t.Fatalf("SetManufacturerIndex() error: %v", err)
	}
	if m.ManufacturerIndex != 4 {
		t.Errorf("ManufacturerIndex = %d, want 4", m.ManufacturerIndex)
	}
}

func TestSetPartIndexOutOfBounds(t *testing.T) {
	serial := buildSampleSerial(t, sampleTokens())
	m, err := Decode(serial)
	if err != nil {
		t.Fatalf("Decode() error: %v", err)
	}
	if err := m.SetPartIndex(99, 1); err != ErrPartIndexOutOfBounds {
		t.Errorf("SetPartIndex() error = %v, want ErrPartIndexOutOfBounds", err)
	}
}

func TestSetPartValuesIntArity(t *testing.T) {
	serial := buildSampleSerial(t, sampleTokens())
	m, err := Decode(serial)
	if err != nil {
		t.Fatalf("Decode() error: %v", err)
	}
	// part ordinal 0 is the PartInt token.
	if err := m.SetPartValues(0, []uint32{1, 2}); err != ErrIntPartArity {
		t.Errorf("SetPartValues() error = %v, want ErrIntPartArity", err)
	}
	if err := m.SetPartValues(0, []uint32{7}); err != nil {
		t.Fatalf("SetPartValues() error: %v", err)
	}
}

func TestSetPartValuesNoneRejected(t *testing.T) {
	tokens := []itemtoken.Token{
		{Kind: itemtoken.VarIntTok, Int: 0},
		{Kind: itemtoken.PartTok, Part: itemtoken.Part{Index: 0, Subtype: itemtoken.PartNone}},
		{Kind: itemtoken.Sep1},
	}
	serial := buildSampleSerial(t, tokens)
	m, err := Decode(serial)
	if err != nil {
		t.Fatalf("Decode() error: %v", err)
	}
	if err := m.SetPartValues(0, []uint32{1}); err != ErrPartHasNoValues {
		t.Errorf("SetPartValues() error = %v, want ErrPartHasNoValues", err)
	}
}

func TestSetPartValuesListReplacesWholesale(t *testing.T) {
	serial := buildSampleSerial(t, sampleTokens())
	m, err := Decode(serial)
	if err != nil {
		t.Fatalf("Decode() error: %v", err)
	}
	if err := m.SetPartValues(1, []uint32{9, 8, 7, 6}); err != nil {
		t.Fatalf("SetPartValues() error: %v", err)
	}
	if len(m.Parts[1].Token.Values) != 4 {
		t.Errorf("part 1 values len = %d, want 4", len(m.Parts[1].Token.Values))
	}
}

func TestDecodeMemoizationReturnsSameModel(t *testing.T) {
	serial := buildSampleSerial(t, sampleTokens())
	m1, err := Decode(serial)
	if err != nil {
		t.Fatalf("Decode() error: %v", err)
	}
	m2, err := Decode(serial)
	if err != nil {
		t.Fatalf("Decode() error: %v", err)
	}
	if m1 != m2 {
		t.Error("expected memoized Decode to return the same *ItemModel pointer")
	}
}
