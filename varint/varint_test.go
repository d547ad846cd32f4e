package varint

import (
	"testing"

	"vaultcodec/bitio"
)

func TestVarIntRoundTrip(t *testing.T) {
	samples := []uint32{0, 1, 2, 7, 8, 15, 16, 255, 256, 4095, 4096, 65535}
	for _, v := range samples {
		w := bitio.NewBitWriter()
		WriteVarInt(w, v)
		r := bitio.NewBitReader(w.Finish())
		got, err := ReadVarInt(r)
		if err != nil {
			t.Fatalf("ReadVarInt(%d) error: %v", v, err)
		}
		if got != v {
			t.Errorf("VarInt round trip: got %d, want %d", got, v)
		}
	}
}

func TestVarIntFullRange16Bit(t *testing.T) {
	for v := uint32(0); v < 1<<16; v += 37 {
		w := bitio.NewBitWriter()
		WriteVarInt(w, v)
		r := bitio.NewBitReader(w.Finish())
		got, err := ReadVarInt(r)
		if err != nil || got != v {
			t.Fatalf("VarInt(%d) round trip failed: got=%d err=%v", v, got, err)
		}
	}
}

func TestVarBitRoundTrip(t *testing.T) {
	samples := []uint32{0, 1, 2, 3, 100, 1000, 1 << 10, 1 << 20, 1<<31 - 1}
	for _, v := range samples {
		w := bitio.NewBitWriter()
		WriteVarBit(w, v)
		r := bitio.NewBitReader(w.Finish())
		got, err := ReadVarBit(r)
		if err != nil {
			t.Fatalf("ReadVarBit(%d) error: %v", v, err)
		}
		if got != v {
			t.Errorf("VarBit round trip: got %d, want %d", got, v)
		}
	}
}

func TestVarBitLargeRangeSampled(t *testing.T) {
	for v := uint32(0); v < 1<<31; v += 104729 {
		w := bitio.NewBitWriter()
		WriteVarBit(w, v)
		r := bitio.NewBitReader(w.Finish())
		got, err := ReadVarBit(r)
		if err != nil || got != v {
			t.Fatalf("VarBit(%d) round trip failed: got=%d err=%v", v, got, err)
		}
	}
}

func TestStringRoundTrip(t *testing.T) {
	samples := []string{"", "a", "hello", "Item_Serial_07", "with space and punct!?"}
	for _, s := range samples {
		w := bitio.NewBitWriter()
		WriteString(w, s)
		r := bitio.NewBitReader(w.Finish())
		got, err := ReadString(r)
		if err != nil {
			t.Fatalf("ReadString(%q) error: %v", s, err)
		}
		if got != s {
			t.Errorf("String round trip: got %q, want %q", got, s)
		}
	}
}

func TestCostVarIntBlocks(t *testing.T) {
	cases := map[uint32]int{
		0:     1,
		15:    1,
		16:    2,
		255:   2,
		256:   3,
		4095:  3,
		4096:  4,
		65535: 4,
	}
	for v, want := range cases {
		if got := CostVarIntBlocks(v); got != want {
			t.Errorf("CostVarIntBlocks(%d) = %d, want %d", v, got, want)
		}
	}
}

func TestCostVarBitLength(t *testing.T) {
	cases := map[uint32]int{
		0: 1,
		1: 1,
		2: 2,
		3: 2,
		4: 3,
		7: 3,
		8: 4,
	}
	for v, want := range cases {
		if got := CostVarBitLength(v); got != want {
			t.Errorf("CostVarBitLength(%d) = %d, want %d", v, got, want)
		}
	}
}

func TestCostTieBreakFavorsVarInt(t *testing.T) {
	// For small values where both encodings cost the same, callers in
	// itemtoken must prefer VarInt on ties.
	for v := uint32(0); v < 16; v++ {
		ci := CostVarInt(v)
		cb := CostVarBit(v)
		if ci == cb {
			// document the tie explicitly so a future cost-table change notices.
			t.Logf("value %d ties at %d bits", v, ci)
		}
	}
}
