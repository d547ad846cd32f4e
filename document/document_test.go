package document

import "testing"

func TestEncodeDecodeRoundTripScalars(t *testing.T) {
	cases := []*Document{
		Null(),
		Bool(true),
		Bool(false),
		Int(-42),
		Int(0),
		Float(3.5),
		String("hello"),
	}
	for _, d := range cases {
		data, err := Encode(d)
		if err != nil {
			t.Fatalf("Encode(%+v) error: %v", d, err)
		}
		got, err := Decode(data)
		if err != nil {
			t.Fatalf("Decode() error: %v", err)
		}
		if !equal(d, got) {
			t.Errorf("round trip mismatch: got %+v, want %+v", got, d)
		}
	}
}

func TestEncodeDecodeRoundTripStruct(t *testing.T) {
	d := Struct(
		Field{Name: "name", Value: String("vault")},
		Field{Name: "level", Value: Int(27)},
		Field{Name: "tags", Value: List(String("a"), String("b"))},
	)
	data, err := Encode(d)
	if err != nil {
		t.Fatalf("Encode() error: %v", err)
	}
	got, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode() error: %v", err)
	}
	if got.Kind != KindStruct || len(got.Fields) != 3 {
		t.Fatalf("decoded struct shape mismatch: %+v", got)
	}
	for i, want := range d.Fields {
		if got.Fields[i].Name != want.Name {
			t.Errorf("field %d name = %q, want %q (field order must be preserved)", i, got.Fields[i].Name, want.Name)
		}
	}
}

func TestEncodeDecodeRoundTripIntMap(t *testing.T) {
	d := IntMap(
		IntField{Key: 5, Value: String("five")},
		IntField{Key: 2, Value: String("two")},
	)
	data, err := Encode(d)
	if err != nil {
		t.Fatalf("Encode() error: %v", err)
	}
	got, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode() error: %v", err)
	}
	if got.Kind != KindIntMap {
		t.Fatalf("decoded kind = %v, want KindIntMap", got.Kind)
	}
	if len(got.IntMap) != 2 {
		t.Fatalf("decoded intmap len = %d, want 2", len(got.IntMap))
	}
	byKey := map[int64]string{}
	for _, f := range got.IntMap {
		byKey[f.Key] = f.Value.Str
	}
	if byKey[5] != "five" || byKey[2] != "two" {
		t.Errorf("intmap contents mismatch: %+v", byKey)
	}
}

func TestGetSet(t *testing.T) {
	d := Struct(Field{Name: "a", Value: Int(1)})
	if got := d.Get("a").Int; got != 1 {
		t.Errorf("Get(a) = %d, want 1", got)
	}
	if d.Get("missing") != nil {
		t.Error("Get(missing) should return nil")
	}
	d.Set("b", Int(2))
	if got := d.Get("b").Int; got != 2 {
		t.Errorf("Get(b) after Set = %d, want 2", got)
	}
	d.Set("a", Int(99))
	if len(d.Fields) != 2 {
		t.Errorf("Set on existing field should not grow Fields, got len %d", len(d.Fields))
	}
}

func equal(a, b *Document) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case KindBool:
		return a.Bool == b.Bool
	case KindInt:
		return a.Int == b.Int
	case KindFloat:
		return a.Flt == b.Flt
	case KindString:
		return a.Str == b.Str
	case KindNull:
		return true
	}
	return false
}
