// Package document implements the generic tagged tree that save files
// decode into, its Amazon Ion binary (de)serialization, and a small path
// mini-language for addressing nodes within it.
package document

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/amazon-ion/ion-go/ion"
)

// Kind identifies which of a Document node's scalar/container shapes is in
// effect.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindFloat
	KindString
	KindList
	KindStruct
	KindIntMap
)

// Field is one named entry of a Struct node, in write order.
type Field struct {
	Name  string
	Value *Document
}

// IntField is one entry of an IntMap node, in write order.
type IntField struct {
	Key   int64
	Value *Document
}

// Document is a generic tagged tree node: exactly one of its Kind-selected
// fields holds meaningful data.
type Document struct {
	Kind Kind

	Bool bool
	Int  int64
	Flt  float64
	Str  string

	List   []*Document
	Fields []Field
	IntMap []IntField
}

// intMapAnnotation marks a Struct value whose field names are the decimal
// text of integer keys.
const intMapAnnotation = "intmap"

func Null() *Document                 { return &Document{Kind: KindNull} }
func Bool(v bool) *Document            { return &Document{Kind: KindBool, Bool: v} }
func Int(v int64) *Document            { return &Document{Kind: KindInt, Int: v} }
func Float(v float64) *Document        { return &Document{Kind: KindFloat, Flt: v} }
func String(v string) *Document        { return &Document{Kind: KindString, Str: v} }
func List(items ...*Document) *Document { return &Document{Kind: KindList, List: items} }
func Struct(fields ...Field) *Document  { return &Document{Kind: KindStruct, Fields: fields} }
func IntMap(entries ...IntField) *Document {
	return &Document{Kind: KindIntMap, IntMap: entries}
}

// Get returns the value of the named field on a Struct node, or nil if the
// node isn't a Struct or has no such field.
func (d *Document) Get(name string) *Document {
	if d == nil || d.Kind != KindStruct {
		return nil
	}
	for _, f := range d.Fields {
		if f.Name == name {
			return f.Value
		}
	}
	return nil
}

// Set overwrites (or appends) a named field on a Struct node in place,
// preserving existing field order.
func (d *Document) Set(name string, value *Document) {
	for i, f := range d.Fields {
		if f.Name == name {
			d.Fields[i].Value = value
			return
		}
	}
	d.Fields = append(d.Fields, Field{Name: name, Value: value})
}

// Decode parses Ion binary bytes into a Document tree.
func Decode(data []byte) (*Document, error) {
	r := ion.NewReader(bytes.NewReader(data))
	if !r.Next() {
		if err := r.Err(); err != nil {
			return nil, fmt.Errorf("document: decode: %w", err)
		}
		return Null(), nil
	}
	d, err := readValue(r)
	if err != nil {
		return nil, fmt.Errorf("document: decode: %w", err)
	}
	return d, nil
}

func readValue(r ion.Reader) (*Document, error) {
	if r.IsNull() {
		return Null(), nil
	}

	switch r.Type() {
	case ion.BoolType:
		v, err := r.BoolValue()
		if err != nil {
			return nil, err
		}
		return Bool(derefBool(v)), nil
	case ion.IntType:
		v, err := r.Int64Value()
		if err != nil {
			return nil, err
		}
		return Int(derefInt64(v)), nil
	case ion.FloatType:
		v, err := r.FloatValue()
		if err != nil {
			return nil, err
		}
		return Float(derefFloat64(v)), nil
	case ion.StringType:
		v, err := r.StringValue()
		if err != nil {
			return nil, err
		}
		return String(derefString(v)), nil
	case ion.ListType, ion.SexpType:
		return readList(r)
	case ion.StructType:
		return readStruct(r)
	default:
		return nil, fmt.Errorf("document: unsupported ion type %v", r.Type())
	}
}

func readList(r ion.Reader) (*Document, error) {
	if err := r.StepIn(); err != nil {
		return nil, err
	}
	var items []*Document
	for r.Next() {
		v, err := readValue(r)
		if err != nil {
			return nil, err
		}
		items = append(items, v)
	}
	if err := r.Err(); err != nil {
		return nil, err
	}
	if err := r.StepOut(); err != nil {
		return nil, err
	}
	return &Document{Kind: KindList, List: items}, nil
}

func readStruct(r ion.Reader) (*Document, error) {
	isIntMap, err := hasIntMapAnnotation(r)
	if err != nil {
		return nil, err
	}

	if err := r.StepIn(); err != nil {
		return nil, err
	}

	var fields []Field
	var intFields []IntField
	for r.Next() {
		tok, err := r.FieldName()
		if err != nil {
			return nil, err
		}
		name := symbolText(tok)

		v, err := readValue(r)
		if err != nil {
			return nil, err
		}

		if isIntMap {
			key, perr := strconv.ParseInt(name, 10, 64)
			if perr != nil {
				return nil, fmt.Errorf("document: intmap field %q is not an integer: %w", name, perr)
			}
			intFields = append(intFields, IntField{Key: key, Value: v})
		} else {
			fields = append(fields, Field{Name: name, Value: v})
		}
	}
	if err := r.Err(); err != nil {
		return nil, err
	}
	if err := r.StepOut(); err != nil {
		return nil, err
	}

	if isIntMap {
		return &Document{Kind: KindIntMap, IntMap: intFields}, nil
	}
	return &Document{Kind: KindStruct, Fields: fields}, nil
}

func hasIntMapAnnotation(r ion.Reader) (bool, error) {
	annots, err := r.Annotations()
	if err != nil {
		return false, err
	}
	for _, a := range annots {
		if symbolText(&a) == intMapAnnotation {
			return true, nil
		}
	}
	return false, nil
}

func symbolText(tok *ion.SymbolToken) string {
	if tok == nil {
		return ""
	}
	if tok.Text != nil {
		return *tok.Text
	}
	return fmt.Sprintf("$%d", tok.LocalSID)
}

func derefBool(v *bool) bool {
	if v == nil {
		return false
	}
	return *v
}

func derefInt64(v *int64) int64 {
	if v == nil {
		return 0
	}
	return *v
}

func derefFloat64(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}

func derefString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

// Encode serializes a Document tree to Ion binary bytes.
func Encode(d *Document) ([]byte, error) {
	var buf bytes.Buffer
	w := ion.NewBinaryWriter(&buf)
	if err := writeValue(w, d); err != nil {
		return nil, fmt.Errorf("document: encode: %w", err)
	}
	if err := w.Finish(); err != nil {
		return nil, fmt.Errorf("document: encode: finish: %w", err)
	}
	return buf.Bytes(), nil
}

func writeValue(w ion.Writer, d *Document) error {
	if d == nil {
		return w.WriteNull()
	}
	switch d.Kind {
	case KindNull:
		return w.WriteNull()
	case KindBool:
		return w.WriteBool(d.Bool)
	case KindInt:
		return w.WriteInt(d.Int)
	case KindFloat:
		return w.WriteFloat(d.Flt)
	case KindString:
		return w.WriteString(d.Str)
	case KindList:
		if err := w.BeginList(); err != nil {
			return err
		}
		for _, item := range d.List {
			if err := writeValue(w, item); err != nil {
				return err
			}
		}
		return w.EndList()
	case KindStruct:
		if err := w.BeginStruct(); err != nil {
			return err
		}
		for _, f := range d.Fields {
			if err := w.FieldName(ion.NewSymbolTokenFromString(f.Name)); err != nil {
				return err
			}
			if err := writeValue(w, f.Value); err != nil {
				return err
			}
		}
		return w.EndStruct()
	case KindIntMap:
		if err := w.Annotation(ion.NewSymbolTokenFromString(intMapAnnotation)); err != nil {
			return err
		}
		if err := w.BeginStruct(); err != nil {
			return err
		}
		for _, f := range d.IntMap {
			name := strconv.FormatInt(f.Key, 10)
			if err := w.FieldName(ion.NewSymbolTokenFromString(name)); err != nil {
				return err
			}
			if err := writeValue(w, f.Value); err != nil {
				return err
			}
		}
		return w.EndStruct()
	default:
		return fmt.Errorf("document: unknown kind %v", d.Kind)
	}
}
