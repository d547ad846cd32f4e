// Package itemmodel decodes item-serial strings into a mutable, round-
// trippable token model and re-encodes mutations back into serials.
package itemmodel

import (
	"container/list"
	"errors"
	"sync"

	"github.com/cespare/xxhash/v2"

	"vaultcodec/base85"
	"vaultcodec/itemcatalog"
	"vaultcodec/itemtoken"
)

var (
	ErrLevelTokenMissing        = errors.New("itemmodel: level token missing")
	ErrManufacturerTokenMissing = errors.New("itemmodel: manufacturer token missing")
	ErrPartIndexOutOfBounds     = errors.New("itemmodel: part index out of bounds")
	ErrPartHasNoValues          = errors.New("itemmodel: part subtype has no values")
	ErrIntPartArity             = errors.New("itemmodel: int part requires exactly one value")
)

// DecodedPart cross-references a parsed Part token against itemcatalog, when
// a matching entry exists for the item's manufacturer/item-type pairing.
type DecodedPart struct {
	Token   itemtoken.Part
	Catalog *itemcatalog.Part
}

// ItemModel is a decoded item serial: its token sequence plus the bookkeeping
// needed to apply supported mutations and re-serialize.
type ItemModel struct {
	Tokens []itemtoken.Token

	ManufacturerIndex      uint32
	ManufacturerTokenIndex int // index into Tokens, or -1 if not found

	Level              uint32
	LevelValueTokenIndex int // index into Tokens, or -1 if not found

	Catalog itemcatalog.ItemType
	HasCatalogEntry bool

	Parts []DecodedPart
}

// Decode parses a base85-prefixed item serial into an ItemModel.
func Decode(serial string) (*ItemModel, error) {
	if m, ok := cacheGet(serial); ok {
		return m, nil
	}

	raw, err := base85.Decode(serial)
	if err != nil {
		return nil, err
	}
	tokens, err := itemtoken.Parse(raw)
	if err != nil {
		return nil, err
	}

	m := &ItemModel{Tokens: tokens}
	m.RefreshMetadata()

	cachePut(serial, m)
	return m, nil
}

// ToSerial re-encodes the model's current token sequence into a base85
// item-serial string.
func (m *ItemModel) ToSerial() (string, error) {
	data := itemtoken.Serialize(m.Tokens)
	return base85.Encode(data), nil
}

// Canonicalise decodes a serial and immediately re-serializes it, collapsing
// any encoding slack (alternate VarInt/VarBit choices, trailing Sep1 padding)
// into the form this package always produces.
func Canonicalise(serial string) (string, error) {
	m, err := Decode(serial)
	if err != nil {
		return "", err
	}
	return m.ToSerial()
}

// RefreshMetadata recomputes ManufacturerIndex, Level and the decoded Parts
// from the current token sequence. Every mutation method calls this after
// editing Tokens.
func (m *ItemModel) RefreshMetadata() {
	m.ManufacturerTokenIndex = -1
	m.LevelValueTokenIndex = -1
	m.HasCatalogEntry = false
	m.Parts = nil

	ordinal := 0
	var intOrdinals []int // token indices of integer-valued tokens, in ordinal order

	for i, tok := range m.Tokens {
		switch tok.Kind {
		case itemtoken.VarIntTok, itemtoken.VarBitTok:
			if ordinal == 0 {
				m.ManufacturerIndex = tok.Int
				m.ManufacturerTokenIndex = i
			}
			intOrdinals = append(intOrdinals, i)
			ordinal++
		case itemtoken.PartTok:
			m.Parts = append(m.Parts, DecodedPart{Token: tok.Part})
		}
	}

	for j := 2; j+1 < len(intOrdinals); j += 2 {
		first := m.Tokens[intOrdinals[j]].Int
		if first == 1 {
			m.Level = m.Tokens[intOrdinals[j+1]].Int
			m.LevelValueTokenIndex = intOrdinals[j+1]
			break
		}
	}

	if ct, ok := itemcatalog.LookupItemType(m.ManufacturerIndex); ok {
		m.Catalog = ct
		m.HasCatalogEntry = true
		for i := range m.Parts {
			if p, ok := itemcatalog.LookupPart(ct.Manufacturer, ct.ItemType, m.Parts[i].Token.Index); ok {
				pp := p
				m.Parts[i].Catalog = &pp
			}
		}
	}
}

// SetLevel overwrites the level value token found during the last refresh.
func (m *ItemModel) SetLevel(newLevel uint32) error {
	if m.LevelValueTokenIndex < 0 {
		return ErrLevelTokenMissing
	}
	m.Tokens[m.LevelValueTokenIndex].Int = newLevel
	m.RefreshMetadata()
	return nil
}

// SetManufacturerIndex overwrites the first integer token.
func (m *ItemModel) SetManufacturerIndex(newIndex uint32) error {
	if m.ManufacturerTokenIndex < 0 {
		return ErrManufacturerTokenMissing
	}
	m.Tokens[m.ManufacturerTokenIndex].Int = newIndex
	m.RefreshMetadata()
	return nil
}

// SetPartIndex overwrites the index field of the partOrdinal-th part token,
// in encounter order.
func (m *ItemModel) SetPartIndex(partOrdinal int, newIndex uint32) error {
	i, err := m.partTokenIndex(partOrdinal)
	if err != nil {
		return err
	}
	m.Tokens[i].Part.Index = newIndex
	m.RefreshMetadata()
	return nil
}

// SetPartValues overwrites the value payload of the partOrdinal-th part
// token according to its subtype.
func (m *ItemModel) SetPartValues(partOrdinal int, newValues []uint32) error {
	i, err := m.partTokenIndex(partOrdinal)
	if err != nil {
		return err
	}
	switch m.Tokens[i].Part.Subtype {
	case itemtoken.PartNone:
		return ErrPartHasNoValues
	case itemtoken.PartInt:
		if len(newValues) != 1 {
			return ErrIntPartArity
		}
		m.Tokens[i].Part.Value = newValues[0]
	case itemtoken.PartList:
		m.Tokens[i].Part.Values = append([]uint32(nil), newValues...)
	}
	m.RefreshMetadata()
	return nil
}

func (m *ItemModel) partTokenIndex(partOrdinal int) (int, error) {
	ordinal := 0
	for i, tok := range m.Tokens {
		if tok.Kind != itemtoken.PartTok {
			continue
		}
		if ordinal == partOrdinal {
			return i, nil
		}
		ordinal++
	}
	return 0, ErrPartIndexOutOfBounds
}

// decodeCache memoizes decoded models keyed by xxhash.Sum64String(serial),
// bounded to a fixed capacity with least-recently-used eviction.
type decodeCache struct {
	mu       sync.Mutex
	capacity int
	entries  map[uint64]*list.Element
	order    *list.List
}

type cacheEntry struct {
	key   uint64
	model *ItemModel
}

const defaultCacheCapacity = 4096

var globalCache = newDecodeCache(defaultCacheCapacity)

func newDecodeCache(capacity int) *decodeCache {
	return &decodeCache{
		capacity: capacity,
		entries:  make(map[uint64]*list.Element),
		order:    list.New(),
	}
}

func cacheGet(serial string) (*ItemModel, bool) {
	return globalCache.get(serial)
}

func cachePut(serial string, m *ItemModel) {
	globalCache.put(serial, m)
}

func (c *decodeCache) get(serial string) (*ItemModel, bool) {
	key := xxhash.Sum64String(serial)

	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	c.order.MoveToFront(el)
	return el.Value.(*cacheEntry).model, true
}

func (c *decodeCache) put(serial string, m *ItemModel) {
	key := xxhash.Sum64String(serial)

	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[key]; ok {
		c.order.MoveToFront(el)
		el.Value.(*cacheEntry).model = m
		return
	}

	el := c.order.PushFront(&cacheEntry{key: key, model: m})
	c.entries[key] = el

	for c.order.Len() > c.capacity {
		oldest := c.order.Back()
		if oldest == nil {
			break
		}
		c.order.Remove(oldest)
		delete(c.entries, oldest.Value.(*cacheEntry).key)
	}
}
