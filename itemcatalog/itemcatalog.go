// Package itemcatalog exposes process-wide, read-only lookup tables mapping
// item-serial manufacturer/type indices and part indices to human-readable
// catalog entries, built lazily from embedded CSV tables.
package itemcatalog

import (
	"embed"
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/maruel/natural"
)

//go:embed data/*.csv
var catalogFS embed.FS

// ItemType describes a single manufacturer/item-type combination, keyed by
// the numeric id a serial's manufacturer-index field carries.
type ItemType struct {
	ID           uint32
	Manufacturer string
	ItemType     string
}

// PartKey identifies a part table entry: lowercased manufacturer, lowercased
// item type, and the part's numeric id within that pairing.
type PartKey struct {
	Manufacturer string
	ItemType     string
	ID           uint32
}

// Part describes a single catalog part entry.
type Part struct {
	Manufacturer string
	ItemType     string
	ID           uint32
	PartType     string
	ModelName    string
	Description  string
	Effects      []string
}

var (
	once sync.Once

	itemTypes map[uint32]ItemType
	parts     map[PartKey]Part

	skippedItemTypeRows int
	skippedPartRows     int

	loadErr error
)

func load() {
	itemTypes = make(map[uint32]ItemType)
	parts = make(map[PartKey]Part)

	if err := loadItemTypes(); err != nil {
		loadErr = fmt.Errorf("itemcatalog: item_types.csv: %w", err)
		return
	}
	if err := loadParts(); err != nil {
		loadErr = fmt.Errorf("itemcatalog: parts.csv: %w", err)
		return
	}
}

func ensureLoaded() {
	once.Do(load)
	if loadErr != nil {
		panic(fmt.Sprintf("itemcatalog: failed to load embedded catalog: %v", loadErr))
	}
}

func loadItemTypes() error {
	f, err := catalogFS.Open("data/item_types.csv")
	if err != nil {
		return err
	}
	defer f.Close()

	r := csv.NewReader(f)
	header, err := r.Read()
	if err != nil {
		return err
	}
	cols := indexHeader(header)

	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		id, man, typ, ok := parseItemTypeRow(rec, cols)
		if !ok {
			skippedItemTypeRows++
			continue
		}
		itemTypes[id] = ItemType{ID: id, Manufacturer: man, ItemType: typ}
	}
	return nil
}

func parseItemTypeRow(rec []string, cols map[string]int) (uint32, string, string, bool) {
	idIdx, ok := cols["id"]
	if !ok || idIdx >= len(rec) {
		return 0, "", "", false
	}
	manIdx, ok := cols["manufacturer"]
	if !ok || manIdx >= len(rec) {
		return 0, "", "", false
	}
	typIdx, ok := cols["item_type"]
	if !ok || typIdx >= len(rec) {
		return 0, "", "", false
	}
	id, err := strconv.ParseUint(strings.TrimSpace(rec[idIdx]), 10, 32)
	if err != nil {
		return 0, "", "", false
	}
	man := strings.TrimSpace(rec[manIdx])
	typ := strings.TrimSpace(rec[typIdx])
	if man == "" || typ == "" {
		return 0, "", "", false
	}
	return uint32(id), man, typ, true
}

func loadParts() error {
	f, err := catalogFS.Open("data/parts.csv")
	if err != nil {
		return err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	header, err := r.Read()
	if err != nil {
		return err
	}
	cols := indexHeader(header)

	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		p, ok := parsePartRow(rec, cols)
		if !ok {
			skippedPartRows++
			continue
		}
		key := PartKey{
			Manufacturer: strings.ToLower(p.Manufacturer),
			ItemType:     strings.ToLower(p.ItemType),
			ID:           p.ID,
		}
		parts[key] = p
	}
	return nil
}

func parsePartRow(rec []string, cols map[string]int) (Part, bool) {
	get := func(name string) (string, bool) {
		idx, ok := cols[name]
		if !ok || idx >= len(rec) {
			return "", false
		}
		return strings.TrimSpace(rec[idx]), true
	}

	man, ok := get("manufacturer")
	if !ok || man == "" {
		return Part{}, false
	}
	typ, ok := get("item_type")
	if !ok || typ == "" {
		return Part{}, false
	}
	idStr, ok := get("id")
	if !ok {
		return Part{}, false
	}
	id, err := strconv.ParseUint(idStr, 10, 32)
	if err != nil {
		return Part{}, false
	}
	partType, _ := get("part_type")
	modelName, _ := get("model_name")
	description, _ := get("description")
	effectsRaw, _ := get("effects")

	var effects []string
	if effectsRaw != "" {
		for _, e := range strings.Split(effectsRaw, ";") {
			e = strings.TrimSpace(e)
			if e != "" {
				effects = append(effects, e)
			}
		}
	}

	return Part{
		Manufacturer: man,
		ItemType:     typ,
		ID:           uint32(id),
		PartType:     partType,
		ModelName:    modelName,
		Description:  description,
		Effects:      effects,
	}, true
}

func indexHeader(header []string) map[string]int {
	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}
	return cols
}

// LookupItemType returns the manufacturer/item-type pairing for id, and
// whether one was found.
func LookupItemType(id uint32) (ItemType, bool) {
	ensureLoaded()
	it, ok := itemTypes[id]
	return it, ok
}

// LookupPart returns the catalog entry for a part, matching manufacturer
// and item type case-insensitively.
func LookupPart(manufacturer, itemType string, id uint32) (Part, bool) {
	ensureLoaded()
	p, ok := parts[PartKey{
		Manufacturer: strings.ToLower(manufacturer),
		ItemType:     strings.ToLower(itemType),
		ID:           id,
	}]
	return p, ok
}

// PartEntriesFor returns every part known for a manufacturer/item-type
// pairing, sorted by numeric id.
func PartEntriesFor(manufacturer, itemType string) []Part {
	ensureLoaded()
	man := strings.ToLower(manufacturer)
	typ := strings.ToLower(itemType)

	var out []Part
	for key, p := range parts {
		if key.Manufacturer == man && key.ItemType == typ {
			out = append(out, p)
		}
	}
	sortPartsByID(out)
	return out
}

func sortPartsByID(ps []Part) {
	names := make([]string, len(ps))
	byName := make(map[string]Part, len(ps))
	for i, p := range ps {
		n := fmt.Sprintf("%020d", p.ID)
		names[i] = n
		byName[n] = p
	}
	sort.Sort(natural.StringSlice(names))
	for i, n := range names {
		ps[i] = byName[n]
	}
}

// AllItemTypes returns every known item-type entry, naturally sorted by
// manufacturer, then item type, then id.
func AllItemTypes() []ItemType {
	ensureLoaded()
	out := make([]ItemType, 0, len(itemTypes))
	for _, it := range itemTypes {
		out = append(out, it)
	}

	keys := make([]string, len(out))
	byKey := make(map[string]ItemType, len(out))
	for i, it := range out {
		k := fmt.Sprintf("%s/%s/%020d", strings.ToLower(it.Manufacturer), strings.ToLower(it.ItemType), it.ID)
		keys[i] = k
		byKey[k] = it
	}
	sort.Sort(natural.StringSlice(keys))
	for i, k := range keys {
		out[i] = byKey[k]
	}
	return out
}

// SkippedRows reports how many malformed rows were silently dropped while
// loading the embedded catalog, split by table.
func SkippedRows() (itemTypeRows, partRows int) {
	ensureLoaded()
	return skippedItemTypeRows, skippedPartRows
}
