package itemcatalog

import "testing"

func TestLookupItemType(t *testing.T) {
	it, ok := LookupItemType(0)
	if !ok {
		t.Fatal("expected item type 0 to be found")
	}
	if it.Manufacturer != "Jakobs" || it.ItemType != "Pistol" {
		t.Errorf("LookupItemType(0) = %+v, want Jakobs/Pistol", it)
	}
}

func TestLookupItemTypeMissing(t *testing.T) {
	if _, ok := LookupItemType(99999); ok {
		t.Error("expected LookupItemType(99999) to report not found")
	}
}

func TestLookupPartCaseInsensitive(t *testing.T) {
	p, ok := LookupPart("JAKOBS", "pistol", 1)
	if !ok {
		t.Fatal("expected part to be found regardless of case")
	}
	if p.ModelName != "Barrel_02_Long" {
		t.Errorf("LookupPart model name = %q, want Barrel_02_Long", p.ModelName)
	}
	if len(p.Effects) != 1 || p.Effects[0] != "+accuracy" {
		t.Errorf("LookupPart effects = %v, want [+accuracy]", p.Effects)
	}
}

func TestLookupPartMissing(t *testing.T) {
	if _, ok := LookupPart("jakobs", "pistol", 999); ok {
		t.Error("expected missing part id to report not found")
	}
}

func TestPartEntriesForSortedByID(t *testing.T) {
	entries := PartEntriesFor("vladof", "assaultrifle")
	if len(entries) != 3 {
		t.Fatalf("PartEntriesFor(vladof, assaultrifle) = %d entries, want 3", len(entries))
	}
	for i := 1; i < len(entries); i++ {
		if entries[i-1].ID > entries[i].ID {
			t.Errorf("entries not sorted by id: %v", entries)
		}
	}
}

func TestAllItemTypesSorted(t *testing.T) {
	all := AllItemTypes()
	if len(all) == 0 {
		t.Fatal("expected non-empty item type catalog")
	}
	for i := 1; i < len(all); i++ {
		a, b := all[i-1], all[i]
		if a.Manufacturer > b.Manufacturer {
			t.Errorf("item types not sorted by manufacturer: %v before %v", a, b)
		}
	}
}

func TestSkippedRowsIsZeroForWellFormedData(t *testing.T) {
	itRows, pRows := SkippedRows()
	if itRows != 0 || pRows != 0 {
		t.Errorf("SkippedRows() = (%d, %d), want (0, 0) for well-formed embedded data", itRows, pRows)
	}
}
