// itemdump decodes a single item serial and prints its token stream,
// manufacturer and level metadata, and catalog cross-references. With -catalogcache it additionally
// projects the embedded item catalog into a SQLite database for ad-hoc
// querying, rather than re-parsing the CSVs on every invocation.
package main

import (
	"flag"
	"fmt"
	"os"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"vaultcodec/itemcatalog"
	"vaultcodec/itemmodel"
	"vaultcodec/itemtoken"
)

func main() {
	catalogCache := flag.String("catalogcache", "", "write the embedded item catalog into a SQLite database at `PATH` (exits afterwards unless a serial is also given)")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: itemdump [-catalogcache PATH] <serial>\n\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if *catalogCache != "" {
		if err := writeCatalogCache(*catalogCache); err != nil {
			fmt.Fprintf(os.Stderr, "write catalog cache: %v\n", err)
			os.Exit(1)
		}
		fmt.Fprintf(os.Stderr, "wrote catalog cache to %s\n", *catalogCache)
		if flag.NArg() == 0 {
			return
		}
	}

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	serial := flag.Arg(0)

	model, err := itemmodel.Decode(serial)
	if err != nil {
		fmt.Fprintf(os.Stderr, "decode %q: %v\n", serial, err)
		os.Exit(1)
	}

	dumpModel(os.Stdout, serial, model)
}

func dumpModel(w *os.File, serial string, model *itemmodel.ItemModel) {
	fmt.Fprintf(w, "serial: %s\n", serial)
	fmt.Fprintf(w, "tokens: %d\n", len(model.Tokens))
	for i, tok := range model.Tokens {
		fmt.Fprintf(w, "  [%d] %s\n", i, describeToken(tok))
	}
	fmt.Fprintf(w, "manufacturer_index: %d (token %d)\n", model.ManufacturerIndex, model.ManufacturerTokenIndex)
	fmt.Fprintf(w, "level: %d (token %d)\n", model.Level, model.LevelValueTokenIndex)
	if model.HasCatalogEntry {
		fmt.Fprintf(w, "catalog: %s/%s (id %d)\n", model.Catalog.Manufacturer, model.Catalog.ItemType, model.Catalog.ID)
	} else {
		fmt.Fprintln(w, "catalog: no match")
	}
	for i, part := range model.Parts {
		fmt.Fprintf(w, "part[%d]: index=%d", i, part.Token.Index)
		if part.Catalog != nil {
			fmt.Fprintf(w, " -> %s (%s)", part.Catalog.ModelName, part.Catalog.PartType)
			if len(part.Catalog.Effects) > 0 {
				fmt.Fprintf(w, " effects=%v", part.Catalog.Effects)
			}
		}
		fmt.Fprintln(w)
	}
}

func describeToken(tok itemtoken.Token) string {
	switch tok.Kind {
	case itemtoken.Sep1:
		return "sep1"
	case itemtoken.Sep2:
		return "sep2"
	case itemtoken.VarIntTok:
		return fmt.Sprintf("int(%d)", tok.Int)
	case itemtoken.VarBitTok:
		return fmt.Sprintf("bit(%d)", tok.Int)
	case itemtoken.StringTok:
		return fmt.Sprintf("string(%q)", tok.Str)
	case itemtoken.PartTok:
		switch tok.Part.Subtype {
		case itemtoken.PartInt:
			return fmt.Sprintf("part(index=%d, value=%d)", tok.Part.Index, tok.Part.Value)
		case itemtoken.PartList:
			return fmt.Sprintf("part(index=%d, values=%v)", tok.Part.Index, tok.Part.Values)
		default:
			return fmt.Sprintf("part(index=%d, none)", tok.Part.Index)
		}
	default:
		return "unknown"
	}
}

// writeCatalogCache projects the embedded item catalog into a fresh SQLite
// database at path, overwriting any existing file, so downstream tooling
// (spreadsheets, ad-hoc SQL) doesn't need to link against itemcatalog
// itself.
func writeCatalogCache(path string) error {
	_ = os.Remove(path)

	conn, err := sqlite.OpenConn(path, sqlite.OpenReadWrite|sqlite.OpenCreate)
	if err != nil {
		return fmt.Errorf("open %q: %w", path, err)
	}
	defer conn.Close()

	schema := `
CREATE TABLE item_types (id INTEGER PRIMARY KEY, manufacturer TEXT, item_type TEXT);
CREATE TABLE parts (manufacturer TEXT, item_type TEXT, id INTEGER, part_type TEXT, model_name TEXT, description TEXT, effects TEXT);
`
	if err := sqlitex.ExecuteScript(conn, schema, nil); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}

	insertType, err := conn.Prepare(`INSERT INTO item_types (id, manufacturer, item_type) VALUES (?, ?, ?)`)
	if err != nil {
		return err
	}
	for _, it := range itemcatalog.AllItemTypes() {
		insertType.Reset()
		insertType.BindInt64(1, int64(it.ID))
		insertType.BindText(2, it.Manufacturer)
		insertType.BindText(3, it.ItemType)
		if _, err := insertType.Step(); err != nil {
			return fmt.Errorf("insert item_type %d: %w", it.ID, err)
		}

		insertPart, err := conn.Prepare(`INSERT INTO parts (manufacturer, item_type, id, part_type, model_name, description, effects) VALUES (?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		for _, p := range itemcatalog.PartEntriesFor(it.Manufacturer, it.ItemType) {
			insertPart.Reset()
			insertPart.BindText(1, p.Manufacturer)
			insertPart.BindText(2, p.ItemType)
			insertPart.BindInt64(3, int64(p.ID))
			insertPart.BindText(4, p.PartType)
			insertPart.BindText(5, p.ModelName)
			insertPart.BindText(6, p.Description)
			insertPart.BindText(7, fmt.Sprintf("%v", p.Effects))
			if _, err := insertPart.Step(); err != nil {
				return fmt.Errorf("insert part %s/%s/%d: %w", p.Manufacturer, p.ItemType, p.ID, err)
			}
		}
		if err := insertPart.Finalize(); err != nil {
			return err
		}
	}
	if err := insertType.Finalize(); err != nil {
		return err
	}

	return nil
}
